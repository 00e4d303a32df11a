package middleware

import (
	"net/http"

	"github.com/erp/ledger/internal/infrastructure/auth"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequireAnyPermission lets the request through when the token carries at
// least one of permissions. ledger:admin satisfies every check.
func RequireAnyPermission(permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil {
			denyPermission(c, permissions, "No authentication claims found")
			return
		}
		if claims.HasPermission(auth.PermissionLedgerAdmin) {
			c.Next()
			return
		}
		for _, p := range permissions {
			if claims.HasPermission(p) {
				c.Next()
				return
			}
		}
		denyPermission(c, permissions, "User lacks required permission")
	}
}

// RequireAdmin guards the overrides reserved for ledger administrators
func RequireAdmin() gin.HandlerFunc {
	return RequireAnyPermission(auth.PermissionLedgerAdmin)
}

// RequireLedgerAccess derives the permission from the HTTP method: reads need
// ledger:read or ledger:write, everything else needs ledger:write.
func RequireLedgerAccess() gin.HandlerFunc {
	read := RequireAnyPermission(auth.PermissionLedgerRead, auth.PermissionLedgerWrite)
	write := RequireAnyPermission(auth.PermissionLedgerWrite)
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			read(c)
		default:
			write(c)
		}
	}
}

func denyPermission(c *gin.Context, required []string, reason string) {
	logger.FromContext(c.Request.Context()).Warn("Permission denied",
		zap.Strings("required_any", required),
		zap.String("reason", reason),
		zap.String("path", c.Request.URL.Path),
	)
	c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeForbidden, "Permission denied", c.GetString(logger.GinRequestIDKey)))
}
