package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LedgerStream upgrades a request into a company-scoped ledger feed
type LedgerStream interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request, companyID uuid.UUID)
}

// StreamHandler serves the live ledger feed
type StreamHandler struct {
	BaseHandler
	stream LedgerStream
}

// NewStreamHandler creates a new StreamHandler
func NewStreamHandler(stream LedgerStream) *StreamHandler {
	return &StreamHandler{stream: stream}
}

// Subscribe godoc
// @ID           subscribeLedgerStream
// @Summary      Subscribe to ledger updates
// @Description  Upgrades to a WebSocket that receives the company's ledger changes. Browsers may pass the token as access_token.
// @Tags         ledger
// @Param        access_token query string false "JWT access token"
// @Success      101
// @Failure      401 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /ledger/stream [get]
func (h *StreamHandler) Subscribe(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	h.stream.HandleWebSocket(c.Writer, c.Request, actor.CompanyID)
}
