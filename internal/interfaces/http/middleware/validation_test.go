package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appinvoicing "github.com/erp/ledger/internal/application/invoicing"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindRouter() *gin.Engine {
	SetupValidator()
	router := gin.New()
	router.POST("/payments", func(c *gin.Context) {
		var req appinvoicing.RecordPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})
	return router
}

func TestSetupValidator_PaymentMethod(t *testing.T) {
	router := bindRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/payments",
		strings.NewReader(`{"amount":"10.00","method":"check"}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/payments",
		strings.NewReader(`{"amount":"10.00","method":"barter"}`)))
	require.Equal(t, http.StatusBadRequest, w.Code)
	info := decodeError(t, w)
	assert.Equal(t, dto.ErrCodeValidation, info.Code)
	require.Len(t, info.Details, 1)
	assert.Equal(t, "method", info.Details[0].Field)
	assert.Equal(t, "payment_method", info.Details[0].Tag)
}

func TestFormatValidationErrors_MalformedBody(t *testing.T) {
	router := bindRouter()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"amount":`)))
	require.Equal(t, http.StatusBadRequest, w.Code)
	info := decodeError(t, w)
	require.Len(t, info.Details, 1)
	assert.Equal(t, "body", info.Details[0].Field)
}

func TestFormatValidationErrors_PlainError(t *testing.T) {
	resp := FormatValidationErrors(errors.New("boom"), "req-1")
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.Len(t, resp.Error.Details, 1)
}
