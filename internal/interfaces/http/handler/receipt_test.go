package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newReceiptRouter(actor invoicing.Actor, receipts *mockReceipts) *gin.Engine {
	h := NewReceiptHandler(receipts)
	r := gin.New()
	r.Use(func(c *gin.Context) { middleware.SetActor(c, actor) })
	r.GET("/payments/:id/receipt", h.DownloadReceipt)
	r.POST("/payments/:id/receipt/email", h.EmailReceipt)
	return r
}

func TestReceiptHandler_Download(t *testing.T) {
	actor := invoicing.Actor{UserID: uuid.New(), CompanyID: uuid.New()}
	paymentID := uuid.New()
	receipts := new(mockReceipts)
	receipts.On("GenerateReceipt", mock.Anything, actor.CompanyID, paymentID, invoicing.ReceiptModeDownload).
		Return(&invoicing.Receipt{PaymentID: paymentID, FileName: "receipt-INV-0001.pdf", PDF: []byte("%PDF-1.7")}, nil)

	w := httptest.NewRecorder()
	newReceiptRouter(actor, receipts).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payments/"+paymentID.String()+"/receipt", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "receipt-INV-0001.pdf")
	assert.Equal(t, "%PDF-1.7", w.Body.String())
	receipts.AssertExpectations(t)
}

func TestReceiptHandler_Email(t *testing.T) {
	actor := invoicing.Actor{UserID: uuid.New(), CompanyID: uuid.New()}
	paymentID := uuid.New()
	sentAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	receipts := new(mockReceipts)
	receipts.On("GenerateReceipt", mock.Anything, actor.CompanyID, paymentID, invoicing.ReceiptModeEmail).
		Return(&invoicing.Receipt{PaymentID: paymentID, Mode: invoicing.ReceiptModeEmail, DeliveredTo: "ap@example.com", DeliveredAt: &sentAt}, nil)

	w := httptest.NewRecorder()
	newReceiptRouter(actor, receipts).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/payments/"+paymentID.String()+"/receipt/email", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"delivered_to":"ap@example.com"`)
	assert.NotContains(t, w.Body.String(), "PDF")
}

func TestReceiptHandler_NoCustomerEmail(t *testing.T) {
	actor := invoicing.Actor{UserID: uuid.New(), CompanyID: uuid.New()}
	paymentID := uuid.New()
	receipts := new(mockReceipts)
	receipts.On("GenerateReceipt", mock.Anything, actor.CompanyID, paymentID, invoicing.ReceiptModeEmail).
		Return(nil, shared.NewDomainError(shared.CodeInvalidState, "Customer has no email address"))

	w := httptest.NewRecorder()
	newReceiptRouter(actor, receipts).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/payments/"+paymentID.String()+"/receipt/email", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
