package handler

import (
	"fmt"
	"net/http"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/gin-gonic/gin"
)

// ReceiptHandler serves payment receipts
type ReceiptHandler struct {
	BaseHandler
	receipts invoicing.ReceiptGenerator
}

// NewReceiptHandler creates a new ReceiptHandler
func NewReceiptHandler(receipts invoicing.ReceiptGenerator) *ReceiptHandler {
	return &ReceiptHandler{receipts: receipts}
}

// DownloadReceipt godoc
// @ID           downloadReceipt
// @Summary      Download a payment receipt
// @Description  Renders the receipt of a payment as PDF
// @Tags         receipts
// @Produce      application/pdf
// @Param        id path string true "Payment ID" format(uuid)
// @Success      200 {file} file
// @Failure      404 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/{id}/receipt [get]
func (h *ReceiptHandler) DownloadReceipt(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	paymentID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	receipt, err := h.receipts.GenerateReceipt(c.Request.Context(), actor.CompanyID, paymentID, invoicing.ReceiptModeDownload)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", receipt.FileName))
	c.Data(http.StatusOK, "application/pdf", receipt.PDF)
}

// EmailReceipt godoc
// @ID           emailReceipt
// @Summary      Email a payment receipt
// @Description  Renders the receipt and sends it to the customer's email address
// @Tags         receipts
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Success      200 {object} APIResponse[invoicing.Receipt]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/{id}/receipt/email [post]
func (h *ReceiptHandler) EmailReceipt(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	paymentID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	receipt, err := h.receipts.GenerateReceipt(c.Request.Context(), actor.CompanyID, paymentID, invoicing.ReceiptModeEmail)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, receipt)
}
