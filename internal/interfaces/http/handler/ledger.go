package handler

import (
	"context"
	"fmt"
	"net/http"

	appinvoicing "github.com/erp/ledger/internal/application/invoicing"
	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LedgerCommands is the ledger command and query surface used by the API
type LedgerCommands interface {
	RecordPayment(ctx context.Context, actor invoicing.Actor, invoiceID uuid.UUID, req appinvoicing.RecordPaymentRequest) (*appinvoicing.LedgerResult, error)
	RecordSplitPayment(ctx context.Context, actor invoicing.Actor, invoiceID uuid.UUID, req appinvoicing.RecordSplitPaymentRequest) (*appinvoicing.LedgerResult, error)
	EditPayment(ctx context.Context, actor invoicing.Actor, paymentID uuid.UUID, req appinvoicing.EditPaymentRequest) (*appinvoicing.LedgerResult, error)
	RefundPayment(ctx context.Context, actor invoicing.Actor, paymentID uuid.UUID, req appinvoicing.ReversePaymentRequest) (*appinvoicing.LedgerResult, error)
	VoidPayment(ctx context.Context, actor invoicing.Actor, paymentID uuid.UUID, req appinvoicing.ReversePaymentRequest) (*appinvoicing.LedgerResult, error)
	DeletePayment(ctx context.Context, actor invoicing.Actor, paymentID uuid.UUID, req appinvoicing.DeletePaymentRequest) (*appinvoicing.LedgerResult, error)
	ApplyLateFee(ctx context.Context, actor invoicing.Actor, invoiceID uuid.UUID, req appinvoicing.ApplyLateFeeRequest) (*appinvoicing.LedgerResult, error)
	VoidInvoice(ctx context.Context, actor invoicing.Actor, invoiceID uuid.UUID, req appinvoicing.VoidInvoiceRequest) (*appinvoicing.LedgerResult, error)
	SetInvoiceStatus(ctx context.Context, actor invoicing.Actor, invoiceID uuid.UUID, req appinvoicing.SetInvoiceStatusRequest) (*appinvoicing.LedgerResult, error)
	Reconcile(ctx context.Context, actor invoicing.Actor, invoiceID uuid.UUID) (*appinvoicing.ReconcileResult, error)
	GetInvoiceLedger(ctx context.Context, companyID, invoiceID uuid.UUID) (*appinvoicing.LedgerResult, error)
	ListPayments(ctx context.Context, companyID uuid.UUID, filter appinvoicing.PaymentListFilter) ([]appinvoicing.PaymentResponse, int64, error)
}

// CheckoutCommands starts processor checkouts covering several invoices
type CheckoutCommands interface {
	RecordMultiInvoicePayment(ctx context.Context, actor invoicing.Actor, req appinvoicing.MultiInvoicePaymentRequest) (*appinvoicing.CheckoutResponse, error)
}

// PaymentExporter renders the payment ledger as a downloadable file
type PaymentExporter interface {
	ExportPayments(ctx context.Context, companyID uuid.UUID, filter appinvoicing.PaymentListFilter) (*appinvoicing.ExportFile, error)
}

// LedgerHandler serves the invoice and payment ledger endpoints
type LedgerHandler struct {
	BaseHandler
	ledger   LedgerCommands
	checkout CheckoutCommands
	exporter PaymentExporter
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledger LedgerCommands, checkout CheckoutCommands, exporter PaymentExporter) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, checkout: checkout, exporter: exporter}
}

// paymentListQuery accepts invoice_id as text since uuid.UUID has no form decoder
type paymentListQuery struct {
	appinvoicing.PaymentListFilter
	InvoiceIDParam string `form:"invoice_id" binding:"omitempty,uuid"`
}

func (h *LedgerHandler) bindPaymentFilter(c *gin.Context) (appinvoicing.PaymentListFilter, bool) {
	var q paymentListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return appinvoicing.PaymentListFilter{}, false
	}
	filter := q.PaymentListFilter
	if q.InvoiceIDParam != "" {
		id := uuid.MustParse(q.InvoiceIDParam)
		filter.InvoiceID = &id
	}
	return filter, true
}

// GetInvoiceLedger godoc
// @ID           getInvoiceLedger
// @Summary      Get an invoice ledger
// @Description  Returns the invoice, its complete payment history and the derived balance
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[appinvoicing.LedgerResult]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/ledger [get]
func (h *LedgerHandler) GetInvoiceLedger(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	invoiceID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	result, err := h.ledger.GetInvoiceLedger(c.Request.Context(), actor.CompanyID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Reconcile godoc
// @ID           reconcileInvoice
// @Summary      Reconcile invoice status
// @Description  Recomputes the invoice status from its payments and reports any drift that was corrected. An admin status override is reported, not cleared.
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[appinvoicing.ReconcileResult]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/reconcile [post]
func (h *LedgerHandler) Reconcile(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	invoiceID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	result, err := h.ledger.Reconcile(c.Request.Context(), actor, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RecordPayment godoc
// @ID           recordPayment
// @Summary      Record a payment
// @Description  Records a manual payment against the invoice and reconciles its status
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body appinvoicing.RecordPaymentRequest true "Payment"
// @Success      201 {object} APIResponse[appinvoicing.LedgerResult]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/payments [post]
func (h *LedgerHandler) RecordPayment(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	invoiceID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req appinvoicing.RecordPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.ledger.RecordPayment(c.Request.Context(), actor, invoiceID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// RecordSplitPayment godoc
// @ID           recordSplitPayment
// @Summary      Record a split payment
// @Description  Records one payment per entry atomically, all sharing the payment date
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body appinvoicing.RecordSplitPaymentRequest true "Split entries"
// @Success      201 {object} APIResponse[appinvoicing.LedgerResult]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/payments/split [post]
func (h *LedgerHandler) RecordSplitPayment(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	invoiceID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req appinvoicing.RecordSplitPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.ledger.RecordSplitPayment(c.Request.Context(), actor, invoiceID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// ApplyLateFee godoc
// @ID           applyLateFee
// @Summary      Apply the late fee
// @Description  Adds a one-time late fee to an overdue invoice. Omit percentage to use the configured default.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body appinvoicing.ApplyLateFeeRequest false "Late fee options"
// @Success      200 {object} APIResponse[appinvoicing.LedgerResult]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/late-fee [post]
func (h *LedgerHandler) ApplyLateFee(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	invoiceID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req appinvoicing.ApplyLateFeeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.ledger.ApplyLateFee(c.Request.Context(), actor, invoiceID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// VoidInvoice godoc
// @ID           voidInvoice
// @Summary      Void an invoice
// @Description  Voids an unpaid invoice, recording who voided it and why
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body appinvoicing.VoidInvoiceRequest true "Void reason"
// @Success      200 {object} APIResponse[appinvoicing.LedgerResult]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/void [post]
func (h *LedgerHandler) VoidInvoice(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	invoiceID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req appinvoicing.VoidInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.ledger.VoidInvoice(c.Request.Context(), actor, invoiceID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// SetInvoiceStatus godoc
// @ID           setInvoiceStatus
// @Summary      Override invoice status
// @Description  Administrator override of the invoice status. The override holds until the next payment change.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body appinvoicing.SetInvoiceStatusRequest true "Target status"
// @Success      200 {object} APIResponse[appinvoicing.LedgerResult]
// @Failure      403 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/status [put]
func (h *LedgerHandler) SetInvoiceStatus(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	invoiceID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req appinvoicing.SetInvoiceStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.ledger.SetInvoiceStatus(c.Request.Context(), actor, invoiceID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Checkout godoc
// @ID           checkoutInvoices
// @Summary      Pay several invoices
// @Description  Creates one processor checkout session covering the remaining balance of every selected invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request body appinvoicing.MultiInvoicePaymentRequest true "Invoice selection"
// @Success      201 {object} APIResponse[appinvoicing.CheckoutResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/checkout [post]
func (h *LedgerHandler) Checkout(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req appinvoicing.MultiInvoicePaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.checkout.RecordMultiInvoicePayment(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// ListPayments godoc
// @ID           listPayments
// @Summary      List payments
// @Description  Lists the company's payments with optional invoice, status, method and date filters
// @Tags         payments
// @Produce      json
// @Param        invoice_id query string false "Invoice ID" format(uuid)
// @Param        status query string false "Payment status" Enums(completed, refunded, voided)
// @Param        method query string false "Payment method"
// @Param        from query string false "Payment date from (YYYY-MM-DD)"
// @Param        to query string false "Payment date to (YYYY-MM-DD)"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(500)
// @Param        order_by query string false "Order by field" default(payment_date)
// @Param        order_dir query string false "Order direction" Enums(asc, desc) default(desc)
// @Success      200 {object} APIResponse[[]appinvoicing.PaymentResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments [get]
func (h *LedgerHandler) ListPayments(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	filter, ok := h.bindPaymentFilter(c)
	if !ok {
		return
	}
	payments, total, err := h.ledger.ListPayments(c.Request.Context(), actor.CompanyID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page := max(filter.Page, 1)
	h.SuccessWithMeta(c, payments, total, page, filter.PageSize)
}

// ExportPayments godoc
// @ID           exportPayments
// @Summary      Export payments
// @Description  Downloads the filtered payment ledger as an XLSX workbook
// @Tags         payments
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        invoice_id query string false "Invoice ID" format(uuid)
// @Param        status query string false "Payment status" Enums(completed, refunded, voided)
// @Param        from query string false "Payment date from (YYYY-MM-DD)"
// @Param        to query string false "Payment date to (YYYY-MM-DD)"
// @Success      200 {file} file
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/export [get]
func (h *LedgerHandler) ExportPayments(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	filter, ok := h.bindPaymentFilter(c)
	if !ok {
		return
	}
	file, err := h.exporter.ExportPayments(c.Request.Context(), actor.CompanyID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// EditPayment godoc
// @ID           editPayment
// @Summary      Edit a payment
// @Description  Changes the amount, method, date or notes of a completed payment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Param        request body appinvoicing.EditPaymentRequest true "Changed fields"
// @Success      200 {object} APIResponse[appinvoicing.LedgerResult]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/{id} [put]
func (h *LedgerHandler) EditPayment(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	paymentID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req appinvoicing.EditPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.ledger.EditPayment(c.Request.Context(), actor, paymentID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RefundPayment godoc
// @ID           refundPayment
// @Summary      Refund a payment
// @Description  Marks a completed payment as refunded; it stops counting toward the invoice
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Param        request body appinvoicing.ReversePaymentRequest false "Reason"
// @Success      200 {object} APIResponse[appinvoicing.LedgerResult]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/{id}/refund [post]
func (h *LedgerHandler) RefundPayment(c *gin.Context) {
	h.reverse(c, h.ledger.RefundPayment)
}

// VoidPayment godoc
// @ID           voidPayment
// @Summary      Void a payment
// @Description  Marks a completed payment as voided; it stops counting toward the invoice
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Param        request body appinvoicing.ReversePaymentRequest false "Reason"
// @Success      200 {object} APIResponse[appinvoicing.LedgerResult]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/{id}/void [post]
func (h *LedgerHandler) VoidPayment(c *gin.Context) {
	h.reverse(c, h.ledger.VoidPayment)
}

type reverseCommand func(ctx context.Context, actor invoicing.Actor, paymentID uuid.UUID, req appinvoicing.ReversePaymentRequest) (*appinvoicing.LedgerResult, error)

func (h *LedgerHandler) reverse(c *gin.Context, cmd reverseCommand) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	paymentID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req appinvoicing.ReversePaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := cmd(c.Request.Context(), actor, paymentID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// DeletePayment godoc
// @ID           deletePayment
// @Summary      Delete a payment
// @Description  Administrator removal of an erroneous payment. The audit log keeps a record.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Param        request body appinvoicing.DeletePaymentRequest false "Reason"
// @Success      200 {object} APIResponse[appinvoicing.LedgerResult]
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/{id} [delete]
func (h *LedgerHandler) DeletePayment(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	paymentID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req appinvoicing.DeletePaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.ledger.DeletePayment(c.Request.Context(), actor, paymentID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
