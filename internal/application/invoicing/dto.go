package invoicing

import (
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==================== Payment Command DTOs ====================

// RecordPaymentRequest represents a request to record a payment against an invoice
type RecordPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Method      string          `json:"method" binding:"required,payment_method"`
	PaymentDate *time.Time      `json:"payment_date"`
	Notes       string          `json:"notes" binding:"max=1000"`
	Notify      bool            `json:"notify"`
}

// exactMoney rejects amounts finer than a cent instead of rounding them
func exactMoney(amount decimal.Decimal) (valueobject.Money, error) {
	if !amount.Equal(amount.Round(valueobject.MoneyScale)) {
		return valueobject.Money{}, invoicing.ErrSubCentAmount
	}
	return valueobject.NewMoney(amount), nil
}

func (r RecordPaymentRequest) toInput() (invoicing.PaymentInput, error) {
	amount, err := exactMoney(r.Amount)
	if err != nil {
		return invoicing.PaymentInput{}, err
	}
	in := invoicing.PaymentInput{
		Amount: amount,
		Method: invoicing.PaymentMethod(r.Method),
		Notes:  r.Notes,
	}
	if r.PaymentDate != nil {
		in.PaymentDate = *r.PaymentDate
	}
	return in, nil
}

// SplitEntryInput represents one method/amount pair of a split payment
type SplitEntryInput struct {
	Method string          `json:"method" binding:"required,payment_method"`
	Amount decimal.Decimal `json:"amount"`
}

// RecordSplitPaymentRequest represents a request to pay one invoice with several methods
type RecordSplitPaymentRequest struct {
	Entries     []SplitEntryInput `json:"entries" binding:"required,min=1,dive"`
	PaymentDate *time.Time        `json:"payment_date"`
	Notes       string            `json:"notes" binding:"max=1000"`
	Notify      bool              `json:"notify"`
}

func (r RecordSplitPaymentRequest) toEntries() ([]invoicing.SplitEntry, error) {
	entries := make([]invoicing.SplitEntry, len(r.Entries))
	for i, e := range r.Entries {
		amount, err := exactMoney(e.Amount)
		if err != nil {
			return nil, err
		}
		entries[i] = invoicing.SplitEntry{
			Method: invoicing.PaymentMethod(e.Method),
			Amount: amount,
		}
	}
	return entries, nil
}

// EditPaymentRequest represents a partial update of a completed payment.
// Omitted fields are left unchanged.
type EditPaymentRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	Method      *string          `json:"method" binding:"omitempty,payment_method"`
	PaymentDate *time.Time       `json:"payment_date"`
	Notes       *string          `json:"notes" binding:"omitempty,max=1000"`
}

func (r EditPaymentRequest) toChanges() (invoicing.PaymentChanges, error) {
	var changes invoicing.PaymentChanges
	if r.Amount != nil {
		amount, err := exactMoney(*r.Amount)
		if err != nil {
			return changes, err
		}
		changes.Amount = &amount
	}
	if r.Method != nil {
		method := invoicing.PaymentMethod(*r.Method)
		changes.Method = &method
	}
	changes.PaymentDate = r.PaymentDate
	changes.Notes = r.Notes
	return changes, nil
}

// ReversePaymentRequest represents a refund or void of a payment
type ReversePaymentRequest struct {
	Reason string `json:"reason" binding:"max=500"`
	Notify bool   `json:"notify"`
}

// DeletePaymentRequest represents an administrator's hard delete of a payment
type DeletePaymentRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// ==================== Invoice Command DTOs ====================

// ApplyLateFeeRequest represents a request to add a late fee.
// Percentage falls back to the configured default when omitted.
type ApplyLateFeeRequest struct {
	Percentage *decimal.Decimal `json:"percentage"`
	Notify     bool             `json:"notify"`
}

// VoidInvoiceRequest represents a request to void an invoice
type VoidInvoiceRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
	Notify bool   `json:"notify"`
}

// SetInvoiceStatusRequest represents an administrator's manual status change
type SetInvoiceStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=draft sent partially_paid paid overdue voided"`
}

// MultiInvoicePaymentRequest represents a customer paying several invoices in one checkout
type MultiInvoicePaymentRequest struct {
	CustomerID  uuid.UUID   `json:"customer_id" binding:"required"`
	InvoiceIDs  []uuid.UUID `json:"invoice_ids" binding:"required,min=1,max=50"`
	PaymentDate *time.Time  `json:"payment_date"`
	Signature   string      `json:"signature" binding:"max=200"`
}

// PaymentListFilter represents filter options for the payment list
type PaymentListFilter struct {
	InvoiceID *uuid.UUID `form:"-"`
	Status    string     `form:"status" binding:"omitempty,oneof=completed refunded voided"`
	Method    string     `form:"method"`
	From      *time.Time `form:"from" time_format:"2006-01-02"`
	To        *time.Time `form:"to" time_format:"2006-01-02"`
	Page      int        `form:"page" binding:"omitempty,min=1"`
	PageSize  int        `form:"page_size" binding:"omitempty,min=1,max=500"`
	OrderBy   string     `form:"order_by"`
	OrderDir  string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (f PaymentListFilter) toDomain(companyID uuid.UUID) invoicing.PaymentFilter {
	filter := invoicing.DefaultPaymentFilter(companyID)
	if f.Page > 0 {
		filter.Page = f.Page
	}
	if f.PageSize > 0 {
		filter.PageSize = f.PageSize
	}
	if f.OrderBy != "" {
		filter.OrderBy = f.OrderBy
	}
	if f.OrderDir != "" {
		filter.OrderDir = f.OrderDir
	}
	filter.InvoiceID = f.InvoiceID
	if f.Status != "" {
		status := invoicing.PaymentStatus(f.Status)
		filter.Status = &status
	}
	if f.Method != "" {
		method := invoicing.PaymentMethod(f.Method)
		filter.Method = &method
	}
	filter.From = f.From
	filter.To = f.To
	return filter
}

// ==================== Responses ====================

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID               uuid.UUID         `json:"id"`
	CompanyID        uuid.UUID         `json:"company_id"`
	InvoiceNumber    string            `json:"invoice_number"`
	CustomerID       uuid.UUID         `json:"customer_id"`
	CustomerEmail    string            `json:"customer_email,omitempty"`
	Subtotal         valueobject.Money `json:"subtotal"`
	Tax              valueobject.Money `json:"tax"`
	DiscountType     string            `json:"discount_type"`
	DiscountValue    decimal.Decimal   `json:"discount_value"`
	Total            valueobject.Money `json:"total"`
	LateFeeAmount    valueobject.Money `json:"late_fee_amount"`
	Status           string            `json:"status"`
	StatusOverridden bool              `json:"status_overridden"`
	DueDate          *time.Time        `json:"due_date,omitempty"`
	PaidAt           *time.Time        `json:"paid_at,omitempty"`
	VoidedAt         *time.Time        `json:"voided_at,omitempty"`
	VoidReason       string            `json:"void_reason,omitempty"`
	Version          int               `json:"version"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// ToInvoiceResponse converts a domain invoice to a response
func ToInvoiceResponse(inv *invoicing.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:               inv.ID,
		CompanyID:        inv.CompanyID,
		InvoiceNumber:    inv.InvoiceNumber,
		CustomerID:       inv.CustomerID,
		CustomerEmail:    inv.CustomerEmail,
		Subtotal:         inv.Subtotal,
		Tax:              inv.Tax,
		DiscountType:     string(inv.DiscountType),
		DiscountValue:    inv.DiscountValue,
		Total:            inv.Total,
		LateFeeAmount:    inv.LateFeeAmount,
		Status:           string(inv.Status),
		StatusOverridden: inv.StatusOverridden,
		DueDate:          inv.DueDate,
		PaidAt:           inv.PaidAt,
		Version:          inv.Version,
		CreatedAt:        inv.CreatedAt,
		UpdatedAt:        inv.UpdatedAt,
	}
	if inv.VoidInfo != nil {
		voidedAt := inv.VoidInfo.VoidedAt
		resp.VoidedAt = &voidedAt
		resp.VoidReason = inv.VoidInfo.Reason
	}
	return resp
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID            uuid.UUID         `json:"id"`
	InvoiceID     uuid.UUID         `json:"invoice_id"`
	Amount        valueobject.Money `json:"amount"`
	Method        string            `json:"method"`
	PaymentDate   time.Time         `json:"payment_date"`
	Status        string            `json:"status"`
	Notes         string            `json:"notes,omitempty"`
	RefundReason  string            `json:"refund_reason,omitempty"`
	RecordedBy    uuid.UUID         `json:"recorded_by"`
	ExternalTxnID string            `json:"external_txn_id,omitempty"`
	BatchID       *uuid.UUID        `json:"batch_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// ToPaymentResponse converts a domain payment to a response
func ToPaymentResponse(p *invoicing.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		InvoiceID:     p.InvoiceID,
		Amount:        p.Amount,
		Method:        string(p.Method),
		PaymentDate:   p.PaymentDate,
		Status:        string(p.Status),
		Notes:         p.Notes,
		RefundReason:  p.RefundReason,
		RecordedBy:    p.RecordedBy,
		ExternalTxnID: p.ExternalTxnID,
		BatchID:       p.BatchID,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// ToPaymentResponses converts a list of domain payments
func ToPaymentResponses(payments []*invoicing.Payment) []PaymentResponse {
	responses := make([]PaymentResponse, len(payments))
	for i, p := range payments {
		responses[i] = ToPaymentResponse(p)
	}
	return responses
}

// LedgerResult is returned by every ledger command and by the ledger query:
// the invoice after the command, its full payment set and the derived balance.
type LedgerResult struct {
	Invoice  InvoiceResponse   `json:"invoice"`
	Payments []PaymentResponse `json:"payments"`
	Balance  invoicing.Balance `json:"balance"`
	// Payment is the row the command touched, if any
	Payment *PaymentResponse `json:"payment,omitempty"`
	// Recorded lists the rows created by a split payment
	Recorded []PaymentResponse                     `json:"recorded,omitempty"`
	LateFee  *valueobject.Money                    `json:"late_fee,omitempty"`
	Warnings []*invoicing.InconsistentStateWarning `json:"warnings,omitempty"`
}

func newLedgerResult(l *invoicing.Ledger) *LedgerResult {
	return &LedgerResult{
		Invoice:  ToInvoiceResponse(l.Invoice),
		Payments: ToPaymentResponses(l.Payments),
		Balance:  l.Balance(),
	}
}

func (r *LedgerResult) withPayment(p *invoicing.Payment) *LedgerResult {
	resp := ToPaymentResponse(p)
	r.Payment = &resp
	return r
}

// ReconcileResult reports what a forced recompute changed. An invoice under
// an admin override is not touched; Implied names the status its payments
// call for.
type ReconcileResult struct {
	InvoiceID     uuid.UUID         `json:"invoice_id"`
	InvoiceNumber string            `json:"invoice_number"`
	From          string            `json:"from"`
	To            string            `json:"to"`
	Implied       string            `json:"implied"`
	Drifted       bool              `json:"drifted"`
	Overridden    bool              `json:"overridden"`
	Balance       invoicing.Balance `json:"balance"`
}

// CheckoutResponse is the answer to a multi-invoice payment request
type CheckoutResponse struct {
	SessionID  string                  `json:"session_id"`
	SessionURL string                  `json:"session_url"`
	ExpiresAt  *time.Time              `json:"expires_at,omitempty"`
	Amount     valueobject.Money       `json:"amount"`
	InvoiceIDs []uuid.UUID             `json:"invoice_ids"`
	Lines      []invoicing.SessionLine `json:"lines"`
}

// SettlementFailure names an invoice that could not be settled. Retryable
// failures released their claim and settle on redelivery.
type SettlementFailure struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
	Error     string    `json:"error"`
	Retryable bool      `json:"retryable"`
}

// SettlementResult reports the outcome of a processor settlement per invoice
type SettlementResult struct {
	SessionID  string              `json:"session_id"`
	Settled    []uuid.UUID         `json:"settled"`
	Duplicates []uuid.UUID         `json:"duplicates,omitempty"`
	Skipped    []uuid.UUID         `json:"skipped,omitempty"`
	Failed     []SettlementFailure `json:"failed,omitempty"`
}

// NeedsRedelivery reports whether a failed invoice would settle if the
// processor delivered the notice again
func (r *SettlementResult) NeedsRedelivery() bool {
	for _, f := range r.Failed {
		if f.Retryable {
			return true
		}
	}
	return false
}

// LateFeeSweepResult counts the outcome of one late fee run
type LateFeeSweepResult struct {
	Companies int `json:"companies"`
	Applied   int `json:"applied"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}
