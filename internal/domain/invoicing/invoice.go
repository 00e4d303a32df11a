package invoicing

import (
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeInvoice names the invoice aggregate in events and the outbox
const AggregateTypeInvoice = "Invoice"

// VoidInfo is the audit record written when an invoice is voided
type VoidInfo struct {
	VoidedAt time.Time `json:"voided_at"`
	Reason   string    `json:"reason"`
	VoidedBy uuid.UUID `json:"voided_by"`
}

// Invoice is the aggregate root of the payment ledger. The payment engine
// only ever changes Status, StatusOverridden, PaidAt, LateFeeAmount and
// VoidInfo; the amounts are fixed when the invoice is issued.
type Invoice struct {
	shared.CompanyAggregateRoot
	InvoiceNumber    string
	CustomerID       uuid.UUID
	CustomerEmail    string
	Subtotal         valueobject.Money
	Tax              valueobject.Money
	DiscountType     DiscountType
	DiscountValue    decimal.Decimal
	Total            valueobject.Money
	LateFeeAmount    valueobject.Money
	Status           InvoiceStatus
	StatusOverridden bool
	DueDate          *time.Time
	PaidAt           *time.Time
	VoidInfo         *VoidInfo
}

// NewInvoiceInput holds the issue-time fields of an invoice
type NewInvoiceInput struct {
	CompanyID     uuid.UUID
	CustomerID    uuid.UUID
	CustomerEmail string
	InvoiceNumber string
	Subtotal      valueobject.Money
	Tax           valueobject.Money
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	DueDate       *time.Time
	Status        InvoiceStatus
}

// NewInvoice creates an invoice and stores its computed total
func NewInvoice(in NewInvoiceInput) (*Invoice, error) {
	if in.CompanyID == uuid.Nil || in.CustomerID == uuid.Nil {
		return nil, errValidation("company and customer are required")
	}
	if in.DiscountType == "" {
		in.DiscountType = DiscountTypeNone
	}
	total, err := ComputeTotal(in.Subtotal, in.Tax, in.DiscountType, in.DiscountValue)
	if err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = InvoiceStatusDraft
	}
	if status != InvoiceStatusDraft && status != InvoiceStatusSent {
		return nil, errValidation("a new invoice starts as draft or sent")
	}

	return &Invoice{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(in.CompanyID),
		InvoiceNumber:        strings.TrimSpace(in.InvoiceNumber),
		CustomerID:           in.CustomerID,
		CustomerEmail:        strings.TrimSpace(in.CustomerEmail),
		Subtotal:             in.Subtotal,
		Tax:                  in.Tax,
		DiscountType:         in.DiscountType,
		DiscountValue:        in.DiscountValue,
		Total:                total,
		LateFeeAmount:        valueobject.Zero(),
		Status:               status,
		DueDate:              in.DueDate,
	}, nil
}

// ComputeTotal returns subtotal - discount + tax, floored at zero
func ComputeTotal(subtotal, tax valueobject.Money, discountType DiscountType, discountValue decimal.Decimal) (valueobject.Money, error) {
	if subtotal.IsNegative() || tax.IsNegative() {
		return valueobject.Money{}, errValidation("subtotal and tax cannot be negative")
	}
	if discountValue.IsNegative() {
		return valueobject.Money{}, errValidation("discount cannot be negative")
	}

	discount := valueobject.Zero()
	switch discountType {
	case DiscountTypeNone, "":
	case DiscountTypePercentage:
		if discountValue.GreaterThan(decimal.NewFromInt(100)) {
			return valueobject.Money{}, errValidation("percentage discount cannot exceed 100")
		}
		discount = subtotal.Percentage(discountValue)
	case DiscountTypeFixed:
		discount = valueobject.NewMoney(discountValue)
	default:
		return valueobject.Money{}, errValidation("unknown discount type %q", discountType)
	}

	return subtotal.Subtract(discount).FloorZero().Add(tax), nil
}

// IsVoided reports whether the invoice reached the terminal voided state
func (i *Invoice) IsVoided() bool {
	return i.Status == InvoiceStatusVoided
}

// EnsureAcceptsPayments rejects ledger additions against a voided invoice
func (i *Invoice) EnsureAcceptsPayments() error {
	if i.IsVoided() {
		return ErrInvoiceVoided
	}
	return nil
}

// applyReconciledStatus moves the invoice to the status implied by bal.
// Any admin override is cleared: a payment-driven recompute always wins.
func (i *Invoice) applyReconciledStatus(bal Balance, now time.Time) StatusTransition {
	t := StatusTransition{From: i.Status, To: NextStatus(i.Status, bal)}
	t.Implied = t.To
	if i.IsVoided() {
		return t
	}

	if i.StatusOverridden {
		i.StatusOverridden = false
		t.OverrideReset = true
	}
	i.Status = t.To

	switch {
	case t.To == InvoiceStatusPaid && i.PaidAt == nil:
		paidAt := now
		i.PaidAt = &paidAt
		t.PaidAtSet = true
	case t.To != InvoiceStatusPaid && t.From == InvoiceStatusPaid:
		i.PaidAt = nil
	}

	if t.Changed() || t.PaidAtSet || t.OverrideReset {
		i.Touch()
	}
	return t
}

// checkReconciledStatus corrects drift between the stored status and bal.
// An overridden invoice is left as the administrator set it.
func (i *Invoice) checkReconciledStatus(bal Balance, now time.Time) StatusTransition {
	if i.StatusOverridden && !i.IsVoided() {
		return StatusTransition{
			From:         i.Status,
			To:           i.Status,
			Implied:      NextStatus(i.Status, bal),
			OverrideKept: true,
		}
	}
	return i.applyReconciledStatus(bal, now)
}

func (i *Invoice) applyLateFee(percentage decimal.Decimal, now time.Time) (valueobject.Money, error) {
	if i.IsVoided() {
		return valueobject.Money{}, ErrInvoiceVoided
	}
	if !percentage.IsPositive() {
		return valueobject.Money{}, errInvalidState("late fee percentage must be greater than zero")
	}
	if !i.LateFeeAmount.IsZero() {
		return valueobject.Money{}, errInvalidState("late fee of %s was already applied", i.LateFeeAmount)
	}
	if !IsOverdue(i, now) {
		return valueobject.Money{}, errInvalidState("late fee applies only to overdue invoices")
	}

	fee := i.Total.Percentage(percentage)
	if !fee.IsPositive() {
		return valueobject.Money{}, errInvalidState("late fee rounds to zero for a total of %s", i.Total)
	}
	i.LateFeeAmount = fee
	i.Touch()
	return fee, nil
}

func (i *Invoice) void(reason string, actor uuid.UUID, now time.Time) error {
	if i.IsVoided() {
		return errInvalidState("invoice is already voided")
	}
	if i.Status == InvoiceStatusPaid {
		return errInvalidState("a paid invoice cannot be voided; refund or void its payments first")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrVoidReasonRequired
	}

	i.Status = InvoiceStatusVoided
	i.StatusOverridden = false
	i.VoidInfo = &VoidInfo{VoidedAt: now, Reason: reason, VoidedBy: actor}
	i.Touch()
	return nil
}
