package invoicing

import (
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Payment is one settlement entry against an invoice
type Payment struct {
	shared.BaseEntity
	CompanyID     uuid.UUID
	InvoiceID     uuid.UUID
	Amount        valueobject.Money
	Method        PaymentMethod
	PaymentDate   time.Time
	Status        PaymentStatus
	Notes         string
	RefundReason  string
	RecordedBy    uuid.UUID
	ExternalTxnID string
	BatchID       *uuid.UUID
}

// PaymentInput carries the fields needed to record a payment
type PaymentInput struct {
	Amount        valueobject.Money
	Method        PaymentMethod
	PaymentDate   time.Time
	Notes         string
	ExternalTxnID string
	BatchID       *uuid.UUID
}

// PaymentChanges lists the optional fields of an edit. Nil means unchanged.
type PaymentChanges struct {
	Amount      *valueobject.Money
	Method      *PaymentMethod
	PaymentDate *time.Time
	Notes       *string
}

// IsEmpty reports whether the edit changes nothing
func (c PaymentChanges) IsEmpty() bool {
	return c.Amount == nil && c.Method == nil && c.PaymentDate == nil && c.Notes == nil
}

func newPayment(inv *Invoice, in PaymentInput, recordedBy uuid.UUID) (*Payment, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	if !in.Method.IsValid() {
		return nil, errValidation("unknown payment method %q", in.Method)
	}
	date := in.PaymentDate
	if date.IsZero() {
		date = time.Now().UTC()
	}
	return &Payment{
		BaseEntity:    shared.NewBaseEntity(),
		CompanyID:     inv.CompanyID,
		InvoiceID:     inv.ID,
		Amount:        in.Amount,
		Method:        in.Method,
		PaymentDate:   date,
		Status:        PaymentStatusCompleted,
		Notes:         strings.TrimSpace(in.Notes),
		RecordedBy:    recordedBy,
		ExternalTxnID: in.ExternalTxnID,
		BatchID:       in.BatchID,
	}, nil
}

// IsCompleted reports whether the payment still counts toward the balance
func (p *Payment) IsCompleted() bool {
	return p.Status == PaymentStatusCompleted
}

// Edit applies changes to a completed payment
func (p *Payment) Edit(changes PaymentChanges) error {
	if !p.IsCompleted() {
		return ErrPaymentNotCompleted
	}
	if changes.Amount != nil && !changes.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if changes.Method != nil && !changes.Method.IsValid() {
		return errValidation("unknown payment method %q", *changes.Method)
	}
	if changes.PaymentDate != nil && changes.PaymentDate.IsZero() {
		return errValidation("payment date cannot be empty")
	}

	if changes.Amount != nil {
		p.Amount = *changes.Amount
	}
	if changes.Method != nil {
		p.Method = *changes.Method
	}
	if changes.PaymentDate != nil {
		p.PaymentDate = *changes.PaymentDate
	}
	if changes.Notes != nil {
		p.Notes = strings.TrimSpace(*changes.Notes)
	}
	p.Touch()
	return nil
}

// Refund marks the payment as money returned to the payer
func (p *Payment) Refund(reason string) error {
	return p.reverse(PaymentStatusRefunded, reason)
}

// Void marks the payment as never having happened
func (p *Payment) Void(reason string) error {
	return p.reverse(PaymentStatusVoided, reason)
}

func (p *Payment) reverse(to PaymentStatus, reason string) error {
	if !p.IsCompleted() {
		return ErrPaymentNotCompleted
	}
	p.Status = to
	p.RefundReason = strings.TrimSpace(reason)
	p.Touch()
	return nil
}
