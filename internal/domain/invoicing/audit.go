package invoicing

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	AuditActionPaymentDeleted = "payment.deleted"
	AuditActionStatusOverride = "invoice.status_overridden"
	AuditEntityPayment        = "payment"
	AuditEntityInvoice        = "invoice"
)

// AuditEntry is an append-only record of an administrative ledger action
type AuditEntry struct {
	ID         uuid.UUID
	CompanyID  uuid.UUID
	Action     string
	EntityType string
	EntityID   uuid.UUID
	InvoiceID  uuid.UUID
	ActorID    uuid.UUID
	Reason     string
	Snapshot   json.RawMessage
	CreatedAt  time.Time
}

// paymentSnapshot is the audit copy of a deleted payment row
type paymentSnapshot struct {
	ID            uuid.UUID     `json:"id"`
	InvoiceID     uuid.UUID     `json:"invoice_id"`
	Amount        string        `json:"amount"`
	Method        PaymentMethod `json:"method"`
	PaymentDate   time.Time     `json:"payment_date"`
	Status        PaymentStatus `json:"status"`
	Notes         string        `json:"notes,omitempty"`
	RefundReason  string        `json:"refund_reason,omitempty"`
	RecordedBy    uuid.UUID     `json:"recorded_by"`
	ExternalTxnID string        `json:"external_txn_id,omitempty"`
}

// NewPaymentDeletedAudit captures a payment before it is hard-deleted
func NewPaymentDeletedAudit(p *Payment, actor Actor, reason string) (*AuditEntry, error) {
	snapshot, err := json.Marshal(paymentSnapshot{
		ID:            p.ID,
		InvoiceID:     p.InvoiceID,
		Amount:        p.Amount.String(),
		Method:        p.Method,
		PaymentDate:   p.PaymentDate,
		Status:        p.Status,
		Notes:         p.Notes,
		RefundReason:  p.RefundReason,
		RecordedBy:    p.RecordedBy,
		ExternalTxnID: p.ExternalTxnID,
	})
	if err != nil {
		return nil, err
	}
	return &AuditEntry{
		ID:         uuid.New(),
		CompanyID:  p.CompanyID,
		Action:     AuditActionPaymentDeleted,
		EntityType: AuditEntityPayment,
		EntityID:   p.ID,
		InvoiceID:  p.InvoiceID,
		ActorID:    actor.UserID,
		Reason:     reason,
		Snapshot:   snapshot,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// NewStatusOverrideAudit records a manual status transition
func NewStatusOverrideAudit(inv *Invoice, from InvoiceStatus, actor Actor, warning *InconsistentStateWarning) (*AuditEntry, error) {
	snapshot, err := json.Marshal(map[string]any{
		"from":    from,
		"to":      inv.Status,
		"warning": warning,
	})
	if err != nil {
		return nil, err
	}
	return &AuditEntry{
		ID:         uuid.New(),
		CompanyID:  inv.CompanyID,
		Action:     AuditActionStatusOverride,
		EntityType: AuditEntityInvoice,
		EntityID:   inv.ID,
		InvoiceID:  inv.ID,
		ActorID:    actor.UserID,
		Snapshot:   snapshot,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
