package invoicing

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Event types written to the outbox. The five notification events match the
// names the notification dispatcher understands.
const (
	EventTypePaymentRecorded      = "payment_recorded"
	EventTypePaymentRefunded      = "payment_refunded"
	EventTypePaymentVoided        = "payment_voided"
	EventTypeInvoiceVoided        = "invoice_voided"
	EventTypeLateFeeApplied       = "late_fee_applied"
	EventTypePaymentEdited        = "payment_edited"
	EventTypePaymentDeleted       = "payment_deleted"
	EventTypePaymentBatchRecorded = "payment_batch_recorded"
	EventTypeInvoiceStatusChanged = "invoice_status_changed"
)

// NotificationEvent is implemented by events that may notify the customer
type NotificationEvent interface {
	shared.DomainEvent
	ShouldNotify() bool
	NotificationRecipient() string
	InvoiceRef() uuid.UUID
}

// notifyFields is embedded by events that can trigger a customer notification
type notifyFields struct {
	Notify    bool   `json:"notify"`
	Recipient string `json:"recipient,omitempty"`
}

func (n notifyFields) ShouldNotify() bool            { return n.Notify }
func (n notifyFields) NotificationRecipient() string { return n.Recipient }

// PaymentRecordedEvent is raised for every new completed payment
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	notifyFields
	InvoiceID     uuid.UUID         `json:"invoice_id"`
	PaymentID     uuid.UUID         `json:"payment_id"`
	CustomerID    uuid.UUID         `json:"customer_id"`
	Amount        valueobject.Money `json:"amount"`
	Method        PaymentMethod     `json:"method"`
	PaymentDate   time.Time         `json:"payment_date"`
	BatchID       *uuid.UUID        `json:"batch_id,omitempty"`
	ExternalTxnID string            `json:"external_txn_id,omitempty"`
	RecordedBy    uuid.UUID         `json:"recorded_by"`
}

func (e *PaymentRecordedEvent) InvoiceRef() uuid.UUID { return e.InvoiceID }

// PaymentReversedEvent covers refunds and voids; Type tells them apart
type PaymentReversedEvent struct {
	shared.BaseDomainEvent
	notifyFields
	InvoiceID uuid.UUID         `json:"invoice_id"`
	PaymentID uuid.UUID         `json:"payment_id"`
	Amount    valueobject.Money `json:"amount"`
	Reason    string            `json:"reason,omitempty"`
	ActorID   uuid.UUID         `json:"actor_id"`
}

func (e *PaymentReversedEvent) InvoiceRef() uuid.UUID { return e.InvoiceID }

// PaymentEditedEvent records the before and after amount of an edit
type PaymentEditedEvent struct {
	shared.BaseDomainEvent
	InvoiceID      uuid.UUID         `json:"invoice_id"`
	PaymentID      uuid.UUID         `json:"payment_id"`
	PreviousAmount valueobject.Money `json:"previous_amount"`
	Amount         valueobject.Money `json:"amount"`
	Method         PaymentMethod     `json:"method"`
	ActorID        uuid.UUID         `json:"actor_id"`
}

// PaymentDeletedEvent is raised when an administrator hard-deletes a payment
type PaymentDeletedEvent struct {
	shared.BaseDomainEvent
	InvoiceID uuid.UUID         `json:"invoice_id"`
	PaymentID uuid.UUID         `json:"payment_id"`
	Amount    valueobject.Money `json:"amount"`
	Status    PaymentStatus     `json:"status"`
	ActorID   uuid.UUID         `json:"actor_id"`
}

// PaymentBatchRecordedEvent is the single notification for a split payment
type PaymentBatchRecordedEvent struct {
	shared.BaseDomainEvent
	notifyFields
	InvoiceID  uuid.UUID         `json:"invoice_id"`
	BatchID    uuid.UUID         `json:"batch_id"`
	PaymentIDs []uuid.UUID       `json:"payment_ids"`
	Total      valueobject.Money `json:"total"`
}

func (e *PaymentBatchRecordedEvent) InvoiceRef() uuid.UUID { return e.InvoiceID }

// InvoiceVoidedEvent is raised when an invoice is voided
type InvoiceVoidedEvent struct {
	shared.BaseDomainEvent
	notifyFields
	InvoiceID uuid.UUID `json:"invoice_id"`
	Reason    string    `json:"reason"`
	VoidedAt  time.Time `json:"voided_at"`
	ActorID   uuid.UUID `json:"actor_id"`
}

func (e *InvoiceVoidedEvent) InvoiceRef() uuid.UUID { return e.InvoiceID }

// LateFeeAppliedEvent is raised when a late fee is added to the total due
type LateFeeAppliedEvent struct {
	shared.BaseDomainEvent
	notifyFields
	InvoiceID  uuid.UUID         `json:"invoice_id"`
	Percentage string            `json:"percentage"`
	Fee        valueobject.Money `json:"fee"`
	TotalDue   valueobject.Money `json:"total_due"`
}

func (e *LateFeeAppliedEvent) InvoiceRef() uuid.UUID { return e.InvoiceID }

// InvoiceStatusChangedEvent is raised on every status move, computed or manual
type InvoiceStatusChangedEvent struct {
	shared.BaseDomainEvent
	InvoiceID        uuid.UUID         `json:"invoice_id"`
	From             InvoiceStatus     `json:"from"`
	To               InvoiceStatus     `json:"to"`
	Manual           bool              `json:"manual"`
	TotalPaid        valueobject.Money `json:"total_paid"`
	RemainingBalance valueobject.Money `json:"remaining_balance"`
}

func (i *Invoice) newEvent(eventType string) shared.BaseDomainEvent {
	return shared.NewBaseDomainEvent(eventType, AggregateTypeInvoice, i.ID, i.CompanyID)
}

func (i *Invoice) notify(on bool) notifyFields {
	return notifyFields{Notify: on && i.CustomerEmail != "", Recipient: i.CustomerEmail}
}
