package event

import (
	"github.com/erp/ledger/internal/domain/invoicing"
)

// RegisterLedgerEvents registers every invoicing event with the serializer.
// The outbox processor can only deliver registered types.
func RegisterLedgerEvents(serializer *EventSerializer) {
	serializer.Register(invoicing.EventTypePaymentRecorded, &invoicing.PaymentRecordedEvent{})
	serializer.Register(invoicing.EventTypePaymentBatchRecorded, &invoicing.PaymentBatchRecordedEvent{})
	serializer.Register(invoicing.EventTypePaymentEdited, &invoicing.PaymentEditedEvent{})
	serializer.Register(invoicing.EventTypePaymentRefunded, &invoicing.PaymentReversedEvent{})
	serializer.Register(invoicing.EventTypePaymentVoided, &invoicing.PaymentReversedEvent{})
	serializer.Register(invoicing.EventTypePaymentDeleted, &invoicing.PaymentDeletedEvent{})
	serializer.Register(invoicing.EventTypeLateFeeApplied, &invoicing.LateFeeAppliedEvent{})
	serializer.Register(invoicing.EventTypeInvoiceVoided, &invoicing.InvoiceVoidedEvent{})
	serializer.Register(invoicing.EventTypeInvoiceStatusChanged, &invoicing.InvoiceStatusChangedEvent{})
}
