package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationHandler turns ledger events into customer notifications.
// Events raised with notify=false are acknowledged without sending anything.
type NotificationHandler struct {
	notifier invoicing.Notifier
	now      func() time.Time
	logger   *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifier invoicing.Notifier, logger *zap.Logger) *NotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationHandler{
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// HandlerName identifies the handler in idempotency keys
func (h *NotificationHandler) HandlerName() string { return "notifications" }

// EventTypes returns the event types this handler is interested in
func (h *NotificationHandler) EventTypes() []string {
	return []string{
		invoicing.EventTypePaymentRecorded,
		invoicing.EventTypePaymentBatchRecorded,
		invoicing.EventTypePaymentRefunded,
		invoicing.EventTypePaymentVoided,
		invoicing.EventTypeInvoiceVoided,
		invoicing.EventTypeLateFeeApplied,
	}
}

// Handle sends one notification for the event
func (h *NotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	ne, ok := event.(invoicing.NotificationEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("actual", event.EventType()))
		return fmt.Errorf("unexpected event type: %s does not carry notification fields", event.EventType())
	}
	if !ne.ShouldNotify() {
		return nil
	}
	if ne.NotificationRecipient() == "" {
		h.logger.Warn("notification requested but invoice has no customer email",
			zap.String("event_type", event.EventType()),
			zap.String("invoice_id", ne.InvoiceRef().String()))
		return nil
	}

	n := invoicing.Notification{
		Event:     notificationName(event.EventType()),
		CompanyID: event.CompanyID(),
		InvoiceID: ne.InvoiceRef(),
		Recipient: ne.NotificationRecipient(),
		Data:      notificationData(event),
		SentAt:    h.now(),
	}
	if err := h.notifier.Notify(ctx, n); err != nil {
		return fmt.Errorf("failed to send %s notification: %w", n.Event, err)
	}

	h.logger.Info("customer notified",
		zap.String("event", n.Event),
		zap.String("invoice_id", n.InvoiceID.String()))
	return nil
}

// notificationName maps an event type to the name the dispatcher understands.
// A split payment is announced as one payment_recorded notification.
func notificationName(eventType string) string {
	if eventType == invoicing.EventTypePaymentBatchRecorded {
		return invoicing.EventTypePaymentRecorded
	}
	return eventType
}

func notificationData(event shared.DomainEvent) map[string]string {
	switch e := event.(type) {
	case *invoicing.PaymentRecordedEvent:
		return map[string]string{
			"payment_id":   e.PaymentID.String(),
			"amount":       e.Amount.String(),
			"method":       string(e.Method),
			"payment_date": e.PaymentDate.Format(time.DateOnly),
		}
	case *invoicing.PaymentBatchRecordedEvent:
		return map[string]string{
			"batch_id":      e.BatchID.String(),
			"amount":        e.Total.String(),
			"payment_count": strconv.Itoa(len(e.PaymentIDs)),
		}
	case *invoicing.PaymentReversedEvent:
		return map[string]string{
			"payment_id": e.PaymentID.String(),
			"amount":     e.Amount.String(),
			"reason":     e.Reason,
		}
	case *invoicing.InvoiceVoidedEvent:
		return map[string]string{"reason": e.Reason}
	case *invoicing.LateFeeAppliedEvent:
		return map[string]string{
			"fee":        e.Fee.String(),
			"percentage": e.Percentage,
			"total_due":  e.TotalDue.String(),
		}
	}
	return nil
}

// ReceiptHandler emails a receipt for payments recorded with notify=true
type ReceiptHandler struct {
	receipts invoicing.ReceiptGenerator
	logger   *zap.Logger
}

// NewReceiptHandler creates a new ReceiptHandler
func NewReceiptHandler(receipts invoicing.ReceiptGenerator, logger *zap.Logger) *ReceiptHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptHandler{receipts: receipts, logger: logger}
}

// HandlerName identifies the handler in idempotency keys
func (h *ReceiptHandler) HandlerName() string { return "receipts" }

// EventTypes returns the event types this handler is interested in
func (h *ReceiptHandler) EventTypes() []string {
	return []string{invoicing.EventTypePaymentRecorded}
}

// Handle generates and emails the receipt
func (h *ReceiptHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	recorded, ok := event.(*invoicing.PaymentRecordedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", invoicing.EventTypePaymentRecorded),
			zap.String("actual", event.EventType()))
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			invoicing.EventTypePaymentRecorded, event.EventType())
	}
	if !recorded.ShouldNotify() || recorded.NotificationRecipient() == "" {
		return nil
	}

	receipt, err := h.receipts.GenerateReceipt(ctx, recorded.CompanyID(), recorded.PaymentID, invoicing.ReceiptModeEmail)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// deleted before the receipt went out
			h.logger.Warn("payment gone, receipt not sent",
				zap.String("payment_id", recorded.PaymentID.String()))
			return nil
		}
		return fmt.Errorf("failed to email receipt: %w", err)
	}

	h.logger.Info("receipt emailed",
		zap.String("payment_id", recorded.PaymentID.String()),
		zap.String("object_key", receipt.ObjectKey))
	return nil
}

// LedgerUpdate is pushed to live feed subscribers after every ledger event
type LedgerUpdate struct {
	EventType  string            `json:"event_type"`
	InvoiceID  uuid.UUID         `json:"invoice_id"`
	Status     string            `json:"status"`
	Balance    invoicing.Balance `json:"balance"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// LiveFeed fans ledger updates out to the connected clients of a company
type LiveFeed interface {
	Broadcast(companyID uuid.UUID, update LedgerUpdate)
}

// LiveFeedHandler pushes the current balance of the affected invoice to the
// live feed. It subscribes to every event type.
type LiveFeedHandler struct {
	ledger *LedgerService
	feed   LiveFeed
	logger *zap.Logger
}

// NewLiveFeedHandler creates a new LiveFeedHandler
func NewLiveFeedHandler(ledger *LedgerService, feed LiveFeed, logger *zap.Logger) *LiveFeedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveFeedHandler{ledger: ledger, feed: feed, logger: logger}
}

// HandlerName identifies the handler in idempotency keys
func (h *LiveFeedHandler) HandlerName() string { return "live_feed" }

// EventTypes returns nil: the handler sees every event
func (h *LiveFeedHandler) EventTypes() []string { return nil }

// Handle broadcasts the invoice's balance as of now
func (h *LiveFeedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if event.AggregateType() != invoicing.AggregateTypeInvoice {
		return nil
	}

	result, err := h.ledger.GetInvoiceLedger(ctx, event.CompanyID(), event.AggregateID())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load ledger for live feed: %w", err)
	}

	h.feed.Broadcast(event.CompanyID(), LedgerUpdate{
		EventType:  event.EventType(),
		InvoiceID:  event.AggregateID(),
		Status:     result.Invoice.Status,
		Balance:    result.Balance,
		OccurredAt: event.OccurredAt(),
	})
	return nil
}
