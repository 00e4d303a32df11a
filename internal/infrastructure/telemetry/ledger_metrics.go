package telemetry

import (
	"context"
	"errors"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when no meter is supplied
var ErrMeterNil = errors.New("telemetry: meter is nil")

// Metric attribute keys
const (
	MetricAttrEventType = attribute.Key("event_type")
	MetricAttrMethod    = attribute.Key("method")
	MetricAttrKind      = attribute.Key("kind")
	MetricAttrFrom      = attribute.Key("from")
	MetricAttrTo        = attribute.Key("to")
	MetricAttrManual    = attribute.Key("manual")
)

// LedgerMetrics turns committed ledger events into business metrics. It is
// subscribed to the event bus, so only changes that reached the outbox are
// counted.
type LedgerMetrics struct {
	events        metric.Int64Counter
	paymentAmount metric.Float64Histogram
	reversals     metric.Int64Counter
	lateFeeAmount metric.Float64Histogram
	statusChanges metric.Int64Counter
	batchPayments metric.Int64Histogram
}

// NewLedgerMetrics registers the ledger instruments on meter
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	m := &LedgerMetrics{}
	var err error

	if m.events, err = meter.Int64Counter("ledger_events_total",
		metric.WithDescription("Ledger events committed, by type"),
		metric.WithUnit("{events}")); err != nil {
		return nil, err
	}
	if m.paymentAmount, err = meter.Float64Histogram("ledger_payment_amount",
		metric.WithDescription("Amount of recorded payments"),
		metric.WithUnit("{currency}"),
		metric.WithExplicitBucketBoundaries(10, 50, 100, 500, 1000, 5000, 10000, 50000)); err != nil {
		return nil, err
	}
	if m.reversals, err = meter.Int64Counter("ledger_payment_reversals_total",
		metric.WithDescription("Refunded or voided payments"),
		metric.WithUnit("{payments}")); err != nil {
		return nil, err
	}
	if m.lateFeeAmount, err = meter.Float64Histogram("ledger_late_fee_amount",
		metric.WithDescription("Late fees added to invoices"),
		metric.WithUnit("{currency}")); err != nil {
		return nil, err
	}
	if m.statusChanges, err = meter.Int64Counter("ledger_invoice_status_changes_total",
		metric.WithDescription("Invoice status transitions"),
		metric.WithUnit("{transitions}")); err != nil {
		return nil, err
	}
	if m.batchPayments, err = meter.Int64Histogram("ledger_split_payment_entries",
		metric.WithDescription("Number of payments created by one split payment"),
		metric.WithUnit("{payments}")); err != nil {
		return nil, err
	}
	return m, nil
}

// HandlerName identifies the metrics subscriber
func (m *LedgerMetrics) HandlerName() string { return "metrics" }

// EventTypes subscribes to every event
func (m *LedgerMetrics) EventTypes() []string { return nil }

// Handle records the event
func (m *LedgerMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	m.events.Add(ctx, 1, metric.WithAttributes(MetricAttrEventType.String(event.EventType())))

	switch e := event.(type) {
	case *invoicing.PaymentRecordedEvent:
		m.paymentAmount.Record(ctx, e.Amount.Decimal().InexactFloat64(),
			metric.WithAttributes(MetricAttrMethod.String(string(e.Method))))
	case *invoicing.PaymentReversedEvent:
		m.reversals.Add(ctx, 1, metric.WithAttributes(MetricAttrKind.String(e.EventType())))
	case *invoicing.LateFeeAppliedEvent:
		m.lateFeeAmount.Record(ctx, e.Fee.Decimal().InexactFloat64())
	case *invoicing.PaymentBatchRecordedEvent:
		m.batchPayments.Record(ctx, int64(len(e.PaymentIDs)))
	case *invoicing.InvoiceStatusChangedEvent:
		m.statusChanges.Add(ctx, 1, metric.WithAttributes(
			MetricAttrFrom.String(string(e.From)),
			MetricAttrTo.String(string(e.To)),
			MetricAttrManual.Bool(e.Manual),
		))
	}
	return nil
}
