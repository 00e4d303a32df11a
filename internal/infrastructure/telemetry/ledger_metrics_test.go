package telemetry

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestLedgerMetrics(t *testing.T) (*LedgerMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewLedgerMetrics(provider.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func baseEvent(eventType string, companyID uuid.UUID) shared.BaseDomainEvent {
	return shared.NewBaseDomainEvent(eventType, invoicing.AggregateTypeInvoice, uuid.New(), companyID)
}

func TestNewLedgerMetrics_NilMeter(t *testing.T) {
	_, err := NewLedgerMetrics(nil)
	assert.ErrorIs(t, err, ErrMeterNil)
}

func TestLedgerMetrics_Handle(t *testing.T) {
	m, reader := newTestLedgerMetrics(t)
	ctx := context.Background()
	companyID := uuid.New()

	events := []shared.DomainEvent{
		&invoicing.PaymentRecordedEvent{
			BaseDomainEvent: baseEvent(invoicing.EventTypePaymentRecorded, companyID),
			Amount:          valueobject.MustMoney("125.50"),
			Method:          invoicing.PaymentMethodCheck,
		},
		&invoicing.PaymentRecordedEvent{
			BaseDomainEvent: baseEvent(invoicing.EventTypePaymentRecorded, companyID),
			Amount:          valueobject.MustMoney("20.00"),
			Method:          invoicing.PaymentMethodCash,
		},
		&invoicing.PaymentReversedEvent{
			BaseDomainEvent: baseEvent(invoicing.EventTypePaymentRefunded, companyID),
			Amount:          valueobject.MustMoney("20.00"),
		},
		&invoicing.LateFeeAppliedEvent{
			BaseDomainEvent: baseEvent(invoicing.EventTypeLateFeeApplied, companyID),
			Fee:             valueobject.MustMoney("7.50"),
		},
		&invoicing.PaymentBatchRecordedEvent{
			BaseDomainEvent: baseEvent(invoicing.EventTypePaymentBatchRecorded, companyID),
			PaymentIDs:      []uuid.UUID{uuid.New(), uuid.New(), uuid.New()},
		},
		&invoicing.InvoiceStatusChangedEvent{
			BaseDomainEvent: baseEvent(invoicing.EventTypeInvoiceStatusChanged, companyID),
			From:            invoicing.InvoiceStatusSent,
			To:              invoicing.InvoiceStatusPartiallyPaid,
		},
	}
	for _, e := range events {
		require.NoError(t, m.Handle(ctx, e))
	}

	data := collect(t, reader)

	total, ok := data["ledger_events_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	byType := map[string]int64{}
	for _, dp := range total.DataPoints {
		v, _ := dp.Attributes.Value(MetricAttrEventType)
		byType[v.AsString()] = dp.Value
	}
	assert.Equal(t, int64(2), byType[invoicing.EventTypePaymentRecorded])
	assert.Equal(t, int64(1), byType[invoicing.EventTypePaymentRefunded])
	assert.Equal(t, int64(1), byType[invoicing.EventTypeInvoiceStatusChanged])

	amounts, ok := data["ledger_payment_amount"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, amounts.DataPoints, 2)
	var sum float64
	for _, dp := range amounts.DataPoints {
		sum += dp.Sum
	}
	assert.InDelta(t, 145.50, sum, 0.001)

	reversals, ok := data["ledger_payment_reversals_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, reversals.DataPoints, 1)
	kind, _ := reversals.DataPoints[0].Attributes.Value(MetricAttrKind)
	assert.Equal(t, invoicing.EventTypePaymentRefunded, kind.AsString())

	fees, ok := data["ledger_late_fee_amount"].(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.InDelta(t, 7.5, fees.DataPoints[0].Sum, 0.001)

	entries, ok := data["ledger_split_payment_entries"].(metricdata.Histogram[int64])
	require.True(t, ok)
	assert.Equal(t, int64(3), entries.DataPoints[0].Sum)

	transitions, ok := data["ledger_invoice_status_changes_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, transitions.DataPoints, 1)
	to, _ := transitions.DataPoints[0].Attributes.Value(MetricAttrTo)
	assert.Equal(t, string(invoicing.InvoiceStatusPartiallyPaid), to.AsString())
}

func TestLedgerMetrics_SubscribesToEverything(t *testing.T) {
	m, _ := newTestLedgerMetrics(t)
	assert.Equal(t, "metrics", m.HandlerName())
	assert.Empty(t, m.EventTypes())
}
