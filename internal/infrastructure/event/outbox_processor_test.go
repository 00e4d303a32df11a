package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/erp/ledger/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type processorFixture struct {
	db        *gorm.DB
	repo      *GormOutboxRepository
	bus       *InMemoryEventBus
	processor *OutboxProcessor
	publisher *OutboxPublisher
}

func newProcessorFixture(t *testing.T, config OutboxProcessorConfig) *processorFixture {
	t.Helper()
	db := setupOutboxTestDB(t)
	serializer := NewEventSerializer()
	RegisterLedgerEvents(serializer)

	repo := NewGormOutboxRepository(db)
	bus := NewInMemoryEventBus(zap.NewNop())
	return &processorFixture{
		db:        db,
		repo:      repo,
		bus:       bus,
		processor: NewOutboxProcessor(repo, bus, serializer, config, zap.NewNop()),
		publisher: NewOutboxPublisher(serializer),
	}
}

func (f *processorFixture) commit(t *testing.T, events ...shared.DomainEvent) {
	t.Helper()
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		return f.publisher.PublishWithTx(context.Background(), tx, events...)
	}))
}

func (f *processorFixture) entryFor(t *testing.T, eventID uuid.UUID) *shared.OutboxEntry {
	t.Helper()
	var row models.OutboxEntryModel
	require.NoError(t, f.db.Where("event_id = ?", eventID).First(&row).Error)
	return row.ToDomain()
}

// makeDue pulls a failed entry's retry time into the past
func (f *processorFixture) makeDue(t *testing.T, id uuid.UUID) {
	t.Helper()
	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, f.db.Model(&models.OutboxEntryModel{}).Where("id = ?", id).Update("next_retry_at", past).Error)
}

func TestOutboxProcessor_ProcessOnce_DeliversCommittedEvents(t *testing.T) {
	f := newProcessorFixture(t, DefaultOutboxProcessorConfig())
	handler := testutil.NewMockEventHandler(invoicing.EventTypePaymentRecorded)
	f.bus.Subscribe(handler)

	event := newPaymentRecordedEvent()
	f.commit(t, event)

	sent := f.processor.ProcessOnce(context.Background())
	assert.Equal(t, 1, sent)

	handled := handler.Handled()
	require.Len(t, handled, 1)
	got, ok := handled[0].(*invoicing.PaymentRecordedEvent)
	require.True(t, ok)
	assert.Equal(t, event.EventID(), got.EventID())
	assert.Equal(t, "120.50", got.Amount.String())

	entry := f.entryFor(t, event.EventID())
	assert.Equal(t, shared.OutboxStatusSent, entry.Status)
	assert.NotNil(t, entry.ProcessedAt)

	assert.Zero(t, f.processor.ProcessOnce(context.Background()), "sent entries are not redelivered")
	assert.Equal(t, 1, handler.HandledCount())
}

func TestOutboxProcessor_ProcessOnce_FailureSchedulesRetry(t *testing.T) {
	f := newProcessorFixture(t, DefaultOutboxProcessorConfig())
	handler := testutil.NewMockEventHandler(invoicing.EventTypePaymentRecorded)
	handler.SetError(errors.New("smtp unavailable"))
	f.bus.Subscribe(handler)

	event := newPaymentRecordedEvent()
	f.commit(t, event)

	assert.Zero(t, f.processor.ProcessOnce(context.Background()))

	entry := f.entryFor(t, event.EventID())
	assert.Equal(t, shared.OutboxStatusFailed, entry.Status)
	assert.Equal(t, 1, entry.RetryCount)
	assert.Contains(t, entry.LastError, "smtp unavailable")
	require.NotNil(t, entry.NextRetryAt)

	// not due yet
	assert.Zero(t, f.processor.ProcessOnce(context.Background()))
	assert.Equal(t, 1, handler.HandledCount())

	handler.SetError(nil)
	f.makeDue(t, entry.ID)

	assert.Equal(t, 1, f.processor.ProcessOnce(context.Background()))
	assert.Equal(t, shared.OutboxStatusSent, f.entryFor(t, event.EventID()).Status)
	assert.Equal(t, 2, handler.HandledCount())
}

func TestOutboxProcessor_DeadLetterAndRevive(t *testing.T) {
	f := newProcessorFixture(t, DefaultOutboxProcessorConfig())
	handler := testutil.NewMockEventHandler(invoicing.EventTypeInvoiceVoided)
	handler.SetError(errors.New("template missing"))
	f.bus.Subscribe(handler)

	event := testutil.NewTestEvent(invoicing.EventTypeInvoiceVoided, uuid.New())
	f.commit(t, event)
	id := f.entryFor(t, event.EventID()).ID
	require.NoError(t, f.db.Model(&models.OutboxEntryModel{}).Where("id = ?", id).Update("max_retries", 2).Error)

	ctx := context.Background()
	f.processor.ProcessOnce(ctx)
	f.makeDue(t, id)
	f.processor.ProcessOnce(ctx)

	entry := f.entryFor(t, event.EventID())
	assert.Equal(t, shared.OutboxStatusDead, entry.Status)
	assert.Equal(t, 2, entry.RetryCount)
	assert.Nil(t, entry.NextRetryAt)

	dead, total, err := f.repo.FindDead(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, id, dead[0].ID)

	handler.SetError(nil)
	require.NoError(t, f.processor.Revive(ctx, id))
	assert.Equal(t, shared.OutboxStatusPending, f.entryFor(t, event.EventID()).Status)

	assert.Equal(t, 1, f.processor.ProcessOnce(ctx))
	assert.Equal(t, shared.OutboxStatusSent, f.entryFor(t, event.EventID()).Status)
}

func TestOutboxProcessor_Revive_RejectsLiveEntries(t *testing.T) {
	f := newProcessorFixture(t, DefaultOutboxProcessorConfig())
	ctx := context.Background()

	event := newPaymentRecordedEvent()
	f.commit(t, event)

	err := f.processor.Revive(ctx, f.entryFor(t, event.EventID()).ID)
	assert.ErrorIs(t, err, shared.ErrOutboxNotDead)

	err = f.processor.Revive(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestOutboxProcessor_ProcessOnce_UndecodablePayload(t *testing.T) {
	f := newProcessorFixture(t, DefaultOutboxProcessorConfig())
	ctx := context.Background()

	entry := shared.NewOutboxEntry(testutil.NewTestEvent("retired_event", uuid.New()), []byte(`{}`))
	require.NoError(t, f.repo.Save(ctx, entry))

	assert.Zero(t, f.processor.ProcessOnce(ctx))

	stored, err := f.repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusFailed, stored.Status)
	assert.Contains(t, stored.LastError, "unknown event type")
}

func TestOutboxProcessor_Cleanup(t *testing.T) {
	config := DefaultOutboxProcessorConfig()
	config.CleanupRetention = time.Hour
	f := newProcessorFixture(t, config)
	ctx := context.Background()

	now := time.Now().UTC()
	old := newOutboxEntry(shared.OutboxStatusSent, now.Add(-3*time.Hour))
	oldAt := now.Add(-2 * time.Hour)
	old.ProcessedAt = &oldAt
	require.NoError(t, f.repo.Save(ctx, old))

	f.processor.now = func() time.Time { return now }
	f.processor.cleanup(ctx)

	_, err := f.repo.FindByID(ctx, old.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestOutboxProcessor_StartStop(t *testing.T) {
	config := DefaultOutboxProcessorConfig()
	config.PollInterval = 20 * time.Millisecond
	f := newProcessorFixture(t, config)
	handler := testutil.NewMockEventHandler(invoicing.EventTypePaymentRecorded)
	f.bus.Subscribe(handler)

	f.commit(t, newPaymentRecordedEvent())

	require.NoError(t, f.processor.Start(context.Background()))
	require.True(t, testutil.WaitForEventCount(t, handler, 1, 2*time.Second))

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.processor.Stop(stopCtx))
}

func TestDefaultOutboxProcessorConfig(t *testing.T) {
	config := DefaultOutboxProcessorConfig()

	assert.Equal(t, 100, config.BatchSize)
	assert.Equal(t, time.Second, config.PollInterval)
	assert.True(t, config.CleanupEnabled)
	assert.Equal(t, 7*24*time.Hour, config.CleanupRetention)
	assert.Equal(t, time.Hour, config.CleanupInterval)
}
