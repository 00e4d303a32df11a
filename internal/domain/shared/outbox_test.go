package shared

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEvent struct {
	BaseDomainEvent
}

func newStubEvent() *stubEvent {
	return &stubEvent{BaseDomainEvent: NewBaseDomainEvent("stub_event", "Invoice", uuid.New(), uuid.New())}
}

func TestNewOutboxEntry(t *testing.T) {
	evt := newStubEvent()
	entry := NewOutboxEntry(evt, []byte(`{"k":"v"}`))

	assert.Equal(t, evt.EventID(), entry.EventID)
	assert.Equal(t, evt.CompanyID(), entry.CompanyID)
	assert.Equal(t, "stub_event", entry.EventType)
	assert.Equal(t, "Invoice", entry.AggregateType)
	assert.Equal(t, OutboxStatusPending, entry.Status)
	assert.Equal(t, DefaultMaxRetries, entry.MaxRetries)
}

func TestOutboxEntry_MarkProcessing(t *testing.T) {
	t.Run("claims pending and failed entries", func(t *testing.T) {
		for _, status := range []OutboxStatus{OutboxStatusPending, OutboxStatusFailed} {
			entry := &OutboxEntry{Status: status}
			require.NoError(t, entry.MarkProcessing())
			assert.Equal(t, OutboxStatusProcessing, entry.Status)
		}
	})

	t.Run("rejects sent and dead entries", func(t *testing.T) {
		for _, status := range []OutboxStatus{OutboxStatusSent, OutboxStatusDead, OutboxStatusProcessing} {
			entry := &OutboxEntry{Status: status}
			assert.ErrorIs(t, entry.MarkProcessing(), ErrOutboxNotClaimable)
		}
	})
}

func TestOutboxEntry_MarkFailed(t *testing.T) {
	t.Run("schedules exponential backoff", func(t *testing.T) {
		entry := &OutboxEntry{Status: OutboxStatusProcessing, MaxRetries: 5}

		entry.MarkFailed("smtp down")
		require.NotNil(t, entry.NextRetryAt)
		assert.Equal(t, OutboxStatusFailed, entry.Status)
		assert.Equal(t, time.Second, entry.NextRetryAt.Sub(entry.UpdatedAt))

		entry.MarkFailed("smtp down")
		assert.Equal(t, 2*time.Second, entry.NextRetryAt.Sub(entry.UpdatedAt))
		assert.True(t, entry.CanRetry())
	})

	t.Run("goes dead after max retries", func(t *testing.T) {
		entry := &OutboxEntry{Status: OutboxStatusProcessing, MaxRetries: 2}
		entry.MarkFailed("first")
		entry.MarkFailed("second")

		assert.True(t, entry.IsDead())
		assert.False(t, entry.CanRetry())
		assert.Nil(t, entry.NextRetryAt)
		assert.Equal(t, "second", entry.LastError)
	})
}

func TestOutboxEntry_Revive(t *testing.T) {
	t.Run("revives dead entry", func(t *testing.T) {
		entry := &OutboxEntry{Status: OutboxStatusDead, RetryCount: 5, LastError: "boom"}
		require.NoError(t, entry.Revive())
		assert.Equal(t, OutboxStatusPending, entry.Status)
		assert.Zero(t, entry.RetryCount)
		assert.Empty(t, entry.LastError)
	})

	t.Run("rejects live entry", func(t *testing.T) {
		entry := &OutboxEntry{Status: OutboxStatusFailed}
		assert.ErrorIs(t, entry.Revive(), ErrOutboxNotDead)
	})
}
