package event

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/erp/ledger/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// newOutboxEntry builds an entry in the given state, created at createdAt (UTC)
func newOutboxEntry(status shared.OutboxStatus, createdAt time.Time) *shared.OutboxEntry {
	entry := shared.NewOutboxEntry(testutil.NewTestEvent(invoicing.EventTypePaymentRecorded, uuid.New()), []byte(`{}`))
	entry.Status = status
	entry.CreatedAt = createdAt.UTC()
	entry.UpdatedAt = createdAt.UTC()
	return entry
}

func TestGormOutboxRepository_SaveAndFindByID(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()

	entry := newOutboxEntry(shared.OutboxStatusPending, time.Now())
	entry.Payload = []byte(`{"amount":"10.00"}`)
	require.NoError(t, repo.Save(ctx, entry))

	found, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.EventID, found.EventID)
	assert.Equal(t, entry.CompanyID, found.CompanyID)
	assert.Equal(t, invoicing.EventTypePaymentRecorded, found.EventType)
	assert.Equal(t, shared.OutboxStatusPending, found.Status)
	assert.JSONEq(t, `{"amount":"10.00"}`, string(found.Payload))
	assert.Equal(t, shared.DefaultMaxRetries, found.MaxRetries)
}

func TestGormOutboxRepository_Save_Empty(t *testing.T) {
	repo := NewGormOutboxRepository(setupOutboxTestDB(t))
	assert.NoError(t, repo.Save(context.Background()))
}

func TestGormOutboxRepository_FindByID_NotFound(t *testing.T) {
	repo := NewGormOutboxRepository(setupOutboxTestDB(t))

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormOutboxRepository_ClaimBatch(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	pending := newOutboxEntry(shared.OutboxStatusPending, now.Add(-3*time.Minute))

	due := newOutboxEntry(shared.OutboxStatusFailed, now.Add(-2*time.Minute))
	dueAt := now.Add(-time.Second)
	due.NextRetryAt = &dueAt
	due.RetryCount = 1

	notYet := newOutboxEntry(shared.OutboxStatusFailed, now.Add(-time.Minute))
	laterAt := now.Add(time.Hour)
	notYet.NextRetryAt = &laterAt

	sent := newOutboxEntry(shared.OutboxStatusSent, now.Add(-4*time.Minute))
	dead := newOutboxEntry(shared.OutboxStatusDead, now.Add(-5*time.Minute))

	require.NoError(t, repo.Save(ctx, pending, due, notYet, sent, dead))

	claimed, err := repo.ClaimBatch(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, pending.ID, claimed[0].ID)
	assert.Equal(t, due.ID, claimed[1].ID)
	for _, c := range claimed {
		assert.Equal(t, shared.OutboxStatusProcessing, c.Status)
	}
	assert.Equal(t, 1, claimed[1].RetryCount)

	stored, err := repo.FindByID(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusProcessing, stored.Status)

	again, err := repo.ClaimBatch(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, again, "claimed entries must not be handed out twice")
}

func TestGormOutboxRepository_ClaimBatch_RespectsLimit(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Save(ctx, newOutboxEntry(shared.OutboxStatusPending, now.Add(time.Duration(i-10)*time.Second))))
	}

	first, err := repo.ClaimBatch(ctx, now, 3)
	require.NoError(t, err)
	assert.Len(t, first, 3)

	second, err := repo.ClaimBatch(ctx, now, 3)
	require.NoError(t, err)
	assert.Len(t, second, 2)
}

func TestGormOutboxRepository_Update(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()

	entry := newOutboxEntry(shared.OutboxStatusProcessing, time.Now())
	require.NoError(t, repo.Save(ctx, entry))

	entry.MarkFailed("smtp unavailable")
	require.NoError(t, repo.Update(ctx, entry))

	stored, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusFailed, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, "smtp unavailable", stored.LastError)
	require.NotNil(t, stored.NextRetryAt)

	entry.MarkSent()
	require.NoError(t, repo.Update(ctx, entry))

	stored, err = repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusSent, stored.Status)
	assert.NotNil(t, stored.ProcessedAt)
}

func TestGormOutboxRepository_DeleteSentBefore(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	old := newOutboxEntry(shared.OutboxStatusSent, now.Add(-10*24*time.Hour))
	oldAt := now.Add(-9 * 24 * time.Hour)
	old.ProcessedAt = &oldAt

	recent := newOutboxEntry(shared.OutboxStatusSent, now.Add(-time.Hour))
	recentAt := now.Add(-time.Minute)
	recent.ProcessedAt = &recentAt

	deadOld := newOutboxEntry(shared.OutboxStatusDead, now.Add(-10*24*time.Hour))

	require.NoError(t, repo.Save(ctx, old, recent, deadOld))

	deleted, err := repo.DeleteSentBefore(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.FindByID(ctx, old.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = repo.FindByID(ctx, recent.ID)
	assert.NoError(t, err)
	_, err = repo.FindByID(ctx, deadOld.ID)
	assert.NoError(t, err, "dead entries are kept for inspection")
}

func TestGormOutboxRepository_FindDead(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Save(ctx, newOutboxEntry(shared.OutboxStatusDead, now.Add(time.Duration(-i)*time.Minute))))
	}
	require.NoError(t, repo.Save(ctx, newOutboxEntry(shared.OutboxStatusPending, now)))

	page1, total, err := repo.FindDead(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page1, 2)

	page2, total, err := repo.FindDead(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page2, 1)

	clamped, _, err := repo.FindDead(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, page1[0].ID, clamped[0].ID)
}

func TestGormOutboxRepository_CountByStatus(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Save(ctx,
		newOutboxEntry(shared.OutboxStatusPending, now),
		newOutboxEntry(shared.OutboxStatusPending, now),
		newOutboxEntry(shared.OutboxStatusSent, now),
		newOutboxEntry(shared.OutboxStatusDead, now),
	))

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[shared.OutboxStatusPending])
	assert.Equal(t, int64(1), counts[shared.OutboxStatusSent])
	assert.Equal(t, int64(1), counts[shared.OutboxStatusDead])
	assert.Zero(t, counts[shared.OutboxStatusFailed])
}
