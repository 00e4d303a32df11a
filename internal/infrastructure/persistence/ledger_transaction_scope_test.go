package persistence

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	appinvoicing "github.com/erp/ledger/internal/application/invoicing"
	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingEventSaver struct {
	txs    []any
	events []shared.DomainEvent
}

func (s *recordingEventSaver) SaveEvents(_ context.Context, txProvider any, events ...shared.DomainEvent) error {
	s.txs = append(s.txs, txProvider)
	s.events = append(s.events, events...)
	return nil
}

func TestGormLedgerScope_Execute(t *testing.T) {
	db := setupLedgerTestDB(t)
	ctx := context.Background()
	inv := createTestInvoice(t, db, uuid.New(), "100.00", nil)

	t.Run("commits payment and events together", func(t *testing.T) {
		saver := &recordingEventSaver{}
		scope := NewGormLedgerScope(db, saver)
		p := newTestPayment(inv, "30.00", invoicing.PaymentMethodCash, utcDate(2024, time.May, 1))
		event := shared.NewBaseDomainEvent(invoicing.EventTypePaymentRecorded, invoicing.AggregateTypeInvoice, inv.ID, inv.CompanyID)

		err := scope.Execute(ctx, func(repos appinvoicing.LedgerRepositories) error {
			if _, err := repos.Invoices().FindByIDForUpdate(ctx, inv.CompanyID, inv.ID); err != nil {
				return err
			}
			if err := repos.Payments().Create(ctx, p); err != nil {
				return err
			}
			return repos.SaveEvents(ctx, &event)
		})
		require.NoError(t, err)

		require.Len(t, saver.events, 1)
		_, isTx := saver.txs[0].(*gorm.DB)
		assert.True(t, isTx, "events are saved with the open transaction")

		payments, err := NewGormPaymentRepository(db).FindByInvoice(ctx, inv.ID)
		require.NoError(t, err)
		assert.Len(t, payments, 1)
	})

	t.Run("rolls back every write on error", func(t *testing.T) {
		scope := NewGormLedgerScope(db, nil)
		p := newTestPayment(inv, "45.00", invoicing.PaymentMethodCheck, utcDate(2024, time.May, 2))
		boom := errors.New("boom")

		err := scope.Execute(ctx, func(repos appinvoicing.LedgerRepositories) error {
			require.NoError(t, repos.Payments().Create(ctx, p))
			require.NoError(t, repos.SaveEvents(ctx))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = NewGormPaymentRepository(db).FindByID(ctx, inv.CompanyID, p.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestTranslateTxError(t *testing.T) {
	for _, code := range []string{"40001", "40P01", "55P03"} {
		err := translateTxError(fmt.Errorf("commit: %w", &pgconn.PgError{Code: code}))
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict, code)
	}

	unique := &pgconn.PgError{Code: "23505"}
	assert.Same(t, error(unique), translateTxError(unique))
	assert.NoError(t, translateTxError(nil))

	plain := errors.New("connection reset")
	assert.Equal(t, plain, translateTxError(plain))
}

func TestIsRetryableTxError(t *testing.T) {
	assert.True(t, IsRetryableTxError(&pgconn.PgError{Code: "40P01"}))
	assert.True(t, IsRetryableTxError(fmt.Errorf("lock: %w", &pgconn.PgError{Code: "55P03"})))
	assert.False(t, IsRetryableTxError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsRetryableTxError(errors.New("timeout")))
	assert.False(t, IsRetryableTxError(nil))
}
