package persistence

import (
	"context"
	"errors"

	appinvoicing "github.com/erp/ledger/internal/application/invoicing"
	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres error codes that mean "run the transaction again"
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// GormLedgerScope implements TransactionScope using GORM transactions.
// Domain events are handed to the outbox saver with the open transaction.
type GormLedgerScope struct {
	db     *gorm.DB
	events shared.OutboxEventSaver
}

// NewGormLedgerScope creates a new GormLedgerScope. events may be nil, in
// which case SaveEvents is a no-op.
func NewGormLedgerScope(db *gorm.DB, events shared.OutboxEventSaver) *GormLedgerScope {
	return &GormLedgerScope{db: db, events: events}
}

// Execute runs the given function within a database transaction.
// Serialization failures and deadlocks are reported as CONCURRENCY_CONFLICT
// so the caller retries them like a version mismatch.
func (s *GormLedgerScope) Execute(ctx context.Context, fn func(repos appinvoicing.LedgerRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormLedgerRepositories{tx: tx, events: s.events})
	})
	return translateTxError(err)
}

func translateTxError(err error) error {
	if IsRetryableTxError(err) {
		return shared.ErrConcurrencyConflict.WithCause(err)
	}
	return err
}

// IsRetryableTxError reports whether err is a Postgres serialization
// failure, deadlock or lock timeout.
func IsRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return true
	}
	return false
}

type gormLedgerRepositories struct {
	tx     *gorm.DB
	events shared.OutboxEventSaver
}

func (r *gormLedgerRepositories) Invoices() invoicing.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

func (r *gormLedgerRepositories) Payments() invoicing.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

func (r *gormLedgerRepositories) AuditLogs() invoicing.AuditLogRepository {
	return NewGormAuditLogRepository(r.tx)
}

func (r *gormLedgerRepositories) SaveEvents(ctx context.Context, events ...shared.DomainEvent) error {
	if r.events == nil || len(events) == 0 {
		return nil
	}
	return r.events.SaveEvents(ctx, r.tx, events...)
}

// Ensure GormLedgerScope implements TransactionScope
var _ appinvoicing.TransactionScope = (*GormLedgerScope)(nil)

// Ensure gormLedgerRepositories implements LedgerRepositories
var _ appinvoicing.LedgerRepositories = (*gormLedgerRepositories)(nil)
