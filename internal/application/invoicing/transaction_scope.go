package invoicing

import (
	"context"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
)

// TransactionScope runs a ledger command atomically.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos LedgerRepositories) error) error
}

// LedgerRepositories exposes the repositories of one transaction. Everything
// written through them, outbox events included, commits or rolls back together.
type LedgerRepositories interface {
	Invoices() invoicing.InvoiceRepository
	Payments() invoicing.PaymentRepository
	AuditLogs() invoicing.AuditLogRepository
	// SaveEvents writes domain events to the outbox inside the transaction
	SaveEvents(ctx context.Context, events ...shared.DomainEvent) error
}
