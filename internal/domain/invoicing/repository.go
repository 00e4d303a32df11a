package invoicing

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// InvoiceRepository loads and stores invoices
type InvoiceRepository interface {
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*Invoice, error)
	// FindByIDForUpdate loads the invoice and holds a row lock until the
	// surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*Invoice, error)
	// FindByIDs loads invoices regardless of company, for batch validation
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Invoice, error)
	Create(ctx context.Context, invoice *Invoice) error
	// SaveWithLock persists the engine-owned fields if the stored version still
	// matches; otherwise it returns a CONCURRENCY_CONFLICT error.
	SaveWithLock(ctx context.Context, invoice *Invoice) error
	// FindLateFeeCandidates returns invoices of a company that are past due,
	// still open and carry no late fee, ordered by (due date, id) and
	// starting after the cursor when one is given.
	FindLateFeeCandidates(ctx context.Context, companyID uuid.UUID, asOf time.Time, after *LateFeeCursor, limit int) ([]*Invoice, error)
	// CompaniesWithLateFeeCandidates lists companies that have at least one candidate
	CompaniesWithLateFeeCandidates(ctx context.Context, asOf time.Time) ([]uuid.UUID, error)
}

// LateFeeCursor is the position of the last late fee candidate a sweep visited
type LateFeeCursor struct {
	DueDate time.Time
	ID      uuid.UUID
}

// CursorAfter returns the cursor positioned on inv. Invoices without a due
// date never qualify and yield nil.
func CursorAfter(inv *Invoice) *LateFeeCursor {
	if inv == nil || inv.DueDate == nil {
		return nil
	}
	return &LateFeeCursor{DueDate: *inv.DueDate, ID: inv.ID}
}

// PaymentFilter narrows payment listings
type PaymentFilter struct {
	shared.Filter
	CompanyID uuid.UUID
	InvoiceID *uuid.UUID
	Status    *PaymentStatus
	Method    *PaymentMethod
	From      *time.Time
	To        *time.Time
}

// DefaultPaymentFilter returns a filter for one company's payments
func DefaultPaymentFilter(companyID uuid.UUID) PaymentFilter {
	f := shared.DefaultFilter()
	f.OrderBy = "payment_date"
	return PaymentFilter{Filter: f, CompanyID: companyID}
}

// PaymentRepository loads and stores payments
type PaymentRepository interface {
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*Payment, error)
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error)
	FindByExternalTxn(ctx context.Context, invoiceID uuid.UUID, externalTxnID string) (*Payment, error)
	Create(ctx context.Context, payments ...*Payment) error
	Update(ctx context.Context, payment *Payment) error
	Delete(ctx context.Context, companyID, id uuid.UUID) error
	List(ctx context.Context, filter PaymentFilter) ([]*Payment, int64, error)
}

// AuditLogRepository stores audit entries
type AuditLogRepository interface {
	Create(ctx context.Context, entry *AuditEntry) error
	FindByEntity(ctx context.Context, companyID uuid.UUID, entityType string, entityID uuid.UUID) ([]*AuditEntry, error)
}
