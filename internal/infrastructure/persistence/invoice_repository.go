package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lateFeeSweepStatuses are the issued, unpaid statuses the late fee sweep looks at
var lateFeeSweepStatuses = []invoicing.InvoiceStatus{
	invoicing.InvoiceStatusSent,
	invoicing.InvoiceStatusPartiallyPaid,
	invoicing.InvoiceStatusOverdue,
}

// GormInvoiceRepository implements invoicing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice of a company by its ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*invoicing.Invoice, error) {
	return r.find(r.db.WithContext(ctx), companyID, id)
}

// FindByIDForUpdate finds an invoice and locks its row (SELECT ... FOR UPDATE).
// Must be called inside a transaction.
func (r *GormInvoiceRepository) FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*invoicing.Invoice, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), companyID, id)
}

func (r *GormInvoiceRepository) find(db *gorm.DB, companyID, id uuid.UUID) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := db.Where("company_id = ? AND id = ?", companyID, id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoicing.ErrInvoiceNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs loads invoices by ID across companies. Missing IDs are simply absent
// from the result; callers compare lengths.
func (r *GormInvoiceRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*invoicing.Invoice, error) {
	if len(ids) == 0 {
		return []*invoicing.Invoice{}, nil
	}
	var rows []models.InvoiceModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*invoicing.Invoice, len(rows))
	for i := range rows {
		byID[rows[i].ID] = rows[i].ToDomain()
	}
	// Preserve the caller's selection order
	invoices := make([]*invoicing.Invoice, 0, len(rows))
	for _, id := range ids {
		if inv, ok := byID[id]; ok {
			invoices = append(invoices, inv)
			delete(byID, id)
		}
	}
	return invoices, nil
}

// Create inserts a new invoice
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *invoicing.Invoice) error {
	return r.db.WithContext(ctx).Create(models.InvoiceModelFromDomain(invoice)).Error
}

// SaveWithLock persists the ledger-owned invoice fields if the stored version still
// matches the loaded one, then advances the in-memory version.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *invoicing.Invoice) error {
	m := models.InvoiceModelFromDomain(invoice)
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ? AND company_id = ? AND version = ?", invoice.ID, invoice.CompanyID, invoice.Version).
		Updates(map[string]any{
			"status":            m.Status,
			"status_overridden": m.StatusOverridden,
			"paid_at":           m.PaidAt,
			"late_fee_amount":   m.LateFeeAmount,
			"voided_at":         m.VoidedAt,
			"void_reason":       m.VoidReason,
			"voided_by":         m.VoidedBy,
			"version":           invoice.Version + 1,
			"updated_at":        invoice.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	invoice.IncrementVersion()
	return nil
}

// FindLateFeeCandidates returns issued invoices of a company whose due day has passed,
// that are not paid or voided and carry no late fee yet. Oldest due date first;
// after continues from the (due_date, id) of the previous page.
func (r *GormInvoiceRepository) FindLateFeeCandidates(ctx context.Context, companyID uuid.UUID, asOf time.Time, after *invoicing.LateFeeCursor, limit int) ([]*invoicing.Invoice, error) {
	var rows []models.InvoiceModel
	query := r.lateFeeCandidates(ctx, asOf).
		Where("company_id = ?", companyID)
	if after != nil {
		query = query.Where("due_date > ? OR (due_date = ? AND id > ?)", after.DueDate, after.DueDate, after.ID)
	}
	query = query.Order("due_date ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	invoices := make([]*invoicing.Invoice, len(rows))
	for i := range rows {
		invoices[i] = rows[i].ToDomain()
	}
	return invoices, nil
}

// CompaniesWithLateFeeCandidates lists the companies that have at least one candidate
func (r *GormInvoiceRepository) CompaniesWithLateFeeCandidates(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.lateFeeCandidates(ctx, asOf).
		Distinct("company_id").
		Order("company_id").
		Pluck("company_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *GormInvoiceRepository) lateFeeCandidates(ctx context.Context, asOf time.Time) *gorm.DB {
	startOfDay := invoicing.StartOfDayUTC(asOf)
	return r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("status IN ?", lateFeeSweepStatuses).
		Where("due_date IS NOT NULL AND due_date < ?", startOfDay).
		Where("late_fee_amount = 0")
}

// Ensure GormInvoiceRepository implements invoicing.InvoiceRepository
var _ invoicing.InvoiceRepository = (*GormInvoiceRepository)(nil)
