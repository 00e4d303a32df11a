package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPaymentRepository implements invoicing.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment of a company by its ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*invoicing.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoicing.ErrPaymentNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByInvoice returns the complete payment set of an invoice, in the order
// the payments were taken.
func (r *GormPaymentRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*invoicing.Payment, error) {
	var rows []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("payment_date ASC, created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainPayments(rows), nil
}

// FindByExternalTxn finds the payment a processor transaction produced for an invoice
func (r *GormPaymentRepository) FindByExternalTxn(ctx context.Context, invoiceID uuid.UUID, externalTxnID string) (*invoicing.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ? AND external_txn_id = ?", invoiceID, externalTxnID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoicing.ErrPaymentNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts one or more payments
func (r *GormPaymentRepository) Create(ctx context.Context, payments ...*invoicing.Payment) error {
	if len(payments) == 0 {
		return nil
	}
	rows := make([]*models.PaymentModel, len(payments))
	for i, p := range payments {
		rows[i] = models.PaymentModelFromDomain(p)
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// Update saves the mutable columns of an existing payment
func (r *GormPaymentRepository) Update(ctx context.Context, payment *invoicing.Payment) error {
	m := models.PaymentModelFromDomain(payment)
	result := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ? AND company_id = ?", payment.ID, payment.CompanyID).
		Updates(map[string]any{
			"amount":        m.Amount,
			"method":        m.Method,
			"payment_date":  m.PaymentDate,
			"status":        m.Status,
			"notes":         m.Notes,
			"refund_reason": m.RefundReason,
			"updated_at":    m.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return invoicing.ErrPaymentNotFound
	}
	return nil
}

// Delete hard-removes a payment row
func (r *GormPaymentRepository) Delete(ctx context.Context, companyID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		Delete(&models.PaymentModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return invoicing.ErrPaymentNotFound
	}
	return nil
}

// List returns one page of a company's payments plus the total match count
func (r *GormPaymentRepository) List(ctx context.Context, filter invoicing.PaymentFilter) ([]*invoicing.Payment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentModel{}).
		Where("company_id = ?", filter.CompanyID)

	if filter.InvoiceID != nil {
		query = query.Where("invoice_id = ?", *filter.InvoiceID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Method != nil {
		query = query.Where("method = ?", *filter.Method)
	}
	if filter.From != nil {
		query = query.Where("payment_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("payment_date <= ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortField := ValidateSortField(filter.OrderBy, PaymentSortFields, "payment_date")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(fmt.Sprintf("%s %s, id %s", sortField, sortOrder, sortOrder))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.PaymentModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toDomainPayments(rows), total, nil
}

func toDomainPayments(rows []models.PaymentModel) []*invoicing.Payment {
	payments := make([]*invoicing.Payment, len(rows))
	for i := range rows {
		payments[i] = rows[i].ToDomain()
	}
	return payments
}

// Ensure GormPaymentRepository implements invoicing.PaymentRepository
var _ invoicing.PaymentRepository = (*GormPaymentRepository)(nil)
