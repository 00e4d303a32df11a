package persistence

import (
	"context"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAuditLogRepository implements invoicing.AuditLogRepository using GORM.
// Entries are append-only.
type GormAuditLogRepository struct {
	db *gorm.DB
}

// NewGormAuditLogRepository creates a new GormAuditLogRepository
func NewGormAuditLogRepository(db *gorm.DB) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

// Create appends an audit entry
func (r *GormAuditLogRepository) Create(ctx context.Context, entry *invoicing.AuditEntry) error {
	return r.db.WithContext(ctx).Create(models.AuditLogModelFromDomain(entry)).Error
}

// FindByEntity returns the audit trail of one entity, newest first
func (r *GormAuditLogRepository) FindByEntity(ctx context.Context, companyID uuid.UUID, entityType string, entityID uuid.UUID) ([]*invoicing.AuditEntry, error) {
	var rows []models.AuditLogModel
	if err := r.db.WithContext(ctx).
		Where("company_id = ? AND entity_type = ? AND entity_id = ?", companyID, entityType, entityID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]*invoicing.AuditEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}

// Ensure GormAuditLogRepository implements invoicing.AuditLogRepository
var _ invoicing.AuditLogRepository = (*GormAuditLogRepository)(nil)
