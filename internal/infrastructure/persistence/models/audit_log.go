package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/google/uuid"
)

// AuditLogModel is the persistence model for administrative audit entries
type AuditLogModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID  uuid.UUID `gorm:"type:uuid;not null;index:idx_audit_entity,priority:1"`
	Action     string    `gorm:"type:varchar(64);not null"`
	EntityType string    `gorm:"type:varchar(32);not null;index:idx_audit_entity,priority:2"`
	EntityID   uuid.UUID `gorm:"type:uuid;not null;index:idx_audit_entity,priority:3"`
	InvoiceID  uuid.UUID `gorm:"type:uuid;index"`
	ActorID    uuid.UUID `gorm:"type:uuid"`
	Reason     string    `gorm:"type:text"`
	Snapshot   []byte    `gorm:"type:jsonb"`
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// ToDomain converts the persistence model to a domain AuditEntry
func (m *AuditLogModel) ToDomain() *invoicing.AuditEntry {
	return &invoicing.AuditEntry{
		ID:         m.ID,
		CompanyID:  m.CompanyID,
		Action:     m.Action,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		InvoiceID:  m.InvoiceID,
		ActorID:    m.ActorID,
		Reason:     m.Reason,
		Snapshot:   m.Snapshot,
		CreatedAt:  m.CreatedAt,
	}
}

// AuditLogModelFromDomain creates a persistence model from a domain AuditEntry
func AuditLogModelFromDomain(e *invoicing.AuditEntry) *AuditLogModel {
	return &AuditLogModel{
		ID:         e.ID,
		CompanyID:  e.CompanyID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		InvoiceID:  e.InvoiceID,
		ActorID:    e.ActorID,
		Reason:     e.Reason,
		Snapshot:   e.Snapshot,
		CreatedAt:  e.CreatedAt,
	}
}
