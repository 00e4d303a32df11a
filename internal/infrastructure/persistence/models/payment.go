package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentModel is the persistence model for a ledger payment row.
type PaymentModel struct {
	BaseModel
	CompanyID     uuid.UUID               `gorm:"type:uuid;not null;index"`
	InvoiceID     uuid.UUID               `gorm:"type:uuid;not null;index"`
	Amount        decimal.Decimal         `gorm:"type:numeric(18,2);not null"`
	Method        invoicing.PaymentMethod `gorm:"type:varchar(30);not null"`
	PaymentDate   time.Time               `gorm:"not null;index"`
	Status        invoicing.PaymentStatus `gorm:"type:varchar(20);not null;index"`
	Notes         string                  `gorm:"type:text"`
	RefundReason  string                  `gorm:"type:text"`
	RecordedBy    uuid.UUID               `gorm:"type:uuid"`
	ExternalTxnID string                  `gorm:"type:varchar(255);index"`
	BatchID       *uuid.UUID              `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *invoicing.Payment {
	return &invoicing.Payment{
		BaseEntity:    m.BaseModel.ToDomain(),
		CompanyID:     m.CompanyID,
		InvoiceID:     m.InvoiceID,
		Amount:        valueobject.NewMoney(m.Amount),
		Method:        m.Method,
		PaymentDate:   m.PaymentDate,
		Status:        m.Status,
		Notes:         m.Notes,
		RefundReason:  m.RefundReason,
		RecordedBy:    m.RecordedBy,
		ExternalTxnID: m.ExternalTxnID,
		BatchID:       m.BatchID,
	}
}

// FromDomain populates the persistence model from a domain Payment
func (m *PaymentModel) FromDomain(p *invoicing.Payment) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.CompanyID = p.CompanyID
	m.InvoiceID = p.InvoiceID
	m.Amount = p.Amount.Decimal()
	m.Method = p.Method
	m.PaymentDate = p.PaymentDate
	m.Status = p.Status
	m.Notes = p.Notes
	m.RefundReason = p.RefundReason
	m.RecordedBy = p.RecordedBy
	m.ExternalTxnID = p.ExternalTxnID
	m.BatchID = p.BatchID
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment
func PaymentModelFromDomain(p *invoicing.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}
