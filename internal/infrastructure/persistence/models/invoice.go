package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	CompanyAggregateModel
	InvoiceNumber    string                  `gorm:"type:varchar(64);not null;index"`
	CustomerID       uuid.UUID               `gorm:"type:uuid;not null;index"`
	CustomerEmail    string                  `gorm:"type:varchar(255)"`
	Subtotal         decimal.Decimal         `gorm:"type:numeric(18,2);not null"`
	Tax              decimal.Decimal         `gorm:"type:numeric(18,2);not null"`
	DiscountType     invoicing.DiscountType  `gorm:"type:varchar(20);not null"`
	DiscountValue    decimal.Decimal         `gorm:"type:numeric(18,4);not null"`
	Total            decimal.Decimal         `gorm:"type:numeric(18,2);not null"`
	LateFeeAmount    decimal.Decimal         `gorm:"type:numeric(18,2);not null"`
	Status           invoicing.InvoiceStatus `gorm:"type:varchar(20);not null;index"`
	StatusOverridden bool                    `gorm:"not null;default:false"`
	DueDate          *time.Time              `gorm:"index"`
	PaidAt           *time.Time
	VoidedAt         *time.Time
	VoidReason       string     `gorm:"type:text"`
	VoidedBy         *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	inv := &invoicing.Invoice{
		CompanyAggregateRoot: m.ToDomainCompanyAggregateRoot(),
		InvoiceNumber:        m.InvoiceNumber,
		CustomerID:           m.CustomerID,
		CustomerEmail:        m.CustomerEmail,
		Subtotal:             valueobject.NewMoney(m.Subtotal),
		Tax:                  valueobject.NewMoney(m.Tax),
		DiscountType:         m.DiscountType,
		DiscountValue:        m.DiscountValue,
		Total:                valueobject.NewMoney(m.Total),
		LateFeeAmount:        valueobject.NewMoney(m.LateFeeAmount),
		Status:               m.Status,
		StatusOverridden:     m.StatusOverridden,
		DueDate:              m.DueDate,
		PaidAt:               m.PaidAt,
	}
	if m.VoidedAt != nil {
		info := &invoicing.VoidInfo{VoidedAt: *m.VoidedAt, Reason: m.VoidReason}
		if m.VoidedBy != nil {
			info.VoidedBy = *m.VoidedBy
		}
		inv.VoidInfo = info
	}
	return inv
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *invoicing.Invoice) {
	m.FromDomainCompanyAggregateRoot(inv.CompanyAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.CustomerID = inv.CustomerID
	m.CustomerEmail = inv.CustomerEmail
	m.Subtotal = inv.Subtotal.Decimal()
	m.Tax = inv.Tax.Decimal()
	m.DiscountType = inv.DiscountType
	m.DiscountValue = inv.DiscountValue
	m.Total = inv.Total.Decimal()
	m.LateFeeAmount = inv.LateFeeAmount.Decimal()
	m.Status = inv.Status
	m.StatusOverridden = inv.StatusOverridden
	m.DueDate = inv.DueDate
	m.PaidAt = inv.PaidAt
	m.VoidedAt, m.VoidReason, m.VoidedBy = nil, "", nil
	if inv.VoidInfo != nil {
		voidedAt := inv.VoidInfo.VoidedAt
		voidedBy := inv.VoidInfo.VoidedBy
		m.VoidedAt = &voidedAt
		m.VoidReason = inv.VoidInfo.Reason
		m.VoidedBy = &voidedBy
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}
