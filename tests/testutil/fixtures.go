package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
)

// InvoiceOption customizes NewTestInvoice
type InvoiceOption func(*invoicing.NewInvoiceInput)

// WithTotal sets the subtotal and clears tax and discount so the invoice total equals amount.
func WithTotal(amount string) InvoiceOption {
	return func(in *invoicing.NewInvoiceInput) {
		in.Subtotal = valueobject.MustMoney(amount)
		in.Tax = valueobject.Zero()
		in.DiscountType = invoicing.DiscountTypeNone
		in.DiscountValue = decimal.Zero
	}
}

// WithDueDate sets the due date
func WithDueDate(due time.Time) InvoiceOption {
	return func(in *invoicing.NewInvoiceInput) {
		in.DueDate = &due
	}
}

// WithCompany issues the invoice for another company
func WithCompany(companyID uuid.UUID) InvoiceOption {
	return func(in *invoicing.NewInvoiceInput) {
		in.CompanyID = companyID
	}
}

// NewTestInvoice issues a sent invoice of 100.00 for the standard test
// company, due in 30 days.
func NewTestInvoice(t *testing.T, opts ...InvoiceOption) *invoicing.Invoice {
	t.Helper()

	due := time.Now().UTC().AddDate(0, 0, 30).Truncate(24 * time.Hour)
	in := invoicing.NewInvoiceInput{
		CompanyID:     TestCompanyID(),
		CustomerID:    NewTestUUID("test-customer"),
		CustomerEmail: "billing@example.com",
		InvoiceNumber: fmt.Sprintf("INV-%s", uuid.NewString()[:8]),
		Subtotal:      valueobject.MustMoney("100.00"),
		Tax:           valueobject.Zero(),
		DueDate:       &due,
		Status:        invoicing.InvoiceStatusSent,
	}
	for _, opt := range opts {
		opt(&in)
	}

	inv, err := invoicing.NewInvoice(in)
	require.NoError(t, err, "Failed to build test invoice")
	return inv
}
