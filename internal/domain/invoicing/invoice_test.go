package invoicing

import (
	"testing"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTotal(t *testing.T) {
	tests := []struct {
		name     string
		subtotal string
		tax      string
		dtype    DiscountType
		dvalue   string
		want     string
	}{
		{"no discount", "100", "8.25", DiscountTypeNone, "0", "108.25"},
		{"percentage discount", "200", "10", DiscountTypePercentage, "15", "180.00"},
		{"fixed discount", "200", "0", DiscountTypeFixed, "25.50", "174.50"},
		{"discount larger than subtotal floors at tax", "50", "4", DiscountTypeFixed, "80", "4.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, err := ComputeTotal(money(tt.subtotal), money(tt.tax), tt.dtype, decimal.RequireFromString(tt.dvalue))
			require.NoError(t, err)
			assert.Equal(t, tt.want, total.String())
		})
	}

	t.Run("rejects negative amounts", func(t *testing.T) {
		_, err := ComputeTotal(money("-1"), valueobject.Zero(), DiscountTypeNone, decimal.Zero)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("rejects percentage above 100", func(t *testing.T) {
		_, err := ComputeTotal(money("10"), valueobject.Zero(), DiscountTypePercentage, decimal.NewFromInt(101))
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestNewInvoice(t *testing.T) {
	t.Run("defaults to draft with zero late fee", func(t *testing.T) {
		inv, err := NewInvoice(NewInvoiceInput{
			CompanyID:  uuid.New(),
			CustomerID: uuid.New(),
			Subtotal:   money("10"),
			Tax:        money("1"),
		})
		require.NoError(t, err)
		assert.Equal(t, InvoiceStatusDraft, inv.Status)
		assert.True(t, inv.LateFeeAmount.IsZero())
		assert.Equal(t, "11.00", inv.Total.String())
		assert.Equal(t, 1, inv.Version)
	})

	t.Run("cannot start in a balance driven state", func(t *testing.T) {
		_, err := NewInvoice(NewInvoiceInput{
			CompanyID:  uuid.New(),
			CustomerID: uuid.New(),
			Subtotal:   money("10"),
			Status:     InvoiceStatusPaid,
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}
