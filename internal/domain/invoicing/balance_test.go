package invoicing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCalculateBalance(t *testing.T) {
	inv := newSentInvoice(t, "100", nil)
	inv.LateFeeAmount = money("10")

	payments := []*Payment{
		{InvoiceID: inv.ID, Amount: money("30"), Status: PaymentStatusCompleted},
		{InvoiceID: inv.ID, Amount: money("20"), Status: PaymentStatusRefunded},
		{InvoiceID: inv.ID, Amount: money("15"), Status: PaymentStatusVoided},
		{InvoiceID: inv.ID, Amount: money("45.50"), Status: PaymentStatusCompleted},
		{InvoiceID: uuid.New(), Amount: money("999"), Status: PaymentStatusCompleted},
	}

	bal := CalculateBalance(inv, payments, fixedNow)
	assert.Equal(t, "110.00", bal.TotalDue.String())
	assert.Equal(t, "75.50", bal.TotalPaid.String())
	assert.Equal(t, "34.50", bal.RemainingBalance.String())
	assert.False(t, bal.IsOverdue)
	assert.False(t, bal.IsSettled())
}

func TestIsOverdue(t *testing.T) {
	yesterday := fixedNow.AddDate(0, 0, -1)
	earlierToday := time.Date(fixedNow.Year(), fixedNow.Month(), fixedNow.Day(), 0, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		due    *time.Time
		status InvoiceStatus
		want   bool
	}{
		{"no due date", nil, InvoiceStatusSent, false},
		{"past due and open", &yesterday, InvoiceStatusSent, true},
		{"past due partially paid", &yesterday, InvoiceStatusPartiallyPaid, true},
		{"past due but paid", &yesterday, InvoiceStatusPaid, false},
		{"past due but voided", &yesterday, InvoiceStatusVoided, false},
		{"due today is not yet overdue", &earlierToday, InvoiceStatusSent, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := newSentInvoice(t, "10", tt.due)
			inv.Status = tt.status
			assert.Equal(t, tt.want, IsOverdue(inv, fixedNow))
		})
	}
}
