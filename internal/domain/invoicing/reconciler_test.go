package invoicing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextStatus(t *testing.T) {
	settled := Balance{TotalDue: money("100"), TotalPaid: money("100"), RemainingBalance: money("0")}
	partial := Balance{TotalDue: money("100"), TotalPaid: money("40"), RemainingBalance: money("60")}
	unpaid := Balance{TotalDue: money("100"), TotalPaid: money("0"), RemainingBalance: money("100")}
	zeroInvoice := Balance{TotalDue: money("0"), TotalPaid: money("0"), RemainingBalance: money("0")}

	tests := []struct {
		name    string
		current InvoiceStatus
		bal     Balance
		want    InvoiceStatus
	}{
		{"voided never moves", InvoiceStatusVoided, settled, InvoiceStatusVoided},
		{"settled becomes paid", InvoiceStatusSent, settled, InvoiceStatusPaid},
		{"settled draft becomes paid", InvoiceStatusDraft, settled, InvoiceStatusPaid},
		{"partial becomes partially paid", InvoiceStatusPaid, partial, InvoiceStatusPartiallyPaid},
		{"partial overrides overdue", InvoiceStatusOverdue, partial, InvoiceStatusPartiallyPaid},
		{"unpaid paid falls back to sent", InvoiceStatusPaid, unpaid, InvoiceStatusSent},
		{"unpaid partial falls back to sent", InvoiceStatusPartiallyPaid, unpaid, InvoiceStatusSent},
		{"unpaid overdue falls back to sent", InvoiceStatusOverdue, unpaid, InvoiceStatusSent},
		{"draft is never auto assigned", InvoiceStatusDraft, unpaid, InvoiceStatusDraft},
		{"sent stays sent", InvoiceStatusSent, unpaid, InvoiceStatusSent},
		{"zero total without payments is not paid", InvoiceStatusSent, zeroInvoice, InvoiceStatusSent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextStatus(tt.current, tt.bal))
		})
	}
}

func TestExpectedStatuses(t *testing.T) {
	assert.Equal(t, []InvoiceStatus{InvoiceStatusPaid},
		ExpectedStatuses(Balance{TotalPaid: money("10"), RemainingBalance: money("0")}))
	assert.Contains(t,
		ExpectedStatuses(Balance{TotalPaid: money("10"), RemainingBalance: money("5")}), InvoiceStatusOverdue)
	assert.NotContains(t,
		ExpectedStatuses(Balance{TotalPaid: money("0"), RemainingBalance: money("5")}), InvoiceStatusPaid)
}

func TestInvoice_ReconcileClearsPaidAtWhenLeavingPaid(t *testing.T) {
	inv := newSentInvoice(t, "100", nil)
	settled := Balance{TotalDue: money("100"), TotalPaid: money("100"), RemainingBalance: money("0")}

	tr := inv.applyReconciledStatus(settled, fixedNow)
	assert.True(t, tr.PaidAtSet)
	assert.True(t, tr.Changed())

	later := fixedNow.AddDate(0, 0, 1)
	tr = inv.applyReconciledStatus(settled, later)
	assert.False(t, tr.PaidAtSet)
	assert.Equal(t, fixedNow, *inv.PaidAt)

	tr = inv.applyReconciledStatus(Balance{TotalDue: money("100"), TotalPaid: money("50"), RemainingBalance: money("50")}, later)
	assert.Equal(t, InvoiceStatusPartiallyPaid, tr.To)
	assert.Nil(t, inv.PaidAt)
}
