package invoicing

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared/valueobject"
)

// Balance is the derived financial position of an invoice. It is never
// stored; every read recomputes it from the invoice and its payments.
type Balance struct {
	TotalDue         valueobject.Money `json:"total_due"`
	TotalPaid        valueobject.Money `json:"total_paid"`
	RemainingBalance valueobject.Money `json:"remaining_balance"`
	IsOverdue        bool              `json:"is_overdue"`
}

// IsSettled reports whether the payments fully cover the total due
func (b Balance) IsSettled() bool {
	return b.RemainingBalance.IsZero() && b.TotalPaid.IsPositive()
}

// TotalDue is the invoice total plus any applied late fee
func TotalDue(inv *Invoice) valueobject.Money {
	return inv.Total.Add(inv.LateFeeAmount)
}

// TotalPaid sums the completed payments that belong to the invoice.
// Refunded and voided payments never count.
func TotalPaid(inv *Invoice, payments []*Payment) valueobject.Money {
	total := valueobject.Zero()
	for _, p := range payments {
		if p.InvoiceID != inv.ID || p.Status != PaymentStatusCompleted {
			continue
		}
		total = total.Add(p.Amount)
	}
	return total
}

// IsOverdue reports whether the due date's calendar day (UTC) has passed and
// the invoice is still collectable.
func IsOverdue(inv *Invoice, now time.Time) bool {
	if inv.DueDate == nil {
		return false
	}
	if inv.Status == InvoiceStatusPaid || inv.Status == InvoiceStatusVoided {
		return false
	}
	return StartOfDayUTC(*inv.DueDate).Before(StartOfDayUTC(now))
}

// CalculateBalance derives the balance fields of inv from its payment set
func CalculateBalance(inv *Invoice, payments []*Payment, now time.Time) Balance {
	due := TotalDue(inv)
	paid := TotalPaid(inv, payments)
	return Balance{
		TotalDue:         due,
		TotalPaid:        paid,
		RemainingBalance: due.Subtract(paid).FloorZero(),
		IsOverdue:        IsOverdue(inv, now),
	}
}

// StartOfDayUTC truncates t to midnight of its UTC calendar day
func StartOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
