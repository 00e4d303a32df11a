package invoicing

import (
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func money(s string) valueobject.Money { return valueobject.MustMoney(s) }

func newSentInvoice(t *testing.T, total string, due *time.Time) *Invoice {
	t.Helper()
	inv, err := NewInvoice(NewInvoiceInput{
		CompanyID:     uuid.New(),
		CustomerID:    uuid.New(),
		CustomerEmail: "billing@acme.test",
		InvoiceNumber: "INV-1001",
		Subtotal:      money(total),
		Tax:           valueobject.Zero(),
		DiscountType:  DiscountTypeNone,
		DiscountValue: decimal.Zero,
		DueDate:       due,
		Status:        InvoiceStatusSent,
	})
	require.NoError(t, err)
	return inv
}

func newTestLedger(t *testing.T, total string, due *time.Time) *Ledger {
	t.Helper()
	return NewLedger(newSentInvoice(t, total, due), nil).WithClock(func() time.Time { return fixedNow })
}

func daysAgo(n int) *time.Time {
	d := fixedNow.AddDate(0, 0, -n)
	return &d
}

func clerk(companyID uuid.UUID) Actor {
	return Actor{UserID: uuid.New(), CompanyID: companyID}
}

func admin(companyID uuid.UUID) Actor {
	return Actor{UserID: uuid.New(), CompanyID: companyID, Admin: true}
}

func pay(t *testing.T, l *Ledger, amount string, method PaymentMethod) *Payment {
	t.Helper()
	p, err := l.RecordPayment(PaymentInput{Amount: money(amount), Method: method, PaymentDate: fixedNow}, false, clerk(l.Invoice.CompanyID))
	require.NoError(t, err)
	return p
}

func eventTypes(inv *Invoice) []string {
	types := make([]string, 0, len(inv.GetDomainEvents()))
	for _, e := range inv.GetDomainEvents() {
		types = append(types, e.EventType())
	}
	return types
}
