package invoicing

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSweeper(f *ledgerFixture, batchSize int) *LateFeeSweeper {
	return NewLateFeeSweeper(LateFeeSweeperConfig{
		Ledger:    f.service,
		Invoices:  liveInvoices{f.store},
		BatchSize: batchSize,
		Logger:    zap.NewNop(),
	})
}

func TestLateFeeSweeper_Sweep(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	other := uuid.New()

	overdue := []*invoicing.Invoice{
		f.seedInvoice(t, "100.00", daysFromNow(-30)),
		f.seedInvoice(t, "200.00", daysFromNow(-10)),
		f.seedInvoice(t, "300.00", daysFromNow(-1)),
		f.seedInvoiceFor(t, other, uuid.New(), "100.00", daysFromNow(-5)),
	}
	notDue := f.seedInvoice(t, "100.00", daysFromNow(3))
	dueToday := f.seedInvoice(t, "100.00", daysFromNow(0))
	paid := f.seedInvoice(t, "100.00", daysFromNow(-20))
	_, err := f.service.RecordPayment(ctx, f.clerk, paid.ID, recordReq("100.00", invoicing.PaymentMethodCheck))
	require.NoError(t, err)

	result, err := newSweeper(f, 2).Sweep(ctx, SweepOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Companies)
	assert.Equal(t, 4, result.Applied)
	assert.Zero(t, result.Skipped)
	assert.Zero(t, result.Failed)

	assert.Equal(t, "1.50", f.store.invoice(t, overdue[0].ID).LateFeeAmount.String())
	assert.Equal(t, "3.00", f.store.invoice(t, overdue[1].ID).LateFeeAmount.String())
	assert.Equal(t, "4.50", f.store.invoice(t, overdue[2].ID).LateFeeAmount.String())
	for _, inv := range overdue {
		// the fee does not move the status; overdue is derived from the due date
		ledger, err := f.service.GetInvoiceLedger(ctx, inv.CompanyID, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, string(invoicing.InvoiceStatusSent), ledger.Invoice.Status)
		assert.True(t, ledger.Balance.IsOverdue)
	}
	for _, inv := range []*invoicing.Invoice{notDue, dueToday, paid} {
		assert.True(t, f.store.invoice(t, inv.ID).LateFeeAmount.IsZero())
	}

	again, err := newSweeper(f, 2).Sweep(ctx, SweepOptions{})
	require.NoError(t, err)
	assert.Zero(t, again.Companies)
	assert.Zero(t, again.Applied)
}

func TestLateFeeSweeper_SingleCompanyWithPercentage(t *testing.T) {
	f := newLedgerFixture(t)
	other := uuid.New()
	mine := f.seedInvoice(t, "200.00", daysFromNow(-3))
	theirs := f.seedInvoiceFor(t, other, uuid.New(), "200.00", daysFromNow(-3))

	pct := dec("2.5")
	result, err := newSweeper(f, 0).Sweep(context.Background(), SweepOptions{CompanyID: &f.company, Percentage: &pct})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Companies)
	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, "5.00", f.store.invoice(t, mine.ID).LateFeeAmount.String())
	assert.True(t, f.store.invoice(t, theirs.ID).LateFeeAmount.IsZero())
}

func TestLateFeeSweeper_PagesPastSkippedCandidates(t *testing.T) {
	f := newLedgerFixture(t)
	zeroA := f.seedInvoice(t, "0.00", daysFromNow(-30))
	zeroB := f.seedInvoice(t, "0.00", daysFromNow(-20))
	owing := f.seedInvoice(t, "100.00", daysFromNow(-10))

	result, err := newSweeper(f, 2).Sweep(context.Background(), SweepOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Skipped, "a zero fee is rejected and the invoice stays a candidate")
	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, "1.50", f.store.invoice(t, owing.ID).LateFeeAmount.String())
	assert.True(t, f.store.invoice(t, zeroA.ID).LateFeeAmount.IsZero())
	assert.True(t, f.store.invoice(t, zeroB.ID).LateFeeAmount.IsZero())
}

func TestLateFeeSweeper_FailuresDoNotStopTheSweep(t *testing.T) {
	f := newLedgerFixture(t)
	f.seedInvoice(t, "100.00", daysFromNow(-3))
	f.seedInvoice(t, "100.00", daysFromNow(-2))
	f.store.failNextSaves(3)

	result, err := newSweeper(f, 10).Sweep(context.Background(), SweepOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed, "the first invoice exhausts its retry budget")
	assert.Equal(t, 1, result.Applied)
}

func TestLateFeeSweeper_CancelledContext(t *testing.T) {
	f := newLedgerFixture(t)
	f.seedInvoice(t, "100.00", daysFromNow(-3))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSweeper(f, 10).Sweep(ctx, SweepOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
