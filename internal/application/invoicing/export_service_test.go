package invoicing

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type lineWriter struct {
	rows []PaymentExportRow
}

func (w *lineWriter) ContentType() string   { return "text/plain" }
func (w *lineWriter) FileExtension() string { return "txt" }

func (w *lineWriter) WritePayments(out io.Writer, rows []PaymentExportRow) error {
	w.rows = rows
	for _, r := range rows {
		if _, err := fmt.Fprintf(out, "%s;%s;%s\n", r.InvoiceNumber, r.Method, r.Amount); err != nil {
			return err
		}
	}
	return nil
}

type oversizedPayments struct {
	invoicing.PaymentRepository
}

func (oversizedPayments) List(context.Context, invoicing.PaymentFilter) ([]*invoicing.Payment, int64, error) {
	return nil, MaxExportRows + 1, nil
}

func TestExportService_ExportPayments(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	a := f.seedInvoice(t, "100.00", nil)
	b := f.seedInvoice(t, "300.00", nil)
	foreign := f.seedInvoiceFor(t, uuid.New(), uuid.New(), "50.00", nil)

	_, err := f.service.RecordPayment(ctx, f.clerk, a.ID, recordReq("60.00", invoicing.PaymentMethodCash))
	require.NoError(t, err)
	_, err = f.service.RecordPayment(ctx, f.clerk, b.ID, recordReq("300.00", invoicing.PaymentMethodCheck))
	require.NoError(t, err)
	outsider := invoicing.Actor{UserID: uuid.New(), CompanyID: foreign.CompanyID}
	_, err = f.service.RecordPayment(ctx, outsider, foreign.ID, recordReq("50.00", invoicing.PaymentMethodCash))
	require.NoError(t, err)

	writer := &lineWriter{}
	svc := NewExportService(liveInvoices{f.store}, livePayments{f.store}, writer, zap.NewNop())
	svc.now = func() time.Time { return fixedNow }

	file, err := svc.ExportPayments(ctx, f.company, PaymentListFilter{PageSize: 1})
	require.NoError(t, err)

	assert.Equal(t, "payments-20260315-100000.txt", file.FileName)
	assert.Equal(t, "text/plain", file.ContentType)
	assert.Equal(t, 2, file.Rows)
	require.Len(t, writer.rows, 2)

	numbers := map[string]string{}
	for _, r := range writer.rows {
		numbers[r.InvoiceNumber] = r.Method + " " + r.Amount.String()
		assert.Equal(t, f.clerk.UserID, r.RecordedBy)
		assert.Equal(t, string(invoicing.PaymentStatusCompleted), r.Status)
	}
	assert.Equal(t, map[string]string{
		a.InvoiceNumber: "cash 60.00",
		b.InvoiceNumber: "check 300.00",
	}, numbers)
	assert.Contains(t, string(file.Data), a.InvoiceNumber+";cash;60.00")
}

func TestExportService_FiltersByMethod(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	inv := f.seedInvoice(t, "100.00", nil)
	_, err := f.service.RecordPayment(ctx, f.clerk, inv.ID, recordReq("10.00", invoicing.PaymentMethodCash))
	require.NoError(t, err)
	_, err = f.service.RecordPayment(ctx, f.clerk, inv.ID, recordReq("20.00", invoicing.PaymentMethodCheck))
	require.NoError(t, err)

	writer := &lineWriter{}
	file, err := NewExportService(liveInvoices{f.store}, livePayments{f.store}, writer, nil).
		ExportPayments(ctx, f.company, PaymentListFilter{Method: "check"})
	require.NoError(t, err)
	assert.Equal(t, 1, file.Rows)
	assert.Equal(t, "20.00", writer.rows[0].Amount.String())
}

func TestExportService_EmptyLedger(t *testing.T) {
	f := newLedgerFixture(t)
	file, err := NewExportService(liveInvoices{f.store}, livePayments{f.store}, &lineWriter{}, nil).
		ExportPayments(context.Background(), f.company, PaymentListFilter{})
	require.NoError(t, err)
	assert.Zero(t, file.Rows)
	assert.Empty(t, file.Data)
}

func TestExportService_TooManyRows(t *testing.T) {
	f := newLedgerFixture(t)
	_, err := NewExportService(liveInvoices{f.store}, oversizedPayments{}, &lineWriter{}, nil).
		ExportPayments(context.Background(), f.company, PaymentListFilter{})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
