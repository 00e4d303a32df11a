package handler

import (
	"context"
	"net/http"

	appinvoicing "github.com/erp/ledger/internal/application/invoicing"
	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) result(args mock.Arguments) (*appinvoicing.LedgerResult, error) {
	if r := args.Get(0); r != nil {
		return r.(*appinvoicing.LedgerResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLedger) RecordPayment(ctx context.Context, actor invoicing.Actor, id uuid.UUID, req appinvoicing.RecordPaymentRequest) (*appinvoicing.LedgerResult, error) {
	return m.result(m.Called(ctx, actor, id, req))
}

func (m *mockLedger) RecordSplitPayment(ctx context.Context, actor invoicing.Actor, id uuid.UUID, req appinvoicing.RecordSplitPaymentRequest) (*appinvoicing.LedgerResult, error) {
	return m.result(m.Called(ctx, actor, id, req))
}

func (m *mockLedger) EditPayment(ctx context.Context, actor invoicing.Actor, id uuid.UUID, req appinvoicing.EditPaymentRequest) (*appinvoicing.LedgerResult, error) {
	return m.result(m.Called(ctx, actor, id, req))
}

func (m *mockLedger) RefundPayment(ctx context.Context, actor invoicing.Actor, id uuid.UUID, req appinvoicing.ReversePaymentRequest) (*appinvoicing.LedgerResult, error) {
	return m.result(m.Called(ctx, actor, id, req))
}

func (m *mockLedger) VoidPayment(ctx context.Context, actor invoicing.Actor, id uuid.UUID, req appinvoicing.ReversePaymentRequest) (*appinvoicing.LedgerResult, error) {
	return m.result(m.Called(ctx, actor, id, req))
}

func (m *mockLedger) DeletePayment(ctx context.Context, actor invoicing.Actor, id uuid.UUID, req appinvoicing.DeletePaymentRequest) (*appinvoicing.LedgerResult, error) {
	return m.result(m.Called(ctx, actor, id, req))
}

func (m *mockLedger) ApplyLateFee(ctx context.Context, actor invoicing.Actor, id uuid.UUID, req appinvoicing.ApplyLateFeeRequest) (*appinvoicing.LedgerResult, error) {
	return m.result(m.Called(ctx, actor, id, req))
}

func (m *mockLedger) VoidInvoice(ctx context.Context, actor invoicing.Actor, id uuid.UUID, req appinvoicing.VoidInvoiceRequest) (*appinvoicing.LedgerResult, error) {
	return m.result(m.Called(ctx, actor, id, req))
}

func (m *mockLedger) SetInvoiceStatus(ctx context.Context, actor invoicing.Actor, id uuid.UUID, req appinvoicing.SetInvoiceStatusRequest) (*appinvoicing.LedgerResult, error) {
	return m.result(m.Called(ctx, actor, id, req))
}

func (m *mockLedger) Reconcile(ctx context.Context, actor invoicing.Actor, id uuid.UUID) (*appinvoicing.ReconcileResult, error) {
	args := m.Called(ctx, actor, id)
	if r := args.Get(0); r != nil {
		return r.(*appinvoicing.ReconcileResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLedger) GetInvoiceLedger(ctx context.Context, companyID, invoiceID uuid.UUID) (*appinvoicing.LedgerResult, error) {
	return m.result(m.Called(ctx, companyID, invoiceID))
}

func (m *mockLedger) ListPayments(ctx context.Context, companyID uuid.UUID, filter appinvoicing.PaymentListFilter) ([]appinvoicing.PaymentResponse, int64, error) {
	args := m.Called(ctx, companyID, filter)
	var payments []appinvoicing.PaymentResponse
	if p := args.Get(0); p != nil {
		payments = p.([]appinvoicing.PaymentResponse)
	}
	return payments, args.Get(1).(int64), args.Error(2)
}

type mockCheckout struct {
	mock.Mock
}

func (m *mockCheckout) RecordMultiInvoicePayment(ctx context.Context, actor invoicing.Actor, req appinvoicing.MultiInvoicePaymentRequest) (*appinvoicing.CheckoutResponse, error) {
	args := m.Called(ctx, actor, req)
	if r := args.Get(0); r != nil {
		return r.(*appinvoicing.CheckoutResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockExporter struct {
	mock.Mock
}

func (m *mockExporter) ExportPayments(ctx context.Context, companyID uuid.UUID, filter appinvoicing.PaymentListFilter) (*appinvoicing.ExportFile, error) {
	args := m.Called(ctx, companyID, filter)
	if r := args.Get(0); r != nil {
		return r.(*appinvoicing.ExportFile), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockReceipts struct {
	mock.Mock
}

func (m *mockReceipts) GenerateReceipt(ctx context.Context, companyID, paymentID uuid.UUID, mode invoicing.ReceiptMode) (*invoicing.Receipt, error) {
	args := m.Called(ctx, companyID, paymentID, mode)
	if r := args.Get(0); r != nil {
		return r.(*invoicing.Receipt), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSettlementParser struct {
	mock.Mock
}

func (m *mockSettlementParser) ParseSettlement(payload []byte, signature string) (*invoicing.SettlementNotice, error) {
	args := m.Called(payload, signature)
	if r := args.Get(0); r != nil {
		return r.(*invoicing.SettlementNotice), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSettlement struct {
	mock.Mock
}

func (m *mockSettlement) OnPaymentSucceeded(ctx context.Context, notice invoicing.SettlementNotice) (*appinvoicing.SettlementResult, error) {
	args := m.Called(ctx, notice)
	if r := args.Get(0); r != nil {
		return r.(*appinvoicing.SettlementResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type stubStream struct {
	companyID uuid.UUID
}

func (s *stubStream) HandleWebSocket(w http.ResponseWriter, _ *http.Request, companyID uuid.UUID) {
	s.companyID = companyID
	w.WriteHeader(http.StatusSwitchingProtocols)
}

type stubPinger struct {
	err error
}

func (p stubPinger) PingContext(context.Context) error { return p.err }
