package invoicing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session metadata keys. The settlement callback reads them back.
const (
	MetadataCompanyID  = "company_id"
	MetadataCustomerID = "customer_id"
	MetadataInvoiceIDs = "invoice_ids"
	MetadataAmounts    = "amounts"
	MetadataSignature  = "signature"
	MetadataPaymentDay = "payment_date"
)

const defaultProcessorTimeout = 15 * time.Second

// CheckoutService starts multi-invoice payments with the external processor
type CheckoutService struct {
	invoices  invoicing.InvoiceRepository
	payments  invoicing.PaymentRepository
	processor invoicing.PaymentProcessor
	timeout   time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// CheckoutServiceConfig holds the dependencies of CheckoutService
type CheckoutServiceConfig struct {
	Invoices  invoicing.InvoiceRepository
	Payments  invoicing.PaymentRepository
	Processor invoicing.PaymentProcessor
	// Timeout bounds the processor call
	Timeout time.Duration
	Clock   func() time.Time
	Logger  *zap.Logger
}

// NewCheckoutService creates a new CheckoutService
func NewCheckoutService(config CheckoutServiceConfig) *CheckoutService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultProcessorTimeout
	}
	clock := config.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &CheckoutService{
		invoices:  config.Invoices,
		payments:  config.Payments,
		processor: config.Processor,
		timeout:   timeout,
		now:       clock,
		logger:    logger,
	}
}

// RecordMultiInvoicePayment validates the selected invoices, sums their
// remaining balances and asks the processor for one hosted session covering
// all of them. No payment row is written here; the processor's settlement
// callback records the payments later.
func (s *CheckoutService) RecordMultiInvoicePayment(ctx context.Context, actor invoicing.Actor, req MultiInvoicePaymentRequest) (*CheckoutResponse, error) {
	if len(req.InvoiceIDs) == 0 {
		return nil, invoicing.ErrEmptyInvoiceSelection
	}

	invoices, err := s.loadSelection(ctx, actor.CompanyID, req.InvoiceIDs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	balances := make(map[uuid.UUID]invoicing.Balance, len(invoices))
	for _, inv := range invoices {
		payments, err := s.payments.FindByInvoice(ctx, inv.ID)
		if err != nil {
			return nil, err
		}
		balances[inv.ID] = invoicing.CalculateBalance(inv, payments, now)
	}

	batch, err := invoicing.ComposeMultiInvoiceBatch(req.CustomerID, invoices, balances)
	if err != nil {
		return nil, err
	}

	session, err := s.createSession(ctx, batch, req)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Multi-invoice payment session created",
		zap.String("company_id", batch.CompanyID.String()),
		zap.String("customer_id", batch.CustomerID.String()),
		zap.String("session_id", session.SessionID),
		zap.Int("invoices", len(batch.Lines)),
		zap.String("amount", batch.Total.String()))

	resp := &CheckoutResponse{
		SessionID:  session.SessionID,
		SessionURL: session.SessionURL,
		Amount:     batch.Total,
		InvoiceIDs: batch.InvoiceIDs(),
		Lines:      batch.Lines,
	}
	if !session.ExpiresAt.IsZero() {
		expiresAt := session.ExpiresAt
		resp.ExpiresAt = &expiresAt
	}
	return resp, nil
}

// loadSelection returns the invoices in request order. An id that is missing
// or belongs to another company is NOT_FOUND, before any batch rule runs.
func (s *CheckoutService) loadSelection(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]*invoicing.Invoice, error) {
	found, err := s.invoices.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*invoicing.Invoice, len(found))
	for _, inv := range found {
		if inv.CompanyID == companyID {
			byID[inv.ID] = inv
		}
	}

	invoices := make([]*invoicing.Invoice, 0, len(ids))
	for _, id := range ids {
		inv, ok := byID[id]
		if !ok {
			return nil, invoicing.ErrInvoiceNotFound
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

func (s *CheckoutService) createSession(ctx context.Context, batch *invoicing.MultiInvoiceBatch, req MultiInvoicePaymentRequest) (*invoicing.PaymentSession, error) {
	ids := make([]string, len(batch.Lines))
	amounts := make([]string, len(batch.Lines))
	for i, line := range batch.Lines {
		ids[i] = line.InvoiceID.String()
		amounts[i] = line.Amount.String()
	}
	metadata := map[string]string{
		MetadataCompanyID:  batch.CompanyID.String(),
		MetadataCustomerID: batch.CustomerID.String(),
		MetadataInvoiceIDs: strings.Join(ids, ","),
		MetadataAmounts:    strings.Join(amounts, ","),
	}
	if req.Signature != "" {
		metadata[MetadataSignature] = req.Signature
	}
	if req.PaymentDate != nil {
		metadata[MetadataPaymentDay] = req.PaymentDate.UTC().Format(time.DateOnly)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session, err := s.processor.CreatePaymentSession(callCtx, invoicing.PaymentSessionRequest{
		CompanyID:  batch.CompanyID,
		CustomerID: batch.CustomerID,
		Amount:     batch.Total,
		Lines:      batch.Lines,
		Metadata:   metadata,
	})
	if err != nil {
		s.logger.Error("Payment processor rejected session",
			zap.String("company_id", batch.CompanyID.String()),
			zap.Error(err))
		return nil, asProcessorError(err)
	}
	if session == nil || session.SessionURL == "" {
		return nil, shared.NewDomainError(shared.CodeExternalProcessorError, "payment processor returned no session url")
	}
	return session, nil
}

func asProcessorError(err error) error {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Code == shared.CodeExternalProcessorError {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return shared.NewDomainError(shared.CodeExternalProcessorError, "payment processor timed out").WithCause(err)
	}
	return shared.ErrExternalProcessor.WithCause(err)
}
