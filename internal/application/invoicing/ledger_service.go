package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultRetryBudget  = 3
	defaultRetryBackoff = 25 * time.Millisecond
)

// LedgerService runs the payment ledger commands. Every command locks the
// invoice row, loads the complete payment set, applies the change through
// invoicing.Ledger and writes the invoice, the payment rows and the outbox
// events in one transaction.
type LedgerService struct {
	scope          TransactionScope
	invoices       invoicing.InvoiceRepository
	payments       invoicing.PaymentRepository
	lateFeePercent decimal.Decimal
	retryBudget    int
	retryBackoff   time.Duration
	now            func() time.Time
	logger         *zap.Logger
}

// LedgerServiceConfig holds the dependencies of LedgerService.
// Invoices and Payments serve the read-only queries.
type LedgerServiceConfig struct {
	Scope          TransactionScope
	Invoices       invoicing.InvoiceRepository
	Payments       invoicing.PaymentRepository
	LateFeePercent decimal.Decimal
	// RetryBudget is the number of attempts on a concurrency conflict
	RetryBudget  int
	RetryBackoff time.Duration
	Clock        func() time.Time
	Logger       *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(config LedgerServiceConfig) *LedgerService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := config.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	budget := config.RetryBudget
	if budget <= 0 {
		budget = defaultRetryBudget
	}
	backoff := config.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}

	return &LedgerService{
		scope:          config.Scope,
		invoices:       config.Invoices,
		payments:       config.Payments,
		lateFeePercent: config.LateFeePercent,
		retryBudget:    budget,
		retryBackoff:   backoff,
		now:            clock,
		logger:         logger,
	}
}

// ledgerMutation changes a locked ledger. It may write extra rows, such as
// audit entries, through repos.
type ledgerMutation func(repos LedgerRepositories, l *invoicing.Ledger) error

// RecordPayment adds a completed payment to an invoice
func (s *LedgerService) RecordPayment(ctx context.Context, actor invoicing.Actor, invoiceID uuid.UUID, req RecordPaymentRequest) (*LedgerResult, error) {
	in, err := req.toInput()
	if err != nil {
		return nil, err
	}

	var payment *invoicing.Payment
	l, err := s.mutateInvoice(ctx, "record_payment", actor.CompanyID, invoiceID, func(_ LedgerRepositories, l *invoicing.Ledger) error {
		p, err := l.RecordPayment(in, req.Notify, actor)
		payment = p
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment recorded",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("amount", payment.Amount.String()),
		zap.String("method", string(payment.Method)),
		zap.String("status", string(l.Invoice.Status)))
	return newLedgerResult(l).withPayment(payment), nil
}

// RecordSplitPayment records one payment per method in a single transaction.
// Entries without a positive amount are dropped.
func (s *LedgerService) RecordSplitPayment(ctx context.Context, actor invoicing.Actor, invoiceID uuid.UUID, req RecordSplitPaymentRequest) (*LedgerResult, error) {
	entries, err := req.toEntries()
	if err != nil {
		return nil, err
	}
	var date time.Time
	if req.PaymentDate != nil {
		date = *req.PaymentDate
	}

	var recorded []*invoicing.Payment
	l, err := s.mutateInvoice(ctx, "record_split_payment", actor.CompanyID, invoiceID, func(_ LedgerRepositories, l *invoicing.Ledger) error {
		payments, err := l.RecordSplitPayment(entries, date, req.Notes, req.Notify, actor)
		recorded = payments
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Split payment recorded",
		zap.String("invoice_id", invoiceID.String()),
		zap.Int("payments", len(recorded)),
		zap.String("status", string(l.Invoice.Status)))
	result := newLedgerResult(l)
	result.Recorded = ToPaymentResponses(recorded)
	return result, nil
}

// EditPayment changes amount, method, date or notes of a completed payment
func (s *LedgerService) EditPayment(ctx context.Context, actor invoicing.Actor, paymentID uuid.UUID, req EditPaymentRequest) (*LedgerResult, error) {
	changes, err := req.toChanges()
	if err != nil {
		return nil, err
	}
	if changes.IsEmpty() {
		return nil, shared.NewDomainError(shared.CodeValidation, "nothing to change")
	}

	var payment *invoicing.Payment
	l, err := s.mutatePayment(ctx, "edit_payment", actor.CompanyID, paymentID, func(_ LedgerRepositories, l *invoicing.Ledger) error {
		p, err := l.EditPayment(paymentID, changes, actor)
		payment = p
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment edited",
		zap.String("payment_id", paymentID.String()),
		zap.String("amount", payment.Amount.String()),
		zap.String("status", string(l.Invoice.Status)))
	return newLedgerResult(l).withPayment(payment), nil
}

// RefundPayment marks a payment refunded
func (s *LedgerService) RefundPayment(ctx context.Context, actor invoicing.Actor, paymentID uuid.UUID, req ReversePaymentRequest) (*LedgerResult, error) {
	return s.reversePayment(ctx, "refund_payment", actor, paymentID, req, (*invoicing.Ledger).RefundPayment)
}

// VoidPayment marks a payment voided
func (s *LedgerService) VoidPayment(ctx context.Context, actor invoicing.Actor, paymentID uuid.UUID, req ReversePaymentRequest) (*LedgerResult, error) {
	return s.reversePayment(ctx, "void_payment", actor, paymentID, req, (*invoicing.Ledger).VoidPayment)
}

type reverseFunc func(l *invoicing.Ledger, paymentID uuid.UUID, reason string, notify bool, actor invoicing.Actor) (*invoicing.Payment, error)

func (s *LedgerService) reversePayment(ctx context.Context, op string, actor invoicing.Actor, paymentID uuid.UUID, req ReversePaymentRequest, reverse reverseFunc) (*LedgerResult, error) {
	var payment *invoicing.Payment
	l, err := s.mutatePayment(ctx, op, actor.CompanyID, paymentID, func(_ LedgerRepositories, l *invoicing.Ledger) error {
		p, err := reverse(l, paymentID, req.Reason, req.Notify, actor)
		payment = p
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment reversed",
		zap.String("operation", op),
		zap.String("payment_id", paymentID.String()),
		zap.String("payment_status", string(payment.Status)),
		zap.String("invoice_status", string(l.Invoice.Status)))
	return newLedgerResult(l).withPayment(payment), nil
}

// DeletePayment hard-deletes a payment and writes an audit entry holding a
// snapshot of the removed row. Administrators only.
func (s *LedgerService) DeletePayment(ctx context.Context, actor invoicing.Actor, paymentID uuid.UUID, req DeletePaymentRequest) (*LedgerResult, error) {
	if !actor.Admin {
		return nil, invoicing.ErrAdminRequired
	}

	var payment *invoicing.Payment
	l, err := s.mutatePayment(ctx, "delete_payment", actor.CompanyID, paymentID, func(repos LedgerRepositories, l *invoicing.Ledger) error {
		p, err := l.DeletePayment(paymentID, actor)
		if err != nil {
			return err
		}
		payment = p
		entry, err := invoicing.NewPaymentDeletedAudit(p, actor, req.Reason)
		if err != nil {
			return fmt.Errorf("failed to build audit entry: %w", err)
		}
		return repos.AuditLogs().Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Warn("Payment deleted",
		zap.String("payment_id", paymentID.String()),
		zap.String("invoice_id", payment.InvoiceID.String()),
		zap.String("amount", payment.Amount.String()),
		zap.String("actor_id", actor.UserID.String()))
	return newLedgerResult(l).withPayment(payment), nil
}

// ApplyLateFee adds a one-time late fee to an overdue invoice. A nil
// percentage uses the configured default.
func (s *LedgerService) ApplyLateFee(ctx context.Context, actor invoicing.Actor, invoiceID uuid.UUID, req ApplyLateFeeRequest) (*LedgerResult, error) {
	percentage := s.lateFeePercent
	if req.Percentage != nil {
		percentage = *req.Percentage
	}

	var fee decimal.Decimal
	l, err := s.mutateInvoice(ctx, "apply_late_fee", actor.CompanyID, invoiceID, func(_ LedgerRepositories, l *invoicing.Ledger) error {
		applied, err := l.ApplyLateFee(percentage, req.Notify)
		fee = applied.Decimal()
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Late fee applied",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("percentage", percentage.String()),
		zap.String("fee", fee.StringFixed(2)))
	result := newLedgerResult(l)
	lateFee := l.Invoice.LateFeeAmount
	result.LateFee = &lateFee
	return result, nil
}

// VoidInvoice moves an invoice to the terminal voided state
func (s *LedgerService) VoidInvoice(ctx context.Context, actor invoicing.Actor, invoiceID uuid.UUID, req VoidInvoiceRequest) (*LedgerResult, error) {
	l, err := s.mutateInvoice(ctx, "void_invoice", actor.CompanyID, invoiceID, func(_ LedgerRepositories, l *invoicing.Ledger) error {
		return l.VoidInvoice(req.Reason, req.Notify, actor)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Invoice voided",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("actor_id", actor.UserID.String()))
	return newLedgerResult(l), nil
}

// SetInvoiceStatus applies an administrator's manual status. The change is
// audited and succeeds even when the balance disagrees; the disagreement is
// returned as a warning.
func (s *LedgerService) SetInvoiceStatus(ctx context.Context, actor invoicing.Actor, invoiceID uuid.UUID, req SetInvoiceStatusRequest) (*LedgerResult, error) {
	if !actor.Admin {
		return nil, invoicing.ErrAdminRequired
	}

	var warning *invoicing.InconsistentStateWarning
	l, err := s.mutateInvoice(ctx, "set_invoice_status", actor.CompanyID, invoiceID, func(repos LedgerRepositories, l *invoicing.Ledger) error {
		from := l.Invoice.Status
		w, err := l.SetStatus(invoicing.InvoiceStatus(req.Status), actor)
		if err != nil {
			return err
		}
		warning = w
		entry, err := invoicing.NewStatusOverrideAudit(l.Invoice, from, actor, w)
		if err != nil {
			return fmt.Errorf("failed to build audit entry: %w", err)
		}
		return repos.AuditLogs().Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	result := newLedgerResult(l)
	if warning != nil {
		s.logger.Warn("Manual status disagrees with balance",
			zap.String("invoice_id", invoiceID.String()),
			zap.String("status", req.Status),
			zap.String("remaining_balance", warning.RemainingBalance.String()))
		result.Warnings = append(result.Warnings, warning)
	}
	return result, nil
}

// Reconcile re-runs the status reconciler under lock and reports drift
// between the stored status and the one the payment set implies. Invoices
// under an admin override are reported, not changed.
func (s *LedgerService) Reconcile(ctx context.Context, actor invoicing.Actor, invoiceID uuid.UUID) (*ReconcileResult, error) {
	var transition invoicing.StatusTransition
	l, err := s.mutateInvoice(ctx, "reconcile", actor.CompanyID, invoiceID, func(_ LedgerRepositories, l *invoicing.Ledger) error {
		transition = l.Reconcile()
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case transition.Changed():
		s.logger.Warn("Invoice status drift corrected",
			zap.String("invoice_id", invoiceID.String()),
			zap.String("from", string(transition.From)),
			zap.String("to", string(transition.To)))
	case transition.OverrideKept && transition.Implied != transition.To:
		s.logger.Info("Invoice status kept under admin override",
			zap.String("invoice_id", invoiceID.String()),
			zap.String("status", string(transition.To)),
			zap.String("implied", string(transition.Implied)))
	}
	return &ReconcileResult{
		InvoiceID:     l.Invoice.ID,
		InvoiceNumber: l.Invoice.InvoiceNumber,
		From:          string(transition.From),
		To:            string(l.Invoice.Status),
		Implied:       string(transition.Implied),
		Drifted:       transition.Changed(),
		Overridden:    transition.OverrideKept,
		Balance:       l.Balance(),
	}, nil
}

// GetInvoiceLedger returns an invoice with its payments and balance
func (s *LedgerService) GetInvoiceLedger(ctx context.Context, companyID, invoiceID uuid.UUID) (*LedgerResult, error) {
	inv, err := s.invoices.FindByID(ctx, companyID, invoiceID)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.FindByInvoice(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	return newLedgerResult(invoicing.NewLedger(inv, payments).WithClock(s.now)), nil
}

// ListPayments retrieves a company's payments with filtering and pagination
func (s *LedgerService) ListPayments(ctx context.Context, companyID uuid.UUID, filter PaymentListFilter) ([]PaymentResponse, int64, error) {
	payments, total, err := s.payments.List(ctx, filter.toDomain(companyID))
	if err != nil {
		return nil, 0, err
	}
	return ToPaymentResponses(payments), total, nil
}

// recordSettlement records a processor payment unless the same external
// transaction is already on the invoice. It reports whether a row was added.
func (s *LedgerService) recordSettlement(ctx context.Context, companyID, invoiceID uuid.UUID, in invoicing.PaymentInput) (bool, error) {
	added := false
	_, err := s.mutateInvoice(ctx, "record_settlement", companyID, invoiceID, func(repos LedgerRepositories, l *invoicing.Ledger) error {
		added = false
		_, err := repos.Payments().FindByExternalTxn(ctx, invoiceID, in.ExternalTxnID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if _, err := l.RecordPayment(in, true, invoicing.SystemActor(companyID)); err != nil {
			return err
		}
		added = true
		return nil
	})
	return added, err
}

// mutateInvoice locks invoiceID, applies fn and persists the outcome,
// retrying the whole transaction on a concurrency conflict.
func (s *LedgerService) mutateInvoice(ctx context.Context, op string, companyID, invoiceID uuid.UUID, fn ledgerMutation) (*invoicing.Ledger, error) {
	var ledger *invoicing.Ledger
	err := s.withRetry(ctx, op, func(repos LedgerRepositories) error {
		l, err := s.lockLedger(ctx, repos, companyID, invoiceID)
		if err != nil {
			return err
		}
		if err := fn(repos, l); err != nil {
			return err
		}
		if err := s.persist(ctx, repos, l); err != nil {
			return err
		}
		ledger = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ledger, nil
}

// mutatePayment is mutateInvoice for commands addressed by payment id
func (s *LedgerService) mutatePayment(ctx context.Context, op string, companyID, paymentID uuid.UUID, fn ledgerMutation) (*invoicing.Ledger, error) {
	var ledger *invoicing.Ledger
	err := s.withRetry(ctx, op, func(repos LedgerRepositories) error {
		p, err := repos.Payments().FindByID(ctx, companyID, paymentID)
		if err != nil {
			return err
		}
		l, err := s.lockLedger(ctx, repos, companyID, p.InvoiceID)
		if err != nil {
			return err
		}
		if err := fn(repos, l); err != nil {
			return err
		}
		if err := s.persist(ctx, repos, l); err != nil {
			return err
		}
		ledger = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ledger, nil
}

func (s *LedgerService) lockLedger(ctx context.Context, repos LedgerRepositories, companyID, invoiceID uuid.UUID) (*invoicing.Ledger, error) {
	inv, err := repos.Invoices().FindByIDForUpdate(ctx, companyID, invoiceID)
	if err != nil {
		return nil, err
	}
	payments, err := repos.Payments().FindByInvoice(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	return invoicing.NewLedger(inv, payments).WithClock(s.now), nil
}

// persist writes the invoice under its version check, then the payment rows
// and the outbox events of the command
func (s *LedgerService) persist(ctx context.Context, repos LedgerRepositories, l *invoicing.Ledger) error {
	if err := repos.Invoices().SaveWithLock(ctx, l.Invoice); err != nil {
		return err
	}

	changes := l.Changes()
	if len(changes.Created) > 0 {
		if err := repos.Payments().Create(ctx, changes.Created...); err != nil {
			return err
		}
	}
	for _, p := range changes.Updated {
		if err := repos.Payments().Update(ctx, p); err != nil {
			return err
		}
	}
	for _, p := range changes.Deleted {
		if err := repos.Payments().Delete(ctx, p.CompanyID, p.ID); err != nil {
			return err
		}
	}

	if events := l.Invoice.GetDomainEvents(); len(events) > 0 {
		if err := repos.SaveEvents(ctx, events...); err != nil {
			return fmt.Errorf("failed to save ledger events: %w", err)
		}
	}
	l.Invoice.ClearDomainEvents()
	return nil
}

// withRetry runs fn in a fresh transaction until it succeeds, fails with
// anything but a concurrency conflict, or the retry budget is spent
func (s *LedgerService) withRetry(ctx context.Context, op string, fn func(repos LedgerRepositories) error) error {
	var err error
	for attempt := 1; attempt <= s.retryBudget; attempt++ {
		err = s.scope.Execute(ctx, fn)
		if err == nil || !errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}

		s.logger.Warn("Ledger command conflicted with a concurrent update",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == s.retryBudget {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * s.retryBackoff):
		}
	}

	return shared.NewDomainError(shared.CodeConcurrencyConflict,
		fmt.Sprintf("invoice is being updated concurrently, gave up after %d attempts", s.retryBudget)).WithCause(err)
}
