package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultSettlementTTL = 7 * 24 * time.Hour

// SettlementService records the payments of a completed processor session
type SettlementService struct {
	ledger *LedgerService
	store  shared.IdempotencyStore
	ttl    time.Duration
	logger *zap.Logger
}

// SettlementServiceConfig holds the dependencies of SettlementService
type SettlementServiceConfig struct {
	Ledger *LedgerService
	// Store remembers settled (session, invoice) pairs across webhook redeliveries
	Store  shared.IdempotencyStore
	TTL    time.Duration
	Logger *zap.Logger
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(config SettlementServiceConfig) *SettlementService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := config.TTL
	if ttl <= 0 {
		ttl = defaultSettlementTTL
	}
	return &SettlementService{
		ledger: config.Ledger,
		store:  config.Store,
		ttl:    ttl,
		logger: logger,
	}
}

// OnPaymentSucceeded records one stripe_online payment per invoice of the
// notice, each in its own transaction. A failing invoice does not stop the
// others; the result lists what happened to every invoice.
func (s *SettlementService) OnPaymentSucceeded(ctx context.Context, notice invoicing.SettlementNotice) (*SettlementResult, error) {
	if notice.SessionID == "" || notice.ExternalTxnID == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "settlement needs a session id and a transaction id")
	}
	if len(notice.InvoiceIDs) == 0 {
		return nil, invoicing.ErrEmptyInvoiceSelection
	}

	paidAt := notice.PaidAt
	if paidAt.IsZero() {
		paidAt = s.ledger.now()
	}

	result := &SettlementResult{SessionID: notice.SessionID}
	for _, invoiceID := range notice.InvoiceIDs {
		logger := s.logger.With(
			zap.String("session_id", notice.SessionID),
			zap.String("invoice_id", invoiceID.String()))

		amount, ok := notice.AmountPerInvoice[invoiceID]
		if !ok {
			logger.Error("Settlement carries no amount for invoice")
			result.Failed = append(result.Failed, SettlementFailure{InvoiceID: invoiceID, Error: "no amount for invoice"})
			continue
		}

		key := settlementKey(notice.SessionID, invoiceID)
		claimed, err := s.claim(ctx, key)
		if err != nil {
			logger.Warn("Idempotency store unavailable, relying on transaction id check", zap.Error(err))
		} else if !claimed {
			logger.Info("Settlement already processed")
			result.Duplicates = append(result.Duplicates, invoiceID)
			continue
		}

		added, err := s.ledger.recordSettlement(ctx, notice.CompanyID, invoiceID, invoicing.PaymentInput{
			Amount:        amount,
			Method:        invoicing.PaymentMethodStripeOnline,
			PaymentDate:   paidAt,
			Notes:         fmt.Sprintf("Online payment, processor session %s", notice.SessionID),
			ExternalTxnID: notice.ExternalTxnID,
		})
		switch {
		case err == nil && added:
			logger.Info("Settlement recorded", zap.String("amount", amount.String()))
			result.Settled = append(result.Settled, invoiceID)
		case err == nil:
			logger.Info("Transaction already on invoice")
			result.Duplicates = append(result.Duplicates, invoiceID)
		case errors.Is(err, shared.ErrInvalidState):
			// a voided invoice keeps its claim; the money needs a manual refund
			logger.Warn("Settlement skipped, invoice no longer accepts payments",
				zap.String("amount", amount.String()), zap.Error(err))
			result.Skipped = append(result.Skipped, invoiceID)
		default:
			logger.Error("Failed to record settlement", zap.Error(err))
			s.release(ctx, key)
			result.Failed = append(result.Failed, SettlementFailure{
				InvoiceID: invoiceID,
				Error:     err.Error(),
				Retryable: settlementRetryable(err),
			})
		}
	}
	return result, nil
}

// settlementRetryable treats infrastructure failures and retryable domain
// errors as transient. Other domain errors fail the same way every time.
func settlementRetryable(err error) bool {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Retryable()
	}
	return true
}

func settlementKey(sessionID string, invoiceID uuid.UUID) string {
	return "settlement:" + sessionID + ":" + invoiceID.String()
}

func (s *SettlementService) claim(ctx context.Context, key string) (bool, error) {
	if s.store == nil {
		return true, nil
	}
	return s.store.MarkProcessed(ctx, key, s.ttl)
}

func (s *SettlementService) release(ctx context.Context, key string) {
	if s.store == nil {
		return
	}
	if err := s.store.Release(ctx, key); err != nil {
		s.logger.Warn("Failed to release settlement claim", zap.String("key", key), zap.Error(err))
	}
}
