package invoicing

import (
	"context"
	"errors"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LateFeeSweeper applies the late fee to every overdue invoice that does not
// carry one yet
type LateFeeSweeper struct {
	ledger    *LedgerService
	invoices  invoicing.InvoiceRepository
	batchSize int
	notify    bool
	logger    *zap.Logger
}

// LateFeeSweeperConfig holds the dependencies of LateFeeSweeper
type LateFeeSweeperConfig struct {
	Ledger    *LedgerService
	Invoices  invoicing.InvoiceRepository
	BatchSize int
	// Notify sends the customer a late fee notice for every applied fee
	Notify bool
	Logger *zap.Logger
}

// NewLateFeeSweeper creates a new LateFeeSweeper
func NewLateFeeSweeper(config LateFeeSweeperConfig) *LateFeeSweeper {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &LateFeeSweeper{
		ledger:    config.Ledger,
		invoices:  config.Invoices,
		batchSize: batchSize,
		notify:    config.Notify,
		logger:    logger,
	}
}

// SweepOptions narrows one sweep. Zero values sweep every company at the
// configured percentage.
type SweepOptions struct {
	CompanyID  *uuid.UUID
	Percentage *decimal.Decimal
}

// Sweep runs one pass. Invoices that no longer qualify when locked are
// counted as skipped. Each company is walked once in (due date, id) order,
// so a candidate that keeps failing or being skipped never hides the rest.
func (s *LateFeeSweeper) Sweep(ctx context.Context, opts SweepOptions) (*LateFeeSweepResult, error) {
	asOf := s.ledger.now()

	var companies []uuid.UUID
	if opts.CompanyID != nil {
		companies = []uuid.UUID{*opts.CompanyID}
	} else {
		found, err := s.invoices.CompaniesWithLateFeeCandidates(ctx, asOf)
		if err != nil {
			return nil, err
		}
		companies = found
	}

	result := &LateFeeSweepResult{}
	for _, companyID := range companies {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Companies++
		if err := s.sweepCompany(ctx, companyID, opts.Percentage, result); err != nil {
			return result, err
		}
	}

	s.logger.Info("Late fee sweep finished",
		zap.Int("companies", result.Companies),
		zap.Int("applied", result.Applied),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (s *LateFeeSweeper) sweepCompany(ctx context.Context, companyID uuid.UUID, percentage *decimal.Decimal, result *LateFeeSweepResult) error {
	actor := invoicing.SystemActor(companyID)
	asOf := s.ledger.now()
	var cursor *invoicing.LateFeeCursor

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		candidates, err := s.invoices.FindLateFeeCandidates(ctx, companyID, asOf, cursor, s.batchSize)
		if err != nil {
			return err
		}

		for _, inv := range candidates {
			_, err := s.ledger.ApplyLateFee(ctx, actor, inv.ID, ApplyLateFeeRequest{Percentage: percentage, Notify: s.notify})
			switch {
			case err == nil:
				result.Applied++
			case errors.Is(err, shared.ErrInvalidState):
				result.Skipped++
			default:
				result.Failed++
				s.logger.Error("Failed to apply late fee",
					zap.String("company_id", companyID.String()),
					zap.String("invoice_id", inv.ID.String()),
					zap.Error(err))
			}
		}

		if len(candidates) < s.batchSize {
			return nil
		}
		if cursor = invoicing.CursorAfter(candidates[len(candidates)-1]); cursor == nil {
			return nil
		}
	}
}
