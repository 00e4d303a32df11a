package billing

import (
	"context"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
)

// DisabledProcessor stands in for Stripe when online payments are switched off
type DisabledProcessor struct{}

// CreatePaymentSession always fails with EXTERNAL_PROCESSOR_ERROR
func (DisabledProcessor) CreatePaymentSession(context.Context, invoicing.PaymentSessionRequest) (*invoicing.PaymentSession, error) {
	return nil, shared.NewDomainError(shared.CodeExternalProcessorError, "Online payments are not configured")
}

var _ invoicing.PaymentProcessor = DisabledProcessor{}
