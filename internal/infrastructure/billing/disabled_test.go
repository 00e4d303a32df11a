package billing

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
)

func TestDisabledProcessor(t *testing.T) {
	session, err := DisabledProcessor{}.CreatePaymentSession(context.Background(), invoicing.PaymentSessionRequest{})
	assert.Nil(t, session)
	assert.ErrorIs(t, err, shared.ErrExternalProcessor)
}
