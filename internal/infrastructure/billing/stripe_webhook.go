package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

// ErrInvalidSignature is returned when the Stripe-Signature header does not
// match the payload
var ErrInvalidSignature = errors.New("stripe: webhook signature verification failed")

// StripeWebhookParser verifies Stripe webhook deliveries and turns paid
// checkout sessions into settlement notices
type StripeWebhookParser struct {
	secret string
	logger *zap.Logger
}

// NewStripeWebhookParser creates a new StripeWebhookParser
func NewStripeWebhookParser(config *StripeConfig, logger *zap.Logger) (*StripeWebhookParser, error) {
	if config.WebhookSecret == "" {
		return nil, fmt.Errorf("stripe: webhook secret is required")
	}
	return &StripeWebhookParser{secret: config.WebhookSecret, logger: logger}, nil
}

// ParseSettlement verifies the payload and returns the settlement it
// reports. Events the ledger does not act on return a nil notice and no
// error.
func (p *StripeWebhookParser) ParseSettlement(payload []byte, signature string) (*invoicing.SettlementNotice, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		p.logger.Warn("Rejected Stripe webhook", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	switch string(event.Type) {
	case EventCheckoutSessionCompleted, EventCheckoutAsyncPaymentSucceeded:
	default:
		p.logger.Debug("Unhandled webhook event type",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
		return nil, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	// card payments are paid on completion; delayed methods report
	// async_payment_succeeded later
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		p.logger.Info("Checkout session completed but not paid yet",
			zap.String("session_id", sess.ID),
			zap.String("payment_status", string(sess.PaymentStatus)))
		return nil, nil
	}

	md, err := parseSessionMetadata(sess.Metadata)
	if err != nil {
		p.logger.Error("Checkout session carries unusable metadata",
			zap.String("session_id", sess.ID),
			zap.Error(err))
		return nil, fmt.Errorf("checkout session %s: %w", sess.ID, err)
	}

	txnID := sess.ID
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		txnID = sess.PaymentIntent.ID
	}

	paidAt := time.Unix(event.Created, 0).UTC()
	if md.PaymentDate != nil {
		paidAt = *md.PaymentDate
	}

	p.logger.Info("Checkout session paid",
		zap.String("event_id", event.ID),
		zap.String("session_id", sess.ID),
		zap.Int("invoices", len(md.InvoiceIDs)))
	return &invoicing.SettlementNotice{
		SessionID:        sess.ID,
		ExternalTxnID:    txnID,
		CompanyID:        md.CompanyID,
		InvoiceIDs:       md.InvoiceIDs,
		AmountPerInvoice: md.Amounts,
		PaidAt:           paidAt,
	}, nil
}
