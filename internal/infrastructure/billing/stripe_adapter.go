package billing

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"go.uber.org/zap"
)

// StripeCheckoutAdapter creates hosted Stripe Checkout sessions for
// multi-invoice payments. One line item is created per invoice.
type StripeCheckoutAdapter struct {
	config *StripeConfig
	now    func() time.Time
	logger *zap.Logger
}

// NewStripeCheckoutAdapter creates a new Stripe checkout adapter
func NewStripeCheckoutAdapter(config *StripeConfig, logger *zap.Logger) (*StripeCheckoutAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Initialize Stripe client
	config.InitStripeClient()

	return &StripeCheckoutAdapter{
		config: config,
		now:    time.Now,
		logger: logger,
	}, nil
}

// CreatePaymentSession creates a Checkout session in payment mode. The
// session metadata is copied onto the PaymentIntent so it survives into
// the payment's own webhooks.
func (a *StripeCheckoutAdapter) CreatePaymentSession(ctx context.Context, req invoicing.PaymentSessionRequest) (*invoicing.PaymentSession, error) {
	a.logger.Debug("Creating Stripe checkout session",
		zap.String("company_id", req.CompanyID.String()),
		zap.String("customer_id", req.CustomerID.String()),
		zap.Int("invoices", len(req.Lines)),
		zap.String("amount", req.Amount.String()))

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(a.config.SuccessURL),
		CancelURL:         stripe.String(a.config.CancelURL),
		ClientReferenceID: stripe.String(req.CustomerID.String()),
		LineItems:         make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Lines)),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{},
		},
	}
	params.Context = ctx

	if a.config.SessionTTL > 0 {
		params.ExpiresAt = stripe.Int64(a.now().Add(a.config.SessionTTL).Unix())
	}

	for _, line := range req.Lines {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(a.config.currency()),
				UnitAmount: stripe.Int64(line.Amount.Cents()),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Invoice " + line.InvoiceNumber),
				},
			},
		})
	}

	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	maps.Copy(params.PaymentIntentData.Metadata, req.Metadata)

	sess, err := session.New(params)
	if err != nil {
		a.logger.Error("Failed to create Stripe checkout session",
			zap.String("company_id", req.CompanyID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}

	a.logger.Info("Created Stripe checkout session",
		zap.String("company_id", req.CompanyID.String()),
		zap.String("session_id", sess.ID))

	out := &invoicing.PaymentSession{
		SessionID:  sess.ID,
		SessionURL: sess.URL,
	}
	if sess.ExpiresAt > 0 {
		out.ExpiresAt = time.Unix(sess.ExpiresAt, 0).UTC()
	}
	return out, nil
}

// Ensure StripeCheckoutAdapter implements PaymentProcessor
var _ invoicing.PaymentProcessor = (*StripeCheckoutAdapter)(nil)
