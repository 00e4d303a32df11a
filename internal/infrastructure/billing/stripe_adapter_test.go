package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	appinvoicing "github.com/erp/ledger/internal/application/invoicing"
	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/form"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

// mockBackend implements stripe.Backend for testing
type mockBackend struct {
	handler func(method, path string, params stripe.ParamsContainer) ([]byte, error)
}

func (m *mockBackend) Call(method, path, key string, params stripe.ParamsContainer, v stripe.LastResponseSetter) error {
	data, err := m.handler(method, path, params)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (m *mockBackend) CallStreaming(method, path, key string, params stripe.ParamsContainer, v stripe.StreamingLastResponseSetter) error {
	return nil
}

func (m *mockBackend) CallRaw(method, path, key string, body *form.Values, params *stripe.Params, v stripe.LastResponseSetter) error {
	return nil
}

func (m *mockBackend) CallMultipart(method, path, key, boundary string, body *bytes.Buffer, params *stripe.Params, v stripe.LastResponseSetter) error {
	return nil
}

func (m *mockBackend) SetMaxNetworkRetries(maxNetworkRetries int64) {}

// testConfig returns a valid test configuration
func testConfig() *StripeConfig {
	return &StripeConfig{
		SecretKey:     "sk_test_123456789",
		WebhookSecret: "whsec_test_123456789",
		IsTestMode:    true,
		Currency:      "USD",
		SuccessURL:    "https://pay.example.test/done?session={CHECKOUT_SESSION_ID}",
		CancelURL:     "https://pay.example.test/cancelled",
		SessionTTL:    time.Hour,
	}
}

// setupMockBackend sets up a mock Stripe backend for testing
func setupMockBackend(handler func(method, path string, params stripe.ParamsContainer) ([]byte, error)) func() {
	mock := &mockBackend{handler: handler}
	stripe.SetBackend(stripe.APIBackend, mock)
	return func() {
		// Reset to default backend after test
		stripe.SetBackend(stripe.APIBackend, nil)
	}
}

// ============================================================================
// NewStripeCheckoutAdapter Tests
// ============================================================================

func TestNewStripeCheckoutAdapter_InvalidConfig(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *StripeConfig)
		expectedErr string
	}{
		{"missing secret key", func(c *StripeConfig) { c.SecretKey = "" }, "secret key is required"},
		{"test mode with live key", func(c *StripeConfig) { c.SecretKey = "sk_live_123456789" }, "test mode enabled but secret key is not a test key"},
		{"live mode with test key", func(c *StripeConfig) { c.IsTestMode = false }, "live mode enabled but secret key is not a live key"},
		{"missing currency", func(c *StripeConfig) { c.Currency = "" }, "currency is required"},
		{"missing redirect", func(c *StripeConfig) { c.CancelURL = "" }, "success and cancel urls are required"},
		{"session ttl too short", func(c *StripeConfig) { c.SessionTTL = time.Minute }, "session ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig()
			tt.mutate(config)

			adapter, err := NewStripeCheckoutAdapter(config, zap.NewNop())

			assert.Error(t, err)
			assert.Nil(t, adapter)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

// ============================================================================
// CreatePaymentSession Tests
// ============================================================================

func sessionRequest() invoicing.PaymentSessionRequest {
	a, b := uuid.New(), uuid.New()
	return invoicing.PaymentSessionRequest{
		CompanyID:  uuid.New(),
		CustomerID: uuid.New(),
		Amount:     valueobject.MustMoney("350.50"),
		Lines: []invoicing.SessionLine{
			{InvoiceID: a, InvoiceNumber: "INV-1001", Amount: valueobject.MustMoney("100.00")},
			{InvoiceID: b, InvoiceNumber: "INV-1002", Amount: valueobject.MustMoney("250.50")},
		},
		Metadata: map[string]string{
			appinvoicing.MetadataInvoiceIDs: a.String() + "," + b.String(),
			appinvoicing.MetadataAmounts:    "100.00,250.50",
		},
	}
}

func TestCreatePaymentSession_Success(t *testing.T) {
	adapter, err := NewStripeCheckoutAdapter(testConfig(), zap.NewNop())
	require.NoError(t, err)
	fixed := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	adapter.now = func() time.Time { return fixed }

	var captured *stripe.CheckoutSessionParams
	cleanup := setupMockBackend(func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
		if method == "POST" && path == "/v1/checkout/sessions" {
			captured = params.(*stripe.CheckoutSessionParams)
			return json.Marshal(map[string]any{
				"id":         "cs_test_abc",
				"object":     "checkout.session",
				"url":        "https://checkout.stripe.com/c/pay/cs_test_abc",
				"expires_at": fixed.Add(time.Hour).Unix(),
			})
		}
		return nil, fmt.Errorf("unexpected call: %s %s", method, path)
	})
	defer cleanup()

	req := sessionRequest()
	out, err := adapter.CreatePaymentSession(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "cs_test_abc", out.SessionID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_abc", out.SessionURL)
	assert.Equal(t, fixed.Add(time.Hour), out.ExpiresAt)

	require.NotNil(t, captured)
	assert.Equal(t, "payment", *captured.Mode)
	assert.Equal(t, fixed.Add(time.Hour).Unix(), *captured.ExpiresAt)
	require.Len(t, captured.LineItems, 2)
	assert.Equal(t, int64(10000), *captured.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, int64(25050), *captured.LineItems[1].PriceData.UnitAmount)
	assert.Equal(t, "usd", *captured.LineItems[1].PriceData.Currency)
	assert.Equal(t, "Invoice INV-1002", *captured.LineItems[1].PriceData.ProductData.Name)
	assert.Equal(t, "100.00,250.50", captured.Metadata[appinvoicing.MetadataAmounts])
	assert.Equal(t, "100.00,250.50", captured.PaymentIntentData.Metadata[appinvoicing.MetadataAmounts])
}

func TestCreatePaymentSession_StripeError(t *testing.T) {
	adapter, err := NewStripeCheckoutAdapter(testConfig(), zap.NewNop())
	require.NoError(t, err)

	cleanup := setupMockBackend(func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
		return nil, &stripe.Error{HTTPStatusCode: 402, Msg: "amount too small"}
	})
	defer cleanup()

	out, err := adapter.CreatePaymentSession(context.Background(), sessionRequest())
	assert.Nil(t, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create checkout session")

	var stripeErr *stripe.Error
	assert.True(t, errors.As(err, &stripeErr))
}

// ============================================================================
// Webhook Tests
// ============================================================================

func signedEvent(t *testing.T, secret, eventType string, session map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_" + uuid.NewString()[:8],
		"object":      "event",
		"type":        eventType,
		"created":     time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC).Unix(),
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": session},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: secret})
	return payload, signed.Header
}

func TestStripeWebhookParser_PaidCheckout(t *testing.T) {
	parser, err := NewStripeWebhookParser(testConfig(), zap.NewNop())
	require.NoError(t, err)

	companyID, a, b := uuid.New(), uuid.New(), uuid.New()
	payload, header := signedEvent(t, testConfig().WebhookSecret, EventCheckoutSessionCompleted, map[string]any{
		"id":             "cs_test_abc",
		"object":         "checkout.session",
		"payment_status": "paid",
		"payment_intent": "pi_123",
		"metadata": map[string]string{
			appinvoicing.MetadataCompanyID:  companyID.String(),
			appinvoicing.MetadataInvoiceIDs: a.String() + ", " + b.String(),
			appinvoicing.MetadataAmounts:    "100.00,250.50",
		},
	})

	notice, err := parser.ParseSettlement(payload, header)
	require.NoError(t, err)
	require.NotNil(t, notice)

	assert.Equal(t, "cs_test_abc", notice.SessionID)
	assert.Equal(t, "pi_123", notice.ExternalTxnID)
	assert.Equal(t, companyID, notice.CompanyID)
	assert.Equal(t, []uuid.UUID{a, b}, notice.InvoiceIDs)
	assert.Equal(t, "250.50", notice.AmountPerInvoice[b].String())
	assert.Equal(t, time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC), notice.PaidAt)
}

func TestStripeWebhookParser_PaymentDateFromMetadata(t *testing.T) {
	parser, err := NewStripeWebhookParser(testConfig(), zap.NewNop())
	require.NoError(t, err)

	id := uuid.New()
	payload, header := signedEvent(t, testConfig().WebhookSecret, EventCheckoutAsyncPaymentSucceeded, map[string]any{
		"id":             "cs_test_async",
		"object":         "checkout.session",
		"payment_status": "paid",
		"metadata": map[string]string{
			appinvoicing.MetadataCompanyID:  uuid.NewString(),
			appinvoicing.MetadataInvoiceIDs: id.String(),
			appinvoicing.MetadataAmounts:    "75.00",
			appinvoicing.MetadataPaymentDay: "2026-03-01",
		},
	})

	notice, err := parser.ParseSettlement(payload, header)
	require.NoError(t, err)
	assert.Equal(t, "cs_test_async", notice.ExternalTxnID, "falls back to the session id")
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), notice.PaidAt)
}

func TestStripeWebhookParser_IgnoredEvents(t *testing.T) {
	parser, err := NewStripeWebhookParser(testConfig(), zap.NewNop())
	require.NoError(t, err)
	secret := testConfig().WebhookSecret

	t.Run("other event type", func(t *testing.T) {
		payload, header := signedEvent(t, secret, "customer.created", map[string]any{"id": "cus_1", "object": "customer"})
		notice, err := parser.ParseSettlement(payload, header)
		assert.NoError(t, err)
		assert.Nil(t, notice)
	})

	t.Run("completed but unpaid", func(t *testing.T) {
		payload, header := signedEvent(t, secret, EventCheckoutSessionCompleted, map[string]any{
			"id": "cs_1", "object": "checkout.session", "payment_status": "unpaid",
		})
		notice, err := parser.ParseSettlement(payload, header)
		assert.NoError(t, err)
		assert.Nil(t, notice)
	})
}

func TestStripeWebhookParser_Rejections(t *testing.T) {
	parser, err := NewStripeWebhookParser(testConfig(), zap.NewNop())
	require.NoError(t, err)

	t.Run("bad signature", func(t *testing.T) {
		payload, _ := signedEvent(t, "whsec_other", EventCheckoutSessionCompleted, map[string]any{"id": "cs_1"})
		_, err := parser.ParseSettlement(payload, "t=1,v1=deadbeef")
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("mismatched metadata lists", func(t *testing.T) {
		payload, header := signedEvent(t, testConfig().WebhookSecret, EventCheckoutSessionCompleted, map[string]any{
			"id":             "cs_2",
			"object":         "checkout.session",
			"payment_status": "paid",
			"metadata": map[string]string{
				appinvoicing.MetadataCompanyID:  uuid.NewString(),
				appinvoicing.MetadataInvoiceIDs: uuid.NewString() + "," + uuid.NewString(),
				appinvoicing.MetadataAmounts:    "10.00",
			},
		})
		_, err := parser.ParseSettlement(payload, header)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidSignature)
		assert.Contains(t, err.Error(), "2 invoices but 1 amounts")
	})
}

func TestNewStripeWebhookParser_RequiresSecret(t *testing.T) {
	config := testConfig()
	config.WebhookSecret = ""
	_, err := NewStripeWebhookParser(config, zap.NewNop())
	assert.Error(t, err)
}
