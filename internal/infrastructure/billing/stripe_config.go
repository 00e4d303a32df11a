package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
)

// StripeConfig holds configuration for the Stripe checkout integration
type StripeConfig struct {
	// SecretKey is the Stripe secret API key (sk_test_xxx or sk_live_xxx)
	SecretKey string `json:"secret_key" mapstructure:"secret_key"`

	// WebhookSecret is the secret for verifying webhook signatures
	WebhookSecret string `json:"webhook_secret" mapstructure:"webhook_secret"`

	// IsTestMode indicates if using Stripe test mode
	IsTestMode bool `json:"is_test_mode" mapstructure:"is_test_mode"`

	// Currency of every checkout session (e.g., "usd")
	Currency string `json:"currency" mapstructure:"currency"`

	// SuccessURL is where the payer lands after a paid checkout.
	// {CHECKOUT_SESSION_ID} is substituted by Stripe.
	SuccessURL string `json:"success_url" mapstructure:"success_url"`

	// CancelURL is where the payer lands after abandoning checkout
	CancelURL string `json:"cancel_url" mapstructure:"cancel_url"`

	// SessionTTL is how long a checkout session stays payable.
	// Stripe accepts 30 minutes to 24 hours.
	SessionTTL time.Duration `json:"session_ttl" mapstructure:"session_ttl"`
}

// DefaultStripeConfig returns a default configuration for development/testing
func DefaultStripeConfig() *StripeConfig {
	return &StripeConfig{
		IsTestMode: true,
		Currency:   "usd",
		SessionTTL: time.Hour,
	}
}

// Validate validates the Stripe configuration
func (c *StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("stripe: secret key is required")
	}

	// Validate key format
	if c.IsTestMode {
		if len(c.SecretKey) > 7 && c.SecretKey[:7] != "sk_test" {
			return fmt.Errorf("stripe: test mode enabled but secret key is not a test key")
		}
	} else {
		if len(c.SecretKey) > 7 && c.SecretKey[:7] != "sk_live" {
			return fmt.Errorf("stripe: live mode enabled but secret key is not a live key")
		}
	}

	if c.Currency == "" {
		return fmt.Errorf("stripe: currency is required")
	}
	if c.SuccessURL == "" || c.CancelURL == "" {
		return fmt.Errorf("stripe: success and cancel urls are required")
	}
	if c.SessionTTL != 0 && (c.SessionTTL < 30*time.Minute || c.SessionTTL > 24*time.Hour) {
		return fmt.Errorf("stripe: session ttl must be between 30m and 24h, got %s", c.SessionTTL)
	}

	return nil
}

// currency returns the configured currency in the lower case Stripe expects
func (c *StripeConfig) currency() string {
	return strings.ToLower(c.Currency)
}

// InitStripeClient initializes the Stripe client with the configured API key
func (c *StripeConfig) InitStripeClient() {
	stripe.Key = c.SecretKey
}
