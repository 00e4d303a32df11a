package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	appinvoicing "github.com/erp/ledger/internal/application/invoicing"
	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/infrastructure/billing"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Stripe webhooks are small; anything larger is not a settlement event
const maxWebhookPayloadSize = 65536

// SettlementParser verifies and decodes processor webhook payloads
type SettlementParser interface {
	ParseSettlement(payload []byte, signature string) (*invoicing.SettlementNotice, error)
}

// SettlementProcessor records the payments a settlement covers
type SettlementProcessor interface {
	OnPaymentSucceeded(ctx context.Context, notice invoicing.SettlementNotice) (*appinvoicing.SettlementResult, error)
}

// StripeWebhookHandler receives processor callbacks. The route is public;
// the signature header authenticates the caller.
type StripeWebhookHandler struct {
	BaseHandler
	parser     SettlementParser
	settlement SettlementProcessor
}

// NewStripeWebhookHandler creates a new StripeWebhookHandler
func NewStripeWebhookHandler(parser SettlementParser, settlement SettlementProcessor) *StripeWebhookHandler {
	return &StripeWebhookHandler{parser: parser, settlement: settlement}
}

// StripeWebhookResponse acknowledges a webhook delivery
//
//	@Description	Stripe webhook acknowledgement
type StripeWebhookResponse struct {
	Received bool                           `json:"received" example:"true"`
	Ignored  bool                           `json:"ignored,omitempty"`
	Result   *appinvoicing.SettlementResult `json:"result,omitempty"`
}

// HandleStripeWebhook godoc
//
//	@ID				handleStripeWebhook
//	@Summary		Handle Stripe webhook
//	@Description	Receives checkout settlement events and records the covered invoice payments
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Param			Stripe-Signature	header		string	true	"Stripe webhook signature"
//	@Success		200					{object}	APIResponse[StripeWebhookResponse]
//	@Failure		400					{object}	ErrorResponse	"Invalid signature"
//	@Failure		413					{object}	ErrorResponse	"Payload too large"
//	@Failure		500					{object}	ErrorResponse
//	@Failure		503					{object}	ErrorResponse	"Some invoices failed transiently; redeliver the event"
//	@Router			/webhooks/stripe [post]
func (h *StripeWebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayloadSize+1))
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}
	if len(payload) > maxWebhookPayloadSize {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, "Payload too large")
		return
	}

	notice, err := h.parser.ParseSettlement(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidSignature, "Webhook signature verification failed")
			return
		}
		// Malformed but authentic events are acknowledged so Stripe stops retrying
		logger.FromContext(c.Request.Context()).Warn("Undecodable Stripe event", zap.Error(err))
		h.Success(c, StripeWebhookResponse{Received: true, Ignored: true})
		return
	}
	if notice == nil {
		h.Success(c, StripeWebhookResponse{Received: true, Ignored: true})
		return
	}

	result, err := h.settlement.OnPaymentSucceeded(c.Request.Context(), *notice)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.NeedsRedelivery() {
		// A 5xx makes Stripe redeliver; settled invoices keep their claims
		logger.FromContext(c.Request.Context()).Warn("Settlement incomplete, awaiting redelivery",
			zap.String("session_id", result.SessionID),
			zap.Int("settled", len(result.Settled)),
			zap.Any("failed", result.Failed),
		)
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeSettlementIncomplete, "Settlement incomplete, retry later")
		return
	}
	h.Success(c, StripeWebhookResponse{Received: true, Result: result})
}
