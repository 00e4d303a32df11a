package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the pub/sub channel the mail service subscribes to
const DefaultChannel = "ledger:notifications"

// RedisNotifier publishes notifications as JSON on a redis channel
type RedisNotifier struct {
	client  redis.UniversalClient
	channel string
	now     func() time.Time
	logger  *zap.Logger
}

// NewRedisNotifier creates a notifier on an existing client. An empty
// channel selects DefaultChannel.
func NewRedisNotifier(client redis.UniversalClient, channel string, logger *zap.Logger) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisNotifier{client: client, channel: channel, now: time.Now, logger: logger}
}

// Notify publishes n. A message with no subscribers is not an error.
func (r *RedisNotifier) Notify(ctx context.Context, n invoicing.Notification) error {
	if n.SentAt.IsZero() {
		n.SentAt = r.now().UTC()
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	receivers, err := r.client.Publish(ctx, r.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	if receivers == 0 {
		r.logger.Warn("Notification published with no subscribers",
			zap.String("channel", r.channel),
			zap.String("event", n.Event),
			zap.String("invoice_id", n.InvoiceID.String()))
	}
	return nil
}

// Ensure RedisNotifier implements Notifier
var _ invoicing.Notifier = (*RedisNotifier)(nil)
