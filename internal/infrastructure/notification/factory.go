package notification

import (
	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewNotifier selects the notification dispatcher for cfg. The redis driver
// needs a client; without one the log dispatcher is used.
func NewNotifier(cfg config.NotificationConfig, client redis.UniversalClient, logger *zap.Logger) invoicing.Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Driver == "redis" {
		if client != nil {
			logger.Info("Publishing notifications to redis", zap.String("channel", cfg.Channel))
			return NewRedisNotifier(client, cfg.Channel, logger)
		}
		logger.Warn("Notification driver is redis but redis is unavailable, logging notifications instead")
	}
	return NewLogNotifier(logger)
}
