package notification

import (
	"context"

	"github.com/erp/ledger/internal/domain/invoicing"
	"go.uber.org/zap"
)

// LogNotifier writes notifications to the log. Used when redis is disabled.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs n and always succeeds
func (l *LogNotifier) Notify(_ context.Context, n invoicing.Notification) error {
	fields := []zap.Field{
		zap.String("event", n.Event),
		zap.String("company_id", n.CompanyID.String()),
		zap.String("invoice_id", n.InvoiceID.String()),
		zap.String("recipient", n.Recipient),
	}
	for k, v := range n.Data {
		fields = append(fields, zap.String("data."+k, v))
	}
	l.logger.Info("Customer notification", fields...)
	return nil
}

var _ invoicing.Notifier = (*LogNotifier)(nil)
