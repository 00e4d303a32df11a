package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appinvoicing "github.com/erp/ledger/internal/application/invoicing"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/export"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/persistence"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Maintenance commands for the invoice payment ledger",
		Long: `ledgerctl runs the ledger's batch jobs directly against the database.

Configuration is read the same way as the API server: config.yaml, a .env
file and LEDGER_* environment variables. Events raised by a command are
written to the outbox and delivered by the running server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newSweepCmd(),
		newReconcileCmd(),
		newExportCmd(),
	)
	return root
}

// app holds what every command needs
type app struct {
	log      *zap.Logger
	db       *persistence.Database
	ledger   *appinvoicing.LedgerService
	sweeper  *appinvoicing.LateFeeSweeper
	exporter *appinvoicing.ExportService
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	level, _ := cmd.Flags().GetString("log-level")
	log, err := logger.New(&logger.Config{
		Level:      level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, logger.NewGormLogger(log, logger.MapGormLogLevel(level), logger.WithRetryableErrors(persistence.IsRetryableTxError)))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	serializer := event.NewEventSerializer()
	event.RegisterLedgerEvents(serializer)
	invoices := persistence.NewGormInvoiceRepository(db.DB)
	payments := persistence.NewGormPaymentRepository(db.DB)

	ledger := appinvoicing.NewLedgerService(appinvoicing.LedgerServiceConfig{
		Scope:          persistence.NewGormLedgerScope(db.DB, event.NewOutboxPublisher(serializer)),
		Invoices:       invoices,
		Payments:       payments,
		LateFeePercent: cfg.Ledger.LateFeePercent,
		RetryBudget:    cfg.Ledger.RetryBudget,
		RetryBackoff:   cfg.Ledger.RetryBackoff,
		Logger:         log,
	})
	return &app{
		log:    log,
		db:     db,
		ledger: ledger,
		sweeper: appinvoicing.NewLateFeeSweeper(appinvoicing.LateFeeSweeperConfig{
			Ledger:    ledger,
			Invoices:  invoices,
			BatchSize: cfg.Scheduler.BatchSize,
			Notify:    true,
			Logger:    log,
		}),
		exporter: appinvoicing.NewExportService(invoices, payments, export.NewXLSXWriter(cfg.App.Name), log),
	}, nil
}

func (a *app) Close() {
	_ = a.db.Close()
	_ = logger.Sync(a.log)
}

// withApp wraps a command body with setup and teardown of the app
func withApp(run func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd.Context(), cmd, a, args)
	}
}
