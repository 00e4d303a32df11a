package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appinvoicing "github.com/erp/ledger/internal/application/invoicing"
	"github.com/erp/ledger/internal/domain/invoicing"
)

const dateLayout = "2006-01-02"

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep-late-fees",
		Short: "Apply the late fee to every overdue invoice without one",
		Example: `  # Sweep every company at the configured percentage
  ledgerctl sweep-late-fees

  # One company at 2.5%
  ledgerctl sweep-late-fees --company 7f1c... --percent 2.5`,
		RunE: withApp(runSweep),
	}
	cmd.Flags().String("company", "", "Only sweep this company")
	cmd.Flags().String("percent", "", "Late fee percentage (default: ledger.late_fee_percent)")
	return cmd
}

func runSweep(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
	opts, err := sweepOptions(cmd)
	if err != nil {
		return err
	}
	result, err := a.sweeper.Sweep(ctx, opts)
	if err != nil {
		return err
	}
	a.log.Info("Late fee sweep finished",
		zap.Int("companies", result.Companies),
		zap.Int("applied", result.Applied),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return printJSON(cmd.OutOrStdout(), result)
}

func sweepOptions(cmd *cobra.Command) (appinvoicing.SweepOptions, error) {
	var opts appinvoicing.SweepOptions
	if raw, _ := cmd.Flags().GetString("company"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return opts, fmt.Errorf("invalid --company: %w", err)
		}
		opts.CompanyID = &id
	}
	if raw, _ := cmd.Flags().GetString("percent"); raw != "" {
		pct, err := decimal.NewFromString(raw)
		if err != nil {
			return opts, fmt.Errorf("invalid --percent: %w", err)
		}
		if !pct.IsPositive() {
			return opts, fmt.Errorf("--percent must be greater than zero")
		}
		opts.Percentage = &pct
	}
	return opts, nil
}

func newReconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile <invoice-id>...",
		Short: "Recompute invoice status from its payments",
		Long: `Recompute the status of one or more invoices from their payment history.
Invoices under an administrator's manual status override are reported
but left unchanged.`,
		Args: cobra.MinimumNArgs(1),
		RunE: withApp(runReconcile),
	}
	cmd.Flags().String("company", "", "Company owning the invoices (required)")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func runReconcile(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	companyID, invoiceIDs, err := reconcileTargets(cmd, args)
	if err != nil {
		return err
	}

	actor := invoicing.SystemActor(companyID)
	results := make([]*appinvoicing.ReconcileResult, 0, len(invoiceIDs))
	for _, id := range invoiceIDs {
		result, err := a.ledger.Reconcile(ctx, actor, id)
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", id, err)
		}
		results = append(results, result)
	}
	return printJSON(cmd.OutOrStdout(), results)
}

func reconcileTargets(cmd *cobra.Command, args []string) (uuid.UUID, []uuid.UUID, error) {
	raw, _ := cmd.Flags().GetString("company")
	companyID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("invalid --company: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return uuid.Nil, nil, fmt.Errorf("invalid invoice id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}
	return companyID, ids, nil
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "export",
		Short:   "Write a company's payments to a spreadsheet",
		Example: `  ledgerctl export --company 7f1c... --from 2026-01-01 --to 2026-03-31 --out q1.xlsx`,
		RunE:    withApp(runExport),
	}
	cmd.Flags().String("company", "", "Company to export (required)")
	cmd.Flags().String("out", "", "Output file (default: the generated file name)")
	cmd.Flags().String("from", "", "First payment date, YYYY-MM-DD")
	cmd.Flags().String("to", "", "Last payment date, YYYY-MM-DD")
	cmd.Flags().String("status", "", "Only payments with this status")
	cmd.Flags().String("method", "", "Only payments with this method")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func runExport(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
	companyID, filter, err := exportFilter(cmd)
	if err != nil {
		return err
	}
	file, err := a.exporter.ExportPayments(ctx, companyID, filter)
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = file.FileName
	}
	if err := os.WriteFile(out, file.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d payments written to %s\n", file.Rows, out)
	return nil
}

func exportFilter(cmd *cobra.Command) (uuid.UUID, appinvoicing.PaymentListFilter, error) {
	var filter appinvoicing.PaymentListFilter

	raw, _ := cmd.Flags().GetString("company")
	companyID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, filter, fmt.Errorf("invalid --company: %w", err)
	}

	from, err := dateFlag(cmd, "from")
	if err != nil {
		return uuid.Nil, filter, err
	}
	to, err := dateFlag(cmd, "to")
	if err != nil {
		return uuid.Nil, filter, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return uuid.Nil, filter, fmt.Errorf("--to is before --from")
	}
	filter.From = from
	filter.To = to
	filter.Status, _ = cmd.Flags().GetString("status")
	filter.Method, _ = cmd.Flags().GetString("method")
	return companyID, filter, nil
}

func dateFlag(cmd *cobra.Command, name string) (*time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s, use YYYY-MM-DD: %w", name, err)
	}
	return &t, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
