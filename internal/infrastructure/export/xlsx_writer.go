package export

import (
	"fmt"
	"io"
	"time"

	appinvoicing "github.com/erp/ledger/internal/application/invoicing"
	"github.com/xuri/excelize/v2"
)

const paymentsSheet = "Payments"

type paymentColumn struct {
	Header string
	Width  float64
	Value  func(r appinvoicing.PaymentExportRow) any
}

var paymentColumns = []paymentColumn{
	{Header: "Invoice", Width: 16, Value: func(r appinvoicing.PaymentExportRow) any { return r.InvoiceNumber }},
	{Header: "Payment date", Width: 14, Value: func(r appinvoicing.PaymentExportRow) any { return r.PaymentDate.UTC().Format(time.DateOnly) }},
	{Header: "Method", Width: 14, Value: func(r appinvoicing.PaymentExportRow) any { return r.Method }},
	{Header: "Amount", Width: 14, Value: func(r appinvoicing.PaymentExportRow) any { return r.Amount.Float64() }},
	{Header: "Status", Width: 12, Value: func(r appinvoicing.PaymentExportRow) any { return r.Status }},
	{Header: "Refund reason", Width: 30, Value: func(r appinvoicing.PaymentExportRow) any { return r.RefundReason }},
	{Header: "Recorded by", Width: 38, Value: func(r appinvoicing.PaymentExportRow) any { return r.RecordedBy.String() }},
	{Header: "Processor reference", Width: 30, Value: func(r appinvoicing.PaymentExportRow) any { return r.ExternalTxnID }},
	{Header: "Notes", Width: 40, Value: func(r appinvoicing.PaymentExportRow) any { return r.Notes }},
}

// XLSXWriter renders the payment ledger export as an Excel workbook
type XLSXWriter struct {
	// Creator is stored in the workbook's document properties
	Creator string
}

// NewXLSXWriter creates a new XLSXWriter
func NewXLSXWriter(creator string) *XLSXWriter {
	return &XLSXWriter{Creator: creator}
}

// ContentType returns the MIME type of the workbook
func (w *XLSXWriter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// FileExtension returns the file extension without dot
func (w *XLSXWriter) FileExtension() string { return "xlsx" }

// WritePayments writes one header row and one row per payment
func (w *XLSXWriter) WritePayments(out io.Writer, rows []appinvoicing.PaymentExportRow) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), paymentsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if w.Creator != "" {
		if err := f.SetDocProps(&excelize.DocProperties{Creator: w.Creator}); err != nil {
			return fmt.Errorf("failed to set document properties: %w", err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	// 2 = "0.00"
	amount, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return fmt.Errorf("failed to create amount style: %w", err)
	}

	for i, col := range paymentColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(paymentsSheet, cell, col.Header); err != nil {
			return err
		}
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(paymentsSheet, name, name, col.Width); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(paymentColumns), 1)
	if err := f.SetCellStyle(paymentsSheet, "A1", last, header); err != nil {
		return err
	}

	for r, row := range rows {
		for c, col := range paymentColumns {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(paymentsSheet, cell, col.Value(row)); err != nil {
				return fmt.Errorf("failed to write row %d: %w", r+1, err)
			}
		}
	}
	if len(rows) > 0 {
		first, _ := excelize.CoordinatesToCellName(4, 2)
		end, _ := excelize.CoordinatesToCellName(4, len(rows)+1)
		if err := f.SetCellStyle(paymentsSheet, first, end, amount); err != nil {
			return err
		}
	}

	if err := f.SetPanes(paymentsSheet, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return err
	}

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Ensure XLSXWriter implements PaymentSheetWriter
var _ appinvoicing.PaymentSheetWriter = (*XLSXWriter)(nil)
