package printing

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"golang.org/x/text/cases"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ReceiptDocument is the data a payment receipt is rendered from
type ReceiptDocument struct {
	ReceiptNumber string
	IssuedAt      time.Time

	InvoiceNumber string
	CustomerEmail string
	InvoiceStatus string

	PaymentDate   time.Time
	Method        string
	Amount        valueobject.Money
	PaymentStatus string
	Reference     string
	Notes         string
	RefundReason  string

	TotalDue         valueobject.Money
	TotalPaid        valueobject.Money
	RemainingBalance valueobject.Money
}

// ReceiptTemplate renders receipts with locale aware number formatting
type ReceiptTemplate struct {
	tmpl    *template.Template
	printer *message.Printer
	caser   cases.Caser
	unit    currency.Unit
}

// NewReceiptTemplate parses source (the built-in layout when empty) for
// locale and ISO currency code.
func NewReceiptTemplate(source, locale, currencyCode string) (*ReceiptTemplate, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid receipt locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return nil, fmt.Errorf("invalid receipt currency %q: %w", currencyCode, err)
	}
	if source == "" {
		source = defaultReceiptTemplate
	}

	rt := &ReceiptTemplate{
		printer: message.NewPrinter(tag),
		caser:   cases.Title(tag),
		unit:    unit,
	}
	tmpl, err := template.New("receipt").Funcs(template.FuncMap{
		"money": rt.formatMoney,
		"date":  formatDate,
		"label": rt.label,
	}).Parse(source)
	if err != nil {
		return nil, NewRenderError(ErrCodeTemplateFailed, "failed to parse receipt template", err)
	}
	rt.tmpl = tmpl
	return rt, nil
}

// Render executes the template for doc
func (t *ReceiptTemplate) Render(doc *ReceiptDocument) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, doc); err != nil {
		return "", NewRenderError(ErrCodeTemplateFailed, "failed to render receipt", err)
	}
	return buf.String(), nil
}

// formatMoney renders m with the currency symbol and locale grouping
func (t *ReceiptTemplate) formatMoney(m valueobject.Money) string {
	symbol := t.printer.Sprint(currency.Symbol(t.unit))
	return symbol + t.printer.Sprint(number.Decimal(m.Decimal().InexactFloat64(), number.Scale(2)))
}

// label turns enum values like credit_debit into "Credit Debit"
func (t *ReceiptTemplate) label(s string) string {
	return t.caser.String(strings.ReplaceAll(s, "_", " "))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

const defaultReceiptTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Receipt {{.ReceiptNumber}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; color: #222; }
h1 { font-size: 20px; margin-bottom: 4px; }
table { width: 100%; border-collapse: collapse; margin-top: 16px; }
td { padding: 6px 4px; border-bottom: 1px solid #eee; }
td.amount { text-align: right; }
.muted { color: #777; }
.total td { font-weight: bold; border-top: 2px solid #222; }
</style>
</head>
<body>
<h1>Payment Receipt</h1>
<div class="muted">Receipt {{.ReceiptNumber}} &middot; issued {{date .IssuedAt}}</div>
<table>
<tr><td>Invoice</td><td class="amount">{{.InvoiceNumber}}</td></tr>
{{if .CustomerEmail}}<tr><td>Billed to</td><td class="amount">{{.CustomerEmail}}</td></tr>{{end}}
<tr><td>Payment date</td><td class="amount">{{date .PaymentDate}}</td></tr>
<tr><td>Method</td><td class="amount">{{label .Method}}</td></tr>
{{if .Reference}}<tr><td>Reference</td><td class="amount">{{.Reference}}</td></tr>{{end}}
<tr><td>Status</td><td class="amount">{{label .PaymentStatus}}</td></tr>
{{if .RefundReason}}<tr><td>Reason</td><td class="amount">{{.RefundReason}}</td></tr>{{end}}
<tr class="total"><td>Amount paid</td><td class="amount">{{money .Amount}}</td></tr>
</table>
<table>
<tr><td>Invoice total</td><td class="amount">{{money .TotalDue}}</td></tr>
<tr><td>Paid to date</td><td class="amount">{{money .TotalPaid}}</td></tr>
<tr class="total"><td>Balance remaining</td><td class="amount">{{money .RemainingBalance}}</td></tr>
</table>
<p class="muted">Invoice status: {{label .InvoiceStatus}}</p>
{{if .Notes}}<p>{{.Notes}}</p>{{end}}
</body>
</html>
`
