// Package receipt renders payment receipts to PDF and delivers them.
package receipt

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/printing"
	"github.com/erp/ledger/internal/infrastructure/storage"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// NotificationReceiptReady tells the mail service a receipt link is ready
	NotificationReceiptReady = "receipt_ready"

	contentTypePDF = "application/pdf"
)

// ObjectStore keeps rendered receipts for emailed links
type ObjectStore interface {
	Put(ctx context.Context, obj storage.Object) error
	SignedLink(ctx context.Context, key, fileName string, ttl time.Duration) (storage.Link, error)
}

// Config wires a Generator
type Config struct {
	Invoices  invoicing.InvoiceRepository
	Payments  invoicing.PaymentRepository
	Template  *printing.ReceiptTemplate
	Renderer  printing.PDFRenderer
	Store     ObjectStore
	Notifier  invoicing.Notifier
	PaperSize printing.PaperSize
	// LinkTTL is how long an emailed receipt link stays valid
	LinkTTL time.Duration
	Logger  *zap.Logger
}

// Generator implements invoicing.ReceiptGenerator
type Generator struct {
	invoices  invoicing.InvoiceRepository
	payments  invoicing.PaymentRepository
	template  *printing.ReceiptTemplate
	renderer  printing.PDFRenderer
	store     ObjectStore
	notifier  invoicing.Notifier
	paperSize printing.PaperSize
	linkTTL   time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewGenerator creates a new Generator
func NewGenerator(cfg Config) *Generator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	paper := cfg.PaperSize
	if !paper.IsValid() {
		paper = printing.PaperSizeLetter
	}
	ttl := cfg.LinkTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Generator{
		invoices:  cfg.Invoices,
		payments:  cfg.Payments,
		template:  cfg.Template,
		renderer:  cfg.Renderer,
		store:     cfg.Store,
		notifier:  cfg.Notifier,
		paperSize: paper,
		linkTTL:   ttl,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// GenerateReceipt renders the receipt of paymentID. Download mode returns
// the PDF; email mode stores it and notifies the invoice's customer with a
// link.
func (g *Generator) GenerateReceipt(ctx context.Context, companyID, paymentID uuid.UUID, mode invoicing.ReceiptMode) (*invoicing.Receipt, error) {
	ctx, span := telemetry.StartSpan(ctx, "receipt.generate",
		telemetry.AttrCompanyID.String(companyID.String()),
		telemetry.AttrPaymentID.String(paymentID.String()),
		telemetry.AttrReceiptMode.String(string(mode)),
	)
	defer span.End()

	receipt, err := g.generate(ctx, companyID, paymentID, mode)
	telemetry.RecordError(span, err)
	return receipt, err
}

func (g *Generator) generate(ctx context.Context, companyID, paymentID uuid.UUID, mode invoicing.ReceiptMode) (*invoicing.Receipt, error) {
	if !mode.IsValid() {
		return nil, shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("unknown receipt mode %q", mode))
	}

	payment, err := g.payments.FindByID(ctx, companyID, paymentID)
	if err != nil {
		return nil, err
	}
	invoice, err := g.invoices.FindByID(ctx, companyID, payment.InvoiceID)
	if err != nil {
		return nil, err
	}
	if mode == invoicing.ReceiptModeEmail && invoice.CustomerEmail == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "the invoice's customer has no email address")
	}

	payments, err := g.payments.FindByInvoice(ctx, invoice.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice payments: %w", err)
	}

	now := g.now()
	doc := buildDocument(invoice, payment, invoicing.CalculateBalance(invoice, payments, now), now)

	html, err := g.template.Render(doc)
	if err != nil {
		return nil, err
	}
	rendered, err := g.renderer.Render(ctx, &printing.RenderRequest{
		HTML:      html,
		PaperSize: g.paperSize,
		Margins:   printing.DefaultMargins(),
		Title:     "Receipt " + doc.ReceiptNumber,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render receipt: %w", err)
	}

	receipt := &invoicing.Receipt{
		PaymentID: payment.ID,
		Mode:      mode,
		FileName:  fileName(invoice, payment),
	}
	if mode == invoicing.ReceiptModeDownload {
		receipt.PDF = rendered.PDFData
		return receipt, nil
	}

	if err := g.deliver(ctx, invoice, payment, receipt, rendered.PDFData); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (g *Generator) deliver(ctx context.Context, invoice *invoicing.Invoice, payment *invoicing.Payment, receipt *invoicing.Receipt, pdf []byte) error {
	key := ObjectKey(invoice.CompanyID, payment.ID)
	err := g.store.Put(ctx, storage.Object{
		Key:         key,
		Data:        pdf,
		ContentType: contentTypePDF,
		FileName:    receipt.FileName,
		Metadata: map[string]string{
			"company-id":     invoice.CompanyID.String(),
			"invoice-id":     invoice.ID.String(),
			"payment-id":     payment.ID.String(),
			"payment-status": string(payment.Status),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to store receipt: %w", err)
	}
	link, err := g.store.SignedLink(ctx, key, receipt.FileName, g.linkTTL)
	if err != nil {
		return fmt.Errorf("failed to sign receipt link: %w", err)
	}

	sentAt := g.now()
	err = g.notifier.Notify(ctx, invoicing.Notification{
		Event:     NotificationReceiptReady,
		CompanyID: invoice.CompanyID,
		InvoiceID: invoice.ID,
		Recipient: invoice.CustomerEmail,
		Data: map[string]string{
			"payment_id":     payment.ID.String(),
			"invoice_number": invoice.InvoiceNumber,
			"amount":         payment.Amount.String(),
			"receipt_url":    link.URL,
			"expires_at":     link.ExpiresAt.UTC().Format(time.RFC3339),
		},
		SentAt: sentAt,
	})
	if err != nil {
		return fmt.Errorf("failed to send receipt notification: %w", err)
	}

	receipt.ObjectKey = key
	receipt.URL = link.URL
	receipt.DeliveredTo = invoice.CustomerEmail
	receipt.DeliveredAt = &sentAt

	g.logger.Info("Receipt emailed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("object_key", key))
	return nil
}

// ObjectKey is where the receipt of paymentID is stored
func ObjectKey(companyID, paymentID uuid.UUID) string {
	return fmt.Sprintf("receipts/%s/%s.pdf", companyID, paymentID)
}

func fileName(invoice *invoicing.Invoice, payment *invoicing.Payment) string {
	return fmt.Sprintf("receipt-%s-%s.pdf", invoice.InvoiceNumber, payment.ID.String()[:8])
}

func buildDocument(invoice *invoicing.Invoice, payment *invoicing.Payment, balance invoicing.Balance, issuedAt time.Time) *printing.ReceiptDocument {
	return &printing.ReceiptDocument{
		ReceiptNumber:    fmt.Sprintf("%s-%s", invoice.InvoiceNumber, payment.ID.String()[:8]),
		IssuedAt:         issuedAt,
		InvoiceNumber:    invoice.InvoiceNumber,
		CustomerEmail:    invoice.CustomerEmail,
		InvoiceStatus:    string(invoice.Status),
		PaymentDate:      payment.PaymentDate,
		Method:           string(payment.Method),
		Amount:           payment.Amount,
		PaymentStatus:    string(payment.Status),
		Reference:        payment.ExternalTxnID,
		Notes:            payment.Notes,
		RefundReason:     payment.RefundReason,
		TotalDue:         balance.TotalDue,
		TotalPaid:        balance.TotalPaid,
		RemainingBalance: balance.RemainingBalance,
	}
}

// Ensure Generator implements ReceiptGenerator
var _ invoicing.ReceiptGenerator = (*Generator)(nil)
