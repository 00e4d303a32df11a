package invoicing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	exportPageSize = 500
	// MaxExportRows caps one export
	MaxExportRows = 50000
)

// PaymentExportRow is one line of the payment ledger export
type PaymentExportRow struct {
	InvoiceNumber string
	PaymentDate   time.Time
	Method        string
	Amount        valueobject.Money
	Status        string
	RefundReason  string
	RecordedBy    uuid.UUID
	ExternalTxnID string
	Notes         string
}

// PaymentSheetWriter encodes export rows into a spreadsheet
type PaymentSheetWriter interface {
	ContentType() string
	FileExtension() string
	WritePayments(w io.Writer, rows []PaymentExportRow) error
}

// ExportFile is a rendered export ready for download
type ExportFile struct {
	FileName    string
	ContentType string
	Rows        int
	Data        []byte
}

// ExportService renders a company's payment ledger as a spreadsheet
type ExportService struct {
	invoices invoicing.InvoiceRepository
	payments invoicing.PaymentRepository
	writer   PaymentSheetWriter
	now      func() time.Time
	logger   *zap.Logger
}

// NewExportService creates a new ExportService
func NewExportService(invoices invoicing.InvoiceRepository, payments invoicing.PaymentRepository, writer PaymentSheetWriter, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		invoices: invoices,
		payments: payments,
		writer:   writer,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// ExportPayments writes every payment matching filter. Paging fields of the
// filter are ignored.
func (s *ExportService) ExportPayments(ctx context.Context, companyID uuid.UUID, filter PaymentListFilter) (*ExportFile, error) {
	payments, err := s.collect(ctx, companyID, filter)
	if err != nil {
		return nil, err
	}

	numbers, err := s.invoiceNumbers(ctx, companyID, payments)
	if err != nil {
		return nil, err
	}

	rows := make([]PaymentExportRow, len(payments))
	for i, p := range payments {
		rows[i] = PaymentExportRow{
			InvoiceNumber: numbers[p.InvoiceID],
			PaymentDate:   p.PaymentDate,
			Method:        string(p.Method),
			Amount:        p.Amount,
			Status:        string(p.Status),
			RefundReason:  p.RefundReason,
			RecordedBy:    p.RecordedBy,
			ExternalTxnID: p.ExternalTxnID,
			Notes:         p.Notes,
		}
	}

	var buf bytes.Buffer
	if err := s.writer.WritePayments(&buf, rows); err != nil {
		return nil, fmt.Errorf("failed to write payment export: %w", err)
	}

	s.logger.Info("Payment ledger exported",
		zap.String("company_id", companyID.String()),
		zap.Int("rows", len(rows)))
	return &ExportFile{
		FileName:    fmt.Sprintf("payments-%s.%s", s.now().Format("20060102-150405"), s.writer.FileExtension()),
		ContentType: s.writer.ContentType(),
		Rows:        len(rows),
		Data:        buf.Bytes(),
	}, nil
}

func (s *ExportService) collect(ctx context.Context, companyID uuid.UUID, filter PaymentListFilter) ([]*invoicing.Payment, error) {
	domainFilter := filter.toDomain(companyID)
	domainFilter.PageSize = exportPageSize

	var all []*invoicing.Payment
	for page := 1; ; page++ {
		domainFilter.Page = page
		batch, total, err := s.payments.List(ctx, domainFilter)
		if err != nil {
			return nil, err
		}
		if total > MaxExportRows {
			return nil, shared.NewDomainError(shared.CodeValidation,
				fmt.Sprintf("export matches %d payments, narrow the filter to at most %d", total, MaxExportRows))
		}
		all = append(all, batch...)
		if len(batch) < exportPageSize || int64(len(all)) >= total {
			return all, nil
		}
	}
}

func (s *ExportService) invoiceNumbers(ctx context.Context, companyID uuid.UUID, payments []*invoicing.Payment) (map[uuid.UUID]string, error) {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, p := range payments {
		if !seen[p.InvoiceID] {
			seen[p.InvoiceID] = true
			ids = append(ids, p.InvoiceID)
		}
	}

	numbers := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return numbers, nil
	}
	invoices, err := s.invoices.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, inv := range invoices {
		if inv.BelongsTo(companyID) {
			numbers[inv.ID] = inv.InvoiceNumber
		}
	}
	return numbers, nil
}
