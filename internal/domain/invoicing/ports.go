package invoicing

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// PaymentSessionRequest asks the processor for a hosted payment session
type PaymentSessionRequest struct {
	CompanyID  uuid.UUID
	CustomerID uuid.UUID
	Amount     valueobject.Money
	Lines      []SessionLine
	Metadata   map[string]string
}

// InvoiceIDs returns the invoice ids covered by the session
func (r PaymentSessionRequest) InvoiceIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(r.Lines))
	for i, line := range r.Lines {
		ids[i] = line.InvoiceID
	}
	return ids
}

// PaymentSession is the processor's answer: where to send the payer
type PaymentSession struct {
	SessionID  string    `json:"session_id"`
	SessionURL string    `json:"session_url"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
}

// PaymentProcessor prepares payment sessions. It never moves money itself;
// completion arrives later through the settlement callback.
type PaymentProcessor interface {
	CreatePaymentSession(ctx context.Context, req PaymentSessionRequest) (*PaymentSession, error)
}

// SettlementNotice is the processor's report that a session was paid
type SettlementNotice struct {
	SessionID        string
	ExternalTxnID    string
	CompanyID        uuid.UUID
	InvoiceIDs       []uuid.UUID
	AmountPerInvoice map[uuid.UUID]valueobject.Money
	PaidAt           time.Time
}

// Receipt is the result of GenerateReceipt. Download mode fills PDF; email
// mode fills the delivery fields.
type Receipt struct {
	PaymentID   uuid.UUID   `json:"payment_id"`
	Mode        ReceiptMode `json:"mode"`
	FileName    string      `json:"file_name"`
	PDF         []byte      `json:"-"`
	ObjectKey   string      `json:"object_key,omitempty"`
	URL         string      `json:"url,omitempty"`
	DeliveredTo string      `json:"delivered_to,omitempty"`
	DeliveredAt *time.Time  `json:"delivered_at,omitempty"`
}

// ReceiptGenerator renders payment receipts
type ReceiptGenerator interface {
	GenerateReceipt(ctx context.Context, companyID, paymentID uuid.UUID, mode ReceiptMode) (*Receipt, error)
}

// Notification is a fire-and-forget message for the customer
type Notification struct {
	Event     string            `json:"event"`
	CompanyID uuid.UUID         `json:"company_id"`
	InvoiceID uuid.UUID         `json:"invoice_id"`
	Recipient string            `json:"recipient"`
	Data      map[string]string `json:"data,omitempty"`
	SentAt    time.Time         `json:"sent_at"`
}

// Notifier delivers customer notifications
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
