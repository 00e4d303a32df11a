package billing

import (
	"fmt"
	"strings"
	"time"

	appinvoicing "github.com/erp/ledger/internal/application/invoicing"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Stripe event types consumed by the ledger
const (
	EventCheckoutSessionCompleted      = "checkout.session.completed"
	EventCheckoutAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

// sessionMetadata is the ledger's view of a checkout session's metadata.
// Invoice ids and amounts travel as parallel comma separated lists.
type sessionMetadata struct {
	CompanyID  uuid.UUID
	CustomerID uuid.UUID
	InvoiceIDs []uuid.UUID
	Amounts    map[uuid.UUID]valueobject.Money
	// PaymentDate is the date the payer picked, if any
	PaymentDate *time.Time
}

func parseSessionMetadata(md map[string]string) (*sessionMetadata, error) {
	companyID, err := uuid.Parse(md[appinvoicing.MetadataCompanyID])
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", appinvoicing.MetadataCompanyID, err)
	}
	out := &sessionMetadata{CompanyID: companyID}
	if raw := md[appinvoicing.MetadataCustomerID]; raw != "" {
		if out.CustomerID, err = uuid.Parse(raw); err != nil {
			return nil, fmt.Errorf("metadata %s: %w", appinvoicing.MetadataCustomerID, err)
		}
	}

	if raw := md[appinvoicing.MetadataPaymentDay]; raw != "" {
		day, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return nil, fmt.Errorf("metadata %s: %w", appinvoicing.MetadataPaymentDay, err)
		}
		out.PaymentDate = &day
	}

	ids := splitList(md[appinvoicing.MetadataInvoiceIDs])
	amounts := splitList(md[appinvoicing.MetadataAmounts])
	if len(ids) == 0 {
		return nil, fmt.Errorf("metadata %s is empty", appinvoicing.MetadataInvoiceIDs)
	}
	if len(ids) != len(amounts) {
		return nil, fmt.Errorf("metadata lists %d invoices but %d amounts", len(ids), len(amounts))
	}

	out.InvoiceIDs = make([]uuid.UUID, len(ids))
	out.Amounts = make(map[uuid.UUID]valueobject.Money, len(ids))
	for i, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("metadata invoice id %q: %w", raw, err)
		}
		amount, err := valueobject.NewMoneyFromString(amounts[i])
		if err != nil {
			return nil, fmt.Errorf("metadata amount %q: %w", amounts[i], err)
		}
		out.InvoiceIDs[i] = id
		out.Amounts[id] = amount
	}
	return out, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
