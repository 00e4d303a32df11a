package invoicing

import (
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// SplitEntry is one method/amount pair of a split payment
type SplitEntry struct {
	Method PaymentMethod     `json:"method"`
	Amount valueobject.Money `json:"amount"`
}

// ComposeSplit drops entries without a positive amount and validates the
// rest. At least one entry must survive. The entries do not have to add up
// to the remaining balance.
func ComposeSplit(entries []SplitEntry) ([]SplitEntry, error) {
	kept := make([]SplitEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Amount.IsPositive() {
			continue
		}
		if !e.Method.IsValid() {
			return nil, errValidation("unknown payment method %q", e.Method)
		}
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		return nil, ErrEmptySplit
	}
	return kept, nil
}

// SessionLine is the amount one invoice contributes to a payment session
type SessionLine struct {
	InvoiceID     uuid.UUID         `json:"invoice_id"`
	InvoiceNumber string            `json:"invoice_number"`
	Amount        valueobject.Money `json:"amount"`
}

// MultiInvoiceBatch is a validated selection of invoices to be paid in one
// processor session
type MultiInvoiceBatch struct {
	CompanyID  uuid.UUID
	CustomerID uuid.UUID
	Lines      []SessionLine
	Total      valueobject.Money
}

// InvoiceIDs returns the invoice ids in selection order
func (b *MultiInvoiceBatch) InvoiceIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(b.Lines))
	for i, line := range b.Lines {
		ids[i] = line.InvoiceID
	}
	return ids
}

// ComposeMultiInvoiceBatch checks that every invoice belongs to the payer and
// to a single company, and sums their remaining balances. balances must hold
// an entry for every invoice.
func ComposeMultiInvoiceBatch(payerID uuid.UUID, invoices []*Invoice, balances map[uuid.UUID]Balance) (*MultiInvoiceBatch, error) {
	if len(invoices) == 0 {
		return nil, ErrEmptyInvoiceSelection
	}

	batch := &MultiInvoiceBatch{
		CompanyID:  invoices[0].CompanyID,
		CustomerID: payerID,
		Lines:      make([]SessionLine, 0, len(invoices)),
		Total:      valueobject.Zero(),
	}
	seen := make(map[uuid.UUID]bool, len(invoices))
	for _, inv := range invoices {
		if seen[inv.ID] {
			return nil, errValidation("invoice %s selected twice", inv.ID)
		}
		seen[inv.ID] = true

		if inv.CustomerID != payerID {
			return nil, ErrMixedPayerBatch
		}
		if inv.CompanyID != batch.CompanyID {
			return nil, ErrCrossCompanyBatch
		}
		if inv.IsVoided() {
			return nil, errInvalidState("invoice %s is voided", inv.InvoiceNumber)
		}

		remaining := balances[inv.ID].RemainingBalance
		if !remaining.IsPositive() {
			return nil, errInvalidState("invoice %s has nothing left to pay", inv.InvoiceNumber)
		}
		batch.Lines = append(batch.Lines, SessionLine{
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			Amount:        remaining,
		})
		batch.Total = batch.Total.Add(remaining)
	}
	return batch, nil
}
