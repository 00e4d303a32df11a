package invoicing

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Actor is the authenticated caller of a ledger command
type Actor struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
	Admin     bool
}

// SystemActor is used by background jobs and processor callbacks
func SystemActor(companyID uuid.UUID) Actor {
	return Actor{CompanyID: companyID, Admin: true}
}

// Ledger is the consistency boundary for one invoice: the invoice row plus
// its complete payment set. Every mutation goes through a Ledger method,
// which re-runs the reconciler before returning, so status and balance never
// drift apart. The caller persists Changes() in the same transaction that
// loaded the ledger.
type Ledger struct {
	Invoice  *Invoice
	Payments []*Payment

	clock   func() time.Time
	created []*Payment
	updated []*Payment
	deleted []*Payment
}

// NewLedger assembles a ledger from a loaded invoice and its payments
func NewLedger(inv *Invoice, payments []*Payment) *Ledger {
	return &Ledger{Invoice: inv, Payments: payments, clock: time.Now}
}

// WithClock replaces the time source
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// LedgerChanges are the payment rows a command touched
type LedgerChanges struct {
	Created []*Payment
	Updated []*Payment
	Deleted []*Payment
}

// Changes returns the payment rows the caller must persist
func (l *Ledger) Changes() LedgerChanges {
	return LedgerChanges{Created: l.created, Updated: l.updated, Deleted: l.deleted}
}

// Balance derives the current balance
func (l *Ledger) Balance() Balance {
	return CalculateBalance(l.Invoice, l.Payments, l.clock())
}

// Reconcile corrects a stored status that drifted from the payment set. An
// admin override is kept; the transition reports the status it hides.
func (l *Ledger) Reconcile() StatusTransition {
	now := l.clock()
	t := l.Invoice.checkReconciledStatus(CalculateBalance(l.Invoice, l.Payments, now), now)
	l.statusChanged(t.From, false)
	return t
}

// reconcile is the recompute every payment change ends with. It clears an
// admin override.
func (l *Ledger) reconcile() StatusTransition {
	now := l.clock()
	t := l.Invoice.applyReconciledStatus(CalculateBalance(l.Invoice, l.Payments, now), now)
	l.statusChanged(t.From, false)
	return t
}

// FindPayment returns the payment with the given id
func (l *Ledger) FindPayment(id uuid.UUID) (*Payment, error) {
	for _, p := range l.Payments {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, ErrPaymentNotFound
}

// RecordPayment adds a completed payment and reconciles
func (l *Ledger) RecordPayment(in PaymentInput, notify bool, actor Actor) (*Payment, error) {
	if err := l.Invoice.EnsureAcceptsPayments(); err != nil {
		return nil, err
	}
	p, err := newPayment(l.Invoice, in, actor.UserID)
	if err != nil {
		return nil, err
	}
	l.addPayment(p, notify)
	l.reconcile()
	return p, nil
}

// RecordSplitPayment records one payment per positive entry, all sharing
// date, notes and a batch id. The batch raises a single notification.
func (l *Ledger) RecordSplitPayment(entries []SplitEntry, date time.Time, notes string, notify bool, actor Actor) ([]*Payment, error) {
	if err := l.Invoice.EnsureAcceptsPayments(); err != nil {
		return nil, err
	}
	kept, err := ComposeSplit(entries)
	if err != nil {
		return nil, err
	}

	batchID := uuid.New()
	payments := make([]*Payment, 0, len(kept))
	for _, e := range kept {
		p, err := newPayment(l.Invoice, PaymentInput{
			Amount:      e.Amount,
			Method:      e.Method,
			PaymentDate: date,
			Notes:       notes,
			BatchID:     &batchID,
		}, actor.UserID)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}

	ids := make([]uuid.UUID, len(payments))
	amounts := make([]valueobject.Money, len(payments))
	for i, p := range payments {
		l.addPayment(p, false)
		ids[i] = p.ID
		amounts[i] = p.Amount
	}

	inv := l.Invoice
	inv.AddDomainEvent(&PaymentBatchRecordedEvent{
		BaseDomainEvent: inv.newEvent(EventTypePaymentBatchRecorded),
		notifyFields:    inv.notify(notify),
		InvoiceID:       inv.ID,
		BatchID:         batchID,
		PaymentIDs:      ids,
		Total:           valueobject.Sum(amounts...),
	})
	l.reconcile()
	return payments, nil
}

// EditPayment changes a completed payment and reconciles
func (l *Ledger) EditPayment(paymentID uuid.UUID, changes PaymentChanges, actor Actor) (*Payment, error) {
	p, err := l.FindPayment(paymentID)
	if err != nil {
		return nil, err
	}
	previous := p.Amount
	if err := p.Edit(changes); err != nil {
		return nil, err
	}
	l.markUpdated(p)

	inv := l.Invoice
	inv.AddDomainEvent(&PaymentEditedEvent{
		BaseDomainEvent: inv.newEvent(EventTypePaymentEdited),
		InvoiceID:       inv.ID,
		PaymentID:       p.ID,
		PreviousAmount:  previous,
		Amount:          p.Amount,
		Method:          p.Method,
		ActorID:         actor.UserID,
	})
	l.reconcile()
	return p, nil
}

// RefundPayment marks a completed payment refunded and reconciles
func (l *Ledger) RefundPayment(paymentID uuid.UUID, reason string, notify bool, actor Actor) (*Payment, error) {
	return l.reversePayment(paymentID, EventTypePaymentRefunded, reason, notify, actor)
}

// VoidPayment marks a completed payment voided and reconciles
func (l *Ledger) VoidPayment(paymentID uuid.UUID, reason string, notify bool, actor Actor) (*Payment, error) {
	return l.reversePayment(paymentID, EventTypePaymentVoided, reason, notify, actor)
}

func (l *Ledger) reversePayment(paymentID uuid.UUID, eventType, reason string, notify bool, actor Actor) (*Payment, error) {
	p, err := l.FindPayment(paymentID)
	if err != nil {
		return nil, err
	}
	if eventType == EventTypePaymentRefunded {
		err = p.Refund(reason)
	} else {
		err = p.Void(reason)
	}
	if err != nil {
		return nil, err
	}
	l.markUpdated(p)

	inv := l.Invoice
	inv.AddDomainEvent(&PaymentReversedEvent{
		BaseDomainEvent: inv.newEvent(eventType),
		notifyFields:    inv.notify(notify),
		InvoiceID:       inv.ID,
		PaymentID:       p.ID,
		Amount:          p.Amount,
		Reason:          p.RefundReason,
		ActorID:         actor.UserID,
	})
	l.reconcile()
	return p, nil
}

// DeletePayment hard-removes a payment row. It is a data-entry correction
// reserved for administrators; Void is the audited way to cancel a payment.
func (l *Ledger) DeletePayment(paymentID uuid.UUID, actor Actor) (*Payment, error) {
	if !actor.Admin {
		return nil, ErrAdminRequired
	}
	p, err := l.FindPayment(paymentID)
	if err != nil {
		return nil, err
	}

	kept := l.Payments[:0]
	for _, existing := range l.Payments {
		if existing.ID != p.ID {
			kept = append(kept, existing)
		}
	}
	l.Payments = kept
	l.deleted = append(l.deleted, p)

	inv := l.Invoice
	inv.AddDomainEvent(&PaymentDeletedEvent{
		BaseDomainEvent: inv.newEvent(EventTypePaymentDeleted),
		InvoiceID:       inv.ID,
		PaymentID:       p.ID,
		Amount:          p.Amount,
		Status:          p.Status,
		ActorID:         actor.UserID,
	})
	l.reconcile()
	return p, nil
}

// ApplyLateFee adds a one-time fee of percentage% of the invoice total.
// A second call fails with INVALID_STATE instead of compounding the fee.
func (l *Ledger) ApplyLateFee(percentage decimal.Decimal, notify bool) (valueobject.Money, error) {
	inv := l.Invoice
	fee, err := inv.applyLateFee(percentage, l.clock())
	if err != nil {
		return valueobject.Money{}, err
	}
	inv.AddDomainEvent(&LateFeeAppliedEvent{
		BaseDomainEvent: inv.newEvent(EventTypeLateFeeApplied),
		notifyFields:    inv.notify(notify),
		InvoiceID:       inv.ID,
		Percentage:      percentage.String(),
		Fee:             fee,
		TotalDue:        TotalDue(inv),
	})
	l.reconcile()
	return fee, nil
}

// VoidInvoice moves the invoice to the terminal voided state. Payments are
// left untouched as history.
func (l *Ledger) VoidInvoice(reason string, notify bool, actor Actor) error {
	inv := l.Invoice
	from := inv.Status
	if err := inv.void(reason, actor.UserID, l.clock()); err != nil {
		return err
	}
	inv.AddDomainEvent(&InvoiceVoidedEvent{
		BaseDomainEvent: inv.newEvent(EventTypeInvoiceVoided),
		notifyFields:    inv.notify(notify),
		InvoiceID:       inv.ID,
		Reason:          inv.VoidInfo.Reason,
		VoidedAt:        inv.VoidInfo.VoidedAt,
		ActorID:         actor.UserID,
	})
	l.statusChanged(from, true)
	return nil
}

// SetStatus is the administrator's manual status transition. The override is
// tagged on the invoice and kept until the next payment-driven recompute.
// A status the balance does not support is still applied, and the returned
// warning describes the mismatch.
func (l *Ledger) SetStatus(target InvoiceStatus, actor Actor) (*InconsistentStateWarning, error) {
	if !actor.Admin {
		return nil, ErrAdminRequired
	}
	if !target.IsValid() {
		return nil, errValidation("unknown invoice status %q", target)
	}
	inv := l.Invoice
	if inv.IsVoided() {
		return nil, ErrInvoiceVoided
	}
	if target == InvoiceStatusVoided {
		return nil, errInvalidState("use the void workflow to void an invoice")
	}

	now := l.clock()
	bal := l.Balance()
	from := inv.Status
	inv.Status = target
	inv.StatusOverridden = true
	if target == InvoiceStatusPaid && inv.PaidAt == nil {
		paidAt := now
		inv.PaidAt = &paidAt
	}
	inv.Touch()
	l.statusChanged(from, true)

	for _, ok := range ExpectedStatuses(bal) {
		if ok == target {
			return nil, nil
		}
	}
	return newInconsistentStateWarning(target, bal), nil
}

func (l *Ledger) statusChanged(from InvoiceStatus, manual bool) {
	inv := l.Invoice
	if from == inv.Status {
		return
	}
	bal := l.Balance()
	inv.AddDomainEvent(&InvoiceStatusChangedEvent{
		BaseDomainEvent:  inv.newEvent(EventTypeInvoiceStatusChanged),
		InvoiceID:        inv.ID,
		From:             from,
		To:               inv.Status,
		Manual:           manual,
		TotalPaid:        bal.TotalPaid,
		RemainingBalance: bal.RemainingBalance,
	})
}

func (l *Ledger) addPayment(p *Payment, notify bool) {
	l.Payments = append(l.Payments, p)
	l.created = append(l.created, p)

	inv := l.Invoice
	inv.AddDomainEvent(&PaymentRecordedEvent{
		BaseDomainEvent: inv.newEvent(EventTypePaymentRecorded),
		notifyFields:    inv.notify(notify),
		InvoiceID:       inv.ID,
		PaymentID:       p.ID,
		CustomerID:      inv.CustomerID,
		Amount:          p.Amount,
		Method:          p.Method,
		PaymentDate:     p.PaymentDate,
		BatchID:         p.BatchID,
		ExternalTxnID:   p.ExternalTxnID,
		RecordedBy:      p.RecordedBy,
	})
}

func (l *Ledger) markUpdated(p *Payment) {
	for _, c := range l.created {
		if c == p {
			return
		}
	}
	for _, u := range l.updated {
		if u == p {
			return
		}
	}
	l.updated = append(l.updated, p)
}
