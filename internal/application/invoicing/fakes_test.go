package invoicing

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func money(s string) valueobject.Money { return valueobject.MustMoney(s) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func daysFromNow(n int) *time.Time {
	t := fixedNow.AddDate(0, 0, n)
	return &t
}

// memState is one snapshot of the fake database. Rows are stored by value so
// a loaded aggregate never aliases committed state.
type memState struct {
	invoices map[uuid.UUID]invoicing.Invoice
	payments map[uuid.UUID]invoicing.Payment
	audits   []*invoicing.AuditEntry
	events   []shared.DomainEvent
}

func (s *memState) clone() *memState {
	c := &memState{
		invoices: make(map[uuid.UUID]invoicing.Invoice, len(s.invoices)),
		payments: make(map[uuid.UUID]invoicing.Payment, len(s.payments)),
		audits:   append([]*invoicing.AuditEntry(nil), s.audits...),
		events:   append([]shared.DomainEvent(nil), s.events...),
	}
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	return c
}

// memStore is a TransactionScope over memState. Transactions run one at a
// time and commit by swapping the snapshot.
type memStore struct {
	mu         sync.Mutex
	state      *memState
	conflicts  int
	executions int
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		invoices: make(map[uuid.UUID]invoicing.Invoice),
		payments: make(map[uuid.UUID]invoicing.Payment),
	}}
}

func (m *memStore) Execute(ctx context.Context, fn func(repos LedgerRepositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions++

	tx := &memRepos{store: m, state: m.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

// read returns repositories over the committed state
func (m *memStore) read() *memRepos {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &memRepos{store: m, state: m.state}
}

func (m *memStore) failNextSaves(n int) {
	m.mu.Lock()
	m.conflicts = n
	m.mu.Unlock()
}

// forceStatus overwrites a stored status without going through the ledger
func (m *memStore) forceStatus(id uuid.UUID, status invoicing.InvoiceStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv := m.state.invoices[id]
	inv.Status = status
	m.state.invoices[id] = inv
}

func (m *memStore) invoice(t *testing.T, id uuid.UUID) invoicing.Invoice {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.state.invoices[id]
	require.True(t, ok)
	return inv
}

func (m *memStore) paymentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.payments)
}

func (m *memStore) audits() []*invoicing.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*invoicing.AuditEntry(nil), m.state.audits...)
}

func (m *memStore) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, len(m.state.events))
	for i, e := range m.state.events {
		types[i] = e.EventType()
	}
	return types
}

func (m *memStore) events() []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]shared.DomainEvent(nil), m.state.events...)
}

type memRepos struct {
	store *memStore
	state *memState
}

func (r *memRepos) Invoices() invoicing.InvoiceRepository   { return memInvoices{r} }
func (r *memRepos) Payments() invoicing.PaymentRepository   { return memPayments{r} }
func (r *memRepos) AuditLogs() invoicing.AuditLogRepository { return memAudits{r} }

func (r *memRepos) SaveEvents(_ context.Context, events ...shared.DomainEvent) error {
	r.state.events = append(r.state.events, events...)
	return nil
}

type memInvoices struct{ r *memRepos }

func (m memInvoices) FindByID(_ context.Context, companyID, id uuid.UUID) (*invoicing.Invoice, error) {
	inv, ok := m.r.state.invoices[id]
	if !ok || inv.CompanyID != companyID {
		return nil, invoicing.ErrInvoiceNotFound
	}
	return &inv, nil
}

func (m memInvoices) FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*invoicing.Invoice, error) {
	return m.FindByID(ctx, companyID, id)
}

func (m memInvoices) FindByIDs(_ context.Context, ids []uuid.UUID) ([]*invoicing.Invoice, error) {
	var found []*invoicing.Invoice
	for _, id := range ids {
		if inv, ok := m.r.state.invoices[id]; ok {
			found = append(found, &inv)
		}
	}
	return found, nil
}

func (m memInvoices) Create(_ context.Context, inv *invoicing.Invoice) error {
	stored := *inv
	stored.ClearDomainEvents()
	m.r.state.invoices[inv.ID] = stored
	return nil
}

func (m memInvoices) SaveWithLock(_ context.Context, inv *invoicing.Invoice) error {
	if m.r.store.conflicts > 0 {
		m.r.store.conflicts--
		return shared.ErrConcurrencyConflict
	}
	current, ok := m.r.state.invoices[inv.ID]
	if !ok || current.Version != inv.Version {
		return shared.ErrConcurrencyConflict
	}
	inv.IncrementVersion()
	stored := *inv
	stored.ClearDomainEvents()
	m.r.state.invoices[inv.ID] = stored
	return nil
}

func (m memInvoices) lateFeeCandidate(inv invoicing.Invoice, asOf time.Time) bool {
	switch inv.Status {
	case invoicing.InvoiceStatusSent, invoicing.InvoiceStatusPartiallyPaid, invoicing.InvoiceStatusOverdue:
	default:
		return false
	}
	return inv.DueDate != nil && inv.LateFeeAmount.IsZero() &&
		inv.DueDate.Before(invoicing.StartOfDayUTC(asOf))
}

func (m memInvoices) FindLateFeeCandidates(_ context.Context, companyID uuid.UUID, asOf time.Time, after *invoicing.LateFeeCursor, limit int) ([]*invoicing.Invoice, error) {
	var found []*invoicing.Invoice
	for _, inv := range m.r.state.invoices {
		if inv.CompanyID == companyID && m.lateFeeCandidate(inv, asOf) && cursorBefore(after, inv) {
			inv := inv
			found = append(found, &inv)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		a, b := found[i], found[j]
		if !a.DueDate.Equal(*b.DueDate) {
			return a.DueDate.Before(*b.DueDate)
		}
		return a.ID.String() < b.ID.String()
	})
	if len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func cursorBefore(after *invoicing.LateFeeCursor, inv invoicing.Invoice) bool {
	if after == nil {
		return true
	}
	if !inv.DueDate.Equal(after.DueDate) {
		return inv.DueDate.After(after.DueDate)
	}
	return inv.ID.String() > after.ID.String()
}

func (m memInvoices) CompaniesWithLateFeeCandidates(_ context.Context, asOf time.Time) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var companies []uuid.UUID
	for _, inv := range m.r.state.invoices {
		if m.lateFeeCandidate(inv, asOf) && !seen[inv.CompanyID] {
			seen[inv.CompanyID] = true
			companies = append(companies, inv.CompanyID)
		}
	}
	return companies, nil
}

type memPayments struct{ r *memRepos }

func (m memPayments) FindByID(_ context.Context, companyID, id uuid.UUID) (*invoicing.Payment, error) {
	p, ok := m.r.state.payments[id]
	if !ok || p.CompanyID != companyID {
		return nil, invoicing.ErrPaymentNotFound
	}
	return &p, nil
}

func (m memPayments) sorted(match func(p invoicing.Payment) bool) []*invoicing.Payment {
	var found []*invoicing.Payment
	for _, p := range m.r.state.payments {
		if match(p) {
			p := p
			found = append(found, &p)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].PaymentDate.Equal(found[j].PaymentDate) {
			return found[i].CreatedAt.Before(found[j].CreatedAt)
		}
		return found[i].PaymentDate.Before(found[j].PaymentDate)
	})
	return found
}

func (m memPayments) FindByInvoice(_ context.Context, invoiceID uuid.UUID) ([]*invoicing.Payment, error) {
	return m.sorted(func(p invoicing.Payment) bool { return p.InvoiceID == invoiceID }), nil
}

func (m memPayments) FindByExternalTxn(_ context.Context, invoiceID uuid.UUID, externalTxnID string) (*invoicing.Payment, error) {
	for _, p := range m.r.state.payments {
		if p.InvoiceID == invoiceID && p.ExternalTxnID == externalTxnID {
			return &p, nil
		}
	}
	return nil, invoicing.ErrPaymentNotFound
}

func (m memPayments) Create(_ context.Context, payments ...*invoicing.Payment) error {
	for _, p := range payments {
		m.r.state.payments[p.ID] = *p
	}
	return nil
}

func (m memPayments) Update(_ context.Context, p *invoicing.Payment) error {
	if _, ok := m.r.state.payments[p.ID]; !ok {
		return invoicing.ErrPaymentNotFound
	}
	m.r.state.payments[p.ID] = *p
	return nil
}

func (m memPayments) Delete(_ context.Context, companyID, id uuid.UUID) error {
	p, ok := m.r.state.payments[id]
	if !ok || p.CompanyID != companyID {
		return invoicing.ErrPaymentNotFound
	}
	delete(m.r.state.payments, id)
	return nil
}

func (m memPayments) List(_ context.Context, f invoicing.PaymentFilter) ([]*invoicing.Payment, int64, error) {
	all := m.sorted(func(p invoicing.Payment) bool {
		switch {
		case p.CompanyID != f.CompanyID:
			return false
		case f.InvoiceID != nil && p.InvoiceID != *f.InvoiceID:
			return false
		case f.Status != nil && p.Status != *f.Status:
			return false
		case f.Method != nil && p.Method != *f.Method:
			return false
		}
		return true
	})
	total := int64(len(all))
	start := f.Offset()
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + f.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

type memAudits struct{ r *memRepos }

func (m memAudits) Create(_ context.Context, entry *invoicing.AuditEntry) error {
	m.r.state.audits = append(m.r.state.audits, entry)
	return nil
}

func (m memAudits) FindByEntity(_ context.Context, companyID uuid.UUID, entityType string, entityID uuid.UUID) ([]*invoicing.AuditEntry, error) {
	var found []*invoicing.AuditEntry
	for _, e := range m.r.state.audits {
		if e.CompanyID == companyID && e.EntityType == entityType && e.EntityID == entityID {
			found = append(found, e)
		}
	}
	return found, nil
}

// ledgerFixture wires a LedgerService to a memStore with a fixed clock
type ledgerFixture struct {
	store   *memStore
	service *LedgerService
	company uuid.UUID
	clerk   invoicing.Actor
	admin   invoicing.Actor
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	store := newMemStore()
	company := uuid.New()
	return &ledgerFixture{
		store: store,
		service: NewLedgerService(LedgerServiceConfig{
			Scope:          store,
			Invoices:       liveInvoices{store},
			Payments:       livePayments{store},
			LateFeePercent: dec("1.5"),
			RetryBudget:    3,
			RetryBackoff:   time.Millisecond,
			Clock:          func() time.Time { return fixedNow },
			Logger:         zap.NewNop(),
		}),
		company: company,
		clerk:   invoicing.Actor{UserID: uuid.New(), CompanyID: company},
		admin:   invoicing.Actor{UserID: uuid.New(), CompanyID: company, Admin: true},
	}
}

// seedInvoice stores a sent invoice of the fixture's company
func (f *ledgerFixture) seedInvoice(t *testing.T, total string, due *time.Time) *invoicing.Invoice {
	t.Helper()
	return f.seedInvoiceFor(t, f.company, uuid.New(), total, due)
}

func (f *ledgerFixture) seedInvoiceFor(t *testing.T, companyID, customerID uuid.UUID, total string, due *time.Time) *invoicing.Invoice {
	t.Helper()
	inv, err := invoicing.NewInvoice(invoicing.NewInvoiceInput{
		CompanyID:     companyID,
		CustomerID:    customerID,
		CustomerEmail: "ap@customer.test",
		InvoiceNumber: "INV-" + uuid.NewString()[:8],
		Subtotal:      money(total),
		Tax:           valueobject.Zero(),
		DueDate:       due,
		Status:        invoicing.InvoiceStatusSent,
	})
	require.NoError(t, err)
	require.NoError(t, f.store.Execute(context.Background(), func(repos LedgerRepositories) error {
		return repos.Invoices().Create(context.Background(), inv)
	}))
	return inv
}

// liveInvoices and livePayments read committed state at call time
type liveInvoices struct{ store *memStore }

func (l liveInvoices) repo() invoicing.InvoiceRepository { return l.store.read().Invoices() }

func (l liveInvoices) FindByID(ctx context.Context, companyID, id uuid.UUID) (*invoicing.Invoice, error) {
	return l.repo().FindByID(ctx, companyID, id)
}

func (l liveInvoices) FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*invoicing.Invoice, error) {
	return l.repo().FindByIDForUpdate(ctx, companyID, id)
}

func (l liveInvoices) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*invoicing.Invoice, error) {
	return l.repo().FindByIDs(ctx, ids)
}

func (l liveInvoices) Create(ctx context.Context, inv *invoicing.Invoice) error {
	return l.store.Execute(ctx, func(repos LedgerRepositories) error { return repos.Invoices().Create(ctx, inv) })
}

func (l liveInvoices) SaveWithLock(ctx context.Context, inv *invoicing.Invoice) error {
	return l.store.Execute(ctx, func(repos LedgerRepositories) error { return repos.Invoices().SaveWithLock(ctx, inv) })
}

func (l liveInvoices) FindLateFeeCandidates(ctx context.Context, companyID uuid.UUID, asOf time.Time, after *invoicing.LateFeeCursor, limit int) ([]*invoicing.Invoice, error) {
	return l.repo().FindLateFeeCandidates(ctx, companyID, asOf, after, limit)
}

func (l liveInvoices) CompaniesWithLateFeeCandidates(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	return l.repo().CompaniesWithLateFeeCandidates(ctx, asOf)
}

type livePayments struct{ store *memStore }

func (l livePayments) repo() invoicing.PaymentRepository { return l.store.read().Payments() }

func (l livePayments) FindByID(ctx context.Context, companyID, id uuid.UUID) (*invoicing.Payment, error) {
	return l.repo().FindByID(ctx, companyID, id)
}

func (l livePayments) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*invoicing.Payment, error) {
	return l.repo().FindByInvoice(ctx, invoiceID)
}

func (l livePayments) FindByExternalTxn(ctx context.Context, invoiceID uuid.UUID, externalTxnID string) (*invoicing.Payment, error) {
	return l.repo().FindByExternalTxn(ctx, invoiceID, externalTxnID)
}

func (l livePayments) Create(ctx context.Context, payments ...*invoicing.Payment) error {
	return l.store.Execute(ctx, func(repos LedgerRepositories) error { return repos.Payments().Create(ctx, payments...) })
}

func (l livePayments) Update(ctx context.Context, p *invoicing.Payment) error {
	return l.store.Execute(ctx, func(repos LedgerRepositories) error { return repos.Payments().Update(ctx, p) })
}

func (l livePayments) Delete(ctx context.Context, companyID, id uuid.UUID) error {
	return l.store.Execute(ctx, func(repos LedgerRepositories) error { return repos.Payments().Delete(ctx, companyID, id) })
}

func (l livePayments) List(ctx context.Context, filter invoicing.PaymentFilter) ([]*invoicing.Payment, int64, error) {
	return l.repo().List(ctx, filter)
}

var (
	_ TransactionScope             = (*memStore)(nil)
	_ LedgerRepositories           = (*memRepos)(nil)
	_ invoicing.InvoiceRepository  = liveInvoices{}
	_ invoicing.PaymentRepository  = livePayments{}
	_ invoicing.AuditLogRepository = memAudits{}
)
