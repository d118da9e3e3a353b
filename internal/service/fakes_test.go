package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/andy/invoicer/internal/domain"
	"github.com/andy/invoicer/internal/repository"
	"github.com/shopspring/decimal"
)

// memStore backs the in-memory repositories. Reads return copies so services
// cannot mutate stored rows behind the repository's back.
type memStore struct {
	clients  map[int64]*domain.Client
	entries  map[int64]*domain.TimeEntry
	invoices map[int64]*domain.Invoice
	history  []*domain.EntryHistory
	nextID   int64

	claimErr error // returned by ClaimForMonth when set
	txCount  int
}

func newMemStore() *memStore {
	return &memStore{
		clients:  make(map[int64]*domain.Client),
		entries:  make(map[int64]*domain.TimeEntry),
		invoices: make(map[int64]*domain.Invoice),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

// WithTx snapshots the store and restores it when fn fails
func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txCount++
	clients, entries, invoices := copyMap(s.clients), copyMap(s.entries), copyMap(s.invoices)
	history := append([]*domain.EntryHistory(nil), s.history...)

	if err := fn(ctx); err != nil {
		s.clients, s.entries, s.invoices, s.history = clients, entries, invoices, history
		return err
	}
	return nil
}

func copyMap[T any](m map[int64]*T) map[int64]*T {
	out := make(map[int64]*T, len(m))
	for k, v := range m {
		c := *v
		out[k] = &c
	}
	return out
}

func cloneEntry(e *domain.TimeEntry) *domain.TimeEntry {
	c := *e
	if e.InvoiceID != nil {
		id := *e.InvoiceID
		c.InvoiceID = &id
	}
	return &c
}

type memClientRepo struct{ s *memStore }

func (r *memClientRepo) Create(_ context.Context, c *domain.Client) error {
	c.ID = r.s.id()
	cc := *c
	r.s.clients[c.ID] = &cc
	return nil
}

func (r *memClientRepo) GetByID(_ context.Context, id int64) (*domain.Client, error) {
	c, ok := r.s.clients[id]
	if !ok {
		return nil, fmt.Errorf("client %w", repository.ErrNotFound)
	}
	cc := *c
	return &cc, nil
}

func (r *memClientRepo) GetByName(_ context.Context, name string) (*domain.Client, error) {
	for _, c := range r.s.clients {
		if c.Name == name {
			cc := *c
			return &cc, nil
		}
	}
	return nil, fmt.Errorf("client %w", repository.ErrNotFound)
}

func (r *memClientRepo) GetByCode(_ context.Context, code string) (*domain.Client, error) {
	for _, c := range r.s.clients {
		if c.Code == code {
			cc := *c
			return &cc, nil
		}
	}
	return nil, fmt.Errorf("client %w", repository.ErrNotFound)
}

func (r *memClientRepo) List(_ context.Context, includeArchived bool) ([]*domain.Client, error) {
	out := make([]*domain.Client, 0)
	for _, c := range r.s.clients {
		if includeArchived || !c.IsArchived {
			cc := *c
			out = append(out, &cc)
		}
	}
	return out, nil
}

func (r *memClientRepo) Update(_ context.Context, c *domain.Client) error {
	cc := *c
	r.s.clients[c.ID] = &cc
	return nil
}

func (r *memClientRepo) Archive(_ context.Context, id int64) error {
	r.s.clients[id].IsArchived = true
	return nil
}

func (r *memClientRepo) Unarchive(_ context.Context, id int64) error {
	r.s.clients[id].IsArchived = false
	return nil
}

type memEntryRepo struct{ s *memStore }

func (r *memEntryRepo) Create(_ context.Context, e *domain.TimeEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	e.ID = r.s.id()
	r.s.entries[e.ID] = cloneEntry(e)
	return nil
}

func (r *memEntryRepo) GetByID(_ context.Context, id int64) (*domain.TimeEntry, error) {
	e, ok := r.s.entries[id]
	if !ok {
		return nil, fmt.Errorf("time entry %w", repository.ErrNotFound)
	}
	return cloneEntry(e), nil
}

func (r *memEntryRepo) Update(_ context.Context, e *domain.TimeEntry, reason string) error {
	old, ok := r.s.entries[e.ID]
	if !ok {
		return fmt.Errorf("time entry %w", repository.ErrNotFound)
	}
	e.InvoiceID = old.InvoiceID
	r.s.entries[e.ID] = cloneEntry(e)
	r.s.history = append(r.s.history, domain.NewEntryHistory(e.ID, "hours", old.Hours.String(), e.Hours.String(), reason))
	return nil
}

func (r *memEntryRepo) List(_ context.Context, f repository.EntryFilter) ([]*domain.TimeEntry, error) {
	return r.filter(func(e *domain.TimeEntry) bool {
		if f.ClientID != nil && e.ClientID != *f.ClientID {
			return false
		}
		if f.InvoiceID != nil && !e.LinkedTo(*f.InvoiceID) {
			return false
		}
		if f.Month != nil && !sameMonth(e.Date, *f.Month) {
			return false
		}
		if f.UnbilledOnly && e.IsLinked() {
			return false
		}
		if f.BillableOnly && !e.IsBillable {
			return false
		}
		return true
	}), nil
}

func (r *memEntryRepo) ListUnbilledForMonth(_ context.Context, clientID int64, period time.Time) ([]*domain.TimeEntry, error) {
	return r.filter(func(e *domain.TimeEntry) bool { return eligible(e, clientID, period) }), nil
}

func (r *memEntryRepo) ListByInvoice(_ context.Context, invoiceID int64) ([]*domain.TimeEntry, error) {
	return r.filter(func(e *domain.TimeEntry) bool { return e.LinkedTo(invoiceID) }), nil
}

func (r *memEntryRepo) ClaimForMonth(_ context.Context, invoiceID, clientID int64, period time.Time) (int64, error) {
	if r.s.claimErr != nil {
		return 0, r.s.claimErr
	}
	var n int64
	for _, e := range r.s.entries {
		if eligible(e, clientID, period) {
			id := invoiceID
			e.InvoiceID = &id
			r.s.history = append(r.s.history, domain.NewLinkHistory(e.ID, nil, &id, "claimed by invoice"))
			n++
		}
	}
	return n, nil
}

func (r *memEntryRepo) Link(_ context.Context, entryID, invoiceID int64) (bool, error) {
	e, ok := r.s.entries[entryID]
	if !ok || e.IsLinked() {
		return false, nil
	}
	id := invoiceID
	e.InvoiceID = &id
	r.s.history = append(r.s.history, domain.NewLinkHistory(entryID, nil, &id, "added to invoice"))
	return true, nil
}

func (r *memEntryRepo) Unlink(_ context.Context, entryID, invoiceID int64) (bool, error) {
	e, ok := r.s.entries[entryID]
	if !ok || !e.LinkedTo(invoiceID) {
		return false, nil
	}
	e.InvoiceID = nil
	r.s.history = append(r.s.history, domain.NewLinkHistory(entryID, &invoiceID, nil, "removed from invoice"))
	return true, nil
}

func (r *memEntryRepo) GetHistory(_ context.Context, entryID int64) ([]*domain.EntryHistory, error) {
	out := make([]*domain.EntryHistory, 0)
	for _, h := range r.s.history {
		if h.EntryID == entryID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *memEntryRepo) filter(keep func(*domain.TimeEntry) bool) []*domain.TimeEntry {
	out := make([]*domain.TimeEntry, 0)
	for _, e := range r.s.entries {
		if keep(e) {
			out = append(out, cloneEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func eligible(e *domain.TimeEntry, clientID int64, period time.Time) bool {
	return e.ClientID == clientID && !e.IsLinked() && e.IsBillable && sameMonth(e.Date, period)
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

type memInvoiceRepo struct {
	s         *memStore
	updates   int   // UpdateTotals calls
	totalsErr error // returned by UpdateTotals when set
}

func (r *memInvoiceRepo) Create(_ context.Context, inv *domain.Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	for _, existing := range r.s.invoices {
		if existing.Number == inv.Number {
			return fmt.Errorf("%w: %s", repository.ErrDuplicateNumber, inv.Number)
		}
	}
	inv.ID = r.s.id()
	c := *inv
	r.s.invoices[inv.ID] = &c
	return nil
}

func (r *memInvoiceRepo) GetByID(_ context.Context, id int64) (*domain.Invoice, error) {
	inv, ok := r.s.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %w", repository.ErrNotFound)
	}
	c := *inv
	return &c, nil
}

func (r *memInvoiceRepo) GetByNumber(_ context.Context, number string) (*domain.Invoice, error) {
	for _, inv := range r.s.invoices {
		if inv.Number == number {
			c := *inv
			return &c, nil
		}
	}
	return nil, fmt.Errorf("invoice %w", repository.ErrNotFound)
}

func (r *memInvoiceRepo) List(_ context.Context, f repository.InvoiceFilter) ([]*domain.Invoice, error) {
	out := make([]*domain.Invoice, 0)
	for _, inv := range r.s.invoices {
		if f.ClientID != nil && inv.ClientID != *f.ClientID {
			continue
		}
		if f.Status != nil && inv.Status() != *f.Status {
			continue
		}
		c := *inv
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memInvoiceRepo) Update(_ context.Context, inv *domain.Invoice) error {
	if _, ok := r.s.invoices[inv.ID]; !ok {
		return fmt.Errorf("invoice %w", repository.ErrNotFound)
	}
	c := *inv
	r.s.invoices[inv.ID] = &c
	return nil
}

func (r *memInvoiceRepo) UpdateTotals(_ context.Context, id int64, amount decimal.Decimal, description string) error {
	inv, ok := r.s.invoices[id]
	if !ok {
		return fmt.Errorf("invoice %w", repository.ErrNotFound)
	}
	if r.totalsErr != nil {
		return r.totalsErr
	}
	r.updates++
	inv.Amount = amount
	inv.Description = description
	return nil
}

func (r *memInvoiceRepo) ListDraftsWithoutEntries(_ context.Context) ([]*domain.Invoice, error) {
	out := make([]*domain.Invoice, 0)
	for _, inv := range r.s.invoices {
		if inv.Status() != domain.InvoiceStatusDraft {
			continue
		}
		linked := false
		for _, e := range r.s.entries {
			if e.LinkedTo(inv.ID) {
				linked = true
				break
			}
		}
		if !linked {
			c := *inv
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memInvoiceRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.s.invoices[id]; !ok {
		return fmt.Errorf("invoice %w", repository.ErrNotFound)
	}
	for _, e := range r.s.entries {
		if e.LinkedTo(id) {
			e.InvoiceID = nil
		}
	}
	delete(r.s.invoices, id)
	return nil
}
