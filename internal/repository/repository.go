package repository

import (
	"context"
	"errors"
	"time"

	"github.com/andy/invoicer/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateNumber = errors.New("invoice number already exists")
)

// ClientRepository manages client persistence
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) error
	GetByID(ctx context.Context, id int64) (*domain.Client, error)
	GetByName(ctx context.Context, name string) (*domain.Client, error)
	GetByCode(ctx context.Context, code string) (*domain.Client, error)
	List(ctx context.Context, includeArchived bool) ([]*domain.Client, error)
	Update(ctx context.Context, client *domain.Client) error
	Archive(ctx context.Context, id int64) error
	Unarchive(ctx context.Context, id int64) error
}

// EntryFilter narrows TimeEntryRepository.List. Zero values do not filter.
type EntryFilter struct {
	ClientID     *int64
	InvoiceID    *int64
	Month        *time.Time // calendar month of the entry date
	UnbilledOnly bool
	BillableOnly bool
}

// TimeEntryRepository manages time entries, their invoice links and the
// audit trail
type TimeEntryRepository interface {
	Create(ctx context.Context, entry *domain.TimeEntry) error
	GetByID(ctx context.Context, id int64) (*domain.TimeEntry, error)
	Update(ctx context.Context, entry *domain.TimeEntry, reason string) error // Creates audit record
	List(ctx context.Context, filter EntryFilter) ([]*domain.TimeEntry, error)
	ListUnbilledForMonth(ctx context.Context, clientID int64, period time.Time) ([]*domain.TimeEntry, error)
	ListByInvoice(ctx context.Context, invoiceID int64) ([]*domain.TimeEntry, error)

	// ClaimForMonth links every billable, unlinked entry of the client dated
	// in period's month and returns how many were claimed.
	ClaimForMonth(ctx context.Context, invoiceID, clientID int64, period time.Time) (int64, error)
	// Link sets the invoice of an unlinked entry. It reports false when the
	// entry is already linked, leaving it untouched.
	Link(ctx context.Context, entryID, invoiceID int64) (bool, error)
	// Unlink clears the invoice of an entry linked to invoiceID. It reports
	// false when the entry is not linked to that invoice.
	Unlink(ctx context.Context, entryID, invoiceID int64) (bool, error)

	GetHistory(ctx context.Context, entryID int64) ([]*domain.EntryHistory, error)
}

// InvoiceFilter narrows InvoiceRepository.List. Zero values do not filter.
type InvoiceFilter struct {
	ClientID *int64
	Status   *domain.InvoiceStatus
}

// InvoiceRepository manages invoice persistence
type InvoiceRepository interface {
	// Create inserts the invoice; a number clash returns ErrDuplicateNumber
	Create(ctx context.Context, invoice *domain.Invoice) error
	GetByID(ctx context.Context, id int64) (*domain.Invoice, error)
	GetByNumber(ctx context.Context, number string) (*domain.Invoice, error)
	List(ctx context.Context, filter InvoiceFilter) ([]*domain.Invoice, error)
	Update(ctx context.Context, invoice *domain.Invoice) error
	UpdateTotals(ctx context.Context, id int64, amount decimal.Decimal, description string) error
	// ListDraftsWithoutEntries returns draft invoices that no time entry
	// references. Sent and paid invoices are settled and never listed.
	ListDraftsWithoutEntries(ctx context.Context) ([]*domain.Invoice, error)
	Delete(ctx context.Context, id int64) error
}

// Transactor runs fn in a transaction that repository calls made with the
// given context join
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
