package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andy/invoicer/internal/billing"
	"github.com/andy/invoicer/internal/domain"
	"github.com/andy/invoicer/internal/repository"
	"github.com/rs/zerolog"
)

// InvoiceConfig holds the invoice defaults the service applies
type InvoiceConfig struct {
	DefaultDueDays   int
	SentBackfillHour int
}

// DefaultInvoiceConfig returns the built-in invoice defaults
func DefaultInvoiceConfig() InvoiceConfig {
	return InvoiceConfig{
		DefaultDueDays:   15,
		SentBackfillHour: domain.DefaultSentBackfillHour,
	}
}

// InvoiceService manages invoice creation and lifecycle
type InvoiceService interface {
	// Create numbers a new invoice, claims the client's eligible entries for
	// the month of date and fills in amount and description. A nil dueDate
	// takes the client's payment terms or the configured default.
	Create(ctx context.Context, clientID int64, date time.Time, dueDate *time.Time) (*CreateResult, error)

	// Preview computes what Create would produce without persisting anything
	Preview(ctx context.Context, clientID int64, date time.Time) (*Preview, error)

	// MarkSent stamps the sent timestamp
	MarkSent(ctx context.Context, invoiceID int64, at time.Time) (*domain.Invoice, error)

	// MarkPaid stamps the paid timestamp, back-filling sent when missing
	MarkPaid(ctx context.Context, invoiceID int64, at time.Time) (*domain.Invoice, error)

	// SetDescription replaces the description with text and refreshes its
	// summary line and amount from the linked entries
	SetDescription(ctx context.Context, invoiceID int64, text string) (*domain.Invoice, error)

	// Reopen returns an invoice to draft
	Reopen(ctx context.Context, invoiceID int64) (*domain.Invoice, error)

	// Reconcile claims entries for every draft invoice that has none. Sent
	// and paid invoices are left as they are.
	Reconcile(ctx context.Context) (*ReconcileResult, error)

	// Delete removes an invoice, releasing its entries
	Delete(ctx context.Context, invoiceID int64) error

	// GetInvoice retrieves an invoice by ID
	GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error)

	// GetByNumber retrieves an invoice by number
	GetByNumber(ctx context.Context, number string) (*domain.Invoice, error)

	// ListInvoices lists invoices with optional filters
	ListInvoices(ctx context.Context, filter repository.InvoiceFilter) ([]*domain.Invoice, error)
}

// CreateResult is a newly created invoice and how many entries it claimed
type CreateResult struct {
	Invoice *domain.Invoice
	Claimed int64
}

// Preview is an unsaved invoice
type Preview struct {
	Client  *domain.Client
	Number  string
	Date    time.Time
	DueDate time.Time
	Details *billing.Details
	Entries []*domain.TimeEntry
}

// ReconcileResult lists the invoices Reconcile examined and repaired
type ReconcileResult struct {
	Checked  int
	Repaired []*domain.Invoice
}

type invoiceService struct {
	tx          repository.Transactor
	invoiceRepo repository.InvoiceRepository
	entryRepo   repository.TimeEntryRepository
	clientRepo  repository.ClientRepository
	linkage     LinkageService
	generator   *billing.Generator
	cfg         InvoiceConfig
	logger      zerolog.Logger
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(
	tx repository.Transactor,
	invoiceRepo repository.InvoiceRepository,
	entryRepo repository.TimeEntryRepository,
	clientRepo repository.ClientRepository,
	linkage LinkageService,
	generator *billing.Generator,
	cfg InvoiceConfig,
	logger zerolog.Logger,
) InvoiceService {
	return &invoiceService{
		tx:          tx,
		invoiceRepo: invoiceRepo,
		entryRepo:   entryRepo,
		clientRepo:  clientRepo,
		linkage:     linkage,
		generator:   generator,
		cfg:         cfg,
		logger:      logger.With().Str("component", "invoices").Logger(),
	}
}

func (s *invoiceService) Create(ctx context.Context, clientID int64, date time.Time, dueDate *time.Time) (*CreateResult, error) {
	client, err := s.activeClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	date = domain.Day(date)
	due := client.DueDate(date, s.cfg.DefaultDueDays)
	if dueDate != nil {
		due = *dueDate
	}

	invoice := domain.NewInvoice(client.ID, billing.GenerateNumber(client.Code, date), date, due)
	invoice.Client = client

	var claimed int64
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
			return err
		}
		claimed, err = s.linkage.ClaimForPeriod(ctx, invoice.ID, client.ID, date)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice %s: %w", invoice.Number, err)
	}

	s.logger.Info().
		Str("number", invoice.Number).
		Int64("client_id", client.ID).
		Int64("claimed", claimed).
		Msg("invoice created")

	regenerated, err := s.linkage.Regenerate(ctx, invoice.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("number", invoice.Number).Msg("invoice created without totals")
		return &CreateResult{Invoice: invoice, Claimed: claimed},
			fmt.Errorf("%w: %s: %w", ErrNotRegenerated, invoice.Number, err)
	}

	return &CreateResult{Invoice: regenerated, Claimed: claimed}, nil
}

func (s *invoiceService) Preview(ctx context.Context, clientID int64, date time.Time) (*Preview, error) {
	client, err := s.clientRepo.GetByID(ctx, clientID)
	if err != nil {
		return nil, err
	}

	date = domain.Day(date)
	entries, err := s.entryRepo.ListUnbilledForMonth(ctx, client.ID, date)
	if err != nil {
		return nil, err
	}

	return &Preview{
		Client:  client,
		Number:  billing.GenerateNumber(client.Code, date),
		Date:    date,
		DueDate: client.DueDate(date, s.cfg.DefaultDueDays),
		Details: s.generator.Generate(ctx, entries, date),
		Entries: entries,
	}, nil
}

func (s *invoiceService) SetDescription(ctx context.Context, invoiceID int64, text string) (*domain.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.UpdateTotals(ctx, invoiceID, invoice.Amount, strings.TrimSpace(text)); err != nil {
		return nil, err
	}
	return s.linkage.RefreshSummary(ctx, invoiceID)
}

func (s *invoiceService) MarkSent(ctx context.Context, invoiceID int64, at time.Time) (*domain.Invoice, error) {
	return s.transition(ctx, invoiceID, func(inv *domain.Invoice) {
		inv.MarkSent(at)
	})
}

func (s *invoiceService) MarkPaid(ctx context.Context, invoiceID int64, at time.Time) (*domain.Invoice, error) {
	return s.transition(ctx, invoiceID, func(inv *domain.Invoice) {
		inv.MarkPaid(at, s.cfg.SentBackfillHour)
	})
}

func (s *invoiceService) Reopen(ctx context.Context, invoiceID int64) (*domain.Invoice, error) {
	return s.transition(ctx, invoiceID, func(inv *domain.Invoice) {
		inv.Reopen()
	})
}

func (s *invoiceService) transition(ctx context.Context, invoiceID int64, apply func(*domain.Invoice)) (*domain.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	from := invoice.Status()
	apply(invoice)

	if err := s.invoiceRepo.Update(ctx, invoice); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("number", invoice.Number).
		Str("from", string(from)).
		Str("to", string(invoice.Status())).
		Msg("invoice status changed")

	return invoice, nil
}

func (s *invoiceService) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	orphans, err := s.invoiceRepo.ListDraftsWithoutEntries(ctx)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{Checked: len(orphans)}
	for _, inv := range orphans {
		claimed, err := s.linkage.ClaimForPeriod(ctx, inv.ID, inv.ClientID, inv.Date)
		if err != nil {
			return nil, err
		}
		if claimed == 0 {
			continue
		}

		repaired, err := s.linkage.Regenerate(ctx, inv.ID)
		if err != nil {
			return nil, err
		}
		result.Repaired = append(result.Repaired, repaired)

		s.logger.Info().
			Str("number", inv.Number).
			Int64("claimed", claimed).
			Msg("invoice reconciled")
	}

	return result, nil
}

func (s *invoiceService) Delete(ctx context.Context, invoiceID int64) error {
	return s.invoiceRepo.Delete(ctx, invoiceID)
}

func (s *invoiceService) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	return s.invoiceRepo.GetByID(ctx, id)
}

func (s *invoiceService) GetByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	return s.invoiceRepo.GetByNumber(ctx, number)
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter repository.InvoiceFilter) ([]*domain.Invoice, error) {
	return s.invoiceRepo.List(ctx, filter)
}

func (s *invoiceService) activeClient(ctx context.Context, clientID int64) (*domain.Client, error) {
	client, err := s.clientRepo.GetByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if client.IsArchived {
		return nil, fmt.Errorf("%w: %s", ErrClientArchived, client.Name)
	}
	return client, nil
}
