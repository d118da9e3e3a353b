package service

import (
	"context"
	"time"

	"github.com/andy/invoicer/internal/domain"
	"github.com/andy/invoicer/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LogEntryRequest describes a time entry to record
type LogEntryRequest struct {
	ClientID    int64
	Date        time.Time
	Hours       decimal.Decimal
	Rate        *decimal.Decimal // nil = client's default rate
	Description string
	NonBillable bool
}

// EntryService records and edits time entries, keeping any invoice that
// claims an edited entry in step with it
type EntryService interface {
	Log(ctx context.Context, req LogEntryRequest) (*domain.TimeEntry, error)

	// Update saves an edited entry with an audit reason. When the entry is
	// on an invoice, that invoice is regenerated.
	Update(ctx context.Context, entry *domain.TimeEntry, reason string) (*domain.Invoice, error)

	GetEntry(ctx context.Context, id int64) (*domain.TimeEntry, error)
	ListEntries(ctx context.Context, filter repository.EntryFilter) ([]*domain.TimeEntry, error)
	History(ctx context.Context, entryID int64) ([]*domain.EntryHistory, error)
}

type entryService struct {
	entryRepo  repository.TimeEntryRepository
	clientRepo repository.ClientRepository
	linkage    LinkageService
	logger     zerolog.Logger
}

// NewEntryService creates a new entry service
func NewEntryService(
	entryRepo repository.TimeEntryRepository,
	clientRepo repository.ClientRepository,
	linkage LinkageService,
	logger zerolog.Logger,
) EntryService {
	return &entryService{
		entryRepo:  entryRepo,
		clientRepo: clientRepo,
		linkage:    linkage,
		logger:     logger.With().Str("component", "entries").Logger(),
	}
}

func (s *entryService) Log(ctx context.Context, req LogEntryRequest) (*domain.TimeEntry, error) {
	client, err := s.clientRepo.GetByID(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	if client.IsArchived {
		return nil, ErrClientArchived
	}

	rate := client.DefaultRate
	if req.Rate != nil {
		rate = *req.Rate
	}

	entry := domain.NewTimeEntry(client.ID, req.Date, req.Hours, rate, req.Description)
	entry.IsBillable = !req.NonBillable

	if err := s.entryRepo.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Int64("entry_id", entry.ID).
		Int64("client_id", client.ID).
		Str("hours", entry.Hours.String()).
		Msg("entry logged")

	return entry, nil
}

func (s *entryService) Update(ctx context.Context, entry *domain.TimeEntry, reason string) (*domain.Invoice, error) {
	if err := s.entryRepo.Update(ctx, entry, reason); err != nil {
		return nil, err
	}

	if entry.InvoiceID == nil {
		return nil, nil
	}
	return s.linkage.Regenerate(ctx, *entry.InvoiceID)
}

func (s *entryService) GetEntry(ctx context.Context, id int64) (*domain.TimeEntry, error) {
	return s.entryRepo.GetByID(ctx, id)
}

func (s *entryService) ListEntries(ctx context.Context, filter repository.EntryFilter) ([]*domain.TimeEntry, error) {
	return s.entryRepo.List(ctx, filter)
}

func (s *entryService) History(ctx context.Context, entryID int64) ([]*domain.EntryHistory, error) {
	return s.entryRepo.GetHistory(ctx, entryID)
}
