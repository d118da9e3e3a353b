package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andy/invoicer/internal/billing"
	"github.com/andy/invoicer/internal/domain"
	"github.com/andy/invoicer/internal/repository"
	"github.com/rs/zerolog"
)

// LinkageService keeps the link between time entries and the invoice that
// claims them, and the invoice totals derived from that link.
type LinkageService interface {
	// ClaimForPeriod links every billable, unlinked entry of the client dated
	// in period's calendar month to the invoice
	ClaimForPeriod(ctx context.Context, invoiceID, clientID int64, period time.Time) (int64, error)

	// Associate links unlinked entries to the invoice and regenerates it.
	// Entries that cannot be linked are skipped and reported, not failed.
	Associate(ctx context.Context, invoiceID int64, entryIDs []int64) (*AssociateResult, error)

	// Disassociate unlinks one entry from the invoice and regenerates it
	Disassociate(ctx context.Context, invoiceID, entryID int64) (*domain.Invoice, error)

	// Regenerate recomputes amount and description from the linked entries
	Regenerate(ctx context.Context, invoiceID int64) (*domain.Invoice, error)

	// RefreshSummary recomputes the amount and swaps the "Total Hours (N)"
	// line of the stored description, keeping the rest of the text as is
	RefreshSummary(ctx context.Context, invoiceID int64) (*domain.Invoice, error)
}

// SkippedEntry is an entry Associate left alone, with the reason
type SkippedEntry struct {
	EntryID int64
	Err     error
}

// AssociateResult reports what Associate did with each requested entry
type AssociateResult struct {
	Invoice   *domain.Invoice
	Linked    []int64
	Unchanged []int64 // already on this invoice
	Skipped   []SkippedEntry
}

type linkageService struct {
	invoiceRepo repository.InvoiceRepository
	entryRepo   repository.TimeEntryRepository
	generator   *billing.Generator
	logger      zerolog.Logger
}

// NewLinkageService creates a new linkage service
func NewLinkageService(
	invoiceRepo repository.InvoiceRepository,
	entryRepo repository.TimeEntryRepository,
	generator *billing.Generator,
	logger zerolog.Logger,
) LinkageService {
	return &linkageService{
		invoiceRepo: invoiceRepo,
		entryRepo:   entryRepo,
		generator:   generator,
		logger:      logger.With().Str("component", "linkage").Logger(),
	}
}

func (s *linkageService) ClaimForPeriod(ctx context.Context, invoiceID, clientID int64, period time.Time) (int64, error) {
	claimed, err := s.entryRepo.ClaimForMonth(ctx, invoiceID, clientID, period)
	if err != nil {
		return 0, fmt.Errorf("failed to claim entries for invoice %d: %w", invoiceID, err)
	}

	s.logger.Debug().
		Int64("invoice_id", invoiceID).
		Int64("client_id", clientID).
		Str("period", period.Format("2006-01")).
		Int64("claimed", claimed).
		Msg("claimed entries")

	return claimed, nil
}

func (s *linkageService) Associate(ctx context.Context, invoiceID int64, entryIDs []int64) (*AssociateResult, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	result := &AssociateResult{Invoice: invoice}
	for _, entryID := range entryIDs {
		entry, err := s.entryRepo.GetByID(ctx, entryID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				result.skip(entryID, ErrEntryNotFound)
				continue
			}
			return nil, err
		}

		switch {
		case entry.LinkedTo(invoiceID):
			result.Unchanged = append(result.Unchanged, entryID)
			continue
		case entry.IsLinked():
			result.skip(entryID, ErrEntryAlreadyLinked)
			continue
		case entry.ClientID != invoice.ClientID:
			result.skip(entryID, ErrEntryClientMismatch)
			continue
		}

		linked, err := s.entryRepo.Link(ctx, entryID, invoiceID)
		if err != nil {
			return nil, err
		}
		if !linked {
			// Claimed by someone else between the read and the update
			result.skip(entryID, ErrEntryAlreadyLinked)
			continue
		}
		result.Linked = append(result.Linked, entryID)
	}

	for _, sk := range result.Skipped {
		s.logger.Info().
			Int64("invoice_id", invoiceID).
			Int64("entry_id", sk.EntryID).
			Err(sk.Err).
			Msg("entry skipped")
	}

	if len(result.Linked) == 0 {
		return result, nil
	}

	if result.Invoice, err = s.Regenerate(ctx, invoiceID); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *AssociateResult) skip(entryID int64, err error) {
	r.Skipped = append(r.Skipped, SkippedEntry{EntryID: entryID, Err: err})
}

func (s *linkageService) Disassociate(ctx context.Context, invoiceID, entryID int64) (*domain.Invoice, error) {
	if _, err := s.invoiceRepo.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}

	unlinked, err := s.entryRepo.Unlink(ctx, entryID, invoiceID)
	if err != nil {
		return nil, err
	}
	if !unlinked {
		if _, err := s.entryRepo.GetByID(ctx, entryID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: entry %d", ErrEntryNotFound, entryID)
			}
			return nil, err
		}
		return nil, fmt.Errorf("%w: entry %d", ErrEntryNotOnInvoice, entryID)
	}

	return s.Regenerate(ctx, invoiceID)
}

func (s *linkageService) Regenerate(ctx context.Context, invoiceID int64) (*domain.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	entries, err := s.entryRepo.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	details := s.generator.Generate(ctx, entries, invoice.Date)

	if err := s.invoiceRepo.UpdateTotals(ctx, invoiceID, details.Amount, details.Description); err != nil {
		return nil, err
	}

	invoice.Amount = details.Amount
	invoice.Description = details.Description

	s.logger.Info().
		Str("number", invoice.Number).
		Int("entries", len(entries)).
		Str("amount", details.Amount.StringFixed(2)).
		Msg("invoice regenerated")

	return invoice, nil
}

func (s *linkageService) RefreshSummary(ctx context.Context, invoiceID int64) (*domain.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	entries, err := s.entryRepo.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	details := billing.Summarize(entries, invoice.Date)
	description := billing.ReplaceSummary(invoice.Description, details.Summary)
	if description == "" {
		description = billing.EmptyDescription(invoice.Date)
	}

	if err := s.invoiceRepo.UpdateTotals(ctx, invoiceID, details.Amount, description); err != nil {
		return nil, err
	}

	invoice.Amount = details.Amount
	invoice.Description = description

	s.logger.Info().
		Str("number", invoice.Number).
		Int("entries", len(entries)).
		Str("amount", details.Amount.StringFixed(2)).
		Msg("invoice summary refreshed")

	return invoice, nil
}
