package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/andy/invoicer/internal/db"
	"github.com/andy/invoicer/internal/domain"
	"github.com/shopspring/decimal"
)

// EntryRepo is a SQLite implementation of TimeEntryRepository
type EntryRepo struct {
	db *db.DB
}

// NewEntryRepo creates a new EntryRepo
func NewEntryRepo(database *db.DB) *EntryRepo {
	return &EntryRepo{db: database}
}

const entryColumns = `id, client_id, date, hours, rate, description, is_billable, invoice_id, created_at, updated_at`

// Create inserts a new time entry into the database
func (r *EntryRepo) Create(ctx context.Context, entry *domain.TimeEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid time entry: %w", err)
	}

	query := `
		INSERT INTO time_entries (
			client_id, date, hours, rate, description, is_billable, invoice_id, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query,
		entry.ClientID,
		entry.Date.Format(dateLayout),
		entry.Hours.String(),
		entry.Rate.String(),
		entry.Description,
		entry.IsBillable,
		entry.InvoiceID,
		entry.CreatedAt.Format(timeLayout),
		entry.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to create time entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get time entry ID: %w", err)
	}

	entry.ID = id
	return nil
}

// GetByID retrieves a time entry by ID
func (r *EntryRepo) GetByID(ctx context.Context, id int64) (*domain.TimeEntry, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx, `SELECT `+entryColumns+` FROM time_entries WHERE id = ?`, id)
	entry, err := scanTimeEntry(row)
	if err != nil {
		return nil, notFound("time entry", err)
	}
	return entry, nil
}

// Update updates the editable fields of a time entry and creates an audit
// record per changed field. The invoice link is not touched; use
// ClaimForMonth, Link and Unlink for that.
func (r *EntryRepo) Update(ctx context.Context, entry *domain.TimeEntry, reason string) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid time entry: %w", err)
	}

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		oldEntry, err := r.GetByID(ctx, entry.ID)
		if err != nil {
			return err
		}

		entry.UpdatedAt = time.Now()

		query := `
			UPDATE time_entries
			SET client_id = ?, date = ?, hours = ?, rate = ?, description = ?,
			    is_billable = ?, updated_at = ?
			WHERE id = ?
		`

		result, err := r.db.Conn(ctx).ExecContext(ctx, query,
			entry.ClientID,
			entry.Date.Format(dateLayout),
			entry.Hours.String(),
			entry.Rate.String(),
			entry.Description,
			entry.IsBillable,
			entry.UpdatedAt.Format(timeLayout),
			entry.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update time entry: %w", err)
		}
		if err := expectOneRow(result, "time entry"); err != nil {
			return err
		}

		entry.InvoiceID = oldEntry.InvoiceID
		return r.createAuditRecords(ctx, oldEntry, entry, reason)
	})
}

// List retrieves time entries matching filter, newest first
func (r *EntryRepo) List(ctx context.Context, filter EntryFilter) ([]*domain.TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries WHERE 1 = 1`
	args := make([]any, 0)

	if filter.ClientID != nil {
		query += " AND client_id = ?"
		args = append(args, *filter.ClientID)
	}

	if filter.InvoiceID != nil {
		query += " AND invoice_id = ?"
		args = append(args, *filter.InvoiceID)
	}

	if filter.Month != nil {
		start, end := domain.MonthRange(*filter.Month)
		query += " AND date >= ? AND date < ?"
		args = append(args, start.Format(dateLayout), end.Format(dateLayout))
	}

	if filter.UnbilledOnly {
		query += " AND invoice_id IS NULL"
	}

	if filter.BillableOnly {
		query += " AND is_billable = 1"
	}

	query += " ORDER BY date DESC, id DESC"

	return r.query(ctx, query, args...)
}

// ListUnbilledForMonth returns the billable, unlinked entries of a client
// dated in period's calendar month. These are the entries ClaimForMonth
// would claim.
func (r *EntryRepo) ListUnbilledForMonth(ctx context.Context, clientID int64, period time.Time) ([]*domain.TimeEntry, error) {
	start, end := domain.MonthRange(period)

	query := `
		SELECT ` + entryColumns + `
		FROM time_entries
		WHERE client_id = ?
		  AND invoice_id IS NULL
		  AND is_billable = 1
		  AND date >= ?
		  AND date < ?
		ORDER BY date, id
	`

	return r.query(ctx, query, clientID, start.Format(dateLayout), end.Format(dateLayout))
}

// ListByInvoice returns every entry linked to an invoice, oldest first
func (r *EntryRepo) ListByInvoice(ctx context.Context, invoiceID int64) ([]*domain.TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries WHERE invoice_id = ? ORDER BY date, id`
	return r.query(ctx, query, invoiceID)
}

// ClaimForMonth links every eligible entry to invoiceID in one statement and
// records a history row per claimed entry.
func (r *EntryRepo) ClaimForMonth(ctx context.Context, invoiceID, clientID int64, period time.Time) (int64, error) {
	start, end := domain.MonthRange(period)
	var claimed int64

	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		conn := r.db.Conn(ctx)
		changedAt := formatTime()

		_, err := conn.ExecContext(ctx, `
			INSERT INTO entry_history (entry_id, field_name, old_value, new_value, change_reason, changed_at)
			SELECT id, ?, '', ?, ?, ?
			FROM time_entries
			WHERE client_id = ? AND invoice_id IS NULL AND is_billable = 1 AND date >= ? AND date < ?
		`,
			domain.FieldInvoiceID, strconv.FormatInt(invoiceID, 10), "claimed by invoice", changedAt,
			clientID, start.Format(dateLayout), end.Format(dateLayout),
		)
		if err != nil {
			return fmt.Errorf("failed to record claim history: %w", err)
		}

		result, err := conn.ExecContext(ctx, `
			UPDATE time_entries
			SET invoice_id = ?, updated_at = ?
			WHERE client_id = ? AND invoice_id IS NULL AND is_billable = 1 AND date >= ? AND date < ?
		`,
			invoiceID, changedAt,
			clientID, start.Format(dateLayout), end.Format(dateLayout),
		)
		if err != nil {
			return fmt.Errorf("failed to claim entries: %w", err)
		}

		claimed, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return claimed, nil
}

// Link attaches an unlinked entry to an invoice
func (r *EntryRepo) Link(ctx context.Context, entryID, invoiceID int64) (bool, error) {
	query := `UPDATE time_entries SET invoice_id = ?, updated_at = ? WHERE id = ? AND invoice_id IS NULL`
	return r.relink(ctx, domain.NewLinkHistory(entryID, nil, &invoiceID, "added to invoice"),
		query, invoiceID, formatTime(), entryID,
	)
}

// Unlink detaches an entry from invoiceID
func (r *EntryRepo) Unlink(ctx context.Context, entryID, invoiceID int64) (bool, error) {
	query := `UPDATE time_entries SET invoice_id = NULL, updated_at = ? WHERE id = ? AND invoice_id = ?`
	return r.relink(ctx, domain.NewLinkHistory(entryID, &invoiceID, nil, "removed from invoice"),
		query, formatTime(), entryID, invoiceID,
	)
}

// relink runs a conditional link update and writes h when a row changed
func (r *EntryRepo) relink(ctx context.Context, h *domain.EntryHistory, query string, args ...any) (bool, error) {
	var changed bool

	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		result, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to update entry %d link: %w", h.EntryID, err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected for entry %d: %w", h.EntryID, err)
		}
		if rows == 0 {
			return nil
		}

		changed = true
		return r.insertHistory(ctx, h)
	})
	if err != nil {
		return false, err
	}

	return changed, nil
}

// GetHistory retrieves the audit trail for a time entry
func (r *EntryRepo) GetHistory(ctx context.Context, entryID int64) ([]*domain.EntryHistory, error) {
	query := `
		SELECT id, entry_id, field_name, old_value, new_value, change_reason, changed_at
		FROM entry_history
		WHERE entry_id = ?
		ORDER BY changed_at DESC, id DESC
	`

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entry history: %w", err)
	}
	defer rows.Close()

	history := make([]*domain.EntryHistory, 0)
	for rows.Next() {
		h := &domain.EntryHistory{}
		var changedAt string

		err := rows.Scan(
			&h.ID,
			&h.EntryID,
			&h.FieldName,
			&h.OldValue,
			&h.NewValue,
			&h.ChangeReason,
			&changedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}

		if h.ChangedAt, err = parseTime(changedAt); err != nil {
			return nil, fmt.Errorf("failed to parse changed_at: %w", err)
		}

		history = append(history, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return history, nil
}

func (r *EntryRepo) query(ctx context.Context, query string, args ...any) ([]*domain.TimeEntry, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list time entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*domain.TimeEntry, 0)
	for rows.Next() {
		entry, err := scanTimeEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan time entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating time entries: %w", err)
	}

	return entries, nil
}

func (r *EntryRepo) insertHistory(ctx context.Context, h *domain.EntryHistory) error {
	query := `
		INSERT INTO entry_history (entry_id, field_name, old_value, new_value, change_reason, changed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Conn(ctx).ExecContext(ctx, query,
		h.EntryID, h.FieldName, h.OldValue, h.NewValue, h.ChangeReason, h.ChangedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to create audit record: %w", err)
	}
	return nil
}

// createAuditRecords creates history records for changed fields
func (r *EntryRepo) createAuditRecords(ctx context.Context, old, new *domain.TimeEntry, reason string) error {
	changes := []struct {
		field    string
		from, to string
	}{
		{"client_id", strconv.FormatInt(old.ClientID, 10), strconv.FormatInt(new.ClientID, 10)},
		{"date", old.Date.Format(dateLayout), new.Date.Format(dateLayout)},
		{"hours", old.Hours.StringFixed(2), new.Hours.StringFixed(2)},
		{"rate", old.Rate.StringFixed(2), new.Rate.StringFixed(2)},
		{"description", old.Description, new.Description},
		{"is_billable", strconv.FormatBool(old.IsBillable), strconv.FormatBool(new.IsBillable)},
	}

	for _, c := range changes {
		if c.from == c.to {
			continue
		}
		if err := r.insertHistory(ctx, domain.NewEntryHistory(new.ID, c.field, c.from, c.to, reason)); err != nil {
			return fmt.Errorf("failed to audit %s change: %w", c.field, err)
		}
	}

	return nil
}

func scanTimeEntry(row rowScanner) (*domain.TimeEntry, error) {
	entry := &domain.TimeEntry{}
	var date, hours, rate, createdAt, updatedAt string
	var invoiceID sql.NullInt64

	err := row.Scan(
		&entry.ID,
		&entry.ClientID,
		&date,
		&hours,
		&rate,
		&entry.Description,
		&entry.IsBillable,
		&invoiceID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if entry.Date, err = parseDate(date); err != nil {
		return nil, fmt.Errorf("failed to parse date: %w", err)
	}
	if entry.Hours, err = decimal.NewFromString(hours); err != nil {
		return nil, fmt.Errorf("failed to parse hours: %w", err)
	}
	if entry.Rate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("failed to parse rate: %w", err)
	}
	if invoiceID.Valid {
		id := invoiceID.Int64
		entry.InvoiceID = &id
	}
	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if entry.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return entry, nil
}
