package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/andy/invoicer/internal/db"
	"github.com/andy/invoicer/internal/domain"
	"github.com/shopspring/decimal"
)

// InvoiceRepo is a SQLite implementation of InvoiceRepository
type InvoiceRepo struct {
	db *db.DB
}

// NewInvoiceRepo creates a new InvoiceRepo
func NewInvoiceRepo(database *db.DB) *InvoiceRepo {
	return &InvoiceRepo{db: database}
}

// invoiceSelect joins the owning client so listings can show its name
const invoiceSelect = `
	SELECT i.id, i.client_id, i.number, i.date, i.due_date, i.amount, i.description,
	       i.sent_at, i.paid_at, i.created_at, i.updated_at,
	       c.name, c.code
	FROM invoices i
	JOIN clients c ON c.id = i.client_id
`

// Create inserts a new invoice into the database
func (r *InvoiceRepo) Create(ctx context.Context, invoice *domain.Invoice) error {
	if err := invoice.Validate(); err != nil {
		return fmt.Errorf("invalid invoice: %w", err)
	}

	query := `
		INSERT INTO invoices (
			client_id, number, date, due_date, amount, description,
			sent_at, paid_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query,
		invoice.ClientID,
		invoice.Number,
		invoice.Date.Format(dateLayout),
		invoice.DueDate.Format(dateLayout),
		invoice.Amount.String(),
		invoice.Description,
		nullableTime(invoice.SentAt),
		nullableTime(invoice.PaidAt),
		invoice.CreatedAt.Format(timeLayout),
		invoice.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		if isUniqueViolation(err, "invoices.number") {
			return fmt.Errorf("%w: %s: %w", ErrDuplicateNumber, invoice.Number, err)
		}
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get invoice ID: %w", err)
	}

	invoice.ID = id
	return nil
}

// GetByID retrieves an invoice by ID
func (r *InvoiceRepo) GetByID(ctx context.Context, id int64) (*domain.Invoice, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx, invoiceSelect+` WHERE i.id = ?`, id)
	invoice, err := scanInvoice(row)
	if err != nil {
		return nil, notFound("invoice", err)
	}
	return invoice, nil
}

// GetByNumber retrieves an invoice by its number
func (r *InvoiceRepo) GetByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx, invoiceSelect+` WHERE i.number = ?`, number)
	invoice, err := scanInvoice(row)
	if err != nil {
		return nil, notFound("invoice", err)
	}
	return invoice, nil
}

// List retrieves invoices matching filter, newest first
func (r *InvoiceRepo) List(ctx context.Context, filter InvoiceFilter) ([]*domain.Invoice, error) {
	query := invoiceSelect + ` WHERE 1 = 1`
	args := make([]any, 0)

	if filter.ClientID != nil {
		query += " AND i.client_id = ?"
		args = append(args, *filter.ClientID)
	}

	if filter.Status != nil {
		switch *filter.Status {
		case domain.InvoiceStatusDraft:
			query += " AND i.sent_at IS NULL AND i.paid_at IS NULL"
		case domain.InvoiceStatusSent:
			query += " AND i.sent_at IS NOT NULL AND i.paid_at IS NULL"
		case domain.InvoiceStatusPaid:
			query += " AND i.paid_at IS NOT NULL"
		default:
			return nil, fmt.Errorf("unknown invoice status %q", *filter.Status)
		}
	}

	query += " ORDER BY i.date DESC, i.id DESC"

	return r.query(ctx, query, args...)
}

// Update writes the header fields and timestamps of an invoice
func (r *InvoiceRepo) Update(ctx context.Context, invoice *domain.Invoice) error {
	if err := invoice.Validate(); err != nil {
		return fmt.Errorf("invalid invoice: %w", err)
	}

	invoice.UpdatedAt = time.Now()

	query := `
		UPDATE invoices
		SET client_id = ?, number = ?, date = ?, due_date = ?, amount = ?, description = ?,
		    sent_at = ?, paid_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query,
		invoice.ClientID,
		invoice.Number,
		invoice.Date.Format(dateLayout),
		invoice.DueDate.Format(dateLayout),
		invoice.Amount.String(),
		invoice.Description,
		nullableTime(invoice.SentAt),
		nullableTime(invoice.PaidAt),
		invoice.UpdatedAt.Format(timeLayout),
		invoice.ID,
	)
	if err != nil {
		if isUniqueViolation(err, "invoices.number") {
			return fmt.Errorf("%w: %s: %w", ErrDuplicateNumber, invoice.Number, err)
		}
		return fmt.Errorf("failed to update invoice: %w", err)
	}

	return expectOneRow(result, "invoice")
}

// UpdateTotals stores the derived amount and description
func (r *InvoiceRepo) UpdateTotals(ctx context.Context, id int64, amount decimal.Decimal, description string) error {
	result, err := r.db.Conn(ctx).ExecContext(ctx,
		`UPDATE invoices SET amount = ?, description = ?, updated_at = ? WHERE id = ?`,
		amount.String(), description, formatTime(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice totals: %w", err)
	}
	return expectOneRow(result, "invoice")
}

// ListDraftsWithoutEntries returns draft invoices that no time entry references
func (r *InvoiceRepo) ListDraftsWithoutEntries(ctx context.Context) ([]*domain.Invoice, error) {
	query := invoiceSelect + `
		WHERE i.sent_at IS NULL AND i.paid_at IS NULL
		AND NOT EXISTS (SELECT 1 FROM time_entries e WHERE e.invoice_id = i.id)
		ORDER BY i.date, i.id
	`
	return r.query(ctx, query)
}

// Delete removes an invoice. Linked entries fall back to unbilled.
func (r *InvoiceRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		conn := r.db.Conn(ctx)

		_, err := conn.ExecContext(ctx, `
			INSERT INTO entry_history (entry_id, field_name, old_value, new_value, change_reason, changed_at)
			SELECT id, 'invoice_id', CAST(invoice_id AS TEXT), '', 'invoice deleted', ?
			FROM time_entries
			WHERE invoice_id = ?
		`, formatTime(), id)
		if err != nil {
			return fmt.Errorf("failed to record release history: %w", err)
		}

		_, err = conn.ExecContext(ctx,
			`UPDATE time_entries SET invoice_id = NULL, updated_at = ? WHERE invoice_id = ?`,
			formatTime(), id,
		)
		if err != nil {
			return fmt.Errorf("failed to release entries: %w", err)
		}

		result, err := conn.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete invoice: %w", err)
		}
		return expectOneRow(result, "invoice")
	})
}

func (r *InvoiceRepo) query(ctx context.Context, query string, args ...any) ([]*domain.Invoice, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	invoices := make([]*domain.Invoice, 0)
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoices: %w", err)
	}

	return invoices, nil
}

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	invoice := &domain.Invoice{Client: &domain.Client{}}
	var date, dueDate, amount, createdAt, updatedAt string
	var sentAt, paidAt sql.NullString

	err := row.Scan(
		&invoice.ID,
		&invoice.ClientID,
		&invoice.Number,
		&date,
		&dueDate,
		&amount,
		&invoice.Description,
		&sentAt,
		&paidAt,
		&createdAt,
		&updatedAt,
		&invoice.Client.Name,
		&invoice.Client.Code,
	)
	if err != nil {
		return nil, err
	}

	invoice.Client.ID = invoice.ClientID

	if invoice.Date, err = parseDate(date); err != nil {
		return nil, fmt.Errorf("failed to parse date: %w", err)
	}
	if invoice.DueDate, err = parseDate(dueDate); err != nil {
		return nil, fmt.Errorf("failed to parse due_date: %w", err)
	}
	if invoice.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	if invoice.SentAt, err = parseNullableTime(sentAt); err != nil {
		return nil, fmt.Errorf("failed to parse sent_at: %w", err)
	}
	if invoice.PaidAt, err = parseNullableTime(paidAt); err != nil {
		return nil, fmt.Errorf("failed to parse paid_at: %w", err)
	}
	if invoice.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if invoice.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return invoice, nil
}
