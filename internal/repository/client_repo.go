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

// ClientRepo is a SQLite implementation of ClientRepository
type ClientRepo struct {
	db *db.DB
}

// NewClientRepo creates a new ClientRepo
func NewClientRepo(database *db.DB) *ClientRepo {
	return &ClientRepo{db: database}
}

const clientColumns = `id, name, code, default_rate, payment_terms_days, email, notes, is_archived, created_at, updated_at`

// Create inserts a new client into the database
func (r *ClientRepo) Create(ctx context.Context, client *domain.Client) error {
	if err := client.Validate(); err != nil {
		return fmt.Errorf("invalid client: %w", err)
	}

	query := `
		INSERT INTO clients (name, code, default_rate, payment_terms_days, email, notes, is_archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query,
		client.Name,
		client.Code,
		client.DefaultRate.String(),
		client.PaymentTermsDays,
		client.Email,
		client.Notes,
		client.IsArchived,
		client.CreatedAt.Format(timeLayout),
		client.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		if isUniqueViolation(err, "clients.code") {
			return fmt.Errorf("client code %q is already in use", client.Code)
		}
		return fmt.Errorf("failed to create client: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get client ID: %w", err)
	}

	client.ID = id
	return nil
}

// GetByID retrieves a client by ID
func (r *ClientRepo) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	client, err := scanClient(row)
	if err != nil {
		return nil, notFound("client", err)
	}
	return client, nil
}

// GetByName retrieves a client by name
func (r *ClientRepo) GetByName(ctx context.Context, name string) (*domain.Client, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE name = ?`, name)
	client, err := scanClient(row)
	if err != nil {
		return nil, notFound("client", err)
	}
	return client, nil
}

// GetByCode retrieves a client by its invoice code
func (r *ClientRepo) GetByCode(ctx context.Context, code string) (*domain.Client, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE code = ?`, code)
	client, err := scanClient(row)
	if err != nil {
		return nil, notFound("client", err)
	}
	return client, nil
}

// List retrieves all clients, optionally including archived ones
func (r *ClientRepo) List(ctx context.Context, includeArchived bool) ([]*domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE is_archived = 0 OR ? = 1 ORDER BY name`

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	clients := make([]*domain.Client, 0)
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, client)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clients: %w", err)
	}

	return clients, nil
}

// Update updates an existing client
func (r *ClientRepo) Update(ctx context.Context, client *domain.Client) error {
	if err := client.Validate(); err != nil {
		return fmt.Errorf("invalid client: %w", err)
	}

	client.UpdatedAt = time.Now()

	query := `
		UPDATE clients
		SET name = ?, code = ?, default_rate = ?, payment_terms_days = ?, email = ?, notes = ?,
		    is_archived = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query,
		client.Name,
		client.Code,
		client.DefaultRate.String(),
		client.PaymentTermsDays,
		client.Email,
		client.Notes,
		client.IsArchived,
		client.UpdatedAt.Format(timeLayout),
		client.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}

	return expectOneRow(result, "client")
}

// Archive marks a client as archived
func (r *ClientRepo) Archive(ctx context.Context, id int64) error {
	return r.setArchived(ctx, id, true)
}

// Unarchive marks a client as active
func (r *ClientRepo) Unarchive(ctx context.Context, id int64) error {
	return r.setArchived(ctx, id, false)
}

func (r *ClientRepo) setArchived(ctx context.Context, id int64, archived bool) error {
	result, err := r.db.Conn(ctx).ExecContext(ctx,
		`UPDATE clients SET is_archived = ?, updated_at = ? WHERE id = ?`,
		archived, formatTime(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update client archive flag: %w", err)
	}
	return expectOneRow(result, "client")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*domain.Client, error) {
	client := &domain.Client{}
	var rate, createdAt, updatedAt string

	err := row.Scan(
		&client.ID,
		&client.Name,
		&client.Code,
		&rate,
		&client.PaymentTermsDays,
		&client.Email,
		&client.Notes,
		&client.IsArchived,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if client.DefaultRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("failed to parse default_rate: %w", err)
	}
	if client.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if client.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return client, nil
}

// expectOneRow turns a zero rows-affected result into ErrNotFound
func expectOneRow(result sql.Result, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %w", what, ErrNotFound)
	}
	return nil
}
