package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is derived from the sent/paid timestamps, never stored
type InvoiceStatus string

const (
	InvoiceStatusDraft InvoiceStatus = "draft"
	InvoiceStatusSent  InvoiceStatus = "sent"
	InvoiceStatusPaid  InvoiceStatus = "paid"
)

// DefaultSentBackfillHour is the hour of the invoice date used for SentAt when
// an invoice is marked paid without ever being marked sent.
const DefaultSentBackfillHour = 13

type Invoice struct {
	ID          int64
	ClientID    int64
	Number      string
	Date        time.Time
	DueDate     time.Time
	Amount      decimal.Decimal // derived from linked entries
	Description string          // derived from linked entries
	SentAt      *time.Time
	PaidAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Related data (populated by repository)
	Client *Client
}

// NewInvoice creates a new draft invoice
func NewInvoice(clientID int64, number string, date, dueDate time.Time) *Invoice {
	now := time.Now()
	return &Invoice{
		ClientID:  clientID,
		Number:    number,
		Date:      Day(date),
		DueDate:   Day(dueDate),
		Amount:    decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Status returns the lifecycle state implied by the timestamps
func (i *Invoice) Status() InvoiceStatus {
	switch {
	case i.PaidAt != nil:
		return InvoiceStatusPaid
	case i.SentAt != nil:
		return InvoiceStatusSent
	default:
		return InvoiceStatusDraft
	}
}

// IsOverdue returns true if the invoice was sent, is unpaid, and its due date
// has passed.
func (i *Invoice) IsOverdue(now time.Time) bool {
	return i.Status() == InvoiceStatusSent && i.DueDate.Before(now)
}

// MarkSent stamps the sent timestamp
func (i *Invoice) MarkSent(at time.Time) {
	i.SentAt = &at
	i.UpdatedAt = time.Now()
}

// MarkPaid stamps the paid timestamp. An invoice that was never marked sent
// gets SentAt back-filled to its invoice date at backfillHour, so a paid
// invoice always has both timestamps.
func (i *Invoice) MarkPaid(at time.Time, backfillHour int) {
	if i.SentAt == nil {
		sent := time.Date(i.Date.Year(), i.Date.Month(), i.Date.Day(), backfillHour, 0, 0, 0, i.Date.Location())
		i.SentAt = &sent
	}
	i.PaidAt = &at
	i.UpdatedAt = time.Now()
}

// Reopen clears both timestamps, returning the invoice to draft
func (i *Invoice) Reopen() {
	i.SentAt = nil
	i.PaidAt = nil
	i.UpdatedAt = time.Now()
}

// Validate returns an error if the invoice is invalid
func (i *Invoice) Validate() error {
	if i.Number == "" {
		return errors.New("invoice number is required")
	}
	if i.ClientID <= 0 {
		return errors.New("client ID is required")
	}
	if i.Date.IsZero() {
		return errors.New("invoice date is required")
	}
	if i.DueDate.IsZero() {
		return errors.New("due date is required")
	}
	if i.DueDate.Before(i.Date) {
		return errors.New("due date must not be before invoice date")
	}
	if i.Amount.IsNegative() {
		return errors.New("amount cannot be negative")
	}
	return nil
}
