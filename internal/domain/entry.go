package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TimeEntry struct {
	ID          int64
	ClientID    int64
	Date        time.Time       // day the work was done, midnight UTC
	Hours       decimal.Decimal // fractional, never negative
	Rate        decimal.Decimal // frozen when the entry is logged
	Description string
	IsBillable  bool
	InvoiceID   *int64 // nil = unbilled
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewTimeEntry creates a billable time entry for a client
func NewTimeEntry(clientID int64, date time.Time, hours, rate decimal.Decimal, description string) *TimeEntry {
	now := time.Now()
	return &TimeEntry{
		ClientID:    clientID,
		Date:        Day(date),
		Hours:       hours,
		Rate:        rate,
		Description: strings.TrimSpace(description),
		IsBillable:  true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Amount returns hours * rate. Unlike reporting totals this ignores the
// billable flag; callers filter before summing.
func (e *TimeEntry) Amount() decimal.Decimal {
	return e.Hours.Mul(e.Rate)
}

// IsLinked returns true if the entry is claimed by an invoice
func (e *TimeEntry) IsLinked() bool {
	return e.InvoiceID != nil
}

// LinkedTo reports whether the entry is claimed by the given invoice
func (e *TimeEntry) LinkedTo(invoiceID int64) bool {
	return e.InvoiceID != nil && *e.InvoiceID == invoiceID
}

// Validate returns an error if the entry is invalid
func (e *TimeEntry) Validate() error {
	if e.ClientID <= 0 {
		return errors.New("client ID is required")
	}
	if e.Date.IsZero() {
		return errors.New("date is required")
	}
	if e.Hours.IsNegative() {
		return errors.New("hours cannot be negative")
	}
	if e.Rate.IsNegative() {
		return errors.New("hourly rate cannot be negative")
	}
	if e.Description == "" {
		return errors.New("description is required")
	}
	return nil
}

// Day truncates t to midnight UTC of its calendar day
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthRange returns the first day of t's month and the first day of the
// following month.
func MonthRange(t time.Time) (start, end time.Time) {
	y, m, _ := t.Date()
	start = time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
