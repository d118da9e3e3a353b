package domain

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

type Client struct {
	ID               int64
	Name             string
	Code             string // prefix of every invoice number for this client
	DefaultRate      decimal.Decimal
	PaymentTermsDays int // 0 = use the configured default
	Email            string
	Notes            string
	IsArchived       bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewClient creates a new client with required fields
func NewClient(name, code string, defaultRate decimal.Decimal) *Client {
	now := time.Now()
	return &Client{
		Name:        strings.TrimSpace(name),
		Code:        strings.ToUpper(strings.TrimSpace(code)),
		DefaultRate: defaultRate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// DueDate returns the due date for an invoice issued on date, falling back to
// defaultDays when the client has no payment terms of its own.
func (c *Client) DueDate(date time.Time, defaultDays int) time.Time {
	days := c.PaymentTermsDays
	if days <= 0 {
		days = defaultDays
	}
	return date.AddDate(0, 0, days)
}

// Validate returns an error if the client is invalid
func (c *Client) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("client name is required")
	}
	if c.Code == "" {
		return errors.New("client code is required")
	}
	for _, r := range c.Code {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return errors.New("client code must be alphanumeric")
		}
	}
	if c.DefaultRate.IsNegative() {
		return errors.New("default rate cannot be negative")
	}
	if c.PaymentTermsDays < 0 {
		return errors.New("payment terms cannot be negative")
	}
	return nil
}
