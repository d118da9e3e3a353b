package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceStatus(t *testing.T) {
	inv := NewInvoice(1, "ABC20240315", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, InvoiceStatusDraft, inv.Status())

	inv.MarkSent(time.Date(2024, 3, 16, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, InvoiceStatusSent, inv.Status())

	inv.MarkPaid(time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC), DefaultSentBackfillHour)
	assert.Equal(t, InvoiceStatusPaid, inv.Status())
	assert.Equal(t, 16, inv.SentAt.Day(), "existing sent timestamp is kept")

	inv.Reopen()
	assert.Equal(t, InvoiceStatusDraft, inv.Status())
	assert.Nil(t, inv.SentAt)
	assert.Nil(t, inv.PaidAt)
}

func TestMarkPaidBackfillsSent(t *testing.T) {
	inv := NewInvoice(1, "ABC20240315", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC))

	inv.MarkPaid(time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC), 13)

	require.NotNil(t, inv.SentAt)
	assert.Equal(t, time.Date(2024, 3, 15, 13, 0, 0, 0, time.UTC), *inv.SentAt)
}

func TestIsOverdue(t *testing.T) {
	inv := NewInvoice(1, "ABC20240315", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC))
	after := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)

	assert.False(t, inv.IsOverdue(after), "drafts are never overdue")

	inv.MarkSent(time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))
	assert.False(t, inv.IsOverdue(time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)))
	assert.True(t, inv.IsOverdue(after))

	inv.MarkPaid(after, DefaultSentBackfillHour)
	assert.False(t, inv.IsOverdue(after))
}

func TestInvoiceValidate(t *testing.T) {
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, NewInvoice(1, "ABC20240315", date, date).Validate())
	assert.Error(t, NewInvoice(1, "", date, date).Validate())
	assert.Error(t, NewInvoice(0, "ABC20240315", date, date).Validate())
	assert.Error(t, NewInvoice(1, "ABC20240315", date, date.AddDate(0, 0, -1)).Validate())
}

func TestClientDueDate(t *testing.T) {
	c := NewClient("Acme", "acme", decimal.NewFromInt(100))
	assert.Equal(t, "ACME", c.Code)

	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC), c.DueDate(date, 15))

	c.PaymentTermsDays = 45
	assert.Equal(t, time.Date(2024, 4, 29, 0, 0, 0, 0, time.UTC), c.DueDate(date, 15))
}

func TestClientValidate(t *testing.T) {
	tests := []struct {
		name    string
		client  *Client
		wantErr bool
	}{
		{"valid", NewClient("Acme", "ABC123", decimal.NewFromInt(100)), false},
		{"missing name", NewClient(" ", "ABC", decimal.Zero), true},
		{"missing code", NewClient("Acme", "", decimal.Zero), true},
		{"code with dash", NewClient("Acme", "AB-C", decimal.Zero), true},
		{"negative rate", NewClient("Acme", "ABC", decimal.NewFromInt(-1)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.client.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTimeEntry(t *testing.T) {
	e := NewTimeEntry(1, time.Date(2024, 3, 3, 22, 15, 0, 0, time.UTC), decimal.RequireFromString("1.5"), decimal.NewFromInt(100), "Work")
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), e.Date)
	assert.True(t, e.Amount().Equal(decimal.NewFromInt(150)))
	assert.False(t, e.IsLinked())
	assert.NoError(t, e.Validate())

	id := int64(7)
	e.InvoiceID = &id
	assert.True(t, e.LinkedTo(7))
	assert.False(t, e.LinkedTo(8))

	e.Hours = decimal.NewFromInt(-1)
	assert.Error(t, e.Validate())
}

func TestMonthRange(t *testing.T) {
	start, end := MonthRange(time.Date(2024, 2, 29, 18, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestNewLinkHistory(t *testing.T) {
	to := int64(12)
	h := NewLinkHistory(3, nil, &to, "claimed")
	assert.Equal(t, FieldInvoiceID, h.FieldName)
	assert.Equal(t, "", h.OldValue)
	assert.Equal(t, "12", h.NewValue)
}
