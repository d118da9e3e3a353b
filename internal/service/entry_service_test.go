package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogUsesClientRate(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	e, err := h.entrySvc.Log(ctx, LogEntryRequest{
		ClientID:    h.client.ID,
		Date:        time.Date(2024, time.March, 3, 17, 45, 0, 0, time.UTC),
		Hours:       decimal.RequireFromString("1.5"),
		Description: "  Bug fixes ",
	})
	require.NoError(t, err)
	assert.True(t, e.Rate.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, date(2024, time.March, 3), e.Date)
	assert.Equal(t, "Bug fixes", e.Description)
	assert.True(t, e.IsBillable)

	rate := decimal.NewFromInt(80)
	e, err = h.entrySvc.Log(ctx, LogEntryRequest{
		ClientID:    h.client.ID,
		Date:        date(2024, time.March, 4),
		Hours:       decimal.NewFromInt(1),
		Rate:        &rate,
		Description: "Call",
		NonBillable: true,
	})
	require.NoError(t, err)
	assert.True(t, e.Rate.Equal(rate))
	assert.False(t, e.IsBillable)
}

func TestUpdateLinkedEntryRegeneratesInvoice(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	e := h.entry(t, h.client.ID, date(2024, time.March, 3), "1", "Work")
	res, err := h.svc.Create(ctx, h.client.ID, date(2024, time.March, 31), nil)
	require.NoError(t, err)
	assert.True(t, res.Invoice.Amount.Equal(decimal.NewFromInt(100)))

	edited, err := h.entrySvc.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	edited.Hours = decimal.NewFromInt(3)

	inv, err := h.entrySvc.Update(ctx, edited, "forgot the afternoon")
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.True(t, inv.Amount.Equal(decimal.NewFromInt(300)))

	history, err := h.entrySvc.History(ctx, e.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, history)
}

func TestUpdateUnlinkedEntryReturnsNoInvoice(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	e := h.entry(t, h.client.ID, date(2024, time.March, 3), "1", "Work")
	e.Description = "Research"

	inv, err := h.entrySvc.Update(ctx, e, "")
	require.NoError(t, err)
	assert.Nil(t, inv)
}
