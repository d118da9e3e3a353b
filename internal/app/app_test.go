package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/andy/invoicer/internal/billing"
	"github.com/andy/invoicer/internal/config"
	"github.com/andy/invoicer/internal/domain"
	"github.com/andy/invoicer/internal/service"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticKeyring struct{ key string }

func (k *staticKeyring) GetKey() (string, error) { return k.key, nil }
func (k *staticKeyring) SetKey(string) error     { return nil }
func (k *staticKeyring) DeleteKey() error        { return nil }
func (k *staticKeyring) IsAvailable() bool       { return true }

func TestNewNarratorSelection(t *testing.T) {
	cfg := config.DefaultConfig().Narrator

	_, ok := newNarrator(cfg, zerolog.Nop()).(billing.TemplateNarrator)
	assert.True(t, ok, "no API key means template narration")

	cfg.APIKey = "sk-test"
	_, ok = newNarrator(cfg, zerolog.Nop()).(*billing.AssistedNarrator)
	assert.True(t, ok)

	cfg.Enabled = false
	_, ok = newNarrator(cfg, zerolog.Nop()).(billing.TemplateNarrator)
	assert.True(t, ok, "disabled narrator ignores the key")
}

func TestNewWithConfigEndToEnd(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "data", "invoicer.db")
	cfg.Log.Level = "error"

	a, err := NewWithConfig(context.Background(), cfg, &staticKeyring{key: "secret"})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	ctx := context.Background()
	client := domain.NewClient("Acme Corp", "ABC123", decimal.NewFromInt(100))
	require.NoError(t, a.ClientRepo.Create(ctx, client))

	for _, hours := range []string{"1.5", "2.5"} {
		_, err := a.EntryService.Log(ctx, service.LogEntryRequest{
			ClientID:    client.ID,
			Date:        time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
			Hours:       decimal.RequireFromString(hours),
			Description: "Bug fixes",
		})
		require.NoError(t, err)
	}

	res, err := a.InvoiceService.Create(ctx, client.ID, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	assert.Equal(t, "ABC12320240315", res.Invoice.Number)
	assert.Equal(t, int64(2), res.Claimed)
	assert.True(t, res.Invoice.Amount.Equal(decimal.NewFromInt(400)))
	assert.Contains(t, res.Invoice.Description, "Bug fixes (4.00 hours @ $100.00/hr) = $400.00")

	stored, err := a.InvoiceService.GetByNumber(ctx, "ABC12320240315")
	require.NoError(t, err)
	assert.Equal(t, res.Invoice.Description, stored.Description)
}
