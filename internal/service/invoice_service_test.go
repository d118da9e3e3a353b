package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andy/invoicer/internal/domain"
	"github.com/andy/invoicer/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateClaimsMonthAndDerivesTotals(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.entry(t, h.client.ID, date(2024, time.March, 1), "1.5", "Bug fixes")
	h.entry(t, h.client.ID, date(2024, time.March, 20), "2.5", "Bug fixes")
	h.entry(t, h.client.ID, date(2024, time.February, 29), "8", "Older work")

	res, err := h.svc.Create(ctx, h.client.ID, date(2024, time.March, 15), nil)
	require.NoError(t, err)

	inv := res.Invoice
	assert.Equal(t, int64(2), res.Claimed)
	assert.Equal(t, "ABC20240315", inv.Number)
	assert.Equal(t, date(2024, time.March, 30), inv.DueDate)
	assert.True(t, inv.Amount.Equal(decimal.NewFromInt(400)))
	assert.Equal(t,
		"Professional Services for March 2024\n\n"+
			"- Bug fixes (4.00 hours @ $100.00/hr) = $400.00\n\n"+
			"Total Hours: 4.00\nTotal Amount: $400.00",
		inv.Description,
	)
	assert.Equal(t, domain.InvoiceStatusDraft, inv.Status())
	assert.Equal(t, 1, h.store.txCount)
}

func TestCreateUsesClientPaymentTerms(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.client.PaymentTermsDays = 30
	require.NoError(t, h.clients.Update(ctx, h.client))

	res, err := h.svc.Create(ctx, h.client.ID, date(2024, time.March, 1), nil)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.March, 31), res.Invoice.DueDate)

	explicit := date(2024, time.May, 1)
	res, err = h.svc.Create(ctx, h.client.ID, date(2024, time.April, 1), &explicit)
	require.NoError(t, err)
	assert.Equal(t, explicit, res.Invoice.DueDate)
}

func TestCreateWithNoEntries(t *testing.T) {
	h := newHarness(t, nil)

	res, err := h.svc.Create(context.Background(), h.client.ID, date(2024, time.March, 15), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Claimed)
	assert.True(t, res.Invoice.Amount.IsZero())
	assert.Equal(t, "No billable time entries found for March 2024.", res.Invoice.Description)
}

func TestCreateDuplicateNumberRollsBack(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.Create(ctx, h.client.ID, date(2024, time.March, 15), nil)
	require.NoError(t, err)

	e := h.entry(t, h.client.ID, date(2024, time.March, 16), "1", "Late work")

	_, err = h.svc.Create(ctx, h.client.ID, date(2024, time.March, 15), nil)
	require.ErrorIs(t, err, repository.ErrDuplicateNumber)

	got, err := h.entries.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, got.IsLinked())

	all, err := h.svc.ListInvoices(ctx, repository.InvoiceFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreateClaimFailureRollsBackInvoice(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.store.claimErr = errors.New("disk full")
	_, err := h.svc.Create(ctx, h.client.ID, date(2024, time.March, 15), nil)
	require.Error(t, err)

	_, err = h.svc.GetByNumber(ctx, "ABC20240315")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateRejectsArchivedClient(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.clients.Archive(ctx, h.client.ID))
	_, err := h.svc.Create(ctx, h.client.ID, date(2024, time.March, 15), nil)
	assert.ErrorIs(t, err, ErrClientArchived)
}

func TestPreviewDoesNotPersist(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	e := h.entry(t, h.client.ID, date(2024, time.March, 1), "2", "Design")

	p, err := h.svc.Preview(ctx, h.client.ID, date(2024, time.March, 31))
	require.NoError(t, err)
	assert.Equal(t, "ABC20240331", p.Number)
	assert.True(t, p.Details.Amount.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, "Total Hours (2.00)", p.Details.Summary)
	assert.Len(t, p.Entries, 1)

	got, err := h.entries.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, got.IsLinked())
	assert.Empty(t, h.store.invoices)
}

func TestLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	inv := h.draft(t, date(2024, time.March, 15))

	paidAt := time.Date(2024, time.April, 2, 10, 0, 0, 0, time.UTC)
	got, err := h.svc.MarkPaid(ctx, inv.ID, paidAt)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, got.Status())
	require.NotNil(t, got.SentAt)
	assert.Equal(t, time.Date(2024, time.March, 15, 13, 0, 0, 0, time.UTC), *got.SentAt)

	got, err = h.svc.Reopen(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusDraft, got.Status())

	sentAt := time.Date(2024, time.March, 16, 9, 30, 0, 0, time.UTC)
	got, err = h.svc.MarkSent(ctx, inv.ID, sentAt)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusSent, got.Status())

	got, err = h.svc.MarkPaid(ctx, inv.ID, paidAt)
	require.NoError(t, err)
	assert.Equal(t, sentAt, *got.SentAt, "an existing sent timestamp is kept")

	stored, err := h.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, stored.Status())
}

func TestCreateReportsCommittedInvoiceWhenTotalsFail(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	e := h.entry(t, h.client.ID, date(2024, time.March, 5), "3", "Work")
	h.invoices.totalsErr = errors.New("disk full")

	res, err := h.svc.Create(ctx, h.client.ID, date(2024, time.March, 31), nil)
	require.ErrorIs(t, err, ErrNotRegenerated)
	require.NotNil(t, res)
	assert.Equal(t, "ABC20240331", res.Invoice.Number)
	assert.Equal(t, int64(1), res.Claimed)

	stored, err := h.svc.GetByNumber(ctx, "ABC20240331")
	require.NoError(t, err)
	got, err := h.entries.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, got.LinkedTo(stored.ID))

	h.invoices.totalsErr = nil
	fixed, err := h.linkage.Regenerate(ctx, stored.ID)
	require.NoError(t, err)
	assert.True(t, fixed.Amount.Equal(decimal.NewFromInt(300)))
}

func TestSetDescriptionKeepsTextAndRefreshesSummary(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.entry(t, h.client.ID, date(2024, time.March, 5), "3", "Work")
	res, err := h.svc.Create(ctx, h.client.ID, date(2024, time.March, 31), nil)
	require.NoError(t, err)

	inv, err := h.svc.SetDescription(ctx, res.Invoice.ID, "Retainer for March\nTotal Hours (1.00)\n")
	require.NoError(t, err)
	assert.Equal(t, "Retainer for March\nTotal Hours (3.00)", inv.Description)

	late := h.entry(t, h.client.ID, date(2024, time.March, 9), "2", "Work")
	linked, err := h.entries.Link(ctx, late.ID, inv.ID)
	require.NoError(t, err)
	require.True(t, linked)

	refreshed, err := h.linkage.RefreshSummary(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Retainer for March\nTotal Hours (5.00)", refreshed.Description)
	assert.True(t, refreshed.Amount.Equal(decimal.NewFromInt(500)))

	stored, err := h.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, refreshed.Description, stored.Description)
}

func TestReconcileClaimsForEmptyInvoices(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	orphan := h.draft(t, date(2024, time.March, 31))
	empty := h.draft(t, date(2024, time.June, 30))
	h.entry(t, h.client.ID, date(2024, time.March, 5), "3", "Work")

	res, err := h.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Checked)
	require.Len(t, res.Repaired, 1)
	assert.Equal(t, orphan.ID, res.Repaired[0].ID)
	assert.True(t, res.Repaired[0].Amount.Equal(decimal.NewFromInt(300)))

	untouched, err := h.svc.GetInvoice(ctx, empty.ID)
	require.NoError(t, err)
	assert.True(t, untouched.Amount.IsZero())
}

func TestReconcileLeavesSettledInvoicesAlone(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	paid := h.draft(t, date(2024, time.March, 31))
	_, err := h.svc.MarkPaid(ctx, paid.ID, date(2024, time.April, 10))
	require.NoError(t, err)
	sent := h.draft(t, date(2024, time.April, 30))
	_, err = h.svc.MarkSent(ctx, sent.ID, date(2024, time.May, 1))
	require.NoError(t, err)

	late := h.entry(t, h.client.ID, date(2024, time.March, 20), "3", "Late work")
	h.entry(t, h.client.ID, date(2024, time.April, 2), "1", "More work")

	res, err := h.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Checked)
	assert.Empty(t, res.Repaired)

	got, err := h.svc.GetInvoice(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, got.Status())
	assert.True(t, got.Amount.IsZero())

	entry, err := h.entries.GetByID(ctx, late.ID)
	require.NoError(t, err)
	assert.False(t, entry.IsLinked())
}

func TestDeleteReleasesEntries(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	e := h.entry(t, h.client.ID, date(2024, time.March, 5), "3", "Work")
	res, err := h.svc.Create(ctx, h.client.ID, date(2024, time.March, 31), nil)
	require.NoError(t, err)

	require.NoError(t, h.svc.Delete(ctx, res.Invoice.ID))

	got, err := h.entries.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, got.IsLinked())
}
