package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accruals/internal/core"
)

func TestProviderTenant(t *testing.T) {
	ctx := context.Background()
	p := New("")

	_, err := p.CurrentTenant(ctx)
	assert.ErrorIs(t, err, core.ErrNoTenant)

	p.SetTenant("t-1")
	tenant, err := p.CurrentTenant(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t-1", tenant)

	_, err = p.ListAccounts(ctx, "other")
	assert.True(t, core.IsExternal(err))
}

func TestProviderInvoiceLifecycle(t *testing.T) {
	ctx := context.Background()
	p := NewSeeded("t-1")

	sale, err := p.CreateInvoice(ctx, "t-1", core.Document{Type: core.DocumentTypeSale, Status: core.StatusAuthorised})
	require.NoError(t, err)
	assert.NotEmpty(t, sale.ID)
	assert.Equal(t, "INV-0001", sale.Number)

	bill := p.PutInvoice(core.Document{
		Type:   core.DocumentTypePurchase,
		Status: core.StatusDraft,
		LineItems: []core.LineItem{
			{Description: "ads", Quantity: decimal.NewFromInt(1), UnitAmount: decimal.NewFromInt(100), AccountCode: "400"},
		},
	})

	require.NoError(t, p.UpdateInvoiceLines(ctx, "t-1", bill.ID, core.RecodeLines(bill.LineItems, "820")))
	require.NoError(t, p.UpdateInvoiceStatus(ctx, "t-1", bill.ID, core.StatusAuthorised))

	got, err := p.GetInvoice(ctx, "t-1", bill.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusAuthorised, got.Status)
	assert.Equal(t, "820", got.LineItems[0].AccountCode)

	err = p.UpdateInvoiceLines(ctx, "t-1", bill.ID, got.LineItems)
	assert.True(t, core.IsExternal(err), "authorised bills are no longer editable")

	_, err = p.GetInvoice(ctx, "t-1", "missing")
	assert.ErrorIs(t, err, core.ErrDocumentNotFound)

	assert.Equal(t, []string{OpCreateInvoice, OpUpdateInvoiceLines, OpUpdateInvoiceStatus, OpUpdateInvoiceLines}, p.Mutations())
}

func TestProviderJournals(t *testing.T) {
	ctx := context.Background()
	p := New("t-1")

	_, err := p.CreateJournal(ctx, "t-1", core.Journal{Lines: []core.JournalLine{{Amount: decimal.NewFromInt(1)}}})
	assert.ErrorIs(t, err, core.ErrUnbalancedJournal)

	j := core.AccrualJournal(core.Settings{CostCode: "310", AccrualCode: "820"}, "R", decimal.NewFromInt(10))
	id, err := p.CreateJournal(ctx, "t-1", j)
	require.NoError(t, err)
	require.Len(t, p.Journals(), 1)
	assert.Equal(t, id, p.Journals()[0].ID)
}

func TestProviderFailOn(t *testing.T) {
	ctx := context.Background()
	p := New("t-1")
	boom := errors.New("boom")

	p.FailOn(OpListContacts, boom)
	_, err := p.ListContacts(ctx, "t-1")
	assert.ErrorIs(t, err, boom)

	p.FailOn(OpListContacts, nil)
	_, err = p.ListContacts(ctx, "t-1")
	assert.NoError(t, err)
}
