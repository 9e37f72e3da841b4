package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accruals/internal/accounting/memory"
	"accruals/internal/core"
	applog "accruals/internal/log"
)

func onboard(t *testing.T, f *fixture, ref, sale, cost string) {
	t.Helper()
	_, err := f.campaigns().CreateCampaign(context.Background(), core.CampaignRequest{
		ClientContactName: "Acme Media",
		CampaignRef:       ref,
		SaleNet:           dec(sale),
		ExpectedCostNet:   dec(cost),
	})
	require.NoError(t, err)
}

func TestReconcileBillAboveAccrual(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.autoApprove(t, true)
	onboard(t, f, "SEPT-PAID-SOCIAL", "10000", "8000")
	bill := f.addBill("SEPT-PAID-SOCIAL", "5000", "3500")
	f.provider.ResetCalls()

	out, err := f.reconciler().ReconcileEvent(ctx, testTenant, invoiceEvent(bill.ID))
	require.NoError(t, err)

	assert.Equal(t, ActionReconciled, out.Action)
	assert.Equal(t, "SEPT-PAID-SOCIAL", out.CampaignRef)
	assert.True(t, out.NetAmount.Equal(decimal.NewFromInt(8500)))
	assert.True(t, out.Baseline.Equal(decimal.NewFromInt(8000)))
	assert.True(t, out.Variance.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, core.VarianceAdditionalCost, out.Direction)
	assert.True(t, out.Approved)

	got, _ := f.provider.Invoice(bill.ID)
	assert.Equal(t, core.StatusAuthorised, got.Status)
	for i, l := range got.LineItems {
		assert.Equal(t, "820", l.AccountCode)
		assert.Equal(t, "INPUT2", l.TaxType, "tax stays on the bill")
		assert.True(t, l.UnitAmount.Equal(bill.LineItems[i].UnitAmount))
	}

	journals := f.provider.Journals()
	require.Len(t, journals, 2, "accrual plus variance")
	v := journals[1]
	assert.Equal(t, out.JournalID, v.ID)
	assert.True(t, v.Balanced())
	assert.Equal(t, "310", v.Lines[0].AccountCode)
	assert.True(t, v.Lines[0].Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "820", v.Lines[1].AccountCode)
	assert.True(t, v.Lines[1].Amount.Equal(decimal.NewFromInt(-500)))

	assert.Equal(t, []string{memory.OpUpdateInvoiceLines, memory.OpUpdateInvoiceStatus, memory.OpCreateJournal}, f.provider.Mutations())
}

func TestReconcileBillBelowAccrual(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	onboard(t, f, "R", "10000", "8000")
	bill := f.addBill("R", "7500")

	out, err := f.reconciler().ReconcileEvent(ctx, testTenant, invoiceEvent(bill.ID))
	require.NoError(t, err)

	assert.True(t, out.Variance.Equal(decimal.NewFromInt(-500)))
	assert.Equal(t, core.VarianceRelease, out.Direction)
	assert.False(t, out.Approved)

	got, _ := f.provider.Invoice(bill.ID)
	assert.Equal(t, core.StatusDraft, got.Status, "no approval unless configured")

	v := f.provider.Journals()[1]
	assert.Equal(t, "820", v.Lines[0].AccountCode)
	assert.True(t, v.Lines[0].Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "310", v.Lines[1].AccountCode)
	for _, l := range v.Lines {
		assert.Equal(t, core.TaxTypeNone, l.TaxType)
	}
}

func TestReconcileExactAndSubCentPostNoJournal(t *testing.T) {
	ctx := context.Background()
	for _, amount := range []string{"8000", "8000.004"} {
		t.Run(amount, func(t *testing.T) {
			f := newFixture(t)
			onboard(t, f, "R", "10000", "8000")
			bill := f.addBill("R", amount)

			out, err := f.reconciler().ReconcileEvent(ctx, testTenant, invoiceEvent(bill.ID))
			require.NoError(t, err)
			assert.Equal(t, ActionReconciled, out.Action)
			assert.True(t, out.Variance.IsZero())
			assert.Equal(t, core.VarianceNone, out.Direction)
			assert.Empty(t, out.JournalID)
			assert.Len(t, f.provider.Journals(), 1)
		})
	}
}

func TestReconcileWithoutAccrualUsesZeroBaseline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bill := f.addBill("UNKNOWN-REF", "1200")

	out, err := f.reconciler().ReconcileEvent(ctx, testTenant, invoiceEvent(bill.ID))
	require.NoError(t, err)
	assert.True(t, out.Baseline.IsZero())
	assert.True(t, out.Variance.Equal(decimal.NewFromInt(1200)))
	require.Len(t, f.provider.Journals(), 1)
}

func TestReconcileIgnoresUnrelatedEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	onboard(t, f, "R", "10000", "8000")

	sale := f.provider.Invoices(core.DocumentTypeSale)[0]
	noRef := f.addBill("   ", "100")
	paid := f.addBill("R", "100")
	paid.Status = core.StatusPaid
	f.provider.PutInvoice(paid)

	tests := []struct {
		name   string
		event  core.BillEvent
		reason string
	}{
		{"contact event", core.BillEvent{ResourceType: "CONTACT", ResourceID: "c-1", TenantID: testTenant}, ReasonNotInvoice},
		{"other tenant", core.BillEvent{ResourceType: "INVOICE", ResourceID: noRef.ID, TenantID: "tenant-2"}, ReasonOtherTenant},
		{"missing id", core.BillEvent{ResourceType: "INVOICE", TenantID: testTenant}, ReasonMissingResourceID},
		{"unknown document", invoiceEvent("nope"), ReasonNotFound},
		{"sales invoice", invoiceEvent(sale.ID), ReasonNotBill},
		{"paid bill", invoiceEvent(paid.ID), ReasonNotEditable},
		{"blank reference", invoiceEvent(noRef.ID), ReasonNoReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.provider.ResetCalls()
			out, err := f.reconciler().ReconcileEvent(ctx, testTenant, tt.event)
			require.NoError(t, err)
			assert.Equal(t, ActionIgnored, out.Action)
			assert.Equal(t, tt.reason, out.Reason)
			assert.Empty(t, f.provider.Mutations())
		})
	}
}

func TestReconcileRedeliveryIsNoop(t *testing.T) {
	ctx := context.Background()

	t.Run("same status", func(t *testing.T) {
		f := newFixture(t)
		onboard(t, f, "R", "10000", "8000")
		bill := f.addBill("R", "8500")
		rec := f.reconciler()

		_, err := rec.ReconcileEvent(ctx, testTenant, invoiceEvent(bill.ID))
		require.NoError(t, err)
		f.provider.ResetCalls()

		out, err := rec.ReconcileEvent(ctx, testTenant, invoiceEvent(bill.ID))
		require.NoError(t, err)
		assert.Equal(t, ActionIgnored, out.Action)
		assert.Equal(t, ReasonAlreadyReconciled, out.Reason)
		assert.Empty(t, f.provider.Mutations())
		assert.Len(t, f.provider.Journals(), 2)
	})

	t.Run("edited draft is reported", func(t *testing.T) {
		f := newFixture(t)
		onboard(t, f, "R", "10000", "8000")
		bill := f.addBill("R", "8500")
		rec := f.reconciler()

		_, err := rec.ReconcileEvent(ctx, testTenant, invoiceEvent(bill.ID))
		require.NoError(t, err)

		edited, _ := f.provider.Invoice(bill.ID)
		edited.LineItems[0].UnitAmount = decimal.RequireFromString("9100")
		f.provider.PutInvoice(edited)

		var buf bytes.Buffer
		logger := applog.New(applog.Config{Output: &buf})
		logCtx := context.WithValue(ctx, applog.LoggerContextKey, logger)

		out, err := rec.ReconcileEvent(logCtx, testTenant, invoiceEvent(bill.ID))
		require.NoError(t, err)
		assert.Equal(t, ReasonAlreadyReconciled, out.Reason)
		assert.True(t, out.NetAmount.Equal(decimal.NewFromInt(9100)), "got %s", out.NetAmount)
		assert.Len(t, f.provider.Journals(), 2)
		assert.Contains(t, buf.String(), "level=WARN")
		assert.Contains(t, buf.String(), applog.FieldNetAmount+"=9100.00")
	})

	t.Run("after approval", func(t *testing.T) {
		f := newFixture(t)
		f.autoApprove(t, true)
		onboard(t, f, "R", "10000", "8000")
		bill := f.addBill("R", "8500")
		rec := f.reconciler()

		_, err := rec.ReconcileEvent(ctx, testTenant, invoiceEvent(bill.ID))
		require.NoError(t, err)

		out, err := rec.ReconcileEvent(ctx, testTenant, invoiceEvent(bill.ID))
		require.NoError(t, err)
		assert.Equal(t, ReasonNotEditable, out.Reason)
		assert.Len(t, f.provider.Journals(), 2)
	})

	t.Run("new status is a new transition", func(t *testing.T) {
		f := newFixture(t)
		onboard(t, f, "R", "10000", "8000")
		bill := f.addBill("R", "8500")
		rec := f.reconciler()

		_, err := rec.ReconcileEvent(ctx, testTenant, invoiceEvent(bill.ID))
		require.NoError(t, err)

		submitted, _ := f.provider.Invoice(bill.ID)
		submitted.Status = core.StatusSubmitted
		f.provider.PutInvoice(submitted)

		out, err := rec.ReconcileEvent(ctx, testTenant, invoiceEvent(bill.ID))
		require.NoError(t, err)
		assert.Equal(t, ActionReconciled, out.Action)
	})
}

func TestReconcileModes(t *testing.T) {
	ctx := context.Background()

	t.Run("original compares every bill with the full accrual", func(t *testing.T) {
		f := newFixture(t)
		onboard(t, f, "R", "10000", "8000")
		rec := f.reconciler(WithMode(ModeOriginal))

		first, err := rec.ReconcileEvent(ctx, testTenant, invoiceEvent(f.addBill("R", "5000").ID))
		require.NoError(t, err)
		second, err := rec.ReconcileEvent(ctx, testTenant, invoiceEvent(f.addBill("R", "3000").ID))
		require.NoError(t, err)

		assert.True(t, first.Variance.Equal(decimal.NewFromInt(-3000)))
		assert.True(t, second.Variance.Equal(decimal.NewFromInt(-5000)))

		r, _, _ := f.ledger.Get(ctx, "R")
		assert.True(t, r.Settled.IsZero(), "ledger untouched")
	})

	t.Run("remaining consumes the accrual", func(t *testing.T) {
		f := newFixture(t)
		onboard(t, f, "R", "10000", "8000")
		rec := f.reconciler(WithMode(ModeRemaining))

		first, err := rec.ReconcileEvent(ctx, testTenant, invoiceEvent(f.addBill("R", "5000").ID))
		require.NoError(t, err)
		assert.True(t, first.Baseline.Equal(decimal.NewFromInt(8000)))
		assert.True(t, first.Variance.Equal(decimal.NewFromInt(-3000)))

		// The first bill released 3000, so 8000 - (5000 - -3000) = 0 remains.
		second, err := rec.ReconcileEvent(ctx, testTenant, invoiceEvent(f.addBill("R", "3000").ID))
		require.NoError(t, err)
		assert.True(t, second.Baseline.IsZero(), "got %s", second.Baseline)
		assert.True(t, second.Variance.Equal(decimal.NewFromInt(3000)))
	})

	t.Run("remaining with a matching bill settles in full", func(t *testing.T) {
		f := newFixture(t)
		onboard(t, f, "R", "10000", "8000")
		rec := f.reconciler(WithMode(ModeRemaining))

		_, err := rec.ReconcileEvent(ctx, testTenant, invoiceEvent(f.addBill("R", "8000").ID))
		require.NoError(t, err)

		r, _, _ := f.ledger.Get(ctx, "R")
		assert.True(t, r.Remaining().IsZero())
	})
}

func TestReconcileFailureKeepsTransitionOpen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	onboard(t, f, "R", "10000", "8000")
	bill := f.addBill("R", "8500")
	rec := f.reconciler()

	f.provider.FailOn(memory.OpCreateJournal, &core.ExternalServiceError{Op: "CreateJournal", StatusCode: 500, Message: "down"})
	out, err := rec.ReconcileEvent(ctx, testTenant, invoiceEvent(bill.ID))
	require.Error(t, err)
	assert.Equal(t, ActionFailed, out.Action)
	assert.Contains(t, out.Error, "down")

	done, _ := f.ledger.IsReconciled(ctx, bill.ID, core.StatusDraft)
	assert.False(t, done)

	f.provider.FailOn(memory.OpCreateJournal, nil)
	out, err = rec.ReconcileEvent(ctx, testTenant, invoiceEvent(bill.ID))
	require.NoError(t, err)
	assert.Equal(t, ActionReconciled, out.Action)
}

func TestReconcileBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	onboard(t, f, "A", "100", "80")
	onboard(t, f, "B", "100", "80")
	first := f.addBill("A", "90")
	second := f.addBill("B", "70")
	third := f.addBill("B", "70")

	res, err := f.reconciler().ReconcileBatch(ctx, []core.BillEvent{
		invoiceEvent(first.ID),
		{ResourceType: "CONTACT", ResourceID: "x", TenantID: testTenant},
		invoiceEvent(second.ID),
		invoiceEvent(third.ID),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Received)
	assert.Equal(t, 3, res.Reconciled)
	assert.Equal(t, 1, res.Ignored)
	assert.Equal(t, 0, res.Failed)
	require.Len(t, res.Outcomes, 4)
}

// flakyProvider fails GetInvoice for one document id.
type flakyProvider struct {
	*memory.Provider
	failID string
}

func (p flakyProvider) GetInvoice(ctx context.Context, tenantID, id string) (core.Document, error) {
	if id == p.failID {
		return core.Document{}, &core.ExternalServiceError{Op: "GetInvoice", StatusCode: 500, Message: "timeout"}
	}
	return p.Provider.GetInvoice(ctx, tenantID, id)
}

func TestReconcileBatchIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	onboard(t, f, "A", "100", "80")
	first := f.addBill("A", "90")
	second := f.addBill("A", "80")

	rec := NewReconciler(flakyProvider{Provider: f.provider, failID: first.ID}, f.settings, f.ledger)
	res, err := rec.ReconcileBatch(ctx, []core.BillEvent{invoiceEvent(first.ID), invoiceEvent(second.ID)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Reconciled)
	assert.Equal(t, ActionFailed, res.Outcomes[0].Action)
	assert.Contains(t, res.Outcomes[0].Error, "timeout")
	assert.Equal(t, ActionReconciled, res.Outcomes[1].Action)
}

func TestReconcileBatchWithoutTenant(t *testing.T) {
	f := newFixture(t)
	f.provider.SetTenant("")

	_, err := f.reconciler().ReconcileBatch(context.Background(), []core.BillEvent{invoiceEvent("x")})
	assert.ErrorIs(t, err, core.ErrNoTenant)

	res, err := f.reconciler().ReconcileBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Received)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeOriginal, m)

	m, err = ParseMode("Remaining")
	require.NoError(t, err)
	assert.Equal(t, ModeRemaining, m)

	_, err = ParseMode("fifo")
	assert.Error(t, err)
}
