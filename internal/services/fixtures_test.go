package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"accruals/internal/accounting/memory"
	"accruals/internal/audit"
	"accruals/internal/core"
	"accruals/internal/ledger"
	"accruals/internal/settings"
)

const testTenant = "tenant-1"

type fixture struct {
	provider *memory.Provider
	settings *settings.MemoryStore
	ledger   *ledger.MemoryStore
	audit    *audit.MemoryRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		provider: memory.NewSeeded(testTenant),
		settings: settings.NewMemoryStore(core.Settings{
			RevenueCode:  "200",
			CostCode:     "310",
			AccrualCode:  "820",
			SalesTaxName: "20% (VAT on Income)",
		}),
		ledger: ledger.NewMemoryStore(),
		audit:  audit.NewMemoryRecorder(),
	}
}

func (f *fixture) campaigns() *CampaignService {
	return NewCampaignService(f.provider, f.settings, f.ledger, f.audit, nil)
}

func (f *fixture) reconciler(opts ...ReconcilerOption) *Reconciler {
	opts = append([]ReconcilerOption{WithAudit(f.audit)}, opts...)
	return NewReconciler(f.provider, f.settings, f.ledger, opts...)
}

func (f *fixture) autoApprove(t *testing.T, on bool) {
	t.Helper()
	if _, err := f.settings.Update(context.Background(), core.SettingsPatch{AutoApproveBills: &on}); err != nil {
		t.Fatalf("update settings: %v", err)
	}
}

// addBill stores a draft supplier bill with one line per amount.
func (f *fixture) addBill(ref string, amounts ...string) core.Document {
	doc := core.Document{
		Type:      core.DocumentTypePurchase,
		Status:    core.StatusDraft,
		Reference: ref,
		ContactID: "supplier-1",
	}
	for _, a := range amounts {
		doc.LineItems = append(doc.LineItems, core.LineItem{
			Description: "Media spend",
			Quantity:    decimal.NewFromInt(1),
			UnitAmount:  decimal.RequireFromString(a),
			AccountCode: "400",
			TaxType:     "INPUT2",
		})
	}
	return f.provider.PutInvoice(doc)
}

func invoiceEvent(id string) core.BillEvent {
	return core.BillEvent{ResourceType: "INVOICE", ResourceID: id, EventType: "UPDATE", TenantID: testTenant}
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
