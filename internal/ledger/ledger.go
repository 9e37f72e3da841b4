// Package ledger keeps the per-campaign accrual totals and the set of bill
// transitions that have already been reconciled.
package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"accruals/internal/core"
)

// Store is the accrual ledger. Accrue and Settle are atomic increments, so
// concurrent onboarding of the same campaign never loses an update.
type Store interface {
	// Accrue adds amount to the campaign's accrued total, creating the record
	// when needed, and returns the updated record.
	Accrue(ctx context.Context, campaignRef string, amount decimal.Decimal) (core.AccrualRecord, error)
	// Settle adds amount to the settled total of an existing or new record.
	Settle(ctx context.Context, campaignRef string, amount decimal.Decimal) (core.AccrualRecord, error)
	Get(ctx context.Context, campaignRef string) (core.AccrualRecord, bool, error)
	List(ctx context.Context) ([]core.AccrualRecord, error)

	// MarkReconciled remembers that billID was reconciled while in status.
	MarkReconciled(ctx context.Context, billID string, status core.DocumentStatus) error
	IsReconciled(ctx context.Context, billID string, status core.DocumentStatus) (bool, error)
}
