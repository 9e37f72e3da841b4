// Package audit keeps a best-effort trail of what onboarding and
// reconciliation posted. Recording failures never fail the operation.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Entry kinds.
const (
	KindCampaignCreated = "campaign_created"
	KindBillReconciled  = "bill_reconciled"
)

type Entry struct {
	Time        time.Time
	Kind        string
	CampaignRef string
	DocumentID  string
	JournalID   string
	Amount      decimal.Decimal
	Variance    decimal.Decimal
	Direction   string
	Detail      string
}

// Row renders the entry as spreadsheet cells.
func (e Entry) Row() []any {
	return []any{
		e.Time.UTC().Format(time.RFC3339),
		e.Kind,
		e.CampaignRef,
		e.DocumentID,
		e.JournalID,
		e.Amount.StringFixed(2),
		e.Variance.StringFixed(2),
		e.Direction,
		e.Detail,
	}
}

type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

var (
	_ Recorder = Nop{}
	_ Recorder = (*MemoryRecorder)(nil)
)

// MemoryRecorder keeps entries in process memory.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (m *MemoryRecorder) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *MemoryRecorder) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}
