package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"accruals/internal/core"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps the ledger in process memory. Contents are lost on restart.
type MemoryStore struct {
	mu         sync.Mutex
	records    map[string]core.AccrualRecord
	reconciled map[transition]struct{}
	now        func() time.Time
}

type transition struct {
	billID string
	status core.DocumentStatus
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:    make(map[string]core.AccrualRecord),
		reconciled: make(map[transition]struct{}),
		now:        time.Now,
	}
}

func (s *MemoryStore) Accrue(_ context.Context, ref string, amount decimal.Decimal) (core.AccrualRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.recordLocked(ref)
	r.Accrued = r.Accrued.Add(amount)
	r.UpdatedAt = s.now().UTC()
	s.records[ref] = r
	return r, nil
}

func (s *MemoryStore) Settle(_ context.Context, ref string, amount decimal.Decimal) (core.AccrualRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.recordLocked(ref)
	r.Settled = r.Settled.Add(amount)
	r.UpdatedAt = s.now().UTC()
	s.records[ref] = r
	return r, nil
}

func (s *MemoryStore) recordLocked(ref string) core.AccrualRecord {
	r, ok := s.records[ref]
	if !ok {
		r = core.AccrualRecord{CampaignRef: ref, Accrued: decimal.Zero, Settled: decimal.Zero}
	}
	return r
}

func (s *MemoryStore) Get(_ context.Context, ref string) (core.AccrualRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[ref]
	return r, ok, nil
}

// List returns records ordered by campaign reference.
func (s *MemoryStore) List(_ context.Context) ([]core.AccrualRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.AccrualRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CampaignRef < out[j].CampaignRef })
	return out, nil
}

func (s *MemoryStore) MarkReconciled(_ context.Context, billID string, status core.DocumentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconciled[transition{billID, status}] = struct{}{}
	return nil
}

func (s *MemoryStore) IsReconciled(_ context.Context, billID string, status core.DocumentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.reconciled[transition{billID, status}]
	return ok, nil
}
