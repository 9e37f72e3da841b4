// Package settings holds the process-wide accounting settings.
package settings

import (
	"context"
	"sync"

	"accruals/internal/core"
)

// Store reads and patches settings. Updates are last-writer-wins.
type Store interface {
	Get(ctx context.Context) (core.Settings, error)
	Update(ctx context.Context, patch core.SettingsPatch) (core.Settings, error)
}

var _ Store = (*MemoryStore)(nil)

type MemoryStore struct {
	mu sync.RWMutex
	s  core.Settings
}

// NewMemoryStore starts from initial, normally the DEFAULT_* configuration.
func NewMemoryStore(initial core.Settings) *MemoryStore {
	return &MemoryStore{s: initial}
}

func (m *MemoryStore) Get(_ context.Context) (core.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s, nil
}

func (m *MemoryStore) Update(_ context.Context, patch core.SettingsPatch) (core.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = patch.Apply(m.s)
	return m.s, nil
}
