package backend

import (
	"context"
	"errors"

	"accruals/internal/accounting"
	"accruals/internal/audit"
	"accruals/internal/ledger"
	"accruals/internal/settings"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend bundles the stores and adapters one process runs against.
type Backend struct {
	Provider accounting.Provider
	Ledger   ledger.Store
	Settings settings.Store
	Audit    audit.Recorder
	// Pinger is nil for in-memory stores.
	Pinger Pinger

	cleanups []CleanupFunc
}

// Close releases every resource in reverse order of creation.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.cleanups) - 1; i >= 0; i-- {
		if err := b.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.cleanups = nil
	return errors.Join(errs...)
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Backend, error)
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	XeroBackend   BackendType = "xero"
	SheetsBackend BackendType = "sheets"
	NoneBackend   BackendType = "none"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}
