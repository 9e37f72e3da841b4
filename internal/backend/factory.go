package backend

import (
	"context"
	"fmt"
	"log/slog"

	"accruals/internal/accounting"
	"accruals/internal/accounting/memory"
	"accruals/internal/accounting/xero"
	"accruals/internal/audit"
	"accruals/internal/ledger"
	"accruals/internal/settings"
	"accruals/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend. On error anything already
// opened is closed again.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (_ *Backend, err error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	b := &Backend{}
	defer func() {
		if err != nil {
			_ = b.Close()
		}
	}()

	if err := f.createStores(b, config); err != nil {
		return nil, err
	}
	if b.Provider, err = f.createProvider(ctx, config); err != nil {
		return nil, err
	}
	if b.Audit, err = f.createAudit(ctx, config); err != nil {
		return nil, err
	}
	return b, nil
}

func (f *DefaultFactory) createStores(b *Backend, config Config) error {
	switch config.Ledger {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, config.Defaults)
		if err != nil {
			return fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		b.Ledger = repo
		b.Settings = repo.Settings()
		b.Pinger = repo
		b.cleanups = append(b.cleanups, repo.Close)
		f.logger.Info("Initialized SQLite ledger", "db_path", config.SQLiteDBPath)
	default:
		b.Ledger = ledger.NewMemoryStore()
		b.Settings = settings.NewMemoryStore(config.Defaults)
		f.logger.Info("Initialized memory ledger")
	}
	return nil
}

func (f *DefaultFactory) createProvider(ctx context.Context, config Config) (accounting.Provider, error) {
	if config.Accounting != XeroBackend {
		f.logger.Info("Initialized memory accounting provider", "tenant_id", config.MemoryTenant)
		return memory.NewSeeded(config.MemoryTenant), nil
	}

	tok, err := xero.LoadToken(config.XeroTokenFile, config.XeroTokenJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to load Xero token: %w", err)
	}
	redirect := fmt.Sprintf("http://localhost:%d/callback", config.OAuthRedirectPort)
	oauthCfg := xero.OAuthConfig(config.XeroClientID, config.XeroClientSecret, redirect)

	// Refreshed tokens are only written back when they came from a file.
	tokenPath := config.XeroTokenFile
	if config.XeroTokenJSON != "" {
		tokenPath = ""
	}

	client := xero.New(xero.Config{
		BaseURL:    config.XeroAPIBaseURL,
		TenantID:   config.XeroTenantID,
		HTTPClient: xero.NewHTTPClient(ctx, oauthCfg, tok, tokenPath),
	})
	f.logger.Info("Initialized Xero accounting provider",
		"tenant_pinned", config.XeroTenantID != "",
		"token_persisted", tokenPath != "")
	return client, nil
}

func (f *DefaultFactory) createAudit(ctx context.Context, config Config) (audit.Recorder, error) {
	switch config.Audit {
	case SheetsBackend:
		rec, err := audit.NewSheetsRecorder(ctx, audit.SheetsConfig{
			SpreadsheetID:      config.GoogleSpreadsheetID,
			SheetName:          config.GoogleSheetName,
			ServiceAccountJSON: config.GoogleServiceAccountJSON,
			ServiceAccountFile: config.GoogleServiceAccountFile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets audit: %w", err)
		}
		f.logger.Info("Initialized Google Sheets audit trail", "sheet", config.GoogleSheetName)
		return rec, nil
	case MemoryBackend:
		return audit.NewMemoryRecorder(), nil
	default:
		return audit.Nop{}, nil
	}
}
