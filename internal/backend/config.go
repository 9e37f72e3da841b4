package backend

import (
	"fmt"
	"slices"

	"accruals/internal/config"
	"accruals/internal/core"
)

// Config holds configuration for backend creation
type Config struct {
	Ledger     BackendType
	Accounting BackendType
	Audit      BackendType

	// SQLite specific
	SQLiteDBPath string

	// Xero specific
	XeroClientID      string
	XeroClientSecret  string
	XeroTokenFile     string
	XeroTokenJSON     string
	XeroTenantID      string
	XeroAPIBaseURL    string
	OAuthRedirectPort int

	// Google Sheets audit specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// MemoryTenant is the tenant the in-memory provider reports as connected.
	MemoryTenant string

	Defaults core.Settings
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	c := Config{
		Ledger:     BackendType(appConfig.LedgerBackend),
		Accounting: BackendType(appConfig.AccountingBackend),
		Audit:      BackendType(appConfig.AuditBackend),

		SQLiteDBPath: appConfig.SQLiteDBPath,

		XeroClientID:      appConfig.XeroClientID,
		XeroClientSecret:  appConfig.XeroClientSecret,
		XeroTokenFile:     appConfig.XeroTokenFile,
		XeroTokenJSON:     appConfig.XeroTokenJSON,
		XeroTenantID:      appConfig.XeroTenantID,
		XeroAPIBaseURL:    appConfig.XeroAPIBaseURL,
		OAuthRedirectPort: appConfig.OAuthRedirectPort,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,

		MemoryTenant: appConfig.XeroTenantID,
		Defaults:     appConfig.Defaults,
	}
	if c.MemoryTenant == "" {
		c.MemoryTenant = "demo-tenant"
	}
	return c, c.Validate()
}

// Validate checks that each backend kind is known and has what it needs.
func (c Config) Validate() error {
	check := func(kind string, got BackendType, valid ...BackendType) error {
		if !slices.Contains(valid, got) {
			return fmt.Errorf("invalid %s backend: %s", kind, got)
		}
		return nil
	}
	if err := check("ledger", c.Ledger, MemoryBackend, SQLiteBackend); err != nil {
		return err
	}
	if err := check("accounting", c.Accounting, MemoryBackend, XeroBackend); err != nil {
		return err
	}
	if err := check("audit", c.Audit, NoneBackend, MemoryBackend, SheetsBackend); err != nil {
		return err
	}

	if c.Ledger == SQLiteBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}
	if c.Accounting == XeroBackend {
		if c.XeroClientID == "" || c.XeroClientSecret == "" {
			return fmt.Errorf("Xero client credentials are required for xero backend")
		}
		if c.XeroTokenFile == "" && c.XeroTokenJSON == "" {
			return fmt.Errorf("either XeroTokenFile or XeroTokenJSON must be provided for xero backend")
		}
	}
	if c.Audit == SheetsBackend && c.GoogleSpreadsheetID == "" {
		return fmt.Errorf("Google Spreadsheet ID is required for sheets audit backend")
	}
	return nil
}
