package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"accruals/internal/core"
	applog "accruals/internal/log"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendXero   = "xero"
	BackendSheets = "sheets"
	BackendNone   = "none"
)

type Config struct {
	// HTTP Server
	Port               string
	LogLevel           string
	LogFormat          string
	AdminToken         string
	RateLimitPerMinute int
	TrustedProxies     []string

	// Ledger and settings persistence
	LedgerBackend string
	SQLiteDBPath  string

	// Accounting provider
	AccountingBackend string
	XeroClientID      string
	XeroClientSecret  string
	XeroTokenFile     string
	XeroTokenJSON     string
	XeroTenantID      string
	XeroAPIBaseURL    string
	XeroWebhookKey    string
	OAuthRedirectPort int

	// AMQP, empty URL reconciles inline
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Reconciliation
	ReconcileMode string

	// Audit trail
	AuditBackend             string
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Initial accounting settings, used until changed through the API
	Defaults core.Settings
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		AdminToken:         getEnv("ADMIN_TOKEN", ""),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),

		LedgerBackend: getEnv("LEDGER_BACKEND", BackendMemory),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/accruals.db"),

		AccountingBackend: getEnv("ACCOUNTING_BACKEND", BackendMemory),
		XeroClientID:      getEnv("XERO_CLIENT_ID", ""),
		XeroClientSecret:  getEnv("XERO_CLIENT_SECRET", ""),
		XeroTokenFile:     getEnv("XERO_TOKEN_FILE", "./data/xero_token.json"),
		XeroTokenJSON:     getEnv("XERO_TOKEN_JSON", ""),
		XeroTenantID:      getEnv("XERO_TENANT_ID", ""),
		XeroAPIBaseURL:    getEnv("XERO_API_BASE_URL", ""),
		XeroWebhookKey:    getEnv("XERO_WEBHOOK_KEY", ""),
		OAuthRedirectPort: getEnvInt("OAUTH_REDIRECT_PORT", 8085),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "accruals"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "bill_events"),

		ReconcileMode: getEnv("RECONCILE_MODE", "original"),

		AuditBackend:             getEnv("AUDIT_BACKEND", BackendNone),
		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Audit"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		Defaults: core.Settings{
			RevenueCode:      getEnv("DEFAULT_REVENUE_CODE", "200"),
			CostCode:         getEnv("DEFAULT_COST_CODE", "310"),
			AccrualCode:      getEnv("DEFAULT_ACCRUAL_CODE", "820"),
			SalesTaxName:     getEnv("DEFAULT_SALES_TAX_NAME", ""),
			AutoApproveBills: getEnvBool("DEFAULT_AUTO_APPROVE_BILLS", false),
		},
	}

	return cfg
}

// Queued reports whether webhook events go through AMQP.
func (c *Config) Queued() bool {
	return c.AMQPURL != ""
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	return applog.ParseLevel(c.LogLevel)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	// Validate ledger backend
	validLedger := []string{BackendMemory, BackendSQLite}
	if !slices.Contains(validLedger, c.LedgerBackend) {
		errors = append(errors, fmt.Sprintf("invalid ledger backend '%s': must be one of %v", c.LedgerBackend, validLedger))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.LedgerBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate accounting backend
	validAccounting := []string{BackendMemory, BackendXero}
	if !slices.Contains(validAccounting, c.AccountingBackend) {
		errors = append(errors, fmt.Sprintf("invalid accounting backend '%s': must be one of %v", c.AccountingBackend, validAccounting))
	}
	if c.AccountingBackend == BackendXero {
		if c.XeroClientID == "" || c.XeroClientSecret == "" {
			errors = append(errors, "XERO_CLIENT_ID and XERO_CLIENT_SECRET are required for the xero backend")
		}
		if c.XeroTokenJSON == "" {
			if c.XeroTokenFile == "" {
				errors = append(errors, "either XERO_TOKEN_FILE or XERO_TOKEN_JSON must be provided for the xero backend")
			} else if _, err := os.Stat(c.XeroTokenFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Xero token file does not exist: %s (run oauth-init first)", c.XeroTokenFile))
			}
		}
		if c.XeroAPIBaseURL != "" {
			if u, err := url.Parse(c.XeroAPIBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				errors = append(errors, fmt.Sprintf("invalid Xero API base URL '%s': must be an http(s) URL", c.XeroAPIBaseURL))
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
		// The worker runs in its own process: in-memory stores would not be shared with the API.
		if c.LedgerBackend != BackendSQLite {
			errors = append(errors, fmt.Sprintf("ledger backend must be '%s' when AMQP URL is provided, got '%s'", BackendSQLite, c.LedgerBackend))
		}
		if c.AccountingBackend != BackendXero {
			errors = append(errors, fmt.Sprintf("accounting backend must be '%s' when AMQP URL is provided, got '%s'", BackendXero, c.AccountingBackend))
		}
	}

	validModes := []string{"original", "remaining"}
	if !slices.Contains(validModes, strings.ToLower(c.ReconcileMode)) {
		errors = append(errors, fmt.Sprintf("invalid reconcile mode '%s': must be one of %v", c.ReconcileMode, validModes))
	}

	// Validate audit backend
	validAudit := []string{BackendNone, BackendMemory, BackendSheets}
	if !slices.Contains(validAudit, c.AuditBackend) {
		errors = append(errors, fmt.Sprintf("invalid audit backend '%s': must be one of %v", c.AuditBackend, validAudit))
	}
	if c.AuditBackend == BackendSheets {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets audit backend")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets audit backend")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
