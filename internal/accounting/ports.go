// Package accounting declares the outbound ports to the accounting provider.
// Every call is scoped to a tenant; adapters never cache results.
package accounting

import (
	"context"

	"accruals/internal/core"
)

// Ports for outbound adapters.
type (
	ContactStore interface {
		ListContacts(ctx context.Context, tenantID string) ([]core.Contact, error)
		CreateContact(ctx context.Context, tenantID, name string) (core.Contact, error)
	}

	TaxRateReader interface {
		ListTaxRates(ctx context.Context, tenantID string) ([]core.TaxRate, error)
	}

	AccountReader interface {
		ListAccounts(ctx context.Context, tenantID string) ([]core.Account, error)
	}

	// InvoiceStore manages invoice-like documents, both sales and supplier bills.
	InvoiceStore interface {
		CreateInvoice(ctx context.Context, tenantID string, doc core.Document) (core.Document, error)
		// GetInvoice returns core.ErrDocumentNotFound when the id is unknown.
		GetInvoice(ctx context.Context, tenantID, id string) (core.Document, error)
		UpdateInvoiceLines(ctx context.Context, tenantID, id string, lines []core.LineItem) error
		UpdateInvoiceStatus(ctx context.Context, tenantID, id string, status core.DocumentStatus) error
	}

	JournalWriter interface {
		// CreateJournal posts a manual journal and returns its id.
		CreateJournal(ctx context.Context, tenantID string, j core.Journal) (string, error)
	}

	// TenantResolver returns the single connected tenant, or core.ErrNoTenant.
	TenantResolver interface {
		CurrentTenant(ctx context.Context) (string, error)
	}

	// Provider is everything onboarding and reconciliation need from the provider.
	Provider interface {
		ContactStore
		TaxRateReader
		AccountReader
		InvoiceStore
		JournalWriter
		TenantResolver
	}
)
