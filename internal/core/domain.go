package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Document types as reported by the accounting provider.
const (
	DocumentTypeSale     DocumentType = "ACCREC"
	DocumentTypePurchase DocumentType = "ACCPAY"
)

// Document lifecycle statuses.
const (
	StatusDraft      DocumentStatus = "DRAFT"
	StatusSubmitted  DocumentStatus = "SUBMITTED"
	StatusAuthorised DocumentStatus = "AUTHORISED"
	StatusPaid       DocumentStatus = "PAID"
	StatusVoided     DocumentStatus = "VOIDED"
	StatusDeleted    DocumentStatus = "DELETED"
)

const (
	// ResourceTypeInvoice is the webhook event category for invoice-like documents.
	ResourceTypeInvoice = "INVOICE"

	// JournalStatusPosted marks a manual journal as final.
	JournalStatusPosted = "POSTED"

	// TaxTypeNone is applied to journal lines, which never carry tax.
	TaxTypeNone = "NONE"
)

type (
	DocumentType   string
	DocumentStatus string

	// Contact is a customer or supplier in the provider's address book.
	Contact struct {
		ID   string
		Name string
	}

	// TaxRate is a tenant-configured tax rate. TaxType is the identifier
	// line items reference.
	TaxRate struct {
		Name    string
		TaxType string
		Status  string
	}

	// Account is a chart-of-accounts entry.
	Account struct {
		ID     string
		Code   string
		Name   string
		Type   string
		Status string
	}

	LineItem struct {
		Description string
		Quantity    decimal.Decimal
		UnitAmount  decimal.Decimal
		AccountCode string
		TaxType     string
	}

	// Document is an invoice-like record: a sale (ACCREC) or a supplier bill (ACCPAY).
	Document struct {
		ID        string
		Number    string
		Type      DocumentType
		Status    DocumentStatus
		Reference string
		ContactID string
		Date      time.Time
		DueDate   time.Time
		LineItems []LineItem
	}

	// JournalLine amounts are signed: positive debits, negative credits.
	JournalLine struct {
		AccountCode string
		Description string
		Amount      decimal.Decimal
		TaxType     string
	}

	Journal struct {
		ID        string
		Narration string
		Date      time.Time
		Status    string
		Lines     []JournalLine
	}

	// BillEvent is a single change notification delivered by the provider webhook.
	BillEvent struct {
		ResourceType string
		ResourceID   string
		EventType    string
		TenantID     string
		EventDate    time.Time
	}

	// AccrualRecord is the ledger row for one campaign reference.
	AccrualRecord struct {
		CampaignRef string
		Accrued     decimal.Decimal
		Settled     decimal.Decimal
		UpdatedAt   time.Time
	}
)

// Editable reports whether a document may still have its lines rewritten.
func (s DocumentStatus) Editable() bool {
	return s == StatusDraft || s == StatusSubmitted
}

// IsInvoice reports whether the event refers to an invoice-like document.
func (e BillEvent) IsInvoice() bool {
	return strings.EqualFold(strings.TrimSpace(e.ResourceType), ResourceTypeInvoice)
}

// Remaining is the part of the accrual not yet consumed by reconciled bills.
func (r AccrualRecord) Remaining() decimal.Decimal {
	return r.Accrued.Sub(r.Settled)
}

// Total returns quantity times unit amount for the line.
func (l LineItem) Total() decimal.Decimal {
	return l.UnitAmount.Mul(l.Quantity)
}

// Balanced reports whether debits and credits cancel out.
func (j Journal) Balanced() bool {
	if len(j.Lines) < 2 {
		return false
	}
	sum := decimal.Zero
	for _, l := range j.Lines {
		sum = sum.Add(l.Amount)
	}
	return sum.IsZero()
}
