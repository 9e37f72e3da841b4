// Package memory is an in-process accounting provider. It backs
// ACCOUNTING_BACKEND=memory and the service tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"accruals/internal/accounting"
	"accruals/internal/core"
)

var _ accounting.Provider = (*Provider)(nil)

// Operation names recorded by Calls and accepted by FailOn.
const (
	OpListContacts        = "ListContacts"
	OpCreateContact       = "CreateContact"
	OpListTaxRates        = "ListTaxRates"
	OpListAccounts        = "ListAccounts"
	OpCreateInvoice       = "CreateInvoice"
	OpGetInvoice          = "GetInvoice"
	OpUpdateInvoiceLines  = "UpdateInvoiceLines"
	OpUpdateInvoiceStatus = "UpdateInvoiceStatus"
	OpCreateJournal       = "CreateJournal"
	OpCurrentTenant       = "CurrentTenant"
)

var mutating = map[string]bool{
	OpCreateContact:       true,
	OpCreateInvoice:       true,
	OpUpdateInvoiceLines:  true,
	OpUpdateInvoiceStatus: true,
	OpCreateJournal:       true,
}

type Provider struct {
	mu       sync.Mutex
	tenant   string
	contacts []core.Contact
	taxRates []core.TaxRate
	accounts []core.Account
	invoices map[string]core.Document
	journals []core.Journal
	calls    []string
	failures map[string]error
	numSeq   int
}

// New returns an empty provider connected to tenantID. An empty tenantID
// behaves as if no tenant were connected.
func New(tenantID string) *Provider {
	return &Provider{
		tenant:   tenantID,
		invoices: make(map[string]core.Document),
		failures: make(map[string]error),
	}
}

// NewSeeded returns a provider with a small chart of accounts and tax rates.
func NewSeeded(tenantID string) *Provider {
	p := New(tenantID)
	p.accounts = []core.Account{
		{ID: uuid.NewString(), Code: "200", Name: "Sales", Type: "REVENUE", Status: "ACTIVE"},
		{ID: uuid.NewString(), Code: "310", Name: "Cost of Goods Sold", Type: "DIRECTCOSTS", Status: "ACTIVE"},
		{ID: uuid.NewString(), Code: "820", Name: "Accrued Liabilities", Type: "CURRLIAB", Status: "ACTIVE"},
	}
	p.taxRates = []core.TaxRate{
		{Name: "20% (VAT on Income)", TaxType: "OUTPUT2", Status: "ACTIVE"},
		{Name: "20% (VAT on Expenses)", TaxType: "INPUT2", Status: "ACTIVE"},
		{Name: "No VAT", TaxType: "NONE", Status: "ACTIVE"},
	}
	return p
}

// SetTenant changes the connected tenant.
func (p *Provider) SetTenant(tenantID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tenant = tenantID
}

// FailOn makes every later call of op return err. A nil err clears it.
func (p *Provider) FailOn(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, op)
		return
	}
	p.failures[op] = err
}

// AddContact seeds a contact and returns it with an id.
func (p *Provider) AddContact(name string) core.Contact {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := core.Contact{ID: uuid.NewString(), Name: name}
	p.contacts = append(p.contacts, c)
	return c
}

func (p *Provider) AddTaxRate(r core.TaxRate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.taxRates = append(p.taxRates, r)
}

func (p *Provider) AddAccount(a core.Account) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	p.accounts = append(p.accounts, a)
}

// PutInvoice stores doc as is, assigning an id when missing. It is not
// recorded as a call.
func (p *Provider) PutInvoice(doc core.Document) core.Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.LineItems = append([]core.LineItem(nil), doc.LineItems...)
	p.invoices[doc.ID] = doc
	return doc
}

// Invoice returns the stored document without recording a call.
func (p *Provider) Invoice(id string) (core.Document, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.invoices[id]
	return d, ok
}

// Invoices returns stored documents of the given type.
func (p *Provider) Invoices(t core.DocumentType) []core.Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []core.Document
	for _, d := range p.invoices {
		if d.Type == t {
			out = append(out, d)
		}
	}
	return out
}

// Journals returns posted journals in creation order.
func (p *Provider) Journals() []core.Journal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.Journal(nil), p.journals...)
}

func (p *Provider) Contacts() []core.Contact {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.Contact(nil), p.contacts...)
}

// Calls returns the operation names invoked so far.
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Mutations returns only the calls that change provider state.
func (p *Provider) Mutations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, c := range p.calls {
		if mutating[c] {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls clears the call log.
func (p *Provider) ResetCalls() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

// enter records op and checks tenant and injected failures. Callers hold mu.
func (p *Provider) enter(op, tenantID string) error {
	p.calls = append(p.calls, op)
	if err, ok := p.failures[op]; ok {
		return err
	}
	if p.tenant == "" || tenantID != p.tenant {
		return &core.ExternalServiceError{Op: op, StatusCode: 403, Message: fmt.Sprintf("tenant %q is not connected", tenantID)}
	}
	return nil
}

func (p *Provider) CurrentTenant(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, OpCurrentTenant)
	if err, ok := p.failures[OpCurrentTenant]; ok {
		return "", err
	}
	if p.tenant == "" {
		return "", core.ErrNoTenant
	}
	return p.tenant, nil
}

func (p *Provider) ListContacts(_ context.Context, tenantID string) ([]core.Contact, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpListContacts, tenantID); err != nil {
		return nil, err
	}
	return append([]core.Contact(nil), p.contacts...), nil
}

func (p *Provider) CreateContact(_ context.Context, tenantID, name string) (core.Contact, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpCreateContact, tenantID); err != nil {
		return core.Contact{}, err
	}
	if strings.TrimSpace(name) == "" {
		return core.Contact{}, &core.ExternalServiceError{Op: OpCreateContact, StatusCode: 400, Message: "contact name is required"}
	}
	c := core.Contact{ID: uuid.NewString(), Name: name}
	p.contacts = append(p.contacts, c)
	return c, nil
}

func (p *Provider) ListTaxRates(_ context.Context, tenantID string) ([]core.TaxRate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpListTaxRates, tenantID); err != nil {
		return nil, err
	}
	return append([]core.TaxRate(nil), p.taxRates...), nil
}

func (p *Provider) ListAccounts(_ context.Context, tenantID string) ([]core.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpListAccounts, tenantID); err != nil {
		return nil, err
	}
	return append([]core.Account(nil), p.accounts...), nil
}

func (p *Provider) CreateInvoice(_ context.Context, tenantID string, doc core.Document) (core.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpCreateInvoice, tenantID); err != nil {
		return core.Document{}, err
	}
	doc.ID = uuid.NewString()
	if doc.Type == core.DocumentTypeSale && doc.Number == "" {
		p.numSeq++
		doc.Number = fmt.Sprintf("INV-%04d", p.numSeq)
	}
	doc.LineItems = append([]core.LineItem(nil), doc.LineItems...)
	p.invoices[doc.ID] = doc
	return doc, nil
}

func (p *Provider) GetInvoice(_ context.Context, tenantID, id string) (core.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpGetInvoice, tenantID); err != nil {
		return core.Document{}, err
	}
	d, ok := p.invoices[id]
	if !ok {
		return core.Document{}, core.ErrDocumentNotFound
	}
	d.LineItems = append([]core.LineItem(nil), d.LineItems...)
	return d, nil
}

func (p *Provider) UpdateInvoiceLines(_ context.Context, tenantID, id string, lines []core.LineItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpUpdateInvoiceLines, tenantID); err != nil {
		return err
	}
	d, ok := p.invoices[id]
	if !ok {
		return core.ErrDocumentNotFound
	}
	if !d.Status.Editable() {
		return &core.ExternalServiceError{Op: OpUpdateInvoiceLines, StatusCode: 400, Message: fmt.Sprintf("document in status %s cannot be edited", d.Status)}
	}
	d.LineItems = append([]core.LineItem(nil), lines...)
	p.invoices[id] = d
	return nil
}

func (p *Provider) UpdateInvoiceStatus(_ context.Context, tenantID, id string, status core.DocumentStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpUpdateInvoiceStatus, tenantID); err != nil {
		return err
	}
	d, ok := p.invoices[id]
	if !ok {
		return core.ErrDocumentNotFound
	}
	d.Status = status
	p.invoices[id] = d
	return nil
}

func (p *Provider) CreateJournal(_ context.Context, tenantID string, j core.Journal) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpCreateJournal, tenantID); err != nil {
		return "", err
	}
	if !j.Balanced() {
		return "", &core.ExternalServiceError{Op: OpCreateJournal, StatusCode: 400, Message: core.ErrUnbalancedJournal.Error(), Err: core.ErrUnbalancedJournal}
	}
	j.ID = uuid.NewString()
	j.Lines = append([]core.JournalLine(nil), j.Lines...)
	p.journals = append(p.journals, j)
	return j.ID, nil
}
