// Package xero adapts the Xero accounting REST API to the accounting ports.
// Requests are not retried; every create carries an idempotency key so that a
// caller-driven retry cannot duplicate documents.
package xero

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"accruals/internal/accounting"
	"accruals/internal/core"
)

const (
	DefaultBaseURL        = "https://api.xero.com/api.xro/2.0"
	DefaultConnectionsURL = "https://api.xero.com/connections"

	headerTenant      = "Xero-Tenant-Id"
	headerIdempotency = "Idempotency-Key"
)

var _ accounting.Provider = (*Client)(nil)

type Config struct {
	BaseURL        string
	ConnectionsURL string
	// TenantID pins the tenant; when empty the first connected organisation is used.
	TenantID string
	// HTTPClient must attach credentials, normally one built by NewHTTPClient.
	HTTPClient *http.Client
}

type Client struct {
	baseURL        string
	connectionsURL string
	tenantID       string
	httpClient     *http.Client
}

func New(cfg Config) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		connectionsURL: cfg.ConnectionsURL,
		tenantID:       strings.TrimSpace(cfg.TenantID),
		httpClient:     cfg.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.connectionsURL == "" {
		c.connectionsURL = DefaultConnectionsURL
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

// CurrentTenant returns the configured tenant or asks the connections endpoint.
func (c *Client) CurrentTenant(ctx context.Context) (string, error) {
	if c.tenantID != "" {
		return c.tenantID, nil
	}
	var conns []connection
	if err := c.do(ctx, "CurrentTenant", http.MethodGet, c.connectionsURL, "", nil, &conns); err != nil {
		var ext *core.ExternalServiceError
		if errors.As(err, &ext) && (ext.StatusCode == http.StatusUnauthorized || ext.StatusCode == http.StatusForbidden) {
			return "", fmt.Errorf("%w: %v", core.ErrNoTenant, err)
		}
		return "", err
	}
	for _, cn := range conns {
		if cn.TenantType == "" || strings.EqualFold(cn.TenantType, "ORGANISATION") {
			return cn.TenantID, nil
		}
	}
	return "", core.ErrNoTenant
}

func (c *Client) ListContacts(ctx context.Context, tenantID string) ([]core.Contact, error) {
	var resp contactsEnvelope
	if err := c.do(ctx, "ListContacts", http.MethodGet, c.baseURL+"/Contacts", tenantID, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]core.Contact, 0, len(resp.Contacts))
	for _, ct := range resp.Contacts {
		out = append(out, core.Contact{ID: ct.ContactID, Name: ct.Name})
	}
	return out, nil
}

func (c *Client) CreateContact(ctx context.Context, tenantID, name string) (core.Contact, error) {
	body := contactsEnvelope{Contacts: []contact{{Name: name}}}
	var resp contactsEnvelope
	if err := c.do(ctx, "CreateContact", http.MethodPost, c.baseURL+"/Contacts", tenantID, body, &resp); err != nil {
		return core.Contact{}, err
	}
	if len(resp.Contacts) == 0 {
		return core.Contact{}, &core.ExternalServiceError{Op: "CreateContact", Message: "empty response"}
	}
	return core.Contact{ID: resp.Contacts[0].ContactID, Name: resp.Contacts[0].Name}, nil
}

func (c *Client) ListTaxRates(ctx context.Context, tenantID string) ([]core.TaxRate, error) {
	var resp taxRatesEnvelope
	if err := c.do(ctx, "ListTaxRates", http.MethodGet, c.baseURL+"/TaxRates", tenantID, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]core.TaxRate, 0, len(resp.TaxRates))
	for _, r := range resp.TaxRates {
		out = append(out, core.TaxRate{Name: r.Name, TaxType: r.TaxType, Status: r.Status})
	}
	return out, nil
}

func (c *Client) ListAccounts(ctx context.Context, tenantID string) ([]core.Account, error) {
	var resp accountsEnvelope
	if err := c.do(ctx, "ListAccounts", http.MethodGet, c.baseURL+"/Accounts", tenantID, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]core.Account, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		out = append(out, core.Account{ID: a.AccountID, Code: a.Code, Name: a.Name, Type: a.Type, Status: a.Status})
	}
	return out, nil
}

func (c *Client) CreateInvoice(ctx context.Context, tenantID string, doc core.Document) (core.Document, error) {
	body := invoicesEnvelope{Invoices: []invoice{toInvoice(doc)}}
	var resp invoicesEnvelope
	if err := c.do(ctx, "CreateInvoice", http.MethodPost, c.baseURL+"/Invoices", tenantID, body, &resp); err != nil {
		return core.Document{}, err
	}
	if len(resp.Invoices) == 0 {
		return core.Document{}, &core.ExternalServiceError{Op: "CreateInvoice", Message: "empty response"}
	}
	return resp.Invoices[0].toDocument(), nil
}

func (c *Client) GetInvoice(ctx context.Context, tenantID, id string) (core.Document, error) {
	var resp invoicesEnvelope
	err := c.do(ctx, "GetInvoice", http.MethodGet, c.baseURL+"/Invoices/"+url.PathEscape(id), tenantID, nil, &resp)
	if err != nil {
		var ext *core.ExternalServiceError
		if errors.As(err, &ext) && ext.StatusCode == http.StatusNotFound {
			return core.Document{}, fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
		}
		return core.Document{}, err
	}
	if len(resp.Invoices) == 0 {
		return core.Document{}, fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
	}
	return resp.Invoices[0].toDocument(), nil
}

func (c *Client) UpdateInvoiceLines(ctx context.Context, tenantID, id string, lines []core.LineItem) error {
	body := invoicesEnvelope{Invoices: []invoice{{InvoiceID: id, LineItems: toLineItems(lines)}}}
	return c.do(ctx, "UpdateInvoiceLines", http.MethodPost, c.baseURL+"/Invoices/"+url.PathEscape(id), tenantID, body, nil)
}

func (c *Client) UpdateInvoiceStatus(ctx context.Context, tenantID, id string, status core.DocumentStatus) error {
	body := invoicesEnvelope{Invoices: []invoice{{InvoiceID: id, Status: string(status)}}}
	return c.do(ctx, "UpdateInvoiceStatus", http.MethodPost, c.baseURL+"/Invoices/"+url.PathEscape(id), tenantID, body, nil)
}

func (c *Client) CreateJournal(ctx context.Context, tenantID string, j core.Journal) (string, error) {
	if !j.Balanced() {
		return "", core.ErrUnbalancedJournal
	}
	body := manualJournalsEnvelope{ManualJournals: []manualJournal{toManualJournal(j)}}
	var resp manualJournalsEnvelope
	if err := c.do(ctx, "CreateJournal", http.MethodPost, c.baseURL+"/ManualJournals", tenantID, body, &resp); err != nil {
		return "", err
	}
	if len(resp.ManualJournals) == 0 {
		return "", &core.ExternalServiceError{Op: "CreateJournal", Message: "empty response"}
	}
	return resp.ManualJournals[0].ManualJournalID, nil
}

// do performs one request. in is JSON-encoded when non-nil; out is decoded
// when non-nil. Status codes >= 400 become *core.ExternalServiceError.
func (c *Client) do(ctx context.Context, op, method, endpoint, tenantID string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tenantID != "" {
		req.Header.Set(headerTenant, tenantID)
	}
	if method == http.MethodPost || method == http.MethodPut {
		req.Header.Set(headerIdempotency, uuid.NewString())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &core.ExternalServiceError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &core.ExternalServiceError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		return &core.ExternalServiceError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(respBody, resp.StatusCode)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &core.ExternalServiceError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorMessage extracts the most specific text from an error body.
func errorMessage(body []byte, status int) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil {
		var msgs []string
		for _, el := range e.Elements {
			for _, v := range el.ValidationErrors {
				if v.Message != "" {
					msgs = append(msgs, v.Message)
				}
			}
		}
		switch {
		case len(msgs) > 0:
			return strings.Join(msgs, "; ")
		case e.Detail != "":
			return e.Detail
		case e.Message != "":
			return e.Message
		case e.Title != "":
			return e.Title
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" && len(s) < 512 {
		return s
	}
	return http.StatusText(status)
}

func toLineItems(lines []core.LineItem) []lineItem {
	out := make([]lineItem, 0, len(lines))
	for _, l := range lines {
		out = append(out, lineItem{
			Description: l.Description,
			Quantity:    amount(l.Quantity),
			UnitAmount:  amount(l.UnitAmount),
			AccountCode: l.AccountCode,
			TaxType:     l.TaxType,
		})
	}
	return out
}

func toInvoice(doc core.Document) invoice {
	inv := invoice{
		Type:            string(doc.Type),
		Status:          string(doc.Status),
		Reference:       doc.Reference,
		LineAmountTypes: "Exclusive",
		LineItems:       toLineItems(doc.LineItems),
	}
	if doc.ContactID != "" {
		inv.Contact = &contact{ContactID: doc.ContactID}
	}
	if !doc.Date.IsZero() {
		inv.Date = doc.Date.Format(core.DateLayout)
	}
	if !doc.DueDate.IsZero() {
		inv.DueDate = doc.DueDate.Format(core.DateLayout)
	}
	return inv
}

func (inv invoice) toDocument() core.Document {
	doc := core.Document{
		ID:        inv.InvoiceID,
		Number:    inv.InvoiceNumber,
		Type:      core.DocumentType(inv.Type),
		Status:    core.DocumentStatus(inv.Status),
		Reference: inv.Reference,
		Date:      parseDate(inv.DateString),
		DueDate:   parseDate(inv.DueDateString),
	}
	if inv.Contact != nil {
		doc.ContactID = inv.Contact.ContactID
	}
	for _, l := range inv.LineItems {
		doc.LineItems = append(doc.LineItems, core.LineItem{
			Description: l.Description,
			Quantity:    decimal.Decimal(l.Quantity),
			UnitAmount:  decimal.Decimal(l.UnitAmount),
			AccountCode: l.AccountCode,
			TaxType:     l.TaxType,
		})
	}
	return doc
}

func toManualJournal(j core.Journal) manualJournal {
	mj := manualJournal{Narration: j.Narration, Status: j.Status}
	if !j.Date.IsZero() {
		mj.Date = j.Date.Format(core.DateLayout)
	}
	for _, l := range j.Lines {
		mj.JournalLines = append(mj.JournalLines, journalLine{
			LineAmount:  amount(l.Amount),
			AccountCode: l.AccountCode,
			Description: l.Description,
			TaxType:     l.TaxType,
		})
	}
	return mj
}

// parseDate reads the provider's "2006-01-02T15:04:05" date strings.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02T15:04:05", core.DateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
