package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"accruals/internal/accounting"
	"accruals/internal/audit"
	"accruals/internal/core"
	"accruals/internal/ledger"
	applog "accruals/internal/log"
	"accruals/internal/metrics"
	"accruals/internal/settings"
)

// CampaignService onboards a campaign: sales invoice, accrual journal and
// ledger entry. A provider failure aborts the remaining steps; nothing
// already created is rolled back.
type CampaignService struct {
	provider accounting.Provider
	resolver *Resolver
	settings settings.Store
	ledger   ledger.Store
	audit    audit.Recorder
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewCampaignService(
	provider accounting.Provider,
	settingsStore settings.Store,
	ledgerStore ledger.Store,
	recorder audit.Recorder,
	m *metrics.Metrics,
) *CampaignService {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &CampaignService{
		provider: provider,
		resolver: NewResolver(provider, provider),
		settings: settingsStore,
		ledger:   ledgerStore,
		audit:    recorder,
		metrics:  m,
		now:      time.Now,
	}
}

// CreateCampaign validates req and performs the onboarding steps in order.
func (s *CampaignService) CreateCampaign(ctx context.Context, req core.CampaignRequest) (core.CampaignResult, error) {
	res, err := s.createCampaign(ctx, req)
	if err != nil {
		s.metrics.CampaignFailed(failureKind(err))
		return core.CampaignResult{}, err
	}
	s.metrics.CampaignCreated(res.Accrued.InexactFloat64())
	return res, nil
}

func (s *CampaignService) createCampaign(ctx context.Context, req core.CampaignRequest) (core.CampaignResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return core.CampaignResult{}, err
	}

	tenantID, err := s.provider.CurrentTenant(ctx)
	if err != nil {
		return core.CampaignResult{}, err
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return core.CampaignResult{}, fmt.Errorf("load settings: %w", err)
	}

	contactID, err := s.resolveContact(ctx, tenantID, req)
	if err != nil {
		return core.CampaignResult{}, err
	}

	taxType := s.salesTaxType(ctx, tenantID, req, cfg)

	saleNet := req.SaleNet.Round(core.CurrencyPlaces)
	expected := req.ExpectedCostNet.Round(core.CurrencyPlaces)
	today := s.now().UTC().Truncate(24 * time.Hour)

	invoice, err := s.provider.CreateInvoice(ctx, tenantID, core.Document{
		Type:      core.DocumentTypeSale,
		Status:    core.StatusAuthorised,
		Reference: req.CampaignRef,
		ContactID: contactID,
		Date:      today,
		DueDate:   req.Due(),
		LineItems: []core.LineItem{{
			Description: req.LineDescription(),
			Quantity:    decimal.NewFromInt(1),
			UnitAmount:  saleNet,
			AccountCode: cfg.RevenueCode,
			TaxType:     taxType,
		}},
	})
	if err != nil {
		return core.CampaignResult{}, fmt.Errorf("create sales invoice: %w", err)
	}

	journal := core.AccrualJournal(cfg, req.CampaignRef, expected)
	journal.Date = today
	journalID, err := s.provider.CreateJournal(ctx, tenantID, journal)
	if err != nil {
		return core.CampaignResult{}, fmt.Errorf("create accrual journal: %w", err)
	}

	rec, err := s.ledger.Accrue(ctx, req.CampaignRef, expected)
	if err != nil {
		return core.CampaignResult{}, fmt.Errorf("record accrual: %w", err)
	}

	res := core.CampaignResult{
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.Number,
		JournalID:     journalID,
		CampaignRef:   req.CampaignRef,
		Accrued:       expected,
		AccruedTotal:  rec.Accrued,
	}

	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogCampaignCreated(ctx, res.CampaignRef, res.InvoiceID, res.JournalID, res.Accrued.StringFixed(core.CurrencyPlaces))

	if err := s.audit.Record(ctx, audit.Entry{
		Time:        s.now(),
		Kind:        audit.KindCampaignCreated,
		CampaignRef: res.CampaignRef,
		DocumentID:  res.InvoiceID,
		JournalID:   res.JournalID,
		Amount:      expected,
		Detail:      fmt.Sprintf("accrued total %s", rec.Accrued.StringFixed(core.CurrencyPlaces)),
	}); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Failed to record audit entry",
			applog.FieldCampaignRef, res.CampaignRef, applog.FieldError, err)
	}

	return res, nil
}

// resolveContact uses the given id as is, or finds a contact by exact
// case-insensitive name, creating it when absent.
func (s *CampaignService) resolveContact(ctx context.Context, tenantID string, req core.CampaignRequest) (string, error) {
	if req.ClientContactID != "" {
		return req.ClientContactID, nil
	}
	contacts, err := s.provider.ListContacts(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("list contacts: %w", err)
	}
	for _, c := range contacts {
		if strings.EqualFold(strings.TrimSpace(c.Name), req.ClientContactName) {
			return c.ID, nil
		}
	}
	c, err := s.provider.CreateContact(ctx, tenantID, req.ClientContactName)
	if err != nil {
		return "", fmt.Errorf("create contact: %w", err)
	}
	applog.FromContext(ctx).InfoContext(ctx, "Created client contact",
		applog.FieldContactID, c.ID, applog.FieldContactName, c.Name)
	return c.ID, nil
}

// salesTaxType resolves the sales tax, tolerating lookup failures: the line
// is then posted without a tax type.
func (s *CampaignService) salesTaxType(ctx context.Context, tenantID string, req core.CampaignRequest, cfg core.Settings) string {
	name := req.SalesTaxName
	if name == "" {
		name = cfg.SalesTaxName
	}
	if name == "" {
		return ""
	}
	taxType, ok, err := s.resolver.TaxType(ctx, tenantID, name)
	if err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Sales tax lookup failed, posting without tax type",
			applog.FieldTaxName, name, applog.FieldError, err)
		return ""
	}
	if !ok {
		applog.FromContext(ctx).WarnContext(ctx, "Sales tax rate not found, posting without tax type",
			applog.FieldTaxName, name)
		return ""
	}
	return taxType
}

func failureKind(err error) string {
	switch {
	case core.IsValidation(err):
		return "validation"
	case core.IsAuthentication(err):
		return "unauthorized"
	case core.IsExternal(err):
		return "provider"
	default:
		return "error"
	}
}
