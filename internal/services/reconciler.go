package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
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

// Mode selects the baseline a bill is compared against.
type Mode string

const (
	// ModeOriginal compares every bill with the full accrued total and never
	// writes to the ledger.
	ModeOriginal Mode = "original"
	// ModeRemaining compares with what earlier bills left unsettled and
	// records the settled amount after posting.
	ModeRemaining Mode = "remaining"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeOriginal:
		return ModeOriginal, nil
	case ModeRemaining:
		return ModeRemaining, nil
	default:
		return "", fmt.Errorf("unknown reconcile mode %q", s)
	}
}

type Action string

const (
	ActionReconciled Action = "reconciled"
	ActionIgnored    Action = "ignored"
	ActionFailed     Action = "failed"
)

// Outcome describes what happened to one bill event.
type Outcome struct {
	BillID      string                 `json:"billId"`
	Action      Action                 `json:"action"`
	Reason      string                 `json:"reason,omitempty"`
	CampaignRef string                 `json:"campaignRef,omitempty"`
	NetAmount   decimal.Decimal        `json:"netAmount"`
	Baseline    decimal.Decimal        `json:"baseline"`
	Variance    decimal.Decimal        `json:"variance"`
	Direction   core.VarianceDirection `json:"direction,omitempty"`
	JournalID   string                 `json:"journalId,omitempty"`
	Approved    bool                   `json:"approved,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// BatchResult summarizes a webhook delivery.
type BatchResult struct {
	Received   int       `json:"received"`
	Reconciled int       `json:"reconciled"`
	Ignored    int       `json:"ignored"`
	Failed     int       `json:"failed"`
	Outcomes   []Outcome `json:"-"`
}

// Ignore reasons.
const (
	ReasonNotInvoice        = "not an invoice event"
	ReasonOtherTenant       = "event for another tenant"
	ReasonMissingResourceID = "missing resource id"
	ReasonNotFound          = "document not found"
	ReasonNotBill           = "not a supplier bill"
	ReasonNotEditable       = "bill status is not editable"
	ReasonNoReference       = "bill has no campaign reference"
	ReasonAlreadyReconciled = "already reconciled"
)

// Reconciler recodes supplier bills to the accrual account and posts the
// variance against the campaign's accrual.
type Reconciler struct {
	provider accounting.Provider
	settings settings.Store
	ledger   ledger.Store
	audit    audit.Recorder
	metrics  *metrics.Metrics
	mode     Mode
	now      func() time.Time
}

type ReconcilerOption func(*Reconciler)

func WithMode(m Mode) ReconcilerOption {
	return func(r *Reconciler) { r.mode = m }
}

func WithAudit(rec audit.Recorder) ReconcilerOption {
	return func(r *Reconciler) {
		if rec != nil {
			r.audit = rec
		}
	}
}

func WithMetrics(m *metrics.Metrics) ReconcilerOption {
	return func(r *Reconciler) { r.metrics = m }
}

func NewReconciler(provider accounting.Provider, settingsStore settings.Store, ledgerStore ledger.Store, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		provider: provider,
		settings: settingsStore,
		ledger:   ledgerStore,
		audit:    audit.Nop{},
		mode:     ModeOriginal,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reconciler) Mode() Mode { return r.mode }

// ReconcileBatch resolves the tenant once and handles each event
// independently. Only a tenant resolution failure is returned as an error;
// per-event failures are reported in the result.
func (r *Reconciler) ReconcileBatch(ctx context.Context, events []core.BillEvent) (BatchResult, error) {
	res := BatchResult{Received: len(events)}
	if len(events) == 0 {
		return res, nil
	}

	tenantID, err := r.provider.CurrentTenant(ctx)
	if err != nil {
		return res, err
	}

	for _, ev := range events {
		out, err := r.ReconcileEvent(ctx, tenantID, ev)
		if err != nil {
			slog.ErrorContext(ctx, "Bill reconciliation failed",
				applog.FieldBillID, ev.ResourceID,
				applog.FieldTenantID, tenantID,
				applog.FieldError, err)
		}
		switch out.Action {
		case ActionReconciled:
			res.Reconciled++
		case ActionIgnored:
			res.Ignored++
		default:
			res.Failed++
		}
		res.Outcomes = append(res.Outcomes, out)
	}
	return res, nil
}

// ReconcileEvent processes one bill event for tenantID.
func (r *Reconciler) ReconcileEvent(ctx context.Context, tenantID string, ev core.BillEvent) (Outcome, error) {
	out, err := r.reconcile(ctx, tenantID, ev)
	if err != nil {
		out.Action = ActionFailed
		out.Error = err.Error()
	}
	r.metrics.BillEvent(string(out.Action))
	if out.Action == ActionIgnored {
		slog.DebugContext(ctx, "Bill event ignored",
			applog.FieldBillID, out.BillID,
			applog.FieldReason, out.Reason)
	}
	return out, err
}

func (r *Reconciler) reconcile(ctx context.Context, tenantID string, ev core.BillEvent) (Outcome, error) {
	out := Outcome{BillID: ev.ResourceID}
	ignore := func(reason string) (Outcome, error) {
		out.Action = ActionIgnored
		out.Reason = reason
		return out, nil
	}

	if !ev.IsInvoice() {
		return ignore(ReasonNotInvoice)
	}
	if ev.TenantID != "" && ev.TenantID != tenantID {
		return ignore(ReasonOtherTenant)
	}
	if ev.ResourceID == "" {
		return ignore(ReasonMissingResourceID)
	}

	doc, err := r.provider.GetInvoice(ctx, tenantID, ev.ResourceID)
	if errors.Is(err, core.ErrDocumentNotFound) {
		return ignore(ReasonNotFound)
	}
	if err != nil {
		return out, fmt.Errorf("get bill %s: %w", ev.ResourceID, err)
	}
	if doc.Type != core.DocumentTypePurchase {
		return ignore(ReasonNotBill)
	}
	if !doc.Status.Editable() {
		return ignore(ReasonNotEditable)
	}

	ref := strings.TrimSpace(doc.Reference)
	if ref == "" {
		return ignore(ReasonNoReference)
	}
	out.CampaignRef = ref

	done, err := r.ledger.IsReconciled(ctx, doc.ID, doc.Status)
	if err != nil {
		return out, fmt.Errorf("check reconciled: %w", err)
	}
	if done {
		// An edited total on an already reconciled bill is not re-posted.
		out.NetAmount = core.NetAmount(doc.LineItems)
		applog.FromContext(ctx).WarnContext(ctx, "Bill already reconciled in this status, skipping",
			applog.FieldBillID, doc.ID,
			applog.FieldBillStatus, string(doc.Status),
			applog.FieldCampaignRef, ref,
			applog.FieldNetAmount, out.NetAmount.StringFixed(core.CurrencyPlaces))
		return ignore(ReasonAlreadyReconciled)
	}

	cfg, err := r.settings.Get(ctx)
	if err != nil {
		return out, fmt.Errorf("load settings: %w", err)
	}

	if err := r.provider.UpdateInvoiceLines(ctx, tenantID, doc.ID, core.RecodeLines(doc.LineItems, cfg.AccrualCode)); err != nil {
		return out, fmt.Errorf("recode bill %s: %w", doc.ID, err)
	}

	if cfg.AutoApproveBills {
		if err := r.provider.UpdateInvoiceStatus(ctx, tenantID, doc.ID, core.StatusAuthorised); err != nil {
			return out, fmt.Errorf("approve bill %s: %w", doc.ID, err)
		}
		out.Approved = true
	}

	net := core.NetAmount(doc.LineItems)
	baseline, err := r.baseline(ctx, ref)
	if err != nil {
		return out, err
	}
	variance := core.Variance(net, baseline)
	out.NetAmount = net
	out.Baseline = baseline
	out.Variance = variance
	out.Direction = core.DirectionOf(variance)

	if j := core.VarianceJournal(cfg, ref, variance); j != nil {
		j.Date = r.now().UTC().Truncate(24 * time.Hour)
		id, err := r.provider.CreateJournal(ctx, tenantID, *j)
		if err != nil {
			return out, fmt.Errorf("post variance journal: %w", err)
		}
		out.JournalID = id
		r.metrics.VarianceJournal(string(out.Direction))
	}

	if r.mode == ModeRemaining {
		if _, err := r.ledger.Settle(ctx, ref, net.Sub(variance)); err != nil {
			return out, fmt.Errorf("settle accrual %s: %w", ref, err)
		}
	}

	if err := r.ledger.MarkReconciled(ctx, doc.ID, doc.Status); err != nil {
		return out, fmt.Errorf("mark reconciled: %w", err)
	}
	out.Action = ActionReconciled

	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogBillReconciled(ctx, doc.ID, string(doc.Status), ref, variance.StringFixed(core.CurrencyPlaces), string(out.Direction))

	if err := r.audit.Record(ctx, audit.Entry{
		Time:        r.now(),
		Kind:        audit.KindBillReconciled,
		CampaignRef: ref,
		DocumentID:  doc.ID,
		JournalID:   out.JournalID,
		Amount:      net,
		Variance:    variance,
		Direction:   string(out.Direction),
		Detail:      fmt.Sprintf("mode=%s baseline=%s", r.mode, baseline.StringFixed(core.CurrencyPlaces)),
	}); err != nil {
		slog.WarnContext(ctx, "Failed to record audit entry", applog.FieldBillID, doc.ID, applog.FieldError, err)
	}

	return out, nil
}

// baseline is the amount the bill is compared against. A campaign without an
// accrual has a zero baseline, so the whole bill becomes variance.
func (r *Reconciler) baseline(ctx context.Context, ref string) (decimal.Decimal, error) {
	rec, ok, err := r.ledger.Get(ctx, ref)
	if err != nil {
		return decimal.Zero, fmt.Errorf("read accrual %s: %w", ref, err)
	}
	if !ok {
		slog.WarnContext(ctx, "No accrual recorded for campaign, using zero baseline", applog.FieldCampaignRef, ref)
		return decimal.Zero, nil
	}
	if r.mode == ModeRemaining {
		return rec.Remaining(), nil
	}
	return rec.Accrued, nil
}
