package http

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"accruals/internal/core"
	applog "accruals/internal/log"
	"accruals/internal/services"
	"accruals/internal/webhook"
)

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req core.CampaignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	res, err := s.deps.Campaigns.CreateCampaign(ctx, req)
	if err != nil {
		applog.NewStructuredLogger(applog.FromContext(ctx)).LogError(ctx, "Campaign onboarding failed", err,
			applog.ComponentCampaign, applog.OpCreate,
			applog.NewFields().WithCampaign(req.CampaignRef, "", "", ""))
		writeError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

// webhookAck is the acknowledgement returned to the provider.
type webhookAck struct {
	Received   int `json:"received"`
	Reconciled int `json:"reconciled"`
	Ignored    int `json:"ignored"`
	Failed     int `json:"failed"`
	Queued     int `json:"queued"`
}

// handleWebhook authenticates the raw body before decoding anything. A bad
// signature is rejected with no processing. Per-event failures are logged
// and acknowledged; only a batch-level failure returns 500.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentWebhook)

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.deps.Metrics.WebhookDelivery("malformed")
		writeError(ctx, w, &core.ValidationError{Field: "body", Message: "unreadable request body"})
		return
	}

	if !s.deps.Verifier.Verify(r.Header.Get(webhook.SignatureHeader), raw) {
		s.deps.Metrics.WebhookDelivery("bad_signature")
		logger.WarnContext(ctx, "Rejected webhook delivery with invalid signature")
		writeError(ctx, w, core.ErrInvalidSignature)
		return
	}

	payload, err := webhook.ParsePayload(raw)
	if err != nil {
		s.deps.Metrics.WebhookDelivery("malformed")
		writeError(ctx, w, err)
		return
	}
	events := payload.BillEvents()
	ack := webhookAck{Received: len(events)}

	if s.deps.Publisher != nil {
		for _, ev := range events {
			if err := s.deps.Publisher.PublishBillEvent(ctx, ev); err != nil {
				s.deps.Metrics.WebhookDelivery("error")
				logger.ErrorContext(ctx, "Failed to queue bill event",
					applog.FieldBillID, ev.ResourceID,
					applog.FieldError, err)
				s.writeWebhookFailure(w, "failed to queue bill events")
				return
			}
			ack.Queued++
		}
		s.deps.Metrics.WebhookDelivery("accepted")
		writeJSON(w, http.StatusOK, ack)
		return
	}

	res, err := s.deps.Reconciler.ReconcileBatch(ctx, events)
	if err != nil {
		s.deps.Metrics.WebhookDelivery("error")
		logger.ErrorContext(ctx, "Webhook delivery could not be processed",
			applog.FieldError, err)
		s.writeWebhookFailure(w, err.Error())
		return
	}

	ack.Reconciled, ack.Ignored, ack.Failed = res.Reconciled, res.Ignored, res.Failed
	logger.InfoContext(ctx, "Webhook delivery processed",
		"received", res.Received,
		"reconciled", res.Reconciled,
		"ignored", res.Ignored,
		"failed", res.Failed)
	s.deps.Metrics.WebhookDelivery("accepted")
	writeJSON(w, http.StatusOK, ack)
}

// writeWebhookFailure answers 500 even for a missing tenant: the delivery was
// authentic, the service just cannot act on it.
func (s *Server) writeWebhookFailure(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
		Kind: "internal", Message: msg,
	}})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.deps.Settings.Get(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleUpdateSettings applies a partial patch. PUT and PATCH behave the same:
// keys absent from the body keep their value.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var values map[string]any
	if err := decodeJSON(w, r, &values); err != nil {
		writeError(ctx, w, err)
		return
	}
	if values == nil {
		writeError(ctx, w, &core.ValidationError{Message: "settings body must be a JSON object"})
		return
	}

	patch, err := core.ParseSettingsPatch(values)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	cfg, err := s.deps.Settings.Update(ctx, patch)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	applog.FromContext(ctx).InfoContext(ctx, "Settings updated",
		applog.FieldOperation, applog.OpUpdate,
		"keys", strings.Join(patchKeys(values), ","))
	writeJSON(w, http.StatusOK, cfg)
}

func patchKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for _, k := range core.SettingKeys {
		if _, ok := values[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}

type verifyResponse struct {
	TenantID string                  `json:"tenantId"`
	Checks   []services.SettingCheck `json:"checks"`
}

func (s *Server) handleVerifySettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, err := s.deps.Tenants.CurrentTenant(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	cfg, err := s.deps.Settings.Get(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		TenantID: tenantID,
		Checks:   s.deps.Resolver.VerifySettings(ctx, tenantID, cfg),
	})
}

type accrualView struct {
	CampaignRef string          `json:"campaignRef"`
	Accrued     decimal.Decimal `json:"accrued"`
	Settled     decimal.Decimal `json:"settled"`
	Remaining   decimal.Decimal `json:"remaining"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func viewOf(rec core.AccrualRecord) accrualView {
	return accrualView{
		CampaignRef: rec.CampaignRef,
		Accrued:     rec.Accrued,
		Settled:     rec.Settled,
		Remaining:   rec.Remaining(),
		UpdatedAt:   rec.UpdatedAt,
	}
}

func (s *Server) handleListLedger(w http.ResponseWriter, r *http.Request) {
	recs, err := s.deps.Ledger.List(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	out := make([]accrualView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, viewOf(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"accruals": out})
}

func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.PathValue("ref"))
	rec, ok, err := s.deps.Ledger.Get(r.Context(), ref)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: errorDetail{
			Kind: "not_found", Message: "no accrual for campaign " + ref,
		}})
		return
	}
	writeJSON(w, http.StatusOK, viewOf(rec))
}
