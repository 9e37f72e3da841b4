// Package http exposes the campaign, webhook and admin endpoints.
package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"accruals/internal/accounting"
	"accruals/internal/core"
	"accruals/internal/ledger"
	applog "accruals/internal/log"
	"accruals/internal/metrics"
	"accruals/internal/middleware/ratelimit"
	"accruals/internal/middleware/security"
	"accruals/internal/middleware/trace"
	"accruals/internal/services"
	"accruals/internal/settings"
	"accruals/internal/webhook"
)

// CampaignCreator onboards a campaign.
type CampaignCreator interface {
	CreateCampaign(ctx context.Context, req core.CampaignRequest) (core.CampaignResult, error)
}

// BatchReconciler reconciles a webhook delivery inline.
type BatchReconciler interface {
	ReconcileBatch(ctx context.Context, events []core.BillEvent) (services.BatchResult, error)
}

// Publisher hands verified events to the reconcile worker.
type Publisher interface {
	PublishBillEvent(ctx context.Context, ev core.BillEvent) error
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps wires the server to the rest of the application. Publisher, Pinger and
// Metrics are optional. When Publisher is set the webhook queues events
// instead of reconciling them inline.
type Deps struct {
	Campaigns  CampaignCreator
	Reconciler BatchReconciler
	Publisher  Publisher
	Settings   settings.Store
	Ledger     ledger.Store
	Resolver   *services.Resolver
	Tenants    accounting.TenantResolver
	Verifier   *webhook.Verifier
	Metrics    *metrics.Metrics
	Pinger     Pinger
}

// Options tune the admin surface.
type Options struct {
	AdminToken         string
	RateLimitPerMinute int
	TrustedProxies     []string
	// Logger is attached to every request context when set.
	Logger *applog.Logger
}

type Server struct {
	http.Server
	deps         Deps
	rateLimiter  *ratelimit.Limiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps, opts Options) (*Server, error) {
	clientIP, err := security.NewClientIP(opts.TrustedProxies)
	if err != nil {
		return nil, err
	}

	s := &Server{
		deps:        deps,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
	}

	admin := func(h http.HandlerFunc) http.Handler {
		limited := s.rateLimiter.Middleware(clientIP.Extract, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: errorDetail{
				Kind:    "rate_limited",
				Message: "rate limit exceeded, try again later",
			}})
		})
		auth := security.BearerAuth(opts.AdminToken, func(w http.ResponseWriter, r *http.Request) {
			writeError(r.Context(), w, &core.AuthenticationError{Reason: "invalid admin token"})
		})
		return limited(auth(h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/campaigns", admin(s.handleCreateCampaign))
	mux.HandleFunc("POST /webhooks/xero", s.handleWebhook)
	mux.Handle("GET /api/settings", admin(s.handleGetSettings))
	mux.Handle("PUT /api/settings", admin(s.handleUpdateSettings))
	mux.Handle("PATCH /api/settings", admin(s.handleUpdateSettings))
	mux.Handle("GET /api/settings/verify", admin(s.handleVerifySettings))
	mux.Handle("GET /api/ledger", admin(s.handleListLedger))
	mux.Handle("GET /api/ledger/{ref}", admin(s.handleGetLedger))
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}

	observe := func(route string, code int, elapsed time.Duration) {
		deps.Metrics.ObserveHTTP(route, strconv.Itoa(code), elapsed.Seconds())
	}
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var handler http.Handler = trace.NewMiddleware(clientIP.Extract, observe).Middleware(headers.Middleware(mux))
	if opts.Logger != nil {
		handler = applog.Middleware(opts.Logger)(handler)
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown gracefully shuts down the server and the rate limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady requires a resolvable tenant and a reachable store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	ready := true
	if s.deps.Pinger != nil {
		if err := s.deps.Pinger.Ping(ctx); err != nil {
			checks["storage"] = err.Error()
			ready = false
		} else {
			checks["storage"] = "ok"
		}
	}
	if s.deps.Tenants != nil {
		if _, err := s.deps.Tenants.CurrentTenant(ctx); err != nil {
			checks["tenant"] = err.Error()
			ready = false
		} else {
			checks["tenant"] = "ok"
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"ready": ready, "checks": checks})
}
