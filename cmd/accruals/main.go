package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"accruals/internal/amqp"
	"accruals/internal/cli"
	"accruals/internal/config"
	apphttp "accruals/internal/http"
	applog "accruals/internal/log"
	"accruals/internal/metrics"
	"accruals/internal/services"
	"accruals/internal/webhook"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(applog.New(applog.DefaultConfig()))
	logger := cli.SetupLogger(cfg, "api")

	if err := run(cfg, logger); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	mode, err := services.ParseMode(cfg.ReconcileMode)
	if err != nil {
		return err
	}

	b := cli.InitBackend(context.Background(), logger, cfg)
	defer b.Close()

	m := metrics.New()
	deps := apphttp.Deps{
		Campaigns: services.NewCampaignService(b.Provider, b.Settings, b.Ledger, b.Audit, m),
		Reconciler: services.NewReconciler(b.Provider, b.Settings, b.Ledger,
			services.WithMode(mode),
			services.WithAudit(b.Audit),
			services.WithMetrics(m)),
		Settings: b.Settings,
		Ledger:   b.Ledger,
		Resolver: services.NewResolver(b.Provider, b.Provider),
		Tenants:  b.Provider,
		Verifier: webhook.NewVerifier(cfg.XeroWebhookKey),
		Metrics:  m,
		Pinger:   b.Pinger,
	}

	// Queue mode: the webhook only publishes, cmd/reconcile-worker reconciles.
	var amqpClient *amqp.Client
	if cfg.Queued() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		defer amqpClient.Close()
		deps.Publisher = amqpClient
		logger.Info("Webhook events will be queued", applog.FieldQueue, cfg.AMQPQueue)
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, deps, apphttp.Options{
		AdminToken:         cfg.AdminToken,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
	})
	if err != nil {
		return fmt.Errorf("failed to configure server: %w", err)
	}
	if cfg.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN is not set, admin endpoints are unauthenticated")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting accruals server",
			"port", cfg.Port,
			"ledger", cfg.LedgerBackend,
			"accounting", cfg.AccountingBackend,
			"mode", string(mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// Resolving the tenant early surfaces a missing connection in the logs;
		// the server keeps running and /readyz reports it.
		tenantID, err := b.Provider.CurrentTenant(gctx)
		if err != nil {
			logger.Warn("No accounting tenant connected", applog.FieldError, err)
			return nil
		}
		logger.Info("Accounting tenant connected", applog.FieldTenantID, tenantID)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	cli.WaitForShutdown(ctx, done)
	return nil
}
