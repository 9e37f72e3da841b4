package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"accruals/internal/amqp"
	"accruals/internal/cli"
	"accruals/internal/config"
	applog "accruals/internal/log"
	"accruals/internal/metrics"
	"accruals/internal/services"
	"accruals/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(applog.New(applog.DefaultConfig()))
	logger := cli.SetupLogger(cfg, "worker")

	logger.Info("Starting reconcile-worker")
	if err := run(cfg, logger); err != nil {
		logger.Error("Worker stopped", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	if !cfg.Queued() {
		return fmt.Errorf("AMQP_URL is required for the reconcile worker")
	}
	mode, err := services.ParseMode(cfg.ReconcileMode)
	if err != nil {
		return err
	}

	b := cli.InitBackend(context.Background(), logger, cfg)
	defer b.Close()

	resolver := services.NewResolver(b.Provider, b.Provider)
	reconciler := services.NewReconciler(b.Provider, b.Settings, b.Ledger,
		services.WithMode(mode),
		services.WithAudit(b.Audit),
		services.WithMetrics(metrics.New()))
	w := worker.NewReconcileWorker(reconciler, b.Provider, resolver, b.Settings)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("failed to initialize AMQP client: %w", err)
	}
	defer amqpClient.Close()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// A failed startup check is logged but does not stop consumption: bills
	// queued while the tenant was disconnected are rejected and logged.
	logger.Info("Performing startup check...")
	if err := w.StartupCheck(ctx); err != nil {
		logger.Error("Startup check failed", applog.FieldError, err)
	}

	logger.Info("Consuming bill events", applog.FieldQueue, cfg.AMQPQueue, "mode", string(mode))
	err = amqpClient.ConsumeBillEvents(ctx, w.HandleBillEvent)
	if ctx.Err() != nil {
		cli.WaitForShutdown(ctx, done)
		return nil
	}
	return err
}
