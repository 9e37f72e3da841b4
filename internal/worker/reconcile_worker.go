package worker

import (
	"context"
	"fmt"
	"log/slog"

	"accruals/internal/accounting"
	"accruals/internal/amqp"
	"accruals/internal/core"
	applog "accruals/internal/log"
	"accruals/internal/services"
	"accruals/internal/settings"
)

// BatchReconciler is the part of the reconciler the worker drives.
type BatchReconciler interface {
	ReconcileBatch(ctx context.Context, events []core.BillEvent) (services.BatchResult, error)
}

// ReconcileWorker reconciles bill events delivered over AMQP by the webhook.
type ReconcileWorker struct {
	reconciler BatchReconciler
	tenants    accounting.TenantResolver
	resolver   *services.Resolver
	settings   settings.Store
}

func NewReconcileWorker(reconciler BatchReconciler, tenants accounting.TenantResolver, resolver *services.Resolver, settingsStore settings.Store) *ReconcileWorker {
	return &ReconcileWorker{
		reconciler: reconciler,
		tenants:    tenants,
		resolver:   resolver,
		settings:   settingsStore,
	}
}

// HandleBillEvent reconciles one queued event. A returned error rejects the
// message; it is not requeued.
func (w *ReconcileWorker) HandleBillEvent(ctx context.Context, msg *amqp.BillEventMessage) error {
	slog.InfoContext(ctx, "Processing bill event",
		applog.FieldBillID, msg.ResourceID,
		applog.FieldEventType, msg.EventType,
		applog.FieldTenantID, msg.TenantID)

	res, err := w.reconciler.ReconcileBatch(ctx, []core.BillEvent{msg.BillEvent()})
	if err != nil {
		return fmt.Errorf("reconcile bill %s: %w", msg.ResourceID, err)
	}
	if res.Failed > 0 {
		reason := "reconciliation failed"
		if len(res.Outcomes) > 0 && res.Outcomes[0].Error != "" {
			reason = res.Outcomes[0].Error
		}
		return fmt.Errorf("reconcile bill %s: %s", msg.ResourceID, reason)
	}

	if len(res.Outcomes) > 0 {
		out := res.Outcomes[0]
		slog.InfoContext(ctx, "Bill event processed",
			applog.FieldBillID, out.BillID,
			applog.FieldAction, string(out.Action),
			applog.FieldReason, out.Reason)
	}
	return nil
}

// StartupCheck confirms a tenant is connected and reports settings the
// provider cannot resolve. Unresolved settings are logged, not fatal.
func (w *ReconcileWorker) StartupCheck(ctx context.Context) error {
	tenantID, err := w.tenants.CurrentTenant(ctx)
	if err != nil {
		return fmt.Errorf("resolve tenant: %w", err)
	}

	cfg, err := w.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	unresolved := 0
	for _, check := range w.resolver.VerifySettings(ctx, tenantID, cfg) {
		if check.Found {
			continue
		}
		unresolved++
		slog.WarnContext(ctx, "Setting does not resolve against the provider",
			applog.FieldTenantID, tenantID,
			"key", check.Key,
			"value", check.Value,
			"error", check.Error)
	}

	slog.InfoContext(ctx, "Startup check completed",
		applog.FieldTenantID, tenantID,
		"unresolved_settings", unresolved)
	return nil
}
