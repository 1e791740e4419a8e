package worker

import (
	"context"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/service"
	"go.uber.org/zap"
)

// Reconciler runs a sweep on every tick until ctx is done.
type Reconciler struct {
	svc      service.ReconcileService
	interval time.Duration
	logger   *zap.Logger
}

func NewReconciler(svc service.ReconcileService, interval time.Duration, logger *zap.Logger) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}

	return &Reconciler{
		svc:      svc,
		interval: interval,
		logger:   logger,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	mylogger.Info(ctx, r.logger, "Starting reconciler", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mylogger.Info(context.WithoutCancel(ctx), r.logger, "Reconciler stopping")
			return
		case <-ticker.C:
			report, err := r.svc.Sweep(ctx)
			if err != nil && ctx.Err() == nil {
				mylogger.Error(ctx, r.logger, "Reconcile sweep failed", zap.Error(err))
				continue
			}

			if report.Materialized+report.FailedAttempts+report.Transitioned > 0 {
				mylogger.Info(ctx, r.logger, "Reconcile sweep finished",
					zap.Int("materialized", report.Materialized),
					zap.Int("failed_attempts", report.FailedAttempts),
					zap.Int("checked", report.Checked),
					zap.Int("transitioned", report.Transitioned),
				)
			}
		}
	}
}
