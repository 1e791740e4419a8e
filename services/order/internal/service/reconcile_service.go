package service

import (
	"context"
	"errors"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/pkg/utils"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/client/midtrans"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type SweepReport struct {
	Materialized   int `json:"materialized"`
	FailedAttempts int `json:"failed_attempts"`
	Checked        int `json:"checked"`
	Transitioned   int `json:"transitioned"`
}

type ReconcileConfig struct {
	BatchSize      int
	PendingGrace   time.Duration
	InitiatedGrace time.Duration
}

type ReconcileService interface {
	Sweep(ctx context.Context) (SweepReport, error)
}

type reconcileService struct {
	lifecycle *Lifecycle
	orders    repository.OrderRepository
	attempts  repository.AttemptRepository
	gateway   Gateway
	cfg       ReconcileConfig
	tracer    trace.Tracer
	logger    *zap.Logger
	now       func() time.Time
}

func NewReconcileService(
	lifecycle *Lifecycle,
	orders repository.OrderRepository,
	attempts repository.AttemptRepository,
	gateway Gateway,
	cfg ReconcileConfig,
	logger *zap.Logger,
) ReconcileService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}

	return &reconcileService{
		lifecycle: lifecycle,
		orders:    orders,
		attempts:  attempts,
		gateway:   gateway,
		cfg:       cfg,
		tracer:    otel.Tracer("order/reconcile_service"),
		logger:    logger,
		now:       time.Now,
	}
}

// Sweep settles charges whose order was never written and re-checks pending
// orders against the gateway. It stops early when the gateway breaker opens.
func (s *reconcileService) Sweep(ctx context.Context) (SweepReport, error) {
	ctx, span := s.tracer.Start(ctx, "ReconcileService.Sweep")
	defer span.End()

	var report SweepReport

	if err := s.sweepAttempts(ctx, &report); err != nil {
		span.RecordError(err)
		return report, err
	}

	if err := s.sweepPending(ctx, &report); err != nil {
		span.RecordError(err)
		return report, err
	}

	span.SetAttributes(
		attribute.Int("materialized", report.Materialized),
		attribute.Int("failed_attempts", report.FailedAttempts),
		attribute.Int("checked", report.Checked),
		attribute.Int("transitioned", report.Transitioned),
	)

	return report, nil
}

func (s *reconcileService) sweepAttempts(ctx context.Context, report *SweepReport) error {
	now := s.now()

	attempts, err := s.attempts.ListInitiatedBefore(ctx, now.Add(-s.cfg.InitiatedGrace), s.cfg.BatchSize)
	if err != nil {
		return err
	}

	for i := range attempts {
		a := &attempts[i]

		resp, err := s.gateway.Status(ctx, a.OrderID)
		switch {
		case err == nil:
		case errors.Is(err, midtrans.ErrTransactionNotFound):
			if now.After(a.ExpiresAt) {
				if err := s.attempts.MarkFailed(ctx, a.OrderID, "charge not found at gateway after expiry"); err != nil && !errors.Is(err, repository.ErrAttemptNotPending) {
					return err
				}

				report.FailedAttempts++
			}

			continue
		case utils.IsUnavailable(err):
			return err
		default:
			mylogger.Warn(ctx, s.logger, "Status check failed for attempt", zap.String("order_id", a.OrderID), zap.Error(err))
			continue
		}

		if err := s.lifecycle.materialize(ctx, a, resp); err != nil {
			mylogger.Error(ctx, s.logger, "Failed to materialise order", zap.String("order_id", a.OrderID), zap.Error(err))
			continue
		}

		report.Materialized++

		order, err := s.orders.GetByID(ctx, a.OrderID)
		if err != nil {
			return err
		}

		if _, changed, err := s.lifecycle.reconcile(ctx, order, resp); err != nil {
			return err
		} else if changed {
			report.Transitioned++
		}
	}

	return nil
}

func (s *reconcileService) sweepPending(ctx context.Context, report *SweepReport) error {
	ids, err := s.orders.ListPendingBefore(ctx, s.now().Add(-s.cfg.PendingGrace), s.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, id := range ids {
		order, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}

		resp, err := s.gateway.Status(ctx, id)
		switch {
		case err == nil:
		case errors.Is(err, midtrans.ErrTransactionNotFound):
			resp = nil
		case utils.IsUnavailable(err):
			return err
		default:
			mylogger.Warn(ctx, s.logger, "Status check failed for order", zap.String("order_id", id), zap.Error(err))
			continue
		}

		report.Checked++

		if _, changed, err := s.lifecycle.reconcile(ctx, order, resp); err != nil {
			return err
		} else if changed {
			report.Transitioned++
		}
	}

	return nil
}
