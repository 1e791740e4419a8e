// Package reconcile runs one order reconciliation sweep outside the order
// service process. Events it produces stay in the outbox until the service
// relays them.
package reconcile

import (
	"context"

	"github.com/Arsyadam/bhawikarsu-store/pkg/config"
	outboxRepository "github.com/Arsyadam/bhawikarsu-store/pkg/outbox/repository"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/client/midtrans"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/repository"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Report = service.SweepReport

func Run(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, logger *zap.Logger) (Report, error) {
	orders := repository.NewOrderRepository(pool, logger)
	attempts := repository.NewAttemptRepository(pool, logger)

	lifecycle := service.NewLifecycle(pool, orders, attempts, outboxRepository.NewOutboxRepository(logger), nil, logger)
	gateway := midtrans.NewClient(cfg.Midtrans.BaseURL, cfg.Midtrans.ServerKey, logger)

	svc := service.NewReconcileService(
		lifecycle,
		orders,
		attempts,
		gateway,
		service.ReconcileConfig{
			BatchSize:      cfg.Reconciler.BatchSize,
			PendingGrace:   cfg.Reconciler.PendingGrace,
			InitiatedGrace: cfg.Reconciler.InitiatedGrace,
		},
		logger,
	)

	return svc.Sweep(ctx)
}
