package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/auth"
	"github.com/Arsyadam/bhawikarsu-store/pkg/config"
	"github.com/Arsyadam/bhawikarsu-store/pkg/db"
	"github.com/Arsyadam/bhawikarsu-store/pkg/httpserver"
	"github.com/Arsyadam/bhawikarsu-store/pkg/kafka"
	"github.com/Arsyadam/bhawikarsu-store/pkg/lock"
	"github.com/Arsyadam/bhawikarsu-store/pkg/metrics"
	outboxRepository "github.com/Arsyadam/bhawikarsu-store/pkg/outbox/repository"
	outboxWorker "github.com/Arsyadam/bhawikarsu-store/pkg/outbox/worker"
	"github.com/Arsyadam/bhawikarsu-store/pkg/utils"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/client/biteship"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/client/catalog"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/client/midtrans"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/repository"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/service"
	orderHttp "github.com/Arsyadam/bhawikarsu-store/services/order/internal/transport/http"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/transport/http/handler"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/worker"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := utils.InitTracer(ctx, "order-service", cfg.Env)
	if err != nil {
		log.Fatalf("Error init tracer: %v", err)
	}

	logger, err := config.NewLogger(cfg.Logger())
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if cfg.Midtrans.ServerKey == "" {
		logger.Fatal("MIDTRANS_SERVER_KEY is not set")
	}

	pool, err := db.NewPostgresDB(ctx, cfg.Postgres.URL, logger)
	if err != nil {
		logger.Fatal("Error creating new postgres DB", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	tokens, err := auth.NewTokenManager(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	if err != nil {
		logger.Fatal("Error creating token manager", zap.Error(err))
	}

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, "order-service", logger)
	if err != nil {
		logger.Fatal("Error creating kafka producer", zap.Error(err))
	}

	orderRepository := repository.NewOrderRepository(pool, logger)
	attemptRepository := repository.NewAttemptRepository(pool, logger)
	outboxRepo := outboxRepository.NewOutboxRepository(logger)

	gateway := midtrans.NewClient(cfg.Midtrans.BaseURL, cfg.Midtrans.ServerKey, logger)
	courier := biteship.NewClient(cfg.Biteship.BaseURL, cfg.Biteship.APIKey, logger)
	products := catalog.NewClient(cfg.Services.CatalogURL, logger)

	registry := metrics.NewRegistry("order")
	orderMetrics := service.NewMetrics(registry)

	lifecycle := service.NewLifecycle(pool, orderRepository, attemptRepository, outboxRepo, orderMetrics, logger)
	shippingService := service.NewShippingService(courier, rdb, cfg.Biteship.OriginAreaID, cfg.Biteship.Couriers, logger)
	checkoutService := service.NewCheckoutService(
		products,
		shippingService,
		gateway,
		attemptRepository,
		lifecycle,
		lock.NewLocker(rdb, "lock:"),
		orderMetrics,
		service.CheckoutConfig{
			Acquirer:      cfg.Midtrans.Acquirer,
			ExpiryMinutes: cfg.Midtrans.ExpiryMinutes,
		},
		logger,
	)
	statusService := service.NewStatusService(lifecycle, orderRepository, attemptRepository, gateway, logger)
	adminService := service.NewAdminOrderService(lifecycle, gateway, orderRepository, attemptRepository, logger)
	reconcileService := service.NewReconcileService(
		lifecycle,
		orderRepository,
		attemptRepository,
		gateway,
		service.ReconcileConfig{
			BatchSize:      cfg.Reconciler.BatchSize,
			PendingGrace:   cfg.Reconciler.PendingGrace,
			InitiatedGrace: cfg.Reconciler.InitiatedGrace,
		},
		logger,
	)

	app := httpserver.New("Order Service", registry)

	orderHttp.RegisterRoutes(
		app,
		&orderHttp.Handlers{
			Checkout: handler.NewCheckoutHandler(checkoutService, cfg.HTTP.Timeout, logger),
			Payment:  handler.NewPaymentHandler(statusService, cfg.HTTP.Timeout, logger),
			Shipping: handler.NewShippingHandler(shippingService, checkoutService, cfg.HTTP.Timeout, logger),
			Admin:    handler.NewAdminOrderHandler(adminService, cfg.HTTP.Timeout, logger),
		},
		httpserver.Limiter(cfg.Limiter),
		auth.NewAdminMiddleware(tokens),
	)

	outboxProcessor := outboxWorker.NewOutboxProcessor(pool, outboxRepo, producer, logger)
	go outboxProcessor.Start(ctx)

	reconciler := worker.NewReconciler(reconcileService, cfg.Reconciler.Interval, logger)
	go reconciler.Start(ctx)

	go func() {
		logger.Info("HTTP Order service listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			logger.Fatal("Error listening HTTP", zap.String("port", cfg.HTTP.Port), zap.Error(err))
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server", zap.Error(err))
	}

	if err := producer.Close(); err != nil {
		logger.Warn("Error closing kafka producer", zap.Error(err))
	}

	if err := rdb.Close(); err != nil {
		logger.Warn("Error closing redis client", zap.Error(err))
	}

	pool.Close()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error stopping telemetry", zap.Error(err))
	}
}
