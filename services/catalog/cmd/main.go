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
	"github.com/Arsyadam/bhawikarsu-store/pkg/metrics"
	"github.com/Arsyadam/bhawikarsu-store/pkg/utils"
	"github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/repository"
	"github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/service"
	catalogHttp "github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/transport/http"
	"github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/transport/http/handler"
	catalogKafka "github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/transport/kafka"
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

	tp, err := utils.InitTracer(ctx, "catalog-service", cfg.Env)
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

	productRepository := repository.NewProductRepository(pool, logger)
	categoryRepository := repository.NewCategoryRepository(pool, logger)

	productService := service.NewCachedProductService(
		service.NewProductService(productRepository, pool, logger),
		rdb,
		logger,
	)
	categoryService := service.NewCachedCategoryService(
		service.NewCategoryService(categoryRepository, logger),
		rdb,
		logger,
	)

	registry := metrics.NewRegistry("catalog")
	app := httpserver.New("Catalog Service", registry)

	catalogHttp.RegisterRoutes(
		app,
		&catalogHttp.Handlers{
			Product:  handler.NewProductHandler(productService, cfg.HTTP.Timeout, logger),
			Category: handler.NewCategoryHandler(categoryService, cfg.HTTP.Timeout, logger),
		},
		httpserver.Limiter(cfg.Limiter),
		auth.NewAdminMiddleware(tokens),
	)

	consumer := catalogKafka.NewConsumer(productService, logger)
	go func() {
		if err := consumer.Start(ctx, cfg.Kafka.Brokers); err != nil {
			logger.Error("Kafka consumer stopped", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("HTTP Catalog service listening", zap.String("port", cfg.HTTP.Port))
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

	if err := rdb.Close(); err != nil {
		logger.Warn("Error closing redis client", zap.Error(err))
	}

	pool.Close()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error stopping telemetry", zap.Error(err))
	}
}
