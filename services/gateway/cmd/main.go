package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/auth"
	"github.com/Arsyadam/bhawikarsu-store/pkg/config"
	"github.com/Arsyadam/bhawikarsu-store/pkg/httpserver"
	"github.com/Arsyadam/bhawikarsu-store/pkg/metrics"
	"github.com/Arsyadam/bhawikarsu-store/pkg/utils"
	"github.com/Arsyadam/bhawikarsu-store/services/gateway/internal/proxy"
	gatewayHttp "github.com/Arsyadam/bhawikarsu-store/services/gateway/internal/transport/http"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := utils.InitTracer(ctx, "gateway-service", cfg.Env)
	if err != nil {
		log.Fatalf("Failed to init trace: %v", err)
	}

	logger, err := config.NewLogger(cfg.Logger())
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tokens, err := auth.NewTokenManager(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	if err != nil {
		logger.Fatal("Error creating token manager", zap.Error(err))
	}

	router := proxy.NewRouter(proxy.DefaultRoutes(cfg.Services), cfg.Gateway.UpstreamTimeout, logger)

	app := httpserver.New("Gateway", metrics.NewRegistry("gateway"))
	gatewayHttp.RegisterRoutes(app, router, cfg.Gateway, auth.NewAdminMiddleware(tokens))

	go func() {
		logger.Info("Gateway listening",
			zap.String("port", cfg.HTTP.Port),
			zap.String("catalog", cfg.Services.CatalogURL),
			zap.String("order", cfg.Services.OrderURL),
			zap.String("auth", cfg.Services.AuthURL),
		)
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			logger.Fatal("Error listening HTTP", zap.String("port", cfg.HTTP.Port), zap.Error(err))
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP app", zap.Error(err))
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down telemetry", zap.Error(err))
	}
}
