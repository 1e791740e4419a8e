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
	"github.com/Arsyadam/bhawikarsu-store/services/auth/internal/repository"
	"github.com/Arsyadam/bhawikarsu-store/services/auth/internal/service"
	authHttp "github.com/Arsyadam/bhawikarsu-store/services/auth/internal/transport/http"
	"github.com/Arsyadam/bhawikarsu-store/services/auth/internal/transport/http/handler"
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

	tp, err := utils.InitTracer(ctx, "auth-service", cfg.Env)
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

	tokens, err := auth.NewTokenManager(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	if err != nil {
		logger.Fatal("Error creating token manager", zap.Error(err))
	}

	adminRepository := repository.NewAdminRepository(pool, logger)
	sessionRepository := repository.NewSessionRepository(logger)

	authService := service.NewAuthService(pool, adminRepository, sessionRepository, tokens, logger)
	adminService := service.NewAdminService(adminRepository, logger)

	registry := metrics.NewRegistry("auth")
	app := httpserver.New("Auth Service", registry)

	authHttp.RegisterRoutes(
		app,
		handler.NewAuthHandler(authService, adminService, cfg.HTTP.Timeout, logger),
		httpserver.Limiter(cfg.Limiter),
		auth.NewAdminMiddleware(tokens),
	)

	go func() {
		logger.Info("HTTP Auth service listening", zap.String("port", cfg.HTTP.Port))
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

	pool.Close()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error stopping telemetry", zap.Error(err))
	}
}
