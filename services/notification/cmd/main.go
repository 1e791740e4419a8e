package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/config"
	"github.com/Arsyadam/bhawikarsu-store/pkg/db"
	"github.com/Arsyadam/bhawikarsu-store/pkg/utils"
	"github.com/Arsyadam/bhawikarsu-store/services/notification/internal/infrastructure/email"
	"github.com/Arsyadam/bhawikarsu-store/services/notification/internal/service"
	"github.com/Arsyadam/bhawikarsu-store/services/notification/internal/transport/kafka"
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

	tp, err := utils.InitTracer(ctx, "notification-service", cfg.Env)
	if err != nil {
		log.Fatalf("Error starting telemetry: %v", err)
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

	renderer, err := email.NewRenderer(cfg.SMTP.StoreURL)
	if err != nil {
		logger.Fatal("Error loading email templates", zap.Error(err))
	}

	if cfg.SMTP.Host == "" {
		logger.Warn("SMTP_HOST is empty, emails will only be logged")
	}

	notificationService := service.NewNotificationService(email.NewSender(cfg.SMTP, logger), renderer, pool, logger)
	consumer := kafka.NewConsumer(notificationService, logger)

	go func() {
		logger.Info("Notification consumer started", zap.Strings("brokers", cfg.Kafka.Brokers))
		if err := consumer.Start(ctx, cfg.Kafka.Brokers); err != nil {
			logger.Error("Kafka consumer stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool.Close()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error stopping telemetry", zap.Error(err))
	}
}
