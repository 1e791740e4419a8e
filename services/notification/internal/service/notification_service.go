package service

import (
	"context"
	"fmt"

	"github.com/Arsyadam/bhawikarsu-store/pkg/events"
	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	outboxUtils "github.com/Arsyadam/bhawikarsu-store/pkg/outbox/utils"
	"github.com/Arsyadam/bhawikarsu-store/services/notification/internal/domain"
	"github.com/Arsyadam/bhawikarsu-store/services/notification/internal/infrastructure/email"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type NotificationService struct {
	sender   email.Sender
	renderer *email.Renderer
	pool     *pgxpool.Pool
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewNotificationService(sender email.Sender, renderer *email.Renderer, pool *pgxpool.Pool, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		sender:   sender,
		renderer: renderer,
		pool:     pool,
		logger:   logger,
		tracer:   otel.Tracer("notification-service"),
	}
}

func (s *NotificationService) HandleOrderPaid(ctx context.Context, eventID int64, event events.OrderPaidEvent) error {
	ctx, span := s.tracer.Start(ctx, "NotificationService.HandleOrderPaid")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("event_id", eventID),
		attribute.String("order_id", event.OrderID),
	)

	msg, err := s.renderer.OrderPaid(event)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("render order paid email: %w", err)
	}

	return s.deliver(ctx, eventID, event.OrderID, msg)
}

func (s *NotificationService) HandleOrderExpired(ctx context.Context, eventID int64, event events.OrderExpiredEvent) error {
	ctx, span := s.tracer.Start(ctx, "NotificationService.HandleOrderExpired")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("event_id", eventID),
		attribute.String("order_id", event.OrderID),
	)

	msg, err := s.renderer.PaymentExpired(event)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("render payment expired email: %w", err)
	}

	return s.deliver(ctx, eventID, event.OrderID, msg)
}

// deliver sends msg at most once per eventID. An order without an email
// address is still marked processed.
func (s *NotificationService) deliver(ctx context.Context, eventID int64, orderID string, msg domain.Message) error {
	return outboxUtils.ProcessWithDeduplication(ctx, s.pool, s.logger, eventID, func(ctx context.Context, _ pgx.Tx) error {
		if msg.To == "" {
			mylogger.Warn(ctx, s.logger, "Order has no email address, skipping", zap.String("order_id", orderID))
			return nil
		}

		return s.sender.Send(ctx, msg)
	})
}
