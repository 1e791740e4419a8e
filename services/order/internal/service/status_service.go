package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/pkg/utils"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/client/midtrans"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/domain"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const statusNotFound = "not_found"

type StatusService interface {
	CheckStatus(ctx context.Context, orderID string) (*domain.StatusResult, error)
	HandleNotification(ctx context.Context, n *midtrans.Notification) error
}

type statusService struct {
	lifecycle *Lifecycle
	orders    repository.OrderRepository
	attempts  repository.AttemptRepository
	gateway   Gateway
	tracer    trace.Tracer
	logger    *zap.Logger
}

func NewStatusService(
	lifecycle *Lifecycle,
	orders repository.OrderRepository,
	attempts repository.AttemptRepository,
	gateway Gateway,
	logger *zap.Logger,
) StatusService {
	return &statusService{
		lifecycle: lifecycle,
		orders:    orders,
		attempts:  attempts,
		gateway:   gateway,
		tracer:    otel.Tracer("order/status_service"),
		logger:    logger,
	}
}

// CheckStatus asks the gateway about orderID and applies the answer. Gateway
// failures come back as an unsuccessful result; an open breaker is returned
// as an error.
func (s *statusService) CheckStatus(ctx context.Context, orderID string) (*domain.StatusResult, error) {
	ctx, span := s.tracer.Start(ctx, "StatusService.CheckStatus")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", orderID))

	order, attempt, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order == nil && attempt.Status == domain.AttemptFailed {
		return &domain.StatusResult{
			Success: false,
			Message: "payment was never created: " + attempt.Error,
		}, nil
	}

	resp, err := s.gateway.Status(ctx, orderID)
	switch {
	case err == nil:
	case errors.Is(err, midtrans.ErrTransactionNotFound):
		resp = nil
	case utils.IsUnavailable(err):
		span.RecordError(err)
		return nil, err
	default:
		span.RecordError(err)
		mylogger.Warn(ctx, s.logger, "Gateway status check failed", zap.String("order_id", orderID), zap.Error(err))

		return &domain.StatusResult{
			Success: false,
			Message: "could not reach the payment gateway, please try again",
		}, nil
	}

	if order == nil {
		if resp == nil {
			return &domain.StatusResult{Success: true, Status: statusNotFound, Message: "payment is still being created"}, nil
		}

		if err := s.lifecycle.materialize(ctx, attempt, resp); err != nil {
			span.RecordError(err)
			return nil, err
		}

		if order, err = s.orders.GetByID(ctx, orderID); err != nil {
			return nil, err
		}
	}

	order, _, err = s.lifecycle.reconcile(ctx, order, resp)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := &domain.StatusResult{
		Success:     true,
		Paid:        order.Status.IsPaid(),
		Status:      statusNotFound,
		OrderStatus: order.Status,
	}

	if resp != nil {
		result.Status = resp.TransactionStatus
	}

	switch {
	case result.Paid:
		result.Message = "payment received"
	case order.Status == domain.OrderStatusExpired:
		result.Message = "payment window has expired"
	case order.Status == domain.OrderStatusPending:
		result.Message = "waiting for payment"
	}

	span.SetAttributes(
		attribute.String("gateway_status", result.Status),
		attribute.String("order_status", string(order.Status)),
	)

	return result, nil
}

// HandleNotification applies a signed gateway webhook. Notifications for
// unknown orders are logged and dropped.
func (s *statusService) HandleNotification(ctx context.Context, n *midtrans.Notification) error {
	ctx, span := s.tracer.Start(ctx, "StatusService.HandleNotification")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", n.OrderID),
		attribute.String("transaction_status", n.TransactionStatus),
	)

	if err := s.gateway.VerifySignature(n); err != nil {
		mylogger.Warn(ctx, s.logger, "Rejected notification", zap.String("order_id", n.OrderID), zap.Error(err))
		return err
	}

	order, attempt, err := s.load(ctx, n.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			mylogger.Warn(ctx, s.logger, "Notification for unknown order", zap.String("order_id", n.OrderID))
			return nil
		}

		return err
	}

	resp := &n.TransactionResponse

	if order == nil {
		if err := s.lifecycle.materialize(ctx, attempt, resp); err != nil {
			span.RecordError(err)
			return err
		}

		if order, err = s.orders.GetByID(ctx, n.OrderID); err != nil {
			return err
		}
	}

	if gross, err := resp.Gross(); err != nil || gross != order.Total {
		mylogger.Warn(ctx, s.logger, "Notification gross amount differs from order total",
			zap.String("order_id", order.ID),
			zap.String("gross_amount", n.GrossAmount),
			zap.Int64("total", order.Total),
		)
	}

	if _, _, err := s.lifecycle.reconcile(ctx, order, resp); err != nil {
		span.RecordError(err)
		return fmt.Errorf("apply notification for %s: %w", n.OrderID, err)
	}

	return nil
}

// load returns the stored order, or when there is none yet, the attempt that
// will become it.
func (s *statusService) load(ctx context.Context, orderID string) (*domain.Order, *domain.PaymentAttempt, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err == nil {
		return order, nil, nil
	}

	if !errors.Is(err, repository.ErrOrderNotFound) {
		return nil, nil, err
	}

	attempt, err := s.attempts.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrAttemptNotFound) {
			return nil, nil, repository.ErrOrderNotFound
		}

		return nil, nil, err
	}

	return nil, attempt, nil
}
