package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/client/midtrans"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/domain"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type AdminOrderService interface {
	List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int64, error)
	Get(ctx context.Context, id string) (*domain.Order, *domain.PaymentAttempt, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
}

type adminOrderService struct {
	lifecycle *Lifecycle
	gateway   Gateway
	orders    repository.OrderRepository
	attempts  repository.AttemptRepository
	tracer    trace.Tracer
	logger    *zap.Logger
}

func NewAdminOrderService(
	lifecycle *Lifecycle,
	gateway Gateway,
	orders repository.OrderRepository,
	attempts repository.AttemptRepository,
	logger *zap.Logger,
) AdminOrderService {
	return &adminOrderService{
		lifecycle: lifecycle,
		gateway:   gateway,
		orders:    orders,
		attempts:  attempts,
		tracer:    otel.Tracer("order/admin_service"),
		logger:    logger,
	}
}

func (s *adminOrderService) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int64, error) {
	ctx, span := s.tracer.Start(ctx, "AdminOrderService.List")
	defer span.End()

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownStatus, filter.Status)
	}

	return s.orders.List(ctx, filter)
}

// Get returns the order with its items and the payment attempt behind it, if
// one is still stored.
func (s *adminOrderService) Get(ctx context.Context, id string) (*domain.Order, *domain.PaymentAttempt, error) {
	ctx, span := s.tracer.Start(ctx, "AdminOrderService.Get")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", id))

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	attempt, err := s.attempts.GetByOrderID(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrAttemptNotFound) {
			return nil, nil, err
		}

		attempt = nil
	}

	return order, attempt, nil
}

// UpdateStatus lets an admin ship a paid order or cancel an unpaid one. A
// pending order is cancelled at the gateway first, so its QR code stops
// accepting payments.
func (s *adminOrderService) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "AdminOrderService.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", id),
		attribute.String("status", string(status)),
	)

	if status != domain.OrderStatusFulfilled && status != domain.OrderStatusCancelled {
		return nil, ErrStatusNotAllowed
	}

	change := statusChange{next: status, reason: "changed by admin"}

	if status == domain.OrderStatusCancelled {
		gatewayStatus, err := s.cancelAtGateway(ctx, id)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		change.gatewayStatus = gatewayStatus
	}

	order, _, err := s.lifecycle.apply(ctx, id, change)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return order, nil
}

// cancelAtGateway voids the charge of a pending order and returns the
// gateway status it ended in. When the gateway has already taken the payment,
// the payment is recorded and the cancel is refused with
// domain.ErrInvalidTransition.
func (s *adminOrderService) cancelAtGateway(ctx context.Context, id string) (string, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	if order.Status != domain.OrderStatusPending {
		return "", nil
	}

	resp, err := s.gateway.Cancel(ctx, id)
	if errors.Is(err, midtrans.ErrCancelRejected) {
		resp, err = s.gateway.Status(ctx, id)
	}

	if errors.Is(err, midtrans.ErrTransactionNotFound) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("failed to cancel %s at gateway: %w", id, err)
	}

	next, ok := domain.MapGatewayStatus(resp.TransactionStatus, resp.FraudStatus)
	if !ok || next != domain.OrderStatusCompleted {
		return resp.TransactionStatus, nil
	}

	mylogger.Warn(ctx, s.logger, "Refusing cancel of paid order",
		zap.String("order_id", id),
		zap.String("gateway_status", resp.TransactionStatus),
	)

	if _, _, err := s.lifecycle.reconcile(ctx, order, resp); err != nil {
		return "", err
	}

	return "", fmt.Errorf("%w: order %s was paid (%s)", domain.ErrInvalidTransition, id, resp.TransactionStatus)
}
