package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/events"
	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	outboxDomain "github.com/Arsyadam/bhawikarsu-store/pkg/outbox/domain"
	"github.com/Arsyadam/bhawikarsu-store/pkg/outbox/worker"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/client/midtrans"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/domain"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	aggregateOrder = "order"

	// localExpiryGrace is how long past its expiry a pending order waits for
	// the gateway to report the outcome before it is expired locally.
	localExpiryGrace = time.Minute
)

// Gateway is the payment gateway as the order service uses it.
type Gateway interface {
	Charge(ctx context.Context, req midtrans.ChargeRequest) (*midtrans.ChargeResult, error)
	Status(ctx context.Context, orderID string) (*midtrans.TransactionResponse, error)
	Cancel(ctx context.Context, orderID string) (*midtrans.TransactionResponse, error)
	VerifySignature(n *midtrans.Notification) error
}

type statusChange struct {
	// next is empty when only the gateway fields are recorded
	next          domain.OrderStatus
	gatewayStatus string
	transactionID string
	reason        string
}

// Lifecycle owns every write to an existing order: status transitions with
// their outbox events, and materialising an order from a charged attempt.
type Lifecycle struct {
	pool     *pgxpool.Pool
	orders   repository.OrderRepository
	attempts repository.AttemptRepository
	outbox   worker.OutboxRepository
	metrics  *Metrics
	tracer   trace.Tracer
	logger   *zap.Logger
	now      func() time.Time
}

func NewLifecycle(
	pool *pgxpool.Pool,
	orders repository.OrderRepository,
	attempts repository.AttemptRepository,
	outbox worker.OutboxRepository,
	metrics *Metrics,
	logger *zap.Logger,
) *Lifecycle {
	return &Lifecycle{
		pool:     pool,
		orders:   orders,
		attempts: attempts,
		outbox:   outbox,
		metrics:  metrics,
		tracer:   otel.Tracer("order/lifecycle"),
		logger:   logger,
		now:      time.Now,
	}
}

// apply locks the order and applies change. Re-applying the current status
// writes nothing. An illegal transition returns domain.ErrInvalidTransition
// together with the unchanged order.
func (l *Lifecycle) apply(ctx context.Context, orderID string, change statusChange) (*domain.Order, bool, error) {
	ctx, span := l.tracer.Start(ctx, "Lifecycle.Apply")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", orderID),
		attribute.String("next", string(change.next)),
		attribute.String("gateway_status", change.gatewayStatus),
	)

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer l.rollback(ctx, tx)

	order, err := l.orders.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, false, err
	}

	from := order.Status
	now := l.now()

	changed := false
	if change.next != "" {
		changed, err = order.Transition(change.next, now)
		if err != nil {
			return order, false, err
		}
	}

	gatewayChanged := change.gatewayStatus != "" && change.gatewayStatus != order.GatewayStatus
	transactionChanged := change.transactionID != "" && change.transactionID != order.TransactionID

	if !changed && !gatewayChanged && !transactionChanged {
		return order, false, nil
	}

	if gatewayChanged {
		order.GatewayStatus = change.gatewayStatus
	}
	if transactionChanged {
		order.TransactionID = change.transactionID
	}

	if err := l.orders.UpdateStatus(ctx, tx, order); err != nil {
		span.RecordError(err)
		return nil, false, err
	}

	if changed {
		event, err := orderEvent(order, change.reason, now)
		if err != nil {
			span.RecordError(err)
			return nil, false, err
		}

		if event != nil {
			if err := l.outbox.Save(ctx, tx, event); err != nil {
				span.RecordError(err)
				mylogger.Error(ctx, l.logger, "Failed to save order event", zap.String("order_id", orderID), zap.Error(err))

				return nil, false, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if changed {
		l.metrics.transition(from, order.Status)

		mylogger.Info(ctx, l.logger, "Order status changed",
			zap.String("order_id", orderID),
			zap.String("from", string(from)),
			zap.String("to", string(order.Status)),
			zap.String("gateway_status", order.GatewayStatus),
		)
	}

	return order, changed, nil
}

// persist writes a charged order and marks its attempt charged in one
// transaction. created is false when the order already existed.
func (l *Lifecycle) persist(ctx context.Context, order *domain.Order) (created bool, err error) {
	ctx, span := l.tracer.Start(ctx, "Lifecycle.Persist")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", order.ID))

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer l.rollback(ctx, tx)

	created, err = l.orders.Create(ctx, tx, order)
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	err = l.attempts.MarkCharged(ctx, tx, order.ID, order.TransactionID, order.QRURL, order.ExpiresAt)
	if err != nil {
		if !errors.Is(err, repository.ErrAttemptNotPending) {
			span.RecordError(err)
			return false, err
		}

		mylogger.Warn(ctx, l.logger, "Attempt already failed, keeping gateway order", zap.String("order_id", order.ID))
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return created, nil
}

// materialize creates the order recorded in attempt's draft, using what the
// gateway knows about the transaction.
func (l *Lifecycle) materialize(ctx context.Context, attempt *domain.PaymentAttempt, resp *midtrans.TransactionResponse) error {
	if attempt.Draft == nil {
		return fmt.Errorf("attempt %s has no draft order", attempt.OrderID)
	}

	order := *attempt.Draft
	order.ID = attempt.OrderID
	order.Status = domain.OrderStatusPending
	order.PaidAt = nil
	order.TransactionID = resp.TransactionID
	order.GatewayStatus = ""
	order.QRURL = firstNonEmpty(attempt.QRURL, resp.QRURL(), order.QRURL)
	order.ExpiresAt = attempt.ExpiresAt

	if expiresAt, err := midtrans.ParseTime(resp.ExpiryTime); err == nil {
		order.ExpiresAt = expiresAt
	}

	created, err := l.persist(ctx, &order)
	if err != nil {
		return err
	}

	if created {
		mylogger.Warn(ctx, l.logger, "Materialised order from payment attempt",
			zap.String("order_id", order.ID),
			zap.String("transaction_id", order.TransactionID),
		)
	}

	return nil
}

// reconcile applies a gateway answer to a stored order. resp is nil when the
// gateway does not know the transaction.
func (l *Lifecycle) reconcile(ctx context.Context, order *domain.Order, resp *midtrans.TransactionResponse) (*domain.Order, bool, error) {
	change := l.changeFor(order, resp)

	updated, changed, err := l.apply(ctx, order.ID, change)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			mylogger.Warn(ctx, l.logger, "Ignoring gateway status",
				zap.String("order_id", order.ID),
				zap.String("gateway_status", change.gatewayStatus),
				zap.Error(err),
			)

			return updated, false, nil
		}

		return nil, false, err
	}

	return updated, changed, nil
}

// changeFor decides what a gateway answer means for order. A pending order
// more than localExpiryGrace past its expiry that the gateway reports
// pending, or does not know, is expired locally.
func (l *Lifecycle) changeFor(order *domain.Order, resp *midtrans.TransactionResponse) statusChange {
	var change statusChange

	if resp != nil {
		change.gatewayStatus = resp.TransactionStatus
		change.transactionID = resp.TransactionID

		if next, ok := domain.MapGatewayStatus(resp.TransactionStatus, resp.FraudStatus); ok {
			change.next = next
			change.reason = "gateway status " + resp.TransactionStatus
			return change
		}
	}

	gatewayPending := resp == nil || strings.EqualFold(resp.TransactionStatus, domain.GatewayPending)
	if order.Status == domain.OrderStatusPending && order.Expired(l.now().Add(-localExpiryGrace)) && gatewayPending {
		change.next = domain.OrderStatusExpired
		change.reason = "payment window elapsed"
	}

	return change
}

func (l *Lifecycle) rollback(ctx context.Context, tx pgx.Tx) {
	shutdownCtx := context.WithoutCancel(ctx)

	if err := tx.Rollback(shutdownCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		mylogger.Error(shutdownCtx, l.logger, "Failed to rollback transaction", zap.Error(err))
	}
}

// orderEvent is the outbox event for entering order.Status, or nil when the
// status has no subscribers.
func orderEvent(order *domain.Order, reason string, at time.Time) (*outboxDomain.OutboxEvent, error) {
	var (
		eventType string
		payload   any
	)

	switch order.Status {
	case domain.OrderStatusCompleted:
		paidAt := at
		if order.PaidAt != nil {
			paidAt = *order.PaidAt
		}

		eventType = events.OrderPaid
		payload = events.OrderPaidEvent{
			OrderID:  order.ID,
			Items:    eventLines(order.Items),
			Donation: order.Donation,
			Shipping: order.ShippingCost,
			Total:    order.Total,
			Customer: eventCustomer(order.Customer),
			PaidAt:   paidAt,
		}
	case domain.OrderStatusExpired:
		eventType = events.OrderExpired
		payload = events.OrderExpiredEvent{
			OrderID:   order.ID,
			Total:     order.Total,
			Customer:  eventCustomer(order.Customer),
			ExpiredAt: at,
		}
	case domain.OrderStatusCancelled:
		eventType = events.OrderCancelled
		payload = events.OrderCancelledEvent{
			OrderID:     order.ID,
			Items:       eventLines(order.Items),
			Reason:      reason,
			CancelledAt: at,
		}
	case domain.OrderStatusRefunded:
		eventType = events.OrderRefunded
		payload = events.OrderRefundedEvent{
			OrderID:    order.ID,
			Items:      eventLines(order.Items),
			RefundedAt: at,
		}
	default:
		return nil, nil
	}

	return outboxDomain.NewEvent(aggregateOrder, order.ID, eventType, events.TopicOrderEvents, payload)
}

func eventLines(items []domain.OrderItem) []events.OrderLine {
	lines := make([]events.OrderLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, events.OrderLine{
			ProductID:  it.ProductID,
			VariantKey: it.VariantKey,
			Name:       it.Name,
			Price:      it.Price,
			Quantity:   it.Quantity,
		})
	}

	return lines
}

func eventCustomer(c domain.Customer) events.Customer {
	return events.Customer{
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Phone:     c.Phone,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
