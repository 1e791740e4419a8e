package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OrderRepository interface {
	// Create inserts the order and its items. created is false when an order
	// with the same id already exists; nothing is written then.
	Create(ctx context.Context, tx pgx.Tx, order *domain.Order) (created bool, err error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int64, error)
	ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]string, error)
}

const orderColumns = `id, transaction_id, customer, shipping_address, items_total, donation,
		shipping_courier, shipping_cost, total, status, gateway_status, qr_url,
		expires_at, paid_at, created_at, updated_at`

type orderRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewOrderRepository(pool *pgxpool.Pool, logger *zap.Logger) OrderRepository {
	return &orderRepo{
		pool:   pool,
		tracer: otel.Tracer("order/order_repo"),
		logger: logger,
	}
}

func (r *orderRepo) Create(ctx context.Context, tx pgx.Tx, order *domain.Order) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", order.ID),
		attribute.Int64("total", order.Total),
	)

	query := `
		INSERT INTO orders (id, transaction_id, customer, shipping_address, items_total, donation,
			shipping_courier, shipping_cost, total, status, gateway_status, qr_url, expires_at, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at, updated_at
	`

	err := tx.QueryRow(
		ctx,
		query,
		order.ID,
		order.TransactionID,
		order.Customer,
		order.ShippingAddress,
		order.ItemsTotal,
		order.Donation,
		order.ShippingCourier,
		order.ShippingCost,
		order.Total,
		order.Status,
		order.GatewayStatus,
		order.QRURL,
		order.ExpiresAt,
		order.PaidAt,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}

		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Error creating order", zap.String("order_id", order.ID), zap.Error(err))

		return false, fmt.Errorf("error creating order: %w", err)
	}

	rows := make([][]any, 0, len(order.Items))
	for _, item := range order.Items {
		rows = append(rows, []any{order.ID, item.ProductID, item.VariantKey, item.Name, item.Label, item.Price, item.Quantity})
	}

	_, err = tx.CopyFrom(
		ctx,
		pgx.Identifier{"order_items"},
		[]string{"order_id", "product_id", "variant_key", "name", "label", "price", "quantity"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Error inserting order items", zap.String("order_id", order.ID), zap.Error(err))

		return false, fmt.Errorf("error inserting order items: %w", err)
	}

	return true, nil
}

func (r *orderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByID")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", id))

	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		span.RecordError(err)
		return nil, fmt.Errorf("error getting order %s: %w", id, err)
	}

	order.Items, err = r.items(ctx, r.pool, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return order, nil
}

func (r *orderRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByIDForUpdate")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", id))

	order, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		span.RecordError(err)
		return nil, fmt.Errorf("error locking order %s: %w", id, err)
	}

	order.Items, err = r.items(ctx, tx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return order, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *orderRepo) items(ctx context.Context, q querier, orderID string) ([]domain.OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, variant_key, name, label, price, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		mylogger.Error(ctx, r.logger, "Failed to query order_items", zap.String("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("error selecting items of %s: %w", orderID, err)
	}

	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.OrderItem])
	if err != nil {
		return nil, fmt.Errorf("error scanning items of %s: %w", orderID, err)
	}

	return items, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", order.ID),
		attribute.String("status", string(order.Status)),
		attribute.String("gateway_status", order.GatewayStatus),
	)

	query := `
		UPDATE orders
		SET status = $2, gateway_status = $3, transaction_id = $4, paid_at = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := tx.QueryRow(ctx, query, order.ID, order.Status, order.GatewayStatus, order.TransactionID, order.PaidAt).
		Scan(&order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}

		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to update order status", zap.String("order_id", order.ID), zap.Error(err))

		return fmt.Errorf("error updating order status: %w", err)
	}

	return nil
}

func (r *orderRepo) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int64, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	span.SetAttributes(
		attribute.String("status", string(filter.Status)),
		attribute.Int64("limit", filter.Limit),
		attribute.Int64("offset", filter.Offset),
	)

	baseQuery := `SELECT ` + orderColumns + ` FROM orders`
	countQuery := `SELECT COUNT(*) FROM orders`

	var args []any
	if filter.Status != "" {
		baseQuery += ` WHERE status = $1`
		countQuery += ` WHERE status = $1`
		args = append(args, filter.Status)
	}

	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("error counting orders: %w", err)
	}

	baseQuery += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, baseQuery, args...)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Error listing orders", zap.Error(err))

		return nil, 0, fmt.Errorf("error selecting orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, filter.Limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			span.RecordError(err)
			return nil, 0, fmt.Errorf("error scanning order: %w", err)
		}

		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, total, nil
}

// ListPendingBefore returns ids of pending orders created before the cutoff,
// oldest first.
func (r *orderRepo) ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ListPendingBefore")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
		SELECT id FROM orders
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`, before, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error selecting pending orders: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error scanning pending orders: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(ids)))

	return ids, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order

	err := row.Scan(
		&o.ID,
		&o.TransactionID,
		&o.Customer,
		&o.ShippingAddress,
		&o.ItemsTotal,
		&o.Donation,
		&o.ShippingCourier,
		&o.ShippingCost,
		&o.Total,
		&o.Status,
		&o.GatewayStatus,
		&o.QRURL,
		&o.ExpiresAt,
		&o.PaidAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &o, nil
}
