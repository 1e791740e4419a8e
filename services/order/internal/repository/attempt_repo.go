package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// AttemptRepository stores charge attempts. An attempt is written before the
// gateway is called, so a charge whose order insert failed can still be found.
type AttemptRepository interface {
	Create(ctx context.Context, attempt *domain.PaymentAttempt) error
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.PaymentAttempt, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.PaymentAttempt, error)
	MarkCharged(ctx context.Context, tx pgx.Tx, orderID, transactionID, qrURL string, expiresAt time.Time) error
	MarkFailed(ctx context.Context, orderID, reason string) error
	ListInitiatedBefore(ctx context.Context, before time.Time, limit int) ([]domain.PaymentAttempt, error)
}

const attemptColumns = `order_id, idempotency_key, status, draft, transaction_id, qr_url,
		expires_at, error, created_at, updated_at`

type attemptRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewAttemptRepository(pool *pgxpool.Pool, logger *zap.Logger) AttemptRepository {
	return &attemptRepo{
		pool:   pool,
		tracer: otel.Tracer("order/attempt_repo"),
		logger: logger,
	}
}

func (r *attemptRepo) Create(ctx context.Context, a *domain.PaymentAttempt) error {
	ctx, span := r.tracer.Start(ctx, "AttemptRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", a.OrderID),
		attribute.String("idempotency_key", a.IdempotencyKey),
	)

	query := `
		INSERT INTO payment_attempts (order_id, idempotency_key, status, draft, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query, a.OrderID, a.IdempotencyKey, a.Status, a.Draft, a.ExpiresAt).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateAttempt
		}

		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Error creating payment attempt", zap.String("order_id", a.OrderID), zap.Error(err))

		return fmt.Errorf("error creating payment attempt: %w", err)
	}

	return nil
}

// GetByIdempotencyKey returns the live (initiated or charged) attempt for key.
func (r *attemptRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.PaymentAttempt, error) {
	ctx, span := r.tracer.Start(ctx, "AttemptRepository.GetByIdempotencyKey")
	defer span.End()

	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE idempotency_key = $1 AND status <> 'failed'`

	a, err := scanAttempt(r.pool.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}

		span.RecordError(err)
		return nil, fmt.Errorf("error getting attempt by key: %w", err)
	}

	return a, nil
}

func (r *attemptRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.PaymentAttempt, error) {
	ctx, span := r.tracer.Start(ctx, "AttemptRepository.GetByOrderID")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", orderID))

	a, err := scanAttempt(r.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM payment_attempts WHERE order_id = $1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}

		span.RecordError(err)
		return nil, fmt.Errorf("error getting attempt %s: %w", orderID, err)
	}

	return a, nil
}

func (r *attemptRepo) MarkCharged(ctx context.Context, tx pgx.Tx, orderID, transactionID, qrURL string, expiresAt time.Time) error {
	ctx, span := r.tracer.Start(ctx, "AttemptRepository.MarkCharged")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", orderID),
		attribute.String("transaction_id", transactionID),
	)

	commandTag, err := tx.Exec(ctx, `
		UPDATE payment_attempts
		SET status = 'charged', transaction_id = $2, qr_url = $3, expires_at = $4, error = '', updated_at = NOW()
		WHERE order_id = $1 AND status <> 'failed'
	`, orderID, transactionID, qrURL, expiresAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("error marking attempt %s charged: %w", orderID, err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrAttemptNotPending
	}

	return nil
}

func (r *attemptRepo) MarkFailed(ctx context.Context, orderID, reason string) error {
	ctx, span := r.tracer.Start(ctx, "AttemptRepository.MarkFailed")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", orderID))

	commandTag, err := r.pool.Exec(ctx, `
		UPDATE payment_attempts
		SET status = 'failed', error = $2, updated_at = NOW()
		WHERE order_id = $1 AND status = 'initiated'
	`, orderID, reason)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to mark attempt failed", zap.String("order_id", orderID), zap.Error(err))

		return fmt.Errorf("error marking attempt %s failed: %w", orderID, err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrAttemptNotPending
	}

	return nil
}

func (r *attemptRepo) ListInitiatedBefore(ctx context.Context, before time.Time, limit int) ([]domain.PaymentAttempt, error) {
	ctx, span := r.tracer.Start(ctx, "AttemptRepository.ListInitiatedBefore")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
		SELECT `+attemptColumns+` FROM payment_attempts
		WHERE status = 'initiated' AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`, before, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error selecting initiated attempts: %w", err)
	}

	attempts, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.PaymentAttempt])
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error scanning initiated attempts: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(attempts)))

	return attempts, nil
}

func scanAttempt(row pgx.Row) (*domain.PaymentAttempt, error) {
	var a domain.PaymentAttempt

	err := row.Scan(
		&a.OrderID,
		&a.IdempotencyKey,
		&a.Status,
		&a.Draft,
		&a.TransactionID,
		&a.QRURL,
		&a.ExpiresAt,
		&a.Error,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &a, nil
}
