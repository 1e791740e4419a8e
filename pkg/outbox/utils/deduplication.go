package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	maxActionAttempts = 3
	retryDelay        = 500 * time.Millisecond
)

// ProcessWithDeduplication runs action at most once per eventID. The
// processed_events marker and whatever action writes through tx commit
// together; if action keeps failing nothing is committed and the event can be
// redelivered.
func ProcessWithDeduplication(
	ctx context.Context,
	pool *pgxpool.Pool,
	logger *zap.Logger,
	eventID int64,
	action func(ctx context.Context, tx pgx.Tx) error,
) error {
	span := trace.SpanFromContext(ctx)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin dedup transaction: %w", err)
	}

	defer func() {
		shutdownCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(shutdownCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Error(shutdownCtx, logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	_, err = tx.Exec(ctx, `INSERT INTO processed_events (event_id) VALUES ($1)`, eventID)
	if err != nil {
		var pgError *pgconn.PgError
		if errors.As(err, &pgError) && pgError.Code == "23505" {
			mylogger.Info(ctx, logger, "Event already processed, skipping", zap.Int64("event_id", eventID))
			return nil
		}

		span.RecordError(err)
		return fmt.Errorf("record processed event: %w", err)
	}

	for attempt := 1; ; attempt++ {
		// savepoint so a failed attempt does not poison the outer transaction
		sp, err := tx.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin savepoint: %w", err)
		}

		err = action(ctx, sp)
		if err == nil {
			if err := sp.Commit(ctx); err != nil {
				return fmt.Errorf("release savepoint: %w", err)
			}
			break
		}

		_ = sp.Rollback(ctx)

		if attempt >= maxActionAttempts {
			span.RecordError(err)
			mylogger.Error(ctx, logger, "Event action failed after retries",
				zap.Int64("event_id", eventID),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)

			return fmt.Errorf("process event %d: %w", eventID, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("commit processed event %d: %w", eventID, err)
	}

	return nil
}
