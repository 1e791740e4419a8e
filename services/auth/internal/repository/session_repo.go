package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/services/auth/internal/domain"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// SessionRepository works inside the caller's transaction so a refresh can
// revoke the old session and store the new one atomically.
type SessionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, session *domain.Session) error
	GetForUpdate(ctx context.Context, tx pgx.Tx, jti string) (*domain.Session, error)
	Revoke(ctx context.Context, tx pgx.Tx, jti string) error
}

type sessionRepo struct {
	tracer trace.Tracer
	logger *zap.Logger
}

func NewSessionRepository(logger *zap.Logger) SessionRepository {
	return &sessionRepo{
		logger: logger,
		tracer: otel.Tracer("auth/session_repo"),
	}
}

func (r *sessionRepo) Create(ctx context.Context, tx pgx.Tx, session *domain.Session) error {
	ctx, span := r.tracer.Start(ctx, "SessionRepository.Create")
	defer span.End()

	span.SetAttributes(attribute.Int64("admin_id", session.AdminID))

	query := `
		INSERT INTO sessions (jti, admin_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`

	if err := tx.QueryRow(ctx, query, session.JTI, session.AdminID, session.ExpiresAt).Scan(&session.CreatedAt); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to save session", zap.Int64("admin_id", session.AdminID), zap.Error(err))

		return fmt.Errorf("error creating session: %w", err)
	}

	return nil
}

func (r *sessionRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, jti string) (*domain.Session, error) {
	ctx, span := r.tracer.Start(ctx, "SessionRepository.GetForUpdate")
	defer span.End()

	query := `
		SELECT jti::text AS jti, admin_id, expires_at, revoked_at, created_at
		FROM sessions
		WHERE jti = $1
		FOR UPDATE
	`

	rows, err := tx.Query(ctx, query, jti)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error querying session: %w", err)
	}

	session, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[domain.Session])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}

		span.RecordError(err)
		return nil, fmt.Errorf("error getting session: %w", err)
	}

	return session, nil
}

func (r *sessionRepo) Revoke(ctx context.Context, tx pgx.Tx, jti string) error {
	ctx, span := r.tracer.Start(ctx, "SessionRepository.Revoke")
	defer span.End()

	ct, err := tx.Exec(ctx, `UPDATE sessions SET revoked_at = NOW() WHERE jti = $1 AND revoked_at IS NULL`, jti)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to revoke session", zap.Error(err))

		return fmt.Errorf("error revoking session: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return ErrSessionNotFound
	}

	return nil
}
