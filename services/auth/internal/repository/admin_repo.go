package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/services/auth/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type AdminRepository interface {
	Create(ctx context.Context, admin *domain.Admin) error
	GetByEmail(ctx context.Context, email string) (*domain.Admin, error)
	GetByID(ctx context.Context, id int64) (*domain.Admin, error)
}

const adminColumns = `id, email, password_hash, created_at, updated_at`

type adminRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewAdminRepository(pool *pgxpool.Pool, logger *zap.Logger) AdminRepository {
	return &adminRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("auth/admin_repo"),
	}
}

func (r *adminRepo) Create(ctx context.Context, admin *domain.Admin) error {
	ctx, span := r.tracer.Start(ctx, "AdminRepository.Create")
	defer span.End()

	span.SetAttributes(attribute.String("admin.email", admin.Email))

	query := `
		INSERT INTO admins (email, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query, admin.Email, admin.PasswordHash).
		Scan(&admin.ID, &admin.CreatedAt, &admin.UpdatedAt)
	if err != nil {
		span.RecordError(err)

		var pgError *pgconn.PgError
		if errors.As(err, &pgError) && pgError.Code == "23505" {
			mylogger.Warn(ctx, r.logger, "Admin already exists", zap.String("email", admin.Email))
			return ErrAdminAlreadyExists
		}

		mylogger.Error(ctx, r.logger, "Failed to create admin", zap.String("email", admin.Email), zap.Error(err))

		return fmt.Errorf("error creating admin: %w", err)
	}

	return nil
}

func (r *adminRepo) GetByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	ctx, span := r.tracer.Start(ctx, "AdminRepository.GetByEmail")
	defer span.End()

	span.SetAttributes(attribute.String("email", email))

	query := `SELECT ` + adminColumns + ` FROM admins WHERE lower(email) = lower($1)`

	return r.get(ctx, span, query, email)
}

func (r *adminRepo) GetByID(ctx context.Context, id int64) (*domain.Admin, error) {
	ctx, span := r.tracer.Start(ctx, "AdminRepository.GetByID")
	defer span.End()

	span.SetAttributes(attribute.Int64("id", id))

	query := `SELECT ` + adminColumns + ` FROM admins WHERE id = $1`

	return r.get(ctx, span, query, id)
}

func (r *adminRepo) get(ctx context.Context, span trace.Span, query string, arg any) (*domain.Admin, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error querying admin: %w", err)
	}

	admin, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[domain.Admin])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdminNotFound
		}

		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to get admin", zap.Error(err))

		return nil, fmt.Errorf("error getting admin: %w", err)
	}

	return admin, nil
}
