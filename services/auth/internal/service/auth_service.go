package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/auth"
	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/services/auth/internal/domain"
	"github.com/Arsyadam/bhawikarsu-store/services/auth/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (*domain.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Tokens, error)
	Logout(ctx context.Context, refreshToken string) error
}

type authService struct {
	pool     *pgxpool.Pool
	admins   repository.AdminRepository
	sessions repository.SessionRepository
	tokens   *auth.TokenManager
	tracer   trace.Tracer
	logger   *zap.Logger
	now      func() time.Time
}

func NewAuthService(
	pool *pgxpool.Pool,
	admins repository.AdminRepository,
	sessions repository.SessionRepository,
	tokens *auth.TokenManager,
	logger *zap.Logger,
) AuthService {
	return &authService{
		pool:     pool,
		admins:   admins,
		sessions: sessions,
		tokens:   tokens,
		tracer:   otel.Tracer("auth/auth_service"),
		logger:   logger,
		now:      time.Now,
	}
}

func (s *authService) Login(ctx context.Context, email, password string) (*domain.Tokens, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	admin, err := s.admins.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			mylogger.Warn(ctx, s.logger, "Login for unknown email", zap.String("email", email))
			return nil, ErrInvalidCredentials
		}

		return nil, err
	}

	if !auth.ComparePassword(admin.PasswordHash, password) {
		mylogger.Warn(ctx, s.logger, "Invalid credentials", zap.Int64("admin_id", admin.ID))
		return nil, ErrInvalidCredentials
	}

	span.SetAttributes(attribute.Int64("admin_id", admin.ID))

	var tokens *domain.Tokens
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		tokens, err = s.issue(ctx, tx, admin)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	mylogger.Info(ctx, s.logger, "Admin logged in", zap.Int64("admin_id", admin.ID))

	return tokens, nil
}

// Refresh rotates a refresh token: the presented session is revoked and a
// new pair is issued. A revoked or expired session is rejected.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*domain.Tokens, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Refresh")
	defer span.End()

	claims, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int64("admin_id", claims.AdminID))

	var tokens *domain.Tokens
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		session, err := s.sessions.GetForUpdate(ctx, tx, claims.ID)
		if err != nil {
			return err
		}

		if !session.Active(s.now()) {
			mylogger.Warn(ctx, s.logger, "Refresh with inactive session",
				zap.Int64("admin_id", session.AdminID),
				zap.Bool("revoked", session.RevokedAt != nil),
			)

			return ErrInvalidSession
		}

		if err := s.sessions.Revoke(ctx, tx, session.JTI); err != nil {
			return err
		}

		admin, err := s.admins.GetByID(ctx, session.AdminID)
		if err != nil {
			return err
		}

		tokens, err = s.issue(ctx, tx, admin)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return tokens, nil
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	ctx, span := s.tracer.Start(ctx, "AuthService.Logout")
	defer span.End()

	claims, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return err
	}

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		return s.sessions.Revoke(ctx, tx, claims.ID)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	mylogger.Info(ctx, s.logger, "Admin logged out", zap.Int64("admin_id", claims.AdminID))

	return nil
}

func (s *authService) issue(ctx context.Context, tx pgx.Tx, admin *domain.Admin) (*domain.Tokens, error) {
	pair, err := s.tokens.Generate(admin.ID, admin.Email)
	if err != nil {
		return nil, fmt.Errorf("error generating tokens: %w", err)
	}

	session := &domain.Session{
		JTI:       pair.RefreshID,
		AdminID:   admin.ID,
		ExpiresAt: pair.RefreshExpiresAt,
	}
	if err := s.sessions.Create(ctx, tx, session); err != nil {
		return nil, err
	}

	return &domain.Tokens{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.RefreshExpiresAt.Unix(),
	}, nil
}

func (s *authService) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(cleanupCtx, s.logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
