package service

import (
	"context"
	"strings"

	"github.com/Arsyadam/bhawikarsu-store/pkg/auth"
	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/services/auth/internal/domain"
	"github.com/Arsyadam/bhawikarsu-store/services/auth/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type AdminService interface {
	Create(ctx context.Context, email, password string) (*domain.Admin, error)
	Me(ctx context.Context, adminID int64) (*domain.Admin, error)
}

type adminService struct {
	admins repository.AdminRepository
	tracer trace.Tracer
	logger *zap.Logger
}

func NewAdminService(admins repository.AdminRepository, logger *zap.Logger) AdminService {
	return &adminService{
		admins: admins,
		tracer: otel.Tracer("auth/admin_service"),
		logger: logger,
	}
}

func (s *adminService) Create(ctx context.Context, email, password string) (*domain.Admin, error) {
	ctx, span := s.tracer.Start(ctx, "AdminService.Create")
	defer span.End()

	email = strings.TrimSpace(email)
	span.SetAttributes(attribute.String("email", email))

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	admin := &domain.Admin{Email: email, PasswordHash: hash}
	if err := s.admins.Create(ctx, admin); err != nil {
		span.RecordError(err)
		return nil, err
	}

	mylogger.Info(ctx, s.logger, "Admin created", zap.Int64("admin_id", admin.ID))

	return admin, nil
}

func (s *adminService) Me(ctx context.Context, adminID int64) (*domain.Admin, error) {
	ctx, span := s.tracer.Start(ctx, "AdminService.Me")
	defer span.End()

	span.SetAttributes(attribute.Int64("admin_id", adminID))

	return s.admins.GetByID(ctx, adminID)
}
