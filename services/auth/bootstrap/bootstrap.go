// Package bootstrap creates admin accounts from outside the auth service.
package bootstrap

import (
	"context"

	"github.com/Arsyadam/bhawikarsu-store/services/auth/internal/repository"
	"github.com/Arsyadam/bhawikarsu-store/services/auth/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var ErrAdminAlreadyExists = repository.ErrAdminAlreadyExists

// CreateAdmin applies the password policy and stores a new admin. It returns
// the new admin id.
func CreateAdmin(ctx context.Context, pool *pgxpool.Pool, email, password string, logger *zap.Logger) (int64, error) {
	svc := service.NewAdminService(repository.NewAdminRepository(pool, logger), logger)

	admin, err := svc.Create(ctx, email, password)
	if err != nil {
		return 0, err
	}

	return admin.ID, nil
}
