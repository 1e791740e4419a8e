package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/domain"
	"github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/repository"
	"go.uber.org/zap"
)

type CategoryService interface {
	Create(ctx context.Context, category *domain.Category) error
	FindByID(ctx context.Context, id int64) (*domain.Category, error)
	List(ctx context.Context) ([]domain.Category, error)
	Update(ctx context.Context, category *domain.Category) error
	Delete(ctx context.Context, id int64) error
}

type categoryService struct {
	repo   repository.CategoryRepository
	logger *zap.Logger
}

func NewCategoryService(repo repository.CategoryRepository, logger *zap.Logger) CategoryService {
	return &categoryService{repo: repo, logger: logger}
}

func (s *categoryService) Create(ctx context.Context, category *domain.Category) error {
	category.Name = strings.TrimSpace(category.Name)

	if err := s.repo.Create(ctx, category); err != nil {
		if errors.Is(err, repository.ErrCategoryAlreadyExist) {
			mylogger.Warn(ctx, s.logger, "Category already exists", zap.String("name", category.Name))
		}

		return err
	}

	return nil
}

func (s *categoryService) FindByID(ctx context.Context, id int64) (*domain.Category, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *categoryService) List(ctx context.Context) ([]domain.Category, error) {
	return s.repo.List(ctx)
}

func (s *categoryService) Update(ctx context.Context, category *domain.Category) error {
	category.Name = strings.TrimSpace(category.Name)
	return s.repo.Update(ctx, category)
}

func (s *categoryService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
