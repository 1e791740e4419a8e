package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/pkg/outbox/utils"
	"github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/domain"
	"github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type ProductService interface {
	Create(ctx context.Context, product *domain.Product) (int64, error)
	Update(ctx context.Context, id int64, in *domain.UpdateProductInput) (*domain.Product, error)
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, filter domain.ListFilter) ([]domain.Product, int64, error)
	Delete(ctx context.Context, id int64) error
	ApplyPaidOrder(ctx context.Context, eventID int64, changes []domain.StockChange) error
	ReturnStock(ctx context.Context, eventID int64, changes []domain.StockChange) error
}

type productService struct {
	productRepo repository.ProductRepository
	pool        *pgxpool.Pool
	logger      *zap.Logger
}

func NewProductService(
	productRepo repository.ProductRepository,
	pool *pgxpool.Pool,
	logger *zap.Logger,
) ProductService {
	return &productService{
		productRepo: productRepo,
		pool:        pool,
		logger:      logger,
	}
}

func (s *productService) Create(ctx context.Context, product *domain.Product) (int64, error) {
	if err := product.Normalize(); err != nil {
		return 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Error starting transaction", zap.Error(err))
		return 0, err
	}
	defer s.rollback(ctx, tx, "Create")

	id, err := s.productRepo.Create(ctx, tx, product)
	if err != nil {
		return 0, fmt.Errorf("error creating product: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Error commiting transaction", zap.Error(err))
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	mylogger.Info(ctx, s.logger, "Product created", zap.Int64("product_id", id))

	return id, nil
}

func (s *productService) Update(ctx context.Context, id int64, in *domain.UpdateProductInput) (*domain.Product, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Error starting transaction", zap.Error(err))
		return nil, err
	}
	defer s.rollback(ctx, tx, "Update")

	product, err := s.productRepo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	in.Apply(product)

	if err := product.Normalize(); err != nil {
		return nil, err
	}

	// Update skips soft-deleted rows and reports them as not found.
	if err := s.productRepo.Update(ctx, tx, product); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Error commiting transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return product, nil
}

func (s *productService) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	res, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			mylogger.Warn(ctx, s.logger, "product not found", zap.Int64("product_id", id))
			return nil, err
		}

		mylogger.Error(ctx, s.logger, "error getting product", zap.Error(err))
		return nil, fmt.Errorf("error getting product by id: %w", err)
	}

	return res, nil
}

func (s *productService) List(ctx context.Context, filter domain.ListFilter) ([]domain.Product, int64, error) {
	list, total, err := s.productRepo.List(ctx, filter)
	if err != nil {
		mylogger.Error(ctx, s.logger, "list error", zap.Error(err))
		return nil, 0, fmt.Errorf("error listing products: %w", err)
	}

	return list, total, nil
}

func (s *productService) Delete(ctx context.Context, id int64) error {
	if err := s.productRepo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			mylogger.Warn(ctx, s.logger, "product not found", zap.Int64("product_id", id))
			return err
		}

		return err
	}

	return nil
}

// ApplyPaidOrder takes the stock of a paid order. The payment is already
// settled, so a shortfall is logged rather than rejected.
func (s *productService) ApplyPaidOrder(ctx context.Context, eventID int64, changes []domain.StockChange) error {
	return utils.ProcessWithDeduplication(ctx, s.pool, s.logger, eventID, func(ctx context.Context, tx pgx.Tx) error {
		return s.applyChanges(ctx, tx, changes, func(p *domain.Product, c domain.StockChange) {
			shortfall, err := p.DecreaseStock(c.VariantKey, c.Quantity)
			if err != nil {
				s.logUnknownVariant(ctx, p, c, err)
				return
			}

			if shortfall > 0 {
				mylogger.Warn(ctx, s.logger, "Oversold product",
					zap.Int64("product_id", p.ID),
					zap.String("variant_key", string(c.VariantKey)),
					zap.Int64("shortfall", shortfall),
				)
			}
		})
	})
}

func (s *productService) ReturnStock(ctx context.Context, eventID int64, changes []domain.StockChange) error {
	return utils.ProcessWithDeduplication(ctx, s.pool, s.logger, eventID, func(ctx context.Context, tx pgx.Tx) error {
		return s.applyChanges(ctx, tx, changes, func(p *domain.Product, c domain.StockChange) {
			if err := p.IncreaseStock(c.VariantKey, c.Quantity); err != nil {
				s.logUnknownVariant(ctx, p, c, err)
			}
		})
	})
}

// logUnknownVariant records a stock change for a variant the matrix no
// longer lists. The product is left as it is.
func (s *productService) logUnknownVariant(ctx context.Context, p *domain.Product, c domain.StockChange, err error) {
	mylogger.Warn(ctx, s.logger, "Stock change for unknown variant key",
		zap.Int64("product_id", p.ID),
		zap.String("variant_key", string(c.VariantKey)),
		zap.Int64("quantity", c.Quantity),
		zap.Error(err),
	)
}

func (s *productService) applyChanges(
	ctx context.Context,
	tx pgx.Tx,
	changes []domain.StockChange,
	apply func(p *domain.Product, c domain.StockChange),
) error {
	for _, change := range changes {
		product, err := s.productRepo.GetByIDForUpdate(ctx, tx, change.ProductID)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				mylogger.Warn(ctx, s.logger, "Stock change for unknown product", zap.Int64("product_id", change.ProductID))
				continue
			}

			return err
		}

		apply(product, change)

		if err := s.productRepo.SaveStock(ctx, tx, product); err != nil {
			return err
		}
	}

	return nil
}

func (s *productService) rollback(ctx context.Context, tx pgx.Tx, method string) {
	cleanupCtx := context.WithoutCancel(ctx)

	if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		mylogger.Warn(
			cleanupCtx,
			s.logger,
			"Error rolling back transaction",
			zap.Error(err),
			zap.String("method_name", method),
			zap.String("service", "product_service"),
		)
	}
}
