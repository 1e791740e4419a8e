package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ProductRepository interface {
	Create(ctx context.Context, tx pgx.Tx, product *domain.Product) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Product, error)
	List(ctx context.Context, filter domain.ListFilter) ([]domain.Product, int64, error)
	Update(ctx context.Context, tx pgx.Tx, product *domain.Product) error
	SaveStock(ctx context.Context, tx pgx.Tx, product *domain.Product) error
	DeleteByID(ctx context.Context, id int64) error
}

const productColumns = `id, name, description, detail_material, shipping_info, price, discount,
		stock, categories, images, weight_grams, is_preorder, preorder, variants,
		created_at, updated_at`

type productRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewProductRepository(pool *pgxpool.Pool, logger *zap.Logger) ProductRepository {
	return &productRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("catalog/product_repo"),
	}
}

func (r *productRepo) Create(ctx context.Context, tx pgx.Tx, product *domain.Product) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Create")
	defer span.End()

	span.SetAttributes(attribute.String("name", product.Name))

	query := `
		INSERT INTO products (name, description, detail_material, shipping_info, price, discount,
			stock, categories, images, weight_grams, is_preorder, preorder, variants)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRow(
		ctx,
		query,
		product.Name,
		product.Description,
		product.DetailMaterial,
		product.ShippingInfo,
		product.Price,
		product.Discount,
		product.Stock,
		nonNil(product.Categories),
		nonNil(product.Images),
		product.WeightGrams,
		product.IsPreorder,
		product.Preorder,
		product.Variants,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Error creating product", zap.Error(err))

		return 0, fmt.Errorf("error creating product: %w", err)
	}

	return product.ID, nil
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.GetByID")
	defer span.End()

	span.SetAttributes(attribute.Int64("id", id))

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND deleted_at IS NULL`

	product, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Error get by id", zap.Int64("id", id), zap.Error(err))

		return nil, fmt.Errorf("error getting product: %w", err)
	}

	return product, nil
}

func (r *productRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.GetByIDForUpdate")
	defer span.End()

	span.SetAttributes(attribute.Int64("id", id))

	// soft-deleted products still take stock changes from orders placed before the delete
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

	product, err := scanProduct(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)
		return nil, fmt.Errorf("error locking product %d: %w", id, err)
	}

	return product, nil
}

func (r *productRepo) List(ctx context.Context, filter domain.ListFilter) ([]domain.Product, int64, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.List")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("limit", filter.Limit),
		attribute.Int64("offset", filter.Offset),
		attribute.String("search", filter.Search),
		attribute.String("category", filter.Category),
	)

	baseQuery := `SELECT ` + productColumns + ` FROM products WHERE deleted_at IS NULL`
	countQuery := `SELECT COUNT(*) FROM products WHERE deleted_at IS NULL`

	var args []interface{}
	argID := 1

	if filter.Search != "" {
		clause := fmt.Sprintf(" AND name ILIKE $%d", argID)
		baseQuery += clause
		countQuery += clause

		args = append(args, "%"+filter.Search+"%")
		argID++
	}

	if filter.Category != "" {
		clause := fmt.Sprintf(" AND EXISTS (SELECT 1 FROM unnest(categories) c WHERE lower(c) = lower($%d))", argID)
		baseQuery += clause
		countQuery += clause

		args = append(args, filter.Category)
		argID++
	}

	var totalCount int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("error counting products: %w", err)
	}

	baseQuery += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, baseQuery, args...)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(
			ctx,
			r.logger,
			"Error getting products",
			zap.String("search", filter.Search),
			zap.Int64("limit", filter.Limit),
			zap.Int64("offset", filter.Offset),
			zap.Error(err),
		)

		return nil, 0, fmt.Errorf("error selecting products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, filter.Limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			span.RecordError(err)
			return nil, 0, fmt.Errorf("error scanning product: %w", err)
		}

		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}

	span.SetAttributes(attribute.Int64("total", totalCount))

	return products, totalCount, nil
}

func (r *productRepo) Update(ctx context.Context, tx pgx.Tx, product *domain.Product) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Update")
	defer span.End()

	span.SetAttributes(attribute.Int64("id", product.ID))

	query := `
		UPDATE products
		SET name = $2, description = $3, detail_material = $4, shipping_info = $5,
			price = $6, discount = $7, stock = $8, categories = $9, images = $10,
			weight_grams = $11, is_preorder = $12, preorder = $13, variants = $14,
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at
	`

	err := tx.QueryRow(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.DetailMaterial,
		product.ShippingInfo,
		product.Price,
		product.Discount,
		product.Stock,
		nonNil(product.Categories),
		nonNil(product.Images),
		product.WeightGrams,
		product.IsPreorder,
		product.Preorder,
		product.Variants,
	).Scan(&product.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}

		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to update product", zap.Int64("id", product.ID), zap.Error(err))

		return fmt.Errorf("error updating product: %w", err)
	}

	return nil
}

func (r *productRepo) SaveStock(ctx context.Context, tx pgx.Tx, product *domain.Product) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.SaveStock")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("id", product.ID),
		attribute.Int64("stock", product.Stock),
	)

	query := `
		UPDATE products
		SET stock = $2, variants = $3, updated_at = NOW()
		WHERE id = $1
	`

	commandTag, err := tx.Exec(ctx, query, product.ID, product.Stock, product.Variants)
	if err != nil {
		span.RecordError(err)
		mylogger.Warn(ctx, r.logger, "Failed to save stock", zap.Int64("product_id", product.ID), zap.Error(err))

		return fmt.Errorf("error saving stock for product %d: %w", product.ID, err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	return nil
}

func (r *productRepo) DeleteByID(ctx context.Context, id int64) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.DeleteByID")
	defer span.End()

	span.SetAttributes(attribute.Int64("id", id))

	query := `
		UPDATE products
		SET deleted_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	commandTag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Error deleting product by id", zap.Int64("id", id), zap.Error(err))

		return fmt.Errorf("error deleting product by id: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	return nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.DetailMaterial,
		&p.ShippingInfo,
		&p.Price,
		&p.Discount,
		&p.Stock,
		&p.Categories,
		&p.Images,
		&p.WeightGrams,
		&p.IsPreorder,
		&p.Preorder,
		&p.Variants,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}

	return values
}
