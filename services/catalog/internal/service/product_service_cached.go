package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultCacheTTL = 10 * time.Minute
	categoriesKey   = "categories:all"
)

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

type cachedProductService struct {
	next        ProductService
	redisClient *redis.Client
	cacheTTL    time.Duration
	logger      *zap.Logger
}

func NewCachedProductService(next ProductService, redisClient *redis.Client, logger *zap.Logger) ProductService {
	return &cachedProductService{
		next:        next,
		redisClient: redisClient,
		cacheTTL:    defaultCacheTTL,
		logger:      logger,
	}
}

func (s *cachedProductService) Create(ctx context.Context, product *domain.Product) (int64, error) {
	return s.next.Create(ctx, product)
}

func (s *cachedProductService) Update(ctx context.Context, id int64, in *domain.UpdateProductInput) (*domain.Product, error) {
	product, err := s.next.Update(ctx, id, in)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, productKey(id))

	return product, nil
}

func (s *cachedProductService) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	key := productKey(id)

	val, err := s.redisClient.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var product domain.Product
		if err := json.Unmarshal(val, &product); err == nil {
			return &product, nil
		}

		mylogger.Warn(ctx, s.logger, "Dropping unreadable cache entry", zap.String("key", key))
		s.invalidate(ctx, key)
	case !errors.Is(err, redis.Nil):
		mylogger.Warn(ctx, s.logger, "Cache read failed", zap.String("key", key), zap.Error(err))
	}

	product, err := s.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(product); err == nil {
		if err := s.redisClient.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
			mylogger.Warn(ctx, s.logger, "Cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	return product, nil
}

func (s *cachedProductService) List(ctx context.Context, filter domain.ListFilter) ([]domain.Product, int64, error) {
	return s.next.List(ctx, filter)
}

func (s *cachedProductService) Delete(ctx context.Context, id int64) error {
	if err := s.next.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, productKey(id))

	return nil
}

func (s *cachedProductService) ApplyPaidOrder(ctx context.Context, eventID int64, changes []domain.StockChange) error {
	if err := s.next.ApplyPaidOrder(ctx, eventID, changes); err != nil {
		return err
	}

	s.invalidate(ctx, changedKeys(changes)...)

	return nil
}

func (s *cachedProductService) ReturnStock(ctx context.Context, eventID int64, changes []domain.StockChange) error {
	if err := s.next.ReturnStock(ctx, eventID, changes); err != nil {
		return err
	}

	s.invalidate(ctx, changedKeys(changes)...)

	return nil
}

func (s *cachedProductService) invalidate(ctx context.Context, keys ...string) {
	invalidate(ctx, s.redisClient, s.logger, keys...)
}

// invalidate drops cached keys after a write. The write already succeeded, so
// a cache failure is logged and the entries age out with their TTL.
func invalidate(ctx context.Context, redisClient *redis.Client, logger *zap.Logger, keys ...string) {
	if len(keys) == 0 {
		return
	}

	if err := redisClient.Del(ctx, keys...).Err(); err != nil {
		mylogger.Warn(ctx, logger, "Cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func changedKeys(changes []domain.StockChange) []string {
	keys := make([]string, 0, len(changes))
	for _, c := range changes {
		keys = append(keys, productKey(c.ProductID))
	}

	return keys
}

type cachedCategoryService struct {
	next        CategoryService
	redisClient *redis.Client
	cacheTTL    time.Duration
	logger      *zap.Logger
}

func NewCachedCategoryService(next CategoryService, redisClient *redis.Client, logger *zap.Logger) CategoryService {
	return &cachedCategoryService{
		next:        next,
		redisClient: redisClient,
		cacheTTL:    defaultCacheTTL,
		logger:      logger,
	}
}

func (s *cachedCategoryService) Create(ctx context.Context, category *domain.Category) error {
	if err := s.next.Create(ctx, category); err != nil {
		return err
	}

	invalidate(ctx, s.redisClient, s.logger, categoriesKey)

	return nil
}

func (s *cachedCategoryService) FindByID(ctx context.Context, id int64) (*domain.Category, error) {
	return s.next.FindByID(ctx, id)
}

func (s *cachedCategoryService) List(ctx context.Context) ([]domain.Category, error) {
	if val, err := s.redisClient.Get(ctx, categoriesKey).Bytes(); err == nil {
		var categories []domain.Category
		if err := json.Unmarshal(val, &categories); err == nil {
			return categories, nil
		}
	}

	categories, err := s.next.List(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(categories); err == nil {
		if err := s.redisClient.Set(ctx, categoriesKey, data, s.cacheTTL).Err(); err != nil {
			mylogger.Warn(ctx, s.logger, "Cache write failed", zap.String("key", categoriesKey), zap.Error(err))
		}
	}

	return categories, nil
}

func (s *cachedCategoryService) Update(ctx context.Context, category *domain.Category) error {
	if err := s.next.Update(ctx, category); err != nil {
		return err
	}

	invalidate(ctx, s.redisClient, s.logger, categoriesKey)

	return nil
}

func (s *cachedCategoryService) Delete(ctx context.Context, id int64) error {
	if err := s.next.Delete(ctx, id); err != nil {
		return err
	}

	invalidate(ctx, s.redisClient, s.logger, categoriesKey)

	return nil
}
