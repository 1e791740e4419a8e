package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const areaCacheTTL = 24 * time.Hour

// ShippingProvider is the courier aggregator as the order service uses it.
type ShippingProvider interface {
	Provinces(ctx context.Context) ([]domain.Area, error)
	Cities(ctx context.Context, provinceID string) ([]domain.Area, error)
	Districts(ctx context.Context, cityID string) ([]domain.Area, error)
	SearchAreas(ctx context.Context, input string) ([]domain.Area, error)
	Rates(ctx context.Context, req domain.RatesRequest) ([]domain.Rate, error)
}

type ShippingService interface {
	Provinces(ctx context.Context) ([]domain.Area, error)
	Cities(ctx context.Context, provinceID string) ([]domain.Area, error)
	Districts(ctx context.Context, cityID string) ([]domain.Area, error)
	SearchAreas(ctx context.Context, query string) ([]domain.Area, error)
	Rates(ctx context.Context, destinationAreaID string, lines []domain.QuoteLine) ([]domain.Rate, error)
	QuoteForCart(ctx context.Context, lines []domain.QuoteLine, req *domain.ShippingRequest) (*domain.ShippingChoice, error)
}

type shippingService struct {
	provider     ShippingProvider
	redisClient  *redis.Client
	originAreaID string
	couriers     string
	tracer       trace.Tracer
	logger       *zap.Logger
}

func NewShippingService(provider ShippingProvider, redisClient *redis.Client, originAreaID, couriers string, logger *zap.Logger) ShippingService {
	return &shippingService{
		provider:     provider,
		redisClient:  redisClient,
		originAreaID: originAreaID,
		couriers:     couriers,
		tracer:       otel.Tracer("order/shipping_service"),
		logger:       logger,
	}
}

func (s *shippingService) Provinces(ctx context.Context) ([]domain.Area, error) {
	return s.cachedAreas(ctx, "shipping:areas:province", s.provider.Provinces)
}

func (s *shippingService) Cities(ctx context.Context, provinceID string) ([]domain.Area, error) {
	return s.cachedAreas(ctx, "shipping:areas:city:"+provinceID, func(ctx context.Context) ([]domain.Area, error) {
		return s.provider.Cities(ctx, provinceID)
	})
}

func (s *shippingService) Districts(ctx context.Context, cityID string) ([]domain.Area, error) {
	return s.cachedAreas(ctx, "shipping:areas:district:"+cityID, func(ctx context.Context) ([]domain.Area, error) {
		return s.provider.Districts(ctx, cityID)
	})
}

func (s *shippingService) SearchAreas(ctx context.Context, query string) ([]domain.Area, error) {
	query = strings.Join(strings.Fields(query), " ")

	return s.cachedAreas(ctx, "shipping:areas:search:"+strings.ToLower(query), func(ctx context.Context) ([]domain.Area, error) {
		return s.provider.SearchAreas(ctx, query)
	})
}

func (s *shippingService) Rates(ctx context.Context, destinationAreaID string, lines []domain.QuoteLine) ([]domain.Rate, error) {
	ctx, span := s.tracer.Start(ctx, "ShippingService.Rates")
	defer span.End()

	span.SetAttributes(
		attribute.String("destination_area_id", destinationAreaID),
		attribute.Int("lines", len(lines)),
	)

	rates, err := s.provider.Rates(ctx, domain.RatesRequest{
		OriginAreaID:      s.originAreaID,
		DestinationAreaID: destinationAreaID,
		Couriers:          s.couriers,
		Items:             domain.RateItems(lines),
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return rates, nil
}

// QuoteForCart re-prices the courier service the shopper picked. The cost
// always comes from the provider, never from the client.
func (s *shippingService) QuoteForCart(ctx context.Context, lines []domain.QuoteLine, req *domain.ShippingRequest) (*domain.ShippingChoice, error) {
	rates, err := s.Rates(ctx, req.DestinationAreaID, lines)
	if err != nil {
		return nil, err
	}

	choice, ok := domain.Choose(rates, req.CourierCode, req.ServiceCode)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s to %s", domain.ErrShippingUnavailable, req.CourierCode, req.ServiceCode, req.DestinationAreaID)
	}

	return choice, nil
}

func (s *shippingService) cachedAreas(ctx context.Context, key string, load func(context.Context) ([]domain.Area, error)) ([]domain.Area, error) {
	val, err := s.redisClient.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var areas []domain.Area
		if err := json.Unmarshal(val, &areas); err == nil {
			return areas, nil
		}

		mylogger.Warn(ctx, s.logger, "Dropping unreadable cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		mylogger.Warn(ctx, s.logger, "Cache read failed", zap.String("key", key), zap.Error(err))
	}

	areas, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(areas); err == nil {
		if err := s.redisClient.Set(ctx, key, data, areaCacheTTL).Err(); err != nil {
			mylogger.Warn(ctx, s.logger, "Cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	return areas, nil
}
