package biteship

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/pkg/utils"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/domain"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool          `json:"success"`
	Error   string        `json:"error"`
	Code    int           `json:"code"`
	Areas   []domain.Area `json:"areas"`
	Pricing []domain.Rate `json:"pricing"`
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	tracer  trace.Tracer
	logger  *zap.Logger
}

func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb:     utils.NewBreaker("Biteship", logger),
		tracer: otel.Tracer("order/biteship"),
		logger: logger,
	}
}

func (c *Client) Provinces(ctx context.Context) ([]domain.Area, error) {
	return c.areas(ctx, domain.AreaProvince, "")
}

func (c *Client) Cities(ctx context.Context, provinceID string) ([]domain.Area, error) {
	return c.areas(ctx, domain.AreaCity, provinceID)
}

func (c *Client) Districts(ctx context.Context, cityID string) ([]domain.Area, error) {
	return c.areas(ctx, domain.AreaDistrict, cityID)
}

func (c *Client) areas(ctx context.Context, kind domain.AreaType, parentID string) ([]domain.Area, error) {
	ctx, span := c.tracer.Start(ctx, "Biteship.Areas")
	defer span.End()

	span.SetAttributes(
		attribute.String("type", string(kind)),
		attribute.String("parent_id", parentID),
	)

	q := url.Values{}
	q.Set("countries", "ID")
	q.Set("type", string(kind))
	if parentID != "" {
		q.Set("parent_id", parentID)
	}

	env, err := c.do(ctx, http.MethodGet, "/v1/maps/areas?"+q.Encode(), nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return nonNil(env.Areas), nil
}

// SearchAreas looks up destination areas by free text, e.g. a district name.
func (c *Client) SearchAreas(ctx context.Context, input string) ([]domain.Area, error) {
	ctx, span := c.tracer.Start(ctx, "Biteship.SearchAreas")
	defer span.End()

	q := url.Values{}
	q.Set("countries", "ID")
	q.Set("input", input)
	q.Set("type", "single")

	env, err := c.do(ctx, http.MethodGet, "/v1/maps/areas?"+q.Encode(), nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return nonNil(env.Areas), nil
}

func (c *Client) Rates(ctx context.Context, req domain.RatesRequest) ([]domain.Rate, error) {
	ctx, span := c.tracer.Start(ctx, "Biteship.Rates")
	defer span.End()

	span.SetAttributes(
		attribute.String("destination_area_id", req.DestinationAreaID),
		attribute.String("couriers", req.Couriers),
		attribute.Int("items", len(req.Items)),
	)

	env, err := c.do(ctx, http.MethodPost, "/v1/rates/couriers", req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if env.Pricing == nil {
		return []domain.Rate{}, nil
	}

	return env.Pricing, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*envelope, error) {
	env, err := utils.ExecuteWithBreaker(c.cb, func() (*envelope, error) {
		var body io.Reader
		if payload != nil {
			raw, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("marshal request: %w", err)
			}
			body = bytes.NewReader(raw)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		req.Header.Set("Authorization", c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		res, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("biteship %s: %w", path, err)
		}
		defer res.Body.Close()

		if res.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("biteship %s: http %d", path, res.StatusCode)
		}

		var out envelope
		if err := json.NewDecoder(io.LimitReader(res.Body, 4<<20)).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode biteship response (http %d): %w", res.StatusCode, err)
		}

		return &out, nil
	})
	if err != nil {
		return nil, err
	}

	if !env.Success {
		mylogger.Warn(ctx, c.logger, "Biteship request unsuccessful",
			zap.String("path", path),
			zap.String("error", env.Error),
			zap.Int("code", env.Code),
		)

		return nil, fmt.Errorf("%w: %s", domain.ErrShippingUnavailable, env.Error)
	}

	return env, nil
}

func nonNil(areas []domain.Area) []domain.Area {
	if areas == nil {
		return []domain.Area{}
	}

	return areas
}
