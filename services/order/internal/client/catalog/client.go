package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/utils"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/domain"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Client reads products from the catalog service's public API.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	tracer  trace.Tracer
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb:     utils.NewBreaker("Catalog", logger),
		tracer: otel.Tracer("order/catalog"),
	}
}

// Products fetches each distinct id once. A missing product fails the whole
// lookup with domain.ErrProductNotFound.
func (c *Client) Products(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	ctx, span := c.tracer.Start(ctx, "Catalog.Products")
	defer span.End()

	span.SetAttributes(attribute.Int("count", len(ids)))

	out := make(map[int64]*domain.Product, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}

		p, err := c.product(ctx, id)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		out[id] = p
	}

	return out, nil
}

type notFoundError struct{ id int64 }

func (e notFoundError) Error() string { return fmt.Sprintf("product %d not found", e.id) }

func (c *Client) product(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := utils.ExecuteWithBreaker(c.cb, func() (*domain.Product, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/products/"+strconv.FormatInt(id, 10), nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		res, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("catalog get product %d: %w", id, err)
		}
		defer res.Body.Close()

		switch {
		case res.StatusCode == http.StatusNotFound:
			// a 404 is an answer, not an outage; keep it out of the breaker counts
			return nil, nil
		case res.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("catalog get product %d: http %d", id, res.StatusCode)
		}

		var p domain.Product
		if err := json.NewDecoder(io.LimitReader(res.Body, 4<<20)).Decode(&p); err != nil {
			return nil, fmt.Errorf("decode product %d: %w", id, err)
		}

		return &p, nil
	})
	if err != nil {
		return nil, err
	}

	if p == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProductNotFound, notFoundError{id})
	}

	return p, nil
}
