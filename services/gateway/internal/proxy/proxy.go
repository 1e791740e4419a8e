package proxy

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/config"
	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/pkg/utils"
	"github.com/gofiber/fiber/v2"
	fiberproxy "github.com/gofiber/fiber/v2/middleware/proxy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Route sends every path equal to Prefix or below it to Upstream.
type Route struct {
	Prefix   string
	Upstream string
}

// DefaultRoutes is the storefront API surface split across the services.
func DefaultRoutes(s config.Services) []Route {
	return []Route{
		{Prefix: "/api/products", Upstream: s.CatalogURL},
		{Prefix: "/api/categories", Upstream: s.CatalogURL},
		{Prefix: "/api/admin/products", Upstream: s.CatalogURL},
		{Prefix: "/api/admin/categories", Upstream: s.CatalogURL},
		{Prefix: "/api/cart", Upstream: s.OrderURL},
		{Prefix: "/api/checkout", Upstream: s.OrderURL},
		{Prefix: "/api/payments", Upstream: s.OrderURL},
		{Prefix: "/api/shipping", Upstream: s.OrderURL},
		{Prefix: "/api/admin/orders", Upstream: s.OrderURL},
		{Prefix: "/auth", Upstream: s.AuthURL},
	}
}

type Router struct {
	routes  []Route
	timeout time.Duration
	logger  *zap.Logger
	tracer  trace.Tracer
}

func NewRouter(routes []Route, timeout time.Duration, logger *zap.Logger) *Router {
	sorted := make([]Route, 0, len(routes))
	for _, r := range routes {
		sorted = append(sorted, Route{
			Prefix:   strings.TrimRight(r.Prefix, "/"),
			Upstream: strings.TrimRight(r.Upstream, "/"),
		})
	}

	// longest prefix wins
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})

	return &Router{
		routes:  sorted,
		timeout: timeout,
		logger:  logger,
		tracer:  otel.Tracer("gateway/proxy"),
	}
}

func (r *Router) Match(path string) (string, bool) {
	for _, route := range r.routes {
		if path == route.Prefix || strings.HasPrefix(path, route.Prefix+"/") {
			return route.Upstream, true
		}
	}

	return "", false
}

func (r *Router) Forward(c *fiber.Ctx) error {
	ctx, span := r.tracer.Start(c.UserContext(), "Router.Forward")
	defer span.End()

	upstream, ok := r.Match(c.Path())
	if !ok {
		return utils.ErrorJSON(c, fiber.StatusNotFound, "route not found")
	}

	span.SetAttributes(
		attribute.String("upstream", upstream),
		attribute.String("path", c.Path()),
	)

	c.Request().Header.Set(fiber.HeaderXForwardedFor, c.IP())
	injectTrace(ctx, c)

	if err := fiberproxy.DoTimeout(c, upstream+c.OriginalURL(), r.timeout); err != nil {
		span.RecordError(err)
		mylogger.Warn(ctx, r.logger, "Upstream request failed",
			zap.String("upstream", upstream),
			zap.String("path", c.Path()),
			zap.Error(err),
		)

		return utils.ErrorJSON(c, fiber.StatusBadGateway, "upstream unavailable")
	}

	c.Response().Header.Del(fiber.HeaderServer)

	return nil
}

func injectTrace(ctx context.Context, c *fiber.Ctx) {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	for k, v := range carrier {
		c.Request().Header.Set(k, v)
	}
}
