package httpserver

import (
	"github.com/Arsyadam/bhawikarsu-store/pkg/config"
	"github.com/Arsyadam/bhawikarsu-store/pkg/metrics"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// New builds a fiber app with tracing, request metrics, /health and /metrics.
func New(name string, registry *metrics.Registry) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               name,
		DisableStartupMessage: true,
	})

	app.Use(otelfiber.Middleware())
	app.Use(registry.Middleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString(name + " is alive!")
	})
	app.Get("/metrics", registry.Handler())

	return app
}

// Limiter caps requests per client IP.
func Limiter(cfg config.Limiter) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Window,
		KeyGenerator: ClientIP,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Try again later.",
			})
		},
	})
}

// ClientIP is the shopper address: the first X-Forwarded-For entry set by the
// edge gateway, or the peer address for direct calls.
func ClientIP(c *fiber.Ctx) string {
	if ips := c.IPs(); len(ips) > 0 {
		return ips[0]
	}

	return c.IP()
}
