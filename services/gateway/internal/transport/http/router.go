package http

import (
	"strings"

	"github.com/Arsyadam/bhawikarsu-store/pkg/config"
	"github.com/Arsyadam/bhawikarsu-store/services/gateway/internal/proxy"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// RegisterRoutes puts CORS in front of everything, checks admin tokens at
// the edge and forwards the rest to the owning service.
func RegisterRoutes(app *fiber.App, router *proxy.Router, cfg config.Gateway, admin fiber.Handler) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: strings.Join([]string{
			fiber.MethodGet,
			fiber.MethodPost,
			fiber.MethodPut,
			fiber.MethodPatch,
			fiber.MethodDelete,
		}, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
	}))

	app.Use("/api/admin", admin)

	app.All("/api/*", router.Forward)
	app.All("/auth/*", router.Forward)
}
