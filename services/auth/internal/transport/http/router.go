package http

import (
	"github.com/Arsyadam/bhawikarsu-store/services/auth/internal/transport/http/handler"
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts login, refresh and logout behind public and /me
// behind admin.
func RegisterRoutes(app *fiber.App, h *handler.AuthHandler, public, admin fiber.Handler) {
	group := app.Group("/auth")

	group.Post("/login", public, h.Login)
	group.Post("/refresh", public, h.Refresh)
	group.Post("/logout", public, h.Logout)
	group.Get("/me", admin, h.Me)
}
