package http

import (
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/transport/http/handler"
	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Checkout *handler.CheckoutHandler
	Payment  *handler.PaymentHandler
	Shipping *handler.ShippingHandler
	Admin    *handler.AdminOrderHandler
}

// RegisterRoutes mounts the shopper routes behind public, the gateway webhook
// without limits, and the admin routes behind admin.
func RegisterRoutes(app *fiber.App, h *Handlers, public, admin fiber.Handler) {
	api := app.Group("/api")

	cart := api.Group("/cart", public)
	cart.Post("/quote", h.Checkout.Quote)

	api.Post("/checkout", public, h.Checkout.Checkout)

	payments := api.Group("/payments")
	payments.Post("/notifications", h.Payment.Notification)
	payments.Get("/:orderId/status", public, h.Payment.Status)

	shipping := api.Group("/shipping", public)
	shipping.Get("/provinces", h.Shipping.Provinces)
	shipping.Get("/cities", h.Shipping.Cities)
	shipping.Get("/districts", h.Shipping.Districts)
	shipping.Get("/areas", h.Shipping.SearchAreas)
	shipping.Post("/rates", h.Shipping.Rates)

	orders := api.Group("/admin/orders", admin)
	orders.Get("", h.Admin.List)
	orders.Get("/:id", h.Admin.Get)
	orders.Patch("/:id/status", h.Admin.UpdateStatus)
}
