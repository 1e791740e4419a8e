package http

import (
	"github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/transport/http/handler"
	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Product  *handler.ProductHandler
	Category *handler.CategoryHandler
}

// RegisterRoutes mounts the storefront routes behind public and the admin
// routes behind admin.
func RegisterRoutes(app *fiber.App, h *Handlers, public, admin fiber.Handler) {
	api := app.Group("/api")

	products := api.Group("/products", public)
	products.Get("", h.Product.ListProducts)
	products.Get("/:id", h.Product.FindByID)

	categories := api.Group("/categories", public)
	categories.Get("", h.Category.List)
	categories.Get("/:id", h.Category.FindByID)

	adm := api.Group("/admin", admin)

	adminProducts := adm.Group("/products")
	adminProducts.Post("", h.Product.Create)
	adminProducts.Put("/:id", h.Product.Update)
	adminProducts.Delete("/:id", h.Product.Delete)

	adminCategories := adm.Group("/categories")
	adminCategories.Post("", h.Category.Create)
	adminCategories.Put("/:id", h.Category.Update)
	adminCategories.Delete("/:id", h.Category.Delete)
}
