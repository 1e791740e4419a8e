package handler

import (
	"context"
	"errors"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/pkg/utils"
	"github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/domain"
	"github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/repository"
	"github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ProductHandler struct {
	service  service.ProductService
	validate *validator.Validate
	logger   *zap.Logger
	timeout  time.Duration
}

func NewProductHandler(service service.ProductService, timeout time.Duration, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
		timeout:  timeout,
	}
}

type CreateProductInput struct {
	Name           string              `json:"name" validate:"required,min=3,max=100"`
	Description    string              `json:"description" validate:"required,min=10,max=2000"`
	DetailMaterial string              `json:"detail_material" validate:"max=2000"`
	ShippingInfo   string              `json:"shipping_info" validate:"max=2000"`
	Price          int64               `json:"price" validate:"gte=0"`
	Discount       int                 `json:"discount" validate:"gte=0,lte=100"`
	Stock          int64               `json:"stock" validate:"gte=0"`
	Categories     []string            `json:"categories"`
	Images         []string            `json:"images" validate:"dive,url"`
	WeightGrams    int                 `json:"weight_grams" validate:"gte=0"`
	IsPreorder     bool                `json:"is_preorder"`
	Preorder       *domain.Preorder    `json:"preorder"`
	Variants       *domain.VariantSpec `json:"variants"`
}

func (in *CreateProductInput) toDomain() *domain.Product {
	return &domain.Product{
		Name:           in.Name,
		Description:    in.Description,
		DetailMaterial: in.DetailMaterial,
		ShippingInfo:   in.ShippingInfo,
		Price:          in.Price,
		Discount:       in.Discount,
		Stock:          in.Stock,
		Categories:     in.Categories,
		Images:         in.Images,
		WeightGrams:    in.WeightGrams,
		IsPreorder:     in.IsPreorder,
		Preorder:       in.Preorder,
		Variants:       in.Variants,
	}
}

type ProductResponse struct {
	*domain.Product
	CompareAtPrice int64                `json:"compare_at_price"`
	Combinations   []domain.Combination `json:"combinations"`
}

func newProductResponse(p *domain.Product) ProductResponse {
	combos := p.Variants.Combinations()
	if combos == nil {
		combos = []domain.Combination{}
	}

	return ProductResponse{
		Product:        p,
		CompareAtPrice: p.CompareAtPrice(),
		Combinations:   combos,
	}
}

func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	limit, offset := utils.Pagination(c)
	filter := domain.ListFilter{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Limit:    limit,
		Offset:   offset,
	}

	products, total, err := h.service.List(ctx, filter)
	if err != nil {
		mylogger.Warn(ctx, h.logger, "list products failed", zap.Error(err))
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, "internal error")
	}

	items := make([]ProductResponse, 0, len(products))
	for i := range products {
		items = append(items, newProductResponse(&products[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"items":       items,
		"total_count": total,
		"limit":       limit,
		"offset":      offset,
	})
}

func (h *ProductHandler) FindByID(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		mylogger.Warn(ctx, h.logger, "id is invalid", zap.String("id", c.Params("id")))
		return utils.ErrorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	product, err := h.service.FindByID(ctx, id)
	if err != nil {
		return h.fail(c, ctx, "find by id failed", err)
	}

	return c.Status(fiber.StatusOK).JSON(newProductResponse(product))
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	input := new(CreateProductInput)
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(ctx, h.logger, "failed to parse body in create", zap.Error(err))
		return utils.ErrorJSON(c, fiber.StatusBadRequest, "error parsing body")
	}

	if err := h.validate.Struct(input); err != nil {
		mylogger.Warn(ctx, h.logger, "failed to validate input", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": utils.FormatValidationError(err),
		})
	}

	product := input.toDomain()

	id, err := h.service.Create(ctx, product)
	if err != nil {
		return h.fail(c, ctx, "create product failed", err)
	}

	mylogger.Info(ctx, h.logger, "create product succeeded", zap.Int64("created_id", id))

	return c.Status(fiber.StatusCreated).JSON(newProductResponse(product))
}

func (h *ProductHandler) Update(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	input := new(domain.UpdateProductInput)
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(ctx, h.logger, "failed to parse body in update", zap.Error(err))
		return utils.ErrorJSON(c, fiber.StatusBadRequest, "error parsing body")
	}

	product, err := h.service.Update(ctx, id, input)
	if err != nil {
		return h.fail(c, ctx, "update product failed", err)
	}

	return c.Status(fiber.StatusOK).JSON(newProductResponse(product))
}

func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(ctx, id); err != nil {
		return h.fail(c, ctx, "delete product failed", err)
	}

	mylogger.Info(ctx, h.logger, "product deleted successfully", zap.Int64("product_id", id))

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

func (h *ProductHandler) fail(c *fiber.Ctx, ctx context.Context, msg string, err error) error {
	status := fiber.StatusInternalServerError
	text := "internal error"

	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		status, text = fiber.StatusNotFound, "product not found"
	case errors.Is(err, domain.ErrInvalidProduct), errors.Is(err, domain.ErrUnknownVariant):
		status, text = fiber.StatusBadRequest, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		status, text = fiber.StatusGatewayTimeout, "request timed out"
	}

	mylogger.Warn(ctx, h.logger, msg, zap.Int("http_status", status), zap.Error(err))

	return utils.ErrorJSON(c, status, text)
}
