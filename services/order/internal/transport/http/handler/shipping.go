package handler

import (
	"context"
	"strings"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/pkg/utils"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/domain"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ShippingHandler struct {
	shipping service.ShippingService
	checkout service.CheckoutService
	validate *validator.Validate
	logger   *zap.Logger
	timeout  time.Duration
}

func NewShippingHandler(shipping service.ShippingService, checkout service.CheckoutService, timeout time.Duration, logger *zap.Logger) *ShippingHandler {
	return &ShippingHandler{
		shipping: shipping,
		checkout: checkout,
		validate: validator.New(),
		logger:   logger,
		timeout:  timeout,
	}
}

type RatesInput struct {
	DestinationAreaID string                `json:"destination_area_id" validate:"required"`
	Items             []domain.CheckoutItem `json:"items" validate:"required,min=1,max=50,dive"`
}

func (h *ShippingHandler) Provinces(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	areas, err := h.shipping.Provinces(ctx)
	if err != nil {
		return fail(c, ctx, h.logger, "provinces failed", err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"areas": areas})
}

func (h *ShippingHandler) Cities(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	provinceID := strings.TrimSpace(c.Query("province_id"))
	if provinceID == "" {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, "province_id is required")
	}

	areas, err := h.shipping.Cities(ctx, provinceID)
	if err != nil {
		return fail(c, ctx, h.logger, "cities failed", err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"areas": areas})
}

func (h *ShippingHandler) Districts(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	cityID := strings.TrimSpace(c.Query("city_id"))
	if cityID == "" {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, "city_id is required")
	}

	areas, err := h.shipping.Districts(ctx, cityID)
	if err != nil {
		return fail(c, ctx, h.logger, "districts failed", err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"areas": areas})
}

func (h *ShippingHandler) SearchAreas(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	q := strings.TrimSpace(c.Query("q"))
	if len(q) < 3 {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, "q must be at least 3 characters")
	}

	areas, err := h.shipping.SearchAreas(ctx, q)
	if err != nil {
		return fail(c, ctx, h.logger, "area search failed", err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"areas": areas})
}

func (h *ShippingHandler) Rates(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	input := new(RatesInput)
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(ctx, h.logger, "failed to parse body in rates", zap.Error(err))
		return utils.ErrorJSON(c, fiber.StatusBadRequest, "error parsing body")
	}

	if err := h.validate.Struct(input); err != nil {
		return validationFailed(c, ctx, h.logger, err)
	}

	rates, err := h.checkout.ShippingRates(ctx, input.DestinationAreaID, input.Items)
	if err != nil {
		return fail(c, ctx, h.logger, "rates failed", err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"pricing": rates})
}
