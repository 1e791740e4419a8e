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

const idempotencyHeader = "Idempotency-Key"

type CheckoutHandler struct {
	service  service.CheckoutService
	validate *validator.Validate
	logger   *zap.Logger
	timeout  time.Duration
}

func NewCheckoutHandler(service service.CheckoutService, timeout time.Duration, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
		timeout:  timeout,
	}
}

func (h *CheckoutHandler) Quote(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	input := new(domain.QuoteRequest)
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(ctx, h.logger, "failed to parse body in quote", zap.Error(err))
		return utils.ErrorJSON(c, fiber.StatusBadRequest, "error parsing body")
	}

	if err := h.validate.Struct(input); err != nil {
		return validationFailed(c, ctx, h.logger, err)
	}

	quote, err := h.service.Quote(ctx, input)
	if err != nil {
		return fail(c, ctx, h.logger, "quote failed", err)
	}

	return c.Status(fiber.StatusOK).JSON(quote)
}

// Checkout answers 200 with the QR code, or 502 with a {success:false}
// result when the gateway would not create the charge.
func (h *CheckoutHandler) Checkout(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	input := new(domain.CheckoutRequest)
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(ctx, h.logger, "failed to parse body in checkout", zap.Error(err))
		return utils.ErrorJSON(c, fiber.StatusBadRequest, "error parsing body")
	}

	if err := h.validate.Struct(input); err != nil {
		return validationFailed(c, ctx, h.logger, err)
	}

	input.IdempotencyKey = strings.TrimSpace(c.Get(idempotencyHeader))
	if len(input.IdempotencyKey) > 100 {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, idempotencyHeader+" must be at most 100 characters")
	}

	result, err := h.service.Checkout(ctx, input)
	if err != nil {
		return fail(c, ctx, h.logger, "checkout failed", err)
	}

	if !result.Success {
		return c.Status(fiber.StatusBadGateway).JSON(result)
	}

	return c.Status(fiber.StatusOK).JSON(result)
}
