package handler

import (
	"context"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/pkg/utils"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/client/midtrans"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	service service.StatusService
	logger  *zap.Logger
	timeout time.Duration
}

func NewPaymentHandler(service service.StatusService, timeout time.Duration, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger,
		timeout: timeout,
	}
}

func (h *PaymentHandler) Status(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	orderID := c.Params("orderId")
	if orderID == "" || len(orderID) > 64 {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, "orderId is invalid")
	}

	result, err := h.service.CheckStatus(ctx, orderID)
	if err != nil {
		return fail(c, ctx, h.logger, "status check failed", err)
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// Notification receives gateway webhooks. Anything but a 2xx makes the
// gateway retry, so only bad signatures and local failures are refused.
func (h *PaymentHandler) Notification(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	n := new(midtrans.Notification)
	if err := c.BodyParser(n); err != nil {
		mylogger.Warn(ctx, h.logger, "failed to parse notification", zap.Error(err))
		return utils.ErrorJSON(c, fiber.StatusBadRequest, "error parsing body")
	}

	if n.OrderID == "" {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, "order_id is required")
	}

	if err := h.service.HandleNotification(ctx, n); err != nil {
		return fail(c, ctx, h.logger, "notification failed", err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}
