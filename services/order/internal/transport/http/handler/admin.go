package handler

import (
	"context"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/auth"
	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/pkg/utils"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/domain"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AdminOrderHandler struct {
	service  service.AdminOrderService
	validate *validator.Validate
	logger   *zap.Logger
	timeout  time.Duration
}

func NewAdminOrderHandler(service service.AdminOrderService, timeout time.Duration, logger *zap.Logger) *AdminOrderHandler {
	return &AdminOrderHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
		timeout:  timeout,
	}
}

type OrderRow struct {
	ID        string             `json:"id"`
	Customer  string             `json:"customer"`
	Email     string             `json:"email"`
	CreatedAt time.Time          `json:"created_at"`
	Total     int64              `json:"total"`
	Status    domain.OrderStatus `json:"status"`
}

type PaymentInfo struct {
	AttemptStatus  domain.AttemptStatus `json:"attempt_status"`
	TransactionID  string               `json:"transaction_id,omitempty"`
	GatewayStatus  string               `json:"gateway_status,omitempty"`
	QRURL          string               `json:"qr_url,omitempty"`
	ExpiresAt      time.Time            `json:"expires_at"`
	Error          string               `json:"error,omitempty"`
	IdempotencyKey string               `json:"idempotency_key"`
}

type UpdateStatusInput struct {
	Status domain.OrderStatus `json:"status" validate:"required,oneof=fulfilled cancelled"`
}

func (h *AdminOrderHandler) List(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	limit, offset := utils.Pagination(c)
	filter := domain.OrderFilter{
		Status: domain.OrderStatus(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	}

	orders, total, err := h.service.List(ctx, filter)
	if err != nil {
		return fail(c, ctx, h.logger, "list orders failed", err)
	}

	rows := make([]OrderRow, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, OrderRow{
			ID:        o.ID,
			Customer:  o.Customer.FullName(),
			Email:     o.Customer.Email,
			CreatedAt: o.CreatedAt,
			Total:     o.Total,
			Status:    o.Status,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"items":       rows,
		"total_count": total,
		"limit":       limit,
		"offset":      offset,
	})
}

func (h *AdminOrderHandler) Get(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	order, attempt, err := h.service.Get(ctx, c.Params("id"))
	if err != nil {
		return fail(c, ctx, h.logger, "get order failed", err)
	}

	var payment *PaymentInfo
	if attempt != nil {
		payment = &PaymentInfo{
			AttemptStatus:  attempt.Status,
			TransactionID:  order.TransactionID,
			GatewayStatus:  order.GatewayStatus,
			QRURL:          order.QRURL,
			ExpiresAt:      order.ExpiresAt,
			Error:          attempt.Error,
			IdempotencyKey: attempt.IdempotencyKey,
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"order":   order,
		"payment": payment,
	})
}

func (h *AdminOrderHandler) UpdateStatus(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	input := new(UpdateStatusInput)
	if err := c.BodyParser(input); err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, "error parsing body")
	}

	if err := h.validate.Struct(input); err != nil {
		return validationFailed(c, ctx, h.logger, err)
	}

	order, err := h.service.UpdateStatus(ctx, c.Params("id"), input.Status)
	if err != nil {
		return fail(c, ctx, h.logger, "update order status failed", err)
	}

	adminID, _ := auth.AdminID(c)

	mylogger.Info(ctx, h.logger, "order status updated by admin",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
		zap.Int64("admin_id", adminID),
	)

	return c.Status(fiber.StatusOK).JSON(order)
}
