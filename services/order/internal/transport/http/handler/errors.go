package handler

import (
	"context"
	"errors"

	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/pkg/utils"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/client/midtrans"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/domain"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/repository"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// fail maps service errors to a status and an {"error": ...} body. Messages
// of cart errors are meant for shoppers and are passed through.
func fail(c *fiber.Ctx, ctx context.Context, logger *zap.Logger, msg string, err error) error {
	status := fiber.StatusInternalServerError
	text := "internal error"

	switch {
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrInvalidDonation),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidVariant),
		errors.Is(err, service.ErrStatusNotAllowed),
		errors.Is(err, service.ErrUnknownStatus):
		status, text = fiber.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrProductNotFound):
		status, text = fiber.StatusNotFound, err.Error()
	case errors.Is(err, repository.ErrOrderNotFound):
		status, text = fiber.StatusNotFound, "order not found"
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidTransition):
		status, text = fiber.StatusConflict, err.Error()
	case errors.Is(err, service.ErrCheckoutInProgress):
		status, text = fiber.StatusConflict, "checkout already in progress"
	case errors.Is(err, domain.ErrShippingUnavailable):
		status, text = fiber.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, midtrans.ErrInvalidSignature):
		status, text = fiber.StatusForbidden, "invalid signature"
	case utils.IsUnavailable(err):
		status, text = fiber.StatusServiceUnavailable, "upstream service unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		status, text = fiber.StatusGatewayTimeout, "request timed out"
	}

	mylogger.Warn(ctx, logger, msg, zap.Int("http_status", status), zap.Error(err))

	return utils.ErrorJSON(c, status, text)
}

func validationFailed(c *fiber.Ctx, ctx context.Context, logger *zap.Logger, err error) error {
	mylogger.Warn(ctx, logger, "failed to validate input", zap.Error(err))

	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": utils.FormatValidationError(err),
	})
}
