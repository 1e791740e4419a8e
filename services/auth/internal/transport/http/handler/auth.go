package handler

import (
	"context"
	"errors"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/auth"
	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/pkg/utils"
	"github.com/Arsyadam/bhawikarsu-store/services/auth/internal/repository"
	"github.com/Arsyadam/bhawikarsu-store/services/auth/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuthHandler struct {
	auth     service.AuthService
	admins   service.AdminService
	validate *validator.Validate
	logger   *zap.Logger
	timeout  time.Duration
}

func NewAuthHandler(authService service.AuthService, admins service.AdminService, timeout time.Duration, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:     authService,
		admins:   admins,
		validate: validator.New(),
		logger:   logger,
		timeout:  timeout,
	}
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

type RefreshInput struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	input := new(LoginInput)
	if ok, err := h.parse(c, ctx, input); !ok {
		return err
	}

	tokens, err := h.auth.Login(ctx, input.Email, input.Password)
	if err != nil {
		return h.fail(c, ctx, "login failed", err)
	}

	return c.Status(fiber.StatusOK).JSON(tokens)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	input := new(RefreshInput)
	if ok, err := h.parse(c, ctx, input); !ok {
		return err
	}

	tokens, err := h.auth.Refresh(ctx, input.RefreshToken)
	if err != nil {
		return h.fail(c, ctx, "refresh failed", err)
	}

	return c.Status(fiber.StatusOK).JSON(tokens)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	input := new(RefreshInput)
	if ok, err := h.parse(c, ctx, input); !ok {
		return err
	}

	if err := h.auth.Logout(ctx, input.RefreshToken); err != nil {
		return h.fail(c, ctx, "logout failed", err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	adminID, ok := auth.AdminID(c)
	if !ok {
		return utils.ErrorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	admin, err := h.admins.Me(ctx, adminID)
	if err != nil {
		return h.fail(c, ctx, "me failed", err)
	}

	return c.Status(fiber.StatusOK).JSON(admin)
}

// parse reports false after it has written a 400 response.
func (h *AuthHandler) parse(c *fiber.Ctx, ctx context.Context, input any) (bool, error) {
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(ctx, h.logger, "failed to parse body", zap.Error(err))
		return false, utils.ErrorJSON(c, fiber.StatusBadRequest, "error parsing body")
	}

	if err := h.validate.Struct(input); err != nil {
		mylogger.Warn(ctx, h.logger, "failed to validate input", zap.Error(err))

		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": utils.FormatValidationError(err),
		})
	}

	return true, nil
}

func (h *AuthHandler) fail(c *fiber.Ctx, ctx context.Context, msg string, err error) error {
	status := fiber.StatusInternalServerError
	text := "internal error"

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		status, text = fiber.StatusUnauthorized, "invalid email or password"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, service.ErrInvalidSession),
		errors.Is(err, repository.ErrSessionNotFound):
		status, text = fiber.StatusUnauthorized, "invalid or expired session"
	case errors.Is(err, repository.ErrAdminNotFound):
		status, text = fiber.StatusNotFound, "admin not found"
	case errors.Is(err, context.DeadlineExceeded):
		status, text = fiber.StatusGatewayTimeout, "request timed out"
	}

	mylogger.Warn(ctx, h.logger, msg, zap.Int("http_status", status), zap.Error(err))

	return utils.ErrorJSON(c, status, text)
}
