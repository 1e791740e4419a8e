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

type CategoryHandler struct {
	service  service.CategoryService
	validate *validator.Validate
	logger   *zap.Logger
	timeout  time.Duration
}

func NewCategoryHandler(service service.CategoryService, timeout time.Duration, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
		timeout:  timeout,
	}
}

func (h *CategoryHandler) List(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	categories, err := h.service.List(ctx)
	if err != nil {
		return h.fail(c, ctx, "list categories failed", err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"items": categories})
}

func (h *CategoryHandler) FindByID(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	category, err := h.service.FindByID(ctx, id)
	if err != nil {
		return h.fail(c, ctx, "find category failed", err)
	}

	return c.Status(fiber.StatusOK).JSON(category)
}

func (h *CategoryHandler) Create(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	category := new(domain.Category)
	if err := c.BodyParser(category); err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, "error parsing body")
	}

	if err := h.validate.Struct(category); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": utils.FormatValidationError(err),
		})
	}

	if err := h.service.Create(ctx, category); err != nil {
		return h.fail(c, ctx, "create category failed", err)
	}

	return c.Status(fiber.StatusCreated).JSON(category)
}

func (h *CategoryHandler) Update(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	category := new(domain.Category)
	if err := c.BodyParser(category); err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, "error parsing body")
	}

	if err := h.validate.Struct(category); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": utils.FormatValidationError(err),
		})
	}

	category.ID = id
	if err := h.service.Update(ctx, category); err != nil {
		return h.fail(c, ctx, "update category failed", err)
	}

	return c.Status(fiber.StatusOK).JSON(category)
}

func (h *CategoryHandler) Delete(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(ctx, id); err != nil {
		return h.fail(c, ctx, "delete category failed", err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

func (h *CategoryHandler) fail(c *fiber.Ctx, ctx context.Context, msg string, err error) error {
	status := fiber.StatusInternalServerError
	text := "internal error"

	switch {
	case errors.Is(err, repository.ErrCategoryNotFound):
		status, text = fiber.StatusNotFound, "category not found"
	case errors.Is(err, repository.ErrCategoryAlreadyExist):
		status, text = fiber.StatusConflict, "category already exists"
	}

	mylogger.Warn(ctx, h.logger, msg, zap.Int("http_status", status), zap.Error(err))

	return utils.ErrorJSON(c, status, text)
}
