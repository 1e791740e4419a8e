package utils

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sony/gobreaker"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

func ParseIDParam(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New(name + " is invalid")
	}

	return id, nil
}

// Pagination reads limit/offset query params, clamping limit to [1, 100].
func Pagination(c *fiber.Ctx) (int64, int64) {
	limit := int64(c.QueryInt("limit", defaultLimit))
	offset := int64(c.QueryInt("offset", 0))

	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

func ErrorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// IsUnavailable reports whether err came from an open or saturated breaker.
func IsUnavailable(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
