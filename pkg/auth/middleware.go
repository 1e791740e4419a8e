package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	LocalAdminID = "adminId"
	LocalEmail   = "adminEmail"
)

func NewAdminMiddleware(tm *TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: missed header"})
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: Invalid header format"})
		}

		claims, err := tm.ValidateAccess(parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: Invalid token"})
		}

		c.Locals(LocalAdminID, claims.AdminID)
		c.Locals(LocalEmail, claims.Email)
		return c.Next()
	}
}

func AdminID(c *fiber.Ctx) (int64, bool) {
	id, ok := c.Locals(LocalAdminID).(int64)
	return id, ok && id != 0
}
