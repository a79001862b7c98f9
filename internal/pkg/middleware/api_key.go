package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/env"
)

// InternalKeyAuthMiddleware guards operator endpoints with the shared key
// from INTERNAL_API_KEY, passed by callers in the X-Internal-Key header.
func InternalKeyAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		secret := strings.TrimSpace(env.GetEnv("INTERNAL_API_KEY", ""))
		if secret == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Internal endpoints are not configured", "code": "CONFIG_ERROR"})
		}

		key := strings.TrimSpace(c.Get("X-Internal-Key"))
		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(secret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing or invalid internal key", "code": "UNAUTHORIZED"})
		}

		return c.Next()
	}
}
