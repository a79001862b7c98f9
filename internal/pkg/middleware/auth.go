package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/golang-jwt/jwt/v5"

	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/env"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/usercontext"
)

type authClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// BearerAuthMiddleware authenticates requests carrying a bearer token issued
// by the external auth provider (HS256, shared secret). The token subject is
// the external user id.
func BearerAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing bearer token", "code": "UNAUTHORIZED"})
		}

		secret := env.GetEnv("AUTH_JWT_SECRET", "")
		if secret == "" {
			log.Error("[Auth] AUTH_JWT_SECRET is not configured")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Authentication is not configured on this server", "code": "CONFIG_ERROR"})
		}

		claims := &authClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token", "code": "UNAUTHORIZED"})
		}

		userCtx := usercontext.UserContext{
			UserID:     claims.Subject,
			Email:      claims.Email,
			IsLoggedIn: true,
		}
		c.Locals(usercontext.KeyUserContext, userCtx)
		c.Locals(usercontext.KeyUserID, claims.Subject)
		c.Locals(usercontext.KeyUserEmail, claims.Email)

		return c.Next()
	}
}

func extractBearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
