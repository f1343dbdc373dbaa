package api

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/maulanarifai114/research-chat-backend/internal/auth"
	"github.com/maulanarifai114/research-chat-backend/internal/models"
)

// JWTAuth validates the bearer token and stores its claims in Locals.
func JWTAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.ParseBearerToken(c.Get("Authorization"))
		if err != nil {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
				"statusCode": http.StatusUnauthorized,
				"message":    "Unauthorized",
			})
		}
		claims, err := auth.ParseAndValidateToken(secret, token)
		if err != nil {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
				"statusCode": http.StatusUnauthorized,
				"message":    "Unauthorized",
			})
		}
		c.Locals("claims", claims)
		return c.Next()
	}
}

// RequireRoles rejects callers whose token role is not in roles.
func RequireRoles(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, _ := c.Locals("claims").(*auth.Claims)
		if claims != nil {
			for _, r := range roles {
				if models.Role(claims.Role) == r {
					return c.Next()
				}
			}
		}
		return c.Status(http.StatusForbidden).JSON(fiber.Map{
			"statusCode": http.StatusForbidden,
			"message":    "Access denied",
		})
	}
}
