package middleware

import (
	"log"

	"github.com/Renarion/AI-for-mock-interview/pkg/auth"

	"github.com/gofiber/fiber/v2"
)

// LocalAuthMiddleware verifies access tokens from the Authorization header
// and stores the caller identity in c.Locals("user_id") and ("user_email")
func LocalAuthMiddleware(tokens *auth.TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.ExtractToken(c.Get("Authorization"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing or invalid authorization token",
				"code":  "unauthorized",
			})
		}

		identity, err := tokens.VerifyAccessToken(token)
		if err != nil {
			log.Printf("❌ Auth failed: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
				"code":  "unauthorized",
			})
		}

		c.Locals("user_id", identity.UserID)
		c.Locals("user_email", identity.Email)
		return c.Next()
	}
}

// UserID returns the authenticated user id stored by LocalAuthMiddleware
func UserID(c *fiber.Ctx) (string, bool) {
	userID, ok := c.Locals("user_id").(string)
	return userID, ok && userID != ""
}
