package handlers

import (
	"errors"
	"log"

	"github.com/Renarion/AI-for-mock-interview/internal/models"
	"github.com/Renarion/AI-for-mock-interview/internal/services"

	"github.com/gofiber/fiber/v2"
)

var kindStatus = map[services.ErrorKind]int{
	services.KindNotFound:                fiber.StatusNotFound,
	services.KindForbidden:               fiber.StatusForbidden,
	services.KindInvalidState:            fiber.StatusConflict,
	services.KindMismatch:                fiber.StatusConflict,
	services.KindInsufficientEntitlement: fiber.StatusPaymentRequired,
	services.KindInsufficientCatalog:     fiber.StatusUnprocessableEntity,
}

// respondError maps service errors onto HTTP statuses with a stable code
func respondError(c *fiber.Ctx, err error) error {
	var vErr *models.ValidationError
	if errors.As(err, &vErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": vErr.Error(),
			"code":  "validation_error",
			"field": vErr.Field,
		})
	}

	if kind := services.KindOf(err); kind != "" {
		return c.Status(kindStatus[kind]).JSON(fiber.Map{
			"error": err.Error(),
			"code":  string(kind),
		})
	}

	log.Printf("❌ [API] %s %s failed: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
		"code":  "internal",
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
		"code":  "bad_request",
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "Authentication required",
		"code":  "unauthorized",
	})
}
