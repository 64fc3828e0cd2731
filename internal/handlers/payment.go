package handlers

import (
	"errors"
	"log"

	"github.com/Renarion/AI-for-mock-interview/internal/middleware"
	"github.com/Renarion/AI-for-mock-interview/internal/services"

	"github.com/gofiber/fiber/v2"
)

// PaymentHandler handles question package purchases
type PaymentHandler struct {
	paymentService *services.PaymentService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// CreateCheckoutRequest is the request body for checkout
type CreateCheckoutRequest struct {
	PlanID string `json:"plan_id"`
}

// ListPlans returns all question packages
// GET /api/payments/plans
func (h *PaymentHandler) ListPlans(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"plans": h.paymentService.GetAvailablePlans(),
	})
}

// CreateCheckout starts the purchase of a plan
// POST /api/payments/checkout
func (h *PaymentHandler) CreateCheckout(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}

	var req CreateCheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.PlanID == "" {
		return badRequest(c, "plan_id is required")
	}

	checkout, err := h.paymentService.CreateCheckoutSession(c.UserContext(), userID, req.PlanID, c.IP())
	switch {
	case errors.Is(err, services.ErrUnknownPlan), errors.Is(err, services.ErrPlanNotPurchasable):
		return badRequest(c, err.Error())
	case errors.Is(err, services.ErrPaymentsDisabled):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Payments are not available",
			"code":  "payments_disabled",
		})
	case err != nil:
		log.Printf("⚠️  Failed to create checkout for user %s: %v", userID, err)
		return respondError(c, err)
	}

	return c.JSON(checkout)
}

// CompleteMockPayment settles a development checkout
// POST /api/payments/mock/:id/complete
func (h *PaymentHandler) CompleteMockPayment(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}

	ent, err := h.paymentService.CompleteMockPayment(c.UserContext(), userID, c.Params("id"))
	if errors.Is(err, services.ErrPaymentsDisabled) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Mock payments are disabled",
			"code":  "not_found",
		})
	}
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":          true,
		"has_trial_credit": ent.HasTrialCredit,
		"paid_credits":     ent.PaidCredits,
		"questions_left":   ent.Available(),
	})
}
