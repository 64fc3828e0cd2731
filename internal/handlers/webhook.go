package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/Renarion/AI-for-mock-interview/internal/services"

	"github.com/gofiber/fiber/v2"
)

// WebhookHandler handles DodoPayments webhooks
type WebhookHandler struct {
	paymentService *services.PaymentService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(paymentService *services.PaymentService) *WebhookHandler {
	return &WebhookHandler{
		paymentService: paymentService,
	}
}

// HandleDodoWebhook handles incoming webhooks from DodoPayments
// POST /api/payments/webhook
// DodoPayments uses Standard Webhooks format with headers:
// - webhook-id: unique message ID
// - webhook-signature: v1,<base64_signature>
// - webhook-timestamp: unix timestamp
func (h *WebhookHandler) HandleDodoWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	if len(payload) == 0 {
		log.Printf("❌ Webhook missing payload")
		return badRequest(c, "Missing payload")
	}

	// Convert Fiber headers to http.Header for the SDK
	headers := make(http.Header)
	c.Request().Header.VisitAll(func(key, value []byte) {
		headers.Add(string(key), string(value))
	})

	event, err := h.paymentService.VerifyAndParseWebhook(payload, headers)
	if err != nil {
		log.Printf("❌ Webhook verification failed: %v", err)
		if errors.Is(err, services.ErrInvalidSignature) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid webhook signature",
				"code":  "invalid_signature",
			})
		}
		return badRequest(c, "Invalid payload format")
	}

	if err := h.paymentService.HandleWebhookEvent(c.UserContext(), event); err != nil {
		log.Printf("❌ Webhook processing error: %v", err)

		// Return 500 so DodoPayments retries
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":    "Failed to process webhook",
			"event_id": event.ID,
			"type":     event.Type,
		})
	}

	log.Printf("✅ Webhook event processed: %s (ID: %s)", event.Type, event.ID)
	return c.JSON(fiber.Map{
		"received": true,
		"event_id": event.ID,
		"type":     event.Type,
	})
}
