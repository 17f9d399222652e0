package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/jkarani9/bookmed/payments"
	"github.com/jkarani9/bookmed/services"
	"github.com/jkarani9/bookmed/store"
)

type PaymentHandler struct {
	svc           *services.PaymentService
	webhookSecret string
}

func NewPaymentHandler(svc *services.PaymentService, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{svc: svc, webhookSecret: webhookSecret}
}

// HandleGatewayWebhook receives payment gateway notifications. The signature
// is verified before anything else; only verified events reach the
// reconciler. Unmatched or unrecognized events are acknowledged with 200 so
// the gateway stops redelivering them — only transient store failures return
// an error status to trigger the gateway's own retry.
func (h *PaymentHandler) HandleGatewayWebhook(c *fiber.Ctx) error {
	body := c.Body()
	signature := c.Get("Gateway-Signature")

	if err := payments.VerifySignature(h.webhookSecret, body, signature); err != nil {
		log.Printf("⚠️ Webhook signature verification failed: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid signature"})
	}

	event, err := services.DecodeGatewayEvent(body)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse webhook payload"})
	}

	result, err := h.svc.Reconcile(c.UserContext(), event)
	if err != nil {
		if errors.Is(err, store.ErrUnknownCorrelation) {
			log.Printf("⚠️ Unmatched gateway event %s (%s): %v", event.ID, event.Type, err)
			return c.JSON(fiber.Map{"message": "Event acknowledged", "outcome": "unmatched"})
		}
		if errors.Is(err, store.ErrTransientStore) {
			// Nothing was committed; let the gateway redeliver.
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Store temporarily unavailable"})
		}
		log.Printf("🔥 Failed to reconcile gateway event %s (%s): %v", event.ID, event.Type, err)
		return c.JSON(fiber.Map{"message": "Event acknowledged", "outcome": "error"})
	}

	return c.JSON(fiber.Map{"message": "Webhook processed successfully", "outcome": result.Outcome})
}
