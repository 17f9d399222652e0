package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jkarani9/bookmed/handlers"
)

// PaymentRoutes mounts the gateway webhook. The endpoint is unauthenticated;
// the HMAC signature check inside the handler is the trust boundary.
func PaymentRoutes(app *fiber.App, h *handlers.PaymentHandler) {
	app.Post("/webhook", h.HandleGatewayWebhook)
}
