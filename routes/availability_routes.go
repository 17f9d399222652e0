package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jkarani9/bookmed/handlers"
	"github.com/jkarani9/bookmed/middleware"
)

// AvailabilityRoutes mounts the availability surface. The public listing sits
// behind the optional response cache.
func AvailabilityRoutes(app *fiber.App, h *handlers.AvailabilityHandler, jwtSecret string, cache fiber.Handler) {
	api := app.Group("/api/v1")

	availability := api.Group("/provider-schedules")
	if cache != nil {
		availability.Get("", cache, h.ListAvailability)
	} else {
		availability.Get("", h.ListAvailability)
	}
	availability.Post("", middleware.Protected(jwtSecret), middleware.ProviderRequired(), h.PublishAvailability)
}
