package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jkarani9/bookmed/handlers"
	"github.com/jkarani9/bookmed/middleware"
)

func AppointmentRoutes(app *fiber.App, h *handlers.AppointmentHandler, jwtSecret string) {
	api := app.Group("/api/v1")

	appointments := api.Group("/appointments", middleware.Protected(jwtSecret))
	appointments.Post("", h.CreateAppointment)
	appointments.Get("/my", h.GetMyAppointments)
}
