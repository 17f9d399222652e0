package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jkarani9/bookmed/handlers"
	"github.com/jkarani9/bookmed/middleware"
)

func ScheduleRoutes(app *fiber.App, h *handlers.ScheduleHandler, jwtSecret string) {
	api := app.Group("/api/v1")

	schedules := api.Group("/schedules", middleware.Protected(jwtSecret))
	schedules.Get("", h.ListSchedules)
	schedules.Post("", middleware.AdminRequired(), h.CreateSchedules)
	schedules.Delete("/:id", middleware.AdminRequired(), h.DeleteSchedule)
}
