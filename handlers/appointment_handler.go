package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jkarani9/bookmed/middleware"
	"github.com/jkarani9/bookmed/services"
	"github.com/jkarani9/bookmed/store"
	"github.com/jkarani9/bookmed/utils"
	"gorm.io/gorm"
)

type AppointmentHandler struct {
	svc *services.AppointmentService
}

func NewAppointmentHandler(svc *services.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{svc: svc}
}

type CreateAppointmentRequest struct {
	ScheduleID string `json:"schedule_id" validate:"required,uuid"`
}

func (h *AppointmentHandler) CreateAppointment(c *fiber.Ctx) error {
	patientID, err := middleware.CallerID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	var req CreateAppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	scheduleID, _ := uuid.Parse(req.ScheduleID)

	appt, payment, checkoutURL, err := h.svc.Reserve(c.UserContext(), scheduleID, patientID)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No provider offers this schedule"})
		case errors.Is(err, store.ErrSlotAlreadyReserved):
			// A genuine business conflict: the caller should pick another
			// slot, not retry this one.
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Slot is already reserved, please choose another"})
		case errors.Is(err, store.ErrTransientStore):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Store temporarily unavailable, please retry"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to reserve slot"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"appointment":  appt,
		"payment":      payment,
		"checkout_url": checkoutURL,
	})
}

func (h *AppointmentHandler) GetMyAppointments(c *fiber.Ctx) error {
	patientID, err := middleware.CallerID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	appts, total, err := h.svc.MyAppointments(c.UserContext(), patientID, pageOptions(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list appointments"})
	}

	opt := pageOptions(c).Normalized("createdAt")
	return c.JSON(fiber.Map{
		"meta": utils.PageMeta{Page: opt.Page, Limit: opt.Limit, Total: total},
		"data": appts,
	})
}
