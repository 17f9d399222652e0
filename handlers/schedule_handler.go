package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jkarani9/bookmed/services"
	"github.com/jkarani9/bookmed/store"
	"github.com/jkarani9/bookmed/utils"
	"gorm.io/gorm"
)

type ScheduleHandler struct {
	svc *services.ScheduleService
}

func NewScheduleHandler(svc *services.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{svc: svc}
}

type CreateSchedulesRequest struct {
	StartDate       string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate         string `json:"end_date" validate:"required,datetime=2006-01-02"`
	StartTime       string `json:"start_time" validate:"required"`
	EndTime         string `json:"end_time" validate:"required"`
	IntervalMinutes int    `json:"interval_minutes" validate:"required,min=1"`
}

func (h *ScheduleHandler) CreateSchedules(c *fiber.Ctx) error {
	var req CreateSchedulesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	slots, err := h.svc.GenerateSlots(c.UserContext(), services.RangeSpec{
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		IntervalMinutes: req.IntervalMinutes,
	})
	if err != nil {
		if errors.Is(err, store.ErrInvalidRange) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		if errors.Is(err, store.ErrTransientStore) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Store temporarily unavailable, please retry"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate schedules"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":   "Schedules generated successfully",
		"count":     len(slots),
		"schedules": slots,
	})
}

func (h *ScheduleHandler) ListSchedules(c *fiber.Ctx) error {
	filter := store.SlotFilter{
		From: queryTime(c, "startDateTime"),
		To:   queryTime(c, "endDateTime"),
	}

	slots, total, err := h.svc.Slots(c.UserContext(), filter, pageOptions(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list schedules"})
	}

	opt := pageOptions(c).Normalized("startDateTime")
	return c.JSON(fiber.Map{
		"meta": utils.PageMeta{Page: opt.Page, Limit: opt.Limit, Total: total},
		"data": slots,
	})
}

func (h *ScheduleHandler) DeleteSchedule(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid schedule ID format"})
	}

	if err := h.svc.DeleteSlot(c.UserContext(), id); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Schedule not found"})
		case errors.Is(err, store.ErrScheduleInUse):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Schedule is still assigned to a provider"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete schedule"})
		}
	}

	return c.JSON(fiber.Map{"message": "Schedule deleted successfully"})
}
