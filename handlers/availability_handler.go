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

type AvailabilityHandler struct {
	svc *services.ScheduleService
}

func NewAvailabilityHandler(svc *services.ScheduleService) *AvailabilityHandler {
	return &AvailabilityHandler{svc: svc}
}

type PublishAvailabilityRequest struct {
	ScheduleID string  `json:"schedule_id" validate:"required,uuid"`
	Fee        float64 `json:"fee" validate:"required,gt=0"`
	Currency   string  `json:"currency" validate:"omitempty,len=3"`
}

func (h *AvailabilityHandler) PublishAvailability(c *fiber.Ctx) error {
	providerID, err := middleware.CallerID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	var req PublishAvailabilityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	scheduleID, _ := uuid.Parse(req.ScheduleID)

	assignment, err := h.svc.PublishAvailability(c.UserContext(), providerID, scheduleID, req.Fee, req.Currency)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Schedule not found"})
		case errors.Is(err, store.ErrDuplicateAssignment):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Schedule is already assigned to a provider"})
		case errors.Is(err, store.ErrTransientStore):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Store temporarily unavailable, please retry"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to publish availability"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(assignment)
}

func (h *AvailabilityHandler) ListAvailability(c *fiber.Ctx) error {
	filter := store.AvailabilityFilter{
		From: queryTime(c, "startDateTime"),
		To:   queryTime(c, "endDateTime"),
	}
	if raw := c.Query("providerId"); raw != "" {
		providerID, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid provider ID format"})
		}
		filter.ProviderID = &providerID
	}

	assignments, total, err := h.svc.Availability(c.UserContext(), filter, pageOptions(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list availability"})
	}

	opt := pageOptions(c).Normalized("startDateTime")
	return c.JSON(fiber.Map{
		"meta": utils.PageMeta{Page: opt.Page, Limit: opt.Limit, Total: total},
		"data": assignments,
	})
}
