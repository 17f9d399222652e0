package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jkarani9/bookmed/models"
	"github.com/jkarani9/bookmed/store"
	"github.com/jkarani9/bookmed/utils"
)

// SlotStore is the slice of the persistence layer the schedule service needs.
type SlotStore interface {
	CreateSlot(ctx context.Context, slot *models.Schedule) (bool, error)
	ListSlots(ctx context.Context, f store.SlotFilter, opt utils.PageOptions) ([]models.Schedule, int64, error)
	DeleteSlot(ctx context.Context, id uuid.UUID) error
	Publish(ctx context.Context, providerID, scheduleID uuid.UUID, fee float64, currency string) (*models.ProviderSchedule, error)
	ListAvailable(ctx context.Context, f store.AvailabilityFilter, opt utils.PageOptions) ([]models.ProviderSchedule, int64, error)
}

// RangeSpec describes a recurring daily window to split into slots.
type RangeSpec struct {
	StartDate       string // 2006-01-02
	EndDate         string // 2006-01-02
	StartTime       string // 15:04, start of each day's window
	EndTime         string // 15:04, end of each day's window
	IntervalMinutes int
}

type ScheduleService struct {
	store SlotStore
}

func NewScheduleService(s SlotStore) *ScheduleService {
	return &ScheduleService{store: s}
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// GenerateSlots splits every day in the range into fixed-width windows and
// inserts them, returning only the slots that did not already exist. A final
// window that would overrun the daily end time is not created. A day whose
// start time is not before its end time yields no slots.
func (s *ScheduleService) GenerateSlots(ctx context.Context, spec RangeSpec) ([]models.Schedule, error) {
	startDate, err := time.ParseInLocation(dateLayout, spec.StartDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: start date %q", store.ErrInvalidRange, spec.StartDate)
	}
	endDate, err := time.ParseInLocation(dateLayout, spec.EndDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: end date %q", store.ErrInvalidRange, spec.EndDate)
	}
	dayStart, err := time.Parse(timeLayout, spec.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: start time %q", store.ErrInvalidRange, spec.StartTime)
	}
	dayEnd, err := time.Parse(timeLayout, spec.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%w: end time %q", store.ErrInvalidRange, spec.EndTime)
	}
	if spec.IntervalMinutes <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive, got %d", store.ErrInvalidRange, spec.IntervalMinutes)
	}

	interval := time.Duration(spec.IntervalMinutes) * time.Minute
	created := []models.Schedule{}

	for day := startDate; !day.After(endDate); day = day.AddDate(0, 0, 1) {
		windowStart := time.Date(day.Year(), day.Month(), day.Day(), dayStart.Hour(), dayStart.Minute(), 0, 0, time.UTC)
		windowEnd := time.Date(day.Year(), day.Month(), day.Day(), dayEnd.Hour(), dayEnd.Minute(), 0, 0, time.UTC)

		for cur := windowStart; !cur.Add(interval).After(windowEnd); cur = cur.Add(interval) {
			slot := models.Schedule{
				StartDateTime: cur,
				EndDateTime:   cur.Add(interval),
			}
			inserted, err := s.store.CreateSlot(ctx, &slot)
			if err != nil {
				return nil, err
			}
			if inserted {
				created = append(created, slot)
			}
		}
	}
	return created, nil
}

func (s *ScheduleService) Slots(ctx context.Context, f store.SlotFilter, opt utils.PageOptions) ([]models.Schedule, int64, error) {
	return s.store.ListSlots(ctx, f, opt)
}

func (s *ScheduleService) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteSlot(ctx, id)
}

// PublishAvailability assigns a slot to a provider at the given fee.
func (s *ScheduleService) PublishAvailability(ctx context.Context, providerID, scheduleID uuid.UUID, fee float64, currency string) (*models.ProviderSchedule, error) {
	if currency == "" {
		currency = "USD"
	}
	return s.store.Publish(ctx, providerID, scheduleID, fee, currency)
}

func (s *ScheduleService) Availability(ctx context.Context, f store.AvailabilityFilter, opt utils.PageOptions) ([]models.ProviderSchedule, int64, error) {
	return s.store.ListAvailable(ctx, f, opt)
}
