package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jkarani9/bookmed/models"
	"github.com/jkarani9/bookmed/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScheduleStore owns slot rows and provider assignments.
type ScheduleStore struct {
	db *gorm.DB
}

func NewScheduleStore(db *gorm.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// SlotFilter narrows slot listings to a window.
type SlotFilter struct {
	From *time.Time
	To   *time.Time
}

// AvailabilityFilter narrows availability listings.
type AvailabilityFilter struct {
	ProviderID *uuid.UUID
	From       *time.Time
	To         *time.Time
}

// slotSortColumns whitelists sortable columns so client input never reaches
// the ORDER BY clause directly.
var slotSortColumns = map[string]string{
	"startDateTime": "start_date_time",
	"endDateTime":   "end_date_time",
	"createdAt":     "created_at",
}

// CreateSlot inserts a slot, relying on the unique (start, end) index to
// swallow duplicates in a single statement. It reports whether the row was
// newly inserted.
func (s *ScheduleStore) CreateSlot(ctx context.Context, slot *models.Schedule) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "start_date_time"}, {Name: "end_date_time"}},
			DoNothing: true,
		}).
		Create(slot)
	if res.Error != nil {
		return false, classify(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *ScheduleStore) ListSlots(ctx context.Context, f SlotFilter, opt utils.PageOptions) ([]models.Schedule, int64, error) {
	opt = opt.Normalized("startDateTime")
	column, ok := slotSortColumns[opt.SortBy]
	if !ok {
		column = "start_date_time"
	}

	q := s.db.WithContext(ctx).Model(&models.Schedule{})
	if f.From != nil {
		q = q.Where("start_date_time >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("end_date_time <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, classify(err)
	}

	var slots []models.Schedule
	err := q.Order(column + " " + opt.SortOrder).
		Offset(opt.Offset()).
		Limit(opt.Limit).
		Find(&slots).Error
	if err != nil {
		return nil, 0, classify(err)
	}
	return slots, total, nil
}

// DeleteSlot removes a slot unless a provider assignment still references it.
func (s *ScheduleStore) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&models.ProviderSchedule{}).Where("schedule_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return ErrScheduleInUse
		}
		res := tx.Delete(&models.Schedule{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return classify(err)
}

// Publish assigns a slot to a provider. The unique index on schedule_id makes
// a second assignment fail regardless of which process attempts it.
func (s *ScheduleStore) Publish(ctx context.Context, providerID, scheduleID uuid.UUID, fee float64, currency string) (*models.ProviderSchedule, error) {
	var slot models.Schedule
	if err := s.db.WithContext(ctx).First(&slot, "id = ?", scheduleID).Error; err != nil {
		return nil, classify(err)
	}

	assignment := models.ProviderSchedule{
		ProviderID: providerID,
		ScheduleID: scheduleID,
		Fee:        fee,
		Currency:   currency,
	}
	if err := s.db.WithContext(ctx).Create(&assignment).Error; err != nil {
		if isUniqueViolation(err, "") {
			return nil, ErrDuplicateAssignment
		}
		return nil, classify(err)
	}
	assignment.Schedule = slot
	return &assignment, nil
}

// ListAvailable returns unbooked assignments ordered by slot start time, with
// the assignment id as tiebreaker so paging is stable.
func (s *ScheduleStore) ListAvailable(ctx context.Context, f AvailabilityFilter, opt utils.PageOptions) ([]models.ProviderSchedule, int64, error) {
	opt = opt.Normalized("startDateTime")

	q := s.db.WithContext(ctx).Model(&models.ProviderSchedule{}).
		Joins("JOIN schedules ON schedules.id = provider_schedules.schedule_id").
		Where("provider_schedules.is_booked = ?", false)
	if f.ProviderID != nil {
		q = q.Where("provider_schedules.provider_id = ?", *f.ProviderID)
	}
	if f.From != nil {
		q = q.Where("schedules.start_date_time >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("schedules.end_date_time <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, classify(err)
	}

	var assignments []models.ProviderSchedule
	err := q.Preload("Schedule").
		Order("schedules.start_date_time " + opt.SortOrder).
		Order("provider_schedules.id asc").
		Offset(opt.Offset()).
		Limit(opt.Limit).
		Find(&assignments).Error
	if err != nil {
		return nil, 0, classify(err)
	}
	return assignments, total, nil
}
