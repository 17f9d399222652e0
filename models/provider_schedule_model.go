package models

import (
	"time"

	"github.com/google/uuid"
)

// ProviderSchedule binds a provider to a schedule slot. ScheduleID is unique:
// a slot can be claimed by at most one provider.
type ProviderSchedule struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ProviderID uuid.UUID `gorm:"type:uuid;not null;index" json:"provider_id"`
	ScheduleID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"schedule_id"`
	Fee        float64   `gorm:"type:numeric(10,2);not null" json:"fee"`
	Currency   string    `gorm:"size:3;not null;default:'USD'" json:"currency"`
	IsBooked   bool      `gorm:"not null;default:false" json:"is_booked"`

	Schedule Schedule `gorm:"foreignkey:ScheduleID" json:"schedule,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
