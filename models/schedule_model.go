package models

import (
	"time"

	"github.com/google/uuid"
)

// Schedule is a bookable time window. The (start, end) pair is unique so
// re-generating an overlapping range can never produce duplicate slots.
type Schedule struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	StartDateTime time.Time `gorm:"not null;uniqueIndex:idx_schedules_window" json:"start_date_time"`
	EndDateTime   time.Time `gorm:"not null;uniqueIndex:idx_schedules_window" json:"end_date_time"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
