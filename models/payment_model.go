package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment mirrors its appointment's payment status. GatewayOrderID is the
// opaque reference handed out by the payment gateway at checkout time;
// GatewayPayload stores the last received gateway notification for audit.
type Payment struct {
	ID            uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	AppointmentID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"appointment_id"`
	Amount        float64    `gorm:"type:numeric(10,2);not null" json:"amount"`
	Currency      string     `gorm:"size:3;not null" json:"currency"`
	Status        string     `gorm:"size:10;not null;default:'UNPAID'" json:"status"`
	GatewayOrderID *string   `gorm:"size:255;uniqueIndex" json:"gateway_order_id,omitempty"`
	GatewayPayload []byte    `gorm:"type:jsonb" json:"-"`

	Appointment Appointment `gorm:"foreignkey:AppointmentID" json:"appointment,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
