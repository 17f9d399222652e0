package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PaymentStatusUnpaid   = "UNPAID"
	PaymentStatusPaid     = "PAID"
	PaymentStatusCanceled = "CANCELED"
)

const (
	AppointmentStatusPendingPayment = "pending_payment"
	AppointmentStatusConfirmed      = "confirmed"
	AppointmentStatusCanceled       = "canceled"
)

// Appointment is a patient's claim on a provider schedule slot. The partial
// unique index on ProviderScheduleID allows at most one non-canceled
// appointment per slot; concurrent reservations race on the index, not on an
// application-level existence check.
type Appointment struct {
	ID                 uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ProviderScheduleID uuid.UUID `gorm:"type:uuid;not null;index:idx_appointments_live_slot,unique,where:payment_status <> 'CANCELED'" json:"provider_schedule_id"`
	ProviderID         uuid.UUID `gorm:"type:uuid;not null;index" json:"provider_id"`
	PatientID          uuid.UUID `gorm:"type:uuid;not null;index" json:"patient_id"`
	PaymentStatus      string    `gorm:"size:10;not null;default:'UNPAID'" json:"payment_status"`
	Status             string    `gorm:"size:20;not null;default:'pending_payment'" json:"status"`
	PaymentDeadline    time.Time `gorm:"not null" json:"payment_deadline"`

	ProviderSchedule ProviderSchedule `gorm:"foreignkey:ProviderScheduleID" json:"provider_schedule,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LifecycleFor keeps Status a pure function of the payment status so the two
// columns can never disagree.
func LifecycleFor(paymentStatus string) string {
	switch paymentStatus {
	case PaymentStatusPaid:
		return AppointmentStatusConfirmed
	case PaymentStatusCanceled:
		return AppointmentStatusCanceled
	default:
		return AppointmentStatusPendingPayment
	}
}
