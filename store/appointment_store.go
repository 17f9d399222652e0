package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jkarani9/bookmed/models"
	"github.com/jkarani9/bookmed/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sweepBatchSize caps how many expired appointments a single sweep loads.
const sweepBatchSize = 500

// AppointmentStore owns appointment and payment rows. Every status mutation
// runs inside one transaction and is guarded either by the partial unique
// index on live appointments or by a compare-and-swap on payment_status.
type AppointmentStore struct {
	db *gorm.DB
}

func NewAppointmentStore(db *gorm.DB) *AppointmentStore {
	return &AppointmentStore{db: db}
}

// Reserve claims the slot for a patient and creates the UNPAID appointment
// together with its payment row. The row lock on the assignment serializes
// in-process racers; the partial unique index on appointments is the backstop
// for racers on other instances.
func (s *AppointmentStore) Reserve(ctx context.Context, scheduleID, patientID uuid.UUID, deadline time.Time) (*models.Appointment, *models.Payment, error) {
	var appt models.Appointment
	var pay models.Payment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var assignment models.ProviderSchedule
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&assignment, "schedule_id = ?", scheduleID).Error; err != nil {
			return err
		}
		if assignment.IsBooked {
			return ErrSlotAlreadyReserved
		}

		assignment.IsBooked = true
		if err := tx.Save(&assignment).Error; err != nil {
			return err
		}

		appt = models.Appointment{
			ProviderScheduleID: assignment.ID,
			ProviderID:         assignment.ProviderID,
			PatientID:          patientID,
			PaymentStatus:      models.PaymentStatusUnpaid,
			Status:             models.AppointmentStatusPendingPayment,
			PaymentDeadline:    deadline,
		}
		if err := tx.Create(&appt).Error; err != nil {
			if isUniqueViolation(err, "idx_appointments_live_slot") {
				return ErrSlotAlreadyReserved
			}
			return err
		}

		pay = models.Payment{
			AppointmentID: appt.ID,
			Amount:        assignment.Fee,
			Currency:      assignment.Currency,
			Status:        models.PaymentStatusUnpaid,
		}
		return tx.Create(&pay).Error
	})
	if err != nil {
		return nil, nil, classify(err)
	}
	return &appt, &pay, nil
}

// SetGatewayOrder records the gateway's checkout reference after the
// reservation transaction has committed.
func (s *AppointmentStore) SetGatewayOrder(ctx context.Context, paymentID uuid.UUID, orderID string) error {
	err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Update("gateway_order_id", orderID).Error
	return classify(err)
}

// MarkPaid moves the appointment/payment pair to PAID in one transaction.
// The appointment update is conditioned on it still being UNPAID, so a
// replayed or late event finds zero rows and mutates nothing. It reports
// whether the transition was applied.
func (s *AppointmentStore) MarkPaid(ctx context.Context, appointmentID, paymentID uuid.UUID, payload []byte) (bool, error) {
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pay models.Payment
		if err := tx.First(&pay, "id = ? AND appointment_id = ?", paymentID, appointmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownCorrelation
			}
			return err
		}

		res := tx.Model(&models.Appointment{}).
			Where("id = ? AND payment_status = ?", appointmentID, models.PaymentStatusUnpaid).
			Updates(map[string]interface{}{
				"payment_status": models.PaymentStatusPaid,
				"status":         models.LifecycleFor(models.PaymentStatusPaid),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Already terminal: acknowledge without touching either record.
			return nil
		}

		applied = true
		return tx.Model(&models.Payment{}).
			Where("id = ?", paymentID).
			Updates(map[string]interface{}{
				"status":          models.PaymentStatusPaid,
				"gateway_payload": payload,
			}).Error
	})
	if err != nil {
		return false, classify(err)
	}
	return applied, nil
}

// Cancel transitions an UNPAID appointment to CANCELED and releases its slot.
// Canceling an appointment that is already PAID or CANCELED is a no-op, which
// makes the sweeper safe to race against the reconciler. It reports whether
// the cancellation was applied.
func (s *AppointmentStore) Cancel(ctx context.Context, appointmentID uuid.UUID, payload []byte) (bool, error) {
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var appt models.Appointment
		if err := tx.First(&appt, "id = ?", appointmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownCorrelation
			}
			return err
		}

		res := tx.Model(&models.Appointment{}).
			Where("id = ? AND payment_status = ?", appointmentID, models.PaymentStatusUnpaid).
			Updates(map[string]interface{}{
				"payment_status": models.PaymentStatusCanceled,
				"status":         models.LifecycleFor(models.PaymentStatusCanceled),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		payUpdates := map[string]interface{}{"status": models.PaymentStatusCanceled}
		if len(payload) > 0 {
			payUpdates["gateway_payload"] = payload
		}
		if err := tx.Model(&models.Payment{}).
			Where("appointment_id = ?", appointmentID).
			Updates(payUpdates).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.ProviderSchedule{}).
			Where("id = ?", appt.ProviderScheduleID).
			Update("is_booked", false).Error; err != nil {
			return err
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, classify(err)
	}
	return applied, nil
}

// CancelCorrelated is the gateway-event variant of Cancel: it first checks
// that the payment referenced by the event actually belongs to the
// appointment, so a mismatched correlation surfaces as ErrUnknownCorrelation
// instead of silently canceling someone else's appointment.
func (s *AppointmentStore) CancelCorrelated(ctx context.Context, appointmentID, paymentID uuid.UUID, payload []byte) (bool, error) {
	var pay models.Payment
	if err := s.db.WithContext(ctx).First(&pay, "id = ? AND appointment_id = ?", paymentID, appointmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrUnknownCorrelation
		}
		return false, classify(err)
	}
	return s.Cancel(ctx, appointmentID, payload)
}

// ListExpired returns UNPAID appointments whose payment deadline has passed.
func (s *AppointmentStore) ListExpired(ctx context.Context, now time.Time) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := s.db.WithContext(ctx).
		Where("payment_status = ? AND payment_deadline < ?", models.PaymentStatusUnpaid, now).
		Order("payment_deadline asc").
		Limit(sweepBatchSize).
		Find(&appts).Error
	if err != nil {
		return nil, classify(err)
	}
	return appts, nil
}

func (s *AppointmentStore) ListByPatient(ctx context.Context, patientID uuid.UUID, opt utils.PageOptions) ([]models.Appointment, int64, error) {
	opt = opt.Normalized("createdAt")

	q := s.db.WithContext(ctx).Model(&models.Appointment{}).Where("patient_id = ?", patientID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, classify(err)
	}

	var appts []models.Appointment
	err := q.Preload("ProviderSchedule.Schedule").
		Order("created_at desc").
		Offset(opt.Offset()).
		Limit(opt.Limit).
		Find(&appts).Error
	if err != nil {
		return nil, 0, classify(err)
	}
	return appts, total, nil
}
