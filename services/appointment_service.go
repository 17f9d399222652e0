package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jkarani9/bookmed/models"
	"github.com/jkarani9/bookmed/payments"
	"github.com/jkarani9/bookmed/utils"
)

// AppointmentStore is the slice of the persistence layer the appointment
// service needs. The implementation must make Reserve atomic with respect to
// concurrent attempts on the same slot, and Cancel/MarkPaid conditional on
// the appointment still being UNPAID.
type AppointmentStore interface {
	Reserve(ctx context.Context, scheduleID, patientID uuid.UUID, deadline time.Time) (*models.Appointment, *models.Payment, error)
	SetGatewayOrder(ctx context.Context, paymentID uuid.UUID, orderID string) error
	Cancel(ctx context.Context, appointmentID uuid.UUID, payload []byte) (bool, error)
	ListExpired(ctx context.Context, now time.Time) ([]models.Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, opt utils.PageOptions) ([]models.Appointment, int64, error)
}

// CheckoutGateway opens a checkout session with the payment gateway. It is
// only ever called after the reservation transaction has committed.
type CheckoutGateway interface {
	CreateCheckoutSession(ctx context.Context, amount float64, currency string, appointmentID, paymentID uuid.UUID) (*payments.CheckoutSession, error)
}

// EventPublisher fans appointment lifecycle events out to the message broker.
// Publishing is best-effort; failures never affect the booking flow.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, v any) error
}

const (
	EventAppointmentReserved = "appointment.reserved"
	EventAppointmentPaid     = "appointment.paid"
	EventAppointmentCanceled = "appointment.canceled"
)

type AppointmentService struct {
	store   AppointmentStore
	gateway CheckoutGateway
	events  EventPublisher
	grace   time.Duration
	now     func() time.Time
}

func NewAppointmentService(store AppointmentStore, gateway CheckoutGateway, events EventPublisher, grace time.Duration) *AppointmentService {
	return &AppointmentService{
		store:   store,
		gateway: gateway,
		events:  events,
		grace:   grace,
		now:     time.Now,
	}
}

// Reserve claims the slot for the patient and opens a checkout session for
// the resulting payment. The appointment and payment rows are committed
// before the gateway is contacted, so a gateway outage leaves a reservable
// UNPAID appointment that either gets paid later or swept at the deadline.
func (s *AppointmentService) Reserve(ctx context.Context, scheduleID, patientID uuid.UUID) (*models.Appointment, *models.Payment, string, error) {
	deadline := s.now().Add(s.grace)

	appt, pay, err := s.store.Reserve(ctx, scheduleID, patientID, deadline)
	if err != nil {
		return nil, nil, "", err
	}

	s.publish(ctx, EventAppointmentReserved, map[string]any{
		"appointment_id": appt.ID,
		"patient_id":     appt.PatientID,
		"provider_id":    appt.ProviderID,
		"deadline":       appt.PaymentDeadline,
	})

	checkoutURL := ""
	if s.gateway != nil {
		session, err := s.gateway.CreateCheckoutSession(ctx, pay.Amount, pay.Currency, appt.ID, pay.ID)
		if err != nil {
			// The reservation stands; the sweeper reclaims the slot if no
			// payment ever arrives.
			log.Printf("🔥 Checkout session creation failed for appointment %s: %v", appt.ID, err)
			return appt, pay, "", nil
		}
		if err := s.store.SetGatewayOrder(ctx, pay.ID, session.ID); err != nil {
			log.Printf("🔥 Failed to save gateway order id for payment %s: %v", pay.ID, err)
		}
		pay.GatewayOrderID = &session.ID
		checkoutURL = session.URL
	}

	return appt, pay, checkoutURL, nil
}

// Cancel releases an appointment's slot if it is still unpaid. Canceling an
// already-settled appointment is a no-op.
func (s *AppointmentService) Cancel(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	canceled, err := s.store.Cancel(ctx, appointmentID, nil)
	if err != nil {
		return false, err
	}
	if canceled {
		s.publish(ctx, EventAppointmentCanceled, map[string]any{
			"appointment_id": appointmentID,
			"reason":         "expired",
		})
	}
	return canceled, nil
}

// Sweep cancels every unpaid appointment whose deadline has passed. A failure
// on one appointment is logged and does not stop the rest of the batch. It
// returns the number of appointments actually canceled.
func (s *AppointmentService) Sweep(ctx context.Context) (int, error) {
	expired, err := s.store.ListExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}

	canceled := 0
	failed := 0
	for _, appt := range expired {
		ok, err := s.store.Cancel(ctx, appt.ID, nil)
		if err != nil {
			failed++
			log.Printf("🔥 Sweep failed to cancel appointment %s: %v", appt.ID, err)
			continue
		}
		if !ok {
			// Paid (or canceled) between the scan and the update. Leave it.
			continue
		}
		canceled++
		s.publish(ctx, EventAppointmentCanceled, map[string]any{
			"appointment_id": appt.ID,
			"reason":         "expired",
		})
	}
	if failed > 0 {
		log.Printf("Sweep finished with %d failure(s) out of %d expired appointment(s)", failed, len(expired))
	}
	return canceled, nil
}

func (s *AppointmentService) MyAppointments(ctx context.Context, patientID uuid.UUID, opt utils.PageOptions) ([]models.Appointment, int64, error) {
	return s.store.ListByPatient(ctx, patientID, opt)
}

func (s *AppointmentService) publish(ctx context.Context, key string, v any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, key, v); err != nil {
		log.Printf("Failed to publish %s event: %v", key, err)
	}
}
