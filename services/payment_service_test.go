package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jkarani9/bookmed/models"
	"github.com/jkarani9/bookmed/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatewayEvent(t *testing.T, eventType string, appointmentID, paymentID string) *GatewayEvent {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":   "evt_" + uuid.NewString(),
		"type": eventType,
		"data": map[string]any{
			"object": map[string]any{
				"payment_status": "paid",
				"metadata": map[string]string{
					"appointment_id": appointmentID,
					"payment_id":     paymentID,
				},
			},
		},
	})
	require.NoError(t, err)

	event, err := DecodeGatewayEvent(body)
	require.NoError(t, err)
	return event
}

// reserveOne books a slot and returns the resulting appointment and payment.
func reserveOne(t *testing.T, fake *fakeAppointmentStore) (*models.Appointment, *models.Payment) {
	t.Helper()
	scheduleID := fake.addAssignment(60)
	appt, pay, err := fake.Reserve(context.Background(), scheduleID, uuid.New(), time.Now().Add(30*time.Minute))
	require.NoError(t, err)
	return appt, pay
}

func TestReconcile_CompletedCheckoutMarksPaid(t *testing.T) {
	fake := newFakeAppointmentStore()
	appt, pay := reserveOne(t, fake)
	events := &recordingPublisher{}
	svc := NewPaymentService(fake, events)

	event := gatewayEvent(t, EventCheckoutCompleted, appt.ID.String(), pay.ID.String())
	result, err := svc.Reconcile(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, result.Outcome)
	assert.Equal(t, appt.ID, result.AppointmentID)

	got := fake.appointment(appt.ID)
	assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, models.AppointmentStatusConfirmed, got.Status)
	assert.Equal(t, []string{EventAppointmentPaid}, events.published())
}

func TestReconcile_ReplayedCompletionIsNoOp(t *testing.T) {
	fake := newFakeAppointmentStore()
	appt, pay := reserveOne(t, fake)
	events := &recordingPublisher{}
	svc := NewPaymentService(fake, events)

	event := gatewayEvent(t, EventCheckoutCompleted, appt.ID.String(), pay.ID.String())
	_, err := svc.Reconcile(context.Background(), event)
	require.NoError(t, err)

	result, err := svc.Reconcile(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadySettled, result.Outcome)
	assert.Equal(t, models.PaymentStatusPaid, fake.appointment(appt.ID).PaymentStatus)
	// The paid event is published exactly once.
	assert.Equal(t, []string{EventAppointmentPaid}, events.published())
}

func TestReconcile_FailedPaymentCancelsAndReleasesSlot(t *testing.T) {
	for _, eventType := range []string{EventCheckoutExpired, EventPaymentFailed} {
		t.Run(eventType, func(t *testing.T) {
			fake := newFakeAppointmentStore()
			appt, pay := reserveOne(t, fake)
			svc := NewPaymentService(fake, &recordingPublisher{})

			event := gatewayEvent(t, eventType, appt.ID.String(), pay.ID.String())
			result, err := svc.Reconcile(context.Background(), event)
			require.NoError(t, err)
			assert.Equal(t, OutcomeCanceled, result.Outcome)

			got := fake.appointment(appt.ID)
			assert.Equal(t, models.PaymentStatusCanceled, got.PaymentStatus)

			for _, assignment := range fake.assignments {
				if assignment.ID == got.ProviderScheduleID {
					assert.False(t, assignment.IsBooked, "slot must be reservable again")
				}
			}
		})
	}
}

func TestReconcile_FailureAfterPaymentDoesNotUnsettle(t *testing.T) {
	fake := newFakeAppointmentStore()
	appt, pay := reserveOne(t, fake)
	svc := NewPaymentService(fake, nil)

	completed := gatewayEvent(t, EventCheckoutCompleted, appt.ID.String(), pay.ID.String())
	_, err := svc.Reconcile(context.Background(), completed)
	require.NoError(t, err)

	failed := gatewayEvent(t, EventPaymentFailed, appt.ID.String(), pay.ID.String())
	result, err := svc.Reconcile(context.Background(), failed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadySettled, result.Outcome)
	assert.Equal(t, models.PaymentStatusPaid, fake.appointment(appt.ID).PaymentStatus)
}

func TestReconcile_UnknownEventTypeIsIgnored(t *testing.T) {
	fake := newFakeAppointmentStore()
	appt, pay := reserveOne(t, fake)
	svc := NewPaymentService(fake, nil)

	event := gatewayEvent(t, "customer.created", appt.ID.String(), pay.ID.String())
	result, err := svc.Reconcile(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, result.Outcome)
	assert.Equal(t, models.PaymentStatusUnpaid, fake.appointment(appt.ID).PaymentStatus)
}

func TestReconcile_UnknownCorrelation(t *testing.T) {
	fake := newFakeAppointmentStore()
	svc := NewPaymentService(fake, nil)

	tests := []struct {
		name          string
		appointmentID string
		paymentID     string
	}{
		{"missing metadata", "", ""},
		{"malformed appointment id", "not-a-uuid", uuid.NewString()},
		{"ids that match nothing", uuid.NewString(), uuid.NewString()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := gatewayEvent(t, EventCheckoutCompleted, tt.appointmentID, tt.paymentID)
			_, err := svc.Reconcile(context.Background(), event)
			require.ErrorIs(t, err, store.ErrUnknownCorrelation)
		})
	}
}

func TestReconcile_MismatchedCorrelationPair(t *testing.T) {
	fake := newFakeAppointmentStore()
	appt, _ := reserveOne(t, fake)
	_, otherPay := reserveOne(t, fake)
	svc := NewPaymentService(fake, nil)

	// A real payment id paired with the wrong appointment must not settle
	// either record.
	event := gatewayEvent(t, EventCheckoutCompleted, appt.ID.String(), otherPay.ID.String())
	_, err := svc.Reconcile(context.Background(), event)
	require.ErrorIs(t, err, store.ErrUnknownCorrelation)
	assert.Equal(t, models.PaymentStatusUnpaid, fake.appointment(appt.ID).PaymentStatus)
}

func TestDecodeGatewayEvent_Malformed(t *testing.T) {
	_, err := DecodeGatewayEvent([]byte(`{"type": `))
	require.Error(t, err)
}
