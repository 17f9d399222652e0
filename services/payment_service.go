package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jkarani9/bookmed/store"
)

// Gateway event types the reconciler understands. Anything else is
// acknowledged and logged so new gateway event kinds never cause redelivery
// storms.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
	EventPaymentFailed     = "payment.failed"
)

// GatewayEvent is the verified notification delivered by the payment gateway.
// The correlation ids set at checkout time come back unmodified in the
// metadata.
type GatewayEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			Metadata      map[string]string `json:"metadata"`
			PaymentStatus string            `json:"payment_status"`
		} `json:"object"`
	} `json:"data"`

	raw []byte
}

// DecodeGatewayEvent parses a verified webhook body, keeping the raw payload
// for audit storage.
func DecodeGatewayEvent(body []byte) (*GatewayEvent, error) {
	var event GatewayEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("malformed gateway event: %w", err)
	}
	event.raw = body
	return &event, nil
}

// Reconciliation outcomes.
const (
	OutcomePaid           = "paid"
	OutcomeCanceled       = "canceled"
	OutcomeAlreadySettled = "already_settled"
	OutcomeIgnored        = "ignored"
)

// ReconciliationResult reports what a gateway event did to local state.
type ReconciliationResult struct {
	Outcome       string    `json:"outcome"`
	AppointmentID uuid.UUID `json:"appointment_id,omitempty"`
}

// ReconcileStore is the slice of the persistence layer the reconciler needs.
// Both mutations are single transactions spanning the appointment and its
// payment, conditioned on the appointment still being UNPAID.
type ReconcileStore interface {
	MarkPaid(ctx context.Context, appointmentID, paymentID uuid.UUID, payload []byte) (bool, error)
	CancelCorrelated(ctx context.Context, appointmentID, paymentID uuid.UUID, payload []byte) (bool, error)
}

type PaymentService struct {
	store  ReconcileStore
	events EventPublisher
}

func NewPaymentService(s ReconcileStore, events EventPublisher) *PaymentService {
	return &PaymentService{store: s, events: events}
}

// Reconcile maps a gateway event onto the appointment state machine.
// UNPAID -> PAID and UNPAID -> CANCELED are the only transitions; events for
// appointments already in a terminal state report already_settled and mutate
// nothing, so duplicated or reordered deliveries are harmless.
func (s *PaymentService) Reconcile(ctx context.Context, event *GatewayEvent) (ReconciliationResult, error) {
	switch event.Type {
	case EventCheckoutCompleted:
		appointmentID, paymentID, err := correlationIDs(event)
		if err != nil {
			return ReconciliationResult{}, err
		}
		applied, err := s.store.MarkPaid(ctx, appointmentID, paymentID, event.raw)
		if err != nil {
			return ReconciliationResult{}, err
		}
		if !applied {
			return ReconciliationResult{Outcome: OutcomeAlreadySettled, AppointmentID: appointmentID}, nil
		}
		s.publish(ctx, EventAppointmentPaid, map[string]any{"appointment_id": appointmentID})
		return ReconciliationResult{Outcome: OutcomePaid, AppointmentID: appointmentID}, nil

	case EventCheckoutExpired, EventPaymentFailed:
		appointmentID, paymentID, err := correlationIDs(event)
		if err != nil {
			return ReconciliationResult{}, err
		}
		applied, err := s.store.CancelCorrelated(ctx, appointmentID, paymentID, event.raw)
		if err != nil {
			return ReconciliationResult{}, err
		}
		if !applied {
			return ReconciliationResult{Outcome: OutcomeAlreadySettled, AppointmentID: appointmentID}, nil
		}
		s.publish(ctx, EventAppointmentCanceled, map[string]any{
			"appointment_id": appointmentID,
			"reason":         event.Type,
		})
		return ReconciliationResult{Outcome: OutcomeCanceled, AppointmentID: appointmentID}, nil

	default:
		log.Printf("ℹ️ Unhandled gateway event type: %s", event.Type)
		return ReconciliationResult{Outcome: OutcomeIgnored}, nil
	}
}

func correlationIDs(event *GatewayEvent) (uuid.UUID, uuid.UUID, error) {
	meta := event.Data.Object.Metadata
	appointmentID, err := uuid.Parse(meta["appointment_id"])
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: bad appointment_id in event %s", store.ErrUnknownCorrelation, event.ID)
	}
	paymentID, err := uuid.Parse(meta["payment_id"])
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: bad payment_id in event %s", store.ErrUnknownCorrelation, event.ID)
	}
	return appointmentID, paymentID, nil
}

func (s *PaymentService) publish(ctx context.Context, key string, v any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, key, v); err != nil {
		log.Printf("Failed to publish %s event: %v", key, err)
	}
}
