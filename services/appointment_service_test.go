package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jkarani9/bookmed/models"
	"github.com/jkarani9/bookmed/payments"
	"github.com/jkarani9/bookmed/store"
	"github.com/jkarani9/bookmed/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeAppointmentStore mimics the transactional guarantees of the real store:
// one live appointment per assignment, and settled appointments never change
// state again.
type fakeAppointmentStore struct {
	mu           sync.Mutex
	assignments  map[uuid.UUID]*models.ProviderSchedule // keyed by ScheduleID
	appointments map[uuid.UUID]*models.Appointment
	payments     map[uuid.UUID]*models.Payment
	cancelErrs   map[uuid.UUID]error
}

func newFakeAppointmentStore() *fakeAppointmentStore {
	return &fakeAppointmentStore{
		assignments:  make(map[uuid.UUID]*models.ProviderSchedule),
		appointments: make(map[uuid.UUID]*models.Appointment),
		payments:     make(map[uuid.UUID]*models.Payment),
		cancelErrs:   make(map[uuid.UUID]error),
	}
}

func (f *fakeAppointmentStore) addAssignment(fee float64) (scheduleID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	scheduleID = uuid.New()
	f.assignments[scheduleID] = &models.ProviderSchedule{
		ID:         uuid.New(),
		ProviderID: uuid.New(),
		ScheduleID: scheduleID,
		Fee:        fee,
		Currency:   "USD",
	}
	return scheduleID
}

func (f *fakeAppointmentStore) Reserve(_ context.Context, scheduleID, patientID uuid.UUID, deadline time.Time) (*models.Appointment, *models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	assignment, ok := f.assignments[scheduleID]
	if !ok {
		return nil, nil, gorm.ErrRecordNotFound
	}
	if assignment.IsBooked {
		return nil, nil, store.ErrSlotAlreadyReserved
	}
	assignment.IsBooked = true

	appt := &models.Appointment{
		ID:                 uuid.New(),
		ProviderScheduleID: assignment.ID,
		ProviderID:         assignment.ProviderID,
		PatientID:          patientID,
		PaymentStatus:      models.PaymentStatusUnpaid,
		Status:             models.AppointmentStatusPendingPayment,
		PaymentDeadline:    deadline,
	}
	pay := &models.Payment{
		ID:            uuid.New(),
		AppointmentID: appt.ID,
		Amount:        assignment.Fee,
		Currency:      assignment.Currency,
		Status:        models.PaymentStatusUnpaid,
	}
	f.appointments[appt.ID] = appt
	f.payments[pay.ID] = pay
	return appt, pay, nil
}

func (f *fakeAppointmentStore) SetGatewayOrder(_ context.Context, paymentID uuid.UUID, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pay, ok := f.payments[paymentID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	pay.GatewayOrderID = &orderID
	return nil
}

func (f *fakeAppointmentStore) Cancel(_ context.Context, appointmentID uuid.UUID, payload []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelLocked(appointmentID, payload)
}

func (f *fakeAppointmentStore) cancelLocked(appointmentID uuid.UUID, payload []byte) (bool, error) {
	if err, ok := f.cancelErrs[appointmentID]; ok {
		return false, err
	}
	appt, ok := f.appointments[appointmentID]
	if !ok {
		return false, store.ErrUnknownCorrelation
	}
	if appt.PaymentStatus != models.PaymentStatusUnpaid {
		return false, nil
	}
	appt.PaymentStatus = models.PaymentStatusCanceled
	appt.Status = models.LifecycleFor(appt.PaymentStatus)
	for _, pay := range f.payments {
		if pay.AppointmentID == appointmentID {
			pay.Status = models.PaymentStatusCanceled
			if payload != nil {
				pay.GatewayPayload = payload
			}
		}
	}
	for _, assignment := range f.assignments {
		if assignment.ID == appt.ProviderScheduleID {
			assignment.IsBooked = false
		}
	}
	return true, nil
}

func (f *fakeAppointmentStore) MarkPaid(_ context.Context, appointmentID, paymentID uuid.UUID, payload []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pay, ok := f.payments[paymentID]
	if !ok || pay.AppointmentID != appointmentID {
		return false, store.ErrUnknownCorrelation
	}
	appt := f.appointments[appointmentID]
	if appt.PaymentStatus != models.PaymentStatusUnpaid {
		return false, nil
	}
	appt.PaymentStatus = models.PaymentStatusPaid
	appt.Status = models.LifecycleFor(appt.PaymentStatus)
	pay.Status = models.PaymentStatusPaid
	pay.GatewayPayload = payload
	return true, nil
}

func (f *fakeAppointmentStore) CancelCorrelated(_ context.Context, appointmentID, paymentID uuid.UUID, payload []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pay, ok := f.payments[paymentID]
	if !ok || pay.AppointmentID != appointmentID {
		return false, store.ErrUnknownCorrelation
	}
	return f.cancelLocked(appointmentID, payload)
}

func (f *fakeAppointmentStore) ListExpired(_ context.Context, now time.Time) ([]models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Appointment
	for _, appt := range f.appointments {
		if appt.PaymentStatus == models.PaymentStatusUnpaid && appt.PaymentDeadline.Before(now) {
			out = append(out, *appt)
		}
	}
	return out, nil
}

func (f *fakeAppointmentStore) ListByPatient(_ context.Context, patientID uuid.UUID, _ utils.PageOptions) ([]models.Appointment, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Appointment
	for _, appt := range f.appointments {
		if appt.PatientID == patientID {
			out = append(out, *appt)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeAppointmentStore) appointment(id uuid.UUID) models.Appointment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.appointments[id]
}

func (f *fakeAppointmentStore) assignmentForSchedule(scheduleID uuid.UUID) models.ProviderSchedule {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.assignments[scheduleID]
}

type fakeGateway struct {
	mu    sync.Mutex
	fail  bool
	calls int
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, _ float64, _ string, _, paymentID uuid.UUID) (*payments.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.fail {
		return nil, errors.New("gateway unreachable")
	}
	return &payments.CheckoutSession{
		ID:  "cs_" + paymentID.String(),
		URL: "https://gateway.test/pay/cs_" + paymentID.String(),
	}, nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

func TestReserve_CreatesUnpaidAppointmentWithCheckout(t *testing.T) {
	fake := newFakeAppointmentStore()
	scheduleID := fake.addAssignment(120)
	events := &recordingPublisher{}
	svc := NewAppointmentService(fake, &fakeGateway{}, events, 30*time.Minute)
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	patientID := uuid.New()
	appt, pay, checkoutURL, err := svc.Reserve(context.Background(), scheduleID, patientID)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusUnpaid, appt.PaymentStatus)
	assert.Equal(t, models.AppointmentStatusPendingPayment, appt.Status)
	assert.Equal(t, patientID, appt.PatientID)
	assert.Equal(t, base.Add(30*time.Minute), appt.PaymentDeadline)

	assert.Equal(t, float64(120), pay.Amount)
	assert.Equal(t, "USD", pay.Currency)
	require.NotNil(t, pay.GatewayOrderID)
	assert.NotEmpty(t, checkoutURL)

	assert.Equal(t, []string{EventAppointmentReserved}, events.published())
}

func TestReserve_UnknownSchedule(t *testing.T) {
	svc := NewAppointmentService(newFakeAppointmentStore(), &fakeGateway{}, nil, 30*time.Minute)

	_, _, _, err := svc.Reserve(context.Background(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestReserve_ConcurrentClaimsSameSlot(t *testing.T) {
	fake := newFakeAppointmentStore()
	scheduleID := fake.addAssignment(80)
	svc := NewAppointmentService(fake, &fakeGateway{}, nil, 30*time.Minute)

	const attempts = 20
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _, err := svc.Reserve(context.Background(), scheduleID, uuid.New())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	won := 0
	lost := 0
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, store.ErrSlotAlreadyReserved):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, attempts-1, lost)
}

func TestReserve_GatewayFailureKeepsReservation(t *testing.T) {
	fake := newFakeAppointmentStore()
	scheduleID := fake.addAssignment(50)
	svc := NewAppointmentService(fake, &fakeGateway{fail: true}, nil, 30*time.Minute)

	appt, pay, checkoutURL, err := svc.Reserve(context.Background(), scheduleID, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, checkoutURL)
	assert.Nil(t, pay.GatewayOrderID)

	// The slot stays claimed until paid or swept.
	assert.True(t, fake.assignmentForSchedule(scheduleID).IsBooked)
	assert.Equal(t, models.PaymentStatusUnpaid, fake.appointment(appt.ID).PaymentStatus)
}

func TestCancel_IsIdempotent(t *testing.T) {
	fake := newFakeAppointmentStore()
	scheduleID := fake.addAssignment(50)
	svc := NewAppointmentService(fake, &fakeGateway{}, nil, 30*time.Minute)

	appt, _, _, err := svc.Reserve(context.Background(), scheduleID, uuid.New())
	require.NoError(t, err)

	canceled, err := svc.Cancel(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.True(t, canceled)
	assert.False(t, fake.assignmentForSchedule(scheduleID).IsBooked)

	canceled, err = svc.Cancel(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.False(t, canceled)
}

func TestSweep_CancelsExpiredAndReleasesSlots(t *testing.T) {
	fake := newFakeAppointmentStore()
	expiredSchedule := fake.addAssignment(50)
	freshSchedule := fake.addAssignment(50)
	events := &recordingPublisher{}
	svc := NewAppointmentService(fake, &fakeGateway{}, events, 30*time.Minute)

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	expired, _, _, err := svc.Reserve(context.Background(), expiredSchedule, uuid.New())
	require.NoError(t, err)

	svc.now = func() time.Time { return base.Add(29 * time.Minute) }
	fresh, _, _, err := svc.Reserve(context.Background(), freshSchedule, uuid.New())
	require.NoError(t, err)

	svc.now = func() time.Time { return base.Add(31 * time.Minute) }
	count, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Equal(t, models.PaymentStatusCanceled, fake.appointment(expired.ID).PaymentStatus)
	assert.Equal(t, models.AppointmentStatusCanceled, fake.appointment(expired.ID).Status)
	assert.False(t, fake.assignmentForSchedule(expiredSchedule).IsBooked)

	assert.Equal(t, models.PaymentStatusUnpaid, fake.appointment(fresh.ID).PaymentStatus)
	assert.True(t, fake.assignmentForSchedule(freshSchedule).IsBooked)

	assert.Contains(t, events.published(), EventAppointmentCanceled)
}

func TestSweep_NeverTouchesPaidAppointments(t *testing.T) {
	fake := newFakeAppointmentStore()
	scheduleID := fake.addAssignment(50)
	svc := NewAppointmentService(fake, &fakeGateway{}, nil, 30*time.Minute)

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	appt, pay, _, err := svc.Reserve(context.Background(), scheduleID, uuid.New())
	require.NoError(t, err)

	// Payment lands after the deadline but before the sweep runs.
	applied, err := fake.MarkPaid(context.Background(), appt.ID, pay.ID, []byte(`{}`))
	require.NoError(t, err)
	require.True(t, applied)

	svc.now = func() time.Time { return base.Add(time.Hour) }
	count, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, models.PaymentStatusPaid, fake.appointment(appt.ID).PaymentStatus)
	assert.True(t, fake.assignmentForSchedule(scheduleID).IsBooked)
}

func TestSweep_FailureOnOneDoesNotStopTheBatch(t *testing.T) {
	fake := newFakeAppointmentStore()
	brokenSchedule := fake.addAssignment(50)
	healthySchedule := fake.addAssignment(50)
	svc := NewAppointmentService(fake, &fakeGateway{}, nil, 30*time.Minute)

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	broken, _, _, err := svc.Reserve(context.Background(), brokenSchedule, uuid.New())
	require.NoError(t, err)
	healthy, _, _, err := svc.Reserve(context.Background(), healthySchedule, uuid.New())
	require.NoError(t, err)

	fake.cancelErrs[broken.ID] = errors.New("deadlock detected")

	svc.now = func() time.Time { return base.Add(time.Hour) }
	count, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, models.PaymentStatusCanceled, fake.appointment(healthy.ID).PaymentStatus)
	assert.Equal(t, models.PaymentStatusUnpaid, fake.appointment(broken.ID).PaymentStatus)
}

func TestMyAppointments_FiltersByPatient(t *testing.T) {
	fake := newFakeAppointmentStore()
	first := fake.addAssignment(50)
	second := fake.addAssignment(50)
	svc := NewAppointmentService(fake, &fakeGateway{}, nil, 30*time.Minute)

	mine := uuid.New()
	_, _, _, err := svc.Reserve(context.Background(), first, mine)
	require.NoError(t, err)
	_, _, _, err = svc.Reserve(context.Background(), second, uuid.New())
	require.NoError(t, err)

	appts, total, err := svc.MyAppointments(context.Background(), mine, utils.PageOptions{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, appts, 1)
	assert.Equal(t, mine, appts[0].PatientID)
}
