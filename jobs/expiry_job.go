package jobs

import (
	"context"
	"log"

	"github.com/jkarani9/bookmed/services"
)

// ExpiryJob is the recurring sweep that cancels unpaid appointments whose
// payment deadline has lapsed. Cancellation is idempotent, so even an
// accidentally duplicated schedule entry would be harmless.
type ExpiryJob struct {
	svc *services.AppointmentService
}

func NewExpiryJob(svc *services.AppointmentService) *ExpiryJob {
	return &ExpiryJob{svc: svc}
}

func (j *ExpiryJob) Run() {
	log.Println("Running job: SweepExpiredAppointments...")

	count, err := j.svc.Sweep(context.Background())
	if err != nil {
		log.Printf("Error sweeping expired appointments: %v", err)
		return
	}

	if count == 0 {
		log.Println("No expired appointments found.")
		return
	}
	log.Printf("Canceled %d expired appointment(s) and released their slots.", count)
}
