package workers

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/taskerin/taskerin-backend/internal/services/verification"
)

// CleanupWorker periodically sweeps expired verification tokens and codes.
type CleanupWorker struct {
	Verification *verification.VerificationService
	Schedule     string

	cron *cron.Cron
}

func NewCleanupWorker(svc *verification.VerificationService, schedule string) *CleanupWorker {
	if schedule == "" {
		schedule = "@hourly"
	}
	return &CleanupWorker{Verification: svc, Schedule: schedule}
}

func (w *CleanupWorker) Start() error {
	w.cron = cron.New()
	_, err := w.cron.AddFunc(w.Schedule, w.sweep)
	if err != nil {
		return err
	}
	w.cron.Start()
	log.Printf("Verification cleanup scheduled (%s)", w.Schedule)
	return nil
}

func (w *CleanupWorker) Stop() {
	if w.cron != nil {
		w.cron.Stop()
	}
}

func (w *CleanupWorker) sweep() {
	removed, err := w.Verification.CleanupExpired(context.Background())
	if err != nil {
		log.Printf("Verification cleanup failed: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("Verification cleanup removed %d expired records", removed)
	}
}
