package calsync

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"

	appLog "studycal/internal/log"
)

// Job is one scheduled sync pass.
type Job func(ctx context.Context) error

// Scheduler runs a Job on a standard five-field cron spec.
type Scheduler struct {
	c    *cron.Cron
	spec string
}

// NewScheduler validates spec and registers job. Runs never overlap; a pass
// still in flight when the next tick fires makes that tick a no-op.
func NewScheduler(ctx context.Context, spec string, job Job) (*Scheduler, error) {
	if spec == "" {
		return nil, errors.New("empty cron spec")
	}
	if job == nil {
		return nil, errors.New("nil sync job")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		if err := job(ctx); err != nil {
			appLog.Error("scheduled sync failed", err, "spec", spec)
		}
	})
	if err != nil {
		return nil, err
	}
	return &Scheduler{c: c, spec: spec}, nil
}

// Start begins ticking in the background.
func (s *Scheduler) Start() {
	appLog.Info("sync scheduler started", "spec", s.spec)
	s.c.Start()
}

// Stop halts ticking and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
	appLog.Info("sync scheduler stopped")
}
