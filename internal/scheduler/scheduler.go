package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler runs the janitor jobs (cleanup pass, disk check) on cron
// schedules inside the daemon.
type Scheduler struct {
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// New returns an empty scheduler.
func New() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// Add registers a named job under a standard cron expression. An empty
// expression disables the job without error.
func (s *Scheduler) Add(spec, name string, job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if spec == "" {
		log.Info().Str("job", name).Msg("schedule not configured, job disabled")
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron schedule %q for %s: %w", spec, name, err)
	}

	_, err := s.cron.AddFunc(spec, func() {
		log.Info().Str("job", name).Msg("starting scheduled job")
		job()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	log.Info().Str("job", name).Str("schedule", spec).Msg("job scheduled")
	return nil
}

// Start launches the cron loop and stops it when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.cron.Start()
	s.running = true
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		log.Info().Msg("scheduler stopped")
	}
}

// IsRunning reports whether the cron loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the earliest upcoming job time, or nil when nothing is
// scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	for _, e := range entries[1:] {
		if e.Next.Before(next) {
			next = e.Next
		}
	}
	return &next
}
