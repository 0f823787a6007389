// Package schedule fires the daily run at a configured local
// time-of-day. There is exactly one timer and at most one run in
// flight; a fire arriving while the previous run is still going is
// skipped outright, never queued.
package schedule

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"carwatch/internal/orchestrator"
)

// Job is one orchestrator run. The scheduler logs its summary and
// error; it never retries a failed run ahead of the next day's fire.
type Job func(ctx context.Context) (*orchestrator.RunSummary, error)

// Scheduler drives the Idle -> Running -> Idle loop forever.
type Scheduler struct {
	hour   int
	minute int
	loc    *time.Location
	job    Job

	running atomic.Bool
	wg      sync.WaitGroup

	now func() time.Time
}

// New builds a scheduler firing daily at "HH:MM" in the named time
// zone.
func New(at, timezone string, job Job) (*Scheduler, error) {
	hour, minute, err := parseAt(at)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", timezone, err)
	}

	return &Scheduler{
		hour:   hour,
		minute: minute,
		loc:    loc,
		job:    job,
		now:    time.Now,
	}, nil
}

// Run blocks until ctx is cancelled, firing the job once per day. The
// same ctx is handed to the job, so shutdown aborts an in-flight run at
// its next batch boundary; Run waits for it to wind down before
// returning.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Printf("Scheduler started, next run at %s", s.nextFire(s.now()).Format(time.RFC3339))

	for {
		next := s.nextFire(s.now())
		timer := time.NewTimer(next.Sub(s.now()))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.wg.Wait()
			log.Printf("Scheduler stopped")
			return nil
		case <-timer.C:
			s.fire(ctx)
		}
	}
}

// fire starts the job unless one is still running, in which case the
// fire is skipped and logged.
func (s *Scheduler) fire(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		log.Printf("Previous run still in progress, skipping this fire")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)

		log.Printf("Starting scheduled run")
		summary, err := s.job(ctx)
		switch {
		case err != nil:
			log.Printf("Run failed: %v (%s)", err, summary)
		default:
			log.Printf("Run finished: %s", summary)
		}
	}()
}

// nextFire returns the next wall-clock HH:MM in the scheduler's zone
// strictly after now. Going through time.Date keeps DST transitions
// correct.
func (s *Scheduler) nextFire(now time.Time) time.Time {
	now = now.In(s.loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func parseAt(at string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(at, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid fire time %q, want HH:MM", at)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("fire time %q out of range", at)
	}
	return hour, minute, nil
}
