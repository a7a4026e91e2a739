// Package schedule runs a job once a day at a wall-clock time.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/techreview-es/mgz-harvester/internal/logger"
)

// Daily fires at Hour:Minute in Location every day.
type Daily struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// Next returns the first firing time strictly after now.
func (d Daily) Next(now time.Time) time.Time {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.Hour, d.Minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.Hour, d.Minute, 0, 0, loc)
	}
	return next
}

func (d Daily) String() string {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("%02d:%02d %s", d.Hour, d.Minute, loc)
}

// Job is one scheduled run.
type Job func(ctx context.Context) error

// Scheduler calls a Job at every firing time until its context ends.
type Scheduler struct {
	daily Daily
	job   Job
	log   logger.Logger
	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// New returns a Scheduler for job.
func New(daily Daily, job Job, log logger.Logger) *Scheduler {
	return &Scheduler{
		daily: daily,
		job:   job,
		log:   logger.Ensure(log),
		now:   time.Now,
		after: time.After,
	}
}

// Run blocks until ctx is done. Job failures are logged and the next run is
// still scheduled.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		next := s.daily.Next(s.now())
		s.log.InfoObj("next scheduled run", "schedule", map[string]any{
			"at":       next.Format(time.RFC3339),
			"schedule": s.daily.String(),
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.after(next.Sub(s.now())):
		}

		started := s.now()
		if err := s.job(ctx); err != nil {
			s.log.ErrorObj("scheduled run failed", "schedule_error", map[string]any{"error": err.Error()})
			continue
		}
		s.log.InfoObj("scheduled run finished", "schedule", map[string]any{
			"took": s.now().Sub(started).String(),
		})
	}
}
