// Package scheduler publishes the batch jobs once a day.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Gargee-Buva/Finora/internal/jobs"
)

// Publisher is the part of jobs.Publisher the scheduler needs.
type Publisher interface {
	Publish(ctx context.Context, job *jobs.BatchJob) error
}

// Daily publishes one job per type at a fixed UTC time of day.
type Daily struct {
	pub    Publisher
	types  []jobs.JobType
	hour   int
	minute int
	log    zerolog.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// NewDaily creates a Daily trigger firing at hour:minute UTC. Jobs are
// published in the order given, so recurring transactions can be materialized
// before reports aggregate them.
func NewDaily(pub Publisher, hour, minute int, types []jobs.JobType, log zerolog.Logger) (*Daily, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("NewDaily: invalid time of day %02d:%02d", hour, minute)
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("NewDaily: no job types")
	}
	return &Daily{
		pub:    pub,
		types:  types,
		hour:   hour,
		minute: minute,
		log:    log.With().Str("component", "scheduler").Logger(),
		now:    time.Now,
		after:  time.After,
	}, nil
}

// NextRun returns the first hour:minute UTC strictly after now.
func NextRun(now time.Time, hour, minute int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks until ctx is cancelled, publishing the jobs every day.
func (d *Daily) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		next := NextRun(d.now(), d.hour, d.minute)
		wait := next.Sub(d.now())
		d.log.Info().Time("next_run", next).Dur("wait", wait).Msg("Scheduler waiting")

		select {
		case <-ctx.Done():
			d.log.Info().Msg("Scheduler stopped")
			return ctx.Err()
		case <-d.after(wait):
		}

		d.Fire(ctx)
	}
	d.log.Info().Msg("Scheduler stopped")
	return ctx.Err()
}

// Fire publishes one job of each configured type now.
func (d *Daily) Fire(ctx context.Context) {
	for _, t := range d.types {
		job := &jobs.BatchJob{Type: t, Trigger: "scheduler"}
		if err := d.pub.Publish(ctx, job); err != nil {
			d.log.Error().Err(err).Str("job_type", string(t)).Msg("Could not publish scheduled job")
			continue
		}
		d.log.Info().Str("job_id", job.JobID).Str("job_type", string(t)).Msg("Scheduled job published")
	}
}
