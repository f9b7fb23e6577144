package app

import (
	"context"
	"fmt"

	"github.com/Gargee-Buva/Finora/internal/jobs"
	"github.com/Gargee-Buva/Finora/internal/jobs/inmemory"
	"github.com/Gargee-Buva/Finora/internal/scheduler"
)

// Jobs is the running job infrastructure: a single-worker queue, its status
// store and, when enabled, the daily scheduler.
type Jobs struct {
	Queue *inmemory.Queue
	Store *inmemory.Store

	schedDone chan struct{}
}

// StartJobs starts the queue consumer and, if configured, the scheduler. Both
// stop when ctx is cancelled; call Stop to wait for in-flight jobs.
func (a *App) StartJobs(ctx context.Context) (*Jobs, error) {
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(store, a.Log, inmemory.QueueOptions{Workers: 1})
	if err := queue.Start(ctx, jobs.NewBatchHandler(a.Runners(), a.Log)); err != nil {
		return nil, fmt.Errorf("StartJobs: %w", err)
	}

	j := &Jobs{Queue: queue, Store: store}
	if !a.Config.Scheduler.Enabled {
		a.Log.Info().Msg("Scheduler disabled, jobs run only when triggered")
		return j, nil
	}

	daily, err := scheduler.NewDaily(queue, a.Config.Scheduler.Hour, a.Config.Scheduler.Minute,
		[]jobs.JobType{jobs.JobTypeRecurring, jobs.JobTypeReports}, a.Log)
	if err != nil {
		queue.Close()
		return nil, fmt.Errorf("StartJobs: %w", err)
	}
	j.schedDone = make(chan struct{})
	go func() {
		defer close(j.schedDone)
		daily.Run(ctx)
	}()
	return j, nil
}

// Stop waits for the scheduler to exit and for in-flight jobs to finish or
// ctx to expire.
func (j *Jobs) Stop(ctx context.Context) error {
	if j.schedDone != nil {
		select {
		case <-j.schedDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.Queue.Stop(ctx)
}
