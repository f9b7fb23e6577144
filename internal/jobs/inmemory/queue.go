// Package inmemory provides channel-backed implementations of the jobs
// interfaces for single-instance deployments.
package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Gargee-Buva/Finora/internal/jobs"
)

// ErrQueueClosed is returned when publishing to or starting a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

const defaultMaxRetries = 3

// QueueOptions configures a Queue. Zero values pick defaults.
type QueueOptions struct {
	// BufferSize is how many jobs can wait before Publish blocks.
	BufferSize int
	// Workers is the number of concurrent consumers. Batch processors are not
	// safe to overlap, so the default is 1.
	Workers int
	// RetryDelay returns the wait before retry number attempt (1-based).
	RetryDelay func(attempt int) time.Duration
	Now        func() time.Time
}

// Queue is an in-memory job publisher and consumer backed by a channel.
type Queue struct {
	jobChan   chan *jobs.BatchJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool
	opts      QueueOptions
	log       zerolog.Logger
}

// NewQueue creates a new in-memory job queue. store may be nil.
func NewQueue(store jobs.JobStore, log zerolog.Logger, opts QueueOptions) *Queue {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 16
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.RetryDelay == nil {
		opts.RetryDelay = func(attempt int) time.Duration { return time.Duration(attempt) * time.Minute }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Queue{
		jobChan:   make(chan *jobs.BatchJob, opts.BufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		opts:      opts,
		log:       log.With().Str("component", "job_queue").Logger(),
	}
}

// Publish enqueues a job, filling in its ID, status and defaults.
func (q *Queue) Publish(ctx context.Context, job *jobs.BatchJob) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = q.opts.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = defaultMaxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("Publish: save job: %w", err)
		}
	}

	// The lock is not held here so Stop can close closeChan and release a
	// publisher waiting on a full buffer.
	select {
	case q.jobChan <- job:
		q.log.Debug().Str("job_id", job.JobID).Str("job_type", string(job.Type)).Msg("Job enqueued")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return ErrQueueClosed
	}
}

// Start launches the workers. Jobs run until ctx is cancelled or Stop is
// called.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	q.mu.RUnlock()

	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	q.log.Info().Int("workers", q.opts.Workers).Msg("Job queue started")
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

func (q *Queue) processJob(ctx context.Context, job *jobs.BatchJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	started := q.opts.Now()
	job.StartedAt = &started
	job.CompletedAt = nil
	q.save(ctx, job)

	err := handler(ctx, job)

	completed := q.opts.Now()
	job.CompletedAt = &completed

	retry := false
	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	case job.RetryCount < job.MaxRetries:
		job.Error = err.Error()
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		retry = true
	default:
		job.Error = err.Error()
		job.Status = jobs.JobStatusFailed
		q.log.Error().Err(err).Str("job_id", job.JobID).Msg("Job failed")
	}

	q.save(ctx, job)

	if !retry {
		return
	}
	// The worker no longer touches job after this point.
	delay := q.opts.RetryDelay(job.RetryCount)
	q.log.Warn().Err(err).Str("job_id", job.JobID).Int("retry", job.RetryCount).Dur("delay", delay).Msg("Job failed, scheduling retry")
	time.AfterFunc(delay, func() {
		job.Status = jobs.JobStatusPending
		if err := q.Publish(ctx, job); err != nil {
			q.log.Error().Err(err).Str("job_id", job.JobID).Msg("Could not re-enqueue job")
			job.Status = jobs.JobStatusFailed
			q.save(context.Background(), job)
		}
	})
}

func (q *Queue) save(ctx context.Context, job *jobs.BatchJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		q.log.Warn().Err(err).Str("job_id", job.JobID).Msg("Could not save job state")
	}
}

// Stop closes the queue and waits for in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue without a deadline.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
