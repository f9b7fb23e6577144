package inmemory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gargee-Buva/Finora/internal/jobs"
)

func newTestQueue(t *testing.T, store jobs.JobStore) *Queue {
	t.Helper()
	q := NewQueue(store, zerolog.Nop(), QueueOptions{RetryDelay: func(int) time.Duration { return 0 }})
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func waitForStatus(t *testing.T, s *Store, jobID string, want jobs.JobStatus) *jobs.BatchJob {
	t.Helper()
	var got *jobs.BatchJob
	require.Eventually(t, func() bool {
		job, err := s.GetJob(context.Background(), jobID)
		if err != nil {
			return false
		}
		got = job
		return job.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func TestQueue_RunsJob(t *testing.T) {
	s := NewStore()
	q := newTestQueue(t, s)

	require.NoError(t, q.Start(context.Background(), func(_ context.Context, job *jobs.BatchJob) error {
		assert.Equal(t, jobs.JobTypeRecurring, job.Type)
		return nil
	}))

	job := &jobs.BatchJob{Type: jobs.JobTypeRecurring, Trigger: "test"}
	require.NoError(t, q.Publish(context.Background(), job))
	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, defaultMaxRetries, job.MaxRetries)

	done := waitForStatus(t, s, job.JobID, jobs.JobStatusCompleted)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	assert.Empty(t, done.Error)
}

func TestQueue_RetriesThenSucceeds(t *testing.T) {
	s := NewStore()
	q := newTestQueue(t, s)

	var calls atomic.Int32
	require.NoError(t, q.Start(context.Background(), func(context.Context, *jobs.BatchJob) error {
		if calls.Add(1) == 1 {
			return errors.New("dataset unavailable")
		}
		return nil
	}))

	job := &jobs.BatchJob{Type: jobs.JobTypeReports}
	require.NoError(t, q.Publish(context.Background(), job))

	done := waitForStatus(t, s, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, 1, done.RetryCount)
	assert.Equal(t, int32(2), calls.Load())
}

func TestQueue_FailsAfterMaxRetries(t *testing.T) {
	s := NewStore()
	q := newTestQueue(t, s)

	var calls atomic.Int32
	require.NoError(t, q.Start(context.Background(), func(context.Context, *jobs.BatchJob) error {
		calls.Add(1)
		return errors.New("permission denied")
	}))

	job := &jobs.BatchJob{Type: jobs.JobTypeReports, MaxRetries: 1}
	require.NoError(t, q.Publish(context.Background(), job))

	failed := waitForStatus(t, s, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, 1, failed.RetryCount)
	assert.Equal(t, "permission denied", failed.Error)
	assert.Equal(t, int32(2), calls.Load())
}

func TestQueue_SingleWorkerSerializesJobs(t *testing.T) {
	s := NewStore()
	q := newTestQueue(t, s)

	var active, maxActive atomic.Int32
	var mu sync.Mutex
	var order []string
	require.NoError(t, q.Start(context.Background(), func(_ context.Context, job *jobs.BatchJob) error {
		n := active.Add(1)
		if n > maxActive.Load() {
			maxActive.Store(n)
		}
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		order = append(order, job.JobID)
		mu.Unlock()
		active.Add(-1)
		return nil
	}))

	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		require.NoError(t, q.Publish(context.Background(), &jobs.BatchJob{JobID: id, Type: jobs.JobTypeRecurring}))
	}
	waitForStatus(t, s, "c", jobs.JobStatusCompleted)

	assert.Equal(t, int32(1), maxActive.Load())
	mu.Lock()
	assert.Equal(t, ids, order)
	mu.Unlock()
}

func TestQueue_Closed(t *testing.T) {
	q := NewQueue(nil, zerolog.Nop(), QueueOptions{})
	require.NoError(t, q.Stop(context.Background()))
	require.NoError(t, q.Stop(context.Background()), "stopping twice is a no-op")

	assert.ErrorIs(t, q.Publish(context.Background(), &jobs.BatchJob{Type: jobs.JobTypeRecurring}), ErrQueueClosed)
	assert.ErrorIs(t, q.Start(context.Background(), func(context.Context, *jobs.BatchJob) error { return nil }), ErrQueueClosed)
}

func TestQueue_StopReleasesBlockedPublisher(t *testing.T) {
	q := NewQueue(nil, zerolog.Nop(), QueueOptions{BufferSize: 1})
	require.NoError(t, q.Publish(context.Background(), &jobs.BatchJob{Type: jobs.JobTypeRecurring}))

	published := make(chan error, 1)
	go func() {
		published <- q.Publish(context.Background(), &jobs.BatchJob{Type: jobs.JobTypeReports})
	}()

	select {
	case err := <-published:
		t.Fatalf("Publish returned %v with a full buffer", err)
	case <-time.After(50 * time.Millisecond):
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))

	select {
	case err := <-published:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("publisher still blocked after Stop")
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2025, 2, 1, 6, 0, 0, 0, time.UTC)

	assert.Error(t, s.SaveJob(ctx, &jobs.BatchJob{}))

	for i, j := range []*jobs.BatchJob{
		{JobID: "j1", Type: jobs.JobTypeRecurring, Status: jobs.JobStatusCompleted},
		{JobID: "j2", Type: jobs.JobTypeReports, Status: jobs.JobStatusFailed},
		{JobID: "j3", Type: jobs.JobTypeRecurring, Status: jobs.JobStatusPending},
	} {
		j.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.SaveJob(ctx, j))
	}

	got, err := s.GetJob(ctx, "j2")
	require.NoError(t, err)
	got.Status = jobs.JobStatusRunning
	again, _ := s.GetJob(ctx, "j2")
	assert.Equal(t, jobs.JobStatusFailed, again.Status, "returned jobs are copies")

	_, err = s.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)

	all, err := s.ListJobs(ctx, jobs.JobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "j3", all[0].JobID)
	assert.Equal(t, "j1", all[2].JobID)

	recurring, err := s.ListJobs(ctx, jobs.JobFilter{Type: jobs.JobTypeRecurring, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, recurring, 1)
	assert.Equal(t, "j1", recurring[0].JobID)

	failed, err := s.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "j2", failed[0].JobID)

	none, err := s.ListJobs(ctx, jobs.JobFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, none)
}
