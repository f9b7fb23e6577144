// Package jobs defines batch jobs and the queue abstractions that run them.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Gargee-Buva/Finora/internal/domain"
)

// ErrJobNotFound is returned by a JobStore for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// JobType identifies which batch a job runs.
type JobType string

const (
	// JobTypeRecurring materializes due recurring transactions.
	JobTypeRecurring JobType = "recurring"
	// JobTypeReports generates and emails due reports.
	JobTypeReports JobType = "reports"
)

// ParseJobType accepts "recurring" or "reports" in any case.
func ParseJobType(s string) (JobType, error) {
	switch t := JobType(strings.ToLower(strings.TrimSpace(s))); t {
	case JobTypeRecurring, JobTypeReports:
		return t, nil
	}
	return "", fmt.Errorf("unknown job type %q (want %q or %q)", s, JobTypeRecurring, JobTypeReports)
}

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// BatchJob is one requested run of a batch processor.
type BatchJob struct {
	JobID string  `json:"job_id"`
	Type  JobType `json:"type"`

	// Trigger records who asked for the run: scheduler, http or cli.
	Trigger string `json:"trigger,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	// Summary is the outcome of the most recent attempt.
	Summary *domain.BatchSummary `json:"summary,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is the read-only view of a job.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *BatchJob) GetID() string        { return j.JobID }
func (j *BatchJob) GetType() JobType     { return j.Type }
func (j *BatchJob) GetStatus() JobStatus { return j.Status }

// Publisher enqueues jobs.
type Publisher interface {
	Publish(ctx context.Context, job *BatchJob) error
	Close() error
}

// Consumer runs queued jobs through a handler.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error marks the attempt failed
// and lets the queue retry it.
type JobHandler func(ctx context.Context, job *BatchJob) error

// JobStore keeps job state for status queries.
type JobStore interface {
	SaveJob(ctx context.Context, job *BatchJob) error

	// GetJob returns ErrJobNotFound for unknown IDs.
	GetJob(ctx context.Context, jobID string) (*BatchJob, error)

	// ListJobs returns matching jobs, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*BatchJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Type   JobType
	Status JobStatus
	Limit  int
	Offset int
}
