package jobs

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gargee-Buva/Finora/internal/batch"
	"github.com/Gargee-Buva/Finora/internal/domain"
)

type mockRunner struct {
	RunFunc func(ctx context.Context) domain.BatchSummary
}

func (m *mockRunner) Run(ctx context.Context) domain.BatchSummary { return m.RunFunc(ctx) }

func TestParseJobType(t *testing.T) {
	got, err := ParseJobType(" Reports ")
	require.NoError(t, err)
	assert.Equal(t, JobTypeReports, got)

	got, err = ParseJobType("recurring")
	require.NoError(t, err)
	assert.Equal(t, JobTypeRecurring, got)

	_, err = ParseJobType("payroll")
	assert.Error(t, err)
}

func TestBatchHandler(t *testing.T) {
	runners := map[JobType]batch.Runner{
		JobTypeRecurring: &mockRunner{RunFunc: func(context.Context) domain.BatchSummary {
			return domain.BatchSummary{Success: true, ProcessedCount: 4, FailedCount: 1}
		}},
		JobTypeReports: &mockRunner{RunFunc: func(context.Context) domain.BatchSummary {
			return domain.BatchSummary{Success: false, Error: "dataset not found"}
		}},
	}
	handle := NewBatchHandler(runners, zerolog.Nop())

	job := &BatchJob{JobID: "j1", Type: JobTypeRecurring}
	require.NoError(t, handle(context.Background(), job), "record-level failures do not fail the job")
	require.NotNil(t, job.Summary)
	assert.Equal(t, 4, job.Summary.ProcessedCount)

	job = &BatchJob{JobID: "j2", Type: JobTypeReports}
	err := handle(context.Background(), job)
	assert.ErrorContains(t, err, "dataset not found")
	require.NotNil(t, job.Summary)
	assert.False(t, job.Summary.Success)

	assert.Error(t, handle(context.Background(), &BatchJob{JobID: "j3", Type: "payroll"}))
}
