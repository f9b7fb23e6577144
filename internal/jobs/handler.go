package jobs

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Gargee-Buva/Finora/internal/batch"
)

// NewBatchHandler returns a JobHandler that dispatches each job to the runner
// registered for its type. A run that reports Success false fails the attempt;
// per-record failures inside a successful run do not.
func NewBatchHandler(runners map[JobType]batch.Runner, log zerolog.Logger) JobHandler {
	return func(ctx context.Context, job *BatchJob) error {
		runner, ok := runners[job.Type]
		if !ok {
			return fmt.Errorf("no runner registered for job type %q", job.Type)
		}

		jl := log.With().Str("job_id", job.JobID).Str("job_type", string(job.Type)).Logger()
		jl.Info().Int("attempt", job.RetryCount+1).Msg("Batch job started")

		summary := runner.Run(ctx)
		job.Summary = &summary

		ev := jl.Info()
		if !summary.Success {
			ev = jl.Error()
		}
		ev.Bool("success", summary.Success).
			Int("processed", summary.ProcessedCount).
			Int("failed", summary.FailedCount).
			Str("error", summary.Error).
			Msg("Batch job finished")

		if !summary.Success {
			return fmt.Errorf("%s batch: %s", job.Type, summary.Error)
		}
		return nil
	}
}
