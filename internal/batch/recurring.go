package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/Gargee-Buva/Finora/internal/domain"
	"github.com/Gargee-Buva/Finora/internal/schedule"
	"github.com/Gargee-Buva/Finora/internal/store"
)

// RecurringProcessor materializes one occurrence of every due recurring
// transaction and advances its schedule.
type RecurringProcessor struct {
	store store.RecurringStore
	log   zerolog.Logger
	opts  Options
	guard runGuard
}

// NewRecurringProcessor creates a RecurringProcessor.
func NewRecurringProcessor(s store.RecurringStore, log zerolog.Logger, opts Options) *RecurringProcessor {
	return &RecurringProcessor{
		store: s,
		log:   log.With().Str("batch", "recurring").Logger(),
		opts:  opts.withDefaults(DefaultRecurringCommitTimeout),
	}
}

// Run processes every recurring transaction due at the start of the run.
func (p *RecurringProcessor) Run(ctx context.Context) domain.BatchSummary {
	if !p.guard.acquire() {
		p.log.Warn().Msg("Recurring run skipped, previous run still active")
		return busySummary()
	}
	defer p.guard.release()

	now := p.opts.Now()
	log := p.log.With().Time("run_at", now).Logger()
	log.Info().Msg("Recurring run started")

	cur, err := p.store.DueRecurring(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open due recurring transactions")
		return domain.BatchSummary{Success: false, Error: fmt.Sprintf("recurring run failed: %v", err)}
	}
	defer cur.Close()

	var processed, failed int
	for {
		rec, err := cur.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			log.Error().Err(err).Int("processed", processed).Int("failed", failed).Msg("Failed to read due recurring transactions")
			return domain.BatchSummary{
				Success:        false,
				ProcessedCount: processed,
				FailedCount:    failed,
				Error:          fmt.Sprintf("recurring run failed: %v", err),
			}
		}

		recLog := log.With().Str("transaction_id", rec.ID).Str("user_id", rec.UserID).Logger()
		if err := p.process(ctx, rec, now, recLog); err != nil {
			failed++
			recLog.Error().Err(err).Msg("Failed to process recurring transaction")
			continue
		}
		processed++
	}

	log.Info().Int("processed", processed).Int("failed", failed).Msg("Recurring run finished")
	return domain.BatchSummary{Success: true, ProcessedCount: processed, FailedCount: failed}
}

func (p *RecurringProcessor) process(ctx context.Context, rec *domain.Transaction, now time.Time, log zerolog.Logger) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if !rec.IsRecurring {
		return fmt.Errorf("%w: transaction %s is not recurring", domain.ErrInvalidTransaction, rec.ID)
	}
	interval, ok := schedule.ParseInterval(string(rec.RecurringInterval))
	if !ok || interval == domain.IntervalNone {
		return fmt.Errorf("%w: transaction %s has unknown interval %q", domain.ErrInvalidTransaction, rec.ID, rec.RecurringInterval)
	}

	next := schedule.NextOccurrence(*rec.NextRecurrenceDate, interval)
	occurrence := rec.Materialize(p.opts.NewID(), now)

	cctx, cancel := context.WithTimeout(ctx, p.opts.CommitTimeout)
	defer cancel()
	if err := p.store.MaterializeRecurring(cctx, occurrence, rec.ID, next, now); err != nil {
		return fmt.Errorf("materialize: %w", err)
	}

	log.Debug().Str("occurrence_id", occurrence.ID).Time("next_recurrence_date", next).Msg("Recurring transaction materialized")
	return nil
}
