package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/Gargee-Buva/Finora/internal/domain"
	"github.com/Gargee-Buva/Finora/internal/mailer"
	"github.com/Gargee-Buva/Finora/internal/schedule"
	"github.com/Gargee-Buva/Finora/internal/store"
)

// ReportGenerator builds a user's report over [from, to].
type ReportGenerator interface {
	Generate(ctx context.Context, userID string, from, to time.Time) (*domain.AggregatedReport, error)
}

// ReportProcessor sends the previous month's report for every due setting
// and records the outcome.
type ReportProcessor struct {
	store  store.ReportStore
	gen    ReportGenerator
	sender mailer.ReportSender
	log    zerolog.Logger
	opts   Options
	guard  runGuard
}

// NewReportProcessor creates a ReportProcessor.
func NewReportProcessor(s store.ReportStore, gen ReportGenerator, sender mailer.ReportSender, log zerolog.Logger, opts Options) *ReportProcessor {
	return &ReportProcessor{
		store:  s,
		gen:    gen,
		sender: sender,
		log:    log.With().Str("batch", "reports").Logger(),
		opts:   opts.withDefaults(DefaultReportCommitTimeout),
	}
}

// Run processes every report setting due at the start of the run.
func (p *ReportProcessor) Run(ctx context.Context) domain.BatchSummary {
	if !p.guard.acquire() {
		p.log.Warn().Msg("Report run skipped, previous run still active")
		return busySummary()
	}
	defer p.guard.release()

	now := p.opts.Now()
	from, to := schedule.PreviousMonth(now)
	log := p.log.With().Time("run_at", now).Time("period_from", from).Time("period_to", to).Logger()
	log.Info().Msg("Report run started")

	cur, err := p.store.DueReportSettings(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open due report settings")
		return domain.BatchSummary{Success: false, Error: fmt.Sprintf("report run failed: %v", err)}
	}
	defer cur.Close()

	var processed, failed int
	for {
		due, err := cur.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			log.Error().Err(err).Int("processed", processed).Int("failed", failed).Msg("Failed to read due report settings")
			return domain.BatchSummary{
				Success:        false,
				ProcessedCount: processed,
				FailedCount:    failed,
				Error:          fmt.Sprintf("report run failed: %v", err),
			}
		}

		setLog := log.With().Str("setting_id", due.Setting.ID).Str("user_id", due.Setting.UserID).Logger()
		if due.Owner == nil {
			setLog.Warn().Msg("Report setting has no owner, skipping")
			continue
		}

		outcome := p.attempt(ctx, due, from, to, now, setLog)

		cctx, cancel := context.WithTimeout(ctx, p.opts.CommitTimeout)
		err = p.store.RecordReportOutcome(cctx, outcome)
		cancel()
		if err != nil {
			failed++
			setLog.Error().Err(err).Str("status", string(outcome.Report.Status)).Msg("Failed to record report outcome")
			continue
		}
		processed++
		setLog.Info().Str("report_id", outcome.Report.ID).Str("status", string(outcome.Report.Status)).Msg("Report processed")
	}

	log.Info().Int("processed", processed).Int("failed", failed).Msg("Report run finished")
	return domain.BatchSummary{Success: true, ProcessedCount: processed, FailedCount: failed}
}

// attempt generates and emails one report and returns what must be recorded.
// Generation and delivery failures are recorded as FAILED, never returned.
func (p *ReportProcessor) attempt(ctx context.Context, due *domain.DueReportSetting, from, to, now time.Time, log zerolog.Logger) store.ReportOutcome {
	status := domain.ReportStatusFailed
	period := schedule.PeriodLabel(from, to)

	rep, err := p.gen.Generate(ctx, due.Owner.ID, from, to)
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate report")
	} else {
		period = rep.Period
		freq := due.Setting.Frequency
		if freq == "" {
			freq = domain.ReportFrequencyMonthly
		}
		if err := p.sender.SendReport(ctx, due.Owner, freq, rep); err != nil {
			log.Error().Err(err).Msg("Failed to email report")
		} else {
			status = domain.ReportStatusSent
		}
	}

	outcome := store.ReportOutcome{
		Report: domain.Report{
			ID:        p.opts.NewID(),
			UserID:    due.Owner.ID,
			Period:    period,
			SentDate:  now,
			Status:    status,
			CreatedAt: now,
		},
		SettingID:      due.Setting.ID,
		NextReportDate: schedule.NextReportDate(&now, now),
	}
	if status == domain.ReportStatusSent {
		sent := now
		outcome.LastSentDate = &sent
	}
	return outcome
}
