// Package app assembles Finora's services from a config.Config. The
// executables under cmd/ share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Gargee-Buva/Finora/internal/ai"
	"github.com/Gargee-Buva/Finora/internal/batch"
	"github.com/Gargee-Buva/Finora/internal/config"
	"github.com/Gargee-Buva/Finora/internal/gcs"
	infrabq "github.com/Gargee-Buva/Finora/internal/infra/bigquery"
	"github.com/Gargee-Buva/Finora/internal/infra/sqlite"
	"github.com/Gargee-Buva/Finora/internal/insights"
	"github.com/Gargee-Buva/Finora/internal/jobs"
	"github.com/Gargee-Buva/Finora/internal/ledger"
	"github.com/Gargee-Buva/Finora/internal/mailer"
	"github.com/Gargee-Buva/Finora/internal/receipts"
	"github.com/Gargee-Buva/Finora/internal/report"
	"github.com/Gargee-Buva/Finora/internal/store"
)

// ErrNoAI is returned by features that need a Gemini API key when none is
// configured.
var ErrNoAI = errors.New("no Gemini API key configured")

// App holds the long-lived services.
type App struct {
	Config config.Config
	Log    zerolog.Logger
	Store  store.Store

	// AI is nil without an API key; insights then use the fallback text.
	AI *ai.Client

	Reports   *report.Generator
	Mailer    *mailer.ReportMailer
	Ledger    *ledger.Service
	Recurring *batch.RecurringProcessor
	Reporting *batch.ReportProcessor
}

// New opens the store and builds every service.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("app.New: %w", err)
	}

	var aiClient *ai.Client
	if cfg.Gemini.APIKey != "" {
		aiClient, err = ai.New(ctx, ai.Config{
			APIKey: cfg.Gemini.APIKey,
			Models: cfg.Gemini.Models,
			Retry:  cfg.Gemini.RetryPolicy(),
		}, log.With().Str("component", "ai").Logger())
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("app.New: %w", err)
		}
	} else {
		log.Warn().Msg("No Gemini API key configured, reports use fallback insights")
	}

	sender, err := NewSender(cfg, log)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("app.New: %w", err)
	}

	var textGen insights.TextGenerator
	if aiClient != nil {
		textGen = aiClient
	}
	insightGen := insights.NewGenerator(textGen, cfg.Report.Locale, cfg.Report.Currency, log.With().Str("component", "insights").Logger())
	reports := report.NewGenerator(report.NewAggregator(st), insightGen)
	reportMailer := mailer.NewReportMailer(sender, cfg.Report.Locale, cfg.Report.Currency, log.With().Str("component", "mailer").Logger())

	return &App{
		Config:    cfg,
		Log:       log,
		Store:     st,
		AI:        aiClient,
		Reports:   reports,
		Mailer:    reportMailer,
		Ledger:    ledger.NewService(st, log.With().Str("component", "ledger").Logger(), ledger.Options{}),
		Recurring: batch.NewRecurringProcessor(st, log, batch.Options{CommitTimeout: cfg.Batch.RecurringCommitTimeout}),
		Reporting: batch.NewReportProcessor(st, reports, reportMailer, log, batch.Options{CommitTimeout: cfg.Batch.ReportCommitTimeout}),
	}, nil
}

// OpenStore opens the configured persistence adapter.
func OpenStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		return sqlite.Open(ctx, sqlite.Settings{Path: cfg.Store.SQLitePath, PageSize: cfg.Store.PageSize})
	case config.DriverBigQuery:
		return infrabq.NewStore(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.DatasetID)
	}
	return nil, fmt.Errorf("OpenStore: unknown driver %q", cfg.Store.Driver)
}

// NewSender returns a Resend sender when an API key is configured and a
// logging sender otherwise.
func NewSender(cfg config.Config, log zerolog.Logger) (mailer.Sender, error) {
	if cfg.Mail.ResendAPIKey == "" {
		log.Warn().Msg("No Resend API key configured, report emails are only logged")
		return mailer.NewLogSender(log.With().Str("component", "mailer").Logger()), nil
	}
	return mailer.NewResendSender(cfg.Mail.ResendAPIKey, cfg.Mail.From)
}

// Runners maps each job type to its batch processor.
func (a *App) Runners() map[jobs.JobType]batch.Runner {
	return map[jobs.JobType]batch.Runner{
		jobs.JobTypeRecurring: a.Recurring,
		jobs.JobTypeReports:   a.Reporting,
	}
}

// Runner returns the processor for t.
func (a *App) Runner(t jobs.JobType) (batch.Runner, error) {
	r, ok := a.Runners()[t]
	if !ok {
		return nil, fmt.Errorf("no runner for job type %q", t)
	}
	return r, nil
}

// NewScanner builds a receipt scanner. The caller closes the returned
// storage client.
func (a *App) NewScanner(ctx context.Context) (*receipts.Scanner, *gcs.Client, error) {
	if a.AI == nil {
		return nil, nil, ErrNoAI
	}
	objects, err := gcs.NewClient(ctx, a.Config.GCS.Bucket)
	if err != nil {
		return nil, nil, fmt.Errorf("NewScanner: %w", err)
	}
	return receipts.NewScanner(objects, a.AI, a.Log.With().Str("component", "receipts").Logger()), objects, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}
