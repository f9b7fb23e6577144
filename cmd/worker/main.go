// Command worker runs the job queue and the daily scheduler without an HTTP
// surface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Gargee-Buva/Finora/internal/app"
	"github.com/Gargee-Buva/Finora/internal/config"
	"github.com/Gargee-Buva/Finora/internal/jobs"
	"github.com/Gargee-Buva/Finora/internal/logger"
)

func main() {
	var (
		configFile string
		runNow     bool
	)

	rootCmd := &cobra.Command{
		Use:           "worker",
		Short:         "Run Finora's batch jobs on a daily schedule",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context(), configFile, runNow)
		},
	}
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Optional config file")
	rootCmd.Flags().BoolVar(&runNow, "run-now", false, "Publish both batch jobs at startup")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runWorker(ctx context.Context, configFile string, runNow bool) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	log.Info().Str("store", cfg.Store.Driver).Msg("Starting worker service")

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()

	jq, err := a.StartJobs(workerCtx)
	if err != nil {
		return err
	}

	if runNow {
		for _, t := range []jobs.JobType{jobs.JobTypeRecurring, jobs.JobTypeReports} {
			if err := jq.Queue.Publish(ctx, &jobs.BatchJob{Type: t, Trigger: "startup"}); err != nil {
				log.Error().Err(err).Str("job_type", string(t)).Msg("Could not publish startup job")
			}
		}
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cancelWorker()
	if err := jq.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Worker stopped")
	return nil
}
