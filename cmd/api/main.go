// Command api serves health checks and the batch trigger endpoints, and runs
// the job queue and daily scheduler in-process.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Gargee-Buva/Finora/internal/api"
	"github.com/Gargee-Buva/Finora/internal/app"
	"github.com/Gargee-Buva/Finora/internal/config"
	"github.com/Gargee-Buva/Finora/internal/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	var (
		configFile string
		port       int
	)

	rootCmd := &cobra.Command{
		Use:           "api",
		Short:         "Start the Finora API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context(), configFile, port)
		},
	}
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Optional config file (env and .env are always read)")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (overrides server.port)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, configFile string, port int) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
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

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()

	jq, err := a.StartJobs(workerCtx)
	if err != nil {
		return err
	}

	if cfg.Server.CronSecret == "" {
		log.Warn().Msg("No cron secret configured, trigger endpoints will refuse every request")
	}

	server := &http.Server{
		Addr: ":" + strconv.Itoa(cfg.Server.Port),
		Handler: api.NewRouter(api.Dependencies{
			Publisher:  jq.Queue,
			JobStore:   jq.Store,
			CronSecret: cfg.Server.CronSecret,
			Logger:     log,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("store", cfg.Store.Driver).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server...")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("API server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	cancelWorker()
	if err := jq.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
	return nil
}
