// Command migrate applies the BigQuery schema migrations.
package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Gargee-Buva/Finora/internal/config"
	infrabq "github.com/Gargee-Buva/Finora/internal/infra/bigquery"
	"github.com/Gargee-Buva/Finora/internal/logger"
)

type options struct {
	configFile string
	projectID  string
	datasetID  string
	appliedBy  string
	dir        string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply Finora's BigQuery schema migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Optional config file")
	root.PersistentFlags().StringVar(&opts.projectID, "project", "", "GCP project ID (defaults to bigquery.project_id)")
	root.PersistentFlags().StringVar(&opts.datasetID, "dataset", "", "BigQuery dataset ID (defaults to bigquery.dataset_id)")
	root.PersistentFlags().StringVar(&opts.appliedBy, "applied-by", "migrate-cli", "Name recorded in schema_migrations")
	root.PersistentFlags().StringVar(&opts.dir, "dir", "", "Read migrations from this directory instead of the embedded set")

	root.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd.Context(), opts, func(ctx context.Context, m *infrabq.Migrator, migrations []infrabq.Migration, log zerolog.Logger) error {
				n, err := m.Up(ctx, migrations)
				if err != nil {
					return err
				}
				if n == 0 {
					log.Info().Msg("No new migrations to apply, dataset is up to date")
				} else {
					log.Info().Int("applied", n).Msg("Migrations applied")
				}
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd.Context(), opts, func(ctx context.Context, m *infrabq.Migrator, migrations []infrabq.Migration, _ zerolog.Logger) error {
				applied, err := m.Applied(ctx)
				if err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), migrations, applied)
				return nil
			})
		},
	})

	return root
}

func withMigrator(ctx context.Context, opts *options, fn func(context.Context, *infrabq.Migrator, []infrabq.Migration, zerolog.Logger) error) error {
	projectID, datasetID, err := resolveTarget(opts)
	if err != nil {
		return err
	}
	log := logger.Default().With().Str("project", projectID).Str("dataset", datasetID).Logger()

	migrations, err := infrabq.LoadMigrations(migrationSource(opts.dir), projectID, datasetID)
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	log.Info().Int("count", len(migrations)).Msg("Migrations found")

	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return fmt.Errorf("creating BigQuery client: %w", err)
	}
	defer client.Close()

	return fn(ctx, infrabq.NewMigrator(client, projectID, datasetID, opts.appliedBy, log), migrations, log)
}

// resolveTarget prefers flags and falls back to the loaded configuration.
func resolveTarget(opts *options) (projectID, datasetID string, err error) {
	projectID, datasetID = opts.projectID, opts.datasetID
	if projectID == "" || datasetID == "" {
		cfg, err := config.Load(opts.configFile)
		if err != nil {
			return "", "", err
		}
		if projectID == "" {
			projectID = cfg.BigQuery.ProjectID
		}
		if datasetID == "" {
			datasetID = cfg.BigQuery.DatasetID
		}
	}
	if projectID == "" {
		return "", "", fmt.Errorf("a GCP project is required: pass --project or set FINORA_BIGQUERY_PROJECT_ID")
	}
	if datasetID == "" {
		return "", "", fmt.Errorf("a dataset is required: pass --dataset or set FINORA_BIGQUERY_DATASET_ID")
	}
	return projectID, datasetID, nil
}

func migrationSource(dir string) fs.FS {
	if dir == "" {
		return infrabq.EmbeddedMigrations()
	}
	return os.DirFS(dir)
}

func printStatus(w io.Writer, migrations []infrabq.Migration, applied []infrabq.AppliedMigration) {
	pending, changed := infrabq.Pending(migrations, applied)

	isPending := make(map[int]bool, len(pending))
	for _, p := range pending {
		isPending[p.Version] = true
	}
	isChanged := make(map[int]bool, len(changed))
	for _, c := range changed {
		isChanged[c.Version] = true
	}

	for _, m := range migrations {
		state := "applied"
		switch {
		case isPending[m.Version]:
			state = "pending"
		case isChanged[m.Version]:
			state = "changed"
		}
		fmt.Fprintf(w, "%04d_%s\t%s\n", m.Version, m.Name, state)
	}
}
