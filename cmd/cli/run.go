package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Gargee-Buva/Finora/internal/jobs"
)

func (c *cli) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "run <recurring|reports>",
		Short:     "Run a batch job once and print its summary",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(jobs.JobTypeRecurring), string(jobs.JobTypeReports)},
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := jobs.ParseJobType(args[0])
			if err != nil {
				return err
			}
			runner, err := c.app.Runner(t)
			if err != nil {
				return err
			}

			summary := runner.Run(cmd.Context())
			if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
				return err
			}
			if !summary.Success {
				return fmt.Errorf("%s batch failed: %s", t, summary.Error)
			}
			return nil
		},
	}
}
