package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Gargee-Buva/Finora/internal/domain"
	"github.com/Gargee-Buva/Finora/internal/schedule"
)

const monthLayout = "2006-01"

func (c *cli) previewCmd() *cobra.Command {
	var (
		userID string
		month  string
		send   bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Build a monthly report for one user without touching their schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, to, err := monthRange(month, time.Now())
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			user, err := c.app.Store.GetUser(ctx, userID)
			if err != nil {
				return err
			}
			rep, err := c.app.Reports.Generate(ctx, userID, from, to)
			if err != nil {
				return err
			}

			if send {
				if err := c.app.Mailer.SendReport(ctx, user, domain.ReportFrequencyMonthly, rep); err != nil {
					return err
				}
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), rep)
			}

			msg, err := c.app.Mailer.Render(user, domain.ReportFrequencyMonthly, rep)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Subject: %s\n\n%s", msg.Subject, msg.Text)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().StringVar(&month, "month", "", "Month as YYYY-MM (default last month)")
	cmd.Flags().BoolVar(&send, "send", false, "Also email the report")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report data instead of the email text")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// monthRange returns the bounds of month, or of the month before now when
// month is empty.
func monthRange(month string, now time.Time) (from, to time.Time, err error) {
	if month == "" {
		from, to = schedule.PreviousMonth(now)
		return from, to, nil
	}
	m, err := time.Parse(monthLayout, month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q, want YYYY-MM", month)
	}
	from, to = schedule.PreviousMonth(m.AddDate(0, 1, 0))
	return from, to, nil
}
