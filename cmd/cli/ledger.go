package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Gargee-Buva/Finora/internal/ledger"
)

const dateLayout = "2006-01-02"

func (c *cli) userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users"}

	var name, email string
	register := &cobra.Command{
		Use:   "register",
		Short: "Register a user with monthly reports enabled",
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, setting, err := c.app.Ledger.RegisterUser(cmd.Context(), name, email)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"user": user, "reportSetting": setting})
		},
	}
	register.Flags().StringVar(&name, "name", "", "Display name")
	register.Flags().StringVar(&email, "email", "", "Email address reports are sent to")
	_ = register.MarkFlagRequired("name")
	_ = register.MarkFlagRequired("email")

	cmd.AddCommand(register)
	return cmd
}

func (c *cli) transactionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "transaction", Short: "Record transactions"}

	var (
		in   ledger.NewTransaction
		date string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction, optionally recurring",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := parseDate(date, time.Now())
			if err != nil {
				return err
			}
			in.Date = d
			tx, err := c.app.Ledger.CreateTransaction(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tx)
		},
	}
	f := add.Flags()
	f.StringVar(&in.UserID, "user", "", "Owning user ID")
	f.StringVar(&in.Type, "type", "EXPENSE", "INCOME or EXPENSE")
	f.StringVar(&in.Title, "title", "", "Title")
	f.Float64Var(&in.Amount, "amount", 0, "Amount in rupees")
	f.StringVar(&in.Category, "category", "", "Category")
	f.StringVar(&in.Description, "description", "", "Description")
	f.StringVar(&date, "date", "", "Date as YYYY-MM-DD (default today)")
	f.StringVar(&in.PaymentMethod, "payment-method", "", "CASH, CARD, UPI or BANK_TRANSFER")
	f.StringVar(&in.Status, "status", "", "PENDING, COMPLETED or FAILED")
	f.BoolVar(&in.IsRecurring, "recurring", false, "Repeat this transaction")
	f.StringVar(&in.RecurringInterval, "interval", "", "DAILY, WEEKLY, MONTHLY or YEARLY")
	_ = add.MarkFlagRequired("user")
	_ = add.MarkFlagRequired("title")
	_ = add.MarkFlagRequired("amount")

	cmd.AddCommand(add)
	return cmd
}

func (c *cli) reportsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "reports", Short: "Manage report settings and history"}

	toggle := func(use, short string, enabled bool) *cobra.Command {
		var userID string
		sub := &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, _ []string) error {
				setting, err := c.app.Ledger.SetReportsEnabled(cmd.Context(), userID, enabled)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), setting)
			},
		}
		sub.Flags().StringVar(&userID, "user", "", "User ID")
		_ = sub.MarkFlagRequired("user")
		return sub
	}

	var (
		userID         string
		page, pageSize int
	)
	history := &cobra.Command{
		Use:   "history",
		Short: "List a user's reports, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := c.app.Ledger.ReportHistory(cmd.Context(), userID, page, pageSize)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	history.Flags().StringVar(&userID, "user", "", "User ID")
	history.Flags().IntVar(&page, "page", 1, "Page number")
	history.Flags().IntVar(&pageSize, "size", 20, "Page size")
	_ = history.MarkFlagRequired("user")

	cmd.AddCommand(
		toggle("enable", "Turn monthly reports on", true),
		toggle("disable", "Turn monthly reports off", false),
		history,
		c.previewCmd(),
	)
	return cmd
}

// parseDate reads a YYYY-MM-DD date in UTC; empty means today.
func parseDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		now = now.UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return d, nil
}
