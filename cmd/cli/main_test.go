package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gargee-Buva/Finora/internal/domain"
	"github.com/Gargee-Buva/Finora/internal/ledger"
)

// setupEnv points the CLI at a throwaway SQLite file with no external
// services configured.
func setupEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("FINORA_STORE_DRIVER", "sqlite")
	t.Setenv("FINORA_STORE_SQLITE_PATH", filepath.Join(dir, "finora.db"))
	t.Setenv("FINORA_LOG_LEVEL", "error")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("FINORA_GEMINI_API_KEY", "")
	t.Setenv("RESEND_API_KEY", "")
	t.Setenv("FINORA_MAIL_RESEND_API_KEY", "")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, &stdout, &stderr)
	return stdout.String(), err
}

func mustExecute(t *testing.T, out any, args ...string) {
	t.Helper()
	stdout, err := execute(t, args...)
	require.NoError(t, err, stdout)
	if out != nil {
		require.NoError(t, json.Unmarshal([]byte(stdout), out), stdout)
	}
}

func TestCLI_LedgerAndBatch(t *testing.T) {
	setupEnv(t)

	var registered struct {
		User          domain.User          `json:"user"`
		ReportSetting domain.ReportSetting `json:"reportSetting"`
	}
	mustExecute(t, &registered, "user", "register", "--name", "Asha", "--email", "asha@example.com")
	userID := registered.User.ID
	require.NotEmpty(t, userID)
	assert.True(t, registered.ReportSetting.Enabled)

	var salary domain.Transaction
	mustExecute(t, &salary, "transaction", "add", "--user", userID, "--type", "income",
		"--title", "Salary", "--amount", "1000", "--category", "salary", "--date", "2025-01-03")
	assert.Equal(t, int64(100000), salary.Amount)

	mustExecute(t, nil, "transaction", "add", "--user", userID,
		"--title", "Groceries", "--amount", "250.50", "--category", "food", "--date", "2025-01-10", "--payment-method", "upi")

	var rent domain.Transaction
	mustExecute(t, &rent, "transaction", "add", "--user", userID,
		"--title", "Rent", "--amount", "500", "--recurring", "--interval", "monthly")
	assert.True(t, rent.IsRecurring)
	require.NotNil(t, rent.NextRecurrenceDate)
	assert.True(t, rent.NextRecurrenceDate.After(time.Now()))

	var summary domain.BatchSummary
	mustExecute(t, &summary, "run", "recurring")
	assert.Equal(t, domain.BatchSummary{Success: true}, summary)

	var rep domain.AggregatedReport
	mustExecute(t, &rep, "reports", "preview", "--user", userID, "--month", "2025-01", "--json")
	assert.Equal(t, "January 1, 2025 - January 31, 2025", rep.Period)
	assert.Equal(t, 1000.0, rep.Summary.Income)
	assert.Equal(t, 250.5, rep.Summary.Expenses)
	assert.NotEmpty(t, rep.Insights)

	text, err := execute(t, "reports", "preview", "--user", userID, "--month", "2025-01")
	require.NoError(t, err)
	assert.Contains(t, text, "Subject: ")
	assert.Contains(t, text, "January 1, 2025")

	var setting domain.ReportSetting
	mustExecute(t, &setting, "reports", "disable", "--user", userID)
	assert.False(t, setting.Enabled)
	assert.Nil(t, setting.NextReportDate)

	var page ledger.ReportPage
	mustExecute(t, &page, "reports", "history", "--user", userID)
	assert.Zero(t, page.TotalCount)
	assert.Equal(t, 1, page.PageNumber)
}

func TestCLI_Errors(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "run", "payroll")
	assert.ErrorContains(t, err, "unknown job type")

	_, err = execute(t, "user", "register", "--name", "NoEmail")
	assert.Error(t, err)

	_, err = execute(t, "transaction", "add", "--user", "ghost", "--title", "X", "--amount", "1")
	assert.Error(t, err)

	_, err = execute(t, "receipt", "scan", "gs://bucket/r.jpg")
	assert.ErrorContains(t, err, "no Gemini API key")

	_, err = execute(t, "receipt", "scan", "gs://bucket/r.jpg", "--save")
	assert.ErrorContains(t, err, "--user is required")
}

func TestMonthRange(t *testing.T) {
	from, to, err := monthRange("2024-02", time.Now())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), to)

	from, _, err = monthRange("", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), from)

	_, _, err = monthRange("Jan 2025", time.Now())
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	now := time.Date(2025, 3, 9, 22, 15, 0, 0, time.UTC)
	d, err := parseDate("", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), d)

	d, err = parseDate("2024-12-31", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), d)

	_, err = parseDate("31/12/2024", now)
	assert.Error(t, err)
}

func TestReceiptObjectName(t *testing.T) {
	assert.Equal(t, "receipts/abc.jpg", receiptObjectName("abc", ".jpg"))
}
