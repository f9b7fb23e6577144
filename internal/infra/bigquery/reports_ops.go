package bigquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/Gargee-Buva/Finora/internal/domain"
	"github.com/Gargee-Buva/Finora/internal/store"
)

const settingColumns = `s.setting_id, s.user_id, s.enabled, s.frequency, s.next_report_date, s.last_sent_date, s.created_ts, s.updated_ts`

const settingNotFound = "report setting not found"

type dueReportCursor struct {
	*rowCursor[dueSettingRow, *domain.DueReportSetting]
}

func (c dueReportCursor) Next() (*domain.DueReportSetting, error) { return c.next() }

// DueReportSettings streams enabled settings due at or before now with their
// owners joined in. Settings whose user is gone come back with a nil Owner.
func (s *Store) DueReportSettings(ctx context.Context, now time.Time) (store.DueReportCursor, error) {
	sql := fmt.Sprintf(`
		SELECT %s,
			u.user_id AS owner_id,
			u.name AS owner_name,
			u.email AS owner_email,
			u.created_ts AS owner_created_ts
		FROM %s s
		LEFT JOIN %s u ON u.user_id = s.user_id
		WHERE s.enabled
		  AND s.next_report_date IS NOT NULL
		  AND s.next_report_date <= @now
		ORDER BY s.setting_id
	`, settingColumns, s.table(reportSettingsTable), s.table(usersTable))

	it, err := s.read(ctx, sql, []bigquery.QueryParameter{{Name: "now", Value: now.UTC()}})
	if err != nil {
		return nil, fmt.Errorf("DueReportSettings: %w", err)
	}
	return dueReportCursor{&rowCursor[dueSettingRow, *domain.DueReportSetting]{
		it:      it,
		convert: (*dueSettingRow).toDomain,
	}}, nil
}

// recordOutcomeScript returns the transaction script used by RecordReportOutcome.
func recordOutcomeScript(reports, settings string, outcome store.ReportOutcome) (string, []bigquery.QueryParameter) {
	sql := fmt.Sprintf(`
		BEGIN TRANSACTION;

		ASSERT EXISTS (SELECT 1 FROM %[2]s WHERE setting_id = @setting_id) AS '%[3]s';

		INSERT INTO %[1]s (report_id, user_id, period, sent_ts, status, created_ts)
		VALUES (@report_id, @user_id, @period, @sent_ts, @status, @created_ts);

		UPDATE %[2]s
		SET next_report_date = @next_report_date,
		    last_sent_date = @last_sent_date,
		    updated_ts = @created_ts
		WHERE setting_id = @setting_id;

		COMMIT TRANSACTION;
	`, reports, settings, settingNotFound)

	r := outcome.Report
	params := []bigquery.QueryParameter{
		{Name: "report_id", Value: r.ID},
		{Name: "user_id", Value: r.UserID},
		{Name: "period", Value: r.Period},
		{Name: "sent_ts", Value: r.SentDate.UTC()},
		{Name: "status", Value: string(r.Status)},
		{Name: "created_ts", Value: r.CreatedAt.UTC()},
		{Name: "setting_id", Value: outcome.SettingID},
		{Name: "next_report_date", Value: outcome.NextReportDate.UTC()},
		{Name: "last_sent_date", Value: nullTimestamp(outcome.LastSentDate)},
	}
	return sql, params
}

// RecordReportOutcome inserts the report record and advances the setting
// inside one BigQuery transaction.
func (s *Store) RecordReportOutcome(ctx context.Context, outcome store.ReportOutcome) error {
	sql, params := recordOutcomeScript(s.table(reportsTable), s.table(reportSettingsTable), outcome)
	if err := s.exec(ctx, sql, params); err != nil {
		if assertFailed(err, settingNotFound) {
			return fmt.Errorf("RecordReportOutcome: setting %s: %w", outcome.SettingID, store.ErrNotFound)
		}
		return fmt.Errorf("RecordReportOutcome: %w", err)
	}
	return nil
}

// GetReportSetting returns the user's report setting.
func (s *Store) GetReportSetting(ctx context.Context, userID string) (*domain.ReportSetting, error) {
	sql := fmt.Sprintf(`SELECT %s FROM %s s WHERE s.user_id = @user_id LIMIT 1`, settingColumns, s.table(reportSettingsTable))

	it, err := s.read(ctx, sql, []bigquery.QueryParameter{{Name: "user_id", Value: userID}})
	if err != nil {
		return nil, fmt.Errorf("GetReportSetting: %w", err)
	}

	var row ReportSettingRow
	err = it.Next(&row)
	if errors.Is(err, iterator.Done) {
		return nil, fmt.Errorf("GetReportSetting: user %s: %w", userID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetReportSetting: iter next: %w", err)
	}
	return row.toDomain(), nil
}

// mergeSettingSQL upserts one setting keyed by user_id.
func mergeSettingSQL(table string, r *ReportSettingRow) (string, []bigquery.QueryParameter) {
	sql := fmt.Sprintf(`
		MERGE %s t
		USING (SELECT @user_id AS user_id) src
		ON t.user_id = src.user_id
		WHEN MATCHED THEN
			UPDATE SET enabled = @enabled,
			           frequency = @frequency,
			           next_report_date = @next_report_date,
			           last_sent_date = @last_sent_date,
			           updated_ts = @updated_ts
		WHEN NOT MATCHED THEN
			INSERT (setting_id, user_id, enabled, frequency, next_report_date, last_sent_date, created_ts, updated_ts)
			VALUES (@setting_id, @user_id, @enabled, @frequency, @next_report_date, @last_sent_date, @created_ts, @updated_ts)`,
		table)

	params := []bigquery.QueryParameter{
		{Name: "setting_id", Value: r.SettingID},
		{Name: "user_id", Value: r.UserID},
		{Name: "enabled", Value: r.Enabled},
		{Name: "frequency", Value: r.Frequency},
		{Name: "next_report_date", Value: r.NextReportDate},
		{Name: "last_sent_date", Value: r.LastSentDate},
		{Name: "created_ts", Value: r.CreatedTS},
		{Name: "updated_ts", Value: r.UpdatedTS},
	}
	return sql, params
}

// SaveReportSetting inserts the setting or replaces the user's existing one.
func (s *Store) SaveReportSetting(ctx context.Context, setting *domain.ReportSetting) error {
	sql, params := mergeSettingSQL(s.table(reportSettingsTable), settingRowFromDomain(setting))
	if err := s.exec(ctx, sql, params); err != nil {
		return fmt.Errorf("SaveReportSetting: %w", err)
	}
	return nil
}

// ListReports returns a page of the user's reports, newest first, and the
// user's total report count.
func (s *Store) ListReports(ctx context.Context, userID string, limit, offset int) ([]*domain.Report, int, error) {
	sql := fmt.Sprintf(`
		SELECT report_id, user_id, period, sent_ts, status, created_ts,
			COUNT(*) OVER () AS total
		FROM %s
		WHERE user_id = @user_id
		ORDER BY sent_ts DESC, report_id DESC
		LIMIT @page_limit OFFSET @page_offset
	`, s.table(reportsTable))

	params := []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "page_limit", Value: limit},
		{Name: "page_offset", Value: offset},
	}

	it, err := s.read(ctx, sql, params)
	if err != nil {
		return nil, 0, fmt.Errorf("ListReports: %w", err)
	}

	reports := []*domain.Report{}
	total := 0
	for {
		var row struct {
			ReportRow
			Total int64 `bigquery:"total"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("ListReports: iter next: %w", err)
		}
		total = int(row.Total)
		reports = append(reports, row.ReportRow.toDomain())
	}

	// An offset past the end returns no rows and therefore no window total.
	if len(reports) == 0 && offset > 0 {
		if total, err = s.countReports(ctx, userID); err != nil {
			return nil, 0, err
		}
	}
	return reports, total, nil
}

func (s *Store) countReports(ctx context.Context, userID string) (int, error) {
	sql := fmt.Sprintf(`SELECT COUNT(*) AS total FROM %s WHERE user_id = @user_id`, s.table(reportsTable))
	it, err := s.read(ctx, sql, []bigquery.QueryParameter{{Name: "user_id", Value: userID}})
	if err != nil {
		return 0, fmt.Errorf("countReports: %w", err)
	}
	var row struct {
		Total int64 `bigquery:"total"`
	}
	if err := it.Next(&row); err != nil {
		return 0, fmt.Errorf("countReports: iter next: %w", err)
	}
	return int(row.Total), nil
}
