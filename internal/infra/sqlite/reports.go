package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Gargee-Buva/Finora/internal/domain"
	"github.com/Gargee-Buva/Finora/internal/store"
)

const settingColumns = `s.id, s.user_id, s.enabled, s.frequency, s.next_report_date, s.last_sent_date, s.created_at, s.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSetting(row rowScanner, extra ...any) (*domain.ReportSetting, error) {
	var (
		s                    domain.ReportSetting
		frequency            string
		next, lastSent       sql.NullString
		createdAt, updatedAt string
	)
	dest := append([]any{&s.ID, &s.UserID, &s.Enabled, &frequency, &next, &lastSent, &createdAt, &updatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	s.Frequency = domain.ReportFrequency(frequency)

	var err error
	if s.NextReportDate, err = parseNullTime(next); err != nil {
		return nil, err
	}
	if s.LastSentDate, err = parseNullTime(lastSent); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// DueReportSettings streams enabled settings due at or before now, with the
// owning user joined in.
func (s *Store) DueReportSettings(ctx context.Context, now time.Time) (store.DueReportCursor, error) {
	cutoff := formatTime(now)
	fetch := func(ctx context.Context, after string, limit int) ([]*domain.DueReportSetting, string, error) {
		rows, err := s.db.QueryContext(ctx, `SELECT `+settingColumns+`, u.id, u.name, u.email, u.created_at
			FROM report_settings s LEFT JOIN users u ON u.id = s.user_id
			WHERE s.enabled = 1 AND s.next_report_date IS NOT NULL AND s.next_report_date <= ? AND s.id > ?
			ORDER BY s.id LIMIT ?`, cutoff, after, limit)
		if err != nil {
			return nil, "", fmt.Errorf("DueReportSettings: query: %w", err)
		}
		defer rows.Close()

		var (
			out  []*domain.DueReportSetting
			last string
		)
		for rows.Next() {
			var uid, name, email, created sql.NullString
			setting, err := scanSetting(rows, &uid, &name, &email, &created)
			if err != nil {
				return nil, "", fmt.Errorf("DueReportSettings: scan: %w", err)
			}

			due := &domain.DueReportSetting{Setting: *setting}
			if uid.Valid {
				owner := &domain.User{ID: uid.String, Name: name.String, Email: email.String}
				if created.Valid {
					if owner.CreatedAt, err = parseTime(created.String); err != nil {
						return nil, "", fmt.Errorf("DueReportSettings: %w", err)
					}
				}
				due.Owner = owner
			}
			out = append(out, due)
			last = setting.ID
		}
		if err := rows.Err(); err != nil {
			return nil, "", fmt.Errorf("DueReportSettings: iterate: %w", err)
		}
		return out, last, nil
	}

	c := newKeysetCursor(ctx, s.pageSize, fetch)
	if err := c.fill(); err != nil {
		return nil, err
	}
	return dueReportCursor{c}, nil
}

// RecordReportOutcome inserts the report record and advances the setting in
// one transaction.
func (s *Store) RecordReportOutcome(ctx context.Context, outcome store.ReportOutcome) error {
	r := outcome.Report
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO reports (id, user_id, period, sent_date, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID, r.UserID, r.Period, formatTime(r.SentDate), string(r.Status), formatTime(r.CreatedAt)); err != nil {
			return fmt.Errorf("insert report: %w", err)
		}

		res, err := tx.ExecContext(ctx, `UPDATE report_settings
			SET next_report_date = ?, last_sent_date = ?, updated_at = ?
			WHERE id = ?`,
			formatTime(outcome.NextReportDate), formatNullTime(outcome.LastSentDate), formatTime(r.CreatedAt), outcome.SettingID)
		if err != nil {
			return fmt.Errorf("advance setting: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("advance setting %s: %w", outcome.SettingID, store.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("RecordReportOutcome: %w", err)
	}
	return nil
}

// GetReportSetting returns the user's report setting.
func (s *Store) GetReportSetting(ctx context.Context, userID string) (*domain.ReportSetting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+settingColumns+` FROM report_settings s WHERE s.user_id = ?`, userID)
	setting, err := scanSetting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("GetReportSetting: user %s: %w", userID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetReportSetting: %w", err)
	}
	return setting, nil
}

const upsertSettingSQL = `INSERT INTO report_settings
	(id, user_id, enabled, frequency, next_report_date, last_sent_date, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		enabled = excluded.enabled,
		frequency = excluded.frequency,
		next_report_date = excluded.next_report_date,
		last_sent_date = excluded.last_sent_date,
		updated_at = excluded.updated_at`

func saveSetting(ctx context.Context, db execer, st *domain.ReportSetting) error {
	_, err := db.ExecContext(ctx, upsertSettingSQL,
		st.ID, st.UserID, st.Enabled, string(st.Frequency),
		formatNullTime(st.NextReportDate), formatNullTime(st.LastSentDate),
		formatTime(st.CreatedAt), formatTime(st.UpdatedAt))
	return err
}

// SaveReportSetting inserts the setting or replaces the user's existing one.
func (s *Store) SaveReportSetting(ctx context.Context, setting *domain.ReportSetting) error {
	if err := saveSetting(ctx, s.db, setting); err != nil {
		return fmt.Errorf("SaveReportSetting: %w", err)
	}
	return nil
}

// ListReports returns a page of the user's reports, newest first.
func (s *Store) ListReports(ctx context.Context, userID string, limit, offset int) ([]*domain.Report, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListReports: count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, period, sent_date, status, created_at
		FROM reports WHERE user_id = ?
		ORDER BY sent_date DESC, id DESC LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ListReports: query: %w", err)
	}
	defer rows.Close()

	reports := []*domain.Report{}
	for rows.Next() {
		var (
			r                 domain.Report
			status            string
			sentAt, createdAt string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.Period, &sentAt, &status, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("ListReports: scan: %w", err)
		}
		r.Status = domain.ReportStatus(status)
		if r.SentDate, err = parseTime(sentAt); err != nil {
			return nil, 0, fmt.Errorf("ListReports: %w", err)
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, 0, fmt.Errorf("ListReports: %w", err)
		}
		reports = append(reports, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListReports: iterate: %w", err)
	}
	return reports, total, nil
}
