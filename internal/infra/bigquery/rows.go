package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/Gargee-Buva/Finora/internal/domain"
)

// TransactionRow mirrors finance.transactions.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	UserID        string `bigquery:"user_id"`        // REQUIRED
	Type          string `bigquery:"type"`           // REQUIRED
	Title         string `bigquery:"title"`          // REQUIRED

	AmountMinor int64  `bigquery:"amount_minor"` // REQUIRED, paise
	Category    string `bigquery:"category"`     // REQUIRED

	Description bigquery.NullString `bigquery:"description"`
	ReceiptURL  bigquery.NullString `bigquery:"receipt_url"`

	OccurredAt time.Time  `bigquery:"occurred_at"` // REQUIRED
	OccurredOn civil.Date `bigquery:"occurred_on"` // REQUIRED, partition column

	IsRecurring        bool                   `bigquery:"is_recurring"`
	RecurringInterval  bigquery.NullString    `bigquery:"recurring_interval"`
	NextRecurrenceDate bigquery.NullTimestamp `bigquery:"next_recurrence_date"`
	LastProcessed      bigquery.NullTimestamp `bigquery:"last_processed"`

	Status        string `bigquery:"status"`
	PaymentMethod string `bigquery:"payment_method"`

	CreatedTS time.Time `bigquery:"created_ts"`
	UpdatedTS time.Time `bigquery:"updated_ts"`
}

// UserRow mirrors finance.users.
type UserRow struct {
	UserID    string    `bigquery:"user_id"`
	Name      string    `bigquery:"name"`
	Email     string    `bigquery:"email"`
	CreatedTS time.Time `bigquery:"created_ts"`
}

// ReportSettingRow mirrors finance.report_settings.
type ReportSettingRow struct {
	SettingID      string                 `bigquery:"setting_id"`
	UserID         string                 `bigquery:"user_id"`
	Enabled        bool                   `bigquery:"enabled"`
	Frequency      string                 `bigquery:"frequency"`
	NextReportDate bigquery.NullTimestamp `bigquery:"next_report_date"`
	LastSentDate   bigquery.NullTimestamp `bigquery:"last_sent_date"`
	CreatedTS      time.Time              `bigquery:"created_ts"`
	UpdatedTS      time.Time              `bigquery:"updated_ts"`
}

// dueSettingRow is a report setting joined with its (possibly missing) owner.
type dueSettingRow struct {
	ReportSettingRow
	OwnerID        bigquery.NullString    `bigquery:"owner_id"`
	OwnerName      bigquery.NullString    `bigquery:"owner_name"`
	OwnerEmail     bigquery.NullString    `bigquery:"owner_email"`
	OwnerCreatedTS bigquery.NullTimestamp `bigquery:"owner_created_ts"`
}

// ReportRow mirrors finance.reports.
type ReportRow struct {
	ReportID  string    `bigquery:"report_id"`
	UserID    string    `bigquery:"user_id"`
	Period    string    `bigquery:"period"`
	SentTS    time.Time `bigquery:"sent_ts"`
	Status    string    `bigquery:"status"`
	CreatedTS time.Time `bigquery:"created_ts"`
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func nullTimestamp(t *time.Time) bigquery.NullTimestamp {
	if t == nil {
		return bigquery.NullTimestamp{}
	}
	return bigquery.NullTimestamp{Timestamp: t.UTC(), Valid: true}
}

func timePtr(n bigquery.NullTimestamp) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Timestamp.UTC()
	return &t
}

func transactionRowFromDomain(t *domain.Transaction) *TransactionRow {
	return &TransactionRow{
		TransactionID:      t.ID,
		UserID:             t.UserID,
		Type:               string(t.Type),
		Title:              t.Title,
		AmountMinor:        t.Amount,
		Category:           t.Category,
		Description:        nullString(t.Description),
		ReceiptURL:         nullString(t.ReceiptURL),
		OccurredAt:         t.Date.UTC(),
		OccurredOn:         civil.DateOf(t.Date.UTC()),
		IsRecurring:        t.IsRecurring,
		RecurringInterval:  nullString(string(t.RecurringInterval)),
		NextRecurrenceDate: nullTimestamp(t.NextRecurrenceDate),
		LastProcessed:      nullTimestamp(t.LastProcessed),
		Status:             string(t.Status),
		PaymentMethod:      string(t.PaymentMethod),
		CreatedTS:          t.CreatedAt.UTC(),
		UpdatedTS:          t.UpdatedAt.UTC(),
	}
}

func (r *TransactionRow) toDomain() *domain.Transaction {
	return &domain.Transaction{
		ID:                 r.TransactionID,
		UserID:             r.UserID,
		Type:               domain.TransactionType(r.Type),
		Title:              r.Title,
		Amount:             r.AmountMinor,
		Category:           r.Category,
		Description:        r.Description.StringVal,
		ReceiptURL:         r.ReceiptURL.StringVal,
		Date:               r.OccurredAt.UTC(),
		IsRecurring:        r.IsRecurring,
		RecurringInterval:  domain.RecurringInterval(r.RecurringInterval.StringVal),
		NextRecurrenceDate: timePtr(r.NextRecurrenceDate),
		LastProcessed:      timePtr(r.LastProcessed),
		Status:             domain.TransactionStatus(r.Status),
		PaymentMethod:      domain.PaymentMethod(r.PaymentMethod),
		CreatedAt:          r.CreatedTS.UTC(),
		UpdatedAt:          r.UpdatedTS.UTC(),
	}
}

func settingRowFromDomain(s *domain.ReportSetting) *ReportSettingRow {
	return &ReportSettingRow{
		SettingID:      s.ID,
		UserID:         s.UserID,
		Enabled:        s.Enabled,
		Frequency:      string(s.Frequency),
		NextReportDate: nullTimestamp(s.NextReportDate),
		LastSentDate:   nullTimestamp(s.LastSentDate),
		CreatedTS:      s.CreatedAt.UTC(),
		UpdatedTS:      s.UpdatedAt.UTC(),
	}
}

func (r *ReportSettingRow) toDomain() *domain.ReportSetting {
	return &domain.ReportSetting{
		ID:             r.SettingID,
		UserID:         r.UserID,
		Enabled:        r.Enabled,
		Frequency:      domain.ReportFrequency(r.Frequency),
		NextReportDate: timePtr(r.NextReportDate),
		LastSentDate:   timePtr(r.LastSentDate),
		CreatedAt:      r.CreatedTS.UTC(),
		UpdatedAt:      r.UpdatedTS.UTC(),
	}
}

func (r *dueSettingRow) toDomain() *domain.DueReportSetting {
	due := &domain.DueReportSetting{Setting: *r.ReportSettingRow.toDomain()}
	if r.OwnerID.Valid {
		owner := &domain.User{ID: r.OwnerID.StringVal, Name: r.OwnerName.StringVal, Email: r.OwnerEmail.StringVal}
		if r.OwnerCreatedTS.Valid {
			owner.CreatedAt = r.OwnerCreatedTS.Timestamp.UTC()
		}
		due.Owner = owner
	}
	return due
}

func (r *ReportRow) toDomain() *domain.Report {
	return &domain.Report{
		ID:        r.ReportID,
		UserID:    r.UserID,
		Period:    r.Period,
		SentDate:  r.SentTS.UTC(),
		Status:    domain.ReportStatus(r.Status),
		CreatedAt: r.CreatedTS.UTC(),
	}
}
