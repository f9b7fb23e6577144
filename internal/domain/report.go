package domain

import "time"

// ReportFrequency is the cadence of report emails. Only monthly is supported.
type ReportFrequency string

const (
	ReportFrequencyMonthly ReportFrequency = "MONTHLY"
)

// Title returns the frequency as used in email subjects ("Monthly").
func (f ReportFrequency) Title() string {
	switch f {
	case ReportFrequencyMonthly:
		return "Monthly"
	}
	return string(f)
}

// ReportStatus is the outcome recorded for a report attempt.
type ReportStatus string

const (
	ReportStatusSent       ReportStatus = "SENT"
	ReportStatusPending    ReportStatus = "PENDING"
	ReportStatusFailed     ReportStatus = "FAILED"
	ReportStatusNoActivity ReportStatus = "NO_ACTIVITY"
)

// User is the owner of transactions and report settings.
type User struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// ReportSetting is a user's periodic report schedule.
// NextReportDate is nil while the schedule is disabled.
type ReportSetting struct {
	ID             string
	UserID         string
	Enabled        bool
	Frequency      ReportFrequency
	NextReportDate *time.Time
	LastSentDate   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DueReportSetting is a report setting whose owner has been resolved.
// Owner is nil when the referenced user no longer exists.
type DueReportSetting struct {
	Setting ReportSetting
	Owner   *User
}

// Report is the immutable record of one report attempt for one period.
type Report struct {
	ID        string
	UserID    string
	Period    string
	SentDate  time.Time
	Status    ReportStatus
	CreatedAt time.Time
}

// CategoryTotal is one entry of the top spending categories, in rupees.
type CategoryTotal struct {
	Name    string  `json:"name"`
	Amount  float64 `json:"amount"`
	Percent float64 `json:"percent"`
}

// ReportSummary holds the headline figures of a report, in rupees.
type ReportSummary struct {
	Income        float64         `json:"income"`
	Expenses      float64         `json:"expenses"`
	Balance       float64         `json:"balance"`
	SavingsRate   float64         `json:"savingsRate"`
	TopCategories []CategoryTotal `json:"topCategories"`
}

// AggregatedReport is produced fresh for every request and never persisted.
type AggregatedReport struct {
	Period   string        `json:"period"`
	Summary  ReportSummary `json:"summary"`
	Insights []string      `json:"insights"`
}

// BatchSummary is what a batch run reports back to its trigger.
type BatchSummary struct {
	Success        bool   `json:"success"`
	ProcessedCount int    `json:"processedCount"`
	FailedCount    int    `json:"failedCount"`
	Error          string `json:"error,omitempty"`
}
