// Package store defines the persistence ports used by the batch processors and
// the ledger service. Adapters live under internal/infra.
//
// Cursors follow the google.golang.org/api/iterator convention: Next returns
// iterator.Done once the result set is exhausted. A cursor never holds a
// database connection between calls to Next, so callers may write through the
// same store while iterating.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Gargee-Buva/Finora/internal/domain"
)

// ErrNotFound is returned when a lookup by identifier matches nothing.
var ErrNotFound = errors.New("not found")

// TransactionCursor streams transactions.
type TransactionCursor interface {
	Next() (*domain.Transaction, error)
	Close() error
}

// DueReportCursor streams due report settings with their owners resolved.
type DueReportCursor interface {
	Next() (*domain.DueReportSetting, error)
	Close() error
}

// RecurringStore is the persistence used by the recurring batch processor.
type RecurringStore interface {
	// DueRecurring streams recurring transactions whose next recurrence date
	// is at or before now. Each record is yielded at most once per cursor.
	DueRecurring(ctx context.Context, now time.Time) (TransactionCursor, error)

	// MaterializeRecurring atomically inserts occurrence and advances the
	// recurring record identified by recurringID to next, stamping
	// processedAt as its last processed time. Either both writes land or
	// neither does.
	MaterializeRecurring(ctx context.Context, occurrence *domain.Transaction, recurringID string, next, processedAt time.Time) error
}

// ReportOutcome is everything written for one report attempt.
type ReportOutcome struct {
	Report         domain.Report
	SettingID      string
	NextReportDate time.Time
	// LastSentDate is nil when the attempt did not deliver a report.
	LastSentDate *time.Time
}

// ReportStore is the persistence used by the report batch processor.
type ReportStore interface {
	// DueReportSettings streams enabled settings whose next report date is at
	// or before now. Owner is nil on settings whose user no longer exists.
	DueReportSettings(ctx context.Context, now time.Time) (DueReportCursor, error)

	// RecordReportOutcome atomically inserts the report record and advances
	// the setting.
	RecordReportOutcome(ctx context.Context, outcome ReportOutcome) error
}

// TransactionReader gives the report aggregator access to a user's ledger.
type TransactionReader interface {
	// UserTransactions streams the user's transactions dated within
	// [from, to], both ends inclusive.
	UserTransactions(ctx context.Context, userID string, from, to time.Time) (TransactionCursor, error)
}

// LedgerStore backs the ledger service.
type LedgerStore interface {
	// CreateUser inserts the user together with its report setting in one
	// atomic write.
	CreateUser(ctx context.Context, user *domain.User, setting *domain.ReportSetting) error
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	InsertTransaction(ctx context.Context, tx *domain.Transaction) error
	// GetReportSetting returns ErrNotFound when the user has no setting.
	GetReportSetting(ctx context.Context, userID string) (*domain.ReportSetting, error)
	// SaveReportSetting inserts or replaces the user's setting.
	SaveReportSetting(ctx context.Context, setting *domain.ReportSetting) error
	// ListReports returns one page of the user's reports, newest first, and
	// the total number of reports the user has.
	ListReports(ctx context.Context, userID string, limit, offset int) ([]*domain.Report, int, error)
}

// Store is the full persistence surface implemented by each adapter.
type Store interface {
	RecurringStore
	ReportStore
	TransactionReader
	LedgerStore
	Close() error
}
