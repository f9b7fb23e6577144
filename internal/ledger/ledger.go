// Package ledger holds the user-facing operations that feed the batch jobs:
// registering owners, recording transactions and managing report settings.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Gargee-Buva/Finora/internal/domain"
	"github.com/Gargee-Buva/Finora/internal/money"
	"github.com/Gargee-Buva/Finora/internal/schedule"
	"github.com/Gargee-Buva/Finora/internal/store"
)

// ErrInvalidInput is returned for requests that fail validation.
var ErrInvalidInput = errors.New("invalid input")

const maxPageSize = 100

// Options configures a Service. Zero values pick defaults.
type Options struct {
	Now   func() time.Time
	NewID func() string
}

// Service implements the ledger operations on a store.LedgerStore.
type Service struct {
	store store.LedgerStore
	log   zerolog.Logger
	now   func() time.Time
	newID func() string
}

// NewService creates a Service.
func NewService(s store.LedgerStore, log zerolog.Logger, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Service{store: s, log: log, now: opts.Now, newID: opts.NewID}
}

// RegisterUser creates a user together with an enabled monthly report setting
// whose first report is due on the first of next month.
func (s *Service) RegisterUser(ctx context.Context, name, email string) (*domain.User, *domain.ReportSetting, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, fmt.Errorf("RegisterUser: %w: name is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, nil, fmt.Errorf("RegisterUser: %w: email %q: %v", ErrInvalidInput, email, err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:        s.newID(),
		Name:      name,
		Email:     strings.ToLower(addr.Address),
		CreatedAt: now,
	}
	next := schedule.NextReportDate(&now, now)
	setting := &domain.ReportSetting{
		ID:             s.newID(),
		UserID:         user.ID,
		Enabled:        true,
		Frequency:      domain.ReportFrequencyMonthly,
		NextReportDate: &next,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.CreateUser(ctx, user, setting); err != nil {
		return nil, nil, fmt.Errorf("RegisterUser: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Time("next_report_date", next).Msg("User registered")
	return user, setting, nil
}

// NewTransaction is the input to CreateTransaction. Amount is in rupees.
type NewTransaction struct {
	UserID            string
	Type              string
	Title             string
	Amount            float64
	Category          string
	Description       string
	ReceiptURL        string
	Date              time.Time
	IsRecurring       bool
	RecurringInterval string
	Status            string
	PaymentMethod     string
}

// CreateTransaction validates in, converts the amount to paise and, for
// recurring input, schedules the first occurrence.
func (s *Service) CreateTransaction(ctx context.Context, in NewTransaction) (*domain.Transaction, error) {
	if _, err := s.store.GetUser(ctx, in.UserID); err != nil {
		return nil, fmt.Errorf("CreateTransaction: user %s: %w", in.UserID, err)
	}

	tx, err := s.buildTransaction(in)
	if err != nil {
		return nil, fmt.Errorf("CreateTransaction: %w", err)
	}
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("CreateTransaction: %w", err)
	}
	if err := s.store.InsertTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("CreateTransaction: %w", err)
	}

	ev := s.log.Info().Str("transaction_id", tx.ID).Str("user_id", tx.UserID).Bool("recurring", tx.IsRecurring)
	if tx.NextRecurrenceDate != nil {
		ev = ev.Time("next_recurrence_date", *tx.NextRecurrenceDate)
	}
	ev.Msg("Transaction created")
	return tx, nil
}

func (s *Service) buildTransaction(in NewTransaction) (*domain.Transaction, error) {
	txType := domain.TransactionType(strings.ToUpper(strings.TrimSpace(in.Type)))
	if txType != domain.TransactionTypeIncome && txType != domain.TransactionTypeExpense {
		return nil, fmt.Errorf("%w: type must be INCOME or EXPENSE, got %q", ErrInvalidInput, in.Type)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	amount := money.ToMinor(in.Amount)
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if in.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}

	status := domain.TransactionStatusCompleted
	if in.Status != "" {
		status = domain.TransactionStatus(strings.ToUpper(in.Status))
		switch status {
		case domain.TransactionStatusPending, domain.TransactionStatusCompleted, domain.TransactionStatusFailed:
		default:
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, in.Status)
		}
	}

	method := domain.PaymentMethodCash
	if in.PaymentMethod != "" {
		method = domain.PaymentMethod(strings.ToUpper(in.PaymentMethod))
		switch method {
		case domain.PaymentMethodCash, domain.PaymentMethodCard, domain.PaymentMethodUPI, domain.PaymentMethodBankTransfer:
		default:
			return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, in.PaymentMethod)
		}
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = "other"
	}

	now := s.now().UTC()
	tx := &domain.Transaction{
		ID:            s.newID(),
		UserID:        in.UserID,
		Type:          txType,
		Title:         title,
		Amount:        amount,
		Category:      category,
		Description:   strings.TrimSpace(in.Description),
		ReceiptURL:    strings.TrimSpace(in.ReceiptURL),
		Date:          in.Date.UTC(),
		Status:        status,
		PaymentMethod: method,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if in.IsRecurring {
		iv, ok := schedule.ParseInterval(in.RecurringInterval)
		if !ok || iv == domain.IntervalNone {
			return nil, fmt.Errorf("%w: recurring transactions need an interval, got %q", ErrInvalidInput, in.RecurringInterval)
		}
		next := schedule.InitialOccurrence(tx.Date, iv, now)
		tx.IsRecurring = true
		tx.RecurringInterval = iv
		tx.NextRecurrenceDate = &next
	}
	return tx, nil
}

// SetReportsEnabled turns the user's periodic reports on or off, creating a
// default setting when none exists. Enabling keeps a future next report date
// and otherwise reschedules from the last sent date; disabling clears it.
func (s *Service) SetReportsEnabled(ctx context.Context, userID string, enabled bool) (*domain.ReportSetting, error) {
	now := s.now().UTC()

	setting, err := s.store.GetReportSetting(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if _, err := s.store.GetUser(ctx, userID); err != nil {
			return nil, fmt.Errorf("SetReportsEnabled: user %s: %w", userID, err)
		}
		s.log.Warn().Str("user_id", userID).Msg("No report setting found, creating default")
		setting = &domain.ReportSetting{
			ID:        s.newID(),
			UserID:    userID,
			Frequency: domain.ReportFrequencyMonthly,
			CreatedAt: now,
		}
	case err != nil:
		return nil, fmt.Errorf("SetReportsEnabled: %w", err)
	}

	setting.Enabled = enabled
	setting.UpdatedAt = now
	if enabled {
		if setting.NextReportDate == nil || !setting.NextReportDate.After(now) {
			ref := now
			if setting.LastSentDate != nil {
				ref = *setting.LastSentDate
			}
			next := schedule.NextReportDate(&ref, now)
			setting.NextReportDate = &next
		}
	} else {
		setting.NextReportDate = nil
	}

	if err := s.store.SaveReportSetting(ctx, setting); err != nil {
		return nil, fmt.Errorf("SetReportsEnabled: %w", err)
	}
	s.log.Info().Str("user_id", userID).Bool("enabled", enabled).Msg("Report setting updated")
	return setting, nil
}

// ReportPage is one page of a user's report history.
type ReportPage struct {
	Reports    []*domain.Report `json:"reports"`
	PageNumber int              `json:"pageNumber"`
	PageSize   int              `json:"pageSize"`
	TotalCount int              `json:"totalCount"`
	TotalPages int              `json:"totalPages"`
}

// ReportHistory returns page pageNumber (1-based) of the user's reports,
// newest first.
func (s *Service) ReportHistory(ctx context.Context, userID string, pageNumber, pageSize int) (*ReportPage, error) {
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	reports, total, err := s.store.ListReports(ctx, userID, pageSize, (pageNumber-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("ReportHistory: %w", err)
	}
	return &ReportPage{
		Reports:    reports,
		PageNumber: pageNumber,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}
