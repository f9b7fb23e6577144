package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TransactionType distinguishes money coming in from money going out.
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "INCOME"
	TransactionTypeExpense TransactionType = "EXPENSE"
)

// RecurringInterval is how often a recurring transaction fires.
type RecurringInterval string

const (
	IntervalNone    RecurringInterval = "none"
	IntervalDaily   RecurringInterval = "daily"
	IntervalWeekly  RecurringInterval = "weekly"
	IntervalMonthly RecurringInterval = "monthly"
	IntervalYearly  RecurringInterval = "yearly"
)

// ParseRecurringInterval normalizes user or storage input ("MONTHLY", " monthly ")
// into a known interval. The boolean is false for empty or unrecognized values.
func ParseRecurringInterval(s string) (RecurringInterval, bool) {
	switch RecurringInterval(strings.ToLower(strings.TrimSpace(s))) {
	case IntervalNone:
		return IntervalNone, true
	case IntervalDaily:
		return IntervalDaily, true
	case IntervalWeekly:
		return IntervalWeekly, true
	case IntervalMonthly:
		return IntervalMonthly, true
	case IntervalYearly:
		return IntervalYearly, true
	}
	return "", false
}

// TransactionStatus is the settlement state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// PaymentMethod records how a transaction was paid.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodUPI          PaymentMethod = "UPI"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

// RecurringTitlePrefix is prepended to the title of materialized occurrences.
const RecurringTitlePrefix = "Recurring - "

// ErrInvalidTransaction is returned by Validate for records that break the
// recurrence invariant or miss required fields.
var ErrInvalidTransaction = errors.New("invalid transaction")

// Transaction is a ledger entry owned by a single user.
// Amount is always stored in minor units (paise); conversion to rupees happens
// at the service boundary, never on the entity.
type Transaction struct {
	ID     string
	UserID string
	Type   TransactionType
	Title  string

	Amount   int64
	Category string

	Description string
	ReceiptURL  string

	// Date is the reference date the transaction applies to.
	Date time.Time

	IsRecurring        bool
	RecurringInterval  RecurringInterval
	NextRecurrenceDate *time.Time
	LastProcessed      *time.Time

	Status        TransactionStatus
	PaymentMethod PaymentMethod

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks required fields and the recurrence invariant: a recurring
// transaction must have a real interval and a next recurrence date.
func (t *Transaction) Validate() error {
	if t.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidTransaction)
	}
	if t.Type != TransactionTypeIncome && t.Type != TransactionTypeExpense {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, t.Type)
	}
	if t.IsRecurring {
		if t.RecurringInterval == "" || t.RecurringInterval == IntervalNone {
			return fmt.Errorf("%w: recurring transaction %s has no interval", ErrInvalidTransaction, t.ID)
		}
		if t.NextRecurrenceDate == nil {
			return fmt.Errorf("%w: recurring transaction %s has no next recurrence date", ErrInvalidTransaction, t.ID)
		}
	}
	return nil
}

// Materialize builds the concrete, non-recurring occurrence of a due recurring
// transaction. The clone gets a fresh identity, is dated at the occurrence
// that fired and carries no schedule of its own.
func (t *Transaction) Materialize(id string, now time.Time) *Transaction {
	occ := *t
	occ.ID = id
	occ.Title = RecurringTitlePrefix + t.Title
	if t.NextRecurrenceDate != nil {
		occ.Date = *t.NextRecurrenceDate
	}
	occ.IsRecurring = false
	occ.RecurringInterval = ""
	occ.NextRecurrenceDate = nil
	occ.LastProcessed = nil
	occ.CreatedAt = now
	occ.UpdatedAt = now
	return &occ
}
