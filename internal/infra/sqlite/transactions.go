package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Gargee-Buva/Finora/internal/domain"
	"github.com/Gargee-Buva/Finora/internal/store"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const transactionColumns = `id, user_id, type, title, amount, category, description, receipt_url, date,
	is_recurring, recurring_interval, next_recurrence_date, last_processed, status, payment_method,
	created_at, updated_at`

const insertTransactionSQL = `INSERT INTO transactions (` + transactionColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func insertTransaction(ctx context.Context, db execer, t *domain.Transaction) error {
	interval := sql.NullString{String: string(t.RecurringInterval), Valid: t.RecurringInterval != ""}
	_, err := db.ExecContext(ctx, insertTransactionSQL,
		t.ID, t.UserID, string(t.Type), t.Title, t.Amount, t.Category, t.Description, t.ReceiptURL,
		formatTime(t.Date), t.IsRecurring, interval,
		formatNullTime(t.NextRecurrenceDate), formatNullTime(t.LastProcessed),
		string(t.Status), string(t.PaymentMethod),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	return err
}

func scanTransactions(rows *sql.Rows) ([]*domain.Transaction, string, error) {
	defer rows.Close()

	var (
		out  []*domain.Transaction
		last string
	)
	for rows.Next() {
		var (
			t                            domain.Transaction
			txType, status, method       string
			date, createdAt, updatedAt   string
			interval, nextDate, lastProc sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.UserID, &txType, &t.Title, &t.Amount, &t.Category, &t.Description, &t.ReceiptURL,
			&date, &t.IsRecurring, &interval, &nextDate, &lastProc, &status, &method, &createdAt, &updatedAt); err != nil {
			return nil, "", fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = domain.TransactionType(txType)
		t.Status = domain.TransactionStatus(status)
		t.PaymentMethod = domain.PaymentMethod(method)
		if interval.Valid {
			t.RecurringInterval = domain.RecurringInterval(interval.String)
		}

		var err error
		if t.Date, err = parseTime(date); err != nil {
			return nil, "", err
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, "", err
		}
		if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, "", err
		}
		if t.NextRecurrenceDate, err = parseNullTime(nextDate); err != nil {
			return nil, "", err
		}
		if t.LastProcessed, err = parseNullTime(lastProc); err != nil {
			return nil, "", err
		}

		out = append(out, &t)
		last = t.ID
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate transactions: %w", err)
	}
	return out, last, nil
}

// InsertTransaction stores a new transaction.
func (s *Store) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	if err := insertTransaction(ctx, s.db, t); err != nil {
		return fmt.Errorf("InsertTransaction: %w", err)
	}
	return nil
}

// DueRecurring streams recurring transactions due at or before now, ordered by id.
func (s *Store) DueRecurring(ctx context.Context, now time.Time) (store.TransactionCursor, error) {
	cutoff := formatTime(now)
	fetch := func(ctx context.Context, after string, limit int) ([]*domain.Transaction, string, error) {
		rows, err := s.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions
			WHERE is_recurring = 1 AND next_recurrence_date IS NOT NULL AND next_recurrence_date <= ? AND id > ?
			ORDER BY id LIMIT ?`, cutoff, after, limit)
		if err != nil {
			return nil, "", fmt.Errorf("DueRecurring: query: %w", err)
		}
		return scanTransactions(rows)
	}

	c := newKeysetCursor(ctx, s.pageSize, fetch)
	// The first page is read here so a failing query fails the open.
	if err := c.fill(); err != nil {
		return nil, err
	}
	return transactionCursor{c}, nil
}

// MaterializeRecurring inserts the occurrence and advances the recurring record
// in one transaction.
func (s *Store) MaterializeRecurring(ctx context.Context, occurrence *domain.Transaction, recurringID string, next, processedAt time.Time) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertTransaction(ctx, tx, occurrence); err != nil {
			return fmt.Errorf("insert occurrence: %w", err)
		}

		res, err := tx.ExecContext(ctx, `UPDATE transactions
			SET next_recurrence_date = ?, last_processed = ?, updated_at = ?
			WHERE id = ? AND is_recurring = 1`,
			formatTime(next), formatTime(processedAt), formatTime(processedAt), recurringID)
		if err != nil {
			return fmt.Errorf("advance schedule: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("advance schedule: recurring transaction %s: %w", recurringID, store.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("MaterializeRecurring: %w", err)
	}
	return nil
}

// UserTransactions streams a user's transactions dated within [from, to].
func (s *Store) UserTransactions(ctx context.Context, userID string, from, to time.Time) (store.TransactionCursor, error) {
	lo, hi := formatTime(from), formatTime(to)
	fetch := func(ctx context.Context, after string, limit int) ([]*domain.Transaction, string, error) {
		rows, err := s.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions
			WHERE user_id = ? AND date >= ? AND date <= ? AND id > ?
			ORDER BY id LIMIT ?`, userID, lo, hi, after, limit)
		if err != nil {
			return nil, "", fmt.Errorf("UserTransactions: query: %w", err)
		}
		return scanTransactions(rows)
	}
	return transactionCursor{newKeysetCursor(ctx, s.pageSize, fetch)}, nil
}
