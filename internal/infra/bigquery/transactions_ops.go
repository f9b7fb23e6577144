package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/Gargee-Buva/Finora/internal/domain"
	"github.com/Gargee-Buva/Finora/internal/store"
)

const transactionColumns = `transaction_id, user_id, type, title, amount_minor, category, description, receipt_url,
			occurred_at, occurred_on, is_recurring, recurring_interval, next_recurrence_date, last_processed,
			status, payment_method, created_ts, updated_ts`

const recurringNotFound = "recurring transaction not found"

// insertTransactionSQL builds an INSERT for one row. Parameter names carry
// prefix so the statement can sit next to others in a script.
func insertTransactionSQL(table, prefix string, r *TransactionRow) (string, []bigquery.QueryParameter) {
	p := func(name string) string { return "@" + prefix + name }
	sql := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		table, transactionColumns,
		p("transaction_id"), p("user_id"), p("type"), p("title"), p("amount_minor"), p("category"),
		p("description"), p("receipt_url"), p("occurred_at"), p("occurred_on"), p("is_recurring"),
		p("recurring_interval"), p("next_recurrence_date"), p("last_processed"), p("status"),
		p("payment_method"), p("created_ts"), p("updated_ts"))

	params := []bigquery.QueryParameter{
		{Name: prefix + "transaction_id", Value: r.TransactionID},
		{Name: prefix + "user_id", Value: r.UserID},
		{Name: prefix + "type", Value: r.Type},
		{Name: prefix + "title", Value: r.Title},
		{Name: prefix + "amount_minor", Value: r.AmountMinor},
		{Name: prefix + "category", Value: r.Category},
		{Name: prefix + "description", Value: r.Description},
		{Name: prefix + "receipt_url", Value: r.ReceiptURL},
		{Name: prefix + "occurred_at", Value: r.OccurredAt},
		{Name: prefix + "occurred_on", Value: r.OccurredOn},
		{Name: prefix + "is_recurring", Value: r.IsRecurring},
		{Name: prefix + "recurring_interval", Value: r.RecurringInterval},
		{Name: prefix + "next_recurrence_date", Value: r.NextRecurrenceDate},
		{Name: prefix + "last_processed", Value: r.LastProcessed},
		{Name: prefix + "status", Value: r.Status},
		{Name: prefix + "payment_method", Value: r.PaymentMethod},
		{Name: prefix + "created_ts", Value: r.CreatedTS},
		{Name: prefix + "updated_ts", Value: r.UpdatedTS},
	}
	return sql, params
}

// InsertTransaction inserts one transaction with DML.
func (s *Store) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	sql, params := insertTransactionSQL(s.table(transactionsTable), "", transactionRowFromDomain(t))
	if err := s.exec(ctx, sql, params); err != nil {
		return fmt.Errorf("InsertTransaction: %w", err)
	}
	return nil
}

func (s *Store) transactionCursor(it *bigquery.RowIterator) store.TransactionCursor {
	return transactionCursor{&rowCursor[TransactionRow, *domain.Transaction]{
		it:      it,
		convert: (*TransactionRow).toDomain,
	}}
}

type transactionCursor struct {
	*rowCursor[TransactionRow, *domain.Transaction]
}

func (c transactionCursor) Next() (*domain.Transaction, error) { return c.next() }

// DueRecurring streams recurring transactions due at or before now. The query
// result is a snapshot, so schedules advanced during iteration are not
// yielded again.
func (s *Store) DueRecurring(ctx context.Context, now time.Time) (store.TransactionCursor, error) {
	sql := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE is_recurring
		  AND next_recurrence_date IS NOT NULL
		  AND next_recurrence_date <= @now
		ORDER BY transaction_id
	`, transactionColumns, s.table(transactionsTable))

	it, err := s.read(ctx, sql, []bigquery.QueryParameter{{Name: "now", Value: now.UTC()}})
	if err != nil {
		return nil, fmt.Errorf("DueRecurring: %w", err)
	}
	return s.transactionCursor(it), nil
}

// materializeScript returns the transaction script used by MaterializeRecurring.
func materializeScript(table string, occurrence *TransactionRow, recurringID string, next, processedAt time.Time) (string, []bigquery.QueryParameter) {
	insert, params := insertTransactionSQL(table, "occ_", occurrence)
	sql := fmt.Sprintf(`
		BEGIN TRANSACTION;

		ASSERT EXISTS (
			SELECT 1 FROM %[1]s WHERE transaction_id = @recurring_id AND is_recurring
		) AS '%[2]s';
		%[3]s;

		UPDATE %[1]s
		SET next_recurrence_date = @next_recurrence_date,
		    last_processed = @processed_at,
		    updated_ts = @processed_at
		WHERE transaction_id = @recurring_id;

		COMMIT TRANSACTION;
	`, table, recurringNotFound, insert)

	params = append(params,
		bigquery.QueryParameter{Name: "recurring_id", Value: recurringID},
		bigquery.QueryParameter{Name: "next_recurrence_date", Value: next.UTC()},
		bigquery.QueryParameter{Name: "processed_at", Value: processedAt.UTC()},
	)
	return sql, params
}

// MaterializeRecurring inserts the occurrence and advances the recurring
// record inside one BigQuery transaction.
func (s *Store) MaterializeRecurring(ctx context.Context, occurrence *domain.Transaction, recurringID string, next, processedAt time.Time) error {
	sql, params := materializeScript(s.table(transactionsTable), transactionRowFromDomain(occurrence), recurringID, next, processedAt)
	if err := s.exec(ctx, sql, params); err != nil {
		if assertFailed(err, recurringNotFound) {
			return fmt.Errorf("MaterializeRecurring: %s: %w", recurringID, store.ErrNotFound)
		}
		return fmt.Errorf("MaterializeRecurring: %w", err)
	}
	return nil
}

// UserTransactions streams the user's transactions within [from, to]. The
// occurred_on bound lets BigQuery prune partitions before the timestamp filter.
func (s *Store) UserTransactions(ctx context.Context, userID string, from, to time.Time) (store.TransactionCursor, error) {
	sql := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id
		  AND occurred_on BETWEEN @from_day AND @to_day
		  AND occurred_at >= @from_ts
		  AND occurred_at <= @to_ts
		ORDER BY occurred_at, transaction_id
	`, transactionColumns, s.table(transactionsTable))

	params := []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "from_day", Value: civil.DateOf(from.UTC())},
		{Name: "to_day", Value: civil.DateOf(to.UTC())},
		{Name: "from_ts", Value: from.UTC()},
		{Name: "to_ts", Value: to.UTC()},
	}

	it, err := s.read(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("UserTransactions: %w", err)
	}
	return s.transactionCursor(it), nil
}
