package sqlite

import (
	"context"

	"google.golang.org/api/iterator"

	"github.com/Gargee-Buva/Finora/internal/domain"
)

// page fetches up to limit rows whose key sorts after the given key, and
// returns them with the key of the last row.
type page[T any] func(ctx context.Context, after string, limit int) ([]T, string, error)

// keysetCursor walks a result set one page at a time. Between pages no
// statement is open, so writes through the same handle never wait on it.
type keysetCursor[T any] struct {
	ctx    context.Context
	fetch  page[T]
	limit  int
	after  string
	buf    []T
	done   bool
	closed bool
}

func newKeysetCursor[T any](ctx context.Context, limit int, fetch page[T]) *keysetCursor[T] {
	return &keysetCursor[T]{ctx: ctx, fetch: fetch, limit: limit}
}

// fill loads the next page into the buffer.
func (c *keysetCursor[T]) fill() error {
	rows, last, err := c.fetch(c.ctx, c.after, c.limit)
	if err != nil {
		return err
	}
	c.buf = rows
	if last != "" {
		c.after = last
	}
	if len(rows) < c.limit {
		c.done = true
	}
	return nil
}

func (c *keysetCursor[T]) next() (T, error) {
	var zero T
	if c.closed {
		return zero, iterator.Done
	}
	if len(c.buf) == 0 && !c.done {
		if err := c.fill(); err != nil {
			return zero, err
		}
	}
	if len(c.buf) == 0 {
		return zero, iterator.Done
	}
	item := c.buf[0]
	c.buf = c.buf[1:]
	return item, nil
}

func (c *keysetCursor[T]) Close() error {
	c.closed = true
	c.buf = nil
	return nil
}

type transactionCursor struct {
	*keysetCursor[*domain.Transaction]
}

func (c transactionCursor) Next() (*domain.Transaction, error) {
	return c.next()
}

type dueReportCursor struct {
	*keysetCursor[*domain.DueReportSetting]
}

func (c dueReportCursor) Next() (*domain.DueReportSetting, error) {
	return c.next()
}
