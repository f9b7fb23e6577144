// Package bigquery implements store.Store on BigQuery. Every write goes through
// DML so rows are immediately visible to later UPDATEs, and every atomic scope
// is a multi-statement transaction sent as a single script.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/Gargee-Buva/Finora/internal/store"
)

const (
	transactionsTable   = "transactions"
	usersTable          = "users"
	reportSettingsTable = "report_settings"
	reportsTable        = "reports"
)

// Store is the BigQuery implementation of store.Store. It holds one shared
// client for all operations.
type Store struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewStore creates a client for projectID and binds it to datasetID.
func NewStore(ctx context.Context, projectID, datasetID string) (*Store, error) {
	if projectID == "" || datasetID == "" {
		return nil, fmt.Errorf("NewStore: project and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return NewStoreWithClient(client, projectID, datasetID), nil
}

// NewStoreWithClient binds an existing client to a dataset.
func NewStoreWithClient(client *bigquery.Client, projectID, datasetID string) *Store {
	return &Store{client: client, projectID: projectID, datasetID: datasetID}
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Store) table(name string) string {
	return tableRef(s.projectID, s.datasetID, name)
}

func tableRef(projectID, datasetID, name string) string {
	return fmt.Sprintf("`%s.%s.%s`", projectID, datasetID, name)
}

// exec runs a DML statement or script and waits for it to finish. If ctx ends
// first the job is cancelled so an abandoned script does not commit later.
func (s *Store) exec(ctx context.Context, sql string, params []bigquery.QueryParameter) error {
	q := s.client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			_ = job.Cancel(context.WithoutCancel(ctx))
		}
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

func (s *Store) read(ctx context.Context, sql string, params []bigquery.QueryParameter) (*bigquery.RowIterator, error) {
	q := s.client.Query(sql)
	q.Parameters = params
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}
	return it, nil
}

// assertFailed reports whether err carries the message of a failed ASSERT
// with the given description.
func assertFailed(err error, description string) bool {
	return err != nil && strings.Contains(err.Error(), description)
}

// rowCursor adapts a RowIterator to the store cursor shape.
type rowCursor[R any, T any] struct {
	it      *bigquery.RowIterator
	convert func(*R) T
}

func (c *rowCursor[R, T]) next() (T, error) {
	var (
		zero T
		row  R
	)
	if err := c.it.Next(&row); err != nil {
		if errors.Is(err, iterator.Done) {
			return zero, iterator.Done
		}
		return zero, fmt.Errorf("iter next: %w", err)
	}
	return c.convert(&row), nil
}

func (c *rowCursor[R, T]) Close() error { return nil }

var _ store.Store = (*Store)(nil)
