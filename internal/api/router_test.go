package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gargee-Buva/Finora/internal/domain"
	"github.com/Gargee-Buva/Finora/internal/jobs"
	"github.com/Gargee-Buva/Finora/internal/jobs/inmemory"
)

const secret = "s3cret"

type mockPublisher struct {
	PublishFunc func(ctx context.Context, job *jobs.BatchJob) error
}

func (m *mockPublisher) Publish(ctx context.Context, job *jobs.BatchJob) error {
	return m.PublishFunc(ctx, job)
}

func (m *mockPublisher) Close() error { return nil }

func newTestRouter(t *testing.T, pub jobs.Publisher) (http.Handler, *inmemory.Store) {
	t.Helper()
	store := inmemory.NewStore()
	if pub == nil {
		pub = &mockPublisher{PublishFunc: func(ctx context.Context, job *jobs.BatchJob) error {
			job.JobID = "job-" + string(job.Type)
			job.Status = jobs.JobStatusPending
			job.CreatedAt = time.Date(2025, 2, 1, 6, 0, 0, 0, time.UTC)
			return store.SaveJob(ctx, job)
		}}
	}
	return NewRouter(Dependencies{
		Publisher:  pub,
		JobStore:   store,
		CronSecret: secret,
		Logger:     zerolog.Nop(),
		Now:        func() time.Time { return time.Date(2025, 2, 1, 6, 0, 0, 0, time.UTC) },
	}), store
}

func do(h http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var authorized = map[string]string{"Authorization": "Bearer " + secret}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec := do(h, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "2025-02-01T06:00:00Z", body["time"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestTrigger(t *testing.T) {
	h, store := newTestRouter(t, nil)

	rec := do(h, http.MethodPost, "/internal/jobs/Reports", authorized)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "job-reports", body["job_id"])
	assert.Equal(t, "reports", body["type"])

	job, err := store.GetJob(context.Background(), "job-reports")
	require.NoError(t, err)
	assert.Equal(t, "http", job.Trigger)
}

func TestTrigger_Auth(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodPost, "/internal/jobs/recurring", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodPost, "/internal/jobs/recurring", map[string]string{"Authorization": "Bearer nope"}).Code)
	assert.Equal(t, http.StatusAccepted, do(h, http.MethodPost, "/internal/jobs/recurring", map[string]string{"X-Cron-Secret": secret}).Code)

	disabled := NewRouter(Dependencies{JobStore: inmemory.NewStore(), Logger: zerolog.Nop()})
	assert.Equal(t, http.StatusForbidden, do(disabled, http.MethodPost, "/internal/jobs/recurring", authorized).Code)
}

func TestTrigger_Errors(t *testing.T) {
	h, _ := newTestRouter(t, &mockPublisher{PublishFunc: func(context.Context, *jobs.BatchJob) error {
		return errors.New("queue is closed")
	}})

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodPost, "/internal/jobs/payroll", authorized).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(h, http.MethodPost, "/internal/jobs/recurring", authorized).Code)
}

func TestJobStatus(t *testing.T) {
	h, store := newTestRouter(t, nil)
	ctx := context.Background()
	base := time.Date(2025, 2, 1, 6, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveJob(ctx, &jobs.BatchJob{
		JobID: "r1", Type: jobs.JobTypeReports, Status: jobs.JobStatusCompleted, CreatedAt: base,
		Summary: &domain.BatchSummary{Success: true, ProcessedCount: 3},
	}))
	require.NoError(t, store.SaveJob(ctx, &jobs.BatchJob{
		JobID: "c1", Type: jobs.JobTypeRecurring, Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Hour),
	}))

	rec := do(h, http.MethodGet, "/internal/jobs/reports/r1", authorized)
	require.Equal(t, http.StatusOK, rec.Code)
	var job jobs.BatchJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, jobs.JobStatusCompleted, job.Status)
	require.NotNil(t, job.Summary)
	assert.Equal(t, 3, job.Summary.ProcessedCount)

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/internal/jobs/reports/c1", authorized).Code, "kind must match")
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/internal/jobs/reports/missing", authorized).Code)

	rec = do(h, http.MethodGet, "/internal/jobs/?status=failed", authorized)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"count":1`))
	assert.Contains(t, rec.Body.String(), `"job_id":"c1"`)

	rec = do(h, http.MethodGet, "/internal/jobs/reports", authorized)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"job_id":"r1"`)
	assert.NotContains(t, rec.Body.String(), `"job_id":"c1"`)
}
