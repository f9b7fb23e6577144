// Package handlers implements the operational HTTP endpoints.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Gargee-Buva/Finora/internal/api/middleware"
	"github.com/Gargee-Buva/Finora/internal/jobs"
	"github.com/Gargee-Buva/Finora/internal/logger"
)

// JobsHandler triggers batch jobs and reports their status.
type JobsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(publisher jobs.Publisher, store jobs.JobStore) *JobsHandler {
	return &JobsHandler{publisher: publisher, store: store}
}

// Trigger handles POST /internal/jobs/{kind}. The job runs asynchronously;
// the response carries its ID for status polling.
func (h *JobsHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	kind, err := jobs.ParseJobType(chi.URLParam(r, "kind"))
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	job := &jobs.BatchJob{Type: kind, Trigger: "http"}
	if err := h.publisher.Publish(ctx, job); err != nil {
		log.Error().Err(err).Str("job_type", string(kind)).Msg("Failed to publish job")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue job")
		return
	}

	log.Info().Str("job_id", job.JobID).Str("job_type", string(kind)).Msg("Job enqueued")
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"type":   string(job.Type),
		"status": string(job.Status),
	})
}

// GetJob handles GET /internal/jobs/{kind}/{jobID}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobID")

	kind, err := jobs.ParseJobType(chi.URLParam(r, "kind"))
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	job, err := h.store.GetJob(ctx, jobID)
	if errors.Is(err, jobs.ErrJobNotFound) || (err == nil && job.Type != kind) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /internal/jobs and GET /internal/jobs/{kind}, with
// optional status, limit and offset query parameters.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := jobs.JobFilter{Status: jobs.JobStatus(query.Get("status")), Limit: 50}
	if k := chi.URLParam(r, "kind"); k != "" {
		kind, err := jobs.ParseJobType(k)
		if err != nil {
			middleware.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		filter.Type = kind
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(query.Get("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}

	list, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":  list,
		"count": len(list),
	})
}

// Health handles GET /health.
func Health(now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   now().UTC().Format(time.RFC3339),
		})
	}
}
