// Package api wires the operational HTTP surface: health, batch triggers and
// job status.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Gargee-Buva/Finora/internal/api/handlers"
	"github.com/Gargee-Buva/Finora/internal/api/middleware"
	"github.com/Gargee-Buva/Finora/internal/jobs"
)

// Dependencies are the services the router exposes.
type Dependencies struct {
	Publisher  jobs.Publisher
	JobStore   jobs.JobStore
	CronSecret string
	Logger     zerolog.Logger
	Now        func() time.Time
}

// NewRouter builds the chi router.
func NewRouter(deps Dependencies) http.Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	jobsHandler := handlers.NewJobsHandler(deps.Publisher, deps.JobStore)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Recovery(deps.Logger))

	r.Get("/health", handlers.Health(deps.Now))

	r.Route("/internal/jobs", func(r chi.Router) {
		r.Use(middleware.CronSecret(deps.CronSecret))
		r.Get("/", jobsHandler.ListJobs)
		r.Post("/{kind}", jobsHandler.Trigger)
		r.Get("/{kind}", jobsHandler.ListJobs)
		r.Get("/{kind}/{jobID}", jobsHandler.GetJob)
	})

	return r
}
