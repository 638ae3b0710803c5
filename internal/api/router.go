package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Priority/internal/analysis"
	"github.com/MikeSquared-Agency/Priority/internal/config"
	"github.com/MikeSquared-Agency/Priority/internal/store"
)

func NewRouter(s store.Store, a *analysis.Analyzer, cfg *config.Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(cfg.Server.RateLimitPerMinute))

	compute := NewComputeHandler(cfg.Engine)
	projects := NewProjectsHandler(s, a)
	comparisons := NewComparisonsHandler(s, a)
	results := NewResultsHandler(a)
	admin := NewAdminHandler(a)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/compute", func(r chi.Router) {
			r.Post("/matrix", compute.Matrix)
			r.Post("/weights", compute.Weights)
			r.Post("/consistency", compute.Consistency)
			r.Post("/synthesis", compute.Synthesis)
			r.Post("/group", compute.Group)
			r.Post("/sensitivity", compute.Sensitivity)
			r.Post("/budget", compute.Budget)
		})

		r.Group(func(r chi.Router) {
			r.Use(EvaluatorIDMiddleware)

			r.Post("/projects", projects.Create)
			r.Get("/projects/{id}", projects.Get)
			r.Post("/projects/{id}/criteria", projects.AddCriterion)
			r.Post("/projects/{id}/alternatives", projects.AddAlternative)
			r.Put("/projects/{id}/evaluators/{evaluator}", projects.PutEvaluator)

			r.Put("/projects/{id}/comparisons", comparisons.Put)
			r.Get("/projects/{id}/comparisons", comparisons.List)

			r.Get("/projects/{id}/results", results.Results)
			r.Post("/projects/{id}/sensitivity", results.Sensitivity)
			r.Post("/projects/{id}/budget", results.Budget)
		})

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.Server.AdminToken))
			r.Get("/admin/cache", admin.Cache)
			r.Post("/admin/cache/flush", admin.FlushCache)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
