package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/webscout/webscout/internal/config"
	"github.com/webscout/webscout/internal/metrics"
	"github.com/webscout/webscout/internal/scout"
)

// Orchestrator is the slice of job orchestration the handlers need.
type Orchestrator interface {
	SubmitSingle(ctx context.Context, query scout.Query) (string, error)
	SubmitBulk(ctx context.Context, req scout.BulkRequest) (string, error)
	RunSync(ctx context.Context, query scout.Query) (scout.Job, error)
	Cancel(ctx context.Context, parentID string) error
	Job(id string) (scout.Job, bool)
}

// Server wires HTTP handlers to the orchestrator and stores.
type Server struct {
	router   chi.Router
	orch     Orchestrator
	logs     scout.LogStore
	settings scout.SettingsStore
	lists    scout.ListStore
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	orch Orchestrator,
	logs scout.LogStore,
	settings scout.SettingsStore,
	lists scout.ListStore,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		orch:     orch,
		logs:     logs,
		settings: settings,
		lists:    lists,
		cfg:      cfg,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(2 * time.Minute))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/search", s.search)
		r.Post("/scrape", s.scrape)

		r.Route("/bulk-search", func(r chi.Router) {
			r.Post("/", s.bulkSearch)
			r.Post("/upload", s.bulkSearchUpload)
			r.Get("/template", s.bulkSearchTemplate)
		})
		r.Route("/bulk-scrape", func(r chi.Router) {
			r.Post("/", s.bulkScrape)
			r.Post("/upload", s.bulkScrapeUpload)
		})

		r.Route("/jobs/{job_id}", func(r chi.Router) {
			r.Get("/", s.getJob)
			r.Get("/children", s.getJobChildren)
			r.Post("/cancel", s.cancelJob)
		})
		r.Get("/logs", s.listLogs)

		r.Get("/settings", s.getSettings)
		r.Post("/settings", s.updateSettings)
		r.Get("/whitelist", s.getWhitelist)
		r.Post("/whitelist", s.updateWhitelist)
		r.Get("/blacklist", s.getBlacklist)
		r.Post("/blacklist", s.updateBlacklist)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The log store is the only hard downstream; one cheap read proves it.
	if _, _, err := s.logs.List(r.Context(), 1, 0); err != nil {
		writeError(w, http.StatusServiceUnavailable, "log store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
