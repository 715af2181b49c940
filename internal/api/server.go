// Package api implements the HTTP API process: webhook intake, ingestion job
// management, and synchronous graph queries. Asynchronous work is dispatched
// to the worker through the task queue; this process never runs a job itself.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/Pavel401/bugviper/internal/github"
	"github.com/Pavel401/bugviper/internal/graph"
	"github.com/Pavel401/bugviper/internal/jobs"
	"github.com/Pavel401/bugviper/internal/review"
	"github.com/Pavel401/bugviper/internal/tasks"
)

// Server holds the API process collaborators.
type Server struct {
	graph         *graph.Client
	writer        *graph.Writer
	builder       *review.Builder
	host          *github.Client
	store         jobs.Store
	dispatcher    tasks.Dispatcher
	webhookSecret string
	logger        *logrus.Logger
}

// NewServer wires the API server.
func NewServer(
	graphClient *graph.Client,
	writer *graph.Writer,
	builder *review.Builder,
	host *github.Client,
	store jobs.Store,
	dispatcher tasks.Dispatcher,
	webhookSecret string,
	logger *logrus.Logger,
) *Server {
	return &Server{
		graph:         graphClient,
		writer:        writer,
		builder:       builder,
		host:          host,
		store:         store,
		dispatcher:    dispatcher,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// Router builds the API's HTTP surface.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhook/github", s.handleWebhook)

		r.Route("/ingest", func(r chi.Router) {
			r.Post("/github", s.handleIngestRepo)
			r.Get("/jobs", s.handleListJobs)
			r.Get("/jobs/{jobID}", s.handleGetJob)
		})

		r.Route("/query", func(r chi.Router) {
			r.Post("/diff-context", s.handleDiffContext)
			r.Post("/pr-context", s.handlePRContext)
			r.Get("/callers", s.handleCallers)
			r.Get("/search", s.handleSearch)
			r.Get("/stats", s.handleStats)
		})

		r.Route("/repository", func(r chi.Router) {
			r.Get("/", s.handleListRepositories)
			r.Delete("/{owner}/{repo}", s.handleDeleteRepository)
			r.Get("/{owner}/{repo}/file", s.handleGetFile)
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
