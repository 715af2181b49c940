// Package worker exposes the task endpoints the queue delivers to. Endpoints
// are idempotent: a re-delivered payload reruns against its job-id row, which
// short-circuits when the job already reached a terminal state. Workers answer
// 200 even on business failure so the queue does not retry permanent errors;
// the job tracker carries the real outcome.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/Pavel401/bugviper/internal/incremental"
	"github.com/Pavel401/bugviper/internal/ingestion"
	"github.com/Pavel401/bugviper/internal/jobs"
	"github.com/Pavel401/bugviper/internal/models"
	"github.com/Pavel401/bugviper/internal/tasks"
)

// Server handles task deliveries.
type Server struct {
	pipeline  *ingestion.Pipeline
	updater   *incremental.Updater
	store     jobs.Store
	authToken string
	logger    *logrus.Logger
}

// NewServer wires the worker's collaborators.
func NewServer(pipeline *ingestion.Pipeline, updater *incremental.Updater, store jobs.Store, authToken string, logger *logrus.Logger) *Server {
	return &Server{
		pipeline:  pipeline,
		updater:   updater,
		store:     store,
		authToken: authToken,
		logger:    logger,
	}
}

// Router builds the worker's HTTP surface.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post(tasks.PathIngest, s.handleIngest)
		r.Post(tasks.PathIncrementalPR, s.handleIncrementalPR)
		r.Post(tasks.PathIncrementalPush, s.handleIncrementalPush)
	})
	return r
}

// authenticate verifies the dispatcher's identity token.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authToken != "" && r.Header.Get(tasks.AuthHeader) != s.authToken {
			http.Error(w, "invalid task token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var payload models.IngestionTaskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	s.runJob(r.Context(), payload.JobID, func(ctx context.Context) (*models.IngestionStats, error) {
		return s.pipeline.Run(ctx, payload.Owner, payload.RepoName, payload.Branch, payload.ClearExisting)
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed", "job_id": payload.JobID})
}

func (s *Server) handleIncrementalPR(w http.ResponseWriter, r *http.Request) {
	var payload models.IncrementalPRPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	s.runJob(r.Context(), payload.JobID, func(ctx context.Context) (*models.IngestionStats, error) {
		stats, err := s.updater.UpdateForPR(ctx, payload.Owner, payload.RepoName, payload.PRNumber)
		return incrementalToIngestionStats(stats), err
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed", "job_id": payload.JobID})
}

func (s *Server) handleIncrementalPush(w http.ResponseWriter, r *http.Request) {
	var payload models.IncrementalPushPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	s.runJob(r.Context(), payload.JobID, func(ctx context.Context) (*models.IngestionStats, error) {
		stats, err := s.updater.UpdateForPush(ctx, payload.Owner, payload.RepoName, payload.BeforeSHA, payload.AfterSHA)
		return incrementalToIngestionStats(stats), err
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed", "job_id": payload.JobID})
}

// runJob executes one unit of work against its tracker row.
func (s *Server) runJob(ctx context.Context, jobID string, run func(context.Context) (*models.IngestionStats, error)) {
	log := s.logger.WithField("job_id", jobID)

	job, err := s.store.Get(ctx, jobID)
	if errors.Is(err, jobs.ErrNotFound) {
		log.Warn("delivery for unknown job, skipping")
		return
	}
	if err != nil {
		log.WithError(err).Error("tracker lookup failed")
		return
	}
	if job.Status.Terminal() {
		log.WithField("status", job.Status).Info("job already terminal, skipping re-delivery")
		return
	}

	if err := s.store.UpdateStatus(ctx, jobID, models.JobRunning, nil, ""); err != nil {
		log.WithError(err).Error("could not mark job running")
		return
	}

	stats, err := run(ctx)
	if err != nil {
		log.WithError(err).Error("job failed")
		if updateErr := s.store.UpdateStatus(ctx, jobID, models.JobFailed, stats, err.Error()); updateErr != nil {
			log.WithError(updateErr).Error("could not record job failure")
		}
		return
	}

	if err := s.store.UpdateStatus(ctx, jobID, models.JobCompleted, stats, ""); err != nil {
		log.WithError(err).Error("could not record job completion")
	}
}

// incrementalToIngestionStats folds incremental results into the tracker's
// stats shape.
func incrementalToIngestionStats(stats *models.IncrementalStats) *models.IngestionStats {
	if stats == nil {
		return nil
	}
	return &models.IngestionStats{
		FilesProcessed: stats.FilesAdded + stats.FilesModified + stats.FilesRenamed,
		FilesSkipped:   stats.FilesDeleted,
		Errors:         stats.Errors,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
