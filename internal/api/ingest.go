package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Pavel401/bugviper/internal/jobs"
	"github.com/Pavel401/bugviper/internal/models"
)

type ingestRequest struct {
	Owner         string `json:"owner"`
	RepoName      string `json:"repo_name"`
	Branch        string `json:"branch,omitempty"`
	ClearExisting bool   `json:"clear_existing"`
}

// handleIngestRepo creates an ingestion job and dispatches it. A repository
// with an active job answers 200 with the in-flight job id instead of queuing
// a duplicate.
func (s *Server) handleIngestRepo(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Owner == "" || req.RepoName == "" {
		writeError(w, http.StatusUnprocessableEntity, "owner and repo_name are required")
		return
	}

	job := &models.IngestionJob{
		JobID:         "ingest-" + uuid.NewString()[:12],
		Owner:         req.Owner,
		RepoName:      req.RepoName,
		Branch:        req.Branch,
		ClearExisting: req.ClearExisting,
	}

	if err := s.store.Create(r.Context(), job); err != nil {
		if errors.Is(err, jobs.ErrDuplicateJob) {
			active, findErr := s.store.FindActive(r.Context(), req.Owner, req.RepoName)
			if findErr == nil && active != nil {
				writeJSON(w, http.StatusOK, map[string]string{
					"status": "already_processing", "job_id": active.JobID,
				})
				return
			}
		}
		s.logger.WithError(err).Error("could not create ingestion job")
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	if err := s.dispatcher.DispatchIngestion(models.IngestionTaskPayload{
		JobID:         job.JobID,
		Owner:         job.Owner,
		RepoName:      job.RepoName,
		Branch:        job.Branch,
		ClearExisting: job.ClearExisting,
	}); err != nil {
		s.logger.WithError(err).Error("could not dispatch ingestion task")
		writeError(w, http.StatusInternalServerError, "failed to dispatch job")
		return
	}
	_ = s.store.UpdateStatus(r.Context(), job.JobID, models.JobDispatched, nil, "")

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "queued", "job_id": job.JobID, "repo": job.Repo(),
	})
}

// handleGetJob returns current job state; failed jobs carry the message.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := s.store.Get(r.Context(), jobID)
	if errors.Is(err, jobs.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("job lookup failed")
		writeError(w, http.StatusInternalServerError, "job lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	list, err := s.store.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.WithError(err).Error("job listing failed")
		writeError(w, http.StatusInternalServerError, "job listing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": list})
}
