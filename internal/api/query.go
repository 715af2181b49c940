package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Pavel401/bugviper/internal/models"
	"github.com/Pavel401/bugviper/internal/review"
)

type diffContextRequest struct {
	Repo    string        `json:"repo"` // "owner/name"
	Changes []models.Hunk `json:"changes"`
}

// handleDiffContext builds review context for explicit hunks.
func (s *Server) handleDiffContext(w http.ResponseWriter, r *http.Request) {
	var req diffContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Repo == "" {
		writeError(w, http.StatusUnprocessableEntity, "repo is required")
		return
	}

	result, err := s.builder.Build(r.Context(), req.Repo, req.Changes)
	if err != nil {
		s.logger.WithError(err).Error("diff context assembly failed")
		writeError(w, http.StatusInternalServerError, "context assembly failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type prContextRequest struct {
	Owner    string `json:"owner"`
	RepoName string `json:"repo_name"`
	PRNumber int    `json:"pr_number"`
}

// handlePRContext maps a pull request's diff to hunks and builds context.
func (s *Server) handlePRContext(w http.ResponseWriter, r *http.Request) {
	var req prContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Owner == "" || req.RepoName == "" || req.PRNumber <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "owner, repo_name and pr_number are required")
		return
	}

	diff, err := s.host.GetPRDiff(r.Context(), req.Owner, req.RepoName, req.PRNumber)
	if err != nil {
		s.logger.WithError(err).Error("could not fetch PR diff")
		writeError(w, http.StatusBadGateway, "could not fetch PR diff")
		return
	}

	hunks := review.ParseUnifiedDiff(diff)
	result, err := s.builder.Build(r.Context(), req.Owner+"/"+req.RepoName, hunks)
	if err != nil {
		s.logger.WithError(err).Error("PR context assembly failed")
		writeError(w, http.StatusInternalServerError, "context assembly failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCallers serves the caller lookup, including the content-scan fallback.
func (s *Server) handleCallers(w http.ResponseWriter, r *http.Request) {
	repo := r.URL.Query().Get("repo")
	name := r.URL.Query().Get("name")
	path := r.URL.Query().Get("path")
	if repo == "" || name == "" {
		writeError(w, http.StatusUnprocessableEntity, "repo and name are required")
		return
	}

	callers, err := s.graph.FindCallers(r.Context(), repo, name, path, s.logger)
	if err != nil {
		s.logger.WithError(err).Error("caller lookup failed")
		writeError(w, http.StatusInternalServerError, "caller lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbol": name, "callers": callers})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	repo := r.URL.Query().Get("repo")
	term := r.URL.Query().Get("q")
	if repo == "" || term == "" {
		writeError(w, http.StatusUnprocessableEntity, "repo and q are required")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	results, err := s.graph.SearchCode(r.Context(), repo, term, limit)
	if err != nil {
		s.logger.WithError(err).Error("code search failed")
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	repo := r.URL.Query().Get("repo")

	var stats map[string]int
	var err error
	if repo == "" {
		stats, err = s.graph.GraphStats(r.Context())
	} else {
		stats, err = s.graph.RepoStats(r.Context(), repo)
	}
	if err != nil {
		s.logger.WithError(err).Error("stats query failed")
		writeError(w, http.StatusInternalServerError, "stats query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}
