package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// maxServedFileBytes gates untruncated full-file retrieval.
const maxServedFileBytes = 1024 * 1024

func (s *Server) handleListRepositories(w http.ResponseWriter, r *http.Request) {
	repos, err := s.graph.ListRepositories(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("repository listing failed")
		writeError(w, http.StatusInternalServerError, "repository listing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"repositories": repos})
}

// handleDeleteRepository cascade-deletes a repository's subgraph.
func (s *Server) handleDeleteRepository(w http.ResponseWriter, r *http.Request) {
	repo := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "repo")

	deleted, err := s.writer.DeleteRepository(r.Context(), repo)
	if err != nil {
		s.logger.WithError(err).Error("repository deletion failed")
		writeError(w, http.StatusInternalServerError, "repository deletion failed")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "repository not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "repo": repo})
}

// handleGetFile serves a stored file's full source, size-gated.
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	repo := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "repo")
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusUnprocessableEntity, "path is required")
		return
	}

	source, lines, err := s.graph.FileSource(r.Context(), repo, path)
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	if len(source) > maxServedFileBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds retrieval size limit")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"repo": repo, "path": path, "lines_count": lines, "source_code": source,
	})
}
