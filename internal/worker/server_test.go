package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pavel401/bugviper/internal/jobs"
	"github.com/Pavel401/bugviper/internal/models"
	"github.com/Pavel401/bugviper/internal/tasks"
)

type memStore struct {
	mu          sync.Mutex
	jobs        map[string]*models.IngestionJob
	transitions []models.JobStatus
}

func newMemStore(seed ...*models.IngestionJob) *memStore {
	m := &memStore{jobs: make(map[string]*models.IngestionJob)}
	for _, job := range seed {
		m.jobs[job.JobID] = job
	}
	return m
}

func (m *memStore) Create(_ context.Context, job *models.IngestionJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.JobID] = job
	return nil
}

func (m *memStore) Get(_ context.Context, jobID string) (*models.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, jobs.ErrNotFound
	}
	return job, nil
}

func (m *memStore) ListRecent(context.Context, int) ([]*models.IngestionJob, error) {
	return nil, nil
}

func (m *memStore) FindActive(context.Context, string, string) (*models.IngestionJob, error) {
	return nil, nil
}

func (m *memStore) UpdateStatus(_ context.Context, jobID string, status models.JobStatus, _ *models.IngestionStats, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return jobs.ErrNotFound
	}
	job.Status = status
	m.transitions = append(m.transitions, status)
	return nil
}

func testWorker(store jobs.Store, authToken string) *Server {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	// The pipeline and updater are only reached for non-terminal jobs, which
	// these tests never run to completion.
	return NewServer(nil, nil, store, authToken, logger)
}

func postTask(t *testing.T, s *Server, path string, payload any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := testWorker(newMemStore(), "")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "healthy"}`, rec.Body.String())
}

func TestRedeliveryOfTerminalJobShortCircuits(t *testing.T) {
	store := newMemStore(&models.IngestionJob{
		JobID: "job-1", Owner: "octo", RepoName: "lib", Status: models.JobCompleted,
	})
	s := testWorker(store, "")

	rec := postTask(t, s, tasks.PathIngest, models.IngestionTaskPayload{
		JobID: "job-1", Owner: "octo", RepoName: "lib",
	}, nil)

	// 200 even though no work ran; queue must not retry
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "processed", body["status"])
	assert.Equal(t, "job-1", body["job_id"])

	assert.Empty(t, store.transitions, "terminal job must not transition")
}

func TestUnknownJobIsSkipped(t *testing.T) {
	store := newMemStore()
	s := testWorker(store, "")

	rec := postTask(t, s, tasks.PathIncrementalPush, models.IncrementalPushPayload{
		JobID: "ghost", Owner: "octo", RepoName: "lib",
		BeforeSHA: "a", AfterSHA: "b",
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, store.transitions)
}

func TestTaskAuthTokenEnforced(t *testing.T) {
	store := newMemStore()
	s := testWorker(store, "secret-token")

	rec := postTask(t, s, tasks.PathIngest, models.IngestionTaskPayload{JobID: "x"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postTask(t, s, tasks.PathIngest, models.IngestionTaskPayload{JobID: "x"},
		map[string]string{tasks.AuthHeader: "secret-token"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInvalidPayloadRejected(t *testing.T) {
	s := testWorker(newMemStore(), "")

	req := httptest.NewRequest(http.MethodPost, tasks.PathIngest, bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIncrementalStatsFold(t *testing.T) {
	assert.Nil(t, incrementalToIngestionStats(nil))

	stats := incrementalToIngestionStats(&models.IncrementalStats{
		FilesAdded: 2, FilesModified: 3, FilesDeleted: 1, FilesRenamed: 1,
		Errors: []string{"boom"},
	})
	assert.Equal(t, 6, stats.FilesProcessed)
	assert.Equal(t, 1, stats.FilesSkipped)
	assert.Equal(t, []string{"boom"}, stats.Errors)
}
