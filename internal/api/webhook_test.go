package api

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
)

// memStore is an in-memory jobs.Store for handler tests.
type memStore struct {
	mu   sync.Mutex
	jobs map[string]*models.IngestionJob
}

func newMemStore() *memStore {
	return &memStore{jobs: make(map[string]*models.IngestionJob)}
}

func (m *memStore) Create(_ context.Context, job *models.IngestionJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.jobs {
		if existing.Owner == job.Owner && existing.RepoName == job.RepoName && !existing.Status.Terminal() {
			return jobs.ErrDuplicateJob
		}
	}
	job.Status = models.JobPending
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

func (m *memStore) ListRecent(_ context.Context, limit int) ([]*models.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.IngestionJob
	for _, job := range m.jobs {
		out = append(out, job)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) FindActive(_ context.Context, owner, repoName string) (*models.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.jobs {
		if job.Owner == owner && job.RepoName == repoName && !job.Status.Terminal() {
			return job, nil
		}
	}
	return nil, nil
}

func (m *memStore) UpdateStatus(_ context.Context, jobID string, status models.JobStatus, stats *models.IngestionStats, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return jobs.ErrNotFound
	}
	job.Status = status
	job.Stats = stats
	job.ErrorMessage = errorMessage
	return nil
}

// fakeDispatcher records dispatched payloads.
type fakeDispatcher struct {
	mu     sync.Mutex
	ingest []models.IngestionTaskPayload
	prs    []models.IncrementalPRPayload
	pushes []models.IncrementalPushPayload
}

func (f *fakeDispatcher) DispatchIngestion(p models.IngestionTaskPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingest = append(f.ingest, p)
	return nil
}

func (f *fakeDispatcher) DispatchIncrementalPR(p models.IncrementalPRPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prs = append(f.prs, p)
	return nil
}

func (f *fakeDispatcher) DispatchIncrementalPush(p models.IncrementalPushPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, p)
	return nil
}

func testServer(store *memStore, dispatcher *fakeDispatcher) *Server {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	// Graph collaborators are untouched by the webhook paths under test.
	return NewServer(nil, nil, nil, nil, store, dispatcher, "", logger)
}

func postWebhook(t *testing.T, s *Server, event string, payload map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/github", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", event)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

const zeros = "0000000000000000000000000000000000000000"

func pushPayload(before, after string) map[string]any {
	return map[string]any{
		"ref":    "refs/heads/main",
		"before": before,
		"after":  after,
		"repository": map[string]any{
			"name":  "lib",
			"owner": map[string]any{"login": "octo"},
		},
	}
}

func TestWebhookPushDispatchesIncrementalUpdate(t *testing.T) {
	store := newMemStore()
	dispatcher := &fakeDispatcher{}
	s := testServer(store, dispatcher)

	rec := postWebhook(t, s, "push", pushPayload("aaa1111111", "bbb2222222"))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "processing", body["status"])
	assert.NotEmpty(t, body["job_id"])

	require.Len(t, dispatcher.pushes, 1)
	assert.Equal(t, "octo", dispatcher.pushes[0].Owner)
	assert.Equal(t, "aaa1111111", dispatcher.pushes[0].BeforeSHA)

	job, err := store.Get(context.Background(), dispatcher.pushes[0].JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobDispatched, job.Status)
}

func TestWebhookPushIgnoresBranchCreationAndDeletion(t *testing.T) {
	store := newMemStore()
	dispatcher := &fakeDispatcher{}
	s := testServer(store, dispatcher)

	rec := postWebhook(t, s, "push", pushPayload(zeros, "bbb2222222"))
	assert.Equal(t, "ignored", decodeBody(t, rec)["status"])

	rec = postWebhook(t, s, "push", pushPayload("aaa1111111", zeros))
	assert.Equal(t, "ignored", decodeBody(t, rec)["status"])

	assert.Empty(t, dispatcher.pushes)
}

func TestWebhookPRMergeDispatchesUpdate(t *testing.T) {
	store := newMemStore()
	dispatcher := &fakeDispatcher{}
	s := testServer(store, dispatcher)

	rec := postWebhook(t, s, "pull_request", map[string]any{
		"action": "closed",
		"pull_request": map[string]any{
			"number": 7,
			"merged": true,
		},
		"repository": map[string]any{
			"name":  "lib",
			"owner": map[string]any{"login": "octo"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "processing", decodeBody(t, rec)["status"])

	require.Len(t, dispatcher.prs, 1)
	assert.Equal(t, 7, dispatcher.prs[0].PRNumber)
}

func TestWebhookPRClosedWithoutMergeIgnored(t *testing.T) {
	store := newMemStore()
	dispatcher := &fakeDispatcher{}
	s := testServer(store, dispatcher)

	rec := postWebhook(t, s, "pull_request", map[string]any{
		"action": "closed",
		"pull_request": map[string]any{
			"number": 7,
			"merged": false,
		},
		"repository": map[string]any{
			"name":  "lib",
			"owner": map[string]any{"login": "octo"},
		},
	})
	assert.Equal(t, "ignored", decodeBody(t, rec)["status"])
	assert.Empty(t, dispatcher.prs)
}

func TestWebhookDuplicateJobReturnsInFlightID(t *testing.T) {
	store := newMemStore()
	dispatcher := &fakeDispatcher{}
	s := testServer(store, dispatcher)

	first := postWebhook(t, s, "push", pushPayload("aaa1111111", "bbb2222222"))
	firstID := decodeBody(t, first)["job_id"].(string)

	second := postWebhook(t, s, "push", pushPayload("bbb2222222", "ccc3333333"))
	body := decodeBody(t, second)
	assert.Equal(t, "already_processing", body["status"])
	assert.Equal(t, firstID, body["job_id"])

	require.Len(t, dispatcher.pushes, 1)
}

func TestWebhookCommentTriggersReview(t *testing.T) {
	store := newMemStore()
	dispatcher := &fakeDispatcher{}
	s := testServer(store, dispatcher)

	payload := map[string]any{
		"action": "created",
		"issue": map[string]any{
			"number":       12,
			"pull_request": map[string]any{"url": "https://api.github.com/repos/octo/lib/pulls/12"},
		},
		"comment": map[string]any{"body": "please @BugViper review this"},
		"repository": map[string]any{
			"name":  "lib",
			"owner": map[string]any{"login": "octo"},
		},
	}

	rec := postWebhook(t, s, "issue_comment", payload)
	body := decodeBody(t, rec)
	assert.Equal(t, "processing", body["status"])
	assert.Equal(t, "review", body["action"])

	// Without the mention the comment is ignored
	payload["comment"] = map[string]any{"body": "looks fine to me"}
	rec = postWebhook(t, s, "issue_comment", payload)
	assert.Equal(t, "ignored", decodeBody(t, rec)["status"])
}

func TestIngestEndpointValidation(t *testing.T) {
	store := newMemStore()
	dispatcher := &fakeDispatcher{}
	s := testServer(store, dispatcher)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/github",
		bytes.NewReader([]byte(`{"owner": "", "repo_name": ""}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, dispatcher.ingest)
}

func TestIngestEndpointQueuesJob(t *testing.T) {
	store := newMemStore()
	dispatcher := &fakeDispatcher{}
	s := testServer(store, dispatcher)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/github",
		bytes.NewReader([]byte(`{"owner": "octo", "repo_name": "lib", "clear_existing": true}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "queued", body["status"])

	require.Len(t, dispatcher.ingest, 1)
	assert.True(t, dispatcher.ingest[0].ClearExisting)
	assert.Equal(t, "octo/lib", dispatcher.ingest[0].Owner+"/"+dispatcher.ingest[0].RepoName)
}
