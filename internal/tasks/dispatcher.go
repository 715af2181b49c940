// Package tasks dispatches queued work to the worker process over HTTP. The
// delivery model mirrors a cloud task queue: POST with an authenticated
// identity token, a dispatch deadline, and at-least-once semantics — the
// worker endpoints are idempotent against the job tracker.
package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Pavel401/bugviper/internal/models"
)

// Task endpoint paths on the worker.
const (
	PathIngest          = "/tasks/ingest"
	PathIncrementalPR   = "/tasks/incremental-pr"
	PathIncrementalPush = "/tasks/incremental-push"
)

// AuthHeader carries the dispatcher's identity token to the worker.
const AuthHeader = "X-Tasks-Token"

const maxDeliveryAttempts = 3

// Dispatcher enqueues task payloads for asynchronous execution.
type Dispatcher interface {
	DispatchIngestion(payload models.IngestionTaskPayload) error
	DispatchIncrementalPR(payload models.IncrementalPRPayload) error
	DispatchIncrementalPush(payload models.IncrementalPushPayload) error
}

// HTTPDispatcher delivers payloads to the worker's task endpoints in the
// background, retrying failed deliveries.
type HTTPDispatcher struct {
	baseURL   string
	authToken string
	deadline  time.Duration
	client    *http.Client
	logger    *logrus.Logger
}

// NewHTTPDispatcher builds a dispatcher targeting the worker base URL.
func NewHTTPDispatcher(baseURL, authToken string, deadline time.Duration, logger *logrus.Logger) *HTTPDispatcher {
	if deadline <= 0 {
		deadline = 30 * time.Minute
	}
	return &HTTPDispatcher{
		baseURL:   baseURL,
		authToken: authToken,
		deadline:  deadline,
		client:    &http.Client{},
		logger:    logger,
	}
}

func (d *HTTPDispatcher) DispatchIngestion(payload models.IngestionTaskPayload) error {
	return d.enqueue(PathIngest, payload.JobID, payload)
}

func (d *HTTPDispatcher) DispatchIncrementalPR(payload models.IncrementalPRPayload) error {
	return d.enqueue(PathIncrementalPR, payload.JobID, payload)
}

func (d *HTTPDispatcher) DispatchIncrementalPush(payload models.IncrementalPushPayload) error {
	return d.enqueue(PathIncrementalPush, payload.JobID, payload)
}

// enqueue serializes the payload and delivers it asynchronously. The HTTP
// request itself runs under the dispatch deadline; the caller returns as soon
// as the payload is accepted locally.
func (d *HTTPDispatcher) enqueue(path, jobID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal task payload: %w", err)
	}

	go d.deliver(path, jobID, body)
	return nil
}

func (d *HTTPDispatcher) deliver(path, jobID string, body []byte) {
	log := d.logger.WithFields(logrus.Fields{"job_id": jobID, "path": path})

	for attempt := 1; attempt <= maxDeliveryAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.deadline)
		err := d.post(ctx, path, body)
		cancel()

		if err == nil {
			log.Debug("task delivered")
			return
		}
		log.WithError(err).WithField("attempt", attempt).Warn("task delivery failed")

		if attempt < maxDeliveryAttempts {
			time.Sleep(time.Duration(attempt) * 5 * time.Second)
		}
	}
	log.Error("task delivery abandoned after retries; tracker record stays PENDING")
}

func (d *HTTPDispatcher) post(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.authToken != "" {
		req.Header.Set(AuthHeader, d.authToken)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("worker answered %d", resp.StatusCode)
	}
	return nil
}
