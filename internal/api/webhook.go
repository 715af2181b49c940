package api

import (
	"net/http"
	"strings"

	gh "github.com/google/go-github/v57/github"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Pavel401/bugviper/internal/models"
)

const zeroSHA = "0000000000000000000000000000000000000000"

// reviewMention triggers a PR review when present in a comment.
const reviewMention = "@bugviper"

// handleWebhook validates and routes GitHub webhook deliveries.
//
// Acceptance contract:
//   - push: both SHAs must be real commits (no branch create/delete)
//   - pull_request: only closed with merged = true
//   - issue_comment: only created, on a PR, mentioning the bot
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := gh.ValidatePayload(r, []byte(s.webhookSecret))
	if err != nil {
		s.logger.WithError(err).Warn("webhook signature validation failed")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	event, err := gh.ParseWebHook(gh.WebHookType(r), payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not parse webhook")
		return
	}

	switch e := event.(type) {
	case *gh.PushEvent:
		s.handlePush(w, r, e)
	case *gh.PullRequestEvent:
		s.handlePRMerge(w, r, e)
	case *gh.IssueCommentEvent:
		s.handleReviewComment(w, r, e)
	default:
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ignored", "reason": "unhandled event type: " + gh.WebHookType(r),
		})
	}
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request, event *gh.PushEvent) {
	before := event.GetBefore()
	after := event.GetAfter()

	if after == zeroSHA {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "branch deletion"})
		return
	}
	if before == zeroSHA {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ignored", "reason": "new branch creation - use full ingestion",
		})
		return
	}

	owner := event.GetRepo().GetOwner().GetLogin()
	if owner == "" {
		owner = event.GetRepo().GetOwner().GetName()
	}
	repoName := event.GetRepo().GetName()

	s.logger.WithFields(logrus.Fields{
		"repo": owner + "/" + repoName, "ref": event.GetRef(),
		"range": shortRange(before, after),
	}).Info("push event received")

	jobID := "inc-push-" + uuid.NewString()[:12]
	job := &models.IngestionJob{JobID: jobID, Owner: owner, RepoName: repoName}
	if _, handled := s.createOrReuseJob(w, r, job); handled {
		return
	}

	if err := s.dispatcher.DispatchIncrementalPush(models.IncrementalPushPayload{
		JobID: jobID, Owner: owner, RepoName: repoName,
		BeforeSHA: before, AfterSHA: after,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to dispatch update")
		return
	}
	_ = s.store.UpdateStatus(r.Context(), jobID, models.JobDispatched, nil, "")

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "processing", "job_id": jobID,
		"repo": owner + "/" + repoName, "commits": shortRange(before, after),
	})
}

func (s *Server) handlePRMerge(w http.ResponseWriter, r *http.Request, event *gh.PullRequestEvent) {
	if event.GetAction() != "closed" {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ignored", "reason": "action is not closed",
		})
		return
	}
	if !event.GetPullRequest().GetMerged() {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ignored", "reason": "PR was closed but not merged",
		})
		return
	}

	owner := event.GetRepo().GetOwner().GetLogin()
	repoName := event.GetRepo().GetName()
	prNumber := event.GetPullRequest().GetNumber()

	s.logger.WithFields(logrus.Fields{
		"repo": owner + "/" + repoName, "pr": prNumber,
	}).Info("PR merged, dispatching incremental update")

	jobID := "inc-pr-" + uuid.NewString()[:12]
	job := &models.IngestionJob{JobID: jobID, Owner: owner, RepoName: repoName}
	if _, handled := s.createOrReuseJob(w, r, job); handled {
		return
	}

	if err := s.dispatcher.DispatchIncrementalPR(models.IncrementalPRPayload{
		JobID: jobID, Owner: owner, RepoName: repoName, PRNumber: prNumber,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to dispatch update")
		return
	}
	_ = s.store.UpdateStatus(r.Context(), jobID, models.JobDispatched, nil, "")

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "processing", "job_id": jobID,
		"pr": prNumber, "action": "graph_update",
	})
}

// handleReviewComment accepts a review trigger. Context assembly itself is
// served by the pr-context query endpoint; the LLM pipeline consuming it is an
// external collaborator.
func (s *Server) handleReviewComment(w http.ResponseWriter, r *http.Request, event *gh.IssueCommentEvent) {
	if event.GetAction() != "created" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "action is not created"})
		return
	}
	if event.GetIssue().GetPullRequestLinks() == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "comment is not on a pull request"})
		return
	}
	if !strings.Contains(strings.ToLower(event.GetComment().GetBody()), reviewMention) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "no " + reviewMention + " mention"})
		return
	}

	owner := event.GetRepo().GetOwner().GetLogin()
	repoName := event.GetRepo().GetName()
	prNumber := event.GetIssue().GetNumber()

	s.logger.WithFields(logrus.Fields{
		"repo": owner + "/" + repoName, "pr": prNumber,
	}).Info("PR review triggered")

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "processing",
		"pr":     prNumber,
		"action": "review",
	})
}

// createOrReuseJob persists the tracker record, answering with the in-flight
// job when one already exists. Returns handled = true when a response was
// already written.
func (s *Server) createOrReuseJob(w http.ResponseWriter, r *http.Request, job *models.IngestionJob) (*models.IngestionJob, bool) {
	err := s.store.Create(r.Context(), job)
	if err == nil {
		return job, false
	}

	active, findErr := s.store.FindActive(r.Context(), job.Owner, job.RepoName)
	if findErr == nil && active != nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "already_processing", "job_id": active.JobID,
		})
		return active, true
	}

	s.logger.WithError(err).Error("could not create job record")
	writeError(w, http.StatusInternalServerError, "failed to create job")
	return nil, true
}

func shortRange(before, after string) string {
	short := func(sha string) string {
		if len(sha) > 7 {
			return sha[:7]
		}
		return sha
	}
	return short(before) + ".." + short(after)
}
