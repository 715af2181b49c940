// Package github wraps the repository-host API: commit comparison, PR file
// listings, file content, comments and clone credentials.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Pavel401/bugviper/internal/models"
)

// ErrAccessDenied is returned when the authenticated identity cannot see the
// repository. It is fatal for the job that hit it.
var ErrAccessDenied = errors.New("repository access denied")

// Client wraps the GitHub API client with rate limiting.
type Client struct {
	gh      *github.Client
	tokens  TokenSource
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// NewClient builds a client from a token source.
func NewClient(tokens TokenSource, rateLimit int, logger *logrus.Logger) *Client {
	if rateLimit <= 0 {
		rateLimit = 10
	}
	httpClient := &http.Client{Transport: tokens.Transport()}
	return &Client{
		gh:      github.NewClient(httpClient),
		tokens:  tokens,
		limiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
		logger:  logger,
	}
}

// Token returns a credential usable for git clone/fetch over HTTPS.
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.tokens.Token(ctx)
}

// VerifyAccess confirms the authenticated identity can read the repository and
// returns its default branch.
func (c *Client) VerifyAccess(ctx context.Context, owner, name string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	repo, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound) {
			return "", fmt.Errorf("%w: %s/%s", ErrAccessDenied, owner, name)
		}
		return "", fmt.Errorf("fetch repository %s/%s: %w", owner, name, err)
	}
	return repo.GetDefaultBranch(), nil
}

// CloneURL returns the HTTPS clone URL for a repository.
func (c *Client) CloneURL(owner, name string) string {
	return fmt.Sprintf("https://github.com/%s/%s.git", owner, name)
}

// Compare returns the files changed between two commits.
func (c *Client) Compare(ctx context.Context, owner, name, beforeSHA, afterSHA string) ([]models.ChangeRecord, error) {
	var all []models.ChangeRecord
	opts := &github.ListOptions{PerPage: 100}

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		comparison, resp, err := c.gh.Repositories.CompareCommits(ctx, owner, name, beforeSHA, afterSHA, opts)
		if err != nil {
			return nil, fmt.Errorf("compare %s..%s: %w", shortSHA(beforeSHA), shortSHA(afterSHA), err)
		}
		for _, f := range comparison.Files {
			all = append(all, changeRecord(f))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListPRFiles returns the files changed in a pull request.
func (c *Client) ListPRFiles(ctx context.Context, owner, name string, prNumber int) ([]models.ChangeRecord, error) {
	var all []models.ChangeRecord
	opts := &github.ListOptions{PerPage: 100}

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		files, resp, err := c.gh.PullRequests.ListFiles(ctx, owner, name, prNumber, opts)
		if err != nil {
			return nil, fmt.Errorf("list PR files %s/%s#%d: %w", owner, name, prNumber, err)
		}
		for _, f := range files {
			all = append(all, changeRecord(f))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// GetPRDiff fetches the unified diff text of a pull request.
func (c *Client) GetPRDiff(ctx context.Context, owner, name string, prNumber int) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	diff, _, err := c.gh.PullRequests.GetRaw(ctx, owner, name, prNumber,
		github.RawOptions{Type: github.Diff})
	if err != nil {
		return "", fmt.Errorf("fetch PR diff %s/%s#%d: %w", owner, name, prNumber, err)
	}
	return diff, nil
}

// GetFileContent fetches one file's bytes at a ref.
func (c *Client) GetFileContent(ctx context.Context, owner, name, path, ref string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	content, _, _, err := c.gh.Repositories.GetContents(ctx, owner, name, path,
		&github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, fmt.Errorf("fetch content %s@%s: %w", path, ref, err)
	}
	if content == nil {
		return nil, fmt.Errorf("path %s is not a file", path)
	}
	text, err := content.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode content %s: %w", path, err)
	}
	return []byte(text), nil
}

// PostComment posts a comment on a pull request.
func (c *Client) PostComment(ctx context.Context, owner, name string, prNumber int, body string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	_, _, err := c.gh.Issues.CreateComment(ctx, owner, name, prNumber,
		&github.IssueComment{Body: github.String(body)})
	if err != nil {
		return fmt.Errorf("post comment %s/%s#%d: %w", owner, name, prNumber, err)
	}
	return nil
}

func changeRecord(f *github.CommitFile) models.ChangeRecord {
	return models.ChangeRecord{
		Filename:         f.GetFilename(),
		Status:           models.ChangeStatus(f.GetStatus()),
		PreviousFilename: f.GetPreviousFilename(),
		Additions:        f.GetAdditions(),
		Deletions:        f.GetDeletions(),
	}
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
