package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/sirupsen/logrus"
)

// ErrClone marks a failed repository clone; fatal for the job.
var ErrClone = errors.New("git clone failed")

// ScratchPath returns the per-job clone location. Exclusivity is guaranteed by
// the job tracker: only one active job may exist per owner/repo.
func ScratchPath(base, owner, repo string) string {
	return filepath.Join(base, owner, repo)
}

// CloneOptions configures a scratch clone.
type CloneOptions struct {
	URL    string
	Branch string // empty means the remote default
	Token  string
	Depth  int
}

// Clone performs a fresh shallow clone into path, removing any stale contents
// first. The caller owns the path and must release it on every exit.
func Clone(ctx context.Context, path string, opts CloneOptions, logger *logrus.Logger) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("clear scratch path %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create scratch parent: %w", err)
	}

	cloneOpts := &git.CloneOptions{
		URL:          opts.URL,
		Depth:        opts.Depth,
		SingleBranch: true,
		Auth:         BasicAuth(opts.Token),
	}
	if opts.Branch != "" {
		cloneOpts.ReferenceName = branchRef(opts.Branch)
	}

	logger.WithFields(logrus.Fields{"url": opts.URL, "path": path}).Info("cloning repository")
	if _, err := git.PlainCloneContext(ctx, path, false, cloneOpts); err != nil {
		_ = os.RemoveAll(path)
		return fmt.Errorf("%w: %v", ErrClone, err)
	}
	return nil
}

// Release removes a scratch clone. Errors are logged, not returned: release
// runs on every exit path and must not mask the job's outcome.
func Release(path string, logger *logrus.Logger) {
	if err := os.RemoveAll(path); err != nil {
		logger.WithError(err).WithField("path", path).Warn("failed to remove scratch clone")
	}
}

func branchRef(branch string) plumbing.ReferenceName {
	return plumbing.NewBranchReferenceName(branch)
}

// BasicAuth builds git HTTPS credentials from an installation or access token.
func BasicAuth(token string) *githttp.BasicAuth {
	if token == "" {
		return nil
	}
	return &githttp.BasicAuth{Username: "x-access-token", Password: token}
}
