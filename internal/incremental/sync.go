package incremental

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"

	"github.com/Pavel401/bugviper/internal/config"
	"github.com/Pavel401/bugviper/internal/ingestion"
)

// syncRepository brings the cached clone to the remote head of the default
// branch. It tries fetch + hard reset first; any failure falls back to a fresh
// shallow clone. Each operation runs under its own timeout.
func syncRepository(ctx context.Context, cfg *config.Config, cloneURL, branch, token, path string, logger *logrus.Logger) error {
	if isGitRepo(path) {
		if err := fetchAndReset(ctx, cfg, branch, token, path, logger); err == nil {
			return nil
		} else {
			logger.WithError(err).WithField("path", path).Warn("git sync failed, falling back to fresh clone")
		}
	}

	cloneCtx, cancel := context.WithTimeout(ctx, cfg.Ingestion.CloneTimeout)
	defer cancel()
	return ingestion.Clone(cloneCtx, path, ingestion.CloneOptions{
		URL:    cloneURL,
		Branch: branch,
		Token:  token,
		Depth:  1,
	}, logger)
}

func fetchAndReset(ctx context.Context, cfg *config.Config, branch, token, path string, logger *logrus.Logger) error {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return fmt.Errorf("open cached clone: %w", err)
	}

	fetchCtx, cancelFetch := context.WithTimeout(ctx, cfg.Ingestion.FetchTimeout)
	defer cancelFetch()
	err = repo.FetchContext(fetchCtx, &git.FetchOptions{
		RemoteName: "origin",
		Auth:       ingestion.BasicAuth(token),
		Force:      true,
		RefSpecs: []gitconfig.RefSpec{
			gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", branch, branch)),
		},
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("fetch origin: %w", err)
	}

	ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return fmt.Errorf("resolve origin/%s: %w", branch, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	resetCtx, cancelReset := context.WithTimeout(ctx, cfg.Ingestion.ResetTimeout)
	defer cancelReset()
	done := make(chan error, 1)
	go func() {
		done <- worktree.Reset(&git.ResetOptions{Mode: git.HardReset, Commit: ref.Hash()})
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("hard reset to origin/%s: %w", branch, err)
		}
	case <-resetCtx.Done():
		return fmt.Errorf("hard reset timed out: %w", resetCtx.Err())
	}

	logger.WithFields(logrus.Fields{"path": path, "head": ref.Hash().String()[:7]}).Info("synced cached clone")
	return nil
}

func isGitRepo(path string) bool {
	info, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil && info.IsDir()
}
