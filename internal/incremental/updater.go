// Package incremental applies diff-driven partial rebuilds to the code graph:
// stale subgraphs are deleted surgically, changed files are reparsed and
// re-linked, and files that depended on the changed symbols get their outgoing
// edges recreated — no full rebuild.
package incremental

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/Pavel401/bugviper/internal/config"
	"github.com/Pavel401/bugviper/internal/github"
	"github.com/Pavel401/bugviper/internal/graph"
	"github.com/Pavel401/bugviper/internal/ingestion"
	"github.com/Pavel401/bugviper/internal/models"
	"github.com/Pavel401/bugviper/internal/treesitter"
)

// Updater performs incremental graph maintenance for one repository at a time.
type Updater struct {
	client *graph.Client
	writer *graph.Writer
	host   *github.Client
	cfg    *config.Config
	logger *logrus.Logger
}

// NewUpdater wires the updater's collaborators.
func NewUpdater(client *graph.Client, writer *graph.Writer, host *github.Client, cfg *config.Config, logger *logrus.Logger) *Updater {
	return &Updater{client: client, writer: writer, host: host, cfg: cfg, logger: logger}
}

// UpdateForPR applies the file changes of a merged pull request.
func (u *Updater) UpdateForPR(ctx context.Context, owner, repo string, prNumber int) (*models.IncrementalStats, error) {
	changes, err := u.host.ListPRFiles(ctx, owner, repo, prNumber)
	if err != nil {
		return nil, err
	}
	return u.Update(ctx, owner, repo, changes)
}

// UpdateForPush applies the file changes between two pushed commits.
func (u *Updater) UpdateForPush(ctx context.Context, owner, repo, beforeSHA, afterSHA string) (*models.IncrementalStats, error) {
	changes, err := u.host.Compare(ctx, owner, repo, beforeSHA, afterSHA)
	if err != nil {
		return nil, err
	}
	return u.Update(ctx, owner, repo, changes)
}

// Update runs the eight-phase incremental rebuild. The updater is keyed by
// final working-tree state, so overlapping or re-delivered change sets
// converge to the same graph.
func (u *Updater) Update(ctx context.Context, owner, repo string, changes []models.ChangeRecord) (*models.IncrementalStats, error) {
	identifier := owner + "/" + repo
	log := u.logger.WithFields(logrus.Fields{"repo": identifier, "changes": len(changes)})
	log.Info("starting incremental graph update")

	stats := &models.IncrementalStats{}

	exists, err := u.client.RepositoryExists(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("repository %s not found in graph; run a full ingest first", identifier)
	}

	// Sync the working tree to HEAD-after-push before touching the graph
	defaultBranch, err := u.host.VerifyAccess(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	token, err := u.host.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtain sync token: %w", err)
	}
	localPath := ingestion.ScratchPath(u.cfg.Ingestion.ScratchDir, owner, repo)
	if err := syncRepository(ctx, u.cfg, u.host.CloneURL(owner, repo), defaultBranch, token, localPath, u.logger); err != nil {
		return nil, fmt.Errorf("sync repository: %w", err)
	}

	// Phase 1: classify changes
	plan := classify(changes, stats)
	log.WithFields(logrus.Fields{
		"delete": len(plan.toDelete), "add": len(plan.toAdd), "modify": len(plan.toModify),
	}).Info("phase 1: classified changed files")

	// Phase 2: find dependent files before their edges are deleted
	dependents := make(map[string]bool)
	for path := range plan.affected {
		callers, err := u.client.FilesCallingInto(ctx, identifier, path)
		if err != nil {
			return nil, fmt.Errorf("find callers of %s: %w", path, err)
		}
		inheritors, err := u.client.FilesInheritingFrom(ctx, identifier, path)
		if err != nil {
			return nil, fmt.Errorf("find inheritors of %s: %w", path, err)
		}
		for _, p := range append(callers, inheritors...) {
			dependents[p] = true
		}
	}
	log.WithField("dependents", len(dependents)).Info("phase 2: found dependent files")

	// Phase 3: delete stale subgraphs
	for _, path := range append(append([]string{}, plan.toDelete...), plan.toModify...) {
		removed, err := u.writer.DeleteIncomingCalls(ctx, identifier, path)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("delete incoming calls %s: %v", path, err))
			continue
		}
		stats.RelationshipsRemoved += removed
		if err := u.writer.DeleteFile(ctx, identifier, path); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("delete file %s: %v", path, err))
		}
	}
	log.Info("phase 3: deleted stale nodes")

	// Phase 4: rebuild the name map from what is still in the graph
	importsMap, err := u.client.ExistingImportsMap(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("rebuild imports map: %w", err)
	}

	// Phase 5: pre-scan new and modified files, merging their exports
	reparsePaths := append(append([]string{}, plan.toAdd...), plan.toModify...)
	var absPaths []string
	for _, rel := range reparsePaths {
		abs := filepath.Join(localPath, filepath.FromSlash(rel))
		if _, err := os.Stat(abs); err == nil {
			absPaths = append(absPaths, abs)
		}
	}
	importsMap.Merge(treesitter.PreScan(ctx, localPath, absPaths, u.logger))
	log.WithField("symbols", len(importsMap)).Info("phase 5: merged pre-scan of changed files")

	// Phase 6: parse and upsert the new/modified files
	var records []*models.FileRecord
	for _, abs := range absPaths {
		rec, err := treesitter.ParseFile(ctx, localPath, abs)
		if err != nil {
			stats.Errors = append(stats.Errors, err.Error())
			continue
		}
		if err := u.writer.UpsertFile(ctx, identifier, rec); err != nil {
			return nil, fmt.Errorf("upsert %s: %w", rec.Path, err)
		}
		records = append(records, rec)
	}
	log.WithField("files", len(records)).Info("phase 6: re-ingested changed files")

	// Phase 7: relink the changed files
	resolver := graph.NewResolver(importsMap, u.logger)
	var inheritEdges []graph.InheritEdge
	var callEdges []graph.CallEdge
	for _, rec := range records {
		inheritEdges = append(inheritEdges, resolver.ResolveInheritance(rec)...)
		callEdges = append(callEdges, resolver.ResolveCalls(rec)...)
	}
	if err := u.writer.BatchUpsertInheritance(ctx, identifier, inheritEdges); err != nil {
		return nil, fmt.Errorf("relink inheritance: %w", err)
	}
	if err := u.writer.BatchUpsertCalls(ctx, identifier, callEdges); err != nil {
		return nil, fmt.Errorf("relink calls: %w", err)
	}
	log.Info("phase 7: relinked changed files")

	// Phase 8: reconcile dependents so their edges into changed symbols return
	var dependentCalls []graph.CallEdge
	for dep := range dependents {
		if plan.affected[dep] {
			continue
		}
		abs := filepath.Join(localPath, filepath.FromSlash(dep))
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		rec, err := treesitter.ParseFile(ctx, localPath, abs)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("reparse dependent %s: %v", dep, err))
			continue
		}
		dependentCalls = append(dependentCalls, resolver.ResolveCalls(rec)...)
		stats.DependentsReparsed++
	}
	if err := u.writer.BatchUpsertCalls(ctx, identifier, dependentCalls); err != nil {
		return nil, fmt.Errorf("reconcile dependents: %w", err)
	}
	log.WithField("dependents", stats.DependentsReparsed).Info("phase 8: reconciled dependent files")

	log.WithFields(logrus.Fields{
		"added": stats.FilesAdded, "modified": stats.FilesModified,
		"deleted": stats.FilesDeleted, "errors": len(stats.Errors),
	}).Info("incremental update complete")
	return stats, nil
}

// changePlan is the phase-1 classification of a change set.
type changePlan struct {
	toDelete []string
	toAdd    []string
	toModify []string
	affected map[string]bool
}

// classify splits changes by status. Renames expand into a delete of the old
// path and an add of the new one; unsupported extensions are skipped.
func classify(changes []models.ChangeRecord, stats *models.IncrementalStats) changePlan {
	plan := changePlan{affected: make(map[string]bool)}

	for _, change := range changes {
		if !treesitter.Supported(change.Filename) {
			continue
		}
		plan.affected[change.Filename] = true

		switch change.Status {
		case models.ChangeRemoved:
			plan.toDelete = append(plan.toDelete, change.Filename)
			stats.FilesDeleted++
		case models.ChangeAdded:
			plan.toAdd = append(plan.toAdd, change.Filename)
			stats.FilesAdded++
		case models.ChangeModified:
			plan.toModify = append(plan.toModify, change.Filename)
			stats.FilesModified++
		case models.ChangeRenamed:
			if change.PreviousFilename != "" {
				plan.toDelete = append(plan.toDelete, change.PreviousFilename)
				plan.affected[change.PreviousFilename] = true
			}
			plan.toAdd = append(plan.toAdd, change.Filename)
			stats.FilesRenamed++
		}
	}
	return plan
}
