// Package ingestion implements the full-repository ingestion pipeline: clone,
// enumerate, pre-scan, per-file parse and write, then the two deferred
// relationship passes.
package ingestion

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Pavel401/bugviper/internal/config"
	"github.com/Pavel401/bugviper/internal/github"
	"github.com/Pavel401/bugviper/internal/graph"
	"github.com/Pavel401/bugviper/internal/models"
	"github.com/Pavel401/bugviper/internal/treesitter"
)

// Pipeline orchestrates one full ingestion job.
type Pipeline struct {
	client *graph.Client
	writer *graph.Writer
	host   *github.Client
	cfg    *config.Config
	logger *logrus.Logger
}

// NewPipeline wires the pipeline's collaborators.
func NewPipeline(client *graph.Client, writer *graph.Writer, host *github.Client, cfg *config.Config, logger *logrus.Logger) *Pipeline {
	return &Pipeline{client: client, writer: writer, host: host, cfg: cfg, logger: logger}
}

// Run ingests owner/repoName at the given branch (empty means default).
// Per-file parse errors accumulate in the returned stats; an error return
// means the job as a whole failed.
func (p *Pipeline) Run(ctx context.Context, owner, repoName, branch string, clearExisting bool) (*models.IngestionStats, error) {
	repo := owner + "/" + repoName
	log := p.logger.WithFields(logrus.Fields{"repo": repo, "branch": branch})
	log.Info("starting repository ingestion")

	defaultBranch, err := p.host.VerifyAccess(ctx, owner, repoName)
	if err != nil {
		return nil, err
	}
	if branch == "" {
		branch = defaultBranch
	}

	if clearExisting {
		if _, err := p.writer.DeleteRepository(ctx, repo); err != nil {
			return nil, fmt.Errorf("clear existing graph: %w", err)
		}
	}

	token, err := p.host.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtain clone token: %w", err)
	}

	scratch := ScratchPath(p.cfg.Ingestion.ScratchDir, owner, repoName)
	cloneCtx, cancel := context.WithTimeout(ctx, p.cfg.Ingestion.CloneTimeout)
	defer cancel()
	if err := Clone(cloneCtx, scratch, CloneOptions{
		URL:    p.host.CloneURL(owner, repoName),
		Branch: branch,
		Token:  token,
		Depth:  1,
	}, p.logger); err != nil {
		return nil, err
	}
	defer Release(scratch, p.logger)

	if err := p.writer.EnsureRepository(ctx, owner, repoName, false); err != nil {
		return nil, fmt.Errorf("ensure repository node: %w", err)
	}

	walker := NewWalker(p.cfg.Ingestion.IgnoreDirs)
	files, err := walker.Enumerate(scratch)
	if err != nil {
		return nil, err
	}
	log.WithField("files", len(files)).Info("enumerated source files")

	// Pass A: pre-scan builds the repo-wide name -> defining-paths map
	importsMap := treesitter.PreScan(ctx, scratch, files, p.logger)
	log.WithField("symbols", len(importsMap)).Info("pre-scan complete")

	// Pass B: parse and write each file; records are kept for the deferred passes
	records, stats, err := p.parseAndWrite(ctx, repo, scratch, files)
	if err != nil {
		return nil, err
	}

	// Pass C: inheritance, then Pass D: calls
	resolver := graph.NewResolver(importsMap, p.logger)
	if err := p.resolveInheritance(ctx, repo, records, resolver); err != nil {
		return nil, err
	}
	if err := p.resolveCalls(ctx, repo, records, resolver); err != nil {
		return nil, err
	}

	stats.ImportsFound = len(importsMap)
	log.WithFields(logrus.Fields{
		"processed": stats.FilesProcessed,
		"skipped":   stats.FilesSkipped,
		"classes":   stats.ClassesFound,
		"functions": stats.FunctionsFound,
		"errors":    len(stats.Errors),
	}).Info("repository ingestion completed")
	return stats, nil
}

// parseAndWrite runs the per-file pass on a bounded worker pool. Parse errors
// are recorded and skipped; a write error cancels the group and fails the job.
func (p *Pipeline) parseAndWrite(ctx context.Context, repo, root string, files []string) ([]*models.FileRecord, *models.IngestionStats, error) {
	stats := &models.IngestionStats{}
	var records []*models.FileRecord
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.EffectiveParseWorkers())

	for _, file := range files {
		g.Go(func() error {
			rec, err := treesitter.ParseFile(gctx, root, file)
			if err != nil {
				mu.Lock()
				stats.FilesSkipped++
				stats.Errors = append(stats.Errors, err.Error())
				mu.Unlock()
				return nil
			}

			if err := p.writer.UpsertFile(gctx, repo, rec); err != nil {
				return fmt.Errorf("upsert %s: %w", rec.Path, err)
			}

			mu.Lock()
			records = append(records, rec)
			stats.FilesProcessed++
			stats.ClassesFound += len(rec.Classes)
			stats.FunctionsFound += countTopLevel(rec)
			stats.TotalLines += rec.LinesCount
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, stats, err
	}
	return records, stats, nil
}

func (p *Pipeline) resolveInheritance(ctx context.Context, repo string, records []*models.FileRecord, resolver *graph.Resolver) error {
	var edges []graph.InheritEdge
	for _, rec := range records {
		edges = append(edges, resolver.ResolveInheritance(rec)...)
	}
	if err := p.writer.BatchUpsertInheritance(ctx, repo, edges); err != nil {
		return fmt.Errorf("inheritance pass: %w", err)
	}
	p.logger.WithField("edges", len(edges)).Info("inheritance pass complete")
	return nil
}

func (p *Pipeline) resolveCalls(ctx context.Context, repo string, records []*models.FileRecord, resolver *graph.Resolver) error {
	var edges []graph.CallEdge
	for _, rec := range records {
		edges = append(edges, resolver.ResolveCalls(rec)...)
	}
	if err := p.writer.BatchUpsertCalls(ctx, repo, edges); err != nil {
		return fmt.Errorf("calls pass: %w", err)
	}
	p.logger.WithField("edges", len(edges)).Info("calls pass complete")
	return nil
}

func countTopLevel(rec *models.FileRecord) int {
	n := 0
	for _, fn := range rec.Functions {
		if fn.ClassContext == "" {
			n++
		}
	}
	return n
}
