package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Pavel401/bugviper/internal/config"
	"github.com/Pavel401/bugviper/internal/github"
	"github.com/Pavel401/bugviper/internal/graph"
	"github.com/Pavel401/bugviper/internal/logging"
)

// deps holds the collaborators shared by every subcommand. Each is constructed
// once at process init and passed explicitly; no package-level singletons.
type deps struct {
	cfg    *config.Config
	logger *logrus.Logger
	graph  *graph.Client
	writer *graph.Writer
	host   *github.Client
}

func buildDeps(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	graphClient, err := graph.NewClient(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username,
		cfg.Neo4j.Password, cfg.Neo4j.Database, logger)
	if err != nil {
		return nil, err
	}

	tokens, err := buildTokenSource(cfg)
	if err != nil {
		return nil, err
	}
	host := github.NewClient(tokens, cfg.GitHub.RateLimit, logger)

	return &deps{
		cfg:    cfg,
		logger: logger,
		graph:  graphClient,
		writer: graph.NewWriter(graphClient, logger),
		host:   host,
	}, nil
}

func buildTokenSource(cfg *config.Config) (github.TokenSource, error) {
	if cfg.GitHub.AppID != 0 {
		return github.NewInstallationTokenSource(
			cfg.GitHub.AppID, cfg.GitHub.InstallationID, cfg.GitHub.PrivateKeyPath)
	}
	return github.NewStaticTokenSource(cfg.GitHub.Token), nil
}

func (d *deps) close(ctx context.Context) {
	if err := d.graph.Close(ctx); err != nil {
		d.logger.WithError(err).Warn("error closing graph client")
	}
}
