package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Pavel401/bugviper/internal/api"
	"github.com/Pavel401/bugviper/internal/incremental"
	"github.com/Pavel401/bugviper/internal/ingestion"
	"github.com/Pavel401/bugviper/internal/jobs"
	"github.com/Pavel401/bugviper/internal/review"
	"github.com/Pavel401/bugviper/internal/tasks"
	"github.com/Pavel401/bugviper/internal/worker"
)

func newAPICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Run the HTTP API process",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			d, err := buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.close(context.Background())

			store, err := jobs.NewPostgresStore(ctx, d.cfg.Storage.PostgresDSN, d.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			dispatcher := tasks.NewHTTPDispatcher(
				d.cfg.Tasks.WorkerBaseURL, d.cfg.Tasks.AuthToken,
				d.cfg.Tasks.DispatchDeadline, d.logger)
			builder := review.NewBuilder(d.graph, d.logger)

			server := api.NewServer(d.graph, d.writer, builder, d.host, store,
				dispatcher, d.cfg.GitHub.WebhookSecret, d.logger)

			return serve(ctx, d.cfg.API.Addr, server.Router(), "api", d)
		},
	}
}

func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the ingestion worker process",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			d, err := buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.close(context.Background())

			if err := d.graph.EnsureSchema(ctx); err != nil {
				return err
			}

			store, err := jobs.NewPostgresStore(ctx, d.cfg.Storage.PostgresDSN, d.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			pipeline := ingestion.NewPipeline(d.graph, d.writer, d.host, d.cfg, d.logger)
			updater := incremental.NewUpdater(d.graph, d.writer, d.host, d.cfg, d.logger)
			server := worker.NewServer(pipeline, updater, store, d.cfg.Tasks.AuthToken, d.logger)

			return serve(ctx, d.cfg.Worker.Addr, server.Router(), "worker", d)
		},
	}
}

func serve(ctx context.Context, addr string, handler http.Handler, name string, d *deps) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		d.logger.WithField("addr", addr).Infof("%s server listening", name)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s server: %w", name, err)
		}
		return nil
	case <-ctx.Done():
		d.logger.Infof("shutting down %s server", name)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
