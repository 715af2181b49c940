package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Pavel401/bugviper/internal/ingestion"
)

func newIngestCommand() *cobra.Command {
	var branch string
	var clearExisting bool

	cmd := &cobra.Command{
		Use:   "ingest <owner> <repo>",
		Short: "Ingest a repository into the code graph",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.close(context.Background())

			if err := d.graph.EnsureSchema(ctx); err != nil {
				return err
			}

			pipeline := ingestion.NewPipeline(d.graph, d.writer, d.host, d.cfg, d.logger)
			stats, err := pipeline.Run(ctx, args[0], args[1], branch, clearExisting)
			if err != nil {
				return err
			}

			fmt.Printf("Ingested %s/%s:\n", args[0], args[1])
			fmt.Printf("  files processed: %d\n", stats.FilesProcessed)
			fmt.Printf("  files skipped:   %d\n", stats.FilesSkipped)
			fmt.Printf("  classes:         %d\n", stats.ClassesFound)
			fmt.Printf("  functions:       %d\n", stats.FunctionsFound)
			fmt.Printf("  total lines:     %d\n", stats.TotalLines)
			if len(stats.Errors) > 0 {
				fmt.Printf("  errors:          %d\n", len(stats.Errors))
				for _, e := range stats.Errors {
					fmt.Printf("    - %s\n", e)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&branch, "branch", "", "branch to ingest (default: repository default branch)")
	cmd.Flags().BoolVar(&clearExisting, "clear", false, "delete any existing graph for the repository first")
	return cmd
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <owner> <repo>",
		Short: "Delete a repository's subgraph",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.close(context.Background())

			deleted, err := d.writer.DeleteRepository(ctx, args[0]+"/"+args[1])
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("repository %s/%s not found in graph", args[0], args[1])
			}
			fmt.Printf("Deleted %s/%s from the graph\n", args[0], args[1])
			return nil
		},
	}
}

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create graph constraints and indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.close(context.Background())

			if err := d.graph.EnsureSchema(ctx); err != nil {
				return err
			}
			fmt.Println("Graph schema verified")
			return nil
		},
	}
}
