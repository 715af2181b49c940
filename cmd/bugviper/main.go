package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "bugviper",
		Short: "Code knowledge graph service for PR review context",
		Long: `bugviper ingests source repositories into a typed code knowledge graph
(files, symbols, imports, calls, inheritance) backed by Neo4j, keeps the graph
current on push and PR-merge webhooks, and serves review-context queries.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newAPICommand(),
		newWorkerCommand(),
		newIngestCommand(),
		newDeleteCommand(),
		newSchemaCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
