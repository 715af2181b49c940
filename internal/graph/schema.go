package graph

import (
	"context"
	"fmt"
)

// symbolLabels are the node labels that carry the (name, repo, path,
// line_number) identity tuple. Adding a new label here also adds its
// uniqueness constraint.
var symbolLabels = []string{
	"Function", "Class", "Trait", "Interface", "Struct", "Enum",
	"Union", "Variable", "Macro", "Property", "Record",
}

// EnsureSchema creates the constraints and indexes the writers and readers
// rely on. Every statement is IF NOT EXISTS so the call is idempotent.
func (c *Client) EnsureSchema(ctx context.Context) error {
	statements := []string{
		"CREATE CONSTRAINT repository_repo IF NOT EXISTS FOR (r:Repository) REQUIRE r.repo IS UNIQUE",
		"CREATE CONSTRAINT file_unique IF NOT EXISTS FOR (f:File) REQUIRE (f.repo, f.path) IS UNIQUE",
		"CREATE CONSTRAINT directory_unique IF NOT EXISTS FOR (d:Directory) REQUIRE (d.repo, d.path) IS UNIQUE",
		"CREATE CONSTRAINT module_name IF NOT EXISTS FOR (m:Module) REQUIRE m.name IS UNIQUE",
	}

	for _, label := range symbolLabels {
		statements = append(statements, fmt.Sprintf(
			"CREATE CONSTRAINT %s_unique IF NOT EXISTS FOR (n:%s) REQUIRE (n.name, n.repo, n.path, n.line_number) IS UNIQUE",
			lowerFirst(label), label))
	}

	statements = append(statements,
		"CREATE INDEX function_lang IF NOT EXISTS FOR (f:Function) ON (f.lang)",
		"CREATE INDEX class_lang IF NOT EXISTS FOR (c:Class) ON (c.lang)",
		"CREATE INDEX file_repo IF NOT EXISTS FOR (f:File) ON (f.repo)",
		`CREATE FULLTEXT INDEX code_search IF NOT EXISTS
		 FOR (n:Function|Class|Method|Variable)
		 ON EACH [n.name, n.docstring, n.source]`,
		`CREATE FULLTEXT INDEX file_content_search IF NOT EXISTS
		 FOR (f:File)
		 ON EACH [f.source_code]`,
	)

	for _, stmt := range statements {
		if err := c.Write(ctx, stmt, nil); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	c.logger.Info("graph schema verified")
	return nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]|0x20) + s[1:]
}
