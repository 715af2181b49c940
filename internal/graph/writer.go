package graph

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/Pavel401/bugviper/internal/models"
)

// Writer performs idempotent, batched upserts against the graph. Every write
// uses the identity tuples from the schema so re-running with identical input
// is a no-op. UpsertFile writes no CALLS or INHERITS edges; those are written
// by the deferred resolver passes through BatchUpsertCalls and
// BatchUpsertInheritance.
type Writer struct {
	client *Client
	logger *logrus.Logger
}

// NewWriter returns a Writer bound to the given client.
func NewWriter(client *Client, logger *logrus.Logger) *Writer {
	return &Writer{client: client, logger: logger}
}

// EnsureRepository creates or updates the Repository node keyed by
// "owner/name".
func (w *Writer) EnsureRepository(ctx context.Context, owner, name string, isDependency bool) error {
	repo := owner + "/" + name
	return w.client.Write(ctx, `
		MERGE (r:Repository {repo: $repo})
		SET r.owner = $owner, r.name = $name, r.is_dependency = $is_dependency
	`, map[string]any{
		"repo": repo, "owner": owner, "name": name, "is_dependency": isDependency,
	})
}

// UpsertFile writes a File node, its directory chain, its symbols and their
// structural edges in a single transaction.
func (w *Writer) UpsertFile(ctx context.Context, repo string, rec *models.FileRecord) error {
	return w.client.WriteTx(ctx, func(tx neo4j.ManagedTransaction) error {
		if err := w.upsertFileNode(ctx, tx, repo, rec); err != nil {
			return err
		}
		if err := w.upsertDirectoryChain(ctx, tx, repo, rec.Path); err != nil {
			return err
		}
		if err := w.upsertSymbols(ctx, tx, repo, rec); err != nil {
			return err
		}
		if err := w.upsertImports(ctx, tx, repo, rec); err != nil {
			return err
		}
		return w.upsertContainment(ctx, tx, repo, rec)
	})
}

func (w *Writer) upsertFileNode(ctx context.Context, tx neo4j.ManagedTransaction, repo string, rec *models.FileRecord) error {
	_, err := tx.Run(ctx, `
		MERGE (f:File {repo: $repo, path: $path})
		SET f.name = $name,
		    f.language = $language,
		    f.lines_count = $lines_count,
		    f.source_code = $source_code,
		    f.is_dependency = false
	`, map[string]any{
		"repo":        repo,
		"path":        rec.Path,
		"name":        path.Base(rec.Path),
		"language":    rec.Language,
		"lines_count": rec.LinesCount,
		"source_code": rec.SourceCode,
	})
	return err
}

// upsertDirectoryChain materializes every ancestor Directory of the file and
// links the chain with CONTAINS, anchored at the Repository node.
func (w *Writer) upsertDirectoryChain(ctx context.Context, tx neo4j.ManagedTransaction, repo, relPath string) error {
	parts := strings.Split(path.Dir(relPath), "/")
	if path.Dir(relPath) == "." {
		parts = nil
	}

	parentPath := ""
	for i := range parts {
		current := strings.Join(parts[:i+1], "/")
		var err error
		if parentPath == "" {
			_, err = tx.Run(ctx, `
				MATCH (p:Repository {repo: $repo})
				MERGE (d:Directory {repo: $repo, path: $path})
				SET d.name = $name
				MERGE (p)-[:CONTAINS]->(d)
			`, map[string]any{"repo": repo, "path": current, "name": parts[i]})
		} else {
			_, err = tx.Run(ctx, `
				MATCH (p:Directory {repo: $repo, path: $parent})
				MERGE (d:Directory {repo: $repo, path: $path})
				SET d.name = $name
				MERGE (p)-[:CONTAINS]->(d)
			`, map[string]any{"repo": repo, "parent": parentPath, "path": current, "name": parts[i]})
		}
		if err != nil {
			return err
		}
		parentPath = current
	}

	if parentPath == "" {
		_, err := tx.Run(ctx, `
			MATCH (p:Repository {repo: $repo})
			MATCH (f:File {repo: $repo, path: $path})
			MERGE (p)-[:CONTAINS]->(f)
		`, map[string]any{"repo": repo, "path": relPath})
		return err
	}
	_, err := tx.Run(ctx, `
		MATCH (p:Directory {repo: $repo, path: $parent})
		MATCH (f:File {repo: $repo, path: $path})
		MERGE (p)-[:CONTAINS]->(f)
	`, map[string]any{"repo": repo, "parent": parentPath, "path": relPath})
	return err
}

func (w *Writer) upsertSymbols(ctx context.Context, tx neo4j.ManagedTransaction, repo string, rec *models.FileRecord) error {
	type mapping struct {
		label string
		items []map[string]any
	}

	mappings := []mapping{
		{"Function", functionProps(rec.Functions, rec.Language)},
		{"Class", classProps(rec.Classes, rec.Language)},
		{"Trait", classProps(rec.Traits, rec.Language)},
		{"Interface", classProps(rec.Interfaces, rec.Language)},
		{"Struct", classProps(rec.Structs, rec.Language)},
		{"Enum", classProps(rec.Enums, rec.Language)},
		{"Union", classProps(rec.Unions, rec.Language)},
		{"Macro", functionProps(rec.Macros, rec.Language)},
		{"Variable", variableProps(rec.Variables, rec.Language)},
	}

	for _, m := range mappings {
		if len(m.items) == 0 {
			continue
		}
		// UNWIND keeps one round-trip per label instead of one per symbol
		query := fmt.Sprintf(`
			MATCH (f:File {repo: $repo, path: $path})
			UNWIND $items AS item
			MERGE (n:%s {name: item.name, repo: $repo, path: $path, line_number: item.line_number})
			SET n += item
			MERGE (f)-[:CONTAINS]->(n)
		`, m.label)
		if _, err := tx.Run(ctx, query, map[string]any{
			"repo": repo, "path": rec.Path, "items": m.items,
		}); err != nil {
			return fmt.Errorf("upsert %s nodes: %w", m.label, err)
		}
	}

	// Parameter nodes for callables
	for _, fn := range rec.Functions {
		for i, arg := range fn.Args {
			if _, err := tx.Run(ctx, `
				MATCH (fn:Function {name: $func_name, repo: $repo, path: $path, line_number: $line})
				MERGE (p:Parameter {name: $arg, repo: $repo, path: $path, function_line_number: $line})
				SET p.position = $position
				MERGE (fn)-[:HAS_PARAMETER]->(p)
			`, map[string]any{
				"func_name": fn.Name, "repo": repo, "path": rec.Path,
				"line": fn.LineNumber, "arg": arg, "position": i,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Writer) upsertImports(ctx context.Context, tx neo4j.ManagedTransaction, repo string, rec *models.FileRecord) error {
	for _, imp := range rec.Imports {
		relProps := map[string]any{}
		if imp.Alias != "" {
			relProps["alias"] = imp.Alias
		}
		if imp.ImportedName != "" {
			relProps["imported_name"] = imp.ImportedName
		}
		if _, err := tx.Run(ctx, `
			MATCH (f:File {repo: $repo, path: $path})
			MERGE (m:Module {name: $module})
			SET m.full_import_name = coalesce($full_import, m.full_import_name)
			MERGE (f)-[r:IMPORTS {line_number: $line}]->(m)
			SET r += $props
		`, map[string]any{
			"repo": repo, "path": rec.Path, "module": imp.Module,
			"full_import": imp.FullImport, "line": imp.LineNumber, "props": relProps,
		}); err != nil {
			return err
		}
	}

	for _, mod := range rec.Modules {
		if _, err := tx.Run(ctx, `
			MERGE (m:Module {name: $name})
			ON CREATE SET m.lang = $lang
			ON MATCH SET m.lang = coalesce(m.lang, $lang)
		`, map[string]any{"name": mod.Name, "lang": rec.Language}); err != nil {
			return err
		}
	}
	return nil
}

// upsertContainment links methods under their class and nested functions under
// their enclosing function, plus mixin INCLUDES edges.
func (w *Writer) upsertContainment(ctx context.Context, tx neo4j.ManagedTransaction, repo string, rec *models.FileRecord) error {
	for _, fn := range rec.Functions {
		if fn.ClassContext != "" {
			if _, err := tx.Run(ctx, `
				MATCH (c:Class {name: $class, repo: $repo, path: $path})
				MATCH (fn:Function {name: $name, repo: $repo, path: $path, line_number: $line})
				MERGE (c)-[:CONTAINS]->(fn)
			`, map[string]any{
				"class": fn.ClassContext, "repo": repo, "path": rec.Path,
				"name": fn.Name, "line": fn.LineNumber,
			}); err != nil {
				return err
			}
		}
		if fn.FunctionContext != "" {
			if _, err := tx.Run(ctx, `
				MATCH (outer:Function {name: $outer, repo: $repo, path: $path})
				MATCH (inner:Function {name: $name, repo: $repo, path: $path, line_number: $line})
				MERGE (outer)-[:CONTAINS]->(inner)
			`, map[string]any{
				"outer": fn.FunctionContext, "repo": repo, "path": rec.Path,
				"name": fn.Name, "line": fn.LineNumber,
			}); err != nil {
				return err
			}
		}
	}

	for _, inc := range rec.ModuleInclusions {
		if _, err := tx.Run(ctx, `
			MATCH (c:Class {name: $class, repo: $repo, path: $path})
			MERGE (m:Module {name: $module})
			MERGE (c)-[:INCLUDES]->(m)
		`, map[string]any{
			"class": inc.Class, "repo": repo, "path": rec.Path, "module": inc.Module,
		}); err != nil {
			return err
		}
	}
	return nil
}

// DeleteIncomingCalls removes CALLS edges from other files pointing into the
// given file. Returns the number of deleted relationships.
func (w *Writer) DeleteIncomingCalls(ctx context.Context, repo, relPath string) (int, error) {
	rows, err := w.client.QueryWithParams(ctx, `
		MATCH (caller)-[r:CALLS]->(callee)
		WHERE callee.repo = $repo AND callee.path = $path
		  AND caller.path <> $path
		DELETE r
		RETURN count(r) AS deleted
	`, map[string]any{"repo": repo, "path": relPath})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	deleted, _ := rows[0]["deleted"].(int64)
	return int(deleted), nil
}

// DeleteFile removes the File, all symbols it contains, their edges, incoming
// CALLS/INHERITS from other files, and prunes now-empty parent directories —
// all in one transaction so I3 and I4 hold at commit.
func (w *Writer) DeleteFile(ctx context.Context, repo, relPath string) error {
	w.logger.WithFields(logrus.Fields{"repo": repo, "path": relPath}).Debug("deleting file from graph")

	return w.client.WriteTx(ctx, func(tx neo4j.ManagedTransaction) error {
		// Collect ancestors before the file disappears
		result, err := tx.Run(ctx, `
			MATCH (f:File {repo: $repo, path: $path})<-[:CONTAINS*]-(d:Directory)
			RETURN d.path AS path ORDER BY d.path DESC
		`, map[string]any{"repo": repo, "path": relPath})
		if err != nil {
			return err
		}
		var parents []string
		for result.Next(ctx) {
			if p, ok := result.Record().Get("path"); ok {
				parents = append(parents, p.(string))
			}
		}

		// Incoming CALLS/INHERITS from other files must go with the symbols
		if _, err := tx.Run(ctx, `
			MATCH (other)-[r:CALLS|INHERITS]->(target)
			WHERE target.repo = $repo AND target.path = $path
			  AND other.path <> $path
			DELETE r
		`, map[string]any{"repo": repo, "path": relPath}); err != nil {
			return err
		}

		if _, err := tx.Run(ctx, `
			MATCH (f:File {repo: $repo, path: $path})
			OPTIONAL MATCH (f)-[:CONTAINS*]->(element)
			DETACH DELETE f, element
		`, map[string]any{"repo": repo, "path": relPath}); err != nil {
			return err
		}

		for _, dir := range parents {
			if _, err := tx.Run(ctx, `
				MATCH (d:Directory {repo: $repo, path: $path})
				WHERE NOT (d)-[:CONTAINS]->()
				DETACH DELETE d
			`, map[string]any{"repo": repo, "path": dir}); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteRepository cascade-deletes a repository and everything reachable from
// it via CONTAINS. Returns false when the repository is not in the graph.
func (w *Writer) DeleteRepository(ctx context.Context, repo string) (bool, error) {
	rows, err := w.client.QueryWithParams(ctx,
		"MATCH (r:Repository {repo: $repo}) RETURN count(r) AS cnt",
		map[string]any{"repo": repo})
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	if cnt, _ := rows[0]["cnt"].(int64); cnt == 0 {
		w.logger.WithField("repo", repo).Warn("delete requested for unknown repository")
		return false, nil
	}

	err = w.client.Write(ctx, `
		MATCH (r:Repository {repo: $repo})
		OPTIONAL MATCH (r)-[:CONTAINS*]->(e)
		DETACH DELETE r, e
	`, map[string]any{"repo": repo})
	if err != nil {
		return false, err
	}
	w.logger.WithField("repo", repo).Info("deleted repository from graph")
	return true, nil
}

func functionProps(fns []models.FunctionDef, lang string) []map[string]any {
	out := make([]map[string]any, 0, len(fns))
	for _, fn := range fns {
		props := map[string]any{
			"name":        fn.Name,
			"line_number": fn.LineNumber,
			"end_line":    fn.EndLine,
			"args":        fn.Args,
			"source":      fn.Source,
			"lang":        lang,
		}
		if fn.Docstring != "" {
			props["docstring"] = fn.Docstring
		}
		if len(fn.Decorators) > 0 {
			props["decorators"] = fn.Decorators
		}
		if fn.ClassContext != "" {
			props["class_context"] = fn.ClassContext
		}
		if fn.Visibility != "" {
			props["visibility"] = fn.Visibility
		}
		cc := fn.CyclomaticComplexity
		if cc == 0 {
			cc = 1
		}
		props["cyclomatic_complexity"] = cc
		out = append(out, props)
	}
	return out
}

func classProps(classes []models.ClassDef, lang string) []map[string]any {
	out := make([]map[string]any, 0, len(classes))
	for _, c := range classes {
		props := map[string]any{
			"name":        c.Name,
			"line_number": c.LineNumber,
			"end_line":    c.EndLine,
			"bases":       c.Bases,
			"source":      c.Source,
			"lang":        lang,
		}
		if c.Docstring != "" {
			props["docstring"] = c.Docstring
		}
		if len(c.Decorators) > 0 {
			props["decorators"] = c.Decorators
		}
		out = append(out, props)
	}
	return out
}

func variableProps(vars []models.VariableDef, lang string) []map[string]any {
	out := make([]map[string]any, 0, len(vars))
	for _, v := range vars {
		out = append(out, map[string]any{
			"name":        v.Name,
			"line_number": v.LineNumber,
			"end_line":    v.EndLine,
			"source":      v.Source,
			"lang":        lang,
		})
	}
	return out
}
