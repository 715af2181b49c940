package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/Pavel401/bugviper/internal/treesitter"
)

// SymbolInfo is the read-side projection of a symbol node.
type SymbolInfo struct {
	Type       string   `json:"type"` // "function", "method", "class"
	Name       string   `json:"name"`
	StartLine  int      `json:"start_line"`
	EndLine    int      `json:"end_line"`
	Source     string   `json:"source,omitempty"`
	Docstring  string   `json:"docstring,omitempty"`
	Args       []string `json:"args,omitempty"`
	FilePath   string   `json:"file_path"`
	ChangeFile string   `json:"change_file,omitempty"`
}

// CallerInfo describes one caller of a symbol, including the call-site line.
type CallerInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Path     string `json:"path"`
	Line     int    `json:"line"`
	CallLine int    `json:"call_line"`
	Source   string `json:"source,omitempty"`
}

// DependencyInfo describes one outbound callee of a symbol.
type DependencyInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Line int    `json:"line"`
}

// ImportInfo is one IMPORTS edge on a file.
type ImportInfo struct {
	Module       string `json:"module"`
	Alias        string `json:"alias,omitempty"`
	ImportedName string `json:"imported_name,omitempty"`
	LineNumber   int    `json:"line_number"`
}

// HierarchyEntry is one node of a class hierarchy traversal.
type HierarchyEntry struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Source    string `json:"source,omitempty"`
	Docstring string `json:"docstring,omitempty"`
}

// RepositoryExists reports whether the repo has been ingested.
func (c *Client) RepositoryExists(ctx context.Context, repo string) (bool, error) {
	rows, err := c.QueryWithParams(ctx,
		"MATCH (r:Repository {repo: $repo}) RETURN count(r) AS cnt",
		map[string]any{"repo": repo})
	if err != nil {
		return false, err
	}
	return len(rows) > 0 && asInt(rows[0]["cnt"]) > 0, nil
}

// SymbolsAtLines finds Function/Class nodes in a file whose line span overlaps
// [startLine, endLine]. Used to map diff hunks onto symbols.
func (c *Client) SymbolsAtLines(ctx context.Context, repo, relPath string, startLine, endLine int) ([]SymbolInfo, error) {
	rows, err := c.QueryWithParams(ctx, `
		MATCH (f:File {repo: $repo, path: $path})-[:CONTAINS]->(n)
		WHERE (n:Function OR n:Class)
		  AND n.line_number IS NOT NULL
		  AND n.line_number <= $end_line
		  AND coalesce(n.end_line, n.line_number) >= $start_line
		RETURN
			CASE
				WHEN n:Class THEN 'class'
				WHEN n.class_context IS NOT NULL THEN 'method'
				ELSE 'function'
			END AS type,
			n.name AS name,
			n.line_number AS start_line,
			coalesce(n.end_line, n.line_number) AS end_line,
			n.source AS source,
			n.docstring AS docstring,
			n.args AS args,
			n.path AS path
		ORDER BY n.line_number
	`, map[string]any{
		"repo": repo, "path": relPath,
		"start_line": startLine, "end_line": endLine,
	})
	if err != nil {
		return nil, err
	}

	symbols := make([]SymbolInfo, 0, len(rows))
	for _, row := range rows {
		symbols = append(symbols, SymbolInfo{
			Type:      asString(row["type"]),
			Name:      asString(row["name"]),
			StartLine: asInt(row["start_line"]),
			EndLine:   asInt(row["end_line"]),
			Source:    asString(row["source"]),
			Docstring: asString(row["docstring"]),
			Args:      asStringSlice(row["args"]),
			FilePath:  asString(row["path"]),
		})
	}
	return symbols, nil
}

// CallersByEdges returns up to MaxCallers Function/Method callers of a symbol
// via CALLS edges.
func (c *Client) CallersByEdges(ctx context.Context, repo, name string) ([]CallerInfo, error) {
	rows, err := c.QueryWithParams(ctx, `
		MATCH (caller)-[r:CALLS]->(target)
		WHERE target.name = $name AND target.repo = $repo
		  AND caller:Function
		RETURN DISTINCT
			caller.name AS name,
			CASE WHEN caller.class_context IS NOT NULL THEN 'method' ELSE 'function' END AS type,
			caller.path AS path,
			caller.line_number AS line,
			r.line_number AS call_line,
			caller.source AS source
		LIMIT $limit
	`, map[string]any{"repo": repo, "name": name, "limit": MaxCallers})
	if err != nil {
		return nil, err
	}

	callers := make([]CallerInfo, 0, len(rows))
	for _, row := range rows {
		callers = append(callers, CallerInfo{
			Name:     asString(row["name"]),
			Type:     asString(row["type"]),
			Path:     asString(row["path"]),
			Line:     asInt(row["line"]),
			CallLine: asInt(row["call_line"]),
			Source:   asString(row["source"]),
		})
	}
	return callers, nil
}

// Dependencies returns up to MaxDependencies outbound callees of a symbol,
// excluding targets that were ingested as dependencies.
func (c *Client) Dependencies(ctx context.Context, repo, name, relPath string) ([]DependencyInfo, error) {
	rows, err := c.QueryWithParams(ctx, `
		MATCH (caller {name: $name, repo: $repo, path: $path})-[r:CALLS]->(called)
		WHERE (caller:Function OR caller:Class)
		  AND r.is_resolved = true
		  AND coalesce(called.is_dependency, false) = false
		RETURN DISTINCT called.name AS name, called.path AS path, called.line_number AS line
		LIMIT $limit
	`, map[string]any{"repo": repo, "name": name, "path": relPath, "limit": MaxDependencies})
	if err != nil {
		return nil, err
	}

	deps := make([]DependencyInfo, 0, len(rows))
	for _, row := range rows {
		deps = append(deps, DependencyInfo{
			Name: asString(row["name"]),
			Path: asString(row["path"]),
			Line: asInt(row["line"]),
		})
	}
	return deps, nil
}

// ClassMethods returns every Function contained by a class, with full source.
func (c *Client) ClassMethods(ctx context.Context, repo, className, relPath string) ([]SymbolInfo, error) {
	rows, err := c.QueryWithParams(ctx, `
		MATCH (c:Class {name: $name, repo: $repo, path: $path})-[:CONTAINS]->(m:Function)
		RETURN m.name AS name, m.line_number AS start_line,
		       coalesce(m.end_line, m.line_number) AS end_line,
		       m.source AS source, m.docstring AS docstring, m.args AS args,
		       m.path AS path
		ORDER BY m.line_number
	`, map[string]any{"repo": repo, "name": className, "path": relPath})
	if err != nil {
		return nil, err
	}

	methods := make([]SymbolInfo, 0, len(rows))
	for _, row := range rows {
		methods = append(methods, SymbolInfo{
			Type:      "method",
			Name:      asString(row["name"]),
			StartLine: asInt(row["start_line"]),
			EndLine:   asInt(row["end_line"]),
			Source:    asString(row["source"]),
			Docstring: asString(row["docstring"]),
			Args:      asStringSlice(row["args"]),
			FilePath:  asString(row["path"]),
		})
	}
	return methods, nil
}

// FileImports lists the IMPORTS edges of one file.
func (c *Client) FileImports(ctx context.Context, repo, relPath string) ([]ImportInfo, error) {
	rows, err := c.QueryWithParams(ctx, `
		MATCH (f:File {repo: $repo, path: $path})-[r:IMPORTS]->(m:Module)
		RETURN m.name AS module, r.alias AS alias, r.imported_name AS imported_name,
		       r.line_number AS line_number
		ORDER BY r.line_number
	`, map[string]any{"repo": repo, "path": relPath})
	if err != nil {
		return nil, err
	}

	imports := make([]ImportInfo, 0, len(rows))
	for _, row := range rows {
		imports = append(imports, ImportInfo{
			Module:       asString(row["module"]),
			Alias:        asString(row["alias"]),
			ImportedName: asString(row["imported_name"]),
			LineNumber:   asInt(row["line_number"]),
		})
	}
	return imports, nil
}

// FindSymbolByName locates an in-repo Function or Class definition by simple
// name. Used to attach source for imported symbols.
func (c *Client) FindSymbolByName(ctx context.Context, repo, name string) (*SymbolInfo, error) {
	rows, err := c.QueryWithParams(ctx, `
		MATCH (n)
		WHERE (n:Function OR n:Class)
		  AND n.name = $name AND n.repo = $repo
		RETURN
			CASE WHEN n:Class THEN 'class' ELSE 'function' END AS type,
			n.name AS name, n.path AS path, n.line_number AS start_line,
			coalesce(n.end_line, n.line_number) AS end_line,
			n.source AS source, n.docstring AS docstring
		LIMIT 1
	`, map[string]any{"repo": repo, "name": name})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]
	return &SymbolInfo{
		Type:      asString(row["type"]),
		Name:      asString(row["name"]),
		FilePath:  asString(row["path"]),
		StartLine: asInt(row["start_line"]),
		EndLine:   asInt(row["end_line"]),
		Source:    asString(row["source"]),
		Docstring: asString(row["docstring"]),
	}, nil
}

// ClassParents walks INHERITS upward to MaxHierarchyDepth. The bound keeps
// traversal finite on cyclic hierarchies.
func (c *Client) ClassParents(ctx context.Context, repo, name, relPath string) ([]HierarchyEntry, error) {
	query := fmt.Sprintf(`
		MATCH (c:Class {name: $name, repo: $repo, path: $path})-[:INHERITS*1..%d]->(parent:Class)
		RETURN DISTINCT parent.name AS name, parent.path AS path,
		       parent.source AS source, parent.docstring AS docstring
	`, MaxHierarchyDepth)
	rows, err := c.QueryWithParams(ctx, query, map[string]any{
		"repo": repo, "name": name, "path": relPath,
	})
	if err != nil {
		return nil, err
	}
	return hierarchyEntries(rows), nil
}

// ClassChildren returns classes that directly inherit from the given class.
func (c *Client) ClassChildren(ctx context.Context, repo, name, relPath string) ([]HierarchyEntry, error) {
	rows, err := c.QueryWithParams(ctx, `
		MATCH (child:Class)-[:INHERITS]->(parent:Class {name: $name, repo: $repo, path: $path})
		RETURN DISTINCT child.name AS name, child.path AS path, null AS source, null AS docstring
	`, map[string]any{"repo": repo, "name": name, "path": relPath})
	if err != nil {
		return nil, err
	}
	return hierarchyEntries(rows), nil
}

func hierarchyEntries(rows []map[string]any) []HierarchyEntry {
	out := make([]HierarchyEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, HierarchyEntry{
			Name:      asString(row["name"]),
			Path:      asString(row["path"]),
			Source:    asString(row["source"]),
			Docstring: asString(row["docstring"]),
		})
	}
	return out
}

// FilesCallingInto lists files with CALLS edges into symbols of the given file.
func (c *Client) FilesCallingInto(ctx context.Context, repo, relPath string) ([]string, error) {
	return c.distinctPaths(ctx, `
		MATCH (caller)-[:CALLS]->(callee)
		WHERE callee.repo = $repo AND callee.path = $path
		  AND caller.path <> $path AND caller.path IS NOT NULL
		RETURN DISTINCT caller.path AS path
	`, repo, relPath)
}

// FilesInheritingFrom lists files whose classes inherit from the given file.
func (c *Client) FilesInheritingFrom(ctx context.Context, repo, relPath string) ([]string, error) {
	return c.distinctPaths(ctx, `
		MATCH (child)-[:INHERITS]->(parent)
		WHERE parent.repo = $repo AND parent.path = $path
		  AND child.path <> $path AND child.path IS NOT NULL
		RETURN DISTINCT child.path AS path
	`, repo, relPath)
}

func (c *Client) distinctPaths(ctx context.Context, query, repo, relPath string) ([]string, error) {
	rows, err := c.QueryWithParams(ctx, query, map[string]any{"repo": repo, "path": relPath})
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(rows))
	for _, row := range rows {
		if p := asString(row["path"]); p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

// ExistingImportsMap rebuilds the name → paths map from graph state. Used by
// the incremental updater, which has no full FileRecord set to pre-scan.
func (c *Client) ExistingImportsMap(ctx context.Context, repo string) (treesitter.ImportsMap, error) {
	rows, err := c.QueryWithParams(ctx, `
		MATCH (n)
		WHERE (n:Function OR n:Class OR n:Trait OR n:Interface OR n:Struct)
		  AND n.repo = $repo
		RETURN n.name AS name, n.path AS path
	`, map[string]any{"repo": repo})
	if err != nil {
		return nil, err
	}

	m := make(treesitter.ImportsMap)
	for _, row := range rows {
		m.Add(asString(row["name"]), asString(row["path"]))
	}
	return m, nil
}

// FileSource returns a file's stored source text and line count.
func (c *Client) FileSource(ctx context.Context, repo, relPath string) (string, int, error) {
	rows, err := c.QueryWithParams(ctx, `
		MATCH (f:File {repo: $repo, path: $path})
		RETURN f.source_code AS source_code, f.lines_count AS lines_count
		LIMIT 1
	`, map[string]any{"repo": repo, "path": relPath})
	if err != nil {
		return "", 0, err
	}
	if len(rows) == 0 {
		return "", 0, fmt.Errorf("file not found: %s:%s", repo, relPath)
	}
	return asString(rows[0]["source_code"]), asInt(rows[0]["lines_count"]), nil
}

// SearchResult is one fulltext search hit.
type SearchResult struct {
	Label string  `json:"label"`
	Name  string  `json:"name"`
	Path  string  `json:"path"`
	Line  int     `json:"line"`
	Score float64 `json:"score"`
}

// SearchCode queries the code_search fulltext index.
func (c *Client) SearchCode(ctx context.Context, repo, term string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := c.QueryWithParams(ctx, `
		CALL db.index.fulltext.queryNodes('code_search', $term) YIELD node, score
		WHERE node.repo = $repo
		RETURN labels(node)[0] AS label, node.name AS name, node.path AS path,
		       node.line_number AS line, score
		LIMIT $limit
	`, map[string]any{"repo": repo, "term": escapeLucene(term), "limit": limit})
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		score, _ := row["score"].(float64)
		results = append(results, SearchResult{
			Label: asString(row["label"]),
			Name:  asString(row["name"]),
			Path:  asString(row["path"]),
			Line:  asInt(row["line"]),
			Score: score,
		})
	}
	return results, nil
}

// GraphStats returns node counts by label across the whole store.
func (c *Client) GraphStats(ctx context.Context) (map[string]int, error) {
	rows, err := c.QueryWithParams(ctx, `
		MATCH (n)
		UNWIND labels(n) AS label
		RETURN label, count(*) AS cnt
		ORDER BY label
	`, nil)
	if err != nil {
		return nil, err
	}
	stats := make(map[string]int, len(rows))
	for _, row := range rows {
		stats[asString(row["label"])] = asInt(row["cnt"])
	}
	return stats, nil
}

// RepoStats returns per-label counts for one repository.
func (c *Client) RepoStats(ctx context.Context, repo string) (map[string]int, error) {
	rows, err := c.QueryWithParams(ctx, `
		MATCH (n {repo: $repo})
		UNWIND labels(n) AS label
		RETURN label, count(*) AS cnt
		ORDER BY label
	`, map[string]any{"repo": repo})
	if err != nil {
		return nil, err
	}
	stats := make(map[string]int, len(rows))
	for _, row := range rows {
		stats[asString(row["label"])] = asInt(row["cnt"])
	}
	return stats, nil
}

// ListRepositories returns all ingested repository identifiers.
func (c *Client) ListRepositories(ctx context.Context) ([]string, error) {
	rows, err := c.QueryWithParams(ctx,
		"MATCH (r:Repository) RETURN r.repo AS repo ORDER BY r.repo", nil)
	if err != nil {
		return nil, err
	}
	repos := make([]string, 0, len(rows))
	for _, row := range rows {
		repos = append(repos, asString(row["repo"]))
	}
	return repos, nil
}

// escapeLucene escapes the characters Lucene treats as operators so arbitrary
// search terms cannot break the fulltext query.
func escapeLucene(term string) string {
	special := `+-&|!(){}[]^"~*?:\/`
	var b strings.Builder
	for _, r := range term {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

func asStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
