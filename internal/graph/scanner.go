package graph

import (
	"context"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// maxScannableFileBytes bounds the content scan: files with larger stored
// source are skipped entirely rather than split server-side.
const maxScannableFileBytes = 500 * 1024

// defKeywords open a definition; lines starting with one are definition sites,
// not call sites.
var defKeywords = []string{
	"def ", "async def ", "function ", "fn ", "func ", "class ",
}

// FindCallersByScan locates call sites of a symbol by scanning stored file
// content when no CALLS edges exist. Splitting and line filtering run inside
// the graph engine so full source blobs never stream to the application; only
// matching paths and line numbers come back.
func (c *Client) FindCallersByScan(ctx context.Context, repo, name, definitionPath string, logger *logrus.Logger) ([]CallerInfo, error) {
	needle := name + "("

	rows, err := c.QueryWithParams(ctx, `
		MATCH (f:File)
		WHERE f.repo = $repo AND f.path <> $def_path
		  AND f.source_code IS NOT NULL
		  AND size(f.source_code) <= $max_bytes
		  AND f.source_code CONTAINS $needle
		WITH f, split(f.source_code, '\n') AS lines
		UNWIND range(0, size(lines) - 1) AS idx
		WITH f, idx + 1 AS line_no, lines[idx] AS line
		WHERE line CONTAINS $needle
		  AND NOT any(kw IN $def_keywords WHERE ltrim(line) STARTS WITH kw)
		RETURN f.path AS path, collect(line_no) AS hit_lines
	`, map[string]any{
		"repo":         repo,
		"def_path":     definitionPath,
		"needle":       needle,
		"max_bytes":    maxScannableFileBytes,
		"def_keywords": defKeywords,
	})
	if err != nil {
		return nil, err
	}

	var callers []CallerInfo
	for _, row := range rows {
		path := asString(row["path"])
		hitLines := asIntSlice(row["hit_lines"])
		if path == "" || len(hitLines) == 0 {
			continue
		}

		fileCallers, err := c.mapLinesToFunctions(ctx, repo, path, hitLines)
		if err != nil {
			logger.WithError(err).WithField("file", path).Warn("caller scan: could not map lines")
			continue
		}
		callers = append(callers, fileCallers...)
		if len(callers) >= MaxCallers {
			callers = callers[:MaxCallers]
			break
		}
	}
	return callers, nil
}

// functionRange is one function's ordered line span within a file.
type functionRange struct {
	name  string
	start int
	end   int
}

// mapLinesToFunctions assigns hit lines to the function whose range contains
// them. Ranges are computed from the ordered start lines: each function runs
// to the line before the next one, the last to EOF.
func (c *Client) mapLinesToFunctions(ctx context.Context, repo, path string, hitLines []int) ([]CallerInfo, error) {
	rows, err := c.QueryWithParams(ctx, `
		MATCH (f:File {repo: $repo, path: $path})-[:CONTAINS]->(fn:Function)
		RETURN fn.name AS name, fn.line_number AS line
		ORDER BY fn.line_number
	`, map[string]any{"repo": repo, "path": path})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	source, linesCount, err := c.FileSource(ctx, repo, path)
	if err != nil {
		return nil, err
	}
	sourceLines := strings.Split(source, "\n")

	ranges := make([]functionRange, 0, len(rows))
	for i, row := range rows {
		r := functionRange{name: asString(row["name"]), start: asInt(row["line"])}
		if i+1 < len(rows) {
			r.end = asInt(rows[i+1]["line"]) - 1
		} else {
			r.end = linesCount
		}
		ranges = append(ranges, r)
	}

	sort.Ints(hitLines)
	seen := make(map[string]bool)
	var callers []CallerInfo
	for _, hit := range hitLines {
		for _, r := range ranges {
			if hit < r.start || hit > r.end {
				continue
			}
			if seen[r.name] {
				break
			}
			seen[r.name] = true

			caller := CallerInfo{
				Name:     r.name,
				Type:     "function",
				Path:     path,
				Line:     r.start,
				CallLine: hit,
			}
			if r.start >= 1 && r.end <= len(sourceLines) {
				caller.Source = strings.Join(sourceLines[r.start-1:r.end], "\n")
			}
			callers = append(callers, caller)
			break
		}
	}
	return callers, nil
}

// FindCallers consults CALLS edges first and falls back to the content scan
// only when zero edges match. The two result sets are never merged.
func (c *Client) FindCallers(ctx context.Context, repo, name, definitionPath string, logger *logrus.Logger) ([]CallerInfo, error) {
	callers, err := c.CallersByEdges(ctx, repo, name)
	if err != nil {
		return nil, err
	}
	if len(callers) > 0 {
		return callers, nil
	}
	return c.FindCallersByScan(ctx, repo, name, definitionPath, logger)
}

func asIntSlice(v any) []int {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		out = append(out, asInt(item))
	}
	return out
}
