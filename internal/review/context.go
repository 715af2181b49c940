// Package review assembles the code-graph context an LLM review pipeline
// consumes for a pull request: affected symbols, their callers and callees,
// imported in-repo symbols with source, class method bodies and hierarchy.
package review

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Pavel401/bugviper/internal/graph"
	"github.com/Pavel401/bugviper/internal/models"
)

// Source caps. Primary symbols keep more text than imported collaterals; both
// end with an explicit marker when cut.
const (
	maxPrimarySourceBytes    = 10_000
	maxCollateralSourceBytes = 5_000
	truncationMarker         = "\n... (truncated)"
)

// CallerGroup lists the callers of one affected symbol.
type CallerGroup struct {
	Symbol     string             `json:"symbol"`
	SymbolType string             `json:"symbol_type"`
	Callers    []graph.CallerInfo `json:"callers"`
}

// DependencyGroup lists the callees of one affected symbol.
type DependencyGroup struct {
	Symbol       string                 `json:"symbol"`
	Dependencies []graph.DependencyInfo `json:"dependencies"`
}

// MethodGroup carries every method body of one affected class.
type MethodGroup struct {
	Class   string             `json:"class"`
	Methods []graph.SymbolInfo `json:"methods"`
}

// ImportedSymbol is an in-repo symbol imported by a changed file, with source.
type ImportedSymbol struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Source    string `json:"source,omitempty"`
	Path      string `json:"path"`
	Line      int    `json:"line"`
	Docstring string `json:"docstring,omitempty"`
	FromFile  string `json:"from_file"`
}

// HierarchyGroup holds one affected class's parents and direct children.
type HierarchyGroup struct {
	Class    string                 `json:"class"`
	Parents  []graph.HierarchyEntry `json:"parents,omitempty"`
	Children []graph.HierarchyEntry `json:"children,omitempty"`
}

// Context is the full assembled review context for a diff.
type Context struct {
	AffectedSymbols []graph.SymbolInfo `json:"affected_symbols"`
	Callers         []CallerGroup      `json:"callers,omitempty"`
	Dependencies    []DependencyGroup  `json:"dependencies,omitempty"`
	Methods         []MethodGroup      `json:"methods,omitempty"`
	Imports         []ImportedSymbol   `json:"imports,omitempty"`
	ClassHierarchy  []HierarchyGroup   `json:"class_hierarchy,omitempty"`
	TotalAffected   int                `json:"total_affected"`
	TotalFiles      int                `json:"total_files"`
}

// GraphReader is the slice of the graph read API the builder consumes.
// *graph.Client satisfies it.
type GraphReader interface {
	SymbolsAtLines(ctx context.Context, repo, relPath string, startLine, endLine int) ([]graph.SymbolInfo, error)
	FindCallers(ctx context.Context, repo, name, definitionPath string, logger *logrus.Logger) ([]graph.CallerInfo, error)
	Dependencies(ctx context.Context, repo, name, relPath string) ([]graph.DependencyInfo, error)
	ClassMethods(ctx context.Context, repo, className, relPath string) ([]graph.SymbolInfo, error)
	ClassParents(ctx context.Context, repo, name, relPath string) ([]graph.HierarchyEntry, error)
	ClassChildren(ctx context.Context, repo, name, relPath string) ([]graph.HierarchyEntry, error)
	FileImports(ctx context.Context, repo, relPath string) ([]graph.ImportInfo, error)
	FindSymbolByName(ctx context.Context, repo, name string) (*graph.SymbolInfo, error)
}

// Builder gathers context from the graph.
type Builder struct {
	client GraphReader
	logger *logrus.Logger
}

// NewBuilder returns a context builder over the given graph reader.
func NewBuilder(client GraphReader, logger *logrus.Logger) *Builder {
	return &Builder{client: client, logger: logger}
}

// Build assembles the context for a set of hunks, all scoped to one repo.
// An empty hunk list yields an empty context, not an error.
func (b *Builder) Build(ctx context.Context, repo string, hunks []models.Hunk) (*Context, error) {
	result := &Context{AffectedSymbols: []graph.SymbolInfo{}}
	seenSymbols := make(map[string]bool)
	seenImports := make(map[string]bool)
	changedFiles := make(map[string]bool)

	for _, hunk := range hunks {
		changedFiles[hunk.FilePath] = true

		symbols, err := b.client.SymbolsAtLines(ctx, repo, hunk.FilePath, hunk.StartLine, hunk.EndLine)
		if err != nil {
			return nil, fmt.Errorf("symbols at %s:%d-%d: %w", hunk.FilePath, hunk.StartLine, hunk.EndLine, err)
		}

		for _, sym := range symbols {
			sym.ChangeFile = hunk.FilePath
			sym.Source = truncate(sym.Source, maxPrimarySourceBytes)
			result.AffectedSymbols = append(result.AffectedSymbols, sym)

			key := hunk.FilePath + ":" + sym.Name
			if seenSymbols[key] {
				continue
			}
			seenSymbols[key] = true

			b.gatherCallers(ctx, repo, sym, result)
			b.gatherDependencies(ctx, repo, sym, result)
			if sym.Type == "class" {
				b.gatherClassDetail(ctx, repo, sym, result)
			}
		}

		if err := b.gatherImports(ctx, repo, hunk.FilePath, seenImports, result); err != nil {
			return nil, err
		}
	}

	result.TotalAffected = len(result.AffectedSymbols)
	result.TotalFiles = len(changedFiles)
	return result, nil
}

func (b *Builder) gatherCallers(ctx context.Context, repo string, sym graph.SymbolInfo, result *Context) {
	callers, err := b.client.FindCallers(ctx, repo, sym.Name, sym.FilePath, b.logger)
	if err != nil {
		b.logger.WithError(err).WithField("symbol", sym.Name).Warn("caller lookup failed")
		return
	}
	if len(callers) == 0 {
		return
	}
	for i := range callers {
		callers[i].Source = truncate(callers[i].Source, maxCollateralSourceBytes)
	}
	result.Callers = append(result.Callers, CallerGroup{
		Symbol:     sym.Name,
		SymbolType: sym.Type,
		Callers:    callers,
	})
}

func (b *Builder) gatherDependencies(ctx context.Context, repo string, sym graph.SymbolInfo, result *Context) {
	deps, err := b.client.Dependencies(ctx, repo, sym.Name, sym.FilePath)
	if err != nil {
		b.logger.WithError(err).WithField("symbol", sym.Name).Warn("dependency lookup failed")
		return
	}
	if len(deps) == 0 {
		return
	}
	result.Dependencies = append(result.Dependencies, DependencyGroup{
		Symbol:       sym.Name,
		Dependencies: deps,
	})
}

// gatherClassDetail pulls every method body plus the bounded hierarchy so the
// reviewer sees the full class without guessing.
func (b *Builder) gatherClassDetail(ctx context.Context, repo string, sym graph.SymbolInfo, result *Context) {
	methods, err := b.client.ClassMethods(ctx, repo, sym.Name, sym.FilePath)
	if err != nil {
		b.logger.WithError(err).WithField("class", sym.Name).Warn("method lookup failed")
	} else if len(methods) > 0 {
		for i := range methods {
			methods[i].Source = truncate(methods[i].Source, maxPrimarySourceBytes)
		}
		result.Methods = append(result.Methods, MethodGroup{Class: sym.Name, Methods: methods})
	}

	parents, err := b.client.ClassParents(ctx, repo, sym.Name, sym.FilePath)
	if err != nil {
		b.logger.WithError(err).WithField("class", sym.Name).Warn("hierarchy lookup failed")
		return
	}
	children, err := b.client.ClassChildren(ctx, repo, sym.Name, sym.FilePath)
	if err != nil {
		b.logger.WithError(err).WithField("class", sym.Name).Warn("children lookup failed")
		return
	}
	if len(parents) == 0 && len(children) == 0 {
		return
	}
	for i := range parents {
		parents[i].Source = truncate(parents[i].Source, maxCollateralSourceBytes)
	}
	result.ClassHierarchy = append(result.ClassHierarchy, HierarchyGroup{
		Class:    sym.Name,
		Parents:  parents,
		Children: children,
	})
}

// gatherImports resolves each IMPORTS edge of a changed file to an in-repo
// symbol and attaches its source when found.
func (b *Builder) gatherImports(ctx context.Context, repo, filePath string, seen map[string]bool, result *Context) error {
	imports, err := b.client.FileImports(ctx, repo, filePath)
	if err != nil {
		return fmt.Errorf("imports of %s: %w", filePath, err)
	}

	for _, imp := range imports {
		name := imp.ImportedName
		if name == "" {
			name = imp.Alias
		}
		if name == "" || name == "*" || seen[name] {
			continue
		}
		seen[name] = true

		sym, err := b.client.FindSymbolByName(ctx, repo, name)
		if err != nil {
			b.logger.WithError(err).WithField("import", name).Warn("import resolution failed")
			continue
		}
		if sym == nil {
			continue
		}
		result.Imports = append(result.Imports, ImportedSymbol{
			Name:      name,
			Type:      sym.Type,
			Source:    truncate(sym.Source, maxCollateralSourceBytes),
			Path:      sym.FilePath,
			Line:      sym.StartLine,
			Docstring: sym.Docstring,
			FromFile:  filePath,
		})
	}
	return nil
}

func truncate(source string, limit int) string {
	if len(source) <= limit {
		return source
	}
	return source[:limit] + truncationMarker
}
