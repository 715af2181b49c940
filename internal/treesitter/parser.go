// Package treesitter extracts language-neutral symbol records from source
// files using tree-sitter grammars. One extractor per language; none of them
// touch the graph.
package treesitter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/Pavel401/bugviper/internal/models"
)

// MaxSourceBytes caps the file text stored on a File node. Larger files still
// get structural nodes but no inline source.
const MaxSourceBytes = 2 * 1024 * 1024

// LanguageExtractor turns a parsed syntax tree into a FileRecord. Implementors
// own their tree traversal and populate only the fields their grammar supports.
type LanguageExtractor interface {
	Language() string
	Extract(root *sitter.Node, src []byte, rec *models.FileRecord)
}

type registration struct {
	grammar   *sitter.Language
	extractor LanguageExtractor
}

var (
	registryOnce sync.Once
	registry     map[string]registration
)

// languageRegistry maps file extensions to grammar + extractor pairs. New
// languages are added here and nowhere else.
func languageRegistry() map[string]registration {
	registryOnce.Do(func() {
		py := registration{python.GetLanguage(), &pythonExtractor{}}
		js := registration{javascript.GetLanguage(), &javascriptExtractor{}}
		ts := registration{typescript.GetLanguage(), &typescriptExtractor{dialect: "typescript"}}
		tx := registration{tsx.GetLanguage(), &typescriptExtractor{dialect: "tsx"}}
		gg := registration{golang.GetLanguage(), &goExtractor{}}

		registry = map[string]registration{
			".py":  py,
			".pyi": py,
			".js":  js,
			".jsx": js,
			".mjs": js,
			".cjs": js,
			".ts":  ts,
			".mts": ts,
			".cts": ts,
			".tsx": tx,
			".go":  gg,
		}
	})
	return registry
}

// Supported reports whether a file extension has a registered extractor.
func Supported(path string) bool {
	_, ok := languageRegistry()[filepath.Ext(path)]
	return ok
}

// SupportedExtensions returns the registered extension set.
func SupportedExtensions() []string {
	reg := languageRegistry()
	exts := make([]string, 0, len(reg))
	for ext := range reg {
		exts = append(exts, ext)
	}
	return exts
}

// ParseFile parses one file into a FileRecord. The returned path is relative
// to repoRoot. Parse errors are returned to the caller; they are non-fatal for
// a job and must be aggregated, not propagated.
func ParseFile(ctx context.Context, repoRoot, absPath string) (*models.FileRecord, error) {
	reg, ok := languageRegistry()[filepath.Ext(absPath)]
	if !ok {
		return nil, fmt.Errorf("no extractor for extension %q", filepath.Ext(absPath))
	}

	src, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", absPath, err)
	}

	rel, err := filepath.Rel(repoRoot, absPath)
	if err != nil {
		rel = filepath.Base(absPath)
	}
	rel = filepath.ToSlash(rel)

	parser := sitter.NewParser()
	parser.SetLanguage(reg.grammar)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rel, err)
	}
	defer tree.Close()

	rec := &models.FileRecord{
		Path:       rel,
		Language:   reg.extractor.Language(),
		LinesCount: strings.Count(string(src), "\n") + 1,
	}
	if len(src) <= MaxSourceBytes {
		rec.SourceCode = string(src)
	} else {
		rec.Oversized = true
	}

	reg.extractor.Extract(tree.RootNode(), src, rec)
	return rec, nil
}
