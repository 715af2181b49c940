package ingestion

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/Pavel401/bugviper/internal/treesitter"
)

// IgnoreFileName is the gitignore-style exclusion file honored during
// enumeration, rooted at the repository root.
const IgnoreFileName = ".cgcignore"

// Walker enumerates the source files of a working tree, filtered by supported
// extensions, the fixed ignore-directory list and an optional ignore file.
type Walker struct {
	ignoreDirs map[string]bool
}

// NewWalker builds a walker with the given directory skip list.
func NewWalker(ignoreDirs []string) *Walker {
	dirs := make(map[string]bool, len(ignoreDirs))
	for _, d := range ignoreDirs {
		dirs[strings.ToLower(d)] = true
	}
	return &Walker{ignoreDirs: dirs}
}

// Enumerate returns the absolute paths of all parseable files under root.
func (w *Walker) Enumerate(root string) ([]string, error) {
	matcher, err := loadIgnoreMatcher(root)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")

		if d.IsDir() {
			if w.ignoreDirs[strings.ToLower(d.Name())] {
				return filepath.SkipDir
			}
			if matcher != nil && matcher.Match(parts, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !treesitter.Supported(path) {
			return nil
		}
		if matcher != nil && matcher.Match(parts, false) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", root, err)
	}
	return files, nil
}

// loadIgnoreMatcher reads the repo-root ignore file if present.
func loadIgnoreMatcher(root string) (gitignore.Matcher, error) {
	f, err := os.Open(filepath.Join(root, IgnoreFileName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", IgnoreFileName, err)
	}
	defer f.Close()

	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", IgnoreFileName, err)
	}
	if len(patterns) == 0 {
		return nil, nil
	}
	return gitignore.NewMatcher(patterns), nil
}
