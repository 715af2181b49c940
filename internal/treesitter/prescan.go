package treesitter

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Pavel401/bugviper/internal/models"
)

// ImportsMap maps a top-level symbol name to the repo-relative paths of the
// files that define it. It is built before any graph writes and consumed by
// the deferred CALLS and INHERITS resolvers.
type ImportsMap map[string][]string

// Add records a defining path for a name, skipping duplicates.
func (m ImportsMap) Add(name, path string) {
	if name == "" {
		return
	}
	for _, p := range m[name] {
		if p == path {
			return
		}
	}
	m[name] = append(m[name], path)
}

// Merge folds another map into this one.
func (m ImportsMap) Merge(other ImportsMap) {
	for name, paths := range other {
		for _, p := range paths {
			m.Add(name, p)
		}
	}
}

// PreScan parses every file and builds the repo-wide name → defining-paths map.
// Parse failures are logged and skipped; the pre-scan is best-effort by design
// (an unparseable file also produces no symbols in the per-file pass).
func PreScan(ctx context.Context, repoRoot string, files []string, logger *logrus.Logger) ImportsMap {
	m := make(ImportsMap)
	for _, abs := range files {
		rec, err := ParseFile(ctx, repoRoot, abs)
		if err != nil {
			logger.WithError(err).WithField("file", abs).Debug("pre-scan skipped file")
			continue
		}
		CollectExports(rec, m)
	}
	return m
}

// CollectExports adds a record's top-level definitions to the map. Methods
// (functions with a class context) are not exported names.
func CollectExports(rec *models.FileRecord, m ImportsMap) {
	for _, fn := range rec.Functions {
		if fn.ClassContext == "" && fn.FunctionContext == "" {
			m.Add(fn.Name, rec.Path)
		}
	}
	for _, lists := range [][]models.ClassDef{rec.Classes, rec.Traits, rec.Interfaces, rec.Structs} {
		for _, c := range lists {
			m.Add(c.Name, rec.Path)
		}
	}
}
