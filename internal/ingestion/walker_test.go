package ingestion

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
}

func relPaths(t *testing.T, root string, absolute []string) []string {
	t.Helper()
	out := make([]string, 0, len(absolute))
	for _, abs := range absolute {
		rel, err := filepath.Rel(root, abs)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out
}

func TestEnumerateFiltersBySupportAndIgnoreDirs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.py":                 "x = 1\n",
		"src/b.ts":             "const b = 1;\n",
		"README.md":            "# readme\n",
		"node_modules/dep.js":  "module.exports = {};\n",
		"vendor/lib.go":        "package lib\n",
		"src/__pycache__/c.py": "cached = True\n",
	})

	walker := NewWalker([]string{"node_modules", "vendor", "__pycache__"})
	files, err := walker.Enumerate(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.py", "src/b.ts"}, relPaths(t, root, files))
}

func TestEnumerateHonorsIgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		".cgcignore":        "generated/\n*_pb.py\n# comment\n\n",
		"main.py":           "pass\n",
		"util_pb.py":        "pass\n",
		"generated/gen.py":  "pass\n",
		"pkg/handler.py":    "pass\n",
	})

	walker := NewWalker(nil)
	files, err := walker.Enumerate(root)
	require.NoError(t, err)

	got := relPaths(t, root, files)
	assert.Contains(t, got, "main.py")
	assert.Contains(t, got, "pkg/handler.py")
	assert.NotContains(t, got, "util_pb.py")
	for _, f := range got {
		assert.False(t, strings.HasPrefix(f, "generated/"), "generated/ should be ignored: %s", f)
	}
}

func TestScratchPath(t *testing.T) {
	path := ScratchPath("/tmp/bugviper", "octo", "lib")
	assert.Equal(t, filepath.Join("/tmp/bugviper", "octo", "lib"), path)
}
