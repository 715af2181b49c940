package graph

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pavel401/bugviper/internal/models"
	"github.com/Pavel401/bugviper/internal/treesitter"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func importsMap(entries map[string][]string) treesitter.ImportsMap {
	m := make(treesitter.ImportsMap)
	for name, paths := range entries {
		for _, p := range paths {
			m.Add(name, p)
		}
	}
	return m
}

func callerCtx(name string, line int) models.CallerContext {
	return models.CallerContext{Name: name, Kind: models.CallerFunction, Line: line}
}

func TestResolveCallsLocalSymbol(t *testing.T) {
	rec := &models.FileRecord{
		Path:     "a.py",
		Language: "python",
		Functions: []models.FunctionDef{
			{Name: "foo", LineNumber: 1},
			{Name: "bar", LineNumber: 5},
		},
		FunctionCalls: []models.CallSite{
			{Name: "foo", FullName: "foo", LineNumber: 6, Context: callerCtx("bar", 5)},
		},
	}

	resolver := NewResolver(importsMap(nil), testLogger())
	edges := resolver.ResolveCalls(rec)

	require.Len(t, edges, 1)
	assert.True(t, edges[0].Resolved)
	assert.Equal(t, "a.py", edges[0].CalleePath)
	assert.Equal(t, "bar", edges[0].CallerName)
	assert.Equal(t, 6, edges[0].LineNumber)
}

func TestResolveCallsSelfReference(t *testing.T) {
	rec := &models.FileRecord{
		Path:     "svc.py",
		Language: "python",
		Classes:  []models.ClassDef{{Name: "Service", LineNumber: 1}},
		FunctionCalls: []models.CallSite{
			// Unchained self call resolves to the caller's own file
			{Name: "helper", FullName: "self.helper", LineNumber: 10, Context: callerCtx("run", 8)},
			// Chained self call falls through to name lookup
			{Name: "execute", FullName: "self.db.execute", LineNumber: 11, Context: callerCtx("run", 8)},
		},
	}

	resolver := NewResolver(importsMap(map[string][]string{
		"execute": {"db.py"},
	}), testLogger())
	edges := resolver.ResolveCalls(rec)
	require.Len(t, edges, 2)

	assert.True(t, edges[0].Resolved)
	assert.Equal(t, "svc.py", edges[0].CalleePath)

	assert.True(t, edges[1].Resolved)
	assert.Equal(t, "db.py", edges[1].CalleePath)
}

func TestResolveCallsUniqueImportsMapEntry(t *testing.T) {
	rec := &models.FileRecord{
		Path:     "b.py",
		Language: "python",
		Imports: []models.ImportDef{
			{Module: "a", ImportedName: "foo", FullImport: "a.foo", LineNumber: 1, IsFromImport: true},
		},
		Functions: []models.FunctionDef{{Name: "bar", LineNumber: 3}},
		FunctionCalls: []models.CallSite{
			{Name: "foo", FullName: "foo", LineNumber: 4, Context: callerCtx("bar", 3)},
		},
	}

	resolver := NewResolver(importsMap(map[string][]string{
		"foo": {"a.py"},
	}), testLogger())
	edges := resolver.ResolveCalls(rec)

	require.Len(t, edges, 1)
	assert.True(t, edges[0].Resolved)
	assert.Equal(t, "a.py", edges[0].CalleePath)
}

func TestResolveCallsAmbiguousConstrainedByImports(t *testing.T) {
	rec := &models.FileRecord{
		Path:     "main.py",
		Language: "python",
		Imports: []models.ImportDef{
			{Module: "pkg.util", ImportedName: "parse", FullImport: "pkg.util.parse", LineNumber: 1, IsFromImport: true},
		},
		FunctionCalls: []models.CallSite{
			{Name: "parse", FullName: "parse", LineNumber: 3, Context: callerCtx("main", 2)},
		},
	}

	resolver := NewResolver(importsMap(map[string][]string{
		"parse": {"other/parse.py", "pkg/util.py"},
	}), testLogger())
	edges := resolver.ResolveCalls(rec)

	require.Len(t, edges, 1)
	assert.True(t, edges[0].Resolved)
	assert.Equal(t, "pkg/util.py", edges[0].CalleePath)
}

func TestResolveCallsMissFallsThroughToUnresolved(t *testing.T) {
	rec := &models.FileRecord{
		Path:     "x.py",
		Language: "python",
		FunctionCalls: []models.CallSite{
			{Name: "mystery", FullName: "mystery", LineNumber: 2, Context: callerCtx("run", 1)},
		},
	}

	resolver := NewResolver(importsMap(nil), testLogger())
	edges := resolver.ResolveCalls(rec)

	require.Len(t, edges, 1)
	assert.False(t, edges[0].Resolved)
	assert.Empty(t, edges[0].CalleePath)
	assert.Equal(t, "mystery", edges[0].CalleeName)
}

func TestResolveCallsInferredObjectType(t *testing.T) {
	rec := &models.FileRecord{
		Path:     "x.py",
		Language: "python",
		FunctionCalls: []models.CallSite{
			{
				Name: "save", FullName: "store.save", LineNumber: 4,
				Context:         callerCtx("run", 1),
				InferredObjType: "Store",
			},
		},
	}

	resolver := NewResolver(importsMap(map[string][]string{
		"Store": {"store.py"},
	}), testLogger())
	edges := resolver.ResolveCalls(rec)

	require.Len(t, edges, 1)
	assert.True(t, edges[0].Resolved)
	assert.Equal(t, "store.py", edges[0].CalleePath)
}

func TestResolveCallsSkipsBuiltins(t *testing.T) {
	rec := &models.FileRecord{
		Path:     "x.py",
		Language: "python",
		FunctionCalls: []models.CallSite{
			{Name: "print", FullName: "print", LineNumber: 2, Context: callerCtx("run", 1)},
			{Name: "len", FullName: "len", LineNumber: 3, Context: callerCtx("run", 1)},
		},
	}

	resolver := NewResolver(importsMap(nil), testLogger())
	assert.Empty(t, resolver.ResolveCalls(rec))
}

func TestResolveCallsModuleLevelCaller(t *testing.T) {
	rec := &models.FileRecord{
		Path:      "script.py",
		Language:  "python",
		Functions: []models.FunctionDef{{Name: "main", LineNumber: 1}},
		FunctionCalls: []models.CallSite{
			{Name: "main", FullName: "main", LineNumber: 9, Context: models.CallerContext{Kind: models.CallerModule}},
		},
	}

	resolver := NewResolver(importsMap(nil), testLogger())
	edges := resolver.ResolveCalls(rec)

	require.Len(t, edges, 1)
	assert.Empty(t, edges[0].CallerName)
	assert.True(t, edges[0].Resolved)
	assert.Equal(t, "script.py", edges[0].CalleePath)
}

func TestResolveInheritanceLocalWinsOverImportsMap(t *testing.T) {
	rec := &models.FileRecord{
		Path:     "m.py",
		Language: "python",
		Classes: []models.ClassDef{
			{Name: "Base", LineNumber: 1},
			{Name: "Child", LineNumber: 5, Bases: []string{"Base"}},
		},
	}

	// Same-file scope wins even though another file also defines Base
	resolver := NewResolver(importsMap(map[string][]string{
		"Base": {"other.py"},
	}), testLogger())
	edges := resolver.ResolveInheritance(rec)

	require.Len(t, edges, 1)
	assert.Equal(t, "Child", edges[0].ChildName)
	assert.Equal(t, "m.py", edges[0].ParentPath)
}

func TestResolveInheritanceViaImport(t *testing.T) {
	rec := &models.FileRecord{
		Path:     "child.py",
		Language: "python",
		Imports: []models.ImportDef{
			{Module: "base", ImportedName: "Base", FullImport: "base.Base", LineNumber: 1, IsFromImport: true},
		},
		Classes: []models.ClassDef{
			{Name: "Child", LineNumber: 3, Bases: []string{"Base"}},
		},
	}

	resolver := NewResolver(importsMap(map[string][]string{
		"Base": {"base.py"},
	}), testLogger())
	edges := resolver.ResolveInheritance(rec)

	require.Len(t, edges, 1)
	assert.Equal(t, "Base", edges[0].ParentName)
	assert.Equal(t, "base.py", edges[0].ParentPath)
}

func TestResolveInheritanceSkipsObjectAndUnresolvable(t *testing.T) {
	rec := &models.FileRecord{
		Path:     "c.py",
		Language: "python",
		Classes: []models.ClassDef{
			{Name: "A", LineNumber: 1, Bases: []string{"object", "Unknown"}},
		},
	}

	resolver := NewResolver(importsMap(nil), testLogger())
	assert.Empty(t, resolver.ResolveInheritance(rec))
}
