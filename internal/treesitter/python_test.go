package treesitter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pavel401/bugviper/internal/models"
)

const pythonSample = `import os
from helpers import greet, farewell as bye

GLOBAL_LIMIT = 10

def foo(a, b=2):
    """Say hi."""
    return greet(a)

class Base:
    """A base."""
    pass

class Child(Base):
    def method(self):
        self.helper()
        return foo(1)

    def _hidden(self):
        pass
`

func writeTestFile(t *testing.T, name, content string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return dir, path
}

func findFunction(t *testing.T, rec *models.FileRecord, name string) models.FunctionDef {
	t.Helper()
	for _, fn := range rec.Functions {
		if fn.Name == name {
			return fn
		}
	}
	t.Fatalf("function %q not found in %v", name, rec.Functions)
	return models.FunctionDef{}
}

func findClass(t *testing.T, rec *models.FileRecord, name string) models.ClassDef {
	t.Helper()
	for _, c := range rec.Classes {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("class %q not found", name)
	return models.ClassDef{}
}

func TestParsePythonFile(t *testing.T) {
	dir, path := writeTestFile(t, "sample.py", pythonSample)

	rec, err := ParseFile(context.Background(), dir, path)
	require.NoError(t, err)

	assert.Equal(t, "sample.py", rec.Path)
	assert.Equal(t, "python", rec.Language)
	assert.Equal(t, strings.Count(pythonSample, "\n")+1, rec.LinesCount)
	assert.Equal(t, pythonSample, rec.SourceCode)
	assert.Equal(t, strings.Count(rec.SourceCode, "\n"), rec.LinesCount-1)

	// Imports
	require.Len(t, rec.Imports, 3)
	assert.Equal(t, "os", rec.Imports[0].Module)
	assert.False(t, rec.Imports[0].IsFromImport)

	greet := rec.Imports[1]
	assert.Equal(t, "helpers", greet.Module)
	assert.Equal(t, "greet", greet.ImportedName)
	assert.True(t, greet.IsFromImport)
	assert.Equal(t, 2, greet.LineNumber)

	bye := rec.Imports[2]
	assert.Equal(t, "farewell", bye.ImportedName)
	assert.Equal(t, "bye", bye.Alias)

	// Top-level function
	foo := findFunction(t, rec, "foo")
	assert.Equal(t, 6, foo.LineNumber)
	assert.Equal(t, []string{"a", "b"}, foo.Args)
	assert.Equal(t, "Say hi.", foo.Docstring)
	assert.Empty(t, foo.ClassContext)
	assert.Equal(t, "public", foo.Visibility)
	assert.Contains(t, foo.Source, "def foo(a, b=2):")

	// Classes
	base := findClass(t, rec, "Base")
	assert.Empty(t, base.Bases)
	assert.Equal(t, "A base.", base.Docstring)

	child := findClass(t, rec, "Child")
	assert.Equal(t, []string{"Base"}, child.Bases)
	require.Len(t, child.Methods, 2)

	// Methods appear in the flat list with class context
	method := findFunction(t, rec, "method")
	assert.Equal(t, "Child", method.ClassContext)
	hidden := findFunction(t, rec, "_hidden")
	assert.Equal(t, "private", hidden.Visibility)

	// Variables
	require.Len(t, rec.Variables, 1)
	assert.Equal(t, "GLOBAL_LIMIT", rec.Variables[0].Name)
	assert.Equal(t, 4, rec.Variables[0].LineNumber)

	// Calls with caller context
	var greetCall, helperCall, fooCall *models.CallSite
	for i := range rec.FunctionCalls {
		call := &rec.FunctionCalls[i]
		switch call.Name {
		case "greet":
			greetCall = call
		case "helper":
			helperCall = call
		case "foo":
			fooCall = call
		}
	}
	require.NotNil(t, greetCall)
	assert.Equal(t, "foo", greetCall.Context.Name)
	assert.Equal(t, models.CallerFunction, greetCall.Context.Kind)

	require.NotNil(t, helperCall)
	assert.Equal(t, "self.helper", helperCall.FullName)
	assert.Equal(t, "method", helperCall.Context.Name)

	require.NotNil(t, fooCall)
	assert.Equal(t, 17, fooCall.LineNumber)
}

func TestParseFileUnsupportedExtension(t *testing.T) {
	dir, path := writeTestFile(t, "notes.txt", "hello")
	_, err := ParseFile(context.Background(), dir, path)
	require.Error(t, err)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a/b/c.py"))
	assert.True(t, Supported("x.ts"))
	assert.True(t, Supported("x.go"))
	assert.False(t, Supported("x.rb"))
	assert.False(t, Supported("Makefile"))
}

func TestPreScanCollectsTopLevelSymbols(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.py")
	b := filepath.Join(dir, "b.py")
	require.NoError(t, os.WriteFile(a, []byte("def foo():\n    pass\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("class Bar:\n    def method(self):\n        pass\n"), 0o644))

	m := PreScan(context.Background(), dir, []string{a, b}, testLogger())

	assert.Equal(t, []string{"a.py"}, m["foo"])
	assert.Equal(t, []string{"b.py"}, m["Bar"])
	// Methods are not exported names
	assert.NotContains(t, m, "method")
}

func TestImportsMapAddAndMerge(t *testing.T) {
	m := make(ImportsMap)
	m.Add("foo", "a.py")
	m.Add("foo", "a.py") // duplicate ignored
	m.Add("foo", "b.py")
	assert.Equal(t, []string{"a.py", "b.py"}, m["foo"])

	other := make(ImportsMap)
	other.Add("bar", "c.py")
	other.Add("foo", "b.py")
	m.Merge(other)
	assert.Equal(t, []string{"a.py", "b.py"}, m["foo"])
	assert.Equal(t, []string{"c.py"}, m["bar"])
}
