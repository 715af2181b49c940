package treesitter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goSample = `package sample

import (
	"fmt"
	ss "strings"
)

const Version = "1.0"

type Greeter struct {
	Base
}

type Speaker interface {
	Speak() string
}

func (g *Greeter) Greet(name string) string {
	return fmt.Sprintf("hi %s", ss.ToUpper(name))
}

func Run() string {
	g := &Greeter{}
	return g.Greet("x")
}
`

func TestParseGoFile(t *testing.T) {
	dir, path := writeTestFile(t, "sample.go", goSample)

	rec, err := ParseFile(context.Background(), dir, path)
	require.NoError(t, err)
	assert.Equal(t, "go", rec.Language)

	// Imports, including alias
	require.Len(t, rec.Imports, 2)
	assert.Equal(t, "fmt", rec.Imports[0].Module)
	assert.Equal(t, "strings", rec.Imports[1].Module)
	assert.Equal(t, "ss", rec.Imports[1].Alias)

	// Types
	require.Len(t, rec.Structs, 1)
	assert.Equal(t, "Greeter", rec.Structs[0].Name)
	assert.Equal(t, []string{"Base"}, rec.Structs[0].Bases)
	require.Len(t, rec.Interfaces, 1)
	assert.Equal(t, "Speaker", rec.Interfaces[0].Name)

	// Functions: method carries its receiver type
	greet := findFunction(t, rec, "Greet")
	assert.Equal(t, "Greeter", greet.ClassContext)
	assert.Equal(t, []string{"name"}, greet.Args)
	assert.Equal(t, "public", greet.Visibility)

	run := findFunction(t, rec, "Run")
	assert.Empty(t, run.ClassContext)

	// Constants
	require.NotEmpty(t, rec.Variables)
	assert.Equal(t, "Version", rec.Variables[0].Name)

	// Calls: builtin-free, with enclosing function context
	names := make(map[string]string)
	for _, call := range rec.FunctionCalls {
		names[call.Name] = call.Context.Name
	}
	assert.Equal(t, "Greet", names["Sprintf"])
	assert.Equal(t, "Greet", names["ToUpper"])
	assert.Equal(t, "Run", names["Greet"])
}
