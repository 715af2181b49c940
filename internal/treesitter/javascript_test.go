package treesitter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsSample = `import { greet } from './helpers';
import * as utils from './utils';

const MAX = 5;

function hello(name) {
  return greet(name);
}

const shout = (msg) => {
  return hello(msg);
};

class Animal {
  speak() {
    return hello('woof');
  }
}

class Dog extends Animal {}
`

func TestParseJavaScriptFile(t *testing.T) {
	dir, path := writeTestFile(t, "sample.js", jsSample)

	rec, err := ParseFile(context.Background(), dir, path)
	require.NoError(t, err)
	assert.Equal(t, "javascript", rec.Language)

	// Imports
	require.Len(t, rec.Imports, 2)
	assert.Equal(t, "./helpers", rec.Imports[0].Module)
	assert.Equal(t, "greet", rec.Imports[0].ImportedName)
	assert.True(t, rec.Imports[0].IsFromImport)
	assert.Equal(t, "./utils", rec.Imports[1].Module)
	assert.Equal(t, "utils", rec.Imports[1].Alias)

	// Declared and arrow functions
	hello := findFunction(t, rec, "hello")
	assert.Equal(t, []string{"name"}, hello.Args)
	shout := findFunction(t, rec, "shout")
	assert.NotZero(t, shout.LineNumber)

	// Classes and inheritance
	animal := findClass(t, rec, "Animal")
	require.Len(t, animal.Methods, 1)
	assert.Equal(t, "speak", animal.Methods[0].Name)
	dog := findClass(t, rec, "Dog")
	assert.Equal(t, []string{"Animal"}, dog.Bases)

	// Variables exclude function-valued declarators
	require.Len(t, rec.Variables, 1)
	assert.Equal(t, "MAX", rec.Variables[0].Name)

	// Caller contexts, including the arrow function's declarator name
	contexts := make(map[string][]string)
	for _, call := range rec.FunctionCalls {
		contexts[call.Name] = append(contexts[call.Name], call.Context.Name)
	}
	assert.Contains(t, contexts["greet"], "hello")
	assert.Contains(t, contexts["hello"], "shout")
	assert.Contains(t, contexts["hello"], "speak")
}

const tsSample = `import { Logger } from './log';

export interface Shape {
  area(): number;
}

export enum Color {
  Red,
  Blue,
}

export class Circle {
  area(): number {
    return compute(this.r);
  }
}
`

func TestParseTypeScriptFile(t *testing.T) {
	dir, path := writeTestFile(t, "sample.ts", tsSample)

	rec, err := ParseFile(context.Background(), dir, path)
	require.NoError(t, err)
	assert.Equal(t, "typescript", rec.Language)

	require.Len(t, rec.Interfaces, 1)
	assert.Equal(t, "Shape", rec.Interfaces[0].Name)
	require.Len(t, rec.Enums, 1)
	assert.Equal(t, "Color", rec.Enums[0].Name)

	circle := findClass(t, rec, "Circle")
	require.Len(t, circle.Methods, 1)

	var computeCall bool
	for _, call := range rec.FunctionCalls {
		if call.Name == "compute" && call.Context.Name == "area" {
			computeCall = true
		}
	}
	assert.True(t, computeCall, "expected compute() call inside area()")
}
