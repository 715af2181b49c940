package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Pavel401/bugviper/internal/models"
)

func TestEscapeLucene(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"foo(bar)", `foo\(bar\)`},
		{`a+b-c`, `a\+b\-c`},
		{`path/to:thing`, `path\/to\:thing`},
		{"wild*card?", `wild\*card\?`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, escapeLucene(tc.in), "input %q", tc.in)
	}
}

func TestValueCoercions(t *testing.T) {
	assert.Equal(t, "x", asString("x"))
	assert.Equal(t, "", asString(nil))
	assert.Equal(t, 7, asInt(int64(7)))
	assert.Equal(t, 7, asInt(7))
	assert.Equal(t, 0, asInt(nil))
	assert.Equal(t, []string{"a", "b"}, asStringSlice([]any{"a", "b"}))
	assert.Nil(t, asStringSlice("not a slice"))
	assert.Equal(t, []int{1, 2}, asIntSlice([]any{int64(1), int64(2)}))
}

func TestFunctionPropsDefaultsComplexity(t *testing.T) {
	props := functionProps([]models.FunctionDef{
		{Name: "a", LineNumber: 1},
		{Name: "b", LineNumber: 5, CyclomaticComplexity: 4},
	}, "python")

	assert.Equal(t, 1, props[0]["cyclomatic_complexity"])
	assert.Equal(t, 4, props[1]["cyclomatic_complexity"])
	assert.Equal(t, "python", props[0]["lang"])
}

func TestLowerFirst(t *testing.T) {
	assert.Equal(t, "function", lowerFirst("Function"))
	assert.Equal(t, "", lowerFirst(""))
}
