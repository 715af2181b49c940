package treesitter

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

func text(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(src)
}

// startLine returns the 1-based first line of a node.
func startLine(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// endLine returns the 1-based last line of a node.
func endLine(n *sitter.Node) int {
	return int(n.EndPoint().Row) + 1
}

// namedChildren collects the named children of a node.
func namedChildren(n *sitter.Node) []*sitter.Node {
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, n.NamedChild(i))
	}
	return out
}

// firstChildOfType returns the first named child with the given node type.
func firstChildOfType(n *sitter.Node, nodeType string) *sitter.Node {
	for _, c := range namedChildren(n) {
		if c.Type() == nodeType {
			return c
		}
	}
	return nil
}

// walk applies fn depth-first to every node. fn returning false prunes the
// subtree.
func walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), fn)
	}
}

// callArguments renders each argument of an argument_list as source text.
func callArguments(args *sitter.Node, src []byte) []string {
	if args == nil {
		return nil
	}
	out := make([]string, 0, args.NamedChildCount())
	for _, a := range namedChildren(args) {
		out = append(out, text(a, src))
	}
	return out
}

// stripQuotes removes matching string delimiters from an import path literal.
func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"""`, `'''`, `"`, `'`, "`"} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

// simpleName returns the last segment of a dotted name.
func simpleName(dotted string) string {
	if i := strings.LastIndex(dotted, "."); i >= 0 {
		return dotted[i+1:]
	}
	return dotted
}
