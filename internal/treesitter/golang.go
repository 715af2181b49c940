package treesitter

import (
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/Pavel401/bugviper/internal/models"
)

type goExtractor struct{}

func (e *goExtractor) Language() string { return "go" }

func (e *goExtractor) Extract(root *sitter.Node, src []byte, rec *models.FileRecord) {
	for _, node := range namedChildren(root) {
		switch node.Type() {
		case "import_declaration":
			rec.Imports = append(rec.Imports, e.extractImports(node, src)...)
		case "function_declaration":
			rec.Functions = append(rec.Functions, models.FunctionDef{
				Name:       text(node.ChildByFieldName("name"), src),
				LineNumber: startLine(node),
				EndLine:    endLine(node),
				Args:       e.parameterNames(node.ChildByFieldName("parameters"), src),
				Source:     text(node, src),
				Visibility: goVisibility(text(node.ChildByFieldName("name"), src)),
			})
		case "method_declaration":
			name := text(node.ChildByFieldName("name"), src)
			rec.Functions = append(rec.Functions, models.FunctionDef{
				Name:         name,
				LineNumber:   startLine(node),
				EndLine:      endLine(node),
				Args:         e.parameterNames(node.ChildByFieldName("parameters"), src),
				Source:       text(node, src),
				ClassContext: e.receiverTypeName(node, src),
				Visibility:   goVisibility(name),
			})
		case "type_declaration":
			e.extractTypes(node, src, rec)
		case "var_declaration", "const_declaration":
			e.extractVars(node, src, rec)
		}
	}
	e.extractCalls(root, src, rec)
}

func (e *goExtractor) extractImports(node *sitter.Node, src []byte) []models.ImportDef {
	var out []models.ImportDef
	collect := func(spec *sitter.Node) {
		path := stripQuotes(text(spec.ChildByFieldName("path"), src))
		if path == "" {
			return
		}
		imp := models.ImportDef{
			Module:     path,
			FullImport: path,
			LineNumber: startLine(spec),
		}
		if name := spec.ChildByFieldName("name"); name != nil {
			imp.Alias = text(name, src)
		}
		out = append(out, imp)
	}

	walk(node, func(n *sitter.Node) bool {
		if n.Type() == "import_spec" {
			collect(n)
			return false
		}
		return true
	})
	return out
}

func (e *goExtractor) extractTypes(node *sitter.Node, src []byte, rec *models.FileRecord) {
	for _, spec := range namedChildren(node) {
		if spec.Type() != "type_spec" {
			continue
		}
		name := text(spec.ChildByFieldName("name"), src)
		typ := spec.ChildByFieldName("type")
		if typ == nil {
			continue
		}
		def := models.ClassDef{
			Name:       name,
			LineNumber: startLine(spec),
			EndLine:    endLine(spec),
			Source:     text(node, src),
		}
		switch typ.Type() {
		case "struct_type":
			// Embedded fields act as bases for hierarchy purposes
			walk(typ, func(n *sitter.Node) bool {
				if n.Type() == "field_declaration" && n.ChildByFieldName("name") == nil {
					if t := n.ChildByFieldName("type"); t != nil {
						def.Bases = append(def.Bases, simpleName(strings.TrimPrefix(text(t, src), "*")))
					}
					return false
				}
				return true
			})
			rec.Structs = append(rec.Structs, def)
		case "interface_type":
			rec.Interfaces = append(rec.Interfaces, def)
		}
	}
}

func (e *goExtractor) extractVars(node *sitter.Node, src []byte, rec *models.FileRecord) {
	walk(node, func(n *sitter.Node) bool {
		if n.Type() != "var_spec" && n.Type() != "const_spec" {
			return true
		}
		for _, id := range namedChildren(n) {
			if id.Type() != "identifier" {
				continue
			}
			rec.Variables = append(rec.Variables, models.VariableDef{
				Name:       text(id, src),
				LineNumber: startLine(n),
				EndLine:    endLine(n),
				Source:     text(n, src),
			})
		}
		return false
	})
}

func (e *goExtractor) extractCalls(root *sitter.Node, src []byte, rec *models.FileRecord) {
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		callee := n.ChildByFieldName("function")
		if callee == nil {
			return true
		}

		full := text(callee, src)
		name := full
		if callee.Type() == "selector_expression" {
			name = text(callee.ChildByFieldName("field"), src)
		}
		if name == "" {
			return true
		}

		rec.FunctionCalls = append(rec.FunctionCalls, models.CallSite{
			Name:       name,
			FullName:   full,
			LineNumber: startLine(n),
			Args:       callArguments(n.ChildByFieldName("arguments"), src),
			Context:    e.enclosing(n, src),
		})
		return true
	})
}

func (e *goExtractor) enclosing(n *sitter.Node, src []byte) models.CallerContext {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "function_declaration", "method_declaration":
			return models.CallerContext{
				Name: text(p.ChildByFieldName("name"), src),
				Kind: models.CallerFunction,
				Line: startLine(p),
			}
		}
	}
	return models.CallerContext{Kind: models.CallerModule}
}

// receiverTypeName reads the bare type name out of a method receiver.
func (e *goExtractor) receiverTypeName(node *sitter.Node, src []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	for _, p := range namedChildren(recv) {
		if p.Type() != "parameter_declaration" {
			continue
		}
		if t := p.ChildByFieldName("type"); t != nil {
			return simpleName(strings.TrimPrefix(text(t, src), "*"))
		}
	}
	return ""
}

func goVisibility(name string) string {
	if name == "" {
		return "private"
	}
	r := []rune(name)[0]
	if unicode.IsUpper(r) {
		return "public"
	}
	return "private"
}

func (e *goExtractor) parameterNames(params *sitter.Node, src []byte) []string {
	if params == nil {
		return nil
	}
	var out []string
	for _, p := range namedChildren(params) {
		if p.Type() != "parameter_declaration" && p.Type() != "variadic_parameter_declaration" {
			continue
		}
		found := false
		for _, id := range namedChildren(p) {
			if id.Type() == "identifier" {
				out = append(out, text(id, src))
				found = true
			}
		}
		if !found {
			if n := p.ChildByFieldName("name"); n != nil {
				out = append(out, text(n, src))
			}
		}
	}
	return out
}
