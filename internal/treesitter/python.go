package treesitter

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/Pavel401/bugviper/internal/models"
)

// pythonExtractor walks python grammar trees. Methods are reported twice on
// purpose: inside their ClassDef and in the flat Functions list with
// ClassContext set, which is what the graph writer links CONTAINS edges from.
type pythonExtractor struct{}

func (e *pythonExtractor) Language() string { return "python" }

func (e *pythonExtractor) Extract(root *sitter.Node, src []byte, rec *models.FileRecord) {
	for _, node := range namedChildren(root) {
		e.extractTopLevel(node, src, rec)
	}
	e.extractCalls(root, src, rec)
}

func (e *pythonExtractor) extractTopLevel(node *sitter.Node, src []byte, rec *models.FileRecord) {
	switch node.Type() {
	case "import_statement", "import_from_statement":
		rec.Imports = append(rec.Imports, e.extractImports(node, src)...)
	case "function_definition":
		fn := e.extractFunction(node, src, nil, "")
		rec.Functions = append(rec.Functions, fn)
	case "class_definition":
		e.extractClass(node, src, nil, rec)
	case "decorated_definition":
		decorators := e.decoratorNames(node, src)
		if def := node.ChildByFieldName("definition"); def != nil {
			switch def.Type() {
			case "function_definition":
				rec.Functions = append(rec.Functions, e.extractFunction(def, src, decorators, ""))
			case "class_definition":
				e.extractClass(def, src, decorators, rec)
			}
		}
	case "expression_statement":
		for _, c := range namedChildren(node) {
			if c.Type() != "assignment" {
				continue
			}
			left := c.ChildByFieldName("left")
			if left == nil || left.Type() != "identifier" {
				continue
			}
			rec.Variables = append(rec.Variables, models.VariableDef{
				Name:       text(left, src),
				LineNumber: startLine(c),
				EndLine:    endLine(c),
				Source:     text(c, src),
			})
		}
	}
}

func (e *pythonExtractor) extractImports(node *sitter.Node, src []byte) []models.ImportDef {
	var out []models.ImportDef
	line := startLine(node)

	if node.Type() == "import_statement" {
		// import a.b, import a.b as c
		for _, c := range namedChildren(node) {
			switch c.Type() {
			case "dotted_name":
				full := text(c, src)
				out = append(out, models.ImportDef{
					Module:     full,
					FullImport: full,
					LineNumber: line,
				})
			case "aliased_import":
				name := text(c.ChildByFieldName("name"), src)
				alias := text(c.ChildByFieldName("alias"), src)
				out = append(out, models.ImportDef{
					Module:     name,
					Alias:      alias,
					FullImport: name,
					LineNumber: line,
				})
			}
		}
		return out
	}

	// from a.b import c [as d], e
	module := text(node.ChildByFieldName("module_name"), src)
	for _, c := range namedChildren(node) {
		switch c.Type() {
		case "dotted_name":
			name := text(c, src)
			if name == module {
				continue
			}
			out = append(out, models.ImportDef{
				Module:       module,
				ImportedName: name,
				FullImport:   module + "." + name,
				LineNumber:   line,
				IsFromImport: true,
			})
		case "aliased_import":
			name := text(c.ChildByFieldName("name"), src)
			alias := text(c.ChildByFieldName("alias"), src)
			out = append(out, models.ImportDef{
				Module:       module,
				ImportedName: name,
				Alias:        alias,
				FullImport:   module + "." + name,
				LineNumber:   line,
				IsFromImport: true,
			})
		case "wildcard_import":
			out = append(out, models.ImportDef{
				Module:       module,
				ImportedName: "*",
				FullImport:   module,
				LineNumber:   line,
				IsFromImport: true,
			})
		}
	}
	return out
}

func (e *pythonExtractor) extractFunction(node *sitter.Node, src []byte, decorators []string, classCtx string) models.FunctionDef {
	name := text(node.ChildByFieldName("name"), src)
	fn := models.FunctionDef{
		Name:         name,
		LineNumber:   startLine(node),
		EndLine:      endLine(node),
		Args:         e.parameterNames(node.ChildByFieldName("parameters"), src),
		Decorators:   decorators,
		Docstring:    e.docstring(node.ChildByFieldName("body"), src),
		Source:       text(node, src),
		ClassContext: classCtx,
		Visibility:   pythonVisibility(name),
	}
	return fn
}

func (e *pythonExtractor) extractClass(node *sitter.Node, src []byte, decorators []string, rec *models.FileRecord) {
	cls := models.ClassDef{
		Name:       text(node.ChildByFieldName("name"), src),
		LineNumber: startLine(node),
		EndLine:    endLine(node),
		Decorators: decorators,
		Docstring:  e.docstring(node.ChildByFieldName("body"), src),
		Source:     text(node, src),
	}

	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for _, b := range namedChildren(supers) {
			switch b.Type() {
			case "identifier", "attribute":
				cls.Bases = append(cls.Bases, text(b, src))
			case "keyword_argument":
				// metaclass=..., not a base
			}
		}
	}

	if body := node.ChildByFieldName("body"); body != nil {
		for _, stmt := range namedChildren(body) {
			var def *sitter.Node
			var decs []string
			switch stmt.Type() {
			case "function_definition":
				def = stmt
			case "decorated_definition":
				if d := stmt.ChildByFieldName("definition"); d != nil && d.Type() == "function_definition" {
					def = d
					decs = e.decoratorNames(stmt, src)
				}
			}
			if def == nil {
				continue
			}
			method := e.extractFunction(def, src, decs, cls.Name)
			cls.Methods = append(cls.Methods, method)
			rec.Functions = append(rec.Functions, method)
		}
	}

	rec.Classes = append(rec.Classes, cls)
}

// extractCalls records every call expression with its enclosing symbol.
func (e *pythonExtractor) extractCalls(root *sitter.Node, src []byte, rec *models.FileRecord) {
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "call" {
			return true
		}
		callee := n.ChildByFieldName("function")
		if callee == nil {
			return true
		}

		full := text(callee, src)
		name := full
		if callee.Type() == "attribute" {
			name = text(callee.ChildByFieldName("attribute"), src)
		}
		if name == "" {
			return true
		}

		rec.FunctionCalls = append(rec.FunctionCalls, models.CallSite{
			Name:       name,
			FullName:   full,
			LineNumber: startLine(n),
			Args:       callArguments(n.ChildByFieldName("arguments"), src),
			Context:    enclosingContext(n, src, "function_definition", "class_definition"),
		})
		return true
	})
}

func (e *pythonExtractor) decoratorNames(decorated *sitter.Node, src []byte) []string {
	var out []string
	for _, c := range namedChildren(decorated) {
		if c.Type() == "decorator" {
			out = append(out, strings.TrimPrefix(text(c, src), "@"))
		}
	}
	return out
}

func (e *pythonExtractor) parameterNames(params *sitter.Node, src []byte) []string {
	if params == nil {
		return nil
	}
	var out []string
	for _, p := range namedChildren(params) {
		switch p.Type() {
		case "identifier":
			out = append(out, text(p, src))
		case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
			if id := firstChildOfType(p, "identifier"); id != nil {
				out = append(out, text(id, src))
			}
		case "default_parameter", "typed_default_parameter":
			out = append(out, text(p.ChildByFieldName("name"), src))
		}
	}
	return out
}

// docstring reads the leading string literal of a block, if any.
func (e *pythonExtractor) docstring(body *sitter.Node, src []byte) string {
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Type() != "string" {
		return ""
	}
	return stripQuotes(text(str, src))
}

func pythonVisibility(name string) string {
	if strings.HasPrefix(name, "_") {
		return "private"
	}
	return "public"
}

// enclosingContext climbs to the nearest enclosing definition of one of the
// given node types and reports its name, kind and line.
func enclosingContext(n *sitter.Node, src []byte, funcType, classType string) models.CallerContext {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case funcType:
			return models.CallerContext{
				Name: text(p.ChildByFieldName("name"), src),
				Kind: models.CallerFunction,
				Line: startLine(p),
			}
		case classType:
			return models.CallerContext{
				Name: text(p.ChildByFieldName("name"), src),
				Kind: models.CallerClass,
				Line: startLine(p),
			}
		}
	}
	return models.CallerContext{Kind: models.CallerModule}
}
