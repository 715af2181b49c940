package treesitter

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/Pavel401/bugviper/internal/models"
)

type javascriptExtractor struct{}

func (e *javascriptExtractor) Language() string { return "javascript" }

func (e *javascriptExtractor) Extract(root *sitter.Node, src []byte, rec *models.FileRecord) {
	for _, node := range namedChildren(root) {
		e.extractStatement(node, src, rec)
	}
	extractJSLikeCalls(root, src, rec)
}

func (e *javascriptExtractor) extractStatement(node *sitter.Node, src []byte, rec *models.FileRecord) {
	switch node.Type() {
	case "import_statement":
		rec.Imports = append(rec.Imports, extractJSImports(node, src)...)
	case "function_declaration", "generator_function_declaration":
		rec.Functions = append(rec.Functions, extractJSFunction(node, src, ""))
	case "class_declaration":
		extractJSClass(node, src, rec)
	case "export_statement":
		if decl := node.ChildByFieldName("declaration"); decl != nil {
			e.extractStatement(decl, src, rec)
		}
	case "lexical_declaration", "variable_declaration":
		for _, d := range namedChildren(node) {
			if d.Type() != "variable_declarator" {
				continue
			}
			name := text(d.ChildByFieldName("name"), src)
			value := d.ChildByFieldName("value")
			if value != nil && (value.Type() == "arrow_function" || value.Type() == "function_expression" || value.Type() == "function") {
				rec.Functions = append(rec.Functions, models.FunctionDef{
					Name:       name,
					LineNumber: startLine(d),
					EndLine:    endLine(d),
					Args:       jsParameterNames(value.ChildByFieldName("parameters"), src),
					Source:     text(d, src),
				})
				continue
			}
			rec.Variables = append(rec.Variables, models.VariableDef{
				Name:       name,
				LineNumber: startLine(d),
				EndLine:    endLine(d),
				Source:     text(d, src),
			})
		}
	}
}

// extractJSImports handles default, named, namespace and bare imports.
// Shared with the TypeScript extractor, whose grammar reuses these nodes.
func extractJSImports(node *sitter.Node, src []byte) []models.ImportDef {
	module := stripQuotes(text(node.ChildByFieldName("source"), src))
	if module == "" {
		return nil
	}
	line := startLine(node)

	clause := firstChildOfType(node, "import_clause")
	if clause == nil {
		// import "side-effect"
		return []models.ImportDef{{Module: module, LineNumber: line}}
	}

	var out []models.ImportDef
	for _, c := range namedChildren(clause) {
		switch c.Type() {
		case "identifier":
			out = append(out, models.ImportDef{
				Module:       module,
				ImportedName: text(c, src),
				LineNumber:   line,
				IsFromImport: true,
			})
		case "namespace_import":
			if id := firstChildOfType(c, "identifier"); id != nil {
				out = append(out, models.ImportDef{
					Module:     module,
					Alias:      text(id, src),
					LineNumber: line,
				})
			}
		case "named_imports":
			for _, spec := range namedChildren(c) {
				if spec.Type() != "import_specifier" {
					continue
				}
				imp := models.ImportDef{
					Module:       module,
					ImportedName: text(spec.ChildByFieldName("name"), src),
					Alias:        text(spec.ChildByFieldName("alias"), src),
					LineNumber:   line,
					IsFromImport: true,
				}
				out = append(out, imp)
			}
		}
	}
	if len(out) == 0 {
		out = append(out, models.ImportDef{Module: module, LineNumber: line})
	}
	return out
}

func extractJSFunction(node *sitter.Node, src []byte, classCtx string) models.FunctionDef {
	return models.FunctionDef{
		Name:         text(node.ChildByFieldName("name"), src),
		LineNumber:   startLine(node),
		EndLine:      endLine(node),
		Args:         jsParameterNames(node.ChildByFieldName("parameters"), src),
		Source:       text(node, src),
		ClassContext: classCtx,
	}
}

func extractJSClass(node *sitter.Node, src []byte, rec *models.FileRecord) {
	cls := models.ClassDef{
		Name:       text(node.ChildByFieldName("name"), src),
		LineNumber: startLine(node),
		EndLine:    endLine(node),
		Source:     text(node, src),
	}

	if heritage := firstChildOfType(node, "class_heritage"); heritage != nil {
		for _, c := range namedChildren(heritage) {
			switch c.Type() {
			case "identifier", "member_expression":
				cls.Bases = append(cls.Bases, text(c, src))
			}
		}
	}

	if body := node.ChildByFieldName("body"); body != nil {
		for _, m := range namedChildren(body) {
			if m.Type() != "method_definition" {
				continue
			}
			method := models.FunctionDef{
				Name:         text(m.ChildByFieldName("name"), src),
				LineNumber:   startLine(m),
				EndLine:      endLine(m),
				Args:         jsParameterNames(m.ChildByFieldName("parameters"), src),
				Source:       text(m, src),
				ClassContext: cls.Name,
			}
			cls.Methods = append(cls.Methods, method)
			rec.Functions = append(rec.Functions, method)
		}
	}

	rec.Classes = append(rec.Classes, cls)
}

// extractJSLikeCalls records call and new expressions for JS and TS trees.
func extractJSLikeCalls(root *sitter.Node, src []byte, rec *models.FileRecord) {
	walk(root, func(n *sitter.Node) bool {
		var callee *sitter.Node
		switch n.Type() {
		case "call_expression":
			callee = n.ChildByFieldName("function")
		case "new_expression":
			callee = n.ChildByFieldName("constructor")
		default:
			return true
		}
		if callee == nil {
			return true
		}

		full := text(callee, src)
		name := full
		if callee.Type() == "member_expression" {
			name = text(callee.ChildByFieldName("property"), src)
		}
		if name == "" {
			return true
		}

		rec.FunctionCalls = append(rec.FunctionCalls, models.CallSite{
			Name:       name,
			FullName:   full,
			LineNumber: startLine(n),
			Args:       callArguments(n.ChildByFieldName("arguments"), src),
			Context:    jsEnclosingContext(n, src),
		})
		return true
	})
}

// jsEnclosingContext resolves the symbol a call occurs in. Anonymous function
// expressions take the name of the variable they are assigned to.
func jsEnclosingContext(n *sitter.Node, src []byte) models.CallerContext {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "function_declaration", "generator_function_declaration", "method_definition":
			return models.CallerContext{
				Name: text(p.ChildByFieldName("name"), src),
				Kind: models.CallerFunction,
				Line: startLine(p),
			}
		case "arrow_function", "function_expression", "function":
			if decl := p.Parent(); decl != nil && decl.Type() == "variable_declarator" {
				return models.CallerContext{
					Name: text(decl.ChildByFieldName("name"), src),
					Kind: models.CallerFunction,
					Line: startLine(decl),
				}
			}
		case "class_declaration":
			return models.CallerContext{
				Name: text(p.ChildByFieldName("name"), src),
				Kind: models.CallerClass,
				Line: startLine(p),
			}
		}
	}
	return models.CallerContext{Kind: models.CallerModule}
}

func jsParameterNames(params *sitter.Node, src []byte) []string {
	if params == nil {
		return nil
	}
	var out []string
	for _, p := range namedChildren(params) {
		switch p.Type() {
		case "identifier":
			out = append(out, text(p, src))
		case "required_parameter", "optional_parameter":
			// TypeScript parameter wrappers
			if pat := p.ChildByFieldName("pattern"); pat != nil {
				out = append(out, text(pat, src))
			}
		case "rest_pattern":
			if id := firstChildOfType(p, "identifier"); id != nil {
				out = append(out, "..."+text(id, src))
			}
		case "assignment_pattern":
			out = append(out, text(p.ChildByFieldName("left"), src))
		}
	}
	return out
}
