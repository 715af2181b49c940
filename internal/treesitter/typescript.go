package treesitter

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/Pavel401/bugviper/internal/models"
)

// typescriptExtractor reuses the javascript extraction paths (the grammars
// share node shapes) and adds interfaces and enums.
type typescriptExtractor struct {
	dialect string // "typescript" or "tsx"
}

func (e *typescriptExtractor) Language() string { return "typescript" }

func (e *typescriptExtractor) Extract(root *sitter.Node, src []byte, rec *models.FileRecord) {
	for _, node := range namedChildren(root) {
		e.extractStatement(node, src, rec)
	}
	extractJSLikeCalls(root, src, rec)
}

func (e *typescriptExtractor) extractStatement(node *sitter.Node, src []byte, rec *models.FileRecord) {
	switch node.Type() {
	case "import_statement":
		rec.Imports = append(rec.Imports, extractJSImports(node, src)...)
	case "function_declaration", "generator_function_declaration":
		rec.Functions = append(rec.Functions, extractJSFunction(node, src, ""))
	case "class_declaration", "abstract_class_declaration":
		extractJSClass(node, src, rec)
	case "interface_declaration":
		iface := models.ClassDef{
			Name:       text(node.ChildByFieldName("name"), src),
			LineNumber: startLine(node),
			EndLine:    endLine(node),
			Source:     text(node, src),
		}
		if heritage := firstChildOfType(node, "extends_type_clause"); heritage != nil {
			for _, c := range namedChildren(heritage) {
				if c.Type() == "type_identifier" || c.Type() == "nested_type_identifier" {
					iface.Bases = append(iface.Bases, text(c, src))
				}
			}
		}
		rec.Interfaces = append(rec.Interfaces, iface)
	case "enum_declaration":
		rec.Enums = append(rec.Enums, models.ClassDef{
			Name:       text(node.ChildByFieldName("name"), src),
			LineNumber: startLine(node),
			EndLine:    endLine(node),
			Source:     text(node, src),
		})
	case "export_statement":
		if decl := node.ChildByFieldName("declaration"); decl != nil {
			e.extractStatement(decl, src, rec)
		}
	case "lexical_declaration", "variable_declaration":
		js := &javascriptExtractor{}
		js.extractStatement(node, src, rec)
	}
}
