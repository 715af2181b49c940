package graph

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Pavel401/bugviper/internal/models"
	"github.com/Pavel401/bugviper/internal/treesitter"
)

// selfKeywords are language receiver keywords that pin a call to the caller's
// own file when they head an unchained dotted call.
var selfKeywords = map[string]bool{
	"self": true, "this": true, "super": true, "super()": true, "cls": true, "@": true,
}

// builtinNames are callee names that never resolve to repo symbols; calls to
// them are dropped before resolution.
var builtinNames = map[string]map[string]bool{
	"python": {
		"print": true, "len": true, "range": true, "str": true, "int": true,
		"float": true, "bool": true, "list": true, "dict": true, "set": true,
		"tuple": true, "isinstance": true, "enumerate": true, "zip": true,
		"open": true, "getattr": true, "setattr": true, "hasattr": true,
		"super": true, "type": true, "repr": true, "sorted": true, "min": true,
		"max": true, "sum": true, "abs": true, "any": true, "all": true,
	},
	"javascript": {
		"require": true, "parseInt": true, "parseFloat": true, "String": true,
		"Number": true, "Boolean": true, "Array": true, "Object": true,
		"Promise": true, "Error": true, "JSON": true, "setTimeout": true,
		"setInterval": true, "fetch": true,
	},
	"go": {
		"make": true, "len": true, "cap": true, "append": true, "new": true,
		"copy": true, "delete": true, "panic": true, "recover": true,
		"print": true, "println": true, "close": true,
	},
}

func init() {
	builtinNames["typescript"] = builtinNames["javascript"]
}

// CallEdge is a fully positioned CALLS relationship ready for batch upsert.
type CallEdge struct {
	CallerName string `json:"caller_name"` // empty for module-level call sites
	CallerKind models.CallerKind
	CallerLine int      `json:"caller_line"`
	CallerPath string   `json:"caller_path"`
	CalleeName string   `json:"callee_name"`
	CalleePath string   `json:"callee_path"` // empty when unresolved
	LineNumber int      `json:"line_number"`
	Args       []string `json:"args"`
	FullCall   string   `json:"full_call_name"`
	Resolved   bool     `json:"is_resolved"`
}

// InheritEdge is a resolved INHERITS (or IMPLEMENTS, when the parent turns out
// to be an Interface) relationship.
type InheritEdge struct {
	ChildName  string `json:"child_name"`
	ChildPath  string `json:"child_path"`
	ParentName string `json:"parent_name"`
	ParentPath string `json:"parent_path"`
}

// Resolver maps names from parsed call sites and base-class lists to defining
// files, using the prioritized fallback chain shared by CALLS and INHERITS.
type Resolver struct {
	imports treesitter.ImportsMap
	logger  *logrus.Logger
}

// NewResolver builds a resolver over a job's imports map.
func NewResolver(imports treesitter.ImportsMap, logger *logrus.Logger) *Resolver {
	return &Resolver{imports: imports, logger: logger}
}

// localNames collects the symbol names defined in the record's own file.
func localNames(rec *models.FileRecord) map[string]bool {
	names := make(map[string]bool)
	for _, fn := range rec.Functions {
		names[fn.Name] = true
	}
	for _, lists := range [][]models.ClassDef{rec.Classes, rec.Traits, rec.Interfaces, rec.Structs} {
		for _, c := range lists {
			names[c.Name] = true
		}
	}
	return names
}

// localImports maps a file's local import names (alias, imported symbol, or
// module tail) to the module path the binding came from. The module path is
// what disambiguates candidates: the defining file's repo path contains it.
func localImports(rec *models.FileRecord) map[string]string {
	out := make(map[string]string)
	for _, imp := range rec.Imports {
		name := imp.Alias
		if name == "" {
			if imp.ImportedName != "" {
				name = imp.ImportedName
			} else {
				name = simpleTail(imp.Module)
			}
		}
		if name != "" && name != "*" {
			out[name] = imp.Module
		}
	}
	return out
}

// importNeedle converts an import module path into a repo-path fragment.
func importNeedle(module string) string {
	if strings.HasPrefix(module, "./") || strings.HasPrefix(module, "../") {
		return strings.TrimLeft(module, "./")
	}
	return strings.ReplaceAll(module, ".", "/")
}

// ResolveCalls applies the fallback chain to every call site in the record.
// A miss is not an error: the edge comes back unresolved and is attached to an
// UnresolvedSymbol placeholder at write time.
func (r *Resolver) ResolveCalls(rec *models.FileRecord) []CallEdge {
	locals := localNames(rec)
	imports := localImports(rec)
	builtins := builtinNames[rec.Language]

	edges := make([]CallEdge, 0, len(rec.FunctionCalls))
	for _, call := range rec.FunctionCalls {
		if builtins[call.Name] {
			continue
		}

		full := call.FullName
		if full == "" {
			full = call.Name
		}
		base := ""
		if i := strings.Index(full, "."); i >= 0 {
			base = full[:i]
		}
		chained := strings.Count(full, ".") > 1

		lookup := call.Name
		if base != "" && !(chained && selfKeywords[base]) {
			lookup = base
		}

		resolved := ""
		switch {
		case base != "" && selfKeywords[base] && !chained:
			resolved = rec.Path
		case locals[lookup]:
			resolved = rec.Path
		case call.InferredObjType != "" && len(r.imports[call.InferredObjType]) > 0:
			resolved = r.imports[call.InferredObjType][0]
		default:
			resolved = r.resolveViaImportsMap(lookup, imports)
		}

		// Last chance on the plain callee name before giving up
		if resolved == "" && lookup != call.Name {
			if locals[call.Name] {
				resolved = rec.Path
			} else {
				resolved = r.resolveViaImportsMap(call.Name, imports)
			}
		}

		edge := CallEdge{
			CallerPath: rec.Path,
			CalleeName: call.Name,
			CalleePath: resolved,
			LineNumber: call.LineNumber,
			Args:       call.Args,
			FullCall:   full,
			Resolved:   resolved != "",
		}
		if call.Context.Kind != models.CallerModule && call.Context.Name != "" {
			edge.CallerName = call.Context.Name
			edge.CallerKind = call.Context.Kind
			edge.CallerLine = call.Context.Line
		}
		edges = append(edges, edge)
	}
	return edges
}

// resolveViaImportsMap implements steps 4 and 5 of the chain: unique name wins
// outright; ambiguity is settled by what the file actually imported.
func (r *Resolver) resolveViaImportsMap(lookup string, fileImports map[string]string) string {
	candidates := r.imports[lookup]
	switch len(candidates) {
	case 0:
		return ""
	case 1:
		return candidates[0]
	}

	module, ok := fileImports[lookup]
	if !ok {
		return ""
	}
	needle := importNeedle(module)
	for _, candidate := range candidates {
		if strings.Contains(candidate, needle) {
			return candidate
		}
	}
	return ""
}

// ResolveInheritance resolves each class's base list. Same-file parents win
// over cross-file candidates; unresolvable bases are dropped (no placeholder
// nodes for inheritance).
func (r *Resolver) ResolveInheritance(rec *models.FileRecord) []InheritEdge {
	locals := localNames(rec)
	imports := localImports(rec)

	var edges []InheritEdge
	classLists := [][]models.ClassDef{rec.Classes, rec.Structs, rec.Interfaces, rec.Traits}
	for _, list := range classLists {
		for _, cls := range list {
			for _, base := range cls.Bases {
				if base == "object" {
					continue
				}
				target := simpleTail(base)

				resolved := ""
				if i := strings.Index(base, "."); i >= 0 {
					// Dotted base: resolve through the import that binds its head
					head := base[:i]
					if full, ok := imports[head]; ok {
						resolved = matchByImport(r.imports[target], full)
					}
				} else {
					switch {
					case locals[base]:
						resolved = rec.Path
					default:
						if full, ok := imports[base]; ok {
							resolved = matchByImport(r.imports[target], full)
						}
						if resolved == "" {
							if candidates := r.imports[base]; len(candidates) == 1 {
								resolved = candidates[0]
							}
						}
					}
				}

				if resolved == "" {
					r.logger.WithFields(logrus.Fields{
						"class": cls.Name, "base": base, "file": rec.Path,
					}).Debug("could not resolve base class")
					continue
				}
				edges = append(edges, InheritEdge{
					ChildName:  cls.Name,
					ChildPath:  rec.Path,
					ParentName: target,
					ParentPath: resolved,
				})
			}
		}
	}
	return edges
}

func matchByImport(candidates []string, module string) string {
	needle := importNeedle(module)
	for _, c := range candidates {
		if strings.Contains(c, needle) {
			return c
		}
	}
	return ""
}

func simpleTail(dotted string) string {
	if i := strings.LastIndex(dotted, "."); i >= 0 {
		return dotted[i+1:]
	}
	return dotted
}
