package models

// FileRecord is the language-neutral result of parsing one source file.
// Each language extractor populates the subset of fields its grammar supports;
// the graph writer consumes the record without knowing which language produced it.
type FileRecord struct {
	Path       string `json:"path"`          // repo-relative
	Language   string `json:"language"`      // "python", "javascript", ...
	LinesCount int    `json:"lines_count"`
	SourceCode string `json:"source_code"` // empty when the file exceeds MaxSourceBytes
	Oversized  bool   `json:"oversized"`   // set when SourceCode was dropped for size

	Imports    []ImportDef   `json:"imports,omitempty"`
	Functions  []FunctionDef `json:"functions,omitempty"`
	Classes    []ClassDef    `json:"classes,omitempty"`
	Variables  []VariableDef `json:"variables,omitempty"`
	Interfaces []ClassDef    `json:"interfaces,omitempty"`
	Structs    []ClassDef    `json:"structs,omitempty"`
	Enums      []ClassDef    `json:"enums,omitempty"`
	Unions     []ClassDef    `json:"unions,omitempty"`
	Traits     []ClassDef    `json:"traits,omitempty"`
	Macros     []FunctionDef `json:"macros,omitempty"`
	Modules    []ModuleDef   `json:"modules,omitempty"`

	// ModuleInclusions records mixin-style statements (e.g. Ruby `include Foo`).
	ModuleInclusions []ModuleInclusion `json:"module_inclusions,omitempty"`

	FunctionCalls []CallSite `json:"function_calls,omitempty"`
}

// ImportDef is one import statement in a file.
type ImportDef struct {
	Module       string `json:"module"`
	Alias        string `json:"alias,omitempty"`
	ImportedName string `json:"imported_name,omitempty"` // symbol pulled out by a from-import
	FullImport   string `json:"full_import,omitempty"`   // dotted path as written in source
	LineNumber   int    `json:"line_number"`
	IsFromImport bool   `json:"is_from_import"`
}

// FunctionDef describes a function or method definition.
type FunctionDef struct {
	Name                 string   `json:"name"`
	LineNumber           int      `json:"line_number"`
	EndLine              int      `json:"end_line"`
	Args                 []string `json:"args,omitempty"`
	Decorators           []string `json:"decorators,omitempty"`
	Docstring            string   `json:"docstring,omitempty"`
	Source               string   `json:"source,omitempty"`
	ClassContext         string   `json:"class_context,omitempty"` // enclosing class name for methods
	FunctionContext      string   `json:"function_context,omitempty"`
	Visibility           string   `json:"visibility,omitempty"`
	CyclomaticComplexity int      `json:"cyclomatic_complexity,omitempty"`
}

// ClassDef describes a class-like definition (class, interface, struct, trait...).
type ClassDef struct {
	Name       string        `json:"name"`
	LineNumber int           `json:"line_number"`
	EndLine    int           `json:"end_line"`
	Bases      []string      `json:"bases,omitempty"`
	Decorators []string      `json:"decorators,omitempty"`
	Docstring  string        `json:"docstring,omitempty"`
	Source     string        `json:"source,omitempty"`
	Methods    []FunctionDef `json:"methods,omitempty"`
}

// VariableDef describes a module-level variable assignment.
type VariableDef struct {
	Name       string `json:"name"`
	LineNumber int    `json:"line_number"`
	EndLine    int    `json:"end_line"`
	Source     string `json:"source,omitempty"`
}

// ModuleDef names an imported or declared module (package) that lives outside
// the repository's file tree.
type ModuleDef struct {
	Name string `json:"name"`
}

// ModuleInclusion links a class to a mixed-in module.
type ModuleInclusion struct {
	Class  string `json:"class"`
	Module string `json:"module"`
}

// CallerKind identifies the syntactic container of a call site.
type CallerKind string

const (
	CallerFunction CallerKind = "function"
	CallerClass    CallerKind = "class"
	CallerModule   CallerKind = "module" // top-level statement, no enclosing symbol
)

// CallerContext anchors a call site to the symbol it occurs in.
type CallerContext struct {
	Name string     `json:"name"`
	Kind CallerKind `json:"kind"`
	Line int        `json:"line"`
}

// CallSite is one function or constructor call extracted from a file body.
type CallSite struct {
	Name            string        `json:"name"`      // simple callee name
	FullName        string        `json:"full_name"` // dotted path as written ("self.db.run")
	LineNumber      int           `json:"line_number"`
	Args            []string      `json:"args,omitempty"`
	Context         CallerContext `json:"context"`
	InferredObjType string        `json:"inferred_obj_type,omitempty"`
}

// ParseFailure reports a file the extractor could not parse. It is recorded in
// the job's error list; no partial FileRecord is written for such a file.
type ParseFailure struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}
