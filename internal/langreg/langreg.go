// Package langreg is the Language Registry (spec.md §4.1): the single
// source of truth mapping file extensions to languages and normalized
// kinds to concrete tree-sitter node types. It is a lazily-initialized,
// read-only table populated once at process start — the systems-language
// rendering of the teacher's module-level provider registry (see
// internal/registry/registry.go), generalized from a pluggable-provider
// design to a plain data table since the core here has no plugin loader.
package langreg

import (
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/oxhq/morfx/internal/model"
)

// Language is one of the supported grammars: ten languages, with TypeScript
// split into its .ts and .tsx grammars (eleven values in all).
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	TSX        Language = "tsx"
	Java       Language = "java"
	Go         Language = "go"
	Rust       Language = "rust"
	Ruby       Language = "ruby"
	PHP        Language = "php"
	C          Language = "c"
	CPP        Language = "cpp"
)

var extensionTable = map[string]Language{
	".py":   Python,
	".js":   JavaScript,
	".jsx":  JavaScript,
	".ts":   TypeScript,
	".tsx":  TSX,
	".java": Java,
	".go":   Go,
	".rs":   Rust,
	".rb":   Ruby,
	".php":  PHP,
	".c":    C,
	".h":    C,
	".cpp":  CPP,
	".cxx":  CPP,
	".cc":   CPP,
	".hpp":  CPP,
	".hxx":  CPP,
}

// grammarLoaders defers grammar construction until first use: loading all
// eleven tree-sitter grammars eagerly would be wasted work for a single-file
// call, and spec.md §9 calls for a "lazily-initialized read-only registry".
var grammarLoaders = map[Language]func() *sitter.Language{
	Python:     python.GetLanguage,
	JavaScript: javascript.GetLanguage,
	TypeScript: typescript.GetLanguage,
	TSX:        tsx.GetLanguage,
	Java:       java.GetLanguage,
	Go:         golang.GetLanguage,
	Rust:       rust.GetLanguage,
	Ruby:       ruby.GetLanguage,
	PHP:        php.GetLanguage,
	C:          c.GetLanguage,
	CPP:        cpp.GetLanguage,
}

var (
	grammarMu    sync.Mutex
	grammarCache = make(map[Language]*sitter.Language)
)

// DetectLanguage maps a file path's extension to a supported language.
// Returns ("", false) for unsupported extensions.
func DetectLanguage(path string) (Language, bool) {
	ext := extOf(path)
	lang, ok := extensionTable[ext]
	return lang, ok
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return ""
		}
		if path[i] == '.' {
			return path[i:]
		}
	}
	return ""
}

// SitterLanguage returns the tree-sitter grammar for lang, loading it on
// first use and caching it thereafter.
func SitterLanguage(lang Language) (*sitter.Language, bool) {
	loader, ok := grammarLoaders[lang]
	if !ok {
		return nil, false
	}
	grammarMu.Lock()
	defer grammarMu.Unlock()
	if g, cached := grammarCache[lang]; cached {
		return g, true
	}
	g := loader()
	grammarCache[lang] = g
	return g, true
}

// nodeTypes maps normalized kind -> concrete tree-sitter node type names,
// per language. An absent language entry, or an explicit empty slice,
// means the kind is not representable in that language (e.g. class in Go
// or C) and resolution must return empty rather than guess.
var nodeTypes = map[Language]map[model.NormalizedKind][]string{
	Python: {
		model.KindFunction:  {"function_definition"},
		model.KindClass:     {"class_definition"},
		model.KindMethod:    {"function_definition"},
		model.KindImport:    {"import_statement", "import_from_statement"},
		model.KindStatement: {"if_statement", "for_statement", "while_statement", "try_statement", "with_statement", "return_statement", "expression_statement", "assignment"},
		model.KindIdentifier: {"identifier"},
	},
	JavaScript: {
		model.KindFunction:  {"function_declaration", "function", "arrow_function"},
		model.KindClass:     {"class_declaration"},
		model.KindMethod:    {"method_definition"},
		model.KindImport:    {"import_statement"},
		model.KindStatement: {"if_statement", "for_statement", "for_in_statement", "while_statement", "try_statement", "return_statement", "expression_statement"},
		model.KindIdentifier: {"identifier"},
	},
	TypeScript: {
		model.KindFunction:  {"function_declaration", "function", "arrow_function"},
		model.KindClass:     {"class_declaration"},
		model.KindMethod:    {"method_definition", "method_signature"},
		model.KindImport:    {"import_statement"},
		model.KindInterface: {"interface_declaration"},
		model.KindEnum:      {"enum_declaration"},
		model.KindStatement: {"if_statement", "for_statement", "for_in_statement", "while_statement", "try_statement", "return_statement", "expression_statement"},
		model.KindIdentifier: {"identifier"},
	},
	TSX: {
		model.KindFunction:  {"function_declaration", "function", "arrow_function"},
		model.KindClass:     {"class_declaration"},
		model.KindMethod:    {"method_definition"},
		model.KindImport:    {"import_statement"},
		model.KindInterface: {"interface_declaration"},
		model.KindEnum:      {"enum_declaration"},
		model.KindStatement: {"if_statement", "for_statement", "while_statement", "try_statement", "return_statement", "expression_statement"},
		model.KindIdentifier: {"identifier"},
	},
	Java: {
		model.KindFunction:  {"method_declaration"},
		model.KindClass:     {"class_declaration"},
		model.KindMethod:    {"method_declaration"},
		model.KindImport:    {"import_declaration"},
		model.KindInterface: {"interface_declaration"},
		model.KindEnum:      {"enum_declaration"},
		model.KindStatement: {"if_statement", "for_statement", "while_statement", "try_statement", "return_statement", "expression_statement"},
		model.KindIdentifier: {"identifier"},
	},
	Go: {
		model.KindFunction:  {"function_declaration", "method_declaration"},
		model.KindClass:     {}, // not representable; see spec.md §4.1
		model.KindMethod:    {"method_declaration"},
		model.KindImport:    {"import_spec", "import_declaration"},
		model.KindStatement: {"if_statement", "for_statement", "return_statement", "expression_statement", "assignment_statement"},
		model.KindIdentifier: {"identifier"},
	},
	Rust: {
		model.KindFunction:  {"function_item"},
		model.KindClass:     {"struct_item"},
		model.KindMethod:    {"function_item"},
		model.KindImport:    {"use_declaration"},
		model.KindEnum:      {"enum_item"},
		model.KindStatement: {"if_expression", "for_expression", "while_expression", "return_expression", "expression_statement"},
		model.KindIdentifier: {"identifier"},
	},
	Ruby: {
		model.KindFunction:  {"method"},
		model.KindClass:     {"class"},
		model.KindMethod:    {"method"},
		model.KindImport:    {"call"}, // require/require_relative are plain calls
		model.KindStatement: {"if", "for", "while", "begin", "return"},
		model.KindIdentifier: {"identifier"},
	},
	PHP: {
		model.KindFunction:  {"function_definition"},
		model.KindClass:     {"class_declaration"},
		model.KindMethod:    {"method_declaration"},
		model.KindImport:    {"namespace_use_declaration"},
		model.KindInterface: {"interface_declaration"},
		model.KindEnum:      {"enum_declaration"},
		model.KindStatement: {"if_statement", "for_statement", "while_statement", "try_statement", "return_statement", "expression_statement"},
		model.KindIdentifier: {"variable_name"},
	},
	C: {
		model.KindFunction:  {"function_definition"},
		model.KindClass:     {}, // not representable
		model.KindImport:    {"preproc_include"},
		model.KindStatement: {"if_statement", "for_statement", "while_statement", "return_statement", "expression_statement"},
		model.KindIdentifier: {"identifier"},
	},
	CPP: {
		model.KindFunction:  {"function_definition"},
		model.KindClass:     {"class_specifier", "struct_specifier"},
		model.KindMethod:    {"function_definition"},
		model.KindImport:    {"preproc_include"},
		model.KindStatement: {"if_statement", "for_statement", "while_statement", "try_statement", "return_statement", "expression_statement"},
		model.KindIdentifier: {"identifier"},
	},
}

// NodeTypes is the canonical adapter from a normalized kind to the concrete
// tree-sitter type set for lang. An empty (possibly nil) slice means "not
// representable in this language".
func NodeTypes(lang Language, kind model.NormalizedKind) []string {
	table, ok := nodeTypes[lang]
	if !ok {
		return nil
	}
	return table[kind]
}

// lineKinds maps, per language, a tree-sitter node type to the normalized
// per-line construct tag the Graph Builder records.
var lineKinds = map[Language]map[string]string{
	Python:     {"if_statement": "if_statement", "for_statement": "for_statement", "while_statement": "while_statement", "try_statement": "try_statement", "with_statement": "with_statement"},
	JavaScript: {"if_statement": "if_statement", "for_statement": "for_statement", "for_in_statement": "for_statement", "while_statement": "while_statement", "try_statement": "try_statement"},
	TypeScript: {"if_statement": "if_statement", "for_statement": "for_statement", "for_in_statement": "for_statement", "while_statement": "while_statement", "try_statement": "try_statement"},
	TSX:        {"if_statement": "if_statement", "for_statement": "for_statement", "while_statement": "while_statement", "try_statement": "try_statement"},
	Java:       {"if_statement": "if_statement", "for_statement": "for_statement", "while_statement": "while_statement", "try_statement": "try_statement"},
	Go:         {"if_statement": "if_statement", "for_statement": "for_statement"},
	Rust:       {"if_expression": "if_statement", "for_expression": "for_statement", "while_expression": "while_statement"},
	Ruby:       {"if": "if_statement", "for": "for_statement", "while": "while_statement", "begin": "try_statement"},
	PHP:        {"if_statement": "if_statement", "for_statement": "for_statement", "while_statement": "while_statement", "try_statement": "try_statement"},
	C:          {"if_statement": "if_statement", "for_statement": "for_statement", "while_statement": "while_statement"},
	CPP:        {"if_statement": "if_statement", "for_statement": "for_statement", "while_statement": "while_statement", "try_statement": "try_statement"},
}

// LineKind classifies a tree-sitter node type into the normalized
// per-line construct tag, or ("", false) when the node type carries no
// interesting construct tag for the Graph Builder.
func LineKind(lang Language, nodeType string) (string, bool) {
	table, ok := lineKinds[lang]
	if !ok {
		return "", false
	}
	k, ok := table[nodeType]
	return k, ok
}

// symbolQueries is the S-expression tree-sitter query used by the Graph
// Builder to find symbol definitions. Each alternative tags a def capture
// with a classification suffix (".function", ".class", ".type") so the
// innermost parent capture can classify the match's kind per spec.md §4.3.
var symbolQueries = map[Language]string{
	Python: `
		(function_definition name: (identifier) @name) @def.function
		(class_definition name: (identifier) @name) @def.class
	`,
	JavaScript: `
		(function_declaration name: (identifier) @name) @def.function
		(class_declaration name: (identifier) @name) @def.class
		(method_definition name: (property_identifier) @name) @def.function
	`,
	TypeScript: `
		(function_declaration name: (identifier) @name) @def.function
		(class_declaration name: (identifier) @name) @def.class
		(method_definition name: (property_identifier) @name) @def.function
		(interface_declaration name: (type_identifier) @name) @def.type
	`,
	TSX: `
		(function_declaration name: (identifier) @name) @def.function
		(class_declaration name: (identifier) @name) @def.class
	`,
	Java: `
		(class_declaration name: (identifier) @name) @def.class
		(interface_declaration name: (identifier) @name) @def.type
		(method_declaration name: (identifier) @name) @def.function
	`,
	Go: `
		(function_declaration name: (identifier) @name) @def.function
		(method_declaration name: (field_identifier) @name) @def.function
		(type_spec name: (type_identifier) @name) @def.type
	`,
	Rust: `
		(function_item name: (identifier) @name) @def.function
		(struct_item name: (type_identifier) @name) @def.type
		(enum_item name: (type_identifier) @name) @def.type
	`,
	Ruby: `
		(method name: (identifier) @name) @def.function
		(class name: (constant) @name) @def.class
	`,
	PHP: `
		(function_definition name: (name) @name) @def.function
		(class_declaration name: (name) @name) @def.class
		(method_declaration name: (name) @name) @def.function
	`,
	C: `
		(function_definition declarator: (function_declarator declarator: (identifier) @name)) @def.function
	`,
	CPP: `
		(function_definition declarator: (function_declarator declarator: (identifier) @name)) @def.function
		(class_specifier name: (type_identifier) @name) @def.class
		(struct_specifier name: (type_identifier) @name) @def.class
	`,
}

// SymbolQuery returns the S-expression used to capture symbol definitions
// for lang, or ("", false) if the language has none registered.
func SymbolQuery(lang Language) (string, bool) {
	q, ok := symbolQueries[lang]
	return q, ok
}

// importQueries captures import-like statements so the Graph Builder can
// recover (module, symbol) pairs with a small per-language regex over the
// captured raw text (spec.md §4.3) rather than a fully structured query,
// since import syntax varies too widely across grammars to capture module
// and symbol as separate named fields uniformly.
var importQueries = map[Language]string{
	Python:     `(import_statement) @import (import_from_statement) @import`,
	JavaScript: `(import_statement) @import`,
	TypeScript: `(import_statement) @import`,
	TSX:        `(import_statement) @import`,
	Java:       `(import_declaration) @import`,
	Go:         `(import_spec) @import`,
	Rust:       `(use_declaration) @import`,
	Ruby:       `(call method: (identifier) @method arguments: (argument_list (string) @arg) (#match? @method "^(require|require_relative)$")) @import`,
	PHP:        `(namespace_use_declaration) @import`,
	C:          `(preproc_include) @import`,
	CPP:        `(preproc_include) @import`,
}

// ImportQuery returns the S-expression used to capture import statements
// for lang, or ("", false) if the language has none registered.
func ImportQuery(lang Language) (string, bool) {
	q, ok := importQueries[lang]
	return q, ok
}

// All returns every supported language, for callers that enumerate
// capability (e.g. the CLI's --help text).
func All() []Language {
	out := make([]Language, 0, len(grammarLoaders))
	for lang := range grammarLoaders {
		out = append(out, lang)
	}
	return out
}
