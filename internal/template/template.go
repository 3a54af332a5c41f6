// Package template implements the Template Catalog (spec.md §4.7): a fixed
// registry of named edit patterns, each declaring its parameter list, input
// and output kinds, and a handler that lowers it to one or more primitive
// calls. Grounded in the teacher's provider-delegation pattern
// (internal/evaluator.UniversalEvaluator + provider.LanguageProvider): here
// the "provider" for each template is its own handler func, injected into a
// single dispatch table rather than duplicated per language.
package template

import (
	"context"
	"fmt"
	"strings"

	"github.com/oxhq/morfx/internal/locator"
	"github.com/oxhq/morfx/internal/model"
	"github.com/oxhq/morfx/internal/mutate"
	"github.com/oxhq/morfx/internal/xerrors"
)

// Param describes one template parameter.
type Param struct {
	Name     string
	Kind     string // "syntactic" or "semantic"
	Required bool
	Default  string
}

// Handler lowers a validated set of params (plus the step's target locator)
// to primitive calls, returning the result of the last one.
type Handler func(ctx context.Context, target *model.Locator, params map[string]string) *model.ExecutionResult

// Template is one catalog entry.
type Template struct {
	Name        string
	Description string
	Params      []Param
	InputKind   string
	OutputKind  string
	Handler     Handler
}

var catalog = map[string]*Template{}

func register(t *Template) {
	catalog[t.Name] = t
}

// Lookup returns a catalog entry by name.
func Lookup(name string) (*Template, bool) {
	t, ok := catalog[name]
	return t, ok
}

// Names returns every registered template name.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for n := range catalog {
		names = append(names, n)
	}
	return names
}

// ValidateParams runs the template's syntactic precondition check: every
// required param must be present. Semantic validation (identifier-in-scope,
// importable, callable) only runs when the caller supplies a scope context,
// which this catalog does not currently model — see spec.md §4.7.
func ValidateParams(t *Template, params map[string]string) error {
	for _, p := range t.Params {
		if p.Required {
			if _, ok := params[p.Name]; !ok {
				return xerrors.New(xerrors.CodeParamValidation, "template %q: missing required param %q", t.Name, p.Name)
			}
		}
	}
	return nil
}

// Expand validates params and runs the template's handler against target.
func Expand(ctx context.Context, name string, target *model.Locator, params map[string]string) *model.ExecutionResult {
	t, ok := Lookup(name)
	if !ok {
		return &model.ExecutionResult{Success: false, Error: fmt.Sprintf("unknown template %q", name)}
	}
	if err := ValidateParams(t, params); err != nil {
		return &model.ExecutionResult{Success: false, Error: err.Error()}
	}
	return t.Handler(ctx, target, params)
}

func withDefault(params map[string]string, name, def string) string {
	if v, ok := params[name]; ok {
		return v
	}
	return def
}

func init() {
	register(&Template{
		Name:        "guard_clause",
		Description: "Prepend `if cond: body` to a statement",
		Params: []Param{
			{Name: "condition", Kind: "semantic", Required: true},
			{Name: "guard_body", Kind: "syntactic", Required: true},
		},
		InputKind:  "statement",
		OutputKind: "statement",
		Handler: func(ctx context.Context, target *model.Locator, params map[string]string) *model.ExecutionResult {
			text := fmt.Sprintf("if %s:\n    %s", params["condition"], params["guard_body"])
			return mutate.InsertBeforeNode(ctx, target, text)
		},
	})

	register(&Template{
		Name:        "wrap_try_except",
		Description: "Wrap statement(s) in try/except",
		Params: []Param{
			{Name: "except_type", Kind: "syntactic", Default: "Exception"},
			{Name: "except_body", Kind: "syntactic", Default: "pass"},
			{Name: "alias", Kind: "syntactic"},
		},
		InputKind:  "statement",
		OutputKind: "try_statement",
		Handler: func(ctx context.Context, target *model.Locator, params map[string]string) *model.ExecutionResult {
			exceptType := withDefault(params, "except_type", "Exception")
			exceptBody := withDefault(params, "except_body", "pass")
			as := ""
			if alias, ok := params["alias"]; ok && alias != "" {
				as = " as " + alias
			}
			before := "try:"
			after := fmt.Sprintf("except %s%s:\n    %s", exceptType, as, exceptBody)
			return mutate.WrapNode(ctx, target, before, after, true)
		},
	})

	register(&Template{
		Name:        "add_parameter",
		Description: "Add a parameter to a function signature",
		Params: []Param{
			{Name: "param", Kind: "syntactic", Required: true},
		},
		InputKind:  "parameters",
		OutputKind: "parameters",
		Handler: func(ctx context.Context, target *model.Locator, params map[string]string) *model.ExecutionResult {
			// target locates the `parameters` field node, which is replaced
			// by `param` verbatim (see addParamText); nothing is appended
			// to the existing list.
			return mutate.ReplaceNode(ctx, target, addParamText(params["param"]), "")
		},
	})

	register(&Template{
		Name:        "replace_expression",
		Description: "Swap one expression for another",
		Params: []Param{
			{Name: "expression", Kind: "syntactic", Required: true},
		},
		InputKind:  "expression",
		OutputKind: "expression",
		Handler: func(ctx context.Context, target *model.Locator, params map[string]string) *model.ExecutionResult {
			return mutate.ReplaceNode(ctx, target, params["expression"], "")
		},
	})

	register(&Template{
		Name:        "extract_variable",
		Description: "Hoist an expression into a named binding",
		Params: []Param{
			{Name: "name", Kind: "syntactic", Required: true},
			{Name: "expression", Kind: "syntactic", Required: true},
			{Name: "statement_target", Kind: "semantic", Required: true},
		},
		InputKind:  "expression",
		OutputKind: "expression",
		Handler: func(ctx context.Context, target *model.Locator, params map[string]string) *model.ExecutionResult {
			name := params["name"]
			stmtTarget := &model.Locator{Kind: model.KindStatement, File: target.File, Name: params["statement_target"]}
			binding := fmt.Sprintf("%s = %s", name, params["expression"])
			if res := mutate.InsertBeforeNode(ctx, stmtTarget, binding); !res.Success {
				return res
			}
			return mutate.ReplaceNode(ctx, target, name, "")
		},
	})

	register(&Template{
		Name:        "add_import_and_use",
		Description: "Add a module-symbol import and a usage site",
		Params: []Param{
			{Name: "module", Kind: "syntactic", Required: true},
			{Name: "symbol", Kind: "syntactic", Required: true},
			{Name: "usage", Kind: "syntactic", Required: true},
		},
		InputKind:  "module",
		OutputKind: "expression",
		Handler: func(ctx context.Context, target *model.Locator, params map[string]string) *model.ExecutionResult {
			importLoc := &model.Locator{Kind: model.KindImport, File: target.File, Index: intPtr(0)}
			importText := fmt.Sprintf("from %s import %s", params["module"], params["symbol"])
			res := mutate.InsertBeforeNode(ctx, importLoc, importText)
			if !res.Success {
				res = mutate.InsertBeforeNode(ctx, target, importText)
				if !res.Success {
					return res
				}
			}
			return mutate.ReplaceNode(ctx, target, params["usage"], "")
		},
	})

	register(&Template{
		Name:        "add_method",
		Description: "Insert a method into a class body",
		Params: []Param{
			{Name: "method_source", Kind: "syntactic", Required: true},
		},
		InputKind:  "class",
		OutputKind: "function",
		Handler: func(ctx context.Context, target *model.Locator, params map[string]string) *model.ExecutionResult {
			lastChild := &model.Locator{Kind: target.Kind, File: target.File, Name: target.Name, Field: "body", NthChild: intPtr(-1)}
			return mutate.InsertAfterNode(ctx, lastChild, params["method_source"])
		},
	})

	register(&Template{
		Name:        "modify_condition",
		Description: "Replace the condition of an if/while/for",
		Params: []Param{
			{Name: "condition", Kind: "semantic", Required: true},
		},
		InputKind:  "expression",
		OutputKind: "expression",
		Handler: func(ctx context.Context, target *model.Locator, params map[string]string) *model.ExecutionResult {
			condLoc := &model.Locator{Kind: target.Kind, File: target.File, Name: target.Name, Field: "condition"}
			return mutate.ReplaceNode(ctx, condLoc, params["condition"], "")
		},
	})

	register(&Template{
		Name:        "add_conditional_branch",
		Description: "Append elif/else to an if statement",
		Params: []Param{
			{Name: "branch_kind", Kind: "syntactic", Default: "else"},
			{Name: "condition", Kind: "semantic"},
			{Name: "body", Kind: "syntactic", Required: true},
		},
		InputKind:  "statement",
		OutputKind: "statement",
		Handler: func(ctx context.Context, target *model.Locator, params map[string]string) *model.ExecutionResult {
			kind := withDefault(params, "branch_kind", "else")
			var header string
			if kind == "elif" {
				header = fmt.Sprintf("elif %s:", params["condition"])
			} else {
				header = "else:"
			}
			text := fmt.Sprintf("%s\n    %s", header, params["body"])
			return mutate.InsertAfterNode(ctx, target, text)
		},
	})

	register(&Template{
		Name:        "replace_function_body",
		Description: "Swap a function body for a fragment",
		Params: []Param{
			{Name: "body_source", Kind: "syntactic", Required: true},
		},
		InputKind:  "statement",
		OutputKind: "statement",
		Handler: func(ctx context.Context, target *model.Locator, params map[string]string) *model.ExecutionResult {
			bodyLoc := &model.Locator{Kind: target.Kind, File: target.File, Name: target.Name, Field: "body"}
			return mutate.ReplaceNode(ctx, bodyLoc, params["body_source"], "")
		},
	})

	register(&Template{
		Name:        "wrap_context_manager",
		Description: "Wrap in a `with` block",
		Params: []Param{
			{Name: "context_expr", Kind: "semantic", Required: true},
			{Name: "alias", Kind: "syntactic"},
		},
		InputKind:  "statement",
		OutputKind: "with_statement",
		Handler: func(ctx context.Context, target *model.Locator, params map[string]string) *model.ExecutionResult {
			as := ""
			if alias, ok := params["alias"]; ok && alias != "" {
				as = " as " + alias
			}
			before := fmt.Sprintf("with %s%s:", params["context_expr"], as)
			return mutate.WrapNode(ctx, target, before, "", true)
		},
	})

	register(&Template{
		Name:        "add_decorator",
		Description: "Prepend `@dec` above a definition",
		Params: []Param{
			{Name: "decorator", Kind: "syntactic", Required: true},
		},
		InputKind:  "function",
		OutputKind: "function",
		Handler: func(ctx context.Context, target *model.Locator, params map[string]string) *model.ExecutionResult {
			dec := params["decorator"]
			if !strings.HasPrefix(dec, "@") {
				dec = "@" + dec
			}
			return mutate.InsertBeforeNode(ctx, target, dec)
		},
	})

	register(&Template{
		Name:        "inline_variable",
		Description: "Substitute a variable with its value and delete the assignment",
		Params: []Param{
			{Name: "variable_name", Kind: "syntactic", Required: true},
			{Name: "value", Kind: "semantic", Required: true},
		},
		InputKind:  "statement",
		OutputKind: "expression",
		Handler: func(ctx context.Context, target *model.Locator, params map[string]string) *model.ExecutionResult {
			// Delete the binding first so its own LHS identifier isn't among
			// the usage sites ReplaceAllMatching rewrites next.
			if res := mutate.DeleteNode(ctx, target); !res.Success {
				return res
			}
			uses := &model.Locator{Kind: model.KindIdentifier, File: target.File, Name: params["variable_name"]}
			return mutate.ReplaceAllMatching(ctx, uses, params["value"], "not_in_string_or_comment")
		},
	})

	register(&Template{
		Name:        "change_return_value",
		Description: "Swap the expression in a return statement",
		Params: []Param{
			{Name: "expression", Kind: "syntactic", Required: true},
		},
		InputKind:  "expression",
		OutputKind: "expression",
		Handler: func(ctx context.Context, target *model.Locator, params map[string]string) *model.ExecutionResult {
			return mutate.ReplaceNode(ctx, target, params["expression"], "")
		},
	})

	register(&Template{
		Name:        "add_class_attribute",
		Description: "Insert a class-level binding at the start of a class body, after a docstring if present",
		Params: []Param{
			{Name: "attribute_source", Kind: "syntactic", Required: true},
		},
		InputKind:  "class",
		OutputKind: "statement",
		Handler: func(ctx context.Context, target *model.Locator, params map[string]string) *model.ExecutionResult {
			firstChild := &model.Locator{Kind: target.Kind, File: target.File, Name: target.Name, Field: "body", NthChild: intPtr(0)}
			// A leading docstring stays first: insert after it instead.
			if res, err := locator.Resolve(ctx, firstChild, ""); err == nil {
				docstring := len(res.Nodes) == 1 && res.Nodes[0].Type() == "expression_statement" &&
					res.Nodes[0].NamedChildCount() == 1 && res.Nodes[0].NamedChild(0).Type() == "string"
				res.Close()
				if docstring {
					return mutate.InsertAfterNode(ctx, firstChild, params["attribute_source"])
				}
			}
			return mutate.InsertBeforeNode(ctx, firstChild, params["attribute_source"])
		},
	})
}

func intPtr(i int) *int { return &i }

// addParamText is a best-effort textual splice for add_parameter: callers
// supply the full new parameter-list text as `param` (e.g. "self, x, y=1"),
// since signature rewriting from a bare name alone is ambiguous across
// languages with positional/keyword/variadic parameter syntax.
func addParamText(param string) string {
	return param
}
