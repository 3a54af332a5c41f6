// Package fragment implements the Fragment Serializer (spec.md §4.8): turns
// a typed Fragment tree into source text at the correct indent. Grounded in
// the teacher's core.Result / evaluator delegation pattern generalized into
// a render-by-kind dispatch table, and in the indentation bookkeeping the
// teacher's providers/python does for Python-specific AST shapes.
package fragment

import (
	"fmt"
	"strings"

	"github.com/oxhq/morfx/internal/model"
	"github.com/oxhq/morfx/internal/xerrors"
)

// indentUnit is the indent step; rendering currently targets indent-sensitive
// languages (Python) per spec.md §4.8 — brace-delimited languages would need
// their own rendering rules and are out of scope of this catalog.
const indentUnit = "    "

// leafKinds ban children entirely; a leaf fragment carrying Children is a
// structural-validation error.
var leafKinds = map[string]bool{
	"expression_statement": true,
	"assignment":           true,
	"return_statement":     true,
	"pass_statement":       true,
	"raise_statement":      true,
	"import_statement":     true,
	"comment":               true,
}

// Render validates then serializes f at indent level 0.
func Render(f *model.Fragment) (string, error) {
	if err := validate(f); err != nil {
		return "", err
	}
	return render(f, 0), nil
}

func validate(f *model.Fragment) error {
	if f.Kind == "" {
		return xerrors.New(xerrors.CodeParamValidation, "fragment missing kind")
	}
	if leafKinds[f.Kind] && len(f.Children) > 0 {
		return xerrors.New(xerrors.CodeParamValidation, "fragment kind %q is a leaf kind and cannot have children", f.Kind)
	}
	if err := requireProps(f); err != nil {
		return err
	}
	for i := range f.Children {
		if err := validate(&f.Children[i]); err != nil {
			return err
		}
	}
	return nil
}

// requiredProps lists, per kind, the named properties that must be
// non-empty for the kind to render meaningfully.
var requiredProps = map[string][]string{
	"function_definition":  {"name"},
	"class_definition":     {"name"},
	"if_statement":         {"condition"},
	"elif_clause":          {"condition"},
	"while_statement":      {"condition"},
	"for_statement":        {"target", "value"},
	"with_statement":       {"value"},
	"assignment":           {"target", "value"},
	"return_statement":     {},
	"expression_statement": {"value"},
	"raise_statement":      {"value"},
	"comment":               {"value"},
}

func requireProps(f *model.Fragment) error {
	for _, prop := range requiredProps[f.Kind] {
		if v, _ := f.Prop(prop); v == "" {
			return xerrors.New(xerrors.CodeParamValidation, "fragment kind %q missing required property %q", f.Kind, prop)
		}
	}
	return nil
}

func render(f *model.Fragment, depth int) string {
	indent := strings.Repeat(indentUnit, depth)
	switch f.Kind {
	case "function_definition":
		return indent + fmt.Sprintf("def %s(%s):\n%s", f.Name, propOr(f, "params", ""), renderBody(f.Children, depth+1))
	case "class_definition":
		bases := ""
		if b, _ := f.Prop("bases"); b != "" {
			bases = "(" + b + ")"
		}
		return indent + fmt.Sprintf("class %s%s:\n%s", f.Name, bases, renderBody(f.Children, depth+1))
	case "if_statement":
		return renderIf(f, depth)
	case "while_statement":
		return indent + fmt.Sprintf("while %s:\n%s", f.Condition, renderBody(f.Children, depth+1))
	case "for_statement":
		return indent + fmt.Sprintf("for %s in %s:\n%s", f.Target, f.Value, renderBody(f.Children, depth+1))
	case "with_statement":
		as := ""
		if f.Alias != "" {
			as = " as " + f.Alias
		}
		return indent + fmt.Sprintf("with %s%s:\n%s", f.Value, as, renderBody(f.Children, depth+1))
	case "try_statement":
		return renderTry(f, depth)
	case "assignment":
		return indent + fmt.Sprintf("%s = %s", f.Target, f.Value)
	case "return_statement":
		if f.Value == "" {
			return indent + "return"
		}
		return indent + "return " + f.Value
	case "expression_statement":
		return indent + f.Value
	case "raise_statement":
		raised := f.Value
		if f.ExceptType != "" {
			raised = f.ExceptType + "(" + f.Value + ")"
		}
		return indent + "raise " + raised
	case "pass_statement":
		return indent + "pass"
	case "comment":
		return indent + "# " + f.Value
	default:
		// Unknown kinds render as their raw value, if any, so a caller can
		// still express escape-hatch literal lines.
		if f.Value != "" {
			return indent + f.Value
		}
		return indent + "pass"
	}
}

// renderIf partitions children by kind into body, elif-clauses, and an
// else-clause, mirroring renderTry's except/else/finally partitioning.
func renderIf(f *model.Fragment, depth int) string {
	indent := strings.Repeat(indentUnit, depth)
	var body, elifs, elseClause []model.Fragment
	for _, c := range f.Children {
		switch c.Kind {
		case "elif_clause":
			elifs = append(elifs, c)
		case "else_clause":
			elseClause = append(elseClause, c)
		default:
			body = append(body, c)
		}
	}

	var out strings.Builder
	out.WriteString(indent + fmt.Sprintf("if %s:\n", f.Condition))
	out.WriteString(renderBody(body, depth+1))
	for _, e := range elifs {
		out.WriteString("\n" + indent + fmt.Sprintf("elif %s:\n", e.Condition))
		out.WriteString(renderBody(e.Children, depth+1))
	}
	for _, e := range elseClause {
		out.WriteString("\n" + indent + "else:\n")
		out.WriteString(renderBody(e.Children, depth+1))
	}
	return out.String()
}

// renderTry partitions children by kind into body, except-clauses,
// else-clause, and finally-clause, each rendered at the outer indent.
func renderTry(f *model.Fragment, depth int) string {
	indent := strings.Repeat(indentUnit, depth)
	var body, excepts, elseClause, finallyClause []model.Fragment
	for _, c := range f.Children {
		switch c.Kind {
		case "except_clause":
			excepts = append(excepts, c)
		case "else_clause":
			elseClause = append(elseClause, c)
		case "finally_clause":
			finallyClause = append(finallyClause, c)
		default:
			body = append(body, c)
		}
	}

	var out strings.Builder
	out.WriteString(indent + "try:\n")
	out.WriteString(renderBody(body, depth+1))
	for _, ex := range excepts {
		as := ""
		if ex.Alias != "" {
			as = " as " + ex.Alias
		}
		exType := ex.ExceptType
		if exType == "" {
			exType = "Exception"
		}
		out.WriteString("\n" + indent + fmt.Sprintf("except %s%s:\n", exType, as))
		out.WriteString(renderBody(ex.Children, depth+1))
	}
	for _, e := range elseClause {
		out.WriteString("\n" + indent + "else:\n")
		out.WriteString(renderBody(e.Children, depth+1))
	}
	for _, fc := range finallyClause {
		out.WriteString("\n" + indent + "finally:\n")
		out.WriteString(renderBody(fc.Children, depth+1))
	}
	return out.String()
}

func renderBody(children []model.Fragment, depth int) string {
	if len(children) == 0 {
		return strings.Repeat(indentUnit, depth) + "pass"
	}
	lines := make([]string, len(children))
	for i := range children {
		lines[i] = render(&children[i], depth)
	}
	return strings.Join(lines, "\n")
}

func propOr(f *model.Fragment, name, def string) string {
	if v, ok := f.Prop(name); ok && v != "" {
		return v
	}
	return def
}
