// Package dsl implements the DSL / Composition Layer (spec.md §4.10): a
// minimal expression language for composed operators, built from three step
// shapes (primitive invocation, conditional, nested operator call) with
// `$variable`/`$variable.field` substitution and a restricted `if` sandbox.
// Grounded in the teacher's mcp/tools.go dispatch-by-name pattern
// (translating a named tool call into a concrete Go call), generalized here
// into a small interpreter instead of a fixed tool table.
package dsl

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/oxhq/morfx/internal/model"
	"github.com/oxhq/morfx/internal/mutate"
	"github.com/oxhq/morfx/internal/xerrors"
)

// Registry holds named composed operators available to Execute, including
// the caller-supplied define_operators block and the built-ins below.
type Registry map[string]*model.ComposedOperator

// NewRegistry seeds a registry with the built-in composed operators
// (add_method, add_import, add_class_attribute) plus any caller-defined
// operators, caller-defined names taking precedence on collision.
func NewRegistry(defined []model.ComposedOperator) Registry {
	r := make(Registry, len(builtins)+len(defined))
	for name, op := range builtins {
		r[name] = op
	}
	for i := range defined {
		op := defined[i]
		r[op.Name] = &op
	}
	return r
}

// Execute runs the named operator with the given argument map, substituting
// $variable references through every step's params before dispatch.
func (r Registry) Execute(ctx context.Context, name string, args map[string]any) *model.ExecutionResult {
	op, ok := r[name]
	if !ok {
		return &model.ExecutionResult{Success: false, Error: fmt.Sprintf("unknown composed operator %q", name)}
	}
	vars := make(map[string]any, len(args))
	for k, v := range args {
		vars[k] = v
	}

	var last *model.ExecutionResult
	for i := range op.Steps {
		res, err := r.runStep(ctx, &op.Steps[i], vars)
		if err != nil {
			return &model.ExecutionResult{Success: false, Error: err.Error()}
		}
		if res != nil {
			last = res
			if !last.Success {
				return last // failure of any step aborts the composition
			}
		}
	}
	if last == nil {
		return &model.ExecutionResult{Success: true}
	}
	return last
}

func (r Registry) runStep(ctx context.Context, step *model.ComposedStep, vars map[string]any) (*model.ExecutionResult, error) {
	switch {
	case step.If != "":
		ok, err := evalIf(step.If, vars)
		if err != nil {
			return nil, err
		}
		if ok {
			if step.Then == nil {
				return nil, nil
			}
			return r.runStep(ctx, step.Then, vars)
		}
		if step.Else == nil {
			return nil, nil
		}
		return r.runStep(ctx, step.Else, vars)

	case step.Op != "":
		subArgs := substituteMap(step.Params, vars).(map[string]any)
		res := r.Execute(ctx, step.Op, subArgs)
		if step.Bind != "" {
			vars[step.Bind] = res.Result
		}
		return res, nil

	case step.Primitive != "":
		res := runPrimitive(ctx, step.Primitive, substituteMap(step.Params, vars).(map[string]any))
		if step.Bind != "" {
			vars[step.Bind] = res.Result
		}
		return res, nil
	}
	return nil, xerrors.New(xerrors.CodeParamValidation, "composed step has none of primitive/if/op set")
}

// runPrimitive dispatches a DSL primitive invocation to the matching
// internal/mutate function. params is expected to carry "target" (a
// *model.Locator, already substituted) plus operation-specific fields.
func runPrimitive(ctx context.Context, name string, params map[string]any) *model.ExecutionResult {
	target, _ := params["target"].(*model.Locator)
	if target == nil {
		return &model.ExecutionResult{Success: false, Error: fmt.Sprintf("primitive %q: missing target locator", name)}
	}
	switch name {
	case "replace_node":
		replacement, _ := params["replacement"].(string)
		expected, _ := params["expected_type"].(string)
		return mutate.ReplaceNode(ctx, target, replacement, expected)
	case "insert_before_node":
		text, _ := params["text"].(string)
		return mutate.InsertBeforeNode(ctx, target, text)
	case "insert_after_node":
		text, _ := params["text"].(string)
		return mutate.InsertAfterNode(ctx, target, text)
	case "delete_node":
		return mutate.DeleteNode(ctx, target)
	case "wrap_node":
		before, _ := params["before"].(string)
		after, _ := params["after"].(string)
		indentBody, _ := params["indent_body"].(bool)
		return mutate.WrapNode(ctx, target, before, after, indentBody)
	case "replace_all_matching":
		replacement, _ := params["replacement"].(string)
		filter, _ := params["filter"].(string)
		return mutate.ReplaceAllMatching(ctx, target, replacement, filter)
	}
	return &model.ExecutionResult{Success: false, Error: fmt.Sprintf("unknown primitive %q", name)}
}

// varRef matches $name or $name.field references inside a string.
var varRef = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)(\.[A-Za-z_][A-Za-z0-9_]*)?`)

// wholeVarRef matches a string that is *exactly* one $name or $name.field
// reference and nothing else, used to pass non-string bound values (e.g. a
// *model.Locator) through substitution without stringifying them.
var wholeVarRef = regexp.MustCompile(`^\$([A-Za-z_][A-Za-z0-9_]*)(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// substituteValue resolves a single string param that may reference a
// non-string bound value verbatim (whole-string match) or be interpolated
// textually (partial match, always stringified).
func substituteValue(s string, vars map[string]any) any {
	if m := wholeVarRef.FindStringSubmatch(s); m != nil {
		name, field := m[1], strings.TrimPrefix(m[2], ".")
		val, ok := vars[name]
		if !ok {
			return s
		}
		if field == "" {
			return val
		}
		if mm, ok := val.(map[string]any); ok {
			if fv, ok := mm[field]; ok {
				return fv
			}
		}
		return s
	}
	return substitute(s, vars)
}

// substitute replaces every $name/$name.field reference in s with its bound
// value's string form (or the named field of a map-shaped value).
func substitute(s string, vars map[string]any) string {
	return varRef.ReplaceAllStringFunc(s, func(match string) string {
		parts := varRef.FindStringSubmatch(match)
		name, field := parts[1], strings.TrimPrefix(parts[2], ".")
		val, ok := vars[name]
		if !ok {
			return match
		}
		if field != "" {
			if m, ok := val.(map[string]any); ok {
				if fv, ok := m[field]; ok {
					return fmt.Sprint(fv)
				}
			}
			return match
		}
		return fmt.Sprint(val)
	})
}

// substituteAny recurses through strings, maps, and slices, substituting
// variable references in every string leaf.
func substituteAny(v any, vars map[string]any) any {
	switch val := v.(type) {
	case string:
		return substituteValue(val, vars)
	case map[string]any:
		return substituteMap(val, vars)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = substituteAny(item, vars)
		}
		return out
	default:
		return v
	}
}

func substituteMap(m map[string]any, vars map[string]any) any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = substituteAny(v, vars)
	}
	return out
}

// evalIf evaluates a restricted boolean expression: `var`, `not var`,
// `var == literal`, `var != literal`, `var is None`, `var is not None`. No
// builtins, no arbitrary function calls, no attribute chains beyond what
// substitute() already resolved.
func evalIf(expr string, vars map[string]any) (bool, error) {
	expr = strings.TrimSpace(substitute(expr, vars))

	if rest, ok := strings.CutPrefix(expr, "not "); ok {
		v, err := evalIf(strings.TrimSpace(rest), vars)
		return !v, err
	}
	// An operand that is still a whole $name reference after substitution is
	// an unbound variable, and counts as None like an empty one.
	if lhs, ok := strings.CutSuffix(expr, " is not None"); ok {
		lhs = strings.TrimSpace(lhs)
		return lhs != "" && !wholeVarRef.MatchString(lhs), nil
	}
	if lhs, ok := strings.CutSuffix(expr, " is None"); ok {
		lhs = strings.TrimSpace(lhs)
		return lhs == "" || wholeVarRef.MatchString(lhs), nil
	}
	if lhs, rhs, ok := strings.Cut(expr, "=="); ok {
		return strings.TrimSpace(lhs) == strings.TrimSpace(rhs), nil
	}
	if lhs, rhs, ok := strings.Cut(expr, "!="); ok {
		return strings.TrimSpace(lhs) != strings.TrimSpace(rhs), nil
	}
	if expr == "" || expr == "False" || expr == "false" || expr == "0" {
		return false, nil
	}
	if _, err := strconv.ParseFloat(expr, 64); err == nil {
		return expr != "0", nil
	}
	return true, nil
}
