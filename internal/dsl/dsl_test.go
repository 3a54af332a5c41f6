package dsl

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oxhq/morfx/internal/model"
)

const twoFuncs = `package sample

func Add(a, b int) int {
	return a + b
}

func Sub(a, b int) int {
	return a - b
}
`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.go")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestNewRegistrySeedsBuiltinsAndDefined(t *testing.T) {
	r := NewRegistry(nil)
	for _, name := range []string{"add_method", "add_import", "add_class_attribute"} {
		if _, ok := r[name]; !ok {
			t.Errorf("expected builtin %q in registry", name)
		}
	}

	custom := model.ComposedOperator{Name: "add_method", Params: []string{"x"}}
	r2 := NewRegistry([]model.ComposedOperator{custom})
	if len(r2["add_method"].Params) != 1 {
		t.Error("caller-defined operator should take precedence over the builtin of the same name")
	}
}

func TestExecuteUnknownOperator(t *testing.T) {
	r := NewRegistry(nil)
	res := r.Execute(context.Background(), "does_not_exist", nil)
	if res.Success {
		t.Error("Execute should fail for an unregistered operator name")
	}
}

func TestExecuteAddMethodPrimitiveStep(t *testing.T) {
	path := writeFixture(t, twoFuncs)
	r := NewRegistry(nil)

	target := &model.Locator{File: path, Kind: model.KindFunction, Name: "Add"}
	res := r.Execute(context.Background(), "add_method", map[string]any{
		"class_target":  target,
		"method_source": "var AddCallCount int",
	})
	if !res.Success {
		t.Fatalf("Execute(add_method) failed: %s", res.Error)
	}

	out, _ := os.ReadFile(path)
	if !strings.Contains(string(out), "var AddCallCount int") {
		t.Errorf("expected inserted text, got:\n%s", out)
	}
}

func TestExecuteAddImportSubstitutesPartialString(t *testing.T) {
	path := writeFixture(t, twoFuncs)
	r := NewRegistry(nil)

	target := &model.Locator{File: path, Kind: model.KindFunction, Name: "Add"}
	res := r.Execute(context.Background(), "add_import", map[string]any{
		"file_target": target,
		"module":      "mymod",
		"symbol":      "helper",
	})
	if !res.Success {
		t.Fatalf("Execute(add_import) failed: %s", res.Error)
	}

	out, _ := os.ReadFile(path)
	if !strings.Contains(string(out), "from mymod import helper") {
		t.Errorf("expected substituted import text, got:\n%s", out)
	}
}

func TestRunStepConditionalDispatch(t *testing.T) {
	path := writeFixture(t, twoFuncs)
	r := NewRegistry(nil)
	target := &model.Locator{File: path, Kind: model.KindFunction, Name: "Add"}

	step := &model.ComposedStep{
		If: "$flag == yes",
		Then: &model.ComposedStep{
			Primitive: "insert_before_node",
			Params: map[string]any{
				"target": "$t",
				"text":   "// then branch",
			},
		},
		Else: &model.ComposedStep{
			Primitive: "insert_before_node",
			Params: map[string]any{
				"target": "$t",
				"text":   "// else branch",
			},
		},
	}
	vars := map[string]any{"flag": "yes", "t": target}
	res, err := r.runStep(context.Background(), step, vars)
	if err != nil {
		t.Fatalf("runStep returned error: %v", err)
	}
	if !res.Success {
		t.Fatalf("runStep then-branch failed: %s", res.Error)
	}

	out, _ := os.ReadFile(path)
	if !strings.Contains(string(out), "// then branch") {
		t.Errorf("expected then-branch text, got:\n%s", out)
	}
	if strings.Contains(string(out), "// else branch") {
		t.Error("else branch should not have run")
	}
}

func TestRunStepMissingShapeIsError(t *testing.T) {
	_, err := NewRegistry(nil).runStep(context.Background(), &model.ComposedStep{}, map[string]any{})
	if err == nil {
		t.Error("a step with none of primitive/if/op set should error")
	}
}

func TestRunPrimitiveMissingTarget(t *testing.T) {
	res := runPrimitive(context.Background(), "delete_node", map[string]any{})
	if res.Success {
		t.Error("runPrimitive should fail when target is missing")
	}
}

func TestRunPrimitiveUnknownName(t *testing.T) {
	target := &model.Locator{Kind: model.KindFunction, Name: "Add"}
	res := runPrimitive(context.Background(), "not_a_primitive", map[string]any{"target": target})
	if res.Success {
		t.Error("runPrimitive should fail for an unrecognized primitive name")
	}
}

func TestSubstituteValueWholeMatchPreservesType(t *testing.T) {
	loc := &model.Locator{Kind: model.KindFunction, Name: "Add"}
	vars := map[string]any{"target": loc}

	got := substituteValue("$target", vars)
	if got != any(loc) {
		t.Errorf("whole-string $var reference should return the bound value verbatim, got %#v", got)
	}
}

func TestSubstituteValuePartialMatchStringifies(t *testing.T) {
	vars := map[string]any{"name": "Add"}
	got := substituteValue("func $name here", vars)
	if got != "func Add here" {
		t.Errorf("substituteValue() = %v, want %q", got, "func Add here")
	}
}

func TestSubstituteUnknownVarLeftVerbatim(t *testing.T) {
	got := substitute("$missing stays", map[string]any{})
	if got != "$missing stays" {
		t.Errorf("substitute() = %q, want unresolved reference left in place", got)
	}
}

func TestSubstituteFieldAccess(t *testing.T) {
	vars := map[string]any{"obj": map[string]any{"field": "value"}}
	got := substitute("x = $obj.field", vars)
	if got != "x = value" {
		t.Errorf("substitute() = %q, want field access resolved", got)
	}
}

func TestSubstituteMapRecursesThroughNestedStructures(t *testing.T) {
	vars := map[string]any{"x": "resolved"}
	m := map[string]any{
		"top": "$x",
		"nested": map[string]any{
			"inner": "$x value",
		},
		"list": []any{"$x", "literal"},
	}
	out := substituteMap(m, vars).(map[string]any)
	if out["top"] != "resolved" {
		t.Errorf("top = %v", out["top"])
	}
	nested := out["nested"].(map[string]any)
	if nested["inner"] != "resolved value" {
		t.Errorf("nested.inner = %v", nested["inner"])
	}
	list := out["list"].([]any)
	if list[0] != "resolved" || list[1] != "literal" {
		t.Errorf("list = %v", list)
	}
}

func TestEvalIfVariants(t *testing.T) {
	tests := []struct {
		name string
		expr string
		vars map[string]any
		want bool
	}{
		{"truthy var", "$flag", map[string]any{"flag": "yes"}, true},
		{"not truthy var", "not $flag", map[string]any{"flag": "yes"}, false},
		{"equality true", "$a == $b", map[string]any{"a": "x", "b": "x"}, true},
		{"equality false", "$a == $b", map[string]any{"a": "x", "b": "y"}, false},
		{"inequality", "$a != $b", map[string]any{"a": "x", "b": "y"}, true},
		{"is None true", "$missing is None", map[string]any{}, true},
		{"is not None false", "$missing is not None", map[string]any{}, false},
		{"empty string falsy", "$empty", map[string]any{"empty": ""}, false},
		{"zero falsy", "$zero", map[string]any{"zero": "0"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evalIf(tt.expr, tt.vars)
			if err != nil {
				t.Fatalf("evalIf returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("evalIf(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}
