package fragment

import (
	"strings"
	"testing"

	"github.com/oxhq/morfx/internal/model"
)

func TestRenderFunctionDef(t *testing.T) {
	f := &model.Fragment{
		Kind: "function_definition",
		Name: "greet",
		Children: []model.Fragment{
			{Kind: "return_statement", Value: `"hello"`},
		},
	}
	got, err := Render(f)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	want := "def greet():\n    return \"hello\""
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRenderClassDefinitionRequiresName(t *testing.T) {
	if _, err := Render(&model.Fragment{Kind: "class_definition"}); err == nil {
		t.Error("class_definition missing name should fail validation")
	}

	f := &model.Fragment{
		Kind: "class_definition",
		Name: "Widget",
		Children: []model.Fragment{
			{Kind: "pass_statement"},
		},
	}
	got, err := Render(f)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	want := "class Widget:\n    pass"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRenderIfStatementWithEmptyBodyRendersPass(t *testing.T) {
	f := &model.Fragment{Kind: "if_statement", Condition: "x > 0"}
	got, err := Render(f)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if !strings.Contains(got, "if x > 0:") || !strings.HasSuffix(got, "pass") {
		t.Errorf("Render() = %q", got)
	}
}

func TestRenderIfElifElse(t *testing.T) {
	f := &model.Fragment{
		Kind:      "if_statement",
		Condition: "x > 0",
		Children: []model.Fragment{
			{Kind: "expression_statement", Value: "positive()"},
			{Kind: "elif_clause", Condition: "x < 0", Children: []model.Fragment{
				{Kind: "expression_statement", Value: "negative()"},
			}},
			{Kind: "else_clause", Children: []model.Fragment{
				{Kind: "expression_statement", Value: "zero()"},
			}},
		},
	}
	got, err := Render(f)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	want := "if x > 0:\n    positive()\nelif x < 0:\n    negative()\nelse:\n    zero()"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRenderElifClauseRequiresCondition(t *testing.T) {
	f := &model.Fragment{
		Kind:      "if_statement",
		Condition: "x > 0",
		Children: []model.Fragment{
			{Kind: "elif_clause"},
		},
	}
	if _, err := Render(f); err == nil {
		t.Error("elif_clause missing condition should fail validation")
	}
}

func TestRenderTryExceptFinally(t *testing.T) {
	f := &model.Fragment{
		Kind: "try_statement",
		Children: []model.Fragment{
			{Kind: "expression_statement", Value: "risky()"},
			{Kind: "except_clause", ExceptType: "ValueError", Alias: "e", Children: []model.Fragment{
				{Kind: "pass_statement"},
			}},
			{Kind: "finally_clause", Children: []model.Fragment{
				{Kind: "expression_statement", Value: "cleanup()"},
			}},
		},
	}
	got, err := Render(f)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	for _, want := range []string{"try:", "risky()", "except ValueError as e:", "finally:", "cleanup()"} {
		if !strings.Contains(got, want) {
			t.Errorf("Render() missing %q, got:\n%s", want, got)
		}
	}
}

func TestValidateMissingKind(t *testing.T) {
	_, err := Render(&model.Fragment{})
	if err == nil {
		t.Error("fragment with no kind should fail validation")
	}
}

func TestValidateMissingRequiredProperty(t *testing.T) {
	_, err := Render(&model.Fragment{Kind: "if_statement"})
	if err == nil {
		t.Error("if_statement missing condition should fail validation")
	}
}

func TestValidateLeafKindRejectsChildren(t *testing.T) {
	f := &model.Fragment{
		Kind:  "return_statement",
		Value: "x",
		Children: []model.Fragment{
			{Kind: "pass_statement"},
		},
	}
	if _, err := Render(f); err == nil {
		t.Error("a leaf kind with children should fail validation")
	}
}

func TestRenderUnknownKindFallsBackToValueOrPass(t *testing.T) {
	got, err := Render(&model.Fragment{Kind: "mystery_kind", Value: "literal text"})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if got != "literal text" {
		t.Errorf("Render() = %q, want literal text", got)
	}

	got, err = Render(&model.Fragment{Kind: "mystery_kind"})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if got != "pass" {
		t.Errorf("Render() = %q, want pass", got)
	}
}
