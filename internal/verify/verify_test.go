package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/oxhq/morfx/internal/model"
)

const sampleGo = `package sample

func Add(a, b int) int {
	return a + b
}
`

func writeSample(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.go")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestVerifyPlanMissingTarget(t *testing.T) {
	p := &model.Plan{Steps: []model.Step{{Op: "delete_node"}}}
	result := VerifyPlan(context.Background(), p, nil)
	if result.Passed {
		t.Error("plan with a surgery step missing its target should not pass")
	}
}

func TestVerifyPlanLocatorMiss(t *testing.T) {
	path := writeSample(t, sampleGo)
	p := &model.Plan{Steps: []model.Step{{
		Op:     "delete_node",
		Target: &model.Locator{File: path, Kind: model.KindFunction, Name: "DoesNotExist"},
	}}}
	result := VerifyPlan(context.Background(), p, nil)
	if result.Passed {
		t.Error("plan targeting a nonexistent function should not pass")
	}
}

func TestVerifyPlanValidTargetPasses(t *testing.T) {
	path := writeSample(t, sampleGo)
	p := &model.Plan{Steps: []model.Step{{
		Op:      "replace_node",
		Target:  &model.Locator{File: path, Kind: model.KindFunction, Name: "Add"},
		Replace: "func Add(a, b int) int {\n\treturn a + b + 1\n}",
	}}}
	result := VerifyPlan(context.Background(), p, nil)
	if !result.Passed {
		t.Errorf("valid surgery step should pass L0a/L0/L5, got errors: %v", result.Errors)
	}
}

func TestSimilarity(t *testing.T) {
	if got := similarity("Add", "Add"); got != 1.0 {
		t.Errorf("similarity of identical strings = %v, want 1.0", got)
	}
	if got := similarity("Add", "Adx"); got < 0.6 {
		t.Errorf("similarity(Add, Adx) = %v, want a high score for a 1-char edit", got)
	}
	if got := similarity("", "Add"); got != 0 {
		t.Errorf("similarity with an empty string = %v, want 0", got)
	}
}

func TestPostEditRejectsBrokenSyntax(t *testing.T) {
	before := []byte(sampleGo)
	after := []byte("package sample\n\nfunc Add(a, b int int {\n")

	result := PostEdit(context.Background(), PostEditInput{
		Lang:       "go",
		Before:     before,
		After:      after,
		EditStart:  0,
		EditEndOld: uint32(len(before)),
		EditEndNew: uint32(len(after)),
	})
	if result.Passed {
		t.Error("post-edit with broken syntax should not pass")
	}
}

func TestPostEditAcceptsValidReplacement(t *testing.T) {
	before := []byte(sampleGo)
	after := []byte("package sample\n\nfunc Add(a, b int) int {\n\treturn a + b + 1\n}\n")

	result := PostEdit(context.Background(), PostEditInput{
		Lang:         "go",
		Before:       before,
		After:        after,
		EditStart:    0,
		EditEndOld:   uint32(len(before)),
		EditEndNew:   uint32(len(after)),
		ExpectedType: "source_file",
	})
	if !result.Passed {
		t.Errorf("valid replacement should pass, got errors: %v", result.Errors)
	}
}

func TestIsInStringOrComment(t *testing.T) {
	source := []byte(`package sample

// a comment
func Add() string {
	return "hello"
}
`)
	commentStart := uint32(16)
	inCtx, err := IsInStringOrComment(context.Background(), "go", source, commentStart, commentStart+9)
	if err != nil {
		t.Fatalf("IsInStringOrComment returned error: %v", err)
	}
	if !inCtx {
		t.Error("expected position inside the comment to report true")
	}

	funcNameStart := uint32(len("package sample\n\n// a comment\nfunc "))
	inCtx, err = IsInStringOrComment(context.Background(), "go", source, funcNameStart, funcNameStart+3)
	if err != nil {
		t.Fatalf("IsInStringOrComment returned error: %v", err)
	}
	if inCtx {
		t.Error("expected the function name position to report false")
	}
}

func TestBytesEqualAfterNoop(t *testing.T) {
	if !BytesEqualAfterNoop([]byte("same"), []byte("same")) {
		t.Error("identical byte slices should be equal")
	}
	if BytesEqualAfterNoop([]byte("a"), []byte("b")) {
		t.Error("differing byte slices should not be equal")
	}
}
