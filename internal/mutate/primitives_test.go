package mutate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oxhq/morfx/internal/model"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.go")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

const twoFuncs = `package sample

func Add(a, b int) int {
	return a + b
}

func Sub(a, b int) int {
	return a - b
}
`

func TestReplaceNode(t *testing.T) {
	path := writeFixture(t, twoFuncs)
	target := &model.Locator{File: path, Kind: model.KindFunction, Name: "Add"}

	result := ReplaceNode(context.Background(), target, "func Add(a, b int) int {\n\treturn a + b + 1\n}", "")
	if !result.Success {
		t.Fatalf("ReplaceNode failed: %s", result.Error)
	}

	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading result: %v", err)
	}
	if !strings.Contains(string(out), "a + b + 1") {
		t.Errorf("replaced content missing expected text, got:\n%s", out)
	}
	if !strings.Contains(string(out), "func Sub") {
		t.Error("unrelated function Sub should survive the edit untouched")
	}
}

func TestReplaceNodeLocatorMiss(t *testing.T) {
	path := writeFixture(t, twoFuncs)
	target := &model.Locator{File: path, Kind: model.KindFunction, Name: "Nope"}

	result := ReplaceNode(context.Background(), target, "func Nope() {}", "")
	if result.Success {
		t.Error("ReplaceNode should fail when the locator matches nothing")
	}
}

func TestInsertBeforeNode(t *testing.T) {
	path := writeFixture(t, twoFuncs)
	target := &model.Locator{File: path, Kind: model.KindFunction, Name: "Sub"}

	result := InsertBeforeNode(context.Background(), target, "// Sub subtracts b from a.")
	if !result.Success {
		t.Fatalf("InsertBeforeNode failed: %s", result.Error)
	}

	out, _ := os.ReadFile(path)
	if !strings.Contains(string(out), "// Sub subtracts b from a.\nfunc Sub") {
		t.Errorf("comment was not inserted directly before func Sub, got:\n%s", out)
	}
}

func TestInsertAfterNode(t *testing.T) {
	path := writeFixture(t, twoFuncs)
	target := &model.Locator{File: path, Kind: model.KindFunction, Name: "Add"}

	result := InsertAfterNode(context.Background(), target, "var AddCallCount int")
	if !result.Success {
		t.Fatalf("InsertAfterNode failed: %s", result.Error)
	}

	out, _ := os.ReadFile(path)
	if !strings.Contains(string(out), "var AddCallCount int") {
		t.Errorf("inserted text missing, got:\n%s", out)
	}
}

func TestDeleteNode(t *testing.T) {
	path := writeFixture(t, twoFuncs)
	target := &model.Locator{File: path, Kind: model.KindFunction, Name: "Sub"}

	result := DeleteNode(context.Background(), target)
	if !result.Success {
		t.Fatalf("DeleteNode failed: %s", result.Error)
	}

	out, _ := os.ReadFile(path)
	if strings.Contains(string(out), "func Sub") {
		t.Errorf("Sub should have been removed, got:\n%s", out)
	}
	if !strings.Contains(string(out), "func Add") {
		t.Error("Add should remain after deleting Sub")
	}
}

func TestWrapNode(t *testing.T) {
	path := writeFixture(t, twoFuncs)
	target := &model.Locator{File: path, Kind: model.KindStatement, Parent: &model.Locator{File: path, Kind: model.KindFunction, Name: "Add"}, Index: intPtr(0)}

	result := WrapNode(context.Background(), target, "if true {", "}", true)
	if !result.Success {
		t.Fatalf("WrapNode failed: %s", result.Error)
	}

	out, _ := os.ReadFile(path)
	if !strings.Contains(string(out), "if true {") {
		t.Errorf("wrap prefix missing, got:\n%s", out)
	}
}

func TestReplaceAllMatching(t *testing.T) {
	src := `package sample

func Add(a, b int) int {
	return a + b
}

func AddThree(a, b, c int) int {
	return a + b + c
}
`
	path := writeFixture(t, src)
	target := &model.Locator{File: path, Kind: model.KindFunction}

	result := ReplaceAllMatching(context.Background(), target, "// replaced", "")
	if !result.Success {
		t.Fatalf("ReplaceAllMatching failed: %s", result.Error)
	}
	if count, _ := result.Result["match_count"].(int); count != 2 {
		t.Errorf("match_count = %v, want 2", result.Result["match_count"])
	}
}

func TestReplaceAllMatchingNoMatches(t *testing.T) {
	path := writeFixture(t, twoFuncs)
	target := &model.Locator{File: path, Kind: model.KindFunction, Name: "DoesNotExist"}

	result := ReplaceAllMatching(context.Background(), target, "x", "")
	if result.Success {
		t.Error("ReplaceAllMatching should fail with no matches")
	}
}

// TestReplaceAllMatchingWithGapsAndShorterReplacement covers three matches
// separated by real unreplaced gap bytes, shrunk by a replacement shorter
// than any of them. editEndNew must account for the gap bytes between
// matches, not just len(sorted)*len(replacement) — otherwise the computed
// boundary lands before the last rewritten node's new start byte, making
// checkContainment's outsideTopLevelSignature see that node as a spurious
// new "outside" sibling on the after-side only, failing a perfectly valid
// edit with a false "AST outside the edit region changed".
func TestReplaceAllMatchingWithGapsAndShorterReplacement(t *testing.T) {
	src := `package sample

func F1() {
}

func F2() {
}

func F3() {
}
`
	path := writeFixture(t, src)
	target := &model.Locator{File: path, Kind: model.KindFunction}

	result := ReplaceAllMatching(context.Background(), target, "//a", "")
	if !result.Success {
		t.Fatalf("ReplaceAllMatching failed: %s", result.Error)
	}
	if count, _ := result.Result["match_count"].(int); count != 3 {
		t.Errorf("match_count = %v, want 3", result.Result["match_count"])
	}

	out, _ := os.ReadFile(path)
	want := "package sample\n\n//a\n\n//a\n\n//a\n"
	if string(out) != want {
		t.Errorf("file content = %q, want %q", out, want)
	}
}

func intPtr(i int) *int { return &i }
