package diffutil

import (
	"strings"
	"testing"
)

func TestUnifiedIdenticalStringsReturnsEmpty(t *testing.T) {
	got := Unified("sample.go", "same\ncontent\n", "same\ncontent\n")
	if got != "" {
		t.Errorf("Unified() = %q, want empty string for identical input", got)
	}
}

func TestUnifiedDiffersProducesHeadersAndHunk(t *testing.T) {
	before := "line1\nline2\nline3\n"
	after := "line1\nCHANGED\nline3\n"
	got := Unified("sample.go", before, after)

	if !strings.Contains(got, "--- sample.go") {
		t.Errorf("missing from-file header, got:\n%s", got)
	}
	if !strings.Contains(got, "+++ sample.go") {
		t.Errorf("missing to-file header, got:\n%s", got)
	}
	if !strings.Contains(got, "@@") {
		t.Errorf("missing hunk header, got:\n%s", got)
	}
	if !strings.Contains(got, "-line2") || !strings.Contains(got, "+CHANGED") {
		t.Errorf("expected removed/added lines in diff, got:\n%s", got)
	}
}

func TestUnifiedAppendedLineShowsAsAddition(t *testing.T) {
	before := "only\n"
	after := "only\nextra\n"
	got := Unified("sample.go", before, after)
	if !strings.Contains(got, "+extra") {
		t.Errorf("expected an addition line for the appended text, got:\n%s", got)
	}
}
