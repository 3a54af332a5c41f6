package discover

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func setupTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := []string{
		"main.go",
		"helper.py",
		"pkg/util.go",
		"pkg/util_test.go",
		"node_modules/dep/index.js",
		".git/HEAD",
		"vendor/lib/lib.go",
	}
	for _, f := range files {
		full := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestFilesDefaultExcludesVCSAndDependencyTrees(t *testing.T) {
	root := setupTree(t)
	out, err := Files(context.Background(), []string{root}, Options{})
	if err != nil {
		t.Fatalf("Files returned error: %v", err)
	}
	for _, f := range out {
		if containsAny(f, "node_modules", ".git", "vendor") {
			t.Errorf("excluded directory leaked into results: %s", f)
		}
	}
	if len(out) != 4 {
		t.Errorf("got %d files, want 4 (main.go, helper.py, pkg/util.go, pkg/util_test.go): %v", len(out), out)
	}
}

func TestFilesIncludeGlobFiltersByExtension(t *testing.T) {
	root := setupTree(t)
	out, err := Files(context.Background(), []string{root}, Options{Include: []string{"**/*.go"}})
	if err != nil {
		t.Fatalf("Files returned error: %v", err)
	}
	sort.Strings(out)
	for _, f := range out {
		if filepath.Ext(f) != ".go" {
			t.Errorf("non-.go file leaked through include filter: %s", f)
		}
	}
	if len(out) != 3 {
		t.Errorf("got %d .go files, want 3 (main.go, pkg/util.go, pkg/util_test.go): %v", len(out), out)
	}
}

func TestFilesAdditionalExclude(t *testing.T) {
	root := setupTree(t)
	out, err := Files(context.Background(), []string{root}, Options{
		Include: []string{"**/*.go"},
		Exclude: []string{"**/pkg/**"},
	})
	if err != nil {
		t.Fatalf("Files returned error: %v", err)
	}
	for _, f := range out {
		if containsAny(f, "pkg/") {
			t.Errorf("explicitly excluded path leaked through: %s", f)
		}
	}
}

func TestFilesSingleFileRoot(t *testing.T) {
	root := setupTree(t)
	target := filepath.Join(root, "main.go")
	out, err := Files(context.Background(), []string{target}, Options{})
	if err != nil {
		t.Fatalf("Files returned error: %v", err)
	}
	if len(out) != 1 || out[0] != target {
		t.Errorf("got %v, want exactly [%s]", out, target)
	}
}

func TestFilesMaxDepthLimitsRecursion(t *testing.T) {
	root := t.TempDir()
	shallow := filepath.Join(root, "a.go")
	deep := filepath.Join(root, "sub1", "sub2", "sub3", "b.go")
	os.WriteFile(shallow, []byte("x"), 0o644)
	os.MkdirAll(filepath.Dir(deep), 0o755)
	os.WriteFile(deep, []byte("x"), 0o644)

	out, err := Files(context.Background(), []string{root}, Options{MaxDepth: 1})
	if err != nil {
		t.Fatalf("Files returned error: %v", err)
	}
	for _, f := range out {
		if f == deep {
			t.Errorf("deeply nested file should have been excluded by MaxDepth: %v", out)
		}
	}
	found := false
	for _, f := range out {
		if f == shallow {
			found = true
		}
	}
	if !found {
		t.Error("shallow file at the root should still be included")
	}
}

func TestFilesNonexistentRootErrors(t *testing.T) {
	_, err := Files(context.Background(), []string{"/no/such/root"}, Options{})
	if err == nil {
		t.Error("Files should error for a root that does not exist")
	}
}

func TestMatchPatternBasenameFallback(t *testing.T) {
	if !matchPattern("/a/b/c/main.go", "*.go") {
		t.Error("a pattern with no path separator should match against the basename")
	}
	if matchPattern("/a/b/c/main.go", "*.py") {
		t.Error("a non-matching extension should not match")
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
