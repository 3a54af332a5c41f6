// Package diffutil renders unified diffs for the CLI's execute-step --diff
// flag, which reports the change a step made by comparing the file's
// content before and after the step ran.
// Grounded verbatim in the teacher's providers/base.Provider.generateDiff.
package diffutil

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Unified renders a 3-line-context unified diff between before and after. An
// empty string means no difference.
func Unified(path, before, after string) string {
	if before == after {
		return ""
	}

	diff := difflib.UnifiedDiff{
		A:        strings.Split(before, "\n"),
		B:        strings.Split(after, "\n"),
		FromFile: path,
		ToFile:   path,
		Context:  3,
	}

	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return fmt.Sprintf("--- %s\n+++ %s\n@@ changes @@\n%d bytes -> %d bytes", path, path, len(before), len(after))
	}
	return text
}
