// Package discover expands glob patterns and directory roots into the
// concrete file set a plan or graph build operates over (a feature
// spec.md's distillation left implicit but SPEC_FULL.md adds explicitly).
// Grounded in the teacher's core.FileWalker.matchPattern /
// isIncluded/isExcluded (doublestar.PathMatch against both the full path
// and the basename), simplified from its worker-pool parallel walk into a
// single-pass walk since discovery here feeds a plan's small, explicit file
// set rather than a whole-repository scan.
package discover

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExclude is the baseline set of directories never walked into,
// matching the teacher's habitual exclusions for VCS and dependency trees.
var DefaultExclude = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/.venv/**",
	"**/__pycache__/**",
}

// Options controls a Files call.
type Options struct {
	Include []string // glob patterns; empty means "everything not excluded"
	Exclude []string // additional exclude globs, appended to DefaultExclude
	MaxDepth int      // 0 means unlimited
}

// Files walks roots (files or directories), returning every regular file
// under them whose path matches Include (if non-empty) and does not match
// Exclude or DefaultExclude.
func Files(ctx context.Context, roots []string, opts Options) ([]string, error) {
	exclude := append(append([]string{}, DefaultExclude...), opts.Exclude...)

	var out []string
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if matches(root, opts.Include, exclude) {
				out = append(out, root)
			}
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip unreadable entries, matching the teacher's tolerant walk
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if d.IsDir() {
				if isExcluded(path, exclude) {
					return filepath.SkipDir
				}
				if opts.MaxDepth > 0 && depth(root, path) > opts.MaxDepth {
					return filepath.SkipDir
				}
				return nil
			}
			if matches(path, opts.Include, exclude) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator))
}

func matches(path string, include, exclude []string) bool {
	if isExcluded(path, exclude) {
		return false
	}
	if len(include) == 0 {
		return true
	}
	for _, pattern := range include {
		if matchPattern(path, pattern) {
			return true
		}
	}
	return false
}

func isExcluded(path string, exclude []string) bool {
	for _, pattern := range exclude {
		if matchPattern(path, pattern) {
			return true
		}
	}
	return false
}

// matchPattern tries the full path first, then the basename for patterns
// with no path separator — the same two-tier fallback the teacher's
// FileWalker.matchPattern uses.
func matchPattern(path, pattern string) bool {
	if matched, err := doublestar.PathMatch(pattern, filepath.ToSlash(path)); err == nil && matched {
		return true
	}
	if !strings.Contains(pattern, "/") {
		if matched, err := doublestar.PathMatch(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}
	return false
}
