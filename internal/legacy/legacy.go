// Package legacy implements the text-pattern operator tier (spec.md's
// "Legacy text ops, kept for backward compatibility" dispatch branch): plain
// regex find/replace/insert/delete over file content, with no AST
// involvement. Grounded directly in the teacher's bundled fileman
// sub-project, internal/core/manipulator.go's Manipulator.Apply family —
// right-to-left (reverse) application so earlier match offsets stay valid,
// occurrence limiting, and indentation-preserving insertion.
package legacy

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/oxhq/morfx/internal/xerrors"
)

// Op names recognized by this tier, matching the params shape a legacy
// Step carries in its Params map.
const (
	OpReplacePattern     = "replace_pattern"
	OpInsertBeforePattern = "insert_before_pattern"
	OpInsertAfterPattern  = "insert_after_pattern"
	OpDeletePattern       = "delete_pattern"
)

// Params is the legacy tier's flat parameter shape.
type Params struct {
	File        string
	Pattern     string
	Replacement string
	Occurrences string // "", "all", "first", or a positive integer string
	Multiline   bool
	DotAll      bool
	Literal     bool
}

// Change records one applied edit, mirroring the teacher's model.Change.
type Change struct {
	LineStart int
	LineEnd   int
	Start     int
	End       int
	Original  string
	New       string
}

// Apply runs op against the file named in p.File and writes the result back,
// returning the list of changes made.
func Apply(op string, p Params) ([]Change, error) {
	content, err := os.ReadFile(p.File)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeFilesystemFailure, err, "reading %s", p.File)
	}

	out, changes, err := apply(op, string(content), p)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, xerrors.New(xerrors.CodePatternNotFound, "pattern %q matched nothing in %s", p.Pattern, p.File)
	}
	if err := os.WriteFile(p.File, []byte(out), 0o644); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeFilesystemFailure, err, "writing %s", p.File)
	}
	return changes, nil
}

func apply(op string, content string, p Params) (string, []Change, error) {
	pattern := p.Pattern
	if p.Literal {
		pattern = regexp.QuoteMeta(pattern)
	}
	if p.Multiline {
		pattern = "(?m)" + pattern
	}
	if p.DotAll {
		pattern = "(?s)" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", nil, xerrors.Wrap(xerrors.CodeParamValidation, err, "invalid pattern %q", p.Pattern)
	}

	occ, err := parseOccurrences(p.Occurrences)
	if err != nil {
		return "", nil, err
	}

	matches := re.FindAllStringIndex(content, -1)
	if len(matches) == 0 {
		return content, nil, nil
	}
	if occ >= 0 && len(matches) > occ {
		matches = matches[:occ]
	}

	return applyMatches(op, content, matches, p.Replacement)
}

// applyMatches rewrites content in reverse match order (bottom-up), so each
// rewrite leaves earlier offsets valid — the same invariant
// internal/mutate's replace_all_matching observes for AST nodes.
func applyMatches(op string, content string, matches [][]int, replacement string) (string, []Change, error) {
	lineIdx := computeLineIndex(content)
	buf := []byte(content)
	var changes []Change

	for i := len(matches) - 1; i >= 0; i-- {
		start, end := matches[i][0], matches[i][1]
		origBytes := buf[start:end]
		var newBytes []byte

		switch op {
		case OpReplacePattern:
			newBytes = []byte(replacement)
		case OpInsertBeforePattern:
			ins := []byte(preserveIndentation(content, start, replacement))
			if !dedupeInsert(buf, start, ins, true) {
				continue
			}
			newBytes = append(ins, origBytes...)
		case OpInsertAfterPattern:
			ins := []byte(preserveIndentation(content, end, replacement))
			if !dedupeInsert(buf, end, ins, false) {
				continue
			}
			newBytes = append(append([]byte{}, origBytes...), ins...)
		case OpDeletePattern:
			newBytes = nil
		default:
			return "", nil, xerrors.New(xerrors.CodeUnknownOperator, "unknown legacy op %q", op)
		}

		buf = splice(buf, start, end, newBytes)
		ls, le := byteToLineRange(lineIdx, start, end)
		changes = append(changes, Change{LineStart: ls, LineEnd: le, Start: start, End: end, Original: string(origBytes), New: string(newBytes)})
	}

	reverse(changes)
	return string(buf), changes, nil
}

func reverse(c []Change) {
	for i, j := 0, len(c)-1; i < j; i, j = i+1, j-1 {
		c[i], c[j] = c[j], c[i]
	}
}

func splice(b []byte, start, end int, replacement []byte) []byte {
	out := make([]byte, 0, len(b)-(end-start)+len(replacement))
	out = append(out, b[:start]...)
	out = append(out, replacement...)
	out = append(out, b[end:]...)
	return out
}

func parseOccurrences(s string) (int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "", "all":
		return -1, nil
	case "first":
		return 1, nil
	default:
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return 0, xerrors.New(xerrors.CodeParamValidation, "invalid occurrences value %q", s)
		}
		return n, nil
	}
}

func preserveIndentation(content string, position int, text string) string {
	lineStart := strings.LastIndex(content[:position], "\n") + 1
	indent := takeIndent(content[lineStart:position])

	lines := strings.Split(text, "\n")
	for i := 1; i < len(lines); i++ {
		if lines[i] != "" {
			lines[i] = indent + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

func takeIndent(s string) string {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return s[:i]
}

func computeLineIndex(content string) []int {
	idx := []int{0}
	pos := 0
	for {
		i := strings.IndexByte(content[pos:], '\n')
		if i == -1 {
			break
		}
		pos += i + 1
		idx = append(idx, pos)
	}
	return idx
}

func byteToLine(lineIdx []int, pos int) int {
	lo, hi := 0, len(lineIdx)-1
	line := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		if lineIdx[mid] > pos {
			hi = mid - 1
		} else {
			line = mid
			lo = mid + 1
		}
	}
	return line + 1
}

func byteToLineRange(lineIdx []int, start, end int) (int, int) {
	endPos := end - 1
	if endPos < start {
		endPos = start
	}
	return byteToLine(lineIdx, start), byteToLine(lineIdx, endPos)
}

// dedupeInsert reports whether insert is safe (not already present adjacent
// to pos), preventing repeated application of the same legacy step from
// duplicating text.
func dedupeInsert(buf []byte, pos int, insert []byte, before bool) bool {
	if before {
		if pos >= len(insert) && string(buf[pos-len(insert):pos]) == string(insert) {
			return false
		}
		return true
	}
	if pos+len(insert) <= len(buf) && string(buf[pos:pos+len(insert)]) == string(insert) {
		return false
	}
	return true
}
