package mutate

import (
	"context"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/morfx/internal/locator"
	"github.com/oxhq/morfx/internal/model"
	"github.com/oxhq/morfx/internal/verify"
	"github.com/oxhq/morfx/internal/xerrors"
)

// ReplaceNode overwrites [start_byte, end_byte) of target with replacement.
func ReplaceNode(ctx context.Context, target *model.Locator, replacement string, expectedType string) *model.ExecutionResult {
	res, node, err := resolveUnique(ctx, target)
	if err != nil {
		return fail(err)
	}
	defer res.Close()

	t := beginTxn(target.File, res.Source)
	newBuf := spliceBytes(res.Source, node.StartByte(), node.EndByte(), []byte(replacement))
	editEndNew := node.StartByte() + uint32(len(replacement))

	result := applyAndVerify(ctx, t, res.Source, newBuf, node.StartByte(), node.EndByte(), editEndNew, expectedType, res.Lang)
	if result.Success {
		result.Result = map[string]any{"start_line": int(node.StartPoint().Row) + 1, "end_line": endLineAfter(newBuf, editEndNew)}
	}
	return result
}

// InsertBeforeNode inserts text before target, re-indenting continuation
// lines to the target's leading indentation and keeping the target on its
// own line.
func InsertBeforeNode(ctx context.Context, target *model.Locator, text string) *model.ExecutionResult {
	res, node, err := resolveUnique(ctx, target)
	if err != nil {
		return fail(err)
	}
	defer res.Close()

	lineStart := lineStartOf(res.Source, node.StartByte())
	indent := indentOf(res.Source, lineStart, node.StartByte())
	inserted := []byte(reindent(text, indent) + "\n")

	t := beginTxn(target.File, res.Source)
	newBuf := spliceBytes(res.Source, lineStart, lineStart, inserted)
	editEnd := lineStart + uint32(len(inserted))

	result := applyAndVerify(ctx, t, res.Source, newBuf, lineStart, lineStart, editEnd, "", res.Lang)
	if result.Success {
		result.Result = lineRangeResult(node)
	}
	return result
}

// InsertAfterNode inserts text after target's line end (inclusive of the
// trailing newline), with the same indent handling as InsertBeforeNode.
func InsertAfterNode(ctx context.Context, target *model.Locator, text string) *model.ExecutionResult {
	res, node, err := resolveUnique(ctx, target)
	if err != nil {
		return fail(err)
	}
	defer res.Close()

	lineEnd := lineEndOf(res.Source, node.EndByte())
	lineStart := lineStartOf(res.Source, node.StartByte())
	indent := indentOf(res.Source, lineStart, node.StartByte())
	inserted := []byte(reindent(text, indent) + "\n")

	t := beginTxn(target.File, res.Source)
	newBuf := spliceBytes(res.Source, lineEnd, lineEnd, inserted)
	editEnd := lineEnd + uint32(len(inserted))

	result := applyAndVerify(ctx, t, res.Source, newBuf, lineEnd, lineEnd, editEnd, "", res.Lang)
	if result.Success {
		result.Result = lineRangeResult(node)
	}
	return result
}

// DeleteNode removes target. If the node occupies a whole line (only
// whitespace before it on its start line, nothing after it on its end
// line), the entire line range including its newline is removed; otherwise
// just the node's byte range is removed.
func DeleteNode(ctx context.Context, target *model.Locator) *model.ExecutionResult {
	res, node, err := resolveUnique(ctx, target)
	if err != nil {
		return fail(err)
	}
	defer res.Close()

	start, end := node.StartByte(), node.EndByte()
	if occupiesWholeLine(res.Source, start, end) {
		start = lineStartOf(res.Source, start)
		end = lineEndOf(res.Source, end)
	}

	t := beginTxn(target.File, res.Source)
	newBuf := spliceBytes(res.Source, start, end, nil)

	result := applyAndVerify(ctx, t, res.Source, newBuf, start, end, start, "", res.Lang)
	if result.Success {
		result.Result = map[string]any{"start_line": int(node.StartPoint().Row) + 1, "end_line": int(node.StartPoint().Row) + 1}
	}
	return result
}

// WrapNode wraps target as `before` · newline · (optionally re-indented)
// body · newline · `after`, at the node's own indentation.
func WrapNode(ctx context.Context, target *model.Locator, before, after string, indentBody bool) *model.ExecutionResult {
	res, node, err := resolveUnique(ctx, target)
	if err != nil {
		return fail(err)
	}
	defer res.Close()

	lineStart := lineStartOf(res.Source, node.StartByte())
	indent := indentOf(res.Source, lineStart, node.StartByte())
	// The body's first line starts at the node, later lines keep their own
	// indentation; indentBody shifts every line one level deeper.
	body := indent + string(res.Source[node.StartByte():node.EndByte()])
	if indentBody {
		body = "    " + reindent(body, "    ")
	}

	wrapped := indent + reindent(before, indent) + "\n" + body + "\n" + indent + reindent(after, indent)

	t := beginTxn(target.File, res.Source)
	newBuf := spliceBytes(res.Source, lineStart, node.EndByte(), []byte(wrapped))
	editEnd := lineStart + uint32(len(wrapped))

	result := applyAndVerify(ctx, t, res.Source, newBuf, lineStart, node.EndByte(), editEnd, "", res.Lang)
	if result.Success {
		result.Result = map[string]any{"start_line": int(node.StartPoint().Row) + 1, "end_line": endLineAfter(newBuf, editEnd)}
	}
	return result
}

// ReplaceAllMatching replaces every node matched by target (no uniqueness
// requirement). Matches are sorted descending by start byte and rewritten
// bottom-up — the byte-offset preservation invariant from spec.md §5 and
// §8 — so each rewrite leaves earlier byte offsets valid. When filter is
// "not_in_string_or_comment", matches whose ancestor chain contains a
// string-or-comment node are excluded first; an empty filtered set is an
// error.
func ReplaceAllMatching(ctx context.Context, target *model.Locator, replacement, filter string) *model.ExecutionResult {
	res, err := locator.Resolve(ctx, target, "")
	if err != nil {
		return fail(err)
	}
	defer res.Close()
	if len(res.Nodes) == 0 {
		return fail(xerrors.New(xerrors.CodeLocatorMiss, "locator matched no nodes in %s", target.File))
	}

	nodes := res.Nodes
	if filter == "not_in_string_or_comment" {
		var kept []*sitter.Node
		for _, n := range nodes {
			inCtx, _ := verify.IsInStringOrComment(ctx, res.Lang, res.Source, n.StartByte(), n.EndByte())
			if !inCtx {
				kept = append(kept, n)
			}
		}
		nodes = kept
	}
	if len(nodes) == 0 {
		return fail(xerrors.New(xerrors.CodeLocatorMiss, "replace_all_matching: no nodes left after filtering"))
	}

	sorted := make([]*sitter.Node, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartByte() > sorted[j].StartByte() })

	buf := res.Source
	minStart, maxEnd := sorted[len(sorted)-1].StartByte(), sorted[0].EndByte()
	delta := 0
	for _, n := range sorted {
		buf = spliceBytes(buf, n.StartByte(), n.EndByte(), []byte(replacement))
		delta += len(replacement) - int(n.EndByte()-n.StartByte())
	}

	t := beginTxn(target.File, res.Source)
	editEndNew := int(maxEnd) + delta
	result := applyAndVerify(ctx, t, res.Source, buf, minStart, maxEnd, uint32(editEndNew), "", res.Lang)
	if result.Success {
		result.Result = map[string]any{"match_count": len(sorted)}
	}
	return result
}

// --- small byte/indent helpers ---

func lineStartOf(src []byte, pos uint32) uint32 {
	i := pos
	for i > 0 && src[i-1] != '\n' {
		i--
	}
	return i
}

func lineEndOf(src []byte, pos uint32) uint32 {
	i := pos
	for int(i) < len(src) && src[i] != '\n' {
		i++
	}
	if int(i) < len(src) {
		i++ // include the newline
	}
	return i
}

func indentOf(src []byte, lineStart, nodeStart uint32) string {
	return string(src[lineStart:nodeStart])
}

func reindent(text, indent string) string {
	lines := strings.Split(text, "\n")
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		lines[i] = indent + lines[i]
	}
	return strings.Join(lines, "\n")
}

func occupiesWholeLine(src []byte, start, end uint32) bool {
	lineStart := lineStartOf(src, start)
	for i := lineStart; i < start; i++ {
		if src[i] != ' ' && src[i] != '\t' {
			return false
		}
	}
	i := end
	for int(i) < len(src) && src[i] != '\n' {
		if src[i] != ' ' && src[i] != '\t' {
			return false
		}
		i++
	}
	return true
}

func endLineAfter(buf []byte, pos uint32) int {
	line := 1
	for i := uint32(0); i < pos && int(i) < len(buf); i++ {
		if buf[i] == '\n' {
			line++
		}
	}
	return line
}
