// Package parserx is the Parser Facade (spec.md §4.2): a thin wrapper
// around tree-sitter that never fails outright — syntax errors surface as
// ERROR nodes in the returned tree — grounded in the teacher's
// providers/base.Provider.Query, which parses with parser.ParseCtx and
// then walks for ERROR nodes rather than treating a parse error as fatal.
package parserx

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/morfx/internal/langreg"
)

// Parse parses source under lang. It never returns a nil tree for valid
// UTF-8 input; syntax problems show up as ERROR nodes, not as a returned
// error. An error is returned only when the language has no grammar
// registered (see langreg.SitterLanguage) or the context is canceled.
func Parse(ctx context.Context, lang langreg.Language, source []byte) (*sitter.Tree, error) {
	grammar, ok := langreg.SitterLanguage(lang)
	if !ok {
		return nil, ErrUnsupportedLanguage
	}
	parser := sitter.NewParser()
	parser.SetLanguage(grammar)
	return parser.ParseCtx(ctx, nil, source)
}

// ErrUnsupportedLanguage is returned by Parse when langreg has no grammar
// for the requested language.
var ErrUnsupportedLanguage = unsupportedLanguageError{}

type unsupportedLanguageError struct{}

func (unsupportedLanguageError) Error() string { return "parserx: unsupported language" }

// HasErrorNodes walks node's subtree looking for a tree-sitter ERROR node
// or a node tree-sitter marked as missing.
func HasErrorNodes(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	if node.IsError() || node.IsMissing() {
		return true
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if HasErrorNodes(node.Child(i)) {
			return true
		}
	}
	return false
}

// CollectErrorNodes returns every ERROR/MISSING node under root, used by
// the Verifier's L0 layer to build a human-readable diagnostic list.
func CollectErrorNodes(root *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.IsError() || n.IsMissing() {
			out = append(out, n)
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return out
}

// DescendantAtByte returns the deepest node whose byte range covers
// [start, end), used by the Verifier's L3 in-string/in-comment detector.
func DescendantAtByte(root *sitter.Node, start, end uint32) *sitter.Node {
	if root == nil {
		return nil
	}
	return descend(root, start, end)
}

func descend(node *sitter.Node, start, end uint32) *sitter.Node {
	if node.StartByte() > start || node.EndByte() < end {
		return nil
	}
	best := node
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.StartByte() <= start && child.EndByte() >= end {
			if deeper := descend(child, start, end); deeper != nil {
				best = deeper
			}
		}
	}
	return best
}

// Walk visits every node in the subtree rooted at node in pre-order,
// calling visit(node) for each.
func Walk(node *sitter.Node, visit func(*sitter.Node)) {
	if node == nil {
		return
	}
	visit(node)
	for i := 0; i < int(node.ChildCount()); i++ {
		Walk(node.Child(i), visit)
	}
}

// AncestorChain returns node and all of its ancestors, root-first, within
// tree. Nothing in this module calls it; the string/comment checks walk
// Parent() links instead.
func AncestorChain(root, node *sitter.Node) []*sitter.Node {
	var chain []*sitter.Node
	var find func(n *sitter.Node, path []*sitter.Node) []*sitter.Node
	find = func(n *sitter.Node, path []*sitter.Node) []*sitter.Node {
		path = append(path, n)
		if n.StartByte() == node.StartByte() && n.EndByte() == node.EndByte() && n.Type() == node.Type() {
			return path
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child.StartByte() <= node.StartByte() && child.EndByte() >= node.EndByte() {
				if result := find(child, path); result != nil {
					return result
				}
			}
		}
		return nil
	}
	chain = find(root, nil)
	return chain
}

// IsStringOrCommentType reports whether a tree-sitter node type name
// represents a string literal or comment across the supported grammars.
// The node-type vocabulary for these is small and stable enough across
// grammars to check directly by name rather than via a per-language table.
func IsStringOrCommentType(nodeType string) bool {
	switch nodeType {
	case "string", "string_literal", "interpreted_string_literal", "raw_string_literal",
		"template_string", "string_fragment", "char_literal",
		"comment", "line_comment", "block_comment":
		return true
	default:
		return false
	}
}
