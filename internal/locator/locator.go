// Package locator implements the Locator Resolver (spec.md §4.4): resolving
// a structural Locator to zero or more AST nodes, either through the
// structured kind/name/parent/field/nth_child/index algebra or through a
// raw S-expression query with a named capture. Grounded in the teacher's
// providers/base.Provider.findTargets (walk + nodeMatches) generalized from
// a single flat query.Type match into the full nested-locator algebra.
package locator

import (
	"context"
	"os"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/morfx/internal/langreg"
	"github.com/oxhq/morfx/internal/model"
	"github.com/oxhq/morfx/internal/parserx"
	"github.com/oxhq/morfx/internal/xerrors"
)

// Resolution bundles the resolved nodes together with the parse context
// they came from, so downstream mutators/verifiers need not re-parse.
type Resolution struct {
	Nodes  []*sitter.Node
	Source []byte
	Lang   langreg.Language
	Tree   *sitter.Tree
}

// Close releases the underlying tree-sitter tree.
func (r *Resolution) Close() {
	if r != nil && r.Tree != nil {
		r.Tree.Close()
	}
}

// Resolve resolves loc against the filesystem. fileOverride, when non-empty,
// takes precedence over loc.File per spec.md §4.4.
func Resolve(ctx context.Context, loc *model.Locator, fileOverride string) (*Resolution, error) {
	path := loc.File
	if fileOverride != "" {
		path = fileOverride
	}
	lang, ok := langreg.DetectLanguage(path)
	if !ok {
		return &Resolution{Lang: lang}, nil // unsupported language: empty, not an error
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeFilesystemFailure, err, "reading %s", path)
	}

	tree, err := parserx.Parse(ctx, lang, source)
	if err != nil || tree == nil {
		return nil, xerrors.Wrap(xerrors.CodeParseFailure, err, "parsing %s", path)
	}

	var nodes []*sitter.Node
	if loc.IsSexp() {
		nodes, err = resolveSexp(loc, lang, tree, source)
	} else {
		nodes, err = resolveStructured(ctx, loc, path, lang, tree, source)
	}
	if err != nil {
		tree.Close()
		return nil, err
	}
	return &Resolution{Nodes: nodes, Source: source, Lang: lang, Tree: tree}, nil
}

func resolveSexp(loc *model.Locator, lang langreg.Language, tree *sitter.Tree, source []byte) ([]*sitter.Node, error) {
	grammar, ok := langreg.SitterLanguage(lang)
	if !ok {
		return nil, nil
	}
	q, err := sitter.NewQuery([]byte(loc.Query), grammar)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeParamValidation, err, "invalid sexp query")
	}
	defer q.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q, tree.RootNode())

	var matches []*sitter.Node
	for {
		m, ok := cursor.NextMatch()
		if !ok {
			break
		}
		for _, cap := range m.Captures {
			if q.CaptureNameForId(cap.Index) == loc.Capture {
				matches = append(matches, cap.Node)
			}
		}
	}
	return applyIndex(matches, loc.Index), nil
}

func resolveStructured(ctx context.Context, loc *model.Locator, path string, lang langreg.Language, tree *sitter.Tree, source []byte) ([]*sitter.Node, error) {
	roots := []*sitter.Node{tree.RootNode()}
	if loc.Parent != nil {
		parentRes, err := Resolve(ctx, loc.Parent, path)
		if err != nil {
			return nil, err
		}
		defer parentRes.Close()
		if len(parentRes.Nodes) == 0 {
			return nil, nil
		}
		roots = parentRes.Nodes
	}

	var matches []*sitter.Node
	if loc.Kind != "" {
		types := langreg.NodeTypes(lang, loc.Kind)
		if len(types) == 0 {
			return nil, nil // not representable in this language
		}
		typeSet := make(map[string]bool, len(types))
		for _, t := range types {
			typeSet[t] = true
		}
		for _, root := range roots {
			matches = append(matches, collect(root, typeSet, loc.Name, source)...)
		}
	} else {
		// No kind filter: every descendant of the roots is a candidate,
		// filtered only by name if present.
		for _, root := range roots {
			parserx.Walk(root, func(n *sitter.Node) {
				if loc.Name == "" || extractName(n, source) == loc.Name {
					matches = append(matches, n)
				}
			})
		}
	}

	if loc.Field != "" {
		var withField []*sitter.Node
		for _, n := range matches {
			if child := n.ChildByFieldName(loc.Field); child != nil {
				withField = append(withField, child)
			}
		}
		matches = withField
	}

	if loc.NthChild != nil {
		var nthed []*sitter.Node
		for _, n := range matches {
			if child := nthNonDelimiterChild(n, *loc.NthChild); child != nil {
				nthed = append(nthed, child)
			}
		}
		matches = nthed
	}

	return applyIndex(matches, loc.Index), nil
}

func collect(root *sitter.Node, typeSet map[string]bool, name string, source []byte) []*sitter.Node {
	var out []*sitter.Node
	parserx.Walk(root, func(n *sitter.Node) {
		if !typeSet[n.Type()] {
			return
		}
		if name != "" && extractName(n, source) != name {
			return
		}
		out = append(out, n)
	})
	return out
}

// extractName reads a node's "name" field; falling back to the C/C++
// declarator -> declarator chain when no direct name field exists, per
// spec.md §4.4's documented edge case.
func extractName(n *sitter.Node, source []byte) string {
	if name := n.ChildByFieldName("name"); name != nil {
		return name.Content(source)
	}
	if decl := n.ChildByFieldName("declarator"); decl != nil {
		cur := decl
		for cur != nil {
			if cur.Type() == "identifier" {
				return cur.Content(source)
			}
			next := cur.ChildByFieldName("declarator")
			if next == nil {
				break
			}
			cur = next
		}
		return decl.Content(source)
	}
	if n.ChildCount() == 0 {
		return n.Content(source)
	}
	return ""
}

// isDelimiter reports whether a node is punctuation/comment noise that
// nth_child should skip over, per spec.md §3.
func isDelimiter(n *sitter.Node) bool {
	if !n.IsNamed() {
		return true
	}
	switch n.Type() {
	case "comment", "line_comment", "block_comment":
		return true
	}
	return false
}

func nthNonDelimiterChild(n *sitter.Node, idx int) *sitter.Node {
	var named []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if !isDelimiter(child) {
			named = append(named, child)
		}
	}
	if len(named) == 0 {
		return nil
	}
	if idx < 0 {
		idx = len(named) + idx
	}
	if idx < 0 || idx >= len(named) {
		return nil
	}
	return named[idx]
}

func applyIndex(matches []*sitter.Node, index *int) []*sitter.Node {
	if index == nil {
		return matches
	}
	if *index < 0 || *index >= len(matches) {
		return nil
	}
	return []*sitter.Node{matches[*index]}
}
