// Package graph implements the Graph Builder (spec.md §4.3): it parses a
// set of files and extracts symbols, imports, and per-line construct
// kinds, degrading gracefully file-by-file and stage-by-stage so that one
// broken query never discards results already collected. Grounded in the
// teacher's providers/base.Provider.walkTree plus internal/graph-shaped
// symbol/import extraction implied by its Query/Transform split.
package graph

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/morfx/internal/langreg"
	"github.com/oxhq/morfx/internal/model"
	"github.com/oxhq/morfx/internal/parserx"
)

// Build runs the Graph Builder over files, never aborting on a single
// file's failure: unsupported languages and read/parse failures are
// recorded in Graph.Errors and the batch continues.
func Build(ctx context.Context, files []string) *model.Graph {
	g := model.NewGraph()
	for _, path := range files {
		buildOne(ctx, g, path)
	}
	return g
}

func buildOne(ctx context.Context, g *model.Graph, path string) {
	lang, ok := langreg.DetectLanguage(path)
	if !ok {
		g.Errors = append(g.Errors, fmt.Sprintf("%s: unsupported language", path))
		return
	}

	source, err := os.ReadFile(path)
	if err != nil {
		g.Errors = append(g.Errors, fmt.Sprintf("%s: %v", path, err))
		return
	}

	tree, err := parserx.Parse(ctx, lang, source)
	if err != nil || tree == nil {
		g.Errors = append(g.Errors, fmt.Sprintf("%s: parse failed: %v", path, err))
		return
	}
	defer tree.Close()
	root := tree.RootNode()

	// Each stage is independently fenced: a panic or error recovering from
	// a malformed query must not discard results from an earlier stage.
	safely(g, path, func() { extractSymbols(g, path, lang, root, source) })
	safely(g, path, func() { extractImports(g, path, lang, root, source) })
	safely(g, path, func() { extractLineKinds(g, path, lang, root) })
}

func safely(g *model.Graph, path string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			g.Errors = append(g.Errors, fmt.Sprintf("%s: stage panic: %v", path, r))
		}
	}()
	fn()
}

func extractSymbols(g *model.Graph, path string, lang langreg.Language, root *sitter.Node, source []byte) {
	queryStr, ok := langreg.SymbolQuery(lang)
	if !ok || strings.TrimSpace(queryStr) == "" {
		return
	}
	grammar, ok := langreg.SitterLanguage(lang)
	if !ok {
		return
	}
	q, err := sitter.NewQuery([]byte(queryStr), grammar)
	if err != nil {
		g.Errors = append(g.Errors, fmt.Sprintf("%s: symbol query: %v", path, err))
		return
	}
	defer q.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q, root)

	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		var defNode *sitter.Node
		var kind, name string
		for _, cap := range match.Captures {
			capName := q.CaptureNameForId(cap.Index)
			if capName == "name" {
				name = cap.Node.Content(source)
				continue
			}
			if strings.HasPrefix(capName, "def.") {
				defNode = cap.Node
				kind = strings.TrimPrefix(capName, "def.")
			}
		}
		if defNode == nil || name == "" {
			continue
		}
		g.Symbols = append(g.Symbols, model.Symbol{
			Name:      name,
			Kind:      kind,
			File:      path,
			StartLine: int(defNode.StartPoint().Row) + 1,
			EndLine:   int(defNode.EndPoint().Row) + 1,
		})
	}
}

// importPattern extracts (module, symbol) pairs from the raw captured text
// of an import-like statement. One small regex set per language family,
// intentionally permissive; spec.md §4.3 calls this "a small per-language
// regex" rather than a fully structured parse.
var importPatterns = map[langreg.Language][]*regexp.Regexp{
	langreg.Python: {
		regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import\s+([\w, *]+)`),
		regexp.MustCompile(`^\s*import\s+([\w.]+)(?:\s+as\s+\w+)?`),
	},
	langreg.JavaScript: {
		regexp.MustCompile(`import\s+\{(?P<symbol>[^}]+)\}\s+from\s+['"](?P<module>[^'"]+)['"]`),
		regexp.MustCompile(`import\s+(?P<symbol>\w+)\s+from\s+['"](?P<module>[^'"]+)['"]`),
		regexp.MustCompile(`import\s+['"]([^'"]+)['"]`),
	},
	langreg.Java: {
		regexp.MustCompile(`^\s*import\s+(?:static\s+)?([\w.]+)\s*;`),
	},
	langreg.Go: {
		regexp.MustCompile(`"([^"]+)"`),
	},
	langreg.Rust: {
		regexp.MustCompile(`^\s*use\s+([\w:]+)(?:::\{([^}]+)\})?`),
	},
	langreg.Ruby: {
		regexp.MustCompile(`require(?:_relative)?\s+['"]([^'"]+)['"]`),
	},
	langreg.PHP: {
		regexp.MustCompile(`^\s*use\s+([\w\\]+)(?:\s+as\s+\w+)?`),
	},
	langreg.C: {
		regexp.MustCompile(`#include\s*[<"]([^>"]+)[>"]`),
	},
}

func init() {
	importPatterns[langreg.TypeScript] = importPatterns[langreg.JavaScript]
	importPatterns[langreg.TSX] = importPatterns[langreg.JavaScript]
	importPatterns[langreg.CPP] = importPatterns[langreg.C]
}

func extractImports(g *model.Graph, path string, lang langreg.Language, root *sitter.Node, source []byte) {
	queryStr, ok := langreg.ImportQuery(lang)
	if !ok {
		return
	}
	grammar, ok := langreg.SitterLanguage(lang)
	if !ok {
		return
	}
	q, err := sitter.NewQuery([]byte(queryStr), grammar)
	if err != nil {
		g.Errors = append(g.Errors, fmt.Sprintf("%s: import query: %v", path, err))
		return
	}
	defer q.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q, root)

	patterns := importPatterns[lang]

	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		for _, cap := range match.Captures {
			if q.CaptureNameForId(cap.Index) != "import" {
				continue
			}
			text := cap.Node.Content(source)
			line := int(cap.Node.StartPoint().Row) + 1
			module, symbol := parseImportText(text, patterns)
			if module == "" {
				continue
			}
			g.Imports = append(g.Imports, model.Import{
				File:   path,
				Module: module,
				Symbol: symbol,
				Line:   line,
			})
		}
	}
}

func parseImportText(text string, patterns []*regexp.Regexp) (module, symbol string) {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		// Patterns whose symbol list precedes the module name the two
		// groups explicitly.
		if mi, si := re.SubexpIndex("module"), re.SubexpIndex("symbol"); mi > 0 && si > 0 {
			return m[mi], strings.TrimSpace(strings.Split(m[si], ",")[0])
		}
		if len(m) >= 3 && m[2] != "" {
			return m[1], strings.TrimSpace(strings.Split(m[2], ",")[0])
		}
		if len(m) >= 2 {
			return m[1], ""
		}
	}
	return "", ""
}

func extractLineKinds(g *model.Graph, path string, lang langreg.Language, root *sitter.Node) {
	lines := make(map[int]string)
	parserx.Walk(root, func(n *sitter.Node) {
		kind, ok := langreg.LineKind(lang, n.Type())
		if !ok {
			return
		}
		lines[int(n.StartPoint().Row)+1] = kind
	})
	if len(lines) > 0 {
		g.LineKinds[path] = lines
	}
}
