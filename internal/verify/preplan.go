// Package verify implements the layered Verifier (spec.md §4.5): L0–L6 run
// during plan validation (this file), K/C/R/I/N run after a primitive edit
// (postedit.go). Grounded in the "formal" verification layering spec.md's
// Open Questions directs implementers to pick as the single unified set,
// rather than the teacher's two overlapping L1-L6 schemes.
package verify

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/oxhq/morfx/internal/langreg"
	"github.com/oxhq/morfx/internal/locator"
	"github.com/oxhq/morfx/internal/model"
	"github.com/oxhq/morfx/internal/parserx"
)

// fuzzyThreshold is the similarity ratio above which L1 reports a fuzzy
// match instead of a hard miss (spec.md §4.5).
const fuzzyThreshold = 0.8

// VerifyPlan runs L0–L6 over every step of plan against the supplied
// Graph, returning the aggregated result. It never mutates the filesystem.
func VerifyPlan(ctx context.Context, plan *model.Plan, g *model.Graph) *model.VerificationResult {
	res := model.NewVerificationResult()

	driftByFile := make(map[string]int)

	for i := range plan.Steps {
		step := &plan.Steps[i]
		checkL0a(ctx, res, step)
		checkL0Syntax(ctx, res, step)
		checkL1Content(res, step, g)
		checkL2Drift(res, step, driftByFile)
		checkL3AstContext(ctx, res, step)
		checkL4SymbolOccurrences(ctx, res, step)
		checkL5Preflight(ctx, res, step)
		checkL6CrossFile(res, step, g, plan)
	}

	return res.Finalize()
}

// checkL0a is the Structural layer. Surgery and fragment steps need a target
// whose file exists and whose locator resolves to at least one node; template
// steps need a template name, and legacy steps an op name. Whether a template
// exists and its required params are present is checked only when the step
// is expanded (internal/template); line ranges are not checked.
func checkL0a(ctx context.Context, res *model.VerificationResult, step *model.Step) {
	tier := model.DetectTier(step)

	switch tier {
	case model.TierSurgery:
		if !model.SurgeryOps[step.Op] {
			res.AddError(fmt.Sprintf("L0a: unknown surgery op %q", step.Op))
			return
		}
		if step.Target == nil {
			res.AddError("L0a: surgery step missing target locator")
			return
		}
		checkFileAndLocatorResolves(ctx, res, step.Target)
	case model.TierTemplate:
		if step.Template == "" {
			res.AddError("L0a: template step missing template name")
		}
		// Template lookup and required-param validation happen in
		// internal/template at expansion time, not here.
	case model.TierFragment:
		if step.FragmentStep == nil {
			res.AddError("L0a: fragment step missing fragment body")
			return
		}
		if step.Target == nil {
			res.AddError("L0a: fragment step missing target locator")
			return
		}
		checkFileAndLocatorResolves(ctx, res, step.Target)
	case model.TierLegacy:
		if step.Op == "" {
			res.AddError("L0a: legacy step missing op name")
		}
	}
}

func checkFileAndLocatorResolves(ctx context.Context, res *model.VerificationResult, loc *model.Locator) {
	if loc.File == "" {
		res.AddError("L0a: locator missing file")
		return
	}
	if _, err := os.Stat(loc.File); err != nil {
		res.AddError(fmt.Sprintf("L0a: file does not exist: %s", loc.File))
		return
	}
	resolved, err := locator.Resolve(ctx, loc, "")
	if err != nil {
		res.AddError(fmt.Sprintf("L0a: locator resolution failed: %v", err))
		return
	}
	defer resolved.Close()
	if len(resolved.Nodes) == 0 {
		res.AddError(fmt.Sprintf("L0a: locator matched no nodes in %s", loc.File))
	}
}

// checkL0Syntax verifies that the target file, as it exists on disk right
// now, parses without ERROR nodes.
func checkL0Syntax(ctx context.Context, res *model.VerificationResult, step *model.Step) {
	loc := step.Target
	if loc == nil {
		return
	}
	lang, ok := langreg.DetectLanguage(loc.File)
	if !ok {
		return // graceful degradation: unsupported language, nothing to check
	}
	source, err := os.ReadFile(loc.File)
	if err != nil {
		return
	}
	tree, err := parserx.Parse(ctx, lang, source)
	if err != nil || tree == nil {
		res.AddError(fmt.Sprintf("L0: %s failed to parse", loc.File))
		return
	}
	defer tree.Close()
	if errs := parserx.CollectErrorNodes(tree.RootNode()); len(errs) > 0 {
		res.AddError(fmt.Sprintf("L0: %s has %d syntax error node(s) before editing", loc.File, len(errs)))
	}
}

// checkL1Content verifies the function/class named by the step exists in
// the Graph, offering a fuzzy-match score when the exact name is absent.
func checkL1Content(res *model.VerificationResult, step *model.Step, g *model.Graph) {
	if g == nil || step.Target == nil || step.Target.Name == "" {
		return
	}
	name := step.Target.Name
	for _, sym := range g.Symbols {
		if sym.Name == name && sym.File == step.Target.File {
			return
		}
	}
	// Exact miss: look for the closest symbol name in the same file for a
	// fuzzy suggestion.
	best := ""
	bestScore := 0.0
	for _, sym := range g.Symbols {
		if sym.File != step.Target.File {
			continue
		}
		score := similarity(name, sym.Name)
		if score > bestScore {
			bestScore = score
			best = sym.Name
		}
	}
	if bestScore >= fuzzyThreshold {
		res.AddWarning(fmt.Sprintf("L1: %q not found verbatim in %s; closest match %q (score %.2f)", name, step.Target.File, best, bestScore))
		return
	}
	res.AddError(fmt.Sprintf("L1: %q not found in %s", name, step.Target.File))
}

// similarity is a simple character-based ratio (Levenshtein-derived),
// used by L1 for identifier comparisons. It is the only similarity measure
// in the module; there is no line-based comparison for multi-line patterns.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}
	dist := levenshtein(a, b)
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	return 1.0 - float64(dist)/float64(maxLen)
}

func levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
		}
		prev, cur = cur, prev
	}
	return prev[lb]
}

// checkL2Drift tracks cumulative line-number drift per file across steps,
// warning when a later step on the same file may be observing stale line
// coordinates (legacy ops are line/pattern based; surgery/template/fragment
// steps are locator based and do not need this, but still contribute
// drift for later legacy steps on the same file).
func checkL2Drift(res *model.VerificationResult, step *model.Step, driftByFile map[string]int) {
	file := stepFile(step)
	if file == "" {
		return
	}
	if drift := driftByFile[file]; drift != 0 && model.DetectTier(step) == model.TierLegacy {
		res.AddWarning(fmt.Sprintf("L2: step on %s may observe %d line(s) of drift from earlier steps", file, drift))
	}
	driftByFile[file] += estimateLineDelta(step)
}

func stepFile(step *model.Step) string {
	if step.Target != nil {
		return step.Target.File
	}
	return ""
}

// estimateLineDelta is a coarse estimate of how many lines a step adds or
// removes, used only to decide whether L2 should warn on a later step; it
// need not be exact.
func estimateLineDelta(step *model.Step) int {
	switch step.Op {
	case "insert_before_node", "insert_after_node":
		return strings.Count(step.Replace, "\n") + 1
	case "delete_node":
		return -1
	}
	return 0
}

// checkL3AstContext warns when a text pattern (legacy steps) falls inside
// a string or comment node, which usually indicates an unintended match.
func checkL3AstContext(ctx context.Context, res *model.VerificationResult, step *model.Step) {
	if model.DetectTier(step) != model.TierLegacy {
		return
	}
	file, _ := step.Params["file"].(string)
	if file == "" {
		file = stepFile(step)
	}
	pattern, _ := step.Params["pattern"].(string)
	if file == "" || pattern == "" {
		return
	}
	lang, ok := langreg.DetectLanguage(file)
	if !ok {
		return
	}
	source, err := os.ReadFile(file)
	if err != nil {
		return
	}
	idx := strings.Index(string(source), pattern)
	if idx < 0 {
		return
	}
	inCtx, err := IsInStringOrComment(ctx, lang, source, uint32(idx), uint32(idx+len(pattern)))
	if err == nil && inCtx {
		res.AddWarning(fmt.Sprintf("L3: pattern %q in %s falls inside a string or comment", pattern, file))
	}
}

// checkL4SymbolOccurrences classifies rename occurrences into definitions,
// references, in-strings, and in-comments, warning if non-code occurrences
// are non-zero.
func checkL4SymbolOccurrences(ctx context.Context, res *model.VerificationResult, step *model.Step) {
	if step.Op != "rename_node" || step.Target == nil || step.Target.Name == "" || step.NewName == "" {
		return
	}
	lang, ok := langreg.DetectLanguage(step.Target.File)
	if !ok {
		return
	}
	source, err := os.ReadFile(step.Target.File)
	if err != nil {
		return
	}
	nonCode := 0
	idx := 0
	for {
		pos := strings.Index(string(source[idx:]), step.Target.Name)
		if pos < 0 {
			break
		}
		start := idx + pos
		end := start + len(step.Target.Name)
		inCtx, _ := IsInStringOrComment(ctx, lang, source, uint32(start), uint32(end))
		if inCtx {
			nonCode++
		}
		idx = end
	}
	if nonCode > 0 {
		res.AddWarning(fmt.Sprintf("L4: rename of %q has %d occurrence(s) inside strings/comments that will not be updated", step.Target.Name, nonCode))
	}
}

// checkL5Preflight simulates a replacement in memory (never touching
// disk) and confirms the result still parses without ERROR nodes.
func checkL5Preflight(ctx context.Context, res *model.VerificationResult, step *model.Step) {
	if step.Op != "replace_node" || step.Target == nil {
		return
	}
	lang, ok := langreg.DetectLanguage(step.Target.File)
	if !ok {
		return
	}
	resolved, err := locator.Resolve(ctx, step.Target, "")
	if err != nil || resolved == nil || len(resolved.Nodes) == 0 {
		return // L0a already reported the miss
	}
	defer resolved.Close()
	node := resolved.Nodes[0]
	simulated := append(append(append([]byte{}, resolved.Source[:node.StartByte()]...), []byte(step.Replace)...), resolved.Source[node.EndByte():]...)

	tree, err := parserx.Parse(ctx, lang, simulated)
	if err != nil || tree == nil {
		res.AddError("L5: simulated replacement failed to parse")
		return
	}
	defer tree.Close()
	if errs := parserx.CollectErrorNodes(tree.RootNode()); len(errs) > 0 {
		res.AddError(fmt.Sprintf("L5: simulated replacement introduces %d syntax error node(s)", len(errs)))
	}
}

// checkL6CrossFile warns when a renamed or deleted symbol is imported by a
// file outside the plan's own file set.
func checkL6CrossFile(res *model.VerificationResult, step *model.Step, g *model.Graph, plan *model.Plan) {
	if g == nil || step.Target == nil {
		return
	}
	if step.Op != "rename_node" && step.Op != "delete_node" {
		return
	}
	name := step.Target.Name
	if name == "" {
		return
	}
	planFiles := make(map[string]bool)
	for i := range plan.Steps {
		if f := stepFile(&plan.Steps[i]); f != "" {
			planFiles[f] = true
		}
	}
	for _, imp := range g.Imports {
		if imp.Symbol == name && !planFiles[imp.File] {
			res.AddWarning(fmt.Sprintf("L6: %q is imported by %s, which is outside this plan's file set", name, imp.File))
		}
	}
}
