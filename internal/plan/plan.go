// Package plan implements the Plan Interpreter (spec.md §4.9): shape
// normalization, tier dispatch, checkpointing, sequential execution with
// abort-on-failure, and interference detection across a plan's steps.
// Grounded in the teacher's internal/cli command-dispatch loop (read args,
// validate, execute, report) generalized from one CLI invocation into a
// whole plan's worth of steps.
package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/oxhq/morfx/internal/dsl"
	"github.com/oxhq/morfx/internal/fragment"
	"github.com/oxhq/morfx/internal/legacy"
	"github.com/oxhq/morfx/internal/model"
	"github.com/oxhq/morfx/internal/mutate"
	"github.com/oxhq/morfx/internal/template"
	"github.com/oxhq/morfx/internal/verify"
	"github.com/oxhq/morfx/internal/xerrors"
)

// ParsePlan normalizes either accepted JSON shape (bare step array, or
// {define_operators, plan}) into a model.Plan.
func ParsePlan(data []byte) (*model.Plan, error) {
	var steps []model.Step
	if err := json.Unmarshal(data, &steps); err == nil {
		return &model.Plan{Steps: steps}, nil
	}

	var full model.Plan
	if err := json.Unmarshal(data, &full); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeParamValidation, err, "plan is neither a step array nor {define_operators, plan}")
	}
	return &full, nil
}

// Checkpoint is the pre-execution snapshot of every file a plan's steps
// touch, used to roll the working copy back to on step failure. spec.md
// describes the actual rollback as the driver's (the external collaborator
// running this engine) responsibility; Checkpoint is the data it needs.
type Checkpoint struct {
	Snapshots map[string][]byte
}

// NewCheckpoint reads the current bytes of every file referenced anywhere in
// plan, to be restored verbatim if execution must abort.
func NewCheckpoint(plan *model.Plan) *Checkpoint {
	files := affectedFiles(plan)
	snap := make(map[string][]byte, len(files))
	for f := range files {
		if b, err := os.ReadFile(f); err == nil {
			snap[f] = b
		}
	}
	return &Checkpoint{Snapshots: snap}
}

// Restore writes every snapshotted file back to disk, undoing whatever a
// partially-executed plan changed.
func (c *Checkpoint) Restore() error {
	for path, content := range c.Snapshots {
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return xerrors.Wrap(xerrors.CodeFilesystemFailure, err, "restoring checkpoint for %s", path)
		}
	}
	return nil
}

// Result is what Run returns: per-step execution results plus any
// interference warnings gathered up front.
type Result struct {
	StepResults []*model.ExecutionResult `json:"step_results"`
	Interference []string                `json:"interference_warnings,omitempty"`
	Aborted     bool                      `json:"aborted"`
	AbortedAt   int                       `json:"aborted_at,omitempty"`
}

// Run pre-validates plan (spec.md §4.5 L0a, L1-L6), via g (which may be
// nil, skipping graph-dependent layers), checkpoints the affected file set,
// then executes steps in order, aborting and restoring the checkpoint on
// the first failure.
func Run(ctx context.Context, p *model.Plan, g *model.Graph) *Result {
	vr := verify.VerifyPlan(ctx, p, g)
	if !vr.Passed {
		return &Result{Aborted: true, Interference: vr.Warnings}
	}

	interference := DetectInterference(p)
	checkpoint := NewCheckpoint(p)
	registry := dsl.NewRegistry(p.DefineOperators)

	res := &Result{Interference: interference}
	for i := range p.Steps {
		stepResult := ExecuteStep(ctx, &p.Steps[i], registry)
		res.StepResults = append(res.StepResults, stepResult)
		if !stepResult.Success {
			if err := checkpoint.Restore(); err != nil {
				stepResult.Error = stepResult.Error + "; " + err.Error()
			}
			res.Aborted = true
			res.AbortedAt = i
			break
		}
	}
	return res
}

// ExecuteStep dispatches a single step to its tier's executor.
func ExecuteStep(ctx context.Context, step *model.Step, registry dsl.Registry) *model.ExecutionResult {
	switch model.DetectTier(step) {
	case model.TierSurgery:
		return executeSurgery(ctx, step)
	case model.TierTemplate:
		return executeTemplate(ctx, step)
	case model.TierFragment:
		return executeFragment(ctx, step)
	default:
		return executeLegacy(ctx, step, registry)
	}
}

func executeSurgery(ctx context.Context, step *model.Step) *model.ExecutionResult {
	switch step.Op {
	case "replace_node":
		return mutate.ReplaceNode(ctx, step.Target, step.Replace, "")
	case "insert_before_node":
		return mutate.InsertBeforeNode(ctx, step.Target, step.Replace)
	case "insert_after_node":
		return mutate.InsertAfterNode(ctx, step.Target, step.Replace)
	case "delete_node":
		return mutate.DeleteNode(ctx, step.Target)
	case "wrap_node":
		before, _ := step.Params["before"].(string)
		after, _ := step.Params["after"].(string)
		indentBody, _ := step.Params["indent_body"].(bool)
		return mutate.WrapNode(ctx, step.Target, before, after, indentBody)
	case "replace_all_matching":
		filter, _ := step.Params["filter"].(string)
		return mutate.ReplaceAllMatching(ctx, step.Target, step.Replace, filter)
	case "rename_node":
		return mutate.ReplaceNode(ctx, step.Target, step.NewName, "")
	case "move_node", "copy_node", "swap_nodes", "reorder_children":
		return &model.ExecutionResult{Success: false, Error: fmt.Sprintf("surgery op %q is not a single-locator primitive; use the dedicated API", step.Op)}
	default:
		return &model.ExecutionResult{Success: false, Error: fmt.Sprintf("unknown surgery op %q", step.Op)}
	}
}

func executeTemplate(ctx context.Context, step *model.Step) *model.ExecutionResult {
	params := make(map[string]string, len(step.Params))
	for k, v := range step.Params {
		params[k] = fmt.Sprint(v)
	}
	return template.Expand(ctx, step.Template, step.Target, params)
}

func executeFragment(ctx context.Context, step *model.Step) *model.ExecutionResult {
	text, err := fragment.Render(step.FragmentStep)
	if err != nil {
		return &model.ExecutionResult{Success: false, Error: err.Error()}
	}
	switch step.Action {
	case "insert_before":
		return mutate.InsertBeforeNode(ctx, step.Target, text)
	case "insert_after":
		return mutate.InsertAfterNode(ctx, step.Target, text)
	default:
		return mutate.ReplaceNode(ctx, step.Target, text, "")
	}
}

func executeLegacy(ctx context.Context, step *model.Step, registry dsl.Registry) *model.ExecutionResult {
	if step.Op == "" {
		// No op name and no tier match: treat as a DSL composed-operator
		// invocation keyed by Template (reused as the operator name slot)
		// when present, per spec.md's `{op: name, params}` composed-step
		// shape appearing at the top level of a plan.
		if step.Template != "" {
			return registry.Execute(ctx, step.Template, step.Params)
		}
		return &model.ExecutionResult{Success: false, Error: "legacy step missing op name"}
	}

	p := legacy.Params{File: step.Target.File}
	if v, ok := step.Params["pattern"].(string); ok {
		p.Pattern = v
	}
	if v, ok := step.Params["replacement"].(string); ok {
		p.Replacement = v
	}
	if v, ok := step.Params["occurrences"].(string); ok {
		p.Occurrences = v
	}
	if v, ok := step.Params["multiline"].(bool); ok {
		p.Multiline = v
	}
	if v, ok := step.Params["dot_all"].(bool); ok {
		p.DotAll = v
	}
	if v, ok := step.Params["literal"].(bool); ok {
		p.Literal = v
	}

	changes, err := legacy.Apply(step.Op, p)
	if err != nil {
		return &model.ExecutionResult{Success: false, Error: err.Error()}
	}
	result := map[string]any{"change_count": len(changes)}
	if len(changes) > 0 {
		result["start_line"] = changes[0].LineStart
		result["end_line"] = changes[len(changes)-1].LineEnd
	}
	return &model.ExecutionResult{Success: true, Result: result}
}

// affectedFiles collects every file path a plan's steps may touch, used both
// for checkpointing and interference detection.
func affectedFiles(p *model.Plan) map[string]bool {
	files := make(map[string]bool)
	for i := range p.Steps {
		addStepFiles(&p.Steps[i], files)
	}
	return files
}

func addStepFiles(step *model.Step, files map[string]bool) {
	if step.Target != nil && step.Target.File != "" {
		files[step.Target.File] = true
	}
	if step.Source != nil && step.Source.File != "" {
		files[step.Source.File] = true
	}
	if step.FragmentStep != nil && step.Target != nil && step.Target.File != "" {
		files[step.Target.File] = true
	}
	if f, ok := step.Params["file"].(string); ok && f != "" {
		files[f] = true
	}
}

// DetectInterference groups steps by file-set overlap and reports one
// warning per group of two or more steps (not one per pair), since a later
// step in an overlapping group may observe AST coordinates invalidated by an
// earlier one in the same file (spec.md §4.9). Each step joins the first
// group it overlaps; two groups that a later step overlaps both are not
// merged.
func DetectInterference(p *model.Plan) []string {
	groups := make([]map[string]bool, 0)
	owner := make([]int, len(p.Steps)) // which group index each step belongs to, -1 if isolated
	for i := range owner {
		owner[i] = -1
	}

	for i := range p.Steps {
		files := make(map[string]bool)
		addStepFiles(&p.Steps[i], files)
		if len(files) == 0 {
			continue
		}
		joined := -1
		for gi, g := range groups {
			if overlaps(g, files) {
				joined = gi
				break
			}
		}
		if joined == -1 {
			groups = append(groups, files)
			owner[i] = len(groups) - 1
		} else {
			for f := range files {
				groups[joined][f] = true
			}
			owner[i] = joined
		}
	}

	var warnings []string
	counts := make(map[int]int)
	for _, g := range owner {
		if g >= 0 {
			counts[g]++
		}
	}
	for gi, n := range counts {
		if n > 1 {
			warnings = append(warnings, fmt.Sprintf("interference: %d steps share overlapping file set %v; later steps may observe stale AST coordinates", n, fileList(groups[gi])))
		}
	}
	return warnings
}

func overlaps(a, b map[string]bool) bool {
	for f := range b {
		if a[f] {
			return true
		}
	}
	return false
}

func fileList(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for f := range m {
		out = append(out, f)
	}
	return out
}
