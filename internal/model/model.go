// Package model holds the wire-level data structures shared by every layer
// of the engine: locators, the graph, edit-plan steps, fragments, and the
// JSON shapes returned across the CLI boundary. Nothing in this package
// touches tree-sitter or the filesystem; it is the pure contract other
// packages build on, mirroring the teacher's internal/core "contracts"
// split between pure data and behavior.
package model

import "gorm.io/datatypes"

// NormalizedKind is the language-neutral node kind a Locator addresses.
type NormalizedKind string

const (
	KindFunction   NormalizedKind = "function"
	KindClass      NormalizedKind = "class"
	KindMethod     NormalizedKind = "method"
	KindImport     NormalizedKind = "import"
	KindStatement  NormalizedKind = "statement"
	KindInterface  NormalizedKind = "interface"
	KindEnum       NormalizedKind = "enum"
	KindIdentifier NormalizedKind = "identifier"
)

// Locator is a structural address of zero or more AST nodes, in one of two
// modes: the structured fields (Kind, Name, Parent, Field, NthChild, Index),
// or sexp mode (Type == "sexp" with Query and Capture). File applies to both.
type Locator struct {
	Kind     NormalizedKind `json:"kind,omitempty"`
	Name     string         `json:"name,omitempty"`
	File     string         `json:"file"`
	Parent   *Locator       `json:"parent,omitempty"`
	Field    string         `json:"field,omitempty"`
	NthChild *int           `json:"nth_child,omitempty"`
	Index    *int           `json:"index,omitempty"`

	// Sexp mode. When Type == "sexp" the structured fields above are ignored
	// and Query/Capture drive resolution directly.
	Type    string `json:"type,omitempty"`
	Query   string `json:"query,omitempty"`
	Capture string `json:"capture,omitempty"`
}

// IsSexp reports whether this locator uses the raw S-expression mode.
func (l *Locator) IsSexp() bool {
	return l != nil && l.Type == "sexp"
}

// Symbol is a named construct (function, class, type) extracted by the
// Graph Builder.
type Symbol struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"` // "class" | "function" | "type"
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// Import is a single import/require/include statement extracted from a file.
type Import struct {
	File   string `json:"file"`
	Module string `json:"module"`
	Symbol string `json:"symbol,omitempty"`
	Line   int    `json:"line"`
}

// Graph is the stable output of the Graph Builder.
type Graph struct {
	Symbols    []Symbol                  `json:"symbols"`
	Imports    []Import                  `json:"imports"`
	LineKinds  map[string]map[int]string `json:"line_kinds"`
	Errors     []string                  `json:"errors"`
}

// NewGraph returns an empty, ready-to-populate Graph.
func NewGraph() *Graph {
	return &Graph{
		Symbols:   []Symbol{},
		Imports:   []Import{},
		LineKinds: make(map[string]map[int]string),
		Errors:    []string{},
	}
}

// Fragment is a typed description of new code, rendered to source text by
// the Fragment Serializer.
type Fragment struct {
	Kind       string            `json:"kind"`
	Properties map[string]string `json:"-"`
	Children   []Fragment        `json:"children,omitempty"`

	// Common named properties, lifted out of Properties for convenience.
	// Fragment.UnmarshalJSON fills these from their own JSON keys and puts
	// only the remaining keys into Properties.
	Condition  string `json:"condition,omitempty"`
	Value      string `json:"value,omitempty"`
	Name       string `json:"name,omitempty"`
	Target     string `json:"target,omitempty"`
	ExceptType string `json:"except_type,omitempty"`
	Alias      string `json:"alias,omitempty"`
}

// Step is one entry of an edit plan. Exactly one of Op, Template, Fragment
// is populated per the tier-discriminator rule in spec.md §4.9.
type Step struct {
	// Tier-1 surgery
	Op       string   `json:"op,omitempty"`
	Target   *Locator `json:"target,omitempty"`
	Source   *Locator `json:"source,omitempty"`
	NewName  string   `json:"new_name,omitempty"`
	Order    []int    `json:"order,omitempty"`
	Replace  string   `json:"replacement,omitempty"`

	// Tier-2 template
	Template string         `json:"template,omitempty"`
	Params   map[string]any `json:"params,omitempty"`

	// Tier-3 fragment
	FragmentStep *Fragment `json:"fragment,omitempty"`
	Action       string    `json:"action,omitempty"`
}

// LegacyParams returns Params typed for the legacy text-operator tier,
// where Op carries the operator name (e.g. "replace_pattern") instead of a
// surgery/template name.
func (s *Step) LegacyParams() map[string]any {
	return s.Params
}

// Tier classifies a step into one of the three edit-algebra tiers, or
// "legacy" for the backward-compatibility text operators.
type Tier string

const (
	TierSurgery  Tier = "surgery"
	TierTemplate Tier = "template"
	TierFragment Tier = "fragment"
	TierLegacy   Tier = "legacy"
)

// SurgeryOps is the set of operator names recognized as tier-1 AST surgery.
var SurgeryOps = map[string]bool{
	"move_node":             true,
	"copy_node":             true,
	"swap_nodes":            true,
	"rename_node":           true,
	"delete_node":           true,
	"replace_node":          true,
	"insert_before_node":    true,
	"insert_after_node":     true,
	"wrap_node":             true,
	"replace_all_matching":  true,
	"reorder_children":      true,
}

// DetectTier classifies a step by key presence, honoring the precedence
// op(surgery) > template > fragment > op(legacy) from spec.md §6.
func DetectTier(s *Step) Tier {
	if s.Op != "" && SurgeryOps[s.Op] {
		return TierSurgery
	}
	if s.Template != "" {
		return TierTemplate
	}
	if s.FragmentStep != nil {
		return TierFragment
	}
	return TierLegacy
}

// Plan is the root of an edit plan document, normalized from either of the
// two accepted JSON shapes (bare array, or {define_operators, plan}).
type Plan struct {
	DefineOperators []ComposedOperator `json:"define_operators"`
	Steps           []Step             `json:"plan"`
}

// ComposedOperator is a caller-defined operator expressed in the DSL
// composition language (spec.md §4.10).
type ComposedOperator struct {
	Name  string         `json:"name"`
	Params []string      `json:"params"`
	Steps []ComposedStep `json:"steps"`
}

// ComposedStep is one line of a composed operator's body.
type ComposedStep struct {
	Primitive string         `json:"primitive,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	Bind      string         `json:"bind,omitempty"`

	If   string        `json:"if,omitempty"`
	Then *ComposedStep `json:"then,omitempty"`
	Else *ComposedStep `json:"else,omitempty"`

	Op string `json:"op,omitempty"`
}

// VerificationResult is the JSON shape returned by verify_plan.
type VerificationResult struct {
	Passed   bool     `json:"passed"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// NewVerificationResult returns an empty result ready to accumulate
// findings. Passed stays false until Finalize is called.
func NewVerificationResult() *VerificationResult {
	return &VerificationResult{Errors: []string{}, Warnings: []string{}}
}

// AddError appends an error; Finalize then reports the result as failed.
func (v *VerificationResult) AddError(msg string) {
	v.Errors = append(v.Errors, msg)
}

// AddWarning appends a warning without affecting Passed.
func (v *VerificationResult) AddWarning(msg string) {
	v.Warnings = append(v.Warnings, msg)
}

// Finalize sets Passed based on accumulated errors. Call once all layers
// have run.
func (v *VerificationResult) Finalize() *VerificationResult {
	v.Passed = len(v.Errors) == 0
	return v
}

// LineRange describes the 1-indexed line span a primitive touched.
type LineRange struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// PlanRun is the persisted history record of one run_plan invocation,
// stored by internal/store. Mirrors the teacher's models.Session in shape
// (a run-scoped header row with counts and a JSON client-info blob) but
// scoped to a single plan run rather than a whole MCP session.
type PlanRun struct {
	ID             string         `gorm:"primaryKey;type:varchar(36)"`
	StartedAt      int64          `gorm:"autoCreateTime"`
	FinishedAt     int64
	StepCount      int            `gorm:"default:0"`
	SucceededCount int            `gorm:"default:0"`
	Aborted        bool           `gorm:"default:false"`
	PlanJSON       datatypes.JSON `gorm:"type:jsonb"`
	ResultJSON     datatypes.JSON `gorm:"type:jsonb"`
}

// TableName gives PlanRun a short table name, matching the teacher's
// models.Session.TableName()/models.Stage.TableName() convention.
func (PlanRun) TableName() string { return "plan_runs" }

// LegacyOp is a persisted record of one legacy-tier text operation applied
// against a file, mirroring the teacher's models.Stage/models.Apply split
// (a proposed change plus its committed application) collapsed into one row
// since the legacy tier has no staging step of its own.
type LegacyOp struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	PlanRunID   string `gorm:"type:varchar(36);index"`
	File        string `gorm:"type:text;not null"`
	Op          string `gorm:"type:varchar(32);not null"`
	Pattern     string `gorm:"type:text"`
	Replacement string `gorm:"type:text"`
	ChangeCount int    `gorm:"default:0"`
	AppliedAt   int64  `gorm:"autoCreateTime"`
}

// TableName matches the teacher's table-naming convention.
func (LegacyOp) TableName() string { return "legacy_ops" }

// ExecutionResult is the JSON shape returned by execute_step.
type ExecutionResult struct {
	Success     bool            `json:"success"`
	Error       string          `json:"error,omitempty"`
	RolledBack  bool            `json:"rolled_back,omitempty"`
	Result      map[string]any  `json:"result,omitempty"`
	LineRange   *LineRange      `json:"-"`
}
