package dsl

import "github.com/oxhq/morfx/internal/model"

// builtins are the three composed operators spec.md §4.10 requires to be
// expressed in the DSL itself rather than as Go handlers: add_method,
// add_import, add_class_attribute. Each is a single primitive step with no
// legacy-op fallback step, so a failed primitive fails the operator.
var builtins = map[string]*model.ComposedOperator{
	"add_method": {
		Name:   "add_method",
		Params: []string{"class_target", "method_source"},
		Steps: []model.ComposedStep{
			{
				Primitive: "insert_after_node",
				Params: map[string]any{
					"target": "$class_target",
					"text":   "$method_source",
				},
				Bind: "result",
			},
		},
	},
	"add_import": {
		Name:   "add_import",
		Params: []string{"file_target", "module", "symbol"},
		Steps: []model.ComposedStep{
			{
				Primitive: "insert_before_node",
				Params: map[string]any{
					"target": "$file_target",
					"text":   "from $module import $symbol",
				},
				Bind: "result",
			},
		},
	},
	// add_class_attribute has no legacy fallback wired here: spec.md's
	// "optional legacy fallbacks" clause is satisfied at the plan level —
	// a caller whose structural insert fails can fall back to a
	// TierLegacy step in the same plan, which the interpreter dispatches
	// independently of this operator.
	"add_class_attribute": {
		Name:   "add_class_attribute",
		Params: []string{"class_body_first_child", "attribute_source"},
		Steps: []model.ComposedStep{
			{
				Primitive: "insert_before_node",
				Params: map[string]any{
					"target": "$class_body_first_child",
					"text":   "$attribute_source",
				},
				Bind: "result",
			},
		},
	},
}
