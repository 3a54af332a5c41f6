package model

import (
	"encoding/json"
	"testing"
)

func TestDetectTierPrecedence(t *testing.T) {
	tests := []struct {
		name string
		step Step
		want Tier
	}{
		{"surgery op wins", Step{Op: "replace_node", Template: "guard_clause"}, TierSurgery},
		{"template when no surgery op", Step{Template: "guard_clause"}, TierTemplate},
		{"fragment when no op or template", Step{FragmentStep: &Fragment{Kind: "function"}}, TierFragment},
		{"legacy fallback", Step{Op: "replace_pattern"}, TierLegacy},
		{"legacy when nothing set", Step{}, TierLegacy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectTier(&tt.step); got != tt.want {
				t.Errorf("DetectTier() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLocatorIsSexp(t *testing.T) {
	if (&Locator{Type: "sexp"}).IsSexp() != true {
		t.Error("Type=sexp should report IsSexp() true")
	}
	if (&Locator{Kind: KindFunction}).IsSexp() != false {
		t.Error("structured locator should report IsSexp() false")
	}
	var nilLoc *Locator
	if nilLoc.IsSexp() {
		t.Error("nil locator should report IsSexp() false")
	}
}

func TestVerificationResultAccumulation(t *testing.T) {
	v := NewVerificationResult()
	v.AddWarning("just a warning")
	v.Finalize()
	if !v.Passed {
		t.Error("warnings alone should not fail Finalize")
	}

	v.AddError("a blocking problem")
	v.Finalize()
	if v.Passed {
		t.Error("an error should fail Finalize")
	}
	if len(v.Errors) != 1 || len(v.Warnings) != 1 {
		t.Errorf("Errors/Warnings = %v/%v", v.Errors, v.Warnings)
	}
}

func TestFragmentUnmarshalJSONSplitsKnownAndExtraProps(t *testing.T) {
	raw := `{"kind":"if","condition":"x > 0","indent_body":"true","extra_flag":"yes"}`
	var f Fragment
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if f.Kind != "if" || f.Condition != "x > 0" {
		t.Errorf("known fields not populated: kind=%q condition=%q", f.Kind, f.Condition)
	}
	if v, ok := f.Prop("extra_flag"); !ok || v != "yes" {
		t.Errorf("Prop(extra_flag) = (%q, %v), want (yes, true)", v, ok)
	}
	if v, ok := f.Prop("condition"); !ok || v != "x > 0" {
		t.Errorf("Prop(condition) = (%q, %v)", v, ok)
	}
	if _, ok := f.Prop("nonexistent"); ok {
		t.Error("Prop for an absent property should report ok=false")
	}
}

func TestPlanRunAndLegacyOpTableNames(t *testing.T) {
	if PlanRun{}.TableName() != "plan_runs" {
		t.Errorf("PlanRun.TableName() = %q", PlanRun{}.TableName())
	}
	if LegacyOp{}.TableName() != "legacy_ops" {
		t.Errorf("LegacyOp.TableName() = %q", LegacyOp{}.TableName())
	}
}
