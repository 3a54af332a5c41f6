package model

import (
	"encoding/json"
	"fmt"
)

// knownFragmentFields lists the struct tags handled directly by Fragment's
// named fields; everything else collapses into Properties so new fragment
// kinds never require a Go struct change (mirrors the teacher's tolerance
// for provider-specific extra attributes in core.NodeMapping.Attributes).
var knownFragmentFields = map[string]bool{
	"kind": true, "children": true, "condition": true, "value": true,
	"name": true, "target": true, "except_type": true, "alias": true,
}

// UnmarshalJSON implements a permissive decode: named properties populate
// their struct field, everything else lands in Properties as a string.
func (f *Fragment) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("fragment: %w", err)
	}

	type alias Fragment
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("fragment: %w", err)
	}
	*f = Fragment(a)

	f.Properties = make(map[string]string)
	for k, v := range raw {
		if knownFragmentFields[k] {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			f.Properties[k] = s
			continue
		}
		f.Properties[k] = string(v)
	}
	return nil
}

// Prop returns a named property, checking the typed fields first and
// falling back to the generic Properties bag.
func (f *Fragment) Prop(name string) (string, bool) {
	switch name {
	case "condition":
		return f.Condition, f.Condition != ""
	case "value":
		return f.Value, f.Value != ""
	case "name":
		return f.Name, f.Name != ""
	case "target":
		return f.Target, f.Target != ""
	case "except_type":
		return f.ExceptType, f.ExceptType != ""
	case "alias":
		return f.Alias, f.Alias != ""
	}
	v, ok := f.Properties[name]
	return v, ok
}
