package value

import "fmt"

// Fact is a Value of kind object tagged with a fact type name. The opaque
// handle itself is owned by working memory (internal/wm), not here; Fact is
// the payload working memory stores under a handle.
//
// CorrelationID is an external, globally-unique identifier distinct from
// the handle: handles are per-WorkingMemory-instance and never reused, but
// callers correlating facts with an outside system (a log line, a trace,
// an upstream event id) need an identifier stable across resets and
// independent of any one engine instance. internal/wm.Insert assigns one
// on every insert; it plays no role in matching or equality.
type Fact struct {
	Type          string
	Data          Value
	CorrelationID string
}

// Get navigates a dotted path inside the fact's data, e.g.
// "Customer.address.city".
func (f Fact) Get(path string) (Value, bool, error) {
	return f.Data.Get(path)
}

// Template is a named schema declaring field names, types, required flag,
// and optional defaults, as described in spec §3.
type Template struct {
	Name   string
	Fields []FieldSpec
}

// FieldSpec describes one declared template field.
type FieldSpec struct {
	Name     string
	Kind     Kind
	Required bool
	Default  Value
	HasDefault bool
}

// TemplateViolation reports a fact that failed validation against its
// declared template.
type TemplateViolation struct {
	Template string
	Field    string
	Reason   string
}

func (e *TemplateViolation) Error() string {
	return fmt.Sprintf("template %q violation on field %q: %s", e.Template, e.Field, e.Reason)
}

// Validate checks presence of required fields and type-compatibility, and
// fills in defaults for missing optional fields. It returns the
// (possibly-defaulted) object Value, or a *TemplateViolation.
func (t Template) Validate(data Value) (Value, error) {
	if data.Kind() != KindObject {
		return data, &TemplateViolation{Template: t.Name, Field: "", Reason: "fact data must be an object"}
	}
	out := data
	for _, spec := range t.Fields {
		v, ok := out.Field1(spec.Name)
		if !ok {
			if spec.Required {
				return data, &TemplateViolation{Template: t.Name, Field: spec.Name, Reason: "required field missing"}
			}
			if spec.HasDefault {
				out.Set1(spec.Name, spec.Default)
			}
			continue
		}
		if !compatible(v.Kind(), spec.Kind) {
			if coerced, err := Coerce(v, spec.Kind); err == nil {
				out.Set1(spec.Name, coerced)
				continue
			}
			return data, &TemplateViolation{
				Template: t.Name,
				Field:    spec.Name,
				Reason:   fmt.Sprintf("expected %s, got %s", spec.Kind, v.Kind()),
			}
		}
	}
	return out, nil
}

func compatible(got, want Kind) bool {
	if got == want {
		return true
	}
	// null is compatible with any declared kind; absence is handled by
	// Required above, an explicit null value is accepted as "no value yet".
	return got == KindNull
}

// Deffacts is a named ordered list of (fact-type, object) pairs asserted on
// working-memory reset.
type Deffacts struct {
	Name  string
	Facts []Fact
}

// Global is a named Value cell, optionally read-only.
type Global struct {
	Name     string
	Value    Value
	ReadOnly bool
}
