package aggs

import (
	"github.com/pkg/errors"

	"github.com/reveald/bucketd/script"
)

// sourceSpec is the resolved value-source configuration of one
// aggregation: a field with an optional per-value script, or a
// document script on its own. A definition declaring neither inherits
// the enclosing aggregation's spec.
type sourceSpec struct {
	field  string
	script string
	vtype  ValueType
}

func (s sourceSpec) defined() bool {
	return s.field != "" || s.script != ""
}

// numeric reports whether values from this source may feed
// numeric-only consumers. Field-backed sources are numeric by
// mapping; a bare script is numeric only when its value type is
// declared so.
func (s sourceSpec) numeric() bool {
	if s.field != "" {
		return true
	}
	return s.vtype.numeric()
}

// check validates the source definition itself: the script must
// compile, and a `_value` reference requires a field to bind raw
// values from.
func (s sourceSpec) check(owner string) error {
	if !s.defined() {
		return invalidf("aggregation [%s] requires a field or a script", owner)
	}
	if s.script == "" {
		return nil
	}

	sc, err := script.Compile(s.script)
	if err != nil {
		return invalidf("aggregation [%s]: %v", owner, err)
	}
	if sc.UsesValue() && s.field == "" {
		return invalidf("aggregation [%s] script references _value but no field is set", owner)
	}
	return nil
}

// resolveSpec picks the definition's own spec, falling back to the
// enclosing aggregation's when it declares no source.
func resolveSpec(own sourceSpec, parent *sourceSpec) (sourceSpec, bool) {
	if own.defined() {
		return own, true
	}
	if parent != nil && parent.defined() {
		return *parent, true
	}
	return sourceSpec{}, false
}

// valueSource extracts the numeric values one document contributes.
type valueSource struct {
	field    string
	sc       *script.Script
	unmapped bool
}

func newValueSource(spec sourceSpec, schema Schema) (*valueSource, error) {
	src := &valueSource{field: spec.field}

	if spec.script != "" {
		sc, err := script.Compile(spec.script)
		if err != nil {
			return nil, errors.Wrap(err, "compiling value source script")
		}
		src.sc = sc
	}

	if spec.field != "" && schema != nil && !schema.HasNumericField(spec.field) {
		src.unmapped = true
	}

	return src, nil
}

// values yields the document's contribution: raw field values, field
// values mapped through a per-value script, or a document script's
// output. A source over an unmapped field yields nothing, so the
// whole aggregation stays empty for that index.
func (v *valueSource) values(doc Document) ([]float64, error) {
	if v.unmapped {
		return nil, nil
	}

	if v.field == "" {
		return v.sc.Eval(doc)
	}

	raw := doc.FieldValues(v.field)
	if v.sc == nil || len(raw) == 0 {
		return raw, nil
	}

	out := make([]float64, 0, len(raw))
	for _, value := range raw {
		mapped, err := v.sc.EvalValue(doc, value)
		if err != nil {
			return nil, err
		}
		out = append(out, mapped...)
	}
	return out, nil
}
