package aggs

import (
	"github.com/pkg/errors"
)

// SumAggregation totals its source's values within each enclosing
// bucket. Unlike bucketing aggregations it consumes every value a
// document contributes, not just distinct ones.
type SumAggregation struct {
	name   string
	field  string
	script string
	vtype  ValueType
}

// Sum creates a sum aggregation. Without a field or script it
// inherits the enclosing aggregation's source.
func Sum(name string) SumAggregation {
	return SumAggregation{name: name}
}

// Field sets the document field to total.
func (a SumAggregation) Field(field string) SumAggregation {
	a.field = field
	return a
}

// Script sets the source expression, as for terms aggregations.
func (a SumAggregation) Script(source string) SumAggregation {
	a.script = source
	return a
}

// ValueType declares the output type of a bare script source. Sums
// require a numeric source, so an undeclared script source is
// rejected.
func (a SumAggregation) ValueType(t ValueType) SumAggregation {
	a.vtype = t
	return a
}

// Name returns the aggregation name.
func (a SumAggregation) Name() string {
	return a.name
}

// Source renders the definition as a request body fragment.
func (a SumAggregation) Source() (map[string]any, error) {
	return metricSource("sum", a.field, a.script, a.vtype), nil
}

func (a SumAggregation) spec() sourceSpec {
	return sourceSpec{field: a.field, script: a.script, vtype: a.vtype}
}

func (a SumAggregation) check(parent *sourceSpec) error {
	return checkNumericSource("sum", a.name, a.spec(), parent)
}

func (a SumAggregation) build(bc buildContext) (calculator, error) {
	src, err := buildMetricSource("sum", a.name, a.spec(), bc)
	if err != nil {
		return nil, err
	}
	return &sumCalculator{src: src}, nil
}

type sumCalculator struct {
	src   *valueSource
	total float64
}

func (c *sumCalculator) collect(doc Document) error {
	values, err := c.src.values(doc)
	if err != nil {
		return err
	}
	for _, v := range values {
		c.total += v
	}
	return nil
}

func (c *sumCalculator) merge(other calculator) error {
	o, ok := other.(*sumCalculator)
	if !ok {
		return errors.Wrapf(ErrMergeInconsistency, "sum state merged with %T", other)
	}
	c.total += o.total
	return nil
}

func (c *sumCalculator) metric(name string) (float64, bool) {
	if name == "" || name == "value" {
		return c.total, true
	}
	return 0, false
}

func (c *sumCalculator) result() Result {
	return &MetricResult{Value: c.total}
}

// metricSource renders the shared field/script/value_type body of a
// single-source metric aggregation.
func metricSource(kind, field, script string, vtype ValueType) map[string]any {
	body := map[string]any{}
	if field != "" {
		body["field"] = field
	}
	if script != "" {
		body["script"] = map[string]any{"source": script}
	}
	if vtype != ValueTypeUnset {
		body["value_type"] = string(vtype)
	}
	return map[string]any{kind: body}
}

// checkNumericSource validates a numeric-only aggregation's source:
// it must resolve, its own script must compile, and the resolved
// source must be numeric.
func checkNumericSource(kind, name string, own sourceSpec, parent *sourceSpec) error {
	resolved, ok := resolveSpec(own, parent)
	if !ok {
		return invalidf("%s aggregation [%s] requires a field, a script, or an enclosing source to inherit", kind, name)
	}
	if own.defined() {
		if err := own.check(name); err != nil {
			return err
		}
	}
	if !resolved.numeric() {
		return invalidf("%s aggregation [%s] requires a numeric value source; declare a numeric value type for its script", kind, name)
	}
	return nil
}

func buildMetricSource(kind, name string, own sourceSpec, bc buildContext) (*valueSource, error) {
	resolved, ok := resolveSpec(own, bc.parent)
	if !ok {
		return nil, invalidf("%s aggregation [%s] requires a field, a script, or an enclosing source to inherit", kind, name)
	}
	if !resolved.numeric() {
		return nil, invalidf("%s aggregation [%s] requires a numeric value source; declare a numeric value type for its script", kind, name)
	}
	return newValueSource(resolved, bc.schema)
}
