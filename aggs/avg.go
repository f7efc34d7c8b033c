package aggs

import (
	"math"

	"github.com/pkg/errors"
)

// AvgAggregation averages its source's values within each enclosing
// bucket.
type AvgAggregation struct {
	name   string
	field  string
	script string
	vtype  ValueType
}

// Avg creates an average aggregation. Without a field or script it
// inherits the enclosing aggregation's source.
func Avg(name string) AvgAggregation {
	return AvgAggregation{name: name}
}

// Field sets the document field to average.
func (a AvgAggregation) Field(field string) AvgAggregation {
	a.field = field
	return a
}

// Script sets the source expression.
func (a AvgAggregation) Script(source string) AvgAggregation {
	a.script = source
	return a
}

// ValueType declares the output type of a bare script source.
func (a AvgAggregation) ValueType(t ValueType) AvgAggregation {
	a.vtype = t
	return a
}

// Name returns the aggregation name.
func (a AvgAggregation) Name() string {
	return a.name
}

// Source renders the definition as a request body fragment.
func (a AvgAggregation) Source() (map[string]any, error) {
	return metricSource("avg", a.field, a.script, a.vtype), nil
}

func (a AvgAggregation) spec() sourceSpec {
	return sourceSpec{field: a.field, script: a.script, vtype: a.vtype}
}

func (a AvgAggregation) check(parent *sourceSpec) error {
	return checkNumericSource("avg", a.name, a.spec(), parent)
}

func (a AvgAggregation) build(bc buildContext) (calculator, error) {
	src, err := buildMetricSource("avg", a.name, a.spec(), bc)
	if err != nil {
		return nil, err
	}
	return &avgCalculator{src: src}, nil
}

type avgCalculator struct {
	src   *valueSource
	count int64
	sum   float64
}

func (c *avgCalculator) collect(doc Document) error {
	values, err := c.src.values(doc)
	if err != nil {
		return err
	}
	for _, v := range values {
		c.count++
		c.sum += v
	}
	return nil
}

func (c *avgCalculator) merge(other calculator) error {
	o, ok := other.(*avgCalculator)
	if !ok {
		return errors.Wrapf(ErrMergeInconsistency, "avg state merged with %T", other)
	}
	c.count += o.count
	c.sum += o.sum
	return nil
}

func (c *avgCalculator) value() float64 {
	if c.count == 0 {
		return math.NaN()
	}
	return c.sum / float64(c.count)
}

func (c *avgCalculator) metric(name string) (float64, bool) {
	if name == "" || name == "value" {
		return c.value(), true
	}
	return 0, false
}

func (c *avgCalculator) result() Result {
	return &MetricResult{Value: c.value()}
}
