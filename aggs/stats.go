package aggs

import (
	"math"

	"github.com/pkg/errors"
)

// StatsAggregation computes count, min, max, sum and average of its
// source's values within each enclosing bucket. Order paths must name
// one of its metrics, for example `price_stats.avg`.
type StatsAggregation struct {
	name   string
	field  string
	script string
	vtype  ValueType
}

// Stats creates a stats aggregation. Without a field or script it
// inherits the enclosing aggregation's source.
func Stats(name string) StatsAggregation {
	return StatsAggregation{name: name}
}

// Field sets the document field to describe.
func (a StatsAggregation) Field(field string) StatsAggregation {
	a.field = field
	return a
}

// Script sets the source expression.
func (a StatsAggregation) Script(source string) StatsAggregation {
	a.script = source
	return a
}

// ValueType declares the output type of a bare script source.
func (a StatsAggregation) ValueType(t ValueType) StatsAggregation {
	a.vtype = t
	return a
}

// Name returns the aggregation name.
func (a StatsAggregation) Name() string {
	return a.name
}

// Source renders the definition as a request body fragment.
func (a StatsAggregation) Source() (map[string]any, error) {
	return metricSource("stats", a.field, a.script, a.vtype), nil
}

func (a StatsAggregation) spec() sourceSpec {
	return sourceSpec{field: a.field, script: a.script, vtype: a.vtype}
}

func (a StatsAggregation) check(parent *sourceSpec) error {
	return checkNumericSource("stats", a.name, a.spec(), parent)
}

func (a StatsAggregation) build(bc buildContext) (calculator, error) {
	src, err := buildMetricSource("stats", a.name, a.spec(), bc)
	if err != nil {
		return nil, err
	}
	return &statsCalculator{src: src, min: math.Inf(1), max: math.Inf(-1)}, nil
}

func isStatsMetric(name string) bool {
	switch name {
	case "count", "min", "max", "avg", "sum":
		return true
	}
	return false
}

type statsCalculator struct {
	src   *valueSource
	count int64
	sum   float64
	min   float64
	max   float64
}

func (c *statsCalculator) collect(doc Document) error {
	values, err := c.src.values(doc)
	if err != nil {
		return err
	}
	for _, v := range values {
		c.observe(v)
	}
	return nil
}

func (c *statsCalculator) observe(v float64) {
	c.count++
	c.sum += v
	if v < c.min {
		c.min = v
	}
	if v > c.max {
		c.max = v
	}
}

func (c *statsCalculator) merge(other calculator) error {
	o, ok := other.(*statsCalculator)
	if !ok {
		return errors.Wrapf(ErrMergeInconsistency, "stats state merged with %T", other)
	}
	c.absorb(o)
	return nil
}

func (c *statsCalculator) absorb(o *statsCalculator) {
	c.count += o.count
	c.sum += o.sum
	if o.min < c.min {
		c.min = o.min
	}
	if o.max > c.max {
		c.max = o.max
	}
}

func (c *statsCalculator) avg() float64 {
	if c.count == 0 {
		return math.NaN()
	}
	return c.sum / float64(c.count)
}

func (c *statsCalculator) metric(name string) (float64, bool) {
	switch name {
	case "count":
		return float64(c.count), true
	case "min":
		return c.min, true
	case "max":
		return c.max, true
	case "sum":
		return c.sum, true
	case "avg":
		return c.avg(), true
	}
	return 0, false
}

func (c *statsCalculator) stats() StatsResult {
	min, max := c.min, c.max
	if c.count == 0 {
		min, max = math.NaN(), math.NaN()
	}
	return StatsResult{
		Count: c.count,
		Min:   min,
		Max:   max,
		Sum:   c.sum,
		Avg:   c.avg(),
	}
}

func (c *statsCalculator) result() Result {
	r := c.stats()
	return &r
}

// ExtendedStatsAggregation adds sum of squares, variance and standard
// deviation to the stats metrics. Variance pools across shards as
// E[X^2] - E[X]^2, so merged results match a single-shard run exactly.
type ExtendedStatsAggregation struct {
	name   string
	field  string
	script string
	vtype  ValueType
}

// ExtendedStats creates an extended stats aggregation. Without a
// field or script it inherits the enclosing aggregation's source.
func ExtendedStats(name string) ExtendedStatsAggregation {
	return ExtendedStatsAggregation{name: name}
}

// Field sets the document field to describe.
func (a ExtendedStatsAggregation) Field(field string) ExtendedStatsAggregation {
	a.field = field
	return a
}

// Script sets the source expression.
func (a ExtendedStatsAggregation) Script(source string) ExtendedStatsAggregation {
	a.script = source
	return a
}

// ValueType declares the output type of a bare script source.
func (a ExtendedStatsAggregation) ValueType(t ValueType) ExtendedStatsAggregation {
	a.vtype = t
	return a
}

// Name returns the aggregation name.
func (a ExtendedStatsAggregation) Name() string {
	return a.name
}

// Source renders the definition as a request body fragment.
func (a ExtendedStatsAggregation) Source() (map[string]any, error) {
	return metricSource("extended_stats", a.field, a.script, a.vtype), nil
}

func (a ExtendedStatsAggregation) spec() sourceSpec {
	return sourceSpec{field: a.field, script: a.script, vtype: a.vtype}
}

func (a ExtendedStatsAggregation) check(parent *sourceSpec) error {
	return checkNumericSource("extended stats", a.name, a.spec(), parent)
}

func (a ExtendedStatsAggregation) build(bc buildContext) (calculator, error) {
	src, err := buildMetricSource("extended stats", a.name, a.spec(), bc)
	if err != nil {
		return nil, err
	}
	return &extendedStatsCalculator{
		statsCalculator: statsCalculator{src: src, min: math.Inf(1), max: math.Inf(-1)},
	}, nil
}

func isExtendedStatsMetric(name string) bool {
	if isStatsMetric(name) {
		return true
	}
	switch name {
	case "sum_of_squares", "variance", "std_deviation":
		return true
	}
	return false
}

type extendedStatsCalculator struct {
	statsCalculator
	sumOfSquares float64
}

func (c *extendedStatsCalculator) collect(doc Document) error {
	values, err := c.src.values(doc)
	if err != nil {
		return err
	}
	for _, v := range values {
		c.observe(v)
		c.sumOfSquares += v * v
	}
	return nil
}

func (c *extendedStatsCalculator) merge(other calculator) error {
	o, ok := other.(*extendedStatsCalculator)
	if !ok {
		return errors.Wrapf(ErrMergeInconsistency, "extended stats state merged with %T", other)
	}
	c.absorb(&o.statsCalculator)
	c.sumOfSquares += o.sumOfSquares
	return nil
}

func (c *extendedStatsCalculator) variance() float64 {
	if c.count == 0 {
		return math.NaN()
	}
	avg := c.avg()
	return c.sumOfSquares/float64(c.count) - avg*avg
}

func (c *extendedStatsCalculator) metric(name string) (float64, bool) {
	switch name {
	case "sum_of_squares":
		return c.sumOfSquares, true
	case "variance":
		return c.variance(), true
	case "std_deviation":
		return math.Sqrt(c.variance()), true
	}
	return c.statsCalculator.metric(name)
}

func (c *extendedStatsCalculator) result() Result {
	variance := c.variance()
	sigma := math.Sqrt(variance)
	avg := c.avg()
	return &ExtendedStatsResult{
		StatsResult:            c.stats(),
		SumOfSquares:           c.sumOfSquares,
		Variance:               variance,
		StdDeviation:           sigma,
		StdDeviationBoundUpper: avg + 2*sigma,
		StdDeviationBoundLower: avg - 2*sigma,
	}
}
