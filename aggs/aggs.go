// Package aggs implements bucket and metric aggregations over
// numeric document values: value sources with optional script
// transforms, lazily growing bucket tables, custom bucket ordering,
// bounded top-N selection, and cross-shard merging.
//
// Definitions are immutable builder values in the style of a search
// engine's aggregation DSL:
//
//	agg := aggs.Terms("prices").
//	    Field("price").
//	    Size(0).
//	    OrderBy(aggs.ByTerm(true)).
//	    SubAggregation(aggs.Stats("price_stats").Field("price"))
//
// A definition tree is validated once per request and then turned
// into one Collector per shard. Collectors fold matched documents,
// merge pairwise across shards, and finalize into the caller-visible
// result tree.
package aggs

import (
	"github.com/pkg/errors"
)

// Document is the read view a collector has of one matched document.
type Document interface {
	// FieldValues returns the document's numeric values for a field,
	// empty when it has none.
	FieldValues(name string) []float64
	// FieldStrings returns the document's string values for a field.
	FieldStrings(name string) []string
}

// Predicate matches documents for filter aggregations.
type Predicate interface {
	Matches(Document) bool
}

// Schema exposes the mapping metadata of the index a collector runs
// against. A field-backed source over a schema that does not map the
// field produces an empty bucket set instead of failing.
type Schema interface {
	HasNumericField(name string) bool
}

// Aggregation is a built aggregation definition.
//
// Definitions are immutable values; builder methods return modified
// copies, so partial definitions can be shared and extended freely.
type Aggregation interface {
	// Name identifies the aggregation in the result tree.
	Name() string
	// Source renders the definition as a search request body
	// fragment, for backends that execute remotely.
	Source() (map[string]any, error)

	check(parent *sourceSpec) error
	build(bc buildContext) (calculator, error)
}

// ValueType declares how a scripted source's output is typed. A
// script without a numeric declaration is opaque, and numeric-only
// consumers of an opaque source are rejected during validation.
type ValueType string

const (
	ValueTypeUnset  ValueType = ""
	ValueTypeDouble ValueType = "double"
	ValueTypeLong   ValueType = "long"
	ValueTypeString ValueType = "string"
)

func (t ValueType) numeric() bool {
	return t == ValueTypeDouble || t == ValueTypeLong
}

// calculator is per-shard aggregation state. Merging requires both
// sides to be built from the same definition.
type calculator interface {
	collect(doc Document) error
	merge(other calculator) error
	result() Result
}

// metricCalculator additionally resolves named metrics, for order
// paths referencing a sub-aggregation.
type metricCalculator interface {
	calculator
	metric(name string) (float64, bool)
}

type buildContext struct {
	parent *sourceSpec
	schema Schema
}

// Validate checks a definition tree before any document is scanned.
// Order paths must resolve to exactly one numeric metric, and
// numeric-only aggregations must sit on numeric sources.
func Validate(defs ...Aggregation) error {
	return validateAll(nil, defs)
}

func validateAll(parent *sourceSpec, defs []Aggregation) error {
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		if def.Name() == "" {
			return invalidf("aggregation name must not be empty")
		}
		if _, ok := seen[def.Name()]; ok {
			return invalidf("duplicate aggregation name [%s]", def.Name())
		}
		seen[def.Name()] = struct{}{}

		if err := def.check(parent); err != nil {
			return err
		}
	}
	return nil
}

// Collector executes a set of aggregations over one shard's matched
// documents. It is not safe for concurrent use; run one Collector per
// shard and merge afterwards.
type Collector struct {
	names []string
	calcs map[string]calculator
}

// NewCollector builds per-shard state for the given definitions,
// resolved against the shard's schema. The definitions should have
// been validated first; build failures are reported as errors either
// way.
func NewCollector(schema Schema, defs ...Aggregation) (*Collector, error) {
	c := &Collector{calcs: make(map[string]calculator, len(defs))}
	bc := buildContext{schema: schema}

	for _, def := range defs {
		calc, err := def.build(bc)
		if err != nil {
			return nil, errors.Wrapf(err, "aggregation [%s]", def.Name())
		}
		c.names = append(c.names, def.Name())
		c.calcs[def.Name()] = calc
	}

	return c, nil
}

// Collect folds one matched document into every aggregation.
func (c *Collector) Collect(doc Document) error {
	for _, name := range c.names {
		if err := c.calcs[name].collect(doc); err != nil {
			return errors.Wrapf(err, "aggregation [%s]", name)
		}
	}
	return nil
}

// Merge combines another shard's state into this one. Both collectors
// must have been built from the same definitions.
func (c *Collector) Merge(other *Collector) error {
	for _, name := range c.names {
		oc, ok := other.calcs[name]
		if !ok {
			return errors.Wrapf(ErrMergeInconsistency, "aggregation [%s] missing from merged shard", name)
		}
		if err := c.calcs[name].merge(oc); err != nil {
			return errors.Wrapf(err, "aggregation [%s]", name)
		}
	}
	return nil
}

// Finalize prunes, orders and bounds the merged state into the
// result tree. Every requested aggregation is present in the returned
// map, even when it collected nothing.
func (c *Collector) Finalize() Results {
	results := make(Results, len(c.names))
	for _, name := range c.names {
		results[name] = c.calcs[name].result()
	}
	return results
}

func buildSubs(defs []Aggregation, bc buildContext) (map[string]calculator, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	subs := make(map[string]calculator, len(defs))
	for _, def := range defs {
		calc, err := def.build(bc)
		if err != nil {
			return nil, errors.Wrapf(err, "sub-aggregation [%s]", def.Name())
		}
		subs[def.Name()] = calc
	}
	return subs, nil
}

func subResults(subs map[string]calculator) Results {
	if len(subs) == 0 {
		return Results{}
	}
	results := make(Results, len(subs))
	for name, calc := range subs {
		results[name] = calc.result()
	}
	return results
}
