package aggs

import (
	"github.com/pkg/errors"
)

// FilterAggregation narrows the enclosing scope to documents matching
// a predicate, counting them into a single bucket with its own nested
// aggregations. It produces no metric, so order paths cannot
// reference it.
type FilterAggregation struct {
	name      string
	predicate Predicate
	subs      []Aggregation
}

// Filter creates a filter aggregation over the given predicate.
func Filter(name string, predicate Predicate) FilterAggregation {
	return FilterAggregation{name: name, predicate: predicate}
}

// SubAggregation adds nested aggregations computed within the
// filtered scope.
func (a FilterAggregation) SubAggregation(subs ...Aggregation) FilterAggregation {
	combined := make([]Aggregation, 0, len(a.subs)+len(subs))
	combined = append(combined, a.subs...)
	combined = append(combined, subs...)
	a.subs = combined
	return a
}

// Name returns the aggregation name.
func (a FilterAggregation) Name() string {
	return a.name
}

// SubAggregations returns the nested aggregation definitions.
func (a FilterAggregation) SubAggregations() []Aggregation {
	return a.subs
}

// Source renders the definition as a request body fragment. The
// predicate must know how to render itself for a remote engine.
func (a FilterAggregation) Source() (map[string]any, error) {
	renderer, ok := a.predicate.(interface{ Source() map[string]any })
	if !ok {
		return nil, errors.Errorf("filter aggregation [%s]: predicate %T cannot render a remote query", a.name, a.predicate)
	}

	out := map[string]any{"filter": renderer.Source()}
	if len(a.subs) > 0 {
		subs, err := subSources(a.subs)
		if err != nil {
			return nil, err
		}
		out["aggs"] = subs
	}
	return out, nil
}

func (a FilterAggregation) check(parent *sourceSpec) error {
	if a.predicate == nil {
		return invalidf("filter aggregation [%s] requires a predicate", a.name)
	}
	return validateAll(parent, a.subs)
}

func (a FilterAggregation) build(bc buildContext) (calculator, error) {
	subs, err := buildSubs(a.subs, bc)
	if err != nil {
		return nil, err
	}
	return &filterCalculator{def: a, subs: subs}, nil
}

type filterCalculator struct {
	def      FilterAggregation
	docCount int64
	subs     map[string]calculator
}

func (f *filterCalculator) collect(doc Document) error {
	if !f.def.predicate.Matches(doc) {
		return nil
	}

	f.docCount++
	for name, sub := range f.subs {
		if err := sub.collect(doc); err != nil {
			return errors.Wrapf(err, "sub-aggregation [%s]", name)
		}
	}
	return nil
}

func (f *filterCalculator) merge(other calculator) error {
	o, ok := other.(*filterCalculator)
	if !ok {
		return errors.Wrapf(ErrMergeInconsistency, "filter state merged with %T", other)
	}

	f.docCount += o.docCount
	for name, osub := range o.subs {
		sub, ok := f.subs[name]
		if !ok {
			return errors.Wrapf(ErrMergeInconsistency, "sub-aggregation [%s] missing from filter state", name)
		}
		if err := sub.merge(osub); err != nil {
			return errors.Wrapf(err, "sub-aggregation [%s]", name)
		}
	}
	return nil
}

func (f *filterCalculator) result() Result {
	return &FilterResult{
		DocCount:     f.docCount,
		Aggregations: subResults(f.subs),
	}
}
