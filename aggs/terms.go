package aggs

import (
	"math"

	"github.com/pkg/errors"
)

// DefaultSize bounds a terms result when no size is set.
const DefaultSize = 10

// unboundedSize renders a size of 0 for engines that reject it; it
// matches the bucket ceiling mainstream engines enforce anyway.
const unboundedSize = 65536

// TermsAggregation groups documents into one bucket per distinct
// value its source produces.
//
// The source is a numeric field, a field with a per-value transform
// script, or a document script. A sub-aggregation declaring no source
// of its own inherits the enclosing terms aggregation's source,
// including its script.
//
// Example:
//
//	// Count documents per price, most common first, with the
//	// average weight within each price bucket.
//	agg := aggs.Terms("prices").
//	    Field("price").
//	    SubAggregation(aggs.Avg("weight_avg").Field("weight")).
//	    OrderBy(aggs.ByCount(false))
type TermsAggregation struct {
	name        string
	field       string
	script      string
	vtype       ValueType
	size        int
	minDocCount int64
	order       Order
	subs        []Aggregation
}

// Terms creates a terms aggregation. Defaults: size 10, minimum
// document count 1, buckets ordered by descending document count.
func Terms(name string) TermsAggregation {
	return TermsAggregation{
		name:        name,
		size:        DefaultSize,
		minDocCount: 1,
		order:       ByCount(false),
	}
}

// Field sets the document field to bucket by.
func (a TermsAggregation) Field(field string) TermsAggregation {
	a.field = field
	return a
}

// Script sets the source expression. Together with a field it is a
// per-value transform with the raw value bound as `_value`; on its
// own it is evaluated once per document.
func (a TermsAggregation) Script(source string) TermsAggregation {
	a.script = source
	return a
}

// ValueType declares the output type of a bare script source.
// Numeric-only sub-aggregations over a script source require a
// numeric declaration.
func (a TermsAggregation) ValueType(t ValueType) TermsAggregation {
	a.vtype = t
	return a
}

// Size bounds the number of buckets returned; 0 returns every bucket
// observed.
func (a TermsAggregation) Size(size int) TermsAggregation {
	a.size = size
	return a
}

// MinDocCount drops buckets below the threshold. Pruning happens
// after the cross-shard merge, so low-count shard-local buckets still
// combine before they are judged.
func (a TermsAggregation) MinDocCount(n int64) TermsAggregation {
	a.minDocCount = n
	return a
}

// OrderBy sets the bucket order.
func (a TermsAggregation) OrderBy(order Order) TermsAggregation {
	a.order = order
	return a
}

// SubAggregation adds nested aggregations computed within each
// bucket.
func (a TermsAggregation) SubAggregation(subs ...Aggregation) TermsAggregation {
	combined := make([]Aggregation, 0, len(a.subs)+len(subs))
	combined = append(combined, a.subs...)
	combined = append(combined, subs...)
	a.subs = combined
	return a
}

// Name returns the aggregation name.
func (a TermsAggregation) Name() string {
	return a.name
}

// SubAggregations returns the nested aggregation definitions.
func (a TermsAggregation) SubAggregations() []Aggregation {
	return a.subs
}

// Source renders the definition as a request body fragment. A size of
// 0 renders as the engine bucket ceiling, since remote engines reject
// a literal 0.
func (a TermsAggregation) Source() (map[string]any, error) {
	body := map[string]any{
		"min_doc_count": a.minDocCount,
		"order":         a.order.source(),
	}
	if a.field != "" {
		body["field"] = a.field
	}
	if a.script != "" {
		body["script"] = map[string]any{"source": a.script}
	}
	if a.vtype != ValueTypeUnset {
		body["value_type"] = string(a.vtype)
	}
	if a.size > 0 {
		body["size"] = a.size
	} else {
		body["size"] = unboundedSize
	}

	out := map[string]any{"terms": body}
	if len(a.subs) > 0 {
		subs, err := subSources(a.subs)
		if err != nil {
			return nil, err
		}
		out["aggs"] = subs
	}
	return out, nil
}

func (a TermsAggregation) spec() sourceSpec {
	return sourceSpec{field: a.field, script: a.script, vtype: a.vtype}
}

func (a TermsAggregation) check(parent *sourceSpec) error {
	if a.size < 0 {
		return invalidf("terms aggregation [%s] size must not be negative", a.name)
	}
	if a.minDocCount < 0 {
		return invalidf("terms aggregation [%s] minimum document count must not be negative", a.name)
	}

	resolved, ok := resolveSpec(a.spec(), parent)
	if !ok {
		return invalidf("terms aggregation [%s] requires a field or a script", a.name)
	}
	if a.spec().defined() {
		if err := a.spec().check(a.name); err != nil {
			return err
		}
	}

	if err := a.order.validate(a.name, a.subs); err != nil {
		return err
	}
	return validateAll(&resolved, a.subs)
}

func (a TermsAggregation) build(bc buildContext) (calculator, error) {
	resolved, ok := resolveSpec(a.spec(), bc.parent)
	if !ok {
		return nil, invalidf("terms aggregation [%s] requires a field or a script", a.name)
	}
	src, err := newValueSource(resolved, bc.schema)
	if err != nil {
		return nil, err
	}

	return &termsCalculator{
		def:   a,
		src:   src,
		table: newBucketTable(a.subs, buildContext{parent: &resolved, schema: bc.schema}),
	}, nil
}

func subSources(defs []Aggregation) (map[string]any, error) {
	subs := make(map[string]any, len(defs))
	for _, def := range defs {
		src, err := def.Source()
		if err != nil {
			return nil, err
		}
		subs[def.Name()] = src
	}
	return subs, nil
}

// termsCalculator is one shard's terms aggregation state.
type termsCalculator struct {
	def     TermsAggregation
	src     *valueSource
	table   *bucketTable
	missing int64
}

// collect folds one document: each distinct key among the document's
// values counts the document once into that key's bucket and feeds
// the bucket's nested aggregations. A document contributing several
// equal keys still counts once.
func (t *termsCalculator) collect(doc Document) error {
	values, err := t.src.values(doc)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		t.missing++
		return nil
	}

	if len(values) == 1 {
		b, err := t.table.get(values[0])
		if err != nil {
			return err
		}
		return b.collect(doc)
	}

	seen := make(map[uint64]struct{}, len(values))
	for _, v := range values {
		bits := math.Float64bits(v)
		if _, ok := seen[bits]; ok {
			continue
		}
		seen[bits] = struct{}{}

		b, err := t.table.get(v)
		if err != nil {
			return err
		}
		if err := b.collect(doc); err != nil {
			return err
		}
	}
	return nil
}

func (t *termsCalculator) merge(other calculator) error {
	o, ok := other.(*termsCalculator)
	if !ok {
		return errors.Wrapf(ErrMergeInconsistency, "terms state merged with %T", other)
	}
	t.missing += o.missing
	return t.table.merge(o.table)
}

// result prunes merged buckets below the minimum document count, then
// orders and bounds the survivors. Documents in dropped buckets are
// reported as the other-document count.
func (t *termsCalculator) result() Result {
	buckets := t.table.all()

	var other int64
	if t.def.minDocCount > 0 {
		kept := buckets[:0]
		for _, b := range buckets {
			if b.docCount >= t.def.minDocCount {
				kept = append(kept, b)
				continue
			}
			other += b.docCount
		}
		buckets = kept
	}

	selected, dropped := selectTop(buckets, t.def.size, t.def.order)
	other += dropped

	out := make([]*TermsBucket, len(selected))
	for i, b := range selected {
		out[i] = &TermsBucket{
			Key:          b.key,
			DocCount:     b.docCount,
			Aggregations: subResults(b.subs),
		}
	}
	return &TermsResult{
		Buckets:         out,
		OtherDocCount:   other,
		MissingDocCount: t.missing,
	}
}
