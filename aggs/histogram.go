package aggs

import (
	"math"
	"slices"

	"github.com/pkg/errors"
)

// HistogramAggregation buckets documents into fixed numeric
// intervals: a value v lands in the bucket keyed
// floor(v / interval) * interval. With a minimum document count of 0,
// empty intervals between the observed extremes are materialized,
// each exposing fully-formed empty sub-aggregation results.
type HistogramAggregation struct {
	name        string
	field       string
	interval    float64
	minDocCount int64
	subs        []Aggregation
}

// Histogram creates a histogram aggregation. Buckets are ordered by
// key ascending; empty intervals are kept by default.
func Histogram(name string) HistogramAggregation {
	return HistogramAggregation{name: name}
}

// Field sets the document field to bucket by.
func (a HistogramAggregation) Field(field string) HistogramAggregation {
	a.field = field
	return a
}

// Interval sets the bucket width.
func (a HistogramAggregation) Interval(interval float64) HistogramAggregation {
	a.interval = interval
	return a
}

// MinDocCount drops buckets below the threshold; 0 keeps and
// materializes empty intervals.
func (a HistogramAggregation) MinDocCount(n int64) HistogramAggregation {
	a.minDocCount = n
	return a
}

// SubAggregation adds nested aggregations computed within each
// bucket.
func (a HistogramAggregation) SubAggregation(subs ...Aggregation) HistogramAggregation {
	combined := make([]Aggregation, 0, len(a.subs)+len(subs))
	combined = append(combined, a.subs...)
	combined = append(combined, subs...)
	a.subs = combined
	return a
}

// Name returns the aggregation name.
func (a HistogramAggregation) Name() string {
	return a.name
}

// SubAggregations returns the nested aggregation definitions.
func (a HistogramAggregation) SubAggregations() []Aggregation {
	return a.subs
}

// Source renders the definition as a request body fragment.
func (a HistogramAggregation) Source() (map[string]any, error) {
	out := map[string]any{
		"histogram": map[string]any{
			"field":         a.field,
			"interval":      a.interval,
			"min_doc_count": a.minDocCount,
		},
	}
	if len(a.subs) > 0 {
		subs, err := subSources(a.subs)
		if err != nil {
			return nil, err
		}
		out["aggs"] = subs
	}
	return out, nil
}

func (a HistogramAggregation) spec() sourceSpec {
	return sourceSpec{field: a.field}
}

func (a HistogramAggregation) check(parent *sourceSpec) error {
	if a.field == "" {
		return invalidf("histogram aggregation [%s] requires a field", a.name)
	}
	if !(a.interval > 0) {
		return invalidf("histogram aggregation [%s] requires a positive interval", a.name)
	}
	if a.minDocCount < 0 {
		return invalidf("histogram aggregation [%s] minimum document count must not be negative", a.name)
	}

	resolved := a.spec()
	return validateAll(&resolved, a.subs)
}

func (a HistogramAggregation) build(bc buildContext) (calculator, error) {
	resolved := a.spec()
	src, err := newValueSource(resolved, bc.schema)
	if err != nil {
		return nil, err
	}
	return &histogramCalculator{
		def:   a,
		src:   src,
		table: newBucketTable(a.subs, buildContext{parent: &resolved, schema: bc.schema}),
	}, nil
}

type histogramCalculator struct {
	def   HistogramAggregation
	src   *valueSource
	table *bucketTable
}

func (h *histogramCalculator) key(v float64) float64 {
	return math.Floor(v/h.def.interval) * h.def.interval
}

func (h *histogramCalculator) collect(doc Document) error {
	values, err := h.src.values(doc)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}

	seen := make(map[uint64]struct{}, len(values))
	for _, v := range values {
		key := h.key(v)
		bits := math.Float64bits(key)
		if _, ok := seen[bits]; ok {
			continue
		}
		seen[bits] = struct{}{}

		b, err := h.table.get(key)
		if err != nil {
			return err
		}
		if err := b.collect(doc); err != nil {
			return err
		}
	}
	return nil
}

func (h *histogramCalculator) merge(other calculator) error {
	o, ok := other.(*histogramCalculator)
	if !ok {
		return errors.Wrapf(ErrMergeInconsistency, "histogram state merged with %T", other)
	}
	return h.table.merge(o.table)
}

// result orders buckets by key. With a minimum document count of 0,
// gaps between the observed extremes are filled with empty buckets
// before ordering.
func (h *histogramCalculator) result() Result {
	if h.def.minDocCount == 0 && h.table.len() > 0 {
		if err := h.fillGaps(); err != nil {
			return &HistogramResult{Buckets: []*HistogramBucket{}}
		}
	}

	buckets := h.table.all()
	if h.def.minDocCount > 0 {
		kept := buckets[:0]
		for _, b := range buckets {
			if b.docCount >= h.def.minDocCount {
				kept = append(kept, b)
			}
		}
		buckets = kept
	}

	slices.SortFunc(buckets, func(a, b *bucket) int {
		return compareKeys(a.key, b.key)
	})

	out := make([]*HistogramBucket, len(buckets))
	for i, b := range buckets {
		out[i] = &HistogramBucket{
			Key:          b.key,
			DocCount:     b.docCount,
			Aggregations: subResults(b.subs),
		}
	}
	return &HistogramResult{Buckets: out}
}

func (h *histogramCalculator) fillGaps() error {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, b := range h.table.all() {
		if b.key < lo {
			lo = b.key
		}
		if b.key > hi {
			hi = b.key
		}
	}

	first := int64(math.Round(lo / h.def.interval))
	last := int64(math.Round(hi / h.def.interval))
	for idx := first; idx <= last; idx++ {
		if _, err := h.table.get(float64(idx) * h.def.interval); err != nil {
			return err
		}
	}
	return nil
}
