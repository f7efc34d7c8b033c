package aggs

import (
	"cmp"
	"math"
	"strings"
)

type orderKind int

const (
	orderByCount orderKind = iota
	orderByTerm
	orderByAggregation
)

// Order ranks buckets for selection. Orders are total: numeric ties
// fall back to the term ascending, and term comparison itself falls
// back to the raw key bits, so truncation and pagination stay
// reproducible.
type Order struct {
	kind orderKind
	asc  bool
	path string
}

// ByTerm orders buckets by their key.
func ByTerm(asc bool) Order {
	return Order{kind: orderByTerm, asc: asc}
}

// ByCount orders buckets by document count, ties broken by term
// ascending.
func ByCount(asc bool) Order {
	return Order{kind: orderByCount, asc: asc}
}

// ByAggregation orders buckets by a sub-aggregation metric. The path
// is the sub-aggregation name, with a `.metric` suffix required for
// multi-metric aggregations:
//
//	aggs.ByAggregation("price_avg", true)
//	aggs.ByAggregation("price_stats.variance", false)
func ByAggregation(path string, asc bool) Order {
	return Order{kind: orderByAggregation, asc: asc, path: path}
}

// validate resolves an aggregation order path against the declared
// sub-aggregations. Failures reject the request before collection.
func (o Order) validate(owner string, subs []Aggregation) error {
	if o.kind != orderByAggregation {
		return nil
	}

	name, metric, _ := strings.Cut(o.path, ".")
	var target Aggregation
	for _, sub := range subs {
		if sub.Name() == name {
			target = sub
			break
		}
	}
	if target == nil {
		return invalidf("aggregation [%s] cannot order by unknown sub-aggregation [%s]", owner, name)
	}

	switch target.(type) {
	case SumAggregation, AvgAggregation:
		if metric != "" && metric != "value" {
			return invalidf("sub-aggregation [%s] of [%s] has a single metric; [%s] does not name one", name, owner, metric)
		}
	case StatsAggregation:
		if metric == "" {
			return invalidf("order path [%s] must name a metric of multi-metric sub-aggregation [%s]", o.path, name)
		}
		if !isStatsMetric(metric) {
			return invalidf("unknown metric [%s] for sub-aggregation [%s]", metric, name)
		}
	case ExtendedStatsAggregation:
		if metric == "" {
			return invalidf("order path [%s] must name a metric of multi-metric sub-aggregation [%s]", o.path, name)
		}
		if !isExtendedStatsMetric(metric) {
			return invalidf("unknown metric [%s] for sub-aggregation [%s]", metric, name)
		}
	default:
		return invalidf("sub-aggregation [%s] of [%s] does not produce a metric to order by", name, owner)
	}
	return nil
}

func (o Order) compare(a, b *bucket) int {
	var c int
	switch o.kind {
	case orderByTerm:
		c = compareKeys(a.key, b.key)
		if !o.asc {
			c = -c
		}
		return c
	case orderByCount:
		c = cmp.Compare(a.docCount, b.docCount)
	default:
		c = compareMetrics(o.metricOf(a), o.metricOf(b))
	}

	if !o.asc {
		c = -c
	}
	if c == 0 {
		c = compareKeys(a.key, b.key)
	}
	return c
}

func (o Order) less(a, b *bucket) bool {
	return o.compare(a, b) < 0
}

// metricOf reads the ordering metric out of a bucket's nested state.
// The path was validated, so a failed resolution only happens for
// buckets that never collected; those rank as NaN.
func (o Order) metricOf(b *bucket) float64 {
	name, metric, _ := strings.Cut(o.path, ".")
	mc, ok := b.subs[name].(metricCalculator)
	if !ok {
		return math.NaN()
	}
	v, ok := mc.metric(metric)
	if !ok {
		return math.NaN()
	}
	return v
}

func (o Order) source() map[string]any {
	dir := "desc"
	if o.asc {
		dir = "asc"
	}
	switch o.kind {
	case orderByTerm:
		return map[string]any{"_key": dir}
	case orderByCount:
		return map[string]any{"_count": dir}
	default:
		return map[string]any{o.path: dir}
	}
}

// compareKeys is a total order over keys, consistent with numeric
// comparison and distinguishing equal-comparing bit patterns such as
// -0.0 and 0.0. NaN payloads order by sign at the extremes.
func compareKeys(a, b float64) int {
	return cmp.Compare(sortableBits(a), sortableBits(b))
}

// compareMetrics totals float comparison the same way, so NaN metrics
// from empty state cannot destabilize a sort.
func compareMetrics(a, b float64) int {
	return cmp.Compare(sortableBits(a), sortableBits(b))
}

// sortableBits maps a float's bits onto an unsigned scale whose
// natural order matches numeric order.
func sortableBits(f float64) uint64 {
	b := math.Float64bits(f)
	if b&(1<<63) != 0 {
		return ^b
	}
	return b | 1<<63
}
