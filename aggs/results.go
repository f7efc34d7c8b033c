package aggs

import (
	"strconv"
)

// Result is one aggregation's finalized output. Concrete types are
// *TermsResult, *MetricResult, *StatsResult, *ExtendedStatsResult,
// *HistogramResult and *FilterResult.
type Result interface {
	aggregationResult()
}

// Results maps aggregation names to their finalized output. Typed
// accessors return the concrete result and whether the name resolved
// to that kind.
//
// Example:
//
//	terms, ok := result.Aggregations.Terms("prices")
//	if !ok {
//	    // Not requested, or a different aggregation kind
//	}
//	for _, bucket := range terms.Buckets {
//	    fmt.Printf("%v: %d documents\n", bucket.Key, bucket.DocCount)
//	}
type Results map[string]Result

// Terms returns a named terms result.
func (r Results) Terms(name string) (*TermsResult, bool) {
	v, ok := r[name].(*TermsResult)
	return v, ok
}

// Sum returns a named sum result.
func (r Results) Sum(name string) (*MetricResult, bool) {
	v, ok := r[name].(*MetricResult)
	return v, ok
}

// Avg returns a named average result.
func (r Results) Avg(name string) (*MetricResult, bool) {
	v, ok := r[name].(*MetricResult)
	return v, ok
}

// Stats returns a named stats result. An extended stats result
// satisfies a stats lookup with its embedded stats.
func (r Results) Stats(name string) (*StatsResult, bool) {
	switch v := r[name].(type) {
	case *StatsResult:
		return v, true
	case *ExtendedStatsResult:
		return &v.StatsResult, true
	}
	return nil, false
}

// ExtendedStats returns a named extended stats result.
func (r Results) ExtendedStats(name string) (*ExtendedStatsResult, bool) {
	v, ok := r[name].(*ExtendedStatsResult)
	return v, ok
}

// Histogram returns a named histogram result.
func (r Results) Histogram(name string) (*HistogramResult, bool) {
	v, ok := r[name].(*HistogramResult)
	return v, ok
}

// Filter returns a named filter result.
func (r Results) Filter(name string) (*FilterResult, bool) {
	v, ok := r[name].(*FilterResult)
	return v, ok
}

// TermsResult is the ordered, bounded bucket list of a terms
// aggregation. OtherDocCount totals documents in buckets that were
// pruned or truncated away; MissingDocCount totals matched documents
// that contributed no value.
type TermsResult struct {
	Buckets         []*TermsBucket
	OtherDocCount   int64
	MissingDocCount int64
}

func (r *TermsResult) aggregationResult() {}

// Bucket returns the bucket with the given key, if present.
func (r *TermsResult) Bucket(key float64) (*TermsBucket, bool) {
	for _, b := range r.Buckets {
		if b.Key == key {
			return b, true
		}
	}
	return nil, false
}

// TermsBucket is one distinct key's share of a terms result.
type TermsBucket struct {
	Key          float64
	DocCount     int64
	Aggregations Results
}

// KeyString renders the key's shortest exact decimal form. Richer
// formatting is the caller's concern.
func (b *TermsBucket) KeyString() string {
	return strconv.FormatFloat(b.Key, 'f', -1, 64)
}

// MetricResult is a single-valued metric such as a sum or an
// average. The value of an average over nothing is NaN.
type MetricResult struct {
	Value float64
}

func (r *MetricResult) aggregationResult() {}

// StatsResult describes the observed values of a stats aggregation.
// Min and Max are NaN when nothing was observed.
type StatsResult struct {
	Count int64
	Min   float64
	Max   float64
	Sum   float64
	Avg   float64
}

func (r *StatsResult) aggregationResult() {}

// ExtendedStatsResult adds squared-sum derived metrics to a stats
// result. The deviation bounds are the average plus or minus two
// standard deviations.
type ExtendedStatsResult struct {
	StatsResult
	SumOfSquares           float64
	Variance               float64
	StdDeviation           float64
	StdDeviationBoundUpper float64
	StdDeviationBoundLower float64
}

func (r *ExtendedStatsResult) aggregationResult() {}

// HistogramResult is the key-ordered bucket list of a histogram
// aggregation, including materialized empty intervals when the
// minimum document count is 0.
type HistogramResult struct {
	Buckets []*HistogramBucket
}

func (r *HistogramResult) aggregationResult() {}

// Bucket returns the bucket with the given key, if present.
func (r *HistogramResult) Bucket(key float64) (*HistogramBucket, bool) {
	for _, b := range r.Buckets {
		if b.Key == key {
			return b, true
		}
	}
	return nil, false
}

// HistogramBucket is one interval's share of a histogram result.
type HistogramBucket struct {
	Key          float64
	DocCount     int64
	Aggregations Results
}

// FilterResult is the single bucket of a filter aggregation.
type FilterResult struct {
	DocCount     int64
	Aggregations Results
}

func (r *FilterResult) aggregationResult() {}
