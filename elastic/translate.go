package elastic

import (
	"encoding/json"
	"math"

	"github.com/pkg/errors"

	"github.com/reveald/bucketd"
	"github.com/reveald/bucketd/aggs"
)

// searchBody renders the search as a `_search` request body. Documents
// are never fetched; only aggregations travel back.
func searchBody(search *bucketd.Search) (map[string]any, error) {
	if search == nil {
		return nil, errors.New("nil search")
	}

	body := map[string]any{
		"size": 0,
	}

	query, ok := search.Predicate().(interface{ Source() map[string]any })
	if !ok {
		return nil, errors.Errorf("query %T cannot be rendered as a remote request", search.Predicate())
	}
	body["query"] = query.Source()

	defs := search.Aggregations()
	if len(defs) > 0 {
		sources := make(map[string]any, len(defs))
		for _, def := range defs {
			src, err := def.Source()
			if err != nil {
				return nil, err
			}
			sources[def.Name()] = src
		}
		body["aggs"] = sources
	}

	return body, nil
}

// searchResponse is the slice of the `_search` response the backend
// consumes.
type searchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
	} `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
}

// decodeResults maps each requested definition onto its payload in
// the response. It also decodes sub-aggregations inside a bucket
// object, where payloads sit next to the bucket's own key and count.
func decodeResults(raw map[string]json.RawMessage, defs []aggs.Aggregation) (aggs.Results, error) {
	results := make(aggs.Results, len(defs))
	for _, def := range defs {
		payload, ok := raw[def.Name()]
		if !ok {
			return nil, errors.Errorf("response carries no aggregation [%s]", def.Name())
		}
		result, err := decodeOne(def, payload)
		if err != nil {
			return nil, errors.Wrapf(err, "aggregation [%s]", def.Name())
		}
		results[def.Name()] = result
	}
	return results, nil
}

func decodeOne(def aggs.Aggregation, payload json.RawMessage) (aggs.Result, error) {
	switch d := def.(type) {
	case aggs.TermsAggregation:
		return decodeTerms(d, payload)
	case aggs.HistogramAggregation:
		return decodeHistogram(d, payload)
	case aggs.FilterAggregation:
		return decodeFilter(d, payload)
	case aggs.SumAggregation, aggs.AvgAggregation:
		return decodeMetric(payload)
	case aggs.StatsAggregation:
		return decodeStats(payload)
	case aggs.ExtendedStatsAggregation:
		return decodeExtendedStats(payload)
	default:
		return nil, errors.Errorf("no decoder for %T", def)
	}
}

func decodeTerms(def aggs.TermsAggregation, payload json.RawMessage) (*aggs.TermsResult, error) {
	var raw struct {
		Buckets          []json.RawMessage `json:"buckets"`
		SumOtherDocCount int64             `json:"sum_other_doc_count"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}

	result := &aggs.TermsResult{
		Buckets:       make([]*aggs.TermsBucket, 0, len(raw.Buckets)),
		OtherDocCount: raw.SumOtherDocCount,
	}
	for _, b := range raw.Buckets {
		key, docCount, subs, err := decodeBucket(b, def.SubAggregations())
		if err != nil {
			return nil, err
		}
		result.Buckets = append(result.Buckets, &aggs.TermsBucket{
			Key:          key,
			DocCount:     docCount,
			Aggregations: subs,
		})
	}
	return result, nil
}

func decodeHistogram(def aggs.HistogramAggregation, payload json.RawMessage) (*aggs.HistogramResult, error) {
	var raw struct {
		Buckets []json.RawMessage `json:"buckets"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}

	result := &aggs.HistogramResult{
		Buckets: make([]*aggs.HistogramBucket, 0, len(raw.Buckets)),
	}
	for _, b := range raw.Buckets {
		key, docCount, subs, err := decodeBucket(b, def.SubAggregations())
		if err != nil {
			return nil, err
		}
		result.Buckets = append(result.Buckets, &aggs.HistogramBucket{
			Key:          key,
			DocCount:     docCount,
			Aggregations: subs,
		})
	}
	return result, nil
}

func decodeFilter(def aggs.FilterAggregation, payload json.RawMessage) (*aggs.FilterResult, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}

	var docCount int64
	if err := json.Unmarshal(fields["doc_count"], &docCount); err != nil {
		return nil, errors.Wrap(err, "doc_count")
	}

	subs, err := decodeResults(fields, def.SubAggregations())
	if err != nil {
		return nil, err
	}
	return &aggs.FilterResult{DocCount: docCount, Aggregations: subs}, nil
}

// decodeBucket splits one bucket object into its key, count and
// nested sub-aggregation results.
func decodeBucket(payload json.RawMessage, defs []aggs.Aggregation) (float64, int64, aggs.Results, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return 0, 0, nil, err
	}

	var key float64
	if err := json.Unmarshal(fields["key"], &key); err != nil {
		return 0, 0, nil, errors.Wrap(err, "bucket key")
	}
	var docCount int64
	if err := json.Unmarshal(fields["doc_count"], &docCount); err != nil {
		return 0, 0, nil, errors.Wrap(err, "bucket doc_count")
	}

	subs, err := decodeResults(fields, defs)
	if err != nil {
		return 0, 0, nil, err
	}
	return key, docCount, subs, nil
}

// decodeMetric reads a single-valued metric. A null value, an average
// over nothing, becomes NaN the way the local engine reports it.
func decodeMetric(payload json.RawMessage) (*aggs.MetricResult, error) {
	var raw struct {
		Value *float64 `json:"value"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}

	result := &aggs.MetricResult{Value: math.NaN()}
	if raw.Value != nil {
		result.Value = *raw.Value
	}
	return result, nil
}

func decodeStats(payload json.RawMessage) (*aggs.StatsResult, error) {
	var raw struct {
		Count int64    `json:"count"`
		Min   *float64 `json:"min"`
		Max   *float64 `json:"max"`
		Sum   float64  `json:"sum"`
		Avg   *float64 `json:"avg"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}

	return &aggs.StatsResult{
		Count: raw.Count,
		Min:   orNaN(raw.Min),
		Max:   orNaN(raw.Max),
		Sum:   raw.Sum,
		Avg:   orNaN(raw.Avg),
	}, nil
}

func decodeExtendedStats(payload json.RawMessage) (*aggs.ExtendedStatsResult, error) {
	var raw struct {
		Count              int64    `json:"count"`
		Min                *float64 `json:"min"`
		Max                *float64 `json:"max"`
		Sum                float64  `json:"sum"`
		Avg                *float64 `json:"avg"`
		SumOfSquares       float64  `json:"sum_of_squares"`
		Variance           *float64 `json:"variance"`
		StdDeviation       *float64 `json:"std_deviation"`
		StdDeviationBounds struct {
			Upper *float64 `json:"upper"`
			Lower *float64 `json:"lower"`
		} `json:"std_deviation_bounds"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}

	return &aggs.ExtendedStatsResult{
		StatsResult: aggs.StatsResult{
			Count: raw.Count,
			Min:   orNaN(raw.Min),
			Max:   orNaN(raw.Max),
			Sum:   raw.Sum,
			Avg:   orNaN(raw.Avg),
		},
		SumOfSquares:           raw.SumOfSquares,
		Variance:               orNaN(raw.Variance),
		StdDeviation:           orNaN(raw.StdDeviation),
		StdDeviationBoundUpper: orNaN(raw.StdDeviationBounds.Upper),
		StdDeviationBoundLower: orNaN(raw.StdDeviationBounds.Lower),
	}, nil
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
