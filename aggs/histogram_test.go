package aggs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func histKeys(r *HistogramResult) []float64 {
	keys := make([]float64, len(r.Buckets))
	for i, b := range r.Buckets {
		keys[i] = b.Key
	}
	return keys
}

func histCounts(r *HistogramResult) []int64 {
	counts := make([]int64, len(r.Buckets))
	for i, b := range r.Buckets {
		counts[i] = b.DocCount
	}
	return counts
}

func Test_Histogram_Buckets_By_Interval(t *testing.T) {
	docs := []testDoc{
		{"d_value": {0.5}},
		{"d_value": {1.7}},
		{"d_value": {2.3}},
		{"d_value": {2.9}},
	}
	results := runOne(t, docs, Histogram("hist").Field("d_value").Interval(1))

	hist, ok := results.Histogram("hist")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 1, 2}, histKeys(hist))
	assert.Equal(t, []int64{1, 1, 2}, histCounts(hist))
}

func Test_Histogram_Materializes_Empty_Intervals(t *testing.T) {
	docs := []testDoc{
		{"d_value": {0}},
		{"d_value": {2}},
	}
	results := runOne(t, docs,
		Histogram("hist").Field("d_value").Interval(1).
			SubAggregation(Terms("values").Field("d_value")))

	hist, _ := results.Histogram("hist")
	assert.Equal(t, []float64{0, 1, 2}, histKeys(hist))
	assert.Equal(t, []int64{1, 0, 1}, histCounts(hist))

	// The empty interval still exposes a formed, empty sub-result.
	gap := hist.Buckets[1]
	terms, ok := gap.Aggregations.Terms("values")
	require.True(t, ok)
	assert.Empty(t, terms.Buckets)
}

func Test_Histogram_Floors_Negative_Values(t *testing.T) {
	docs := []testDoc{
		{"d_value": {-0.5}},
		{"d_value": {0.5}},
	}
	results := runOne(t, docs, Histogram("hist").Field("d_value").Interval(1))

	hist, _ := results.Histogram("hist")
	assert.Equal(t, []float64{-1, 0}, histKeys(hist))
	assert.Equal(t, []int64{1, 1}, histCounts(hist))
}

func Test_Histogram_Counts_A_Document_Once_Per_Interval(t *testing.T) {
	docs := []testDoc{{"d_values": {1.1, 1.9}}}
	results := runOne(t, docs, Histogram("hist").Field("d_values").Interval(1))

	hist, _ := results.Histogram("hist")
	require.Len(t, hist.Buckets, 1)
	assert.Equal(t, float64(1), hist.Buckets[0].Key)
	assert.Equal(t, int64(1), hist.Buckets[0].DocCount)
}

func Test_Histogram_Min_Doc_Count_Prunes(t *testing.T) {
	docs := []testDoc{
		{"d_value": {0.1}},
		{"d_value": {0.2}},
		{"d_value": {2.5}},
	}
	results := runOne(t, docs,
		Histogram("hist").Field("d_value").Interval(1).MinDocCount(2))

	hist, _ := results.Histogram("hist")
	assert.Equal(t, []float64{0}, histKeys(hist))
	assert.Equal(t, []int64{2}, histCounts(hist))
}

func Test_Histogram_Merges_Shards(t *testing.T) {
	docs := []testDoc{
		{"d_value": {0}},
		{"d_value": {2}},
		{"d_value": {2.5}},
	}

	single := runOne(t, docs, Histogram("hist").Field("d_value").Interval(1))
	sharded := runSharded(t, 3, docs, Histogram("hist").Field("d_value").Interval(1))
	assert.Equal(t, single, sharded)

	hist, _ := sharded.Histogram("hist")
	assert.Equal(t, []float64{0, 1, 2}, histKeys(hist))
	assert.Equal(t, []int64{1, 0, 2}, histCounts(hist))
}

func Test_Histogram_Of_Nothing_Is_Empty(t *testing.T) {
	results := runOne(t, nil, Histogram("hist").Field("d_value").Interval(1))

	hist, ok := results.Histogram("hist")
	require.True(t, ok)
	assert.Empty(t, hist.Buckets)
}

func Test_Histogram_Rejects_Malformed_Definitions(t *testing.T) {
	cases := []struct {
		name string
		def  Aggregation
	}{
		{"no field", Histogram("hist").Interval(1)},
		{"no interval", Histogram("hist").Field("d_value")},
		{"negative interval", Histogram("hist").Field("d_value").Interval(-2)},
		{"negative min doc count", Histogram("hist").Field("d_value").Interval(1).MinDocCount(-1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.def)
			require.Error(t, err)

			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func Test_Histogram_Source_Renders_Request_Body(t *testing.T) {
	src, err := Histogram("hist").Field("price").Interval(10).MinDocCount(1).
		SubAggregation(Sum("total").Field("price")).
		Source()
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"histogram": map[string]any{
			"field":         "price",
			"interval":      float64(10),
			"min_doc_count": int64(1),
		},
		"aggs": map[string]any{
			"total": map[string]any{
				"sum": map[string]any{"field": "price"},
			},
		},
	}, src)
}
