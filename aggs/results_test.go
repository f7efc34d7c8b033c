package aggs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Results_Resolve_By_Name_And_Kind(t *testing.T) {
	results := Results{
		"prices": &TermsResult{},
		"total":  &MetricResult{Value: 42},
		"hist":   &HistogramResult{},
		"big":    &FilterResult{},
	}

	_, ok := results.Terms("prices")
	assert.True(t, ok)
	_, ok = results.Terms("total")
	assert.False(t, ok)
	_, ok = results.Terms("absent")
	assert.False(t, ok)

	sum, ok := results.Sum("total")
	require.True(t, ok)
	assert.Equal(t, float64(42), sum.Value)

	_, ok = results.Histogram("hist")
	assert.True(t, ok)
	_, ok = results.Filter("big")
	assert.True(t, ok)
}

func Test_Stats_Accessor_Accepts_Extended_Stats(t *testing.T) {
	results := Results{
		"spread": &ExtendedStatsResult{
			StatsResult: StatsResult{Count: 3, Sum: 6, Avg: 2},
			Variance:    1.5,
		},
	}

	st, ok := results.Stats("spread")
	require.True(t, ok)
	assert.Equal(t, int64(3), st.Count)
	assert.Equal(t, float64(2), st.Avg)

	xs, ok := results.ExtendedStats("spread")
	require.True(t, ok)
	assert.Equal(t, 1.5, xs.Variance)
}

func Test_Terms_Result_Bucket_Lookup(t *testing.T) {
	r := &TermsResult{Buckets: []*TermsBucket{
		{Key: 1.5, DocCount: 2},
		{Key: 3, DocCount: 1},
	}}

	b, ok := r.Bucket(1.5)
	require.True(t, ok)
	assert.Equal(t, int64(2), b.DocCount)

	_, ok = r.Bucket(9)
	assert.False(t, ok)
}

func Test_Bucket_Key_String_Is_Shortest_Exact_Form(t *testing.T) {
	assert.Equal(t, "2", (&TermsBucket{Key: 2}).KeyString())
	assert.Equal(t, "1.5", (&TermsBucket{Key: 1.5}).KeyString())
	assert.Equal(t, "-0", (&TermsBucket{Key: math.Copysign(0, -1)}).KeyString())
}

func Test_Histogram_Result_Bucket_Lookup(t *testing.T) {
	r := &HistogramResult{Buckets: []*HistogramBucket{
		{Key: 0, DocCount: 1},
		{Key: 1, DocCount: 0},
	}}

	b, ok := r.Bucket(1)
	require.True(t, ok)
	assert.Zero(t, b.DocCount)

	_, ok = r.Bucket(2)
	assert.False(t, ok)
}
