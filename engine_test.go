package bucketd

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reveald/bucketd/aggs"
)

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func numbersMapping() Mapping {
	return Mapping{
		"d_value":  FieldTypeDouble,
		"d_values": FieldTypeDouble,
		"tag":      FieldTypeKeyword,
	}
}

// numbersIndex holds five documents with d_value i and d_values
// {i, i+1} for i in 1..5.
func numbersIndex(shards int) *Index {
	idx := NewIndex("numbers", numbersMapping(), WithShardCount(shards))
	for i := 1; i <= 5; i++ {
		tag := "odd"
		if i%2 == 0 {
			tag = "even"
		}
		idx.Add(Document{
			"d_value":  float64(i),
			"d_values": []float64{float64(i), float64(i + 1)},
			"tag":      tag,
		})
	}
	return idx
}

func newTestEngine(indices ...*Index) *Engine {
	return NewEngine(indices, WithLogger(quietLogger()))
}

func bucketKeys(r *aggs.TermsResult) []float64 {
	keys := make([]float64, 0, len(r.Buckets))
	for _, b := range r.Buckets {
		keys = append(keys, b.Key)
	}
	return keys
}

func bucketCounts(r *aggs.TermsResult) []int64 {
	counts := make([]int64, 0, len(r.Buckets))
	for _, b := range r.Buckets {
		counts = append(counts, b.DocCount)
	}
	return counts
}

func Test_Engine_Execute(t *testing.T) {
	engine := newTestEngine(numbersIndex(1))

	result, err := engine.Execute(context.Background(), NewSearch("numbers").
		Aggregation(aggs.Terms("values").Field("d_value").Size(0)))
	require.NoError(t, err)

	assert.Equal(t, int64(5), result.TotalHitCount)
	assert.Greater(t, result.Duration, time.Duration(0))
	assert.NotNil(t, result.Request())

	terms, ok := result.Aggregations.Terms("values")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, bucketKeys(terms))
	assert.Equal(t, []int64{1, 1, 1, 1, 1}, bucketCounts(terms))
}

func Test_Engine_Execute_MultiValuedField(t *testing.T) {
	engine := newTestEngine(numbersIndex(1))

	result, err := engine.Execute(context.Background(), NewSearch("numbers").
		Aggregation(aggs.Terms("values").Field("d_values").Size(0)))
	require.NoError(t, err)

	terms, ok := result.Aggregations.Terms("values")
	require.True(t, ok)
	assert.Equal(t, []float64{2, 3, 4, 5, 1, 6}, bucketKeys(terms))
	assert.Equal(t, []int64{2, 2, 2, 2, 1, 1}, bucketCounts(terms))
}

func Test_Engine_Execute_ValueScript(t *testing.T) {
	t.Run("shifts every value", func(t *testing.T) {
		engine := newTestEngine(numbersIndex(1))

		result, err := engine.Execute(context.Background(), NewSearch("numbers").
			Aggregation(aggs.Terms("values").Field("d_value").Script("_value + 1").Size(0)))
		require.NoError(t, err)

		terms, ok := result.Aggregations.Terms("values")
		require.True(t, ok)
		assert.Equal(t, []float64{2, 3, 4, 5, 6}, bucketKeys(terms))
	})

	t.Run("long division collapses to one bucket", func(t *testing.T) {
		engine := newTestEngine(numbersIndex(1))

		result, err := engine.Execute(context.Background(), NewSearch("numbers").
			Aggregation(aggs.Terms("values").Field("d_value").Script("(long) _value / 1000 + 1").Size(0)))
		require.NoError(t, err)

		terms, ok := result.Aggregations.Terms("values")
		require.True(t, ok)
		assert.Equal(t, []float64{1}, bucketKeys(terms))
		assert.Equal(t, []int64{5}, bucketCounts(terms))
	})
}

func Test_Engine_Execute_SubAggregations(t *testing.T) {
	engine := newTestEngine(numbersIndex(1))

	result, err := engine.Execute(context.Background(), NewSearch("numbers").
		Aggregation(aggs.Terms("values").Field("d_value").Size(0).
			SubAggregation(
				aggs.Sum("total").Field("d_values"),
				aggs.Avg("mean"),
			)))
	require.NoError(t, err)

	terms, ok := result.Aggregations.Terms("values")
	require.True(t, ok)
	require.Len(t, terms.Buckets, 5)

	for i, bucket := range terms.Buckets {
		doc := float64(i + 1)
		assert.Equal(t, doc, bucket.Key)

		total, ok := bucket.Aggregations.Sum("total")
		require.True(t, ok)
		assert.Equal(t, 2*doc+1, total.Value)

		// The unsourced sub-aggregation inherits d_value from the
		// enclosing terms aggregation.
		mean, ok := bucket.Aggregations.Avg("mean")
		require.True(t, ok)
		assert.Equal(t, doc, mean.Value)
	}
}

func Test_Engine_Execute_Query(t *testing.T) {
	engine := newTestEngine(numbersIndex(2))

	t.Run("range", func(t *testing.T) {
		result, err := engine.Execute(context.Background(), NewSearch("numbers").
			Query(Range("d_value").Gte(2).Lte(4)).
			Aggregation(aggs.Terms("values").Field("d_value")))
		require.NoError(t, err)

		assert.Equal(t, int64(3), result.TotalHitCount)
		terms, ok := result.Aggregations.Terms("values")
		require.True(t, ok)
		assert.Equal(t, []float64{2, 3, 4}, bucketKeys(terms))
	})

	t.Run("term over keyword field", func(t *testing.T) {
		result, err := engine.Execute(context.Background(), NewSearch("numbers").
			Query(Term("tag", "even")).
			Aggregation(aggs.Terms("values").Field("d_value")))
		require.NoError(t, err)

		assert.Equal(t, int64(2), result.TotalHitCount)
		terms, ok := result.Aggregations.Terms("values")
		require.True(t, ok)
		assert.Equal(t, []float64{2, 4}, bucketKeys(terms))
	})

	t.Run("term over numeric field", func(t *testing.T) {
		result, err := engine.Execute(context.Background(), NewSearch("numbers").
			Query(Term("d_value", 3)).
			Aggregation(aggs.Terms("values").Field("d_value")))
		require.NoError(t, err)

		assert.Equal(t, int64(1), result.TotalHitCount)
		terms, ok := result.Aggregations.Terms("values")
		require.True(t, ok)
		assert.Equal(t, []float64{3}, bucketKeys(terms))
	})
}

func Test_Engine_Execute_ShardCountInvariance(t *testing.T) {
	search := func() *Search {
		return NewSearch("numbers").Aggregation(
			aggs.Terms("values").Field("d_values").Size(0).MinDocCount(2).
				SubAggregation(aggs.Sum("total")))
	}

	single, err := newTestEngine(numbersIndex(1)).Execute(context.Background(), search())
	require.NoError(t, err)

	terms, ok := single.Aggregations.Terms("values")
	require.True(t, ok)
	assert.Equal(t, []float64{2, 3, 4, 5}, bucketKeys(terms))

	for shards := 2; shards <= 5; shards++ {
		sharded, err := newTestEngine(numbersIndex(shards)).Execute(context.Background(), search())
		require.NoError(t, err)

		assert.Equal(t, single.TotalHitCount, sharded.TotalHitCount, "shards=%d", shards)
		assert.Equal(t, single.Aggregations, sharded.Aggregations, "shards=%d", shards)
	}
}

func Test_Engine_Execute_MinDocCountAppliesAfterMerge(t *testing.T) {
	// Four documents holding 7 spread over two shards: each shard sees
	// the term twice, below the threshold, but the merged count passes.
	idx := NewIndex("numbers", numbersMapping(), WithShardCount(2))
	idx.Add(
		Document{"d_value": 7.0},
		Document{"d_value": 7.0},
		Document{"d_value": 7.0},
		Document{"d_value": 7.0},
		Document{"d_value": 8.0},
	)

	result, err := newTestEngine(idx).Execute(context.Background(), NewSearch("numbers").
		Aggregation(aggs.Terms("values").Field("d_value").MinDocCount(3)))
	require.NoError(t, err)

	terms, ok := result.Aggregations.Terms("values")
	require.True(t, ok)
	assert.Equal(t, []float64{7}, bucketKeys(terms))
	assert.Equal(t, []int64{4}, bucketCounts(terms))
}

func Test_Engine_Execute_MultipleIndices(t *testing.T) {
	legacy := NewIndex("legacy", Mapping{"other": FieldTypeDouble})
	for i := 0; i < 5; i++ {
		legacy.Add(Document{"d_value": float64(i)})
	}
	engine := newTestEngine(numbersIndex(2), legacy)

	result, err := engine.Execute(context.Background(), NewSearch("numbers", "legacy").
		Aggregation(aggs.Terms("values").Field("d_value").Size(0)))
	require.NoError(t, err)

	// Documents in the index without a d_value mapping still count as
	// hits but contribute no buckets.
	assert.Equal(t, int64(10), result.TotalHitCount)

	terms, ok := result.Aggregations.Terms("values")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, bucketKeys(terms))
	assert.Equal(t, []int64{1, 1, 1, 1, 1}, bucketCounts(terms))
}

func Test_Engine_Execute_UnmappedField(t *testing.T) {
	legacy := NewIndex("legacy", Mapping{"other": FieldTypeDouble})
	for i := 0; i < 5; i++ {
		legacy.Add(Document{"d_value": float64(i)})
	}

	result, err := newTestEngine(legacy).Execute(context.Background(), NewSearch("legacy").
		Aggregation(aggs.Terms("values").Field("d_value").Size(0)))
	require.NoError(t, err)

	assert.Equal(t, int64(5), result.TotalHitCount)

	terms, ok := result.Aggregations.Terms("values")
	require.True(t, ok)
	assert.Empty(t, terms.Buckets)
	assert.Equal(t, int64(5), terms.MissingDocCount)
}

func Test_Engine_Execute_UnknownIndex(t *testing.T) {
	engine := newTestEngine(numbersIndex(1))

	_, err := engine.Execute(context.Background(), NewSearch("missing").
		Aggregation(aggs.Terms("values").Field("d_value")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownIndex)
	assert.Contains(t, err.Error(), "missing")
}

func Test_Engine_Execute_RequestErrors(t *testing.T) {
	engine := newTestEngine(numbersIndex(1))

	t.Run("nil search", func(t *testing.T) {
		_, err := engine.Execute(context.Background(), nil)
		assert.Error(t, err)
	})

	t.Run("no indices", func(t *testing.T) {
		_, err := engine.Execute(context.Background(), NewSearch())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no indices")
	})

	t.Run("duplicate aggregation names", func(t *testing.T) {
		_, err := engine.Execute(context.Background(), NewSearch("numbers").
			Aggregation(
				aggs.Terms("values").Field("d_value"),
				aggs.Sum("values").Field("d_value"),
			))
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
	})

	t.Run("missing value source", func(t *testing.T) {
		_, err := engine.Execute(context.Background(), NewSearch("numbers").
			Aggregation(aggs.Terms("values")))
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
	})

	t.Run("malformed script", func(t *testing.T) {
		_, err := engine.Execute(context.Background(), NewSearch("numbers").
			Aggregation(aggs.Terms("values").Field("d_value").Script("_value +")))
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
	})
}

func Test_Engine_Execute_ContextCanceled(t *testing.T) {
	engine := newTestEngine(numbersIndex(3))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Execute(ctx, NewSearch("numbers").
		Aggregation(aggs.Terms("values").Field("d_value")))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func Test_Engine_Execute_ConcurrencyLimit(t *testing.T) {
	search := func() *Search {
		return NewSearch("numbers").Aggregation(
			aggs.Terms("values").Field("d_values").Size(0).
				SubAggregation(aggs.Sum("total")))
	}

	unbounded, err := newTestEngine(numbersIndex(4)).Execute(context.Background(), search())
	require.NoError(t, err)

	limited, err := NewEngine([]*Index{numbersIndex(4)},
		WithLogger(quietLogger()),
		WithConcurrency(1),
	).Execute(context.Background(), search())
	require.NoError(t, err)

	assert.Equal(t, unbounded.TotalHitCount, limited.TotalHitCount)
	assert.Equal(t, unbounded.Aggregations, limited.Aggregations)
}

func Test_Engine_ExecuteMultiple(t *testing.T) {
	engine := newTestEngine(numbersIndex(2))

	results, err := engine.ExecuteMultiple(context.Background(), []*Search{
		NewSearch("numbers").Aggregation(aggs.Sum("total").Field("d_value")),
		NewSearch("numbers").
			Query(Range("d_value").Gte(4)).
			Aggregation(aggs.Sum("total").Field("d_value")),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, int64(5), results[0].TotalHitCount)
	assert.Equal(t, int64(2), results[1].TotalHitCount)

	total, ok := results[0].Aggregations.Sum("total")
	require.True(t, ok)
	assert.Equal(t, 15.0, total.Value)

	total, ok = results[1].Aggregations.Sum("total")
	require.True(t, ok)
	assert.Equal(t, 9.0, total.Value)
}

func Test_Engine_ExecuteMultiple_StopsOnError(t *testing.T) {
	engine := newTestEngine(numbersIndex(1))

	results, err := engine.ExecuteMultiple(context.Background(), []*Search{
		NewSearch("numbers").Aggregation(aggs.Sum("total").Field("d_value")),
		NewSearch("missing").Aggregation(aggs.Sum("total").Field("d_value")),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownIndex)
	assert.Nil(t, results)
}

func Test_Engine_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	engine := NewEngine([]*Index{numbersIndex(2)},
		WithLogger(quietLogger()),
		WithRegisterer(reg),
	)

	_, err := engine.Execute(context.Background(), NewSearch("numbers").
		Aggregation(aggs.Terms("values").Field("d_value")))
	require.NoError(t, err)

	_, err = engine.Execute(context.Background(), NewSearch("missing").
		Aggregation(aggs.Terms("values").Field("d_value")))
	require.Error(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(engine.metrics.searches))
	assert.Equal(t, 1.0, testutil.ToFloat64(engine.metrics.failures))
	assert.Equal(t, 5.0, testutil.ToFloat64(engine.metrics.documents))
}
