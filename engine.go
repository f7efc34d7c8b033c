package bucketd

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/reveald/bucketd/aggs"
)

// Engine executes searches over in-memory indices. It implements
// Backend, so an Endpoint can run against it the same way it runs
// against a remote cluster.
//
// Shards are collected in parallel and merged in shard order, which
// keeps results identical for any shard count over the same
// documents.
//
// Example:
//
//	idx := bucketd.NewIndex("products",
//	    bucketd.Mapping{"price": bucketd.FieldTypeDouble},
//	    bucketd.WithShardCount(3),
//	)
//	idx.Add(bucketd.Document{"price": 49.99})
//
//	engine := bucketd.NewEngine([]*bucketd.Index{idx})
//	result, err := engine.Execute(ctx, bucketd.NewSearch("products").
//	    Aggregation(aggs.Terms("prices").Field("price")))
type Engine struct {
	indices     map[string]*Index
	logger      logrus.FieldLogger
	registerer  prometheus.Registerer
	metrics     *engineMetrics
	concurrency int
}

// EngineOption configures an Engine during construction.
type EngineOption func(*Engine)

// WithLogger replaces the process-wide logrus logger the engine logs
// through by default.
func WithLogger(logger logrus.FieldLogger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRegisterer registers the engine's metrics with a prometheus
// registry. Without it the metrics are collected but never exported.
func WithRegisterer(reg prometheus.Registerer) EngineOption {
	return func(e *Engine) {
		e.registerer = reg
	}
}

// WithConcurrency caps the number of shards collected in parallel.
// The default runs every shard at once.
func WithConcurrency(n int) EngineOption {
	return func(e *Engine) {
		e.concurrency = n
	}
}

// NewEngine creates an engine holding the given indices.
func NewEngine(indices []*Index, opts ...EngineOption) *Engine {
	e := &Engine{
		indices: make(map[string]*Index, len(indices)),
		logger:  logrus.StandardLogger(),
	}
	for _, idx := range indices {
		e.indices[idx.name] = idx
	}
	for _, opt := range opts {
		opt(e)
	}
	e.metrics = newEngineMetrics(e.registerer)
	return e
}

// shardRun is one (index, shard) collection task.
type shardRun struct {
	index     string
	shard     int
	schema    aggs.Schema
	docs      []Document
	collector *aggs.Collector
	matched   int64
}

// Execute validates the search, collects every shard of every named
// index in parallel, merges the shard states in order and finalizes
// the aggregation tree.
//
// A request error (unknown index, invalid aggregation tree) fails the
// whole search before any document is scanned; no partial result is
// produced.
func (e *Engine) Execute(ctx context.Context, search *Search) (result *Result, err error) {
	start := time.Now()
	defer func() {
		var matched int64
		if result != nil {
			matched = result.TotalHitCount
		}
		e.metrics.observeSearch(time.Since(start), matched, err)
	}()

	if search == nil {
		return nil, errors.New("nil search")
	}
	if len(search.indices) == 0 {
		return nil, errors.New("search names no indices")
	}

	indices := make([]*Index, 0, len(search.indices))
	for _, name := range search.indices {
		idx, ok := e.indices[name]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownIndex, "index [%s]", name)
		}
		indices = append(indices, idx)
	}

	if err := aggs.Validate(search.aggs...); err != nil {
		return nil, err
	}

	var runs []*shardRun
	for _, idx := range indices {
		for shard, docs := range idx.shards {
			runs = append(runs, &shardRun{
				index:  idx.name,
				shard:  shard,
				schema: idx.schema(),
				docs:   docs,
			})
		}
	}

	predicate := search.Predicate()
	g, gctx := errgroup.WithContext(ctx)
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}
	for _, run := range runs {
		run := run
		g.Go(func() error {
			return e.collectShard(gctx, run, predicate, search.aggs)
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.WithFields(logrus.Fields{
			"indices": search.indices,
			"shards":  len(runs),
		}).WithError(err).Warn("discarding partially collected aggregation state")
		return nil, err
	}

	merged := runs[0].collector
	matched := runs[0].matched
	for _, run := range runs[1:] {
		matched += run.matched
		if err := merged.Merge(run.collector); err != nil {
			return nil, errors.Wrapf(err, "merging index [%s] shard %d", run.index, run.shard)
		}
	}

	e.logger.WithFields(logrus.Fields{
		"indices":  search.indices,
		"shards":   len(runs),
		"matched":  matched,
		"duration": time.Since(start),
	}).Debug("search executed")

	return &Result{
		request:       search,
		TotalHitCount: matched,
		Aggregations:  merged.Finalize(),
		Duration:      time.Since(start),
	}, nil
}

// collectShard folds one shard's documents sequentially. Cancellation
// is honored between documents; a shard already past a document never
// unwinds it.
func (e *Engine) collectShard(ctx context.Context, run *shardRun, predicate aggs.Predicate, defs []aggs.Aggregation) error {
	start := time.Now()

	collector, err := aggs.NewCollector(run.schema, defs...)
	if err != nil {
		return errors.Wrapf(err, "index [%s] shard %d", run.index, run.shard)
	}

	for _, doc := range run.docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !predicate.Matches(doc) {
			continue
		}
		run.matched++
		if err := collector.Collect(doc); err != nil {
			return errors.Wrapf(err, "index [%s] shard %d", run.index, run.shard)
		}
	}

	run.collector = collector
	e.metrics.observeShard(time.Since(start))
	e.logger.WithFields(logrus.Fields{
		"index":    run.index,
		"shard":    run.shard,
		"matched":  run.matched,
		"duration": time.Since(start),
	}).Debug("shard collected")
	return nil
}

// ExecuteMultiple runs several searches sequentially and returns
// their results in request order.
func (e *Engine) ExecuteMultiple(ctx context.Context, searches []*Search) ([]*Result, error) {
	var results []*Result
	for _, search := range searches {
		result, err := e.Execute(ctx, search)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}
