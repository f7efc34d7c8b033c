package bucketd

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// engineMetrics instruments search execution. Collectors are always
// created; they only reach an exporter when the engine is given a
// registerer.
type engineMetrics struct {
	searches       prometheus.Counter
	failures       prometheus.Counter
	documents      prometheus.Counter
	searchDuration prometheus.Histogram
	shardDuration  prometheus.Histogram
}

func newEngineMetrics(reg prometheus.Registerer) *engineMetrics {
	m := &engineMetrics{
		searches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bucketd",
			Subsystem: "engine",
			Name:      "searches_total",
			Help:      "Number of executed searches.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bucketd",
			Subsystem: "engine",
			Name:      "search_failures_total",
			Help:      "Number of searches that returned an error.",
		}),
		documents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bucketd",
			Subsystem: "engine",
			Name:      "documents_matched_total",
			Help:      "Number of documents matched and folded into aggregations.",
		}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bucketd",
			Subsystem: "engine",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration.",
			Buckets:   prometheus.DefBuckets,
		}),
		shardDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bucketd",
			Subsystem: "engine",
			Name:      "shard_collect_duration_seconds",
			Help:      "Per-shard collection duration.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(m.searches, m.failures, m.documents, m.searchDuration, m.shardDuration)
	}
	return m
}

func (m *engineMetrics) observeSearch(d time.Duration, matched int64, err error) {
	m.searches.Inc()
	if err != nil {
		m.failures.Inc()
		return
	}
	m.documents.Add(float64(matched))
	m.searchDuration.Observe(d.Seconds())
}

func (m *engineMetrics) observeShard(d time.Duration) {
	m.shardDuration.Observe(d.Seconds())
}
