package bucketd

import (
	"github.com/reveald/bucketd/aggs"
)

// AggregationFeature adds a fixed set of aggregations to every search
// passing through an endpoint.
type AggregationFeature struct {
	defs []aggs.Aggregation
}

func NewAggregationFeature(defs ...aggs.Aggregation) *AggregationFeature {
	return &AggregationFeature{defs: defs}
}

func (af *AggregationFeature) Process(s *Search, next FeatureFunc) (*Result, error) {
	s.Aggregation(af.defs...)
	return next(s)
}

// QueryFeature narrows every search passing through an endpoint to
// documents matching a fixed predicate.
type QueryFeature struct {
	query aggs.Predicate
}

func NewQueryFeature(query aggs.Predicate) *QueryFeature {
	return &QueryFeature{query: query}
}

func (qf *QueryFeature) Process(s *Search, next FeatureFunc) (*Result, error) {
	if qf.query != nil {
		s.Query(qf.query)
	}
	return next(s)
}
