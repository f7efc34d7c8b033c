package bucketd

import (
	"context"
	"fmt"

	"github.com/reveald/bucketd/aggs"
)

// Backend executes searches. The local Engine and the Elasticsearch
// adapter both satisfy it, so callers can swap an embedded engine for
// a remote cluster without touching request construction.
type Backend interface {
	Execute(context.Context, *Search) (*Result, error)
	ExecuteMultiple(context.Context, []*Search) ([]*Result, error)
}

// Search describes one aggregation request: the indices to search,
// an optional query narrowing the documents, and the aggregations to
// compute over the matches.
//
// Example:
//
//	search := bucketd.NewSearch("products").
//	    Query(bucketd.Range("price").Gte(10)).
//	    Aggregation(
//	        aggs.Terms("prices").Field("price").Size(0),
//	        aggs.Stats("price_stats").Field("price"),
//	    )
//
//	result, err := engine.Execute(ctx, search)
type Search struct {
	indices []string
	query   aggs.Predicate
	aggs    []aggs.Aggregation
}

// NewSearch creates a search over the given indices, matching every
// document until a query is set.
func NewSearch(indices ...string) *Search {
	return &Search{
		indices: indices,
		query:   MatchAll(),
	}
}

// Query sets the predicate documents must match to be aggregated.
func (s *Search) Query(query aggs.Predicate) *Search {
	s.query = query
	return s
}

// Aggregation adds aggregations to compute over the matched
// documents.
func (s *Search) Aggregation(defs ...aggs.Aggregation) *Search {
	s.aggs = append(s.aggs, defs...)
	return s
}

// Indices returns the searched index names.
func (s *Search) Indices() []string {
	return s.indices
}

// Predicate returns the query documents must match.
func (s *Search) Predicate() aggs.Predicate {
	if s.query == nil {
		return MatchAll()
	}
	return s.query
}

// Aggregations returns the requested aggregation definitions.
func (s *Search) Aggregations() []aggs.Aggregation {
	return s.aggs
}

// FeatureFunc is the next stage of a feature chain.
type FeatureFunc func(*Search) (*Result, error)

// Feature is a composable search building block. Features form a
// chain; each may modify the search before delegating, and the result
// on the way back.
type Feature interface {
	Process(*Search, FeatureFunc) (*Result, error)
}

// Indices is a type alias for a string slice
type Indices []string

// WithIndices defines an index collection that
// an Endpoint should query
func WithIndices(index ...string) Indices {
	var collection Indices
	collection = append(collection, index...)
	return collection
}

// Endpoint defines an entry point for a specific search
// query type
type Endpoint struct {
	backend  Backend
	indices  []string
	features []Feature
}

// NewEndpoint returns a new Endpoint for a specific
// search query type
func NewEndpoint(backend Backend, indices Indices) *Endpoint {
	return &Endpoint{
		backend: backend,
		indices: indices,
	}
}

// Register a new set of features used when building
// a search query
func (e *Endpoint) Register(features ...Feature) error {
	e.features = append(e.features, features...)
	return nil
}

// Execute runs the feature chain and hands the built search to the
// backend.
func (e *Endpoint) Execute(ctx context.Context) (*Result, error) {
	search := NewSearch(e.indices...)

	cc := &callchain{}
	for _, feature := range e.features {
		cc.add(feature)
	}

	result, err := cc.exec(search, func(s *Search) (*Result, error) {
		return e.backend.Execute(ctx, s)
	})
	if err != nil {
		return nil, fmt.Errorf("backend failed executing request: %w", err)
	}

	return result, nil
}
