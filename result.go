package bucketd

import (
	"time"

	"github.com/reveald/bucketd/aggs"
)

// Result is the outcome of one executed search: the matched document
// count, the finalized aggregation tree, and the execution duration.
//
// Example:
//
//	result, err := engine.Execute(ctx, search)
//	if err != nil {
//	    // Handle error
//	}
//
//	fmt.Printf("matched %d documents in %s\n", result.TotalHitCount, result.Duration)
//
//	terms, ok := result.Aggregations.Terms("prices")
//	if ok {
//	    for _, bucket := range terms.Buckets {
//	        fmt.Printf("%s: %d\n", bucket.KeyString(), bucket.DocCount)
//	    }
//	}
type Result struct {
	request       *Search
	TotalHitCount int64
	Aggregations  aggs.Results
	Duration      time.Duration
}

// NewResult assembles a result for a search. Backends use it to wrap
// their responses; callers normally receive results from Execute and
// never build them.
func NewResult(request *Search, totalHitCount int64, aggregations aggs.Results, duration time.Duration) *Result {
	return &Result{
		request:       request,
		TotalHitCount: totalHitCount,
		Aggregations:  aggregations,
		Duration:      duration,
	}
}

// Request returns the executed search that produced this result.
//
// Example:
//
//	search := result.Request()
//	fmt.Printf("searched %v\n", search.Indices())
func (r *Result) Request() *Search {
	return r.request
}
