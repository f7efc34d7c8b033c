package bucketd

import (
	"github.com/reveald/bucketd/aggs"
)

// MatchAllQuery matches every document. It is the default query of a
// search that declares none.
type MatchAllQuery struct{}

// MatchAll creates a query matching every document.
func MatchAll() MatchAllQuery {
	return MatchAllQuery{}
}

// Matches implements aggs.Predicate.
func (MatchAllQuery) Matches(aggs.Document) bool {
	return true
}

// Source renders the query as a request body fragment.
func (MatchAllQuery) Source() map[string]any {
	return map[string]any{"match_all": map[string]any{}}
}

// TermQuery matches documents carrying an exact field value, numeric
// or string.
//
// Example:
//
//	bucketd.Term("brand", "acme")
//	bucketd.Term("stock", 0)
type TermQuery struct {
	field string
	value any
}

// Term creates an exact-match query.
func Term(field string, value any) TermQuery {
	return TermQuery{field: field, value: value}
}

// Matches implements aggs.Predicate.
func (q TermQuery) Matches(doc aggs.Document) bool {
	if s, ok := q.value.(string); ok {
		for _, v := range doc.FieldStrings(q.field) {
			if v == s {
				return true
			}
		}
		return false
	}

	f, ok := numericValue(q.value)
	if !ok {
		return false
	}
	for _, v := range doc.FieldValues(q.field) {
		if v == f {
			return true
		}
	}
	return false
}

// Source renders the query as a request body fragment.
func (q TermQuery) Source() map[string]any {
	return map[string]any{"term": map[string]any{q.field: map[string]any{"value": q.value}}}
}

// RangeQuery matches documents with a numeric field value inside the
// configured bounds. Bounds are inclusive.
//
// Example:
//
//	bucketd.Range("price").Gte(10).Lte(100)
type RangeQuery struct {
	field string
	min   float64
	max   float64
	wmin  bool
	wmax  bool
}

// Range creates a range query over a numeric field. Without bounds it
// matches any document carrying the field.
func Range(field string) RangeQuery {
	return RangeQuery{field: field}
}

// Gte sets the inclusive lower bound.
func (q RangeQuery) Gte(v float64) RangeQuery {
	q.min = v
	q.wmin = true
	return q
}

// Lte sets the inclusive upper bound.
func (q RangeQuery) Lte(v float64) RangeQuery {
	q.max = v
	q.wmax = true
	return q
}

// Matches implements aggs.Predicate.
func (q RangeQuery) Matches(doc aggs.Document) bool {
	for _, v := range doc.FieldValues(q.field) {
		if q.wmin && v < q.min {
			continue
		}
		if q.wmax && v > q.max {
			continue
		}
		return true
	}
	return false
}

// Source renders the query as a request body fragment.
func (q RangeQuery) Source() map[string]any {
	bounds := map[string]any{}
	if q.wmin {
		bounds["gte"] = q.min
	}
	if q.wmax {
		bounds["lte"] = q.max
	}
	return map[string]any{"range": map[string]any{q.field: bounds}}
}
