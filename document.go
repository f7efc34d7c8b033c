// Package bucketd is an embeddable aggregation engine for numeric
// document values. It executes terms, histogram, filter and metric
// aggregations over in-memory document sets, shard by shard, and can
// delegate the same request tree to Elasticsearch.
package bucketd

// Document is a flat, map-shaped search document.
//
// Field values may be single numbers, strings, or lists of either.
// Numeric access normalizes every number to float64; non-numeric
// entries are skipped rather than failing the document.
//
// Example:
//
//	doc := bucketd.Document{
//	    "price":   49.99,
//	    "ratings": []any{4, 5, 5},
//	    "brand":   "acme",
//	}
type Document map[string]any

// FieldValues returns the document's numeric values for a field, in
// stored order, empty when the field is absent or carries no numbers.
//
// Example:
//
//	doc := bucketd.Document{"ratings": []any{4, 5, 5}}
//	values := doc.FieldValues("ratings")
//	// values == []float64{4, 5, 5}
func (d Document) FieldValues(name string) []float64 {
	v, ok := d[name]
	if !ok {
		return nil
	}

	switch t := v.(type) {
	case []float64:
		return t
	case []any:
		values := make([]float64, 0, len(t))
		for _, e := range t {
			if f, ok := numericValue(e); ok {
				values = append(values, f)
			}
		}
		return values
	default:
		if f, ok := numericValue(v); ok {
			return []float64{f}
		}
	}

	return nil
}

// FieldStrings returns the document's string values for a field,
// empty when the field is absent or carries no strings.
//
// Example:
//
//	doc := bucketd.Document{"tags": []any{"premium", "featured"}}
//	tags := doc.FieldStrings("tags")
//	// tags == []string{"premium", "featured"}
func (d Document) FieldStrings(name string) []string {
	v, ok := d[name]
	if !ok {
		return nil
	}

	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		values := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				values = append(values, s)
			}
		}
		return values
	}

	return nil
}

func numericValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}
