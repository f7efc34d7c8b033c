package bucketd

// FieldType declares how an index stores a document field.
type FieldType string

const (
	// FieldTypeDouble marks a 64-bit floating point field.
	FieldTypeDouble FieldType = "double"
	// FieldTypeLong marks a 64-bit integer field.
	FieldTypeLong FieldType = "long"
	// FieldTypeKeyword marks an exact-match string field.
	FieldTypeKeyword FieldType = "keyword"
)

// Numeric returns true when fields of this type carry numbers.
func (t FieldType) Numeric() bool {
	return t == FieldTypeDouble || t == FieldTypeLong
}

// Mapping assigns a type to every indexed field of an index.
//
// An aggregation over a field the mapping does not carry yields an
// empty result for that index instead of failing the search.
//
// Example:
//
//	mapping := bucketd.Mapping{
//	    "price":  bucketd.FieldTypeDouble,
//	    "stock":  bucketd.FieldTypeLong,
//	    "brand":  bucketd.FieldTypeKeyword,
//	}
type Mapping map[string]FieldType

// HasNumericField returns true when the mapping carries the field
// with a numeric type.
func (m Mapping) HasNumericField(name string) bool {
	t, ok := m[name]
	return ok && t.Numeric()
}

// Source renders the mapping as an index-creation body fragment, for
// backends that manage remote indices.
func (m Mapping) Source() map[string]any {
	properties := make(map[string]any, len(m))
	for name, t := range m {
		properties[name] = map[string]any{"type": string(t)}
	}
	return map[string]any{"properties": properties}
}
