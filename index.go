package bucketd

import (
	"hash/fnv"

	"github.com/reveald/bucketd/aggs"
)

// Index is an in-memory document collection partitioned into shards.
//
// Shards exist to exercise the same collect-then-merge execution a
// distributed engine performs; results are identical for any shard
// count over the same documents.
//
// Example:
//
//	idx := bucketd.NewIndex("products",
//	    bucketd.Mapping{"price": bucketd.FieldTypeDouble},
//	    bucketd.WithShardCount(3),
//	)
//	idx.Add(
//	    bucketd.Document{"price": 49.99},
//	    bucketd.Document{"price": 12.50},
//	)
type Index struct {
	name    string
	mapping Mapping
	shards  [][]Document
	next    int
}

// IndexOption configures an Index during construction.
type IndexOption func(*Index)

// WithShardCount partitions the index into n shards. The default is a
// single shard.
func WithShardCount(n int) IndexOption {
	return func(i *Index) {
		if n > 0 {
			i.shards = make([][]Document, n)
		}
	}
}

// NewIndex creates an index with the given mapping. A nil mapping
// treats every field as numerically mapped.
func NewIndex(name string, mapping Mapping, opts ...IndexOption) *Index {
	idx := &Index{
		name:    name,
		mapping: mapping,
	}
	for _, opt := range opts {
		opt(idx)
	}
	if len(idx.shards) == 0 {
		idx.shards = make([][]Document, 1)
	}
	return idx
}

// Name returns the index name.
func (i *Index) Name() string {
	return i.name
}

// Mapping returns the index mapping.
func (i *Index) Mapping() Mapping {
	return i.mapping
}

// Add stores documents, dealing them round-robin across shards.
func (i *Index) Add(docs ...Document) {
	for _, doc := range docs {
		shard := i.next % len(i.shards)
		i.shards[shard] = append(i.shards[shard], doc)
		i.next++
	}
}

// Route stores a document on the shard its identifier hashes to, the
// way a distributed engine places documents by routing key.
func (i *Index) Route(id string, doc Document) {
	h := fnv.New32a()
	h.Write([]byte(id))
	shard := int(h.Sum32()) % len(i.shards)
	if shard < 0 {
		shard += len(i.shards)
	}
	i.shards[shard] = append(i.shards[shard], doc)
}

// Len returns the number of stored documents.
func (i *Index) Len() int {
	n := 0
	for _, docs := range i.shards {
		n += len(docs)
	}
	return n
}

// schema adapts the mapping for aggregation building. A nil mapping
// means no schema checks at all, not an empty schema.
func (i *Index) schema() aggs.Schema {
	if i.mapping == nil {
		return nil
	}
	return i.mapping
}
