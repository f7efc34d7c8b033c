package aggs

import (
	"math"

	"github.com/pkg/errors"
)

// bucket accumulates one distinct key's state: the documents counted
// into it and its nested aggregation state. Nested calculators are
// instantiated when the bucket is first created, so an empty bucket
// still exposes fully-formed empty sub-results.
type bucket struct {
	key      float64
	docCount int64
	subs     map[string]calculator
}

func (b *bucket) collect(doc Document) error {
	b.docCount++
	for name, sub := range b.subs {
		if err := sub.collect(doc); err != nil {
			return errors.Wrapf(err, "sub-aggregation [%s]", name)
		}
	}
	return nil
}

// bucketTable maps raw 64-bit key patterns to buckets. Bit-for-bit
// key identity avoids floating-point equality pitfalls and is the
// join key when merging shards. The table grows with the observed
// distinct-key count only; it is never pre-sized from a requested
// result size.
type bucketTable struct {
	buckets map[uint64]*bucket
	subs    []Aggregation
	bc      buildContext
}

func newBucketTable(subs []Aggregation, bc buildContext) *bucketTable {
	return &bucketTable{
		buckets: make(map[uint64]*bucket),
		subs:    subs,
		bc:      bc,
	}
}

func (t *bucketTable) get(key float64) (*bucket, error) {
	bits := math.Float64bits(key)
	if b, ok := t.buckets[bits]; ok {
		return b, nil
	}

	subs, err := buildSubs(t.subs, t.bc)
	if err != nil {
		return nil, err
	}
	b := &bucket{key: key, subs: subs}
	t.buckets[bits] = b
	return b, nil
}

// merge folds another table into this one, summing doc counts and
// merging nested state for identical keys and adopting buckets this
// table has not seen.
func (t *bucketTable) merge(other *bucketTable) error {
	for bits, ob := range other.buckets {
		b, ok := t.buckets[bits]
		if !ok {
			t.buckets[bits] = ob
			continue
		}

		b.docCount += ob.docCount
		for name, osub := range ob.subs {
			sub, ok := b.subs[name]
			if !ok {
				return errors.Wrapf(ErrMergeInconsistency, "sub-aggregation [%s] missing from bucket", name)
			}
			if err := sub.merge(osub); err != nil {
				return errors.Wrapf(err, "sub-aggregation [%s]", name)
			}
		}
	}
	return nil
}

func (t *bucketTable) all() []*bucket {
	buckets := make([]*bucket, 0, len(t.buckets))
	for _, b := range t.buckets {
		buckets = append(buckets, b)
	}
	return buckets
}

func (t *bucketTable) len() int {
	return len(t.buckets)
}
