package aggs

import (
	"container/heap"
	"slices"
)

// selectTop returns the best buckets under the order together with
// the summed doc count of everything it dropped. A size of 0 returns
// every bucket fully sorted; a positive size keeps at most that many
// via a bounded heap, so cost stays proportional to the observed
// distinct keys when size is small.
func selectTop(buckets []*bucket, size int, order Order) ([]*bucket, int64) {
	if size <= 0 || size >= len(buckets) {
		slices.SortFunc(buckets, order.compare)
		return buckets, 0
	}

	var dropped int64
	h := &bucketHeap{order: order, items: make([]*bucket, 0, size)}
	for _, b := range buckets {
		if h.Len() < size {
			heap.Push(h, b)
			continue
		}

		worst := h.items[0]
		if order.less(b, worst) {
			dropped += worst.docCount
			h.items[0] = b
			heap.Fix(h, 0)
		} else {
			dropped += b.docCount
		}
	}

	selected := make([]*bucket, h.Len())
	for i := h.Len() - 1; i >= 0; i-- {
		selected[i] = heap.Pop(h).(*bucket)
	}
	return selected, dropped
}

// bucketHeap keeps the current selection with the worst-ranked bucket
// at the root, so a better candidate can displace it in O(log n).
type bucketHeap struct {
	order Order
	items []*bucket
}

func (h *bucketHeap) Len() int {
	return len(h.items)
}

func (h *bucketHeap) Less(i, j int) bool {
	return h.order.less(h.items[j], h.items[i])
}

func (h *bucketHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

func (h *bucketHeap) Push(x any) {
	h.items = append(h.items, x.(*bucket))
}

func (h *bucketHeap) Pop() any {
	last := len(h.items) - 1
	b := h.items[last]
	h.items = h.items[:last]
	return b
}
