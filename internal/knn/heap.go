package knn

import "container/heap"

// Pair is one (tupleId, distance) candidate.
type Pair struct {
	TupleID  uint64
	Distance float64
}

// less implements the heap's max-at-top ordering so the worst
// surviving candidate sits at index 0 and can be evicted in O(log k).
// Ties break on the larger tuple id being "worse", so that among equal
// distances the smaller tuple id survives — matching spec.md §4.6's
// tie-break rule.
func less(a, b Pair) bool {
	if a.Distance != b.Distance {
		return a.Distance > b.Distance
	}
	return a.TupleID > b.TupleID
}

type pairHeap []Pair

func (h pairHeap) Len() int            { return len(h) }
func (h pairHeap) Less(i, j int) bool  { return less(h[i], h[j]) }
func (h pairHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *pairHeap) Push(x interface{}) { *h = append(*h, x.(Pair)) }
func (h *pairHeap) Pop() interface{} {
	old := *h
	n := len(old)
	last := old[n-1]
	*h = old[:n-1]
	return last
}

// Heap is a bounded min-k selector: it retains at most k pairs with
// the smallest distance seen across every Add call.
type Heap struct {
	k int
	h pairHeap
}

// NewHeap returns a Heap bounded to k entries.
func NewHeap(k int) *Heap {
	if k < 1 {
		k = 1
	}
	return &Heap{k: k, h: make(pairHeap, 0, k)}
}

// Add inserts pair if the heap is under capacity, or replaces the
// current worst candidate iff pair strictly improves on it.
func (hp *Heap) Add(pair Pair) {
	if len(hp.h) < hp.k {
		heap.Push(&hp.h, pair)
		return
	}
	if less(hp.h[0], pair) {
		hp.h[0] = pair
		heap.Fix(&hp.h, 0)
	}
}

// Merge folds other's surviving candidates into hp via repeated Add,
// for combining per-worker heaps after a parallel scan.
func (hp *Heap) Merge(other *Heap) {
	for _, p := range other.h {
		hp.Add(p)
	}
}

// Len reports the number of candidates currently held.
func (hp *Heap) Len() int { return len(hp.h) }

// Drain empties the heap and returns its contents in ascending
// distance order (ties broken by ascending tuple id).
func (hp *Heap) Drain() []Pair {
	out := make([]Pair, len(hp.h))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&hp.h).(Pair)
	}
	return out
}
