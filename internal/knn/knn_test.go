package knn

import (
	"math"
	"testing"
)

func TestL2Distance(t *testing.T) {
	d, err := Distance(MetricL2, []float64{0, 0}, []float64{3, 4}, 0)
	if err != nil {
		t.Fatalf("Distance: %v", err)
	}
	if math.Abs(d-5) > 1e-9 {
		t.Fatalf("got %v, want 5", d)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Approx distance from (0,0) to (0,1) degrees ~ 111.19 km.
	d, err := Distance(MetricHaversine, []float64{0, 0}, []float64{0, 1}, 0)
	if err != nil {
		t.Fatalf("Distance: %v", err)
	}
	if math.Abs(d-111195) > 500 {
		t.Fatalf("got %v meters, want ~111195", d)
	}
}

func TestHaversineRejectsWrongSize(t *testing.T) {
	if _, err := Distance(MetricHaversine, []float64{0, 0, 0}, []float64{0, 1}, 0); err == nil {
		t.Fatal("expected error for non-2D haversine input")
	}
}

func TestVectorSizeMismatch(t *testing.T) {
	if _, err := Distance(MetricL2, []float64{1, 2}, []float64{1, 2, 3}, 0); err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestHeapKeepsKSmallestWithTieBreak(t *testing.T) {
	h := NewHeap(2)
	h.Add(Pair{TupleID: 1, Distance: 5})
	h.Add(Pair{TupleID: 2, Distance: 1})
	h.Add(Pair{TupleID: 3, Distance: 3})
	h.Add(Pair{TupleID: 4, Distance: 1}) // tie with tid 2 at distance 1

	got := h.Drain()
	if len(got) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(got))
	}
	if got[0].Distance != 1 || got[0].TupleID != 2 {
		t.Fatalf("expected (tid=2, d=1) first on tie-break, got %+v", got[0])
	}
	if got[1].Distance != 1 || got[1].TupleID != 4 {
		t.Fatalf("expected (tid=4, d=1) second, got %+v", got[1])
	}
}

func TestHeapMerge(t *testing.T) {
	a := NewHeap(2)
	a.Add(Pair{TupleID: 1, Distance: 10})
	a.Add(Pair{TupleID: 2, Distance: 20})

	b := NewHeap(2)
	b.Add(Pair{TupleID: 3, Distance: 5})
	b.Add(Pair{TupleID: 4, Distance: 30})

	a.Merge(b)
	got := a.Drain()
	if len(got) != 2 || got[0].TupleID != 3 || got[1].TupleID != 1 {
		t.Fatalf("expected merged top-2 [tid3(5), tid1(10)], got %+v", got)
	}
}
