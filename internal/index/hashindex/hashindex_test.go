package hashindex

import (
	"path/filepath"
	"testing"

	"github.com/cottontaildb/cottontail/internal/cterr"
	"github.com/cottontaildb/cottontail/internal/index"
	"github.com/cottontaildb/cottontail/internal/values"
)

type fakeSource struct {
	rows map[uint64]values.Value // in insertion order via ids slice
	ids  []uint64
}

func (s *fakeSource) ForEachColumn(column string, action func(tid uint64, v values.Value) error) error {
	for _, tid := range s.ids {
		if err := action(tid, s.rows[tid]); err != nil {
			return err
		}
	}
	return nil
}

func TestNonUniqueGroupsTuplesByValue(t *testing.T) {
	src := &fakeSource{
		rows: map[uint64]values.Value{1: values.Int(1), 2: values.Int(2), 3: values.Int(1)},
		ids:  []uint64{1, 2, 3},
	}
	h, err := Open("idx_a", filepath.Join(t.TempDir(), "idx.json"), "a", false, AlgXXH3)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := h.Rebuild(src); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	ms, err := h.Filter(index.Predicate{Column: "a", Operator: index.OperatorEqual, Value: values.Int(1)})
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(ms) != 2 {
		t.Fatalf("expected 2 matches for value 1, got %d", len(ms))
	}
}

func TestUniqueRejectsDuplicate(t *testing.T) {
	src := &fakeSource{
		rows: map[uint64]values.Value{1: values.Int(5), 2: values.Int(5)},
		ids:  []uint64{1, 2},
	}
	h, err := Open("idx_b", filepath.Join(t.TempDir(), "idx.json"), "b", true, AlgXXH3)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := h.Rebuild(src); err == nil {
		t.Fatal("expected duplicate key error for unique index")
	} else if !isDuplicateKeyErr(err) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func isDuplicateKeyErr(err error) bool {
	for e := err; e != nil; e = unwrap(e) {
		if e == cterr.ErrDuplicateKey {
			return true
		}
	}
	return false
}

func unwrap(err error) error {
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return u.Unwrap()
	}
	return nil
}

func TestUpdateEventOnlyRewritesWhenValueChanges(t *testing.T) {
	h, err := Open("idx_c", filepath.Join(t.TempDir(), "idx.json"), "c", true, AlgBlake2b)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := h.Update([]index.Event{{Type: index.EventInsert, TupleID: 1, New: values.Int(7)}}); err != nil {
		t.Fatalf("Update insert: %v", err)
	}

	// Update to the same value should not error (no actual key change).
	if err := h.Update([]index.Event{{Type: index.EventUpdate, TupleID: 1, Old: values.Int(7), New: values.Int(7)}}); err != nil {
		t.Fatalf("Update no-op: %v", err)
	}

	if err := h.Update([]index.Event{{Type: index.EventUpdate, TupleID: 1, Old: values.Int(7), New: values.Int(9)}}); err != nil {
		t.Fatalf("Update changed: %v", err)
	}

	ms, err := h.Filter(index.Predicate{Column: "c", Operator: index.OperatorEqual, Value: values.Int(9)})
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(ms) != 1 || ms[0].TupleID != 1 {
		t.Fatalf("expected tuple 1 under new value, got %v", ms)
	}

	ms, err = h.Filter(index.Predicate{Column: "c", Operator: index.OperatorEqual, Value: values.Int(7)})
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(ms) != 0 {
		t.Fatalf("expected no matches under old value, got %v", ms)
	}
}
