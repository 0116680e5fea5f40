package column

import (
	"path/filepath"
	"testing"

	"github.com/cottontaildb/cottontail/internal/values"
)

func openTestColumn(t *testing.T, t2 values.Type, logicalSize int, nullable bool) *Column {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.col")
	c, err := Open("test", path, t2, logicalSize, nullable, 16)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// TestInsertReadRoundTrip covers a scalar and a vector type end to end.
func TestInsertReadRoundTrip(t *testing.T) {
	c := openTestColumn(t, values.TypeInt, 0, false)

	tx := c.Begin(true)
	tid, err := tx.Insert(values.Int(42))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if tid != 2 {
		t.Fatalf("expected first tuple id 2, got %d", tid)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rtx := c.Begin(false)
	defer rtx.Close()
	v, ok, err := rtx.Read(tid)
	if err != nil || !ok {
		t.Fatalf("Read: v=%v ok=%v err=%v", v, ok, err)
	}
	if v.(values.Int) != 42 {
		t.Fatalf("got %v, want 42", v)
	}
}

// TestDeleteThenForEachSkipsTuple exercises the delete/iterate scenario:
// a deleted tuple must not appear in a subsequent ForEach.
func TestDeleteThenForEachSkipsTuple(t *testing.T) {
	c := openTestColumn(t, values.TypeInt, 0, false)

	tx := c.Begin(true)
	ids, err := tx.InsertAll([]values.Value{values.Int(1), values.Int(2), values.Int(3)})
	if err != nil {
		t.Fatalf("InsertAll: %v", err)
	}
	if err := tx.Delete(ids[1]); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rtx := c.Begin(false)
	defer rtx.Close()
	var seen []uint64
	err = rtx.ForEach(func(tid uint64, v values.Value) error {
		seen = append(seen, tid)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if len(seen) != 2 || seen[0] != ids[0] || seen[1] != ids[2] {
		t.Fatalf("expected tids [%d %d], got %v", ids[0], ids[2], seen)
	}
}

// TestTupleIDsMonotonicAcrossTransactions checks that tuple ids never
// repeat, even after a delete, across independent write transactions.
func TestTupleIDsMonotonicAcrossTransactions(t *testing.T) {
	c := openTestColumn(t, values.TypeInt, 0, false)

	var last uint64
	for i := 0; i < 5; i++ {
		tx := c.Begin(true)
		tid, err := tx.Insert(values.Int(int32(i)))
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if tid <= last {
			t.Fatalf("tuple id %d did not increase past %d", tid, last)
		}
		last = tid
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}
}

// TestCompareAndUpdateRace mimics concurrent compare-and-update
// attempts: only the transaction observing the expected value wins.
func TestCompareAndUpdateRace(t *testing.T) {
	c := openTestColumn(t, values.TypeInt, 0, false)

	tx := c.Begin(true)
	tid, err := tx.Insert(values.Int(1))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tx1 := c.Begin(true)
	ok1, err := tx1.CompareAndUpdate(tid, values.Int(1), values.Int(2))
	if err != nil || !ok1 {
		t.Fatalf("first CompareAndUpdate: ok=%v err=%v", ok1, err)
	}
	if err := tx1.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tx2 := c.Begin(true)
	ok2, err := tx2.CompareAndUpdate(tid, values.Int(1), values.Int(3))
	if err != nil {
		t.Fatalf("second CompareAndUpdate: %v", err)
	}
	if ok2 {
		t.Fatal("expected second CompareAndUpdate to fail: value already changed")
	}
	if err := tx2.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	rtx := c.Begin(false)
	defer rtx.Close()
	v, _, err := rtx.Read(tid)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if v.(values.Int) != 2 {
		t.Fatalf("got %v, want 2", v)
	}
}

// TestVectorColumnRoundTrip checks a fixed-length vector column.
func TestVectorColumnRoundTrip(t *testing.T) {
	c := openTestColumn(t, values.TypeFloatVector, 4, false)

	tx := c.Begin(true)
	want := values.FloatVector{1, 2, 3, 4}
	tid, err := tx.Insert(want)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rtx := c.Begin(false)
	defer rtx.Close()
	v, ok, err := rtx.Read(tid)
	if err != nil || !ok {
		t.Fatalf("Read: ok=%v err=%v", ok, err)
	}
	got := v.(values.FloatVector)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("element %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
