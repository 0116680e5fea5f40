package entity

import (
	"path/filepath"
	"testing"

	"github.com/cottontaildb/cottontail/internal/index"
	"github.com/cottontaildb/cottontail/internal/values"
)

func createTestEntity(t *testing.T) *Entity {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "people")
	e, err := Create("people", dir, []ColumnSpec{
		{Name: "id", Type: values.TypeInt},
		{Name: "name", Type: values.TypeString},
	}, 32)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestInsertAndReadRow(t *testing.T) {
	e := createTestEntity(t)

	tx := e.Begin(true)
	tid, err := tx.Insert(Row{"id": values.Int(1), "name": values.String("ada")})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rtx := e.Begin(false)
	defer rtx.Close()
	row, ok, err := rtx.Read(tid)
	if err != nil || !ok {
		t.Fatalf("Read: ok=%v err=%v", ok, err)
	}
	if row["name"].(values.String) != "ada" {
		t.Fatalf("got %v, want ada", row["name"])
	}
}

// TestCreateIndexAndFilterNonUnique exercises the non-unique grouping scenario:
// createIndex, insert duplicates, filter by EQUAL returns every match.
func TestCreateIndexAndFilterNonUnique(t *testing.T) {
	e := createTestEntity(t)

	tx := e.Begin(true)
	ids, err := tx.InsertAll([]Row{
		{"id": values.Int(1), "name": values.String("ada")},
		{"id": values.Int(2), "name": values.String("bob")},
		{"id": values.Int(3), "name": values.String("ada")},
	})
	if err != nil {
		t.Fatalf("InsertAll: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := e.CreateIndex("idx_name", "hash_nonunique", "name", false); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}

	rtx := e.Begin(false)
	defer rtx.Close()
	rows, err := rtx.Filter(index.Predicate{Column: "name", Operator: index.OperatorEqual, Value: values.String("ada")})
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows named ada, got %d", len(rows))
	}
	_ = ids
}

// TestDropIndexLeavesEntityConsistent covers the drop-index scenario:
// after dropping, the count and a full scan are unaffected and the
// index is no longer listed.
func TestDropIndexLeavesEntityConsistent(t *testing.T) {
	e := createTestEntity(t)

	tx := e.Begin(true)
	for i := 0; i < 50; i++ {
		if _, err := tx.Insert(Row{"id": values.Int(int32(i)), "name": values.String("x")}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := e.CreateIndex("idx_name", "hash_nonunique", "name", false); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if err := e.DropIndex("idx_name"); err != nil {
		t.Fatalf("DropIndex: %v", err)
	}

	if len(e.Indexes()) != 0 {
		t.Fatalf("expected no indexes after drop, got %v", e.Indexes())
	}

	rtx := e.Begin(false)
	defer rtx.Close()
	count, err := rtx.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 50 {
		t.Fatalf("expected 50 rows, got %d", count)
	}
}

// TestAddColumnBackfillsExistingRows covers the supplemented
// add/drop-column scenario.
func TestAddColumnBackfillsExistingRows(t *testing.T) {
	e := createTestEntity(t)

	tx := e.Begin(true)
	tid, err := tx.Insert(Row{"id": values.Int(1), "name": values.String("ada")})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := e.AddColumn(ColumnSpec{Name: "active", Type: values.TypeBoolean}, values.Boolean(true)); err != nil {
		t.Fatalf("AddColumn: %v", err)
	}

	rtx := e.Begin(false)
	defer rtx.Close()
	row, ok, err := rtx.Read(tid)
	if err != nil || !ok {
		t.Fatalf("Read: ok=%v err=%v", ok, err)
	}
	if row["active"].(values.Boolean) != true {
		t.Fatalf("expected backfilled active=true, got %v", row["active"])
	}
}

func TestEachTxGetsADistinctID(t *testing.T) {
	e := createTestEntity(t)

	tx1 := e.Begin(false)
	defer tx1.Close()
	tx2 := e.Begin(false)
	defer tx2.Close()

	if tx1.TxID() == "" || tx2.TxID() == "" {
		t.Fatal("expected non-empty transaction ids")
	}
	if tx1.TxID() == tx2.TxID() {
		t.Fatalf("expected distinct transaction ids, both got %q", tx1.TxID())
	}
}
