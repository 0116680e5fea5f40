package execution

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cottontaildb/cottontail/internal/entity"
	"github.com/cottontaildb/cottontail/internal/index"
	"github.com/cottontaildb/cottontail/internal/knn"
	"github.com/cottontaildb/cottontail/internal/values"
)

func createScanEntity(t *testing.T, n int) *entity.Entity {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "points")
	e, err := entity.Create("points", dir, []entity.ColumnSpec{
		{Name: "id", Type: values.TypeInt},
		{Name: "label", Type: values.TypeString},
		{Name: "vec", Type: values.TypeDoubleVector, LogicalSize: 2},
	}, 64)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { e.Close() })

	tx := e.Begin(true)
	for i := 0; i < n; i++ {
		label := "even"
		if i%2 != 0 {
			label = "odd"
		}
		_, err := tx.Insert(entity.Row{
			"id":    values.Int(int32(i)),
			"label": values.String(label),
			"vec":   values.DoubleVector{float64(i), float64(i)},
		})
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return e
}

func TestSequentialScanFindsNearestByTupleOrder(t *testing.T) {
	e := createScanEntity(t, 20)
	tx := e.Begin(false)
	defer tx.Close()

	results, err := SequentialEntityScanKnn(context.Background(), tx, Params{Column: "vec", Metric: knn.MetricL2}, []Query{
		{Vector: []float64{5, 5}, K: 3},
	})
	if err != nil {
		t.Fatalf("SequentialEntityScanKnn: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result set, got %d", len(results))
	}
	records := results[0].Records
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].TupleID != 7 || records[0].Distance != 0 {
		t.Fatalf("expected exact match at tuple 7 (vec row index 5), got %+v", records[0])
	}
	if results[0].DistanceColumn != "points.distance" {
		t.Fatalf("unexpected distance column name %q", results[0].DistanceColumn)
	}
}

func TestSequentialScanHonoursPredicate(t *testing.T) {
	e := createScanEntity(t, 20)
	tx := e.Begin(false)
	defer tx.Close()

	pred := index.Predicate{Column: "label", Operator: index.OperatorEqual, Value: values.String("odd")}
	results, err := SequentialEntityScanKnn(context.Background(), tx, Params{Column: "vec", Metric: knn.MetricL2, Predicate: &pred}, []Query{
		{Vector: []float64{0, 0}, K: 5},
	})
	if err != nil {
		t.Fatalf("SequentialEntityScanKnn: %v", err)
	}
	for _, rec := range results[0].Records {
		row, ok, err := tx.Read(rec.TupleID)
		if err != nil || !ok {
			t.Fatalf("Read(%d): ok=%v err=%v", rec.TupleID, ok, err)
		}
		if row["label"].(values.String) != "odd" {
			t.Fatalf("predicate leaked an even row: tuple %d", rec.TupleID)
		}
	}
}

func TestParallelScanMatchesSequential(t *testing.T) {
	e := createScanEntity(t, 97)
	seqTx := e.Begin(false)
	defer seqTx.Close()
	parTx := e.Begin(false)
	defer parTx.Close()

	queries := []Query{
		{Vector: []float64{10, 10}, K: 5},
		{Vector: []float64{80, 80}, K: 3},
	}

	seq, err := SequentialEntityScanKnn(context.Background(), seqTx, Params{Column: "vec", Metric: knn.MetricL2}, queries)
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	par, err := ParallelEntityScanKnn(context.Background(), parTx, Params{Column: "vec", Metric: knn.MetricL2}, queries, 4)
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}

	if len(seq) != len(par) {
		t.Fatalf("result-set count mismatch: %d vs %d", len(seq), len(par))
	}
	for i := range seq {
		if len(seq[i].Records) != len(par[i].Records) {
			t.Fatalf("query %d: record count mismatch: %d vs %d", i, len(seq[i].Records), len(par[i].Records))
		}
		for j := range seq[i].Records {
			if seq[i].Records[j] != par[i].Records[j] {
				t.Fatalf("query %d record %d: sequential %+v != parallel %+v", i, j, seq[i].Records[j], par[i].Records[j])
			}
		}
	}
}

func TestParallelScanOnEmptyEntity(t *testing.T) {
	e := createScanEntity(t, 0)
	tx := e.Begin(false)
	defer tx.Close()

	results, err := ParallelEntityScanKnn(context.Background(), tx, Params{Column: "vec", Metric: knn.MetricL2}, []Query{{Vector: []float64{0, 0}, K: 5}}, 4)
	if err != nil {
		t.Fatalf("ParallelEntityScanKnn: %v", err)
	}
	if len(results[0].Records) != 0 {
		t.Fatalf("expected no records on an empty entity, got %d", len(results[0].Records))
	}
}

func TestSequentialScanStopsOnCancelledContext(t *testing.T) {
	e := createScanEntity(t, scanPollInterval*4)
	tx := e.Begin(false)
	defer tx.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := SequentialEntityScanKnn(ctx, tx, Params{Column: "vec", Metric: knn.MetricL2}, []Query{{Vector: []float64{0, 0}, K: 5}})
	if err == nil {
		t.Fatal("expected a cancellation error, got nil")
	}
}

func TestParallelScanWithMoreWorkersThanRows(t *testing.T) {
	e := createScanEntity(t, 3)
	tx := e.Begin(false)
	defer tx.Close()

	results, err := ParallelEntityScanKnn(context.Background(), tx, Params{Column: "vec", Metric: knn.MetricL2}, []Query{{Vector: []float64{0, 0}, K: 10}}, 16)
	if err != nil {
		t.Fatalf("ParallelEntityScanKnn: %v", err)
	}
	if len(results[0].Records) != 3 {
		t.Fatalf("expected all 3 rows back, got %d", len(results[0].Records))
	}
}
