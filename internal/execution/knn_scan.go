// Package execution implements the sequential and parallel kNN scan
// tasks that drive a vector column through the distance kernels in
// internal/knn.
//
// The parallel variant uses an explicit golang.org/x/sync/errgroup
// task group rather than a hand-rolled WaitGroup plus error channel,
// matching the pack's general preference for x/sync over ad hoc
// fan-out/fan-in.
package execution

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/cottontaildb/cottontail/internal/clog"
	"github.com/cottontaildb/cottontail/internal/cmetrics"
	"github.com/cottontaildb/cottontail/internal/entity"
	"github.com/cottontaildb/cottontail/internal/index"
	"github.com/cottontaildb/cottontail/internal/knn"
	"github.com/cottontaildb/cottontail/internal/values"
)

var logger = clog.WithComponent("execution")

// Query is one nearest-neighbour probe against a vector column.
type Query struct {
	Vector []float64
	K      int
}

// Params configures a kNN scan.
type Params struct {
	Column    string          // the vector column to scan
	Metric    knn.Metric
	P         int             // only consulted for knn.MetricLp
	Predicate *index.Predicate // optional boolean filter, applied before distance is computed
}

// Record is one (tuple id, distance) result row.
type Record struct {
	TupleID  uint64
	Distance float64
}

// Result holds one query's ranked records plus the output column name
// the recordset should carry them under.
type Result struct {
	DistanceColumn string // "<entity>.distance"
	Records        []Record
}

// scanPollInterval is how many rows a scan processes between checks of
// ctx and the cross-worker abort flag.
const scanPollInterval = 256

func distanceColumnName(tx *entity.Tx) string {
	return tx.EntityName() + ".distance"
}

func vectorOf(row entity.Row, column string) ([]float64, bool, error) {
	v, ok := row[column]
	if !ok || v == nil {
		return nil, false, nil
	}
	f, err := toFloat64Slice(v)
	if err != nil {
		return nil, false, err
	}
	return f, true, nil
}

func toFloat64Slice(v values.Value) ([]float64, error) {
	switch x := v.(type) {
	case values.FloatVector:
		out := make([]float64, len(x))
		for i, e := range x {
			out[i] = float64(e)
		}
		return out, nil
	case values.DoubleVector:
		return []float64(x), nil
	case values.IntVector:
		out := make([]float64, len(x))
		for i, e := range x {
			out[i] = float64(e)
		}
		return out, nil
	case values.LongVector:
		out := make([]float64, len(x))
		for i, e := range x {
			out[i] = float64(e)
		}
		return out, nil
	case values.BitVector:
		out := make([]float64, x.LogicalSize())
		for i := range out {
			if x.Get(i) {
				out[i] = 1
			}
		}
		return out, nil
	default:
		return nil, &unsupportedVectorError{v}
	}
}

type unsupportedVectorError struct{ v values.Value }

func (e *unsupportedVectorError) Error() string {
	return "execution: column value is not a vector type usable for kNN: " + e.v.Type().String()
}

// SequentialEntityScanKnn evaluates every query against the vector
// column in a single pass over tx, in ascending tuple-id order. ctx is
// polled every scanPollInterval rows so a caller can abandon a long
// scan early; it is never used for a deadline (see ParallelEntityScanKnn's
// doc comment for why).
func SequentialEntityScanKnn(ctx context.Context, tx *entity.Tx, params Params, queries []Query) ([]Result, error) {
	heaps := make([]*knn.Heap, len(queries))
	for i, q := range queries {
		heaps[i] = knn.NewHeap(q.K)
	}

	var visited int
	err := tx.ForEach(func(tid uint64, row entity.Row) error {
		visited++
		if visited%scanPollInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if params.Predicate != nil && !entity.RowMatches(row, *params.Predicate) {
			return nil
		}
		vec, ok, err := vectorOf(row, params.Column)
		if err != nil || !ok {
			return err
		}
		cmetrics.ScanRowsVisited.Inc()
		for i, q := range queries {
			d, err := knn.Distance(params.Metric, vec, q.Vector, params.P)
			if err != nil {
				return err
			}
			heaps[i].Add(knn.Pair{TupleID: tid, Distance: d})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug().Str("entity", tx.EntityName()).Int("queries", len(queries)).Msg("sequential kNN scan complete")
	return drainResults(distanceColumnName(tx), heaps), nil
}

// ParallelEntityScanKnn partitions [2, tx.MaxTupleID()] into workers
// sub-ranges of equal width (the last absorbs the remainder), scans
// each concurrently via an errgroup, and merges the resulting private
// heaps pairwise into one top-k heap per query.
//
// Cancellation matches spec.md §5: the scan has no per-operation
// timeout, so ctx is only ever polled for ctx.Err(), never raced
// against a deadline. Every worker also polls a shared atomic abort
// flag set the instant any sibling's scan function returns an error,
// so the whole group winds down promptly on either signal without
// needing context deadline propagation the spec doesn't call for.
func ParallelEntityScanKnn(ctx context.Context, tx *entity.Tx, params Params, queries []Query, workers int) ([]Result, error) {
	if workers < 1 {
		workers = 1
	}
	maxTid := tx.MaxTupleID()
	if maxTid == 0 {
		heaps := make([]*knn.Heap, len(queries))
		for i, q := range queries {
			heaps[i] = knn.NewHeap(q.K)
		}
		return drainResults(distanceColumnName(tx), heaps), nil
	}

	total := maxTid - 1 // valid tids run [2, maxTid]; tid 1 is the column header
	width := total / uint64(workers)
	if width == 0 {
		width = 1
		workers = int(total)
	}

	partialHeaps := make([][]*knn.Heap, workers)
	abort := &abortFlag{}

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		start := uint64(w)*width + 2
		end := start + width - 1
		if w == workers-1 {
			end = maxTid
		}
		if start > maxTid {
			partialHeaps[w] = emptyHeaps(queries)
			continue
		}

		g.Go(func() error {
			cmetrics.ScanWorkersActive.Inc()
			defer cmetrics.ScanWorkersActive.Dec()

			heaps := emptyHeaps(queries)
			var visited int
			err := tx.ForEachRange(start, end, func(tid uint64, row entity.Row) error {
				visited++
				if visited%scanPollInterval == 0 {
					if abort.isSet() {
						return errScanAborted
					}
					if err := ctx.Err(); err != nil {
						abort.set()
						return err
					}
				}
				if params.Predicate != nil && !entity.RowMatches(row, *params.Predicate) {
					return nil
				}
				vec, ok, err := vectorOf(row, params.Column)
				if err != nil || !ok {
					return err
				}
				cmetrics.ScanRowsVisited.Inc()
				for i, q := range queries {
					d, err := knn.Distance(params.Metric, vec, q.Vector, params.P)
					if err != nil {
						return err
					}
					heaps[i].Add(knn.Pair{TupleID: tid, Distance: d})
				}
				return nil
			})
			if err != nil {
				abort.set()
				return err
			}
			partialHeaps[w] = heaps
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Debug().Str("entity", tx.EntityName()).Int("workers", workers).Int("queries", len(queries)).Msg("parallel kNN scan complete")
	merged := emptyHeaps(queries)
	for _, heaps := range partialHeaps {
		for i, h := range heaps {
			if h == nil {
				continue
			}
			merged[i].Merge(h)
		}
	}
	return drainResults(distanceColumnName(tx), merged), nil
}

func emptyHeaps(queries []Query) []*knn.Heap {
	heaps := make([]*knn.Heap, len(queries))
	for i, q := range queries {
		heaps[i] = knn.NewHeap(q.K)
	}
	return heaps
}

func drainResults(distanceColumn string, heaps []*knn.Heap) []Result {
	results := make([]Result, len(heaps))
	for i, h := range heaps {
		pairs := h.Drain()
		records := make([]Record, len(pairs))
		for j, p := range pairs {
			records[j] = Record{TupleID: p.TupleID, Distance: p.Distance}
		}
		results[i] = Result{DistanceColumn: distanceColumn, Records: records}
	}
	return results
}

type abortFlag struct{ flag atomic.Bool }

func (a *abortFlag) set()        { a.flag.Store(true) }
func (a *abortFlag) isSet() bool { return a.flag.Load() }

var errScanAborted = scanAbortedError{}

type scanAbortedError struct{}

func (scanAbortedError) Error() string { return "execution: scan aborted by a sibling worker's failure" }
