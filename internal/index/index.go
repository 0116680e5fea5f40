// Package index defines the abstract secondary-index contract every
// concrete access path (starting with internal/index/hashindex)
// implements.
package index

import "github.com/cottontaildb/cottontail/internal/values"

// Operator is a predicate's comparison kind. Only the operators an
// index might accelerate are modeled; general predicate evaluation
// lives in the execution layer.
type Operator uint8

const (
	OperatorEqual Operator = iota
	OperatorIn
)

// Predicate is a single column comparison an index may be able to
// serve.
type Predicate struct {
	Column   string
	Operator Operator
	Value    values.Value   // for OperatorEqual
	Values   []values.Value // for OperatorIn
}

// Cost estimates the resources Filter would consume for a Predicate,
// for the planner to compare against a full column scan.
type Cost struct {
	Disk    float64
	Memory  float64
	Compute float64
}

// Match is one (tuple id) hit produced by Filter.
type Match struct {
	TupleID uint64
}

// EventType tags an incremental maintenance event.
type EventType uint8

const (
	EventInsert EventType = iota
	EventUpdate
	EventDelete
)

// Event describes one row-level change an index must reflect. For
// EventUpdate, Old and New are both set; New is nil for EventDelete,
// Old is nil for EventInsert.
type Event struct {
	Type    EventType
	TupleID uint64
	Old     values.Value
	New     values.Value
}

// ColumnSource is the minimal read access an index needs over its
// driving column to rebuild itself: iterate every live (tid, value)
// pair in ascending tid order. Entity.Tx satisfies this for a single
// selected column without the index package importing internal/entity.
type ColumnSource interface {
	ForEachColumn(column string, action func(tid uint64, v values.Value) error) error
}

// Index is the abstract secondary-index contract (spec.md §4.5).
type Index interface {
	// Name reports the index's unique name within its entity.
	Name() string
	// Columns reports the input columns this index is built over.
	Columns() []string
	// Produces reports the output columns a Filter match can project
	// without revisiting the base column (typically just Columns()).
	Produces() []string
	// Type reports the index kind, e.g. "hash_unique".
	Type() string
	// CanProcess reports whether this index can accelerate pred.
	CanProcess(pred Predicate) bool
	// Cost estimates the resources Filter(pred) would use.
	Cost(pred Predicate) Cost
	// Filter returns every tuple id matching pred.
	Filter(pred Predicate) ([]Match, error)
	// Rebuild clears and repopulates the index from src.
	Rebuild(src ColumnSource) error
	// Update applies a stream of incremental maintenance events.
	Update(events []Event) error
	// Close releases any open resources.
	Close() error
}
