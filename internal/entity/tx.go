package entity

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cottontaildb/cottontail/internal/column"
	"github.com/cottontaildb/cottontail/internal/cterr"
	"github.com/cottontaildb/cottontail/internal/index"
	"github.com/cottontaildb/cottontail/internal/values"
)

// Row is one tuple's column values, keyed by column name.
type Row map[string]values.Value

// firstDataTupleID mirrors column.firstDataTupleID: tuple id 1 is
// reserved for each column's own header page, so the lowest tid an
// entity row can ever occupy is 2.
const firstDataTupleID = uint64(2)

// Tx is a transaction spanning every column of an entity. Opening one
// spawns a column.Tx per column in the entity's declared order; all
// per-column mutations within one Entity.Tx commit or roll back
// together, which is what keeps tuple ids aligned across columns.
type Tx struct {
	entity *Entity
	id     string
	write  bool
	closed bool

	columnTxs   map[string]*column.Tx
	columnOrder []string

	// events accumulates per-index maintenance events raised by this
	// Tx's mutations, applied to each index's Update at Commit.
	events map[string][]index.Event

	// sizeDelta tracks this Tx's net change to the entity's row count,
	// applied to the cached header.Size at Commit (spec.md §4.4
	// "updates entity header size + modified").
	sizeDelta int64
}

// Begin starts a transaction over every column of e. Write
// transactions take e's txLock exclusively for the duration, matching
// the single-writer-per-entity discipline of spec.md §5.
func (e *Entity) Begin(write bool) *Tx {
	e.closeLock.RLock()
	if write {
		e.txLock.Lock()
	} else {
		e.txLock.RLock()
	}

	order := make([]string, len(e.header.Columns))
	for i, c := range e.header.Columns {
		order[i] = c.Name
	}

	tx := &Tx{
		entity:      e,
		id:          uuid.New().String(),
		write:       write,
		columnTxs:   make(map[string]*column.Tx, len(e.columns)),
		columnOrder: order,
		events:      make(map[string][]index.Event),
	}
	for _, name := range tx.columnOrder {
		tx.columnTxs[name] = e.columns[name].Begin(write)
	}
	return tx
}

func (tx *Tx) firstColumnTx() *column.Tx {
	for _, name := range tx.columnOrder {
		return tx.columnTxs[name]
	}
	return nil
}

// Count returns the number of live tuples from the entity header's
// cached Size field, rather than rescanning a column (spec.md §4.4:
// the header tracks size, updated on every committed Insert/Delete).
func (tx *Tx) Count() (uint64, error) {
	tx.entity.headerMu.RLock()
	defer tx.entity.headerMu.RUnlock()
	return tx.entity.header.Size, nil
}

// MaxTupleID returns the highest tuple id ever allocated.
func (tx *Tx) MaxTupleID() uint64 {
	c := tx.firstColumnTx()
	if c == nil {
		return 0
	}
	return c.MaxTupleID()
}

// Read returns the full row at tid, or (nil, false) if it is absent. A
// nullable column with no record at tid holds a null and is left out
// of the row. A cross-column mismatch (one column has the tuple, a
// non-nullable one doesn't) is reported as corruption rather than
// silently returning a partial row, since spec.md §4.4 requires every
// column to carry the same tuple-id set.
func (tx *Tx) Read(tid uint64) (Row, bool, error) {
	row := make(Row, len(tx.columnOrder))
	var anyPresent, anyAbsent bool
	for _, name := range tx.columnOrder {
		v, ok, err := tx.columnTxs[name].Read(tid)
		if err != nil {
			return nil, false, err
		}
		if ok {
			anyPresent = true
			row[name] = v
		} else if spec, _ := tx.entity.header.columnSpec(name); !spec.Nullable {
			anyAbsent = true
		}
	}
	if anyPresent && anyAbsent {
		return nil, false, fmt.Errorf("%w: tx %s: tuple %d present in some columns but not others", cterr.ErrEntityCorrupt, tx.id, tid)
	}
	return row, anyPresent, nil
}

// ReadMany reads every tid in tids, skipping ones that don't exist.
func (tx *Tx) ReadMany(tids []uint64) ([]Row, error) {
	out := make([]Row, 0, len(tids))
	for _, tid := range tids {
		row, ok, err := tx.Read(tid)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

// ForEach invokes action for every live row in ascending tid order.
func (tx *Tx) ForEach(action func(tid uint64, row Row) error) error {
	return tx.ForEachRange(firstDataTupleID, tx.MaxTupleID(), action)
}

// ForEachRange invokes action for every live row with from <= tid <=
// to, in ascending order. Used by the parallel kNN scan to partition
// the tuple-id space across workers.
func (tx *Tx) ForEachRange(from, to uint64, action func(tid uint64, row Row) error) error {
	if from < firstDataTupleID {
		from = firstDataTupleID
	}
	for tid := from; tid <= to; tid++ {
		row, ok, err := tx.Read(tid)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := action(tid, row); err != nil {
			return err
		}
	}
	return nil
}

// EntityName reports the name of the entity this Tx was opened
// against, for output-column naming by the execution layer.
func (tx *Tx) EntityName() string { return tx.entity.Name() }

// TxID returns this transaction's correlation id, assigned at Begin
// and carried through its log lines and corruption errors so a single
// transaction's activity can be traced across an entity's columns.
func (tx *Tx) TxID() string { return tx.id }

// Map invokes action for every live row and collects its results.
func (tx *Tx) Map(action func(tid uint64, row Row) (values.Value, error)) ([]values.Value, error) {
	var out []values.Value
	err := tx.ForEach(func(tid uint64, row Row) error {
		v, err := action(tid, row)
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

// Filter evaluates pred, using an index that can process it when one
// exists, falling back to a full scan otherwise.
func (tx *Tx) Filter(pred index.Predicate) ([]Row, error) {
	if idx, ok := tx.entity.IndexForColumn(pred.Column); ok && idx.CanProcess(pred) {
		matches, err := idx.Filter(pred)
		if err != nil {
			return nil, err
		}
		tids := make([]uint64, len(matches))
		for i, m := range matches {
			tids[i] = m.TupleID
		}
		return tx.ReadMany(tids)
	}

	var out []Row
	err := tx.ForEach(func(tid uint64, row Row) error {
		if RowMatches(row, pred) {
			out = append(out, row)
		}
		return nil
	})
	return out, err
}

// RowMatches evaluates pred against row directly, without consulting
// any index. Exposed for callers (e.g. the execution layer's kNN scan)
// that need predicate evaluation without a full Filter call.
func RowMatches(row Row, pred index.Predicate) bool {
	v, ok := row[pred.Column]
	if !ok {
		return false
	}
	switch pred.Operator {
	case index.OperatorEqual:
		return valueEqual(v, pred.Value)
	case index.OperatorIn:
		for _, want := range pred.Values {
			if valueEqual(v, want) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func valueEqual(a, b values.Value) bool {
	ab, errA := values.Serialize(a)
	bb, errB := values.Serialize(b)
	if errA != nil || errB != nil {
		return false
	}
	if len(ab) != len(bb) {
		return false
	}
	for i := range ab {
		if ab[i] != bb[i] {
			return false
		}
	}
	return true
}

// Insert appends row as a new tuple across every column, returning the
// assigned tuple id. row must supply a value for every declared
// column (nil is accepted for nullable columns).
func (tx *Tx) Insert(row Row) (uint64, error) {
	if !tx.write {
		return 0, cterr.ErrReadOnly
	}
	var tid uint64
	for i, name := range tx.columnOrder {
		v := row[name]
		assigned, err := tx.columnTxs[name].Insert(v)
		if err != nil {
			return 0, err
		}
		if i == 0 {
			tid = assigned
		} else if assigned != tid {
			return 0, fmt.Errorf("%w: tx %s: column %s drifted to tuple id %d, expected %d", cterr.ErrEntityCorrupt, tx.id, name, assigned, tid)
		}
		tx.recordEvent(name, index.Event{Type: index.EventInsert, TupleID: tid, New: v})
	}
	tx.sizeDelta++
	return tid, nil
}

// InsertAll inserts rows one at a time, in order, returning their
// assigned tuple ids.
func (tx *Tx) InsertAll(rows []Row) ([]uint64, error) {
	ids := make([]uint64, 0, len(rows))
	for _, row := range rows {
		tid, err := tx.Insert(row)
		if err != nil {
			return nil, err
		}
		ids = append(ids, tid)
	}
	return ids, nil
}

// Delete removes tid from every column.
func (tx *Tx) Delete(tid uint64) error {
	if !tx.write {
		return cterr.ErrReadOnly
	}
	row, ok, err := tx.Read(tid)
	if err != nil {
		return err
	}
	for _, name := range tx.columnOrder {
		if err := tx.columnTxs[name].Delete(tid); err != nil {
			return err
		}
		if ok {
			tx.recordEvent(name, index.Event{Type: index.EventDelete, TupleID: tid, Old: row[name]})
		}
	}
	if ok {
		tx.sizeDelta--
	}
	return nil
}

// DeleteAll deletes every tid in tids.
func (tx *Tx) DeleteAll(tids []uint64) error {
	for _, tid := range tids {
		if err := tx.Delete(tid); err != nil {
			return err
		}
	}
	return nil
}

func (tx *Tx) recordEvent(column string, ev index.Event) {
	for _, is := range tx.entity.header.Indexes {
		if is.Column == column {
			tx.events[is.Name] = append(tx.events[is.Name], ev)
		}
	}
}

// Commit commits every per-column transaction, then applies the
// accumulated index maintenance events, matching spec.md §4.4's "index
// map commits atomically on the underlying page store, after columns".
func (tx *Tx) Commit() error {
	defer tx.finish()
	for _, name := range tx.columnOrder {
		if err := tx.columnTxs[name].Commit(); err != nil {
			return err
		}
	}
	if !tx.write {
		return nil
	}

	if tx.sizeDelta != 0 {
		tx.entity.headerMu.Lock()
		if tx.sizeDelta > 0 {
			tx.entity.header.Size += uint64(tx.sizeDelta)
		} else if d := uint64(-tx.sizeDelta); d <= tx.entity.header.Size {
			tx.entity.header.Size -= d
		} else {
			tx.entity.header.Size = 0
		}
		tx.entity.header.Modified = stamp()
		err := writeHeaderFile(tx.entity.headerPath, tx.entity.header)
		tx.entity.headerMu.Unlock()
		if err != nil {
			return err
		}
	}

	tx.entity.indexLock.RLock()
	defer tx.entity.indexLock.RUnlock()
	for indexName, evs := range tx.events {
		idx, ok := tx.entity.indexes[indexName]
		if !ok {
			continue
		}
		if err := idx.Update(evs); err != nil {
			return fmt.Errorf("%w: %v", cterr.ErrIndexUpdateFailed, err)
		}
	}
	return nil
}

// Rollback discards every per-column transaction's staged mutations.
func (tx *Tx) Rollback() error {
	defer tx.finish()
	for _, name := range tx.columnOrder {
		if err := tx.columnTxs[name].Rollback(); err != nil {
			return err
		}
	}
	return nil
}

// Close is equivalent to Rollback for an uncommitted write Tx, and a
// no-op release for a read Tx.
func (tx *Tx) Close() error {
	if tx.closed {
		return nil
	}
	return tx.Rollback()
}

func (tx *Tx) finish() {
	if tx.closed {
		return
	}
	tx.closed = true
	if tx.write {
		tx.entity.txLock.Unlock()
	} else {
		tx.entity.txLock.RUnlock()
	}
	tx.entity.closeLock.RUnlock()
}

// ForEachColumn satisfies index.ColumnSource, letting an index rebuild
// itself by iterating a single driving column through this Tx.
func (tx *Tx) ForEachColumn(columnName string, action func(tid uint64, v values.Value) error) error {
	c, ok := tx.columnTxs[columnName]
	if !ok {
		return fmt.Errorf("%w: %s", cterr.ErrUnknownColumn, columnName)
	}
	return c.ForEach(action)
}
