package column

import (
	"fmt"

	"github.com/cottontaildb/cottontail/internal/cterr"
	"github.com/cottontaildb/cottontail/internal/page"
	"github.com/cottontaildb/cottontail/internal/values"
)

// State is a Tx's position in the CLEAN/DIRTY/CLOSED/ERROR state
// machine (spec.md §4.3).
type State uint8

const (
	StateClean State = iota
	StateDirty
	StateClosed
	StateError
)

// Tx is a transaction over a single column. The zero value is not
// usable; obtain one via Column.Begin.
type Tx struct {
	col   *Column
	write bool
	state State
}

// Begin starts a transaction. Write transactions acquire the column's
// txLock on their first mutating call, not at Begin, and hold it
// continuously until Commit, Rollback, or Close.
func (c *Column) Begin(write bool) *Tx {
	c.globalLock.RLock()
	return &Tx{col: c, write: write, state: StateClean}
}

func (tx *Tx) checkReadable() error {
	switch tx.state {
	case StateClosed:
		return cterr.ErrClosedTx
	case StateError:
		return cterr.ErrTxInError
	default:
		return nil
	}
}

// ensureWriteLock upgrades to the exclusive txLock on the first
// mutating call of a write transaction's lifetime.
func (tx *Tx) ensureWriteLock() error {
	if !tx.write {
		return cterr.ErrReadOnly
	}
	if err := tx.checkReadable(); err != nil {
		return err
	}
	if tx.state == StateClean {
		if !tx.col.txLock.TryLock() {
			return cterr.ErrWriteLockDenied
		}
		tx.state = StateDirty
	}
	return nil
}

func (tx *Tx) fail(err error) error {
	tx.state = StateError
	logger.Error().Err(err).Str("path", tx.col.path).Msg("column transaction entered ERROR state")
	return err
}

// Read returns the value stored at tid, or (nil, false) if the tuple
// has been deleted or never existed within the current page count.
func (tx *Tx) Read(tid uint64) (values.Value, bool, error) {
	if err := tx.checkReadable(); err != nil {
		return nil, false, err
	}
	if tid < firstDataTupleID {
		return nil, false, cterr.ErrInvalidTupleID
	}
	id := dataPageID(tid)
	if uint64(id) >= tx.col.mgr.PageCount() {
		return nil, false, nil
	}

	h, err := tx.col.pool.Get(id)
	if err != nil {
		return nil, false, err
	}
	defer h.Release()

	present, payload := decodeRecord(h.Page())
	if !present {
		return nil, false, nil
	}
	v, err := values.Deserialize(tx.col.header.valueType, tx.col.header.LogicalSize, payload)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Count returns the number of live (non-deleted) tuples, scanning the
// full page range. Callers on a hot path should prefer a cached count
// maintained by the entity layer; this is the column's own ground
// truth.
func (tx *Tx) Count() (uint64, error) {
	if err := tx.checkReadable(); err != nil {
		return 0, err
	}
	var n uint64
	max := tx.col.mgr.PageCount()
	for id := dataPageID(firstDataTupleID); uint64(id) < max; id++ {
		h, err := tx.col.pool.Get(id)
		if err != nil {
			return 0, err
		}
		present, _ := decodeRecord(h.Page())
		h.Release()
		if present {
			n++
		}
	}
	return n, nil
}

// MaxTupleID returns the highest tuple id ever allocated, including
// deleted ones, or 0 if the column is empty.
func (tx *Tx) MaxTupleID() uint64 {
	n := tx.col.mgr.PageCount()
	if n <= uint64(headerPageID)+1 {
		return 0
	}
	return tidFromPage(page.Id(n - 1))
}

// Insert appends v as a new tuple and returns its assigned tuple id.
// A nil v inserts a null row if the column is nullable.
func (tx *Tx) Insert(v values.Value) (uint64, error) {
	ids, err := tx.InsertAll([]values.Value{v})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// InsertAll appends vs as consecutive new tuples, returning their
// assigned ids in order.
func (tx *Tx) InsertAll(vs []values.Value) ([]uint64, error) {
	if err := tx.ensureWriteLock(); err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(vs))
	for _, v := range vs {
		p := page.New()
		if err := encodeValueRecord(p, tx.col.header, v); err != nil {
			return nil, tx.fail(err)
		}
		id, err := tx.col.mgr.Allocate(p)
		if err != nil {
			return nil, tx.fail(err)
		}
		h := tx.col.pool.Adopt(id, p)
		h.Release()
		tid := tidFromPage(id)
		ids = append(ids, tid)
	}

	tx.col.mu.Lock()
	tx.col.header.ElementCount += uint64(len(vs))
	if len(ids) > 0 && ids[len(ids)-1] > tx.col.header.MaxTupleID {
		tx.col.header.MaxTupleID = ids[len(ids)-1]
	}
	tx.col.mu.Unlock()

	return ids, nil
}

// Update overwrites the value at tid unconditionally.
func (tx *Tx) Update(tid uint64, v values.Value) error {
	if err := tx.ensureWriteLock(); err != nil {
		return err
	}
	if tid < firstDataTupleID {
		return cterr.ErrInvalidTupleID
	}
	return tx.writeAt(tid, v)
}

// CompareAndUpdate overwrites the value at tid only if the current
// value equals expected (compared via values.Serialize byte equality),
// returning false without error if the comparison fails.
func (tx *Tx) CompareAndUpdate(tid uint64, expected, v values.Value) (bool, error) {
	if err := tx.ensureWriteLock(); err != nil {
		return false, err
	}
	if tid < firstDataTupleID {
		return false, cterr.ErrInvalidTupleID
	}

	id := dataPageID(tid)
	h, err := tx.col.pool.Get(id)
	if err != nil {
		return false, tx.fail(err)
	}
	present, payload := decodeRecord(h.Page())
	if !present {
		h.Release()
		return false, nil
	}
	expectedBytes, err := values.Serialize(expected)
	if err != nil {
		h.Release()
		return false, tx.fail(err)
	}
	if !bytesEqual(payload, expectedBytes) {
		h.Release()
		return false, nil
	}
	h.Release()

	if err := tx.writeAt(tid, v); err != nil {
		return false, err
	}
	return true, nil
}

func (tx *Tx) writeAt(tid uint64, v values.Value) error {
	id := dataPageID(tid)
	p := page.New()
	if err := encodeValueRecord(p, tx.col.header, v); err != nil {
		return tx.fail(err)
	}
	if err := tx.col.mgr.Update(id, p); err != nil {
		return tx.fail(err)
	}
	h := tx.col.pool.Adopt(id, p)
	h.MarkDirty()
	h.Release()
	return nil
}

// Delete marks tid as absent. Deleting an already-absent or
// out-of-range tid is a no-op.
func (tx *Tx) Delete(tid uint64) error {
	if err := tx.ensureWriteLock(); err != nil {
		return err
	}
	if tid < firstDataTupleID {
		return nil
	}
	id := dataPageID(tid)
	if uint64(id) >= tx.col.mgr.PageCount() {
		return nil
	}
	p := page.New() // presence byte 0, rest zeroed: an absent record
	if err := tx.col.mgr.Update(id, p); err != nil {
		return tx.fail(err)
	}
	h := tx.col.pool.Adopt(id, p)
	h.MarkDirty()
	h.Release()

	tx.col.mu.Lock()
	if tx.col.header.ElementCount > 0 {
		tx.col.header.ElementCount--
	}
	tx.col.mu.Unlock()
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

// ForEach invokes action for every live tuple in ascending tid order,
// stopping at the first error action returns.
func (tx *Tx) ForEach(action func(tid uint64, v values.Value) error) error {
	return tx.ForEachRange(firstDataTupleID, tx.MaxTupleID(), action)
}

// ForEachRange invokes action for every live tuple with from <= tid <=
// to, in ascending order.
func (tx *Tx) ForEachRange(from, to uint64, action func(tid uint64, v values.Value) error) error {
	if err := tx.checkReadable(); err != nil {
		return err
	}
	if from < firstDataTupleID {
		from = firstDataTupleID
	}
	max := tx.col.mgr.PageCount()
	for tid := from; tid <= to; tid++ {
		id := dataPageID(tid)
		if uint64(id) >= max {
			break
		}
		h, err := tx.col.pool.Get(id)
		if err != nil {
			return err
		}
		present, payload := decodeRecord(h.Page())
		if !present {
			h.Release()
			continue
		}
		v, err := values.Deserialize(tx.col.header.valueType, tx.col.header.LogicalSize, payload)
		h.Release()
		if err != nil {
			return err
		}
		if err := action(tid, v); err != nil {
			return err
		}
	}
	return nil
}

// Map invokes action for every live tuple and collects its results in
// ascending tid order.
func (tx *Tx) Map(action func(tid uint64, v values.Value) (values.Value, error)) ([]values.Value, error) {
	var out []values.Value
	err := tx.ForEach(func(tid uint64, v values.Value) error {
		mapped, err := action(tid, v)
		if err != nil {
			return err
		}
		out = append(out, mapped)
		return nil
	})
	return out, err
}

// Commit applies all staged mutations durably and releases the write
// lock, if held.
func (tx *Tx) Commit() error {
	defer tx.finish()
	if tx.state == StateClosed {
		return cterr.ErrClosedTx
	}
	if tx.state == StateError {
		return cterr.ErrTxInError
	}
	if tx.write && tx.state == StateDirty {
		tx.col.mu.Lock()
		tx.col.header.Modified = stamp()
		headerErr := flushHeaderLocked(tx.col)
		tx.col.mu.Unlock()
		if headerErr != nil {
			return headerErr
		}
		if err := tx.col.mgr.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// Rollback discards all staged mutations and releases the write lock,
// if held. Rollback is always legal, including from the ERROR state.
func (tx *Tx) Rollback() error {
	defer tx.finish()
	if tx.state == StateClosed {
		return cterr.ErrClosedTx
	}
	if tx.write && tx.state != StateClean {
		return tx.col.mgr.Rollback()
	}
	return nil
}

// Close releases tx's locks without committing. Equivalent to
// Rollback for a dirty write transaction.
func (tx *Tx) Close() error {
	if tx.state == StateClosed {
		return nil
	}
	return tx.Rollback()
}

func (tx *Tx) finish() {
	if tx.state == StateClosed {
		return
	}
	if tx.write && (tx.state == StateDirty || tx.state == StateError) {
		tx.col.txLock.Unlock()
	}
	tx.state = StateClosed
	tx.col.globalLock.RUnlock()
}

func flushHeaderLocked(c *Column) error {
	p := page.New()
	if err := c.header.encode(p); err != nil {
		return err
	}
	if err := c.mgr.Update(headerPageID, p); err != nil {
		return err
	}
	h := c.pool.Adopt(headerPageID, p)
	h.MarkDirty()
	h.Release()
	return nil
}

// encodeValueRecord frames v (or an absent record for nil) into p as
// [presence:1][length:4][payload].
func encodeValueRecord(p *page.Page, hdr *Header, v values.Value) error {
	if v == nil {
		if !hdr.Nullable {
			return cterr.ErrNullNotAllowed
		}
		return nil // presence byte left 0
	}
	payload, err := values.Serialize(v)
	if err != nil {
		return err
	}
	if recordOverhead+len(payload) > len(p.Data) {
		return fmt.Errorf("%w: record of %d bytes exceeds page size", cterr.ErrStorage, len(payload))
	}
	p.Data[0] = 1
	putUint32(p.Data[1:5], uint32(len(payload)))
	copy(p.Data[5:], payload)
	return nil
}

func decodeRecord(p *page.Page) (present bool, payload []byte) {
	if p.Data[0] == 0 {
		return false, nil
	}
	n := getUint32(p.Data[1:5])
	return true, p.Data[5 : 5+n]
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
