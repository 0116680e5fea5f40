// Package hashindex implements Cottontail DB's reference secondary
// index: an on-disk hash map from a single driving column's value to
// one (unique) or many (non-unique) tuple ids.
//
// Grounded on folio/hash.go's multi-algorithm hash(label, alg)
// function, lifted nearly verbatim and generalised from string labels
// to arbitrary serialized values.Value keys. Persistence follows
// folio/rename.go's write-new-then-replace discipline: the whole
// bucket table is marshalled with goccy/go-json and written to a
// temporary file that is renamed over the live one, so a crash mid-save
// never leaves a half-written index file.
package hashindex

import (
	"fmt"
	"os"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"

	"github.com/cottontaildb/cottontail/internal/clog"
	"github.com/cottontaildb/cottontail/internal/cterr"
	"github.com/cottontaildb/cottontail/internal/index"
	"github.com/cottontaildb/cottontail/internal/values"
)

var logger = clog.WithComponent("hash-index")

// Algorithm selects the hashing function used to bucket keys,
// mirroring folio's AlgXXHash3/AlgBlake2b constants.
type Algorithm uint8

const (
	AlgXXH3 Algorithm = iota
	AlgBlake2b
)

func hashKey(data []byte, alg Algorithm) string {
	switch alg {
	case AlgBlake2b:
		h, _ := blake2b.New(8, nil)
		h.Write(data)
		return fmt.Sprintf("%016x", h.Sum(nil))
	default:
		return fmt.Sprintf("%016x", xxh3.Hash(data))
	}
}

// entry is one distinct key within a bucket, together with every
// tuple id currently mapped to it.
type entry struct {
	Key      []byte   `json:"key"`
	TupleIDs []uint64 `json:"tids"`
}

// onDisk is the JSON shape persisted to path.
type onDisk struct {
	Unique  bool               `json:"unique"`
	Alg     Algorithm          `json:"alg"`
	Buckets map[string][]entry `json:"buckets"`
}

// HashIndex is the reference hash index: unique or non-unique,
// keyed on a single column.
type HashIndex struct {
	name   string
	column string
	path   string
	unique bool
	alg    Algorithm

	mu      sync.RWMutex
	buckets map[string][]entry
}

// Open loads a hash index from path, creating an empty one if the
// file does not yet exist.
func Open(name, path, column string, unique bool, alg Algorithm) (*HashIndex, error) {
	h := &HashIndex{
		name:    name,
		column:  column,
		path:    path,
		unique:  unique,
		alg:     alg,
		buckets: make(map[string][]entry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := h.save(); err != nil {
				return nil, err
			}
			return h, nil
		}
		return nil, fmt.Errorf("%w: read hash index %s: %v", cterr.ErrStorage, path, err)
	}

	var d onDisk
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: decode hash index %s: %v", cterr.ErrCorruptHeader, path, err)
	}
	h.unique = d.Unique
	h.alg = d.Alg
	h.buckets = d.Buckets
	return h, nil
}

func (h *HashIndex) save() error {
	d := onDisk{Unique: h.unique, Alg: h.alg, Buckets: h.buckets}
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("%w: marshal hash index: %v", cterr.ErrStorage, err)
	}
	tmp := h.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("%w: write hash index temp file: %v", cterr.ErrStorage, err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		return fmt.Errorf("%w: replace hash index file: %v", cterr.ErrStorage, err)
	}
	return nil
}

func (h *HashIndex) Name() string       { return h.name }
func (h *HashIndex) Columns() []string  { return []string{h.column} }
func (h *HashIndex) Produces() []string { return []string{h.column} }

func (h *HashIndex) Type() string {
	if h.unique {
		return "hash_unique"
	}
	return "hash_nonunique"
}

func (h *HashIndex) CanProcess(pred index.Predicate) bool {
	if pred.Column != h.column {
		return false
	}
	return pred.Operator == index.OperatorEqual || pred.Operator == index.OperatorIn
}

func (h *HashIndex) Cost(pred index.Predicate) index.Cost {
	switch pred.Operator {
	case index.OperatorEqual:
		return index.Cost{Disk: 1, Memory: 1, Compute: 1}
	case index.OperatorIn:
		n := float64(len(pred.Values))
		return index.Cost{Disk: n, Memory: n, Compute: n}
	default:
		return index.Cost{Disk: 1e9, Memory: 1e9, Compute: 1e9}
	}
}

func (h *HashIndex) Filter(pred index.Predicate) ([]index.Match, error) {
	if !h.CanProcess(pred) {
		return nil, cterr.ErrUnsupportedPredicate
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch pred.Operator {
	case index.OperatorEqual:
		return h.lookupLocked(pred.Value)
	case index.OperatorIn:
		var out []index.Match
		for _, v := range pred.Values {
			ms, err := h.lookupLocked(v)
			if err != nil {
				return nil, err
			}
			out = append(out, ms...)
		}
		return out, nil
	default:
		return nil, cterr.ErrUnsupportedPredicate
	}
}

func (h *HashIndex) lookupLocked(v values.Value) ([]index.Match, error) {
	key, err := values.Serialize(v)
	if err != nil {
		return nil, err
	}
	bucket := h.buckets[hashKey(key, h.alg)]
	for _, e := range bucket {
		if bytesEqual(e.Key, key) {
			out := make([]index.Match, len(e.TupleIDs))
			for i, tid := range e.TupleIDs {
				out[i] = index.Match{TupleID: tid}
			}
			return out, nil
		}
	}
	return nil, nil
}

// Rebuild clears the index and repopulates it from src in ascending
// tid order, enforcing uniqueness for the unique variant.
func (h *HashIndex) Rebuild(src index.ColumnSource) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buckets = make(map[string][]entry)
	err := src.ForEachColumn(h.column, func(tid uint64, v values.Value) error {
		return h.insertLocked(tid, v)
	})
	if err != nil {
		return err
	}
	logger.Debug().Str("index", h.name).Msg("rebuilt hash index")
	return h.save()
}

func (h *HashIndex) insertLocked(tid uint64, v values.Value) error {
	if v == nil {
		return nil
	}
	key, err := values.Serialize(v)
	if err != nil {
		return err
	}
	bucketKey := hashKey(key, h.alg)
	bucket := h.buckets[bucketKey]
	for i, e := range bucket {
		if bytesEqual(e.Key, key) {
			if h.unique && len(e.TupleIDs) > 0 {
				return fmt.Errorf("%w: duplicate key for unique index %s", cterr.ErrDuplicateKey, h.name)
			}
			bucket[i].TupleIDs = append(bucket[i].TupleIDs, tid)
			h.buckets[bucketKey] = bucket
			return nil
		}
	}
	h.buckets[bucketKey] = append(bucket, entry{Key: key, TupleIDs: []uint64{tid}})
	return nil
}

func (h *HashIndex) removeLocked(tid uint64, v values.Value) error {
	if v == nil {
		return nil
	}
	key, err := values.Serialize(v)
	if err != nil {
		return err
	}
	bucketKey := hashKey(key, h.alg)
	bucket := h.buckets[bucketKey]
	for i, e := range bucket {
		if bytesEqual(e.Key, key) {
			filtered := e.TupleIDs[:0]
			for _, id := range e.TupleIDs {
				if id != tid {
					filtered = append(filtered, id)
				}
			}
			if len(filtered) == 0 {
				bucket = append(bucket[:i], bucket[i+1:]...)
			} else {
				bucket[i].TupleIDs = filtered
			}
			h.buckets[bucketKey] = bucket
			return nil
		}
	}
	return nil
}

// Update applies a stream of incremental maintenance events. An
// UPDATE becomes a delete of the old key plus an insert of the new key
// only when the indexed value actually changed.
func (h *HashIndex) Update(events []index.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ev := range events {
		switch ev.Type {
		case index.EventInsert:
			if err := h.insertLocked(ev.TupleID, ev.New); err != nil {
				return err
			}
		case index.EventDelete:
			if err := h.removeLocked(ev.TupleID, ev.Old); err != nil {
				return err
			}
		case index.EventUpdate:
			if valueChanged(ev.Old, ev.New) {
				if err := h.removeLocked(ev.TupleID, ev.Old); err != nil {
					return err
				}
				if err := h.insertLocked(ev.TupleID, ev.New); err != nil {
					return err
				}
			}
		}
	}
	return h.save()
}

func (h *HashIndex) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.save()
}

// Remove deletes the on-disk index file. Used by dropIndex.
func (h *HashIndex) Remove() error {
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove hash index file: %v", cterr.ErrStorage, err)
	}
	os.Remove(h.path + ".tmp")
	return nil
}

func valueChanged(old, updated values.Value) bool {
	if old == nil || updated == nil {
		return old != nil || updated != nil
	}
	oldBytes, errOld := values.Serialize(old)
	newBytes, errNew := values.Serialize(updated)
	if errOld != nil || errNew != nil {
		return true
	}
	return !bytesEqual(oldBytes, newBytes)
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

var _ index.Index = (*HashIndex)(nil)
