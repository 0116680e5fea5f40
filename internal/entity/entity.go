// Package entity implements the multi-column, multi-index unit of
// storage: N columns sharing one tuple-id space plus M secondary
// indexes built over them.
//
// Lock discipline follows spec.md §4.4's three-level nesting, acquired
// in this fixed order to avoid deadlock: closeLock (guards the
// entity's own lifecycle) -> txLock (serialises writers against
// readers at the entity level) -> each column's own globalLock/txLock
// (acquired transitively when a Tx opens its per-column Column.Tx).
// No teacher file models multi-object nested locking directly (folio's
// locking is single-file scope); this ordering is built straight from
// the spec's lock table, using sync.RWMutex the way folio/db.go's
// db.mu models read/write exclusion, generalised to three mutexes.
package entity

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cottontaildb/cottontail/internal/clog"
	"github.com/cottontaildb/cottontail/internal/column"
	"github.com/cottontaildb/cottontail/internal/cterr"
	"github.com/cottontaildb/cottontail/internal/index"
	"github.com/cottontaildb/cottontail/internal/index/hashindex"
)

var logger = clog.WithComponent("entity")

const headerFileName = "entity.json"

// DefaultBufferPages is the buffer pool size, in pages, each column
// opens with when a caller doesn't specify one explicitly.
const DefaultBufferPages = 256

// Entity is an open, multi-column unit of storage.
type Entity struct {
	name string
	dir  string

	closeLock sync.RWMutex
	txLock    sync.RWMutex
	indexLock sync.RWMutex

	// headerMu guards header.Size/Created/Modified, the fields a
	// committing Tx updates. Kept separate from closeLock (which
	// guards the Columns/Indexes manifest and is held read-locked for
	// a Tx's whole lifetime) so Commit can update them without
	// re-entering closeLock while already holding its read side.
	headerMu sync.RWMutex

	header      *Header
	headerPath  string
	bufferPages int

	columns map[string]*column.Column
	indexes map[string]index.Index
}

// Create initialises a new entity directory with the given columns
// and no indexes.
func Create(name, dir string, columns []ColumnSpec, bufferPages int) (*Entity, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create entity dir %s: %v", cterr.ErrStorage, dir, err)
	}
	headerPath := filepath.Join(dir, headerFileName)
	if _, err := os.Stat(headerPath); err == nil {
		return nil, fmt.Errorf("%w: entity %s", cterr.ErrAlreadyExists, name)
	}

	h := newHeader(name, columns)
	if err := writeHeaderFile(headerPath, h); err != nil {
		return nil, err
	}
	return Open(name, dir, bufferPages)
}

// Open opens an existing entity directory, opening every column and
// index file it names.
func Open(name, dir string, bufferPages int) (*Entity, error) {
	headerPath := filepath.Join(dir, headerFileName)
	data, err := os.ReadFile(headerPath)
	if err != nil {
		return nil, fmt.Errorf("%w: entity %s: %v", cterr.ErrDoesNotExist, name, err)
	}
	h, err := decodeHeaderBytes(data)
	if err != nil {
		return nil, err
	}

	e := &Entity{
		name:        name,
		dir:         dir,
		header:      h,
		headerPath:  headerPath,
		bufferPages: bufferPages,
		columns:     make(map[string]*column.Column),
		indexes:     make(map[string]index.Index),
	}

	for _, cs := range h.Columns {
		c, err := column.Open(cs.Name, e.columnPath(cs.Name), cs.Type, cs.LogicalSize, cs.Nullable, bufferPages)
		if err != nil {
			e.closeColumnsOpenedSoFar()
			return nil, err
		}
		e.columns[cs.Name] = c
	}
	for _, is := range h.Indexes {
		idx, err := openIndex(e, is)
		if err != nil {
			e.closeColumnsOpenedSoFar()
			return nil, err
		}
		e.indexes[is.Name] = idx
	}

	logger.Debug().Str("entity", name).Int("columns", len(e.columns)).Int("indexes", len(e.indexes)).Msg("opened entity")
	return e, nil
}

func (e *Entity) closeColumnsOpenedSoFar() {
	for _, c := range e.columns {
		c.Close()
	}
}

func (e *Entity) columnPath(name string) string {
	return filepath.Join(e.dir, "col_"+name+".db")
}

// indexPath returns the on-disk path for an index file: idx_<type>_<name>.db
// under the entity directory (spec.md §6).
func (e *Entity) indexPath(idxType, name string) string {
	return filepath.Join(e.dir, "idx_"+idxType+"_"+name+".db")
}

func openIndex(e *Entity, spec IndexSpec) (index.Index, error) {
	switch spec.Type {
	case "hash_unique":
		return hashindex.Open(spec.Name, e.indexPath(spec.Type, spec.Name), spec.Column, true, hashindex.AlgXXH3)
	case "hash_nonunique":
		return hashindex.Open(spec.Name, e.indexPath(spec.Type, spec.Name), spec.Column, false, hashindex.AlgXXH3)
	default:
		return nil, fmt.Errorf("%w: unknown index type %s", cterr.ErrInvalidFile, spec.Type)
	}
}

func writeHeaderFile(path string, h *Header) error {
	data, err := h.encode()
	if err != nil {
		return fmt.Errorf("%w: encode entity header: %v", cterr.ErrStorage, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("%w: write entity header: %v", cterr.ErrStorage, err)
	}
	return os.Rename(tmp, path)
}

// Name reports the entity's name.
func (e *Entity) Name() string { return e.name }

// Columns reports the entity's column names in declared order.
func (e *Entity) Columns() []string {
	e.closeLock.RLock()
	defer e.closeLock.RUnlock()
	out := make([]string, len(e.header.Columns))
	for i, c := range e.header.Columns {
		out[i] = c.Name
	}
	return out
}

// Indexes reports the names of the entity's current indexes.
func (e *Entity) Indexes() []string {
	e.indexLock.RLock()
	defer e.indexLock.RUnlock()
	out := make([]string, 0, len(e.indexes))
	for name := range e.indexes {
		out = append(out, name)
	}
	return out
}

// Index returns the named index, or (nil, false) if it doesn't exist.
func (e *Entity) Index(name string) (index.Index, bool) {
	e.indexLock.RLock()
	defer e.indexLock.RUnlock()
	idx, ok := e.indexes[name]
	return idx, ok
}

// IndexForColumn returns the first index built over column, or (nil,
// false) if none exists. Entities may carry at most one index per
// column in the current planner (spec.md's Open Questions leaves
// multi-index-per-column unresolved), so "first" is also "only".
func (e *Entity) IndexForColumn(column string) (index.Index, bool) {
	e.indexLock.RLock()
	defer e.indexLock.RUnlock()
	for _, is := range e.header.Indexes {
		if is.Column == column {
			if idx, ok := e.indexes[is.Name]; ok {
				return idx, true
			}
		}
	}
	return nil, false
}

// Close closes every column and index and releases the entity.
// Callers must not hold any open Tx.
func (e *Entity) Close() error {
	e.closeLock.Lock()
	defer e.closeLock.Unlock()

	var firstErr error
	for _, c := range e.columns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, idx := range e.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
