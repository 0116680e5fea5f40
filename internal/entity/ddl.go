package entity

import (
	"fmt"
	"os"

	"github.com/cottontaildb/cottontail/internal/column"
	"github.com/cottontaildb/cottontail/internal/cterr"
	"github.com/cottontaildb/cottontail/internal/values"
)

// CreateIndex materialises a new index over column, rebuilds it from
// the column's current contents, and appends it to the entity header.
// On any failure the partially-built index file is removed and the
// header is left untouched (spec.md §4.4's createIndex contract).
func (e *Entity) CreateIndex(name, indexType, columnName string, unique bool) error {
	e.indexLock.Lock()
	defer e.indexLock.Unlock()

	if _, exists := e.indexes[name]; exists {
		return fmt.Errorf("%w: index %s", cterr.ErrAlreadyExists, name)
	}
	if _, ok := e.header.columnSpec(columnName); !ok {
		return fmt.Errorf("%w: %s", cterr.ErrUnknownColumn, columnName)
	}
	for _, is := range e.header.Indexes {
		if is.Column == columnName {
			return fmt.Errorf("%w: index %s already covers column %s", cterr.ErrAlreadyExists, is.Name, columnName)
		}
	}

	spec := IndexSpec{Name: name, Type: indexType, Column: columnName}
	idx, err := openIndex(e, spec)
	if err != nil {
		return err
	}

	tx := e.Begin(false)
	rebuildErr := idx.Rebuild(tx)
	tx.Close()
	if rebuildErr != nil {
		idx.Close()
		removeIndexFile(e, spec)
		return rebuildErr
	}

	e.closeLock.Lock()
	e.header.Indexes = append(e.header.Indexes, spec)
	err = writeHeaderFile(e.headerPath, e.header)
	if err != nil {
		e.header.Indexes = e.header.Indexes[:len(e.header.Indexes)-1]
		e.closeLock.Unlock()
		idx.Close()
		removeIndexFile(e, spec)
		return err
	}
	e.closeLock.Unlock()

	e.indexes[name] = idx
	logger.Info().Str("entity", e.name).Str("index", name).Msg("created index")
	return nil
}

// DropIndex closes and removes the named index, restoring the header
// to its pre-index state.
func (e *Entity) DropIndex(name string) error {
	e.indexLock.Lock()
	defer e.indexLock.Unlock()

	idx, ok := e.indexes[name]
	if !ok {
		return fmt.Errorf("%w: index %s", cterr.ErrDoesNotExist, name)
	}
	spec, _ := e.header.indexSpec(name)

	e.closeLock.Lock()
	kept := e.header.Indexes[:0]
	for _, is := range e.header.Indexes {
		if is.Name != name {
			kept = append(kept, is)
		}
	}
	e.header.Indexes = kept
	err := writeHeaderFile(e.headerPath, e.header)
	e.closeLock.Unlock()
	if err != nil {
		return err
	}

	idx.Close()
	delete(e.indexes, name)
	removeIndexFile(e, spec)
	logger.Info().Str("entity", e.name).Str("index", name).Msg("dropped index")
	return nil
}

// removeIndexFile deletes an index's backing file. Most index
// implementations (e.g. hashindex.HashIndex) know their own path and
// expose a Remove() method; indexPath(spec.Type, spec.Name) is the
// fallback for implementations that don't.
func removeIndexFile(e *Entity, spec IndexSpec) {
	if hi, ok := e.indexes[spec.Name]; ok {
		if remover, ok := hi.(interface{ Remove() error }); ok {
			remover.Remove()
			return
		}
	}
	os.Remove(e.indexPath(spec.Type, spec.Name))
}

// AddColumn adds a new column to the entity, backfilling every
// existing tuple id with def (which must be non-nil unless the column
// is nullable). New columns must be added with the entity otherwise
// idle: callers should hold no open Tx.
func (e *Entity) AddColumn(spec ColumnSpec, def values.Value) error {
	e.closeLock.Lock()
	defer e.closeLock.Unlock()

	if _, exists := e.header.columnSpec(spec.Name); exists {
		return fmt.Errorf("%w: column %s", cterr.ErrAlreadyExists, spec.Name)
	}
	if def == nil && !spec.Nullable {
		return cterr.ErrNullNotAllowed
	}

	c, err := column.Open(spec.Name, e.columnPath(spec.Name), spec.Type, spec.LogicalSize, spec.Nullable, e.bufferPages)
	if err != nil {
		return err
	}

	maxTid := uint64(0)
	for _, existing := range e.columns {
		tx := existing.Begin(false)
		maxTid = tx.MaxTupleID()
		tx.Close()
		break
	}
	rows := uint64(0)
	if maxTid >= firstDataTupleID {
		rows = maxTid - firstDataTupleID + 1
	}

	backfillTx := c.Begin(true)
	for i := uint64(0); i < rows; i++ {
		if _, err := backfillTx.Insert(def); err != nil {
			backfillTx.Rollback()
			c.Close()
			os.Remove(e.columnPath(spec.Name))
			return err
		}
	}
	if err := backfillTx.Commit(); err != nil {
		c.Close()
		os.Remove(e.columnPath(spec.Name))
		return err
	}

	e.header.Columns = append(e.header.Columns, spec)
	if err := writeHeaderFile(e.headerPath, e.header); err != nil {
		e.header.Columns = e.header.Columns[:len(e.header.Columns)-1]
		c.Close()
		os.Remove(e.columnPath(spec.Name))
		return err
	}

	e.columns[spec.Name] = c
	logger.Info().Str("entity", e.name).Str("column", spec.Name).Msg("added column")
	return nil
}

// DropColumn removes a column and its backing file. Any index built
// over the dropped column is dropped along with it.
// Lock order matches CreateIndex/DropIndex (indexLock acquired before
// closeLock) so the two DDL paths can never deadlock against one
// another via reversed nesting.
func (e *Entity) DropColumn(name string) error {
	e.indexLock.Lock()
	defer e.indexLock.Unlock()
	e.closeLock.Lock()
	defer e.closeLock.Unlock()

	c, ok := e.columns[name]
	if !ok {
		return fmt.Errorf("%w: column %s", cterr.ErrUnknownColumn, name)
	}

	for indexName, spec := range e.indexSpecsByColumn(name) {
		if idx, ok := e.indexes[indexName]; ok {
			idx.Close()
			removeIndexFile(e, spec)
			delete(e.indexes, indexName)
		}
	}
	var keptIndexes []IndexSpec
	for _, is := range e.header.Indexes {
		if is.Column != name {
			keptIndexes = append(keptIndexes, is)
		}
	}
	e.header.Indexes = keptIndexes

	var keptColumns []ColumnSpec
	for _, cs := range e.header.Columns {
		if cs.Name != name {
			keptColumns = append(keptColumns, cs)
		}
	}
	e.header.Columns = keptColumns
	if err := writeHeaderFile(e.headerPath, e.header); err != nil {
		return err
	}

	c.Close()
	delete(e.columns, name)
	os.Remove(e.columnPath(name))
	logger.Info().Str("entity", e.name).Str("column", name).Msg("dropped column")
	return nil
}

func (e *Entity) indexSpecsByColumn(column string) map[string]IndexSpec {
	out := make(map[string]IndexSpec)
	for _, is := range e.header.Indexes {
		if is.Column == column {
			out[is.Name] = is
		}
	}
	return out
}
