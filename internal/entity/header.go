// Entity header: the column and index manifest persisted as
// "entity.json" alongside each entity's column and index files.
//
// Grounded on folio/header.go's identifier+version+scalar-fields shape,
// here carrying a column/index manifest instead of a single document
// store's record offsets, since an entity is a directory of files
// rather than one self-contained file.
package entity

import (
	"time"

	json "github.com/goccy/go-json"

	"github.com/cottontaildb/cottontail/internal/cterr"
	"github.com/cottontaildb/cottontail/internal/values"
)

// HeaderIdentifier is the fixed prefix stamped into every entity header.
const HeaderIdentifier = "COTTONE"

// HeaderVersion is the current entity-header format version.
const HeaderVersion uint16 = 1

// ColumnSpec describes one of the entity's columns.
type ColumnSpec struct {
	Name        string      `json:"name"`
	Type        values.Type `json:"type"`
	LogicalSize int         `json:"logical_size"`
	Nullable    bool        `json:"nullable"`
}

// IndexSpec describes one of the entity's secondary indexes.
type IndexSpec struct {
	Name   string `json:"name"`
	Type   string `json:"type"` // "hash_unique" | "hash_nonunique"
	Column string `json:"column"`
}

// Header is the entity's persisted manifest.
type Header struct {
	Identifier string       `json:"id"`
	Version    uint16       `json:"v"`
	Name       string       `json:"name"`
	Columns    []ColumnSpec `json:"columns"`
	Indexes    []IndexSpec  `json:"indexes"`
	Size       uint64       `json:"size"` // row count, cached rather than recomputed per Count()
	Created    int64        `json:"created"`
	Modified   int64        `json:"modified"`
}

func newHeader(name string, columns []ColumnSpec) *Header {
	now := stamp()
	return &Header{Identifier: HeaderIdentifier, Version: HeaderVersion, Name: name, Columns: columns, Created: now, Modified: now}
}

func stamp() int64 { return time.Now().UnixNano() }

func decodeHeaderBytes(data []byte) (*Header, error) {
	var h Header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, cterr.ErrCorruptHeader
	}
	if h.Identifier != HeaderIdentifier {
		return nil, cterr.ErrCorruptHeader
	}
	return &h, nil
}

func (h *Header) encode() ([]byte, error) {
	return json.MarshalIndent(h, "", "  ")
}

func (h *Header) columnSpec(name string) (ColumnSpec, bool) {
	for _, c := range h.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

func (h *Header) indexSpec(name string) (IndexSpec, bool) {
	for _, idx := range h.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexSpec{}, false
}
