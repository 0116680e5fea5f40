// ColumnHeader: the fixed-position metadata record stored at tuple-id
// 1 of every column file.
//
// Grounded on folio/header.go's fixed-record, JSON-encoded metadata
// idea (an identifier, a version, and a handful of scalar fields
// packed into one record) — here the record is page-sized rather than
// 128 bytes, since it must also describe the column's LogicalSize for
// vector types, but it keeps the same "one JSON blob at a known
// position" shape.
package column

import (
	json "github.com/goccy/go-json"

	"github.com/cottontaildb/cottontail/internal/cterr"
	"github.com/cottontaildb/cottontail/internal/page"
	"github.com/cottontaildb/cottontail/internal/values"
)

// HeaderIdentifier is the fixed prefix stamped into every ColumnHeader.
const HeaderIdentifier = "COTTONC"

// HeaderVersion is the current column-header format version.
const HeaderVersion uint16 = 1

// Header is the column's metadata record (spec.md §4.3, §6).
type Header struct {
	Identifier   string      `json:"id"`
	Version      uint16      `json:"v"`
	TypeName     string      `json:"type"`
	LogicalSize  int         `json:"logical_size"` // vector element count; 0 for scalars
	Nullable     bool        `json:"nullable"`
	ElementCount uint64      `json:"count"`
	Created      int64       `json:"created"`
	Modified     int64       `json:"modified"`
	MaxTupleID   uint64      `json:"max_tid"` // highest tid ever allocated
	valueType    values.Type `json:"-"`
}

func (h *Header) resolveType() error {
	t, ok := values.ParseType(h.TypeName)
	if !ok {
		return cterr.ErrTypeMismatch
	}
	h.valueType = t
	return nil
}

func (h *Header) encode(p *page.Page) error {
	data, err := json.Marshal(h)
	if err != nil {
		return err
	}
	if len(data) > len(p.Data) {
		return cterr.ErrCorruptHeader
	}
	for i := range p.Data {
		p.Data[i] = 0
	}
	copy(p.Data[:], data)
	return nil
}

func decodeHeader(p *page.Page) (*Header, error) {
	end := 0
	for end < len(p.Data) && p.Data[end] != 0 {
		end++
	}
	var h Header
	if err := json.Unmarshal(p.Data[:end], &h); err != nil {
		return nil, cterr.ErrCorruptHeader
	}
	if h.Identifier != HeaderIdentifier {
		return nil, cterr.ErrCorruptHeader
	}
	if err := h.resolveType(); err != nil {
		return nil, err
	}
	return &h, nil
}
