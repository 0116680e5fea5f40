// Package page defines the fixed-size page and file-header primitives
// that every on-disk store in Cottontail DB (disk manager, WAL, column
// file, index file) is built from.
//
// Page 0 of every HARE file is reserved for the FileHeader; page ids
// are 1-based for user data. A page is a raw 4096-byte region; it
// carries no type information of its own — that belongs to the column
// or index format layered on top.
package page

import "errors"

// Size is the fixed page size in bytes (4096 = 1<<Shift).
const Size = 1 << Shift

// Shift is the bit-shift that converts a PageId to a byte offset.
const Shift = 12

// Id identifies a page within a file. Id 0 is the file header; user
// pages start at 1.
type Id uint64

// HeaderId is the reserved page id for the file header.
const HeaderId Id = 0

// Offset returns the byte offset of the page within its file.
func (id Id) Offset() int64 {
	return int64(id) << Shift
}

// Page is a single fixed-size buffer. New allocates zeroed storage.
type Page struct {
	Data [Size]byte
}

// New returns a zeroed page.
func New() *Page {
	return &Page{}
}

// ErrShortPage is returned when fewer than Size bytes are available to
// fill a page.
var ErrShortPage = errors.New("page: short read")
