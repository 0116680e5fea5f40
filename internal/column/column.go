// Package column implements the single-column store (spec.md §4.3):
// a fixed-type sequence of values addressed by tuple id, backed by a
// WAL disk manager and a buffer pool.
//
// Layout: page 0 is the storage.Manager's own FileHeader; page 1
// (page.Id 1) holds the column Header described in header.go and is
// reserved as tuple id 1, so user tuple ids start at 2 and tuple id t
// (t >= 2) lives at page.Id(t) directly. Each data page carries exactly one
// record framed as [presence:1][length:4][payload:length] — a
// simplification noted in DESIGN.md that trades per-page space
// efficiency for implementation simplicity, since spec.md does not
// mandate slotted multi-record pages.
package column

import (
	"fmt"
	"sync"
	"time"

	"github.com/cottontaildb/cottontail/internal/buffer"
	"github.com/cottontaildb/cottontail/internal/clog"
	"github.com/cottontaildb/cottontail/internal/cterr"
	"github.com/cottontaildb/cottontail/internal/page"
	"github.com/cottontaildb/cottontail/internal/storage"
	"github.com/cottontaildb/cottontail/internal/values"
)

var logger = clog.WithComponent("column")

// headerPageID is the fixed location of the column Header.
const headerPageID = page.Id(1)

// recordOverhead is the presence byte plus the uint32 length prefix
// every data record carries.
const recordOverhead = 1 + 4

// Column is an open, fixed-type column file.
type Column struct {
	name string
	path string
	mgr  storage.Manager
	pool *buffer.Pool

	// globalLock is read-held for the lifetime of every Tx and
	// write-held only while a structural change (e.g. Close) is in
	// progress, per the entity package's three-level lock discipline.
	globalLock sync.RWMutex
	// txLock serialises writers: a Tx acquires it for writing on its
	// first mutating call and holds it continuously through commit,
	// rollback, or close. Read transactions never take it, so a reader
	// running beside a writer sees the writer's staged, uncommitted
	// pages: the column gives no snapshot isolation.
	txLock sync.RWMutex

	mu     sync.Mutex // guards header below
	header *Header
}

// Open opens or creates the column file at path holding values of type
// t (logicalSize is the fixed vector length for vector types, 0 for
// scalars).
func Open(name, path string, t values.Type, logicalSize int, nullable bool, bufferPages int) (*Column, error) {
	mgr, err := storage.OpenWriteAheadLogged(path, page.FileTypeColumn, storage.DefaultConfig())
	if err != nil {
		return nil, err
	}
	pool := buffer.New(mgr, bufferPages)

	c := &Column{name: name, path: path, mgr: mgr, pool: pool}

	if mgr.PageCount() <= uint64(headerPageID) {
		h := &Header{
			Identifier:  HeaderIdentifier,
			Version:     HeaderVersion,
			TypeName:    t.String(),
			LogicalSize: logicalSize,
			Nullable:    nullable,
			Created:     stamp(),
		}
		if err := h.resolveType(); err != nil {
			mgr.Close()
			return nil, err
		}
		if _, allocErr := allocateHeaderPage(mgr, h); allocErr != nil {
			mgr.Close()
			return nil, allocErr
		}
		if err := mgr.Commit(); err != nil {
			mgr.Close()
			return nil, err
		}
		c.header = h
	} else {
		h, err := readHeaderPage(mgr)
		if err != nil {
			mgr.Close()
			return nil, err
		}
		if h.TypeName != t.String() {
			mgr.Close()
			return nil, fmt.Errorf("%w: column %s is %s, opened as %s", cterr.ErrTypeMismatch, name, h.TypeName, t)
		}
		c.header = h
	}

	logger.Debug().Str("column", name).Str("type", t.String()).Msg("opened column")
	return c, nil
}

func allocateHeaderPage(mgr storage.Manager, h *Header) (page.Id, error) {
	p := page.New()
	if err := h.encode(p); err != nil {
		return 0, err
	}
	id, err := mgr.Allocate(p)
	if err != nil {
		return 0, err
	}
	if id != headerPageID {
		return 0, fmt.Errorf("%w: expected column header at page %d, got %d", cterr.ErrCorruptHeader, headerPageID, id)
	}
	return id, nil
}

func readHeaderPage(mgr storage.Manager) (*Header, error) {
	p := page.New()
	if err := mgr.Read(headerPageID, p); err != nil {
		return nil, err
	}
	return decodeHeader(p)
}

// dataPageID maps a tuple id directly to its page id: tid 1 is
// reserved for the column header (headerPageID), so only tid >= 2 is
// ever passed in by callers addressing an actual data page.
func dataPageID(tid uint64) page.Id { return page.Id(tid) }
func tidFromPage(id page.Id) uint64 { return uint64(id) }

// firstDataTupleID is the lowest tuple id that can ever hold a record.
const firstDataTupleID = uint64(2)

// Name reports the column's name.
func (c *Column) Name() string { return c.name }

// Type reports the column's value type.
func (c *Column) Type() values.Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.header.valueType
}

// Close flushes and releases the underlying file. Callers must not
// hold any open Tx.
func (c *Column) Close() error {
	c.globalLock.Lock()
	defer c.globalLock.Unlock()
	if err := c.pool.Close(); err != nil {
		return err
	}
	return c.mgr.Close()
}

func stamp() int64 { return time.Now().UnixNano() }
