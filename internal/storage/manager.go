// Package storage implements the disk manager: the file-oriented
// component that translates a page.Id to a byte offset, reads and
// writes whole pages, and owns the mandatory exclusive file lock and
// crash-recovery header dance described in spec.md §4.1.
//
// Two variants share the open/close protocol in core.go: Direct writes
// through immediately and cannot roll back; WriteAheadLogged buffers
// mutations in a sibling log file until Commit applies them.
package storage

import (
	"time"

	"github.com/cottontaildb/cottontail/internal/cmetrics"
	"github.com/cottontaildb/cottontail/internal/page"
)

// Manager is the disk manager contract. Both variants implement it.
type Manager interface {
	// Read fills p with the contents of the page identified by id.
	Read(id page.Id, p *page.Page) error
	// Update persists p at its existing page id.
	Update(id page.Id, p *page.Page) error
	// Allocate assigns the next free page id, writes p there, and
	// returns the new id.
	Allocate(p *page.Page) (page.Id, error)
	// Free marks a page id reusable. Accounting only: see DESIGN.md's
	// resolution of the free-list Open Question.
	Free(id page.Id) error
	// Commit makes prior Update/Allocate calls durable.
	Commit() error
	// Rollback discards prior Update/Allocate calls since the last
	// Commit. Direct does not support this.
	Rollback() error
	// Close releases the file lock and flushes the header clean.
	Close() error
	// PageCount returns the current number of pages, including the
	// header page.
	PageCount() uint64
}

// Config configures a disk manager's open protocol.
type Config struct {
	LockTimeout time.Duration
	SyncWrites  bool
}

// DefaultConfig returns the spec's default disk-manager settings.
func DefaultConfig() Config {
	return Config{LockTimeout: 5 * time.Second, SyncWrites: true}
}

func recordPagesRead(n int)    { cmetrics.PagesRead.Add(float64(n)) }
func recordPagesWritten(n int) { cmetrics.PagesWritten.Add(float64(n)) }
