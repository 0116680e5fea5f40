package storage

import (
	"errors"
	"fmt"

	"github.com/cottontaildb/cottontail/internal/page"
)

// Direct is the write-through disk manager variant. Every Update and
// Allocate call persists immediately; Commit recomputes the checksum
// and writes the header, and Rollback is unsupported, matching
// spec.md §4.1.
type Direct struct {
	c *core
}

// OpenDirect opens or creates a direct (write-through) HARE file.
func OpenDirect(path string, fileType uint32, cfg Config) (*Direct, error) {
	c, err := openCore(path, fileType, cfg)
	if err != nil {
		return nil, err
	}
	return &Direct{c: c}, nil
}

func (d *Direct) Read(id page.Id, p *page.Page) error {
	return d.c.readPage(id, p)
}

func (d *Direct) Update(id page.Id, p *page.Page) error {
	if err := d.c.boundsCheck(id); err != nil {
		return err
	}
	return d.c.writePageRaw(id, p)
}

func (d *Direct) Allocate(p *page.Page) (page.Id, error) {
	id := page.Id(d.c.header.PageCount)
	if err := d.c.writePageRaw(id, p); err != nil {
		return 0, err
	}
	d.c.header.PageCount++
	if err := d.c.flushHeader(); err != nil {
		return 0, err
	}
	return id, nil
}

func (d *Direct) Free(id page.Id) error {
	return d.c.free(id)
}

// Commit refreshes the header checksum over the current data pages and
// fsyncs the header. All data pages are already durable because Direct
// writes through on every call; the checksum is what lets a reopen
// after a crash (sanity left in-use) detect whether those pages are
// actually intact.
func (d *Direct) Commit() error {
	if err := d.c.refreshChecksum(); err != nil {
		return err
	}
	return d.c.flushHeader()
}

// Rollback is unsupported by the Direct variant: there is nothing
// buffered to discard.
func (d *Direct) Rollback() error {
	return fmt.Errorf("%w: direct disk manager does not support rollback", errors.ErrUnsupported)
}

func (d *Direct) Close() error {
	return d.c.closeCore()
}

func (d *Direct) PageCount() uint64 { return d.c.PageCount() }

var _ Manager = (*Direct)(nil)
