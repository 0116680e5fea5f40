// Package buffer implements the fixed-capacity buffer pool that caches
// pinned pages read through a storage.Manager.
//
// Eviction is clock-approximated LRU restricted to unpinned frames
// (spec.md §4.2): each frame carries a reference bit set on every
// access and cleared by a passing clock hand; a frame is only a
// candidate once its bit has been cleared and it is unpinned. If the
// clock sweep finds every frame currently pinned, Get fails
// immediately with cterr.ErrBufferPoolFull rather than blocking
// indefinitely — the pool mutex itself is what makes a concurrent
// Get "block until a victim can be evicted" while an eviction or disk
// read is in flight for another caller; there is no separate wait
// queue, since spec.md §5 reserves timeouts for file-lock acquisition
// only and an unbounded wait for a pin to be released risks deadlock
// across callers that hold pins from the same transaction.
package buffer

import (
	"fmt"
	"sync"

	"github.com/cottontaildb/cottontail/internal/clog"
	"github.com/cottontaildb/cottontail/internal/cmetrics"
	"github.com/cottontaildb/cottontail/internal/cterr"
	"github.com/cottontaildb/cottontail/internal/page"
	"github.com/cottontaildb/cottontail/internal/storage"
)

var logger = clog.WithComponent("buffer-pool")

type frame struct {
	id         page.Id
	buf        *page.Page
	pinCount   int
	dirty      bool
	referenced bool
}

// Pool is a fixed-capacity PageId -> pinned frame cache in front of a
// storage.Manager.
type Pool struct {
	mgr      storage.Manager
	capacity int

	mu     sync.Mutex
	byID   map[page.Id]*frame
	clock  []*frame
	hand   int
}

// New creates a buffer pool of the given capacity (in pages) in front
// of mgr.
func New(mgr storage.Manager, capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{
		mgr:      mgr,
		capacity: capacity,
		byID:     make(map[page.Id]*frame, capacity),
	}
}

// Handle is a pinned reference to a cached page. Callers must call
// Release exactly once.
type Handle struct {
	pool  *Pool
	frame *frame
}

// Page returns the handle's underlying page buffer. Mutations must be
// followed by MarkDirty before Release.
func (h *Handle) Page() *page.Page { return h.frame.buf }

// MarkDirty flags the page for write-back on eviction or FlushAll.
func (h *Handle) MarkDirty() { h.frame.dirty = true }

// Release decrements the pin count. Once it reaches zero the frame
// becomes eligible for eviction.
func (h *Handle) Release() {
	h.pool.mu.Lock()
	defer h.pool.mu.Unlock()
	h.frame.pinCount--
	if h.frame.pinCount < 0 {
		h.frame.pinCount = 0
	}
	cmetrics.BufferPoolPinned.Set(float64(h.pool.pinnedCountLocked()))
}

func (p *Pool) pinnedCountLocked() int {
	n := 0
	for _, f := range p.byID {
		if f.pinCount > 0 {
			n++
		}
	}
	return n
}

// Adopt installs a page that the caller just allocated or wrote
// through the manager directly into the cache, pinned once, without
// issuing a redundant read. Used by callers (e.g. the column store)
// that perform their own Manager.Allocate/Update and want the result
// cached for subsequent Get calls.
func (p *Pool) Adopt(id page.Id, buf *page.Page) *Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	if f, ok := p.byID[id]; ok {
		f.buf = buf
		f.pinCount++
		f.referenced = true
		return &Handle{pool: p, frame: f}
	}

	if len(p.byID) >= p.capacity {
		p.evictLocked()
	}

	f := &frame{id: id, buf: buf, pinCount: 1, referenced: true}
	p.byID[id] = f
	p.clock = append(p.clock, f)
	return &Handle{pool: p, frame: f}
}

// Get returns a pinned handle to the requested page, reading it
// through the manager on a cache miss.
func (p *Pool) Get(id page.Id) (*Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if f, ok := p.byID[id]; ok {
		f.pinCount++
		f.referenced = true
		cmetrics.BufferPoolHits.Inc()
		return &Handle{pool: p, frame: f}, nil
	}
	cmetrics.BufferPoolMisses.Inc()

	if len(p.byID) >= p.capacity {
		if err := p.evictLocked(); err != nil {
			return nil, err
		}
	}

	buf := page.New()
	if err := p.mgr.Read(id, buf); err != nil {
		return nil, err
	}

	f := &frame{id: id, buf: buf, pinCount: 1, referenced: true}
	p.byID[id] = f
	p.clock = append(p.clock, f)
	cmetrics.BufferPoolPinned.Set(float64(p.pinnedCountLocked()))
	return &Handle{pool: p, frame: f}, nil
}

// evictLocked runs the clock algorithm over unpinned frames. Callers
// hold p.mu.
func (p *Pool) evictLocked() error {
	n := len(p.clock)
	if n == 0 {
		return fmt.Errorf("%w", cterr.ErrBufferPoolFull)
	}

	for sweep := 0; sweep < 2*n+1; sweep++ {
		idx := p.hand % len(p.clock)
		f := p.clock[idx]
		p.hand = (idx + 1) % len(p.clock)

		if f.pinCount > 0 {
			continue
		}
		if f.referenced {
			f.referenced = false
			continue
		}

		if err := p.writeBackLocked(f); err != nil {
			return err
		}
		p.removeLocked(idx)
		cmetrics.BufferPoolEvictions.Inc()
		return nil
	}

	return fmt.Errorf("%w: all %d frames pinned", cterr.ErrBufferPoolFull, n)
}

func (p *Pool) writeBackLocked(f *frame) error {
	if !f.dirty {
		return nil
	}
	if err := p.mgr.Update(f.id, f.buf); err != nil {
		return err
	}
	f.dirty = false
	return nil
}

func (p *Pool) removeLocked(idx int) {
	f := p.clock[idx]
	delete(p.byID, f.id)
	p.clock = append(p.clock[:idx], p.clock[idx+1:]...)
	if p.hand > idx {
		p.hand--
	}
}

// FlushAll writes every dirty, unpinned frame back through the
// manager. Pinned frames are skipped; callers relying on full
// durability should ensure no transaction holds open pins.
func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range p.clock {
		if f.pinCount == 0 && f.dirty {
			if err := p.writeBackLocked(f); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close flushes dirty frames and logs final occupancy.
func (p *Pool) Close() error {
	if err := p.FlushAll(); err != nil {
		return err
	}
	p.mu.Lock()
	n := len(p.byID)
	p.mu.Unlock()
	logger.Debug().Int("resident_pages", n).Msg("buffer pool closed")
	return nil
}
