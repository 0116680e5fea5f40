// Write-ahead-logged disk manager variant and its log record framing.
//
// Each mutation is appended to a sibling "<name>.wal" file as a
// {pageId, length, bytes, lsn} record (spec.md §6). Commit appends a
// commit marker, applies the buffered records to the main file in
// order, flushes the header, and truncates the log. Rollback simply
// discards the log. If the process crashes between the WAL write and
// the apply step, the next Open finds a WAL ending in a commit marker
// and finishes the apply before the file is usable.
package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/cottontaildb/cottontail/internal/cmetrics"
	"github.com/cottontaildb/cottontail/internal/cterr"
	"github.com/cottontaildb/cottontail/internal/page"
)

const walRecordOverhead = 8 + 4 + 8 // pageId + length + lsn

// commitMarkerID is a page id no real page can have; its appearance
// in the log terminates a committed batch.
const commitMarkerID = page.Id(^uint64(0))

// walRecord is one {pageId, length, bytes, lsn} frame.
type walRecord struct {
	id   page.Id
	data []byte
	lsn  uint64
}

func encodeWALRecord(r walRecord) []byte {
	buf := make([]byte, walRecordOverhead+len(r.data))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(r.id))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(r.data)))
	copy(buf[12:12+len(r.data)], r.data)
	binary.LittleEndian.PutUint64(buf[12+len(r.data):], r.lsn)
	return buf
}

// readWALRecords parses every frame in the log, returning the frames
// and whether a commit marker terminated the sequence.
func readWALRecords(f *os.File) ([]walRecord, bool, error) {
	var records []walRecord
	head := make([]byte, 12)
	for {
		if _, err := io.ReadFull(f, head); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return records, false, nil
			}
			return nil, false, err
		}
		id := page.Id(binary.LittleEndian.Uint64(head[0:8]))
		length := binary.LittleEndian.Uint32(head[8:12])
		if id == commitMarkerID {
			lsnBuf := make([]byte, 8)
			if _, err := io.ReadFull(f, lsnBuf); err != nil {
				return records, false, nil
			}
			return records, true, nil
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(f, data); err != nil {
			return records, false, nil
		}
		lsnBuf := make([]byte, 8)
		if _, err := io.ReadFull(f, lsnBuf); err != nil {
			return records, false, nil
		}
		records = append(records, walRecord{id: id, data: data, lsn: binary.LittleEndian.Uint64(lsnBuf)})
	}
}

// WriteAheadLogged is the WAL disk manager variant.
type WriteAheadLogged struct {
	c       *core
	walPath string
	wal     *os.File
	lsn     uint64

	pending      map[page.Id][]byte
	order        []page.Id
	pendingCount uint64 // tentative header.PageCount including uncommitted allocations
}

// OpenWriteAheadLogged opens or creates a WAL-backed HARE file. If a
// leftover log from a crashed commit is found, it is replayed (if it
// ends in a commit marker) or discarded (if it does not) before the
// file is handed back to the caller.
func OpenWriteAheadLogged(path string, fileType uint32, cfg Config) (*WriteAheadLogged, error) {
	c, err := openCore(path, fileType, cfg)
	if err != nil {
		return nil, err
	}

	walPath := path + ".wal"
	w := &WriteAheadLogged{
		c:            c,
		walPath:      walPath,
		pending:      make(map[page.Id][]byte),
		pendingCount: c.header.PageCount,
	}

	if info, statErr := os.Stat(walPath); statErr == nil && info.Size() > 0 {
		if err := w.recoverLeftoverLog(); err != nil {
			c.closeCore()
			return nil, err
		}
	}
	w.pendingCount = c.header.PageCount

	wal, err := os.OpenFile(walPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		c.closeCore()
		return nil, fmt.Errorf("%w: open wal %s: %v", cterr.ErrStorage, walPath, err)
	}
	w.wal = wal
	return w, nil
}

func (w *WriteAheadLogged) recoverLeftoverLog() error {
	f, err := os.Open(w.walPath)
	if err != nil {
		return fmt.Errorf("%w: open leftover wal: %v", cterr.ErrStorage, err)
	}
	defer f.Close()

	records, committed, err := readWALRecords(f)
	if err != nil {
		return fmt.Errorf("%w: parse leftover wal: %v", cterr.ErrStorage, err)
	}
	if !committed {
		logger.Warn().Str("path", w.walPath).Msg("discarding incomplete WAL from prior crash")
		return nil
	}

	logger.Warn().Str("path", w.walPath).Int("records", len(records)).Msg("replaying committed WAL from prior crash")
	maxID := w.c.header.PageCount
	for _, r := range records {
		p := page.New()
		copy(p.Data[:], r.data)
		if uint64(r.id) >= w.c.header.PageCount {
			if uint64(r.id)+1 > maxID {
				maxID = uint64(r.id) + 1
			}
		}
		if err := w.c.writePageRaw(r.id, p); err != nil {
			return err
		}
	}
	w.c.header.PageCount = maxID
	if err := w.c.refreshChecksum(); err != nil {
		return err
	}
	return w.c.flushHeader()
}

func (w *WriteAheadLogged) Read(id page.Id, p *page.Page) error {
	if data, ok := w.pending[id]; ok {
		copy(p.Data[:], data)
		return nil
	}
	return w.c.readPage(id, p)
}

func (w *WriteAheadLogged) Update(id page.Id, p *page.Page) error {
	if id < 1 || uint64(id) >= w.pendingCount {
		return fmt.Errorf("%w: id %d, have %d pages", cterr.ErrPageOutOfBounds, id, w.pendingCount)
	}
	return w.stage(id, p)
}

func (w *WriteAheadLogged) Allocate(p *page.Page) (page.Id, error) {
	id := page.Id(w.pendingCount)
	if err := w.stage(id, p); err != nil {
		return 0, err
	}
	w.pendingCount++
	return id, nil
}

func (w *WriteAheadLogged) stage(id page.Id, p *page.Page) error {
	w.lsn++
	data := make([]byte, page.Size)
	copy(data, p.Data[:])
	rec := encodeWALRecord(walRecord{id: id, data: data, lsn: w.lsn})
	if _, err := w.wal.Write(rec); err != nil {
		return fmt.Errorf("%w: append wal record: %v", cterr.ErrStorage, err)
	}
	if w.c.cfg.SyncWrites {
		w.wal.Sync()
	}
	cmetrics.WALBytesAppended.Add(float64(len(rec)))

	if _, exists := w.pending[id]; !exists {
		w.order = append(w.order, id)
	}
	w.pending[id] = data
	return nil
}

func (w *WriteAheadLogged) Free(id page.Id) error {
	return w.c.free(id)
}

// Commit appends a commit marker, applies every staged page to the
// main file in write order, updates and flushes the header, and
// truncates the log.
func (w *WriteAheadLogged) Commit() error {
	if len(w.pending) == 0 {
		return nil
	}
	marker := make([]byte, 12+8)
	binary.LittleEndian.PutUint64(marker[0:8], uint64(commitMarkerID))
	if _, err := w.wal.Write(marker); err != nil {
		return fmt.Errorf("%w: append commit marker: %v", cterr.ErrStorage, err)
	}
	if err := w.wal.Sync(); err != nil {
		return fmt.Errorf("%w: sync wal: %v", cterr.ErrStorage, err)
	}

	var archived bytes.Buffer
	for _, id := range w.order {
		p := page.New()
		copy(p.Data[:], w.pending[id])
		if err := w.c.writePageRaw(id, p); err != nil {
			return err
		}
		archived.Write(encodeWALRecord(walRecord{id: id, data: w.pending[id], lsn: w.lsn}))
	}
	w.c.header.PageCount = w.pendingCount
	if err := w.c.refreshChecksum(); err != nil {
		return err
	}
	if err := w.c.flushHeader(); err != nil {
		return err
	}
	if err := appendArchive(w.c.path, archived.Bytes()); err != nil {
		logger.Warn().Err(err).Msg("failed to archive committed WAL batch")
	}

	return w.truncateLog()
}

// Rollback discards every staged page since the last Commit.
func (w *WriteAheadLogged) Rollback() error {
	w.pendingCount = w.c.header.PageCount
	return w.truncateLog()
}

func (w *WriteAheadLogged) truncateLog() error {
	w.pending = make(map[page.Id][]byte)
	w.order = nil
	if err := w.wal.Truncate(0); err != nil {
		return fmt.Errorf("%w: truncate wal: %v", cterr.ErrStorage, err)
	}
	_, err := w.wal.Seek(0, io.SeekStart)
	if err != nil {
		return fmt.Errorf("%w: seek wal: %v", cterr.ErrStorage, err)
	}
	return nil
}

func (w *WriteAheadLogged) Close() error {
	if len(w.pending) > 0 {
		if err := w.Rollback(); err != nil {
			return err
		}
	}
	if err := w.wal.Close(); err != nil {
		w.c.closeCore()
		return fmt.Errorf("%w: close wal: %v", cterr.ErrStorage, err)
	}
	os.Remove(w.walPath)
	return w.c.closeCore()
}

func (w *WriteAheadLogged) PageCount() uint64 { return w.pendingCount }

var _ Manager = (*WriteAheadLogged)(nil)
