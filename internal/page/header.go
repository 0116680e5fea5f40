// File header (page 0) layout and CRC32C validation.
//
// The header mirrors folio/header.go's fixed-size-with-padding idea,
// but the wire format here is binary rather than padded JSON text: the
// spec nails down exact byte offsets and an ASCII magic, which a JSON
// header (as folio uses for its own, differently-shaped, metadata)
// would only obscure.
package page

import (
	"encoding/binary"
	"hash/crc32"
)

// HeaderSize is the exact size in bytes of the encoded FileHeader. It
// is smaller than a full Page; the remainder of page 0 is reserved and
// zeroed.
const HeaderSize = 4 + 4 + 1 + 1 + 8 + 4 + 8 + 8

// Magic is the 4-byte ASCII identifier every HARE file begins with.
const Magic = "HARE"

// Sanity flag values.
const (
	SanityClean  byte = 0
	SanityInUse  byte = 1
)

// File type tags distinguish column files, index files, and catalogue
// manifests that all share the HARE container format.
const (
	FileTypeColumn    uint32 = 1
	FileTypeIndex     uint32 = 2
	FileTypeCatalogue uint32 = 3
)

// FormatVersion is the current on-disk format version.
const FormatVersion byte = 1

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// FileHeader is the contents of page 0.
type FileHeader struct {
	FileType     uint32
	Version      byte
	Sanity       byte
	PageCount    uint64
	FreedCount   uint32
	Checksum     uint64 // CRC32C of all data pages (upper 32 bits unused)
	LastWALStamp uint64
}

// NewFileHeader returns a fresh, clean header for a new file with a
// single reserved header page.
func NewFileHeader(fileType uint32) *FileHeader {
	return &FileHeader{
		FileType:  fileType,
		Version:   FormatVersion,
		Sanity:    SanityClean,
		PageCount: 1,
	}
}

// Encode serialises the header into a Page's first HeaderSize bytes.
func (h *FileHeader) Encode(p *Page) {
	buf := p.Data[:HeaderSize]
	copy(buf[0:4], Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.FileType)
	buf[8] = h.Version
	buf[9] = h.Sanity
	binary.LittleEndian.PutUint64(buf[10:18], h.PageCount)
	binary.LittleEndian.PutUint32(buf[18:22], h.FreedCount)
	binary.LittleEndian.PutUint64(buf[22:30], h.Checksum)
	binary.LittleEndian.PutUint64(buf[30:38], h.LastWALStamp)
	for i := HeaderSize; i < len(p.Data); i++ {
		p.Data[i] = 0
	}
}

// DecodeFileHeader parses page 0. It reports raw mismatches through
// this package's own errors (ErrBadMagic and the like); storage wraps
// them to attach context.
func DecodeFileHeader(p *Page) (*FileHeader, error) {
	buf := p.Data[:HeaderSize]
	if string(buf[0:4]) != Magic {
		return nil, ErrBadMagic
	}
	h := &FileHeader{
		FileType:     binary.LittleEndian.Uint32(buf[4:8]),
		Version:      buf[8],
		Sanity:       buf[9],
		PageCount:    binary.LittleEndian.Uint64(buf[10:18]),
		FreedCount:   binary.LittleEndian.Uint32(buf[18:22]),
		Checksum:     binary.LittleEndian.Uint64(buf[22:30]),
		LastWALStamp: binary.LittleEndian.Uint64(buf[30:38]),
	}
	if h.Version != FormatVersion {
		return nil, ErrBadVersion
	}
	if h.PageCount < 1 {
		return nil, ErrNegativeCount
	}
	return h, nil
}

// ChecksumPages computes the CRC32C of a sequence of data pages (pages
// 1..PageCount-1), in page-id order, for comparison against the stored
// Checksum field.
func ChecksumPages(pages [][]byte) uint64 {
	crc := crc32.New(crc32cTable)
	for _, p := range pages {
		crc.Write(p)
	}
	return uint64(crc.Sum32())
}
