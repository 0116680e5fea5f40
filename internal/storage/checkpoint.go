// Checkpoint archiving for committed WAL batches.
//
// After Commit applies a batch of staged pages to the main file, the
// raw WAL bytes are about to be truncated away. Before that happens
// they are zstd-compressed and ascii85-encoded into a sibling
// "<name>.wal.archive" file, one newline-delimited record per commit,
// giving forensic replay of recent writes without keeping the
// uncompressed log around. This reuses folio/compress.go's
// compress/decompress shape (shared package-level zstd encoder/decoder,
// SpeedFastest, ascii85 for a newline-safe printable encoding) applied
// to WAL segments instead of per-document history snapshots.
package storage

import (
	"bytes"
	"encoding/ascii85"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/cottontaildb/cottontail/internal/cterr"
)

// archiveRetentionBytes bounds the archive file's size; once exceeded,
// rotateArchive rewrites the file keeping only the newest entries.
const archiveRetentionBytes = 4 * 1024 * 1024

var (
	checkpointEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	checkpointDecoder, _ = zstd.NewReader(nil)
)

func compressArchiveRecord(data []byte) string {
	compressed := checkpointEncoder.EncodeAll(data, nil)
	var buf bytes.Buffer
	enc := ascii85.NewEncoder(&buf)
	_, _ = enc.Write(compressed)
	_ = enc.Close()
	return buf.String()
}

func decompressArchiveRecord(encoded string) ([]byte, error) {
	dec := ascii85.NewDecoder(bytes.NewReader([]byte(encoded)))
	compressed, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: archive ascii85: %v", cterr.ErrStorage, err)
	}
	out, err := checkpointDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: archive zstd: %v", cterr.ErrStorage, err)
	}
	return out, nil
}

// archivePath returns the sibling checkpoint-archive path for a WAL
// file's main-file path.
func archivePath(mainPath string) string {
	return mainPath + ".wal.archive"
}

// appendArchive compresses raw and appends it as one line to the
// archive file, rotating (keeping only the newest records) once the
// file passes archiveRetentionBytes.
func appendArchive(mainPath string, raw []byte) error {
	path := archivePath(mainPath)
	line := compressArchiveRecord(raw) + "\n"

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("%w: open archive: %v", cterr.ErrStorage, err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("%w: append archive: %v", cterr.ErrStorage, err)
	}

	info, err := f.Stat()
	if err == nil && info.Size() > archiveRetentionBytes {
		return rotateArchive(path)
	}
	return nil
}

// rotateArchive keeps only the newest half (by line count) of the
// archive file, discarding the oldest checkpoint records.
func rotateArchive(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read archive for rotation: %v", cterr.ErrStorage, err)
	}
	lines := bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n"))
	if len(lines) <= 1 {
		return nil
	}
	keep := lines[len(lines)/2:]
	out := bytes.Join(keep, []byte("\n"))
	out = append(out, '\n')
	return os.WriteFile(path, out, 0644)
}
