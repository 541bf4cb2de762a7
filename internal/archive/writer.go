package archive

import (
	"archive/zip"
	"compress/flate"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ferg-cod3s/find-anything/internal/schema"
)

// archiveWriter wraps one open-for-append ZIP archive and tracks its
// on-disk size so the manager knows when to rotate.
type archiveWriter struct {
	number     int
	path       string
	file       *os.File
	zw         *zip.Writer
	pending    map[string]string // entries written since open, unreadable via zip.OpenReader until close
	chunkCount int
	// lastEntryBytes is the uncompressed length of the most recent entry.
	// zip.Writer only emits an entry's compressed body when the next entry
	// opens (or on Close), so the on-disk size alone lags one entry behind;
	// adding the uncompressed length gives a conservative upper bound for
	// the rotation check.
	lastEntryBytes int64
}

func openArchiveWriter(root string, number, level int) (*archiveWriter, error) {
	path := archivePath(root, number)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}

	// A fresh or truncated file starts a new zip.Writer at offset 0.
	// Appending to an existing archive across process restarts is not
	// attempted: the manager always rotates to a new archive number;
	// startup recovery relies instead on discoverHighestArchiveNumber.
	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	return &archiveWriter{number: number, path: path, file: f, zw: zw, pending: make(map[string]string)}, nil
}

// size returns the writer's current footprint, used against the soft
// target before deciding whether to rotate: bytes already on disk plus the
// not-yet-emitted final entry's uncompressed length.
func (w *archiveWriter) size() (int64, error) {
	info, err := w.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat archive: %w", err)
	}
	return info.Size() + w.lastEntryBytes, nil
}

// appendEntry writes one chunk entry using the writer's DEFLATE level.
func (w *archiveWriter) appendEntry(entryName, text string) error {
	fw, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:   entryName,
		Method: zip.Deflate,
	})
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", entryName, err)
	}
	if _, err := fw.Write([]byte(text)); err != nil {
		return fmt.Errorf("write zip entry %s: %w", entryName, err)
	}
	w.pending[entryName] = text
	w.chunkCount++
	w.lastEntryBytes = int64(len(text))
	return nil
}

// flush pushes buffered entry data to the OS file so size() reflects
// entries written so far. It does not write the central directory, so the
// archive remains unreadable via zip.OpenReader until close.
func (w *archiveWriter) flush() error {
	if err := w.zw.Flush(); err != nil {
		return fmt.Errorf("flush archive %s: %w", w.path, err)
	}
	return nil
}

func (w *archiveWriter) close() error {
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("close zip writer for %s: %w", w.path, err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close archive file %s: %w", w.path, err)
	}
	return nil
}

// AppendChunks implements the append_chunks contract: writes
// chunks in order, rotating to a new archive before any chunk that would
// push the current archive past its soft target. Returns chunk refs in the
// same order as the input.
func (m *Manager) AppendChunks(chunks []Chunk) ([]schema.ChunkRefWithSize, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	refs := make([]schema.ChunkRefWithSize, 0, len(chunks))
	for _, c := range chunks {
		if err := m.ensureCapacity(int64(len(c.Text))); err != nil {
			return nil, err
		}

		entryName := EntryNameFor(c.FilePath, c.ChunkNumber)
		if err := m.current.appendEntry(entryName, c.Text); err != nil {
			return nil, err
		}
		if err := m.current.flush(); err != nil {
			return nil, err
		}

		size, err := m.current.size()
		if err != nil {
			return nil, err
		}

		refs = append(refs, schema.ChunkRefWithSize{
			ChunkRef: schema.ChunkRef{
				ArchiveName: ArchiveNameFor(m.current.number),
				EntryName:   entryName,
			},
			ArchiveSizeBytes:  size,
			ArchiveChunkCount: m.current.chunkCount,
		})
	}

	return refs, nil
}

// ensureCapacity opens the first archive, or rotates to a new one before a
// chunk of nextBytes uncompressed bytes whose addition to the current
// archive's size would pass the soft target. An archive with no entries
// always takes its first chunk, however large.
func (m *Manager) ensureCapacity(nextBytes int64) error {
	if m.current == nil {
		return m.rotate()
	}

	size, err := m.current.size()
	if err != nil {
		return err
	}
	if m.current.chunkCount > 0 && size+nextBytes > m.softTarget {
		return m.rotate()
	}
	return nil
}

func (m *Manager) rotate() error {
	if m.current != nil {
		if err := m.current.close(); err != nil {
			return err
		}
	}
	if m.nextNumber > MaxArchiveNumber {
		return ErrArchivesExhausted
	}

	w, err := openArchiveWriter(m.root, m.nextNumber, m.level)
	if err != nil {
		return err
	}
	m.current = w
	m.nextNumber++
	return nil
}

// pendingEntry returns an entry's text if archiveName is the archive
// currently open for writes and entryName was written to it since open:
// the only way to read a chunk not yet visible in the ZIP's central
// directory.
func (m *Manager) pendingEntry(archiveName, entryName string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || ArchiveNameFor(m.current.number) != archiveName {
		return "", false
	}
	text, ok := m.current.pending[entryName]
	return text, ok
}

// CurrentArchiveCounts returns the (archive_name, size_bytes, chunk_count)
// of the archive currently open for writes, for archives-table bookkeeping.
// ok is false if no archive has been opened yet.
func (m *Manager) CurrentArchiveCounts() (name string, sizeBytes int64, chunkCount int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return "", 0, 0, false
	}
	size, err := m.current.size()
	if err != nil {
		return "", 0, 0, false
	}
	return ArchiveNameFor(m.current.number), size, m.current.chunkCount, true
}
