// Package archive implements the rotating ZIP chunk store: the unit of
// durable storage for extracted text chunks, shared across all sources in a
// data directory.
package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ferg-cod3s/find-anything/internal/schema"
)

// Default soft target size for a single archive, in compressed on-disk
// bytes, before the manager rotates to a new one.
const DefaultSoftTargetBytes = 10 * 1024 * 1024

// DefaultCompressionLevel is the DEFLATE level entries are written with.
// Level 6 trades compression ratio against append throughput.
const DefaultCompressionLevel = 6

// MaxArchiveNumber is the absolute ceiling on archive numbers:
// 9,999,000 archives, ≈100 TiB at the default 10 MiB soft target.
const MaxArchiveNumber = 9_999_000

var ErrArchivesExhausted = errors.New("archive: archive number ceiling reached")

// Chunk is one text blob to append, identified by the file path it belongs
// to and its sequence number within that file.
type Chunk struct {
	FilePath    string
	ChunkNumber int
	Text        string
}

// Manager owns the rotating ZIP chunk store under root (normally
// <data_dir>/sources/content/). One Manager is shared by every source: the
// chunk store is not partitioned per source, only entry names are.
type Manager struct {
	root       string
	softTarget int64
	level      int
	mu         sync.Mutex
	current    *archiveWriter
	nextNumber int
}

// New creates a Manager rooted at root, discovering the highest existing
// archive number so append continues the sequence instead of restarting it.
// Zero values for softTargetBytes and compressionLevel select the defaults.
func New(root string, softTargetBytes int64, compressionLevel int) (*Manager, error) {
	if softTargetBytes <= 0 {
		softTargetBytes = DefaultSoftTargetBytes
	}
	if compressionLevel <= 0 || compressionLevel > 9 {
		compressionLevel = DefaultCompressionLevel
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create content root: %w", err)
	}

	highest, err := discoverHighestArchiveNumber(root)
	if err != nil {
		return nil, err
	}

	return &Manager{
		root:       root,
		softTarget: softTargetBytes,
		level:      compressionLevel,
		nextNumber: highest + 1,
	}, nil
}

// Close finalizes any archive currently open for writing.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	err := m.current.close()
	m.current = nil
	return err
}

// archivePath computes the two-level path for an archive number: {num/1000:04}/content_{num:05}.zip.
func archivePath(root string, num int) string {
	dir := fmt.Sprintf("%04d", num/1000)
	name := fmt.Sprintf("content_%05d.zip", num)
	return filepath.Join(root, dir, name)
}

// ArchiveNameFor returns the bare archive_name (no directory) for an archive
// number, as stored in the archives table and in chunk refs.
func ArchiveNameFor(num int) string {
	return fmt.Sprintf("content_%05d.zip", num)
}

// archiveDirFor returns the two-level directory an archive name lives
// under, re-deriving the archive number by parsing the name.
func archiveDirFor(root, archiveName string) (string, error) {
	num, err := parseArchiveNumber(archiveName)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, fmt.Sprintf("%04d", num/1000)), nil
}

func parseArchiveNumber(archiveName string) (int, error) {
	var num int
	_, err := fmt.Sscanf(archiveName, "content_%d.zip", &num)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed archive name %q", schema.ErrArchiveCorrupt, archiveName)
	}
	return num, nil
}

func discoverHighestArchiveNumber(root string) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return -1, nil
		}
		return 0, fmt.Errorf("read content root: %w", err)
	}

	highest := -1
	for _, dirEntry := range entries {
		if !dirEntry.IsDir() {
			continue
		}
		sub := filepath.Join(root, dirEntry.Name())
		files, err := os.ReadDir(sub)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || filepath.Ext(f.Name()) != ".zip" {
				continue
			}
			if num, err := parseArchiveNumber(f.Name()); err == nil && num > highest {
				highest = num
			}
		}
	}
	return highest, nil
}

// EntryNameFor computes a chunk's entry name within its archive. filePath may itself be a composite path.
func EntryNameFor(filePath string, chunkNumber int) string {
	return fmt.Sprintf("%s.chunk%d.txt", filePath, chunkNumber)
}
