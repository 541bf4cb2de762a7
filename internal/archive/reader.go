package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ferg-cod3s/find-anything/internal/schema"
)

// ReadChunk implements the read_chunk contract: returns the
// decompressed, UTF-8-lossy-decoded text of one chunk entry.
func (m *Manager) ReadChunk(archiveName, entryName string) (string, error) {
	if text, ok := m.pendingEntry(archiveName, entryName); ok {
		return text, nil
	}

	dir, err := archiveDirFor(m.root, archiveName)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, archiveName)

	r, err := zip.OpenReader(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", schema.ErrArchiveCorrupt, archiveName)
		}
		return "", fmt.Errorf("%w: open %s: %v", schema.ErrArchiveCorrupt, archiveName, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != entryName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("%w: open entry %s in %s: %v", schema.ErrArchiveCorrupt, entryName, archiveName, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return "", fmt.Errorf("%w: read entry %s in %s: %v", schema.ErrArchiveCorrupt, entryName, archiveName, err)
		}
		return toValidUTF8Lossy(data), nil
	}

	return "", fmt.Errorf("%w: %s in %s", schema.ErrChunkNotFound, entryName, archiveName)
}

// Stat returns an archive's current entry count and on-disk size, for
// archives-table bookkeeping after a rewrite. Only closed (finalized)
// archives can be stat'd this way.
func (m *Manager) Stat(archiveName string) (chunkCount int, sizeBytes int64, err error) {
	dir, err := archiveDirFor(m.root, archiveName)
	if err != nil {
		return 0, 0, err
	}
	path := filepath.Join(dir, archiveName)

	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: stat %s: %v", schema.ErrArchiveCorrupt, archiveName, err)
	}

	r, err := zip.OpenReader(path)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: open %s: %v", schema.ErrArchiveCorrupt, archiveName, err)
	}
	defer r.Close()

	return len(r.File), info.Size(), nil
}

// toValidUTF8Lossy mirrors strings.ToValidUTF8 with the replacement
// character: chunk text is always returned as UTF-8, lossy on invalid
// sequences.
func toValidUTF8Lossy(data []byte) string {
	return strings.ToValidUTF8(string(data), "�")
}
