package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ferg-cod3s/find-anything/internal/schema"
)

// RemoveChunks implements the remove_chunks contract: for each
// affected archive, rewrites it omitting the listed entries via a
// create-tmp/copy-survivors/rename sequence. A partial failure on any one
// archive leaves that archive (and every other archive already rewritten)
// intact; only the failing archive's tmp file is discarded.
func (m *Manager) RemoveChunks(refs []schema.ChunkRef) error {
	byArchive := make(map[string][]string)
	for _, r := range refs {
		byArchive[r.ArchiveName] = append(byArchive[r.ArchiveName], r.EntryName)
	}

	for archiveName, entries := range byArchive {
		if err := m.rewriteArchive(archiveName, entries); err != nil {
			return fmt.Errorf("rewrite archive %s: %w", archiveName, err)
		}
	}
	return nil
}

func (m *Manager) rewriteArchive(archiveName string, remove []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && ArchiveNameFor(m.current.number) == archiveName {
		// The archive is still open for append; flush and close it so its
		// central directory exists before we rewrite the on-disk file.
		if err := m.current.close(); err != nil {
			return err
		}
		m.current = nil
	}

	dir, err := archiveDirFor(m.root, archiveName)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, archiveName)
	tmpPath := path + ".tmp"

	if err := copyArchiveExcluding(path, tmpPath, remove); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s over %s: %w", tmpPath, path, err)
	}
	return nil
}

func copyArchiveExcluding(srcPath, dstPath string, remove []string) error {
	excluded := make(map[string]bool, len(remove))
	for _, e := range remove {
		excluded[e] = true
	}

	r, err := zip.OpenReader(srcPath)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", schema.ErrArchiveCorrupt, srcPath, err)
	}
	defer r.Close()

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dstPath, err)
	}
	defer dst.Close()

	zw := zip.NewWriter(dst)
	for _, f := range r.File {
		if excluded[f.Name] {
			continue
		}
		if err := copyZipEntry(zw, f); err != nil {
			zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", dstPath, err)
	}
	return dst.Sync()
}

// copyZipEntry copies one entry's original compression metadata and bytes
// into zw.
func copyZipEntry(zw *zip.Writer, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: open entry %s: %v", schema.ErrArchiveCorrupt, f.Name, err)
	}
	defer rc.Close()

	fw, err := zw.CreateHeader(&f.FileHeader)
	if err != nil {
		return fmt.Errorf("recreate entry %s: %w", f.Name, err)
	}
	if _, err := io.Copy(fw, rc); err != nil {
		return fmt.Errorf("copy entry %s: %w", f.Name, err)
	}
	return nil
}
