package schema

import (
	"database/sql"
	"fmt"
	"time"
)

// RecordArchive upserts the archives accounting row after the archive
// manager appends to or rewrites a ZIP.
func RecordArchive(tx *sql.Tx, archiveName string, sizeBytes int64, chunkCount int) error {
	_, err := tx.Exec(`
		INSERT INTO archives (archive_name, size_bytes, chunk_count, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(archive_name) DO UPDATE SET
			size_bytes = excluded.size_bytes,
			chunk_count = excluded.chunk_count`,
		archiveName, sizeBytes, chunkCount, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("%w: record archive %s: %v", ErrConstraint, archiveName, err)
	}
	return nil
}

// ListArchives returns every archive's accounting row, ordered by name.
func ListArchives(q Queryer) ([]ArchiveDescriptor, error) {
	rows, err := q.Query(`SELECT id, archive_name, size_bytes, chunk_count, created_at FROM archives ORDER BY archive_name`)
	if err != nil {
		return nil, fmt.Errorf("query archives: %w", err)
	}
	defer rows.Close()

	var out []ArchiveDescriptor
	for rows.Next() {
		var d ArchiveDescriptor
		var createdAt int64
		if err := rows.Scan(&d.ID, &d.ArchiveName, &d.SizeBytes, &d.ChunkCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		d.CreatedAt = unixToTime(createdAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

// ArchiveByName returns a single archive's accounting row.
func ArchiveByName(q Queryer, name string) (*ArchiveDescriptor, error) {
	row := q.QueryRow(`SELECT id, archive_name, size_bytes, chunk_count, created_at FROM archives WHERE archive_name = ?`, name)
	var d ArchiveDescriptor
	var createdAt int64
	err := row.Scan(&d.ID, &d.ArchiveName, &d.SizeBytes, &d.ChunkCount, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan archive: %w", err)
	}
	d.CreatedAt = unixToTime(createdAt)
	return &d, nil
}
