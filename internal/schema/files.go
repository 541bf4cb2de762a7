package schema

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// CompositePathSeparator is the reserved separator denoting container
// membership in a file's path.
const CompositePathSeparator = "::"

// IsComposite reports whether path names a member of a container file.
func IsComposite(path string) bool {
	return strings.Contains(path, CompositePathSeparator)
}

// ParentArchivePath returns the immediate parent archive's path for a
// composite path, i.e. everything before the final "::" segment.
func ParentArchivePath(path string) (string, bool) {
	idx := strings.LastIndex(path, CompositePathSeparator)
	if idx < 0 {
		return "", false
	}
	return path[:idx], true
}

// UpsertFileParams carries the fields needed to insert or update a files row.
type UpsertFileParams struct {
	Path            string
	Mtime           int64
	Size            int64
	Kind            FileKind
	ExtractMs       *int64
	ContentHash     *string
	CanonicalFileID *int64
	IndexedAt       time.Time
}

// UpsertFile inserts or updates a files row by path, returning its id.
// indexed_at is set only on first insert.
func UpsertFile(tx *sql.Tx, p UpsertFileParams) (int64, error) {
	if p.IndexedAt.IsZero() {
		p.IndexedAt = time.Now()
	}

	_, err := tx.Exec(`
		INSERT INTO files (path, mtime, size, kind, indexed_at, extract_ms, content_hash, canonical_file_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			mtime = excluded.mtime,
			size = excluded.size,
			kind = excluded.kind,
			extract_ms = excluded.extract_ms,
			content_hash = excluded.content_hash,
			canonical_file_id = excluded.canonical_file_id`,
		p.Path, p.Mtime, p.Size, string(p.Kind), p.IndexedAt.Unix(), p.ExtractMs, p.ContentHash, p.CanonicalFileID,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: upsert file %s: %v", ErrConstraint, p.Path, err)
	}

	// LastInsertId is useless on the update arm of the upsert, so the id is
	// read back by path either way.
	var id int64
	if err := tx.QueryRow(`SELECT id FROM files WHERE path = ?`, p.Path).Scan(&id); err != nil {
		return 0, fmt.Errorf("read back file id for %s: %w", p.Path, err)
	}
	return id, nil
}

// GetFileByPath returns the file row for an exact path.
func (s *Store) GetFileByPath(path string) (*File, error) {
	return FileByPath(s.db, path)
}

// FileByPath returns the file row for an exact path through any Queryer,
// so the worker can resolve rows inside its own transaction.
func FileByPath(q Queryer, path string) (*File, error) {
	return scanFileRow(q.QueryRow(`
		SELECT id, path, mtime, size, kind, indexed_at, extract_ms, content_hash, canonical_file_id
		FROM files WHERE path = ?`, path))
}

// GetFileByID returns the file row for an id.
func (s *Store) GetFileByID(id int64) (*File, error) {
	return scanFileRow(s.db.QueryRow(`
		SELECT id, path, mtime, size, kind, indexed_at, extract_ms, content_hash, canonical_file_id
		FROM files WHERE id = ?`, id))
}

func scanFileRow(row *sql.Row) (*File, error) {
	var f File
	var kind string
	var indexedAt int64
	err := row.Scan(&f.ID, &f.Path, &f.Mtime, &f.Size, &kind, &indexedAt, &f.ExtractMs, &f.ContentHash, &f.CanonicalFileID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	f.Kind = FileKind(kind)
	f.IndexedAt = unixToTime(indexedAt)
	return &f, nil
}

// FindCanonicalByHash returns the canonical file owning contentHash, if any,
// excluding excludePath. Only rows with canonical_file_id IS NULL are
// eligible.
func FindCanonicalByHash(tx *sql.Tx, contentHash, excludePath string) (*File, error) {
	row := tx.QueryRow(`
		SELECT id, path, mtime, size, kind, indexed_at, extract_ms, content_hash, canonical_file_id
		FROM files
		WHERE content_hash = ? AND canonical_file_id IS NULL AND path != ?
		LIMIT 1`, contentHash, excludePath)
	return scanFileRow(row)
}

// AliasPaths returns the paths of every other file sharing contentHash,
// excluding excludePath, for populating a search result's "aliases"
// field.
func AliasPaths(q Queryer, contentHash, excludePath string) ([]string, error) {
	rows, err := q.Query(`SELECT path FROM files WHERE content_hash = ? AND path != ? ORDER BY id`, contentHash, excludePath)
	if err != nil {
		return nil, fmt.Errorf("query aliases: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan alias path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Queryer is satisfied by both *sql.DB and *sql.Tx, letting read helpers run
// either inside a write transaction or on a standalone read connection.
type Queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}
