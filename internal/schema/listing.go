package schema

import (
	"fmt"
	"strings"
)

// ListFilesParams filters the files table for /api/v1/files and /api/v1/tree.
type ListFilesParams struct {
	PathPrefix string
	Limit      int
	Offset     int
}

// ListFiles returns files whose path starts with PathPrefix, ordered by
// path, honoring Limit/Offset.
func ListFiles(q Queryer, p ListFilesParams) ([]File, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 1000
	}

	query := `SELECT id, path, mtime, size, kind, indexed_at, extract_ms, content_hash, canonical_file_id FROM files`
	var args []any
	if p.PathPrefix != "" {
		query += ` WHERE path LIKE ? ESCAPE '\'`
		args = append(args, likePrefix(p.PathPrefix)+"%")
	}
	query += ` ORDER BY path LIMIT ? OFFSET ?`
	args = append(args, limit, p.Offset)

	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		f, err := scanFileRowCols(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// rowScanner is the subset of *sql.Rows used by scanFileRowCols, so it can
// also serve *sql.Row callers via a small adapter where needed.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFileRowCols(r rowScanner) (File, error) {
	var f File
	var kind string
	var indexedAt int64
	if err := r.Scan(&f.ID, &f.Path, &f.Mtime, &f.Size, &kind, &indexedAt, &f.ExtractMs, &f.ContentHash, &f.CanonicalFileID); err != nil {
		return File{}, fmt.Errorf("scan file: %w", err)
	}
	f.Kind = FileKind(kind)
	f.IndexedAt = unixToTime(indexedAt)
	return f, nil
}

// TreeEntry is one level of directory/composite-path listing.
type TreeEntry struct {
	Name        string `json:"name"`
	IsContainer bool   `json:"is_container"`
}

// Tree computes one level of entries under prefix for
// `/api/v1/tree`: composite-path members appear grouped under
// "<archive>::" the same way a directory would.
func Tree(q Queryer, prefix string) ([]TreeEntry, error) {
	files, err := ListFiles(q, ListFilesParams{PathPrefix: prefix, Limit: 100000})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []TreeEntry
	for _, f := range files {
		rest := strings.TrimPrefix(f.Path, prefix)
		rest = strings.TrimPrefix(rest, "/")
		if rest == "" {
			continue
		}

		var name string
		isContainer := false
		if slash := strings.IndexByte(rest, '/'); slash >= 0 {
			name = rest[:slash]
		} else if sep := strings.Index(rest, CompositePathSeparator); sep >= 0 {
			name = rest[:sep+len(CompositePathSeparator)]
			isContainer = true
		} else {
			name = rest
		}

		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, TreeEntry{Name: name, IsContainer: isContainer})
	}
	return out, nil
}

// CountByKind tallies current file counts grouped by kind, for /api/v1/stats.
func CountByKind(q Queryer) (map[string]int, error) {
	rows, err := q.Query(`SELECT kind, COUNT(*) FROM files GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("count by kind: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan kind count: %w", err)
		}
		out[kind] = n
	}
	return out, rows.Err()
}

// TotalSize sums the size of every current file, for /api/v1/stats.
func TotalSize(q Queryer) (int64, error) {
	var total int64
	err := q.QueryRow(`SELECT COALESCE(SUM(size), 0) FROM files`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum file sizes: %w", err)
	}
	return total, nil
}
