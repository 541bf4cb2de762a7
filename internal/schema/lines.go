package schema

import (
	"database/sql"
	"fmt"
)

// InsertLineParams carries one line row plus its chunk location.
type InsertLineParams struct {
	FileID            int64
	LineNumber        int
	ChunkArchive      string
	ChunkName         string
	LineOffsetInChunk int
	Text              string // indexed into lines_fts, never stored verbatim
}

// InsertLine inserts a lines row and its matching contentless FTS row within
// tx. The FTS table is content=” (contentless): its rowid must equal the
// lines.id it indexes, so the FTS insert passes the id SQLite assigned to
// the lines row as its explicit rowid.
func InsertLine(tx *sql.Tx, p InsertLineParams) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO lines (file_id, line_number, chunk_archive, chunk_name, line_offset_in_chunk)
		VALUES (?, ?, ?, ?, ?)`,
		p.FileID, p.LineNumber, p.ChunkArchive, p.ChunkName, p.LineOffsetInChunk,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: insert line for file %d: %v", ErrConstraint, p.FileID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read back line id: %w", err)
	}

	if _, err := tx.Exec(`INSERT INTO lines_fts(rowid, content) VALUES (?, ?)`, id, p.Text); err != nil {
		return 0, fmt.Errorf("%w: insert fts row for line %d: %v", ErrConstraint, id, err)
	}
	return id, nil
}

// DeleteLinesForFile removes every line (and its FTS shadow row) belonging
// to fileID. The FTS row must be deleted explicitly before the cascading
// lines delete: a contentless table has no trigger wired to the lines
// table, so SQLite's ON DELETE CASCADE alone would leave orphaned FTS rows.
func DeleteLinesForFile(tx *sql.Tx, fileID int64) error {
	rows, err := tx.Query(`SELECT id FROM lines WHERE file_id = ?`, fileID)
	if err != nil {
		return fmt.Errorf("query lines for file %d: %w", fileID, err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan line id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, id := range ids {
		if _, err := tx.Exec(`DELETE FROM lines_fts WHERE rowid = ?`, id); err != nil {
			return fmt.Errorf("%w: delete fts row %d: %v", ErrConstraint, id, err)
		}
	}
	if _, err := tx.Exec(`DELETE FROM lines WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("delete lines for file %d: %w", fileID, err)
	}
	return nil
}

// LinesForFile returns every line of fileID ordered by line_number, for
// reconstructing alias lines during canonical promotion and for
// the context window retrieval path.
func LinesForFile(q Queryer, fileID int64) ([]Line, error) {
	rows, err := q.Query(`
		SELECT id, file_id, line_number, chunk_archive, chunk_name, line_offset_in_chunk
		FROM lines WHERE file_id = ? ORDER BY line_number`, fileID)
	if err != nil {
		return nil, fmt.Errorf("query lines for file %d: %w", fileID, err)
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.FileID, &l.LineNumber, &l.ChunkArchive, &l.ChunkName, &l.LineOffsetInChunk); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LinesInRange returns fileID's lines with line_number in [lo, hi],
// ordered by line_number, for the context window retrieval path. Gaps in line_number are expected (not every number need exist).
func LinesInRange(q Queryer, fileID int64, lo, hi int) ([]Line, error) {
	rows, err := q.Query(`
		SELECT id, file_id, line_number, chunk_archive, chunk_name, line_offset_in_chunk
		FROM lines WHERE file_id = ? AND line_number BETWEEN ? AND ?
		ORDER BY line_number`, fileID, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("query lines in range for file %d: %w", fileID, err)
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.FileID, &l.LineNumber, &l.ChunkArchive, &l.ChunkName, &l.LineOffsetInChunk); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LineAt returns the single line row at lineNumber for fileID, used by the
// context window path to locate a match's chunk.
func LineAt(q Queryer, fileID int64, lineNumber int) (*Line, error) {
	row := q.QueryRow(`
		SELECT id, file_id, line_number, chunk_archive, chunk_name, line_offset_in_chunk
		FROM lines WHERE file_id = ? AND line_number = ?`, fileID, lineNumber)
	var l Line
	err := row.Scan(&l.ID, &l.FileID, &l.LineNumber, &l.ChunkArchive, &l.ChunkName, &l.LineOffsetInChunk)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan line: %w", err)
	}
	return &l, nil
}
