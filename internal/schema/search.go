package schema

import "fmt"

// CandidateLine is one row surviving FTS5 candidate generation, before rescoring.
type CandidateLine struct {
	ID                int64
	FileID            int64
	LineNumber        int
	ChunkArchive      string
	ChunkName         string
	LineOffsetInChunk int
}

// SearchCandidates issues the trigram MATCH query against lines_fts,
// joining back to lines, ordered by FTS5's own rank and capped at
// scoringLimit.
func SearchCandidates(q Queryer, matchExpr string, scoringLimit int) ([]CandidateLine, error) {
	rows, err := q.Query(`
		SELECT l.id, l.file_id, l.line_number, l.chunk_archive, l.chunk_name, l.line_offset_in_chunk
		FROM lines_fts
		JOIN lines l ON l.id = lines_fts.rowid
		WHERE lines_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, matchExpr, scoringLimit)
	if err != nil {
		return nil, fmt.Errorf("search candidates: %w", err)
	}
	defer rows.Close()

	var out []CandidateLine
	for rows.Next() {
		var c CandidateLine
		if err := rows.Scan(&c.ID, &c.FileID, &c.LineNumber, &c.ChunkArchive, &c.ChunkName, &c.LineOffsetInChunk); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
