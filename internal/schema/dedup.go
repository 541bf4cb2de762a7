package schema

import (
	"database/sql"
	"fmt"
	"strings"
)

// ChunkReader resolves a chunk ref to its decompressed text. The archive
// manager's ReadChunk satisfies it; tests substitute an in-memory map.
type ChunkReader func(archiveName, entryName string) (string, error)

// PromoteAlias walks every file that currently lists deletedCanonicalID as
// its canonical_file_id. The oldest surviving alias (lowest id) is promoted:
// its own lines are re-inserted from the canonical's chunk refs (aliases
// never carried their own lines rows), its canonical_file_id is cleared,
// and every other remaining alias is repointed at it. The chunks themselves
// stay in place: only line metadata moves. Returns the promoted file's id,
// or 0 if deletedCanonicalID had no aliases.
//
// readChunk re-reads each line's text from the ZIP store. The FTS table is
// contentless, so the chunks are the only surviving copy of the text the
// promoted alias's new FTS rows must be tokenized from.
func PromoteAlias(tx *sql.Tx, deletedCanonicalID int64, readChunk ChunkReader) (int64, error) {
	rows, err := tx.Query(`SELECT id FROM files WHERE canonical_file_id = ? ORDER BY id`, deletedCanonicalID)
	if err != nil {
		return 0, fmt.Errorf("query aliases of %d: %w", deletedCanonicalID, err)
	}
	var aliasIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan alias id: %w", err)
		}
		aliasIDs = append(aliasIDs, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	if len(aliasIDs) == 0 {
		return 0, nil
	}

	newCanonical := aliasIDs[0]
	rest := aliasIDs[1:]

	canonicalLines, err := LinesForFile(tx, deletedCanonicalID)
	if err != nil {
		return 0, fmt.Errorf("read canonical lines: %w", err)
	}

	chunkText := make(map[ChunkRef][]string)
	for _, l := range canonicalLines {
		ref := ChunkRef{ArchiveName: l.ChunkArchive, EntryName: l.ChunkName}
		split, ok := chunkText[ref]
		if !ok {
			text, err := readChunk(l.ChunkArchive, l.ChunkName)
			if err != nil {
				return 0, fmt.Errorf("read chunk %s/%s for promotion: %w", l.ChunkArchive, l.ChunkName, err)
			}
			split = strings.Split(text, "\n")
			chunkText[ref] = split
		}
		if l.LineOffsetInChunk < 0 || l.LineOffsetInChunk >= len(split) {
			return 0, fmt.Errorf("%w: line offset %d out of range in %s/%s", ErrChunkNotFound, l.LineOffsetInChunk, l.ChunkArchive, l.ChunkName)
		}

		if _, err := InsertLine(tx, InsertLineParams{
			FileID:            newCanonical,
			LineNumber:        l.LineNumber,
			ChunkArchive:      l.ChunkArchive,
			ChunkName:         l.ChunkName,
			LineOffsetInChunk: l.LineOffsetInChunk,
			Text:              split[l.LineOffsetInChunk],
		}); err != nil {
			return 0, fmt.Errorf("re-insert line for promoted alias %d: %w", newCanonical, err)
		}
	}

	if _, err := tx.Exec(`UPDATE files SET canonical_file_id = NULL WHERE id = ?`, newCanonical); err != nil {
		return 0, fmt.Errorf("clear canonical_file_id on promoted alias %d: %w", newCanonical, err)
	}

	for _, id := range rest {
		if _, err := tx.Exec(`UPDATE files SET canonical_file_id = ? WHERE id = ?`, newCanonical, id); err != nil {
			return 0, fmt.Errorf("repoint alias %d to promoted canonical %d: %w", id, newCanonical, err)
		}
	}

	return newCanonical, nil
}
