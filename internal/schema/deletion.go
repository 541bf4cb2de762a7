package schema

import (
	"database/sql"
	"fmt"
)

// DeletePlan is the result of computing chunk reclamation for a delete_files
// call: the chunk refs the caller (the inbox worker) must hand to the
// archive manager's remove_chunks once this transaction commits.
type DeletePlan struct {
	FullPaths []string
	ChunkRefs []ChunkRef
}

// PrepareDelete implements the delete_files(paths) contract
// up through chunk_refs collection, inside tx. It does not call into the
// archive manager: the caller commits tx and only then rewrites archives,
// since a crash between those two steps is self-healing on the next scan
// but a failed rewrite must never be allowed to leave the DB side applied.
// readChunk is needed for alias promotion (the promoted alias's FTS rows
// are re-tokenized from chunk text).
func PrepareDelete(tx *sql.Tx, paths []string, readChunk ChunkReader) (DeletePlan, error) {
	fullPaths, err := expandComposites(tx, paths)
	if err != nil {
		return DeletePlan{}, err
	}
	if len(fullPaths) == 0 {
		return DeletePlan{}, nil
	}

	ids, err := fileIDsForPaths(tx, fullPaths)
	if err != nil {
		return DeletePlan{}, err
	}

	var refs []ChunkRef
	for _, id := range ids {
		f, err := scanFileRow(tx.QueryRow(`
			SELECT id, path, mtime, size, kind, indexed_at, extract_ms, content_hash, canonical_file_id
			FROM files WHERE id = ?`, id))
		if err != nil {
			return DeletePlan{}, fmt.Errorf("read file %d: %w", id, err)
		}
		if f.IsAlias() {
			// An alias owns no chunks and no lines; deleting it is just
			// dropping the files row.
			if _, err := tx.Exec(`DELETE FROM files WHERE id = ?`, id); err != nil {
				return DeletePlan{}, fmt.Errorf("delete alias file %d: %w", id, err)
			}
			continue
		}

		promoted, err := PromoteAlias(tx, id, readChunk)
		if err != nil {
			return DeletePlan{}, fmt.Errorf("promote alias of %d before delete: %w", id, err)
		}

		// When an alias was promoted it now references this canonical's
		// chunks; they must stay in the archive store. Only an alias-less
		// canonical relinquishes its refs.
		if promoted == 0 {
			fileRefs, err := chunkRefsForFile(tx, id)
			if err != nil {
				return DeletePlan{}, err
			}
			refs = append(refs, fileRefs...)
		}

		if err := DeleteLinesForFile(tx, id); err != nil {
			return DeletePlan{}, err
		}
		if _, err := tx.Exec(`DELETE FROM files WHERE id = ?`, id); err != nil {
			return DeletePlan{}, fmt.Errorf("delete file %d: %w", id, err)
		}
	}

	return DeletePlan{FullPaths: fullPaths, ChunkRefs: dedupeRefs(refs)}, nil
}

// expandComposites computes paths ∪ { composite descendants of each path },
// i.e. deleting an archive also deletes every member path nested under it.
func expandComposites(tx *sql.Tx, paths []string) ([]string, error) {
	seen := make(map[string]bool, len(paths))
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, p := range paths {
		add(p)
		rows, err := tx.Query(`SELECT path FROM files WHERE path LIKE ? ESCAPE '\'`, likePrefix(p)+"::%")
		if err != nil {
			return nil, fmt.Errorf("query composite descendants of %s: %w", p, err)
		}
		for rows.Next() {
			var child string
			if err := rows.Scan(&child); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan descendant path: %w", err)
			}
			add(child)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

// likePrefix escapes LIKE metacharacters in p so it can be used as a literal
// prefix in a `LIKE ? ESCAPE '\'` match.
func likePrefix(p string) string {
	r := make([]byte, 0, len(p))
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '%', '_', '\\':
			r = append(r, '\\')
		}
		r = append(r, p[i])
	}
	return string(r)
}

func fileIDsForPaths(tx *sql.Tx, paths []string) ([]int64, error) {
	var ids []int64
	for _, p := range paths {
		var id int64
		err := tx.QueryRow(`SELECT id FROM files WHERE path = ?`, p).Scan(&id)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lookup file id for %s: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func chunkRefsForFile(tx *sql.Tx, fileID int64) ([]ChunkRef, error) {
	rows, err := tx.Query(`SELECT DISTINCT chunk_archive, chunk_name FROM lines WHERE file_id = ?`, fileID)
	if err != nil {
		return nil, fmt.Errorf("query chunk refs for file %d: %w", fileID, err)
	}
	defer rows.Close()

	var refs []ChunkRef
	for rows.Next() {
		var r ChunkRef
		if err := rows.Scan(&r.ArchiveName, &r.EntryName); err != nil {
			return nil, fmt.Errorf("scan chunk ref: %w", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

func dedupeRefs(refs []ChunkRef) []ChunkRef {
	seen := make(map[ChunkRef]bool, len(refs))
	out := make([]ChunkRef, 0, len(refs))
	for _, r := range refs {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
