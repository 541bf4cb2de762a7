package inbox

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ferg-cod3s/find-anything/internal/archive"
	"github.com/ferg-cod3s/find-anything/internal/chunk"
	"github.com/ferg-cod3s/find-anything/internal/dedup"
	"github.com/ferg-cod3s/find-anything/internal/observability"
	"github.com/ferg-cod3s/find-anything/internal/schema"
)

// ApplyOptions carries per-worker batch-processing policy.
type ApplyOptions struct {
	// MaxCompositeDepth is the deepest container nesting a composite path
	// may carry and still be content-indexed. A path one level deeper is
	// indexed by filename only, with a warning.
	MaxCompositeDepth int
	Logger            *observability.Logger
	Metrics           *observability.MetricsCollector
}

// processFile implements the process_file contract for one
// IndexFile within tx, appending any newly written chunks to arch.
func processFile(tx *sql.Tx, arch *archive.Manager, f IndexFile, opts ApplyOptions) error {
	if opts.MaxCompositeDepth > 0 && compositeDepth(f.Path) > opts.MaxCompositeDepth {
		if opts.Logger != nil {
			opts.Logger.Warn("composite path exceeds nesting limit, indexing filename only",
				"path", f.Path, "max_depth", opts.MaxCompositeDepth)
		}
		f.Lines = nil
	}

	f.Kind = refineKind(f)
	f.Lines = ensureFilenameLine(f.Path, f.Lines)

	// A client that did not hash the raw bytes still gets deduplication for
	// byte-for-byte identical extractions: hash the content lines server-side.
	// The synthetic filename line stays out of the digest so identical
	// content at different paths still collides.
	if f.ContentHash == nil || *f.ContentHash == "" {
		if h, ok := deriveContentHash(f.Lines); ok {
			f.ContentHash = &h
		}
	}

	existing, err := schema.FileByPath(tx, f.Path)
	if err != nil && err != schema.ErrNotFound {
		return fmt.Errorf("lookup existing row for %s: %w", f.Path, err)
	}

	// Re-ingesting an unchanged file is a no-op: same mtime, size, and
	// content hash mean the stored rows and chunks are already correct, and
	// skipping keeps identical re-scans from growing the ZIP store. An
	// unchanged archive also keeps its member rows.
	if existing != nil && existing.Mtime == f.Mtime && existing.Size == f.Size && sameHash(existing.ContentHash, f.ContentHash) {
		return nil
	}

	// A row that used to be a canonical with aliases cannot silently change
	// content: its aliases would be left referencing lines that no longer
	// match their content_hash (or, worse, chain through a new alias row).
	// Promote the oldest alias first so the old content keeps a canonical.
	if existing != nil && !existing.IsAlias() && hashChanged(existing.ContentHash, f.ContentHash) {
		if _, err := schema.PromoteAlias(tx, existing.ID, arch.ReadChunk); err != nil {
			return fmt.Errorf("promote aliases of re-indexed %s: %w", f.Path, err)
		}
	}

	// A changed container invalidates everything extracted from it: drop
	// the archive's row and every composite descendant before the batch's
	// fresh member rows land.
	if f.Kind == string(schema.KindArchive) {
		if err := deleteOuterReindex(tx, f.Path); err != nil {
			return err
		}
	}

	if f.ContentHash != nil && *f.ContentHash != "" {
		canonical, err := schema.FindCanonicalByHash(tx, *f.ContentHash, f.Path)
		if err == nil {
			return upsertAlias(tx, f, canonical.ID)
		}
		if err != schema.ErrNotFound {
			return fmt.Errorf("dedup lookup for %s: %w", f.Path, err)
		}
	}

	return upsertCanonical(tx, arch, f, opts)
}

// compositeDepth counts the container-nesting levels in a path: a plain
// filesystem path is depth 0, each "::" separator adds one.
func compositeDepth(path string) int {
	return strings.Count(path, schema.CompositePathSeparator)
}

// sameHash treats two absent hashes as equal: with matching mtime and size
// that is as much proof of "unchanged" as a hashless client can offer.
func sameHash(a, b *string) bool {
	if a == nil || *a == "" {
		return b == nil || *b == ""
	}
	return b != nil && *a == *b
}

// hashChanged reports whether a re-index replaces the row's content with
// different bytes. A nil incoming hash is treated as changed: without a
// hash there is no way to prove the content survived.
func hashChanged(old, new *string) bool {
	if old == nil || *old == "" {
		return false // never was dedup-eligible, no aliases to protect
	}
	return new == nil || *new != *old
}

// refineKind applies the "client wins unless client says unknown" policy:
// when the client could not classify a file, a [FILE:mime] sentinel line
// emitted by its dispatcher refines the stored kind.
func refineKind(f IndexFile) string {
	if f.Kind != string(schema.KindUnknown) {
		return f.Kind
	}
	for _, l := range f.Lines {
		mime, ok := parseFileSentinel(l.Content)
		if !ok {
			continue
		}
		if k := kindForMime(mime); k != schema.KindUnknown {
			return string(k)
		}
	}
	return f.Kind
}

// parseFileSentinel extracts the mime type from a "[FILE:mime]..." line.
func parseFileSentinel(content string) (string, bool) {
	const prefix = "[FILE:"
	if !strings.HasPrefix(content, prefix) {
		return "", false
	}
	end := strings.IndexByte(content, ']')
	if end <= len(prefix) {
		return "", false
	}
	return content[len(prefix):end], true
}

func kindForMime(mime string) schema.FileKind {
	switch {
	case strings.HasPrefix(mime, "text/"):
		return schema.KindText
	case mime == "application/pdf":
		return schema.KindPDF
	case strings.HasPrefix(mime, "image/"):
		return schema.KindImage
	case strings.HasPrefix(mime, "audio/"):
		return schema.KindAudio
	case strings.HasPrefix(mime, "video/"):
		return schema.KindVideo
	case mime == "application/zip", mime == "application/x-tar",
		mime == "application/gzip", mime == "application/x-7z-compressed":
		return schema.KindArchive
	case mime == "application/x-executable", mime == "application/x-elf":
		return schema.KindExecutable
	case strings.HasPrefix(mime, "application/"):
		return schema.KindDocument
	default:
		return schema.KindUnknown
	}
}

// deriveContentHash digests a file's real content lines (line_number >= 1)
// joined by newline. Returns ok=false for files with no content beyond the
// synthetic filename line, whose "content" is just their path.
func deriveContentHash(lines []RequestLine) (string, bool) {
	var texts []string
	for _, l := range lines {
		if l.LineNumber >= 1 {
			texts = append(texts, l.Content)
		}
	}
	if len(texts) == 0 {
		return "", false
	}
	return dedup.HashBytes([]byte(strings.Join(texts, "\n"))), true
}

// ensureFilenameLine guarantees the filename-discoverability invariant:
// every file carries a line_number=0 row whose text is its path,
// even when the client extracted nothing.
func ensureFilenameLine(path string, lines []RequestLine) []RequestLine {
	for _, l := range lines {
		if l.LineNumber == 0 {
			return lines
		}
	}
	return append([]RequestLine{{LineNumber: 0, Content: path}}, lines...)
}

// deleteOuterReindex implements the outer-archive re-index rule: delete
// existing rows for the archive path and every composite descendant before
// the new row set is inserted.
func deleteOuterReindex(tx *sql.Tx, outerPath string) error {
	rows, err := tx.Query(`SELECT id FROM files WHERE path = ? OR path LIKE ?||'::%' ESCAPE '\'`, outerPath, likePrefixLocal(outerPath))
	if err != nil {
		return fmt.Errorf("query outer re-index rows for %s: %w", outerPath, err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan outer re-index id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, id := range ids {
		if err := schema.DeleteLinesForFile(tx, id); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM files WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete outer re-index file %d: %w", id, err)
		}
	}
	return nil
}

func likePrefixLocal(p string) string {
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

// upsertAlias writes a files row pointing at an existing canonical,
// skipping chunk append and lines/FTS insertion entirely. Any
// lines the row carried from a previous life as a canonical are dropped.
func upsertAlias(tx *sql.Tx, f IndexFile, canonicalID int64) error {
	id, err := schema.UpsertFile(tx, schema.UpsertFileParams{
		Path:            f.Path,
		Mtime:           f.Mtime,
		Size:            f.Size,
		Kind:            schema.FileKind(f.Kind),
		ExtractMs:       f.ExtractMs,
		ContentHash:     f.ContentHash,
		CanonicalFileID: &canonicalID,
	})
	if err != nil {
		return err
	}
	return schema.DeleteLinesForFile(tx, id)
}

// upsertCanonical chunks the file's lines, appends them to the archive
// store, and writes the files/lines/FTS rows.
func upsertCanonical(tx *sql.Tx, arch *archive.Manager, f IndexFile, opts ApplyOptions) error {
	fileID, err := schema.UpsertFile(tx, schema.UpsertFileParams{
		Path:        f.Path,
		Mtime:       f.Mtime,
		Size:        f.Size,
		Kind:        schema.FileKind(f.Kind),
		ExtractMs:   f.ExtractMs,
		ContentHash: f.ContentHash,
	})
	if err != nil {
		return err
	}

	// A re-indexed file's previous lines must go before its new ones land,
	// mirroring the outer-archive rule for plain files too.
	if err := schema.DeleteLinesForFile(tx, fileID); err != nil {
		return err
	}

	if len(f.Lines) == 0 {
		return nil
	}

	chunkLines := make([]chunk.Line, len(f.Lines))
	for i, l := range f.Lines {
		chunkLines[i] = chunk.Line{Number: l.LineNumber, Text: l.Content}
	}
	chunks := chunk.Split(chunkLines)

	archChunks := make([]archive.Chunk, len(chunks))
	for i, c := range chunks {
		archChunks[i] = archive.Chunk{FilePath: f.Path, ChunkNumber: c.Number, Text: c.Text}
	}
	refs, err := arch.AppendChunks(archChunks)
	if err != nil {
		return fmt.Errorf("append chunks for %s: %w", f.Path, err)
	}
	if opts.Metrics != nil {
		opts.Metrics.RecordIndexedChunks(len(chunks))
	}

	for i, c := range chunks {
		ref := refs[i]
		if err := schema.RecordArchive(tx, ref.ArchiveName, ref.ArchiveSizeBytes, ref.ArchiveChunkCount); err != nil {
			return err
		}
		for _, p := range c.Lines {
			text := p.Line.Text
			if _, err := schema.InsertLine(tx, schema.InsertLineParams{
				FileID:            fileID,
				LineNumber:        p.Line.Number,
				ChunkArchive:      ref.ArchiveName,
				ChunkName:         ref.EntryName,
				LineOffsetInChunk: p.LineOffsetInChunk,
				Text:              textForFTS(text),
			}); err != nil {
				return err
			}
		}
	}

	return nil
}

// textForFTS trims trailing carriage returns from a line before it is
// indexed, so CRLF input tokenizes the same as LF input.
func textForFTS(text string) string {
	return strings.TrimRight(text, "\r")
}

// ApplyBatch runs the full strict processing order for one bulk request
// inside tx, appending chunks to arch as needed.
func ApplyBatch(tx *sql.Tx, arch *archive.Manager, req BulkRequest, opts ApplyOptions) error {
	deletePlan, err := schema.PrepareDelete(tx, req.DeletePaths, arch.ReadChunk)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}

	for _, f := range req.Files {
		if err := processFile(tx, arch, f, opts); err != nil {
			return fmt.Errorf("process file %s: %w", f.Path, err)
		}
	}

	now := time.Now()
	if req.ScanTimestamp != nil {
		byKind, err := schema.CountByKind(tx)
		if err != nil {
			return err
		}
		total, err := schema.TotalSize(tx)
		if err != nil {
			return err
		}
		totalFiles := 0
		for _, n := range byKind {
			totalFiles += n
		}
		if err := schema.AppendScanHistory(tx, schema.ScanHistoryPoint{
			ScannedAt:  time.Unix(*req.ScanTimestamp, 0).UTC(),
			TotalFiles: totalFiles,
			TotalSize:  total,
			ByKind:     byKind,
		}); err != nil {
			return err
		}
		if err := schema.SetMeta(tx, "last_scan", fmt.Sprintf("%d", *req.ScanTimestamp)); err != nil {
			return err
		}
	}

	if req.BaseURL != nil {
		if err := schema.SetMeta(tx, "base_url", *req.BaseURL); err != nil {
			return err
		}
	}

	succeeded := make(map[string]bool)
	for _, f := range req.Files {
		succeeded[f.Path] = true
	}
	for _, p := range deletePlan.FullPaths {
		succeeded[p] = true
	}
	for path := range succeeded {
		if err := schema.ClearIndexingError(tx, path); err != nil {
			return err
		}
	}

	for _, f := range req.IndexingFailures {
		if err := schema.UpsertIndexingError(tx, f.Path, f.Error, now.Unix()); err != nil {
			return err
		}
	}

	removable, err := liveRefsFiltered(tx, deletePlan.ChunkRefs)
	if err != nil {
		return err
	}
	if len(removable) > 0 {
		rewriteStart := time.Now()
		if err := arch.RemoveChunks(removable); err != nil {
			return fmt.Errorf("remove chunks: %w", err)
		}
		for _, grouped := range groupByArchive(removable) {
			if opts.Metrics != nil {
				opts.Metrics.RecordArchiveRewrite()
			}
			if opts.Logger != nil {
				opts.Logger.LogArchiveRewrite(context.Background(), grouped, len(removable), time.Since(rewriteStart))
			}
			count, size, err := arch.Stat(grouped)
			if err != nil {
				continue // archive may have been fully emptied and left as zero entries; accounting is best-effort
			}
			if err := schema.RecordArchive(tx, grouped, size, count); err != nil {
				return err
			}
		}
	}

	return nil
}

// liveRefsFiltered drops any to-be-removed chunk ref that a live line still
// points at. A batch that deletes a path and re-adds it with the same
// content can write a fresh chunk under the same (archive, entry) name the
// stale ref carries; removing it would destroy the new copy too.
func liveRefsFiltered(tx *sql.Tx, refs []schema.ChunkRef) ([]schema.ChunkRef, error) {
	out := make([]schema.ChunkRef, 0, len(refs))
	for _, r := range refs {
		var one int
		err := tx.QueryRow(`SELECT 1 FROM lines WHERE chunk_archive = ? AND chunk_name = ? LIMIT 1`,
			r.ArchiveName, r.EntryName).Scan(&one)
		if err == sql.ErrNoRows {
			out = append(out, r)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("check liveness of chunk %s/%s: %w", r.ArchiveName, r.EntryName, err)
		}
	}
	return out, nil
}

func groupByArchive(refs []schema.ChunkRef) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range refs {
		if !seen[r.ArchiveName] {
			seen[r.ArchiveName] = true
			names = append(names, r.ArchiveName)
		}
	}
	return names
}
