// Package schema defines the per-source SQLite schema for find-anything and
// provides the access layer used by the inbox worker and the query engine.
package schema

import "time"

func unixToTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// FileKind is a closed enumeration of the kinds a file row can carry.
type FileKind string

const (
	KindText       FileKind = "text"
	KindPDF        FileKind = "pdf"
	KindImage      FileKind = "image"
	KindAudio      FileKind = "audio"
	KindVideo      FileKind = "video"
	KindDocument   FileKind = "document"
	KindArchive    FileKind = "archive"
	KindExecutable FileKind = "executable"
	KindUnknown    FileKind = "unknown"
)

// File is a row in the per-source files table.
type File struct {
	ID              int64
	Path            string
	Mtime           int64
	Size            int64
	Kind            FileKind
	IndexedAt       time.Time
	ExtractMs       *int64
	ContentHash     *string
	CanonicalFileID *int64
}

// IsAlias reports whether this file row references a canonical file's chunks.
func (f File) IsAlias() bool {
	return f.CanonicalFileID != nil
}

// Line is a row in the per-source lines table, owned by a File.
type Line struct {
	ID                int64
	FileID            int64
	LineNumber        int
	ChunkArchive      string
	ChunkName         string
	LineOffsetInChunk int
}

// ChunkRef identifies a chunk's location within the shared ZIP chunk store.
type ChunkRef struct {
	ArchiveName string
	EntryName   string
}

// ChunkRefWithSize pairs a ChunkRef with the archive's size immediately
// after the chunk was written, so callers can upsert archives-table
// accounting without a second round trip to the archive manager.
type ChunkRefWithSize struct {
	ChunkRef
	ArchiveSizeBytes  int64
	ArchiveChunkCount int
}

// ArchiveDescriptor is an accounting row in the archives table.
type ArchiveDescriptor struct {
	ID          int64
	ArchiveName string
	SizeBytes   int64
	ChunkCount  int
	CreatedAt   time.Time
}

// ScanHistoryPoint is an appended row recording a completed client scan.
type ScanHistoryPoint struct {
	ID         int64          `json:"id"`
	ScannedAt  time.Time      `json:"scanned_at"`
	TotalFiles int            `json:"total_files"`
	TotalSize  int64          `json:"total_size"`
	ByKind     map[string]int `json:"by_kind"`
}

// IndexingError is a row in the indexing_errors table, keyed by path.
type IndexingError struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	Error     string    `json:"error"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Count     int       `json:"count"`
}

// SourceMeta holds the meta(key,value) rows that matter to callers.
type SourceMeta struct {
	BaseURL       string
	LastScan      time.Time
	SchemaVersion int
}
