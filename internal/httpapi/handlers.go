package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ferg-cod3s/find-anything/internal/inbox"
	"github.com/ferg-cod3s/find-anything/internal/query"
	"github.com/ferg-cod3s/find-anything/internal/schema"
	"github.com/ferg-cod3s/find-anything/internal/security"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 500

	// maxInboxBacklog is the pending-batch count past which bulk ingest
	// sheds load with a 503 instead of queuing further behind the worker.
	maxInboxBacklog = 1000
)

// handleBulk accepts a gzip-encoded JSON BulkRequest body and queues it for
// async processing. The handler never parses the body: it
// only has to land it atomically in the inbox directory under a filename
// the worker has never seen.
func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	inboxDir := filepath.Join(s.registry.DataDir(), "inbox")
	if err := os.MkdirAll(inboxDir, 0o755); err != nil {
		writeError(w, r, fmt.Errorf("create inbox dir: %w", err))
		return
	}

	if pending, _ := s.inboxCounts(); pending > maxInboxBacklog {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "inbox worker backed up"})
		return
	}

	name := fmt.Sprintf("%d_%s.gz", time.Now().UnixNano(), uuid.NewString())
	tmpPath := filepath.Join(inboxDir, name+".tmp")
	finalPath := filepath.Join(inboxDir, name)

	f, err := os.Create(tmpPath)
	if err != nil {
		writeError(w, r, fmt.Errorf("create inbox file: %w", err))
		return
	}
	if _, err := io.Copy(f, r.Body); err != nil {
		f.Close()
		os.Remove(tmpPath)
		writeError(w, r, fmt.Errorf("write inbox file: %w", err))
		return
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		writeError(w, r, fmt.Errorf("close inbox file: %w", err))
		return
	}
	// Renaming within the inbox directory is the only handoff point between
	// the HTTP writer and the worker; the worker never observes a partial
	// file because it only lists names ending in ".gz".
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		writeError(w, r, fmt.Errorf("finalize inbox file: %w", err))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "file": name})
}

// handleSearch runs the query engine against q/mode/source/limit/offset.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	qv := r.URL.Query()

	mode, err := query.ParseMode(qv.Get("mode"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	limit := parseIntDefault(qv.Get("limit"), defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	offset := parseIntDefault(qv.Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}

	req := query.Request{
		Query:   qv.Get("q"),
		Mode:    mode,
		Sources: qv["source"],
		Limit:   limit,
		Offset:  offset,
	}

	resp, err := s.engine.Search(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type lineDTO struct {
	LineNumber int    `json:"line_number"`
	Text       string `json:"text"`
}

// handleFile returns every line of a file, resolving through a canonical if
// path names an alias.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	qv := r.URL.Query()
	store, err := s.registry.GetExisting(qv.Get("source"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	path := joinComposite(qv.Get("path"), qv.Get("archive_path"))
	if _, err := security.ValidateCompositePath(path); err != nil {
		badRequest(w, err.Error())
		return
	}
	file, err := store.GetFileByPath(path)
	if err != nil {
		writeError(w, r, err)
		return
	}

	lookupID := file.ID
	if file.CanonicalFileID != nil {
		lookupID = *file.CanonicalFileID
	}

	lines, err := schema.LinesForFile(store.DB(), lookupID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cache := query.NewChunkCache(s.arch)
	out := make([]lineDTO, 0, len(lines))
	for _, l := range lines {
		text, err := cache.Line(l.ChunkArchive, l.ChunkName, l.LineOffsetInChunk)
		if err != nil {
			s.logger.Warn("chunk unreadable for /file", "path", path, "error", err)
			continue
		}
		out = append(out, lineDTO{LineNumber: l.LineNumber, Text: text})
	}

	writeJSON(w, http.StatusOK, out)
}

type fileSummaryDTO struct {
	Path  string `json:"path"`
	Mtime int64  `json:"mtime"`
	Kind  string `json:"kind"`
}

// handleFiles lists every file in a source.
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	store, err := s.registry.GetExisting(r.URL.Query().Get("source"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	files, err := schema.ListFiles(store.DB(), schema.ListFilesParams{Limit: 1_000_000})
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]fileSummaryDTO, len(files))
	for i, f := range files {
		out[i] = fileSummaryDTO{Path: f.Path, Mtime: f.Mtime, Kind: string(f.Kind)}
	}
	writeJSON(w, http.StatusOK, out)
}

// contextDTO is the /api/v1/context wire shape:
// {start, match_index, lines, file_kind}.
type contextDTO struct {
	StartLine  int      `json:"start"`
	MatchIndex *int     `json:"match_index"`
	Lines      []string `json:"lines"`
	FileKind   string   `json:"file_kind"`
}

// handleContext returns a context window around one line.
func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	qv := r.URL.Query()
	resp, err := s.lookupContext(qv.Get("source"), qv.Get("path"), qv.Get("archive_path"),
		parseIntDefault(qv.Get("line"), 0), parseIntDefault(qv.Get("window"), 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type contextBatchItem struct {
	Source      string `json:"source"`
	Path        string `json:"path"`
	ArchivePath string `json:"archive_path,omitempty"`
	Line        int    `json:"line"`
	Window      int    `json:"window"`
}

type contextBatchResult struct {
	contextDTO
	Error string `json:"error,omitempty"`
}

// handleContextBatch resolves a batch of context lookups, preserving
// request order item-by-item so one bad entry never fails the batch.
func (s *Server) handleContextBatch(w http.ResponseWriter, r *http.Request) {
	var items []contextBatchItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		badRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	out := make([]contextBatchResult, len(items))
	for i, item := range items {
		resp, err := s.lookupContext(item.Source, item.Path, item.ArchivePath, item.Line, item.Window)
		if err != nil {
			out[i] = contextBatchResult{Error: err.Error()}
			continue
		}
		out[i] = contextBatchResult{contextDTO: resp}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) lookupContext(source, path, archivePath string, line, window int) (contextDTO, error) {
	full := joinComposite(path, archivePath)
	if _, err := security.ValidateCompositePath(full); err != nil {
		return contextDTO{}, fmt.Errorf("%w: %v", query.ErrQueryInvalid, err)
	}
	store, err := s.registry.GetExisting(source)
	if err != nil {
		return contextDTO{}, err
	}
	cache := query.NewChunkCache(s.arch)
	resp, err := query.GetContext(store, cache, full, line, window)
	if err != nil {
		return contextDTO{}, err
	}
	return contextDTO{StartLine: resp.StartLine, MatchIndex: resp.MatchIndex, Lines: resp.Lines, FileKind: resp.FileKind}, nil
}

type sourceDTO struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
}

// handleSources lists every known source.
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	names := s.registry.Names()
	out := make([]sourceDTO, 0, len(names))
	for _, name := range names {
		store, err := s.registry.Get(name)
		if err != nil {
			s.logger.Warn("source unavailable while listing sources", "source", name, "error", err)
			continue
		}
		meta, err := store.Meta()
		if err != nil {
			s.logger.Warn("meta unavailable while listing sources", "source", name, "error", err)
			continue
		}
		out = append(out, sourceDTO{Name: name, BaseURL: meta.BaseURL})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleTree returns one directory level under prefix.
func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	qv := r.URL.Query()
	store, err := s.registry.GetExisting(qv.Get("source"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := schema.Tree(store.DB(), qv.Get("prefix"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type errorsResponseDTO struct {
	Errors []schema.IndexingError `json:"errors"`
	Total  int                    `json:"total"`
}

// handleErrors lists recorded indexing failures for a source.
func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	qv := r.URL.Query()
	store, err := s.registry.GetExisting(qv.Get("source"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	all, err := schema.ListIndexingErrors(store.DB())
	if err != nil {
		writeError(w, r, err)
		return
	}

	limit := parseIntDefault(qv.Get("limit"), 50)
	offset := parseIntDefault(qv.Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}
	total := len(all)

	var page []schema.IndexingError
	if offset < total {
		end := offset + limit
		if limit <= 0 || end > total {
			end = total
		}
		page = all[offset:end]
	}

	writeJSON(w, http.StatusOK, errorsResponseDTO{Errors: page, Total: total})
}

type sourceStatsDTO struct {
	Counts      map[string]int            `json:"counts"`
	TotalSize   int64                     `json:"total_size"`
	ScanHistory []schema.ScanHistoryPoint `json:"scan_history"`
	ErrorCount  int                       `json:"error_count"`
}

type statsResponseDTO struct {
	Sources      map[string]sourceStatsDTO `json:"sources"`
	InboxPending int                       `json:"inbox_pending"`
	InboxFailed  int                       `json:"inbox_failed"`
	ArchiveCount int                       `json:"archive_count"`
	WorkerStatus inbox.Status              `json:"worker_status"`
}

// handleStats aggregates per-source and global counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sources := make(map[string]sourceStatsDTO)
	for _, name := range s.registry.Names() {
		store, err := s.registry.Get(name)
		if err != nil {
			s.logger.Warn("source unavailable for stats", "source", name, "error", err)
			continue
		}

		counts, err := schema.CountByKind(store.DB())
		if err != nil {
			writeError(w, r, err)
			return
		}
		totalSize, err := schema.TotalSize(store.DB())
		if err != nil {
			writeError(w, r, err)
			return
		}
		history, err := schema.ScanHistory(store.DB(), 10)
		if err != nil {
			writeError(w, r, err)
			return
		}
		errs, err := schema.ListIndexingErrors(store.DB())
		if err != nil {
			writeError(w, r, err)
			return
		}

		sources[name] = sourceStatsDTO{
			Counts:      counts,
			TotalSize:   totalSize,
			ScanHistory: history,
			ErrorCount:  len(errs),
		}
	}

	pending, failed := s.inboxCounts()
	archiveCount := s.archiveCount()

	writeJSON(w, http.StatusOK, statsResponseDTO{
		Sources:      sources,
		InboxPending: pending,
		InboxFailed:  failed,
		ArchiveCount: archiveCount,
		WorkerStatus: s.worker.GetStatus(),
	})
}

// handleMetrics returns the minimal health JSON served by
// `/api/v1/metrics`.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	pending, failed := s.inboxCounts()
	writeJSON(w, http.StatusOK, map[string]int{
		"inbox_pending": pending,
		"inbox_failed":  failed,
		"archive_count": s.archiveCount(),
	})
}

type adminInboxDTO struct {
	Pending []string     `json:"pending"`
	Failed  []string     `json:"failed"`
	Status  inbox.Status `json:"status"`
}

// handleAdminInboxList lists pending and quarantined inbox entries.
func (s *Server) handleAdminInboxList(w http.ResponseWriter, r *http.Request) {
	pending := listGzNames(filepath.Join(s.registry.DataDir(), "inbox"))
	failed := listGzNames(filepath.Join(s.registry.DataDir(), "inbox", "failed"))
	writeJSON(w, http.StatusOK, adminInboxDTO{Pending: pending, Failed: failed, Status: s.worker.GetStatus()})
}

// handleAdminInboxClear discards every quarantined batch in inbox/failed.
// Pending (not-yet-processed) entries are left alone: they are not the
// operator's to discard, only the worker's to drain.
func (s *Server) handleAdminInboxClear(w http.ResponseWriter, r *http.Request) {
	failedDir := filepath.Join(s.registry.DataDir(), "inbox", "failed")
	entries, err := os.ReadDir(failedDir)
	if err != nil {
		writeError(w, r, fmt.Errorf("read failed dir: %w", err))
		return
	}

	cleared := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(failedDir, e.Name())); err != nil {
			s.logger.Warn("failed to remove quarantined inbox entry", "file", e.Name(), "error", err)
			continue
		}
		cleared++
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}

// handleAdminInboxRetry moves every quarantined batch back into the inbox
// for reprocessing, dropping its error sidecar.
func (s *Server) handleAdminInboxRetry(w http.ResponseWriter, r *http.Request) {
	failedDir := filepath.Join(s.registry.DataDir(), "inbox", "failed")
	inboxDir := filepath.Join(s.registry.DataDir(), "inbox")

	entries, err := os.ReadDir(failedDir)
	if err != nil {
		writeError(w, r, fmt.Errorf("read failed dir: %w", err))
		return
	}

	retried := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".gz" {
			continue
		}
		src := filepath.Join(failedDir, e.Name())
		dst := filepath.Join(inboxDir, e.Name())
		if err := os.Rename(src, dst); err != nil {
			s.logger.Warn("failed to requeue quarantined inbox entry", "file", e.Name(), "error", err)
			continue
		}
		os.Remove(src + ".err")
		retried++
	}
	writeJSON(w, http.StatusOK, map[string]int{"retried": retried})
}

func (s *Server) inboxCounts() (pending, failed int) {
	pending = len(listGzNames(filepath.Join(s.registry.DataDir(), "inbox")))
	failed = len(listGzNames(filepath.Join(s.registry.DataDir(), "inbox", "failed")))
	return pending, failed
}

func (s *Server) archiveCount() int {
	count := 0
	entries, err := os.ReadDir(s.registry.ContentDir())
	if err != nil {
		return 0
	}
	for _, shard := range entries {
		if !shard.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.registry.ContentDir(), shard.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if filepath.Ext(f.Name()) == ".zip" {
				count++
			}
		}
	}
	return count
}

func listGzNames(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".gz" {
			continue
		}
		out = append(out, e.Name())
	}
	return out
}

func joinComposite(path, archivePath string) string {
	if archivePath == "" {
		return path
	}
	return archivePath + schema.CompositePathSeparator + path
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
