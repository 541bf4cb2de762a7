package inbox

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ferg-cod3s/find-anything/internal/archive"
	"github.com/ferg-cod3s/find-anything/internal/observability"
	"github.com/ferg-cod3s/find-anything/internal/schema"
)

// Status is a snapshot of the worker's drain progress, exposed to the
// admin inbox endpoints.
type Status struct {
	Draining      bool      `json:"draining"`
	LastFile      string    `json:"last_file"`
	LastError     string    `json:"last_error,omitempty"`
	FilesOK       int       `json:"files_ok"`
	FilesFailed   int       `json:"files_failed"`
	LastDrainedAt time.Time `json:"last_drained_at"`
}

// Worker drains gzip-JSON bulk requests from <data_dir>/inbox in filename
// order, one file at a time, each inside its own SQLite transaction. A failed file is moved to <data_dir>/inbox/failed instead of being
// retried automatically.
type Worker struct {
	dataDir      string
	registry     *schema.Registry
	arch         *archive.Manager
	logger       *observability.Logger
	metrics      *observability.MetricsCollector
	pollInterval time.Duration
	watchEnabled bool
	applyOpts    ApplyOptions

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	statusMu sync.RWMutex
	status   Status
}

// NewWorker constructs a Worker. metrics may be nil. Start must be called
// to begin draining.
func NewWorker(registry *schema.Registry, arch *archive.Manager, logger *observability.Logger, metrics *observability.MetricsCollector, pollInterval time.Duration, watchEnabled bool, maxCompositeDepth int) *Worker {
	return &Worker{
		dataDir:      registry.DataDir(),
		registry:     registry,
		arch:         arch,
		logger:       logger,
		metrics:      metrics,
		pollInterval: pollInterval,
		watchEnabled: watchEnabled,
		applyOpts:    ApplyOptions{MaxCompositeDepth: maxCompositeDepth, Logger: logger, Metrics: metrics},
	}
}

func (w *Worker) inboxDir() string  { return filepath.Join(w.dataDir, "inbox") }
func (w *Worker) failedDir() string { return filepath.Join(w.dataDir, "inbox", "failed") }

// Start creates the inbox directories, drains whatever is already waiting
// (crash recovery), then runs the background drain loop until Stop is
// called.
func (w *Worker) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.inboxDir(), 0o755); err != nil {
		return fmt.Errorf("create inbox dir: %w", err)
	}
	if err := os.MkdirAll(w.failedDir(), 0o755); err != nil {
		return fmt.Errorf("create inbox failed dir: %w", err)
	}

	w.ctx, w.cancel = context.WithCancel(ctx)

	w.drainAll()

	var events <-chan string
	var watcher *dirWatcher
	if w.watchEnabled {
		var err error
		watcher, events, err = newDirWatcher(w.inboxDir())
		if err != nil {
			w.logger.Warn("inbox watcher unavailable, falling back to polling only", "error", err)
			watcher = nil
		}
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if watcher != nil {
			defer watcher.Close()
		}

		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.drainAll()
			case <-events:
				w.drainAll()
			}
		}
	}()

	return nil
}

// Stop cancels the drain loop and waits for it to exit.
func (w *Worker) Stop() error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(30 * time.Second):
		return fmt.Errorf("timeout waiting for inbox worker to stop")
	}
}

// GetStatus returns the most recent drain status.
func (w *Worker) GetStatus() Status {
	w.statusMu.RLock()
	defer w.statusMu.RUnlock()
	return w.status
}

func (w *Worker) updateStatus(fn func(*Status)) {
	w.statusMu.Lock()
	defer w.statusMu.Unlock()
	fn(&w.status)
}

// drainAll processes every *.gz file currently in the inbox, in filename
// order, stopping early if the context is cancelled mid-batch.
func (w *Worker) drainAll() {
	names, err := w.listInbox()
	if err != nil {
		w.logger.Error("list inbox directory failed", "error", err)
		return
	}
	if len(names) == 0 {
		return
	}

	w.updateStatus(func(s *Status) { s.Draining = true })
	defer w.updateStatus(func(s *Status) {
		s.Draining = false
		s.LastDrainedAt = time.Now()
	})

	for _, name := range names {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		path := filepath.Join(w.inboxDir(), name)
		started := time.Now()
		fileCount, err := w.processFile(path)
		if err != nil {
			w.logger.Error("inbox batch failed, quarantining", "file", name, "error", err)
			w.quarantine(path, err)
			if w.metrics != nil {
				w.metrics.RecordBatch("failed", time.Since(started))
			}
			w.updateStatus(func(s *Status) {
				s.FilesFailed++
				s.LastFile = name
				s.LastError = err.Error()
			})
			continue
		}

		if w.metrics != nil {
			w.metrics.RecordBatch("ok", time.Since(started))
			w.metrics.RecordIndexedFiles(fileCount)
		}
		w.logger.LogInboxBatch(w.ctx, name, fileCount, time.Since(started))
		w.updateStatus(func(s *Status) {
			s.FilesOK++
			s.LastFile = name
			s.LastError = ""
		})
	}

	w.publishDepth()
}

// publishDepth refreshes the inbox depth and archive count gauges after a
// drain pass.
func (w *Worker) publishDepth() {
	if w.metrics == nil {
		return
	}
	pending, _ := w.listInbox()
	failed := 0
	if entries, err := os.ReadDir(w.failedDir()); err == nil {
		for _, e := range entries {
			if !e.IsDir() && filepath.Ext(e.Name()) == ".gz" {
				failed++
			}
		}
	}
	w.metrics.SetInboxDepth(len(pending), failed)

	archives := 0
	if shards, err := os.ReadDir(w.registry.ContentDir()); err == nil {
		for _, shard := range shards {
			if !shard.IsDir() {
				continue
			}
			files, err := os.ReadDir(filepath.Join(w.registry.ContentDir(), shard.Name()))
			if err != nil {
				continue
			}
			for _, f := range files {
				if filepath.Ext(f.Name()) == ".zip" {
					archives++
				}
			}
		}
	}
	w.metrics.SetArchiveCount(archives)
}

// listInbox returns the *.gz filenames in the inbox directory sorted
// lexically, which matches arrival order for timestamp-prefixed names.
func (w *Worker) listInbox() ([]string, error) {
	entries, err := os.ReadDir(w.inboxDir())
	if err != nil {
		return nil, fmt.Errorf("read inbox dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".gz" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// processFile decodes one inbox file and applies it inside a single
// transaction against its source's database, deleting the file on
// success. Returns the number of files the batch carried.
func (w *Worker) processFile(path string) (int, error) {
	req, err := decodeBulkRequest(path)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	store, err := w.registry.Get(req.Source)
	if err != nil {
		return 0, fmt.Errorf("resolve source %q: %w", req.Source, err)
	}

	tx, err := store.DB().Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx for source %q: %w", req.Source, err)
	}

	if err := ApplyBatch(tx, w.arch, req, w.applyOpts); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			w.logger.Error("rollback failed after apply error", "error", rbErr)
		}
		return 0, fmt.Errorf("apply batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}

	if err := os.Remove(path); err != nil {
		w.logger.Error("committed batch but failed to remove inbox file", "file", path, "error", err)
	}
	return len(req.Files), nil
}

// decodeBulkRequest gunzips and JSON-decodes one inbox file.
func decodeBulkRequest(path string) (BulkRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return BulkRequest{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return BulkRequest{}, fmt.Errorf("gzip reader: %w", err)
	}
	defer gz.Close()

	var req BulkRequest
	if err := json.NewDecoder(gz).Decode(&req); err != nil {
		return BulkRequest{}, fmt.Errorf("json decode: %w", err)
	}
	if req.Source == "" {
		return BulkRequest{}, fmt.Errorf("missing source field")
	}
	return req, nil
}

// quarantine moves a failed inbox file into inbox/failed and writes the
// error to a .err sidecar beside it for operator inspection, replacing any
// earlier sidecar of the same name.
func (w *Worker) quarantine(path string, cause error) {
	dest := filepath.Join(w.failedDir(), filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		w.logger.Error("failed to quarantine inbox file", "file", path, "error", err)
		return
	}
	errPath := dest + ".err"
	if err := os.WriteFile(errPath, []byte(cause.Error()+"\n"), 0o644); err != nil {
		w.logger.Error("failed to write quarantine error sidecar", "file", errPath, "error", err)
	}
}
