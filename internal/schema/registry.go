package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ferg-cod3s/find-anything/internal/observability"
)

// Registry owns the set of open per-source database connections under a
// data directory. A single *sql.DB per source is kept open for the process
// lifetime: WAL mode lets many readers share it with the inbox worker's
// writes.
type Registry struct {
	dataDir string
	logger  *observability.Logger

	mu     sync.RWMutex
	stores map[string]*Store
}

// NewRegistry creates a registry rooted at dataDir (sources live under
// dataDir/sources/<name>.db).
func NewRegistry(dataDir string, logger *observability.Logger) *Registry {
	return &Registry{
		dataDir: dataDir,
		logger:  logger,
		stores:  make(map[string]*Store),
	}
}

// sourcePath returns the on-disk path for a source's database file.
func (r *Registry) sourcePath(name string) string {
	return filepath.Join(r.dataDir, "sources", name+".db")
}

// Get opens (or returns the cached handle for) a source's Store. Creating a
// source is implicit: the first bulk ingest for an unseen name creates its
// database file.
func (r *Registry) Get(name string) (*Store, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty source name", ErrNotFound)
	}

	r.mu.RLock()
	s, ok := r.stores[name]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[name]; ok {
		return s, nil
	}

	db, err := Open(r.sourcePath(name))
	if err != nil {
		return nil, fmt.Errorf("open source %q: %w", name, err)
	}
	s = &Store{db: db, name: name}
	r.stores[name] = s
	r.logger.Info("opened source database", "source", name)
	return s, nil
}

// GetExisting returns the Store for a source that already exists, without
// implicitly creating one: read endpoints must 404 on unknown sources while
// only the bulk ingest path may create them.
func (r *Registry) GetExisting(name string) (*Store, error) {
	if !r.Exists(name) {
		return nil, fmt.Errorf("%w: source %q", ErrNotFound, name)
	}
	return r.Get(name)
}

// Exists reports whether a source is already known, either as an open
// handle or as a database file on disk from a previous run. It never
// creates anything.
func (r *Registry) Exists(name string) bool {
	if name == "" {
		return false
	}
	r.mu.RLock()
	_, ok := r.stores[name]
	r.mu.RUnlock()
	if ok {
		return true
	}
	_, err := os.Stat(r.sourcePath(name))
	return err == nil
}

// Names returns every known source name, merging the open handles with the
// *.db files on disk so sources from previous runs are visible before their
// first query re-opens them. Sorted for deterministic iteration (/sources,
// fan-out search).
func (r *Registry) Names() []string {
	seen := make(map[string]bool)
	r.mu.RLock()
	for n := range r.stores {
		seen[n] = true
	}
	r.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(r.dataDir, "sources"))
	if err == nil {
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".db" {
				continue
			}
			seen[strings.TrimSuffix(e.Name(), ".db")] = true
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DataDir returns the registry's root data directory.
func (r *Registry) DataDir() string { return r.dataDir }

// ContentDir returns the shared chunk store root: dataDir/sources/content.
func (r *Registry) ContentDir() string {
	return filepath.Join(r.dataDir, "sources", "content")
}

// Close closes every open source database.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []string
	for name, s := range r.stores {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close sources: %s", strings.Join(errs, "; "))
	}
	return nil
}
