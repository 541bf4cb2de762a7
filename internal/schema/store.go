package schema

import (
	"database/sql"
	"fmt"
)

// Store wraps a single source's database connection with the operations the
// inbox worker and query engine need. All write paths are expected to run
// inside a caller-managed transaction so that deletes, upserts, and error
// bookkeeping commit atomically.
type Store struct {
	db   *sql.DB
	name string
}

// Name returns the source name this store was opened for.
func (s *Store) Name() string { return s.name }

// DB exposes the underlying connection pool for callers that need to
// manage their own transaction (the inbox worker) or issue ad-hoc
// read-only queries (the query engine).
func (s *Store) DB() *sql.DB { return s.db }

// Meta returns the current meta table contents relevant to callers.
func (s *Store) Meta() (SourceMeta, error) {
	rows, err := s.db.Query(`SELECT key, value FROM meta WHERE key IN ('base_url', 'last_scan')`)
	if err != nil {
		return SourceMeta{}, fmt.Errorf("query meta: %w", err)
	}
	defer rows.Close()

	var meta SourceMeta
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return SourceMeta{}, fmt.Errorf("scan meta: %w", err)
		}
		switch key {
		case "base_url":
			meta.BaseURL = value
		case "last_scan":
			var ts int64
			fmt.Sscanf(value, "%d", &ts)
			meta.LastScan = unixToTime(ts)
		}
	}
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&meta.SchemaVersion); err != nil {
		return SourceMeta{}, fmt.Errorf("read schema version: %w", err)
	}
	return meta, rows.Err()
}

// SetMeta upserts a single meta key/value pair within tx.
func SetMeta(tx *sql.Tx, key, value string) error {
	_, err := tx.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}
