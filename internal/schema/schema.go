package schema

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure-Go driver, no cgo
)

// CurrentVersion is the schema generation this binary writes. Databases with
// a higher PRAGMA user_version are refused on open (see ErrSchemaTooNew).
const CurrentVersion = 5

// MinVersion is the oldest generation this binary knows how to migrate
// forward from. The current generation started at v3; content deduplication
// landed at v5.
const MinVersion = 3

// Open opens (creating if necessary) the per-source database at path,
// applies pragmas, and runs forward migrations to CurrentVersion.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create source db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %s: %w", p, err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// migrate reads PRAGMA user_version and applies any missing migrations in
// sequence. Migrations are additive (CREATE TABLE/INDEX IF NOT EXISTS, ADD
// COLUMN) so re-running against an up-to-date database is a no-op.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version > CurrentVersion {
		return fmt.Errorf("%w: database is at v%d, binary supports up to v%d", ErrSchemaTooNew, version, CurrentVersion)
	}

	if version == 0 {
		// Fresh database: jump straight to MinVersion's baseline schema,
		// then run the additive migrations above it.
		version = MinVersion - 1
	}

	for v := version + 1; v <= CurrentVersion; v++ {
		stmt, ok := migrations[v]
		if !ok {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration v%d: %w", v, err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", v)); err != nil {
			return fmt.Errorf("bump schema version to v%d: %w", v, err)
		}
	}

	return nil
}

// migrations maps a target user_version to the additive DDL that gets a
// database there from the previous version. v3 is the baseline: everything
// before it predates this implementation's compiled-in minimum.
var migrations = map[int]string{
	3: `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT
	);

	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		mtime INTEGER NOT NULL,
		size INTEGER NOT NULL,
		kind TEXT NOT NULL,
		indexed_at INTEGER NOT NULL,
		extract_ms INTEGER,
		content_hash TEXT
	);

	CREATE TABLE IF NOT EXISTS lines (
		id INTEGER PRIMARY KEY,
		file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		line_number INTEGER NOT NULL,
		chunk_archive TEXT NOT NULL,
		chunk_name TEXT NOT NULL,
		line_offset_in_chunk INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_lines_file_line ON lines(file_id, line_number);

	CREATE VIRTUAL TABLE IF NOT EXISTS lines_fts USING fts5(
		content,
		content='',
		contentless_delete=1,
		tokenize='trigram'
	);

	CREATE TABLE IF NOT EXISTS archives (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		archive_name TEXT NOT NULL UNIQUE,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS scan_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scanned_at INTEGER NOT NULL,
		total_files INTEGER NOT NULL,
		total_size INTEGER NOT NULL,
		by_kind TEXT
	);

	CREATE TABLE IF NOT EXISTS indexing_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		error TEXT NOT NULL,
		first_seen INTEGER NOT NULL,
		last_seen INTEGER NOT NULL,
		count INTEGER NOT NULL DEFAULT 1
	);
	`,
	4: `
	CREATE INDEX IF NOT EXISTS idx_files_content_hash ON files(content_hash);
	`,
	5: `
	ALTER TABLE files ADD COLUMN canonical_file_id INTEGER REFERENCES files(id) ON DELETE SET NULL;
	CREATE INDEX IF NOT EXISTS idx_files_canonical ON files(canonical_file_id);
	`,
}
