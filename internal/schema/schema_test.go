package schema

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "src.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// testDB bundles a database with the fake chunk store its lines point at.
type testDB struct {
	*sql.DB
	chunks fakeChunks
}

func newTestDB(t *testing.T) *testDB {
	t.Helper()
	return &testDB{DB: openTestDB(t), chunks: fakeChunks{}}
}

func strptr(s string) *string { return &s }

// fakeChunks stands in for the archive manager in schema-level tests.
type fakeChunks map[string]string

func (f fakeChunks) read(archiveName, entryName string) (string, error) {
	text, ok := f[archiveName+"/"+entryName]
	if !ok {
		return "", fmt.Errorf("%w: %s in %s", ErrChunkNotFound, entryName, archiveName)
	}
	return text, nil
}

// addFile inserts a files row plus one chunk's worth of lines. texts[i]
// becomes line_number i, with texts[0] expected to be the path itself
// (the filename-discoverability line).
func addFile(t *testing.T, db *sql.DB, chunks fakeChunks, path string, hash *string, texts []string) int64 {
	t.Helper()
	tx, err := db.Begin()
	require.NoError(t, err)

	id, err := UpsertFile(tx, UpsertFileParams{Path: path, Mtime: 1000, Size: 64, Kind: KindText, ContentHash: hash})
	require.NoError(t, err)

	archiveName := "content_00000.zip"
	entryName := path + ".chunk0.txt"
	chunks[archiveName+"/"+entryName] = strings.Join(texts, "\n")

	for i, text := range texts {
		_, err := InsertLine(tx, InsertLineParams{
			FileID:            id,
			LineNumber:        i,
			ChunkArchive:      archiveName,
			ChunkName:         entryName,
			LineOffsetInChunk: i,
			Text:              text,
		})
		require.NoError(t, err)
	}

	require.NoError(t, tx.Commit())
	return id
}

// addAlias inserts a files row that references canonicalID and carries no
// lines of its own.
func addAlias(t *testing.T, db *sql.DB, path string, hash *string, canonicalID int64) int64 {
	t.Helper()
	tx, err := db.Begin()
	require.NoError(t, err)
	id, err := UpsertFile(tx, UpsertFileParams{
		Path: path, Mtime: 1000, Size: 64, Kind: KindText,
		ContentHash: hash, CanonicalFileID: &canonicalID,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return id
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestOpenMigratesFreshDatabase(t *testing.T) {
	db := openTestDB(t)

	var version int
	require.NoError(t, db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, CurrentVersion, version)

	// Every table from the baseline and additive migrations exists.
	for _, table := range []string{"meta", "files", "lines", "archives", "scan_history", "indexing_errors"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
	}

	// v5's dedup column is present.
	_, err := db.Exec("SELECT canonical_file_id FROM files LIMIT 1")
	require.NoError(t, err)
}

func TestOpenIsIdempotentAtCurrentVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "src.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	var version int
	require.NoError(t, db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, CurrentVersion, version)
}

func TestOpenRefusesNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "src.db")

	db, err := Open(path)
	require.NoError(t, err)
	_, err = db.Exec(fmt.Sprintf("PRAGMA user_version = %d", CurrentVersion+1))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path)
	assert.ErrorIs(t, err, ErrSchemaTooNew)
}

func TestUpsertFileKeepsIndexedAt(t *testing.T) {
	db := openTestDB(t)
	chunks := fakeChunks{}

	addFile(t, db, chunks, "a.txt", nil, []string{"a.txt", "first pass"})

	var firstIndexedAt int64
	require.NoError(t, db.QueryRow("SELECT indexed_at FROM files WHERE path = 'a.txt'").Scan(&firstIndexedAt))

	tx, err := db.Begin()
	require.NoError(t, err)
	_, err = UpsertFile(tx, UpsertFileParams{Path: "a.txt", Mtime: 2000, Size: 128, Kind: KindText})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	var mtime, indexedAt int64
	require.NoError(t, db.QueryRow("SELECT mtime, indexed_at FROM files WHERE path = 'a.txt'").Scan(&mtime, &indexedAt))
	assert.Equal(t, int64(2000), mtime, "mtime updates on re-index")
	assert.Equal(t, firstIndexedAt, indexedAt, "indexed_at is set once on first insert")
}

func TestInsertLineKeepsFTSInLockstep(t *testing.T) {
	db := openTestDB(t)
	chunks := fakeChunks{}

	addFile(t, db, chunks, "src/main.txt", nil, []string{"src/main.txt", "hello world", "foobar"})

	assert.Equal(t, countRows(t, db, "lines"), countRows(t, db, "lines_fts"))

	// FTS rowids are the lines ids: a trigram match resolves to the row.
	candidates, err := SearchCandidates(db, `"hel" "ell" "llo"`, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, 1, candidates[0].LineNumber)
}

func TestCompositePathHelpers(t *testing.T) {
	assert.False(t, IsComposite("docs/taxes.zip"))
	assert.True(t, IsComposite("docs/taxes.zip::w2.pdf"))

	parent, ok := ParentArchivePath("outer.zip::inner.tar.gz::report.txt")
	require.True(t, ok)
	assert.Equal(t, "outer.zip::inner.tar.gz", parent)

	_, ok = ParentArchivePath("plain.txt")
	assert.False(t, ok)
}
