package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromoteAliasOnCanonicalDelete(t *testing.T) {
	db := newTestDB(t)
	hash := strptr("deadbeef")

	canonicalID := addFile(t, db.DB, db.chunks, "primary.txt", hash, []string{"primary.txt", "quick brown fox"})
	firstAliasID := addAlias(t, db.DB, "copy.txt", hash, canonicalID)
	secondAliasID := addAlias(t, db.DB, "backup/copy2.txt", hash, canonicalID)

	var wantRefs []ChunkRef
	before, err := LinesForFile(db.DB, canonicalID)
	require.NoError(t, err)
	for _, l := range before {
		wantRefs = append(wantRefs, ChunkRef{ArchiveName: l.ChunkArchive, EntryName: l.ChunkName})
	}

	plan := runDelete(t, db, []string{"primary.txt"})

	// The promoted alias inherits the chunks; nothing is reclaimed.
	assert.Empty(t, plan.ChunkRefs)

	// Oldest alias (lowest id) is the new canonical.
	promoted, err := FileByPath(db.DB, "copy.txt")
	require.NoError(t, err)
	assert.Equal(t, firstAliasID, promoted.ID)
	assert.Nil(t, promoted.CanonicalFileID)

	// The remaining alias is repointed, forming a star, never a chain.
	other, err := FileByPath(db.DB, "backup/copy2.txt")
	require.NoError(t, err)
	require.NotNil(t, other.CanonicalFileID)
	assert.Equal(t, firstAliasID, *other.CanonicalFileID)
	assert.Equal(t, secondAliasID, other.ID)

	// Lines moved to the promoted alias with identical chunk refs.
	lines, err := LinesForFile(db.DB, promoted.ID)
	require.NoError(t, err)
	require.Len(t, lines, len(before))
	for i, l := range lines {
		assert.Equal(t, wantRefs[i], ChunkRef{ArchiveName: l.ChunkArchive, EntryName: l.ChunkName})
		assert.Equal(t, before[i].LineNumber, l.LineNumber)
		assert.Equal(t, before[i].LineOffsetInChunk, l.LineOffsetInChunk)
	}

	// FTS was re-tokenized from chunk text: the content is still findable
	// and resolves to the promoted alias.
	candidates, err := SearchCandidates(db.DB, `"qui" "uic" "ick"`, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, promoted.ID, candidates[0].FileID)

	assert.Equal(t, countRows(t, db.DB, "lines"), countRows(t, db.DB, "lines_fts"))
}

func TestPromoteAliasWithoutAliasesReturnsZero(t *testing.T) {
	db := newTestDB(t)
	id := addFile(t, db.DB, db.chunks, "solo.txt", strptr("cafe"), []string{"solo.txt", "alone"})

	tx, err := db.Begin()
	require.NoError(t, err)
	promoted, err := PromoteAlias(tx, id, db.chunks.read)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Zero(t, promoted)
}

func TestFindCanonicalByHashIgnoresAliases(t *testing.T) {
	db := newTestDB(t)
	hash := strptr("0011")

	canonicalID := addFile(t, db.DB, db.chunks, "one.txt", hash, []string{"one.txt", "shared bytes"})
	addAlias(t, db.DB, "two.txt", hash, canonicalID)

	tx, err := db.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	// Lookup from a third path finds the canonical, never the alias.
	found, err := FindCanonicalByHash(tx, *hash, "three.txt")
	require.NoError(t, err)
	assert.Equal(t, canonicalID, found.ID)

	// The canonical's own path is excluded so a re-index of it does not
	// alias a file to itself.
	_, err = FindCanonicalByHash(tx, *hash, "one.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAliasPaths(t *testing.T) {
	db := newTestDB(t)
	hash := strptr("f00d")

	canonicalID := addFile(t, db.DB, db.chunks, "a.txt", hash, []string{"a.txt", "same content"})
	addAlias(t, db.DB, "b.txt", hash, canonicalID)
	addAlias(t, db.DB, "c.txt", hash, canonicalID)

	paths, err := AliasPaths(db.DB, *hash, "b.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "c.txt"}, paths)
}
