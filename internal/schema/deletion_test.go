package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runDelete(t *testing.T, db *testDB, paths []string) DeletePlan {
	t.Helper()
	tx, err := db.Begin()
	require.NoError(t, err)
	plan, err := PrepareDelete(tx, paths, db.chunks.read)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return plan
}

func TestPrepareDeleteExpandsCompositeDescendants(t *testing.T) {
	db := newTestDB(t)

	addFile(t, db.DB, db.chunks, "docs/taxes.zip", nil, []string{"docs/taxes.zip"})
	addFile(t, db.DB, db.chunks, "docs/taxes.zip::w2.pdf", nil, []string{"docs/taxes.zip::w2.pdf", "wages and taxes"})
	addFile(t, db.DB, db.chunks, "docs/other.txt", nil, []string{"docs/other.txt", "untouched"})

	plan := runDelete(t, db, []string{"docs/taxes.zip"})

	assert.ElementsMatch(t, []string{"docs/taxes.zip", "docs/taxes.zip::w2.pdf"}, plan.FullPaths)
	assert.Len(t, plan.ChunkRefs, 2)

	assert.Equal(t, 1, countRows(t, db.DB, "files"))
	assert.Equal(t, countRows(t, db.DB, "lines"), countRows(t, db.DB, "lines_fts"),
		"contentless FTS rows must be deleted explicitly alongside lines")

	survivor, err := FileByPath(db.DB, "docs/other.txt")
	require.NoError(t, err)
	assert.Equal(t, "docs/other.txt", survivor.Path)
}

func TestPrepareDeleteDoesNotMatchLikeMetacharacters(t *testing.T) {
	db := newTestDB(t)

	addFile(t, db.DB, db.chunks, "a_b.zip", nil, []string{"a_b.zip"})
	addFile(t, db.DB, db.chunks, "axb.zip", nil, []string{"axb.zip"})
	addFile(t, db.DB, db.chunks, "a_b.zip::member.txt", nil, []string{"a_b.zip::member.txt"})

	plan := runDelete(t, db, []string{"a_b.zip"})

	assert.ElementsMatch(t, []string{"a_b.zip", "a_b.zip::member.txt"}, plan.FullPaths)

	survivor, err := FileByPath(db.DB, "axb.zip")
	require.NoError(t, err)
	assert.NotNil(t, survivor)
}

func TestPrepareDeleteAliasDropsOnlyTheRow(t *testing.T) {
	db := newTestDB(t)
	hash := strptr("aabbcc")

	canonicalID := addFile(t, db.DB, db.chunks, "primary.txt", hash, []string{"primary.txt", "quick brown fox"})
	addAlias(t, db.DB, "copy.txt", hash, canonicalID)

	plan := runDelete(t, db, []string{"copy.txt"})

	assert.Empty(t, plan.ChunkRefs, "aliases own no chunks")
	_, err := FileByPath(db.DB, "copy.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	lines, err := LinesForFile(db.DB, canonicalID)
	require.NoError(t, err)
	assert.Len(t, lines, 2, "canonical's lines are untouched")
}

func TestPrepareDeleteMissingPathsIsNoOp(t *testing.T) {
	db := newTestDB(t)
	addFile(t, db.DB, db.chunks, "keep.txt", nil, []string{"keep.txt"})

	plan := runDelete(t, db, []string{"never-existed.txt"})
	assert.Empty(t, plan.ChunkRefs)
	assert.Equal(t, 1, countRows(t, db.DB, "files"))
}
