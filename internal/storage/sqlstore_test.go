package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/cubeml/internal/corpus"
	"github.com/ramonehamilton/cubeml/internal/logging"
	"github.com/ramonehamilton/cubeml/internal/storage/repository"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(DefaultConfig(filepath.Join(t.TempDir(), "corpus.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleCorpus() *corpus.Corpus {
	cubes := []corpus.CubeRecord{{0, 1}, {2, 3, 4}, {5}, {1, 6}, {7, 8, 9}}
	decks := []corpus.DeckRecord{
		{Mainboard: []int{0, 1}, Sideboard: []int{2}},
		{Mainboard: []int{3}, Sideboard: nil},
		{Mainboard: []int{4, 5, 6}, Sideboard: []int{7, 8}},
	}
	picks := []corpus.PickRecord{
		{Pool: []int{1, 2, 3, 4}, Pack: []int{5, 6, 7, 8}, Pick: 6},
		{Pool: []int{0, 2, 4, 6}, Pack: []int{1, 3, 5, 7}, Pick: 1},
	}
	return corpus.New(
		corpus.NewMemoryStore(cubes),
		corpus.NewMemoryStore(decks),
		corpus.NewMemoryStore(picks),
	)
}

func TestImportAndOpenCorpus(t *testing.T) {
	db := openTestDB(t)
	ctx := logging.ContextWithRunID(context.Background(), "run-1")
	src := sampleCorpus()

	res, err := ImportCorpus(ctx, db, src, "fixtures", 2)
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Cubes: 5, Decks: 3, Picks: 2}, res)

	c, err := OpenCorpus(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Len(corpus.Cubes))
	assert.Equal(t, 3, c.Len(corpus.Decks))
	assert.Equal(t, 2, c.Len(corpus.Picks))

	want, err := src.Cubes.Fetch(ctx, 0, 5)
	require.NoError(t, err)
	got, err := c.Cubes.Fetch(ctx, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	decks, err := c.Decks.Fetch(ctx, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, decks[1].Mainboard)
	assert.Empty(t, decks[1].Sideboard)

	imports, err := repository.NewCorpusRepository(db.Conn()).ListImports(ctx)
	require.NoError(t, err)
	require.Len(t, imports, 1)
	assert.Equal(t, "run-1", imports[0].RunID)
	assert.Equal(t, "fixtures", imports[0].Source)
}

func TestSQLStore_FetchWraps(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, err := ImportCorpus(ctx, db, sampleCorpus(), "fixtures", 0)
	require.NoError(t, err)

	c, err := OpenCorpus(ctx, db)
	require.NoError(t, err)

	got, err := c.Cubes.Fetch(ctx, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, []corpus.CubeRecord{{1, 6}, {7, 8, 9}, {0, 1}, {2, 3, 4}}, got)

	// More than a full pass.
	picks, err := c.Picks.Fetch(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, picks, 5)
	assert.Equal(t, 1, picks[0].Pick)
	assert.Equal(t, 6, picks[1].Pick)
	assert.Equal(t, 1, picks[4].Pick)
}

func TestSQLStore_Gather(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, err := ImportCorpus(ctx, db, sampleCorpus(), "fixtures", 0)
	require.NoError(t, err)

	c, err := OpenCorpus(ctx, db)
	require.NoError(t, err)

	g, ok := c.Cubes.(corpus.Gatherer[corpus.CubeRecord])
	require.True(t, ok, "sqlite store must support random access")

	got, err := g.Gather(ctx, []int{4, 0, 4, 2})
	require.NoError(t, err)
	assert.Equal(t, []corpus.CubeRecord{{7, 8, 9}, {0, 1}, {7, 8, 9}, {5}}, got)

	_, err = g.Gather(ctx, []int{5})
	assert.Error(t, err)
}

func TestSQLStore_EmptyStream(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	c, err := OpenCorpus(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len(corpus.Decks))

	_, err = c.Decks.Fetch(ctx, 0, 1)
	assert.True(t, errors.Is(err, corpus.ErrEmptyStream))
}

func TestImportAppends(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := ImportCorpus(ctx, db, sampleCorpus(), "a", 0)
	require.NoError(t, err)
	_, err = ImportCorpus(ctx, db, sampleCorpus(), "b", 3)
	require.NoError(t, err)

	c, err := OpenCorpus(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 10, c.Len(corpus.Cubes))

	got, err := c.Cubes.Fetch(ctx, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, corpus.CubeRecord{0, 1}, got[0])
}

func TestClearCorpus(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := ImportCorpus(ctx, db, sampleCorpus(), "a", 0)
	require.NoError(t, err)
	require.NoError(t, db.ClearCorpus(ctx))

	c, err := OpenCorpus(ctx, db)
	require.NoError(t, err)
	for _, s := range []corpus.Stream{corpus.Cubes, corpus.Decks, corpus.Picks} {
		assert.Equal(t, 0, c.Len(s), s.String())
	}

	imports, err := repository.NewCorpusRepository(db.Conn()).ListImports(ctx)
	require.NoError(t, err)
	assert.Len(t, imports, 1, "import history survives a clear")
}

func TestWithTransaction_RollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO cubes (position, cards) VALUES (0, '[1]')"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.Conn().QueryRowContext(ctx, "SELECT COUNT(*) FROM cubes").Scan(&n))
	assert.Equal(t, 0, n)
}
