package storage

import (
	"context"
	"fmt"

	"github.com/ramonehamilton/cubeml/internal/corpus"
	"github.com/ramonehamilton/cubeml/internal/logging"
	"github.com/ramonehamilton/cubeml/internal/storage/repository"
)

// DefaultImportChunk is the number of records read and inserted per step.
const DefaultImportChunk = 1024

// ImportResult reports how many records of each stream were imported.
type ImportResult struct {
	Cubes int
	Decks int
	Picks int
}

// ImportCorpus copies every record of c into the database, appending to
// whatever is already stored, and records an audit row tagged with the run ID
// carried by ctx.
func ImportCorpus(ctx context.Context, db *DB, c *corpus.Corpus, source string, chunk int) (*ImportResult, error) {
	if chunk <= 0 {
		chunk = DefaultImportChunk
	}
	repo := repository.NewCorpusRepository(db.Conn())
	log := logging.Ctx(ctx)

	res := &ImportResult{}
	var err error
	if res.Cubes, err = copyStream(ctx, c.Cubes, chunk, repo.InsertCubes); err != nil {
		return nil, fmt.Errorf("import cubes: %w", err)
	}
	log.Info().Int("records", res.Cubes).Msg("imported cubes")

	if res.Decks, err = copyStream(ctx, c.Decks, chunk, repo.InsertDecks); err != nil {
		return nil, fmt.Errorf("import decks: %w", err)
	}
	log.Info().Int("records", res.Decks).Msg("imported decks")

	if res.Picks, err = copyStream(ctx, c.Picks, chunk, repo.InsertPicks); err != nil {
		return nil, fmt.Errorf("import picks: %w", err)
	}
	log.Info().Int("records", res.Picks).Msg("imported picks")

	err = repo.RecordImport(ctx, &repository.Import{
		RunID:    logging.RunIDFromContext(ctx),
		Source:   source,
		NumCubes: res.Cubes,
		NumDecks: res.Decks,
		NumPicks: res.Picks,
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func copyStream[T any](ctx context.Context, src corpus.Store[T], chunk int,
	insert func(context.Context, []T) error) (int, error) {
	n := src.Len()
	for start := 0; start < n; start += chunk {
		if err := ctx.Err(); err != nil {
			return start, err
		}
		recs, err := src.Fetch(ctx, start, min(chunk, n-start))
		if err != nil {
			return start, err
		}
		if err := insert(ctx, recs); err != nil {
			return start, err
		}
	}
	return n, nil
}
