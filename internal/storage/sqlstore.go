package storage

import (
	"context"
	"fmt"

	"github.com/ramonehamilton/cubeml/internal/corpus"
	"github.com/ramonehamilton/cubeml/internal/storage/repository"
)

type rangeFunc[T any] func(ctx context.Context, offset, limit int) ([]T, error)

type gatherFunc[T any] func(ctx context.Context, positions []int) ([]T, error)

// SQLStore serves one stream from the corpus database. It supports both
// sequential Fetch and random-access Gather.
type SQLStore[T any] struct {
	stream corpus.Stream
	n      int
	rangeQ rangeFunc[T]
	atQ    gatherFunc[T]
}

// Len returns the number of records in the stream.
func (s *SQLStore[T]) Len() int { return s.n }

// Fetch returns count records starting at start, continuing from position 0
// when the request runs past the end.
func (s *SQLStore[T]) Fetch(ctx context.Context, start, count int) ([]T, error) {
	if s.n == 0 {
		return nil, fmt.Errorf("%s: %w", s.stream, corpus.ErrEmptyStream)
	}
	if count < 0 {
		return nil, fmt.Errorf("%s: negative fetch count %d", s.stream, count)
	}

	out := make([]T, 0, count)
	pos := ((start % s.n) + s.n) % s.n
	for len(out) < count {
		limit := min(count-len(out), s.n-pos)
		recs, err := s.rangeQ(ctx, pos, limit)
		if err != nil {
			return nil, err
		}
		if len(recs) != limit {
			return nil, fmt.Errorf("%s: expected %d records at %d, database returned %d",
				s.stream, limit, pos, len(recs))
		}
		out = append(out, recs...)
		pos = 0
	}
	return out, nil
}

// Gather returns the records at the given indices, in order.
func (s *SQLStore[T]) Gather(ctx context.Context, indices []int) ([]T, error) {
	if s.n == 0 {
		return nil, fmt.Errorf("%s: %w", s.stream, corpus.ErrEmptyStream)
	}
	for _, i := range indices {
		if i < 0 || i >= s.n {
			return nil, fmt.Errorf("%s: index %d out of range [0, %d)", s.stream, i, s.n)
		}
	}
	return s.atQ(ctx, indices)
}

func newSQLStore[T any](ctx context.Context, repo repository.CorpusRepository, stream corpus.Stream,
	rangeQ rangeFunc[T], atQ gatherFunc[T]) (*SQLStore[T], error) {
	n, err := repo.Count(ctx, stream)
	if err != nil {
		return nil, err
	}
	return &SQLStore[T]{stream: stream, n: n, rangeQ: rangeQ, atQ: atQ}, nil
}

// OpenCorpus returns a corpus backed by the database. Record counts are read
// once, so imports made afterwards are not visible to the returned corpus.
// The corpus does not own db; closing it leaves the connection open.
func OpenCorpus(ctx context.Context, db *DB) (*corpus.Corpus, error) {
	repo := repository.NewCorpusRepository(db.Conn())

	cubes, err := newSQLStore(ctx, repo, corpus.Cubes, repo.CubeRange, repo.CubesAt)
	if err != nil {
		return nil, err
	}
	decks, err := newSQLStore(ctx, repo, corpus.Decks, repo.DeckRange, repo.DecksAt)
	if err != nil {
		return nil, err
	}
	picks, err := newSQLStore(ctx, repo, corpus.Picks, repo.PickRange, repo.PicksAt)
	if err != nil {
		return nil, err
	}
	return corpus.New(cubes, decks, picks), nil
}
