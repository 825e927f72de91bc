package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/ramonehamilton/cubeml/internal/corpus"
)

// ErrSplitNeedsRandomAccess is returned when a validation split is requested
// for a corpus whose stores only read sequentially.
var ErrSplitNeedsRandomAccess = errors.New("validation split needs a random-access corpus")

// window exposes records [lo, lo+n) of a random-access store as a store of
// its own.
type window[T any] struct {
	base   corpus.Store[T]
	gather corpus.Gatherer[T]
	lo, n  int
}

func (w *window[T]) Len() int { return w.n }

func (w *window[T]) Fetch(ctx context.Context, start, count int) ([]T, error) {
	if w.n == 0 {
		return nil, corpus.ErrEmptyStream
	}
	out := make([]T, 0, count)
	pos := ((start % w.n) + w.n) % w.n
	for len(out) < count {
		k := min(count-len(out), w.n-pos)
		recs, err := w.base.Fetch(ctx, w.lo+pos, k)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
		pos = 0
	}
	return out, nil
}

func (w *window[T]) Gather(ctx context.Context, indices []int) ([]T, error) {
	shifted := make([]int, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= w.n {
			return nil, fmt.Errorf("index %d out of range [0, %d)", idx, w.n)
		}
		shifted[i] = w.lo + idx
	}
	return w.gather.Gather(ctx, shifted)
}

func splitStore[T any](s corpus.Stream, st corpus.Store[T], fraction float64) (train, val *window[T], err error) {
	g, ok := st.(corpus.Gatherer[T])
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrSplitNeedsRandomAccess, s)
	}

	n := st.Len()
	held := int(float64(n) * fraction)
	if held == 0 {
		held = 1
	}
	if n-held < 1 {
		return nil, nil, fmt.Errorf("%w: %s has %d records, too few to split", corpus.ErrEmptyStream, s, n)
	}

	train = &window[T]{base: st, gather: g, lo: 0, n: n - held}
	val = &window[T]{base: st, gather: g, lo: n - held, n: held}
	return train, val, nil
}

// SplitCorpus holds out the last fraction of every stream for validation.
// At least one record of each stream goes to each side. Both corpora share
// the stores of c; closing either is a no-op and c must be closed by the
// caller.
func SplitCorpus(c *corpus.Corpus, fraction float64) (train, validation *corpus.Corpus, err error) {
	if fraction <= 0 || fraction >= 1 {
		return nil, nil, fmt.Errorf("validation fraction %v outside (0, 1)", fraction)
	}

	trainCubes, valCubes, err := splitStore(corpus.Cubes, c.Cubes, fraction)
	if err != nil {
		return nil, nil, err
	}
	trainDecks, valDecks, err := splitStore(corpus.Decks, c.Decks, fraction)
	if err != nil {
		return nil, nil, err
	}
	trainPicks, valPicks, err := splitStore(corpus.Picks, c.Picks, fraction)
	if err != nil {
		return nil, nil, err
	}

	return corpus.New(trainCubes, trainDecks, trainPicks),
		corpus.New(valCubes, valDecks, valPicks), nil
}
