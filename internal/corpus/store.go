package corpus

import (
	"context"
	"errors"

	"golang.org/x/exp/rand"
)

var (
	// ErrEmptyStream is returned when records are requested from a stream
	// with no records.
	ErrEmptyStream = errors.New("stream has no records")

	// ErrMalformedShard is returned when a shard or record file cannot be
	// decoded. Corpora are static inputs, so this is never retried.
	ErrMalformedShard = errors.New("malformed shard")
)

// Store serves the records of one stream.
//
// Fetch returns count records starting at logical position start. When the
// request runs past the end of the stream it continues from position 0, so
// the result is always exactly count records long.
type Store[T any] interface {
	Len() int
	Fetch(ctx context.Context, start, count int) ([]T, error)
}

// Gatherer is implemented by stores with random access. The pipeline uses it
// to read records in the order of the epoch permutation.
type Gatherer[T any] interface {
	Gather(ctx context.Context, indices []int) ([]T, error)
}

// Reshuffler is implemented by stores that shuffle at their own granularity
// (whole shards) instead of per record.
type Reshuffler interface {
	Reshuffle(r *rand.Rand)
}

// Corpus bundles the three record streams.
type Corpus struct {
	Cubes Store[CubeRecord]
	Decks Store[DeckRecord]
	Picks Store[PickRecord]

	closer func() error
}

// New bundles existing stores into a corpus.
func New(cubes Store[CubeRecord], decks Store[DeckRecord], picks Store[PickRecord]) *Corpus {
	return &Corpus{Cubes: cubes, Decks: decks, Picks: picks}
}

// OnClose registers a function run by Close.
func (c *Corpus) OnClose(fn func() error) {
	c.closer = fn
}

// Close releases resources held by the stores.
func (c *Corpus) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// Len returns the record count of a stream. Correlations are not held by the
// corpus and report 0.
func (c *Corpus) Len(s Stream) int {
	switch s {
	case Cubes:
		return c.Cubes.Len()
	case Decks:
		return c.Decks.Len()
	case Picks:
		return c.Picks.Len()
	default:
		return 0
	}
}

// wrapIndex maps a possibly out-of-range position onto [0, n).
func wrapIndex(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
