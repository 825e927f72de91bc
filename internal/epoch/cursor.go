// Package epoch keeps the per-stream shuffled read order of one pipeline
// instance.
package epoch

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/ramonehamilton/cubeml/internal/corpus"
)

type streamState struct {
	length     int
	perm       []int // nil for sequential streams
	pos        int
	sequential bool
}

// Cursor holds one permutation and read position per stream. A fresh
// permutation is drawn for every stream at each epoch boundary; within an
// epoch, reads that run past the end wrap to the start of the same
// permutation.
//
// A Cursor is owned by a single pipeline and is not safe for concurrent use.
type Cursor struct {
	r          *rand.Rand
	order      []corpus.Stream
	streams    map[corpus.Stream]*streamState
	sequential map[corpus.Stream]bool
	epoch      int
}

// Option configures a Cursor.
type Option func(*Cursor)

// Sequential marks streams whose store shuffles itself and is read in
// order. The cursor only tracks their position and draws no permutation
// for them; Take on such a stream fails, use Advance.
func Sequential(streams ...corpus.Stream) Option {
	return func(c *Cursor) {
		for _, s := range streams {
			c.sequential[s] = true
		}
	}
}

// New creates a cursor over the given stream lengths and draws the first
// epoch's permutations. Every stream must have at least one record.
func New(r *rand.Rand, lengths map[corpus.Stream]int, opts ...Option) (*Cursor, error) {
	c := &Cursor{
		r:          r,
		streams:    make(map[corpus.Stream]*streamState, len(lengths)),
		sequential: make(map[corpus.Stream]bool),
		epoch:      -1,
	}
	for _, opt := range opts {
		opt(c)
	}

	// Fixed stream order keeps random draws reproducible for a given seed.
	for _, s := range corpus.Streams {
		n, ok := lengths[s]
		if !ok {
			continue
		}
		if n <= 0 {
			return nil, fmt.Errorf("%w: %s", corpus.ErrEmptyStream, s)
		}
		c.order = append(c.order, s)
		c.streams[s] = &streamState{length: n, sequential: c.sequential[s]}
	}
	if len(c.order) != len(lengths) {
		return nil, fmt.Errorf("unknown stream in lengths %v", lengths)
	}

	c.PrepNextEpoch()
	return c, nil
}

// PrepNextEpoch draws a new permutation for every random-access stream and
// rewinds all read positions.
func (c *Cursor) PrepNextEpoch() {
	for _, s := range c.order {
		st := c.streams[s]
		if !st.sequential {
			st.perm = c.r.Perm(st.length)
		}
		st.pos = 0
	}
	c.epoch++
}

// Epoch returns the zero-based epoch number.
func (c *Cursor) Epoch() int {
	return c.epoch
}

// Len returns the length of a stream.
func (c *Cursor) Len(s corpus.Stream) int {
	if st, ok := c.streams[s]; ok {
		return st.length
	}
	return 0
}

// Position returns the read position of a stream within its permutation.
func (c *Cursor) Position(s corpus.Stream) int {
	if st, ok := c.streams[s]; ok {
		return st.pos
	}
	return 0
}

// Permutation returns a copy of the stream's current permutation, or nil for
// a sequential stream.
func (c *Cursor) Permutation(s corpus.Stream) []int {
	st, ok := c.streams[s]
	if !ok {
		return nil
	}
	return append([]int(nil), st.perm...)
}

// Take consumes the next count entries of the stream's permutation.
func (c *Cursor) Take(s corpus.Stream, count int) ([]int, error) {
	st, err := c.state(s, count)
	if err != nil {
		return nil, err
	}
	if st.sequential {
		return nil, fmt.Errorf("stream %s is sequential and has no permutation", s)
	}

	out := make([]int, count)
	for i := range out {
		out[i] = st.perm[(st.pos+i)%st.length]
	}
	st.pos = (st.pos + count) % st.length
	return out, nil
}

// Advance moves the read position by count and returns the position it
// started from. Stores that shuffle by themselves read from that position.
func (c *Cursor) Advance(s corpus.Stream, count int) (int, error) {
	st, err := c.state(s, count)
	if err != nil {
		return 0, err
	}
	start := st.pos
	st.pos = (st.pos + count) % st.length
	return start, nil
}

func (c *Cursor) state(s corpus.Stream, count int) (*streamState, error) {
	st, ok := c.streams[s]
	if !ok {
		return nil, fmt.Errorf("stream %s is not tracked", s)
	}
	if count < 0 {
		return nil, fmt.Errorf("negative count %d for %s", count, s)
	}
	return st, nil
}
