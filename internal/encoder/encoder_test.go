package encoder

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/ramonehamilton/cubeml/internal/correlation"
	"github.com/ramonehamilton/cubeml/internal/corpus"
	"github.com/ramonehamilton/cubeml/internal/sampler"
	"github.com/ramonehamilton/cubeml/internal/vocab"
)

func newTestEncoder(t *testing.T, numCards int, noise sampler.Noise) *Encoder {
	t.Helper()
	freq := make([]int, numCards)
	for i := range freq {
		freq[i] = i % 7
	}
	e, err := New(numCards, sampler.NewNegativeSampler(freq), noise)
	require.NoError(t, err)
	return e
}

func TestMultiHot_RoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	const numCards = 40

	lists := make([][]int, 25)
	for i := range lists {
		perm := r.Perm(numCards)
		lists[i] = perm[:r.Intn(numCards)]
	}

	x, err := MultiHot(lists, numCards)
	require.NoError(t, err)
	assert.Equal(t, []int{25, numCards}, []int(x.Shape()))

	for i, list := range lists {
		want := append([]int(nil), list...)
		sort.Ints(want)
		got := Decode(x, i)
		if len(want) == 0 {
			assert.Empty(t, got)
			continue
		}
		assert.Equal(t, want, got)
	}
}

func TestMultiHot_OutOfRange(t *testing.T) {
	_, err := MultiHot([][]int{{0, 1}, {4}}, 4)
	assert.ErrorIs(t, err, vocab.ErrIndexOutOfRange)

	_, err = OneHot([]int{-1}, 4)
	assert.ErrorIs(t, err, vocab.ErrIndexOutOfRange)
}

func TestCorruptCube_Invariants(t *testing.T) {
	const numCards = 300
	e := newTestEncoder(t, numCards, sampler.Noise{Mean: 0.3, StdDev: 0.4, Min: 0.05, Max: 0.8})
	r := rand.New(rand.NewSource(21))

	for trial := 0; trial < 200; trial++ {
		size := 1 + r.Intn(120)
		cube := corpus.CubeRecord(r.Perm(numCards)[:size])
		member := map[int]bool{}
		for _, c := range cube {
			member[c] = true
		}

		ex, err := e.CorruptCube(r, cube)
		require.NoError(t, err)

		lo := int(math.Floor(0.05 * float64(size)))
		hi := int(math.Floor(0.8 * float64(size)))
		assert.GreaterOrEqual(t, ex.FlipAmount, lo)
		assert.LessOrEqual(t, ex.FlipAmount, hi)
		assert.Len(t, ex.FlipInclude, ex.FlipAmount)
		assert.Len(t, ex.FlipExclude, ex.FlipAmount)
		assert.Len(t, ex.TargetCut, ex.FlipAmount/4)

		for _, c := range ex.FlipInclude {
			assert.True(t, member[c], "removed card %d must come from the cube", c)
		}
		for _, c := range ex.FlipExclude {
			assert.False(t, member[c], "added card %d must come from outside the cube", c)
		}
		for _, c := range ex.TargetCut {
			assert.Contains(t, ex.FlipInclude, c)
		}

		inputZeroed, targetZeroed := 0, 0
		for c := 0; c < numCards; c++ {
			assert.Contains(t, []float32{0, 1}, ex.Input[c])
			assert.Contains(t, []float32{0, 1}, ex.Target[c])
			if member[c] && ex.Input[c] == 0 {
				inputZeroed++
			}
			if member[c] && ex.Target[c] == 0 {
				targetZeroed++
			}
			if !member[c] {
				assert.Zero(t, ex.Target[c], "target never gains cards")
			}
		}
		assert.LessOrEqual(t, targetZeroed, inputZeroed)
	}
}

func TestCorruptCube_SmallCubeHasNoFlips(t *testing.T) {
	e := newTestEncoder(t, 10, sampler.Noise{Mean: 0.2, Min: 0.05, Max: 0.8})
	r := rand.New(rand.NewSource(2))

	ex, err := e.CorruptCube(r, corpus.CubeRecord{3, 4})
	require.NoError(t, err)
	assert.Zero(t, ex.FlipAmount)
	assert.Empty(t, ex.FlipInclude)
	assert.Empty(t, ex.FlipExclude)
	assert.Equal(t, ex.Input, ex.Target)

	_, err = e.CorruptCube(r, corpus.CubeRecord{10})
	assert.ErrorIs(t, err, vocab.ErrIndexOutOfRange)
}

func TestCorruptCube_FullVocabulary(t *testing.T) {
	const numCards = 10
	e := newTestEncoder(t, numCards, sampler.Noise{Mean: 0.5, Min: 0.05, Max: 0.8})
	r := rand.New(rand.NewSource(5))

	_, err := e.CorruptCube(r, corpus.CubeRecord(r.Perm(numCards)))
	assert.ErrorIs(t, err, sampler.ErrNoCandidates)

	// Too small to flip anything, so nothing has to be added.
	small := newTestEncoder(t, 2, sampler.Noise{Mean: 0.2, Min: 0.05, Max: 0.8})
	ex, err := small.CorruptCube(r, corpus.CubeRecord{0, 1})
	require.NoError(t, err)
	assert.Zero(t, ex.FlipAmount)
}

func TestCubes_Deterministic(t *testing.T) {
	e := newTestEncoder(t, 50, sampler.DefaultNoise())
	cubes := []corpus.CubeRecord{{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, {20, 21, 22, 23, 24, 25, 26, 27, 28, 29}}

	x1, y1, err := e.Cubes(rand.New(rand.NewSource(4)), cubes)
	require.NoError(t, err)
	x2, y2, err := e.Cubes(rand.New(rand.NewSource(4)), cubes)
	require.NoError(t, err)

	assert.Equal(t, x1.Data(), x2.Data())
	assert.Equal(t, y1.Data(), y2.Data())
	assert.Equal(t, []int{2, 50}, []int(x1.Shape()))
}

func TestDecks_PoolContainsMainboard(t *testing.T) {
	e := newTestEncoder(t, 12, sampler.DefaultNoise())
	decks := []corpus.DeckRecord{
		{Mainboard: []int{0, 1, 2}, Sideboard: []int{5, 6}},
		{Mainboard: []int{11}, Sideboard: nil},
		{Mainboard: nil, Sideboard: []int{3}},
	}

	x, y, err := e.Decks(decks)
	require.NoError(t, err)

	for i, d := range decks {
		pool := Row(x, i)
		target := Row(y, i)
		for c := range target {
			if target[c] == 1 {
				assert.Equal(t, float32(1), pool[c], "deck %d card %d", i, c)
			}
		}
		assert.ElementsMatch(t, d.Mainboard, Decode(y, i))
		assert.ElementsMatch(t, d.Pool(), Decode(x, i))
	}

	_, _, err = e.Decks([]corpus.DeckRecord{{Sideboard: []int{12}}})
	assert.ErrorIs(t, err, vocab.ErrIndexOutOfRange)
}

func TestPicks_PickInsidePack(t *testing.T) {
	e := newTestEncoder(t, 12, sampler.DefaultNoise())

	pack, pool, y, err := e.Picks([]corpus.PickRecord{{Pool: []int{0, 1}, Pack: []int{2, 5, 9}, Pick: 5}})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5, 9}, Decode(pack, 0))
	assert.Equal(t, []int{0, 1}, Decode(pool, 0))
	assert.Equal(t, []int{5}, Decode(y, 0))
	assert.Equal(t, float32(1), Row(pack, 0)[5])

	_, _, _, err = e.Picks([]corpus.PickRecord{{Pack: []int{2, 5, 9}, Pick: 7}})
	assert.ErrorIs(t, err, ErrPickNotInPack)

	_, _, _, err = e.Picks([]corpus.PickRecord{{Pack: []int{2}, Pick: 40}})
	assert.ErrorIs(t, err, vocab.ErrIndexOutOfRange)
}

func TestCorrelations(t *testing.T) {
	e := newTestEncoder(t, 2, sampler.DefaultNoise())
	m, err := correlation.FromCounts([]float64{2, 2, 0, 0}, 2, 1)
	require.NoError(t, err)

	x, y, err := e.Correlations(m, []int{1, 0})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, Row(x, 0))
	assert.Equal(t, []float32{1, 0}, Row(x, 1))
	assert.InDeltaSlice(t, []float64{0, 0}, toFloat64(Row(y, 0)), 1e-6)
	assert.InDeltaSlice(t, []float64{0.4, 0.4}, toFloat64(Row(y, 1)), 1e-6)

	wrong, err := correlation.FromCounts([]float64{1}, 1, 1)
	require.NoError(t, err)
	_, _, err = e.Correlations(wrong, []int{0})
	assert.ErrorIs(t, err, correlation.ErrShapeMismatch)
}

func TestBatchOrdering(t *testing.T) {
	mk := func(rows int) []int { return make([]int, rows) }
	b := &Batch{}
	var err error
	b.CubeX, err = OneHot(mk(1), 3)
	require.NoError(t, err)
	b.CubeY, b.DeckX, b.DeckY = b.CubeX, b.CubeX, b.CubeX
	b.PackX, err = OneHot(mk(2), 3)
	require.NoError(t, err)
	b.PoolX, b.PickY = b.PackX, b.PackX
	b.CorrX, err = OneHot(mk(3), 3)
	require.NoError(t, err)
	b.CorrY = b.CorrX

	assert.Len(t, b.Inputs(), 5)
	assert.Len(t, b.Targets(), 4)
	assert.Same(t, b.PackX, b.Inputs()[2])
	assert.Same(t, b.CorrY, b.Targets()[3])
	assert.Equal(t, [4]int{1, 1, 2, 3}, b.Sizes())
}

func TestNew_Validation(t *testing.T) {
	_, err := New(0, sampler.NewNegativeSampler(nil), sampler.DefaultNoise())
	assert.Error(t, err)
	_, err = New(3, sampler.NewNegativeSampler([]int{1}), sampler.DefaultNoise())
	assert.Error(t, err)
	_, err = New(1, sampler.NewNegativeSampler([]int{1}), sampler.Noise{Min: 0.9, Max: 0.1})
	assert.Error(t, err)
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
