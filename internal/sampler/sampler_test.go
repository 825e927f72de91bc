package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestNewNegativeSampler_Weights(t *testing.T) {
	s := NewNegativeSampler([]int{0, 1, 3, 99})
	assert.Equal(t, 4, s.NumCards())
	assert.InDelta(t, 1.0, s.Weight(0), 1e-12)
	assert.InDelta(t, 0.5, s.Weight(1), 1e-12)
	assert.InDelta(t, 0.25, s.Weight(2), 1e-12)
	assert.InDelta(t, 0.01, s.Weight(3), 1e-12)
}

func TestSampleExcluded_FollowsInverseFrequency(t *testing.T) {
	// card 0 and 4 are "included" and must never be drawn.
	freq := []int{0, 0, 1, 3, 5}
	s := NewNegativeSampler(freq)
	r := rand.New(rand.NewSource(42))
	excludes := []int{1, 2, 3}

	const draws = 200000
	counts := map[int]int{}
	got, err := s.SampleExcluded(r, excludes, draws)
	require.NoError(t, err)
	for _, c := range got {
		counts[c]++
	}

	assert.Zero(t, counts[0])
	assert.Zero(t, counts[4])

	// weights 1, 1/2, 1/4 normalise to 4/7, 2/7, 1/7.
	want := map[int]float64{1: 4.0 / 7, 2: 2.0 / 7, 3: 1.0 / 7}
	for c, p := range want {
		assert.InDelta(t, p, float64(counts[c])/draws, 0.01, "card %d", c)
	}
}

func TestSampleExcluded_EdgeCases(t *testing.T) {
	s := NewNegativeSampler([]int{1, 2, 3})
	r := rand.New(rand.NewSource(1))

	got, err := s.SampleExcluded(r, []int{0, 1}, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.SampleExcluded(r, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = s.SampleExcluded(r, nil, 3)
	assert.ErrorIs(t, err, ErrNoCandidates)

	// more draws than candidates is fine with replacement.
	got, err = s.SampleExcluded(r, []int{2}, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2, 2, 2}, got)
}

func TestSampleUniform(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	assert.Empty(t, SampleUniform(r, []int{1, 2}, 0))
	assert.Empty(t, SampleUniform(r, nil, 2))

	pop := []int{7, 8, 9}
	got := SampleUniform(r, pop, 1000)
	require.Len(t, got, 1000)
	seen := map[int]bool{}
	for _, c := range got {
		assert.Contains(t, pop, c)
		seen[c] = true
	}
	assert.Len(t, seen, 3)
}

func TestNoise_DrawClamped(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	wide := Noise{Mean: 0.4, StdDev: 2, Min: 0.05, Max: 0.8}
	hitMin, hitMax := false, false
	for i := 0; i < 2000; i++ {
		v := wide.Draw(r)
		assert.GreaterOrEqual(t, v, 0.05)
		assert.LessOrEqual(t, v, 0.8)
		hitMin = hitMin || v == 0.05
		hitMax = hitMax || v == 0.8
	}
	assert.True(t, hitMin)
	assert.True(t, hitMax)

	fixed := Noise{Mean: 0.3, Min: 0.05, Max: 0.8}
	assert.Equal(t, 0.3, fixed.Draw(r))
}

func TestSeededDeterminism(t *testing.T) {
	s := NewNegativeSampler([]int{0, 5, 2, 9, 1})
	a := rand.New(rand.NewSource(11))
	b := rand.New(rand.NewSource(11))
	x, err := s.SampleExcluded(a, []int{0, 1, 2, 3, 4}, 50)
	require.NoError(t, err)
	y, err := s.SampleExcluded(b, []int{0, 1, 2, 3, 4}, 50)
	require.NoError(t, err)
	assert.Equal(t, x, y)
	assert.Equal(t, DefaultNoise().Draw(a), DefaultNoise().Draw(b))
}
