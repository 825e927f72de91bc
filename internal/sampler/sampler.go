// Package sampler draws the synthetic positives and negatives used to
// corrupt cube snapshots.
package sampler

import (
	"errors"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrNoCandidates is returned when draws are requested from an empty
// candidate set.
var ErrNoCandidates = errors.New("no candidates to sample from")

// NegativeSampler weights every card by the inverse of its corpus frequency,
// so absent rare cards are injected more often than absent common ones.
type NegativeSampler struct {
	weights []float64
}

// NewNegativeSampler precomputes 1/(freq+1) for every card.
func NewNegativeSampler(freq []int) *NegativeSampler {
	w := make([]float64, len(freq))
	for c, f := range freq {
		w[c] = 1 / (float64(f) + 1)
	}
	return &NegativeSampler{weights: w}
}

// Weight returns the unnormalised sampling weight of card c.
func (s *NegativeSampler) Weight(c int) float64 {
	return s.weights[c]
}

// NumCards returns the number of weighted cards.
func (s *NegativeSampler) NumCards() int {
	return len(s.weights)
}

// SampleExcluded draws k cards from excludes, independently and with
// replacement, with probability w[c] / Σ_{c'∈excludes} w[c']. Every weight
// is positive, so the normaliser is positive whenever excludes is non-empty.
// Asking for k > 0 draws from an empty excludes returns ErrNoCandidates.
func (s *NegativeSampler) SampleExcluded(r *rand.Rand, excludes []int, k int) ([]int, error) {
	if k <= 0 {
		return []int{}, nil
	}
	if len(excludes) == 0 {
		return nil, ErrNoCandidates
	}

	w := make([]float64, len(excludes))
	for i, c := range excludes {
		w[i] = s.weights[c]
	}
	cat := distuv.NewCategorical(w, r)

	out := make([]int, k)
	for i := range out {
		out[i] = excludes[int(cat.Rand())]
	}
	return out, nil
}

// SampleUniform draws k elements of population uniformly with replacement.
func SampleUniform(r *rand.Rand, population []int, k int) []int {
	if k <= 0 || len(population) == 0 {
		return []int{}
	}

	out := make([]int, k)
	for i := range out {
		out[i] = population[r.Intn(len(population))]
	}
	return out
}

// Noise bounds the fraction of a cube that gets corrupted.
type Noise struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// DefaultNoise matches the reference generator: N(0.2, 0.1) clamped to
// [0.05, 0.8].
func DefaultNoise() Noise {
	return Noise{Mean: 0.2, StdDev: 0.1, Min: 0.05, Max: 0.8}
}

// Draw samples the noise fraction and clamps it.
func (n Noise) Draw(r *rand.Rand) float64 {
	v := n.Mean
	if n.StdDev > 0 {
		v = distuv.Normal{Mu: n.Mean, Sigma: n.StdDev, Src: r}.Rand()
	}
	if v < n.Min {
		return n.Min
	}
	if v > n.Max {
		return n.Max
	}
	return v
}
