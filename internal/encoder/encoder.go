package encoder

import (
	"errors"
	"fmt"

	"golang.org/x/exp/rand"
	"gorgonia.org/tensor"

	"github.com/ramonehamilton/cubeml/internal/correlation"
	"github.com/ramonehamilton/cubeml/internal/corpus"
	"github.com/ramonehamilton/cubeml/internal/sampler"
	"github.com/ramonehamilton/cubeml/internal/vocab"
)

// ErrPickNotInPack is returned for a pick record whose chosen card is not in
// its pack.
var ErrPickNotInPack = errors.New("picked card is not in pack")

// Encoder builds the four task pairs of a training batch.
type Encoder struct {
	numCards int
	neg      *sampler.NegativeSampler
	noise    sampler.Noise
}

// New creates an encoder over a vocabulary of numCards columns.
func New(numCards int, neg *sampler.NegativeSampler, noise sampler.Noise) (*Encoder, error) {
	if numCards <= 0 {
		return nil, fmt.Errorf("num cards must be positive, got %d", numCards)
	}
	if neg == nil || neg.NumCards() != numCards {
		return nil, fmt.Errorf("negative sampler does not cover %d cards", numCards)
	}
	if noise.Min > noise.Max {
		return nil, fmt.Errorf("noise min %v exceeds max %v", noise.Min, noise.Max)
	}
	return &Encoder{numCards: numCards, neg: neg, noise: noise}, nil
}

// NumCards returns the vector width.
func (e *Encoder) NumCards() int {
	return e.numCards
}

// CubeExample is one corrupted cube with the choices that produced it.
type CubeExample struct {
	Input  []float32
	Target []float32

	NoiseFraction float64
	FlipAmount    int
	FlipInclude   []int // cards removed from the input
	FlipExclude   []int // cards added to the input
	TargetCut     []int // cards removed from the target, drawn from FlipInclude
}

// CorruptCube builds the denoising pair for one cube. The input drops
// FlipAmount sampled members and gains FlipAmount frequency-weighted
// non-members; the target drops only FlipAmount/4 of the removed members.
// A cube holding every card has no non-members to add and fails with
// sampler.ErrNoCandidates once FlipAmount is positive.
func (e *Encoder) CorruptCube(r *rand.Rand, cube corpus.CubeRecord) (CubeExample, error) {
	orig := make([]float32, e.numCards)
	if err := setOnes(orig, cube, e.numCards); err != nil {
		return CubeExample{}, err
	}

	includes := make([]int, 0, len(cube))
	excludes := make([]int, 0, e.numCards)
	for c, v := range orig {
		if v == 1 {
			includes = append(includes, c)
		} else {
			excludes = append(excludes, c)
		}
	}

	ex := CubeExample{NoiseFraction: e.noise.Draw(r)}
	ex.FlipAmount = int(float64(len(includes)) * ex.NoiseFraction)
	ex.FlipInclude = sampler.SampleUniform(r, includes, ex.FlipAmount)
	flipExclude, err := e.neg.SampleExcluded(r, excludes, ex.FlipAmount)
	if err != nil {
		return CubeExample{}, fmt.Errorf("cube holds all %d cards: %w", e.numCards, err)
	}
	ex.FlipExclude = flipExclude
	ex.TargetCut = sampler.SampleUniform(r, ex.FlipInclude, ex.FlipAmount/4)

	cut := make([]float32, e.numCards)
	add := make([]float32, e.numCards)
	targetCut := make([]float32, e.numCards)
	for _, c := range ex.FlipInclude {
		cut[c] = -1
	}
	for _, c := range ex.FlipExclude {
		add[c] = 1
	}
	for _, c := range ex.TargetCut {
		targetCut[c] = -1
	}

	ex.Input = make([]float32, e.numCards)
	ex.Target = make([]float32, e.numCards)
	for c := range orig {
		ex.Input[c] = orig[c] + cut[c] + add[c]
		ex.Target[c] = orig[c] + targetCut[c]
	}
	return ex, nil
}

// Cubes encodes a batch of cubes as (corrupted input, lightly corrupted
// target).
func (e *Encoder) Cubes(r *rand.Rand, cubes []corpus.CubeRecord) (x, y *tensor.Dense, err error) {
	x, xData := newMatrix(len(cubes), e.numCards)
	y, yData := newMatrix(len(cubes), e.numCards)

	for i, cube := range cubes {
		ex, err := e.CorruptCube(r, cube)
		if err != nil {
			return nil, nil, fmt.Errorf("cube %d: %w", i, err)
		}
		copy(xData[i*e.numCards:], ex.Input)
		copy(yData[i*e.numCards:], ex.Target)
	}
	return x, y, nil
}

// Decks encodes the offered pool (mainboard ∪ sideboard) as input and the
// chosen mainboard as target.
func (e *Encoder) Decks(decks []corpus.DeckRecord) (x, y *tensor.Dense, err error) {
	x, xData := newMatrix(len(decks), e.numCards)
	y, yData := newMatrix(len(decks), e.numCards)

	for i, d := range decks {
		xRow := xData[i*e.numCards : (i+1)*e.numCards]
		yRow := yData[i*e.numCards : (i+1)*e.numCards]
		if err := setOnes(xRow, d.Mainboard, e.numCards); err != nil {
			return nil, nil, fmt.Errorf("deck %d mainboard: %w", i, err)
		}
		if err := setOnes(xRow, d.Sideboard, e.numCards); err != nil {
			return nil, nil, fmt.Errorf("deck %d sideboard: %w", i, err)
		}
		if err := setOnes(yRow, d.Mainboard, e.numCards); err != nil {
			return nil, nil, fmt.Errorf("deck %d mainboard: %w", i, err)
		}
	}
	return x, y, nil
}

// Picks encodes the pack and pool of each pick as inputs and the chosen card
// as a one-hot target.
func (e *Encoder) Picks(picks []corpus.PickRecord) (pack, pool, y *tensor.Dense, err error) {
	pack, packData := newMatrix(len(picks), e.numCards)
	pool, poolData := newMatrix(len(picks), e.numCards)
	y, yData := newMatrix(len(picks), e.numCards)

	for i, p := range picks {
		if err := vocab.CheckRange(p.Pick, e.numCards); err != nil {
			return nil, nil, nil, fmt.Errorf("pick %d: %w", i, err)
		}
		if !p.PickInPack() {
			return nil, nil, nil, fmt.Errorf("pick %d: %w: card %d", i, ErrPickNotInPack, p.Pick)
		}

		lo, hi := i*e.numCards, (i+1)*e.numCards
		if err := setOnes(packData[lo:hi], p.Pack, e.numCards); err != nil {
			return nil, nil, nil, fmt.Errorf("pick %d pack: %w", i, err)
		}
		if err := setOnes(poolData[lo:hi], p.Pool, e.numCards); err != nil {
			return nil, nil, nil, fmt.Errorf("pick %d pool: %w", i, err)
		}
		yData[lo+p.Pick] = 1
	}
	return pack, pool, y, nil
}

// Correlations encodes identity rows e_c as input and row c of the
// normalised correlation matrix as target.
func (e *Encoder) Correlations(m *correlation.Matrix, cards []int) (x, y *tensor.Dense, err error) {
	if m.NumCards() != e.numCards {
		return nil, nil, fmt.Errorf("%w: matrix has %d cards, encoder %d", correlation.ErrShapeMismatch, m.NumCards(), e.numCards)
	}

	x, xData := newMatrix(len(cards), e.numCards)
	y, yData := newMatrix(len(cards), e.numCards)

	for i, c := range cards {
		if err := vocab.CheckRange(c, e.numCards); err != nil {
			return nil, nil, fmt.Errorf("correlation row %d: %w", i, err)
		}
		xData[i*e.numCards+c] = 1
		for j, v := range m.RowView(c) {
			yData[i*e.numCards+j] = float32(v)
		}
	}
	return x, y, nil
}
