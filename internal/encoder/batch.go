package encoder

import "gorgonia.org/tensor"

// Batch is one multi-task training batch. Each task's tensors share a
// leading dimension equal to that task's slice size.
type Batch struct {
	CubeX, CubeY *tensor.Dense
	DeckX, DeckY *tensor.Dense
	PackX, PoolX *tensor.Dense
	PickY        *tensor.Dense
	CorrX, CorrY *tensor.Dense
}

// Inputs returns [cube, deck pool, pick pack, pick pool, correlation identity].
func (b *Batch) Inputs() []*tensor.Dense {
	return []*tensor.Dense{b.CubeX, b.DeckX, b.PackX, b.PoolX, b.CorrX}
}

// Targets returns [cube, deck, pick, correlation].
func (b *Batch) Targets() []*tensor.Dense {
	return []*tensor.Dense{b.CubeY, b.DeckY, b.PickY, b.CorrY}
}

// Sizes returns the leading dimension of each task: cubes, decks, picks,
// correlations.
func (b *Batch) Sizes() [4]int {
	return [4]int{
		b.CubeX.Shape()[0],
		b.DeckX.Shape()[0],
		b.PackX.Shape()[0],
		b.CorrX.Shape()[0],
	}
}
