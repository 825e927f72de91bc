// Package scoring turns model outputs over the card vocabulary into draft
// pick distributions, cube recommendations and evaluation scores.
package scoring

import (
	"errors"
	"fmt"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/ramonehamilton/cubeml/internal/corpus"
	"github.com/ramonehamilton/cubeml/internal/encoder"
	"github.com/ramonehamilton/cubeml/internal/vocab"
)

// MaskBias is added to the logit of every card that is not in the pack.
const MaskBias = -1e9

// ErrEmptyPack is returned when a pack row offers no cards.
var ErrEmptyPack = errors.New("pack offers no cards")

// PickDistribution applies softmax to logits row by row after masking every
// position where pack is 0, so the probability of picking a card outside the
// pack is zero. Both tensors are float32 (rows, num_cards).
func PickDistribution(logits, pack *tensor.Dense) (*tensor.Dense, error) {
	if !logits.Shape().Eq(pack.Shape()) || logits.Dims() != 2 {
		return nil, fmt.Errorf("logits %v and pack %v must be matching matrices", logits.Shape(), pack.Shape())
	}
	packData, ok := pack.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("pack must be float32, got %v", pack.Dtype())
	}
	if logits.Dtype() != tensor.Float32 {
		return nil, fmt.Errorf("logits must be float32, got %v", logits.Dtype())
	}

	rows, cols := pack.Shape()[0], pack.Shape()[1]
	bias := make([]float32, len(packData))
	for r := 0; r < rows; r++ {
		offered := 0
		for c := 0; c < cols; c++ {
			if packData[r*cols+c] == 0 {
				bias[r*cols+c] = MaskBias
			} else {
				offered++
			}
		}
		if offered == 0 {
			return nil, fmt.Errorf("row %d: %w", r, ErrEmptyPack)
		}
	}

	g := gorgonia.NewGraph()
	l := gorgonia.NodeFromAny(g, logits, gorgonia.WithName("logits"))
	m := gorgonia.NodeFromAny(g, tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(bias)), gorgonia.WithName("pack_mask"))

	masked, err := gorgonia.Add(l, m)
	if err != nil {
		return nil, fmt.Errorf("mask logits: %w", err)
	}
	probs, err := gorgonia.SoftMax(masked)
	if err != nil {
		return nil, fmt.Errorf("softmax: %w", err)
	}

	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		return nil, fmt.Errorf("run pick graph: %w", err)
	}

	out, ok := probs.Value().(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("unexpected softmax value %T", probs.Value())
	}
	return out.Clone().(*tensor.Dense), nil
}

// ValidatePick checks that every card of p is in the vocabulary and that the
// pick was offered in the pack.
func ValidatePick(p corpus.PickRecord, numCards int) error {
	if err := vocab.CheckRange(p.Pick, numCards); err != nil {
		return fmt.Errorf("pick: %w", err)
	}
	for _, c := range p.Pack {
		if err := vocab.CheckRange(c, numCards); err != nil {
			return fmt.Errorf("pack: %w", err)
		}
	}
	for _, c := range p.Pool {
		if err := vocab.CheckRange(c, numCards); err != nil {
			return fmt.Errorf("pool: %w", err)
		}
	}
	if !p.PickInPack() {
		return fmt.Errorf("%w: card %d", encoder.ErrPickNotInPack, p.Pick)
	}
	return nil
}
