// Package encoder turns raw cube, deck, pick and correlation records into
// the dense (input, target) tensor pairs consumed by the training loop.
package encoder

import (
	"fmt"

	"gorgonia.org/tensor"

	"github.com/ramonehamilton/cubeml/internal/vocab"
)

// newMatrix allocates a zeroed rows×numCards float32 tensor and returns its
// backing slice.
func newMatrix(rows, numCards int) (*tensor.Dense, []float32) {
	backing := make([]float32, rows*numCards)
	t := tensor.New(tensor.WithShape(rows, numCards), tensor.WithBacking(backing))
	return t, backing
}

// MultiHot encodes each index list as a row with 1 at every listed index.
func MultiHot(lists [][]int, numCards int) (*tensor.Dense, error) {
	t, data := newMatrix(len(lists), numCards)
	for i, list := range lists {
		row := data[i*numCards : (i+1)*numCards]
		if err := setOnes(row, list, numCards); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return t, nil
}

// OneHot encodes one index per row.
func OneHot(indices []int, numCards int) (*tensor.Dense, error) {
	t, data := newMatrix(len(indices), numCards)
	for i, c := range indices {
		if err := vocab.CheckRange(c, numCards); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		data[i*numCards+c] = 1
	}
	return t, nil
}

func setOnes(row []float32, list []int, numCards int) error {
	for _, c := range list {
		if err := vocab.CheckRange(c, numCards); err != nil {
			return err
		}
		row[c] = 1
	}
	return nil
}

// Row returns a view of row i of a rows×numCards tensor.
func Row(t *tensor.Dense, i int) []float32 {
	cols := t.Shape()[1]
	data := t.Data().([]float32)
	return data[i*cols : (i+1)*cols]
}

// Decode returns the positions of row i that are set to 1, in ascending order.
func Decode(t *tensor.Dense, i int) []int {
	var out []int
	for c, v := range Row(t, i) {
		if v == 1 {
			out = append(out, c)
		}
	}
	return out
}
