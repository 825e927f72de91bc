// Package correlation loads the pairwise card co-occurrence table and turns
// each row into a probability distribution over correlated cards.
package correlation

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"
)

// DefaultSmoothing is added to every row sum before normalising.
const DefaultSmoothing = 1.0

// ErrShapeMismatch is returned when a flat table is not num_cards² long.
var ErrShapeMismatch = errors.New("correlation table shape mismatch")

// Matrix is a row-normalised N×N correlation distribution.
type Matrix struct {
	dense *mat.Dense
	n     int
}

// Load reads a flat, row-major JSON array of non-negative counts.
func Load(path string, numCards int, smoothing float64) (*Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read correlation table: %w", err)
	}

	var counts []float64
	if err := json.Unmarshal(data, &counts); err != nil {
		return nil, fmt.Errorf("parse correlation table %s: %w", path, err)
	}

	return FromCounts(counts, numCards, smoothing)
}

// FromCounts reshapes counts to numCards×numCards and normalises each row
// as counts / (rowsum + smoothing). A zero row stays zero.
func FromCounts(counts []float64, numCards int, smoothing float64) (*Matrix, error) {
	if numCards <= 0 {
		return nil, fmt.Errorf("num cards must be positive, got %d", numCards)
	}
	if len(counts) != numCards*numCards {
		return nil, fmt.Errorf("%w: %d entries for %d cards (want %d)",
			ErrShapeMismatch, len(counts), numCards, numCards*numCards)
	}
	if smoothing <= 0 {
		return nil, fmt.Errorf("smoothing must be positive, got %v", smoothing)
	}

	for i, v := range counts {
		if v < 0 {
			return nil, fmt.Errorf("negative count %v at row %d col %d", v, i/numCards, i%numCards)
		}
	}

	backing := make([]float64, len(counts))
	copy(backing, counts)
	dense := mat.NewDense(numCards, numCards, backing)

	for i := 0; i < numCards; i++ {
		row := dense.RawRowView(i)
		denom := smoothing
		for _, v := range row {
			denom += v
		}
		for j := range row {
			row[j] /= denom
		}
	}

	return &Matrix{dense: dense, n: numCards}, nil
}

// NumCards is the matrix side length.
func (m *Matrix) NumCards() int {
	return m.n
}

// Row returns a copy of the normalised distribution for card c.
func (m *Matrix) Row(c int) []float64 {
	return mat.Row(nil, c, m.dense)
}

// RowView returns row c without copying. It must not be modified.
func (m *Matrix) RowView(c int) []float64 {
	return m.dense.RawRowView(c)
}

// Raw exposes the underlying matrix.
func (m *Matrix) Raw() *mat.Dense {
	return m.dense
}
