package scoring

import (
	"context"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"
	"gorgonia.org/tensor"

	"github.com/ramonehamilton/cubeml/internal/encoder"
	"github.com/ramonehamilton/cubeml/internal/logging"
)

// Baseline is a model-free trainer that scores every batch with fixed
// predictors: the corrupted cube input as the cube prediction, and card
// popularity as the pick logits. It checks the pipeline end to end and gives
// a floor a trained model has to beat.
type Baseline struct {
	popularity []float32

	mu         sync.Mutex
	cubeScores []float64
	pickProbs  []float64
	epoch      int
	history    []BaselineReport
}

// BaselineReport summarises one epoch of baseline scores.
type BaselineReport struct {
	Epoch       int     `json:"epoch"`
	Batches     int     `json:"batches"`
	CubeTopRate float64 `json:"cube_top_rated_percent"`
	PickProb    float64 `json:"pick_probability"`
}

// NewBaseline creates a baseline over the card frequency table.
func NewBaseline(freq []int) *Baseline {
	pop := make([]float32, len(freq))
	for i, f := range freq {
		pop[i] = float32(math.Log1p(float64(f)))
	}
	return &Baseline{popularity: pop}
}

// TrainBatch scores one batch.
func (b *Baseline) TrainBatch(ctx context.Context, epoch, step int, batch *encoder.Batch) error {
	cube, err := TopRatedPercent(batch.CubeY, batch.CubeX)
	if err != nil {
		return fmt.Errorf("score cubes: %w", err)
	}

	rows, cols := batch.PackX.Shape()[0], batch.PackX.Shape()[1]
	if cols != len(b.popularity) {
		return fmt.Errorf("batch has %d cards, baseline %d", cols, len(b.popularity))
	}
	logits := make([]float32, 0, rows*cols)
	for r := 0; r < rows; r++ {
		logits = append(logits, b.popularity...)
	}
	probs, err := PickDistribution(tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(logits)), batch.PackX)
	if err != nil {
		return fmt.Errorf("score picks: %w", err)
	}
	pick := 0.0
	for r := 0; r < rows; r++ {
		chosen := encoder.Decode(batch.PickY, r)
		if len(chosen) != 1 {
			return fmt.Errorf("pick row %d has %d targets", r, len(chosen))
		}
		pick += float64(encoder.Row(probs, r)[chosen[0]])
	}
	pick /= float64(rows)

	b.mu.Lock()
	defer b.mu.Unlock()
	if epoch != b.epoch {
		b.flush(ctx)
		b.epoch = epoch
	}
	b.cubeScores = append(b.cubeScores, cube)
	b.pickProbs = append(b.pickProbs, pick)

	logging.Ctx(ctx).Debug().
		Int("epoch", epoch).
		Int("step", step).
		Float64("cube_top_rated", cube).
		Float64("pick_prob", pick).
		Msg("Scored batch")
	return nil
}

// Report returns the scores of the epoch in progress.
func (b *Baseline) Report() BaselineReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.report()
}

// Flush logs and clears the scores of the epoch in progress.
func (b *Baseline) Flush(ctx context.Context) BaselineReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flush(ctx)
}

// History returns the reports of every flushed epoch, oldest first.
func (b *Baseline) History() []BaselineReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]BaselineReport(nil), b.history...)
}

func (b *Baseline) report() BaselineReport {
	r := BaselineReport{Epoch: b.epoch, Batches: len(b.cubeScores)}
	if r.Batches > 0 {
		r.CubeTopRate = stat.Mean(b.cubeScores, nil)
		r.PickProb = stat.Mean(b.pickProbs, nil)
	}
	return r
}

func (b *Baseline) flush(ctx context.Context) BaselineReport {
	r := b.report()
	if r.Batches > 0 {
		logging.Ctx(ctx).Info().
			Int("epoch", r.Epoch).
			Int("batches", r.Batches).
			Float64("cube_top_rated", r.CubeTopRate).
			Float64("pick_prob", r.PickProb).
			Msg("Baseline epoch scores")
		b.history = append(b.history, r)
	}
	b.cubeScores = b.cubeScores[:0]
	b.pickProbs = b.pickProbs[:0]
	return r
}
