// Package pipeline turns a corpus into an endless, reproducible sequence of
// multi-task training batches.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"

	"github.com/ramonehamilton/cubeml/internal/config"
	"github.com/ramonehamilton/cubeml/internal/correlation"
	"github.com/ramonehamilton/cubeml/internal/corpus"
	"github.com/ramonehamilton/cubeml/internal/encoder"
	"github.com/ramonehamilton/cubeml/internal/epoch"
	"github.com/ramonehamilton/cubeml/internal/logging"
	"github.com/ramonehamilton/cubeml/internal/metrics"
	"github.com/ramonehamilton/cubeml/internal/sampler"
	"github.com/ramonehamilton/cubeml/internal/vocab"
)

// Config controls batch sizing and randomness of one generator. Exactly one
// of NumBatches and BatchSize must be positive.
type Config struct {
	// NumBatches fixes the number of batches per epoch; each stream then
	// contributes len/NumBatches records per batch, scaled by its multiplier.
	NumBatches int
	// BatchSize fixes the records drawn from every stream per batch.
	BatchSize int

	CorrMultiplier int
	CubeMultiplier int

	Noise sampler.Noise
	Seed  uint64

	// Split labels this generator in logs and metrics, e.g. "train".
	Split string
}

// ConfigFrom builds a generator config from the application configuration.
func ConfigFrom(c *config.Config, split string) Config {
	return Config{
		NumBatches:     c.Batch.NumBatches,
		BatchSize:      c.Batch.BatchSize,
		CorrMultiplier: c.Batch.CorrMultiplier,
		CubeMultiplier: c.Batch.CubeMultiplier,
		Noise: sampler.Noise{
			Mean:   c.Noise.Mean,
			StdDev: c.Noise.StdDev,
			Min:    c.Noise.Min,
			Max:    c.Noise.Max,
		},
		Seed:  c.Run.Seed,
		Split: split,
	}
}

// Generator produces training batches. It owns its cursor and random source,
// so several generators (train and validation) can run side by side.
//
// A Generator is not safe for concurrent use. While a Prefetch channel is
// open, only the prefetch goroutine may touch it.
type Generator struct {
	cfg    Config
	r      *rand.Rand
	corpus *corpus.Corpus
	corr   *correlation.Matrix
	enc    *encoder.Encoder
	cursor *epoch.Cursor

	sizes      map[corpus.Stream]int
	numBatches int
	step       int

	stats *metrics.PipelineMetrics
	log   zerolog.Logger
}

// New creates a generator over c. The vocabulary supplies the vector width
// and the negative-sampling frequencies; corr must have the same width.
func New(cfg Config, c *corpus.Corpus, v *vocab.Index, corr *correlation.Matrix) (*Generator, error) {
	if (cfg.NumBatches > 0) == (cfg.BatchSize > 0) {
		return nil, fmt.Errorf("exactly one of NumBatches (%d) and BatchSize (%d) must be positive",
			cfg.NumBatches, cfg.BatchSize)
	}
	if cfg.CorrMultiplier <= 0 {
		cfg.CorrMultiplier = 1
	}
	if cfg.CubeMultiplier <= 0 {
		cfg.CubeMultiplier = 1
	}
	if cfg.Split == "" {
		cfg.Split = "train"
	}
	if corr.NumCards() != v.NumCards() {
		return nil, fmt.Errorf("%w: correlation matrix has %d cards, vocabulary %d",
			correlation.ErrShapeMismatch, corr.NumCards(), v.NumCards())
	}

	enc, err := encoder.New(v.NumCards(), sampler.NewNegativeSampler(v.Frequencies()), cfg.Noise)
	if err != nil {
		return nil, err
	}

	lengths := map[corpus.Stream]int{
		corpus.Cubes:        c.Len(corpus.Cubes),
		corpus.Decks:        c.Len(corpus.Decks),
		corpus.Picks:        c.Len(corpus.Picks),
		corpus.Correlations: corr.NumCards(),
	}

	r := rand.New(rand.NewSource(cfg.Seed))
	cursor, err := epoch.New(r, lengths, epoch.Sequential(sequentialStreams(c)...))
	if err != nil {
		return nil, err
	}

	g := &Generator{
		cfg:    cfg,
		r:      r,
		corpus: c,
		corr:   corr,
		enc:    enc,
		cursor: cursor,
		stats:  metrics.NewPipelineMetrics(),
		log:    logging.With().Str("split", cfg.Split).Logger(),
	}
	g.sizes, g.numBatches = sliceSizes(cfg, lengths)

	// Sequential stores draw their first epoch order from the same source.
	g.reshuffleStores()

	for _, s := range corpus.Streams {
		metrics.StreamRecords.WithLabelValues(cfg.Split, s.String()).Set(float64(lengths[s]))
		metrics.SliceSize.WithLabelValues(cfg.Split, s.String()).Set(float64(g.sizes[s]))
		g.log.Info().
			Str("stream", s.String()).
			Int("records", lengths[s]).
			Int("slice", g.sizes[s]).
			Msg("Configured stream")
	}
	g.log.Info().Int("batches_per_epoch", g.numBatches).Msg("Generator ready")

	return g, nil
}

// sequentialStreams lists the streams whose stores lack random access. They
// are read in order through Advance and shuffle themselves.
func sequentialStreams(c *corpus.Corpus) []corpus.Stream {
	var out []corpus.Stream
	if _, ok := c.Cubes.(corpus.Gatherer[corpus.CubeRecord]); !ok {
		out = append(out, corpus.Cubes)
	}
	if _, ok := c.Decks.(corpus.Gatherer[corpus.DeckRecord]); !ok {
		out = append(out, corpus.Decks)
	}
	if _, ok := c.Picks.(corpus.Gatherer[corpus.PickRecord]); !ok {
		out = append(out, corpus.Picks)
	}
	return out
}

// sliceSizes returns the records each stream contributes per batch and the
// number of batches per epoch.
func sliceSizes(cfg Config, lengths map[corpus.Stream]int) (map[corpus.Stream]int, int) {
	sizes := make(map[corpus.Stream]int, len(lengths))

	if cfg.NumBatches > 0 {
		mult := map[corpus.Stream]int{
			corpus.Cubes:        cfg.CubeMultiplier,
			corpus.Decks:        1,
			corpus.Picks:        1,
			corpus.Correlations: cfg.CorrMultiplier,
		}
		for s, n := range lengths {
			sizes[s] = max(1, n/cfg.NumBatches*mult[s])
		}
		return sizes, cfg.NumBatches
	}

	longest := 0
	for s, n := range lengths {
		sizes[s] = cfg.BatchSize
		longest = max(longest, n)
	}
	return sizes, max(1, longest/cfg.BatchSize)
}

// Len returns the number of batches per epoch.
func (g *Generator) Len() int {
	return g.numBatches
}

// SliceSize returns the records drawn from a stream per batch.
func (g *Generator) SliceSize(s corpus.Stream) int {
	return g.sizes[s]
}

// Epoch returns the zero-based epoch of the next batch.
func (g *Generator) Epoch() int {
	return g.cursor.Epoch()
}

// Step returns the index of the next batch within the epoch.
func (g *Generator) Step() int {
	return g.step
}

// Metrics returns the in-process metrics of this generator.
func (g *Generator) Metrics() *metrics.PipelineMetrics {
	return g.stats
}

// PrepNextEpoch reshuffles every stream and rewinds all read positions.
func (g *Generator) PrepNextEpoch() {
	g.cursor.PrepNextEpoch()
	g.reshuffleStores()
	g.step = 0

	g.stats.Epochs.Add(1)
	metrics.EpochsTotal.WithLabelValues(g.cfg.Split).Inc()
	g.log.Info().Int("epoch", g.cursor.Epoch()).Msg("Starting epoch")
}

func (g *Generator) reshuffleStores() {
	for _, st := range []any{g.corpus.Cubes, g.corpus.Decks, g.corpus.Picks} {
		if rs, ok := st.(corpus.Reshuffler); ok {
			rs.Reshuffle(g.r)
		}
	}
}

// Next builds the next batch. Reads past the end of a stream wrap within the
// current epoch; call PrepNextEpoch to start a new one.
func (g *Generator) Next(ctx context.Context) (*encoder.Batch, error) {
	start := time.Now()
	b, err := g.next(ctx)
	elapsed := time.Since(start)

	if err != nil {
		g.stats.Errors.Add(1)
		metrics.BatchErrorsTotal.WithLabelValues(g.cfg.Split).Inc()
		return nil, err
	}

	g.step++
	g.stats.Batches.Add(1)
	g.stats.BatchLatency.Record(elapsed)
	metrics.BatchesTotal.WithLabelValues(g.cfg.Split).Inc()
	metrics.BatchDuration.WithLabelValues(g.cfg.Split).Observe(elapsed.Seconds())
	return b, nil
}

func (g *Generator) next(ctx context.Context) (*encoder.Batch, error) {
	fetchStart := time.Now()

	cubes, err := draw(ctx, g, corpus.Cubes, g.corpus.Cubes)
	if err != nil {
		return nil, err
	}
	decks, err := draw(ctx, g, corpus.Decks, g.corpus.Decks)
	if err != nil {
		return nil, err
	}
	picks, err := draw(ctx, g, corpus.Picks, g.corpus.Picks)
	if err != nil {
		return nil, err
	}
	corrRows, err := g.cursor.Take(corpus.Correlations, g.sizes[corpus.Correlations])
	if err != nil {
		return nil, err
	}
	g.countRecords(corpus.Correlations, len(corrRows))

	encodeStart := time.Now()
	g.stats.FetchLatency.Record(encodeStart.Sub(fetchStart))

	b := &encoder.Batch{}
	if b.CubeX, b.CubeY, err = g.enc.Cubes(g.r, cubes); err != nil {
		return nil, fmt.Errorf("encode cubes: %w", err)
	}
	if b.DeckX, b.DeckY, err = g.enc.Decks(decks); err != nil {
		return nil, fmt.Errorf("encode decks: %w", err)
	}
	if b.PackX, b.PoolX, b.PickY, err = g.enc.Picks(picks); err != nil {
		return nil, fmt.Errorf("encode picks: %w", err)
	}
	if b.CorrX, b.CorrY, err = g.enc.Correlations(g.corr, corrRows); err != nil {
		return nil, fmt.Errorf("encode correlations: %w", err)
	}

	g.stats.EncodeLatency.Record(time.Since(encodeStart))
	return b, nil
}

// draw reads the next slice of a stream. Random-access stores are read in
// permutation order; sequential stores are read from the cursor position and
// shuffle at their own granularity.
func draw[T any](ctx context.Context, g *Generator, s corpus.Stream, st corpus.Store[T]) ([]T, error) {
	n := g.sizes[s]

	var recs []T
	if ga, ok := st.(corpus.Gatherer[T]); ok {
		idx, err := g.cursor.Take(s, n)
		if err != nil {
			return nil, err
		}
		if recs, err = ga.Gather(ctx, idx); err != nil {
			return nil, fmt.Errorf("gather %s: %w", s, err)
		}
	} else {
		start, err := g.cursor.Advance(s, n)
		if err != nil {
			return nil, err
		}
		if recs, err = st.Fetch(ctx, start, n); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", s, err)
		}
	}

	if len(recs) != n {
		return nil, fmt.Errorf("%s store returned %d records, want %d", s, len(recs), n)
	}
	g.countRecords(s, n)
	return recs, nil
}

func (g *Generator) countRecords(s corpus.Stream, n int) {
	g.stats.Records.Add(uint64(n))
	metrics.RecordsTotal.WithLabelValues(g.cfg.Split, s.String()).Add(float64(n))
}

// Trainer consumes batches. It stands in for the external training loop.
type Trainer interface {
	TrainBatch(ctx context.Context, epoch, step int, b *encoder.Batch) error
}

// TrainerFunc adapts a function to the Trainer interface.
type TrainerFunc func(ctx context.Context, epoch, step int, b *encoder.Batch) error

// TrainBatch calls f.
func (f TrainerFunc) TrainBatch(ctx context.Context, epoch, step int, b *encoder.Batch) error {
	return f(ctx, epoch, step, b)
}

// ErrStopTraining can be returned by a Trainer to end Run early without error.
var ErrStopTraining = errors.New("stop training")

// Run feeds batches to t until epochs epoch boundaries have passed, starting
// from the current step and preparing a new epoch after each one. With
// prefetch > 0, batches are built that many steps ahead on a separate
// goroutine; the batches and the generator state afterwards are identical
// either way.
func (g *Generator) Run(ctx context.Context, epochs, prefetch int, t Trainer) error {
	if prefetch > 0 {
		return g.runPrefetched(ctx, epochs, prefetch, t)
	}

	for e := 0; e < epochs; e++ {
		ep := g.Epoch()
		for g.step < g.numBatches {
			step := g.step
			b, err := g.Next(ctx)
			if err != nil {
				return fmt.Errorf("epoch %d step %d: %w", ep, step, err)
			}
			if err := t.TrainBatch(ctx, ep, step, b); err != nil {
				if errors.Is(err, ErrStopTraining) {
					return nil
				}
				return fmt.Errorf("train epoch %d step %d: %w", ep, step, err)
			}
		}
		g.PrepNextEpoch()
	}
	return nil
}

// remaining returns the number of batches Run(epochs) consumes from the
// current step.
func (g *Generator) remaining(epochs int) int {
	if epochs <= 0 {
		return 0
	}
	return max(0, g.numBatches-g.step) + (epochs-1)*g.numBatches
}

func (g *Generator) runPrefetched(ctx context.Context, epochs, depth int, t Trainer) error {
	total := g.remaining(epochs)
	if total == 0 {
		// Nothing to build ahead; only epoch boundaries are left.
		return g.Run(ctx, epochs, 0, t)
	}

	ctx, cancel := context.WithCancel(ctx)
	results := g.Prefetch(ctx, depth, total)
	defer func() {
		cancel()
		// Wait for the producer so the generator is ours again on return.
		for range results {
		}
	}()

	for i := 0; i < total; i++ {
		wait := time.Now()
		res, ok := <-results
		g.stats.WaitLatency.Record(time.Since(wait))
		if !ok {
			return ctx.Err()
		}
		if res.Err != nil {
			return fmt.Errorf("epoch %d step %d: %w", res.Epoch, res.Step, res.Err)
		}
		if err := t.TrainBatch(ctx, res.Epoch, res.Step, res.Batch); err != nil {
			if errors.Is(err, ErrStopTraining) {
				return nil
			}
			return fmt.Errorf("train epoch %d step %d: %w", res.Epoch, res.Step, err)
		}
	}
	return nil
}
