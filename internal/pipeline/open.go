package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ramonehamilton/cubeml/internal/config"
	"github.com/ramonehamilton/cubeml/internal/correlation"
	"github.com/ramonehamilton/cubeml/internal/corpus"
	"github.com/ramonehamilton/cubeml/internal/logging"
	"github.com/ramonehamilton/cubeml/internal/storage"
	"github.com/ramonehamilton/cubeml/internal/vocab"
)

// OpenCorpus opens the corpus with the configured storage strategy. The
// caller closes it.
func OpenCorpus(ctx context.Context, data config.DataConfig) (*corpus.Corpus, error) {
	switch corpus.Strategy(data.Strategy) {
	case corpus.StrategyMemory:
		return corpus.LoadFiles(corpus.FileOptions{
			Cubes: data.Path(data.CubesFile),
			Decks: data.Path(data.DecksFile),
			Picks: data.Path(data.PicksFile),
		})
	case corpus.StrategyPaginated:
		return corpus.OpenPaginated(ctx, data.Dir, nil)
	case corpus.StrategyPreload:
		return corpus.OpenPreloaded(ctx, data.Dir)
	case corpus.StrategySQLite:
		db, err := storage.Open(storage.DefaultConfig(data.Path(data.Database)))
		if err != nil {
			return nil, fmt.Errorf("open corpus database: %w", err)
		}
		c, err := storage.OpenCorpus(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		c.OnClose(db.Close)
		return c, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage strategy %q", config.ErrInvalid, data.Strategy)
	}
}

// Resources are the static inputs of a training run.
type Resources struct {
	Vocab       *vocab.Index
	Correlation *correlation.Matrix
	Corpus      *corpus.Corpus
}

// Close releases the corpus.
func (r *Resources) Close() error {
	if r.Corpus == nil {
		return nil
	}
	return r.Corpus.Close()
}

// LoadResources loads the vocabulary, correlation matrix and corpus named by
// cfg. The oracle dictionary is optional and skipped when absent.
func LoadResources(ctx context.Context, cfg *config.Config) (*Resources, error) {
	data := cfg.Data
	log := logging.Ctx(ctx)

	freqPath := data.Path(data.FrequencyFile)
	dictPath := data.Path(data.OracleDictFile)

	var (
		v   *vocab.Index
		err error
	)
	if _, statErr := os.Stat(dictPath); dictPath != "" && statErr == nil {
		v, err = vocab.LoadWithOracles(freqPath, dictPath)
	} else {
		if dictPath != "" && !errors.Is(statErr, os.ErrNotExist) {
			return nil, fmt.Errorf("stat oracle dictionary: %w", statErr)
		}
		v, err = vocab.Load(freqPath)
	}
	if err != nil {
		return nil, err
	}
	log.Info().Int("cards", v.NumCards()).Str("path", freqPath).Msg("Loaded vocabulary")

	corr, err := correlation.Load(data.Path(data.CorrelationFile), v.NumCards(), cfg.Correlation.Smoothing)
	if err != nil {
		return nil, err
	}
	log.Info().Float64("smoothing", cfg.Correlation.Smoothing).Msg("Loaded correlation matrix")

	c, err := OpenCorpus(ctx, data)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("strategy", data.Strategy).
		Int("cubes", c.Len(corpus.Cubes)).
		Int("decks", c.Len(corpus.Decks)).
		Int("picks", c.Len(corpus.Picks)).
		Msg("Opened corpus")

	return &Resources{Vocab: v, Correlation: corr, Corpus: c}, nil
}
