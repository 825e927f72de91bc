// Package main writes HTML charts describing a prepared corpus and a
// Prometheus snapshot of its stream sizes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ramonehamilton/cubeml/internal/charts"
	"github.com/ramonehamilton/cubeml/internal/config"
	"github.com/ramonehamilton/cubeml/internal/corpus"
	"github.com/ramonehamilton/cubeml/internal/logging"
	"github.com/ramonehamilton/cubeml/internal/metrics"
	"github.com/ramonehamilton/cubeml/internal/pipeline"
)

var (
	configPath = flag.String("config", "cubeml.toml", "Configuration file")
	outDir     = flag.String("out", "report", "Output directory")
	top        = flag.Int("top", 50, "Number of cards in the frequency ranking")
	open       = flag.Bool("open", false, "Open the frequency chart in the browser")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("Invalid configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})

	ctx := logging.ContextWithRunID(context.Background(), logging.NewRunID())
	log := logging.Ctx(ctx)

	res, err := pipeline.LoadResources(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load corpus")
	}
	defer res.Close()

	meta := corpus.Metadata{
		NumOracles: res.Vocab.NumCards(),
		NumCubes:   res.Corpus.Len(corpus.Cubes),
		NumDecks:   res.Corpus.Len(corpus.Decks),
		NumPicks:   res.Corpus.Len(corpus.Picks),
	}

	files, err := charts.WriteCorpusReport(*outDir, res.Vocab, meta, *top)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to write report")
	}
	for _, f := range files {
		fmt.Println(f)
	}

	for _, s := range corpus.Streams {
		metrics.StreamRecords.WithLabelValues("corpus", s.String()).Set(float64(meta.Count(s)))
	}
	promPath := filepath.Join(*outDir, "corpus.prom")
	if cfg.Metrics.Output != "" {
		promPath = cfg.Metrics.Output
	}
	if err := metrics.WriteTextfile(promPath); err != nil {
		log.Error().Err(err).Msg("Failed to write metrics snapshot")
	} else {
		fmt.Println(promPath)
	}

	if *open && len(files) > 0 {
		if err := charts.OpenInBrowser(files[0]); err != nil {
			log.Warn().Err(err).Msg("Failed to open browser")
		}
	}
}
