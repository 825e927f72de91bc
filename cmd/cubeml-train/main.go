// Package main runs the batch pipeline for a number of epochs and scores
// every batch with the popularity baseline.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/ramonehamilton/cubeml/internal/charts"
	"github.com/ramonehamilton/cubeml/internal/config"
	"github.com/ramonehamilton/cubeml/internal/corpus"
	"github.com/ramonehamilton/cubeml/internal/logging"
	"github.com/ramonehamilton/cubeml/internal/metrics"
	"github.com/ramonehamilton/cubeml/internal/pipeline"
	"github.com/ramonehamilton/cubeml/internal/scoring"
	"github.com/ramonehamilton/cubeml/internal/version"
)

var (
	configPath = flag.String("config", "cubeml.toml", "Configuration file")
	epochs     = flag.Int("epochs", 0, "Override run.epochs")
	seed       = flag.Uint64("seed", 0, "Override run.seed")
	chartPath  = flag.String("chart", "", "Write an HTML chart of per-epoch baseline scores")
	statsJSON  = flag.Bool("json", false, "Print pipeline statistics as JSON")
)

type summary struct {
	RunID      string                   `json:"run_id"`
	Train      *metrics.PipelineStats   `json:"train"`
	Validation *metrics.PipelineStats   `json:"validation,omitempty"`
	Scores     []scoring.BaselineReport `json:"scores"`
	ValScores  []scoring.BaselineReport `json:"validation_scores,omitempty"`
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *epochs > 0 {
		cfg.Run.Epochs = *epochs
	}
	if *seed > 0 {
		cfg.Run.Seed = *seed
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("Invalid configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runID := logging.NewRunID()
	ctx = logging.ContextWithRunID(ctx, runID)

	out, err := run(ctx, cfg)
	if err != nil {
		logging.Ctx(ctx).Fatal().Err(err).Msg("Training run failed")
	}
	out.RunID = runID

	if cfg.Metrics.Enabled {
		if err := metrics.WriteTextfile(cfg.Metrics.Output); err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("Failed to write metrics")
		}
	}
	if *chartPath != "" {
		chartCfg := charts.DefaultChartConfig()
		chartCfg.Title = "Baseline scores"
		chartCfg.Subtitle = "run " + runID
		if err := charts.RenderMultiLineChart(charts.EpochScores(out.Scores), chartCfg, *chartPath); err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("Failed to render chart")
		}
	}
	printSummary(out)
}

func run(ctx context.Context, cfg *config.Config) (*summary, error) {
	log := logging.Ctx(ctx)
	log.Info().Str("version", version.GetVersion()).Str("strategy", cfg.Data.Strategy).Msg("Starting training run")

	res, err := pipeline.LoadResources(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := res.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing corpus")
		}
	}()

	train, val := res.Corpus, (*corpus.Corpus)(nil)
	if cfg.Batch.Validation > 0 {
		if train, val, err = pipeline.SplitCorpus(res.Corpus, cfg.Batch.Validation); err != nil {
			return nil, err
		}
	}

	out := &summary{}
	out.Train, out.Scores, err = runSplit(ctx, cfg, pipeline.ConfigFrom(cfg, "train"), train, res)
	if err != nil {
		return nil, err
	}
	if val != nil {
		vcfg := pipeline.ConfigFrom(cfg, "validation")
		vcfg.Seed = cfg.Run.Seed + 1
		out.Validation, out.ValScores, err = runSplit(ctx, cfg, vcfg, val, res)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func runSplit(ctx context.Context, cfg *config.Config, pcfg pipeline.Config, c *corpus.Corpus,
	res *pipeline.Resources) (*metrics.PipelineStats, []scoring.BaselineReport, error) {
	gen, err := pipeline.New(pcfg, c, res.Vocab, res.Correlation)
	if err != nil {
		return nil, nil, fmt.Errorf("%s generator: %w", pcfg.Split, err)
	}

	baseline := scoring.NewBaseline(res.Vocab.Frequencies())
	if err := gen.Run(ctx, cfg.Run.Epochs, cfg.Run.Prefetch, baseline); err != nil {
		return nil, nil, fmt.Errorf("%s run: %w", pcfg.Split, err)
	}
	baseline.Flush(ctx)
	return gen.Metrics().GetStats(), baseline.History(), nil
}

func printSummary(out *summary) {
	if *statsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			logging.Error().Err(err).Msg("Failed to encode summary")
		}
		return
	}

	fmt.Printf("Run %s\n", out.RunID)
	printStats("train", out.Train, out.Scores)
	if out.Validation != nil {
		printStats("validation", out.Validation, out.ValScores)
	}
}

func printStats(split string, st *metrics.PipelineStats, scores []scoring.BaselineReport) {
	fmt.Printf("\n[%s]\n", split)
	fmt.Printf("  Batches:    %d (%.1f/s, %d errors)\n", st.Batches, st.BatchesPerSecond, st.Errors)
	fmt.Printf("  Records:    %d over %d epochs\n", st.Records, st.Epochs)
	fmt.Printf("  Batch time: p50 %.2fms  p95 %.2fms  p99 %.2fms\n",
		st.BatchLatency.P50, st.BatchLatency.P95, st.BatchLatency.P99)
	for _, r := range scores {
		fmt.Printf("  Epoch %d:    cube top-rated %.4f  pick probability %.4f\n",
			r.Epoch, r.CubeTopRate, r.PickProb)
	}
}
