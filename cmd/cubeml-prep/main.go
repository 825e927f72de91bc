// Package main turns a raw cube, deck and draft export into the sharded
// training corpus read by cubeml-train.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ramonehamilton/cubeml/internal/config"
	"github.com/ramonehamilton/cubeml/internal/corpus"
	"github.com/ramonehamilton/cubeml/internal/ingest"
	"github.com/ramonehamilton/cubeml/internal/logging"
	"github.com/ramonehamilton/cubeml/internal/storage"
	"github.com/ramonehamilton/cubeml/internal/version"
)

var (
	configPath   = flag.String("config", "cubeml.toml", "Configuration file")
	srcDir       = flag.String("src", "data/raw", "Directory of the raw export")
	destDir      = flag.String("dest", "", "Output directory (default: data.dir from the configuration)")
	perShard     = flag.Int("per-shard", ingest.DefaultPerShard, "Records per shard file")
	flat         = flag.Bool("flat", false, "Also write one JSON file per stream for the memory strategy")
	correlations = flag.Bool("correlations", true, "Write the card co-occurrence table")
	importDB     = flag.Bool("sqlite", false, "Import the prepared corpus into data.database")
	replace      = flag.Bool("replace", false, "With -sqlite, clear previously imported records first")
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithRunID(ctx, logging.NewRunID())
	log := logging.Ctx(ctx)

	dest := *destDir
	if dest == "" {
		dest = cfg.Data.Dir
	}
	log.Info().Str("version", version.GetVersion()).Str("src", *srcDir).Str("dest", dest).Msg("Preparing corpus")

	res, err := ingest.Prepare(ctx, ingest.Options{
		SourceDir:    *srcDir,
		DestDir:      dest,
		PerShard:     *perShard,
		Flat:         *flat,
		Correlations: *correlations,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare corpus")
	}

	fmt.Printf("Cards:  %d\n", res.Metadata.NumOracles)
	for _, s := range []corpus.Stream{corpus.Cubes, corpus.Decks, corpus.Picks} {
		fmt.Printf("%-6s  %d records in %d shards (%d dropped)\n",
			s.String()+":", res.Metadata.Count(s), res.Shards[s], res.Dropped[s])
	}

	if !*importDB {
		return
	}
	if err := importCorpus(ctx, cfg, dest); err != nil {
		log.Fatal().Err(err).Msg("Failed to import corpus")
	}
}

func importCorpus(ctx context.Context, cfg *config.Config, dest string) error {
	c, err := corpus.OpenPaginated(ctx, dest, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	db, err := storage.Open(storage.DefaultConfig(cfg.Data.Path(cfg.Data.Database)))
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Error closing database")
		}
	}()

	if *replace {
		if err := db.ClearCorpus(ctx); err != nil {
			return err
		}
	}

	res, err := storage.ImportCorpus(ctx, db, c, dest, storage.DefaultImportChunk)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d cubes, %d decks, %d picks into %s\n",
		res.Cubes, res.Decks, res.Picks, cfg.Data.Path(cfg.Data.Database))
	return nil
}
