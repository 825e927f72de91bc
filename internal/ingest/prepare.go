package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/ramonehamilton/cubeml/internal/corpus"
	"github.com/ramonehamilton/cubeml/internal/logging"
)

// Raw export and prepared file names.
const (
	RawCubesFile     = "cubes.json"
	RawDecksDir      = "decks"
	RawPicksDir      = "picks"
	RawOracleMapFile = "indexToOracleMap.json"

	OracleDictFile  = "oracleDict.json"
	FrequencyFile   = "oracleFrequency.json"
	CorrelationFile = "correlations.json"
	CubesFile       = "cubes.json"
	DecksFile       = "decks.json"
	PicksFile       = "picks.json"
)

// Options controls a preparation run.
type Options struct {
	SourceDir string
	DestDir   string

	// PerShard is the shard size of the paginated layout.
	PerShard int
	// Flat also writes one array file per stream for the memory strategy.
	Flat bool
	// Correlations writes the card co-occurrence table. It holds
	// num_cards² counters in memory.
	Correlations bool
}

// Result reports what a preparation run wrote.
type Result struct {
	Metadata corpus.Metadata
	Shards   map[corpus.Stream]int
	Dropped  map[corpus.Stream]int
}

// LoadOracleMap reads the index → oracle id export. Keys are decimal card
// indices; the result is ordered by index and must be dense.
func LoadOracleMap(path string) ([]string, error) {
	var raw map[string]string
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}

	type entry struct {
		index  int
		oracle string
	}
	entries := make([]entry, 0, len(raw))
	for k, v := range raw {
		i, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("oracle map key %q is not an index: %w", k, err)
		}
		entries = append(entries, entry{i, v})
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].index < entries[b].index })

	out := make([]string, len(entries))
	for i, e := range entries {
		if e.index != i {
			return nil, fmt.Errorf("oracle map is missing index %d", i)
		}
		out[i] = e.oracle
	}
	return out, nil
}

// readDir decodes every JSON array file of dir, in name order, and
// concatenates them.
func readDir[T any](ctx context.Context, dir string) ([]T, error) {
	files, err := corpus.ListShards(dir)
	if err != nil {
		return nil, err
	}

	var out []T
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var part []T
		if err := readJSON(f, &part); err != nil {
			return nil, err
		}
		out = append(out, part...)
	}
	return out, nil
}

// Prepare reads a raw export from SourceDir and writes the training corpus
// to DestDir: the oracle dictionary, the frequency table, shard directories
// per stream, the metadata descriptor and, on request, flat stream files and
// the correlation table.
func Prepare(ctx context.Context, opts Options) (*Result, error) {
	log := logging.Ctx(ctx)
	if err := os.MkdirAll(opts.DestDir, 0o755); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}

	oracles, err := LoadOracleMap(filepath.Join(opts.SourceDir, RawOracleMapFile))
	if err != nil {
		return nil, err
	}
	numCards := len(oracles)
	if err := writeJSON(filepath.Join(opts.DestDir, OracleDictFile), oracles); err != nil {
		return nil, err
	}
	log.Info().Int("oracles", numCards).Msg("Wrote oracle dictionary")

	res := &Result{
		Shards:  make(map[corpus.Stream]int),
		Dropped: make(map[corpus.Stream]int),
	}
	res.Metadata.NumOracles = numCards

	// Cubes
	var rawCubes []RawCube
	if err := readJSON(filepath.Join(opts.SourceDir, RawCubesFile), &rawCubes); err != nil {
		return nil, err
	}
	cubes := FilterCubes(rawCubes)
	res.Dropped[corpus.Cubes] = len(rawCubes) - len(cubes)

	freq, err := Frequencies(cubes, numCards)
	if err != nil {
		return nil, err
	}
	if err := writeJSON(filepath.Join(opts.DestDir, FrequencyFile), freq); err != nil {
		return nil, err
	}
	if opts.Correlations {
		counts, err := CoOccurrence(cubes, numCards)
		if err != nil {
			return nil, err
		}
		if err := writeJSON(filepath.Join(opts.DestDir, CorrelationFile), counts); err != nil {
			return nil, err
		}
		log.Info().Int("cards", numCards).Msg("Wrote correlation table")
	}
	if err := writeStream(opts, res, corpus.Cubes, CubesFile, cubes); err != nil {
		return nil, err
	}
	log.Info().Int("kept", len(cubes)).Int("dropped", res.Dropped[corpus.Cubes]).Msg("Processed cubes")

	// Decks
	rawDecks, err := readDir[RawDeck](ctx, filepath.Join(opts.SourceDir, RawDecksDir))
	if err != nil {
		return nil, err
	}
	decks := FilterDecks(rawDecks)
	res.Dropped[corpus.Decks] = len(rawDecks) - len(decks)
	if err := writeStream(opts, res, corpus.Decks, DecksFile, decks); err != nil {
		return nil, err
	}
	log.Info().Int("kept", len(decks)).Int("dropped", res.Dropped[corpus.Decks]).Msg("Processed decks")

	// Picks
	rawPicks, err := readDir[RawPick](ctx, filepath.Join(opts.SourceDir, RawPicksDir))
	if err != nil {
		return nil, err
	}
	picks := FilterPicks(rawPicks)
	res.Dropped[corpus.Picks] = len(rawPicks) - len(picks)
	if err := writeStream(opts, res, corpus.Picks, PicksFile, picks); err != nil {
		return nil, err
	}
	log.Info().Int("kept", len(picks)).Int("dropped", res.Dropped[corpus.Picks]).Msg("Processed picks")

	res.Metadata.NumCubes = len(cubes)
	res.Metadata.NumDecks = len(decks)
	res.Metadata.NumPicks = len(picks)
	if err := corpus.WriteMetadata(opts.DestDir, &res.Metadata); err != nil {
		return nil, err
	}
	return res, nil
}

func writeStream[T any](opts Options, res *Result, s corpus.Stream, flatName string, records []T) error {
	n, err := WriteShards(filepath.Join(opts.DestDir, s.String()), records, opts.PerShard)
	if err != nil {
		return fmt.Errorf("write %s shards: %w", s, err)
	}
	res.Shards[s] = n

	if opts.Flat {
		if err := writeJSON(filepath.Join(opts.DestDir, flatName), records); err != nil {
			return err
		}
	}
	return nil
}
