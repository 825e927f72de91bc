package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// Shard directory and file names under a corpus root.
const (
	CubesDir     = "cubes"
	DecksDir     = "decks"
	PicksDir     = "picks"
	MetadataFile = "metadata.json"
)

// Metadata describes the record counts of a sharded corpus.
type Metadata struct {
	NumOracles int `json:"numOracles"`
	NumCubes   int `json:"numCubes"`
	NumDecks   int `json:"numDecks"`
	NumPicks   int `json:"numPicks"`
}

// Count returns the record count recorded for a stream.
func (m Metadata) Count(s Stream) int {
	switch s {
	case Cubes:
		return m.NumCubes
	case Decks:
		return m.NumDecks
	case Picks:
		return m.NumPicks
	case Correlations:
		return m.NumOracles
	default:
		return 0
	}
}

// LoadMetadata reads root/metadata.json.
func LoadMetadata(root string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(root, MetadataFile))
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", ErrMalformedShard, err)
	}
	return &m, nil
}

// WriteMetadata writes root/metadata.json.
func WriteMetadata(root string, m *Metadata) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(root, MetadataFile), data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// CountShards decodes every shard of a sharded corpus, one at a time, and
// returns the record counts. numOracles is copied into the result.
func CountShards(ctx context.Context, root string, numOracles int) (*Metadata, error) {
	cubes, err := countDir[CubeRecord](ctx, filepath.Join(root, CubesDir))
	if err != nil {
		return nil, err
	}
	decks, err := countDir[DeckRecord](ctx, filepath.Join(root, DecksDir))
	if err != nil {
		return nil, err
	}
	picks, err := countDir[PickRecord](ctx, filepath.Join(root, PicksDir))
	if err != nil {
		return nil, err
	}

	return &Metadata{
		NumOracles: numOracles,
		NumCubes:   cubes,
		NumDecks:   decks,
		NumPicks:   picks,
	}, nil
}

func countDir[T any](ctx context.Context, dir string) (int, error) {
	files, err := ListShards(dir)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		records, err := decodeFile[T](f)
		if err != nil {
			return 0, err
		}
		total += len(records)
	}
	return total, nil
}
