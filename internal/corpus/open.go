package corpus

import (
	"context"
	"fmt"
	"path/filepath"
)

// Strategy selects how a corpus is stored and served.
type Strategy string

const (
	// StrategyMemory loads one JSON array file per stream.
	StrategyMemory Strategy = "memory"
	// StrategyPaginated reads shard directories lazily, one shard at a time.
	StrategyPaginated Strategy = "paginated"
	// StrategyPreload decodes every shard once at startup.
	StrategyPreload Strategy = "preload"
	// StrategySQLite serves records from the corpus database.
	StrategySQLite Strategy = "sqlite"
)

// FileOptions names the single-file inputs of the memory strategy.
type FileOptions struct {
	Cubes string
	Decks string
	Picks string
}

// LoadFiles builds an in-memory corpus from one JSON array file per stream.
func LoadFiles(opts FileOptions) (*Corpus, error) {
	cubes, err := LoadFile[CubeRecord](opts.Cubes)
	if err != nil {
		return nil, fmt.Errorf("load cubes: %w", err)
	}
	decks, err := LoadFile[DeckRecord](opts.Decks)
	if err != nil {
		return nil, fmt.Errorf("load decks: %w", err)
	}
	picks, err := LoadFile[PickRecord](opts.Picks)
	if err != nil {
		return nil, fmt.Errorf("load picks: %w", err)
	}
	return New(cubes, decks, picks), nil
}

// OpenPaginated opens the three shard directories under root lazily. When
// meta is nil, root/metadata.json is read if present; otherwise shards are
// counted by scanning.
func OpenPaginated(ctx context.Context, root string, meta *Metadata) (*Corpus, error) {
	if meta == nil {
		if m, err := LoadMetadata(root); err == nil {
			meta = m
		} else {
			meta = &Metadata{}
		}
	}

	cubes, err := NewShardStore[CubeRecord](ctx, filepath.Join(root, CubesDir), meta.NumCubes)
	if err != nil {
		return nil, fmt.Errorf("open cubes: %w", err)
	}
	decks, err := NewShardStore[DeckRecord](ctx, filepath.Join(root, DecksDir), meta.NumDecks)
	if err != nil {
		return nil, fmt.Errorf("open decks: %w", err)
	}
	picks, err := NewShardStore[PickRecord](ctx, filepath.Join(root, PicksDir), meta.NumPicks)
	if err != nil {
		return nil, fmt.Errorf("open picks: %w", err)
	}
	return New(cubes, decks, picks), nil
}

// OpenPreloaded decodes every shard under root into memory.
func OpenPreloaded(ctx context.Context, root string) (*Corpus, error) {
	cubes, err := Preload[CubeRecord](ctx, filepath.Join(root, CubesDir))
	if err != nil {
		return nil, fmt.Errorf("preload cubes: %w", err)
	}
	decks, err := Preload[DeckRecord](ctx, filepath.Join(root, DecksDir))
	if err != nil {
		return nil, fmt.Errorf("preload decks: %w", err)
	}
	picks, err := Preload[PickRecord](ctx, filepath.Join(root, PicksDir))
	if err != nil {
		return nil, fmt.Errorf("preload picks: %w", err)
	}
	return New(cubes, decks, picks), nil
}
