// Package ingest converts raw exports of cubes, decks and draft picks into
// the training corpus layout read by the pipeline.
package ingest

import (
	"fmt"
	"slices"

	"github.com/ramonehamilton/cubeml/internal/corpus"
	"github.com/ramonehamilton/cubeml/internal/vocab"
)

// MinPickCards is the pack and pool size a pick needs to be kept; both must
// be strictly larger.
const MinPickCards = 3

// RawCube is one exported cube.
type RawCube struct {
	Cards []int `json:"cards"`
}

// RawDeck is one exported deck. Basics are basic lands added during
// deckbuilding and carry no signal.
type RawDeck struct {
	Mainboard []int `json:"mainboard"`
	Sideboard []int `json:"sideboard"`
	Basics    []int `json:"basics"`
}

// RawPick is one exported draft pick.
type RawPick struct {
	Pool   []int `json:"pool"`
	Pack   []int `json:"pack"`
	Picked int   `json:"picked"`
}

// FilterCubes drops empty cubes.
func FilterCubes(raw []RawCube) []corpus.CubeRecord {
	out := make([]corpus.CubeRecord, 0, len(raw))
	for _, c := range raw {
		if len(c.Cards) > 0 {
			out = append(out, corpus.CubeRecord(c.Cards))
		}
	}
	return out
}

// FilterDecks drops decks with neither mainboard nor sideboard cards and
// strips basics from both boards.
func FilterDecks(raw []RawDeck) []corpus.DeckRecord {
	out := make([]corpus.DeckRecord, 0, len(raw))
	for _, d := range raw {
		if len(d.Mainboard) == 0 && len(d.Sideboard) == 0 {
			continue
		}
		out = append(out, corpus.DeckRecord{
			Mainboard: without(d.Mainboard, d.Basics),
			Sideboard: without(d.Sideboard, d.Basics),
		})
	}
	return out
}

// FilterPicks keeps picks whose pack and pool both hold more than
// MinPickCards cards and whose picked card was in the pack. The picked card
// is removed from the pool.
func FilterPicks(raw []RawPick) []corpus.PickRecord {
	out := make([]corpus.PickRecord, 0, len(raw))
	for _, p := range raw {
		if len(p.Pack) <= MinPickCards || len(p.Pool) <= MinPickCards || !slices.Contains(p.Pack, p.Picked) {
			continue
		}
		out = append(out, corpus.PickRecord{
			Pool: without(p.Pool, []int{p.Picked}),
			Pack: p.Pack,
			Pick: p.Picked,
		})
	}
	return out
}

func without(cards, drop []int) []int {
	out := make([]int, 0, len(cards))
	for _, c := range cards {
		if !slices.Contains(drop, c) {
			out = append(out, c)
		}
	}
	return out
}

// Frequencies counts how many times each card occurs across cubes.
func Frequencies(cubes []corpus.CubeRecord, numCards int) ([]int, error) {
	freq := make([]int, numCards)
	for i, cube := range cubes {
		for _, c := range cube {
			if err := vocab.CheckRange(c, numCards); err != nil {
				return nil, fmt.Errorf("cube %d: %w", i, err)
			}
			freq[c]++
		}
	}
	return freq, nil
}

// CoOccurrence returns the flattened numCards×numCards table of how many
// cubes contain each ordered pair of distinct cards. It needs numCards²
// counters in memory.
func CoOccurrence(cubes []corpus.CubeRecord, numCards int) ([]int32, error) {
	counts := make([]int32, numCards*numCards)
	for i, cube := range cubes {
		for _, a := range cube {
			if err := vocab.CheckRange(a, numCards); err != nil {
				return nil, fmt.Errorf("cube %d: %w", i, err)
			}
		}
		for _, a := range cube {
			row := counts[a*numCards : (a+1)*numCards]
			for _, b := range cube {
				if a != b {
					row[b]++
				}
			}
		}
	}
	return counts, nil
}
