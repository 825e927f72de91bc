// Package corpus holds the cube, deck and pick training records and the
// storage strategies that serve them to the batch pipeline.
package corpus

import "fmt"

// Stream identifies one of the independently cycled training data streams.
type Stream int

const (
	Cubes Stream = iota
	Decks
	Picks
	Correlations
)

// Streams lists every stream in batch order.
var Streams = []Stream{Cubes, Decks, Picks, Correlations}

func (s Stream) String() string {
	switch s {
	case Cubes:
		return "cubes"
	case Decks:
		return "decks"
	case Picks:
		return "picks"
	case Correlations:
		return "correlations"
	default:
		return fmt.Sprintf("stream(%d)", int(s))
	}
}

// CubeRecord is the set of card indices in one cube.
type CubeRecord []int

// DeckRecord is one deck-build decision. Mainboard ∪ Sideboard is the pool
// offered to the builder and Mainboard is what was chosen.
type DeckRecord struct {
	Mainboard []int `json:"mainboard"`
	Sideboard []int `json:"sideboard"`
}

// Pool returns mainboard followed by sideboard.
func (d DeckRecord) Pool() []int {
	pool := make([]int, 0, len(d.Mainboard)+len(d.Sideboard))
	pool = append(pool, d.Mainboard...)
	return append(pool, d.Sideboard...)
}

// PickRecord is one draft decision: Pick was chosen from Pack while already
// holding Pool.
type PickRecord struct {
	Pool []int `json:"pool"`
	Pack []int `json:"pack"`
	Pick int   `json:"pick"`
}

// PickInPack reports whether the chosen card is part of the pack.
func (p PickRecord) PickInPack() bool {
	for _, c := range p.Pack {
		if c == p.Pick {
			return true
		}
	}
	return false
}
