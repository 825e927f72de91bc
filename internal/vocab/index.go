// Package vocab maps card identifiers to the dense column indices used by
// every encoded vector.
package vocab

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// ErrIndexOutOfRange is returned for a card index outside [0, NumCards).
// It signals a vocabulary mismatch between a corpus and its frequency table.
var ErrIndexOutOfRange = errors.New("card index out of range")

// Index is the fixed card vocabulary of one training run.
type Index struct {
	freq    []int
	oracles []string
	byID    map[string]int
}

// New builds an index from a frequency table. Position i of freq is the
// occurrence count of card i.
func New(freq []int) (*Index, error) {
	if len(freq) == 0 {
		return nil, fmt.Errorf("frequency table is empty")
	}
	for i, f := range freq {
		if f < 0 {
			return nil, fmt.Errorf("card %d has negative frequency %d", i, f)
		}
	}
	return &Index{freq: freq}, nil
}

// Load reads a JSON frequency table (an array of counts).
func Load(freqPath string) (*Index, error) {
	data, err := os.ReadFile(freqPath)
	if err != nil {
		return nil, fmt.Errorf("read frequency table: %w", err)
	}

	var freq []int
	if err := json.Unmarshal(data, &freq); err != nil {
		return nil, fmt.Errorf("parse frequency table %s: %w", freqPath, err)
	}

	return New(freq)
}

// LoadWithOracles reads a frequency table together with the oracle
// dictionary (a JSON array whose position i holds the oracle id of card i).
func LoadWithOracles(freqPath, dictPath string) (*Index, error) {
	idx, err := Load(freqPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(dictPath)
	if err != nil {
		return nil, fmt.Errorf("read oracle dictionary: %w", err)
	}

	var oracles []string
	if err := json.Unmarshal(data, &oracles); err != nil {
		return nil, fmt.Errorf("parse oracle dictionary %s: %w", dictPath, err)
	}

	if err := idx.SetOracles(oracles); err != nil {
		return nil, err
	}
	return idx, nil
}

// SetOracles attaches oracle ids to the index.
func (x *Index) SetOracles(oracles []string) error {
	if len(oracles) != len(x.freq) {
		return fmt.Errorf("oracle dictionary has %d entries, frequency table has %d", len(oracles), len(x.freq))
	}

	byID := make(map[string]int, len(oracles))
	for i, id := range oracles {
		if _, dup := byID[id]; dup {
			return fmt.Errorf("duplicate oracle id %q at index %d", id, i)
		}
		byID[id] = i
	}

	x.oracles = oracles
	x.byID = byID
	return nil
}

// NumCards is the width of every dense vector.
func (x *Index) NumCards() int {
	return len(x.freq)
}

// Frequency returns the corpus occurrence count of card c.
func (x *Index) Frequency(c int) int {
	return x.freq[c]
}

// Frequencies returns the frequency table. The slice must not be modified.
func (x *Index) Frequencies() []int {
	return x.freq
}

// Oracle returns the oracle id of card c when a dictionary was loaded.
func (x *Index) Oracle(c int) (string, bool) {
	if x.oracles == nil || c < 0 || c >= len(x.oracles) {
		return "", false
	}
	return x.oracles[c], true
}

// IndexOf returns the column of an oracle id.
func (x *Index) IndexOf(oracle string) (int, bool) {
	c, ok := x.byID[oracle]
	return c, ok
}

// Check validates a single card index.
func (x *Index) Check(c int) error {
	return CheckRange(c, len(x.freq))
}

// CheckAll validates every index in cs.
func (x *Index) CheckAll(cs []int) error {
	for _, c := range cs {
		if err := x.Check(c); err != nil {
			return err
		}
	}
	return nil
}

// CheckRange validates c against a vector width of n.
func CheckRange(c, n int) error {
	if c < 0 || c >= n {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, c, n)
	}
	return nil
}
