package corpus

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// MemoryStore serves records from an in-memory slice.
type MemoryStore[T any] struct {
	records []T
}

// NewMemoryStore wraps records without copying them.
func NewMemoryStore[T any](records []T) *MemoryStore[T] {
	return &MemoryStore[T]{records: records}
}

// LoadFile decodes a single JSON array of records into a MemoryStore.
func LoadFile[T any](path string) (*MemoryStore[T], error) {
	records, err := decodeFile[T](path)
	if err != nil {
		return nil, err
	}
	return NewMemoryStore(records), nil
}

func (m *MemoryStore[T]) Len() int {
	return len(m.records)
}

func (m *MemoryStore[T]) Fetch(_ context.Context, start, count int) ([]T, error) {
	n := len(m.records)
	if n == 0 {
		return nil, ErrEmptyStream
	}
	if count < 0 {
		return nil, fmt.Errorf("negative fetch count %d", count)
	}

	out := make([]T, 0, count)
	i := wrapIndex(start, n)
	for len(out) < count {
		end := i + (count - len(out))
		if end > n {
			end = n
		}
		out = append(out, m.records[i:end]...)
		i = 0
	}
	return out, nil
}

func (m *MemoryStore[T]) Gather(_ context.Context, indices []int) ([]T, error) {
	n := len(m.records)
	if n == 0 {
		return nil, ErrEmptyStream
	}

	out := make([]T, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("record index %d out of range [0, %d)", idx, n)
		}
		out[i] = m.records[idx]
	}
	return out, nil
}

// Records exposes the backing slice.
func (m *MemoryStore[T]) Records() []T {
	return m.records
}

func decodeFile[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedShard, path, err)
	}
	return records, nil
}
