package ingest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// DefaultPerShard is the number of records written to each shard file.
const DefaultPerShard = 1000

// ShardName returns the file name of shard i. Names sort in shard order.
func ShardName(i int) string {
	return fmt.Sprintf("%06d.json", i)
}

// WriteShards writes records into dir as JSON arrays of at most perShard
// records each and returns the number of files written. Existing shard files
// with the same names are overwritten.
func WriteShards[T any](dir string, records []T, perShard int) (int, error) {
	if perShard <= 0 {
		perShard = DefaultPerShard
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create shard directory: %w", err)
	}

	files := 0
	for start := 0; start < len(records); start += perShard {
		end := min(start+perShard, len(records))
		if err := writeJSON(filepath.Join(dir, ShardName(files)), records[start:end]); err != nil {
			return files, err
		}
		files++
	}
	return files, nil
}

// writeJSON encodes v to path through a buffered writer.
func writeJSON(path string, v any) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	w := bufio.NewWriter(f)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
