package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/exp/rand"

	"github.com/ramonehamilton/cubeml/internal/logging"
	"github.com/ramonehamilton/cubeml/internal/metrics"
)

// ListShards returns the JSON shard files of dir sorted by name.
func ListShards(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list shards in %s: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// ShardStore reads a stream lazily from a directory of shard files. It keeps
// at most one decoded shard in memory and walks the shards in a visiting
// order that Reshuffle permutes once per epoch.
//
// Not safe for concurrent use.
type ShardStore[T any] struct {
	name    string // directory base name, used as metric label
	files   []string
	order   []int // visiting order, indexes files
	lengths []int // learned record count per file, -1 when unknown
	total   int

	pos     int // logical position of the next record
	slot    int // index into order
	offset  int // offset within the current shard
	current []T
	loaded  int // file index held in current, -1 for none
}

// NewShardStore opens a paginated store over dir. total is the record count
// from the metadata descriptor; when it is <= 0 the shards are scanned once,
// one at a time, to count them.
func NewShardStore[T any](ctx context.Context, dir string, total int) (*ShardStore[T], error) {
	files, err := ListShards(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no shard files in %s", ErrEmptyStream, dir)
	}

	s := &ShardStore[T]{
		name:    filepath.Base(dir),
		files:   files,
		order:   make([]int, len(files)),
		lengths: make([]int, len(files)),
		total:   total,
		loaded:  -1,
	}
	for i := range s.order {
		s.order[i] = i
		s.lengths[i] = -1
	}

	if total <= 0 {
		sum := 0
		for i := range files {
			n, err := s.shardLen(ctx, i)
			if err != nil {
				return nil, err
			}
			sum += n
		}
		s.total = sum
	}

	logging.Debug().
		Str("dir", dir).
		Int("shards", len(files)).
		Int("records", s.total).
		Msg("Opened paginated shard store")

	return s, nil
}

func (s *ShardStore[T]) Len() int {
	return s.total
}

// NumShards returns the number of shard files.
func (s *ShardStore[T]) NumShards() int {
	return len(s.files)
}

// Order returns the current shard visiting order.
func (s *ShardStore[T]) Order() []int {
	return append([]int(nil), s.order...)
}

// Reshuffle draws a new shard visiting order and rewinds to position 0.
func (s *ShardStore[T]) Reshuffle(r *rand.Rand) {
	s.order = r.Perm(len(s.files))
	s.rewind()
}

func (s *ShardStore[T]) rewind() {
	s.pos = 0
	s.slot = 0
	s.offset = 0
}

// Fetch reads count records starting at logical position start in the
// current shard order, wrapping to the first shard at the end.
func (s *ShardStore[T]) Fetch(ctx context.Context, start, count int) ([]T, error) {
	if s.total == 0 {
		return nil, ErrEmptyStream
	}
	if count < 0 {
		return nil, fmt.Errorf("negative fetch count %d", count)
	}

	start = wrapIndex(start, s.total)
	if start != s.pos {
		if err := s.seek(ctx, start); err != nil {
			return nil, err
		}
	}

	out := make([]T, 0, count)
	for len(out) < count {
		if err := s.fill(ctx); err != nil {
			return nil, err
		}

		n := len(s.current) - s.offset
		if want := count - len(out); n > want {
			n = want
		}
		out = append(out, s.current[s.offset:s.offset+n]...)
		s.offset += n
		s.pos += n

		if s.offset >= len(s.current) {
			if err := s.advance(); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// fill makes sure the shard at the current slot is decoded and non-empty,
// skipping over empty shards.
func (s *ShardStore[T]) fill(ctx context.Context) error {
	for skipped := 0; ; skipped++ {
		if skipped > len(s.files) {
			return ErrEmptyStream
		}

		file := s.order[s.slot]
		if s.loaded != file {
			if err := s.load(ctx, file); err != nil {
				return err
			}
		}
		if s.offset < len(s.current) {
			return nil
		}
		if err := s.advance(); err != nil {
			return err
		}
	}
}

// advance moves to the next shard slot, wrapping modulo the shard count.
func (s *ShardStore[T]) advance() error {
	s.slot++
	s.offset = 0
	if s.slot < len(s.order) {
		return nil
	}

	if s.pos != s.total {
		return fmt.Errorf("%w: shards hold %d records, metadata says %d", ErrMalformedShard, s.pos, s.total)
	}
	s.slot = 0
	s.pos = 0
	return nil
}

// seek positions the cursor at logical position target, decoding shards of
// unknown length on the way.
func (s *ShardStore[T]) seek(ctx context.Context, target int) error {
	acc := 0
	for slot, file := range s.order {
		n, err := s.shardLen(ctx, file)
		if err != nil {
			return err
		}
		if target < acc+n {
			s.slot = slot
			s.offset = target - acc
			s.pos = target
			return nil
		}
		acc += n
	}
	return fmt.Errorf("%w: position %d beyond %d records found in shards", ErrMalformedShard, target, acc)
}

func (s *ShardStore[T]) shardLen(ctx context.Context, file int) (int, error) {
	if n := s.lengths[file]; n >= 0 {
		return n, nil
	}
	if err := s.load(ctx, file); err != nil {
		return 0, err
	}
	return s.lengths[file], nil
}

// load decodes one shard, replacing whatever shard was held before.
func (s *ShardStore[T]) load(ctx context.Context, file int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.current = nil
	s.loaded = -1

	records, err := decodeFile[T](s.files[file])
	if err != nil {
		return err
	}

	s.current = records
	s.loaded = file
	s.lengths[file] = len(records)
	metrics.ShardLoadsTotal.WithLabelValues(s.name).Inc()

	logging.Debug().
		Str("shard", filepath.Base(s.files[file])).
		Int("records", len(records)).
		Msg("Decoded shard")
	return nil
}

// Preload decodes every shard of dir once and concatenates them into a
// MemoryStore.
func Preload[T any](ctx context.Context, dir string) (*MemoryStore[T], error) {
	files, err := ListShards(dir)
	if err != nil {
		return nil, err
	}

	var records []T
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		shard, err := decodeFile[T](f)
		if err != nil {
			return nil, err
		}
		records = append(records, shard...)

		logging.Debug().
			Int("shard", i+1).
			Int("of", len(files)).
			Str("dir", dir).
			Msg("Preloaded shard")
	}

	return NewMemoryStore(records), nil
}
