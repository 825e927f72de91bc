package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ramonehamilton/cubeml/internal/corpus"
)

// maxPositionsPerQuery keeps IN clauses under SQLite's bound-parameter limit.
const maxPositionsPerQuery = 500

// CorpusRepository handles database operations for training records.
// Records of each stream are addressed by a dense, zero-based position.
type CorpusRepository interface {
	// InsertCubes appends cubes after the last stored position.
	InsertCubes(ctx context.Context, cubes []corpus.CubeRecord) error

	// InsertDecks appends decks after the last stored position.
	InsertDecks(ctx context.Context, decks []corpus.DeckRecord) error

	// InsertPicks appends picks after the last stored position.
	InsertPicks(ctx context.Context, picks []corpus.PickRecord) error

	// Count returns the number of stored records of a stream.
	Count(ctx context.Context, stream corpus.Stream) (int, error)

	// CubeRange returns up to limit cubes starting at offset, in position order.
	CubeRange(ctx context.Context, offset, limit int) ([]corpus.CubeRecord, error)

	// DeckRange returns up to limit decks starting at offset, in position order.
	DeckRange(ctx context.Context, offset, limit int) ([]corpus.DeckRecord, error)

	// PickRange returns up to limit picks starting at offset, in position order.
	PickRange(ctx context.Context, offset, limit int) ([]corpus.PickRecord, error)

	// CubesAt returns the cubes at the given positions, in the given order.
	CubesAt(ctx context.Context, positions []int) ([]corpus.CubeRecord, error)

	// DecksAt returns the decks at the given positions, in the given order.
	DecksAt(ctx context.Context, positions []int) ([]corpus.DeckRecord, error)

	// PicksAt returns the picks at the given positions, in the given order.
	PicksAt(ctx context.Context, positions []int) ([]corpus.PickRecord, error)

	// RecordImport stores an audit row for a completed import.
	RecordImport(ctx context.Context, imp *Import) error

	// ListImports returns all recorded imports, newest first.
	ListImports(ctx context.Context) ([]*Import, error)
}

// Import describes one corpus import run.
type Import struct {
	ID       int64
	RunID    string
	Source   string
	NumCubes int
	NumDecks int
	NumPicks int
}

// corpusRepository is the concrete implementation of CorpusRepository.
type corpusRepository struct {
	db *sql.DB
}

// NewCorpusRepository creates a new corpus repository.
func NewCorpusRepository(db *sql.DB) CorpusRepository {
	return &corpusRepository{db: db}
}

func tableFor(stream corpus.Stream) (string, error) {
	switch stream {
	case corpus.Cubes:
		return "cubes", nil
	case corpus.Decks:
		return "decks", nil
	case corpus.Picks:
		return "picks", nil
	default:
		return "", fmt.Errorf("stream %s is not stored in the database", stream)
	}
}

// insertRows appends rows to table inside one transaction. Each row holds the
// column values after position.
func (r *corpusRepository) insertRows(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(position) + 1, 0) FROM "+table).Scan(&next); err != nil {
		return fmt.Errorf("failed to read next %s position: %w", table, err)
	}

	placeholders := strings.Repeat(", ?", len(columns))
	query := fmt.Sprintf("INSERT INTO %s (position, %s) VALUES (?%s)",
		table, strings.Join(columns, ", "), placeholders)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare %s insert: %w", table, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		args := append([]any{next + i}, row...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s insert: %w", table, err)
	}
	return nil
}

func encodeCards(cards []int) (string, error) {
	if cards == nil {
		cards = []int{}
	}
	data, err := json.Marshal(cards)
	if err != nil {
		return "", fmt.Errorf("failed to encode card list: %w", err)
	}
	return string(data), nil
}

func decodeCards(text string) ([]int, error) {
	var cards []int
	if err := json.Unmarshal([]byte(text), &cards); err != nil {
		return nil, fmt.Errorf("failed to decode card list: %w", err)
	}
	return cards, nil
}

// InsertCubes appends cubes after the last stored position.
func (r *corpusRepository) InsertCubes(ctx context.Context, cubes []corpus.CubeRecord) error {
	rows := make([][]any, len(cubes))
	for i, cube := range cubes {
		cards, err := encodeCards(cube)
		if err != nil {
			return err
		}
		rows[i] = []any{cards}
	}
	return r.insertRows(ctx, "cubes", []string{"cards"}, rows)
}

// InsertDecks appends decks after the last stored position.
func (r *corpusRepository) InsertDecks(ctx context.Context, decks []corpus.DeckRecord) error {
	rows := make([][]any, len(decks))
	for i, deck := range decks {
		main, err := encodeCards(deck.Mainboard)
		if err != nil {
			return err
		}
		side, err := encodeCards(deck.Sideboard)
		if err != nil {
			return err
		}
		rows[i] = []any{main, side}
	}
	return r.insertRows(ctx, "decks", []string{"mainboard", "sideboard"}, rows)
}

// InsertPicks appends picks after the last stored position.
func (r *corpusRepository) InsertPicks(ctx context.Context, picks []corpus.PickRecord) error {
	rows := make([][]any, len(picks))
	for i, pick := range picks {
		pool, err := encodeCards(pick.Pool)
		if err != nil {
			return err
		}
		pack, err := encodeCards(pick.Pack)
		if err != nil {
			return err
		}
		rows[i] = []any{pool, pack, pick.Pick}
	}
	return r.insertRows(ctx, "picks", []string{"pool", "pack", "pick"}, rows)
}

// Count returns the number of stored records of a stream.
func (r *corpusRepository) Count(ctx context.Context, stream corpus.Stream) (int, error) {
	table, err := tableFor(stream)
	if err != nil {
		return 0, err
	}

	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// scanFunc decodes one row whose first column is the position.
type scanFunc[T any] func(rows *sql.Rows) (int, T, error)

func scanCube(rows *sql.Rows) (int, corpus.CubeRecord, error) {
	var pos int
	var cards string
	if err := rows.Scan(&pos, &cards); err != nil {
		return 0, nil, err
	}
	cube, err := decodeCards(cards)
	return pos, cube, err
}

func scanDeck(rows *sql.Rows) (int, corpus.DeckRecord, error) {
	var pos int
	var main, side string
	if err := rows.Scan(&pos, &main, &side); err != nil {
		return 0, corpus.DeckRecord{}, err
	}
	var deck corpus.DeckRecord
	var err error
	if deck.Mainboard, err = decodeCards(main); err != nil {
		return 0, deck, err
	}
	deck.Sideboard, err = decodeCards(side)
	return pos, deck, err
}

func scanPick(rows *sql.Rows) (int, corpus.PickRecord, error) {
	var pos int
	var pool, pack string
	var pick corpus.PickRecord
	if err := rows.Scan(&pos, &pool, &pack, &pick.Pick); err != nil {
		return 0, pick, err
	}
	var err error
	if pick.Pool, err = decodeCards(pool); err != nil {
		return 0, pick, err
	}
	pick.Pack, err = decodeCards(pack)
	return pos, pick, err
}

func queryRecords[T any](ctx context.Context, db *sql.DB, scan scanFunc[T], query string, args ...any) (map[int]T, []int, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	byPos := make(map[int]T)
	var order []int
	for rows.Next() {
		pos, rec, err := scan(rows)
		if err != nil {
			return nil, nil, err
		}
		byPos[pos] = rec
		order = append(order, pos)
	}
	return byPos, order, rows.Err()
}

func rangeOf[T any](ctx context.Context, db *sql.DB, table, columns string, scan scanFunc[T], offset, limit int) ([]T, error) {
	if offset < 0 || limit < 0 {
		return nil, fmt.Errorf("invalid %s range offset=%d limit=%d", table, offset, limit)
	}
	query := fmt.Sprintf("SELECT position, %s FROM %s WHERE position >= ? AND position < ? ORDER BY position", columns, table)
	byPos, order, err := queryRecords(ctx, db, scan, query, offset, offset+limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s range: %w", table, err)
	}
	out := make([]T, len(order))
	for i, pos := range order {
		out[i] = byPos[pos]
	}
	return out, nil
}

func recordsAt[T any](ctx context.Context, db *sql.DB, table, columns string, scan scanFunc[T], positions []int) ([]T, error) {
	found := make(map[int]T, len(positions))
	unique := make([]int, 0, len(positions))
	seen := make(map[int]struct{}, len(positions))
	for _, p := range positions {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			unique = append(unique, p)
		}
	}

	for start := 0; start < len(unique); start += maxPositionsPerQuery {
		end := min(start+maxPositionsPerQuery, len(unique))
		chunk := unique[start:end]

		args := make([]any, len(chunk))
		for i, p := range chunk {
			args[i] = p
		}
		query := fmt.Sprintf("SELECT position, %s FROM %s WHERE position IN (?%s)",
			columns, table, strings.Repeat(", ?", len(chunk)-1))

		byPos, _, err := queryRecords(ctx, db, scan, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s by position: %w", table, err)
		}
		for p, rec := range byPos {
			found[p] = rec
		}
	}

	out := make([]T, len(positions))
	for i, p := range positions {
		rec, ok := found[p]
		if !ok {
			return nil, fmt.Errorf("no %s record at position %d", table, p)
		}
		out[i] = rec
	}
	return out, nil
}

// CubeRange returns up to limit cubes starting at offset, in position order.
func (r *corpusRepository) CubeRange(ctx context.Context, offset, limit int) ([]corpus.CubeRecord, error) {
	return rangeOf(ctx, r.db, "cubes", "cards", scanCube, offset, limit)
}

// DeckRange returns up to limit decks starting at offset, in position order.
func (r *corpusRepository) DeckRange(ctx context.Context, offset, limit int) ([]corpus.DeckRecord, error) {
	return rangeOf(ctx, r.db, "decks", "mainboard, sideboard", scanDeck, offset, limit)
}

// PickRange returns up to limit picks starting at offset, in position order.
func (r *corpusRepository) PickRange(ctx context.Context, offset, limit int) ([]corpus.PickRecord, error) {
	return rangeOf(ctx, r.db, "picks", "pool, pack, pick", scanPick, offset, limit)
}

// CubesAt returns the cubes at the given positions, in the given order.
func (r *corpusRepository) CubesAt(ctx context.Context, positions []int) ([]corpus.CubeRecord, error) {
	return recordsAt(ctx, r.db, "cubes", "cards", scanCube, positions)
}

// DecksAt returns the decks at the given positions, in the given order.
func (r *corpusRepository) DecksAt(ctx context.Context, positions []int) ([]corpus.DeckRecord, error) {
	return recordsAt(ctx, r.db, "decks", "mainboard, sideboard", scanDeck, positions)
}

// PicksAt returns the picks at the given positions, in the given order.
func (r *corpusRepository) PicksAt(ctx context.Context, positions []int) ([]corpus.PickRecord, error) {
	return recordsAt(ctx, r.db, "picks", "pool, pack, pick", scanPick, positions)
}

// RecordImport stores an audit row for a completed import.
func (r *corpusRepository) RecordImport(ctx context.Context, imp *Import) error {
	query := `
		INSERT INTO corpus_imports (run_id, source, num_cubes, num_decks, num_picks)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		imp.RunID,
		imp.Source,
		imp.NumCubes,
		imp.NumDecks,
		imp.NumPicks,
	)
	if err != nil {
		return fmt.Errorf("failed to record import: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get import ID: %w", err)
	}
	imp.ID = id
	return nil
}

// ListImports returns all recorded imports, newest first.
func (r *corpusRepository) ListImports(ctx context.Context) ([]*Import, error) {
	query := `
		SELECT id, run_id, source, num_cubes, num_decks, num_picks
		FROM corpus_imports
		ORDER BY id DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list imports: %w", err)
	}
	defer rows.Close()

	var imports []*Import
	for rows.Next() {
		imp := &Import{}
		if err := rows.Scan(&imp.ID, &imp.RunID, &imp.Source, &imp.NumCubes, &imp.NumDecks, &imp.NumPicks); err != nil {
			return nil, fmt.Errorf("failed to scan import: %w", err)
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}
