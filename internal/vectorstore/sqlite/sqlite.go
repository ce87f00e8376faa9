package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"paperindex/internal/domain"
	"paperindex/internal/vectorstore/vecmath"
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	name      TEXT PRIMARY KEY,
	dimension INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
	collection TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
	id         TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	metadata   TEXT NOT NULL,
	document   TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS records_seq ON records(collection, seq);
`

// Storage keeps one named collection in an SQLite file. Nearest-neighbour
// search scans the collection.
type Storage struct {
	db         *sql.DB
	collection string
	dimension  int
}

type Config struct {
	Path       string
	Collection string
}

// Open opens or creates the database at cfg.Path, creating parent
// directories as needed.
func Open(cfg Config) (*Storage, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// one connection: pragmas apply per connection and SQLite has one writer
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &Storage{db: db, collection: cfg.Collection}, nil
}

func (s *Storage) Name() string { return s.collection }

// Init attaches to the collection, creating it with dimension if missing.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO collections(name, dimension) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		s.collection, dimension); err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}
	var existing int
	if err := s.db.QueryRowContext(ctx,
		`SELECT dimension FROM collections WHERE name = ?`, s.collection).Scan(&existing); err != nil {
		return fmt.Errorf("read collection %s: %w", s.collection, err)
	}
	if existing != dimension {
		return fmt.Errorf("collection %s has dimension %d, not %d", s.collection, existing, dimension)
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upserts() bool { return true }

func (s *Storage) Add(ctx context.Context, records []domain.VectorRecord) error {
	if s.dimension == 0 {
		return errors.New("collection not initialised")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records(collection, id, embedding, metadata, document, seq)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM records WHERE collection = ?))
		ON CONFLICT(collection, id) DO UPDATE SET
			embedding = excluded.embedding,
			metadata  = excluded.metadata,
			document  = excluded.document`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if len(r.Embedding) != s.dimension {
			return fmt.Errorf("record %s: vector dimension %d, want %d", r.ID, len(r.Embedding), s.dimension)
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("record %s metadata: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, s.collection, r.ID, vecmath.Encode(r.Embedding), string(meta), r.Document, s.collection); err != nil {
			return fmt.Errorf("upsert %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Storage) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, s.collection)
	for _, id := range ids {
		args = append(args, id)
	}
	q := `DELETE FROM records WHERE collection = ? AND id IN (` + placeholders(len(ids)) + `)`
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

func (s *Storage) Query(ctx context.Context, vector []float32, n int) ([]domain.VectorHit, error) {
	if n <= 0 {
		n = 10
	}
	all, err := s.Get(ctx, nil)
	if err != nil {
		return nil, err
	}
	return vecmath.Nearest(all, vector, n), nil
}

// Get returns records in insertion order; nil ids selects the whole
// collection.
func (s *Storage) Get(ctx context.Context, ids []string) ([]domain.VectorRecord, error) {
	q := `SELECT id, embedding, metadata, document FROM records WHERE collection = ?`
	args := []any{s.collection}
	if ids != nil {
		if len(ids) == 0 {
			return nil, nil
		}
		q += ` AND id IN (` + placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	q += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.VectorRecord
	for rows.Next() {
		var (
			r    domain.VectorRecord
			blob []byte
			meta string
		)
		if err := rows.Scan(&r.ID, &blob, &meta, &r.Document); err != nil {
			return nil, err
		}
		if r.Embedding, err = vecmath.Decode(blob); err != nil {
			return nil, fmt.Errorf("record %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
			return nil, fmt.Errorf("record %s metadata: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Drop deletes the collection and its records.
func (s *Storage) Drop(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE collection = ?`, s.collection); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, s.collection); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.dimension = 0
	return nil
}

func (s *Storage) Close() error { return s.db.Close() }

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
