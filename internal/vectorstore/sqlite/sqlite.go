// Package sqlite persists the vector index in a SQLite file so a corpus can be
// ingested once and served by later runs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"groundchat/internal/domain"
	"groundchat/internal/vectorstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	document_id TEXT NOT NULL,
	source      TEXT NOT NULL,
	idx         INTEGER NOT NULL,
	text        TEXT NOT NULL,
	dim         INTEGER NOT NULL,
	vector      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
`

type row struct {
	Seq        int64  `db:"seq"`
	ID         string `db:"id"`
	DocumentID string `db:"document_id"`
	Source     string `db:"source"`
	Index      int    `db:"idx"`
	Text       string `db:"text"`
	Dim        int    `db:"dim"`
	Vector     string `db:"vector"`
}

// Storage is a VectorIndex backed by a SQLite table. Search is an exact scan
// in insertion order.
type Storage struct {
	db *sqlx.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Storage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sqlx.Connect("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Close() error { return s.db.Close() }

func (s *Storage) Insert(ctx context.Context, chunk domain.Chunk) error {
	if len(chunk.Vector) == 0 {
		return fmt.Errorf("%w: chunk %s has no vector", domain.ErrDimensionMismatch, chunk.ID)
	}
	vec, err := json.Marshal(chunk.Vector)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM chunks WHERE id = ?`, chunk.ID); err != nil {
		return err
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateID, chunk.ID)
	}
	dim, err := dimension(ctx, tx)
	if err != nil {
		return err
	}
	if dim > 0 && dim != len(chunk.Vector) {
		return fmt.Errorf("%w: chunk %s has %d dimensions, index has %d", domain.ErrDimensionMismatch, chunk.ID, len(chunk.Vector), dim)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO chunks (id, document_id, source, idx, text, dim, vector) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		chunk.ID, chunk.DocumentID, chunk.Source, chunk.Index, chunk.Text, len(chunk.Vector), string(vec))
	if err != nil {
		return fmt.Errorf("insert chunk %s: %w", chunk.ID, err)
	}
	return tx.Commit()
}

func (s *Storage) Search(ctx context.Context, vector []float64, k int) ([]domain.SearchResult, error) {
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM chunks ORDER BY seq`); err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	dim := 0
	if len(rows) > 0 {
		dim = rows[0].Dim
	}
	if err := vectorstore.CheckSearch(len(rows), dim, k, vector); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, len(rows))
	for i, r := range rows {
		var v []float64
		if err := json.Unmarshal([]byte(r.Vector), &v); err != nil {
			return nil, fmt.Errorf("decode vector of chunk %s: %w", r.ID, err)
		}
		results[i] = domain.SearchResult{
			Chunk: domain.Chunk{
				ID:         r.ID,
				DocumentID: r.DocumentID,
				Source:     r.Source,
				Index:      r.Index,
				Text:       r.Text,
				Vector:     v,
			},
			Score: vectorstore.Cosine(vector, v),
		}
	}
	return vectorstore.TopK(results, k), nil
}

// Len returns the number of stored chunks, or 0 if the count cannot be read.
func (s *Storage) Len() int {
	var n int
	if err := s.db.Get(&n, `SELECT COUNT(*) FROM chunks`); err != nil {
		return 0
	}
	return n
}

func (s *Storage) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks`)
	return err
}

func dimension(ctx context.Context, tx *sqlx.Tx) (int, error) {
	var dim int
	err := tx.GetContext(ctx, &dim, `SELECT dim FROM chunks ORDER BY seq LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return dim, err
}
