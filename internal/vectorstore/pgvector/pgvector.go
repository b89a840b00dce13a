// Package pgvector stores the vector index in PostgreSQL using the pgvector
// extension and its cosine distance operator.
package pgvector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"groundchat/internal/domain"
	"groundchat/internal/vectorstore"
)

var tableNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Storage is a VectorIndex over one pgvector table. The table is created on
// first insert, sized to that chunk's vector.
type Storage struct {
	db    *sql.DB
	table string

	mu        sync.Mutex
	dimension int
}

// Open connects to dsn and checks the connection.
func Open(ctx context.Context, dsn, table string) (*Storage, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Storage{db: db, table: table}
	if err := s.loadDimension(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) Close() error { return s.db.Close() }

func (s *Storage) loadDimension(ctx context.Context) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT to_regclass($1) IS NOT NULL`, s.table).Scan(&exists)
	if err != nil || !exists {
		return err
	}
	var dim int
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT vector_dims(embedding) FROM %s ORDER BY seq LIMIT 1`, s.table)).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read dimension: %w", err)
	}
	s.dimension = dim
	return nil
}

func (s *Storage) migrate(ctx context.Context, dim int) error {
	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			seq         BIGSERIAL UNIQUE,
			id          TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			source      TEXT NOT NULL,
			idx         INTEGER NOT NULL,
			text        TEXT NOT NULL,
			embedding   vector(%d) NOT NULL
		)`, s.table, dim),
	}
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}
	return nil
}

func (s *Storage) Insert(ctx context.Context, chunk domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(chunk.Vector) == 0 {
		return fmt.Errorf("%w: chunk %s has no vector", domain.ErrDimensionMismatch, chunk.ID)
	}
	if s.dimension == 0 {
		if err := s.migrate(ctx, len(chunk.Vector)); err != nil {
			return err
		}
		s.dimension = len(chunk.Vector)
	} else if len(chunk.Vector) != s.dimension {
		return fmt.Errorf("%w: chunk %s has %d dimensions, index has %d", domain.ErrDimensionMismatch, chunk.ID, len(chunk.Vector), s.dimension)
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, document_id, source, idx, text, embedding) VALUES ($1, $2, $3, $4, $5, $6::vector)
		 ON CONFLICT (id) DO NOTHING`, s.table),
		chunk.ID, chunk.DocumentID, chunk.Source, chunk.Index, chunk.Text, VectorLiteral(chunk.Vector))
	if err != nil {
		return fmt.Errorf("insert chunk %s: %w", chunk.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateID, chunk.ID)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float64, k int) ([]domain.SearchResult, error) {
	s.mu.Lock()
	dim := s.dimension
	s.mu.Unlock()
	size := 0
	if dim > 0 {
		size = s.Len()
	}
	if err := vectorstore.CheckSearch(size, dim, k, vector); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, document_id, source, idx, text, 1 - (embedding <=> $1::vector) AS score
		 FROM %s ORDER BY embedding <=> $1::vector, seq LIMIT $2`, s.table),
		VectorLiteral(vector), k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var r domain.SearchResult
		if err := rows.Scan(&r.Chunk.ID, &r.Chunk.DocumentID, &r.Chunk.Source, &r.Chunk.Index, &r.Chunk.Text, &r.Score); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		// pgvector yields NaN against a zero vector.
		if math.IsNaN(r.Score) {
			r.Score = 0
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Len returns the number of stored chunks, or 0 if the count cannot be read.
func (s *Storage) Len() int {
	var n int
	if err := s.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Clear drops the table; the next insert recreates it.
func (s *Storage) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, s.table)); err != nil {
		return err
	}
	s.dimension = 0
	return nil
}

// VectorLiteral formats v in pgvector's text input form, e.g. "[1,0.5]".
func VectorLiteral(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
