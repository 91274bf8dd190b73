// Package store provides a SQLite-backed persistent embedding store.
//
// It sits under the in-memory LRU as a second-level cache so embeddings
// survive restarts; the expensive part of metric mapping is inference, not
// lookup. Vectors are complete before they are written, never partial.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists embeddings keyed by normalized label text.
type Store struct {
	db *sql.DB
}

// New opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS embeddings (
		text TEXT PRIMARY KEY,
		dims INTEGER NOT NULL,
		vector BLOB NOT NULL,
		origin TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Get returns the stored embedding for text. Read errors and undecodable
// rows are treated as misses; the store boundary never aborts a mapping
// request.
func (s *Store) Get(ctx context.Context, text string) ([]float32, bool) {
	var dims int
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT dims, vector FROM embeddings WHERE text = ?", text,
	).Scan(&dims, &blob)
	if err != nil {
		return nil, false
	}
	vec, err := decodeVector(blob, dims)
	if err != nil {
		return nil, false
	}
	return vec, true
}

// Put stores a complete embedding for text, replacing any previous one.
func (s *Store) Put(ctx context.Context, text string, vec []float32, origin string) error {
	if len(vec) == 0 {
		return fmt.Errorf("refusing to store empty vector for %q", text)
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO embeddings (text, dims, vector, origin) VALUES (?, ?, ?, ?)",
		text, len(vec), encodeVector(vec), origin,
	)
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

// Count returns the number of stored embeddings.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// encodeVector packs a vector as little-endian float32 bytes.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector unpacks little-endian float32 bytes; the byte length must
// match dims exactly so a truncated row cannot yield a half-read vector.
func decodeVector(blob []byte, dims int) ([]float32, error) {
	if dims <= 0 || len(blob) != 4*dims {
		return nil, fmt.Errorf("vector blob size mismatch: %d bytes for %d dims", len(blob), dims)
	}
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
