/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package indexstore persists a built vector index as a SQLite snapshot so
// the corpus does not have to be re-embedded on every run.
package indexstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"pgedge-nl2sql/internal/logging"
	"pgedge-nl2sql/internal/vectorindex"
)

// ErrNoSnapshot is returned by Load when nothing has been saved yet
var ErrNoSnapshot = errors.New("no index snapshot")

// Meta describes a saved snapshot
type Meta struct {
	Model          string
	Dimensions     int
	Documents      int
	SourceChecksum string // checksum of the dataset file the index was built from
	SavedAt        time.Time
}

// Store is a SQLite file holding one index snapshot
type Store struct {
	db *sql.DB
}

// Open opens or creates the snapshot database
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS documents (
        position INTEGER PRIMARY KEY,
        content TEXT NOT NULL,
        embedding BLOB NOT NULL
    );

    CREATE TABLE IF NOT EXISTS index_meta (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL
    );
    `

	_, err := s.db.Exec(schema)
	return err
}

// Save replaces the stored snapshot with idx in a single transaction
func (s *Store) Save(ctx context.Context, idx *vectorindex.Index, sourceChecksum string) error {
	if idx == nil {
		return vectorindex.ErrIndexUnavailable
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return fmt.Errorf("failed to clear documents: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM index_meta"); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO documents (position, content, embedding) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < idx.Len(); i++ {
		content, vector := idx.Document(i)
		if _, err := stmt.ExecContext(ctx, i, content, serializeEmbedding(vector)); err != nil {
			return fmt.Errorf("failed to insert document %d: %w", i, err)
		}
	}

	meta := map[string]string{
		"model":           idx.Model(),
		"dimensions":      strconv.Itoa(idx.Dimensions()),
		"documents":       strconv.Itoa(idx.Len()),
		"source_checksum": sourceChecksum,
		"saved_at":        time.Now().UTC().Format(time.RFC3339),
	}
	for key, value := range meta {
		if _, err := tx.ExecContext(ctx, "INSERT INTO index_meta (key, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("failed to write %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.Info("index_snapshot_saved", "model", idx.Model(), "documents", idx.Len())
	return nil
}

// Load reads the stored snapshot back into an index
func (s *Store) Load(ctx context.Context) (*vectorindex.Index, Meta, error) {
	meta, err := s.readMeta(ctx)
	if err != nil {
		return nil, Meta{}, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT content, embedding FROM documents ORDER BY position")
	if err != nil {
		return nil, Meta{}, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var documents []string
	var vectors [][]float64
	for rows.Next() {
		var content string
		var blob []byte
		if err := rows.Scan(&content, &blob); err != nil {
			return nil, Meta{}, fmt.Errorf("failed to scan document: %w", err)
		}
		vector := deserializeEmbedding(blob)
		if vector == nil {
			return nil, Meta{}, fmt.Errorf("document %d has a corrupt embedding", len(documents))
		}
		documents = append(documents, content)
		vectors = append(vectors, vector)
	}
	if err := rows.Err(); err != nil {
		return nil, Meta{}, fmt.Errorf("failed to read documents: %w", err)
	}

	if len(documents) != meta.Documents {
		return nil, Meta{}, fmt.Errorf("snapshot has %d documents, metadata says %d", len(documents), meta.Documents)
	}

	idx, err := vectorindex.New(meta.Model, documents, vectors)
	if err != nil {
		return nil, Meta{}, err
	}

	logging.Info("index_snapshot_loaded", "model", meta.Model, "documents", idx.Len())
	return idx, meta, nil
}

func (s *Store) readMeta(ctx context.Context) (Meta, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM index_meta")
	if err != nil {
		return Meta{}, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Meta{}, fmt.Errorf("failed to scan metadata: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return Meta{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	if _, ok := values["model"]; !ok {
		return Meta{}, ErrNoSnapshot
	}

	meta := Meta{
		Model:          values["model"],
		SourceChecksum: values["source_checksum"],
	}
	if meta.Dimensions, err = strconv.Atoi(values["dimensions"]); err != nil {
		return Meta{}, fmt.Errorf("invalid dimensions in snapshot: %w", err)
	}
	if meta.Documents, err = strconv.Atoi(values["documents"]); err != nil {
		return Meta{}, fmt.Errorf("invalid document count in snapshot: %w", err)
	}
	if savedAt, err := time.Parse(time.RFC3339, values["saved_at"]); err == nil {
		meta.SavedAt = savedAt
	}

	return meta, nil
}

// Checksum returns the hex SHA-256 of the file at path
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChecksumBytes returns the hex SHA-256 of data, matching Checksum for a
// file with the same contents
func ChecksumBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// serializeEmbedding stores a vector as little-endian float32 values
func serializeEmbedding(embedding []float64) []byte {
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	}
	return buf
}

// deserializeEmbedding converts bytes back to a vector
func deserializeEmbedding(data []byte) []float64 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}

	embedding := make([]float64, len(data)/4)
	for i := range embedding {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		embedding[i] = float64(math.Float32frombits(bits))
	}
	return embedding
}
