// Package vectordb provides description store adapters.
// Adapters implementing ports.DescriptionStore.
package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/0xcro3dile/shotfind/internal/domain/entities"
	"github.com/0xcro3dile/shotfind/internal/domain/ports"
)

// SQLiteStore implements ports.DescriptionStore with SQLite persistence and
// brute-force cosine ranking. Needs no server process.
type SQLiteStore struct {
	mu       sync.RWMutex
	db       *sql.DB
	embedder ports.EmbeddingService
	dataPath string
}

// NewSQLiteStore opens (or creates) dataPath/descriptions.db.
func NewSQLiteStore(dataPath string, embedder ports.EmbeddingService) (*SQLiteStore, error) {
	if dataPath == "" {
		dataPath = "./data"
	}

	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, "descriptions.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &SQLiteStore{
		db:       db,
		embedder: embedder,
		dataPath: dataPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return store, nil
}

// initSchema creates the necessary tables.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS descriptions (
		id TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		source TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the stored records among ids.
func (s *SQLiteStore) Get(ctx context.Context, ids []string) ([]entities.DescriptionRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document, source FROM descriptions WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying descriptions: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Add embeds the document and inserts the record. The primary key rejects
// an existing id, reported as ports.ErrDuplicateID.
func (s *SQLiteStore) Add(ctx context.Context, rec entities.DescriptionRecord) error {
	vec, err := s.embedder.Embed(ctx, rec.Document)
	if err != nil {
		return fmt.Errorf("embedding description: %w", err)
	}
	embeddingJSON, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("encoding embedding: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO descriptions (id, document, source, embedding) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Document, rec.Source, embeddingJSON)
	if isConstraintError(err) {
		return ports.ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("inserting description: %w", err)
	}
	return nil
}

func isConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

// Query ranks every stored description by cosine distance to text.
func (s *SQLiteStore) Query(ctx context.Context, text string, n int) ([]entities.QueryResult, error) {
	query, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, document, embedding FROM descriptions`)
	if err != nil {
		return nil, fmt.Errorf("querying descriptions: %w", err)
	}
	defer rows.Close()

	var results []entities.QueryResult
	for rows.Next() {
		var r entities.QueryResult
		var embeddingJSON []byte
		if err := rows.Scan(&r.ID, &r.Document, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		var vec []float32
		if err := json.Unmarshal(embeddingJSON, &vec); err != nil {
			continue // Skip corrupted embeddings
		}
		r.Distance = 1 - cosineSimilarity(query, vec)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if n > 0 && len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// All returns every stored record, oldest first.
func (s *SQLiteStore) All(ctx context.Context) ([]entities.DescriptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, document, source FROM descriptions ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying descriptions: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Delete removes records by id.
func (s *SQLiteStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM descriptions WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("deleting %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanRecords(rows *sql.Rows) ([]entities.DescriptionRecord, error) {
	var records []entities.DescriptionRecord
	for rows.Next() {
		var rec entities.DescriptionRecord
		if err := rows.Scan(&rec.ID, &rec.Document, &rec.Source); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// cosineSimilarity calculates cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
