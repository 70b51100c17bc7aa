// SQLite embedding storage.
//
// Information Hiding:
// - SQLite connection management hidden behind EmbeddingStore
// - Schema and vector blob encoding encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// EmbeddingsDBFile is the database file name inside an embedding cache dir.
const EmbeddingsDBFile = "embeddings.db"

// SqliteStorage implements EmbeddingStore using SQLite.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type SqliteStorage struct {
	db *sql.DB
}

var _ EmbeddingStore = (*SqliteStorage)(nil)

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStorage, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// OpenEmbeddingCache opens the embedding database inside cacheDir.
func OpenEmbeddingCache(cacheDir string) (*SqliteStorage, error) {
	return OpenSqlite(filepath.Join(cacheDir, EmbeddingsDBFile))
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStorage, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// Each new connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// Close closes the database connection.
func (s *SqliteStorage) Close() error {
	return s.db.Close()
}

func (s *SqliteStorage) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS embedding_sets (
			cache_key TEXT PRIMARY KEY,
			vector_count INTEGER NOT NULL,
			dimension INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS embeddings (
			cache_key TEXT NOT NULL,
			position INTEGER NOT NULL,
			vector BLOB NOT NULL,
			PRIMARY KEY (cache_key, position),
			FOREIGN KEY (cache_key) REFERENCES embedding_sets(cache_key) ON DELETE CASCADE
		);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// LoadEmbeddings returns the vectors stored under key in corpus order.
func (s *SqliteStorage) LoadEmbeddings(ctx context.Context, key string) ([][]float32, bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT vector_count FROM embedding_sets WHERE cache_key = ?", key,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query embedding set: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT vector FROM embeddings WHERE cache_key = ? ORDER BY position", key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	vectors := make([][]float32, 0, count)
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, false, fmt.Errorf("failed to scan embedding: %w", err)
		}
		v, err := decodeVector(blob)
		if err != nil {
			return nil, false, err
		}
		vectors = append(vectors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to read embeddings: %w", err)
	}

	if len(vectors) != count {
		// A partially written set is treated as absent.
		return nil, false, nil
	}
	return vectors, true, nil
}

// SaveEmbeddings replaces the vectors stored under key in one transaction.
func (s *SqliteStorage) SaveEmbeddings(ctx context.Context, key string, vectors [][]float32) error {
	dimension := 0
	if len(vectors) > 0 {
		dimension = len(vectors[0])
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// defer tx.Rollback() is safe even after Commit() - it becomes a no-op
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM embeddings WHERE cache_key = ?", key); err != nil {
		return fmt.Errorf("failed to clear old embeddings: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO embedding_sets (cache_key, vector_count, dimension, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		   vector_count = excluded.vector_count,
		   dimension = excluded.dimension,
		   created_at = excluded.created_at`,
		key, len(vectors), dimension, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("failed to record embedding set: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO embeddings (cache_key, position, vector) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for i, v := range vectors {
		if _, err := stmt.ExecContext(ctx, key, i, encodeVector(v)); err != nil {
			return fmt.Errorf("failed to insert embedding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
