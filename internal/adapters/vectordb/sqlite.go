package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/0xcro3dile/ragstream/internal/domain/entities"
)

// SQLiteIndex persists chunks and embeddings in a single SQLite file so the
// store survives restarts. Search is a brute-force scan.
type SQLiteIndex struct {
	db *sql.DB
}

// NewSQLiteIndex opens (or creates) dataPath/vectors.db.
func NewSQLiteIndex(dataPath string) (*SQLiteIndex, error) {
	if dataPath == "" {
		dataPath = "./data"
	}

	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dsn := "file:" + filepath.Join(dataPath, "vectors.db") + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	idx := &SQLiteIndex{db: db}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return idx, nil
}

func (s *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL UNIQUE,
		content TEXT NOT NULL,
		file_name TEXT NOT NULL,
		metadata TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_file_name ON chunks(file_name);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Insert writes chunks in one transaction.
func (s *SQLiteIndex) Insert(ctx context.Context, chunks []entities.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertChunks(ctx, tx, chunks); err != nil {
		return err
	}
	return tx.Commit()
}

// Replace deletes and inserts in the same transaction.
func (s *SQLiteIndex) Replace(ctx context.Context, fileName string, chunks []entities.Chunk) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE file_name = ?", fileName)
	if err != nil {
		return 0, fmt.Errorf("deleting %s: %w", fileName, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := insertChunks(ctx, tx, chunks); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(removed), nil
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []entities.Chunk) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, seq, content, file_name, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		embeddingJSON, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}
		metaJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}

		_, err = stmt.ExecContext(ctx,
			chunk.ID,
			parseSeq(chunk.ID),
			chunk.Text,
			chunk.Metadata.FileName,
			string(metaJSON),
			embeddingJSON,
		)
		if err != nil {
			return fmt.Errorf("inserting chunk %s: %w", chunk.ID, err)
		}
	}
	return nil
}

// Nearest loads every chunk and ranks them in Go.
func (s *SQLiteIndex) Nearest(ctx context.Context, embedding []float32, k int) ([]Hit, error) {
	chunks, err := s.load(ctx, true)
	if err != nil {
		return nil, err
	}
	return rank(chunks, embedding, k), nil
}

func (s *SQLiteIndex) All(ctx context.Context) ([]entities.Chunk, error) {
	return s.load(ctx, false)
}

func (s *SQLiteIndex) load(ctx context.Context, withEmbedding bool) ([]entities.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, metadata, embedding
		FROM chunks
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []entities.Chunk
	for rows.Next() {
		var (
			chunk         entities.Chunk
			metaJSON      string
			embeddingJSON []byte
		)
		if err := rows.Scan(&chunk.ID, &chunk.Text, &metaJSON, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata of %s: %w", chunk.ID, err)
		}
		if withEmbedding {
			if err := json.Unmarshal(embeddingJSON, &chunk.Embedding); err != nil {
				return nil, fmt.Errorf("decoding embedding of %s: %w", chunk.ID, err)
			}
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// Count returns the number of stored chunks.
func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count)
	return count, err
}

func (s *SQLiteIndex) NextSeq(ctx context.Context) (int, error) {
	var next int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq) + 1, 0) FROM chunks").Scan(&next)
	return next, err
}

func (s *SQLiteIndex) DeleteWhere(ctx context.Context, fileName string) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE file_name = ?", fileName)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Reset removes all rows.
func (s *SQLiteIndex) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks")
	return err
}

// Close closes the database connection.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}
