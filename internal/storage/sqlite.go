package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cortexbase/cortex/internal/models"
)

// SQLiteStorage implements Storage and Allocator using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		type TEXT NOT NULL,
		source TEXT,
		extra TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		text TEXT NOT NULL,
		start_pos INTEGER NOT NULL,
		end_pos INTEGER NOT NULL,
		metadata TEXT,
		vector_id INTEGER NOT NULL UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (doc_id) REFERENCES documents(id)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_vector_id ON chunks(vector_id);

	CREATE TABLE IF NOT EXISTS vector_id_counter (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_value INTEGER NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateDocument inserts a document. The created_at timestamp is set here.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	extraJSON, err := json.Marshal(doc.Extra)
	if err != nil {
		return fmt.Errorf("failed to marshal extra: %w", err)
	}

	doc.CreatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, filename, type, source, extra, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, string(doc.Type), doc.Source, string(extraJSON), doc.CreatedAt,
	)
	return err
}

// GetDocument returns a document by ID, or ErrNotFound.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	var docType, extraJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, type, source, extra, created_at
		 FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Filename, &docType, &doc.Source, &extraJSON, &doc.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	doc.Type = models.DocumentType(docType)
	if extraJSON != "" && extraJSON != "null" {
		if err := json.Unmarshal([]byte(extraJSON), &doc.Extra); err != nil {
			return nil, fmt.Errorf("failed to unmarshal extra: %w", err)
		}
	}
	return &doc, nil
}

// ListDocuments returns documents with offset and limit, newest first.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, type, source, extra, created_at
		 FROM documents ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		var docType, extraJSON string
		if err := rows.Scan(&doc.ID, &doc.Filename, &docType, &doc.Source, &extraJSON, &doc.CreatedAt); err != nil {
			return nil, err
		}
		doc.Type = models.DocumentType(docType)
		if extraJSON != "" && extraJSON != "null" {
			_ = json.Unmarshal([]byte(extraJSON), &doc.Extra)
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// BatchCreateChunks inserts chunks in a single transaction.
func (s *SQLiteStorage) BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, doc_id, text, start_pos, end_pos, metadata, vector_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, chunk := range chunks {
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		chunk.CreatedAt = now
		if _, err := stmt.ExecContext(ctx,
			chunk.ID, chunk.DocID, chunk.Text, chunk.StartPos, chunk.EndPos,
			string(metadataJSON), chunk.VectorID, chunk.CreatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetChunksByDocumentID returns all chunks for a document in source-text order.
func (s *SQLiteStorage) GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, doc_id, text, start_pos, end_pos, metadata, vector_id, created_at
		 FROM chunks WHERE doc_id = ? ORDER BY start_pos`,
		docID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// GetChunksByVectorIDs returns a mapping vector_id -> chunk in one query.
// Missing ids are absent from the result, not an error.
func (s *SQLiteStorage) GetChunksByVectorIDs(ctx context.Context, vectorIDs []int64) (map[int64]*models.Chunk, error) {
	result := make(map[int64]*models.Chunk, len(vectorIDs))
	if len(vectorIDs) == 0 {
		return result, nil
	}

	placeholders := strings.Repeat("?,", len(vectorIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(vectorIDs))
	for i, id := range vectorIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, doc_id, text, start_pos, end_pos, metadata, vector_id, created_at
		 FROM chunks WHERE vector_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		result[chunk.VectorID] = chunk
	}
	return result, rows.Err()
}

func scanChunk(rows *sql.Rows) (*models.Chunk, error) {
	var chunk models.Chunk
	var metadataJSON string
	if err := rows.Scan(&chunk.ID, &chunk.DocID, &chunk.Text, &chunk.StartPos, &chunk.EndPos,
		&metadataJSON, &chunk.VectorID, &chunk.CreatedAt); err != nil {
		return nil, err
	}
	if metadataJSON != "" && metadataJSON != "null" {
		if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &chunk, nil
}

// AllocateVectorIDs returns n contiguous ids from the durable counter.
// The increment runs as a single statement (SQLite executes each statement in
// its own transaction), so concurrent allocations can never observe
// overlapping ranges. next_value stores the highest allocated id; the first
// allocation creates the row and returns [1..n].
func (s *SQLiteStorage) AllocateVectorIDs(ctx context.Context, n int) ([]int64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("allocation size must be positive, got %d", n)
	}

	var high int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO vector_id_counter (id, next_value) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET next_value = next_value + excluded.next_value
		 RETURNING next_value`,
		n,
	).Scan(&high)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate vector ids: %w", err)
	}

	ids := make([]int64, n)
	for i := range ids {
		ids[i] = high - int64(n) + int64(i) + 1
	}
	return ids, nil
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
