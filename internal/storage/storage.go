// Package storage defines the persistence interface for documents, chunks,
// and vector id allocation.
package storage

import (
	"context"
	"errors"

	"github.com/cortexbase/cortex/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Storage defines document and chunk persistence. All writes are append-only;
// documents and chunks are never updated or deleted.
type Storage interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)

	// Chunk operations
	BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error
	GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.Chunk, error)
	// GetChunksByVectorIDs returns a mapping vector_id -> chunk for the given
	// ids in a single query. Ids with no chunk are simply absent from the result.
	GetChunksByVectorIDs(ctx context.Context, vectorIDs []int64) (map[int64]*models.Chunk, error)

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}

// Allocator issues globally unique vector ids backed by a durable counter.
type Allocator interface {
	// AllocateVectorIDs returns n contiguous ids, strictly greater than every
	// previously allocated id. Safe under concurrent callers: the counter
	// increment is a single atomic operation against durable storage. The
	// first allocation returns [1..n]. Allocated ids are never reused, even
	// if the ingestion that requested them later fails.
	AllocateVectorIDs(ctx context.Context, n int) ([]int64, error)
}
