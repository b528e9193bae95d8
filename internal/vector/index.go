// Package vector provides durable vector indices and similarity search.
package vector

import "context"

// Index defines vector storage and approximate top-k similarity search.
// Ids are the integer vector ids issued by the identifier allocator; vectors
// are expected to be L2-normalized so that inner product equals cosine
// similarity.
type Index interface {
	// Add inserts all entries and flushes the index to durable storage before
	// returning. Duplicate ids and dimension mismatches are rejected with no
	// entry written.
	Add(ctx context.Context, ids []int64, vectors [][]float32) error
	// Search returns up to k nearest neighbors by inner product, descending
	// by score. Fewer than k results are returned as-is, never padded. An
	// empty index returns an empty result, not an error.
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Size() int
	Close() error
}

// Result is a single vector search hit.
type Result struct {
	ID    int64
	Score float64 // Inner product (cosine similarity for normalized vectors)
}
