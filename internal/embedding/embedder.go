// Package embedding provides text embedding clients and caching. The
// embedding function itself is an external collaborator; this package only
// defines the contract and transport.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations must return
// L2-normalized vectors so that inner product equals cosine similarity.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds all texts in one call. Batching is a performance
	// necessity given per-call model overhead, not an optimization.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
