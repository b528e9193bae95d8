// Package retrieval provides the retrieval coordinator: query embedding,
// top-k vector search, and batched metadata resolution into ranked,
// attributed source passages.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cortexbase/cortex/internal/embedding"
	"github.com/cortexbase/cortex/internal/models"
	"github.com/cortexbase/cortex/internal/storage"
	"github.com/cortexbase/cortex/internal/vector"
)

// Retriever turns a natural-language query into ranked source chunks.
type Retriever struct {
	store    storage.Storage
	embedder embedding.Embedder
	index    vector.Index
	logger   *zap.Logger // optional; when set, logs debug events
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// NewRetriever creates a retriever with the given dependencies.
func NewRetriever(store storage.Storage, embedder embedding.Embedder, index vector.Index, opts ...Option) *Retriever {
	r := &Retriever{
		store:    store,
		embedder: embedder,
		index:    index,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve embeds the query, searches the vector index for the topK nearest
// chunks, and resolves their metadata. Results are in descending score order.
//
// Degradation rules: a vector id with no chunk record (orphan from a partial
// ingest) is dropped silently; a chunk whose parent document cannot be
// resolved keeps its hit with empty filename/type. An empty or never-populated
// index yields an empty slice, not an error. Repeated calls against an
// unmodified store return identical ordered results.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]*models.RetrievedSource, error) {
	queryEmbedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := r.index.Search(ctx, queryEmbedding, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	if len(hits) == 0 {
		return []*models.RetrievedSource{}, nil
	}

	vectorIDs := make([]int64, len(hits))
	for i, h := range hits {
		vectorIDs[i] = h.ID
	}
	// One batched fetch for all hit chunks, never per-hit lookups.
	chunksByVectorID, err := r.store.GetChunksByVectorIDs(ctx, vectorIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chunks: %w", err)
	}

	docs := make(map[string]*models.Document)
	results := make([]*models.RetrievedSource, 0, len(hits))
	for _, hit := range hits {
		chunk, ok := chunksByVectorID[hit.ID]
		if !ok {
			if r.logger != nil {
				r.logger.Debug("dropping unresolvable vector id", zap.Int64("vector_id", hit.ID))
			}
			continue
		}
		source := &models.RetrievedSource{
			VectorID: hit.ID,
			Score:    hit.Score,
			Chunk:    chunk.Text,
			DocID:    chunk.DocID,
			ChunkID:  chunk.ID,
			Metadata: chunk.Metadata,
		}
		doc, ok := docs[chunk.DocID]
		if !ok {
			doc, err = r.store.GetDocument(ctx, chunk.DocID)
			if err != nil {
				// Partial attribution is preferred over failing the retrieval.
				doc = nil
			}
			docs[chunk.DocID] = doc
		}
		if doc != nil {
			source.Filename = doc.Filename
			source.Type = doc.Type
		}
		results = append(results, source)
	}
	return results, nil
}
