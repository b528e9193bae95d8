// Package ingest provides the ingestion coordinator: chunking a source
// document, allocating vector ids, embedding, and writing the metadata store
// and the vector index in the order that keeps the two stores consistent.
package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cortexbase/cortex/internal/embedding"
	"github.com/cortexbase/cortex/internal/models"
	"github.com/cortexbase/cortex/internal/storage"
	"github.com/cortexbase/cortex/internal/vector"
)

// Store is the metadata persistence the ingestor needs: the append-only
// record store plus the vector id allocator.
type Store interface {
	storage.Storage
	storage.Allocator
}

// Ingestor coordinates ingestion of one source document.
type Ingestor struct {
	store    Store
	embedder embedding.Embedder
	index    vector.Index
	chunker  *Chunker
	logger   *zap.Logger // optional; when set, logs debug events
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(ing *Ingestor) { ing.logger = l }
}

// NewIngestor creates an ingestor with the given dependencies.
func NewIngestor(store Store, embedder embedding.Embedder, index vector.Index, chunker *Chunker, opts ...Option) *Ingestor {
	ing := &Ingestor{
		store:    store,
		embedder: embedder,
		index:    index,
		chunker:  chunker,
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// Ingest indexes one source document from its extracted text.
//
// Write ordering is the consistency mechanism: the document record first (so
// chunks always reference a valid doc), then chunk metadata, then the vector
// add+flush last. A crash between the last two steps leaves orphan metadata
// whose vector ids never resolve at query time, which is detectable and
// harmless; the reverse order would leave unattributed vectors that silently
// surface garbage hits. Vector ids burned by a failed ingest are never reused.
func (ing *Ingestor) Ingest(ctx context.Context, text, filename string, docType models.DocumentType, extra map[string]interface{}) (*models.IngestResult, error) {
	doc := &models.Document{
		ID:       uuid.New().String(),
		Filename: filename,
		Type:     docType,
		Source:   "upload",
		Extra:    extra,
	}
	return ing.ingestDocument(ctx, doc, text)
}

// ingestDocument runs the ingestion pipeline for a pre-built document record.
func (ing *Ingestor) ingestDocument(ctx context.Context, doc *models.Document, text string) (*models.IngestResult, error) {
	if err := ing.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	spans := ing.chunker.Chunk(text)
	if len(spans) == 0 {
		if ing.logger != nil {
			ing.logger.Debug("ingest produced no chunks", zap.String("doc_id", doc.ID), zap.String("filename", doc.Filename))
		}
		return &models.IngestResult{DocID: doc.ID, ChunkCount: 0}, nil
	}

	// One contiguous block keeps the id->chunk correspondence positional.
	vectorIDs, err := ing.store.AllocateVectorIDs(ctx, len(spans))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate vector ids: %w", err)
	}

	texts := make([]string, len(spans))
	for i, s := range spans {
		texts[i] = s.Text
	}
	embeddings, err := ing.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(spans) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(spans))
	}

	chunks := make([]*models.Chunk, len(spans))
	for i, s := range spans {
		chunks[i] = &models.Chunk{
			ID:       uuid.New().String(),
			DocID:    doc.ID,
			Text:     s.Text,
			StartPos: s.Start,
			EndPos:   s.End,
			VectorID: vectorIDs[i],
		}
	}
	if err := ing.store.BatchCreateChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}

	if err := ing.index.Add(ctx, vectorIDs, embeddings); err != nil {
		return nil, fmt.Errorf("failed to index vectors: %w", err)
	}

	if ing.logger != nil {
		ing.logger.Debug("document ingested",
			zap.String("doc_id", doc.ID),
			zap.String("filename", doc.Filename),
			zap.Int("chunks", len(chunks)),
			zap.Int64("first_vector_id", vectorIDs[0]),
		)
	}
	return &models.IngestResult{DocID: doc.ID, ChunkCount: len(chunks)}, nil
}
