// Package models defines core data structures for documents, chunks, and retrieval results.
package models

import "time"

// DocumentType identifies the kind of source a document was extracted from.
type DocumentType string

const (
	DocumentTypePDF   DocumentType = "pdf"
	DocumentTypeAudio DocumentType = "audio"
	DocumentTypeImage DocumentType = "image"
	DocumentTypeText  DocumentType = "text"
)

// Document represents an ingested source file. Documents are immutable after
// creation; there is no update or delete path.
type Document struct {
	ID        string                 `json:"id" db:"id"`
	Filename  string                 `json:"filename" db:"filename"`
	Type      DocumentType           `json:"type" db:"type"`
	Source    string                 `json:"source,omitempty" db:"source"`
	Extra     map[string]interface{} `json:"extra,omitempty" db:"extra"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// Chunk is a bounded contiguous slice of a document's extracted text, the unit
// of embedding and retrieval. StartPos and EndPos are byte offsets of the
// chunk window into the source text (before whitespace trimming). VectorID is
// the join key to the vector index and is unique for the lifetime of the
// system.
type Chunk struct {
	ID        string                 `json:"id" db:"id"`
	DocID     string                 `json:"doc_id" db:"doc_id"`
	Text      string                 `json:"text" db:"text"`
	StartPos  int                    `json:"start_pos" db:"start_pos"`
	EndPos    int                    `json:"end_pos" db:"end_pos"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	VectorID  int64                  `json:"vector_id" db:"vector_id"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// IngestResult is returned by the ingestion coordinator.
type IngestResult struct {
	DocID      string `json:"doc_id"`
	ChunkCount int    `json:"chunk_count"`
}
