package models

// RetrievedSource is a single ranked retrieval hit with document attribution.
// Filename and Type are empty when the parent document could not be resolved;
// the hit is still returned (partial attribution over total failure).
type RetrievedSource struct {
	VectorID int64                  `json:"vector_id"`
	Score    float64                `json:"score"`
	Chunk    string                 `json:"chunk"`
	DocID    string                 `json:"doc_id"`
	Filename string                 `json:"filename,omitempty"`
	Type     DocumentType           `json:"type,omitempty"`
	ChunkID  string                 `json:"chunk_id"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// QueryResponse is the answer-plus-sources payload for a generated query.
type QueryResponse struct {
	Answer  string             `json:"answer"`
	Sources []*RetrievedSource `json:"sources"`
}
