package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeFlat uses brute-force search over a single durable blob.
	// Good for small to medium corpora (<100k vectors).
	IndexTypeFlat IndexType = "flat"
	// IndexTypeFAISS uses FAISS for efficient ANN search. Good for large datasets.
	// Requires FAISS library and build tag -tags=faiss.
	IndexTypeFAISS IndexType = "faiss"
)

// NewIndex creates a vector index of the specified type backed by the blob at
// path. Supported types: "flat" (default), "faiss".
// FAISS requires building with -tags=faiss and having the FAISS library installed.
func NewIndex(indexType string, dimensions int, path string) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeFlat, "":
		return OpenFlatIndex(dimensions, path)
	case IndexTypeFAISS:
		return OpenFAISSIndex(dimensions, path)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: flat, faiss)", indexType)
	}
}
