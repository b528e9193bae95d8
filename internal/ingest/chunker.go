package ingest

import (
	"fmt"
	"strings"
)

// Span is one chunk of source text. Start and End are the byte offsets of the
// chunk window into the source (before whitespace trimming); Text is the
// trimmed slice. Spans are emitted in source-text order, which downstream
// attribution depends on.
type Span struct {
	Start int
	End   int
	Text  string
}

// Chunker splits text into overlapping fixed-size windows with position metadata.
type Chunker struct {
	chunkSize int
	overlap   int
}

// NewChunker creates a chunker. chunkSize must be positive and overlap must
// satisfy 0 <= overlap < chunkSize; anything else is a caller error (an
// overlap >= chunkSize would never advance the window).
func NewChunker(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be in [0, chunk size), got %d for chunk size %d", overlap, chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Chunk splits text left to right. Each window is chunkSize bytes (clipped at
// the end of text), trimmed of surrounding whitespace, and skipped entirely if
// empty after trimming. The window start advances by chunkSize-overlap.
// Empty input yields no spans.
func (c *Chunker) Chunk(text string) []Span {
	var spans []Span
	step := c.chunkSize - c.overlap
	for start := 0; start < len(text); start += step {
		end := start + c.chunkSize
		if end > len(text) {
			end = len(text)
		}
		trimmed := strings.TrimSpace(text[start:end])
		if trimmed != "" {
			spans = append(spans, Span{Start: start, End: end, Text: trimmed})
		}
	}
	return spans
}
