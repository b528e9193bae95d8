package generate

import (
	"fmt"
	"strings"

	"github.com/cortexbase/cortex/internal/models"
)

// BuildPrompt assembles the generation prompt from the question and retrieved
// sources. Each source is labeled with its filename (falling back to document
// id) so the model can cite where an answer came from.
func BuildPrompt(query string, sources []*models.RetrievedSource) string {
	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		label := s.Filename
		if label == "" {
			label = s.DocID
		}
		if label == "" {
			label = "unknown"
		}
		parts = append(parts, fmt.Sprintf("[%s] %s", label, s.Chunk))
	}
	context := strings.Join(parts, "\n\n")

	return fmt.Sprintf(`You are an assistant. Use ONLY the provided CONTEXT to answer the question. If the context does not contain the answer, say "I don't know."

CONTEXT:
%s

QUESTION:
%s

Answer concisely and at the end, list which sources (by filename) you used.`, context, query)
}
