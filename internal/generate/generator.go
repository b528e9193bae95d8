// Package generate provides answer generation from retrieved context. Text
// generation itself is an external collaborator; this package defines the
// contract, the prompt assembly, and an HTTP transport.
package generate

import "context"

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
