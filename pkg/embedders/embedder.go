// Package embedders provides text embedding for document indexing and search.
package embedders

import "context"

// Embedder converts text into a vector for similarity search.
type Embedder interface {
	// Embed returns the embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any underlying resources.
	Close() error
}
