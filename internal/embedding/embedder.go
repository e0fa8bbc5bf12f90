// Package embedding turns product and user-preference text into vectors
// for content-based similarity search.
package embedding

import "context"

// Embedder generates embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}
