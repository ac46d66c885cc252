// Package embeddings defines the embedding provider contract.
package embeddings

import "context"

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts texts into embeddings in one provider call. The
	// result must be index-aligned with texts; callers verify the count.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the model name used for embeddings.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}
