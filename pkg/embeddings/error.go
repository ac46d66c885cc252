package embeddings

import "errors"

var (
	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrNoAPIKey is returned when a hosted provider has no credentials.
	ErrNoAPIKey = errors.New("embedding provider api key not set")
)
