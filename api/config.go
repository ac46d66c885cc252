// Package api provides the HTTP API server for uploading documents, searching
// them and asking questions answered from their content.
package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// RequestTimeout bounds upload, reupload, search and chat requests.
	RequestTimeout time.Duration

	// DefaultTopK is used when a search or chat request omits top_k.
	DefaultTopK int

	// Gatherer backs GET /metrics. Metrics are not served when nil.
	Gatherer prometheus.Gatherer

	// MCPHandler is mounted at /mcp when set.
	MCPHandler http.Handler

	// EmbeddingModel, ChatModel and StoreProvider are reported by the
	// health endpoint.
	EmbeddingModel string
	ChatModel      string
	StoreProvider  string
}
