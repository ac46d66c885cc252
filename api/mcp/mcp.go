// Package mcp provides an MCP (Model Context Protocol) server exposing the
// document shelf to agents.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/shelf/pkg/answer"
	"github.com/papercomputeco/shelf/pkg/retrieval"
	"github.com/papercomputeco/shelf/pkg/utils"
)

// Searcher ranks chunks for a query.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]retrieval.Result, error)
	Buckets() []retrieval.Bucket
}

// Chatter answers a query from retrieved chunks.
type Chatter interface {
	Chat(ctx context.Context, query string, topK int) (*answer.ChatResponse, error)
}

type Config struct {
	// Searcher backs the search tool.
	Searcher Searcher

	// Chatter backs the ask tool. The tool is not registered when nil.
	Chatter Chatter

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the search and ask tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "shelf",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)
	s.mcpServer = mcpServer
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	if c.Noop {
		return s, nil
	}

	if c.Searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        searchToolName,
		Description: searchDescription,
	}, s.handleSearch)

	if c.Chatter != nil {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        askToolName,
			Description: askDescription,
		}, s.handleAsk)
	}

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// MCPServer returns the underlying server, for in-process transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}
