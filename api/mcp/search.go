package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/shelf/pkg/errs"
	"github.com/papercomputeco/shelf/pkg/retrieval"
)

var (
	searchToolName    = "search"
	searchDescription = "Search the uploaded documents using semantic search. Returns the most relevant chunks with their source file and similarity."

	askToolName    = "ask"
	askDescription = "Answer a question using only the content of the uploaded documents. Returns the answer and the chunks it was based on."
)

// SearchInput represents the input arguments for the search and ask tools.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the question or search text"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of chunks to retrieve (default: 3, max: 20)"`
}

// SearchResult represents a single search result.
type SearchResult struct {
	DocumentID int64   `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Source     string  `json:"source"`
	Similarity float64 `json:"similarity"`
	Content    string  `json:"content"`
}

// SearchOutput represents the output of the search tool. Results is never
// nil: the SDK validates every output, error results included, against a
// schema that requires an array.
type SearchOutput struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
	Rating  string         `json:"rating"`
}

// AskOutput represents the output of the ask tool. Sources is never nil.
type AskOutput struct {
	Query   string         `json:"query"`
	Answer  string         `json:"answer"`
	Model   string         `json:"model"`
	Sources []SearchResult `json:"sources"`
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	topK := clampTopK(input.TopK)
	s.config.Logger.Debug("MCP search request", "query", input.Query, "top_k", topK)

	results, err := s.config.Searcher.Search(ctx, input.Query, topK)
	if err != nil {
		s.config.Logger.Error("MCP search failed", "error", err)
		return toolError("Search failed: %s", errs.PublicMessage(err)), SearchOutput{Query: input.Query, Results: []SearchResult{}}, nil
	}

	output := SearchOutput{
		Query:   input.Query,
		Results: buildResults(results),
		Count:   len(results),
		Rating:  retrieval.AnalyzeQuality(results, s.config.Searcher.Buckets()).Rating,
	}
	return textResult(s, output)
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, AskOutput, error) {
	topK := clampTopK(input.TopK)
	s.config.Logger.Debug("MCP ask request", "query", input.Query, "top_k", topK)

	resp, err := s.config.Chatter.Chat(ctx, input.Query, topK)
	if err != nil {
		s.config.Logger.Error("MCP ask failed", "error", err)
		return toolError("Ask failed: %s", errs.PublicMessage(err)), AskOutput{Query: input.Query, Sources: []SearchResult{}}, nil
	}

	output := AskOutput{
		Query:   resp.Query,
		Answer:  resp.Answer,
		Model:   resp.Metadata.ModelUsed,
		Sources: buildResults(resp.Sources),
	}
	return textResult(s, output)
}

func buildResults(results []retrieval.Result) []SearchResult {
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{
			DocumentID: r.DocumentID,
			ChunkIndex: r.ChunkIndex,
			Source:     r.Filename,
			Similarity: r.Similarity,
			Content:    r.Content,
		})
	}
	return out
}

func clampTopK(k int) int {
	switch {
	case k <= 0:
		return retrieval.DefaultTopK
	case k > retrieval.MaxTopK:
		return retrieval.MaxTopK
	}
	return k
}

// textResult pairs structured output with its JSON serialization in a text
// block for clients that do not read structured content. On a marshal
// failure output is still returned so it passes schema validation.
func textResult[T any](s *Server, output T) (*mcp.CallToolResult, T, error) {
	raw, err := json.Marshal(output)
	if err != nil {
		s.config.Logger.Error("failed to marshal tool output", "error", err)
		return toolError("Failed to serialize results: %v", err), output, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
	}, output, nil
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}
