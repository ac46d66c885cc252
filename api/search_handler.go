package api

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/shelf/pkg/retrieval"
)

const maxQueryChars = 1000

// QueryRequest is the body of POST /v1/search and POST /v1/chat.
type QueryRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k,omitempty"`
}

// SearchResponse is returned by the search endpoint.
type SearchResponse struct {
	Query   string             `json:"query"`
	Results []retrieval.Result `json:"results"`
	Count   int                `json:"count"`
	Quality retrieval.Quality  `json:"search_quality"`
}

// handleSearch handles GET and POST /v1/search.
// GET query parameters:
//   - query (required): the search query text
//   - top_k (optional): number of results to return, 1 to 20
func (s *Server) handleSearch(c *fiber.Ctx) error {
	req, ok, err := s.parseQuery(c)
	if !ok {
		return err
	}

	results, err := s.searcher.Search(c.UserContext(), req.Query, *req.TopK)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(SearchResponse{
		Query:   req.Query,
		Results: results,
		Count:   len(results),
		Quality: retrieval.AnalyzeQuality(results, s.searcher.Buckets()),
	})
}

// handleChat handles POST /v1/chat. A failed generation still answers with
// the fallback text and the retrieved sources.
func (s *Server) handleChat(c *fiber.Ctx) error {
	req, ok, err := s.parseQuery(c)
	if !ok {
		return err
	}

	resp, err := s.chatter.Chat(c.UserContext(), req.Query, *req.TopK)
	if err != nil {
		if resp == nil {
			return s.writeError(c, err)
		}
		s.logger.Error("chat generation failed", "error", err)
		return c.Status(statusFor(err)).JSON(resp)
	}
	return c.JSON(resp)
}

// parseQuery reads and validates a query from the JSON body or, for GET,
// the query string. When ok is false the response has been written and err
// is what the handler should return.
func (s *Server) parseQuery(c *fiber.Ctx) (QueryRequest, bool, error) {
	var req QueryRequest

	if c.Method() == fiber.MethodGet {
		req.Query = c.Query("query")
		if raw := c.Query("top_k"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return req, false, badRequest(c, "top_k must be an integer between 1 and 20")
			}
			req.TopK = &n
		}
	} else if err := c.BodyParser(&req); err != nil {
		return req, false, badRequest(c, "request body must be JSON")
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return req, false, badRequest(c, "query is required")
	}
	if len([]rune(req.Query)) > maxQueryChars {
		return req, false, badRequest(c, "query must be at most 1000 characters")
	}

	if req.TopK == nil {
		k := s.config.DefaultTopK
		req.TopK = &k
	}
	if *req.TopK < 1 || *req.TopK > retrieval.MaxTopK {
		return req, false, badRequest(c, "top_k must be an integer between 1 and 20")
	}

	return req, true, nil
}
