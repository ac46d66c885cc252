package answer

import (
	"context"

	"github.com/papercomputeco/shelf/pkg/retrieval"
)

// Searcher is the retrieval half of the pipeline.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]retrieval.Result, error)
	Buckets() []retrieval.Bucket
}

// ChatResponse is the full chat outcome.
type ChatResponse struct {
	Query    string             `json:"query"`
	Answer   string             `json:"answer"`
	Success  bool               `json:"success"`
	Sources  []retrieval.Result `json:"sources"`
	Quality  retrieval.Quality  `json:"search_quality"`
	Metadata ChatMetadata       `json:"metadata"`
}

// ChatMetadata describes how the answer was produced.
type ChatMetadata struct {
	RelevanceScore float64 `json:"relevance_score"`
	SourcesUsed    int     `json:"sources_used"`
	ModelUsed      string  `json:"model_used"`
	TopK           int     `json:"top_k"`
}

// Pipeline runs search then composition.
type Pipeline struct {
	searcher Searcher
	composer *Composer
}

func NewPipeline(searcher Searcher, composer *Composer) *Pipeline {
	return &Pipeline{searcher: searcher, composer: composer}
}

// Chat answers query from the topK nearest chunks. A failed generation still
// returns a response with the fallback answer alongside the error so callers
// can show sources.
func (p *Pipeline) Chat(ctx context.Context, query string, topK int) (*ChatResponse, error) {
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}

	results, err := p.searcher.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	quality := retrieval.AnalyzeQuality(results, p.searcher.Buckets())

	ans, err := p.composer.Compose(ctx, query, results)
	resp := &ChatResponse{
		Query:   query,
		Answer:  ans.Text,
		Success: !ans.Failed,
		Sources: results,
		Quality: quality,
		Metadata: ChatMetadata{
			RelevanceScore: ans.RelevanceScore,
			SourcesUsed:    ans.SourcesUsed,
			ModelUsed:      ans.Model,
			TopK:           topK,
		},
	}
	return resp, err
}
