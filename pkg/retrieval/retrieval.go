// Package retrieval turns a natural-language query into a ranked, scored set
// of chunks.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/papercomputeco/shelf/pkg/embeddings/orchestrator"
	"github.com/papercomputeco/shelf/pkg/errs"
	"github.com/papercomputeco/shelf/pkg/storage"
	"github.com/papercomputeco/shelf/pkg/telemetry"
)

const (
	DefaultTopK = 3
	MaxTopK     = 20
)

// QueryEmbedder embeds a single query string.
type QueryEmbedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, orchestrator.Usage, error)
}

// Result is a single ranked chunk.
type Result struct {
	ChunkID    int64 `json:"chunk_id"`
	DocumentID int64 `json:"document_id"`
	ChunkIndex int   `json:"chunk_index"`

	Content string `json:"content"`

	// Filename is decorated with the 1-based chunk ordinal for display.
	Filename    string `json:"filename"`
	RawFilename string `json:"raw_filename"`

	Distance float64 `json:"distance"`

	// Similarity is 1 - Distance and is negative past a distance of 1.
	Similarity float64 `json:"similarity"`
}

// Config configures a Searcher.
type Config struct {
	Embedder QueryEmbedder
	Store    storage.Store
	Metrics  *telemetry.Metrics
	Logger   *slog.Logger

	// Buckets rate result sets. Defaults to DefaultBuckets.
	Buckets []Bucket
}

// Searcher embeds queries and ranks stored chunks by cosine distance.
type Searcher struct {
	embedder QueryEmbedder
	store    storage.Store
	metrics  *telemetry.Metrics
	logger   *slog.Logger
	buckets  []Bucket
}

func NewSearcher(cfg Config) (*Searcher, error) {
	if cfg.Embedder == nil {
		return nil, errs.New(errs.KindConfiguration, "searcher requires a query embedder")
	}
	if cfg.Store == nil {
		return nil, errs.New(errs.KindConfiguration, "searcher requires a store")
	}

	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = DefaultBuckets
	}
	if err := ValidateBuckets(buckets); err != nil {
		return nil, err
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.Nop()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Searcher{
		embedder: cfg.Embedder,
		store:    cfg.Store,
		metrics:  metrics,
		logger:   log.With("component", "retrieval"),
		buckets:  buckets,
	}, nil
}

// Buckets returns the rating table in use.
func (s *Searcher) Buckets() []Bucket {
	return s.buckets
}

// Search returns up to topK chunks nearest to query, ordered by distance
// ascending and chunk id ascending on ties.
func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errs.New(errs.KindInvalidRequest, "query is required")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, _, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := s.store.SearchChunks(ctx, vector, topK)
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "similarity search", err)
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, Result{
			ChunkID:     m.ChunkID,
			DocumentID:  m.DocumentID,
			ChunkIndex:  m.Index,
			Content:     m.Content,
			Filename:    DisplayName(m.Filename, m.Index),
			RawFilename: m.Filename,
			Distance:    m.Distance,
			Similarity:  1 - m.Distance,
		})
	}
	SortResults(results)

	quality := AnalyzeQuality(results, s.buckets)
	s.metrics.ObserveSearch(quality.Rating, len(results))
	s.logger.Debug("search completed",
		"top_k", topK,
		"results", len(results),
		"rating", quality.Rating,
	)

	return results, nil
}

// SortResults orders results by distance then chunk id.
func SortResults(results []Result) {
	slices.SortStableFunc(results, func(a, b Result) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		case a.ChunkID < b.ChunkID:
			return -1
		case a.ChunkID > b.ChunkID:
			return 1
		default:
			return 0
		}
	})
}

// DisplayName decorates a filename with a chunk's 1-based ordinal.
func DisplayName(filename string, index int) string {
	return fmt.Sprintf("%s [chunk %d]", filename, index+1)
}
