// Package orchestrator drives an embeddings.Embedder over chunk drafts in
// rate-limited, order-preserving batches and accounts for token usage.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/papercomputeco/shelf/pkg/chunker"
	"github.com/papercomputeco/shelf/pkg/embeddings"
	"github.com/papercomputeco/shelf/pkg/errs"
	"github.com/papercomputeco/shelf/pkg/pricing"
	"github.com/papercomputeco/shelf/pkg/telemetry"
	"github.com/papercomputeco/shelf/pkg/tokenizer"
)

const (
	OperationDocument = "document_embedding"
	OperationQuery    = "query_embedding"
)

// Config wires the orchestrator's collaborators.
type Config struct {
	Embedder embeddings.Embedder
	Encoder  tokenizer.Encoder
	Catalog  *pricing.Catalog
	Metrics  *telemetry.Metrics
	Logger   *slog.Logger

	// BatchSize overrides the catalog's per-model batch cap when positive.
	BatchSize int

	// RequestsPerSecond paces provider calls. Zero disables pacing.
	RequestsPerSecond float64

	// Dimensions, when positive, is the vector width every response must have.
	Dimensions int
}

// Embedded pairs a draft with its vector.
type Embedded struct {
	chunker.Draft
	Vector []float32
}

// Usage summarizes one orchestrated operation.
type Usage struct {
	Operation string
	Model     string
	Tokens    int
	Requests  int
	Elapsed   time.Duration
	Cost      float64
}

// Orchestrator is safe for concurrent use; each call runs its batches
// sequentially.
type Orchestrator struct {
	embedder   embeddings.Embedder
	encoder    tokenizer.Encoder
	catalog    *pricing.Catalog
	metrics    *telemetry.Metrics
	logger     *slog.Logger
	limiter    *rate.Limiter
	batchSize  int
	dimensions int
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Embedder == nil {
		return nil, errs.New(errs.KindConfiguration, "orchestrator requires an embedder")
	}
	if cfg.Encoder == nil {
		return nil, errs.New(errs.KindConfiguration, "orchestrator requires an encoder")
	}
	if cfg.BatchSize < 0 {
		return nil, errs.Newf(errs.KindConfiguration, "batch size must not be negative, got %d", cfg.BatchSize)
	}
	if cfg.RequestsPerSecond < 0 {
		return nil, errs.Newf(errs.KindConfiguration, "requests per second must not be negative, got %v", cfg.RequestsPerSecond)
	}

	catalog := cfg.Catalog
	if catalog == nil {
		catalog = pricing.NewStaticCatalog(pricing.DefaultTable())
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.Nop()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Orchestrator{
		embedder:   cfg.Embedder,
		encoder:    cfg.Encoder,
		catalog:    catalog,
		metrics:    metrics,
		logger:     logger.With("component", "embedding_orchestrator"),
		limiter:    limiter,
		batchSize:  cfg.BatchSize,
		dimensions: cfg.Dimensions,
	}, nil
}

// Model returns the embedding model in use.
func (o *Orchestrator) Model() string {
	return o.embedder.Model()
}

// EmbedChunks embeds every draft, preserving order. Any failed batch aborts
// the whole operation and nothing is returned.
func (o *Orchestrator) EmbedChunks(ctx context.Context, drafts []chunker.Draft) ([]Embedded, Usage, error) {
	usage := Usage{Operation: OperationDocument, Model: o.embedder.Model()}
	if len(drafts) == 0 {
		return nil, usage, nil
	}

	size := o.batchSize
	if size <= 0 {
		size = o.catalog.MaxBatchItems(usage.Model)
	}

	out := make([]Embedded, 0, len(drafts))
	for batch, start := 0, 0; start < len(drafts); batch, start = batch+1, start+size {
		end := min(start+size, len(drafts))

		texts := make([]string, end-start)
		tokens := 0
		for i, d := range drafts[start:end] {
			texts[i] = d.Text
			tokens += d.TokenCount
		}

		vectors, call, err := o.call(ctx, OperationDocument, texts, tokens)
		usage.add(call)
		if err != nil {
			o.logger.Error("embedding batch failed",
				"batch", batch,
				"batch_size", len(texts),
				"chunk_offset", start,
				"error", err,
			)
			return nil, usage, err
		}

		for i, d := range drafts[start:end] {
			out = append(out, Embedded{Draft: d, Vector: vectors[i]})
		}
	}

	o.logUsage(usage, len(drafts))
	return out, usage, nil
}

// EmbedOne embeds a single text, typically a search query.
func (o *Orchestrator) EmbedOne(ctx context.Context, text string) ([]float32, Usage, error) {
	vectors, usage, err := o.call(ctx, OperationQuery, []string{text}, o.encoder.Count(text))
	if err != nil {
		return nil, usage, err
	}
	o.logUsage(usage, 1)
	return vectors[0], usage, nil
}

// call waits on the limiter, performs one provider request and verifies the
// response shape. A count mismatch is a contract violation and is never
// padded or truncated. tokens is the usage charged for texts.
func (o *Orchestrator) call(ctx context.Context, operation string, texts []string, tokens int) ([][]float32, Usage, error) {
	model := o.embedder.Model()
	usage := Usage{Operation: operation, Model: model}

	if err := o.limiter.Wait(ctx); err != nil {
		return nil, usage, errs.Wrap(errs.KindExternalService, "embedding request cancelled", err)
	}

	started := time.Now()
	vectors, err := o.embedder.EmbedBatch(ctx, texts)
	usage.Elapsed = time.Since(started)
	usage.Requests = 1
	usage.Tokens = tokens
	usage.Cost = o.catalog.EmbeddingCost(model, tokens)
	o.metrics.ObserveEmbedding(operation, model, usage.Tokens, usage.Cost, usage.Elapsed)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, usage, errs.Wrap(errs.KindExternalService, "embedding request timed out", err)
		}
		return nil, usage, errs.Wrap(errs.KindExternalService, "embedding provider failed", err)
	}

	if len(vectors) != len(texts) {
		o.logger.Error("embedding provider returned wrong vector count",
			"operation", operation,
			"model", model,
			"sent", len(texts),
			"returned", len(vectors),
		)
		return nil, usage, errs.Wrap(errs.KindAdapterContract, "embedding count mismatch",
			fmt.Errorf("sent %d inputs, received %d vectors", len(texts), len(vectors)))
	}

	if o.dimensions > 0 {
		for i, v := range vectors {
			if len(v) != o.dimensions {
				return nil, usage, errs.Wrap(errs.KindAdapterContract, "embedding dimension mismatch",
					fmt.Errorf("vector %d has %d dimensions, expected %d", i, len(v), o.dimensions))
			}
		}
	}

	return vectors, usage, nil
}

func (o *Orchestrator) logUsage(u Usage, items int) {
	o.logger.Info("EMBEDDING_USAGE",
		"operation", u.Operation,
		"model", u.Model,
		"items", items,
		"tokens", u.Tokens,
		"requests", u.Requests,
		"time_ms", u.Elapsed.Milliseconds(),
		"cost_usd", u.Cost,
	)
}

func (u *Usage) add(other Usage) {
	u.Tokens += other.Tokens
	u.Requests += other.Requests
	u.Elapsed += other.Elapsed
	u.Cost += other.Cost
}
