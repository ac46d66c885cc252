// Package telemetry records embedding usage and retrieval statistics as
// Prometheus metrics.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the shelf collectors. All metric names are prefixed with
// "shelf_".
//
//   - shelf_embedding_tokens_total{operation,model}
//   - shelf_embedding_requests_total{operation,model}
//   - shelf_embedding_cost_usd_total{operation,model}
//   - shelf_embedding_request_duration_seconds{operation,model}
//   - shelf_search_results{rating}
//   - shelf_answers_total{outcome}
//   - shelf_answer_relevance
//   - shelf_documents_total{operation,outcome}
type Metrics struct {
	EmbeddingTokens   *prometheus.CounterVec
	EmbeddingRequests *prometheus.CounterVec
	EmbeddingCost     *prometheus.CounterVec
	EmbeddingDuration *prometheus.HistogramVec

	SearchResults   *prometheus.HistogramVec
	Answers         *prometheus.CounterVec
	AnswerRelevance prometheus.Histogram

	Documents *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer to
// expose them on the default /metrics handler, or a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		EmbeddingTokens: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shelf_embedding_tokens_total",
			Help: "Tokens sent to the embedding provider",
		}, []string{"operation", "model"}),
		EmbeddingRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shelf_embedding_requests_total",
			Help: "Embedding provider requests",
		}, []string{"operation", "model"}),
		EmbeddingCost: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shelf_embedding_cost_usd_total",
			Help: "Estimated embedding spend in USD",
		}, []string{"operation", "model"}),
		EmbeddingDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shelf_embedding_request_duration_seconds",
			Help:    "Latency of embedding provider requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "model"}),

		SearchResults: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shelf_search_results",
			Help:    "Number of chunks returned per search, by quality rating",
			Buckets: []float64{0, 1, 3, 5, 10, 20},
		}, []string{"rating"}),
		Answers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shelf_answers_total",
			Help: "Composed answers by outcome",
		}, []string{"outcome"}),
		AnswerRelevance: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "shelf_answer_relevance",
			Help:    "Relevance score of composed answers",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),

		Documents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shelf_documents_total",
			Help: "Document lifecycle operations by outcome",
		}, []string{"operation", "outcome"}),
	}
}

// Nop returns metrics registered against a private registry, for callers
// that do not expose them.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

// ObserveEmbedding records one embedding provider call.
func (m *Metrics) ObserveEmbedding(operation, model string, tokens int, cost float64, elapsed time.Duration) {
	m.EmbeddingTokens.WithLabelValues(operation, model).Add(float64(tokens))
	m.EmbeddingRequests.WithLabelValues(operation, model).Inc()
	m.EmbeddingCost.WithLabelValues(operation, model).Add(cost)
	m.EmbeddingDuration.WithLabelValues(operation, model).Observe(elapsed.Seconds())
}

// ObserveSearch records the size and quality rating of a result set.
func (m *Metrics) ObserveSearch(rating string, results int) {
	m.SearchResults.WithLabelValues(rating).Observe(float64(results))
}

// ObserveAnswer records a composed answer.
func (m *Metrics) ObserveAnswer(failed bool, relevance float64) {
	outcome := "ok"
	if failed {
		outcome = "failed"
	}
	m.Answers.WithLabelValues(outcome).Inc()
	if !failed {
		m.AnswerRelevance.Observe(relevance)
	}
}

// ObserveDocument records the outcome of a document lifecycle operation.
func (m *Metrics) ObserveDocument(operation, outcome string) {
	m.Documents.WithLabelValues(operation, outcome).Inc()
}
