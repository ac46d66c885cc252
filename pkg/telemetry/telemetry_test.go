package telemetry_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/papercomputeco/shelf/pkg/telemetry"
)

var _ = Describe("Metrics", func() {
	var m *telemetry.Metrics

	BeforeEach(func() {
		m = telemetry.New(prometheus.NewRegistry())
	})

	It("accumulates embedding usage per operation and model", func() {
		m.ObserveEmbedding("document_embedding", "text-embedding-3-small", 120, 0.0024, 10*time.Millisecond)
		m.ObserveEmbedding("document_embedding", "text-embedding-3-small", 80, 0.0016, 5*time.Millisecond)

		Expect(testutil.ToFloat64(m.EmbeddingTokens.WithLabelValues("document_embedding", "text-embedding-3-small"))).To(Equal(200.0))
		Expect(testutil.ToFloat64(m.EmbeddingRequests.WithLabelValues("document_embedding", "text-embedding-3-small"))).To(Equal(2.0))
		Expect(testutil.ToFloat64(m.EmbeddingCost.WithLabelValues("document_embedding", "text-embedding-3-small"))).To(BeNumerically("~", 0.004, 1e-12))
	})

	It("counts answers by outcome", func() {
		m.ObserveAnswer(false, 0.7)
		m.ObserveAnswer(true, 0)

		Expect(testutil.ToFloat64(m.Answers.WithLabelValues("ok"))).To(Equal(1.0))
		Expect(testutil.ToFloat64(m.Answers.WithLabelValues("failed"))).To(Equal(1.0))
	})

	It("counts document operations", func() {
		m.ObserveDocument("upload", "duplicate")
		Expect(testutil.ToFloat64(m.Documents.WithLabelValues("upload", "duplicate"))).To(Equal(1.0))
	})

	It("registers independently per registry", func() {
		Expect(func() {
			telemetry.Nop()
			telemetry.Nop()
		}).NotTo(Panic())
	})
})
