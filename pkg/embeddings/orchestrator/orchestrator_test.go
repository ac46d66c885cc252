package orchestrator_test

import (
	"bytes"
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/papercomputeco/shelf/pkg/chunker"
	"github.com/papercomputeco/shelf/pkg/embeddings/orchestrator"
	"github.com/papercomputeco/shelf/pkg/errs"
	"github.com/papercomputeco/shelf/pkg/logger"
	"github.com/papercomputeco/shelf/pkg/pricing"
	"github.com/papercomputeco/shelf/pkg/telemetry"
	"github.com/papercomputeco/shelf/pkg/tokenizer/lexical"
	testutils "github.com/papercomputeco/shelf/pkg/utils/test"
)

func drafts(n int) []chunker.Draft {
	out := make([]chunker.Draft, n)
	for i := range out {
		out[i] = chunker.Draft{Index: i, Text: fmt.Sprintf("chunk number %d", i), TokenCount: 3}
	}
	return out
}

var _ = Describe("Orchestrator", func() {
	var (
		embedder *testutils.MockEmbedder
		metrics  *telemetry.Metrics
		logBuf   *bytes.Buffer
		cfg      orchestrator.Config
	)

	BeforeEach(func() {
		embedder = testutils.NewMockEmbedder()
		metrics = telemetry.New(prometheus.NewRegistry())
		logBuf = &bytes.Buffer{}
		cfg = orchestrator.Config{
			Embedder:  embedder,
			Encoder:   lexical.New(),
			Catalog:   pricing.NewStaticCatalog(pricing.Table{"mock-embed": {MaxBatchItems: 4, InputPer1K: 1}}),
			Metrics:   metrics,
			Logger:    logger.New(logger.WithWriter(logBuf), logger.WithJSON(true)),
			BatchSize: 0,
		}
	})

	Describe("New", func() {
		It("requires an embedder and encoder", func() {
			_, err := orchestrator.New(orchestrator.Config{Encoder: lexical.New()})
			Expect(errs.KindOf(err)).To(Equal(errs.KindConfiguration))

			_, err = orchestrator.New(orchestrator.Config{Embedder: embedder})
			Expect(errs.KindOf(err)).To(Equal(errs.KindConfiguration))
		})

		It("rejects a negative rate", func() {
			cfg.RequestsPerSecond = -1
			_, err := orchestrator.New(cfg)
			Expect(errs.KindOf(err)).To(Equal(errs.KindConfiguration))
		})
	})

	Describe("EmbedChunks", func() {
		It("batches by the catalog limit and preserves order", func() {
			o, err := orchestrator.New(cfg)
			Expect(err).NotTo(HaveOccurred())

			in := drafts(10)
			out, usage, err := o.EmbedChunks(context.Background(), in)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(10))

			Expect(embedder.Calls).To(HaveLen(3))
			Expect(embedder.Calls[0]).To(HaveLen(4))
			Expect(embedder.Calls[2]).To(HaveLen(2))

			for i, e := range out {
				Expect(e.Index).To(Equal(i))
				Expect(e.Vector).To(Equal(embedder.Vector(in[i].Text)))
			}

			Expect(usage.Requests).To(Equal(3))
			Expect(usage.Tokens).To(Equal(30))
			Expect(usage.Cost).To(BeNumerically("~", 0.03, 1e-9))
		})

		It("charges the token counts the chunker stored", func() {
			o, err := orchestrator.New(cfg)
			Expect(err).NotTo(HaveOccurred())

			// A window that ended in whitespace trims to fewer tokens than it held.
			in := []chunker.Draft{
				{Index: 0, Text: "alpha beta", TokenCount: 3},
				{Index: 1, Text: "gamma", TokenCount: 2},
			}
			_, usage, err := o.EmbedChunks(context.Background(), in)
			Expect(err).NotTo(HaveOccurred())
			Expect(usage.Tokens).To(Equal(5))
			Expect(usage.Tokens).NotTo(Equal(cfg.Encoder.Count("alpha beta") + cfg.Encoder.Count("gamma")))
		})

		It("prefers an explicit batch size", func() {
			cfg.BatchSize = 5
			o, err := orchestrator.New(cfg)
			Expect(err).NotTo(HaveOccurred())

			_, _, err = o.EmbedChunks(context.Background(), drafts(10))
			Expect(err).NotTo(HaveOccurred())
			Expect(embedder.Calls).To(HaveLen(2))
		})

		It("makes no calls for no drafts", func() {
			o, err := orchestrator.New(cfg)
			Expect(err).NotTo(HaveOccurred())

			out, _, err := o.EmbedChunks(context.Background(), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(BeEmpty())
			Expect(embedder.CallCount()).To(Equal(0))
		})

		It("flags a short response as a contract violation", func() {
			embedder.DropLast = true
			o, err := orchestrator.New(cfg)
			Expect(err).NotTo(HaveOccurred())

			out, _, err := o.EmbedChunks(context.Background(), drafts(3))
			Expect(errs.KindOf(err)).To(Equal(errs.KindAdapterContract))
			Expect(out).To(BeNil())
			Expect(logBuf.String()).To(ContainSubstring("wrong vector count"))
		})

		It("rejects vectors of the wrong width", func() {
			cfg.Dimensions = 8
			o, err := orchestrator.New(cfg)
			Expect(err).NotTo(HaveOccurred())

			_, _, err = o.EmbedChunks(context.Background(), drafts(2))
			Expect(errs.KindOf(err)).To(Equal(errs.KindAdapterContract))
		})

		It("aborts on the first failed batch", func() {
			embedder.FailOn = "chunk number 5"
			o, err := orchestrator.New(cfg)
			Expect(err).NotTo(HaveOccurred())

			out, _, err := o.EmbedChunks(context.Background(), drafts(10))
			Expect(errs.KindOf(err)).To(Equal(errs.KindExternalService))
			Expect(out).To(BeNil())
			Expect(embedder.Calls).To(HaveLen(2))
		})

		It("records usage telemetry", func() {
			o, err := orchestrator.New(cfg)
			Expect(err).NotTo(HaveOccurred())

			_, _, err = o.EmbedChunks(context.Background(), drafts(6))
			Expect(err).NotTo(HaveOccurred())

			Expect(testutil.ToFloat64(metrics.EmbeddingRequests.WithLabelValues(orchestrator.OperationDocument, "mock-embed"))).To(Equal(2.0))
			Expect(testutil.ToFloat64(metrics.EmbeddingTokens.WithLabelValues(orchestrator.OperationDocument, "mock-embed"))).To(Equal(18.0))
			Expect(logBuf.String()).To(ContainSubstring("EMBEDDING_USAGE"))
		})
	})

	Describe("EmbedOne", func() {
		It("embeds a query", func() {
			o, err := orchestrator.New(cfg)
			Expect(err).NotTo(HaveOccurred())

			vec, usage, err := o.EmbedOne(context.Background(), "what is shelf")
			Expect(err).NotTo(HaveOccurred())
			Expect(vec).To(Equal(embedder.Vector("what is shelf")))
			Expect(usage.Operation).To(Equal(orchestrator.OperationQuery))
			Expect(usage.Tokens).To(Equal(3))
		})

		It("honours context cancellation while paced", func() {
			cfg.RequestsPerSecond = 0.001
			o, err := orchestrator.New(cfg)
			Expect(err).NotTo(HaveOccurred())

			_, _, err = o.EmbedOne(context.Background(), "first")
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			_, _, err = o.EmbedOne(ctx, "second")
			Expect(errs.KindOf(err)).To(Equal(errs.KindExternalService))
		})
	})
})
