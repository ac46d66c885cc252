package embeddingutils_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/shelf/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/shelf/pkg/embeddings/utils"
)

var _ = Describe("NewEmbedder", func() {
	It("builds an ollama embedder without a key", func() {
		e, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
			ProviderType: "ollama",
			Model:        "nomic-embed-text",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Close()).To(Succeed())
	})

	It("builds an openai embedder when a key is set", func() {
		e, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
			ProviderType: "openai",
			Model:        "text-embedding-3-small",
			APIKey:       "sk-test",
			Dimensions:   1536,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Close()).To(Succeed())
	})

	It("requires a key for openai", func() {
		_, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{ProviderType: "openai"})
		Expect(errors.Is(err, embeddings.ErrNoAPIKey)).To(BeTrue())
	})

	It("rejects unknown providers", func() {
		_, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{ProviderType: "word2vec"})
		Expect(err).To(MatchError(ContainSubstring("unsupported embedding provider")))
	})
})
