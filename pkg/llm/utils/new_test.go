package llmutils_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/shelf/pkg/llm"
	llmutils "github.com/papercomputeco/shelf/pkg/llm/utils"
)

var _ = Describe("NewGenerator", func() {
	It("builds an ollama generator without credentials", func() {
		g, err := llmutils.NewGenerator(&llmutils.NewGeneratorOpts{ProviderType: "ollama", Model: "qwen3"})
		Expect(err).NotTo(HaveOccurred())
		Expect(g.Model()).To(Equal("qwen3"))
	})

	It("reads the openai key from the environment", func() {
		GinkgoT().Setenv("OPENAI_API_KEY", "sk-env")
		g, err := llmutils.NewGenerator(&llmutils.NewGeneratorOpts{ProviderType: "openai"})
		Expect(err).NotTo(HaveOccurred())
		Expect(g).NotTo(BeNil())
	})

	It("fails for a hosted provider without a key", func() {
		GinkgoT().Setenv("ANTHROPIC_API_KEY", "")
		_, err := llmutils.NewGenerator(&llmutils.NewGeneratorOpts{ProviderType: "anthropic"})
		Expect(errors.Is(err, llm.ErrNoAPIKey)).To(BeTrue())
	})

	It("rejects unknown providers", func() {
		_, err := llmutils.NewGenerator(&llmutils.NewGeneratorOpts{ProviderType: "bard"})
		Expect(err).To(MatchError(ContainSubstring("unsupported generation provider")))
	})

	It("prefers an explicit key", func() {
		GinkgoT().Setenv("OPENAI_API_KEY", "sk-env")
		Expect(llmutils.ResolveAPIKey("openai", "sk-flag")).To(Equal("sk-flag"))
		Expect(llmutils.ResolveAPIKey("openai", "")).To(Equal("sk-env"))
		Expect(llmutils.ResolveAPIKey("ollama", "")).To(BeEmpty())
	})
})
