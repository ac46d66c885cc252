package pricing_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/shelf/pkg/logger"
	"github.com/papercomputeco/shelf/pkg/pricing"
)

var _ = Describe("Table", func() {
	It("finds models by normalized name", func() {
		table := pricing.DefaultTable()

		m, ok := table.Lookup("Text-Embedding-3-Small")
		Expect(ok).To(BeTrue())
		Expect(m.Dimensions).To(Equal(1536))

		_, ok = table.Lookup("nomic-embed-text:latest")
		Expect(ok).To(BeTrue())

		_, ok = table.Lookup("gpt-4o-2024-08-06")
		Expect(ok).To(BeTrue())
	})

	It("estimates embedding cost per 1K tokens", func() {
		m := pricing.Model{InputPer1K: 0.00002}
		Expect(m.EmbeddingCost(50_000)).To(BeNumerically("~", 0.001, 1e-12))
	})

	It("merges overrides from a TOML file", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "models.toml")
		Expect(os.WriteFile(path, []byte(`
[models."text-embedding-3-small"]
max_batch_items = 16
dimensions = 1536
input_per_1k = 0.5

[models."custom-embed"]
max_batch_items = 4
dimensions = 8
`), 0o600)).To(Succeed())

		table, err := pricing.LoadTable(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(table["text-embedding-3-small"].MaxBatchItems).To(Equal(16))
		Expect(table["custom-embed"].Dimensions).To(Equal(8))
		Expect(table).To(HaveKey("text-embedding-3-large"))
	})

	It("fails on a malformed file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "bad.toml")
		Expect(os.WriteFile(path, []byte("[models"), 0o600)).To(Succeed())

		_, err := pricing.LoadTable(path)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Catalog", func() {
	It("falls back to defaults for unknown models", func() {
		catalog := pricing.NewStaticCatalog(pricing.Table{})
		Expect(catalog.MaxBatchItems("mystery")).To(Equal(pricing.DefaultMaxBatchItems))
		Expect(catalog.EmbeddingCost("mystery", 1000)).To(BeNumerically("~", pricing.DefaultInputPer1K, 1e-12))
	})

	It("reloads when the backing file changes", func() {
		path := filepath.Join(GinkgoT().TempDir(), "models.toml")
		Expect(os.WriteFile(path, []byte("[models.\"m\"]\nmax_batch_items = 3\n"), 0o600)).To(Succeed())

		catalog, err := pricing.NewCatalog(path, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(catalog.MaxBatchItems("m")).To(Equal(3))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- catalog.Watch(ctx) }()

		Eventually(func() int {
			_ = os.WriteFile(path, []byte("[models.\"m\"]\nmax_batch_items = 7\n"), 0o600)
			return catalog.MaxBatchItems("m")
		}, 5*time.Second, 100*time.Millisecond).Should(Equal(7))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})
})
