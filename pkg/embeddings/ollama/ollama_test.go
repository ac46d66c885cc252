package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/shelf/pkg/embeddings"
	"github.com/papercomputeco/shelf/pkg/embeddings/ollama"
)

var _ = Describe("Embedder", func() {
	var (
		server   *httptest.Server
		received map[string]any
	)

	AfterEach(func() {
		if server != nil {
			server.Close()
		}
	})

	It("sends the whole batch in one request", func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/api/embed"))
			Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"embeddings": [][]float32{{1, 0}, {0, 1}},
			})
		}))

		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Model()).To(Equal(ollama.DefaultEmbeddingModel))

		out, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal([][]float32{{1, 0}, {0, 1}}))
		Expect(received["input"]).To(Equal([]any{"a", "b"}))
		Expect(received["model"]).To(Equal("nomic-embed-text"))
	})

	It("wraps non-200 responses", func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}))

		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL, Model: "missing"})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), "text")
		Expect(errors.Is(err, embeddings.ErrEmbedding)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("404"))
	})

	It("errors when a single embed gets nothing back", func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{}})
		}))

		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), "text")
		Expect(errors.Is(err, embeddings.ErrEmbedding)).To(BeTrue())
	})
})
