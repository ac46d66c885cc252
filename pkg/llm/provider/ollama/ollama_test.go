package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/shelf/pkg/llm"
	"github.com/papercomputeco/shelf/pkg/llm/provider/ollama"
)

var _ = Describe("Generator", func() {
	var server *httptest.Server

	AfterEach(func() {
		if server != nil {
			server.Close()
		}
	})

	It("posts a non-streaming chat with sampling options", func() {
		var body map[string]any
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/api/chat"))
			Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
			_, _ = w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":"ok"},"done":true}`))
		}))

		g, err := ollama.New(ollama.Config{BaseURL: server.URL, Options: llm.Options{Temperature: 0.7, MaxTokens: 50}})
		Expect(err).NotTo(HaveOccurred())

		out, err := g.Generate(context.Background(), "sys", "user")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("ok"))
		Expect(body["stream"]).To(BeFalse())
		options := body["options"].(map[string]any)
		Expect(options["temperature"]).To(BeNumerically("~", 0.7))
		Expect(options["num_predict"]).To(BeNumerically("==", 50))
	})

	It("fails on a non-200 status", func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`model not found`))
		}))

		g, err := ollama.New(ollama.Config{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		_, err = g.Generate(context.Background(), "s", "u")
		Expect(errors.Is(err, llm.ErrGeneration)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("model not found"))
	})
})
