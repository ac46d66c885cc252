package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/shelf/pkg/llm"
	"github.com/papercomputeco/shelf/pkg/llm/provider/openai"
)

var _ = Describe("Generator", func() {
	var server *httptest.Server

	AfterEach(func() {
		if server != nil {
			server.Close()
		}
	})

	It("requires an api key", func() {
		_, err := openai.New(openai.Config{})
		Expect(errors.Is(err, llm.ErrNoAPIKey)).To(BeTrue())
	})

	It("sends system and user messages with sampling defaults", func() {
		var body map[string]any
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/v1/chat/completions"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer sk-test"))
			Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"model":"gpt-4o","choices":[{"message":{"role":"assistant","content":"A fox jumps."},"finish_reason":"stop"}]}`))
		}))

		g, err := openai.New(openai.Config{BaseURL: server.URL, APIKey: "sk-test"})
		Expect(err).NotTo(HaveOccurred())
		Expect(g.Model()).To(Equal(openai.DefaultModel))

		out, err := g.Generate(context.Background(), "be brief", "what jumps?")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("A fox jumps."))

		messages := body["messages"].([]any)
		Expect(messages).To(HaveLen(2))
		Expect(messages[0].(map[string]any)["role"]).To(Equal("system"))
		Expect(messages[0].(map[string]any)["content"]).To(Equal("be brief"))
		Expect(messages[1].(map[string]any)["content"]).To(Equal("what jumps?"))
		Expect(body["temperature"]).To(BeNumerically("~", llm.DefaultTemperature))
		Expect(body["max_tokens"]).To(BeNumerically("==", llm.DefaultMaxTokens))
		Expect(body["stream"]).To(BeFalse())
	})

	It("surfaces the provider error message", func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
		}))

		g, err := openai.New(openai.Config{BaseURL: server.URL, APIKey: "sk-test"})
		Expect(err).NotTo(HaveOccurred())

		_, err = g.Generate(context.Background(), "s", "u")
		Expect(errors.Is(err, llm.ErrGeneration)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("rate limited"))
	})

	It("rejects an empty completion", func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))

		g, err := openai.New(openai.Config{BaseURL: server.URL, APIKey: "sk-test"})
		Expect(err).NotTo(HaveOccurred())

		_, err = g.Generate(context.Background(), "s", "u")
		Expect(errors.Is(err, llm.ErrEmptyCompletion)).To(BeTrue())
	})
})
