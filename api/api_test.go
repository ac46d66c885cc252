package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"github.com/papercomputeco/shelf/api"
	"github.com/papercomputeco/shelf/pkg/answer"
	"github.com/papercomputeco/shelf/pkg/chunker"
	"github.com/papercomputeco/shelf/pkg/documents"
	"github.com/papercomputeco/shelf/pkg/embeddings/orchestrator"
	"github.com/papercomputeco/shelf/pkg/errs"
	"github.com/papercomputeco/shelf/pkg/extract"
	"github.com/papercomputeco/shelf/pkg/filestore"
	"github.com/papercomputeco/shelf/pkg/logger"
	"github.com/papercomputeco/shelf/pkg/retrieval"
	"github.com/papercomputeco/shelf/pkg/storage/inmemory"
	"github.com/papercomputeco/shelf/pkg/telemetry"
	"github.com/papercomputeco/shelf/pkg/tokenizer/lexical"
	testutils "github.com/papercomputeco/shelf/pkg/utils/test"
)

const foxText = "The quick brown fox jumps over the lazy dog. A fast red fox leaps across the sleepy hound."

func uploadRequest(method, target, filename string, data []byte) *http.Request {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())
	Expect(w.Close()).To(Succeed())

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func jsonRequest(method, target string, payload any) *http.Request {
	raw, err := json.Marshal(payload)
	Expect(err).NotTo(HaveOccurred())
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](resp *http.Response) T {
	defer resp.Body.Close()
	var out T
	Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
	return out
}

var _ = Describe("Server", func() {
	var (
		server    *api.Server
		generator *testutils.MockGenerator
		registry  *prometheus.Registry
	)

	do := func(req *http.Request) *http.Response {
		resp, err := server.App().Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	upload := func(filename, text string) documents.UploadResult {
		resp := do(uploadRequest(http.MethodPost, "/v1/documents", filename, []byte(text)))
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		return decode[documents.UploadResult](resp)
	}

	BeforeEach(func() {
		store := inmemory.NewDriver()
		files, err := filestore.NewLocalWithFs(afero.NewMemMapFs(), "/uploads")
		Expect(err).NotTo(HaveOccurred())

		registry = prometheus.NewRegistry()
		metrics := telemetry.New(registry)

		encoder := lexical.New()
		ch, err := chunker.New(encoder, 10, 2)
		Expect(err).NotTo(HaveOccurred())
		orch, err := orchestrator.New(orchestrator.Config{
			Embedder: testutils.NewMockEmbedder(),
			Encoder:  encoder,
			Metrics:  metrics,
		})
		Expect(err).NotTo(HaveOccurred())

		docs, err := documents.New(documents.Config{
			Store:             store,
			Files:             files,
			Extractor:         extract.NewRegistry(),
			Splitter:          ch,
			Embedder:          orch,
			Metrics:           metrics,
			AllowedExtensions: []string{"txt", "md"},
			MaxBytes:          1024,
		})
		Expect(err).NotTo(HaveOccurred())

		searcher, err := retrieval.NewSearcher(retrieval.Config{Embedder: orch, Store: store, Metrics: metrics})
		Expect(err).NotTo(HaveOccurred())

		generator = testutils.NewMockGenerator()
		composer, err := answer.NewComposer(answer.Config{Generator: generator, Metrics: metrics})
		Expect(err).NotTo(HaveOccurred())

		server = api.NewServer(api.Config{
			RequestTimeout: time.Minute,
			Gatherer:       registry,
			EmbeddingModel: orch.Model(),
			ChatModel:      generator.Model(),
			StoreProvider:  "inmemory",
		}, docs, searcher, answer.NewPipeline(searcher, composer), logger.Nop())
	})

	Describe("health", func() {
		It("answers ping", func() {
			resp := do(httptest.NewRequest(http.MethodGet, "/ping", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("X-Request-ID")).NotTo(BeEmpty())
		})

		It("reports models and document count", func() {
			upload("fox.txt", foxText)

			resp := do(httptest.NewRequest(http.MethodGet, "/v1/health", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			health := decode[api.HealthResponse](resp)
			Expect(health.Status).To(Equal("ok"))
			Expect(health.ChatModel).To(Equal("mock-chat"))
			Expect(health.Documents).To(Equal(1))
		})

		It("serves metrics", func() {
			upload("fox.txt", foxText)

			resp := do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("shelf_documents_total"))
		})
	})

	Describe("documents", func() {
		It("uploads and lists documents", func() {
			res := upload("fox.txt", foxText)
			Expect(res.Chunks).To(BeNumerically(">", 1))

			resp := do(httptest.NewRequest(http.MethodGet, "/v1/documents?page=1&per_page=5", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			page := decode[documents.Page](resp)
			Expect(page.Total).To(Equal(1))
			Expect(page.Documents[0].Filename).To(Equal("fox.txt"))
		})

		It("rejects a request without a file", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/documents", nil)
			resp := do(req)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decode[api.ErrorResponse](resp).Error).To(Equal("no file uploaded"))
		})

		It("rejects duplicates with a conflict", func() {
			upload("fox.txt", foxText)
			resp := do(uploadRequest(http.MethodPost, "/v1/documents", "copy.txt", []byte(foxText)))
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})

		It("rejects unsupported types and blank files", func() {
			resp := do(uploadRequest(http.MethodPost, "/v1/documents", "image.png", []byte("png")))
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))

			resp = do(uploadRequest(http.MethodPost, "/v1/documents", "blank.txt", []byte("   \n ")))
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
		})

		It("rejects files over the size limit", func() {
			resp := do(uploadRequest(http.MethodPost, "/v1/documents", "big.txt", bytes.Repeat([]byte("a "), 1024)))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("validates paging", func() {
			resp := do(httptest.NewRequest(http.MethodGet, "/v1/documents?per_page=500", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			resp = do(httptest.NewRequest(http.MethodGet, "/v1/documents?page=zero", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("gets, downloads and deletes a document", func() {
			res := upload("fox.txt", foxText)
			base := "/v1/documents/" + itoa(res.DocumentID)

			resp := do(httptest.NewRequest(http.MethodGet, base, nil))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			resp = do(httptest.NewRequest(http.MethodGet, base+"/chunks", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			chunks := decode[map[string]any](resp)
			Expect(chunks["count"]).To(BeNumerically("==", res.Chunks))

			resp = do(httptest.NewRequest(http.MethodGet, base+"/download", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring(`filename="fox.txt"`))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal(foxText))

			resp = do(httptest.NewRequest(http.MethodDelete, base, nil))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			resp = do(httptest.NewRequest(http.MethodGet, base, nil))
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(decode[api.ErrorResponse](resp).Kind).To(Equal(errs.KindNotFound))
		})

		It("rejects malformed ids", func() {
			resp := do(httptest.NewRequest(http.MethodGet, "/v1/documents/abc", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("reuploads a document in place", func() {
			res := upload("fox.txt", foxText)

			resp := do(uploadRequest(http.MethodPut, "/v1/documents/"+itoa(res.DocumentID), "fox-v2.txt", []byte("Entirely new words about owls and night.")))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			out := decode[documents.ReuploadResult](resp)
			Expect(out.DocumentID).To(Equal(res.DocumentID))
			Expect(out.Mode).To(Equal(documents.ModeReplace))
			Expect(out.Filename).To(Equal("fox-v2.txt"))
		})

		It("returns 404 when reuploading a missing document", func() {
			resp := do(uploadRequest(http.MethodPut, "/v1/documents/999", "fox.txt", []byte(foxText)))
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("reports stats", func() {
			res := upload("fox.txt", foxText)
			resp := do(httptest.NewRequest(http.MethodGet, "/v1/documents/stats", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			stats := decode[map[string]int](resp)
			Expect(stats["documents"]).To(Equal(1))
			Expect(stats["chunks"]).To(Equal(res.Chunks))
		})
	})

	Describe("search", func() {
		BeforeEach(func() {
			upload("fox.txt", foxText)
		})

		It("searches with query parameters", func() {
			resp := do(httptest.NewRequest(http.MethodGet, "/v1/search?query=fox&top_k=2", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			out := decode[api.SearchResponse](resp)
			Expect(out.Count).To(Equal(2))
			Expect(out.Results[0].Filename).To(HavePrefix("fox.txt [chunk "))
			Expect(out.Results[0].Distance).To(BeNumerically("<=", out.Results[1].Distance))
			Expect(out.Quality.Results).To(Equal(2))
		})

		It("searches with a JSON body", func() {
			resp := do(jsonRequest(http.MethodPost, "/v1/search", map[string]any{"query": "dog"}))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decode[api.SearchResponse](resp).Count).To(BeNumerically("<=", retrieval.DefaultTopK))
		})

		DescribeTable("rejects invalid queries",
			func(payload map[string]any) {
				resp := do(jsonRequest(http.MethodPost, "/v1/search", payload))
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			},
			Entry("missing query", map[string]any{}),
			Entry("blank query", map[string]any{"query": "   "}),
			Entry("zero top_k", map[string]any{"query": "fox", "top_k": 0}),
			Entry("top_k above max", map[string]any{"query": "fox", "top_k": 21}),
			Entry("query too long", map[string]any{"query": string(bytes.Repeat([]byte("q"), 1001))}),
		)
	})

	Describe("chat", func() {
		BeforeEach(func() {
			upload("fox.txt", foxText)
		})

		It("answers from retrieved chunks", func() {
			resp := do(jsonRequest(http.MethodPost, "/v1/chat", map[string]any{"query": "What jumps?", "top_k": 2}))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			out := decode[answer.ChatResponse](resp)
			Expect(out.Success).To(BeTrue())
			Expect(out.Answer).To(Equal("mock answer"))
			Expect(out.Sources).To(HaveLen(2))
			Expect(out.Metadata.ModelUsed).To(Equal("mock-chat"))
			Expect(generator.LastPrompt()).To(ContainSubstring("What jumps?"))
		})

		It("returns the fallback answer with sources when generation fails", func() {
			generator.FailWith = errors.New("provider down")

			resp := do(jsonRequest(http.MethodPost, "/v1/chat", map[string]any{"query": "What jumps?"}))
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
			out := decode[answer.ChatResponse](resp)
			Expect(out.Success).To(BeFalse())
			Expect(out.Answer).To(Equal(answer.FallbackAnswer))
			Expect(out.Sources).NotTo(BeEmpty())
		})
	})

	It("renders unknown routes as JSON errors", func() {
		resp := do(httptest.NewRequest(http.MethodGet, "/v1/nope", nil))
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		Expect(decode[api.ErrorResponse](resp).Error).NotTo(BeEmpty())
	})
})

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
