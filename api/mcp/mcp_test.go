package mcp_test

import (
	"context"
	"encoding/json"
	"errors"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/shelf/api/mcp"
	"github.com/papercomputeco/shelf/pkg/answer"
	"github.com/papercomputeco/shelf/pkg/errs"
	"github.com/papercomputeco/shelf/pkg/logger"
	"github.com/papercomputeco/shelf/pkg/retrieval"
)

type stubSearcher struct {
	results []retrieval.Result
	err     error
	topK    int
}

func (s *stubSearcher) Search(_ context.Context, _ string, topK int) ([]retrieval.Result, error) {
	s.topK = topK
	return s.results, s.err
}

func (s *stubSearcher) Buckets() []retrieval.Bucket { return retrieval.DefaultBuckets }

type stubChatter struct {
	resp *answer.ChatResponse
	err  error
}

func (c *stubChatter) Chat(_ context.Context, query string, _ int) (*answer.ChatResponse, error) {
	if c.resp != nil {
		c.resp.Query = query
	}
	return c.resp, c.err
}

func connect(ctx context.Context, server *mcp.Server) *gomcp.ClientSession {
	serverTransport, clientTransport := gomcp.NewInMemoryTransports()
	_, err := server.MCPServer().Connect(ctx, serverTransport, nil)
	Expect(err).NotTo(HaveOccurred())

	client := gomcp.NewClient(&gomcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() { _ = session.Close() })
	return session
}

func text(res *gomcp.CallToolResult) string {
	Expect(res.Content).To(HaveLen(1))
	tc, ok := res.Content[0].(*gomcp.TextContent)
	Expect(ok).To(BeTrue())
	return tc.Text
}

var _ = Describe("MCP Server", func() {
	var (
		ctx      context.Context
		searcher *stubSearcher
		chatter  *stubChatter
	)

	BeforeEach(func() {
		ctx = context.Background()
		searcher = &stubSearcher{results: []retrieval.Result{{
			ChunkID:    7,
			DocumentID: 1,
			ChunkIndex: 0,
			Content:    "The quick brown fox",
			Filename:   "fox.txt [chunk 1]",
			Distance:   0.1,
			Similarity: 0.9,
		}}}
		chatter = &stubChatter{resp: &answer.ChatResponse{
			Answer:   "A fox.",
			Success:  true,
			Sources:  searcher.results,
			Metadata: answer.ChatMetadata{ModelUsed: "mock-chat"},
		}}
	})

	Describe("NewServer", func() {
		It("requires a searcher", func() {
			_, err := mcp.NewServer(mcp.Config{Logger: logger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("searcher is required")))
		})

		It("requires a logger", func() {
			_, err := mcp.NewServer(mcp.Config{Searcher: searcher})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("builds an empty server in noop mode", func() {
			server, err := mcp.NewServer(mcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).NotTo(BeNil())

			tools, err := connect(ctx, server).ListTools(ctx, &gomcp.ListToolsParams{})
			Expect(err).NotTo(HaveOccurred())
			Expect(tools.Tools).To(BeEmpty())
		})

		It("registers ask only with a chatter", func() {
			server, err := mcp.NewServer(mcp.Config{Searcher: searcher, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			tools, err := connect(ctx, server).ListTools(ctx, &gomcp.ListToolsParams{})
			Expect(err).NotTo(HaveOccurred())
			Expect(tools.Tools).To(HaveLen(1))
			Expect(tools.Tools[0].Name).To(Equal("search"))
		})
	})

	Describe("tools", func() {
		var session *gomcp.ClientSession

		BeforeEach(func() {
			server, err := mcp.NewServer(mcp.Config{
				Searcher: searcher,
				Chatter:  chatter,
				Logger:   logger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())
			session = connect(ctx, server)
		})

		It("returns ranked chunks from search", func() {
			res, err := session.CallTool(ctx, &gomcp.CallToolParams{
				Name:      "search",
				Arguments: map[string]any{"query": "fox"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())

			var out mcp.SearchOutput
			Expect(json.Unmarshal([]byte(text(res)), &out)).To(Succeed())
			Expect(out.Count).To(Equal(1))
			Expect(out.Rating).To(Equal(retrieval.RatingExcellent))
			Expect(out.Results[0].Source).To(Equal("fox.txt [chunk 1]"))
			Expect(searcher.topK).To(Equal(retrieval.DefaultTopK))
		})

		It("caps top_k", func() {
			_, err := session.CallTool(ctx, &gomcp.CallToolParams{
				Name:      "search",
				Arguments: map[string]any{"query": "fox", "top_k": 50},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(searcher.topK).To(Equal(retrieval.MaxTopK))
		})

		It("reports search failures as tool errors", func() {
			searcher.err = errs.Wrap(errs.KindPersistence, "searching chunks", errors.New("disk gone"))

			res, err := session.CallTool(ctx, &gomcp.CallToolParams{
				Name:      "search",
				Arguments: map[string]any{"query": "fox"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(text(res)).To(ContainSubstring("Search failed"))
			Expect(text(res)).NotTo(ContainSubstring("disk gone"))
		})

		It("returns an empty result list alongside a search error", func() {
			searcher.err = errs.New(errs.KindExternalService, "embedding query")

			res, err := session.CallTool(ctx, &gomcp.CallToolParams{
				Name:      "search",
				Arguments: map[string]any{"query": "fox"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())

			raw, err := json.Marshal(res.StructuredContent)
			Expect(err).NotTo(HaveOccurred())
			var out mcp.SearchOutput
			Expect(json.Unmarshal(raw, &out)).To(Succeed())
			Expect(out.Results).NotTo(BeNil())
			Expect(out.Results).To(BeEmpty())
		})

		It("reports ask failures as tool errors", func() {
			chatter.resp = nil
			chatter.err = errs.Wrap(errs.KindExternalService, "generating answer", errors.New("upstream 503 body"))

			res, err := session.CallTool(ctx, &gomcp.CallToolParams{
				Name:      "ask",
				Arguments: map[string]any{"query": "what jumps?"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(text(res)).To(ContainSubstring("Ask failed"))
			Expect(text(res)).NotTo(ContainSubstring("upstream 503 body"))
		})

		It("answers questions with ask", func() {
			res, err := session.CallTool(ctx, &gomcp.CallToolParams{
				Name:      "ask",
				Arguments: map[string]any{"query": "what jumps?"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())

			var out mcp.AskOutput
			Expect(json.Unmarshal([]byte(text(res)), &out)).To(Succeed())
			Expect(out.Answer).To(Equal("A fox."))
			Expect(out.Model).To(Equal("mock-chat"))
			Expect(out.Sources).To(HaveLen(1))
		})
	})
})
