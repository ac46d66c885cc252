package api

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/papercomputeco/shelf/pkg/answer"
	"github.com/papercomputeco/shelf/pkg/documents"
	"github.com/papercomputeco/shelf/pkg/retrieval"
	"github.com/papercomputeco/shelf/pkg/storage"
)

// DocumentService is the document lifecycle used by the handlers.
type DocumentService interface {
	Upload(ctx context.Context, filename string, data []byte) (*documents.UploadResult, error)
	Reupload(ctx context.Context, id int64, filename string, data []byte) (*documents.ReuploadResult, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, page, perPage int) (*documents.Page, error)
	Get(ctx context.Context, id int64) (*storage.Document, error)
	Chunks(ctx context.Context, id int64) ([]storage.Chunk, error)
	Open(ctx context.Context, id int64) (io.ReadCloser, *storage.Document, error)
	Stats(ctx context.Context) (storage.Stats, error)
	MaxBytes() int64
}

// Searcher ranks chunks for a query.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]retrieval.Result, error)
	Buckets() []retrieval.Bucket
}

// Chatter answers a query from retrieved chunks.
type Chatter interface {
	Chat(ctx context.Context, query string, topK int) (*answer.ChatResponse, error)
}

// Server is the API server for managing and querying the document shelf.
type Server struct {
	config    Config
	documents DocumentService
	searcher  Searcher
	chatter   Chatter
	logger    *slog.Logger
	app       *fiber.App
}

// NewServer creates a new API server. Services are injected so the CLI can
// share them with other components.
func NewServer(config Config, docs DocumentService, searcher Searcher, chatter Chatter, logger *slog.Logger) *Server {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 2 * time.Minute
	}
	if config.DefaultTopK <= 0 {
		config.DefaultTopK = retrieval.DefaultTopK
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             int(docs.MaxBytes()) + 1<<20,
		ErrorHandler:          fiberErrorHandler,
	})

	s := &Server{
		config:    config,
		documents: docs,
		searcher:  searcher,
		chatter:   chatter,
		logger:    logger.With("component", "api"),
		app:       app,
	}

	app.Use(s.requestLogger)

	app.Get("/ping", s.handlePing)
	app.Get("/v1/health", s.handleHealth)
	if config.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{})))
	}
	if config.MCPHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCPHandler))
	}

	v1 := app.Group("/v1", s.withTimeout)

	v1.Post("/documents", s.handleUpload)
	v1.Get("/documents", s.handleListDocuments)
	v1.Get("/documents/stats", s.handleStats)
	v1.Get("/documents/:id", s.handleGetDocument)
	v1.Put("/documents/:id", s.handleReupload)
	v1.Delete("/documents/:id", s.handleDeleteDocument)
	v1.Get("/documents/:id/chunks", s.handleGetChunks)
	v1.Get("/documents/:id/download", s.handleDownload)

	v1.Get("/search", s.handleSearch)
	v1.Post("/search", s.handleSearch)
	v1.Post("/chat", s.handleChat)

	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// withTimeout gives each request a context bounded by RequestTimeout.
// Handlers read it with c.UserContext().
func (s *Server) withTimeout(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), s.config.RequestTimeout)
	defer cancel()
	c.SetUserContext(ctx)
	return c.Next()
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	requestID := c.Get(fiber.HeaderXRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(fiber.HeaderXRequestID, requestID)

	err := c.Next()
	if err != nil {
		// Let the error handler set the status before it is logged.
		if herr := c.App().ErrorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	s.logger.Info("request",
		"request_id", requestID,
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
