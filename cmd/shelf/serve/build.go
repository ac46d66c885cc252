package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/papercomputeco/shelf/api"
	"github.com/papercomputeco/shelf/api/mcp"
	"github.com/papercomputeco/shelf/pkg/answer"
	"github.com/papercomputeco/shelf/pkg/chunker"
	"github.com/papercomputeco/shelf/pkg/config"
	"github.com/papercomputeco/shelf/pkg/credentials"
	"github.com/papercomputeco/shelf/pkg/documents"
	"github.com/papercomputeco/shelf/pkg/dotdir"
	"github.com/papercomputeco/shelf/pkg/embeddings/orchestrator"
	embeddingutils "github.com/papercomputeco/shelf/pkg/embeddings/utils"
	"github.com/papercomputeco/shelf/pkg/errs"
	"github.com/papercomputeco/shelf/pkg/eventstream"
	"github.com/papercomputeco/shelf/pkg/eventstream/kafka"
	"github.com/papercomputeco/shelf/pkg/eventstream/nop"
	"github.com/papercomputeco/shelf/pkg/extract"
	"github.com/papercomputeco/shelf/pkg/filestore"
	llmutils "github.com/papercomputeco/shelf/pkg/llm/utils"
	"github.com/papercomputeco/shelf/pkg/pricing"
	"github.com/papercomputeco/shelf/pkg/retrieval"
	"github.com/papercomputeco/shelf/pkg/storage"
	storageutils "github.com/papercomputeco/shelf/pkg/storage/utils"
	"github.com/papercomputeco/shelf/pkg/telemetry"
	"github.com/papercomputeco/shelf/pkg/tokenizer"
	"github.com/papercomputeco/shelf/pkg/tokenizer/lexical"
	"github.com/papercomputeco/shelf/pkg/tokenizer/tiktoken"
)

// App is a fully wired server and the services behind it.
type App struct {
	Server    *api.Server
	Documents *documents.Service
	Searcher  *retrieval.Searcher
	Pipeline  *answer.Pipeline
	Registry  *prometheus.Registry

	closers []func() error
}

// Close releases the store, embedder and event publisher.
func (a *App) Close() error {
	var errList []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

// Build wires every component from cfg. cfg must already be validated.
// Model catalog reloads run until ctx is cancelled.
func Build(ctx context.Context, cfg *config.Config, configDir string, log *slog.Logger) (*App, error) {
	app := &App{}
	ok := false
	defer func() {
		if !ok {
			_ = app.Close()
		}
	}()

	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.New(app.Registry)

	store, err := newStore(ctx, cfg, configDir, log)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, store.Close)

	uploadDir, err := resolvePath(cfg.Storage.UploadDir, configDir, dotdir.UploadsDir)
	if err != nil {
		return nil, err
	}
	files, err := filestore.NewLocal(uploadDir)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "creating upload directory", err)
	}

	encoder := newEncoder(cfg.Chunking.Encoding, log)
	splitter, err := chunker.New(encoder, int(cfg.Chunking.MaxTokens), int(cfg.Chunking.OverlapTokens))
	if err != nil {
		return nil, err
	}

	creds, err := credentials.NewManager(configDir)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "opening credentials", err)
	}
	embeddingKey, err := resolveKey(creds, cfg.Embedding.Provider, cfg.Embedding.APIKeyEnv, log)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		APIKey:       embeddingKey,
		Dimensions:   int(cfg.Embedding.Dimensions),
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "creating embedder", err)
	}
	app.closers = append(app.closers, embedder.Close)

	catalog, err := pricing.NewCatalog(cfg.Embedding.ModelsFile, log)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "loading model catalog", err)
	}
	go func() {
		if err := catalog.Watch(ctx); err != nil {
			log.Warn("model catalog watch stopped", "error", err)
		}
	}()

	orch, err := orchestrator.New(orchestrator.Config{
		Embedder:          embedder,
		Encoder:           encoder,
		Catalog:           catalog,
		Metrics:           metrics,
		Logger:            log,
		BatchSize:         int(cfg.Embedding.BatchSize),
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		Dimensions:        int(cfg.Embedding.Dimensions),
	})
	if err != nil {
		return nil, err
	}

	publisher, err := newPublisher(cfg)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, publisher.Close)

	app.Documents, err = documents.New(documents.Config{
		Store:             store,
		Files:             files,
		Extractor:         extract.NewRegistry(),
		Splitter:          splitter,
		Embedder:          orch,
		Publisher:         publisher,
		Metrics:           metrics,
		Logger:            log,
		AllowedExtensions: cfg.ExtensionList(),
		MaxBytes:          int64(cfg.API.MaxUploadBytes),
	})
	if err != nil {
		return nil, err
	}

	app.Searcher, err = retrieval.NewSearcher(retrieval.Config{
		Embedder: orch,
		Store:    store,
		Metrics:  metrics,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return nil, err
	}

	generationKey, err := resolveKey(creds, cfg.Generation.Provider, cfg.Generation.APIKeyEnv, log)
	if err != nil {
		return nil, err
	}

	generator, err := llmutils.NewGenerator(&llmutils.NewGeneratorOpts{
		ProviderType: cfg.Generation.Provider,
		TargetURL:    cfg.Generation.Target,
		Model:        cfg.Generation.Model,
		APIKey:       generationKey,
		Temperature:  cfg.Generation.Temperature,
		MaxTokens:    int(cfg.Generation.MaxTokens),
		Timeout:      timeout,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "creating generator", err)
	}

	composer, err := answer.NewComposer(answer.Config{
		Generator:       generator,
		SystemPrompt:    cfg.Generation.SystemPrompt,
		UserTemplate:    cfg.Generation.UserPromptTemplate,
		MaxContextChars: int(cfg.Generation.MaxContextChars),
		Metrics:         metrics,
		Logger:          log,
	})
	if err != nil {
		return nil, err
	}
	app.Pipeline = answer.NewPipeline(app.Searcher, composer)

	mcpServer, err := mcp.NewServer(mcp.Config{
		Searcher: app.Searcher,
		Chatter:  app.Pipeline,
		Logger:   log.With("component", "mcp"),
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "creating MCP server", err)
	}

	app.Server = api.NewServer(api.Config{
		ListenAddr:     cfg.API.Listen,
		RequestTimeout: timeout,
		DefaultTopK:    int(cfg.Generation.DefaultTopK),
		Gatherer:       app.Registry,
		MCPHandler:     mcpServer.Handler(),
		EmbeddingModel: orch.Model(),
		ChatModel:      generator.Model(),
		StoreProvider:  cfg.Storage.Provider,
	}, app.Documents, app.Searcher, app.Pipeline, log)

	log.Info("shelf configured",
		"store", cfg.Storage.Provider,
		"upload_dir", uploadDir,
		"embedding_model", orch.Model(),
		"chat_model", generator.Model(),
		"encoding", encoder.Name(),
		"events", cfg.Events.Provider,
	)

	ok = true
	return app, nil
}

func newStore(ctx context.Context, cfg *config.Config, configDir string, log *slog.Logger) (storage.Store, error) {
	sqlitePath := cfg.Storage.SQLitePath
	if cfg.Storage.Provider == "sqlite" {
		var err error
		sqlitePath, err = resolvePath(sqlitePath, configDir, dotdir.DatabaseFile)
		if err != nil {
			return nil, err
		}
	}

	store, err := storageutils.NewStore(ctx, &storageutils.NewStoreOpts{
		ProviderType: cfg.Storage.Provider,
		SQLitePath:   sqlitePath,
		PostgresDSN:  cfg.Storage.PostgresDSN,
		Dimensions:   int(cfg.Embedding.Dimensions),
		Logger:       log,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "opening document store", err)
	}
	return store, nil
}

// newEncoder returns the configured encoding. BPE tables are fetched on first
// use, so an unavailable table falls back to the lexical encoder.
func newEncoder(encoding string, log *slog.Logger) tokenizer.Encoder {
	if encoding == "lexical" {
		return lexical.New()
	}

	enc, err := tiktoken.New(encoding)
	if err != nil {
		log.Warn("tokenizer unavailable, falling back to lexical encoding", "encoding", encoding, "error", err)
		return lexical.New()
	}
	return enc
}

func newPublisher(cfg *config.Config) (eventstream.Publisher, error) {
	if cfg.Events.Provider != "kafka" {
		return nop.NewPublisher(), nil
	}

	p, err := kafka.NewPublisher(kafka.Config{
		Brokers: cfg.BrokerList(),
		Topic:   cfg.Events.Topic,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "creating kafka publisher", err)
	}
	return p, nil
}

// resolvePath returns path, or name inside the .shelf/ directory when path
// is empty.
func resolvePath(path, configDir, name string) (string, error) {
	if path != "" {
		return path, nil
	}
	p, err := dotdir.NewManager().Path(configDir, name)
	if err != nil {
		return "", errs.Wrap(errs.KindConfiguration, fmt.Sprintf("resolving default %s path", name), err)
	}
	return p, nil
}

func resolveKey(creds *credentials.Manager, provider, envName string, log *slog.Logger) (string, error) {
	key, source, err := creds.Resolve(provider, envName)
	if err != nil {
		return "", errs.Wrap(errs.KindConfiguration, "reading credentials", err)
	}
	if key != "" {
		log.Debug("resolved api key", "provider", provider, "source", string(source))
	}
	return key, nil
}
