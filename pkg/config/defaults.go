package config

const (
	defaultStorageProvider = "sqlite"

	defaultAPIListen         = ":8080"
	defaultRequestTimeout    = "2m"
	defaultMaxUploadBytes    = 16 << 20
	defaultAllowedExtensions = "txt,md,markdown,csv,json,log,html,htm"

	defaultClientAPITarget = "http://localhost:8080"

	defaultEmbeddingProvider   = "openai"
	defaultEmbeddingTarget     = "https://api.openai.com"
	defaultEmbeddingModel      = "text-embedding-3-small"
	defaultEmbeddingDimensions = 1536
	defaultEmbeddingAPIKeyEnv  = "OPENAI_API_KEY"

	defaultChunkMaxTokens     = 500
	defaultChunkOverlapTokens = 50
	defaultChunkEncoding      = "cl100k_base"

	defaultGenerationProvider  = "openai"
	defaultGenerationTarget    = "https://api.openai.com"
	defaultGenerationModel     = "gpt-4o"
	defaultGenerationAPIKeyEnv = "OPENAI_API_KEY"
	defaultTemperature         = 0.2
	defaultGenerationMaxTokens = 1000
	defaultMaxContextChars     = 1000
	defaultTopK                = 3

	defaultEventsProvider = "none"
	defaultEventsTopic    = "shelf.documents"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider: defaultStorageProvider,
		},
		API: APIConfig{
			Listen:            defaultAPIListen,
			RequestTimeout:    defaultRequestTimeout,
			MaxUploadBytes:    defaultMaxUploadBytes,
			AllowedExtensions: defaultAllowedExtensions,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
			APIKeyEnv:  defaultEmbeddingAPIKeyEnv,
		},
		Chunking: ChunkingConfig{
			MaxTokens:     defaultChunkMaxTokens,
			OverlapTokens: defaultChunkOverlapTokens,
			Encoding:      defaultChunkEncoding,
		},
		Generation: GenerationConfig{
			Provider:        defaultGenerationProvider,
			Target:          defaultGenerationTarget,
			Model:           defaultGenerationModel,
			APIKeyEnv:       defaultGenerationAPIKeyEnv,
			Temperature:     defaultTemperature,
			MaxTokens:       defaultGenerationMaxTokens,
			MaxContextChars: defaultMaxContextChars,
			DefaultTopK:     defaultTopK,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
