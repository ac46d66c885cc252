package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent shelf configuration stored as config.toml
// in the .shelf/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version    int              `toml:"version"`
	Storage    StorageConfig    `toml:"storage"`
	API        APIConfig        `toml:"api"`
	Client     ClientConfig     `toml:"client"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
	Chunking   ChunkingConfig   `toml:"chunking"`
	Generation GenerationConfig `toml:"generation"`
	Events     EventsConfig     `toml:"events"`
}

// StorageConfig selects the document store and where uploads are kept.
// Empty paths resolve inside the .shelf/ directory.
type StorageConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
	UploadDir   string `toml:"upload_dir,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen         string `toml:"listen,omitempty"`
	RequestTimeout string `toml:"request_timeout,omitempty"`
	MaxUploadBytes uint   `toml:"max_upload_bytes,omitempty"`

	// AllowedExtensions is a comma separated list; empty accepts anything
	// the extractor supports.
	AllowedExtensions string `toml:"allowed_extensions,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running
// server (e.g. shelf search, shelf chat). Values are full URLs.
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `toml:"api_key_env,omitempty"`

	// BatchSize overrides the model catalog's batch limit when non-zero.
	BatchSize uint `toml:"batch_size,omitempty"`

	// RequestsPerSecond paces provider calls; zero disables pacing.
	RequestsPerSecond float64 `toml:"requests_per_second,omitempty"`

	// ModelsFile is a TOML file of model limits and prices merged over the
	// built-in catalog and reloaded on change.
	ModelsFile string `toml:"models_file,omitempty"`
}

// ChunkingConfig holds the token window used to split documents.
type ChunkingConfig struct {
	MaxTokens     uint   `toml:"max_tokens,omitempty"`
	OverlapTokens uint   `toml:"overlap_tokens,omitempty"`
	Encoding      string `toml:"encoding,omitempty"`
}

// GenerationConfig holds answer generation settings.
type GenerationConfig struct {
	Provider           string  `toml:"provider,omitempty"`
	Target             string  `toml:"target,omitempty"`
	Model              string  `toml:"model,omitempty"`
	APIKeyEnv          string  `toml:"api_key_env,omitempty"`
	Temperature        float64 `toml:"temperature,omitempty"`
	MaxTokens          uint    `toml:"max_tokens,omitempty"`
	SystemPrompt       string  `toml:"system_prompt,omitempty"`
	UserPromptTemplate string  `toml:"user_prompt_template,omitempty"`
	MaxContextChars    uint    `toml:"max_context_chars,omitempty"`
	DefaultTopK        uint    `toml:"default_top_k,omitempty"`
}

// EventsConfig selects where document lifecycle events are published.
type EventsConfig struct {
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma separated list of host:port pairs.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			if strings.TrimSpace(v) == "" {
				*field(c) = 0
				return nil
			}
			n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func floatKey(name string, field func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatFloat(*field(c), 'g', -1, 64)
		},
		set: func(c *Config, v string) error {
			if strings.TrimSpace(v) == "" {
				*field(c) = 0
				return nil
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.provider":     stringKey(func(c *Config) *string { return &c.Storage.Provider }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),
	"storage.upload_dir":   stringKey(func(c *Config) *string { return &c.Storage.UploadDir }),

	"api.listen":             stringKey(func(c *Config) *string { return &c.API.Listen }),
	"api.request_timeout":    stringKey(func(c *Config) *string { return &c.API.RequestTimeout }),
	"api.max_upload_bytes":   uintKey("api.max_upload_bytes", func(c *Config) *uint { return &c.API.MaxUploadBytes }),
	"api.allowed_extensions": stringKey(func(c *Config) *string { return &c.API.AllowedExtensions }),

	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),

	"embedding.provider":            stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":              stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":               stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions":          uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"embedding.api_key_env":         stringKey(func(c *Config) *string { return &c.Embedding.APIKeyEnv }),
	"embedding.batch_size":          uintKey("embedding.batch_size", func(c *Config) *uint { return &c.Embedding.BatchSize }),
	"embedding.requests_per_second": floatKey("embedding.requests_per_second", func(c *Config) *float64 { return &c.Embedding.RequestsPerSecond }),
	"embedding.models_file":         stringKey(func(c *Config) *string { return &c.Embedding.ModelsFile }),

	"chunking.max_tokens":     uintKey("chunking.max_tokens", func(c *Config) *uint { return &c.Chunking.MaxTokens }),
	"chunking.overlap_tokens": uintKey("chunking.overlap_tokens", func(c *Config) *uint { return &c.Chunking.OverlapTokens }),
	"chunking.encoding":       stringKey(func(c *Config) *string { return &c.Chunking.Encoding }),

	"generation.provider":             stringKey(func(c *Config) *string { return &c.Generation.Provider }),
	"generation.target":               stringKey(func(c *Config) *string { return &c.Generation.Target }),
	"generation.model":                stringKey(func(c *Config) *string { return &c.Generation.Model }),
	"generation.api_key_env":          stringKey(func(c *Config) *string { return &c.Generation.APIKeyEnv }),
	"generation.temperature":          floatKey("generation.temperature", func(c *Config) *float64 { return &c.Generation.Temperature }),
	"generation.max_tokens":           uintKey("generation.max_tokens", func(c *Config) *uint { return &c.Generation.MaxTokens }),
	"generation.system_prompt":        stringKey(func(c *Config) *string { return &c.Generation.SystemPrompt }),
	"generation.user_prompt_template": stringKey(func(c *Config) *string { return &c.Generation.UserPromptTemplate }),
	"generation.max_context_chars":    uintKey("generation.max_context_chars", func(c *Config) *uint { return &c.Generation.MaxContextChars }),
	"generation.default_top_k":        uintKey("generation.default_top_k", func(c *Config) *uint { return &c.Generation.DefaultTopK }),

	"events.provider": stringKey(func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers":  stringKey(func(c *Config) *string { return &c.Events.Brokers }),
	"events.topic":    stringKey(func(c *Config) *string { return &c.Events.Topic }),
}

// orderedKeys lists configKeys in TOML section order.
var orderedKeys = []string{
	"storage.provider",
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"storage.upload_dir",
	"api.listen",
	"api.request_timeout",
	"api.max_upload_bytes",
	"api.allowed_extensions",
	"client.api_target",
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"embedding.dimensions",
	"embedding.api_key_env",
	"embedding.batch_size",
	"embedding.requests_per_second",
	"embedding.models_file",
	"chunking.max_tokens",
	"chunking.overlap_tokens",
	"chunking.encoding",
	"generation.provider",
	"generation.target",
	"generation.model",
	"generation.api_key_env",
	"generation.temperature",
	"generation.max_tokens",
	"generation.system_prompt",
	"generation.user_prompt_template",
	"generation.max_context_chars",
	"generation.default_top_k",
	"events.provider",
	"events.brokers",
	"events.topic",
}
