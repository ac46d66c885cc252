package config

import (
	"slices"
	"strings"
	"time"

	"github.com/papercomputeco/shelf/pkg/answer"
	"github.com/papercomputeco/shelf/pkg/errs"
)

var (
	storageProviders    = []string{"sqlite", "postgres", "memory"}
	embeddingProviders  = []string{"openai", "ollama"}
	generationProviders = []string{"openai", "anthropic", "ollama"}
	eventsProviders     = []string{"none", "kafka"}
)

// Validate checks cfg for settings that would fail at startup. Every failure
// is a configuration error.
func (c *Config) Validate() error {
	if !slices.Contains(storageProviders, c.Storage.Provider) {
		return errs.Newf(errs.KindConfiguration, "storage.provider must be one of %s, got %q", strings.Join(storageProviders, ", "), c.Storage.Provider)
	}
	if c.Storage.Provider == "postgres" && c.Storage.PostgresDSN == "" {
		return errs.New(errs.KindConfiguration, "storage.postgres_dsn is required for the postgres provider")
	}

	if _, err := c.RequestTimeout(); err != nil {
		return err
	}

	if !slices.Contains(embeddingProviders, c.Embedding.Provider) {
		return errs.Newf(errs.KindConfiguration, "embedding.provider must be one of %s, got %q", strings.Join(embeddingProviders, ", "), c.Embedding.Provider)
	}
	if c.Embedding.Dimensions == 0 {
		return errs.New(errs.KindConfiguration, "embedding.dimensions must be positive")
	}
	if c.Embedding.RequestsPerSecond < 0 {
		return errs.New(errs.KindConfiguration, "embedding.requests_per_second must not be negative")
	}

	if c.Chunking.MaxTokens == 0 {
		return errs.New(errs.KindConfiguration, "chunking.max_tokens must be positive")
	}
	if c.Chunking.OverlapTokens >= c.Chunking.MaxTokens {
		return errs.Newf(errs.KindConfiguration, "chunking.overlap_tokens (%d) must be smaller than chunking.max_tokens (%d)", c.Chunking.OverlapTokens, c.Chunking.MaxTokens)
	}

	if !slices.Contains(generationProviders, c.Generation.Provider) {
		return errs.Newf(errs.KindConfiguration, "generation.provider must be one of %s, got %q", strings.Join(generationProviders, ", "), c.Generation.Provider)
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return errs.Newf(errs.KindConfiguration, "generation.temperature must be within [0, 2], got %v", c.Generation.Temperature)
	}
	if c.Generation.UserPromptTemplate != "" {
		if err := answer.ValidateTemplate(c.Generation.UserPromptTemplate); err != nil {
			return err
		}
	}
	if c.Generation.DefaultTopK > 20 {
		return errs.Newf(errs.KindConfiguration, "generation.default_top_k must be at most 20, got %d", c.Generation.DefaultTopK)
	}

	if !slices.Contains(eventsProviders, c.Events.Provider) {
		return errs.Newf(errs.KindConfiguration, "events.provider must be one of %s, got %q", strings.Join(eventsProviders, ", "), c.Events.Provider)
	}
	if c.Events.Provider == "kafka" && (len(c.BrokerList()) == 0 || c.Events.Topic == "") {
		return errs.New(errs.KindConfiguration, "events.brokers and events.topic are required for the kafka provider")
	}

	return nil
}

// RequestTimeout parses api.request_timeout.
func (c *Config) RequestTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.API.RequestTimeout)
	if err != nil {
		return 0, errs.Wrap(errs.KindConfiguration, "api.request_timeout is not a valid duration", err)
	}
	if d <= 0 {
		return 0, errs.New(errs.KindConfiguration, "api.request_timeout must be positive")
	}
	return d, nil
}

// BrokerList splits events.brokers.
func (c *Config) BrokerList() []string {
	return splitList(c.Events.Brokers)
}

// ExtensionList splits api.allowed_extensions.
func (c *Config) ExtensionList() []string {
	return splitList(c.API.AllowedExtensions)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
