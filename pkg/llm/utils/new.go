// Package llmutils builds generators from configuration.
package llmutils

import (
	"fmt"
	"os"
	"time"

	"github.com/papercomputeco/shelf/pkg/llm"
	"github.com/papercomputeco/shelf/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/shelf/pkg/llm/provider/ollama"
	"github.com/papercomputeco/shelf/pkg/llm/provider/openai"
)

type NewGeneratorOpts struct {
	ProviderType string
	TargetURL    string
	Model        string

	// APIKey takes precedence over the provider's environment variable.
	APIKey string

	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

func NewGenerator(o *NewGeneratorOpts) (llm.Generator, error) {
	opts := llm.Options{Temperature: o.Temperature, MaxTokens: o.MaxTokens}

	switch o.ProviderType {
	case "openai":
		return openai.New(openai.Config{
			BaseURL: o.TargetURL,
			APIKey:  ResolveAPIKey(o.ProviderType, o.APIKey),
			Model:   o.Model,
			Options: opts,
			Timeout: o.Timeout,
		})
	case "anthropic":
		return anthropic.New(anthropic.Config{
			BaseURL: o.TargetURL,
			APIKey:  ResolveAPIKey(o.ProviderType, o.APIKey),
			Model:   o.Model,
			Options: opts,
			Timeout: o.Timeout,
		})
	case "ollama":
		return ollama.New(ollama.Config{
			BaseURL: o.TargetURL,
			Model:   o.Model,
			Options: opts,
			Timeout: o.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", o.ProviderType)
	}
}

// ResolveAPIKey returns explicit when set, otherwise the conventional
// environment variable for provider.
func ResolveAPIKey(provider, explicit string) string {
	if explicit != "" {
		return explicit
	}
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return ""
	}
}
