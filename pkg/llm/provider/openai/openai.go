// Package openai implements llm.Generator against the OpenAI chat completions
// API and compatible servers.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/shelf/pkg/llm"
)

const (
	DefaultModel   = "gpt-4o"
	DefaultBaseURL = "https://api.openai.com"
)

// Config holds configuration for the OpenAI generator.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Options llm.Options

	// Timeout bounds a single request. Defaults to two minutes.
	Timeout time.Duration
}

// Generator calls /v1/chat/completions without streaming.
type Generator struct {
	baseURL    string
	apiKey     string
	model      string
	opts       llm.Options
	httpClient *http.Client
}

var _ llm.Generator = (*Generator)(nil)

func New(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, llm.ErrNoAPIKey
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}

	return &Generator{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		opts:       cfg.Options.WithDefaults(),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (g *Generator) Model() string {
	return g.model
}

func (g *Generator) Generate(ctx context.Context, system, user string) (string, error) {
	reqBody := openaiRequest{
		Model: g.model,
		Messages: []openaiMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   &g.opts.MaxTokens,
		Temperature: &g.opts.Temperature,
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", llm.ErrGeneration, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", llm.ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: send request: %v", llm.ErrGeneration, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", llm.ErrGeneration, err)
	}

	var result openaiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("%w: openai status %d: %s", llm.ErrGeneration, resp.StatusCode, string(body))
		}
		return "", fmt.Errorf("%w: decode response: %v", llm.ErrGeneration, err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("%w: openai error: %s", llm.ErrGeneration, result.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: openai status %d", llm.ErrGeneration, resp.StatusCode)
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: %w", llm.ErrGeneration, llm.ErrEmptyCompletion)
	}

	return result.Choices[0].Message.Content, nil
}
