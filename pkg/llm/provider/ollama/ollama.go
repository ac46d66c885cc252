// Package ollama implements llm.Generator against Ollama's /api/chat.
package ollama

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
	DefaultModel   = "llama3.2"
	DefaultBaseURL = "http://localhost:11434"
)

// Config holds configuration for the Ollama generator.
type Config struct {
	BaseURL string
	Model   string
	Options llm.Options

	// Timeout bounds a single request. Defaults to two minutes.
	Timeout time.Duration
}

// Generator calls a local Ollama server.
type Generator struct {
	baseURL    string
	model      string
	opts       llm.Options
	httpClient *http.Client
}

var _ llm.Generator = (*Generator)(nil)

func New(cfg Config) (*Generator, error) {
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
		model:      model,
		opts:       cfg.Options.WithDefaults(),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (g *Generator) Model() string {
	return g.model
}

func (g *Generator) Generate(ctx context.Context, system, user string) (string, error) {
	request := ollamaChatRequest{
		Model: g.model,
		Messages: []ollamaChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream: false,
		Options: ollamaOptions{
			Temperature: g.opts.Temperature,
			NumPredict:  g.opts.MaxTokens,
		},
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("%w: marshal ollama request: %v", llm.ErrGeneration, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: create ollama request: %v", llm.ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: send ollama request: %v", llm.ErrGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: ollama status %d: %s", llm.ErrGeneration, resp.StatusCode, string(body))
	}

	var response ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("%w: decode ollama response: %v", llm.ErrGeneration, err)
	}
	if response.Error != "" {
		return "", fmt.Errorf("%w: ollama error: %s", llm.ErrGeneration, response.Error)
	}
	if strings.TrimSpace(response.Message.Content) == "" {
		return "", fmt.Errorf("%w: %w", llm.ErrGeneration, llm.ErrEmptyCompletion)
	}

	return response.Message.Content, nil
}
