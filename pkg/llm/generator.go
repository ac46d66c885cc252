// Package llm defines the generative model contract used to compose answers.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrGeneration is returned when a provider call fails.
	ErrGeneration = errors.New("generation failed")

	// ErrNoAPIKey is returned when a hosted provider has no credentials.
	ErrNoAPIKey = errors.New("generation provider api key not set")

	// ErrEmptyCompletion is returned when a provider answers with no text.
	ErrEmptyCompletion = errors.New("provider returned an empty completion")
)

const (
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 1000
)

// Generator produces a completion for a system and user prompt pair.
type Generator interface {
	// Generate returns the model's reply to user under the system prompt.
	Generate(ctx context.Context, system, user string) (string, error)

	// Model returns the model name used for generation.
	Model() string
}

// Options are the sampling parameters shared by providers.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// WithDefaults fills zero values with DefaultTemperature and DefaultMaxTokens.
// A zero temperature is therefore not expressible; use a small positive value.
func (o Options) WithDefaults() Options {
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	return o
}
