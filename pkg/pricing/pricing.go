// Package pricing holds the model catalog: per-model batch limits, vector
// dimensions and token prices used for usage accounting.
package pricing

import (
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultMaxBatchItems applies to models missing from the catalog.
	DefaultMaxBatchItems = 100

	// DefaultInputPer1K is the fallback embedding price in USD per 1K tokens.
	DefaultInputPer1K = 0.0001
)

// Model describes one provider model.
type Model struct {
	// MaxBatchItems caps how many inputs one embedding request may carry.
	MaxBatchItems int `toml:"max_batch_items"`

	// Dimensions is the embedding width, zero for generative models.
	Dimensions int `toml:"dimensions"`

	// InputPer1K and OutputPer1K are USD per 1K tokens.
	InputPer1K  float64 `toml:"input_per_1k"`
	OutputPer1K float64 `toml:"output_per_1k"`
}

// Table maps normalized model names to their catalog entry.
type Table map[string]Model

type tableFile struct {
	Models Table `toml:"models"`
}

// DefaultTable returns the built-in catalog.
func DefaultTable() Table {
	return Table{
		"text-embedding-3-small": {MaxBatchItems: 2048, Dimensions: 1536, InputPer1K: 0.00002},
		"text-embedding-3-large": {MaxBatchItems: 2048, Dimensions: 3072, InputPer1K: 0.00013},
		"text-embedding-ada-002": {MaxBatchItems: 2048, Dimensions: 1536, InputPer1K: 0.0001},
		"nomic-embed-text":       {MaxBatchItems: 256, Dimensions: 768},
		"mxbai-embed-large":      {MaxBatchItems: 256, Dimensions: 1024},
		"all-minilm":             {MaxBatchItems: 256, Dimensions: 384},
		"gpt-4o":                 {InputPer1K: 0.0025, OutputPer1K: 0.01},
		"gpt-4o-mini":            {InputPer1K: 0.00015, OutputPer1K: 0.0006},
		"gpt-4.1":                {InputPer1K: 0.002, OutputPer1K: 0.008},
		"gpt-4.1-mini":           {InputPer1K: 0.0004, OutputPer1K: 0.0016},
	}
}

// LoadTable returns the default catalog merged with overrides from a TOML
// file. An empty path returns the defaults.
func LoadTable(path string) (Table, error) {
	table := DefaultTable()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model catalog: %w", err)
	}

	var file tableFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse model catalog: %w", err)
	}

	overrides := make(Table, len(file.Models))
	for name, m := range file.Models {
		overrides[normalizeModel(name)] = m
	}
	maps.Copy(table, overrides)

	return table, nil
}

// Lookup finds a model by exact or normalized name.
func (t Table) Lookup(model string) (Model, bool) {
	if m, ok := t[normalizeModel(model)]; ok {
		return m, true
	}
	m, ok := t[model]
	return m, ok
}

// EmbeddingCost estimates the USD cost of embedding tokens with m.
func (m Model) EmbeddingCost(tokens int) float64 {
	return float64(tokens) / 1000.0 * m.InputPer1K
}

// GenerationCost estimates the USD cost of a generation call with m.
func (m Model) GenerationCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1000.0*m.InputPer1K + float64(outputTokens)/1000.0*m.OutputPer1K
}

// normalizeModel lowercases the name, drops an Ollama ":tag" and strips an
// OpenAI-style -YYYY-MM-DD snapshot suffix.
func normalizeModel(model string) string {
	normalized := strings.ToLower(strings.TrimSpace(model))
	if idx := strings.LastIndex(normalized, ":"); idx != -1 {
		normalized = normalized[:idx]
	}
	return stripDateSuffix(normalized)
}

func stripDateSuffix(model string) string {
	if len(model) < 12 {
		return model
	}

	suffix := model[len(model)-11:]
	if suffix[0] != '-' {
		return model
	}
	date := suffix[1:]
	if isDigits(date[0:4]) && date[4] == '-' && isDigits(date[5:7]) && date[7] == '-' && isDigits(date[8:10]) {
		return model[:len(model)-11]
	}
	return model
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
