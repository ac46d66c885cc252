package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"slices"
	"sync"
)

// MockEmbedder is a test embedder that returns predictable embeddings.
// Texts without an explicit entry get a vector seeded from their FNV hash, so
// the same text always maps to the same vector.
type MockEmbedder struct {
	mu sync.Mutex

	Embeddings map[string][]float32

	// Dimensions is the width of hash-seeded vectors. Defaults to 3.
	Dimensions int

	// ModelName is reported by Model. Defaults to "mock-embed".
	ModelName string

	// FailOn causes EmbedBatch to return an error when any input matches.
	FailOn string

	// DropLast makes EmbedBatch return one vector fewer than requested.
	DropLast bool

	// Calls records the inputs of every EmbedBatch call.
	Calls [][]string
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (m *MockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, slices.Clone(texts))

	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if m.FailOn != "" && text == m.FailOn {
			return nil, fmt.Errorf("mock embedding failure for: %s", text)
		}
		if emb, ok := m.Embeddings[text]; ok {
			out = append(out, emb)
			continue
		}
		out = append(out, m.seeded(text))
	}

	if m.DropLast && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

// CallCount returns how many EmbedBatch calls were made.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func (m *MockEmbedder) Model() string {
	if m.ModelName == "" {
		return "mock-embed"
	}
	return m.ModelName
}

func (m *MockEmbedder) Close() error {
	return nil
}

// Vector returns the hash-seeded vector for text.
func (m *MockEmbedder) Vector(text string) []float32 {
	return m.seeded(text)
}

func (m *MockEmbedder) seeded(text string) []float32 {
	dims := m.Dimensions
	if dims <= 0 {
		dims = 3
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	v := make([]float32, dims)
	var norm float64
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		x := float64(seed>>11)/float64(1<<53)*2 - 1
		v[i] = float32(x)
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		v[0] = 1
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
