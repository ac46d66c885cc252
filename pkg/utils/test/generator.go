package testutils

import (
	"context"
	"sync"
)

// MockGenerator is a test generator that records prompts and returns a canned
// reply.
type MockGenerator struct {
	mu sync.Mutex

	// Reply is returned from Generate. Defaults to "mock answer".
	Reply string

	// FailWith, when set, is returned from Generate instead of Reply.
	FailWith error

	// ModelName is reported by Model. Defaults to "mock-chat".
	ModelName string

	Systems []string
	Prompts []string
}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

func (m *MockGenerator) Generate(_ context.Context, system, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Systems = append(m.Systems, system)
	m.Prompts = append(m.Prompts, user)

	if m.FailWith != nil {
		return "", m.FailWith
	}
	if m.Reply == "" {
		return "mock answer", nil
	}
	return m.Reply, nil
}

func (m *MockGenerator) Model() string {
	if m.ModelName == "" {
		return "mock-chat"
	}
	return m.ModelName
}

// LastPrompt returns the most recent user prompt.
func (m *MockGenerator) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Prompts) == 0 {
		return ""
	}
	return m.Prompts[len(m.Prompts)-1]
}
