package llm

import (
	"context"
	"fmt"
	"sync"
)

// CompleteFunc adapts a function to the Client interface.
type CompleteFunc func(ctx context.Context, prompt string, args map[string]any) (string, error)

// Complete calls f.
func (f CompleteFunc) Complete(ctx context.Context, prompt string, args map[string]any) (string, error) {
	return f(ctx, prompt, args)
}

// MockClient is a simple scripted client for tests and the "mock" backend.
// If a respond function is supplied it produces the response; otherwise the
// client echoes a canned line per prompt.
type MockClient struct {
	respond CompleteFunc

	mu    sync.Mutex
	calls int
}

// NewMockClient creates a mock client with an optional respond function.
func NewMockClient(respond CompleteFunc) *MockClient {
	return &MockClient{respond: respond}
}

// Complete returns the scripted response for a prompt.
func (m *MockClient) Complete(ctx context.Context, prompt string, args map[string]any) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.respond != nil {
		return m.respond(ctx, prompt, args)
	}
	return fmt.Sprintf("Mock response for: %.60s", prompt), nil
}

// Calls returns how many completions were requested.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
