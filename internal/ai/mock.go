package ai

import (
	"context"
	"sync"
)

// MockProvider is a test double for AI providers. Responses are served in order; once the
// script runs out, Response is returned. It is safe for concurrent use.
type MockProvider struct {
	Response  string
	Responses []string
	Err       error
	// Handler, when set, computes the response from the request and overrides the script.
	Handler func(req CompletionRequest) (string, error)

	mu          sync.Mutex
	calls       int
	requests    []CompletionRequest
	LastRequest *CompletionRequest // captures the last request for inspection
}

// NewMockProvider creates a MockProvider that returns the given response.
func NewMockProvider(response string) *MockProvider {
	return &MockProvider{Response: response}
}

// NewScriptedMockProvider creates a MockProvider that returns the responses in order.
func NewScriptedMockProvider(responses ...string) *MockProvider {
	return &MockProvider{Responses: responses}
}

func (m *MockProvider) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	m.calls++
	m.requests = append(m.requests, req)
	m.LastRequest = &req

	if m.Err != nil {
		m.mu.Unlock()
		return CompletionResponse{}, m.Err
	}

	handler := m.Handler
	content := m.Response
	if len(m.Responses) > 0 {
		content = m.Responses[0]
		m.Responses = m.Responses[1:]
	}
	m.mu.Unlock()

	if handler != nil {
		var err error
		content, err = handler(req)
		if err != nil {
			return CompletionResponse{}, err
		}
	}

	return CompletionResponse{
		Content:      content,
		Model:        "mock",
		InputTokens:  10,
		OutputTokens: len(content),
	}, nil
}

// Calls returns how many completions were requested.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Requests returns a copy of every request received, in arrival order.
func (m *MockProvider) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest{}, m.requests...)
}

func (m *MockProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "mock", Name: "Mock Model", MaxTokens: 4096, Description: "Test mock"},
	}
}

func (m *MockProvider) HealthCheck(_ context.Context) error {
	return m.Err
}
