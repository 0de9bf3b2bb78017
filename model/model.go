package model

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Request captures one call across the boundary.
type Request struct {
	// Model overrides the adapter's default model id when non-empty.
	Model string `json:"model,omitempty"`
	// Instructions is the system prompt (the agent persona).
	Instructions string `json:"instructions"`
	// Input is the rendered user content.
	Input string `json:"input"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the final reply of a call.
type Response struct {
	ID           string      `json:"id"`
	Model        string      `json:"model"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", ...
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock"
}

// Model is the minimal interface required by the invoker.
type Model interface {
	Generate(ctx context.Context, req Request) (Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// Providers maps provider names to their adapters.
type Providers map[string]Model

// Get returns the adapter registered for provider.
func (p Providers) Get(provider string) (Model, error) {
	m, ok := p[provider]
	if !ok || m == nil {
		return nil, fmt.Errorf("no model registered for provider %q", provider)
	}
	return m, nil
}

// Names returns the registered provider names, sorted.
func (p Providers) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HandlerFunc lets tests script MockModel behaviour per request.
type HandlerFunc func(ctx context.Context, req Request) (Response, error)

// MockModel is a lightweight in-memory Model useful for tests & dry runs.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	handler   HandlerFunc
	calls     []Request
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input.
func (m *MockModel) AddResponse(input, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[input] = response
}

// SetHandler replaces the canned-response lookup with fn.
func (m *MockModel) SetHandler(fn HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
}

// Calls returns a copy of every request received so far.
func (m *MockModel) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	handler := m.handler
	canned, ok := m.responses[req.Input]
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	if handler != nil {
		return handler(ctx, req)
	}
	if !ok {
		canned = fmt.Sprintf("Mock response to: %s", req.Input)
	}
	name := req.Model
	if name == "" {
		name = m.info.Name
	}
	return Response{Model: name, Text: canned, FinishReason: "stop"}, nil
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
