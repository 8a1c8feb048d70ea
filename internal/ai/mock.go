package ai

import (
	"context"
	"sync/atomic"
)

// MockProvider is a canned-response backend for tests. GenerateFunc can be
// set to drive per-call behavior; otherwise Response and Err are returned.
type MockProvider struct {
	ProviderName string
	Response     string
	Err          error
	GenerateFunc func(ctx context.Context, req GenerateRequest) (*GenerateResult, error)

	calls atomic.Int64
}

var _ Provider = (*MockProvider)(nil)

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	m.calls.Add(1)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &GenerateResult{
		Text:  m.Response,
		Usage: &TokenUsage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30},
	}, nil
}

func (m *MockProvider) Name() string {
	if m.ProviderName != "" {
		return m.ProviderName
	}
	return "mock"
}

func (m *MockProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	return &ModelInfo{Name: "mock-model", Provider: m.Name(), Available: true}
}

func (m *MockProvider) Close() error { return nil }

// Calls reports how many Generate invocations the mock has received
func (m *MockProvider) Calls() int64 {
	return m.calls.Load()
}
