package ai

import (
	"context"
)

// GenerateRequest carries one prompt to the configured LLM backend
type GenerateRequest struct {
	SystemPrompt string
	UserPrompt   string
	Model        string
	Temperature  float32
	JSONOutput   bool // Ask the backend for a JSON-object response where supported
}

// GenerateResult is the raw outcome of one generation call
type GenerateResult struct {
	Text  string
	Usage *TokenUsage
}

// TokenUsage represents token usage information from provider responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// ModelInfo represents availability information about the configured model
type ModelInfo struct {
	Name      string `json:"name"`
	Provider  string `json:"provider"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// Provider is the single generation capability every backend variant exposes.
// Implementations must be safe for concurrent use; they hold no per-request
// state beyond their own connection resources.
type Provider interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
	Name() string
	GetModelInfo(ctx context.Context) *ModelInfo
	Close() error
}
