package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"resumechat/internal/config"
	"resumechat/internal/errors"
)

// OllamaProvider implements Provider for a local Ollama server using its
// native chat API
type OllamaProvider struct {
	baseURL      string
	model        string
	httpClient   *http.Client
	modelBreaker *ModelCircuitBreaker
	logger       *errors.Logger
}

// Ensure OllamaProvider implements Provider
var _ Provider = (*OllamaProvider)(nil)

// ollamaChatMessage mirrors one message of the Ollama chat API
type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatRequest mirrors the Ollama /api/chat request body
type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Format   string              `json:"format,omitempty"`
	Options  map[string]any      `json:"options,omitempty"`
}

// ollamaChatResponse mirrors the Ollama /api/chat response body
type ollamaChatResponse struct {
	Message         ollamaChatMessage `json:"message"`
	Done            bool              `json:"done"`
	PromptEvalCount int64             `json:"prompt_eval_count"`
	EvalCount       int64             `json:"eval_count"`
	Error           string            `json:"error"`
}

// NewOllamaProvider creates the ollama backend variant. The base URL is
// validated eagerly; reachability is surfaced through GetModelInfo and the
// first generation call rather than blocking startup.
func NewOllamaProvider(cfg *config.Config, logger *errors.Logger) (*OllamaProvider, error) {
	if cfg.AI.Ollama.BaseURL == "" {
		return nil, errors.NewConfigError(errors.ErrCodeMissingBaseURL,
			"Ollama base URL is required (set OLLAMA_BASE_URL environment variable)", nil)
	}
	model := cfg.OllamaModel()
	if model == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			"model name is required for the ollama provider", nil)
	}

	logger.Debug("Initializing Ollama provider",
		"base_url", cfg.AI.Ollama.BaseURL,
		"model", model)

	modelBreaker := NewModelCircuitBreaker(config.ProviderOllama,
		cfg.GetOperationConfig(config.OperationChat).CircuitBreaker, logger)

	return &OllamaProvider{
		baseURL: strings.TrimRight(cfg.AI.Ollama.BaseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: cfg.AI.Timeout,
		},
		modelBreaker: modelBreaker,
		logger:       logger,
	}, nil
}

// Name implements Provider
func (p *OllamaProvider) Name() string {
	return config.ProviderOllama
}

// Generate implements Provider by issuing one non-streaming chat call
func (p *OllamaProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	messages := make([]ollamaChatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, ollamaChatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, ollamaChatMessage{Role: "user", Content: req.UserPrompt})

	chatReq := ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Options: map[string]any{
			"temperature": req.Temperature,
		},
	}
	if req.JSONOutput {
		chatReq.Format = "json"
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidFormat,
			"failed to encode Ollama request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidFormat,
			"failed to build Ollama request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeNetworkTimeout,
			"failed to reach Ollama server", err).
			WithContext("base_url", p.baseURL)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeNetworkTimeout,
			"failed to read Ollama response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newProviderHTTPError(resp.StatusCode, string(respBody)).
			WithContext("model", model)
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, errors.NewProviderError(errors.ErrCodeMalformedOutput,
			"failed to decode Ollama response", err)
	}
	if chatResp.Error != "" {
		return nil, errors.NewProviderError(errors.ErrCodeProviderFailed,
			fmt.Sprintf("Ollama returned an error: %s", chatResp.Error), nil).
			WithContext("model", model)
	}

	return &GenerateResult{
		Text: chatResp.Message.Content,
		Usage: &TokenUsage{
			InputTokens:  chatResp.PromptEvalCount,
			OutputTokens: chatResp.EvalCount,
			TotalTokens:  chatResp.PromptEvalCount + chatResp.EvalCount,
		},
	}, nil
}

// GetModelInfo checks that the configured model is present on the server
func (p *OllamaProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	info, err := p.modelBreaker.ExecuteModel(func() (*ModelInfo, error) {
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		body, err := json.Marshal(map[string]string{"model": p.model})
		if err != nil {
			return nil, err
		}
		httpReq, err := http.NewRequestWithContext(checkCtx, http.MethodPost,
			p.baseURL+"/api/show", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("model %q not available (status %d)", p.model, resp.StatusCode)
		}
		return &ModelInfo{
			Name:      p.model,
			Provider:  p.Name(),
			Available: true,
		}, nil
	})
	if err != nil {
		p.logger.Warn("Model availability check failed",
			"model", p.model,
			"provider", p.Name(),
			"error", err.Error())
		return &ModelInfo{
			Name:      p.model,
			Provider:  p.Name(),
			Available: false,
			Error:     fmt.Sprintf("Failed to get model info: %v", err),
		}
	}
	return info
}

// Close implements Provider
func (p *OllamaProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
