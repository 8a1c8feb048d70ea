package ai

import (
	"context"
	"fmt"

	"resumechat/internal/config"
	"resumechat/internal/errors"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider for the hosted OpenAI API (or any
// OpenAI-compatible endpoint when a base URL is configured)
type OpenAIProvider struct {
	client       *openai.Client
	model        string
	modelBreaker *ModelCircuitBreaker
	logger       *errors.Logger
}

// Ensure OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates the openai backend variant. Required settings are
// validated eagerly so a misconfigured process fails at startup.
func NewOpenAIProvider(cfg *config.Config, logger *errors.Logger) (*OpenAIProvider, error) {
	if cfg.AI.OpenAI.APIKey == "" {
		return nil, errors.NewConfigError(errors.ErrCodeMissingAPIKey,
			"OpenAI API key is required (set OPENAI_API_KEY environment variable)", nil)
	}
	if cfg.AI.Model == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			"model name is required for the openai provider", nil)
	}

	clientConfig := openai.DefaultConfig(cfg.AI.OpenAI.APIKey)
	if cfg.AI.OpenAI.BaseURL != "" {
		clientConfig.BaseURL = cfg.AI.OpenAI.BaseURL
	}

	logger.Debug("Initializing OpenAI provider",
		"model", cfg.AI.Model,
		"base_url", cfg.AI.OpenAI.BaseURL)

	// Model checks share the chat operation's breaker settings
	modelBreaker := NewModelCircuitBreaker(config.ProviderOpenAI,
		cfg.GetOperationConfig(config.OperationChat).CircuitBreaker, logger)

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientConfig),
		model:        cfg.AI.Model,
		modelBreaker: modelBreaker,
		logger:       logger,
	}, nil
}

// Name implements Provider
func (p *OpenAIProvider) Name() string {
	return config.ProviderOpenAI
}

// Generate implements Provider by issuing one chat completion call
func (p *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserPrompt,
	})

	completionReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
	}
	if req.JSONOutput {
		completionReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, completionReq)
	if err != nil {
		return nil, errors.NewProviderError(errors.ErrCodeProviderFailed,
			"OpenAI chat completion failed", err).
			WithContext("model", model)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.NewProviderError(errors.ErrCodeMalformedOutput,
			"OpenAI returned no completion choices", nil).
			WithContext("model", model)
	}

	return &GenerateResult{
		Text: resp.Choices[0].Message.Content,
		Usage: &TokenUsage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
			TotalTokens:  int64(resp.Usage.TotalTokens),
		},
	}, nil
}

// GetModelInfo checks the availability of the configured model
func (p *OpenAIProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	info, err := p.modelBreaker.ExecuteModel(func() (*ModelInfo, error) {
		model, err := p.client.GetModel(ctx, p.model)
		if err != nil {
			return nil, err
		}
		return &ModelInfo{
			Name:      model.ID,
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
func (p *OpenAIProvider) Close() error {
	// The OpenAI client holds no resources beyond its HTTP client
	return nil
}
