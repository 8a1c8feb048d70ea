package ai

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"net/http"
	"strings"
	"time"

	"resumechat/internal/config"
	resumechatErrors "resumechat/internal/errors"
	"resumechat/internal/types"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// operationExecutor holds the per-operation settings and circuit breaker
type operationExecutor struct {
	op      config.Operation
	cfg     config.OperationAIConfig
	breaker *AICircuitBreaker
}

// Service exposes the LLM-backed operations on top of a single configured
// provider. The provider is fixed for the lifetime of the process; requests
// cannot switch backends.
type Service struct {
	Provider  Provider // Exported for access from server package
	cfg       *config.Config
	executors map[config.Operation]*operationExecutor
	logger    *resumechatErrors.Logger
}

// NewProvider constructs the backend named by the configuration. The match
// is case-insensitive; anything other than the supported providers fails.
func NewProvider(cfg *config.Config, logger *resumechatErrors.Logger) (Provider, error) {
	switch cfg.ProviderID() {
	case config.ProviderOpenAI:
		return NewOpenAIProvider(cfg, logger)
	case config.ProviderOllama:
		return NewOllamaProvider(cfg, logger)
	default:
		return nil, resumechatErrors.NewConfigError(resumechatErrors.ErrCodeUnknownProvider,
			fmt.Sprintf("unknown provider: %s", cfg.AI.Provider), nil)
	}
}

// NewService creates the AI service with the configured provider. Provider
// construction validates its settings eagerly, so a misconfigured process
// fails here rather than on the first request.
func NewService(cfg *config.Config, logger *resumechatErrors.Logger) (*Service, error) {
	provider, err := NewProvider(cfg, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("Initializing AI service",
		"provider", provider.Name(),
		"model", cfg.AI.Model,
		"temperature", cfg.AI.Temperature,
		"timeout", cfg.AI.Timeout,
		"max_retries", cfg.AI.MaxRetries)

	return NewServiceWithProvider(cfg, provider, logger), nil
}

// NewServiceWithProvider wires the service around an existing provider.
// Used by NewService and by tests that inject a stub backend.
func NewServiceWithProvider(cfg *config.Config, provider Provider, logger *resumechatErrors.Logger) *Service {
	executors := make(map[config.Operation]*operationExecutor, len(config.Operations))
	for _, op := range config.Operations {
		opCfg := cfg.GetOperationConfig(op)
		executors[op] = &operationExecutor{
			op:      op,
			cfg:     opCfg,
			breaker: NewAICircuitBreaker(string(op), &opCfg, logger),
		}
	}

	return &Service{
		Provider:  provider,
		cfg:       cfg,
		executors: executors,
		logger:    logger,
	}
}

// systemPrompt resolves the system prompt for an operation
func (s *Service) systemPrompt(op config.Operation) string {
	loaded := s.cfg.GetLoadedPromptsFor(op)
	exec := s.executors[op]
	return resolvePrompt(loaded.System, exec.cfg.CustomPrompts.System, DefaultSystemPrompts[op])
}

// userPrompt resolves the user prompt template for an operation and formats
// it with the given arguments
func (s *Service) userPrompt(op config.Operation, args ...any) string {
	loaded := s.cfg.GetLoadedPromptsFor(op)
	exec := s.executors[op]
	template := resolvePrompt(loaded.User, exec.cfg.CustomPrompts.User, DefaultUserPrompts[op])
	return fmt.Sprintf(template, args...)
}

// generate runs one provider call for an operation with the operation's
// timeout, circuit breaker, and retry policy applied
func (s *Service) generate(ctx context.Context, exec *operationExecutor, userPrompt string, jsonOutput bool) (*GenerateResult, error) {
	systemPrompt := ""
	if *exec.cfg.UseSystemPrompts {
		systemPrompt = s.systemPrompt(exec.op)
	}

	req := GenerateRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Model:        exec.cfg.Model,
		Temperature:  *exec.cfg.Temperature,
		JSONOutput:   jsonOutput,
	}

	opCtx, cancel := context.WithTimeout(ctx, *exec.cfg.Timeout)
	defer cancel()

	return exec.breaker.Execute(func() (*GenerateResult, error) {
		return s.executeWithRetry(opCtx, string(exec.op), *exec.cfg.MaxRetries, func() (*GenerateResult, error) {
			return s.Provider.Generate(opCtx, req)
		})
	})
}

// executeWithRetry executes a provider call with retry logic and exponential backoff
func (s *Service) executeWithRetry(ctx context.Context, operation string, maxRetries int, fn func() (*GenerateResult, error)) (*GenerateResult, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			s.logger.Warn("Retrying AI operation",
				"operation", operation,
				"attempt", attempt,
				"max_retries", maxRetries,
				"error", lastErr.Error())

			// Exponential backoff with jitter to prevent thundering herd
			baseDelay := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			jitterMax := big.NewInt(int64(float64(baseDelay) * 0.1))
			jitterBig, _ := rand.Int(rand.Reader, jitterMax)
			jitter := time.Duration(jitterBig.Int64())
			// Cap maximum backoff at 30 seconds
			backoff := min(baseDelay+jitter, 30*time.Second)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				s.logger.Info("AI operation succeeded after retry",
					"operation", operation,
					"successful_attempt", attempt+1)
			}
			return result, nil
		}

		lastErr = err

		// Don't retry on auth failures, invalid input, and the like
		if !isRetryableError(err) {
			s.logger.Debug("Error is not retryable, stopping retry attempts",
				"operation", operation,
				"error", err.Error())
			break
		}
	}

	s.logger.LogError(lastErr, "AI operation failed after all retry attempts",
		"operation", operation,
		"total_attempts", maxRetries+1)

	return nil, fmt.Errorf("operation '%s' failed after %d retries: %w", operation, maxRetries, lastErr)
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Network errors (timeouts, connection refused) are transient
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// OpenAI API errors carry an HTTP status
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	// Ollama responses surface as typed HTTP status errors
	var httpErr *ProviderHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}

	return false
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// executeAIOperation is a generic helper to run JSON-producing operations
// with common tracing, circuit breaker, and parsing logic.
func executeAIOperation[Out any](
	s *Service,
	ctx context.Context,
	op config.Operation,
	userPrompt string,
	spanAttributes ...attribute.KeyValue,
) (Out, *TokenUsage, error) {
	var output Out
	exec := s.executors[op]

	tracer := otel.Tracer("resumechat.ai")
	ctx, span := tracer.Start(ctx, "ai."+string(op))
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", s.Provider.Name()),
		attribute.String("ai.model", exec.cfg.Model),
		attribute.Float64("ai.temperature", float64(*exec.cfg.Temperature)),
	)
	span.SetAttributes(spanAttributes...)

	result, err := s.generate(ctx, exec, userPrompt, true)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return output, nil, resumechatErrors.NewProviderError(resumechatErrors.ErrCodeProviderFailed,
			"Failed to generate content for "+string(op), err)
	}

	raw, ok := ExtractJSONObject(result.Text)
	if !ok {
		span.SetAttributes(attribute.Bool("success", false))
		return output, nil, resumechatErrors.NewProviderError(resumechatErrors.ErrCodeMalformedOutput,
			"Model did not return a JSON object for "+string(op), nil).
			WithContext("output_prefix", truncate(result.Text, 200))
	}
	if err := json.Unmarshal([]byte(raw), &output); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return output, nil, resumechatErrors.NewProviderError(resumechatErrors.ErrCodeMalformedOutput,
			"Failed to parse model response for "+string(op), err)
	}

	if result.Usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", result.Usage.InputTokens),
			attribute.Int64("ai.tokens.output", result.Usage.OutputTokens),
			attribute.Int64("ai.tokens.total", result.Usage.TotalTokens),
		)
	}

	span.SetAttributes(attribute.Bool("success", true))
	return output, result.Usage, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Chat answers a freeform resume question. The reply is parsed into a
// structured suggestion when the model returns JSON; otherwise the verbatim
// text is carried in the raw_text field.
func (s *Service) Chat(ctx context.Context, req types.ChatRequest) (*types.ChatResponse, *TokenUsage, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	exec := s.executors[config.OperationChat]

	tracer := otel.Tracer("resumechat.ai")
	ctx, span := tracer.Start(ctx, "ai.chat")
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", s.Provider.Name()),
		attribute.String("ai.model", exec.cfg.Model),
		attribute.Int("input.message_length", len(req.Message)),
		attribute.Bool("input.has_profile", req.Profile != nil),
	)

	profileCtx := ""
	if req.Profile != nil {
		profileCtx = "\n\nUser profile (JSON):\n" + profileJSON(req.Profile)
	}
	userPrompt := s.userPrompt(config.OperationChat, strings.TrimSpace(req.Message), profileCtx)

	result, err := s.generate(ctx, exec, userPrompt, false)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return nil, nil, resumechatErrors.NewProviderError(resumechatErrors.ErrCodeProviderFailed,
			"Failed to generate chat reply", err)
	}

	suggestion := parseSuggestion(result.Text)
	sanitizeSuggestion(&suggestion)

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Bool("output.structured", suggestion.RawText == ""),
	)
	if result.Usage != nil {
		span.SetAttributes(attribute.Int64("ai.tokens.total", result.Usage.TotalTokens))
	}

	return &types.ChatResponse{
		Original:   req.Message,
		Suggestion: suggestion,
	}, result.Usage, nil
}

// parseSuggestion attempts a structured read of the chat reply and falls
// back to the raw text when the model answered in prose
func parseSuggestion(text string) types.ResumeSuggestion {
	if raw, ok := ExtractJSONObject(text); ok {
		var suggestion types.ResumeSuggestion
		if err := json.Unmarshal([]byte(raw), &suggestion); err == nil {
			if suggestion.Summary != "" || len(suggestion.Bullets) > 0 || len(suggestion.Skills) > 0 {
				return suggestion
			}
		}
	}
	return types.ResumeSuggestion{RawText: strings.TrimSpace(text)}
}

// AnalyzeProfile reviews a canonical profile and scores its sections
func (s *Service) AnalyzeProfile(ctx context.Context, req types.AnalyzeRequest) (*types.AnalyzeResponse, *TokenUsage, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	userPrompt := s.userPrompt(config.OperationAnalyze, profileJSON(req.Profile))
	output, usage, err := executeAIOperation[types.AnalyzeResponse](s, ctx, config.OperationAnalyze, userPrompt,
		attribute.Int("input.skills_count", len(req.Profile.Skills)),
		attribute.Int("input.experience_count", len(req.Profile.Experience)),
	)
	if err != nil {
		return nil, nil, err
	}

	sanitizeAnalyze(&output)
	return &output, usage, nil
}

// ExtractKeywords pulls skills and hiring signals out of a job description
func (s *Service) ExtractKeywords(ctx context.Context, req types.KeywordsRequest) (*types.KeywordsResponse, *TokenUsage, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	userPrompt := s.userPrompt(config.OperationKeywords, req.JobDescription)
	output, usage, err := executeAIOperation[types.KeywordsResponse](s, ctx, config.OperationKeywords, userPrompt,
		attribute.Int("input.job_length", len(req.JobDescription)),
	)
	if err != nil {
		return nil, nil, err
	}

	sanitizeKeywords(&output)
	return &output, usage, nil
}

// TailorBullets rewrites profile bullets for a target job description
func (s *Service) TailorBullets(ctx context.Context, req types.TailorRequest) (*types.TailorResponse, *TokenUsage, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	tone := strings.TrimSpace(req.Tone)
	if tone == "" {
		tone = "concise"
	}

	userPrompt := s.userPrompt(config.OperationTailor, profileJSON(req.Profile), req.JobDescription, tone)
	output, usage, err := executeAIOperation[types.TailorResponse](s, ctx, config.OperationTailor, userPrompt,
		attribute.Int("input.job_length", len(req.JobDescription)),
		attribute.String("input.tone", tone),
	)
	if err != nil {
		return nil, nil, err
	}

	sanitizeTailor(&output)
	return &output, usage, nil
}

// WriteSummary drafts a short professional summary for a profile
func (s *Service) WriteSummary(ctx context.Context, req types.SummaryRequest) (*types.SummaryResponse, *TokenUsage, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	userPrompt := s.userPrompt(config.OperationSummary, profileJSON(req.Profile), req.JobDescription)
	output, usage, err := executeAIOperation[types.SummaryResponse](s, ctx, config.OperationSummary, userPrompt,
		attribute.Bool("input.has_job_description", req.JobDescription != ""),
	)
	if err != nil {
		return nil, nil, err
	}

	output.Summary = strings.TrimSpace(output.Summary)
	return &output, usage, nil
}

// WriteCoverLetter drafts a short cover letter for a profile and job
func (s *Service) WriteCoverLetter(ctx context.Context, req types.CoverLetterRequest) (*types.CoverLetterResponse, *TokenUsage, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	company := strings.TrimSpace(req.Company)
	if company == "" {
		company = "Unknown"
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = "Unknown"
	}

	userPrompt := s.userPrompt(config.OperationCoverLetter, profileJSON(req.Profile), req.JobDescription, company, role)
	output, usage, err := executeAIOperation[types.CoverLetterResponse](s, ctx, config.OperationCoverLetter, userPrompt,
		attribute.Int("input.job_length", len(req.JobDescription)),
	)
	if err != nil {
		return nil, nil, err
	}

	output.CoverLetter = strings.TrimSpace(output.CoverLetter)
	return &output, usage, nil
}

// ScoreATS computes a heuristic ATS compatibility assessment
func (s *Service) ScoreATS(ctx context.Context, req types.ATSScoreRequest) (*types.ATSScoreResponse, *TokenUsage, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	userPrompt := s.userPrompt(config.OperationATSScore, req.ResumeText, req.JobDescription)
	output, usage, err := executeAIOperation[types.ATSScoreResponse](s, ctx, config.OperationATSScore, userPrompt,
		attribute.Int("input.resume_length", len(req.ResumeText)),
		attribute.Int("input.job_length", len(req.JobDescription)),
	)
	if err != nil {
		return nil, nil, err
	}

	sanitizeATSScore(&output)
	return &output, usage, nil
}

// GetModelInfo returns model availability information for health checks
func (s *Service) GetModelInfo(ctx context.Context) *ModelInfo {
	return s.Provider.GetModelInfo(ctx)
}

// GetCircuitBreakerStats returns circuit breaker statistics per operation
func (s *Service) GetCircuitBreakerStats() map[string]any {
	stats := make(map[string]any, len(s.executors)+1)
	healthy := true
	for op, exec := range s.executors {
		stats[string(op)] = exec.breaker.GetStats()
		if !exec.breaker.IsHealthy() {
			healthy = false
		}
	}
	stats["overall_healthy"] = healthy
	return stats
}

// Close releases provider resources
func (s *Service) Close() error {
	return s.Provider.Close()
}
