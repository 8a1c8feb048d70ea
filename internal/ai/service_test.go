package ai

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"resumechat/internal/config"
	"resumechat/internal/errors"
	"resumechat/internal/types"
)

// Helper functions to create pointers for test values
func timePtr(d time.Duration) *time.Duration { return &d }
func intPtr(i int) *int                      { return &i }
func float32Ptr(f float32) *float32          { return &f }

var testLogger = errors.NewLogger(slog.LevelDebug)

func newTestConfig() *config.Config {
	return &config.Config{
		AI: config.AIConfig{
			Provider:         "openai",
			Model:            "global-model",
			Timeout:          60 * time.Second,
			MaxRetries:       2,
			Temperature:      0.7,
			UseSystemPrompts: true,
			OpenAI: config.OpenAIConfig{
				APIKey: "test-key",
			},
		},
	}
}

func newTestProfile() *types.CanonicalProfile {
	return &types.CanonicalProfile{
		Name:   "Alex Doe",
		Title:  "Backend Engineer",
		Skills: []string{"Go", "PostgreSQL"},
		Experience: []types.Experience{
			{Company: "Acme", Role: "Engineer", Bullets: []string{"Built services"}},
		},
	}
}

// TestOperationSpecificConfigDerivation verifies that operation-specific
// configurations are correctly derived, with fallbacks to the global
// configuration.
func TestOperationSpecificConfigDerivation(t *testing.T) {
	cfg := newTestConfig()
	cfg.AI.MaxRetries = 5
	cfg.AI.Temperature = 0.9

	cfg.AI.Tailor = config.OperationAIConfig{
		Model:       "tailor-specific-model",
		Timeout:     timePtr(90 * time.Second),
		Temperature: float32Ptr(0.3),
		// MaxRetries falls back to the global value.
	}
	cfg.AI.Chat = config.OperationAIConfig{
		Model:      "chat-specific-model",
		MaxRetries: intPtr(1),
		// Other values fall back.
	}
	// Analyze has no overrides and uses all global values.

	t.Run("TailorConfigDerivation", func(t *testing.T) {
		opCfg := cfg.GetOperationConfig(config.OperationTailor)
		if opCfg.Model != "tailor-specific-model" {
			t.Errorf("Expected model 'tailor-specific-model', got '%s'", opCfg.Model)
		}
		if *opCfg.Timeout != 90*time.Second {
			t.Errorf("Expected timeout 90s, got %v", *opCfg.Timeout)
		}
		if *opCfg.Temperature != 0.3 {
			t.Errorf("Expected temperature 0.3, got %f", *opCfg.Temperature)
		}
		if *opCfg.MaxRetries != 5 {
			t.Errorf("Expected max retries fallback 5, got %d", *opCfg.MaxRetries)
		}
	})

	t.Run("ChatConfigDerivation", func(t *testing.T) {
		opCfg := cfg.GetOperationConfig(config.OperationChat)
		if opCfg.Model != "chat-specific-model" {
			t.Errorf("Expected model 'chat-specific-model', got '%s'", opCfg.Model)
		}
		if *opCfg.MaxRetries != 1 {
			t.Errorf("Expected max retries 1, got %d", *opCfg.MaxRetries)
		}
		if *opCfg.Timeout != 60*time.Second {
			t.Errorf("Expected timeout fallback 60s, got %v", *opCfg.Timeout)
		}
	})

	t.Run("AnalyzeConfigDerivation", func(t *testing.T) {
		opCfg := cfg.GetOperationConfig(config.OperationAnalyze)
		if opCfg.Model != "global-model" {
			t.Errorf("Expected model fallback 'global-model', got '%s'", opCfg.Model)
		}
		if *opCfg.Timeout != 60*time.Second {
			t.Errorf("Expected timeout fallback 60s, got %v", *opCfg.Timeout)
		}
		if *opCfg.Temperature != float32(0.9) {
			t.Errorf("Expected temperature fallback 0.9, got %f", *opCfg.Temperature)
		}
	})
}

func TestNewProviderUnknown(t *testing.T) {
	cfg := newTestConfig()
	cfg.AI.Provider = "bogus"

	_, err := NewProvider(cfg, testLogger)
	if err == nil {
		t.Fatal("Expected error for unknown provider")
	}

	appErr, ok := err.(*errors.AppError)
	if !ok {
		t.Fatalf("Expected *errors.AppError, got %T", err)
	}
	if appErr.Type != errors.ErrorTypeConfig {
		t.Errorf("Expected config error type, got '%s'", appErr.Type)
	}
	if appErr.Code != errors.ErrCodeUnknownProvider {
		t.Errorf("Expected code '%s', got '%s'", errors.ErrCodeUnknownProvider, appErr.Code)
	}
	if appErr.Message != "unknown provider: bogus" {
		t.Errorf("Expected message 'unknown provider: bogus', got '%s'", appErr.Message)
	}
}

func TestNewProviderCaseInsensitive(t *testing.T) {
	cfg := newTestConfig()
	cfg.AI.Provider = "OpenAI"

	provider, err := NewProvider(cfg, testLogger)
	if err != nil {
		t.Fatalf("Expected 'OpenAI' to resolve to the openai provider: %v", err)
	}
	if provider.Name() != "openai" {
		t.Errorf("Expected provider name 'openai', got '%s'", provider.Name())
	}

	cfg.AI.Provider = " OLLAMA "
	cfg.AI.Ollama.BaseURL = "http://localhost:11434"
	provider, err = NewProvider(cfg, testLogger)
	if err != nil {
		t.Fatalf("Expected ' OLLAMA ' to resolve to the ollama provider: %v", err)
	}
	if provider.Name() != "ollama" {
		t.Errorf("Expected provider name 'ollama', got '%s'", provider.Name())
	}
}

func TestOpenAIProviderRequiresAPIKey(t *testing.T) {
	cfg := newTestConfig()
	cfg.AI.OpenAI.APIKey = ""

	_, err := NewProvider(cfg, testLogger)
	if err == nil {
		t.Fatal("Expected error for missing API key")
	}
	appErr, ok := err.(*errors.AppError)
	if !ok {
		t.Fatalf("Expected *errors.AppError, got %T", err)
	}
	if appErr.Code != errors.ErrCodeMissingAPIKey {
		t.Errorf("Expected code '%s', got '%s'", errors.ErrCodeMissingAPIKey, appErr.Code)
	}
}

func TestOllamaProviderRequiresBaseURL(t *testing.T) {
	cfg := newTestConfig()
	cfg.AI.Provider = "ollama"
	cfg.AI.Ollama.BaseURL = ""

	_, err := NewProvider(cfg, testLogger)
	if err == nil {
		t.Fatal("Expected error for missing base URL")
	}
	appErr, ok := err.(*errors.AppError)
	if !ok {
		t.Fatalf("Expected *errors.AppError, got %T", err)
	}
	if appErr.Code != errors.ErrCodeMissingBaseURL {
		t.Errorf("Expected code '%s', got '%s'", errors.ErrCodeMissingBaseURL, appErr.Code)
	}
}

func TestChatPassesThroughProseReply(t *testing.T) {
	mock := &MockProvider{Response: "Consider quantifying your achievements."}
	service := NewServiceWithProvider(newTestConfig(), mock, testLogger)

	resp, usage, err := service.Chat(context.Background(), types.ChatRequest{
		Message: "How do I improve my resume?",
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.Original != "How do I improve my resume?" {
		t.Errorf("Expected the original message to be echoed, got '%s'", resp.Original)
	}
	if resp.Suggestion.RawText != "Consider quantifying your achievements." {
		t.Errorf("Expected prose reply in raw_text, got '%s'", resp.Suggestion.RawText)
	}
	if usage == nil || usage.TotalTokens != 30 {
		t.Errorf("Expected token usage to be propagated, got %+v", usage)
	}
	if mock.Calls() != 1 {
		t.Errorf("Expected exactly 1 provider call, got %d", mock.Calls())
	}
}

func TestChatParsesStructuredReply(t *testing.T) {
	mock := &MockProvider{
		Response: "```json\n{\"summary\": \"Strong backend profile\", \"bullets\": [\"Led migration to Go\"], \"skills\": [\"Go\", \"Go\", \"Kubernetes\"]}\n```",
	}
	service := NewServiceWithProvider(newTestConfig(), mock, testLogger)

	resp, _, err := service.Chat(context.Background(), types.ChatRequest{
		Message: "Review my profile",
		Profile: newTestProfile(),
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.Suggestion.Summary != "Strong backend profile" {
		t.Errorf("Expected parsed summary, got '%s'", resp.Suggestion.Summary)
	}
	if len(resp.Suggestion.Bullets) != 1 {
		t.Errorf("Expected 1 bullet, got %d", len(resp.Suggestion.Bullets))
	}
	// Duplicate skills are collapsed
	if len(resp.Suggestion.Skills) != 2 {
		t.Errorf("Expected 2 deduplicated skills, got %v", resp.Suggestion.Skills)
	}
	if resp.Suggestion.RawText != "" {
		t.Errorf("Expected empty raw_text for structured reply, got '%s'", resp.Suggestion.RawText)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	mock := &MockProvider{Response: "should never be returned"}
	service := NewServiceWithProvider(newTestConfig(), mock, testLogger)

	_, _, err := service.Chat(context.Background(), types.ChatRequest{Message: "   "})
	if err == nil {
		t.Fatal("Expected validation error for empty message")
	}

	appErr, ok := err.(*errors.AppError)
	if !ok {
		t.Fatalf("Expected *errors.AppError, got %T", err)
	}
	if appErr.Type != errors.ErrorTypeValidation {
		t.Errorf("Expected validation error type, got '%s'", appErr.Type)
	}

	// The provider must never be called for invalid input
	if mock.Calls() != 0 {
		t.Errorf("Expected 0 provider calls, got %d", mock.Calls())
	}
}

func TestAnalyzeProfileParsesAndClamps(t *testing.T) {
	mock := &MockProvider{
		Response: `{"quality": 150, "strengths": ["Clear impact"], "gaps": [], "risks": [],
			"recommendations": ["Add metrics", "Add metrics"],
			"section_scores": {"summary": 9, "experience": 4, "education": -1, "skills": 3},
			"keyword_clusters": {"core": ["Go"], "tools": [], "soft": []},
			"anomalies": []}`,
	}
	service := NewServiceWithProvider(newTestConfig(), mock, testLogger)

	resp, usage, err := service.AnalyzeProfile(context.Background(), types.AnalyzeRequest{
		Profile: newTestProfile(),
	})
	if err != nil {
		t.Fatalf("AnalyzeProfile failed: %v", err)
	}

	if resp.Quality != 100 {
		t.Errorf("Expected quality clamped to 100, got %d", resp.Quality)
	}
	if resp.SectionScores.Summary != 5 {
		t.Errorf("Expected summary score clamped to 5, got %d", resp.SectionScores.Summary)
	}
	if resp.SectionScores.Education != 0 {
		t.Errorf("Expected education score clamped to 0, got %d", resp.SectionScores.Education)
	}
	if len(resp.Recommendations) != 1 {
		t.Errorf("Expected deduplicated recommendations, got %v", resp.Recommendations)
	}
	if usage == nil {
		t.Error("Expected token usage to be returned")
	}
}

func TestAnalyzeProfileRejectsMissingProfile(t *testing.T) {
	mock := &MockProvider{Response: "{}"}
	service := NewServiceWithProvider(newTestConfig(), mock, testLogger)

	_, _, err := service.AnalyzeProfile(context.Background(), types.AnalyzeRequest{})
	if err == nil {
		t.Fatal("Expected validation error for missing profile")
	}
	if mock.Calls() != 0 {
		t.Errorf("Expected 0 provider calls, got %d", mock.Calls())
	}
}

func TestOperationFailsOnMalformedOutput(t *testing.T) {
	mock := &MockProvider{Response: "I cannot answer in JSON today."}
	service := NewServiceWithProvider(newTestConfig(), mock, testLogger)

	_, _, err := service.ExtractKeywords(context.Background(), types.KeywordsRequest{
		JobDescription: "Senior Go engineer, Kubernetes experience required.",
	})
	if err == nil {
		t.Fatal("Expected error for non-JSON output")
	}

	appErr, ok := err.(*errors.AppError)
	if !ok {
		t.Fatalf("Expected *errors.AppError, got %T", err)
	}
	if appErr.Code != errors.ErrCodeMalformedOutput {
		t.Errorf("Expected code '%s', got '%s'", errors.ErrCodeMalformedOutput, appErr.Code)
	}
	if appErr.Type != errors.ErrorTypeProvider {
		t.Errorf("Expected provider error type, got '%s'", appErr.Type)
	}
}

func TestExecuteWithRetryRecoversFromTransientFailure(t *testing.T) {
	calls := 0
	mock := &MockProvider{
		GenerateFunc: func(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
			calls++
			if calls == 1 {
				return nil, newProviderHTTPError(503, "upstream busy")
			}
			return &GenerateResult{
				Text:  `{"skills": ["Go"], "keywords": ["backend"], "seniority": "senior", "nice_to_have": []}`,
				Usage: &TokenUsage{InputTokens: 5, OutputTokens: 5, TotalTokens: 10},
			}, nil
		},
	}
	service := NewServiceWithProvider(newTestConfig(), mock, testLogger)

	resp, _, err := service.ExtractKeywords(context.Background(), types.KeywordsRequest{
		JobDescription: "Senior Go engineer",
	})
	if err != nil {
		t.Fatalf("Expected retry to recover, got error: %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 provider calls (1 failure + 1 retry), got %d", calls)
	}
	if resp.Seniority != "senior" {
		t.Errorf("Expected seniority 'senior', got '%s'", resp.Seniority)
	}
}

func TestExecuteWithRetryStopsOnNonRetryableError(t *testing.T) {
	mock := &MockProvider{
		Err: newProviderHTTPError(400, "bad request"),
	}
	service := NewServiceWithProvider(newTestConfig(), mock, testLogger)

	_, _, err := service.ExtractKeywords(context.Background(), types.KeywordsRequest{
		JobDescription: "Senior Go engineer",
	})
	if err == nil {
		t.Fatal("Expected error from provider")
	}
	if mock.Calls() != 1 {
		t.Errorf("Expected a single provider call for a non-retryable error, got %d", mock.Calls())
	}
}

func TestTailorBulletsDefaultsTone(t *testing.T) {
	var capturedPrompt string
	mock := &MockProvider{
		GenerateFunc: func(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
			capturedPrompt = req.UserPrompt
			return &GenerateResult{
				Text: `{"bullets": ["Did a thing"], "removed": [], "focus": ["impact"]}`,
			}, nil
		},
	}
	service := NewServiceWithProvider(newTestConfig(), mock, testLogger)

	_, _, err := service.TailorBullets(context.Background(), types.TailorRequest{
		Profile:        newTestProfile(),
		JobDescription: "Go backend role",
	})
	if err != nil {
		t.Fatalf("TailorBullets failed: %v", err)
	}
	if !strings.Contains(capturedPrompt, "concise") {
		t.Error("Expected default tone 'concise' in the user prompt")
	}
}

func TestGetCircuitBreakerStatsCoversAllOperations(t *testing.T) {
	mock := &MockProvider{Response: "{}"}
	service := NewServiceWithProvider(newTestConfig(), mock, testLogger)

	stats := service.GetCircuitBreakerStats()
	for _, op := range config.Operations {
		if _, ok := stats[string(op)]; !ok {
			t.Errorf("Expected stats entry for operation '%s'", op)
		}
	}
	healthy, ok := stats["overall_healthy"].(bool)
	if !ok || !healthy {
		t.Error("Expected overall_healthy to be true with breakers disabled")
	}
}
