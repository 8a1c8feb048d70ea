package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"resumechat/internal/ai"
	"resumechat/internal/config"
	resumechatErrors "resumechat/internal/errors"
)

var testLogger = resumechatErrors.NewLogger(slog.LevelError)

func newTestAppConfig() *config.Config {
	return &config.Config{
		AI: config.AIConfig{
			Provider:    "openai",
			Model:       "test-model",
			Timeout:     30 * time.Second,
			MaxRetries:  1,
			Temperature: 0.7,
			OpenAI:      config.OpenAIConfig{APIKey: "test-key"},
		},
		Observability: config.ObservabilityConfig{
			HealthCheck: config.HealthCheckConfig{Timeout: 2 * time.Second},
		},
	}
}

func newTestServer(t *testing.T, serverCfg ServerConfig) *Server {
	t.Helper()
	appCfg := newTestAppConfig()
	svc := ai.NewServiceWithProvider(appCfg, &ai.MockProvider{Response: "ok"}, testLogger)
	if serverCfg.Version == "" {
		serverCfg.Version = "test"
	}
	return NewServer(appCfg, svc, serverCfg, testLogger)
}

func TestDocsHandler(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	rec := httptest.NewRecorder()
	srv.docsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json content type, got %q", ct)
	}

	var body struct {
		Service   string        `json:"service"`
		Version   string        `json:"version"`
		Provider  string        `json:"provider"`
		Endpoints []endpointDoc `json:"endpoints"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode docs response: %v", err)
	}

	if body.Service != "resumechat" {
		t.Errorf("Expected service 'resumechat', got %q", body.Service)
	}
	if body.Provider != "mock" {
		t.Errorf("Expected provider 'mock', got %q", body.Provider)
	}
	if len(body.Endpoints) != 10 {
		t.Errorf("Expected 10 documented endpoints, got %d", len(body.Endpoints))
	}

	paths := make(map[string]endpointDoc)
	for _, ep := range body.Endpoints {
		paths[ep.Path] = ep
	}
	for _, want := range []string{"/docs", "/health", "/stats", "/chat", "/resume/ats-score"} {
		if _, ok := paths[want]; !ok {
			t.Errorf("Expected endpoint %s in docs", want)
		}
	}

	// No API keys configured, so no endpoint requires auth
	if paths["/chat"].Auth {
		t.Error("Expected auth_required=false when no API keys are configured")
	}
}

func TestDocsHandlerAuthRequired(t *testing.T) {
	srv := newTestServer(t, ServerConfig{APIKeys: []string{"secret-key-12345"}})

	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	rec := httptest.NewRecorder()
	srv.docsHandler(rec, req)

	var body struct {
		Endpoints []endpointDoc `json:"endpoints"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode docs response: %v", err)
	}
	for _, ep := range body.Endpoints {
		if ep.Method == "POST" && !ep.Auth {
			t.Errorf("Expected auth_required=true for %s when API keys are configured", ep.Path)
		}
	}
}

func TestDocsHandlerMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/docs", nil)
	rec := httptest.NewRecorder()
	srv.docsHandler(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rec.Code)
	}
}

func TestHealthHandlerHealthy(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.healthHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}

	if body["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", body["status"])
	}
	if body["service"] != "resumechat" {
		t.Errorf("Expected service 'resumechat', got %v", body["service"])
	}
	if body["provider"] != "mock" {
		t.Errorf("Expected provider 'mock', got %v", body["provider"])
	}

	model, ok := body["model"].(map[string]any)
	if !ok {
		t.Fatal("Expected model info in health response")
	}
	if model["available"] != true {
		t.Errorf("Expected model available, got %v", model["available"])
	}

	breakers, ok := body["circuit_breakers"].(map[string]any)
	if !ok {
		t.Fatal("Expected circuit breaker stats in health response")
	}
	if breakers["overall_healthy"] != true {
		t.Errorf("Expected overall_healthy=true, got %v", breakers["overall_healthy"])
	}
}

func TestHealthHandlerMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})

	req := httptest.NewRequest(http.MethodDelete, "/health", nil)
	rec := httptest.NewRecorder()
	srv.healthHandler(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rec.Code)
	}
}

func TestStatsHandler(t *testing.T) {
	srv := newTestServer(t, ServerConfig{
		MaxRequestSize: 1024,
		RateLimit: &config.RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 60,
			BurstCapacity:  5,
			ByIP:           true,
		},
	})
	defer srv.RateLimiter.Close()

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	srv.statsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode stats response: %v", err)
	}

	serverStats, ok := body["server"].(map[string]any)
	if !ok {
		t.Fatal("Expected server stats")
	}
	if serverStats["max_request_size_bytes"] != float64(1024) {
		t.Errorf("Expected max_request_size_bytes=1024, got %v", serverStats["max_request_size_bytes"])
	}

	limitCfg, ok := body["rate_limit_config"].(map[string]any)
	if !ok {
		t.Fatal("Expected rate_limit_config in stats")
	}
	if limitCfg["enabled"] != true {
		t.Errorf("Expected rate limiting enabled, got %v", limitCfg["enabled"])
	}

	if _, ok := body["rate_limiting"].(map[string]any); !ok {
		t.Error("Expected rate_limiting stats")
	}
}

func TestStatsHandlerRateLimitDisabled(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	srv.statsHandler(rec, req)

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode stats response: %v", err)
	}

	limiting, ok := body["rate_limiting"].(map[string]any)
	if !ok {
		t.Fatal("Expected rate_limiting stats")
	}
	if limiting["enabled"] != false {
		t.Errorf("Expected rate_limiting.enabled=false, got %v", limiting["enabled"])
	}
}

func TestAuthMiddleware(t *testing.T) {
	next := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}

	t.Run("NoKeysConfigured", func(t *testing.T) {
		srv := newTestServer(t, ServerConfig{})
		rec := httptest.NewRecorder()
		srv.authMiddleware(next)(rec, httptest.NewRequest(http.MethodPost, "/chat", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("Expected passthrough without keys, got %d", rec.Code)
		}
	})

	srv := newTestServer(t, ServerConfig{APIKeys: []string{"valid-key-123456"}})

	t.Run("MissingKey", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.authMiddleware(next)(rec, httptest.NewRequest(http.MethodPost, "/chat", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("Expected status 401, got %d", rec.Code)
		}
		var body ErrorResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode error response: %v", err)
		}
		if body.Code != "MISSING_API_KEY" {
			t.Errorf("Expected code MISSING_API_KEY, got %q", body.Code)
		}
	})

	t.Run("InvalidKey", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/chat", nil)
		req.Header.Set("X-API-Key", "wrong-key")
		rec := httptest.NewRecorder()
		srv.authMiddleware(next)(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("Expected status 401, got %d", rec.Code)
		}
		var body ErrorResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode error response: %v", err)
		}
		if body.Code != "INVALID_API_KEY" {
			t.Errorf("Expected code INVALID_API_KEY, got %q", body.Code)
		}
	})

	t.Run("ValidHeaderKey", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/chat", nil)
		req.Header.Set("X-API-Key", "valid-key-123456")
		rec := httptest.NewRecorder()
		srv.authMiddleware(next)(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("Expected status 200 with valid key, got %d", rec.Code)
		}
	})

	t.Run("ValidBearerToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/chat", nil)
		req.Header.Set("Authorization", "Bearer valid-key-123456")
		rec := httptest.NewRecorder()
		srv.authMiddleware(next)(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("Expected status 200 with valid bearer token, got %d", rec.Code)
		}
	})
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "ValidationError",
			err:        resumechatErrors.NewValidationError("EMPTY_MESSAGE", "message is required", nil),
			wantStatus: http.StatusBadRequest,
			wantCode:   "EMPTY_MESSAGE",
		},
		{
			name:       "ProviderError",
			err:        resumechatErrors.NewProviderError("PROVIDER_REQUEST_FAILED", "upstream rejected the request", nil),
			wantStatus: http.StatusBadGateway,
			wantCode:   "PROVIDER_REQUEST_FAILED",
		},
		{
			name:       "NetworkError",
			err:        resumechatErrors.NewNetworkError("CONNECTION_FAILED", "connection refused", nil),
			wantStatus: http.StatusBadGateway,
			wantCode:   "CONNECTION_FAILED",
		},
		{
			name:       "InternalError",
			err:        resumechatErrors.NewInternalError("UNEXPECTED", "something broke", nil),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "UNEXPECTED",
		},
		{
			name:       "PlainError",
			err:        fmt.Errorf("plain failure"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, code := statusForError(tc.err)
			if status != tc.wantStatus {
				t.Errorf("Expected status %d, got %d", tc.wantStatus, status)
			}
			if code != tc.wantCode {
				t.Errorf("Expected code %q, got %q", tc.wantCode, code)
			}
		})
	}
}

func TestErrorDetail(t *testing.T) {
	appErr := resumechatErrors.NewValidationError("EMPTY_MESSAGE", "message is required", fmt.Errorf("inner"))
	if got := errorDetail(appErr); got != "message is required" {
		t.Errorf("Expected the client-facing message, got %q", got)
	}
	if got := errorDetail(fmt.Errorf("raw failure")); got != "raw failure" {
		t.Errorf("Expected the raw error string, got %q", got)
	}
}

func TestWriteErrorResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	writeErrorResponse(rec, "unknown provider: bogus", "UNKNOWN_PROVIDER", http.StatusBadGateway)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", rec.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if body.Detail != "unknown provider: bogus" {
		t.Errorf("Unexpected detail: %q", body.Detail)
	}
	if body.Code != "UNKNOWN_PROVIDER" {
		t.Errorf("Unexpected code: %q", body.Code)
	}
}

func TestParseJSONRequest(t *testing.T) {
	t.Run("ValidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message": "hi"}`))
		req.Header.Set("Content-Type", "application/json")
		var parsed struct {
			Message string `json:"message"`
		}
		if err := parseJSONRequest(req, &parsed); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if parsed.Message != "hi" {
			t.Errorf("Expected message 'hi', got %q", parsed.Message)
		}
	})

	t.Run("ContentTypeWithCharset", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message": "hi"}`))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		var parsed struct {
			Message string `json:"message"`
		}
		if err := parseJSONRequest(req, &parsed); err != nil {
			t.Fatalf("Expected charset parameter to be accepted, got %v", err)
		}
		if parsed.Message != "hi" {
			t.Errorf("Expected message 'hi', got %q", parsed.Message)
		}
	})

	t.Run("WrongContentType", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "text/plain")
		var parsed map[string]any
		err := parseJSONRequest(req, &parsed)
		if err == nil || !strings.Contains(err.Error(), "content-type") {
			t.Errorf("Expected content-type error, got %v", err)
		}
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":`))
		req.Header.Set("Content-Type", "application/json")
		var parsed map[string]any
		if err := parseJSONRequest(req, &parsed); err == nil {
			t.Error("Expected parse error for malformed JSON")
		}
	})

	t.Run("BodyTooLarge", func(t *testing.T) {
		srv := newTestServer(t, ServerConfig{MaxRequestSize: 16})
		handler := srv.requestSizeLimitMiddleware()(func(w http.ResponseWriter, r *http.Request) {
			var parsed map[string]any
			err := parseJSONRequest(r, &parsed)
			if err == nil || !strings.Contains(err.Error(), "too large") {
				t.Errorf("Expected body-too-large error, got %v", err)
			}
			w.WriteHeader(http.StatusOK)
		})

		big := `{"message": "` + strings.Repeat("a", 64) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(big))
		req.Header.Set("Content-Type", "application/json")
		handler(httptest.NewRecorder(), req)
	})
}

func TestMaskAPIKey(t *testing.T) {
	if got := maskAPIKey("short"); got != "****" {
		t.Errorf("Expected short keys fully masked, got %q", got)
	}
	if got := maskAPIKey("sk-1234567890abcdef"); got != "sk-12345****" {
		t.Errorf("Expected prefix plus mask, got %q", got)
	}
}

func TestGetClientIP(t *testing.T) {
	t.Run("XForwardedFor", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "garbage, 203.0.113.7, 10.0.0.1")
		if got := getClientIP(req); got != "203.0.113.7" {
			t.Errorf("Expected first valid forwarded IP, got %q", got)
		}
	})

	t.Run("XRealIP", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-IP", "198.51.100.4")
		if got := getClientIP(req); got != "198.51.100.4" {
			t.Errorf("Expected X-Real-IP, got %q", got)
		}
	})

	t.Run("RemoteAddrFallback", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.10:54321"
		if got := getClientIP(req); got != "192.0.2.10" {
			t.Errorf("Expected host from RemoteAddr, got %q", got)
		}
	})
}

func TestFirstValidIP(t *testing.T) {
	if got := firstValidIP("not-an-ip, 192.0.2.1"); got != "192.0.2.1" {
		t.Errorf("Expected first valid IP, got %q", got)
	}
	if got := firstValidIP("none, of, these"); got != "" {
		t.Errorf("Expected empty result for invalid list, got %q", got)
	}
}

func TestRateLimiterAllow(t *testing.T) {
	limiter := NewRateLimiter(60, 2, testLogger)
	defer limiter.Close()

	if !limiter.Allow("ip:192.0.2.1") {
		t.Error("First request should be allowed")
	}
	if !limiter.Allow("ip:192.0.2.1") {
		t.Error("Second request should be allowed within burst")
	}
	if limiter.Allow("ip:192.0.2.1") {
		t.Error("Third request should exceed the burst capacity")
	}

	// A different key gets its own bucket
	if !limiter.Allow("ip:192.0.2.2") {
		t.Error("Different key should have independent capacity")
	}

	stats := limiter.GetStats()
	if stats["active_limiters"] != 2 {
		t.Errorf("Expected 2 active limiters, got %v", stats["active_limiters"])
	}
	if stats["burst_capacity"] != 2 {
		t.Errorf("Expected burst capacity 2, got %v", stats["burst_capacity"])
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	srv := newTestServer(t, ServerConfig{
		RateLimit: &config.RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 60,
			BurstCapacity:  1,
			ByIP:           true,
		},
	})
	defer srv.RateLimiter.Close()

	handler := srv.rateLimitMiddleware()(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/chat", nil)
	req.RemoteAddr = "192.0.2.50:12345"

	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected first request allowed, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected status 429 after burst exhausted, got %d", rec.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if body.Code != "RATE_LIMITED" {
		t.Errorf("Expected code RATE_LIMITED, got %q", body.Code)
	}
}

func TestRateLimitMiddlewareDisabled(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})

	handler := srv.rateLimitMiddleware()(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for range 5 {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodPost, "/chat", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected all requests allowed when disabled, got %d", rec.Code)
		}
	}
}
