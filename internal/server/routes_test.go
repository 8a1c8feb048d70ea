package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"resumechat/internal/ai"
	"resumechat/internal/observability"
	"resumechat/internal/types"
)

// newRoutedServer builds a server with the full route and middleware stack
// and a canned provider, so requests exercise the same path as production
// traffic without any network access.
func newRoutedServer(t *testing.T, provider *ai.MockProvider, serverCfg ServerConfig) *http.ServeMux {
	t.Helper()

	appCfg := newTestAppConfig()
	svc := ai.NewServiceWithProvider(appCfg, provider, testLogger)
	if serverCfg.Version == "" {
		serverCfg.Version = "test"
	}
	srv := NewServer(appCfg, svc, serverCfg, testLogger)

	om, err := observability.NewObservabilityManager(observability.ObservabilityConfig{}, nil)
	if err != nil {
		t.Fatalf("Failed to create observability manager: %v", err)
	}
	return srv.setupRoutes(om)
}

func postJSON(mux *http.ServeMux, path, body, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestChatEndpoint(t *testing.T) {
	provider := &ai.MockProvider{Response: "Consider quantifying your achievements."}
	mux := newRoutedServer(t, provider, ServerConfig{})

	rec := postJSON(mux, "/chat", `{"message": "Improve my summary section"}`, "application/json")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json content type, got %q", ct)
	}

	var body types.ChatResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode chat response: %v", err)
	}
	if body.Original != "Improve my summary section" {
		t.Errorf("Expected the request message echoed back, got %q", body.Original)
	}
	// Non-JSON provider output lands verbatim in raw_text
	if body.Suggestion.RawText != "Consider quantifying your achievements." {
		t.Errorf("Expected provider output in raw_text, got %q", body.Suggestion.RawText)
	}
	if provider.Calls() != 1 {
		t.Errorf("Expected exactly one provider call, got %d", provider.Calls())
	}
}

func TestChatEndpointAcceptsCharsetParameter(t *testing.T) {
	provider := &ai.MockProvider{Response: "ok"}
	mux := newRoutedServer(t, provider, ServerConfig{})

	rec := postJSON(mux, "/chat", `{"message": "hi"}`, "application/json; charset=utf-8")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200 with charset parameter, got %d: %s", rec.Code, rec.Body.String())
	}
	if provider.Calls() != 1 {
		t.Errorf("Expected exactly one provider call, got %d", provider.Calls())
	}
}

func TestChatEndpointRejectsBlankMessage(t *testing.T) {
	provider := &ai.MockProvider{Response: "never used"}
	mux := newRoutedServer(t, provider, ServerConfig{})

	rec := postJSON(mux, "/chat", `{"message": "   "}`, "application/json")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d: %s", rec.Code, rec.Body.String())
	}

	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if body.Detail == "" {
		t.Error("Expected a non-empty error detail")
	}

	// Validation must fail before the provider is reached
	if provider.Calls() != 0 {
		t.Errorf("Expected no provider calls for invalid input, got %d", provider.Calls())
	}
}

func TestResumeSummaryEndpoint(t *testing.T) {
	provider := &ai.MockProvider{Response: `{"summary": "Backend engineer with eight years of Go experience."}`}
	mux := newRoutedServer(t, provider, ServerConfig{})

	payload := `{"profile": {"name": "Jo Doe", "skills": ["Go"]}, "job_description": "Senior Go developer"}`
	rec := postJSON(mux, "/resume/summary", payload, "application/json")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body types.SummaryResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode summary response: %v", err)
	}
	if body.Summary != "Backend engineer with eight years of Go experience." {
		t.Errorf("Unexpected summary: %q", body.Summary)
	}
	if provider.Calls() != 1 {
		t.Errorf("Expected exactly one provider call, got %d", provider.Calls())
	}
}

func TestResumeSummaryEndpointRejectsMissingProfile(t *testing.T) {
	provider := &ai.MockProvider{Response: "never used"}
	mux := newRoutedServer(t, provider, ServerConfig{})

	rec := postJSON(mux, "/resume/summary", `{"job_description": "Senior Go developer"}`, "application/json")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if provider.Calls() != 0 {
		t.Errorf("Expected no provider calls for invalid input, got %d", provider.Calls())
	}
}

func TestRoutedEndpointsRequireAuth(t *testing.T) {
	provider := &ai.MockProvider{Response: "ok"}
	mux := newRoutedServer(t, provider, ServerConfig{APIKeys: []string{"route-test-key-1234"}})

	t.Run("MissingKey", func(t *testing.T) {
		rec := postJSON(mux, "/chat", `{"message": "hi"}`, "application/json")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("Expected status 401 without a key, got %d", rec.Code)
		}
		if provider.Calls() != 0 {
			t.Errorf("Expected no provider calls, got %d", provider.Calls())
		}
	})

	t.Run("ValidKey", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message": "hi"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", "route-test-key-1234")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200 with a valid key, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	// Health stays open even with API keys configured
	t.Run("HealthOpen", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("Expected open health endpoint, got %d", rec.Code)
		}
	})
}
