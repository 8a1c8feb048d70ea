package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"time"

	resumechatErrors "resumechat/internal/errors"
)

// getHealthCheckTimeout returns the configured health check timeout
func (s *Server) getHealthCheckTimeout() time.Duration {
	return s.AppConfig.Observability.HealthCheck.Timeout
}

// healthHandler provides a health check endpoint including model availability
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status":   "healthy",
		"service":  "resumechat",
		"version":  s.Version,
		"provider": s.AIService.Provider.Name(),
	}

	// Check model availability for the configured provider
	timeout := s.getHealthCheckTimeout()
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	modelInfo := s.AIService.GetModelInfo(ctx)
	response["model"] = modelInfo

	// Check circuit breaker status
	breakerStats := s.AIService.GetCircuitBreakerStats()
	response["circuit_breakers"] = breakerStats

	// Check certificate status if certificate manager is available
	certStatus := s.checkCertificateHealth()
	if certStatus != nil {
		response["certificates"] = certStatus
	}

	overallHealthy := modelInfo.Available
	if healthy, ok := breakerStats["overall_healthy"].(bool); ok && !healthy {
		overallHealthy = false
	}
	if certStatus != nil {
		if certHealthy, ok := certStatus["healthy"].(bool); ok && !certHealthy {
			overallHealthy = false
		}
	}

	if !overallHealthy {
		response["status"] = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Failed to encode health response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// checkCertificateHealth reports certificate status when a certificate
// store is running
func (s *Server) checkCertificateHealth() map[string]any {
	if s.Certs == nil {
		return nil
	}
	return s.Certs.Health()
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"service":  "resumechat",
		"version":  s.Version,
		"provider": s.AIService.Provider.Name(),
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
		},
		"circuit_breakers": s.AIService.GetCircuitBreakerStats(),
	}

	// Add rate limiting stats if enabled
	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Failed to encode stats response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// endpointDoc describes one API endpoint for the docs handler
type endpointDoc struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
	Auth        bool   `json:"auth_required"`
}

// docsHandler serves a JSON API descriptor at /docs
func (s *Server) docsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	authRequired := len(s.APIKeys) > 0
	response := map[string]any{
		"service":  "resumechat",
		"version":  s.Version,
		"provider": s.AIService.Provider.Name(),
		"endpoints": []endpointDoc{
			{Method: "GET", Path: "/docs", Description: "This API descriptor"},
			{Method: "GET", Path: "/health", Description: "Health check with model availability"},
			{Method: "GET", Path: "/stats", Description: "Server statistics"},
			{Method: "POST", Path: "/chat", Description: "Freeform resume advice chat", Auth: authRequired},
			{Method: "POST", Path: "/resume/analyze", Description: "Analyze a canonical profile", Auth: authRequired},
			{Method: "POST", Path: "/resume/keywords", Description: "Extract keywords from a job description", Auth: authRequired},
			{Method: "POST", Path: "/resume/tailor", Description: "Tailor resume bullets to a job description", Auth: authRequired},
			{Method: "POST", Path: "/resume/summary", Description: "Write a professional summary", Auth: authRequired},
			{Method: "POST", Path: "/resume/cover-letter", Description: "Draft a short cover letter", Auth: authRequired},
			{Method: "POST", Path: "/resume/ats-score", Description: "Compute a heuristic ATS score", Auth: authRequired},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Failed to encode docs response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// parseJSONRequest parses JSON request body into the provided struct.
// The Content-Type check tolerates media type parameters such as charset.
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return fmt.Errorf("content-type must be application/json")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return fmt.Errorf("request body too large (limit is %d bytes)", maxBytesErr.Limit)
		}
		return fmt.Errorf("failed to read request body: %w", err)
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Printf("Failed to close request body: %v", err)
		}
	}()

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	return nil
}

// statusForError maps an application error to an HTTP status and error code.
// Validation failures are the caller's fault; provider and network failures
// surface as bad gateway.
func statusForError(err error) (int, string) {
	var appErr *resumechatErrors.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, ""
	}

	switch appErr.Type {
	case resumechatErrors.ErrorTypeValidation:
		return http.StatusBadRequest, appErr.Code
	case resumechatErrors.ErrorTypeProvider, resumechatErrors.ErrorTypeNetwork:
		return http.StatusBadGateway, appErr.Code
	default:
		return http.StatusInternalServerError, appErr.Code
	}
}

// errorDetail extracts a client-facing message from an error
func errorDetail(err error) string {
	var appErr *resumechatErrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, detail, code string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Detail: detail,
		Code:   code,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Failed to encode error response: %v", err)
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
