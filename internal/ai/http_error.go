package ai

import (
	"fmt"
	"net/http"

	"resumechat/internal/errors"
)

// ProviderHTTPError preserves the upstream HTTP status so the retry logic
// can tell transient failures from permanent ones
type ProviderHTTPError struct {
	StatusCode int
	Body       string
}

func (e *ProviderHTTPError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("provider returned HTTP %d: %s", e.StatusCode, body)
}

// Retryable reports whether the status indicates a transient condition
func (e *ProviderHTTPError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// newProviderHTTPError wraps a non-2xx upstream response as a provider error
// with the typed status error as its cause
func newProviderHTTPError(statusCode int, body string) *errors.AppError {
	httpErr := &ProviderHTTPError{StatusCode: statusCode, Body: body}
	return errors.NewProviderError(errors.ErrCodeProviderFailed,
		fmt.Sprintf("provider request failed with status %d", statusCode), httpErr).
		WithContext("status_code", statusCode)
}
