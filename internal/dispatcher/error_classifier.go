package dispatcher

import (
	"context"
	"errors"
	"strings"

	"github.com/local/bookpipe/internal/ai"
)

// isTransientError checks if error is transient and should advance rotation
func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	// Empty or safety-filtered responses are treated like a rate limit:
	// advance to the next model, never fail the document for it.
	if ai.IsContentRefused(err) {
		return true
	}

	if ai.IsRateLimited(err) {
		return true
	}

	// Timeout errors
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// RateLimitError
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	// HTTP errors from the provider boundary
	var httpErr *ai.HTTPError
	if errors.As(err, &httpErr) {
		// 5xx server errors are transient
		if httpErr.StatusCode >= 500 && httpErr.StatusCode < 600 {
			return true
		}
		// 429 rate limit is transient
		if httpErr.StatusCode == 429 {
			return true
		}
	}

	// Network errors (connection issues, timeouts)
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "eof") {
		return true
	}

	return false
}

// isFatalError checks if error is fatal and should not be retried
func isFatalError(err error) bool {
	if err == nil {
		return false
	}

	// ValidationError
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return true
	}

	// HTTP 4xx errors (except 429) - malformed request or invalid credential
	var httpErr *ai.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 && httpErr.StatusCode != 429 {
			return true
		}
	}

	return false
}
