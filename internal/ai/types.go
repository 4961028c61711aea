package ai

import (
    "context"
    "errors"
    "fmt"
    "time"
)

// Request represents a generic text-generation request.
type Request struct {
    Prompt  string
    Model   string
    APIKey  string // credential slot content; empty for keyless endpoints
    Timeout time.Duration
}

type Response struct {
    Text string
}

// Client interface for inference providers (remote Gemini, local Ollama).
type Client interface {
    Name() string
    Do(ctx context.Context, req Request) (Response, error)
}

var (
    ErrRateLimited    = errors.New("rate_limited")
    ErrContentRefused = errors.New("content_refused")
)

func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }
func IsContentRefused(err error) bool { return errors.Is(err, ErrContentRefused) }

// HTTPError carries the provider HTTP status so callers can classify
// transient vs fatal without string matching.
type HTTPError struct {
    Provider   string
    StatusCode int
    Body       string
}

func (e *HTTPError) Error() string {
    return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.Provider, e.Body)
}
