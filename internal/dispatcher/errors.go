package dispatcher

import "fmt"

// RateLimitError represents a quota/rate-limit or timeout condition on one
// model/credential-slot combination.
type RateLimitError struct {
	Model  string
	Slot   int
	Reason string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit: %s (slot %d) - %s", e.Model, e.Slot, e.Reason)
}

// ValidationError represents a fatal request validation error
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ExhaustedError is returned when every credential x model combination failed
// across the full cycle budget and no local fallback answered.
type ExhaustedError struct {
	Cycles  int
	LastErr error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("exhausted retries after %d cycles: %v", e.Cycles, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }
