// Package resilience wraps external-tool invocations with a shared retry,
// backoff and fallback policy.
package resilience

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
)

// Policy describes the retry envelope for one capability.
type Policy struct {
	Attempts uint
	// Delay is the base delay; attempts back off as min(Delay * 2^n, MaxDelay).
	Delay    time.Duration
	MaxDelay time.Duration
	// RetryIf limits retries to transient failures. Nil retries everything.
	RetryIf func(err error) bool
}

// Invoke runs op under the policy, sleeping between attempts and honoring
// context cancellation. The last error is returned unwrapped from the retry
// machinery so callers can inspect it with errors.As.
func Invoke(ctx context.Context, p Policy, op func() error) error {
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(p.Attempts),
		retry.Delay(p.Delay),
		retry.MaxDelay(p.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Uint("attempt", n+1).Err(err).Msg("operation failed - retrying")
		}),
	}
	if p.RetryIf != nil {
		opts = append(opts, retry.RetryIf(p.RetryIf))
	}
	return retry.Do(op, opts...)
}

// InvokeWithFallback runs primary under the policy and, once its attempts are
// exhausted, runs fallback (a secondary implementation of the same
// capability) exactly once. The fallback's error wins when both fail.
func InvokeWithFallback(ctx context.Context, p Policy, primary, fallback func() error) error {
	if err := Invoke(ctx, p, primary); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("primary implementation exhausted - trying fallback")
		return fallback()
	}
	return nil
}
