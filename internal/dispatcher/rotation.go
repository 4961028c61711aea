package dispatcher

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/bookpipe/internal/ai"
	cfgpkg "github.com/local/bookpipe/internal/config"
	mpkg "github.com/local/bookpipe/internal/metrics"
)

// TaskType selects the model-preference list. Segmentation demands strict
// structured-output fidelity and therefore excludes lightweight models.
type TaskType string

const (
	TaskClassification TaskType = "classification"
	TaskSegmentation   TaskType = "segmentation"
)

// Client is the fault-tolerant request layer for the remote inference
// service. Rotation and backoff state is scoped to a single GetResponse call;
// the Client itself holds only configuration and provider handles, so one
// instance is safe to share across documents.
type Client struct {
	cfg          cfgpkg.GeminiConfig
	remote       ai.Client
	local        ai.Client // last-resort local endpoint, may be nil
	localTimeout time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	newBackoff   func() *BackoffState
}

func New(cfg cfgpkg.GeminiConfig, remote ai.Client, local ai.Client, localTimeout time.Duration) *Client {
	c := &Client{
		cfg:          cfg,
		remote:       remote,
		local:        local,
		localTimeout: localTimeout,
		sleep:        sleepCtx,
	}
	c.newBackoff = func() *BackoffState {
		b := NewBackoffState(cfg.BackoffBase, cfg.BackoffCap, cfg.BackoffJitter)
		b.sleep = c.sleep
		return b
	}
	return c
}

// GetResponse runs the three-level rotation: outer retry cycles, credential
// slots in order, and the task's model list in priority order. Quota hits and
// empty responses advance the model on the same credential first; any other
// error propagates immediately.
func (c *Client) GetResponse(ctx context.Context, prompt string, task TaskType, preferredModel string) (string, error) {
	models := c.modelsFor(task, preferredModel)
	keys := c.cfg.APIKeys

	if len(models) == 0 {
		return "", &ValidationError{Message: "no models configured for task " + string(task)}
	}
	if len(keys) == 0 {
		if text, err := c.localFallback(ctx, prompt); err == nil {
			return text, nil
		}
		return "", &ValidationError{Message: "no credential slots configured"}
	}

	maxCycles := c.cfg.MaxCycles
	if maxCycles <= 0 {
		maxCycles = 1
	}
	backoff := c.newBackoff()

	var lastErr error
	for cycle := 0; cycle < maxCycles; cycle++ {
		for slot := range keys {
			for _, model := range models {
				text, err := c.callRemote(ctx, prompt, model, slot)
				if err == nil {
					return text, nil
				}
				if isFatalError(err) || !isTransientError(err) {
					// Malformed requests and invalid credentials are not
					// retried anywhere in the rotation.
					log.Error().
						Err(err).
						Str("task", string(task)).
						Str("model", model).
						Int("slot", slot).
						Msg("non-retryable error from remote inference")
					return "", err
				}
				lastErr = err
				log.Warn().
					Err(err).
					Str("task", string(task)).
					Str("model", model).
					Int("slot", slot).
					Int("cycle", cycle).
					Msg("transient error - advancing rotation")
				if perr := c.sleep(ctx, c.cfg.AttemptPause); perr != nil {
					return "", perr
				}
			}
		}
		if cycle == maxCycles-1 {
			break
		}
		if err := backoff.Wait(ctx); err != nil {
			return "", err
		}
	}

	log.Error().
		Err(lastErr).
		Str("task", string(task)).
		Int("cycles", maxCycles).
		Msg("all credential/model combinations exhausted")
	mpkg.ObserveRemote("all", -1, "exhausted", 0)

	if text, err := c.localFallback(ctx, prompt); err == nil {
		return text, nil
	}

	return "", &ExhaustedError{Cycles: maxCycles, LastErr: lastErr}
}

// callRemote performs one attempt against one model/slot combination with a
// fresh per-attempt timeout, mapping deadline expiry to a rate-limit style
// error so the rotation advances instead of aborting.
func (c *Client) callRemote(ctx context.Context, prompt, model string, slot int) (string, error) {
	timeout := c.cfg.RequestTimeout
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.remote.Do(cctx, ai.Request{Prompt: prompt, Model: model, APIKey: c.cfg.APIKeys[slot], Timeout: timeout})
	dur := time.Since(start)

	if err != nil && cctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		mpkg.ObserveRemote(model, slot, "timeout", dur)
		log.Warn().
			Str("model", model).
			Int("slot", slot).
			Dur("duration", dur).
			Dur("timeout", timeout).
			Msg("remote inference timeout - advancing rotation")
		return "", &RateLimitError{Model: model, Slot: slot, Reason: "timeout"}
	}

	result := "success"
	if err != nil {
		switch {
		case ai.IsRateLimited(err):
			result = "rate_limited"
		case ai.IsContentRefused(err):
			result = "content_refused"
		case isTransientError(err):
			result = "transient"
		case isFatalError(err):
			result = "fatal"
		default:
			result = "unknown"
		}
	}
	mpkg.ObserveRemote(model, slot, result, dur)

	if err != nil {
		return "", err
	}
	log.Debug().
		Str("model", model).
		Int("slot", slot).
		Dur("duration", dur).
		Int("chars", len(resp.Text)).
		Msg("remote inference success")
	return resp.Text, nil
}

func (c *Client) localFallback(ctx context.Context, prompt string) (string, error) {
	if c.local == nil {
		return "", &ValidationError{Message: "no local fallback configured"}
	}
	timeout := c.localTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Warn().Str("provider", c.local.Name()).Msg("falling back to local inference endpoint")
	start := time.Now()
	resp, err := c.local.Do(cctx, ai.Request{Prompt: prompt, Timeout: timeout})
	dur := time.Since(start)
	if err != nil {
		mpkg.ObserveRemote(c.local.Name(), -1, "failed", dur)
		log.Error().Err(err).Dur("duration", dur).Msg("local fallback failed")
		return "", err
	}
	mpkg.ObserveRemote(c.local.Name(), -1, "success", dur)
	return resp.Text, nil
}

// modelsFor returns the task's model list with preferredModel moved to the
// front for this call. Rotation order stays deterministic.
func (c *Client) modelsFor(task TaskType, preferredModel string) []string {
	var base []string
	switch task {
	case TaskSegmentation:
		base = c.cfg.SegmentModels
	default:
		base = c.cfg.ClassifyModels
	}

	if preferredModel == "" {
		return base
	}
	out := make([]string, 0, len(base)+1)
	out = append(out, preferredModel)
	for _, m := range base {
		if m != preferredModel {
			out = append(out, m)
		}
	}
	return out
}
