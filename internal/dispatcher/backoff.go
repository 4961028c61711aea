package dispatcher

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	mpkg "github.com/local/bookpipe/internal/metrics"
)

// BackoffState is the explicit cycle-backoff scheduler for the rotation
// engine. One instance is scoped to a single GetResponse call, so there is no
// cross-document shared counter to race on.
type BackoffState struct {
	base   time.Duration
	cap    time.Duration
	jitter time.Duration
	cycle  int
	rnd    *rand.Rand
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewBackoffState(base, cap, jitter time.Duration) *BackoffState {
	return &BackoffState{
		base:   base,
		cap:    cap,
		jitter: jitter,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:  sleepCtx,
	}
}

// NextDelay returns min(base * 2^cycle, cap) plus uniform jitter.
func (b *BackoffState) NextDelay() time.Duration {
	d := b.base
	for i := 0; i < b.cycle; i++ {
		d *= 2
		if d >= b.cap {
			d = b.cap
			break
		}
	}
	if b.jitter > 0 {
		d += time.Duration(b.rnd.Int63n(int64(b.jitter)))
	}
	return d
}

// Wait sleeps the next backoff delay and advances the cycle counter.
func (b *BackoffState) Wait(ctx context.Context) error {
	d := b.NextDelay()
	log.Warn().
		Int("cycle", b.cycle).
		Dur("wait", d).
		Msg("all credential/model combinations exhausted - backing off before next cycle")
	mpkg.ObserveRotationBackoff(d)
	b.cycle++
	return b.sleep(ctx, d)
}

func (b *BackoffState) Cycle() int { return b.cycle }

// sleepCtx blocks for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
