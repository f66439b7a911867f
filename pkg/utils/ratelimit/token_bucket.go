package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/kart-io/summaryhub/pkg/utils/clock"
)

// tokenBucket refills fractional tokens on every call based on elapsed
// time, capped at the burst size
type tokenBucket struct {
	mutex  sync.Mutex
	rate   Rate
	burst  int
	tokens float64
	last   time.Time
	clock  clock.Clock
}

func newTokenBucket(rate Rate, burst int) *tokenBucket {
	return newTokenBucketWithClock(rate, burst, clock.Real)
}

func newTokenBucketWithClock(rate Rate, burst int, clk clock.Clock) *tokenBucket {
	if burst < 1 {
		burst = 1
	}
	return &tokenBucket{
		rate:   rate,
		burst:  burst,
		tokens: float64(burst),
		last:   clk.Now(),
		clock:  clk,
	}
}

func (b *tokenBucket) Allow() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.refill()
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (b *tokenBucket) Wait(ctx context.Context) error {
	for {
		b.mutex.Lock()
		b.refill()
		if b.tokens >= 1 {
			b.tokens--
			b.mutex.Unlock()
			return nil
		}

		var delay time.Duration
		if b.rate > 0 {
			missing := 1 - b.tokens
			delay = time.Duration(missing / float64(b.rate) * float64(time.Second))
		} else {
			// A zero rate never refills; only cancellation ends the wait
			delay = time.Hour
		}
		b.mutex.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.clock.After(delay):
		}
	}
}

func (b *tokenBucket) Limit() Rate { return b.rate }

func (b *tokenBucket) Burst() int { return b.burst }

// refill credits tokens for the time elapsed since the last refill.
// Callers must hold the mutex.
func (b *tokenBucket) refill() {
	now := b.clock.Now()
	elapsed := now.Sub(b.last)
	if elapsed <= 0 {
		return
	}
	b.last = now

	b.tokens += float64(b.rate) * elapsed.Seconds()
	if b.tokens > float64(b.burst) {
		b.tokens = float64(b.burst)
	}
}
