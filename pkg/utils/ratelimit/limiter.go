// Package ratelimit provides a token-bucket limiter used to throttle
// outbound LLM calls. The bucket refills continuously, so a steady
// request stream is spread evenly instead of bursting at window edges.
package ratelimit

import (
	"context"
	"time"
)

// Rate is requests per second
type Rate float64

// Per expresses a rate as requests per duration
func Per(requests int, duration time.Duration) Rate {
	if duration <= 0 {
		return 0
	}
	return Rate(float64(requests) / duration.Seconds())
}

// PerSecond expresses a rate as requests per second
func PerSecond(requests int) Rate {
	return Per(requests, time.Second)
}

// PerMinute expresses a rate as requests per minute
func PerMinute(requests int) Rate {
	return Per(requests, time.Minute)
}

// Limiter admits requests under a rate limit
type Limiter interface {
	// Allow reports whether one request may proceed now
	Allow() bool
	// Wait blocks until a request may proceed or the context ends
	Wait(ctx context.Context) error
	// Limit returns the configured rate
	Limit() Rate
	// Burst returns the configured burst size
	Burst() int
}

// NewLimiter creates a token-bucket limiter with the given rate and
// burst capacity
func NewLimiter(rate Rate, burst int) Limiter {
	return newTokenBucket(rate, burst)
}
