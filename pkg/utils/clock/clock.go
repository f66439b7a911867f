// Package clock provides an injectable time source for SummaryHub components.
// Production code uses the real clock; tests substitute a fake to advance
// virtual time through backoff sleeps and adjustment intervals.
package clock

import (
	"sync"
	"time"
)

// Clock abstracts time for components that sleep, tick, or timestamp.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// After waits for the duration to elapse and delivers the current time.
	After(d time.Duration) <-chan time.Time
	// Since returns the time elapsed since t.
	Since(t time.Time) time.Duration
}

// realClock delegates to the time package.
type realClock struct{}

// Now returns the current wall-clock time.
func (realClock) Now() time.Time { return time.Now() }

// After delegates to time.After.
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Since delegates to time.Since.
func (realClock) Since(t time.Time) time.Duration { return time.Since(t) }

// Real is the production clock.
var Real Clock = realClock{}

// Fake is a manually advanced clock for tests.
type Fake struct {
	mutex   sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	ch       chan time.Time
}

// NewFake creates a fake clock starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.now
}

// Since returns the fake elapsed time since t.
func (f *Fake) Since(t time.Time) time.Duration {
	return f.Now().Sub(t)
}

// After returns a channel that fires once the fake clock advances past d.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- f.now
		return ch
	}
	f.waiters = append(f.waiters, &fakeWaiter{deadline: f.now.Add(d), ch: ch})
	return ch
}

// Advance moves the fake clock forward and fires any due waiters.
func (f *Fake) Advance(d time.Duration) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.now = f.now.Add(d)

	remaining := f.waiters[:0]
	for _, w := range f.waiters {
		if !w.deadline.After(f.now) {
			w.ch <- f.now
		} else {
			remaining = append(remaining, w)
		}
	}
	f.waiters = remaining
}
