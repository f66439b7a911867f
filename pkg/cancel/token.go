// Package cancel owns the mapping of batch id to cancellation state:
// tokens the workers observe, safe-checkpoint flags, graceful vs. force
// handling, and the cancellation audit trail.
package cancel

import (
	"context"
	"sync"
	"sync/atomic"
)

// Token is the cancellation handle the orchestrator and its workers
// observe. A graceful request flips Requested without cancelling the
// context, so an in-flight LLM call can finish; a forced request also
// cancels the context.
type Token struct {
	ctx        context.Context
	cancelFunc context.CancelFunc

	requested   atomic.Bool
	force       atomic.Bool
	checkpoint  atomic.Bool
	requestedCh chan struct{}
	requestOnce sync.Once
}

func newToken(parent context.Context) *Token {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancelFunc := context.WithCancel(parent)
	return &Token{ctx: ctx, cancelFunc: cancelFunc, requestedCh: make(chan struct{})}
}

// Context carries forced cancellation down into outbound calls
func (t *Token) Context() context.Context {
	return t.ctx
}

// Requested reports whether any cancellation was requested
func (t *Token) Requested() bool {
	return t.requested.Load()
}

// RequestedChan is closed when any cancellation is requested; it lets
// wait loops wake on graceful cancels that leave the context alive
func (t *Token) RequestedChan() <-chan struct{} {
	return t.requestedCh
}

// ForceTerminate reports whether the request demanded immediate teardown
func (t *Token) ForceTerminate() bool {
	return t.force.Load()
}

// AtCheckpoint reports whether the batch is at a safe checkpoint
func (t *Token) AtCheckpoint() bool {
	return t.checkpoint.Load()
}

// SetCheckpoint marks or clears the safe-checkpoint flag
func (t *Token) SetCheckpoint(safe bool) {
	t.checkpoint.Store(safe)
}

// signal marks the token cancelled; force additionally cancels the context
func (t *Token) signal(force bool) {
	t.requested.Store(true)
	t.requestOnce.Do(func() { close(t.requestedCh) })
	if force {
		t.force.Store(true)
		t.cancelFunc()
	}
}

// release cancels the context to free resources tied to it
func (t *Token) release() {
	t.cancelFunc()
}
