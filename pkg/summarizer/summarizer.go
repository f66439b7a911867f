// Package summarizer provides the LLM endpoint adapter for SummaryHub.
// The core consumes only the Client contract; errors are classified into
// timeout, service-unavailable, connection, transport, and
// response-parsing so the orchestrator can decide retry-ability.
package summarizer

import "context"

// Client is the contract the core consumes for one LLM endpoint
type Client interface {
	// Summarize sends text to the endpoint and returns the summary.
	// The context carries cancellation and the per-call deadline.
	Summarize(ctx context.Context, text string) (string, error)
	// Healthy reports whether the endpoint is reachable
	Healthy(ctx context.Context) bool
}

// Func adapts a plain function to the Client interface; used in tests
// and for embedding
type Func func(ctx context.Context, text string) (string, error)

// Summarize calls the wrapped function
func (f Func) Summarize(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// Healthy always reports true for a function client
func (f Func) Healthy(ctx context.Context) bool { return true }
