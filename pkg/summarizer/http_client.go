// Package summarizer provides the HTTP client for OpenAI-compatible endpoints
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/kart-io/summaryhub/pkg/config"
	"github.com/kart-io/summaryhub/pkg/errors"
	"github.com/kart-io/summaryhub/pkg/logger"
	"github.com/kart-io/summaryhub/pkg/utils/ratelimit"
)

// HTTPClient talks to an OpenAI-compatible chat completions endpoint
type HTTPClient struct {
	endpoint    string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	maxTries    uint
	limiter     ratelimit.Limiter
	httpClient  *http.Client
	logger      logger.Logger
}

// NewHTTPClient creates a client for the configured endpoint
func NewHTTPClient(cfg config.SummarizerConfig, log logger.Logger) (*HTTPClient, error) {
	if log == nil {
		log = logger.Discard
	}
	if cfg.Endpoint == "" {
		return nil, errors.New(errors.ErrMissingEndpoint, "summarizer endpoint is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	maxTries := uint(1)
	if cfg.TransportRetries > 0 {
		maxTries = uint(cfg.TransportRetries) + 1
	}

	var limiter ratelimit.Limiter
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.RequestsPerMinute / 10
		if burst < 1 {
			burst = 1
		}
		limiter = ratelimit.NewLimiter(ratelimit.Per(cfg.RequestsPerMinute, time.Minute), burst)
	}

	return &HTTPClient{
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		maxTries:    maxTries,
		limiter:     limiter,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      log,
	}, nil
}

// chatRequest is the OpenAI-compatible request body
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the OpenAI-compatible response body
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Summarize sends text to the endpoint and returns the summary text.
// Connection failures are retried at the transport level; timeouts and
// service errors surface to the caller's retry loop unchanged.
func (c *HTTPClient) Summarize(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", errors.New(errors.ErrInvalidInput, "text cannot be empty")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", contextError(err)
		}
	}

	operation := func() (string, error) {
		summary, err := c.doSummarize(ctx, text)
		if err != nil {
			// Only connection-level failures are worth an immediate
			// transport retry; the orchestrator's task loop owns the
			// rest of the retry policy.
			if errors.GetErrorCode(err) == errors.ErrConnectionFailed {
				return "", err
			}
			return "", backoff.Permanent(err)
		}
		return summary, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
}

// doSummarize performs one HTTP round trip
func (c *HTTPClient) doSummarize(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: text},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrTransport, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrTransport, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrTransport, "failed to read response")
	}

	c.logger.Debug("Summarize call finished",
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"chars", len(text))

	if resp.StatusCode != http.StatusOK {
		return "", c.classifyStatusError(resp.StatusCode, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", errors.Wrap(err, errors.ErrResponseParsing, "failed to decode response")
	}
	if parsed.Error != nil {
		return "", errors.Newf(errors.ErrServiceUnavailable, "endpoint error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", errors.New(errors.ErrResponseParsing, "response contains no summary")
	}

	return parsed.Choices[0].Message.Content, nil
}

// classifyTransportError maps a client error to the error taxonomy
func (c *HTTPClient) classifyTransportError(err error) error {
	if ctxErr := contextError(err); ctxErr != nil {
		return ctxErr
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return errors.Wrap(err, errors.ErrSummarizeTimeout, "summarize call timed out")
	}
	var opErr *net.OpError
	if stderrors.As(err, &opErr) {
		return errors.Wrap(err, errors.ErrConnectionFailed, "failed to connect to endpoint")
	}
	if strings.Contains(err.Error(), "connection refused") || strings.Contains(err.Error(), "no such host") {
		return errors.Wrap(err, errors.ErrConnectionFailed, "failed to connect to endpoint")
	}
	return errors.Wrap(err, errors.ErrConnectionFailed, "request failed")
}

// classifyStatusError maps an HTTP status to the error taxonomy
func (c *HTTPClient) classifyStatusError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}

	switch {
	case status == http.StatusTooManyRequests:
		return errors.Newf(errors.ErrRateLimitExceeded, "endpoint throttled request (status %d)", status).
			WithRetryAfter(5 * time.Second)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return errors.Newf(errors.ErrSummarizeTimeout, "endpoint timed out (status %d)", status)
	case status >= 500:
		return errors.Newf(errors.ErrServiceUnavailable, "endpoint unavailable (status %d): %s", status, msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.Newf(errors.ErrTransport, "endpoint rejected credentials (status %d)", status)
	default:
		return errors.Newf(errors.ErrTransport, "unexpected status %d: %s", status, msg)
	}
}

// contextError returns a classified error when ctx cancellation or
// deadline caused the failure
func contextError(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.ErrSummarizeTimeout, "summarize call timed out")
	}
	if stderrors.Is(err, context.Canceled) {
		return errors.Wrap(err, errors.ErrCancelled, "summarize call cancelled")
	}
	return nil
}

// Healthy reports whether the endpoint answers a models probe
func (c *HTTPClient) Healthy(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.endpoint+"/models", nil)
	if err != nil {
		return false
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Health probe failed", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode < 500
}

// Endpoint returns the configured endpoint, useful for diagnostics
func (c *HTTPClient) Endpoint() string {
	return c.endpoint
}

var _ Client = (*HTTPClient)(nil)
