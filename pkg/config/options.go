// Package config provides functional options for SummaryHub configuration
package config

import (
	"time"

	"github.com/kart-io/summaryhub/pkg/errors"
	"github.com/kart-io/summaryhub/pkg/logger"
)

// WithSegmentation sets the full segmentation configuration
func WithSegmentation(seg SegmentationConfig) Option {
	return func(c *Config) error {
		c.Segmentation = seg
		return nil
	}
}

// WithMaxSegmentLength sets the per-segment character cap
func WithMaxSegmentLength(length int) Option {
	return func(c *Config) error {
		if length <= 0 {
			return errors.NewConfigError("max segment length must be positive")
		}
		c.Segmentation.MaxSegmentLength = length
		return nil
	}
}

// WithTriggerLength sets the segmentation trigger threshold
func WithTriggerLength(length int) Option {
	return func(c *Config) error {
		if length <= 0 {
			return errors.NewConfigError("trigger length must be positive")
		}
		c.Segmentation.TriggerLength = length
		return nil
	}
}

// WithSentenceEndMarkers sets the sentence terminator characters
func WithSentenceEndMarkers(markers []rune) Option {
	return func(c *Config) error {
		if len(markers) == 0 {
			return errors.NewConfigError("sentence end markers cannot be empty")
		}
		c.Segmentation.SentenceEndMarkers = markers
		return nil
	}
}

// WithLLMSegmentation enables or disables the LLM segmentation fallback
func WithLLMSegmentation(enabled bool) Option {
	return func(c *Config) error {
		c.Segmentation.LLMSegmentationEnabled = enabled
		return nil
	}
}

// WithRetryPolicy sets the per-task retry policy
func WithRetryPolicy(maxRetries int, baseDelay time.Duration, multiplier float64) Option {
	return func(c *Config) error {
		if maxRetries < 0 {
			return errors.NewConfigError("max retries cannot be negative")
		}
		if baseDelay <= 0 {
			return errors.NewConfigError("base delay must be positive")
		}
		if multiplier < 1 {
			return errors.NewConfigError("backoff multiplier must be at least 1")
		}
		c.Retry.MaxRetries = maxRetries
		c.Retry.BaseDelay = baseDelay
		c.Retry.BackoffMultiplier = multiplier
		return nil
	}
}

// WithConcurrencyLimits sets the controller bounds
func WithConcurrencyLimits(defaultLimit, maxLimit int) Option {
	return func(c *Config) error {
		if defaultLimit < 1 {
			return errors.NewConfigError("default concurrency limit must be at least 1")
		}
		if maxLimit < defaultLimit {
			return errors.NewConfigError("max concurrency limit cannot be below the default")
		}
		c.Concurrency.DefaultLimit = defaultLimit
		c.Concurrency.MaxLimit = maxLimit
		return nil
	}
}

// WithAdjustmentInterval sets how often the controller re-evaluates permits
func WithAdjustmentInterval(interval time.Duration) Option {
	return func(c *Config) error {
		if interval <= 0 {
			return errors.NewConfigError("adjustment interval must be positive")
		}
		c.Concurrency.AdjustmentInterval = interval
		return nil
	}
}

// WithGracefulCancelTimeout sets the graceful cancel deadline
func WithGracefulCancelTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout <= 0 {
			return errors.NewConfigError("graceful cancel timeout must be positive")
		}
		c.Cancellation.GracefulTimeout = timeout
		return nil
	}
}

// WithPartialResultExpiry sets the pending-decision horizon in hours
func WithPartialResultExpiry(hours int) Option {
	return func(c *Config) error {
		if hours < 1 || hours > 168 {
			return errors.NewConfigError("partial result expiry must be between 1 and 168 hours")
		}
		c.PartialResult.ExpiryHours = hours
		return nil
	}
}

// WithStageWeights overrides the progress stage weights
func WithStageWeights(weights map[string]float64) Option {
	return func(c *Config) error {
		c.Progress.StageWeights = weights
		return nil
	}
}

// WithDuplicateSuppression sets the progress-notification dedupe window
func WithDuplicateSuppression(window time.Duration) Option {
	return func(c *Config) error {
		if window < 0 {
			return errors.NewConfigError("duplicate suppression window cannot be negative")
		}
		c.Notification.DuplicateSuppression = window
		return nil
	}
}

// WithSummarizer configures the LLM endpoint adapter
func WithSummarizer(endpoint, apiKey, model string) Option {
	return func(c *Config) error {
		if endpoint == "" {
			return errors.New(errors.ErrMissingEndpoint, "summarizer endpoint is required")
		}
		c.Summarizer.Endpoint = endpoint
		c.Summarizer.APIKey = apiKey
		c.Summarizer.Model = model
		return nil
	}
}

// WithSummarizerTimeout sets the per-call LLM timeout
func WithSummarizerTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout <= 0 {
			return errors.NewConfigError("summarizer timeout must be positive")
		}
		c.Summarizer.Timeout = timeout
		return nil
	}
}

// WithTelemetry enables OpenTelemetry export to the given endpoint
func WithTelemetry(serviceName, otlpEndpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = true
		if serviceName != "" {
			c.Telemetry.ServiceName = serviceName
		}
		if otlpEndpoint != "" {
			c.Telemetry.OTLPEndpoint = otlpEndpoint
		}
		return nil
	}
}

// WithLogger sets a custom logger instance
func WithLogger(log logger.Logger) Option {
	return func(c *Config) error {
		if log == nil {
			return errors.NewConfigError("logger cannot be nil")
		}
		c.LoggerInstance = log
		return nil
	}
}

// WithLogLevel sets the log level for the default logger
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		switch level {
		case "silent", "error", "warn", "info", "debug":
			c.Logger.Level = level
			return nil
		default:
			return errors.NewConfigError("log level must be one of: silent, error, warn, info, debug")
		}
	}
}

// WithMergePolicy sets the merge strategy and whether merging requires
// every segment to have completed
func WithMergePolicy(strategy string, requireAllSegments bool) Option {
	return func(c *Config) error {
		if strategy == "" {
			return errors.NewConfigError("merge strategy cannot be empty")
		}
		c.Merge.Strategy = strategy
		c.Merge.RequireAllSegments = requireAllSegments
		return nil
	}
}
