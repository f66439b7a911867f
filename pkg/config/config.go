// Package config provides the core configuration system for SummaryHub
package config

import (
	"time"

	"github.com/kart-io/summaryhub/pkg/logger"
)

// Config represents the unified configuration structure
type Config struct {
	// Component configurations
	Segmentation  SegmentationConfig  `json:"segmentation"`
	Retry         RetryConfig         `json:"retry"`
	Concurrency   ConcurrencyConfig   `json:"concurrency"`
	Cancellation  CancellationConfig  `json:"cancellation"`
	PartialResult PartialResultConfig `json:"partial_result"`
	Progress      ProgressConfig      `json:"progress"`
	Notification  NotificationConfig  `json:"notification"`
	Summarizer    SummarizerConfig    `json:"summarizer"`
	Merge         MergeConfig         `json:"merge"`
	Telemetry     TelemetryConfig     `json:"telemetry"`

	// Logger configuration
	Logger LoggerConfig `json:"logger"`

	// Instance-level settings
	LoggerInstance logger.Logger `json:"-"`
}

// SegmentationConfig configures text segmentation behavior
type SegmentationConfig struct {
	// MaxSegmentLength is the upper bound of characters per segment
	MaxSegmentLength int `json:"max_segment_length"`
	// TriggerLength is the threshold above which segmentation applies
	TriggerLength int `json:"trigger_length"`
	// SentenceEndMarkers are the characters that close a sentence
	SentenceEndMarkers []rune `json:"sentence_end_markers"`
	// PreserveParagraphs keeps paragraph boundaries sticky
	PreserveParagraphs bool `json:"preserve_paragraphs"`
	// LLMSegmentationEnabled allows the LLM fallback when quality is low
	LLMSegmentationEnabled bool `json:"llm_segmentation_enabled"`
	// GenerateTitles produces a title per segment
	GenerateTitles bool `json:"generate_titles"`
}

// RetryConfig configures the per-task retry policy
type RetryConfig struct {
	MaxRetries        int           `json:"max_retries"`
	BaseDelay         time.Duration `json:"base_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
	MaxDelay          time.Duration `json:"max_delay"`
}

// ConcurrencyConfig configures the adaptive concurrency controller
type ConcurrencyConfig struct {
	DefaultLimit       int           `json:"default_limit"`
	MaxLimit           int           `json:"max_limit"`
	AdjustmentInterval time.Duration `json:"adjustment_interval"`
	WindowSize         int           `json:"window_size"`
	MinSamples         int           `json:"min_samples"`
	FastLatency        time.Duration `json:"fast_latency"`
	SlowLatency        time.Duration `json:"slow_latency"`
	GrowSuccessRate    float64       `json:"grow_success_rate"`
	ShrinkSuccessRate  float64       `json:"shrink_success_rate"`
}

// CancellationConfig configures the cancellation service
type CancellationConfig struct {
	GracefulTimeout time.Duration `json:"graceful_timeout"`
	CheckpointPoll  time.Duration `json:"checkpoint_poll"`
}

// PartialResultConfig configures partial-result handling
type PartialResultConfig struct {
	// ExpiryHours is the pending-decision horizon; accepted range 1..168
	ExpiryHours int `json:"expiry_hours"`
	// SampleSegments is how many completed segments contribute a text sample
	SampleSegments int `json:"sample_segments"`
	// SampleLength is how many characters each sample takes
	SampleLength int `json:"sample_length"`
}

// ProgressConfig configures stage weighting and ETA multipliers
type ProgressConfig struct {
	StageWeights         map[string]float64 `json:"stage_weights"`
	StageTimeMultipliers map[string]float64 `json:"stage_time_multipliers"`
}

// NotificationConfig configures notification delivery
type NotificationConfig struct {
	// DuplicateSuppression is the dedupe window for progress updates
	DuplicateSuppression time.Duration `json:"duplicate_suppression"`
}

// MergeConfig configures the final merge step
type MergeConfig struct {
	// Strategy selects the merge strategy for completed batches
	Strategy string `json:"strategy"`
	// RequireAllSegments fails the batch when any segment failed instead
	// of merging the completed subset
	RequireAllSegments bool `json:"require_all_segments"`
}

// SummarizerConfig configures the LLM endpoint adapter
type SummarizerConfig struct {
	Endpoint    string        `json:"endpoint"`
	APIKey      string        `json:"-"`
	Model       string        `json:"model"`
	Timeout     time.Duration `json:"timeout"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	// TransportRetries bounds transport-level retries inside the client,
	// separate from the orchestrator's per-task retry loop
	TransportRetries int `json:"transport_retries"`
	// RequestsPerMinute throttles outbound LLM calls across all batches;
	// zero disables client-side throttling
	RequestsPerMinute int `json:"requests_per_minute"`
}

// TelemetryConfig configures OpenTelemetry integration
type TelemetryConfig struct {
	Enabled        bool              `json:"enabled"`
	ServiceName    string            `json:"service_name"`
	ServiceVersion string            `json:"service_version"`
	Environment    string            `json:"environment"`
	OTLPEndpoint   string            `json:"otlp_endpoint"`
	OTLPHeaders    map[string]string `json:"otlp_headers,omitempty"`
	TracingEnabled bool              `json:"tracing_enabled"`
	MetricsEnabled bool              `json:"metrics_enabled"`
	SampleRate     float64           `json:"sample_rate"`
}

// LoggerConfig configures logging behavior
type LoggerConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Stage names used for progress weighting
const (
	StageInitializing    = "initializing"
	StageSegmenting      = "segmenting"
	StageBatchProcessing = "batch_processing"
	StageMerging         = "merging"
	StageFinalizing      = "finalizing"
)

// DefaultStageWeights sum to 100 and weight each stage's contribution
// to overall progress
func DefaultStageWeights() map[string]float64 {
	return map[string]float64{
		StageInitializing:    5,
		StageSegmenting:      10,
		StageBatchProcessing: 70,
		StageMerging:         10,
		StageFinalizing:      5,
	}
}

// DefaultStageTimeMultipliers scale the ETA estimate per stage
func DefaultStageTimeMultipliers() map[string]float64 {
	return map[string]float64{
		StageInitializing:    0.1,
		StageSegmenting:      0.2,
		StageBatchProcessing: 1.0,
		StageMerging:         0.3,
		StageFinalizing:      0.1,
	}
}

// Option defines a functional option for configuration
type Option func(*Config) error

// New creates a new configuration with the given options
func New(opts ...Option) (*Config, error) {
	cfg := Default()

	// Apply options
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration defaults without validation
func Default() *Config {
	return &Config{
		Segmentation: SegmentationConfig{
			MaxSegmentLength:       1000,
			TriggerLength:          2000,
			SentenceEndMarkers:     []rune{'.', '!', '?', '。', '！', '？', ';', '；'},
			PreserveParagraphs:     true,
			LLMSegmentationEnabled: false,
			GenerateTitles:         true,
		},
		Retry: RetryConfig{
			MaxRetries:        3,
			BaseDelay:         1 * time.Second,
			BackoffMultiplier: 2.0,
			MaxDelay:          30 * time.Second,
		},
		Concurrency: ConcurrencyConfig{
			DefaultLimit:       2,
			MaxLimit:           8,
			AdjustmentInterval: 10 * time.Second,
			WindowSize:         100,
			MinSamples:         10,
			FastLatency:        3 * time.Second,
			SlowLatency:        10 * time.Second,
			GrowSuccessRate:    0.95,
			ShrinkSuccessRate:  0.85,
		},
		Cancellation: CancellationConfig{
			GracefulTimeout: 30 * time.Second,
			CheckpointPoll:  100 * time.Millisecond,
		},
		PartialResult: PartialResultConfig{
			ExpiryHours:    24,
			SampleSegments: 3,
			SampleLength:   200,
		},
		Progress: ProgressConfig{
			StageWeights:         DefaultStageWeights(),
			StageTimeMultipliers: DefaultStageTimeMultipliers(),
		},
		Notification: NotificationConfig{
			DuplicateSuppression: 500 * time.Millisecond,
		},
		Summarizer: SummarizerConfig{
			Timeout:          60 * time.Second,
			MaxTokens:        1024,
			Temperature:      0.3,
			TransportRetries: 2,
		},
		Merge: MergeConfig{
			Strategy:           "balanced",
			RequireAllSegments: false,
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			ServiceName:    "summaryhub",
			ServiceVersion: "1.0.0",
			Environment:    "development",
			OTLPEndpoint:   "http://localhost:4318",
			TracingEnabled: true,
			MetricsEnabled: true,
			SampleRate:     1.0,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// GetLogger returns the configured logger instance, or a default one
func (c *Config) GetLogger() logger.Logger {
	if c.LoggerInstance != nil {
		return c.LoggerInstance
	}
	return logger.New()
}

// PartialResultExpiry returns the pending-decision horizon as a duration
func (c *Config) PartialResultExpiry() time.Duration {
	return time.Duration(c.PartialResult.ExpiryHours) * time.Hour
}
