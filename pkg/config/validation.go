// Package config provides configuration validation for SummaryHub
package config

import (
	"math"

	"github.com/kart-io/summaryhub/pkg/errors"
)

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if err := c.validateSegmentation(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateConcurrency(); err != nil {
		return err
	}
	if err := c.validateCancellation(); err != nil {
		return err
	}
	if err := c.validatePartialResult(); err != nil {
		return err
	}
	return c.validateProgress()
}

func (c *Config) validateSegmentation() error {
	seg := c.Segmentation
	if seg.MaxSegmentLength <= 0 {
		return errors.NewConfigError("segmentation: max segment length must be positive")
	}
	if seg.TriggerLength <= 0 {
		return errors.NewConfigError("segmentation: trigger length must be positive")
	}
	if len(seg.SentenceEndMarkers) == 0 {
		return errors.NewConfigError("segmentation: at least one sentence end marker is required")
	}
	return nil
}

func (c *Config) validateRetry() error {
	r := c.Retry
	if r.MaxRetries < 0 {
		return errors.NewConfigError("retry: max retries cannot be negative")
	}
	if r.BaseDelay <= 0 {
		return errors.NewConfigError("retry: base delay must be positive")
	}
	if r.BackoffMultiplier < 1 {
		return errors.NewConfigError("retry: backoff multiplier must be at least 1")
	}
	if r.MaxDelay < r.BaseDelay {
		return errors.NewConfigError("retry: max delay cannot be below base delay")
	}
	return nil
}

func (c *Config) validateConcurrency() error {
	cc := c.Concurrency
	if cc.DefaultLimit < 1 {
		return errors.NewConfigError("concurrency: default limit must be at least 1")
	}
	if cc.MaxLimit < cc.DefaultLimit {
		return errors.NewConfigError("concurrency: max limit cannot be below default limit")
	}
	if cc.AdjustmentInterval <= 0 {
		return errors.NewConfigError("concurrency: adjustment interval must be positive")
	}
	if cc.WindowSize < cc.MinSamples {
		return errors.NewConfigError("concurrency: window size cannot be below min samples")
	}
	if cc.GrowSuccessRate <= 0 || cc.GrowSuccessRate > 1 {
		return errors.NewConfigError("concurrency: grow success rate must be in (0, 1]")
	}
	if cc.ShrinkSuccessRate <= 0 || cc.ShrinkSuccessRate > 1 {
		return errors.NewConfigError("concurrency: shrink success rate must be in (0, 1]")
	}
	return nil
}

func (c *Config) validateCancellation() error {
	cn := c.Cancellation
	if cn.GracefulTimeout <= 0 {
		return errors.NewConfigError("cancellation: graceful timeout must be positive")
	}
	if cn.CheckpointPoll <= 0 {
		return errors.NewConfigError("cancellation: checkpoint poll interval must be positive")
	}
	if cn.CheckpointPoll > cn.GracefulTimeout {
		return errors.NewConfigError("cancellation: checkpoint poll cannot exceed graceful timeout")
	}
	return nil
}

func (c *Config) validatePartialResult() error {
	pr := c.PartialResult
	if pr.ExpiryHours < 1 || pr.ExpiryHours > 168 {
		return errors.NewConfigError("partial result: expiry must be between 1 and 168 hours")
	}
	if pr.SampleSegments < 0 {
		return errors.NewConfigError("partial result: sample segments cannot be negative")
	}
	if pr.SampleLength < 0 {
		return errors.NewConfigError("partial result: sample length cannot be negative")
	}
	return nil
}

func (c *Config) validateProgress() error {
	weights := c.Progress.StageWeights
	if len(weights) == 0 {
		return errors.NewConfigError("progress: stage weights are required")
	}

	total := 0.0
	for stage, weight := range weights {
		if weight < 0 {
			return errors.Newf(errors.ErrInvalidConfig, "progress: stage %q has negative weight", stage)
		}
		total += weight
	}
	if math.Abs(total-100) > 0.001 {
		return errors.Newf(errors.ErrInvalidConfig, "progress: stage weights must sum to 100, got %.2f", total)
	}

	for stage, mult := range c.Progress.StageTimeMultipliers {
		if mult <= 0 {
			return errors.Newf(errors.ErrInvalidConfig, "progress: stage %q has non-positive time multiplier", stage)
		}
	}
	return nil
}
