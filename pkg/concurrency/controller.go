// Package concurrency provides the adaptive permit controller that gates
// outbound LLM calls. The permit count floats between 1 and the
// configured maximum based on observed latency and success rate;
// decreases drain naturally rather than revoking permits in flight.
package concurrency

import (
	"context"
	"sync"
	"time"

	"github.com/kart-io/summaryhub/pkg/config"
	"github.com/kart-io/summaryhub/pkg/logger"
	"github.com/kart-io/summaryhub/pkg/utils/clock"
)

// Permit is one unit of outbound concurrency. Release must be called on
// every exit path; it is idempotent.
type Permit struct {
	controller *Controller
	released   bool
	mutex      sync.Mutex
}

// Release returns the permit to the controller
func (p *Permit) Release() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.released {
		return
	}
	p.released = true
	p.controller.release()
}

// Stats exposes the controller's current state
type Stats struct {
	CurrentPermits int           `json:"current_permits"`
	ActiveRequests int           `json:"active_requests"`
	AvgLatency     time.Duration `json:"avg_latency"`
	SuccessRate    float64       `json:"success_rate"`
	SampleCount    int           `json:"sample_count"`
}

// Controller meters outbound concurrency with an adjustable permit pool
type Controller struct {
	config config.ConcurrencyConfig
	clock  clock.Clock
	logger logger.Logger

	mutex     sync.Mutex
	cond      chan struct{} // closed and replaced on every release/grow
	current   int           // permit target, in [1, max]
	active    int           // permits handed out
	latencies []time.Duration
	successes []bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewController creates a controller and starts its adjustment loop
func NewController(cfg config.ConcurrencyConfig, clk clock.Clock, log logger.Logger) *Controller {
	if log == nil {
		log = logger.Discard
	}
	if clk == nil {
		clk = clock.Real
	}
	if cfg.DefaultLimit < 1 {
		cfg.DefaultLimit = 1
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = cfg.DefaultLimit
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 100
	}

	c := &Controller{
		config:  cfg,
		clock:   clk,
		logger:  log,
		cond:    make(chan struct{}),
		current: cfg.DefaultLimit,
		stopCh:  make(chan struct{}),
	}

	c.wg.Add(1)
	go c.adjustLoop()

	return c
}

// Acquire blocks until a permit is available or the context is done.
// The batch tag is carried only for logging.
func (c *Controller) Acquire(ctx context.Context, batchTag string) (*Permit, error) {
	for {
		c.mutex.Lock()
		if c.active < c.current {
			c.active++
			c.mutex.Unlock()
			return &Permit{controller: c}, nil
		}
		wait := c.cond
		c.mutex.Unlock()

		c.logger.Debug("Waiting for concurrency permit", "batch", batchTag)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		case <-c.stopCh:
			return nil, context.Canceled
		}
	}
}

// release returns one permit and wakes waiters
func (c *Controller) release() {
	c.mutex.Lock()
	if c.active > 0 {
		c.active--
	}
	c.wake()
	c.mutex.Unlock()
}

// wake signals all waiters; callers must hold the mutex
func (c *Controller) wake() {
	close(c.cond)
	c.cond = make(chan struct{})
}

// RecordOutcome appends one call outcome to the bounded rolling windows
func (c *Controller) RecordOutcome(latency time.Duration, success bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.latencies = append(c.latencies, latency)
	c.successes = append(c.successes, success)
	if len(c.latencies) > c.config.WindowSize {
		c.latencies = c.latencies[1:]
	}
	if len(c.successes) > c.config.WindowSize {
		c.successes = c.successes[1:]
	}
}

// GetStats returns a snapshot of the controller state
func (c *Controller) GetStats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return Stats{
		CurrentPermits: c.current,
		ActiveRequests: c.active,
		AvgLatency:     c.avgLatencyLocked(),
		SuccessRate:    c.successRateLocked(),
		SampleCount:    len(c.latencies),
	}
}

// Close stops the adjustment loop and releases all waiters
func (c *Controller) Close() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	c.wg.Wait()
}

// adjustLoop periodically re-evaluates the permit target
func (c *Controller) adjustLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			return
		case <-c.clock.After(c.config.AdjustmentInterval):
			c.adjust()
		}
	}
}

// adjust applies the grow/shrink rules against the rolling windows
func (c *Controller) adjust() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	samples := len(c.latencies)
	if samples < c.config.MinSamples {
		return
	}

	avgLatency := c.avgLatencyLocked()
	successRate := c.successRateLocked()

	switch {
	case avgLatency < c.config.FastLatency &&
		successRate >= c.config.GrowSuccessRate &&
		c.current < c.config.MaxLimit:
		c.current++
		c.wake()
		c.logger.Info("Increased concurrency permits",
			"current", c.current,
			"avgLatency", avgLatency,
			"successRate", successRate)

	case c.current > 1 &&
		(avgLatency > c.config.SlowLatency || successRate < c.config.ShrinkSuccessRate):
		// Shrink the target only; outstanding permits drain naturally
		c.current--
		c.logger.Info("Decreased concurrency permits",
			"current", c.current,
			"avgLatency", avgLatency,
			"successRate", successRate)
	}
}

func (c *Controller) avgLatencyLocked() time.Duration {
	if len(c.latencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, l := range c.latencies {
		total += l
	}
	return total / time.Duration(len(c.latencies))
}

func (c *Controller) successRateLocked() float64 {
	if len(c.successes) == 0 {
		return 1
	}
	ok := 0
	for _, s := range c.successes {
		if s {
			ok++
		}
	}
	return float64(ok) / float64(len(c.successes))
}
