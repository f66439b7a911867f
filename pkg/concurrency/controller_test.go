package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/summaryhub/pkg/config"
	"github.com/kart-io/summaryhub/pkg/utils/clock"
)

func testConfig() config.ConcurrencyConfig {
	cfg := config.Default().Concurrency
	cfg.DefaultLimit = 2
	cfg.MaxLimit = 8
	return cfg
}

func TestController_AcquireRelease(t *testing.T) {
	c := NewController(testConfig(), clock.NewFake(time.Now()), nil)
	defer c.Close()

	p1, err := c.Acquire(context.Background(), "b1")
	require.NoError(t, err)
	p2, err := c.Acquire(context.Background(), "b1")
	require.NoError(t, err)

	stats := c.GetStats()
	assert.Equal(t, 2, stats.ActiveRequests)
	assert.Equal(t, 2, stats.CurrentPermits)

	p1.Release()
	p1.Release() // idempotent
	p2.Release()
	assert.Equal(t, 0, c.GetStats().ActiveRequests)
}

func TestController_BlocksAtLimit(t *testing.T) {
	c := NewController(testConfig(), clock.NewFake(time.Now()), nil)
	defer c.Close()

	p1, _ := c.Acquire(context.Background(), "b1")
	p2, _ := c.Acquire(context.Background(), "b1")

	acquired := make(chan struct{})
	go func() {
		p3, err := c.Acquire(context.Background(), "b1")
		if err == nil {
			p3.Release()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("third acquire should block at limit 2")
	case <-time.After(50 * time.Millisecond):
	}

	p1.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("third acquire should proceed after release")
	}
	p2.Release()
}

func TestController_AcquireRespectsContext(t *testing.T) {
	c := NewController(testConfig(), clock.NewFake(time.Now()), nil)
	defer c.Close()

	p1, _ := c.Acquire(context.Background(), "b1")
	p2, _ := c.Acquire(context.Background(), "b1")
	defer p1.Release()
	defer p2.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Acquire(ctx, "b1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestController_GrowsOnFastSuccess(t *testing.T) {
	clk := clock.NewFake(time.Now())
	cfg := testConfig()
	c := NewController(cfg, clk, nil)
	defer c.Close()

	// Feed enough fast, successful samples
	for i := 0; i < 20; i++ {
		c.RecordOutcome(200*time.Millisecond, true)
	}

	clk.Advance(cfg.AdjustmentInterval)
	require.Eventually(t, func() bool {
		return c.GetStats().CurrentPermits == 3
	}, time.Second, 10*time.Millisecond)

	// Repeated adjustments never exceed the maximum
	for i := 0; i < 20; i++ {
		clk.Advance(cfg.AdjustmentInterval)
		time.Sleep(5 * time.Millisecond)
	}
	assert.LessOrEqual(t, c.GetStats().CurrentPermits, cfg.MaxLimit)
}

func TestController_ShrinksOnSlowOrFailing(t *testing.T) {
	clk := clock.NewFake(time.Now())
	cfg := testConfig()
	c := NewController(cfg, clk, nil)
	defer c.Close()

	for i := 0; i < 20; i++ {
		c.RecordOutcome(15*time.Second, true)
	}

	clk.Advance(cfg.AdjustmentInterval)
	require.Eventually(t, func() bool {
		return c.GetStats().CurrentPermits == 1
	}, time.Second, 10*time.Millisecond)

	// Never shrinks below 1
	clk.Advance(cfg.AdjustmentInterval)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, c.GetStats().CurrentPermits)
}

func TestController_NoAdjustmentWithFewSamples(t *testing.T) {
	clk := clock.NewFake(time.Now())
	cfg := testConfig()
	c := NewController(cfg, clk, nil)
	defer c.Close()

	for i := 0; i < cfg.MinSamples-1; i++ {
		c.RecordOutcome(100*time.Millisecond, true)
	}

	clk.Advance(cfg.AdjustmentInterval)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, cfg.DefaultLimit, c.GetStats().CurrentPermits)
}

func TestController_WindowIsBounded(t *testing.T) {
	cfg := testConfig()
	c := NewController(cfg, clock.NewFake(time.Now()), nil)
	defer c.Close()

	for i := 0; i < cfg.WindowSize+50; i++ {
		c.RecordOutcome(time.Millisecond, true)
	}
	assert.Equal(t, cfg.WindowSize, c.GetStats().SampleCount)
}

func TestController_InFlightNeverExceedsCurrent(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultLimit = 3
	c := NewController(cfg, clock.NewFake(time.Now()), nil)
	defer c.Close()

	var inFlight, maxSeen int64
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := c.Acquire(context.Background(), "b1")
			if err != nil {
				return
			}
			n := atomic.AddInt64(&inFlight, 1)
			for {
				seen := atomic.LoadInt64(&maxSeen)
				if n <= seen || atomic.CompareAndSwapInt64(&maxSeen, seen, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
			p.Release()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxSeen, int64(3))
}
