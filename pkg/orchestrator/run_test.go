package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/summaryhub/pkg/batch"
	"github.com/kart-io/summaryhub/pkg/cancel"
	"github.com/kart-io/summaryhub/pkg/config"
)

func newRunWithToken(t *testing.T) *batchRun {
	t.Helper()
	cancels := cancel.NewService(config.CancellationConfig{}, nil, nil, nil, nil)
	token := cancels.Register("b1", context.Background())
	token.SetCheckpoint(true)

	b := &batch.Batch{ID: "b1", ConcurrencyLimit: 4}
	return newBatchRun(b, nil, token)
}

func TestMarkCall_ChecksCheckpointBoundaries(t *testing.T) {
	run := newRunWithToken(t)
	require.True(t, run.token.AtCheckpoint())

	run.markCall(true)
	assert.False(t, run.token.AtCheckpoint(), "a call is in flight")

	run.markCall(true)
	run.markCall(false)
	assert.False(t, run.token.AtCheckpoint(), "one call still in flight")

	run.markCall(false)
	assert.True(t, run.token.AtCheckpoint(), "all calls finished")
}

// The checkpoint flag must always agree with the in-flight count: a
// cancellation poller observing a safe point while a worker is still
// entering a call would tear down mid-request.
func TestMarkCall_CheckpointConsistentUnderConcurrency(t *testing.T) {
	run := newRunWithToken(t)

	const workers = 8
	const iterations = 500

	stop := make(chan struct{})
	var violations atomic.Int64
	var sampler sync.WaitGroup
	sampler.Add(1)
	go func() {
		defer sampler.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			run.callMutex.Lock()
			inFlight := run.inCalls
			safe := run.token.AtCheckpoint()
			run.callMutex.Unlock()
			if safe != (inFlight == 0) {
				violations.Add(1)
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				run.markCall(true)
				run.markCall(false)
			}
		}()
	}
	wg.Wait()
	close(stop)
	sampler.Wait()

	assert.Zero(t, violations.Load(), "checkpoint flag disagreed with the in-flight count")
	assert.True(t, run.token.AtCheckpoint(), "idle run ends at a safe point")
}
