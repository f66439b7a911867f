package cancel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/summaryhub/pkg/batch"
	"github.com/kart-io/summaryhub/pkg/config"
	"github.com/kart-io/summaryhub/pkg/errors"
)

func testCancelConfig() config.CancellationConfig {
	return config.CancellationConfig{
		GracefulTimeout: 200 * time.Millisecond,
		CheckpointPoll:  10 * time.Millisecond,
	}
}

func newTestService(saver PartialSaver) *Service {
	return NewService(testCancelConfig(), saver, nil, nil, nil)
}

func userCancel(batchID string, save, force bool) batch.CancellationRequest {
	return batch.CancellationRequest{
		BatchID:     batchID,
		Owner:       "alice",
		Reason:      batch.CancelUserInitiated,
		SavePartial: save,
		Force:       force,
		SubmittedAt: time.Now(),
	}
}

func TestRequest_UnknownBatch(t *testing.T) {
	s := newTestService(nil)

	_, err := s.Request(context.Background(), userCancel("nope", false, false))
	require.Error(t, err)
	assert.Equal(t, errors.ErrBatchNotFound, errors.GetErrorCode(err))
}

func TestRequest_GracefulWaitsForCheckpoint(t *testing.T) {
	s := newTestService(nil)
	s.Register("b1", context.Background())

	// Checkpoint arrives shortly after the request starts polling
	go func() {
		time.Sleep(30 * time.Millisecond)
		s.SetCheckpoint("b1", true)
	}()

	result, err := s.Request(context.Background(), userCancel("b1", false, false))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.False(t, result.Forced)
	assert.GreaterOrEqual(t, result.GracefulDurationMs, int64(10))
	assert.True(t, s.IsRequested("b1"))
}

func TestRequest_GracefulTimesOutAndStillSucceeds(t *testing.T) {
	s := newTestService(nil)
	s.Register("b1", context.Background())

	start := time.Now()
	result, err := s.Request(context.Background(), userCancel("b1", false, false))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestRequest_GracefulSavesPartial(t *testing.T) {
	var savedBatch, savedOwner string
	saver := func(ctx context.Context, batchID, owner string) (string, error) {
		savedBatch, savedOwner = batchID, owner
		return "partial_123", nil
	}
	s := newTestService(saver)
	token := s.Register("b1", context.Background())
	token.SetCheckpoint(true)

	result, err := s.Request(context.Background(), userCancel("b1", true, false))
	require.NoError(t, err)

	assert.True(t, result.PartialSaved)
	assert.Equal(t, "partial_123", result.PartialResultID)
	assert.Equal(t, "b1", savedBatch)
	assert.Equal(t, "alice", savedOwner)
}

func TestRequest_SaverFailureReported(t *testing.T) {
	saver := func(ctx context.Context, batchID, owner string) (string, error) {
		return "", errors.New(errors.ErrStorageFailed, "db down")
	}
	s := newTestService(saver)
	token := s.Register("b1", context.Background())
	token.SetCheckpoint(true)

	result, err := s.Request(context.Background(), userCancel("b1", true, false))
	require.NoError(t, err)

	assert.True(t, result.Success, "cancellation itself still succeeds")
	assert.False(t, result.PartialSaved)
	assert.NotEmpty(t, result.Message)
}

func TestRequest_ForceCancelsContextImmediately(t *testing.T) {
	s := newTestService(nil)
	token := s.Register("b1", context.Background())

	result, err := s.Request(context.Background(), userCancel("b1", true, true))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.Forced)
	assert.False(t, result.PartialSaved, "force never saves a partial result")
	assert.True(t, token.ForceTerminate())

	select {
	case <-token.Context().Done():
	default:
		t.Fatal("force cancel must cancel the token context")
	}
}

func TestRequest_Idempotent(t *testing.T) {
	s := newTestService(nil)
	token := s.Register("b1", context.Background())
	token.SetCheckpoint(true)

	first, err := s.Request(context.Background(), userCancel("b1", false, false))
	require.NoError(t, err)

	second, err := s.Request(context.Background(), userCancel("b1", false, true))
	require.NoError(t, err)

	assert.Equal(t, first, second, "second request returns the recorded result unchanged")
	assert.False(t, token.ForceTerminate(), "second request has no side effects")
}

func TestGracefulDoesNotCancelContext(t *testing.T) {
	s := newTestService(nil)
	token := s.Register("b1", context.Background())
	token.SetCheckpoint(true)

	_, err := s.Request(context.Background(), userCancel("b1", false, false))
	require.NoError(t, err)

	select {
	case <-token.Context().Done():
		t.Fatal("graceful cancel must leave the in-flight context alive")
	default:
	}
}

func TestRegister_Idempotent(t *testing.T) {
	s := newTestService(nil)
	t1 := s.Register("b1", context.Background())
	t2 := s.Register("b1", context.Background())
	assert.Same(t, t1, t2)
}

func TestUnregister_ReleasesToken(t *testing.T) {
	s := newTestService(nil)
	token := s.Register("b1", context.Background())
	s.Unregister("b1")

	assert.Nil(t, s.Token("b1"))
	select {
	case <-token.Context().Done():
	default:
		t.Fatal("unregister must release the token context")
	}
}

func TestRegistered(t *testing.T) {
	s := newTestService(nil)
	s.Register("b1", context.Background())
	s.Register("b2", context.Background())

	assert.ElementsMatch(t, []string{"b1", "b2"}, s.Registered())
}
