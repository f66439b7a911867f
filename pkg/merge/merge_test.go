package merge

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/summaryhub/pkg/batch"
	"github.com/kart-io/summaryhub/pkg/errors"
	"github.com/kart-io/summaryhub/pkg/summarizer"
)

func completedTasks(indices ...int) []batch.SegmentStatus {
	out := make([]batch.SegmentStatus, len(indices))
	for i, idx := range indices {
		out[i] = batch.SegmentStatus{
			Index:   idx,
			Status:  batch.TaskCompleted,
			Summary: "summary " + string(rune('a'+idx)),
		}
	}
	return out
}

func TestConcatenate_OrdersByIndex(t *testing.T) {
	out, err := Concatenate(completedTasks(2, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, "summary a\n\nsummary b\n\nsummary c", out)
}

func TestConcatenate_InsertsGapMarkers(t *testing.T) {
	out, err := Concatenate(completedTasks(0, 3))
	require.NoError(t, err)
	assert.Contains(t, out, GapMarker)
	assert.True(t, strings.Index(out, "summary a") < strings.Index(out, GapMarker))
	assert.True(t, strings.Index(out, GapMarker) < strings.Index(out, "summary d"))
}

func TestConcatenate_EmptyInputRejected(t *testing.T) {
	_, err := Concatenate(nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrEmptySegments, errors.GetErrorCode(err))
}

func TestConcatMerger_Quality(t *testing.T) {
	m := NewConcatMerger()

	result, err := m.Merge(context.Background(), completedTasks(0, 1, 2), StrategyConcatenate, Preferences{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Quality)

	result, err = m.Merge(context.Background(), completedTasks(0, 2, 4), StrategyConcatenate, Preferences{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Quality)
}

func TestLLMMerger_RewritesWithStrategy(t *testing.T) {
	var gotPrompt string
	client := summarizer.Func(func(ctx context.Context, text string) (string, error) {
		gotPrompt = text
		return "merged summary", nil
	})

	m := NewLLMMerger(client, nil)
	result, err := m.Merge(context.Background(), completedTasks(0, 1), StrategyBalanced, Preferences{TargetLength: 300})
	require.NoError(t, err)

	assert.Equal(t, "merged summary", result.Summary)
	assert.Contains(t, gotPrompt, "summary a")
	assert.Contains(t, gotPrompt, "roughly 300 characters")
	assert.GreaterOrEqual(t, result.Quality, 0.5)
}

func TestLLMMerger_ConcatenateSkipsLLM(t *testing.T) {
	calls := 0
	client := summarizer.Func(func(ctx context.Context, text string) (string, error) {
		calls++
		return "", nil
	})

	m := NewLLMMerger(client, nil)
	result, err := m.Merge(context.Background(), completedTasks(0, 1), StrategyConcatenate, Preferences{})
	require.NoError(t, err)

	assert.Zero(t, calls)
	assert.Equal(t, "summary a\n\nsummary b", result.Summary)
}

func TestLLMMerger_CallFailureWrapped(t *testing.T) {
	client := summarizer.Func(func(ctx context.Context, text string) (string, error) {
		return "", errors.New(errors.ErrServiceUnavailable, "down")
	})

	m := NewLLMMerger(client, nil)
	_, err := m.Merge(context.Background(), completedTasks(0, 1), StrategyBalanced, Preferences{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrMergeFailed, errors.GetErrorCode(err))
}

func TestLLMMerger_PreviewNeverCallsLLM(t *testing.T) {
	calls := 0
	client := summarizer.Func(func(ctx context.Context, text string) (string, error) {
		calls++
		return "", nil
	})

	m := NewLLMMerger(client, nil)
	preview, err := m.Preview(context.Background(), completedTasks(0, 1, 3), StrategyBalanced, Preferences{})
	require.NoError(t, err)

	assert.Zero(t, calls)
	assert.Contains(t, preview.Summary, GapMarker)
	assert.Greater(t, preview.EstimatedQuality, 0.0)
	assert.Greater(t, preview.EstimatedDuration.Milliseconds(), int64(0))
}

func TestContinuity(t *testing.T) {
	assert.Equal(t, 1.0, continuity(completedTasks(0)))
	assert.Equal(t, 1.0, continuity(completedTasks(0, 1, 2)))
	assert.Equal(t, 0.5, continuity(completedTasks(0, 1, 3)))
}
