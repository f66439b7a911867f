package merge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/summaryhub/pkg/batch"
	"github.com/kart-io/summaryhub/pkg/errors"
	"github.com/kart-io/summaryhub/pkg/logger"
	"github.com/kart-io/summaryhub/pkg/summarizer"
)

// strategyInstructions maps each LLM strategy to its rewrite instruction
var strategyInstructions = map[Strategy]string{
	StrategyBalanced: "Rewrite them into one coherent summary that balances brevity with coverage of every section.",
	StrategyDetailed: "Rewrite them into one coherent summary preserving as much detail from every section as possible.",
	StrategyConcise:  "Rewrite them into the shortest coherent summary that still covers every section.",
}

const mergePromptTemplate = `The following are ordered partial summaries of one document. %s ` +
	`Keep the original order of topics. Output only the merged summary.

%s`

// LLMMerger asks the summarizer endpoint to rewrite the joined segment
// summaries into one coherent text. Concatenation is used directly for
// StrategyConcatenate and as the preview path, which never calls the LLM.
type LLMMerger struct {
	client summarizer.Client
	logger logger.Logger
}

// NewLLMMerger creates a merger backed by the given LLM client
func NewLLMMerger(client summarizer.Client, log logger.Logger) *LLMMerger {
	if log == nil {
		log = logger.Discard
	}
	return &LLMMerger{client: client, logger: log}
}

// Merge joins the summaries and, for LLM strategies, rewrites the result
func (m *LLMMerger) Merge(ctx context.Context, completed []batch.SegmentStatus, strategy Strategy, prefs Preferences) (Result, error) {
	start := time.Now()

	joined, err := Concatenate(completed)
	if err != nil {
		return Result{}, err
	}

	instruction, ok := strategyInstructions[strategy]
	if !ok {
		// Unknown strategies and explicit concatenation skip the rewrite
		return Result{
			Summary:        joined,
			Quality:        continuity(completed),
			ProcessingTime: time.Since(start),
		}, nil
	}
	if prefs.TargetLength > 0 {
		instruction += fmt.Sprintf(" Aim for roughly %d characters.", prefs.TargetLength)
	}
	if prefs.Language != "" {
		instruction += fmt.Sprintf(" Write the summary in %s.", prefs.Language)
	}

	prompt := fmt.Sprintf(mergePromptTemplate, instruction, joined)
	merged, err := m.client.Summarize(ctx, prompt)
	if err != nil {
		return Result{}, errors.Wrap(err, errors.ErrMergeFailed, "LLM merge call failed")
	}
	merged = strings.TrimSpace(merged)
	if merged == "" {
		return Result{}, errors.New(errors.ErrMergeFailed, "LLM merge returned empty summary")
	}

	m.logger.Debug("LLM merge completed",
		"strategy", strategy,
		"segments", len(completed),
		"duration", time.Since(start))

	return Result{
		Summary: merged,
		// Rewriting smooths over index gaps, so quality floors at the
		// structural continuity score
		Quality:        0.5 + continuity(completed)/2,
		ProcessingTime: time.Since(start),
	}, nil
}

// Preview estimates a merge without spending an LLM call: the summary is
// the plain concatenation and duration scales with segment count
func (m *LLMMerger) Preview(ctx context.Context, completed []batch.SegmentStatus, strategy Strategy, prefs Preferences) (PreviewResult, error) {
	joined, err := Concatenate(completed)
	if err != nil {
		return PreviewResult{}, err
	}

	quality := continuity(completed)
	if _, llm := strategyInstructions[strategy]; llm {
		quality = 0.5 + quality/2
	}

	return PreviewResult{
		Summary:           joined,
		EstimatedQuality:  quality,
		EstimatedDuration: time.Duration(len(completed)) * 500 * time.Millisecond,
	}, nil
}

var _ Merger = (*LLMMerger)(nil)
