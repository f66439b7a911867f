package segmenter

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/summaryhub/pkg/batch"
	"github.com/kart-io/summaryhub/pkg/errors"
)

// SegmentDelimiter is the sentinel the LLM is instructed to place
// between segments
const SegmentDelimiter = "<<<SEGMENT>>>"

// llmPromptTemplate instructs the model to re-segment text using the
// delimiter sentinel. The output must contain the full input text.
const llmPromptTemplate = `Split the following text into coherent segments of at most %d characters each. ` +
	`Insert the marker %s between segments. Do not rewrite, summarize, or omit any part of the text; ` +
	`output only the original text with markers inserted.

%s`

// segmentWithLLM asks the summarizer client to re-segment the text and
// scores the delimiter-separated result
func (s *Segmenter) segmentWithLLM(ctx context.Context, normalized string, maxLen, paragraphCount int, titles bool) (*Result, error) {
	prompt := fmt.Sprintf(llmPromptTemplate, maxLen, SegmentDelimiter, normalized)

	output, err := s.client.Summarize(ctx, prompt)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrSegmentationFailed, "LLM segmentation call failed")
	}

	parts := strings.Split(output, SegmentDelimiter)
	segments := make([]batch.Segment, 0, len(parts))
	offset := 0
	for _, part := range parts {
		content := strings.TrimSpace(part)
		if content == "" {
			continue
		}
		segments = append(segments, batch.Segment{
			Index:       len(segments),
			Content:     content,
			CharCount:   utf8.RuneCountInString(content),
			StartOffset: offset,
			EndOffset:   offset + len(content),
			Type:        TypeLLM,
		})
		offset += len(content)
	}

	if len(segments) == 0 {
		return nil, errors.New(errors.ErrSegmentationFailed, "LLM produced no segments")
	}
	if titles {
		for i := range segments {
			segments[i].Title = makeTitle(segments[i].Content)
		}
	}

	return &Result{
		Segments: segments,
		Quality:  Score(segments, paragraphCount),
		Method:   "llm",
	}, nil
}
