package segmenter

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/summaryhub/pkg/batch"
	"github.com/kart-io/summaryhub/pkg/config"
	"github.com/kart-io/summaryhub/pkg/summarizer"
)

func defaultSegmenter(client summarizer.Client) *Segmenter {
	cfg := config.Default().Segmentation
	return New(cfg, client, nil)
}

func TestNeedsSegmentation(t *testing.T) {
	s := defaultSegmenter(nil)
	assert.False(t, s.NeedsSegmentation(strings.Repeat("a", 2000)))
	assert.True(t, s.NeedsSegmentation(strings.Repeat("a", 2001)))
}

func TestNormalize(t *testing.T) {
	in := "one\r\ntwo\rthree\n\n\n\nfour"
	assert.Equal(t, "one\ntwo\nthree\n\nfour", Normalize(in))
}

func TestSegment_EmptyText(t *testing.T) {
	s := defaultSegmenter(nil)
	_, err := s.Segment(context.Background(), Request{Text: "   "})
	assert.Error(t, err)
}

func TestSegment_ShortParagraphs(t *testing.T) {
	s := defaultSegmenter(nil)
	text := "First paragraph here.\n\nSecond paragraph here.\n\nThird one."

	result, err := s.Segment(context.Background(), Request{
		Text:               text,
		MaxSegmentLength:   100,
		PreserveParagraphs: true,
	})
	require.NoError(t, err)
	require.Len(t, result.Segments, 3)
	assert.Equal(t, "punctuation", result.Method)
	assert.Equal(t, "First paragraph here.", result.Segments[0].Content)
	assert.Equal(t, TypeParagraph, result.Segments[0].Type)

	// Indexes reflect source order
	for i, seg := range result.Segments {
		assert.Equal(t, i, seg.Index)
	}
}

func TestSegment_SentencePacking(t *testing.T) {
	s := defaultSegmenter(nil)
	// Four sentences of ~30 chars; cap of 70 packs two per segment
	text := strings.TrimSpace(strings.Repeat("This sentence has some words. ", 4))

	result, err := s.Segment(context.Background(), Request{
		Text:             text,
		MaxSegmentLength: 70,
	})
	require.NoError(t, err)
	require.Len(t, result.Segments, 2)
	for _, seg := range result.Segments {
		assert.LessOrEqual(t, seg.CharCount, 70)
		assert.Equal(t, TypeSentenceGroup, seg.Type)
	}
}

func TestSegment_OrderPreserving(t *testing.T) {
	s := defaultSegmenter(nil)
	text := "Alpha comes first. Beta is second. Gamma follows. Delta ends it."

	result, err := s.Segment(context.Background(), Request{
		Text:             text,
		MaxSegmentLength: 40,
	})
	require.NoError(t, err)

	var joined strings.Builder
	for _, seg := range result.Segments {
		joined.WriteString(seg.Content)
	}
	// Concatenation reproduces the normalized input modulo whitespace
	normalizeWS := func(s string) string { return strings.Join(strings.Fields(s), " ") }
	assert.Equal(t, normalizeWS(Normalize(text)), normalizeWS(joined.String()))
}

func TestSegment_ForcedSplitForOversizedSentence(t *testing.T) {
	s := defaultSegmenter(nil)
	text := strings.Repeat("x", 1200) // no terminators at all

	result, err := s.Segment(context.Background(), Request{
		Text:             text,
		MaxSegmentLength: 500,
	})
	require.NoError(t, err)
	require.Len(t, result.Segments, 3)
	assert.Equal(t, TypeForced, result.Segments[0].Type)
	assert.Equal(t, 500, result.Segments[0].CharCount)
	assert.Equal(t, 200, result.Segments[2].CharCount)

	// Mid-sentence cuts score low on semantic integrity
	assert.Less(t, result.Quality.SemanticIntegrity, 50.0)
	assert.False(t, result.Quality.Acceptable)
}

func TestSegment_MaxLengthEqualToText_YieldsOneSegment(t *testing.T) {
	s := defaultSegmenter(nil)
	text := "A single segment without any split."

	result, err := s.Segment(context.Background(), Request{
		Text:             text,
		MaxSegmentLength: len(text),
	})
	require.NoError(t, err)
	assert.Len(t, result.Segments, 1)
	assert.Equal(t, text, result.Segments[0].Content)
}

func TestSegment_GeneratesTitles(t *testing.T) {
	s := defaultSegmenter(nil)
	result, err := s.Segment(context.Background(), Request{
		Text:             "A short opening sentence. More text follows in the same block.",
		MaxSegmentLength: 200,
		GenerateTitles:   true,
	})
	require.NoError(t, err)
	require.Len(t, result.Segments, 1)
	assert.NotEmpty(t, result.Segments[0].Title)
}

func TestScore_LengthBalance(t *testing.T) {
	even := []batch.Segment{{CharCount: 100}, {CharCount: 100}, {CharCount: 100}}
	assert.Equal(t, 100.0, lengthBalance(even))

	skewed := []batch.Segment{{CharCount: 10}, {CharCount: 500}}
	assert.Equal(t, 50.0, lengthBalance(skewed))
}

func TestScore_ParagraphIntegrity(t *testing.T) {
	assert.Equal(t, 100.0, paragraphIntegrity(3, 3))
	assert.Equal(t, 100.0, paragraphIntegrity(9, 3))
	assert.Less(t, paragraphIntegrity(20, 3), 100.0)
	assert.GreaterOrEqual(t, paragraphIntegrity(100, 3), 50.0)
}

func TestSegment_LLMFallbackAdoptedWhenBetter(t *testing.T) {
	// 3000 chars of non-terminated text forces low-quality punctuation output
	text := strings.Repeat("y", 3000)

	chunk := strings.Repeat("y", 1000) + "."
	llm := summarizer.Func(func(ctx context.Context, prompt string) (string, error) {
		assert.Contains(t, prompt, SegmentDelimiter)
		return chunk + SegmentDelimiter + chunk + SegmentDelimiter + chunk, nil
	})

	cfg := config.Default().Segmentation
	cfg.LLMSegmentationEnabled = true
	s := New(cfg, llm, nil)

	result, err := s.Segment(context.Background(), Request{
		Text:             text,
		MaxSegmentLength: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, "llm", result.Method)
	assert.Len(t, result.Segments, 3)
	assert.Equal(t, TypeLLM, result.Segments[0].Type)
}

func TestSegment_LLMFallbackKeepsPunctuationOnFailure(t *testing.T) {
	text := strings.Repeat("z", 3000)

	llm := summarizer.Func(func(ctx context.Context, prompt string) (string, error) {
		return "", assert.AnError
	})

	cfg := config.Default().Segmentation
	cfg.LLMSegmentationEnabled = true
	s := New(cfg, llm, nil)

	result, err := s.Segment(context.Background(), Request{
		Text:             text,
		MaxSegmentLength: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, "punctuation", result.Method)
}
