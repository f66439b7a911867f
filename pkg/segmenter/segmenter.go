// Package segmenter splits input text into ordered segments by
// punctuation and paragraph boundaries, scores segmentation quality,
// and optionally re-segments through the LLM when quality is low.
package segmenter

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/summaryhub/pkg/batch"
	"github.com/kart-io/summaryhub/pkg/config"
	"github.com/kart-io/summaryhub/pkg/errors"
	"github.com/kart-io/summaryhub/pkg/logger"
	"github.com/kart-io/summaryhub/pkg/summarizer"
)

// Segment type tags
const (
	TypeParagraph     = "paragraph"
	TypeSentenceGroup = "sentence_group"
	TypeForced        = "forced"
	TypeLLM           = "llm"
)

// Request describes one segmentation invocation. Zero fields fall back
// to the configured defaults.
type Request struct {
	Text               string
	MaxSegmentLength   int
	PreserveParagraphs bool
	GenerateTitles     bool
}

// Result carries the ordered segments plus the quality score of the
// chosen segmentation
type Result struct {
	Segments []batch.Segment `json:"segments"`
	Quality  QualityScore    `json:"quality"`
	Method   string          `json:"method"` // "punctuation" or "llm"
}

// Segmenter splits text into segments
type Segmenter struct {
	config config.SegmentationConfig
	client summarizer.Client
	logger logger.Logger
}

// New creates a segmenter. The client may be nil; the LLM fallback is
// then skipped regardless of configuration.
func New(cfg config.SegmentationConfig, client summarizer.Client, log logger.Logger) *Segmenter {
	if log == nil {
		log = logger.Discard
	}
	return &Segmenter{
		config: cfg,
		client: client,
		logger: log,
	}
}

// NeedsSegmentation returns true iff the text length exceeds the
// configured trigger
func (s *Segmenter) NeedsSegmentation(text string) bool {
	return utf8.RuneCountInString(text) > s.config.TriggerLength
}

var excessNewlines = regexp.MustCompile(`\n{3,}`)

// Normalize canonicalizes line endings and collapses runs of three or
// more newlines into a blank-line separator
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return excessNewlines.ReplaceAllString(text, "\n\n")
}

// Segment splits the request text into ordered segments and scores the
// result. When the punctuation result scores below the acceptance
// threshold and the LLM fallback is enabled, the higher-scoring of the
// two segmentations is returned.
func (s *Segmenter) Segment(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New(errors.ErrEmptyText, "text cannot be empty")
	}

	maxLen := req.MaxSegmentLength
	if maxLen <= 0 {
		maxLen = s.config.MaxSegmentLength
	}

	normalized := Normalize(req.Text)
	paragraphs := s.splitParagraphs(normalized, req.PreserveParagraphs)

	segments := make([]batch.Segment, 0, len(paragraphs))
	for _, p := range paragraphs {
		segments = append(segments, s.segmentParagraph(p, maxLen, len(segments))...)
	}
	if req.GenerateTitles {
		for i := range segments {
			segments[i].Title = makeTitle(segments[i].Content)
		}
	}

	quality := Score(segments, len(paragraphs))
	result := &Result{Segments: segments, Quality: quality, Method: "punctuation"}

	if !quality.Acceptable && s.config.LLMSegmentationEnabled && s.client != nil {
		llmResult, err := s.segmentWithLLM(ctx, normalized, maxLen, len(paragraphs), req.GenerateTitles)
		if err != nil {
			s.logger.Warn("LLM segmentation fallback failed, keeping punctuation result",
				"error", err)
			return result, nil
		}
		if llmResult.Quality.Overall > quality.Overall {
			s.logger.Info("Adopting LLM segmentation",
				"punctuationScore", quality.Overall,
				"llmScore", llmResult.Quality.Overall)
			return llmResult, nil
		}
	}

	return result, nil
}

// paragraph is an internal slice of normalized text with its offset
type paragraph struct {
	content string
	offset  int
}

// splitParagraphs splits normalized text on blank-line separators when
// paragraph preservation is on, otherwise treats the whole text as one
// paragraph
func (s *Segmenter) splitParagraphs(text string, preserve bool) []paragraph {
	if !preserve {
		return []paragraph{{content: text, offset: 0}}
	}

	paragraphs := make([]paragraph, 0)
	offset := 0
	for _, part := range strings.Split(text, "\n\n") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			start := offset + strings.Index(part, trimmed)
			paragraphs = append(paragraphs, paragraph{content: trimmed, offset: start})
		}
		offset += len(part) + len("\n\n")
	}
	if len(paragraphs) == 0 {
		return []paragraph{{content: strings.TrimSpace(text), offset: 0}}
	}
	return paragraphs
}

// segmentParagraph emits the paragraph as one segment when it fits,
// otherwise packs its sentences greedily under the cap
func (s *Segmenter) segmentParagraph(p paragraph, maxLen, nextIndex int) []batch.Segment {
	if utf8.RuneCountInString(p.content) <= maxLen {
		return []batch.Segment{{
			Index:       nextIndex,
			Content:     p.content,
			CharCount:   utf8.RuneCountInString(p.content),
			StartOffset: p.offset,
			EndOffset:   p.offset + len(p.content),
			Type:        TypeParagraph,
		}}
	}

	sentences := s.splitSentences(p.content)

	segments := make([]batch.Segment, 0)
	var sb strings.Builder
	segStart := p.offset

	flush := func(segType string) {
		if sb.Len() == 0 {
			return
		}
		content := sb.String()
		segments = append(segments, batch.Segment{
			Index:       nextIndex + len(segments),
			Content:     content,
			CharCount:   utf8.RuneCountInString(content),
			StartOffset: segStart,
			EndOffset:   segStart + len(content),
			Type:        segType,
		})
		segStart += len(content)
		sb.Reset()
	}

	for _, sentence := range sentences {
		runes := utf8.RuneCountInString(sentence)
		if runes > maxLen {
			// A single oversized sentence: flush what we have and
			// force-split at fixed width as a last resort
			flush(TypeSentenceGroup)
			for _, chunk := range splitFixedWidth(sentence, maxLen) {
				segments = append(segments, batch.Segment{
					Index:       nextIndex + len(segments),
					Content:     chunk,
					CharCount:   utf8.RuneCountInString(chunk),
					StartOffset: segStart,
					EndOffset:   segStart + len(chunk),
					Type:        TypeForced,
				})
				segStart += len(chunk)
			}
			continue
		}

		if utf8.RuneCountInString(sb.String())+runes > maxLen {
			flush(TypeSentenceGroup)
		}
		sb.WriteString(sentence)
	}
	flush(TypeSentenceGroup)

	return segments
}

// splitSentences cuts text at configured terminators followed by
// whitespace or end of text; the terminator stays with its sentence
func (s *Segmenter) splitSentences(text string) []string {
	markers := make(map[rune]bool, len(s.config.SentenceEndMarkers))
	for _, m := range s.config.SentenceEndMarkers {
		markers[m] = true
	}

	sentences := make([]string, 0)
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !markers[runes[i]] {
			continue
		}
		// Boundary only when followed by whitespace or end
		if i+1 < len(runes) && !isSpace(runes[i+1]) {
			continue
		}
		end := i + 1
		// Keep trailing whitespace with the finished sentence so
		// concatenation reproduces the input
		for end < len(runes) && isSpace(runes[end]) {
			end++
		}
		sentences = append(sentences, string(runes[start:end]))
		start = end
		i = end - 1
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n'
}

// splitFixedWidth cuts text into rune chunks of at most width
func splitFixedWidth(text string, width int) []string {
	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+width-1)/width)
	for start := 0; start < len(runes); start += width {
		end := start + width
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// makeTitle derives a short title from the segment's leading words
func makeTitle(content string) string {
	const maxTitle = 40

	line := strings.TrimSpace(content)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}

	runes := []rune(line)
	if len(runes) <= maxTitle {
		return line
	}
	cut := maxTitle
	for cut > 0 && runes[cut-1] != ' ' {
		cut--
	}
	if cut == 0 {
		cut = maxTitle
	}
	return strings.TrimSpace(string(runes[:cut])) + "…"
}
