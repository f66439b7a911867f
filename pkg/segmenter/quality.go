package segmenter

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/summaryhub/pkg/batch"
)

// AcceptableThreshold is the overall score at or above which a
// segmentation is considered acceptable
const AcceptableThreshold = 70.0

// QualityScore carries the three sub-scores and the overall verdict,
// each on a 0-100 scale
type QualityScore struct {
	SemanticIntegrity  float64 `json:"semantic_integrity"`
	ParagraphIntegrity float64 `json:"paragraph_integrity"`
	LengthBalance      float64 `json:"length_balance"`
	Overall            float64 `json:"overall"`
	Acceptable         bool    `json:"acceptable"`
}

// Score evaluates a segmentation against the source paragraph count
func Score(segments []batch.Segment, paragraphCount int) QualityScore {
	if len(segments) == 0 {
		return QualityScore{}
	}

	score := QualityScore{
		SemanticIntegrity:  semanticIntegrity(segments),
		ParagraphIntegrity: paragraphIntegrity(len(segments), paragraphCount),
		LengthBalance:      lengthBalance(segments),
	}
	score.Overall = (score.SemanticIntegrity + score.ParagraphIntegrity + score.LengthBalance) / 3
	score.Acceptable = score.Overall >= AcceptableThreshold
	return score
}

// sentenceTerminators used when scoring; wider than the configured
// markers so LLM output with unusual punctuation still scores fairly
var sentenceTerminators = []rune{'.', '!', '?', '。', '！', '？', ';', '；', ':', '：', '"', '”', ')', '）'}

// semanticIntegrity is the fraction of segments ending on a sentence
// terminator, scaled to 0-100
func semanticIntegrity(segments []batch.Segment) float64 {
	terminated := 0
	for _, seg := range segments {
		if endsOnTerminator(seg.Content) {
			terminated++
		}
	}
	return float64(terminated) / float64(len(segments)) * 100
}

func endsOnTerminator(content string) bool {
	trimmed := strings.TrimRight(content, " \t\n")
	if trimmed == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	for _, t := range sentenceTerminators {
		if last == t {
			return true
		}
	}
	return false
}

// paragraphIntegrity scores the segment-to-paragraph ratio; a ratio in
// [1,3] is optimal and larger ratios decay linearly to a floor of 50
func paragraphIntegrity(segmentCount, paragraphCount int) float64 {
	if paragraphCount <= 0 {
		return 50
	}
	ratio := float64(segmentCount) / float64(paragraphCount)
	switch {
	case ratio >= 1 && ratio <= 3:
		return 100
	case ratio < 1:
		return 100 * ratio
	default:
		score := 100 - (ratio-3)*(50.0/3.0)
		return math.Max(50, score)
	}
}

// lengthBalance scores the coefficient of variation of segment lengths:
// cv <= 0.2 scores 100, cv >= 0.5 scores 50, linear in between
func lengthBalance(segments []batch.Segment) float64 {
	if len(segments) == 1 {
		return 100
	}

	mean := 0.0
	for _, seg := range segments {
		mean += float64(seg.CharCount)
	}
	mean /= float64(len(segments))
	if mean == 0 {
		return 50
	}

	variance := 0.0
	for _, seg := range segments {
		d := float64(seg.CharCount) - mean
		variance += d * d
	}
	variance /= float64(len(segments))
	cv := math.Sqrt(variance) / mean

	switch {
	case cv <= 0.2:
		return 100
	case cv >= 0.5:
		return 50
	default:
		return 100 - (cv-0.2)/0.3*50
	}
}
