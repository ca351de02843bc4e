package history

import (
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

// perEntryOverhead accounts for role framing and separators around a message.
const perEntryOverhead = 4

// Estimator converts a conversation entry into an estimated token count.
type Estimator interface {
	Estimate(e Entry) int
}

// HeuristicEstimator approximates tokens without an encoder. CJK scripts
// average roughly one token per two runes, everything else roughly one token
// per four runes.
type HeuristicEstimator struct{}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

// Estimate implements Estimator.
func (HeuristicEstimator) Estimate(e Entry) int {
	cjk, other := 0, 0
	for _, r := range e.Content {
		if isCJK(r) {
			cjk++
		} else {
			other++
		}
	}
	return (cjk+1)/2 + (other+3)/4 + perEntryOverhead
}

// TiktokenEstimator counts tokens with the model's actual encoding. When the
// model is unknown it falls back to cl100k_base, and when no encoding can be
// loaded at all it degrades to the heuristic.
type TiktokenEstimator struct {
	encoder  *tiktoken.Tiktoken
	fallback HeuristicEstimator
}

// NewTiktokenEstimator builds an estimator for the given model ID.
func NewTiktokenEstimator(modelID string) *TiktokenEstimator {
	encoder, err := tiktoken.EncodingForModel(modelID)
	if err != nil {
		encoder, _ = tiktoken.GetEncoding("cl100k_base")
	}
	return &TiktokenEstimator{encoder: encoder}
}

// Estimate implements Estimator.
func (t *TiktokenEstimator) Estimate(e Entry) int {
	if t.encoder == nil {
		return t.fallback.Estimate(e)
	}
	tokens := perEntryOverhead
	if e.Content != "" {
		tokens += len(t.encoder.Encode(e.Content, nil, nil))
	}
	if e.ToolCallID != "" {
		tokens += len(t.encoder.Encode(e.ToolCallID, nil, nil))
	}
	return tokens
}
