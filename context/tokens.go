package context

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/patterncore/pattern/entity"
)

// charsPerToken is the rough character-to-token multiplier used when no
// tiktoken encoding can be resolved for Model.
const charsPerToken = 4

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	encodingMu    sync.RWMutex
)

// TokenEstimator counts (or estimates) tokens for a model, preferring an
// actual tiktoken-go encoding. A model with no known encoding uses the
// cl100k_base encoding; only when that encoding cannot be loaded either
// does it fall back to the character multiplier.
type TokenEstimator struct {
	encoding *tiktoken.Tiktoken
	model    string
}

// NewTokenEstimator resolves model's encoding, caching it process-wide.
func NewTokenEstimator(model string) *TokenEstimator {
	if model == "" {
		model = "gpt-4o"
	}

	encodingMu.RLock()
	cached, ok := encodingCache[model]
	encodingMu.RUnlock()
	if ok {
		return &TokenEstimator{encoding: cached, model: model}
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return &TokenEstimator{model: model}
		}
	}

	encodingMu.Lock()
	encodingCache[model] = enc
	encodingMu.Unlock()

	return &TokenEstimator{encoding: enc, model: model}
}

// Count returns the token count for text, falling back to len(text)/4 when
// no encoding was resolved.
func (e *TokenEstimator) Count(text string) int {
	if e.encoding == nil {
		return len(text) / charsPerToken
	}
	return len(e.encoding.Encode(text, nil, nil))
}

// CountMessages sums per-message token counts plus the fixed per-message
// role/framing overhead, following the usual OpenAI-chat-format accounting.
func (e *TokenEstimator) CountMessages(messages []entity.Message) int {
	const perMessageOverhead = 3
	total := 0
	for _, m := range messages {
		total += perMessageOverhead
		total += e.Count(string(m.Role))
		total += e.Count(m.Content.Text)
	}
	return total + perMessageOverhead
}
