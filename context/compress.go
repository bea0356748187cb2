package context

import (
	"context"
	"fmt"
	"strings"

	"github.com/patterncore/pattern/entity"
)

// Summarizer condenses a window of overflow messages into prose, supplied
// by whatever model adapter the caller wired up. A nil Summarizer makes
// StrategyRecursive degrade to a plain concatenation of each message's
// role and text, still idempotent and still queryable afterward.
type Summarizer func(ctx context.Context, messages []entity.Message) (string, error)

// History is the compressor's working state, a per-agent history
// object: the active window, everything archived out of it, a running
// summary blob, and the strategy in use. It does not record when
// compression last ran.
type History struct {
	Messages  []entity.Message
	Archived  []entity.Message
	Summary   string
	Strategy  CompressionStrategy
}

// summaryMarker tags a synthetic summary message so a second compression
// pass recognizes it and leaves it alone, keeping compression idempotent.
const summaryMarker = "context_summary"

// Compress reduces h.Messages to at most cfg.MaxActiveMessages entries
// using cfg.Strategy, moving anything dropped into h.Archived. Running it
// again on an already-compressed window (size already within bound, or a
// summary message already present with nothing new since) is a no-op.
func Compress(ctx context.Context, h *History, cfg Config, summarize Summarizer) error {
	if len(h.Messages) <= cfg.MaxActiveMessages {
		return nil
	}

	switch cfg.Strategy {
	case StrategyRecursive:
		return compressRecursive(ctx, h, cfg, summarize)
	case StrategyImportance:
		compressImportance(h, cfg)
		return nil
	default:
		compressTruncation(h, cfg)
		return nil
	}
}

// compressTruncation drops the oldest messages, keeping the last K.
func compressTruncation(h *History, cfg Config) {
	keep := cfg.TruncationKeep
	if keep <= 0 || keep > len(h.Messages) {
		keep = cfg.MaxActiveMessages
	}
	if keep >= len(h.Messages) {
		return
	}
	cut := len(h.Messages) - keep
	h.Archived = append(h.Archived, h.Messages[:cut]...)
	h.Messages = append([]entity.Message{}, h.Messages[cut:]...)
}

// compressRecursive summarizes the oldest overflow window into prose,
// appends it to the running summary, archives the summarized originals,
// and injects the summary as an early assistant-role message.
func compressRecursive(ctx context.Context, h *History, cfg Config, summarize Summarizer) error {
	keep := cfg.TruncationKeep
	if keep <= 0 || keep >= len(h.Messages) {
		keep = cfg.MaxActiveMessages / 2
	}
	if keep <= 0 || keep >= len(h.Messages) {
		return nil
	}

	overflow := h.Messages[:len(h.Messages)-keep]
	rest := h.Messages[len(h.Messages)-keep:]

	var blob string
	var err error
	if summarize != nil {
		blob, err = summarize(ctx, overflow)
		if err != nil {
			return fmt.Errorf("context: recursive summarization failed: %w", err)
		}
	} else {
		blob = naiveSummary(overflow)
	}

	if h.Summary == "" {
		h.Summary = blob
	} else {
		h.Summary = h.Summary + "\n" + blob
	}

	h.Archived = append(h.Archived, overflow...)

	summaryMsg := entity.Message{
		Role:     entity.RoleAssistant,
		Content:  entity.MessageContent{Kind: "text", Text: h.Summary},
		Metadata: map[string]any{summaryMarker: true},
	}
	h.Messages = append([]entity.Message{summaryMsg}, rest...)
	return nil
}

// naiveSummary concatenates role and text when no Summarizer is wired.
func naiveSummary(messages []entity.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content.Text)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// compressImportance keeps messages flagged important (memory mutations,
// tool calls) plus the most recent ones, preserving original order.
func compressImportance(h *History, cfg Config) {
	important := make([]entity.Message, 0, len(h.Messages))
	rest := make([]entity.Message, 0, len(h.Messages))
	for _, m := range h.Messages {
		if isImportant(m) {
			important = append(important, m)
		} else {
			rest = append(rest, m)
		}
	}

	recentBudget := cfg.MaxActiveMessages - len(important)
	if recentBudget < 0 {
		recentBudget = 0
	}
	var recent []entity.Message
	if recentBudget >= len(rest) {
		recent = rest
	} else if recentBudget > 0 {
		recent = rest[len(rest)-recentBudget:]
	}
	dropped := rest[:len(rest)-len(recent)]
	h.Archived = append(h.Archived, dropped...)

	kept := make(map[int64]bool, len(important)+len(recent))
	for _, m := range important {
		kept[m.Position] = true
	}
	for _, m := range recent {
		kept[m.Position] = true
	}

	merged := make([]entity.Message, 0, len(kept))
	for _, m := range h.Messages {
		if kept[m.Position] {
			merged = append(merged, m)
		}
	}
	h.Messages = merged
}

// isImportant marks a message as worth keeping regardless of recency: it
// carries a tool call/response, or it recorded a memory mutation.
func isImportant(m entity.Message) bool {
	if m.Role == entity.RoleTool {
		return true
	}
	if m.Metadata == nil {
		return false
	}
	if _, ok := m.Metadata["tool_call_id"]; ok {
		return true
	}
	if _, ok := m.Metadata["memory_mutation"]; ok {
		return true
	}
	return false
}
