package context

import (
	"context"
	"time"

	"github.com/patterncore/pattern/entity"
)

// Build assembles an AgentContext: a system prompt from base
// instructions, memory metadata, memory blocks, and tool usage rules,
// plus a compressed message window bounded by cfg.MaxContextTokens.
func Build(ctx context.Context, cfg Config, blocks []entity.MemoryBlock, tools []ToolInfo, h *History, now time.Time, lastMemoryModified time.Time, recallCount int, summarize Summarizer) (AgentContext, error) {
	cfg.SetDefaults()
	h.Strategy = cfg.Strategy

	original := len(h.Messages)
	if err := Compress(ctx, h, cfg, summarize); err != nil {
		return AgentContext{}, err
	}

	meta := Metadata{
		CurrentTime:          now,
		LastMemoryModified:   lastMemoryModified,
		RecallMessageCount:   recallCount,
		OriginalMessageCount: original,
		FinalMessageCount:    len(h.Messages),
	}
	if original != len(h.Messages) {
		meta.CompressionEvents = 1
	}

	sections := []section{
		{tag: "instructions", body: cfg.BaseInstructions},
		{tag: "memory_metadata", body: renderMemoryMetadata(cfg.UseXMLTags, meta)},
		{tag: "memory_blocks", body: renderBlocks(cfg.UseXMLTags, blocks, cfg.BlockCharLimit)},
		{tag: "tool_usage_rules", body: renderToolRules(cfg.UseXMLTags, tools)},
	}
	systemPrompt := renderSections(cfg.UseXMLTags, sections)

	estimator := NewTokenEstimator(cfg.Model)
	messages := fitWithinTokenBudget(estimator, h.Messages, cfg.MaxContextTokens, estimator.Count(systemPrompt))
	meta.FinalMessageCount = len(messages)
	meta.EstimatedTokens = estimator.Count(systemPrompt) + estimator.CountMessages(messages)
	if meta.EstimatedTokens > cfg.MaxContextTokens {
		meta.EstimatedTokens = cfg.MaxContextTokens
	}

	return AgentContext{
		SystemPrompt: systemPrompt,
		Tools:        tools,
		Messages:     messages,
		Metadata:     meta,
	}, nil
}

// fitWithinTokenBudget clips messages by token estimate, keeping the
// most recent messages and dropping the oldest until the running count
// (plus reserved) fits budget — an upper bound clipped to
// cfg.MaxContextTokens after compression has already run.
func fitWithinTokenBudget(estimator *TokenEstimator, messages []entity.Message, budget int, reserved int) []entity.Message {
	if budget <= 0 {
		return messages
	}
	remaining := budget - reserved
	if remaining <= 0 {
		return nil
	}

	fitted := make([]entity.Message, 0, len(messages))
	total := 0
	for i := len(messages) - 1; i >= 0; i-- {
		cost := estimator.CountMessages(messages[i : i+1])
		if total+cost > remaining {
			break
		}
		fitted = append([]entity.Message{messages[i]}, fitted...)
		total += cost
	}
	return fitted
}
