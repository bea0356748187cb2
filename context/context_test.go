package context

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/tool"
)

func TestBuild_AssemblesSystemPromptSections(t *testing.T) {
	cfg := Config{BaseInstructions: "You are a helpful agent.", UseXMLTags: false}
	blocks := []entity.MemoryBlock{
		{Label: "persona", Description: "who I am", Value: "A careful assistant."},
	}
	tools := []ToolInfo{{Name: "calculator", Description: "math", Rule: tool.UsageContinues}}
	h := &History{Messages: makeMessages(5)}

	out, err := Build(context.Background(), cfg, blocks, tools, h, time.Now(), time.Time{}, 0, nil)
	require.NoError(t, err)

	assert.Contains(t, out.SystemPrompt, "You are a helpful agent.")
	assert.Contains(t, out.SystemPrompt, "persona")
	assert.Contains(t, out.SystemPrompt, "calculator")
	assert.Len(t, out.Messages, 5)
}

func TestBuild_XMLTagsWrapSections(t *testing.T) {
	cfg := Config{BaseInstructions: "Base.", UseXMLTags: true}
	h := &History{Messages: makeMessages(2)}

	out, err := Build(context.Background(), cfg, nil, nil, h, time.Now(), time.Time{}, 0, nil)
	require.NoError(t, err)
	assert.Contains(t, out.SystemPrompt, "<instructions>")
	assert.Contains(t, out.SystemPrompt, "</instructions>")
}

func TestBuild_CompressesOverflowingHistory(t *testing.T) {
	cfg := Config{MaxActiveMessages: 5, TruncationKeep: 3, Strategy: StrategyTruncation}
	h := &History{Messages: makeMessages(20)}

	out, err := Build(context.Background(), cfg, nil, nil, h, time.Now(), time.Time{}, 0, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out.Messages), 3)
	assert.Equal(t, 1, out.Metadata.CompressionEvents)
}

func TestBuild_NoCompressionWhenWithinBudget(t *testing.T) {
	cfg := Config{MaxActiveMessages: 50}
	h := &History{Messages: makeMessages(5)}

	out, err := Build(context.Background(), cfg, nil, nil, h, time.Now(), time.Time{}, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Metadata.CompressionEvents)
	assert.Len(t, out.Messages, 5)
}
