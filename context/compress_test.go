package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patterncore/pattern/entity"
)

func makeMessages(n int) []entity.Message {
	out := make([]entity.Message, n)
	for i := 0; i < n; i++ {
		out[i] = entity.Message{
			Position: int64(i),
			Role:     entity.RoleUser,
			Content:  entity.MessageContent{Kind: "text", Text: "message"},
		}
	}
	return out
}

func TestCompress_Truncation_KeepsLastK(t *testing.T) {
	h := &History{Messages: makeMessages(30)}
	cfg := Config{MaxActiveMessages: 10, TruncationKeep: 5, Strategy: StrategyTruncation}
	cfg.SetDefaults()

	err := Compress(context.Background(), h, cfg, nil)
	require.NoError(t, err)
	assert.Len(t, h.Messages, 5)
	assert.Len(t, h.Archived, 25)
	assert.Equal(t, int64(25), h.Messages[0].Position)
}

func TestCompress_Truncation_NoopWhenUnderLimit(t *testing.T) {
	h := &History{Messages: makeMessages(5)}
	cfg := Config{MaxActiveMessages: 10, Strategy: StrategyTruncation}
	cfg.SetDefaults()

	err := Compress(context.Background(), h, cfg, nil)
	require.NoError(t, err)
	assert.Len(t, h.Messages, 5)
	assert.Empty(t, h.Archived)
}

func TestCompress_Recursive_SummarizesOverflow(t *testing.T) {
	h := &History{Messages: makeMessages(20)}
	cfg := Config{MaxActiveMessages: 10, TruncationKeep: 5, Strategy: StrategyRecursive}
	cfg.SetDefaults()

	err := Compress(context.Background(), h, cfg, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, h.Summary)
	assert.Len(t, h.Archived, 15)
	require.True(t, len(h.Messages) >= 1)
	assert.Equal(t, true, h.Messages[0].Metadata[summaryMarker])
}

func TestCompress_Recursive_UsesSummarizer(t *testing.T) {
	h := &History{Messages: makeMessages(20)}
	cfg := Config{MaxActiveMessages: 10, TruncationKeep: 5, Strategy: StrategyRecursive}
	cfg.SetDefaults()

	called := false
	summarize := func(_ context.Context, msgs []entity.Message) (string, error) {
		called = true
		return "custom summary", nil
	}

	err := Compress(context.Background(), h, cfg, summarize)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "custom summary", h.Summary)
}

func TestCompress_Importance_KeepsToolMessages(t *testing.T) {
	messages := makeMessages(20)
	messages[3].Role = entity.RoleTool
	messages[3].Content.Text = "tool output"

	h := &History{Messages: messages}
	cfg := Config{MaxActiveMessages: 10, Strategy: StrategyImportance}
	cfg.SetDefaults()

	err := Compress(context.Background(), h, cfg, nil)
	require.NoError(t, err)

	found := false
	for _, m := range h.Messages {
		if m.Position == 3 {
			found = true
		}
	}
	assert.True(t, found, "important message at position 3 must survive compression")
}

func TestCompress_IsIdempotent(t *testing.T) {
	h := &History{Messages: makeMessages(30)}
	cfg := Config{MaxActiveMessages: 10, TruncationKeep: 5, Strategy: StrategyTruncation}
	cfg.SetDefaults()

	require.NoError(t, Compress(context.Background(), h, cfg, nil))
	before := len(h.Messages)
	require.NoError(t, Compress(context.Background(), h, cfg, nil))
	assert.Equal(t, before, len(h.Messages))
}
