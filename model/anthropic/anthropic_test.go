package anthropic

import (
	"encoding/json"
	"testing"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/id"
	"github.com/patterncore/pattern/model"
	"github.com/patterncore/pattern/tool"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestBuildParams_SetsModelMaxTokensAndSystem(t *testing.T) {
	client, err := New(Config{APIKey: "sk-test", Model: "claude-sonnet-4-20250514", MaxTokens: 2048})
	require.NoError(t, err)

	req := &model.Request{
		SystemInstruction: "Be terse.",
		Messages: []entity.Message{
			{Role: entity.RoleUser, Content: entity.MessageContent{Kind: "text", Text: "hello"}},
			{Role: entity.RoleAssistant, Content: entity.MessageContent{Kind: "text", Text: "hi there"}},
		},
	}

	params := client.buildParams(req)
	assert.Equal(t, anthropicsdk.Model("claude-sonnet-4-20250514"), params.Model)
	assert.Equal(t, int64(2048), params.MaxTokens)
	require.Len(t, params.System, 1)
	assert.Equal(t, "Be terse.", params.System[0].Text)
	require.Len(t, params.Messages, 2)
}

func TestBuildParams_ConvertsToolCallAndResult(t *testing.T) {
	client, err := New(Config{APIKey: "sk-test"})
	require.NoError(t, err)

	callID := id.NewToolCallID()
	req := &model.Request{
		Messages: []entity.Message{
			{
				Role: entity.RoleAssistant,
				Content: entity.MessageContent{
					Kind: "tool_calls",
					Parts: []entity.MessagePart{
						{Kind: entity.PartToolCall, ToolCallID: callID, ToolName: "calculator", ToolArgsJSON: `{"expression":"1+1"}`},
					},
				},
			},
			{
				Role: entity.RoleTool,
				Content: entity.MessageContent{
					Kind: "tool_responses",
					Parts: []entity.MessagePart{
						{Kind: entity.PartToolResponse, ToolCallID: callID, ToolResult: "2"},
					},
				},
			},
		},
	}

	params := client.buildParams(req)
	require.Len(t, params.Messages, 2)
	assert.Len(t, params.Messages[0].Content, 1)
	assert.Len(t, params.Messages[1].Content, 1)
}

func TestBuildParams_ConvertsToolDescriptors(t *testing.T) {
	client, err := New(Config{APIKey: "sk-test"})
	require.NoError(t, err)

	req := &model.Request{
		Messages: []entity.Message{{Role: entity.RoleUser, Content: entity.MessageContent{Kind: "text", Text: "hi"}}},
		Tools: []tool.Descriptor{
			{Name: "calculator", Description: "evaluates expressions", Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"expression": map[string]any{"type": "string"}},
			}},
		},
	}

	params := client.buildParams(req)
	require.Len(t, params.Tools, 1)
	require.NotNil(t, params.Tools[0].OfTool)
	assert.Equal(t, "calculator", params.Tools[0].OfTool.Name)
}

func TestFromMessage_ExtractsTextAndToolCalls(t *testing.T) {
	var textBlock anthropicsdk.ContentBlockUnion
	textBlock.Type = "text"
	textBlock.Text = "checking..."

	var toolBlock anthropicsdk.ContentBlockUnion
	toolBlock.Type = "tool_use"
	toolBlock.ID = "call_1"
	toolBlock.Name = "calculator"
	toolBlock.Input = json.RawMessage(`{"expression":"2+2"}`)

	var msg anthropicsdk.Message
	msg.Content = []anthropicsdk.ContentBlockUnion{textBlock, toolBlock}
	msg.StopReason = "tool_use"
	msg.Usage.InputTokens = 10
	msg.Usage.OutputTokens = 5

	out := fromMessage(&msg)
	assert.Equal(t, "checking...", out.Text)
	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "calculator", out.ToolCalls[0].Name)
	assert.Equal(t, "2+2", out.ToolCalls[0].Args["expression"])
	assert.Equal(t, model.FinishReasonToolCalls, out.FinishReason)
	assert.Equal(t, 15, out.Usage.TotalTokens)
}

func TestStreamState_AccumulatesTextDeltas(t *testing.T) {
	s := newStreamState()

	var delta1 anthropicsdk.MessageStreamEventUnion
	delta1.Type = "content_block_delta"
	delta1.Delta.Type = "text_delta"
	delta1.Delta.Text = "hel"
	text := s.apply(&delta1)
	assert.Equal(t, "hel", text)

	var delta2 anthropicsdk.MessageStreamEventUnion
	delta2.Type = "content_block_delta"
	delta2.Delta.Type = "text_delta"
	delta2.Delta.Text = "lo"
	s.apply(&delta2)

	final := s.final()
	assert.Equal(t, "hello", final.Text)
}

func TestStreamState_AccumulatesToolCallInput(t *testing.T) {
	s := newStreamState()

	var start anthropicsdk.MessageStreamEventUnion
	start.Type = "content_block_start"
	start.Index = 0
	start.ContentBlock.Type = "tool_use"
	start.ContentBlock.ID = "call_1"
	start.ContentBlock.Name = "calculator"
	s.apply(&start)

	var delta anthropicsdk.MessageStreamEventUnion
	delta.Type = "content_block_delta"
	delta.Index = 0
	delta.Delta.Type = "input_json_delta"
	delta.Delta.PartialJSON = `{"expression":"2+2"}`
	s.apply(&delta)

	var stop anthropicsdk.MessageStreamEventUnion
	stop.Type = "content_block_stop"
	stop.Index = 0
	s.apply(&stop)

	final := s.final()
	require.Len(t, final.ToolCalls, 1)
	assert.Equal(t, "calculator", final.ToolCalls[0].Name)
	assert.Equal(t, "2+2", final.ToolCalls[0].Args["expression"])
}
