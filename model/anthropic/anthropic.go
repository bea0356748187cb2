// Package anthropic adapts Anthropic's Messages API to model.LLM, built
// on the official github.com/anthropics/anthropic-sdk-go client rather
// than a hand-rolled HTTP/SSE transport.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/model"
	"github.com/patterncore/pattern/tool"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 4096
	defaultTimeout   = 120 * time.Second
)

// Config configures a Client.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature *float64
	BaseURL     string
	Timeout     time.Duration
}

// Client is an Anthropic model.LLM implementation, wrapping the SDK's
// anthropicsdk.Client the way teradata-labs-loom's bedrock.SDKClient wraps
// it for Bedrock — a thin request/response translation layer, with the
// SDK itself owning HTTP, retries, and SSE framing.
type Client struct {
	sdk         anthropicsdk.Client
	model       string
	maxTokens   int64
	temperature *float64
}

// New creates a Client. APIKey is required.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		sdk:         anthropicsdk.NewClient(opts...),
		model:       modelName,
		maxTokens:   int64(maxTokens),
		temperature: cfg.Temperature,
	}, nil
}

func (c *Client) Name() string              { return c.model }
func (c *Client) Provider() model.Provider  { return model.ProviderAnthropic }
func (c *Client) Close() error              { return nil }

func (c *Client) GenerateContent(ctx context.Context, req *model.Request, stream bool) iter.Seq2[*model.Response, error] {
	params := c.buildParams(req)
	if stream {
		return c.generateStream(ctx, params)
	}
	return func(yield func(*model.Response, error) bool) {
		message, err := c.sdk.Messages.New(ctx, params)
		if err != nil {
			yield(nil, fmt.Errorf("anthropic: messages.new: %w", err))
			return
		}
		yield(fromMessage(message), nil)
	}
}

// generateStream drains the SDK's server-sent-event stream, yielding a
// partial Response per text delta followed by one final non-partial
// Response carrying the accumulated text, tool calls, and usage — the
// event-type switch follows client_sdk.go's ChatStream loop directly.
func (c *Client) generateStream(ctx context.Context, params anthropicsdk.MessageNewParams) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		stream := c.sdk.Messages.NewStreaming(ctx, params)
		state := newStreamState()

		for stream.Next() {
			event := stream.Current()
			if partial := state.apply(&event); partial != "" {
				if !yield(&model.Response{Text: partial, Partial: true}, nil) {
					return
				}
			}
		}
		if err := stream.Err(); err != nil && err != io.EOF {
			yield(nil, fmt.Errorf("anthropic: stream: %w", err))
			return
		}

		yield(state.final(), nil)
	}
}

// streamState accumulates one SSE stream's content_block events into a
// final Response using a per-index buffer, without a separate aggregator
// type (no thinking-block bookkeeping here, that content is out of scope).
type streamState struct {
	text         strings.Builder
	toolJSON     map[int64]string
	toolCalls    map[int64]*model.ToolCall
	order        []int64
	finishReason model.FinishReason
	inputTokens  int64
	outputTokens int64
}

func newStreamState() *streamState {
	return &streamState{
		toolJSON:     make(map[int64]string),
		toolCalls:    make(map[int64]*model.ToolCall),
		finishReason: model.FinishReasonStop,
	}
}

// apply processes one stream event, returning a non-empty string when
// this event carries a text delta worth surfacing as a partial Response.
func (s *streamState) apply(event *anthropicsdk.MessageStreamEventUnion) string {
	switch event.Type {
	case "message_start":
		s.inputTokens = event.Message.Usage.InputTokens
	case "content_block_start":
		if event.ContentBlock.Type == "tool_use" {
			s.toolCalls[event.Index] = &model.ToolCall{ID: event.ContentBlock.ID, Name: event.ContentBlock.Name}
			s.toolJSON[event.Index] = ""
			s.order = append(s.order, event.Index)
		}
	case "content_block_delta":
		switch event.Delta.Type {
		case "text_delta":
			s.text.WriteString(event.Delta.Text)
			return event.Delta.Text
		case "input_json_delta":
			s.toolJSON[event.Index] += event.Delta.PartialJSON
		}
	case "content_block_stop":
		if tc, ok := s.toolCalls[event.Index]; ok {
			if raw := s.toolJSON[event.Index]; raw != "" {
				var args map[string]any
				_ = json.Unmarshal([]byte(raw), &args)
				tc.Args = args
			}
		}
	case "message_delta":
		switch event.Delta.StopReason {
		case "tool_use":
			s.finishReason = model.FinishReasonToolCalls
		case "max_tokens":
			s.finishReason = model.FinishReasonLength
		}
		if event.Usage.OutputTokens > 0 {
			s.outputTokens = event.Usage.OutputTokens
		}
	}
	return ""
}

func (s *streamState) final() *model.Response {
	calls := make([]model.ToolCall, 0, len(s.order))
	for _, idx := range s.order {
		if tc := s.toolCalls[idx]; tc != nil {
			calls = append(calls, *tc)
		}
	}
	return &model.Response{
		Text:         s.text.String(),
		ToolCalls:    calls,
		Partial:      false,
		FinishReason: s.finishReason,
		Usage: &model.Usage{
			PromptTokens:     int(s.inputTokens),
			CompletionTokens: int(s.outputTokens),
			TotalTokens:      int(s.inputTokens + s.outputTokens),
		},
	}
}

// buildParams converts a model.Request into the SDK's MessageNewParams,
// folding entity.Message history (and tool.Descriptor schemas) into the
// Messages/Tools fields the same way client_sdk.go's convertMessagesToSDK
// and convertToolsToSDK build them for a Bedrock-backed client.
func (c *Client) buildParams(req *model.Request) anthropicsdk.MessageNewParams {
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.model),
		MaxTokens: c.maxTokens,
	}
	if req.SystemInstruction != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.SystemInstruction}}
	}
	if req.Config != nil {
		if req.Config.Temperature != nil {
			params.Temperature = anthropicsdk.Float(*req.Config.Temperature)
		}
		if req.Config.MaxTokens != nil {
			params.MaxTokens = int64(*req.Config.MaxTokens)
		}
		params.StopSequences = req.Config.StopSequences
	} else if c.temperature != nil {
		params.Temperature = anthropicsdk.Float(*c.temperature)
	}

	for _, m := range req.Messages {
		params.Messages = append(params.Messages, toMessageParam(m))
	}
	if len(req.Tools) > 0 {
		params.Tools = make([]anthropicsdk.ToolUnionParam, 0, len(req.Tools))
		for _, t := range req.Tools {
			params.Tools = append(params.Tools, toToolUnionParam(t))
		}
	}
	return params
}

// toMessageParam maps an entity.Message onto the SDK's message-param
// shape. Tool-role messages become a user message carrying a
// tool_result block, matching Anthropic's requirement that tool results
// be paired into the conversation as user turns.
func toMessageParam(m entity.Message) anthropicsdk.MessageParam {
	switch m.Content.Kind {
	case "tool_calls":
		blocks := make([]anthropicsdk.ContentBlockParamUnion, 0, len(m.Content.Parts))
		for _, p := range m.Content.Parts {
			var args map[string]any
			_ = json.Unmarshal([]byte(p.ToolArgsJSON), &args)
			blocks = append(blocks, anthropicsdk.NewToolUseBlock(p.ToolCallID.String(), args, p.ToolName))
		}
		return anthropicsdk.NewAssistantMessage(blocks...)
	case "tool_responses":
		blocks := make([]anthropicsdk.ContentBlockParamUnion, 0, len(m.Content.Parts))
		for _, p := range m.Content.Parts {
			content := p.ToolResult
			isError := p.ToolError != ""
			if isError {
				content = p.ToolError
			}
			blocks = append(blocks, anthropicsdk.NewToolResultBlock(p.ToolCallID.String(), content, isError))
		}
		return anthropicsdk.NewUserMessage(blocks...)
	default:
		block := anthropicsdk.NewTextBlock(m.Content.Text)
		if m.Role == entity.RoleAssistant {
			return anthropicsdk.NewAssistantMessage(block)
		}
		return anthropicsdk.NewUserMessage(block)
	}
}

// toToolUnionParam converts a tool.Descriptor's JSON-schema Parameters
// into the SDK's typed ToolInputSchemaParam via a marshal/unmarshal round
// trip, the same approach client_sdk.go's convertToolsToSDK uses rather
// than hand-building the schema struct field by field.
func toToolUnionParam(t tool.Descriptor) anthropicsdk.ToolUnionParam {
	toolParam := anthropicsdk.ToolParam{
		Name:        t.Name,
		Description: anthropicsdk.String(t.Description),
	}
	if schemaJSON, err := json.Marshal(t.Parameters); err == nil {
		var inputSchema anthropicsdk.ToolInputSchemaParam
		if json.Unmarshal(schemaJSON, &inputSchema) == nil {
			toolParam.InputSchema = inputSchema
		}
	}
	return anthropicsdk.ToolUnionParam{OfTool: &toolParam}
}

func fromMessage(msg *anthropicsdk.Message) *model.Response {
	out := &model.Response{FinishReason: model.FinishReasonStop}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			out.Text += block.Text
		case "tool_use":
			var args map[string]any
			if len(block.Input) > 0 {
				_ = json.Unmarshal(block.Input, &args)
			}
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{ID: block.ID, Name: block.Name, Args: args})
		}
	}
	switch msg.StopReason {
	case "tool_use":
		out.FinishReason = model.FinishReasonToolCalls
	case "max_tokens":
		out.FinishReason = model.FinishReasonLength
	}
	out.Usage = &model.Usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
	return out
}

var _ model.LLM = (*Client)(nil)
