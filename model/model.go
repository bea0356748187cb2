package model

import (
	"context"
	"iter"

	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/tool"
)

// LLM is the interface an agent calls to advance a turn.
type LLM interface {
	// Name returns the model identifier (e.g. "claude-sonnet-4-20250514").
	Name() string
	// Provider returns the provider this model belongs to.
	Provider() Provider
	// GenerateContent produces one or more Responses for req. With
	// stream=false exactly one non-partial Response is yielded; with
	// stream=true zero or more partial Responses are yielded followed by
	// one final non-partial Response carrying the aggregated content.
	GenerateContent(ctx context.Context, req *Request, stream bool) iter.Seq2[*Response, error]
	// Close releases any resources (HTTP transport, etc).
	Close() error
}

// Provider identifies the LLM vendor, used for provider-specific message
// shaping (e.g. Anthropic pairs tool results with tool_use in-message;
// OpenAI emits them as separate items).
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderUnknown   Provider = "unknown"
)

// Request is one model call's input.
type Request struct {
	SystemInstruction string
	Messages          []entity.Message
	Tools             []tool.Descriptor
	Config            *GenerateConfig
}

// GenerateConfig parameterizes generation. All fields are optional; a nil
// pointer field means "use the provider's default".
type GenerateConfig struct {
	Temperature    *float64
	MaxTokens      *int
	TopP           *float64
	StopSequences  []string
	EnableThinking bool
	ThinkingBudget int
}

// ToolCall is one function-call request from the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// FinishReason explains why generation stopped.
type FinishReason string

const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonLength    FinishReason = "length"
	FinishReasonToolCalls FinishReason = "tool_calls"
	FinishReasonError     FinishReason = "error"
)

// Usage reports token accounting for one call, when the provider supplies it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is one model output. In streaming mode each partial Response
// carries the delta text only, and the final non-partial Response
// carries the full accumulated text and the complete tool call list,
// ready to append as an entity.Message.
type Response struct {
	Text         string
	ToolCalls    []ToolCall
	Partial      bool
	FinishReason FinishReason
	Usage        *Usage
	ErrorMessage string
}

// HasToolCalls reports whether the model requested at least one tool call.
func (r *Response) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}
