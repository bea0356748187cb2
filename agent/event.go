package agent

// ResponseEventKind discriminates ResponseEvent's variant content,
// following this module's tagged-struct convention for sum types (see
// entity.MessageContent) rather than a native Go sum type.
type ResponseEventKind string

const (
	EventTextChunk        ResponseEventKind = "text_chunk"
	EventReasoningChunk   ResponseEventKind = "reasoning_chunk"
	EventToolCallStarted  ResponseEventKind = "tool_call_started"
	EventToolCallComplete ResponseEventKind = "tool_call_completed"
	EventToolCalls        ResponseEventKind = "tool_calls"
	EventComplete         ResponseEventKind = "complete"
	EventError            ResponseEventKind = "error"
)

// ToolCallInfo describes one requested or completed tool invocation.
type ToolCallInfo struct {
	ID     string
	Name   string
	Args   map[string]any
	Result map[string]any
	Err    error
}

// ResponseEvent is one step of a streamed turn, yielded by
// Agent.ProcessMessageStream.
type ResponseEvent struct {
	Kind ResponseEventKind

	// EventTextChunk / EventReasoningChunk
	Text string

	// EventToolCallStarted / EventToolCallComplete
	ToolCall ToolCallInfo

	// EventToolCalls: every tool call requested by this iteration's
	// model response, before any of them have executed.
	ToolCalls []ToolCallInfo

	// EventComplete: the assistant's final text for this turn.
	FinalText string

	// EventError
	Err         error
	Recoverable bool
}
