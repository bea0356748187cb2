package tool

import (
	"context"

	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/memory"
)

// UsageRule tells the agent runtime whether invoking a tool implies the
// model's response continues once the tool result is appended (a
// "heartbeat"). A tool with no rule defaults to non-continuing.
type UsageRule string

const (
	// UsageContinues means the turn is not finished: the runtime
	// re-invokes the model after the tool result is appended.
	UsageContinues UsageRule = "requires_continuing"
	// UsageEnds means this call yields control back to the caller.
	UsageEnds UsageRule = "ends_response"
	// UsageNeutral is the default for tools with no stated rule.
	UsageNeutral UsageRule = ""
)

// Example is one illustrative input/output pair surfaced to the model
// alongside a tool's schema.
type Example struct {
	Input  map[string]any
	Output map[string]any
}

// ExecutionMeta is passed explicitly to every tool invocation. Tools must
// not read hidden globals for any of these values.
type ExecutionMeta struct {
	// PermissionGrant elevates the ACL check for this one invocation,
	// when the caller already obtained out-of-band authorization.
	PermissionGrant *entity.Permission
	// RequestHeartbeat is the model's own request to continue after this
	// call, independent of the tool's UsageRule.
	RequestHeartbeat bool
	// CallerUserID identifies who (directly or via an agent acting for
	// them) triggered this call.
	CallerUserID string
	// ToolCallID traces this invocation back to the originating message.
	ToolCallID string
	// RouteMetadata carries routing context (e.g. which channel invoked
	// this) so permission prompts can be delivered back to the caller.
	RouteMetadata map[string]any
}

// Context is the execution context handed to every Tool.Call. It embeds
// context.Context for cancellation/deadlines and exposes the calling
// agent's private Memory, so tools never reach for package-level state.
type Context interface {
	context.Context
	Meta() ExecutionMeta
	Memory() *memory.Memory
}

type execContext struct {
	context.Context
	meta ExecutionMeta
	mem  *memory.Memory
}

// NewContext builds a Context for one tool invocation.
func NewContext(ctx context.Context, meta ExecutionMeta, mem *memory.Memory) Context {
	return &execContext{Context: ctx, meta: meta, mem: mem}
}

func (c *execContext) Meta() ExecutionMeta    { return c.meta }
func (c *execContext) Memory() *memory.Memory { return c.mem }

// Tool is a named, schema-described capability an agent can invoke.
type Tool interface {
	// Name is the tool's unique identifier within a registry.
	Name() string
	// Description is shown to the model to help it decide when to call
	// this tool.
	Description() string
	// UsageRule tells the runtime whether this tool implies a heartbeat
	// continuation once its result is appended.
	UsageRule() UsageRule
	// Examples returns illustrative call/response pairs, or nil.
	Examples() []Example
	// Schema returns the JSON schema (no $ref, MCP-compatible) describing
	// this tool's input parameters.
	Schema() map[string]any
	// Call executes the tool with untyped parameters already stripped of
	// the reserved request_heartbeat key, returning an untyped result.
	Call(ctx Context, params map[string]any) (map[string]any, error)
}
