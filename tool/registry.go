package tool

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/patterncore/pattern/internal/registry"
	"github.com/patterncore/pattern/memory"
)

const heartbeatKey = "request_heartbeat"

// Registry stores tools behind a dynamic-dispatch adapter and consults an
// ACL before every execution.
type Registry struct {
	base *registry.BaseRegistry[Tool]
	acl  ACL
}

// NewRegistry creates an empty Registry. A nil acl defaults to AllowAll.
func NewRegistry(acl ACL) *Registry {
	if acl == nil {
		acl = AllowAll{}
	}
	return &Registry{base: registry.NewBaseRegistry[Tool](), acl: acl}
}

// Register adds t under its own Name(). Returns an error if the name is
// already taken.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool: cannot register a nil tool")
	}
	return r.base.Register(t.Name(), t)
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	return r.base.Get(name)
}

// List returns every registered tool, in no particular order.
func (r *Registry) List() []Tool {
	return r.base.List()
}

// Execute looks up name, strips the reserved request_heartbeat key from
// params, runs the ACL check, and invokes the tool. It returns the tool's
// UsageRule alongside the result so the agent runtime can decide whether
// to continue the turn.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any, meta ExecutionMeta, mem *memory.Memory) (map[string]any, UsageRule, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, UsageNeutral, &ToolNotFoundError{Name: name, Available: r.base.Names()}
	}

	if err := r.acl.Check(name, meta.CallerUserID, meta.RouteMetadata); err != nil {
		if meta.PermissionGrant == nil {
			return nil, UsageNeutral, err
		}
	}

	cleaned := make(map[string]any, len(params))
	for k, v := range params {
		if k == heartbeatKey {
			continue
		}
		cleaned[k] = v
	}
	if hb, ok := params[heartbeatKey].(bool); ok {
		meta.RequestHeartbeat = hb
	}

	toolCtx := NewContext(ctx, meta, mem)
	result, err := t.Call(toolCtx, cleaned)
	if err != nil {
		return nil, UsageNeutral, &ToolExecutionFailedError{Name: name, Cause: err, Parameters: cleaned}
	}
	return result, t.UsageRule(), nil
}

// Descriptor is the presentation-layer view of a Tool, suitable for
// handing to a model's function-calling request.
type Descriptor struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolDescriptors returns a Descriptor per registered tool.
func (r *Registry) ToolDescriptors() []Descriptor {
	tools := r.List()
	out := make([]Descriptor, 0, len(tools))
	for _, t := range tools {
		out = append(out, Descriptor{Name: t.Name(), Description: t.Description(), Parameters: t.Schema()})
	}
	return out
}

// MCPTools renders every registered tool as an MCP tool definition,
// consumable directly by a mark3labs/mcp-go server for external tool
// exposure over the Model Context Protocol.
func (r *Registry) MCPTools() []mcp.Tool {
	tools := r.List()
	out := make([]mcp.Tool, 0, len(tools))
	for _, t := range tools {
		schema := t.Schema()
		properties, _ := schema["properties"].(map[string]any)
		var required []string
		if rawRequired, ok := schema["required"].([]any); ok {
			for _, v := range rawRequired {
				if s, ok := v.(string); ok {
					required = append(required, s)
				}
			}
		}
		out = append(out, mcp.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: properties,
				Required:   required,
			},
		})
	}
	return out
}
