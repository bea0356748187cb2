package builtin

import (
	"fmt"

	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/tool"
)

// ManageCoreMemoryInput parameterizes appending to or replacing a
// core-type (always in-context) memory block.
type ManageCoreMemoryInput struct {
	Operation string `json:"operation" jsonschema:"required,enum=append|replace,description=Core memory operation"`
	Label     string `json:"label" jsonschema:"required,description=Core block label"`
	Content   string `json:"content" jsonschema:"required,description=Content to append or the full replacement value"`
}

// NewManageCoreMemory builds the manage_core_memory tool.
func NewManageCoreMemory() (tool.Tool, error) {
	return tool.New[ManageCoreMemoryInput](tool.Config{
		Name:        "manage_core_memory",
		Description: "Append to or replace the value of a core (always in-context) memory block.",
		Rule:        tool.UsageContinues,
	}, manageCoreMemoryCall)
}

func manageCoreMemoryCall(ctx tool.Context, in ManageCoreMemoryInput) (map[string]any, error) {
	mem := ctx.Memory()
	block, ok := mem.GetBlock(in.Label)
	if !ok {
		return nil, fmt.Errorf("manage_core_memory: block %q not found", in.Label)
	}
	if block.Type != entity.MemoryBlockCore {
		return nil, fmt.Errorf("manage_core_memory: block %q is not a core block", in.Label)
	}

	switch in.Operation {
	case "append":
		updated, err := mem.UpdateBlockValue(ctx, in.Label, block.Value+in.Content)
		if err != nil {
			return nil, err
		}
		return map[string]any{"label": updated.Label, "value": updated.Value}, nil

	case "replace":
		updated, err := mem.UpdateBlockValue(ctx, in.Label, in.Content)
		if err != nil {
			return nil, err
		}
		return map[string]any{"label": updated.Label, "value": updated.Value}, nil

	default:
		return nil, fmt.Errorf("manage_core_memory: unknown operation %q", in.Operation)
	}
}
