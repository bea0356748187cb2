package builtin

import (
	"fmt"

	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/tool"
)

// RecallInput parameterizes the recall tool's four archival operations.
type RecallInput struct {
	Operation string `json:"operation" jsonschema:"required,enum=insert|append|read|delete,description=Archival memory operation"`
	Label     string `json:"label" jsonschema:"required,description=Archival block label"`
	Content   string `json:"content,omitempty" jsonschema:"description=Content for insert/append operations"`
}

// NewRecall builds the recall tool, managing archival (long-term) memory
// blocks via insert, append, read, and delete operations.
func NewRecall() (tool.Tool, error) {
	return tool.New[RecallInput](tool.Config{
		Name:        "recall",
		Description: "Manage archival (long-term) memory blocks: insert, append, read, or delete by label.",
		Rule:        tool.UsageContinues,
	}, recallCall)
}

func recallCall(ctx tool.Context, in RecallInput) (map[string]any, error) {
	mem := ctx.Memory()

	switch in.Operation {
	case "insert":
		block, err := mem.CreateBlock(ctx, in.Label, in.Content, entity.MemoryBlockArchival, entity.PermissionReadWrite)
		if err != nil {
			return nil, err
		}
		return map[string]any{"label": block.Label, "created": true}, nil

	case "append":
		existing, ok := mem.GetBlock(in.Label)
		if !ok {
			return nil, fmt.Errorf("recall: block %q not found", in.Label)
		}
		updated, err := mem.UpdateBlockValue(ctx, in.Label, existing.Value+in.Content)
		if err != nil {
			return nil, err
		}
		return map[string]any{"label": updated.Label, "value": updated.Value}, nil

	case "read":
		block, ok := mem.GetBlock(in.Label)
		if !ok {
			return nil, fmt.Errorf("recall: block %q not found", in.Label)
		}
		return map[string]any{"label": block.Label, "value": block.Value}, nil

	case "delete":
		if err := mem.RemoveBlock(ctx, in.Label); err != nil {
			return nil, err
		}
		return map[string]any{"label": in.Label, "deleted": true}, nil

	default:
		return nil, fmt.Errorf("recall: unknown operation %q", in.Operation)
	}
}
