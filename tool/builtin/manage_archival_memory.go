package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/memory/vectorstore"
	"github.com/patterncore/pattern/tool"
)

// EmbedFunc computes a vector embedding for text, supplied by whatever
// embeddings.Provider the operator configured. A nil EmbedFunc degrades
// manage_archival_memory's search operation to substring matching.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// ManageArchivalMemoryInput parameterizes archival insert/read/search/delete,
// with search additionally accepting a free-text query and result limit.
type ManageArchivalMemoryInput struct {
	Operation string `json:"operation" jsonschema:"required,enum=insert|read|search|delete,description=Archival memory operation"`
	Label     string `json:"label,omitempty" jsonschema:"description=Block label for insert/read/delete"`
	Content   string `json:"content,omitempty" jsonschema:"description=Content to store for insert"`
	Query     string `json:"query,omitempty" jsonschema:"description=Search query for search"`
	Limit     int    `json:"limit,omitempty" jsonschema:"description=Maximum results for search,default=10"`
}

// NewManageArchivalMemory builds the manage_archival_memory tool. provider
// and embed are both optional; when either is nil, search falls back to a
// substring match over cached archival blocks — the documented behavior
// when no embeddings.Provider is wired.
func NewManageArchivalMemory(provider vectorstore.Provider, embed EmbedFunc) (tool.Tool, error) {
	return tool.New[ManageArchivalMemoryInput](tool.Config{
		Name:        "manage_archival_memory",
		Description: "Manage archival (long-term) memory storage with semantic search. Operations: insert, read (by label), search (by content), delete.",
		Rule:        tool.UsageContinues,
	}, func(ctx tool.Context, in ManageArchivalMemoryInput) (map[string]any, error) {
		return manageArchivalMemoryCall(ctx, in, provider, embed)
	})
}

func manageArchivalMemoryCall(ctx tool.Context, in ManageArchivalMemoryInput, provider vectorstore.Provider, embed EmbedFunc) (map[string]any, error) {
	mem := ctx.Memory()

	switch in.Operation {
	case "insert":
		if in.Content == "" {
			return nil, fmt.Errorf("manage_archival_memory: insert requires content")
		}
		label := in.Label
		if label == "" {
			label = fmt.Sprintf("archival_%s", ctx.Meta().ToolCallID)
		}
		block, err := mem.CreateBlock(ctx, label, in.Content, entity.MemoryBlockArchival, entity.PermissionReadWrite)
		if err != nil {
			return nil, err
		}
		if provider != nil && embed != nil {
			vec, err := embed(ctx, in.Content)
			if err == nil {
				_ = provider.Upsert(ctx, archivalCollection(mem.AgentID().String()), block.ID.String(), vec, map[string]interface{}{
					"label":   block.Label,
					"content": block.Value,
				})
			}
		}
		return map[string]any{"label": block.Label, "created": true}, nil

	case "read":
		if in.Label == "" {
			return nil, fmt.Errorf("manage_archival_memory: read requires label")
		}
		block, ok := mem.GetBlock(in.Label)
		if !ok {
			return nil, fmt.Errorf("manage_archival_memory: block %q not found", in.Label)
		}
		return map[string]any{"label": block.Label, "content": block.Value}, nil

	case "search":
		limit := in.Limit
		if limit <= 0 {
			limit = 10
		}
		if provider != nil && embed != nil && in.Query != "" {
			vec, err := embed(ctx, in.Query)
			if err == nil {
				results, err := provider.Search(ctx, archivalCollection(mem.AgentID().String()), vec, limit)
				if err == nil {
					return map[string]any{"results": results}, nil
				}
			}
		}
		return map[string]any{"results": substringSearch(mem.ListBlocks(), in.Query, limit)}, nil

	case "delete":
		if in.Label == "" {
			return nil, fmt.Errorf("manage_archival_memory: delete requires label")
		}
		block, found := mem.GetBlock(in.Label)
		if err := mem.RemoveBlock(ctx, in.Label); err != nil {
			return nil, err
		}
		if provider != nil && found {
			_ = provider.Delete(ctx, archivalCollection(mem.AgentID().String()), block.ID.String())
		}
		return map[string]any{"label": in.Label, "deleted": true}, nil

	default:
		return nil, fmt.Errorf("manage_archival_memory: unknown operation %q", in.Operation)
	}
}

func archivalCollection(agentID string) string {
	return "archival:" + agentID
}

func substringSearch(blocks []entity.MemoryBlock, query string, limit int) []map[string]any {
	query = strings.ToLower(query)
	var out []map[string]any
	for _, b := range blocks {
		if b.Type != entity.MemoryBlockArchival {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(b.Value), query) {
			continue
		}
		out = append(out, map[string]any{"label": b.Label, "content": b.Value})
		if len(out) >= limit {
			break
		}
	}
	return out
}
