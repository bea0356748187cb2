package builtin

import (
	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/tool"
)

// SearchConversationsInput filters message history by role, a substring
// of content, and a time range, mirroring entity.MessageFilter.
type SearchConversationsInput struct {
	Role         string `json:"role,omitempty" jsonschema:"enum=system|user|assistant|tool,description=Filter by speaker role"`
	ContainsText string `json:"contains_text,omitempty" jsonschema:"description=Substring to match against message content"`
	After        string `json:"after,omitempty" jsonschema:"description=RFC3339 timestamp lower bound"`
	Before       string `json:"before,omitempty" jsonschema:"description=RFC3339 timestamp upper bound"`
	Limit        int    `json:"limit,omitempty" jsonschema:"description=Maximum results,default=20"`
}

// NewSearchConversations builds the search_conversations tool.
func NewSearchConversations() (tool.Tool, error) {
	return tool.New[SearchConversationsInput](tool.Config{
		Name:        "search_conversations",
		Description: "Search this agent's message history by role, content substring, or time range.",
		Rule:        tool.UsageContinues,
	}, searchConversationsCall)
}

func searchConversationsCall(ctx tool.Context, in SearchConversationsInput) (map[string]any, error) {
	mem := ctx.Memory()
	filter := entity.MessageFilter{
		AgentID:         mem.AgentID(),
		Role:            entity.MessageRole(in.Role),
		ContainsText:    in.ContainsText,
		Limit:           in.Limit,
		IncludeArchived: true,
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if t, ok := parseTimeOrEmpty(in.After); ok {
		filter.After = t
	}
	if t, ok := parseTimeOrEmpty(in.Before); ok {
		filter.Before = t
	}

	messages, err := mem.Store().ListMessages(ctx, filter)
	if err != nil {
		return nil, err
	}

	results := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		results = append(results, map[string]any{
			"id":         m.ID.String(),
			"role":       string(m.Role),
			"text":       m.Content.Text,
			"created_at": m.CreatedAt,
		})
	}
	return map[string]any{"messages": results}, nil
}
