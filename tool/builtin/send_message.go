package builtin

import (
	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/id"
	"github.com/patterncore/pattern/tool"
)

// SendMessageInput delivers content to a named target: a user, a group,
// or an external channel. The target's kind determines how the runtime's
// endpoint layer routes the delivery once this call's message is persisted.
type SendMessageInput struct {
	Target     string `json:"target" jsonschema:"required,description=Name or ID of the recipient"`
	TargetKind string `json:"target_kind,omitempty" jsonschema:"enum=user|group|channel,default=user,description=Kind of recipient"`
	Content    string `json:"content" jsonschema:"required,description=Message content to deliver"`
}

// NewSendMessage builds the send_message tool. It is a terminal tool: its
// UsageRule is UsageEnds, so invoking it yields control rather than
// triggering a heartbeat continuation.
func NewSendMessage() (tool.Tool, error) {
	return tool.New[SendMessageInput](tool.Config{
		Name:        "send_message",
		Description: "Deliver a message to a named target (user, channel, or group). Ends the current turn.",
		Rule:        tool.UsageEnds,
	}, sendMessageCall)
}

func sendMessageCall(ctx tool.Context, in SendMessageInput) (map[string]any, error) {
	mem := ctx.Memory()
	targetKind := in.TargetKind
	if targetKind == "" {
		targetKind = "user"
	}

	msg := entity.Message{
		ID:      id.NewMessageID(),
		AgentID: mem.AgentID(),
		Role:    entity.RoleAssistant,
		Content: entity.MessageContent{Kind: "text", Text: in.Content},
		Metadata: map[string]any{
			"target":      in.Target,
			"target_kind": targetKind,
		},
	}

	stored, err := mem.Store().AppendMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"message_id": stored.ID.String(),
		"delivered_to": map[string]string{
			"target":      in.Target,
			"target_kind": targetKind,
		},
	}, nil
}
