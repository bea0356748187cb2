package coordination

import (
	"time"

	"github.com/patterncore/pattern/id"
)

// GroupResponseEventKind discriminates GroupResponseEvent the same way
// agent.ResponseEventKind discriminates agent.ResponseEvent: one tagged
// struct, one kind field, payload fields left zero when not applicable.
type GroupResponseEventKind string

const (
	EventGroupStarted   GroupResponseEventKind = "group_started"
	EventAgentStarted   GroupResponseEventKind = "agent_started"
	EventAgentText      GroupResponseEventKind = "agent_text"
	EventAgentReasoning GroupResponseEventKind = "agent_reasoning"
	EventAgentToolCall  GroupResponseEventKind = "agent_tool_call"
	EventAgentComplete  GroupResponseEventKind = "agent_complete"
	EventGroupError     GroupResponseEventKind = "group_error"
	EventGroupComplete  GroupResponseEventKind = "group_complete"
)

// AgentResponse summarizes one member's contribution to a completed
// routing turn, carried in GroupComplete.AgentResponses.
type AgentResponse struct {
	AgentID   id.AgentID
	Role      string
	Text      string
	ToolCalls int
}

// GroupResponseEvent is one event in the stream a GroupManager produces
// while routing a message through a group's members.
type GroupResponseEvent struct {
	Kind GroupResponseEventKind

	GroupID    id.GroupID
	Pattern    PatternKind
	AgentCount int

	AgentID id.AgentID
	Role    string

	Text     string
	ToolName string

	Err         error
	Recoverable bool

	ExecutionTime  time.Duration
	AgentResponses []AgentResponse
	StateChanges   map[string]any
}
