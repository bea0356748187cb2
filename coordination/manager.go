package coordination

import (
	"context"
	"iter"

	"github.com/patterncore/pattern/agent"
	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/id"
)

// AgentLookup resolves a group member's agent ID to its already-running
// agent.Agent runtime. Returns ok=false for a member whose runtime isn't
// loaded (e.g. cooling down, not yet started); patterns treat that the
// same as an unavailable member.
type AgentLookup func(agentID id.AgentID) (*agent.Agent, bool)

// RouteRequest is what a GroupManager needs to route one message
// through a group's members.
type RouteRequest struct {
	Group   entity.Group
	Members []entity.GroupMember // caller-filtered to IsActive members, in Group.Members order
	Message string
	Lookup  AgentLookup
}

// GroupManager implements one coordination pattern (round robin, voting,
// pipeline, supervisor, sleeptime). RouteMessage streams events for a
// single routing turn and attaches any pattern state change to its
// closing EventGroupComplete as StateChanges. UpdateState recomputes
// pattern state from a set of already-collected AgentResponses, outside
// a routing turn.
type GroupManager interface {
	Pattern() PatternKind
	RouteMessage(ctx context.Context, req RouteRequest) iter.Seq2[GroupResponseEvent, error]
	UpdateState(current map[string]any, responses []AgentResponse) (next map[string]any, changed bool)
}

// liveMembers returns req.Members with Lookup failures removed, paired
// with their resolved agent.Agent runtime.
func liveMembers(req RouteRequest) []liveMember {
	live := make([]liveMember, 0, len(req.Members))
	for _, m := range req.Members {
		a, ok := req.Lookup(m.AgentID)
		if !ok {
			continue
		}
		live = append(live, liveMember{member: m, agent: a})
	}
	return live
}

type liveMember struct {
	member entity.GroupMember
	agent  *agent.Agent
}
