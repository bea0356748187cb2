package coordination

import (
	"context"
	"fmt"

	"github.com/patterncore/pattern/entity"
)

// Runtime drives one entity.Group's GroupManager end to end: route a
// message, drain its event stream, and persist whatever PatternState the
// pattern attaches to its closing EventGroupComplete via
// entity.Store.UpdatePatternState — the store side of GroupManager's
// state-update contract, which RouteMessage computes on every call but
// otherwise has no caller to act on the result.
type Runtime struct {
	store   *entity.Store
	manager GroupManager
	group   entity.Group
	lookup  AgentLookup
}

// NewRuntime builds a Runtime for group, routed through manager (normally
// the result of NewManager(PatternKind(group.Pattern))) and resolving
// members to live agent.Agent runtimes via lookup.
func NewRuntime(store *entity.Store, manager GroupManager, group entity.Group, lookup AgentLookup) *Runtime {
	return &Runtime{store: store, manager: manager, group: group, lookup: lookup}
}

// Group returns the runtime's Group, reflecting the most recently
// persisted PatternState.
func (rt *Runtime) Group() entity.Group { return rt.group }

// Route runs message through the group's pattern, collecting every event
// along the way, persists any resulting PatternState change, and returns
// the final text worth delivering to the message's originator.
func (rt *Runtime) Route(ctx context.Context, message string) (string, error) {
	live := make([]entity.GroupMember, 0, len(rt.group.Members))
	for _, m := range rt.group.Members {
		if m.IsActive {
			live = append(live, m)
		}
	}

	req := RouteRequest{Group: rt.group, Members: live, Message: message, Lookup: rt.lookup}

	var responses []AgentResponse
	var stateChanges map[string]any
	var final string
	var groupErr error
	for ev, err := range rt.manager.RouteMessage(ctx, req) {
		if err != nil {
			return "", fmt.Errorf("coordination: route message: %w", err)
		}
		switch ev.Kind {
		case EventAgentComplete:
			final = ev.Text
		case EventGroupComplete:
			responses = ev.AgentResponses
			stateChanges = ev.StateChanges
			groupErr = ev.Err
		}
	}

	if stateChanges != nil {
		if err := rt.store.UpdatePatternState(ctx, rt.group.ID, stateChanges); err != nil {
			return "", fmt.Errorf("coordination: persist pattern state: %w", err)
		}
		rt.group.PatternState = stateChanges
	}

	if groupErr != nil {
		return "", fmt.Errorf("coordination: %s: %w", rt.manager.Pattern(), groupErr)
	}
	if final == "" && len(responses) > 0 {
		final = responses[len(responses)-1].Text
	}
	return final, nil
}
