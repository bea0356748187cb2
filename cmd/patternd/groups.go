package main

import (
	"context"
	"fmt"

	"github.com/patterncore/pattern/agent"
	"github.com/patterncore/pattern/config"
	"github.com/patterncore/pattern/coordination"
	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/id"
)

// buildGroups turns each configured GroupConfig into a running
// coordination.Runtime: an entity.Group (persisted with its members), the
// coordination.GroupManager its Pattern selects, and an AgentLookup over
// the already-built agents map.
func buildGroups(ctx context.Context, cfg *config.Config, store *entity.Store, agents map[string]*agent.Agent) (map[string]*coordination.Runtime, error) {
	runtimes := make(map[string]*coordination.Runtime, len(cfg.Groups))
	lookup := agentLookup(agents)

	for name, gc := range cfg.Groups {
		members := make([]entity.GroupMember, 0, len(gc.Members))
		for _, memberName := range gc.Members {
			a, ok := agents[memberName]
			if !ok {
				return nil, fmt.Errorf("group %q: references undefined agent %q", name, memberName)
			}
			members = append(members, entity.GroupMember{
				AgentID:  a.Handle().AgentID,
				Role:     entity.MemberRole{Tag: "regular"},
				IsActive: true,
			})
		}

		g := entity.Group{
			ID:            id.NewGroupID(),
			Name:          name,
			Pattern:       gc.Pattern,
			PatternConfig: gc.Config,
			Members:       members,
		}
		stored, err := store.StoreGroupWithRelations(ctx, g)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", name, err)
		}

		manager, err := coordination.NewManager(coordination.PatternKind(gc.Pattern))
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", name, err)
		}

		runtimes[name] = coordination.NewRuntime(store, manager, stored, lookup)
	}
	return runtimes, nil
}

// agentLookup adapts the composition root's name-keyed agents map into
// the id.AgentID-keyed coordination.AgentLookup every GroupManager
// resolves members through.
func agentLookup(agents map[string]*agent.Agent) coordination.AgentLookup {
	byID := make(map[id.AgentID]*agent.Agent, len(agents))
	for _, a := range agents {
		byID[a.Handle().AgentID] = a
	}
	return func(agentID id.AgentID) (*agent.Agent, bool) {
		a, ok := byID[agentID]
		return a, ok
	}
}
