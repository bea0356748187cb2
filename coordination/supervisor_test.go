package coordination_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patterncore/pattern/agent"
	"github.com/patterncore/pattern/coordination"
	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/id"
)

func TestSupervisor_DelegatesByParsedName(t *testing.T) {
	store := newTestStore(t)
	specialist, specialistAgent := newTestMember(t, store, entity.MemberRole{Tag: "regular"}, "handled by specialist")

	// The supervisor names the specialist on its own line; since that's
	// under 50 chars and carries no tool calls, it isn't self-selection.
	supervisorText := specialist.AgentID.String()
	supervisor, supervisorAgent := newTestMember(t, store, entity.MemberRole{Tag: "supervisor"}, supervisorText)

	lookup := lookupFor(map[id.AgentID]*agent.Agent{
		supervisor.AgentID: supervisorAgent,
		specialist.AgentID: specialistAgent,
	})

	sup := coordination.NewSupervisor()
	group := entity.Group{ID: id.NewGroupID(), Pattern: "supervisor"}

	events, err := drain(sup.RouteMessage(context.Background(), coordination.RouteRequest{
		Group:   group,
		Members: []entity.GroupMember{supervisor, specialist},
		Message: "please handle this",
		Lookup:  lookup,
	}))
	require.NoError(t, err)
	last := events[len(events)-1]
	require.Equal(t, coordination.EventGroupComplete, last.Kind)
	require.Len(t, last.AgentResponses, 1)
	assert.Equal(t, specialist.AgentID, last.AgentResponses[0].AgentID)
	assert.Equal(t, "handled by specialist", last.AgentResponses[0].Text)
}

func TestSupervisor_SelfSelectsOnSubstantiveText(t *testing.T) {
	store := newTestStore(t)
	other, otherAgent := newTestMember(t, store, entity.MemberRole{Tag: "regular"}, "unused")
	longText := "this supervisor will handle the request directly because it is substantial."
	supervisor, supervisorAgent := newTestMember(t, store, entity.MemberRole{Tag: "supervisor"}, longText)

	lookup := lookupFor(map[id.AgentID]*agent.Agent{
		supervisor.AgentID: supervisorAgent,
		other.AgentID:      otherAgent,
	})

	sup := coordination.NewSupervisor()
	group := entity.Group{ID: id.NewGroupID(), Pattern: "supervisor"}

	events, err := drain(sup.RouteMessage(context.Background(), coordination.RouteRequest{
		Group:   group,
		Members: []entity.GroupMember{supervisor, other},
		Message: "please handle this",
		Lookup:  lookup,
	}))
	require.NoError(t, err)
	last := events[len(events)-1]
	require.Len(t, last.AgentResponses, 1)
	assert.Equal(t, supervisor.AgentID, last.AgentResponses[0].AgentID)
}

func TestSupervisor_NonResponseBroadcastsWhenSelfSelectForbidden(t *testing.T) {
	store := newTestStore(t)
	alice, aliceAgent := newTestMember(t, store, entity.MemberRole{Tag: "regular"}, "alice handled it")
	bob, bobAgent := newTestMember(t, store, entity.MemberRole{Tag: "regular"}, "bob handled it")
	router, routerAgent := newTestMember(t, store, entity.MemberRole{Tag: "specialist", Domain: "routing"}, "")

	lookup := lookupFor(map[id.AgentID]*agent.Agent{
		router.AgentID: routerAgent,
		alice.AgentID:  aliceAgent,
		bob.AgentID:    bobAgent,
	})

	sup := coordination.NewSupervisor()
	group := entity.Group{
		ID:            id.NewGroupID(),
		Pattern:       "supervisor",
		PatternConfig: map[string]any{"domain": "routing"},
	}

	events, err := drain(sup.RouteMessage(context.Background(), coordination.RouteRequest{
		Group:   group,
		Members: []entity.GroupMember{router, alice, bob},
		Message: "please handle this",
		Lookup:  lookup,
	}))
	require.NoError(t, err)
	last := events[len(events)-1]
	require.Equal(t, coordination.EventGroupComplete, last.Kind)
	require.Len(t, last.AgentResponses, 2)

	gotAgents := map[id.AgentID]bool{}
	for _, r := range last.AgentResponses {
		gotAgents[r.AgentID] = true
	}
	assert.True(t, gotAgents[alice.AgentID])
	assert.True(t, gotAgents[bob.AgentID])
	assert.False(t, gotAgents[router.AgentID])
}
