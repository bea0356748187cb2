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

func TestRoundRobin_AdvancesThroughMembers(t *testing.T) {
	store := newTestStore(t)
	m1, a1 := newTestMember(t, store, entity.MemberRole{Tag: "regular"}, "from one")
	m2, a2 := newTestMember(t, store, entity.MemberRole{Tag: "regular"}, "from two")

	lookup := lookupFor(map[id.AgentID]*agent.Agent{m1.AgentID: a1, m2.AgentID: a2})
	members := []entity.GroupMember{m1, m2}
	group := entity.Group{ID: id.NewGroupID(), Pattern: "round_robin"}

	rr := coordination.NewRoundRobin()

	events, err := drain(rr.RouteMessage(context.Background(), coordination.RouteRequest{
		Group: group, Members: members, Message: "hello", Lookup: lookup,
	}))
	require.NoError(t, err)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.Equal(t, coordination.EventGroupComplete, last.Kind)
	require.Len(t, last.AgentResponses, 1)
	assert.Equal(t, m1.AgentID, last.AgentResponses[0].AgentID)
	assert.Equal(t, "from one", last.AgentResponses[0].Text)

	next, changed := rr.UpdateState(group.PatternState, last.AgentResponses)
	require.True(t, changed)
	group.PatternState = next

	events2, err := drain(rr.RouteMessage(context.Background(), coordination.RouteRequest{
		Group: group, Members: members, Message: "hello again", Lookup: lookup,
	}))
	require.NoError(t, err)
	last2 := events2[len(events2)-1]
	require.Len(t, last2.AgentResponses, 1)
	assert.Equal(t, m2.AgentID, last2.AgentResponses[0].AgentID)
}

func TestRoundRobin_NoLiveMembersErrors(t *testing.T) {
	rr := coordination.NewRoundRobin()
	lookup := func(id.AgentID) (*agent.Agent, bool) { return nil, false }

	events, err := drain(rr.RouteMessage(context.Background(), coordination.RouteRequest{
		Group:   entity.Group{ID: id.NewGroupID(), Pattern: "round_robin"},
		Members: []entity.GroupMember{{AgentID: id.NewAgentID()}},
		Message: "hi",
		Lookup:  lookup,
	}))
	require.Error(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, coordination.EventGroupError, events[0].Kind)
}
