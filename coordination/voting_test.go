package coordination_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patterncore/pattern/agent"
	"github.com/patterncore/pattern/coordination"
	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/id"
)

func TestVoting_OpensSessionOnFirstTurn(t *testing.T) {
	store := newTestStore(t)
	m1, a1 := newTestMember(t, store, entity.MemberRole{Tag: "regular"}, "vote: approve")
	m2, a2 := newTestMember(t, store, entity.MemberRole{Tag: "regular"}, "vote: approve")
	lookup := lookupFor(map[id.AgentID]*agent.Agent{m1.AgentID: a1, m2.AgentID: a2})

	voting := coordination.NewVoting()
	group := entity.Group{
		ID:            id.NewGroupID(),
		Pattern:       "voting",
		PatternConfig: map[string]any{"quorum": float64(2)},
	}

	events, err := drain(voting.RouteMessage(context.Background(), coordination.RouteRequest{
		Group: group, Members: []entity.GroupMember{m1, m2}, Message: "should we ship?", Lookup: lookup,
	}))
	require.NoError(t, err)
	last := events[len(events)-1]
	require.Equal(t, coordination.EventGroupComplete, last.Kind)
	require.NotNil(t, last.StateChanges)

	session, ok := last.StateChanges["session"]
	require.True(t, ok)
	assert.NotNil(t, session)
}

func TestVoting_TalliesAtQuorum(t *testing.T) {
	store := newTestStore(t)
	m1, a1 := newTestMember(t, store, entity.MemberRole{Tag: "regular"}, "vote: approve")
	m2, a2 := newTestMember(t, store, entity.MemberRole{Tag: "regular"}, "vote: approve")
	lookup := lookupFor(map[id.AgentID]*agent.Agent{m1.AgentID: a1, m2.AgentID: a2})

	voting := coordination.NewVoting()
	group := entity.Group{
		ID:            id.NewGroupID(),
		Pattern:       "voting",
		PatternConfig: map[string]any{"quorum": float64(2)},
	}
	members := []entity.GroupMember{m1, m2}

	opened, err := drain(voting.RouteMessage(context.Background(), coordination.RouteRequest{
		Group: group, Members: members, Message: "should we ship?", Lookup: lookup,
	}))
	require.NoError(t, err)
	group.PatternState = opened[len(opened)-1].StateChanges

	closed, err := drain(voting.RouteMessage(context.Background(), coordination.RouteRequest{
		Group: group, Members: members, Message: "cast your vote", Lookup: lookup,
	}))
	require.NoError(t, err)
	last := closed[len(closed)-1]
	require.Equal(t, coordination.EventGroupComplete, last.Kind)
	assert.Contains(t, last.Text, `winner="approve"`)

	session, ok := last.StateChanges["session"]
	require.True(t, ok)
	assert.Nil(t, session)
}

func TestVoting_TimeoutBelowQuorumReturnsNoDecision(t *testing.T) {
	store := newTestStore(t)
	m1, a1 := newTestMember(t, store, entity.MemberRole{Tag: "regular"}, "vote: approve")
	lookup := lookupFor(map[id.AgentID]*agent.Agent{m1.AgentID: a1})

	voting := coordination.NewVoting()
	group := entity.Group{
		ID:      id.NewGroupID(),
		Pattern: "voting",
		PatternConfig: map[string]any{
			"quorum":       float64(2), // unreachable with a single live member
			"voting_rules": map[string]any{"voting_timeout": (20 * time.Millisecond).String()},
		},
	}
	members := []entity.GroupMember{m1}

	opened, err := drain(voting.RouteMessage(context.Background(), coordination.RouteRequest{
		Group: group, Members: members, Message: "should we ship?", Lookup: lookup,
	}))
	require.NoError(t, err)
	group.PatternState = opened[len(opened)-1].StateChanges

	time.Sleep(30 * time.Millisecond)

	closed, err := drain(voting.RouteMessage(context.Background(), coordination.RouteRequest{
		Group: group, Members: members, Message: "cast your vote", Lookup: lookup,
	}))
	require.NoError(t, err)
	last := closed[len(closed)-1]
	require.Equal(t, coordination.EventGroupComplete, last.Kind)
	assert.Contains(t, last.Text, `no_decision=true`)
	assert.Contains(t, last.Text, `winner=""`)

	session, ok := last.StateChanges["session"]
	require.True(t, ok)
	assert.Nil(t, session)
}

func TestVoting_TimeoutBelowQuorumTalliesWhenAllowed(t *testing.T) {
	store := newTestStore(t)
	m1, a1 := newTestMember(t, store, entity.MemberRole{Tag: "regular"}, "vote: approve")
	lookup := lookupFor(map[id.AgentID]*agent.Agent{m1.AgentID: a1})

	voting := coordination.NewVoting()
	group := entity.Group{
		ID:      id.NewGroupID(),
		Pattern: "voting",
		PatternConfig: map[string]any{
			"quorum": float64(2), // unreachable with a single live member
			"voting_rules": map[string]any{
				"voting_timeout":                (20 * time.Millisecond).String(),
				"allow_below_quorum_on_timeout": true,
			},
		},
	}
	members := []entity.GroupMember{m1}

	opened, err := drain(voting.RouteMessage(context.Background(), coordination.RouteRequest{
		Group: group, Members: members, Message: "should we ship?", Lookup: lookup,
	}))
	require.NoError(t, err)
	group.PatternState = opened[len(opened)-1].StateChanges

	time.Sleep(30 * time.Millisecond)

	closed, err := drain(voting.RouteMessage(context.Background(), coordination.RouteRequest{
		Group: group, Members: members, Message: "cast your vote", Lookup: lookup,
	}))
	require.NoError(t, err)
	last := closed[len(closed)-1]
	require.Equal(t, coordination.EventGroupComplete, last.Kind)
	assert.Contains(t, last.Text, `winner="approve"`)
	assert.Contains(t, last.Text, `no_decision=false`)
}
