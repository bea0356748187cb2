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

func TestSleeptime_FiresTimeElapsedTrigger(t *testing.T) {
	store := newTestStore(t)
	member, memberAgent := newTestMember(t, store, entity.MemberRole{Tag: "regular"}, "checked in")
	lookup := lookupFor(map[id.AgentID]*agent.Agent{member.AgentID: memberAgent})

	sleeptime := coordination.NewSleeptime()
	group := entity.Group{
		ID:      id.NewGroupID(),
		Pattern: "sleeptime",
		PatternConfig: map[string]any{
			"triggers": []map[string]any{
				{
					"name":     "idle-check",
					"priority": float64(coordination.PriorityHigh),
					"condition": map[string]any{
						"kind":     "time_elapsed",
						"duration": float64(time.Minute),
					},
				},
			},
		},
	}

	events, err := drain(sleeptime.RouteMessage(context.Background(), coordination.RouteRequest{
		Group:   group,
		Members: []entity.GroupMember{member},
		Message: "tick",
		Lookup:  lookup,
	}))
	require.NoError(t, err)
	last := events[len(events)-1]
	require.Equal(t, coordination.EventGroupComplete, last.Kind)
	require.Len(t, last.AgentResponses, 1)
	assert.Equal(t, "checked in", last.AgentResponses[0].Text)

	lastCheck, ok := last.StateChanges["last_check"]
	require.True(t, ok)
	assert.NotEmpty(t, lastCheck)
}

func TestSleeptime_NoTriggersConfiguredIsInert(t *testing.T) {
	store := newTestStore(t)
	member, memberAgent := newTestMember(t, store, entity.MemberRole{Tag: "regular"}, "checked in")
	lookup := lookupFor(map[id.AgentID]*agent.Agent{member.AgentID: memberAgent})

	sleeptime := coordination.NewSleeptime()
	group := entity.Group{ID: id.NewGroupID(), Pattern: "sleeptime"}

	events, err := drain(sleeptime.RouteMessage(context.Background(), coordination.RouteRequest{
		Group:   group,
		Members: []entity.GroupMember{member},
		Message: "tick",
		Lookup:  lookup,
	}))
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Empty(t, last.AgentResponses)
}
