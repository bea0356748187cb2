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

func TestPipeline_SequentialCarriesOutputForward(t *testing.T) {
	store := newTestStore(t)
	stage1, stage1Agent := newTestMember(t, store, entity.MemberRole{Tag: "regular"}, "drafted")
	stage2, stage2Agent := newTestMember(t, store, entity.MemberRole{Tag: "regular"}, "reviewed")

	lookup := lookupFor(map[id.AgentID]*agent.Agent{
		stage1.AgentID: stage1Agent,
		stage2.AgentID: stage2Agent,
	})

	pipeline := coordination.NewPipeline()
	group := entity.Group{
		ID:      id.NewGroupID(),
		Pattern: "pipeline",
		PatternConfig: map[string]any{
			"stages": []map[string]any{
				{"name": "draft", "agent_ids": []string{stage1.AgentID.String()}, "on_failure": "skip"},
				{"name": "review", "agent_ids": []string{stage2.AgentID.String()}, "on_failure": "skip"},
			},
		},
	}

	events, err := drain(pipeline.RouteMessage(context.Background(), coordination.RouteRequest{
		Group:   group,
		Members: []entity.GroupMember{stage1, stage2},
		Message: "draft a plan",
		Lookup:  lookup,
	}))
	require.NoError(t, err)
	last := events[len(events)-1]
	require.Equal(t, coordination.EventGroupComplete, last.Kind)
	require.Nil(t, last.Err)
	require.Len(t, last.AgentResponses, 2)
	assert.Equal(t, "drafted", last.AgentResponses[0].Text)
	assert.Equal(t, "reviewed", last.AgentResponses[1].Text)
}

func TestPipeline_ParallelStageAbortFailsPipeline(t *testing.T) {
	store := newTestStore(t)
	ok1, ok1Agent := newTestMember(t, store, entity.MemberRole{Tag: "regular"}, "fine")

	lookup := lookupFor(map[id.AgentID]*agent.Agent{
		ok1.AgentID: ok1Agent,
	})

	pipeline := coordination.NewPipeline()
	group := entity.Group{
		ID:      id.NewGroupID(),
		Pattern: "pipeline",
		PatternConfig: map[string]any{
			"parallel_stages": true,
			"stages": []map[string]any{
				{"name": "ok", "agent_ids": []string{ok1.AgentID.String()}, "on_failure": "skip"},
				{"name": "doomed", "agent_ids": []string{id.NewAgentID().String()}, "on_failure": "abort"},
			},
		},
	}

	events, err := drain(pipeline.RouteMessage(context.Background(), coordination.RouteRequest{
		Group:   group,
		Members: []entity.GroupMember{ok1},
		Message: "go",
		Lookup:  lookup,
	}))
	require.NoError(t, err)
	last := events[len(events)-1]
	require.Equal(t, coordination.EventGroupComplete, last.Kind)
	require.Error(t, last.Err)
	assert.False(t, last.Recoverable)
}

func TestPipeline_NoStagesErrors(t *testing.T) {
	pipeline := coordination.NewPipeline()
	events, err := drain(pipeline.RouteMessage(context.Background(), coordination.RouteRequest{
		Group:   entity.Group{ID: id.NewGroupID(), Pattern: "pipeline"},
		Message: "go",
		Lookup:  func(id.AgentID) (*agent.Agent, bool) { return nil, false },
	}))
	require.Error(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, coordination.EventGroupError, events[0].Kind)
}
