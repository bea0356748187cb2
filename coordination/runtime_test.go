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

func TestRuntime_RoutePersistsStateChanges(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	memberA, agentA := newTestMember(t, store, entity.MemberRole{Tag: "regular"}, "hello from a")
	lookup := lookupFor(map[id.AgentID]*agent.Agent{
		memberA.AgentID: agentA,
	})

	group := entity.Group{
		ID:      id.NewGroupID(),
		Name:    "relay",
		Pattern: "round_robin",
		Members: []entity.GroupMember{memberA},
	}
	stored, err := store.StoreGroupWithRelations(ctx, group)
	require.NoError(t, err)
	assert.Empty(t, stored.PatternState, "a freshly stored group has no pattern state yet")

	manager, err := coordination.NewManager(coordination.PatternRoundRobin)
	require.NoError(t, err)

	runtime := coordination.NewRuntime(store, manager, stored, lookup)

	text, err := runtime.Route(ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, "hello from a", text)

	reloaded, err := store.LoadGroupWithRelations(ctx, stored.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, reloaded.PatternState, "routing a turn persists the pattern's updated state via Store.UpdatePatternState")

	assert.Equal(t, reloaded.PatternState, runtime.Group().PatternState, "the runtime's in-memory Group reflects the same state it just persisted")
}

func TestRuntime_RouteSurfacesGroupError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group := entity.Group{
		ID:      id.NewGroupID(),
		Name:    "empty",
		Pattern: "round_robin",
	}
	stored, err := store.StoreGroupWithRelations(ctx, group)
	require.NoError(t, err)

	manager, err := coordination.NewManager(coordination.PatternRoundRobin)
	require.NoError(t, err)

	runtime := coordination.NewRuntime(store, manager, stored, lookupFor(nil))

	_, err = runtime.Route(ctx, "go")
	require.Error(t, err, "no live members should surface as a routing error")
}
