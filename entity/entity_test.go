package entity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/id"
)

func newTestStore(t *testing.T) *entity.Store {
	t.Helper()
	s := entity.New(":memory:")
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUserStoreLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := entity.User{ID: id.NewUserID(), Settings: map[string]any{"theme": "dark"}}
	stored, err := s.StoreUser(ctx, u)
	require.NoError(t, err)

	loaded, err := s.LoadUser(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "dark", loaded.Settings["theme"])
	assert.False(t, loaded.CreatedAt.IsZero())
}

func TestLoadUserNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadUser(context.Background(), id.NewUserID())
	require.Error(t, err)
	var nf *entity.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestEffectivePermissionNeverExceedsBlock(t *testing.T) {
	block := entity.MemoryBlock{Permission: entity.PermissionAppend}
	edge := entity.AgentMemoryEdge{AccessLevel: entity.PermissionAdmin}
	assert.Equal(t, entity.PermissionAppend, entity.EffectivePermission(block, edge))

	edge.AccessLevel = entity.PermissionRead
	assert.Equal(t, entity.PermissionRead, entity.EffectivePermission(block, edge))
}

func TestAttachMemoryBlockReachability(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.StoreUser(ctx, entity.User{ID: id.NewUserID()})
	require.NoError(t, err)
	agent, err := s.StoreAgent(ctx, entity.Agent{ID: id.NewAgentID(), UserID: user.ID, Name: "assistant"})
	require.NoError(t, err)
	block, err := s.StoreMemoryBlock(ctx, entity.MemoryBlock{
		ID: id.NewMemoryBlockID(), UserID: user.ID, Label: "persona", Value: "helpful",
		Permission: entity.PermissionReadWrite, IsActive: true,
	})
	require.NoError(t, err)

	blocks, err := s.ListMemoryBlocksForAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Empty(t, blocks, "unreachable until an edge exists")

	require.NoError(t, s.AttachMemoryBlock(ctx, agent.ID, block.ID, entity.PermissionReadWrite))

	blocks, err = s.ListMemoryBlocksForAgent(ctx, agent.ID)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, block.ID, blocks[0].ID)

	require.NoError(t, s.DetachRelation(ctx, agent.ID, block.ID))
	blocks, err = s.ListMemoryBlocksForAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Empty(t, blocks, "detach hides the block again")
}

func TestEnsureMemoryEdgeIsIdempotentAndDoesNotDiffDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, _ := s.StoreUser(ctx, entity.User{ID: id.NewUserID()})
	agent, _ := s.StoreAgent(ctx, entity.Agent{ID: id.NewAgentID(), UserID: user.ID})
	blockA, _ := s.StoreMemoryBlock(ctx, entity.MemoryBlock{ID: id.NewMemoryBlockID(), UserID: user.ID, Label: "a", IsActive: true})
	blockB, _ := s.StoreMemoryBlock(ctx, entity.MemoryBlock{ID: id.NewMemoryBlockID(), UserID: user.ID, Label: "b", IsActive: true})

	require.NoError(t, s.AttachMemoryBlock(ctx, agent.ID, blockA.ID, entity.PermissionRead))
	require.NoError(t, s.AttachMemoryBlock(ctx, agent.ID, blockB.ID, entity.PermissionRead))

	// Reconciling with only blockA present must not remove the blockB edge:
	// StoreAgentWithRelations only ensures, never diff-deletes.
	_, err := s.StoreAgentWithRelations(ctx, agent, []id.MemoryBlockID{blockA.ID}, entity.PermissionRead)
	require.NoError(t, err)

	blocks, err := s.ListMemoryBlocksForAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Len(t, blocks, 2)
}

func TestAppendMessagePositionIsMonotone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, _ := s.StoreUser(ctx, entity.User{ID: id.NewUserID()})
	agent, _ := s.StoreAgent(ctx, entity.Agent{ID: id.NewAgentID(), UserID: user.ID})
	batch := id.NewSessionID()

	var last int64 = -1
	for i := 0; i < 5; i++ {
		m, err := s.AppendMessage(ctx, entity.Message{
			ID: id.NewMessageID(), AgentID: agent.ID, Role: entity.RoleUser,
			Content: entity.MessageContent{Kind: "text", Text: "hi"}, Batch: batch, SequenceNum: i,
		})
		require.NoError(t, err)
		assert.Greater(t, m.Position, last)
		last = m.Position
	}

	msgs, err := s.ListMessages(ctx, entity.MessageFilter{AgentID: agent.ID})
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i := 1; i < len(msgs); i++ {
		assert.Greater(t, msgs[i].Position, msgs[i-1].Position)
	}
}

func TestSubscribePublishesStoreWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	events, cancel := s.Subscribe(entity.User{}.TableName())
	defer cancel()

	u := entity.User{ID: id.NewUserID()}
	_, err := s.StoreUser(ctx, u)
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, entity.OpUpdate, ev.Op)
		assert.Equal(t, u.ID.String(), ev.ID)
	case <-time.After(time.Second):
		t.Fatal("expected a published event")
	}
}

func TestGroupMembershipReconciliation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, _ := s.StoreUser(ctx, entity.User{ID: id.NewUserID()})
	agent, _ := s.StoreAgent(ctx, entity.Agent{ID: id.NewAgentID(), UserID: user.ID})

	g := entity.Group{
		ID: id.NewGroupID(), Name: "triage", Pattern: "round_robin",
		Members: []entity.GroupMember{{AgentID: agent.ID, Role: entity.MemberRole{Tag: "regular"}, IsActive: true}},
	}
	stored, err := s.StoreGroupWithRelations(ctx, g)
	require.NoError(t, err)

	loaded, err := s.LoadGroupWithRelations(ctx, stored.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Members, 1)
	assert.Equal(t, agent.ID, loaded.Members[0].AgentID)
	assert.True(t, loaded.Members[0].Role.CanSelfSelect())
}

func TestEdgeForDistinguishesAbsenceFromEdge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, _ := s.StoreUser(ctx, entity.User{ID: id.NewUserID()})
	agent, _ := s.StoreAgent(ctx, entity.Agent{ID: id.NewAgentID(), UserID: user.ID})
	block, _ := s.StoreMemoryBlock(ctx, entity.MemoryBlock{ID: id.NewMemoryBlockID(), UserID: user.ID, Label: "a"})

	_, ok, err := s.EdgeFor(ctx, agent.ID, block.ID)
	require.NoError(t, err)
	assert.False(t, ok, "no edge has been attached yet")

	require.NoError(t, s.AttachMemoryBlock(ctx, agent.ID, block.ID, entity.PermissionRead))

	edge, ok, err := s.EdgeFor(ctx, agent.ID, block.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entity.PermissionRead, edge.AccessLevel)
}

func TestRoutingSpecialistCannotSelfSelect(t *testing.T) {
	role := entity.MemberRole{Tag: "specialist", Domain: "routing"}
	assert.False(t, role.CanSelfSelect())

	other := entity.MemberRole{Tag: "specialist", Domain: "billing"}
	assert.True(t, other.CanSelfSelect())
}
