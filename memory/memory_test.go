package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/id"
	"github.com/patterncore/pattern/memory"
)

func newTestStore(t *testing.T) *entity.Store {
	t.Helper()
	s := entity.New(":memory:")
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestMemory(t *testing.T, store *entity.Store) (*memory.Memory, id.AgentID, id.UserID) {
	t.Helper()
	ctx := context.Background()
	userID := id.NewUserID()
	_, err := store.StoreUser(ctx, entity.User{ID: userID})
	require.NoError(t, err)
	agentID := id.NewAgentID()
	_, err = store.StoreAgent(ctx, entity.Agent{ID: agentID, UserID: userID, Name: "test-agent", Kind: entity.AgentKind{Tag: "specialist"}})
	require.NoError(t, err)

	m, err := memory.New(ctx, store, agentID, userID)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, agentID, userID
}

func TestCreateBlockRejectsDuplicateLabel(t *testing.T) {
	store := newTestStore(t)
	m, _, _ := newTestMemory(t, store)
	ctx := context.Background()

	_, err := m.CreateBlock(ctx, "persona", "v1", entity.MemoryBlockCore, entity.PermissionReadWrite)
	require.NoError(t, err)

	_, err = m.CreateBlock(ctx, "persona", "v2", entity.MemoryBlockCore, entity.PermissionReadWrite)
	require.Error(t, err)
	var exists *memory.BlockExistsError
	assert.ErrorAs(t, err, &exists)
}

func TestUpdateBlockValueRequiresAppendPermission(t *testing.T) {
	store := newTestStore(t)
	m, agentID, _ := newTestMemory(t, store)
	ctx := context.Background()

	block, err := m.CreateBlock(ctx, "notes", "hello", entity.MemoryBlockWorking, entity.PermissionReadWrite)
	require.NoError(t, err)

	// Narrow the agent's own edge down to Read, below the Append threshold.
	require.NoError(t, store.DetachRelation(ctx, agentID, block.ID))
	require.NoError(t, store.AttachMemoryBlock(ctx, agentID, block.ID, entity.PermissionRead))

	m2, err := memory.New(ctx, store, agentID, id.UserID{})
	require.NoError(t, err)
	defer m2.Close()

	_, err = m2.UpdateBlockValue(ctx, "notes", "world")
	require.Error(t, err)
	var denied *memory.PermissionDeniedError
	assert.ErrorAs(t, err, &denied)
}

func TestAlterBlockPersistsAndUpdatesCache(t *testing.T) {
	store := newTestStore(t)
	m, _, _ := newTestMemory(t, store)
	ctx := context.Background()

	_, err := m.CreateBlock(ctx, "counter", "0", entity.MemoryBlockWorking, entity.PermissionReadWrite)
	require.NoError(t, err)

	updated, err := m.AlterBlock(ctx, "counter", func(b entity.MemoryBlock) (entity.MemoryBlock, error) {
		b.Value = "1"
		return b, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "1", updated.Value)

	cached, ok := m.GetBlock("counter")
	require.True(t, ok)
	assert.Equal(t, "1", cached.Value)
}

func TestRemoveBlockRequiresAdminPermission(t *testing.T) {
	store := newTestStore(t)
	m, _, _ := newTestMemory(t, store)
	ctx := context.Background()

	_, err := m.CreateBlock(ctx, "scratch", "x", entity.MemoryBlockWorking, entity.PermissionAdmin)
	require.NoError(t, err)

	require.NoError(t, m.RemoveBlock(ctx, "scratch"))
	_, ok := m.GetBlock("scratch")
	assert.False(t, ok)
}

func TestGetBlockMutRunsUnderExclusiveAccess(t *testing.T) {
	store := newTestStore(t)
	m, _, _ := newTestMemory(t, store)
	ctx := context.Background()

	_, err := m.CreateBlock(ctx, "persona", "v1", entity.MemoryBlockCore, entity.PermissionReadWrite)
	require.NoError(t, err)

	var seen string
	err = m.GetBlockMut("persona", func(b *entity.MemoryBlock) {
		seen = b.Value
		b.Value = "touched"
	})
	require.NoError(t, err)
	assert.Equal(t, "v1", seen)

	cached, _ := m.GetBlock("persona")
	assert.Equal(t, "touched", cached.Value)
}

func TestListBlocksReturnsSnapshot(t *testing.T) {
	store := newTestStore(t)
	m, _, _ := newTestMemory(t, store)
	ctx := context.Background()

	_, err := m.CreateBlock(ctx, "a", "1", entity.MemoryBlockCore, entity.PermissionReadWrite)
	require.NoError(t, err)
	_, err = m.CreateBlock(ctx, "b", "2", entity.MemoryBlockCore, entity.PermissionReadWrite)
	require.NoError(t, err)

	blocks := m.ListBlocks()
	assert.Len(t, blocks, 2)
}
