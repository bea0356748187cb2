package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/id"
	"github.com/patterncore/pattern/observability"
)

// Memory is a concurrent map from label to entity.MemoryBlock, private to
// one agent. All mutation operations consult the agent's effective
// permission (entity.EffectivePermission) on the target block before
// writing.
type Memory struct {
	mu      sync.RWMutex
	agentID id.AgentID
	userID  id.UserID
	store   *entity.Store
	logger  *slog.Logger

	blocks map[string]entity.MemoryBlock // label -> block
	byID   map[id.MemoryBlockID]string   // block ID -> label, for event routing
	edges  map[id.MemoryBlockID]entity.AgentMemoryEdge

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Memory at construction time.
type Option func(*Memory)

// WithLogger overrides the default observability logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Memory) { m.logger = l }
}

// New loads every MemoryBlock reachable from agentID via a has_memory edge
// and starts a background goroutine that keeps the cache current against
// further writes (invariant: bounded-time reachability of store changes).
func New(ctx context.Context, store *entity.Store, agentID id.AgentID, userID id.UserID, opts ...Option) (*Memory, error) {
	m := &Memory{
		agentID: agentID,
		userID:  userID,
		store:   store,
		logger:  observability.GetLogger(),
		blocks:  make(map[string]entity.MemoryBlock),
		byID:    make(map[id.MemoryBlockID]string),
		edges:   make(map[id.MemoryBlockID]entity.AgentMemoryEdge),
	}
	for _, opt := range opts {
		opt(m)
	}

	blocks, err := store.ListMemoryBlocksForAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	for _, b := range blocks {
		edge, ok, err := store.EdgeFor(ctx, agentID, b.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		m.blocks[b.Label] = b
		m.byID[b.ID] = b.Label
		m.edges[b.ID] = edge
	}

	syncCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	blockEvents, unsubBlocks := store.Subscribe(entity.MemoryBlock{}.TableName())
	edgeEvents, unsubEdges := store.Subscribe(entity.AgentMemoryEdge{}.TableName())
	go m.syncLoop(syncCtx, blockEvents, edgeEvents, unsubBlocks, unsubEdges)

	return m, nil
}

// Store returns the underlying entity.Store, for callers (built-in tools)
// that need entities Memory does not cache, such as message history.
func (m *Memory) Store() *entity.Store {
	return m.store
}

// AgentID returns the agent this Memory is private to.
func (m *Memory) AgentID() id.AgentID {
	return m.agentID
}

// UserID returns the owning user of this Memory's blocks.
func (m *Memory) UserID() id.UserID {
	return m.userID
}

// Close stops the cache-sync goroutine. It does not touch persistent state.
func (m *Memory) Close() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
}

func (m *Memory) syncLoop(ctx context.Context, blockEvents, edgeEvents <-chan entity.Event, unsubBlocks, unsubEdges func()) {
	defer close(m.done)
	defer unsubBlocks()
	defer unsubEdges()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-blockEvents:
			if !ok {
				return
			}
			m.applyBlockEvent(ctx, ev)
		case ev, ok := <-edgeEvents:
			if !ok {
				return
			}
			m.applyEdgeEvent(ctx, ev)
		}
	}
}

// applyBlockEvent upserts or removes a cached block by label, the
// cache-sync rule for shared blocks. Two agents sharing a block may
// observe reordering between unrelated blocks, never within the same
// label.
func (m *Memory) applyBlockEvent(ctx context.Context, ev entity.Event) {
	blockID, err := id.MemoryBlockIDFromString(ev.ID)
	if err != nil {
		m.logger.Warn("memory: malformed block event id", "id", ev.ID, "error", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if ev.Op == entity.OpDelete {
		if label, ok := m.byID[blockID]; ok {
			delete(m.blocks, label)
			delete(m.byID, blockID)
			delete(m.edges, blockID)
		}
		return
	}

	// Only track blocks this agent still has a has_memory edge to.
	if _, attached := m.edges[blockID]; !attached {
		edge, ok, err := m.store.EdgeFor(ctx, m.agentID, blockID)
		if err != nil || !ok {
			return
		}
		m.edges[blockID] = edge
	}

	block, ok := ev.Entity.(entity.MemoryBlock)
	if !ok {
		return
	}
	if old, exists := m.byID[block.ID]; exists && old != block.Label {
		delete(m.blocks, old)
	}
	m.blocks[block.Label] = block
	m.byID[block.ID] = block.Label
}

func (m *Memory) applyEdgeEvent(ctx context.Context, ev entity.Event) {
	parts := splitEdgeID(ev.ID)
	if parts.agentID != m.agentID.String() {
		return
	}
	blockID, err := id.MemoryBlockIDFromString(parts.blockID)
	if err != nil {
		return
	}

	if ev.Op == entity.OpDelete {
		m.mu.Lock()
		if label, ok := m.byID[blockID]; ok {
			delete(m.blocks, label)
			delete(m.byID, blockID)
		}
		delete(m.edges, blockID)
		m.mu.Unlock()
		return
	}

	// A newly created edge: pull the edge and block so the cache reflects
	// the agent's newly gained access without waiting for a block write.
	edge, ok, err := m.store.EdgeFor(ctx, m.agentID, blockID)
	if err != nil || !ok {
		return
	}
	block, err := m.store.LoadMemoryBlock(ctx, blockID)
	if err != nil {
		return
	}

	m.mu.Lock()
	m.edges[blockID] = edge
	m.blocks[block.Label] = block
	m.byID[block.ID] = block.Label
	m.mu.Unlock()
}

type edgeIDParts struct {
	agentID string
	blockID string
}

// splitEdgeID parses the "agentID:blockID" composite used by
// AttachMemoryBlock/DetachRelation's published Event.ID.
func splitEdgeID(s string) edgeIDParts {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return edgeIDParts{agentID: s[:i], blockID: s[i+1:]}
		}
	}
	return edgeIDParts{}
}

// effectivePermission returns the agent's effective permission on label,
// or false if the agent has no edge to that block.
func (m *Memory) effectivePermission(label string) (entity.Permission, bool) {
	block, ok := m.blocks[label]
	if !ok {
		return 0, false
	}
	edge, ok := m.edges[block.ID]
	if !ok {
		return 0, false
	}
	return entity.EffectivePermission(block, edge), true
}

func (m *Memory) checkPermission(label string, required entity.Permission) error {
	perm, ok := m.effectivePermission(label)
	if !ok {
		return &BlockNotFoundError{Label: label}
	}
	if perm < required {
		return &PermissionDeniedError{Label: label, Required: required.String(), Effective: perm.String()}
	}
	return nil
}

// CreateBlock stores a new MemoryBlock under label, owned by the agent's
// user, and attaches it to the agent with Admin access. Returns
// *BlockExistsError if label is already cached.
func (m *Memory) CreateBlock(ctx context.Context, label, value string, blockType entity.MemoryBlockType, permission entity.Permission) (entity.MemoryBlock, error) {
	m.mu.Lock()
	if _, exists := m.blocks[label]; exists {
		m.mu.Unlock()
		return entity.MemoryBlock{}, &BlockExistsError{Label: label}
	}
	m.mu.Unlock()

	block := entity.MemoryBlock{
		ID:         id.NewMemoryBlockID(),
		UserID:     m.userID,
		Label:      label,
		Value:      value,
		Type:       blockType,
		Permission: permission,
		IsActive:   true,
	}
	block, err := m.store.StoreMemoryBlock(ctx, block)
	if err != nil {
		return entity.MemoryBlock{}, err
	}
	if err := m.store.AttachMemoryBlock(ctx, m.agentID, block.ID, entity.PermissionAdmin); err != nil {
		return entity.MemoryBlock{}, err
	}

	m.mu.Lock()
	m.blocks[label] = block
	m.byID[block.ID] = label
	m.edges[block.ID] = entity.AgentMemoryEdge{AgentID: m.agentID, MemoryBlockID: block.ID, AccessLevel: entity.PermissionAdmin}
	m.mu.Unlock()

	return block, nil
}

// GetBlock returns a copy of the cached block under label.
func (m *Memory) GetBlock(label string) (entity.MemoryBlock, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blocks[label]
	return b, ok
}

// GetBlockMut runs fn with exclusive access to the block under label,
// allowing in-place inspection and mutation under a single write lock.
// Changes fn makes reach only the cache and are not persisted; callers
// that need persistence should use AlterBlock instead. Requires Read
// permission.
func (m *Memory) GetBlockMut(label string, fn func(*entity.MemoryBlock)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	perm, ok := m.effectivePermission(label)
	if !ok {
		return &BlockNotFoundError{Label: label}
	}
	if perm < entity.PermissionRead {
		return &PermissionDeniedError{Label: label, Required: entity.PermissionRead.String(), Effective: perm.String()}
	}

	block := m.blocks[label]
	fn(&block)
	m.blocks[label] = block
	return nil
}

// ListBlocks returns a snapshot of every cached block.
func (m *Memory) ListBlocks() []entity.MemoryBlock {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]entity.MemoryBlock, 0, len(m.blocks))
	for _, b := range m.blocks {
		out = append(out, b)
	}
	return out
}

// UpdateBlockValue atomically replaces the value of label and persists it.
// Requires Append permission (invariant: appending/replacing the value is
// the minimum-privilege write operation).
func (m *Memory) UpdateBlockValue(ctx context.Context, label, newValue string) (entity.MemoryBlock, error) {
	return m.alter(ctx, label, entity.PermissionAppend, func(b entity.MemoryBlock) (entity.MemoryBlock, error) {
		b.Value = newValue
		return b, nil
	})
}

// AlterBlock atomically replaces the whole block under label with fn's
// output and persists it, used by tools that must check invariants under
// the write lock. Requires ReadWrite permission.
func (m *Memory) AlterBlock(ctx context.Context, label string, fn func(entity.MemoryBlock) (entity.MemoryBlock, error)) (entity.MemoryBlock, error) {
	return m.alter(ctx, label, entity.PermissionReadWrite, fn)
}

func (m *Memory) alter(ctx context.Context, label string, required entity.Permission, fn func(entity.MemoryBlock) (entity.MemoryBlock, error)) (entity.MemoryBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkPermission(label, required); err != nil {
		return entity.MemoryBlock{}, err
	}
	current := m.blocks[label]

	updated, err := fn(current)
	if err != nil {
		return entity.MemoryBlock{}, err
	}
	updated.ID = current.ID
	updated.UserID = current.UserID
	updated.Label = current.Label

	stored, err := m.store.StoreMemoryBlock(ctx, updated)
	if err != nil {
		return entity.MemoryBlock{}, err
	}

	m.blocks[label] = stored
	return stored, nil
}

// RemoveBlock deletes the block under label, requiring Admin permission.
func (m *Memory) RemoveBlock(ctx context.Context, label string) error {
	m.mu.Lock()
	if err := m.checkPermission(label, entity.PermissionAdmin); err != nil {
		m.mu.Unlock()
		return err
	}
	block := m.blocks[label]
	m.mu.Unlock()

	if err := m.store.DeleteMemoryBlock(ctx, block.ID); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.blocks, label)
	delete(m.byID, block.ID)
	delete(m.edges, block.ID)
	m.mu.Unlock()
	return nil
}
