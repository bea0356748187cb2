package entity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/patterncore/pattern/id"
)

// ensureMemoryEdge implements the "many" half of the edge reconciliation
// rule for Agent.has_memory: it creates the edge if absent and otherwise
// leaves it untouched (it does not widen or narrow an existing edge's
// AccessLevel — re-attaching at a different level requires an explicit
// DetachRelation followed by a fresh attach).
func (s *Store) ensureMemoryEdge(ctx context.Context, agentID id.AgentID, blockID id.MemoryBlockID, accessLevel Permission) error {
	const q = `INSERT INTO agent_memory_edges (agent_id, memory_block_id, access_level, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(agent_id, memory_block_id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, q, agentID.String(), blockID.String(), accessLevel.String(), time.Now().UTC().Unix()); err != nil {
		return queryFailed(AgentMemoryEdge{}.TableName(), q, err)
	}
	return nil
}

// AttachMemoryBlock is the public, explicit form of ensureMemoryEdge for
// callers (e.g. tools) that attach one block at a time rather than
// through StoreAgentWithRelations.
func (s *Store) AttachMemoryBlock(ctx context.Context, agentID id.AgentID, blockID id.MemoryBlockID, accessLevel Permission) error {
	if err := s.ensureMemoryEdge(ctx, agentID, blockID, accessLevel); err != nil {
		return err
	}
	s.broker.publish(ctx, Event{Op: OpCreate, Table: AgentMemoryEdge{}.TableName(), ID: agentID.String() + ":" + blockID.String()})
	return nil
}

// DetachRelation removes the has_memory edge between agentID and blockID.
// This is the only deletion path for the relation — deletions are
// explicit via this separate detach API, StoreAgentWithRelations never
// removes an edge on its own.
func (s *Store) DetachRelation(ctx context.Context, agentID id.AgentID, blockID id.MemoryBlockID) error {
	const q = `DELETE FROM agent_memory_edges WHERE agent_id = ? AND memory_block_id = ?`
	if _, err := s.db.ExecContext(ctx, q, agentID.String(), blockID.String()); err != nil {
		return queryFailed(AgentMemoryEdge{}.TableName(), q, err)
	}
	s.broker.publish(ctx, Event{Op: OpDelete, Table: AgentMemoryEdge{}.TableName(), ID: agentID.String() + ":" + blockID.String()})
	return nil
}

// ListMemoryBlocksForAgent returns every active MemoryBlock reachable from
// agentID via a has_memory edge: reachability is defined by edge
// existence, and blocks with IsActive false are left out.
func (s *Store) ListMemoryBlocksForAgent(ctx context.Context, agentID id.AgentID) ([]MemoryBlock, error) {
	const q = `SELECT b.id, b.user_id, b.label, b.value, b.description, b.block_type, b.permission, b.embedding, b.embedding_model, b.metadata, b.is_active, b.created_at, b.updated_at
		FROM memory_blocks b
		JOIN agent_memory_edges e ON e.memory_block_id = b.id
		WHERE e.agent_id = ? AND b.is_active = 1`
	rows, err := s.db.QueryContext(ctx, q, agentID.String())
	if err != nil {
		return nil, queryFailed(MemoryBlock{}.TableName(), q, err)
	}
	defer rows.Close()

	var out []MemoryBlock
	for rows.Next() {
		b, err := scanMemoryBlockRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// EdgeFor returns the AgentMemoryEdge between agentID and blockID, if any.
func (s *Store) EdgeFor(ctx context.Context, agentID id.AgentID, blockID id.MemoryBlockID) (AgentMemoryEdge, bool, error) {
	const q = `SELECT agent_id, memory_block_id, access_level, created_at FROM agent_memory_edges WHERE agent_id = ? AND memory_block_id = ?`
	row := s.db.QueryRowContext(ctx, q, agentID.String(), blockID.String())

	var rawAgent, rawBlock, accessLevel string
	var createdAt int64
	if err := row.Scan(&rawAgent, &rawBlock, &accessLevel, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AgentMemoryEdge{}, false, nil
		}
		return AgentMemoryEdge{}, false, queryFailed(AgentMemoryEdge{}.TableName(), q, err)
	}

	aID, err := id.AgentIDFromString(rawAgent)
	if err != nil {
		return AgentMemoryEdge{}, false, serializationFailed("id.AgentID", err)
	}
	bID, err := id.MemoryBlockIDFromString(rawBlock)
	if err != nil {
		return AgentMemoryEdge{}, false, serializationFailed("id.MemoryBlockID", err)
	}
	perm, _ := ParsePermission(accessLevel)
	return AgentMemoryEdge{AgentID: aID, MemoryBlockID: bID, AccessLevel: perm, CreatedAt: timeOrZero(createdAt)}, true, nil
}
