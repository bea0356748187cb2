package entity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/patterncore/pattern/id"
)

// StoreAgent upserts a, stamping timestamps. It does not touch the agent's
// memory-block edges; use StoreAgentWithRelations for that.
func (s *Store) StoreAgent(ctx context.Context, a Agent) (Agent, error) {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	config, err := toJSON(a.Config)
	if err != nil {
		return Agent{}, err
	}

	const q = `INSERT INTO agents (id, user_id, kind_tag, kind_custom, name, system_prompt, config, state, cooldown_until, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind_tag=excluded.kind_tag, kind_custom=excluded.kind_custom, name=excluded.name,
			system_prompt=excluded.system_prompt, config=excluded.config, state=excluded.state,
			cooldown_until=excluded.cooldown_until, is_active=excluded.is_active, updated_at=excluded.updated_at`
	_, err = s.db.ExecContext(ctx, q,
		a.ID.String(), a.UserID.String(), a.Kind.Tag, a.Kind.Custom, a.Name, a.SystemPrompt, config,
		a.Lifecycle.State, unixOrZero(a.Lifecycle.CooldownUntil), boolToInt(a.IsActive),
		unixOrZero(a.CreatedAt), unixOrZero(a.UpdatedAt),
	)
	if err != nil {
		return Agent{}, queryFailed(Agent{}.TableName(), q, err)
	}

	s.broker.publish(ctx, Event{Op: OpUpdate, Table: Agent{}.TableName(), ID: a.ID.String(), Entity: a})
	return a, nil
}

// StoreAgentWithRelations upserts a and reconciles its has_memory edges:
// every MemoryBlockID in blockIDs is ensured reachable via an
// AgentMemoryEdge at accessLevel (created if missing, left alone if
// already present); edges for blocks not in the list are left intact,
// per the edge reconciliation rule — removal is always an explicit
// DetachRelation call.
func (s *Store) StoreAgentWithRelations(ctx context.Context, a Agent, blockIDs []id.MemoryBlockID, accessLevel Permission) (Agent, error) {
	stored, err := s.StoreAgent(ctx, a)
	if err != nil {
		return Agent{}, err
	}
	for _, blockID := range blockIDs {
		if err := s.ensureMemoryEdge(ctx, stored.ID, blockID, accessLevel); err != nil {
			return Agent{}, err
		}
	}
	return stored, nil
}

// LoadAgent fetches an Agent by ID without edges.
func (s *Store) LoadAgent(ctx context.Context, agentID id.AgentID) (Agent, error) {
	const q = `SELECT id, user_id, kind_tag, kind_custom, name, system_prompt, config, state, cooldown_until, is_active, created_at, updated_at
		FROM agents WHERE id = ?`
	row := s.db.QueryRowContext(ctx, q, agentID.String())
	return scanAgent(row, Agent{}.TableName(), agentID.String(), q)
}

// LoadAgentWithRelations fetches an Agent plus its attached MemoryBlocks
// (eager hydrate of the has_memory relation).
func (s *Store) LoadAgentWithRelations(ctx context.Context, agentID id.AgentID) (Agent, []MemoryBlock, error) {
	a, err := s.LoadAgent(ctx, agentID)
	if err != nil {
		return Agent{}, nil, err
	}
	blocks, err := s.ListMemoryBlocksForAgent(ctx, agentID)
	if err != nil {
		return Agent{}, nil, err
	}
	return a, blocks, nil
}

// ListAgentsByUser returns every Agent owned by userID.
func (s *Store) ListAgentsByUser(ctx context.Context, userID id.UserID) ([]Agent, error) {
	const q = `SELECT id, user_id, kind_tag, kind_custom, name, system_prompt, config, state, cooldown_until, is_active, created_at, updated_at
		FROM agents WHERE user_id = ? ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, q, userID.String())
	if err != nil {
		return nil, queryFailed(Agent{}.TableName(), q, err)
	}
	defer rows.Close()

	var out []Agent
	for rows.Next() {
		a, err := scanAgentRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type agentScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row *sql.Row, table, idStr, query string) (Agent, error) {
	a, err := scanAgentRows(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Agent{}, notFound(table, idStr)
		}
		return Agent{}, queryFailed(table, query, err)
	}
	return a, nil
}

func scanAgentRows(r agentScanner) (Agent, error) {
	var a Agent
	var rawID, rawUserID, config string
	var cooldownUntil, createdAt, updatedAt int64
	var isActive int
	if err := r.Scan(&rawID, &rawUserID, &a.Kind.Tag, &a.Kind.Custom, &a.Name, &a.SystemPrompt, &config,
		&a.Lifecycle.State, &cooldownUntil, &isActive, &createdAt, &updatedAt); err != nil {
		return Agent{}, err
	}

	agentID, err := id.AgentIDFromString(rawID)
	if err != nil {
		return Agent{}, serializationFailed("id.AgentID", err)
	}
	userID, err := id.UserIDFromString(rawUserID)
	if err != nil {
		return Agent{}, serializationFailed("id.UserID", err)
	}
	a.ID = agentID
	a.UserID = userID
	if err := fromJSON(config, &a.Config); err != nil {
		return Agent{}, err
	}
	a.Lifecycle.CooldownUntil = timeOrZero(cooldownUntil)
	a.IsActive = isActive != 0
	a.CreatedAt = timeOrZero(createdAt)
	a.UpdatedAt = timeOrZero(updatedAt)
	return a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
