package entity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/patterncore/pattern/id"
)

// StoreGroup upserts g's own fields but not its membership list; use
// StoreGroupWithRelations to also reconcile members.
func (s *Store) StoreGroup(ctx context.Context, g Group) (Group, error) {
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now

	cfg, err := toJSON(g.PatternConfig)
	if err != nil {
		return Group{}, err
	}
	state, err := toJSON(g.PatternState)
	if err != nil {
		return Group{}, err
	}

	const q = `INSERT INTO groups (id, name, description, pattern, pattern_config, pattern_state, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, description=excluded.description, pattern=excluded.pattern,
			pattern_config=excluded.pattern_config, pattern_state=excluded.pattern_state,
			is_active=excluded.is_active, updated_at=excluded.updated_at`
	_, err = s.db.ExecContext(ctx, q, g.ID.String(), g.Name, g.Description, g.Pattern, cfg, state,
		boolToInt(g.IsActive), unixOrZero(g.CreatedAt), unixOrZero(g.UpdatedAt))
	if err != nil {
		return Group{}, queryFailed(Group{}.TableName(), q, err)
	}

	s.broker.publish(ctx, Event{Op: OpUpdate, Table: Group{}.TableName(), ID: g.ID.String(), Entity: g})
	return g, nil
}

// StoreGroupWithRelations upserts g and ensures every member in g.Members
// has a corresponding group_members row (created if missing; existing
// rows are left with their current Role/IsActive/Capabilities — callers
// that need to change a member's role do so via UpdateMember, mirroring
// the edge reconciliation rule applied to group membership).
func (s *Store) StoreGroupWithRelations(ctx context.Context, g Group) (Group, error) {
	stored, err := s.StoreGroup(ctx, g)
	if err != nil {
		return Group{}, err
	}
	for _, m := range g.Members {
		if err := s.ensureMember(ctx, stored.ID, m); err != nil {
			return Group{}, err
		}
	}
	return stored, nil
}

func (s *Store) ensureMember(ctx context.Context, groupID id.GroupID, m GroupMember) error {
	caps, err := toJSON(m.Capabilities)
	if err != nil {
		return err
	}
	const q = `INSERT INTO group_members (group_id, agent_id, role_tag, role_domain, joined_at, is_active, capabilities)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(group_id, agent_id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, q, groupID.String(), m.AgentID.String(), m.Role.Tag, m.Role.Domain,
		unixOrZero(m.JoinedAt), boolToInt(m.IsActive), caps); err != nil {
		return queryFailed("group_members", q, err)
	}
	return nil
}

// UpdateMember replaces an existing member's mutable fields in place
// (role, active flag, capabilities) — the explicit path for membership
// changes that ensureMember's idempotent insert does not cover.
func (s *Store) UpdateMember(ctx context.Context, groupID id.GroupID, m GroupMember) error {
	caps, err := toJSON(m.Capabilities)
	if err != nil {
		return err
	}
	const q = `UPDATE group_members SET role_tag=?, role_domain=?, is_active=?, capabilities=? WHERE group_id=? AND agent_id=?`
	if _, err := s.db.ExecContext(ctx, q, m.Role.Tag, m.Role.Domain, boolToInt(m.IsActive), caps, groupID.String(), m.AgentID.String()); err != nil {
		return queryFailed("group_members", q, err)
	}
	s.broker.publish(ctx, Event{Op: OpUpdate, Table: Group{}.TableName(), ID: groupID.String()})
	return nil
}

// RemoveMember detaches an agent from a group entirely.
func (s *Store) RemoveMember(ctx context.Context, groupID id.GroupID, agentID id.AgentID) error {
	const q = `DELETE FROM group_members WHERE group_id = ? AND agent_id = ?`
	if _, err := s.db.ExecContext(ctx, q, groupID.String(), agentID.String()); err != nil {
		return queryFailed("group_members", q, err)
	}
	s.broker.publish(ctx, Event{Op: OpUpdate, Table: Group{}.TableName(), ID: groupID.String()})
	return nil
}

// LoadGroup fetches a Group without its member list.
func (s *Store) LoadGroup(ctx context.Context, groupID id.GroupID) (Group, error) {
	const q = `SELECT id, name, description, pattern, pattern_config, pattern_state, is_active, created_at, updated_at
		FROM groups WHERE id = ?`
	row := s.db.QueryRowContext(ctx, q, groupID.String())

	var g Group
	var rawID, cfg, state string
	var isActive int
	var createdAt, updatedAt int64
	if err := row.Scan(&rawID, &g.Name, &g.Description, &g.Pattern, &cfg, &state, &isActive, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Group{}, notFound(Group{}.TableName(), groupID.String())
		}
		return Group{}, queryFailed(Group{}.TableName(), q, err)
	}

	gid, err := id.GroupIDFromString(rawID)
	if err != nil {
		return Group{}, serializationFailed("id.GroupID", err)
	}
	g.ID = gid
	if err := fromJSON(cfg, &g.PatternConfig); err != nil {
		return Group{}, err
	}
	if err := fromJSON(state, &g.PatternState); err != nil {
		return Group{}, err
	}
	g.IsActive = isActive != 0
	g.CreatedAt = timeOrZero(createdAt)
	g.UpdatedAt = timeOrZero(updatedAt)
	return g, nil
}

// LoadGroupWithRelations fetches a Group with its member list hydrated.
func (s *Store) LoadGroupWithRelations(ctx context.Context, groupID id.GroupID) (Group, error) {
	g, err := s.LoadGroup(ctx, groupID)
	if err != nil {
		return Group{}, err
	}

	const q = `SELECT agent_id, role_tag, role_domain, joined_at, is_active, capabilities FROM group_members WHERE group_id = ?`
	rows, err := s.db.QueryContext(ctx, q, groupID.String())
	if err != nil {
		return Group{}, queryFailed("group_members", q, err)
	}
	defer rows.Close()

	for rows.Next() {
		var rawAgentID, roleTag, roleDomain, caps string
		var joinedAt int64
		var isActive int
		if err := rows.Scan(&rawAgentID, &roleTag, &roleDomain, &joinedAt, &isActive, &caps); err != nil {
			return Group{}, queryFailed("group_members", q, err)
		}
		agentID, err := id.AgentIDFromString(rawAgentID)
		if err != nil {
			return Group{}, serializationFailed("id.AgentID", err)
		}
		m := GroupMember{
			AgentID:  agentID,
			Role:     MemberRole{Tag: roleTag, Domain: roleDomain},
			JoinedAt: timeOrZero(joinedAt),
			IsActive: isActive != 0,
		}
		if err := fromJSON(caps, &m.Capabilities); err != nil {
			return Group{}, err
		}
		g.Members = append(g.Members, m)
	}
	if err := rows.Err(); err != nil {
		return Group{}, queryFailed("group_members", q, err)
	}
	return g, nil
}

// UpdatePatternState persists a new pattern state atomically, the store
// side of the coordination package's update_state rule: state changes
// must persist atomically with the outgoing messages — callers invoke
// this in the same transaction scope as their message writes when the
// driver supports it; the default sqlite engine serializes writes
// through its single connection, so ordering is preserved even without an
// explicit transaction.
func (s *Store) UpdatePatternState(ctx context.Context, groupID id.GroupID, state map[string]any) error {
	encoded, err := toJSON(state)
	if err != nil {
		return err
	}
	const q = `UPDATE groups SET pattern_state = ?, updated_at = ? WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, q, encoded, time.Now().UTC().Unix(), groupID.String()); err != nil {
		return queryFailed(Group{}.TableName(), q, err)
	}
	s.broker.publish(ctx, Event{Op: OpUpdate, Table: Group{}.TableName(), ID: groupID.String()})
	return nil
}
