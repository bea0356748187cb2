package entity

import (
	"context"
	"database/sql"
	"time"

	"github.com/patterncore/pattern/id"
)

// AppendMessage assigns the next monotone position for m.AgentID and
// inserts it. Messages are append-only in the active window and their
// IDs are stable across edits, so this never updates an existing row —
// callers that need to replace content append a new message instead.
func (s *Store) AppendMessage(ctx context.Context, m Message) (Message, error) {
	const nextPosQ = `SELECT COALESCE(MAX(position), -1) + 1 FROM messages WHERE agent_id = ?`
	var next int64
	if err := s.db.QueryRowContext(ctx, nextPosQ, m.AgentID.String()).Scan(&next); err != nil {
		return Message{}, queryFailed(Message{}.TableName(), nextPosQ, err)
	}
	m.Position = next
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	metadata, err := toJSON(m.Metadata)
	if err != nil {
		return Message{}, err
	}
	var parts any
	if len(m.Content.Parts) > 0 {
		enc, err := toJSON(m.Content.Parts)
		if err != nil {
			return Message{}, err
		}
		parts = enc
	}
	var embedding any
	if len(m.Embedding) > 0 {
		enc, err := toJSON(m.Embedding)
		if err != nil {
			return Message{}, err
		}
		embedding = enc
	}

	userID := ""
	if !m.UserID.IsNil() {
		userID = m.UserID.String()
	}

	const q = `INSERT INTO messages (id, agent_id, user_id, role, content_kind, content_text, content_parts, metadata, position, batch, sequence_num, batch_type, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		m.ID.String(), m.AgentID.String(), userID, string(m.Role), m.Content.Kind, m.Content.Text, parts, metadata,
		m.Position, m.Batch.String(), m.SequenceNum, m.BatchType, embedding, unixOrZero(m.CreatedAt),
	)
	if err != nil {
		return Message{}, queryFailed(Message{}.TableName(), q, err)
	}

	s.broker.publish(ctx, Event{Op: OpCreate, Table: Message{}.TableName(), ID: m.ID.String(), Entity: m})
	return m, nil
}

// MessageFilter narrows ListMessages to a role, a time range, or a
// substring of content_text; zero values mean "unconstrained". It backs
// the search_conversations built-in tool.
type MessageFilter struct {
	AgentID       id.AgentID
	Role          MessageRole
	ContainsText  string
	After, Before time.Time
	IncludeArchived bool
	Limit         int
}

// ListMessages returns messages matching filter, ordered by position.
func (s *Store) ListMessages(ctx context.Context, filter MessageFilter) ([]Message, error) {
	q := `SELECT id, agent_id, user_id, role, content_kind, content_text, content_parts, metadata, position, batch, sequence_num, batch_type, embedding, created_at
		FROM messages WHERE agent_id = ?`
	args := []any{filter.AgentID.String()}

	if !filter.IncludeArchived {
		q += ` AND archived = 0`
	}
	if filter.Role != "" {
		q += ` AND role = ?`
		args = append(args, string(filter.Role))
	}
	if filter.ContainsText != "" {
		q += ` AND content_text LIKE ?`
		args = append(args, "%"+filter.ContainsText+"%")
	}
	if !filter.After.IsZero() {
		q += ` AND created_at >= ?`
		args = append(args, filter.After.Unix())
	}
	if !filter.Before.IsZero() {
		q += ` AND created_at <= ?`
		args = append(args, filter.Before.Unix())
	}
	q += ` ORDER BY position ASC`
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, queryFailed(Message{}.TableName(), q, err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessageRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ArchiveMessages marks the given message IDs archived — the store-side
// half of compression's "moves messages from messages to archived_messages"
// behavior: rather than a second table, archived rows stay in place with
// a flag, remaining queryable via ListMessages with IncludeArchived set,
// and via search_conversations.
func (s *Store) ArchiveMessages(ctx context.Context, messageIDs []id.MessageID) error {
	if len(messageIDs) == 0 {
		return nil
	}
	q := `UPDATE messages SET archived = 1 WHERE id IN (`
	args := make([]any, len(messageIDs))
	for i, mid := range messageIDs {
		if i > 0 {
			q += ","
		}
		q += "?"
		args[i] = mid.String()
	}
	q += ")"
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return queryFailed(Message{}.TableName(), q, err)
	}
	return nil
}

type messageScanner interface {
	Scan(dest ...any) error
}

func scanMessageRows(r messageScanner) (Message, error) {
	var m Message
	var rawID, rawAgentID, rawUserID, role, contentKind, metadata, batch string
	var contentParts, embedding sql.NullString
	var createdAt int64
	if err := r.Scan(&rawID, &rawAgentID, &rawUserID, &role, &contentKind, &m.Content.Text, &contentParts, &metadata,
		&m.Position, &batch, &m.SequenceNum, &m.BatchType, &embedding, &createdAt); err != nil {
		return Message{}, err
	}

	msgID, err := id.MessageIDFromString(rawID)
	if err != nil {
		return Message{}, serializationFailed("id.MessageID", err)
	}
	m.ID = msgID
	agentID, err := id.AgentIDFromString(rawAgentID)
	if err != nil {
		return Message{}, serializationFailed("id.AgentID", err)
	}
	m.AgentID = agentID
	if rawUserID != "" {
		userID, err := id.UserIDFromString(rawUserID)
		if err != nil {
			return Message{}, serializationFailed("id.UserID", err)
		}
		m.UserID = userID
	}
	m.Role = MessageRole(role)
	m.Content.Kind = contentKind
	if contentParts.Valid {
		if err := fromJSON(contentParts.String, &m.Content.Parts); err != nil {
			return Message{}, err
		}
	}
	if err := fromJSON(metadata, &m.Metadata); err != nil {
		return Message{}, err
	}
	batchID, err := id.SessionIDFromString(batch)
	if err == nil {
		m.Batch = batchID
	}
	if embedding.Valid {
		if err := fromJSON(embedding.String, &m.Embedding); err != nil {
			return Message{}, err
		}
	}
	m.CreatedAt = timeOrZero(createdAt)
	return m, nil
}
