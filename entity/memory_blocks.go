package entity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/patterncore/pattern/id"
)

// StoreMemoryBlock upserts b, stamping timestamps. IDs are stable across
// edits: callers update in place by ID, never by re-minting.
func (s *Store) StoreMemoryBlock(ctx context.Context, b MemoryBlock) (MemoryBlock, error) {
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	metadata, err := toJSON(b.Metadata)
	if err != nil {
		return MemoryBlock{}, err
	}
	var embedding any
	if len(b.Embedding) > 0 {
		enc, err := toJSON(b.Embedding)
		if err != nil {
			return MemoryBlock{}, err
		}
		embedding = enc
	}

	const q = `INSERT INTO memory_blocks (id, user_id, label, value, description, block_type, permission, embedding, embedding_model, metadata, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label=excluded.label, value=excluded.value, description=excluded.description,
			block_type=excluded.block_type, permission=excluded.permission, embedding=excluded.embedding,
			embedding_model=excluded.embedding_model, metadata=excluded.metadata, is_active=excluded.is_active,
			updated_at=excluded.updated_at`
	_, err = s.db.ExecContext(ctx, q,
		b.ID.String(), b.UserID.String(), b.Label, b.Value, b.Description, string(b.Type), b.Permission.String(),
		embedding, b.EmbeddingModel, metadata, boolToInt(b.IsActive), unixOrZero(b.CreatedAt), unixOrZero(b.UpdatedAt),
	)
	if err != nil {
		return MemoryBlock{}, queryFailed(MemoryBlock{}.TableName(), q, err)
	}

	s.broker.publish(ctx, Event{Op: OpUpdate, Table: MemoryBlock{}.TableName(), ID: b.ID.String(), Entity: b})
	return b, nil
}

// LoadMemoryBlock fetches a MemoryBlock by ID.
func (s *Store) LoadMemoryBlock(ctx context.Context, blockID id.MemoryBlockID) (MemoryBlock, error) {
	const q = `SELECT id, user_id, label, value, description, block_type, permission, embedding, embedding_model, metadata, is_active, created_at, updated_at
		FROM memory_blocks WHERE id = ?`
	row := s.db.QueryRowContext(ctx, q, blockID.String())
	b, err := scanMemoryBlock(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MemoryBlock{}, notFound(MemoryBlock{}.TableName(), blockID.String())
		}
		return MemoryBlock{}, queryFailed(MemoryBlock{}.TableName(), q, err)
	}
	return b, nil
}

// ListMemoryBlocksByUser returns every active MemoryBlock owned by userID.
func (s *Store) ListMemoryBlocksByUser(ctx context.Context, userID id.UserID) ([]MemoryBlock, error) {
	const q = `SELECT id, user_id, label, value, description, block_type, permission, embedding, embedding_model, metadata, is_active, created_at, updated_at
		FROM memory_blocks WHERE user_id = ? AND is_active = 1 ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, q, userID.String())
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

// DeleteMemoryBlock requires Admin permission at the call site (the
// lifecycle rule is enforced by package memory, not here); this marks the
// block inactive and fans out a delete Event so every attached agent's
// cache drops it within bounded time.
func (s *Store) DeleteMemoryBlock(ctx context.Context, blockID id.MemoryBlockID) error {
	const q = `UPDATE memory_blocks SET is_active = 0, updated_at = ? WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, q, time.Now().UTC().Unix(), blockID.String()); err != nil {
		return queryFailed(MemoryBlock{}.TableName(), q, err)
	}
	s.broker.publish(ctx, Event{Op: OpDelete, Table: MemoryBlock{}.TableName(), ID: blockID.String()})
	return nil
}

type blockScanner interface {
	Scan(dest ...any) error
}

func scanMemoryBlock(row *sql.Row) (MemoryBlock, error) {
	return scanMemoryBlockRows(row)
}

func scanMemoryBlockRows(r blockScanner) (MemoryBlock, error) {
	var b MemoryBlock
	var rawID, rawUserID, blockType, permission, metadata string
	var embedding sql.NullString
	var isActive int
	var createdAt, updatedAt int64
	if err := r.Scan(&rawID, &rawUserID, &b.Label, &b.Value, &b.Description, &blockType, &permission,
		&embedding, &b.EmbeddingModel, &metadata, &isActive, &createdAt, &updatedAt); err != nil {
		return MemoryBlock{}, err
	}

	blockID, err := id.MemoryBlockIDFromString(rawID)
	if err != nil {
		return MemoryBlock{}, serializationFailed("id.MemoryBlockID", err)
	}
	userID, err := id.UserIDFromString(rawUserID)
	if err != nil {
		return MemoryBlock{}, serializationFailed("id.UserID", err)
	}
	b.ID = blockID
	b.UserID = userID
	b.Type = MemoryBlockType(blockType)
	if perm, ok := ParsePermission(permission); ok {
		b.Permission = perm
	}
	if embedding.Valid {
		if err := fromJSON(embedding.String, &b.Embedding); err != nil {
			return MemoryBlock{}, err
		}
	}
	if err := fromJSON(metadata, &b.Metadata); err != nil {
		return MemoryBlock{}, err
	}
	b.IsActive = isActive != 0
	b.CreatedAt = timeOrZero(createdAt)
	b.UpdatedAt = timeOrZero(updatedAt)
	return b, nil
}
