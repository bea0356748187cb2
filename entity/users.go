package entity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/patterncore/pattern/id"
)

// StoreUser upserts u, stamping timestamps.
func (s *Store) StoreUser(ctx context.Context, u User) (User, error) {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	settings, err := toJSON(u.Settings)
	if err != nil {
		return User{}, err
	}
	metadata, err := toJSON(u.Metadata)
	if err != nil {
		return User{}, err
	}

	const q = `INSERT INTO users (id, settings, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET settings=excluded.settings, metadata=excluded.metadata, updated_at=excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, q, u.ID.String(), settings, metadata, unixOrZero(u.CreatedAt), unixOrZero(u.UpdatedAt)); err != nil {
		return User{}, queryFailed(User{}.TableName(), q, err)
	}

	s.broker.publish(ctx, Event{Op: OpUpdate, Table: User{}.TableName(), ID: u.ID.String(), Entity: u})
	return u, nil
}

// LoadUser fetches a User by ID without edges (Users have none).
func (s *Store) LoadUser(ctx context.Context, userID id.UserID) (User, error) {
	const q = `SELECT id, settings, metadata, created_at, updated_at FROM users WHERE id = ?`
	row := s.db.QueryRowContext(ctx, q, userID.String())

	var u User
	var rawID, settings, metadata string
	var createdAt, updatedAt int64
	if err := row.Scan(&rawID, &settings, &metadata, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, notFound(User{}.TableName(), userID.String())
		}
		return User{}, queryFailed(User{}.TableName(), q, err)
	}

	parsedID, err := id.UserIDFromString(rawID)
	if err != nil {
		return User{}, serializationFailed("id.UserID", err)
	}
	u.ID = parsedID
	if err := fromJSON(settings, &u.Settings); err != nil {
		return User{}, err
	}
	if err := fromJSON(metadata, &u.Metadata); err != nil {
		return User{}, err
	}
	u.CreatedAt = timeOrZero(createdAt)
	u.UpdatedAt = timeOrZero(updatedAt)
	return u, nil
}
