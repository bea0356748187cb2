package entity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/patterncore/pattern/id"
)

// StoreAtprotoIdentity upserts an external AT Protocol identity by DID.
func (s *Store) StoreAtprotoIdentity(ctx context.Context, a AtprotoIdentity) (AtprotoIdentity, error) {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	const q = `INSERT INTO atproto_identities (did, handle, pds_url, auth_method, oauth_token, oauth_expiry, app_password, user_id, created_at, updated_at, last_authed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(did) DO UPDATE SET
			handle=excluded.handle, pds_url=excluded.pds_url, auth_method=excluded.auth_method,
			oauth_token=excluded.oauth_token, oauth_expiry=excluded.oauth_expiry, app_password=excluded.app_password,
			updated_at=excluded.updated_at, last_authed_at=excluded.last_authed_at`
	_, err := s.db.ExecContext(ctx, q, a.DID, a.Handle, a.PDSURL, string(a.AuthMethod), a.OAuthToken,
		unixOrZero(a.OAuthExpiry), a.AppPassword, a.UserID.String(), unixOrZero(a.CreatedAt), unixOrZero(a.UpdatedAt),
		unixOrZero(a.LastAuthedAt))
	if err != nil {
		return AtprotoIdentity{}, queryFailed(AtprotoIdentity{}.TableName(), q, err)
	}

	s.broker.publish(ctx, Event{Op: OpUpdate, Table: AtprotoIdentity{}.TableName(), ID: a.DID, Entity: a})
	return a, nil
}

// LoadAtprotoIdentity fetches an identity by DID.
func (s *Store) LoadAtprotoIdentity(ctx context.Context, did string) (AtprotoIdentity, error) {
	const q = `SELECT did, handle, pds_url, auth_method, oauth_token, oauth_expiry, app_password, user_id, created_at, updated_at, last_authed_at
		FROM atproto_identities WHERE did = ?`
	row := s.db.QueryRowContext(ctx, q, did)

	var a AtprotoIdentity
	var authMethod, rawUserID string
	var oauthExpiry, createdAt, updatedAt, lastAuthedAt int64
	if err := row.Scan(&a.DID, &a.Handle, &a.PDSURL, &authMethod, &a.OAuthToken, &oauthExpiry, &a.AppPassword,
		&rawUserID, &createdAt, &updatedAt, &lastAuthedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AtprotoIdentity{}, notFound(AtprotoIdentity{}.TableName(), did)
		}
		return AtprotoIdentity{}, queryFailed(AtprotoIdentity{}.TableName(), q, err)
	}

	userID, err := id.UserIDFromString(rawUserID)
	if err != nil {
		return AtprotoIdentity{}, serializationFailed("id.UserID", err)
	}
	a.UserID = userID
	a.AuthMethod = AtprotoAuthMethod(authMethod)
	a.OAuthExpiry = timeOrZero(oauthExpiry)
	a.CreatedAt = timeOrZero(createdAt)
	a.UpdatedAt = timeOrZero(updatedAt)
	a.LastAuthedAt = timeOrZero(lastAuthedAt)
	return a, nil
}

// ListAtprotoIdentitiesByUser returns every identity owned by userID.
func (s *Store) ListAtprotoIdentitiesByUser(ctx context.Context, userID id.UserID) ([]AtprotoIdentity, error) {
	const q = `SELECT did FROM atproto_identities WHERE user_id = ?`
	rows, err := s.db.QueryContext(ctx, q, userID.String())
	if err != nil {
		return nil, queryFailed(AtprotoIdentity{}.TableName(), q, err)
	}
	defer rows.Close()

	var dids []string
	for rows.Next() {
		var did string
		if err := rows.Scan(&did); err != nil {
			return nil, queryFailed(AtprotoIdentity{}.TableName(), q, err)
		}
		dids = append(dids, did)
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed(AtprotoIdentity{}.TableName(), q, err)
	}

	out := make([]AtprotoIdentity, 0, len(dids))
	for _, did := range dids {
		a, err := s.LoadAtprotoIdentity(ctx, did)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
