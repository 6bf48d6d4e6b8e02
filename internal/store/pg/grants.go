package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hullscope.io/internal/access"
)

// Grants implements access.GrantStore.
type Grants struct {
	db *sql.DB
}

var _ access.GrantStore = (*Grants)(nil)

const grantColumns = `user_id, asset_id, level, coalesce(granted_by, ''), coalesce(notes, ''), created_at, updated_at`

func (s *Grants) Upsert(ctx context.Context, grant access.UserGrant) (access.UserGrant, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into user_grants (user_id, asset_id, level, granted_by, notes)
		values ($1, $2, $3, $4, $5)
		on conflict (user_id, asset_id) do update
		set level = excluded.level,
		    granted_by = excluded.granted_by,
		    notes = excluded.notes,
		    updated_at = now()
		returning `+grantColumns+`
	`, grant.UserID, grant.AssetID, string(grant.Level), nullIfEmpty(grant.GrantedBy), nullIfEmpty(grant.Notes))
	out, err := scanGrant(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return access.UserGrant{}, fmt.Errorf("%w: user or asset", access.ErrNotFound)
		}
		return access.UserGrant{}, err
	}
	return out, nil
}

func (s *Grants) Delete(ctx context.Context, userID, assetID string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from user_grants
		where user_id = $1 and asset_id = $2
	`, userID, assetID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Grants) Find(ctx context.Context, userID, assetID string) (access.UserGrant, error) {
	return scanGrant(s.db.QueryRowContext(ctx, `
		select `+grantColumns+`
		from user_grants
		where user_id = $1 and asset_id = $2
	`, userID, assetID))
}

func (s *Grants) ListForUser(ctx context.Context, userID string) ([]access.UserGrant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+grantColumns+`
		from user_grants
		where user_id = $1
		order by asset_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []access.UserGrant
	for rows.Next() {
		var grant access.UserGrant
		if err := rows.Scan(&grant.UserID, &grant.AssetID, &grant.Level, &grant.GrantedBy, &grant.Notes, &grant.CreatedAt, &grant.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, grant)
	}
	return out, rows.Err()
}

func scanGrant(row *sql.Row) (access.UserGrant, error) {
	var grant access.UserGrant
	err := row.Scan(&grant.UserID, &grant.AssetID, &grant.Level, &grant.GrantedBy, &grant.Notes, &grant.CreatedAt, &grant.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return access.UserGrant{}, access.ErrNotFound
	}
	if err != nil {
		return access.UserGrant{}, err
	}
	return grant, nil
}
