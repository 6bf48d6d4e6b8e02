package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"hullscope.io/internal/access"
)

// Shares implements access.ShareStore. It borrows the catalog to expand a
// resource into its ancestor chain.
type Shares struct {
	db    *sql.DB
	chain *Catalog
}

var _ access.ShareStore = (*Shares)(nil)

const shareColumns = `owner_org_id, target_org_id, kind, resource_id, permission, coalesce(created_by, ''), created_at, updated_at`

func (s *Shares) Upsert(ctx context.Context, share access.OrgShare) (access.OrgShare, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into org_shares (owner_org_id, target_org_id, kind, resource_id, permission, created_by)
		values ($1, $2, $3, $4, $5, $6)
		on conflict (owner_org_id, target_org_id, kind, resource_id) do update
		set permission = excluded.permission,
		    created_by = excluded.created_by,
		    updated_at = now()
		returning `+shareColumns+`
	`, share.OwnerOrgID, share.TargetOrgID, string(share.Kind), share.ResourceID, string(share.Permission), nullIfEmpty(share.CreatedBy))
	out, err := scanShare(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return access.OrgShare{}, fmt.Errorf("%w: organization", access.ErrNotFound)
		}
		return access.OrgShare{}, err
	}
	return out, nil
}

func (s *Shares) Delete(ctx context.Context, ownerOrgID, targetOrgID string, kind access.ResourceKind, resourceID string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from org_shares
		where owner_org_id = $1 and target_org_id = $2 and kind = $3 and resource_id = $4
	`, ownerOrgID, targetOrgID, string(kind), resourceID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Shares) Find(ctx context.Context, ownerOrgID, targetOrgID string, kind access.ResourceKind, resourceID string) (access.OrgShare, error) {
	return scanShare(s.db.QueryRowContext(ctx, `
		select `+shareColumns+`
		from org_shares
		where owner_org_id = $1 and target_org_id = $2 and kind = $3 and resource_id = $4
	`, ownerOrgID, targetOrgID, string(kind), resourceID))
}

// FindCovering expands the resource's parent chain and returns the strongest
// share whose scope contains any link of it.
func (s *Shares) FindCovering(ctx context.Context, ownerOrgID, targetOrgID string, ref access.ResourceRef) (access.OrgShare, error) {
	chain, err := s.chain.ChainFor(ctx, ref)
	if err != nil {
		return access.OrgShare{}, err
	}

	args := []any{ownerOrgID, targetOrgID}
	clauses := make([]string, 0, len(chain))
	for i, link := range chain {
		clauses = append(clauses, fmt.Sprintf("(kind = $%d and resource_id = $%d)", 2*i+3, 2*i+4))
		args = append(args, string(link.Kind), link.ID)
	}

	query := `
		select ` + shareColumns + `
		from org_shares
		where owner_org_id = $1 and target_org_id = $2 and (` + strings.Join(clauses, " or ") + `)
		order by case permission when 'edit' then 2 else 1 end desc
		limit 1
	`
	return scanShare(s.db.QueryRowContext(ctx, query, args...))
}

func (s *Shares) ListForTarget(ctx context.Context, targetOrgID string) ([]access.OrgShare, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+shareColumns+`
		from org_shares
		where target_org_id = $1
		order by owner_org_id, kind, resource_id
	`, targetOrgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []access.OrgShare
	for rows.Next() {
		var share access.OrgShare
		if err := rows.Scan(&share.OwnerOrgID, &share.TargetOrgID, &share.Kind, &share.ResourceID, &share.Permission, &share.CreatedBy, &share.CreatedAt, &share.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, share)
	}
	return out, rows.Err()
}

func scanShare(row *sql.Row) (access.OrgShare, error) {
	var share access.OrgShare
	err := row.Scan(&share.OwnerOrgID, &share.TargetOrgID, &share.Kind, &share.ResourceID, &share.Permission, &share.CreatedBy, &share.CreatedAt, &share.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return access.OrgShare{}, access.ErrNotFound
	}
	if err != nil {
		return access.OrgShare{}, err
	}
	return share, nil
}
