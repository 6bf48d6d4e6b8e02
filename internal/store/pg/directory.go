package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"hullscope.io/internal/access"
	"hullscope.io/internal/ids"
)

// Directory implements access.DirectoryStore.
type Directory struct {
	db *sql.DB
}

var _ access.DirectoryStore = (*Directory)(nil)

func (s *Directory) Organization(ctx context.Context, orgID string) (access.Organization, error) {
	var org access.Organization
	err := s.db.QueryRowContext(ctx, `
		select id, name, privileged, created_at, updated_at
		from organizations
		where id = $1
	`, orgID).Scan(&org.ID, &org.Name, &org.Privileged, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return access.Organization{}, access.ErrNotFound
	}
	if err != nil {
		return access.Organization{}, err
	}
	return org, nil
}

// CreateOrganization registers a tenant. Used by migrations seeding and admin
// tooling rather than the engine itself.
func (s *Directory) CreateOrganization(ctx context.Context, name string, privileged bool) (access.Organization, error) {
	id := ids.New()
	var org access.Organization
	err := s.db.QueryRowContext(ctx, `
		insert into organizations (id, name, privileged)
		values ($1, $2, $3)
		returning id, name, privileged, created_at, updated_at
	`, id, name, privileged).Scan(&org.ID, &org.Name, &org.Privileged, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return access.Organization{}, fmt.Errorf("%w: organization %s", access.ErrConflict, name)
		}
		return access.Organization{}, err
	}
	return org, nil
}

func (s *Directory) Lookup(ctx context.Context, profileID string) (access.Profile, error) {
	return s.scanProfile(s.db.QueryRowContext(ctx, `
		select id, coalesce(org_id, ''), email, name, role, active, password_hash, created_at, updated_at
		from profiles
		where id = $1
	`, profileID))
}

func (s *Directory) LookupByEmail(ctx context.Context, email string) (access.Profile, error) {
	return s.scanProfile(s.db.QueryRowContext(ctx, `
		select id, coalesce(org_id, ''), email, name, role, active, password_hash, created_at, updated_at
		from profiles
		where lower(email) = lower($1)
	`, strings.TrimSpace(email)))
}

func (s *Directory) scanProfile(row *sql.Row) (access.Profile, error) {
	var p access.Profile
	err := row.Scan(&p.ID, &p.OrgID, &p.Email, &p.Name, &p.Role, &p.Active, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return access.Profile{}, access.ErrNotFound
	}
	if err != nil {
		return access.Profile{}, err
	}
	return p, nil
}

func (s *Directory) Create(ctx context.Context, profile access.Profile) (access.Profile, error) {
	if profile.ID == "" {
		profile.ID = ids.New()
	}
	var p access.Profile
	err := s.db.QueryRowContext(ctx, `
		insert into profiles (id, org_id, email, name, role, active, password_hash)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning id, coalesce(org_id, ''), email, name, role, active, password_hash, created_at, updated_at
	`, profile.ID, nullIfEmpty(profile.OrgID), profile.Email, profile.Name, string(profile.Role), profile.Active, profile.PasswordHash).
		Scan(&p.ID, &p.OrgID, &p.Email, &p.Name, &p.Role, &p.Active, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return access.Profile{}, fmt.Errorf("%w: email %s already registered", access.ErrConflict, profile.Email)
			case pgErrForeignKeyViolation:
				return access.Profile{}, fmt.Errorf("%w: organization %s", access.ErrNotFound, profile.OrgID)
			}
		}
		return access.Profile{}, err
	}
	return p, nil
}

// Update writes every mutable field in one statement so a rejected update
// cannot partially land.
func (s *Directory) Update(ctx context.Context, profile access.Profile) (access.Profile, error) {
	var p access.Profile
	err := s.db.QueryRowContext(ctx, `
		update profiles
		set org_id = $2, email = $3, name = $4, role = $5, active = $6, updated_at = now()
		where id = $1
		returning id, coalesce(org_id, ''), email, name, role, active, password_hash, created_at, updated_at
	`, profile.ID, nullIfEmpty(profile.OrgID), profile.Email, profile.Name, string(profile.Role), profile.Active).
		Scan(&p.ID, &p.OrgID, &p.Email, &p.Name, &p.Role, &p.Active, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return access.Profile{}, access.ErrNotFound
	}
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return access.Profile{}, fmt.Errorf("%w: email %s already registered", access.ErrConflict, profile.Email)
			case pgErrForeignKeyViolation:
				return access.Profile{}, fmt.Errorf("%w: organization %s", access.ErrNotFound, profile.OrgID)
			}
		}
		return access.Profile{}, err
	}
	return p, nil
}
