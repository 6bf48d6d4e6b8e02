package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Ledgers is the mutation surface over the sharing and user-grant ledgers.
// Granting access to a resource requires being authorized to administer it,
// not merely to view it: global admin, or a sufficiently ranked member of the
// owning organization (org_admin for org-to-org shares, editor for user
// grants).
type Ledgers struct {
	shares    ShareStore
	grants    GrantStore
	ownership OwnershipStore
	directory DirectoryStore
	audit     AuditSink
}

// NewLedgers constructs the ledger service.
func NewLedgers(shares ShareStore, grants GrantStore, ownership OwnershipStore, directory DirectoryStore, audit AuditSink) (*Ledgers, error) {
	if shares == nil || grants == nil || ownership == nil || directory == nil || audit == nil {
		return nil, errors.New("access: ledgers require all stores and an audit sink")
	}
	return &Ledgers{shares: shares, grants: grants, ownership: ownership, directory: directory, audit: audit}, nil
}

// GrantOrgShare records or upgrades an organization-to-organization share.
// Re-granting an existing (owner, target, kind, resource) key updates the
// permission and granter in place.
func (l *Ledgers) GrantOrgShare(ctx context.Context, actorID string, share OrgShare) (OrgShare, error) {
	share.OwnerOrgID = strings.TrimSpace(share.OwnerOrgID)
	share.TargetOrgID = strings.TrimSpace(share.TargetOrgID)
	share.ResourceID = strings.TrimSpace(share.ResourceID)
	if share.OwnerOrgID == "" || share.TargetOrgID == "" || share.ResourceID == "" {
		return OrgShare{}, fmt.Errorf("%w: owner, target and resource are required", ErrInvalidInput)
	}
	if share.OwnerOrgID == share.TargetOrgID {
		return OrgShare{}, fmt.Errorf("%w: cannot share a resource with its own organization", ErrInvalidInput)
	}
	if !share.Kind.ShareableKind() {
		return OrgShare{}, fmt.Errorf("%w: shares cover assets, vessels and scans only", ErrInvalidInput)
	}
	if !share.Permission.Valid() {
		return OrgShare{}, fmt.Errorf("%w: unknown share permission %q", ErrInvalidInput, share.Permission)
	}

	owner, err := l.ownership.Resolve(ctx, ResourceRef{Kind: share.Kind, ID: share.ResourceID})
	if err != nil {
		return OrgShare{}, err
	}
	if owner.OrgID != share.OwnerOrgID {
		return OrgShare{}, fmt.Errorf("%w: resource is not owned by %s", ErrInvalidInput, share.OwnerOrgID)
	}
	if err := l.requireAdministrator(ctx, actorID, share.OwnerOrgID, RoleOrgAdmin); err != nil {
		return OrgShare{}, err
	}

	share.CreatedBy = strings.TrimSpace(actorID)
	stored, err := l.shares.Upsert(ctx, share)
	if err != nil {
		return OrgShare{}, err
	}
	_ = l.audit.Append(ctx, Event{
		ActorID:      actorID,
		Action:       "access.share.grant",
		ResourceType: string(share.Kind),
		ResourceID:   share.ResourceID,
		Fields: map[string]string{
			"owner_org":  share.OwnerOrgID,
			"target_org": share.TargetOrgID,
			"permission": string(stored.Permission),
		},
	})
	return stored, nil
}

// RevokeOrgShare hard-deletes a share row. ErrNotFound when no such share.
func (l *Ledgers) RevokeOrgShare(ctx context.Context, actorID, ownerOrgID, targetOrgID string, kind ResourceKind, resourceID string) error {
	ownerOrgID = strings.TrimSpace(ownerOrgID)
	targetOrgID = strings.TrimSpace(targetOrgID)
	resourceID = strings.TrimSpace(resourceID)
	if ownerOrgID == "" || targetOrgID == "" || resourceID == "" || !kind.ShareableKind() {
		return fmt.Errorf("%w: owner, target, kind and resource are required", ErrInvalidInput)
	}
	if err := l.requireAdministrator(ctx, actorID, ownerOrgID, RoleOrgAdmin); err != nil {
		return err
	}
	if err := l.shares.Delete(ctx, ownerOrgID, targetOrgID, kind, resourceID); err != nil {
		return err
	}
	_ = l.audit.Append(ctx, Event{
		ActorID:      actorID,
		Action:       "access.share.revoke",
		ResourceType: string(kind),
		ResourceID:   resourceID,
		Fields: map[string]string{
			"owner_org":  ownerOrgID,
			"target_org": targetOrgID,
		},
	})
	return nil
}

// GrantUserAccess records or upgrades an individual grant on a top-level
// asset. Re-granting an existing (user, asset) key updates level, granter and
// notes in place rather than duplicating the row.
func (l *Ledgers) GrantUserAccess(ctx context.Context, actorID string, grant UserGrant) (UserGrant, error) {
	grant.UserID = strings.TrimSpace(grant.UserID)
	grant.AssetID = strings.TrimSpace(grant.AssetID)
	grant.Notes = strings.TrimSpace(grant.Notes)
	if grant.UserID == "" || grant.AssetID == "" {
		return UserGrant{}, fmt.Errorf("%w: user and asset are required", ErrInvalidInput)
	}
	if !grant.Level.Valid() {
		return UserGrant{}, fmt.Errorf("%w: unknown grant level %q", ErrInvalidInput, grant.Level)
	}
	if _, err := l.directory.Lookup(ctx, grant.UserID); err != nil {
		return UserGrant{}, err
	}

	owner, err := l.ownership.Resolve(ctx, ResourceRef{Kind: KindAsset, ID: grant.AssetID})
	if err != nil {
		return UserGrant{}, err
	}
	if err := l.requireAdministrator(ctx, actorID, owner.OrgID, RoleEditor); err != nil {
		return UserGrant{}, err
	}

	grant.GrantedBy = strings.TrimSpace(actorID)
	stored, err := l.grants.Upsert(ctx, grant)
	if err != nil {
		return UserGrant{}, err
	}
	_ = l.audit.Append(ctx, Event{
		ActorID:      actorID,
		Action:       "access.grant.grant",
		ResourceType: string(KindAsset),
		ResourceID:   grant.AssetID,
		Fields: map[string]string{
			"user":  grant.UserID,
			"level": string(stored.Level),
		},
	})
	return stored, nil
}

// RevokeUserAccess hard-deletes a grant row. ErrNotFound when no such grant.
func (l *Ledgers) RevokeUserAccess(ctx context.Context, actorID, userID, assetID string) error {
	userID = strings.TrimSpace(userID)
	assetID = strings.TrimSpace(assetID)
	if userID == "" || assetID == "" {
		return fmt.Errorf("%w: user and asset are required", ErrInvalidInput)
	}
	owner, err := l.ownership.Resolve(ctx, ResourceRef{Kind: KindAsset, ID: assetID})
	if err != nil {
		return err
	}
	if err := l.requireAdministrator(ctx, actorID, owner.OrgID, RoleEditor); err != nil {
		return err
	}
	if err := l.grants.Delete(ctx, userID, assetID); err != nil {
		return err
	}
	_ = l.audit.Append(ctx, Event{
		ActorID:      actorID,
		Action:       "access.grant.revoke",
		ResourceType: string(KindAsset),
		ResourceID:   assetID,
		Fields:       map[string]string{"user": userID},
	})
	return nil
}

// requireAdministrator checks that the actor is a global admin or an active
// member of orgID holding at least min.
func (l *Ledgers) requireAdministrator(ctx context.Context, actorID, orgID string, min Role) error {
	actor, err := l.directory.Lookup(ctx, strings.TrimSpace(actorID))
	if errors.Is(err, ErrNotFound) {
		return ErrUnauthorized
	}
	if err != nil {
		return err
	}
	if !actor.Active {
		return ErrUnauthorized
	}
	if actor.Role == RoleAdmin {
		return nil
	}
	if actor.OrgID != "" && actor.OrgID == orgID && actor.Role.AtLeast(min) {
		return nil
	}
	return ErrUnauthorized
}
