package access

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// Evaluator is the decision function for (principal, resource, action)
// triples. It holds no mutable state and is safe for concurrent use; every
// decision re-reads the stores it composes.
type Evaluator struct {
	directory DirectoryStore
	ownership OwnershipStore
	shares    ShareStore
	grants    GrantStore
	requests  RequestStore
}

// NewEvaluator wires the evaluator over its stores.
func NewEvaluator(directory DirectoryStore, ownership OwnershipStore, shares ShareStore, grants GrantStore, requests RequestStore) (*Evaluator, error) {
	if directory == nil || ownership == nil || shares == nil || grants == nil || requests == nil {
		return nil, errors.New("access: evaluator requires all stores")
	}
	return &Evaluator{
		directory: directory,
		ownership: ownership,
		shares:    shares,
		grants:    grants,
		requests:  requests,
	}, nil
}

// CanAccess decides whether the principal may perform action on the resource.
// Precedence, first match wins:
//
//  1. the principal acting on their own profile (read/update; field-level
//     restrictions are the guard's job at write time)
//  2. global admin
//  3. read-only manager, or membership in a privileged organization
//     (privileged organizations get read, create and update across tenants;
//     delete stays with the owning organization)
//  4. same organization as the owner, gated by the action's minimum role
//  5. an organization share covering the resource at a sufficient permission
//  6. a user grant on the resource's top-level asset at a sufficient level
//  7. deny
//
// Absence of access is a normal false result, never an error. Unknown
// principals and resources deny rather than erroring, so a decision cannot be
// used to probe for existence.
func (e *Evaluator) CanAccess(ctx context.Context, principalID string, ref ResourceRef, action Action) (bool, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" || ref.ID == "" || !action.Valid() {
		return false, nil
	}

	principal, err := e.directory.Lookup(ctx, principalID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !principal.Active {
		return false, nil
	}

	// Rule 1: own profile record.
	if ref.Kind == KindProfile && ref.ID == principal.ID {
		if action == ActionRead || action == ActionUpdate {
			return true, nil
		}
	}

	// Rule 2: global admin.
	if principal.Role == RoleAdmin {
		return true, nil
	}

	// Rule 3: global read, and the privileged-organization bypass.
	if action == ActionRead && principal.Role == RoleManager {
		return true, nil
	}
	privilegedOrg := false
	if principal.OrgID != "" {
		org, err := e.directory.Organization(ctx, principal.OrgID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return false, err
		}
		privilegedOrg = err == nil && org.Privileged
	}
	if privilegedOrg && action != ActionDelete && action != ActionTransfer {
		// Privileged membership widens scope, not rank: mutations still
		// need the role the action would need in-organization.
		if principal.Role.AtLeast(action.MinRole()) {
			return true, nil
		}
	}

	switch ref.Kind {
	case KindRequest:
		return e.canAccessRequest(ctx, principal, ref, action)
	case KindProfile:
		return e.canAccessProfile(ctx, principal, ref, action)
	}

	owner, err := e.ownership.Resolve(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// Rule 4: owning organization, role-gated.
	if principal.OrgID != "" && principal.OrgID == owner.OrgID {
		if principal.Role.AtLeast(action.MinRole()) {
			return true, nil
		}
	}

	// Rule 5: organization share. A principal without an organization has no
	// implicit visibility and nothing for a share to land on.
	if principal.OrgID != "" && principal.OrgID != owner.OrgID && action != ActionTransfer {
		share, err := e.shares.FindCovering(ctx, owner.OrgID, principal.OrgID, ref)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return false, err
		}
		if err == nil && share.Permission.Covers(action) {
			return true, nil
		}
	}

	// Rule 6: individual grant on the top-level asset, independent of
	// organization membership.
	if owner.AssetID != "" && action != ActionTransfer {
		grant, err := e.grants.Find(ctx, principal.ID, owner.AssetID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return false, err
		}
		if err == nil && grant.Level.Covers(action) {
			return true, nil
		}
	}

	return false, nil
}

// canAccessRequest covers workflow items: a requester may always read their
// own request, and org admins may read requests targeting their organization.
func (e *Evaluator) canAccessRequest(ctx context.Context, principal Profile, ref ResourceRef, action Action) (bool, error) {
	if action != ActionRead {
		return false, nil
	}
	req, err := e.requests.Find(ctx, ref.ID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if req.RequesterID != "" && req.RequesterID == principal.ID {
		return true, nil
	}
	if principal.OrgID != "" && principal.OrgID == req.TargetOrgID && principal.Role.AtLeast(RoleOrgAdmin) {
		return true, nil
	}
	return false, nil
}

// canAccessProfile covers directory records other than the caller's own.
// Profiles are never shareable or grantable, so rules 5 and 6 do not apply.
func (e *Evaluator) canAccessProfile(ctx context.Context, principal Profile, ref ResourceRef, action Action) (bool, error) {
	target, err := e.directory.Lookup(ctx, ref.ID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if principal.OrgID == "" || principal.OrgID != target.OrgID {
		return false, nil
	}
	switch action {
	case ActionRead:
		return true, nil
	case ActionUpdate, ActionDelete:
		return principal.Role.AtLeast(RoleOrgAdmin), nil
	default:
		return false, nil
	}
}

// CanCreateIn reports whether the principal may create top-level resources
// owned by the given organization. Creation inside an existing aggregate is
// an update of the parent and goes through CanAccess instead.
func (e *Evaluator) CanCreateIn(ctx context.Context, principalID, orgID string) (bool, error) {
	principal, err := e.directory.Lookup(ctx, strings.TrimSpace(principalID))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !principal.Active || orgID == "" {
		return false, nil
	}
	if principal.Role == RoleAdmin {
		return true, nil
	}
	if !principal.Role.AtLeast(ActionCreate.MinRole()) {
		return false, nil
	}
	if principal.OrgID == orgID {
		return true, nil
	}
	if principal.OrgID != "" {
		org, err := e.directory.Organization(ctx, principal.OrgID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return false, err
		}
		if err == nil && org.Privileged {
			return true, nil
		}
	}
	return false, nil
}

// CanAdministerOrg reports whether the principal may administer the given
// organization: global admin, or an active org_admin of that organization.
// The approval workflow uses this to authorize deciders.
func (e *Evaluator) CanAdministerOrg(ctx context.Context, principalID, orgID string) (bool, error) {
	principal, err := e.directory.Lookup(ctx, strings.TrimSpace(principalID))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !principal.Active {
		return false, nil
	}
	if principal.Role == RoleAdmin {
		return true, nil
	}
	return orgID != "" && principal.OrgID == orgID && principal.Role.AtLeast(RoleOrgAdmin), nil
}

// ListAccessibleResources returns the deduplicated union of resources the
// principal can at least read: everything for global readers and privileged
// organizations, otherwise own-organization assets plus shared-in resources
// plus individually granted assets.
func (e *Evaluator) ListAccessibleResources(ctx context.Context, principalID string) ([]ResourceRef, error) {
	principal, err := e.directory.Lookup(ctx, strings.TrimSpace(principalID))
	if err != nil {
		return nil, err
	}
	if !principal.Active {
		return nil, nil
	}

	if principal.Role.Global() {
		return e.ownership.ListAssets(ctx, "")
	}
	if principal.OrgID != "" {
		org, err := e.directory.Organization(ctx, principal.OrgID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if err == nil && org.Privileged {
			return e.ownership.ListAssets(ctx, "")
		}
	}

	seen := make(map[ResourceRef]struct{})
	var refs []ResourceRef
	add := func(ref ResourceRef) {
		if _, ok := seen[ref]; ok {
			return
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}

	if principal.OrgID != "" {
		own, err := e.ownership.ListAssets(ctx, principal.OrgID)
		if err != nil {
			return nil, err
		}
		for _, ref := range own {
			add(ref)
		}
		shares, err := e.shares.ListForTarget(ctx, principal.OrgID)
		if err != nil {
			return nil, err
		}
		for _, share := range shares {
			add(ResourceRef{Kind: share.Kind, ID: share.ResourceID})
		}
	}

	grants, err := e.grants.ListForUser(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	for _, grant := range grants {
		add(ResourceRef{Kind: KindAsset, ID: grant.AssetID})
	}

	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Kind != refs[j].Kind {
			return refs[i].Kind < refs[j].Kind
		}
		return refs[i].ID < refs[j].ID
	})
	return refs, nil
}
