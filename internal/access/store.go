package access

import "context"

// DirectoryStore is the privileged, non-recursive accessor over profile and
// organization records. It reads directly, never through the evaluator: the
// evaluator itself needs this data to decide access to the directory, so
// routing these lookups back through CanAccess would recurse without bound.
// Only the engine holds a DirectoryStore; application code goes through the
// Directory service.
type DirectoryStore interface {
	Lookup(ctx context.Context, profileID string) (Profile, error)
	LookupByEmail(ctx context.Context, email string) (Profile, error)
	Organization(ctx context.Context, orgID string) (Organization, error)

	// Create and Update are single-statement writes: either every field
	// lands or none do.
	Create(ctx context.Context, profile Profile) (Profile, error)
	Update(ctx context.Context, profile Profile) (Profile, error)
}

// OwnershipStore resolves a protected resource to its owning organization and
// top-level asset via parent-chain lookups.
type OwnershipStore interface {
	Resolve(ctx context.Context, ref ResourceRef) (Ownership, error)

	// ListAssets enumerates asset refs, scoped to one organization or,
	// with an empty orgID, across all tenants.
	ListAssets(ctx context.Context, orgID string) ([]ResourceRef, error)
}

// ShareStore persists the organization-to-organization sharing ledger.
type ShareStore interface {
	// Upsert inserts the share or, when the (owner, target, kind, resource)
	// key already exists, updates permission and granter in place.
	Upsert(ctx context.Context, share OrgShare) (OrgShare, error)
	Delete(ctx context.Context, ownerOrgID, targetOrgID string, kind ResourceKind, resourceID string) error
	Find(ctx context.Context, ownerOrgID, targetOrgID string, kind ResourceKind, resourceID string) (OrgShare, error)

	// FindCovering returns the strongest share from ownerOrgID to
	// targetOrgID whose scope contains ref: a share on the resource itself
	// or on any ancestor in its parent chain. ErrNotFound when none applies.
	FindCovering(ctx context.Context, ownerOrgID, targetOrgID string, ref ResourceRef) (OrgShare, error)

	ListForTarget(ctx context.Context, targetOrgID string) ([]OrgShare, error)
}

// GrantStore persists the per-user grant ledger.
type GrantStore interface {
	// Upsert inserts the grant or, when the (user, asset) key already
	// exists, updates level and granter in place.
	Upsert(ctx context.Context, grant UserGrant) (UserGrant, error)
	Delete(ctx context.Context, userID, assetID string) error
	Find(ctx context.Context, userID, assetID string) (UserGrant, error)
	ListForUser(ctx context.Context, userID string) ([]UserGrant, error)
}

// RequestStore persists approval-workflow requests.
type RequestStore interface {
	Create(ctx context.Context, req AccessRequest) (AccessRequest, error)
	Find(ctx context.Context, id string) (AccessRequest, error)

	// Claim transitions the request from pending to status in one
	// statement. ErrConflict when the request was already decided, so two
	// concurrent deciders cannot both win.
	Claim(ctx context.Context, id string, status RequestStatus, approverID, reason string) (AccessRequest, error)

	ListForRequester(ctx context.Context, requesterID string) ([]AccessRequest, error)
}

// AuditSink consumes the engine's append-only events. It is a collaborator,
// not part of the decision core; failures to record are reported but must not
// roll back the mutation they describe.
type AuditSink interface {
	Append(ctx context.Context, event Event) error
}
