package access

import (
	"fmt"
	"strings"
	"time"
)

// Organization is a tenant. Members of a non-privileged organization see only
// their own and explicitly shared or granted resources.
type Organization struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Privileged bool      `json:"privileged"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Profile is the directory record for one authenticated user. OrgID is empty
// for unassigned users, which means no implicit visibility anywhere. Profiles
// are deactivated, never deleted.
type Profile struct {
	ID           string    `json:"id"`
	OrgID        string    `json:"organization_id,omitempty"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ResourceKind identifies a protected entity type.
type ResourceKind string

const (
	KindAsset    ResourceKind = "asset"
	KindVessel   ResourceKind = "vessel"
	KindScan     ResourceKind = "scan"
	KindImage    ResourceKind = "image"
	KindDocument ResourceKind = "document"
	KindProfile  ResourceKind = "profile"
	KindRequest  ResourceKind = "request"
)

// ShareableKind reports whether organization shares may carry this scope.
func (k ResourceKind) ShareableKind() bool {
	return k == KindAsset || k == KindVessel || k == KindScan
}

// Valid reports whether the kind names a protected entity type.
func (k ResourceKind) Valid() bool {
	switch k {
	case KindAsset, KindVessel, KindScan, KindImage, KindDocument, KindProfile, KindRequest:
		return true
	}
	return false
}

// ParseResourceKind normalizes and validates a wire-level kind.
func ParseResourceKind(raw string) (ResourceKind, error) {
	kind := ResourceKind(strings.TrimSpace(strings.ToLower(raw)))
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown resource kind %q", ErrInvalidInput, raw)
	}
	return kind, nil
}

// ResourceRef names one protected resource.
type ResourceRef struct {
	Kind ResourceKind `json:"kind"`
	ID   string       `json:"id"`
}

// Ownership is the resolved owning organization of a resource plus its
// top-level asset, empty for resources that hang directly off an organization.
type Ownership struct {
	OrgID   string
	AssetID string
}

// OrgShare is one organization-to-organization grant at a resource scope.
// Unique on (owner, target, kind, resource); re-granting updates in place.
type OrgShare struct {
	OwnerOrgID  string          `json:"owner_org_id"`
	TargetOrgID string          `json:"target_org_id"`
	Kind        ResourceKind    `json:"kind"`
	ResourceID  string          `json:"resource_id"`
	Permission  SharePermission `json:"permission"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// UserGrant is one individual grant on a top-level asset, independent of
// organization membership. Unique on (user, asset); re-granting updates level
// and granter in place.
type UserGrant struct {
	UserID    string     `json:"user_id"`
	AssetID   string     `json:"asset_id"`
	Level     GrantLevel `json:"level"`
	GrantedBy string     `json:"granted_by"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RequestKind identifies what an access request proposes.
type RequestKind string

const (
	RequestRoleChange     RequestKind = "role_change"
	RequestResourceAccess RequestKind = "resource_access"
	RequestAccount        RequestKind = "account"
)

// RequestStatus is the workflow state. Pending transitions exactly once.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// AccessRequest is one pending change proposal. Immutable after decision
// except for the audit fields.
type AccessRequest struct {
	ID          string         `json:"id"`
	Kind        RequestKind    `json:"kind"`
	RequesterID string         `json:"requester_id,omitempty"`
	TargetOrgID string         `json:"target_org_id,omitempty"`
	Status      RequestStatus  `json:"status"`
	ApproverID  string         `json:"approver_id,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Payload     RequestPayload `json:"payload"`
	CreatedAt   time.Time      `json:"created_at"`
	DecidedAt   *time.Time     `json:"decided_at,omitempty"`
}

// RequestPayload carries the proposed change. Exactly the fields for the
// request's kind are set; the rest stay zero.
type RequestPayload struct {
	// role_change
	TargetUserID  string `json:"target_user_id,omitempty"`
	RequestedRole Role   `json:"requested_role,omitempty"`

	// resource_access: either an org share or a user grant.
	ShareTargetOrgID string          `json:"share_target_org_id,omitempty"`
	ResourceKind     ResourceKind    `json:"resource_kind,omitempty"`
	ResourceID       string          `json:"resource_id,omitempty"`
	SharePermission  SharePermission `json:"share_permission,omitempty"`
	GrantUserID      string          `json:"grant_user_id,omitempty"`
	GrantAssetID     string          `json:"grant_asset_id,omitempty"`
	GrantLevel       GrantLevel      `json:"grant_level,omitempty"`

	// account. The plaintext password is transient submit input; only its
	// hash is ever persisted with the request.
	Email        string `json:"email,omitempty"`
	FullName     string `json:"full_name,omitempty"`
	OrgID        string `json:"org_id,omitempty"`
	Password     string `json:"-"`
	PasswordHash string `json:"password_hash,omitempty"`
}

// Event is one append-only audit record emitted per grant, revoke, role
// change, provision, and request decision.
type Event struct {
	ID           string            `json:"id"`
	OccurredAt   time.Time         `json:"occurred_at"`
	ActorID      string            `json:"actor_id,omitempty"`
	Action       string            `json:"action"`
	ResourceType string            `json:"resource_type,omitempty"`
	ResourceID   string            `json:"resource_id,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
}
