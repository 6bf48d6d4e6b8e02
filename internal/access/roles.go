package access

import (
	"fmt"
	"strings"
)

// Role is a position in the ordered privilege hierarchy. Manager and admin are
// global roles: they are evaluated before any organization scoping.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleEditor   Role = "editor"
	RoleOrgAdmin Role = "org_admin"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

var roleRank = map[Role]int{
	RoleViewer:   1,
	RoleEditor:   2,
	RoleOrgAdmin: 3,
	RoleManager:  4,
	RoleAdmin:    5,
}

// ParseRole normalizes and validates a role name.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := roleRank[role]; !ok {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
	}
	return role, nil
}

// Valid reports whether the role is a member of the hierarchy.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether the role ranks at or above min.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

// Global reports whether the role bypasses organization scoping for reads.
func (r Role) Global() bool {
	return r == RoleManager || r == RoleAdmin
}

// Action is an operation the evaluator can be asked about.
type Action string

const (
	ActionRead     Action = "read"
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionTransfer Action = "transfer"
)

// minRoleForAction is the in-organization gating table. Transfers move
// ownership between tenants and are reserved for global admins.
var minRoleForAction = map[Action]Role{
	ActionRead:     RoleViewer,
	ActionCreate:   RoleEditor,
	ActionUpdate:   RoleEditor,
	ActionDelete:   RoleEditor,
	ActionTransfer: RoleAdmin,
}

// ParseAction normalizes and validates an action name.
func ParseAction(raw string) (Action, error) {
	action := Action(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := minRoleForAction[action]; !ok {
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidInput, raw)
	}
	return action, nil
}

// Valid reports whether the action is known to the gating table.
func (a Action) Valid() bool {
	_, ok := minRoleForAction[a]
	return ok
}

// MinRole returns the minimum in-organization role required for the action.
func (a Action) MinRole() Role {
	return minRoleForAction[a]
}

// Mutating reports whether the action writes.
func (a Action) Mutating() bool {
	return a != ActionRead
}

// SharePermission is the level attached to an organization-to-organization share.
type SharePermission string

const (
	ShareView SharePermission = "view"
	ShareEdit SharePermission = "edit"
)

var sharePermRank = map[SharePermission]int{
	ShareView: 1,
	ShareEdit: 2,
}

// ParseSharePermission normalizes and validates a share permission.
func ParseSharePermission(raw string) (SharePermission, error) {
	perm := SharePermission(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := sharePermRank[perm]; !ok {
		return "", fmt.Errorf("%w: unknown share permission %q", ErrInvalidInput, raw)
	}
	return perm, nil
}

// Valid reports whether the permission is a known share level.
func (p SharePermission) Valid() bool {
	_, ok := sharePermRank[p]
	return ok
}

// AtLeast reports whether the permission ranks at or above min.
func (p SharePermission) AtLeast(min SharePermission) bool {
	return sharePermRank[p] >= sharePermRank[min]
}

// Covers reports whether the share level satisfies the requested action.
func (p SharePermission) Covers(action Action) bool {
	switch action {
	case ActionRead:
		return p.AtLeast(ShareView)
	case ActionCreate, ActionUpdate, ActionDelete:
		return p.AtLeast(ShareEdit)
	default:
		// Ownership transfers are never delegated through shares.
		return false
	}
}

// GrantLevel is the level attached to an individual user grant on an asset.
type GrantLevel string

const (
	GrantRead  GrantLevel = "read"
	GrantWrite GrantLevel = "write"
	GrantAdmin GrantLevel = "admin"
)

var grantLevelRank = map[GrantLevel]int{
	GrantRead:  1,
	GrantWrite: 2,
	GrantAdmin: 3,
}

// ParseGrantLevel normalizes and validates a user-grant level.
func ParseGrantLevel(raw string) (GrantLevel, error) {
	level := GrantLevel(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := grantLevelRank[level]; !ok {
		return "", fmt.Errorf("%w: unknown grant level %q", ErrInvalidInput, raw)
	}
	return level, nil
}

// Valid reports whether the level is a known grant level.
func (l GrantLevel) Valid() bool {
	_, ok := grantLevelRank[l]
	return ok
}

// AtLeast reports whether the level ranks at or above min.
func (l GrantLevel) AtLeast(min GrantLevel) bool {
	return grantLevelRank[l] >= grantLevelRank[min]
}

// Covers reports whether the grant level satisfies the requested action.
func (l GrantLevel) Covers(action Action) bool {
	switch action {
	case ActionRead:
		return l.AtLeast(GrantRead)
	case ActionCreate, ActionUpdate:
		return l.AtLeast(GrantWrite)
	case ActionDelete:
		return l.AtLeast(GrantAdmin)
	default:
		return false
	}
}
