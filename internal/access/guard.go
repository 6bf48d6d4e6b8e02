package access

import "fmt"

// CheckProfileWrite is the self-escalation guard. It runs as a precondition
// inside the same transaction as every profile write, independent of the
// evaluator's read/write gate, and diffs the current record against the
// proposed one:
//
//   - a principal updating their own record may not touch role or
//     organization and may not deactivate themselves
//   - moving a profile between organizations requires the global admin role
//   - an org_admin may update profiles inside its own organization,
//     including ordinary role changes, but may never confer the admin role
//     or touch an existing admin account
//
// Any violation fails the entire write with ErrSecurityViolation; no partial
// update is applied.
func CheckProfileWrite(actor Profile, current Profile, updated Profile) error {
	if updated.ID != current.ID {
		return fmt.Errorf("%w: profile id is immutable", ErrSecurityViolation)
	}
	if !updated.Role.Valid() {
		return fmt.Errorf("%w: role %q", ErrInvalidInput, updated.Role)
	}

	roleChanged := updated.Role != current.Role
	orgChanged := updated.OrgID != current.OrgID

	if actor.ID == current.ID {
		if roleChanged {
			return fmt.Errorf("%w: cannot change own role", ErrSecurityViolation)
		}
		if orgChanged {
			return fmt.Errorf("%w: cannot change own organization", ErrSecurityViolation)
		}
		if current.Active && !updated.Active {
			return fmt.Errorf("%w: cannot deactivate own account", ErrSecurityViolation)
		}
		return nil
	}

	if actor.Role == RoleAdmin {
		return nil
	}

	// The ceiling: no non-admin path may yield an admin, and non-admins do
	// not touch existing admin accounts at all.
	if updated.Role == RoleAdmin || current.Role == RoleAdmin {
		return fmt.Errorf("%w: only admins may confer or administer the admin role", ErrSecurityViolation)
	}
	if orgChanged {
		return fmt.Errorf("%w: moving a profile between organizations requires the admin role", ErrSecurityViolation)
	}
	if !actor.Role.AtLeast(RoleOrgAdmin) || actor.OrgID == "" || actor.OrgID != current.OrgID {
		return fmt.Errorf("%w: updating another profile requires org_admin of the target organization", ErrSecurityViolation)
	}
	return nil
}
