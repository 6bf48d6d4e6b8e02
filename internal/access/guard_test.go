package access

import (
	"errors"
	"testing"
)

func profileFor(id, orgID string, role Role) Profile {
	return Profile{ID: id, OrgID: orgID, Role: role, Active: true}
}

func TestGuardSelfEscalation(t *testing.T) {
	self := profileFor("u1", "org-a", RoleViewer)

	cases := []struct {
		name    string
		updated Profile
		wantErr bool
	}{
		{
			name:    "name change allowed",
			updated: func() Profile { p := self; p.Name = "New Name"; return p }(),
		},
		{
			name:    "role raise rejected",
			updated: func() Profile { p := self; p.Role = RoleAdmin; return p }(),
			wantErr: true,
		},
		{
			name:    "org move rejected",
			updated: func() Profile { p := self; p.OrgID = "org-b"; return p }(),
			wantErr: true,
		},
		{
			name:    "self deactivation rejected",
			updated: func() Profile { p := self; p.Active = false; return p }(),
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckProfileWrite(self, self, tc.updated)
			if tc.wantErr {
				if !errors.Is(err, ErrSecurityViolation) {
					t.Fatalf("expected security violation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}

	// Lowering one's own role is a change like any other.
	editor := profileFor("u2", "org-a", RoleEditor)
	lowered := editor
	lowered.Role = RoleViewer
	if err := CheckProfileWrite(editor, editor, lowered); !errors.Is(err, ErrSecurityViolation) {
		t.Fatalf("expected security violation lowering own role, got %v", err)
	}
}

func TestGuardAdminCeiling(t *testing.T) {
	orgAdmin := profileFor("boss", "org-a", RoleOrgAdmin)
	member := profileFor("u1", "org-a", RoleViewer)
	existingAdmin := profileFor("root", "org-a", RoleAdmin)

	// An org_admin may change ordinary roles inside its organization.
	promoted := member
	promoted.Role = RoleEditor
	if err := CheckProfileWrite(orgAdmin, member, promoted); err != nil {
		t.Fatalf("in-org promotion to editor should pass: %v", err)
	}

	// But may never mint an admin.
	minted := member
	minted.Role = RoleAdmin
	if err := CheckProfileWrite(orgAdmin, member, minted); !errors.Is(err, ErrSecurityViolation) {
		t.Fatalf("expected security violation conferring admin, got %v", err)
	}

	// Nor touch an existing admin account.
	demoted := existingAdmin
	demoted.Role = RoleViewer
	if err := CheckProfileWrite(orgAdmin, existingAdmin, demoted); !errors.Is(err, ErrSecurityViolation) {
		t.Fatalf("expected security violation touching admin, got %v", err)
	}

	// A global admin can do both.
	superuser := profileFor("super", "", RoleAdmin)
	if err := CheckProfileWrite(superuser, member, minted); err != nil {
		t.Fatalf("admin conferring admin should pass: %v", err)
	}
	if err := CheckProfileWrite(superuser, existingAdmin, demoted); err != nil {
		t.Fatalf("admin demoting admin should pass: %v", err)
	}
}

func TestGuardCrossOrgAndMoves(t *testing.T) {
	orgAdmin := profileFor("boss", "org-a", RoleOrgAdmin)
	outsider := profileFor("u1", "org-b", RoleViewer)
	member := profileFor("u2", "org-a", RoleViewer)

	renamed := outsider
	renamed.Name = "x"
	if err := CheckProfileWrite(orgAdmin, outsider, renamed); !errors.Is(err, ErrSecurityViolation) {
		t.Fatalf("expected violation updating another org's profile, got %v", err)
	}

	moved := member
	moved.OrgID = "org-b"
	if err := CheckProfileWrite(orgAdmin, member, moved); !errors.Is(err, ErrSecurityViolation) {
		t.Fatalf("expected violation moving profile between orgs, got %v", err)
	}

	superuser := profileFor("super", "", RoleAdmin)
	if err := CheckProfileWrite(superuser, member, moved); err != nil {
		t.Fatalf("admin org move should pass: %v", err)
	}
}

func TestGuardInvariants(t *testing.T) {
	superuser := profileFor("super", "", RoleAdmin)
	member := profileFor("u1", "org-a", RoleViewer)

	relabeled := member
	relabeled.ID = "u2"
	if err := CheckProfileWrite(superuser, member, relabeled); !errors.Is(err, ErrSecurityViolation) {
		t.Fatalf("expected violation on id change, got %v", err)
	}

	invalid := member
	invalid.Role = Role("overlord")
	if err := CheckProfileWrite(superuser, member, invalid); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown role, got %v", err)
	}
}
