package access

import (
	"context"
	"errors"
	"testing"
)

func newTestDirectory(t *testing.T, f *fixture) *Directory {
	t.Helper()
	d, err := NewDirectory(f.directory, f.evaluator(), f.audit)
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	return d
}

func TestProvisionForcesViewer(t *testing.T) {
	f := newFixture()
	f.addOrg("org-a", "Harbor North", false)
	d := newTestDirectory(t, f)

	created, err := d.Provision(context.Background(), "", NewProfile{
		Email:         "New.User@Example.com",
		Name:          "New User",
		OrgID:         "org-a",
		Password:      "s3cret-pass",
		RequestedRole: "admin",
	})
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if created.Role != RoleViewer {
		t.Fatalf("provisioned role = %s, want viewer", created.Role)
	}
	if created.Email != "new.user@example.com" {
		t.Fatalf("email not normalized: %q", created.Email)
	}
	if created.PasswordHash == "" || created.PasswordHash == "s3cret-pass" {
		t.Fatal("password must be stored hashed")
	}

	// The refused elevation is still visible in the audit trail.
	found := false
	for _, ev := range f.audit.events {
		if ev.Action == "directory.profile.provision" && ev.Fields["requested_role"] == "admin" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected provision audit event carrying requested_role")
	}
}

func TestProvisionAuthorization(t *testing.T) {
	f := newFixture()
	f.addOrg("org-a", "Harbor North", false)
	f.addOrg("org-b", "Harbor South", false)
	f.addProfile("boss-a", "org-a", RoleOrgAdmin)
	d := newTestDirectory(t, f)
	ctx := context.Background()

	if _, err := d.Provision(ctx, "boss-a", NewProfile{Email: "a@example.com", OrgID: "org-a"}); err != nil {
		t.Fatalf("org_admin should provision into own org: %v", err)
	}
	if _, err := d.Provision(ctx, "boss-a", NewProfile{Email: "b@example.com", OrgID: "org-b"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized provisioning into foreign org, got %v", err)
	}
	if _, err := d.Provision(ctx, "", NewProfile{Email: "not-an-email"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for malformed email, got %v", err)
	}
}

func TestUpdateGuardViolationAudited(t *testing.T) {
	f := newFixture()
	f.addOrg("org-a", "Harbor North", false)
	f.addProfile("worker", "org-a", RoleViewer)
	d := newTestDirectory(t, f)

	role := RoleAdmin
	_, err := d.Update(context.Background(), "worker", "worker", ProfileUpdate{Role: &role})
	if !errors.Is(err, ErrSecurityViolation) {
		t.Fatalf("expected security violation, got %v", err)
	}
	if f.directory.profiles["worker"].Role != RoleViewer {
		t.Fatal("rejected update must leave the record untouched")
	}
	violated := false
	for _, ev := range f.audit.events {
		if ev.Action == "access.guard.violation" && ev.ResourceID == "worker" {
			violated = true
		}
	}
	if !violated {
		t.Fatal("guard violation must be audited")
	}
}

func TestUpdateRoleChangeByOrgAdmin(t *testing.T) {
	f := newFixture()
	f.addOrg("org-a", "Harbor North", false)
	f.addProfile("boss", "org-a", RoleOrgAdmin)
	f.addProfile("worker", "org-a", RoleViewer)
	d := newTestDirectory(t, f)

	role := RoleEditor
	updated, err := d.Update(context.Background(), "boss", "worker", ProfileUpdate{Role: &role})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Role != RoleEditor {
		t.Fatalf("role = %s, want editor", updated.Role)
	}
	change := false
	for _, ev := range f.audit.events {
		if ev.Action == "directory.profile.role_change" && ev.Fields["to"] == "editor" {
			change = true
		}
	}
	if !change {
		t.Fatal("role change must be audited")
	}
}

func TestDeactivate(t *testing.T) {
	f := newFixture()
	f.addOrg("org-a", "Harbor North", false)
	f.addProfile("boss", "org-a", RoleOrgAdmin)
	f.addProfile("worker", "org-a", RoleViewer)
	d := newTestDirectory(t, f)
	ctx := context.Background()

	deactivated, err := d.Deactivate(ctx, "boss", "worker")
	if err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if deactivated.Active {
		t.Fatal("profile still active")
	}
	if _, err := d.Deactivate(ctx, "boss", "boss"); !errors.Is(err, ErrSecurityViolation) {
		t.Fatalf("expected violation on self-deactivation, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture()
	f.addOrg("org-a", "Harbor North", false)
	d := newTestDirectory(t, f)
	ctx := context.Background()

	created, err := d.Provision(ctx, "", NewProfile{
		Email:    "pilot@example.com",
		OrgID:    "org-a",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}

	got, err := d.Authenticate(ctx, "Pilot@Example.com", "correct horse")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("authenticated id = %s, want %s", got.ID, created.ID)
	}

	if _, err := d.Authenticate(ctx, "pilot@example.com", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("wrong password: got %v", err)
	}
	if _, err := d.Authenticate(ctx, "nobody@example.com", "x"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unknown account must collapse to unauthorized, got %v", err)
	}

	inactive := f.directory.profiles[created.ID]
	inactive.Active = false
	f.directory.profiles[created.ID] = inactive
	if _, err := d.Authenticate(ctx, "pilot@example.com", "correct horse"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("inactive account must collapse to unauthorized, got %v", err)
	}
}
