package access

import (
	"context"
	"errors"
	"testing"
)

func newTestLedgers(t *testing.T, f *fixture) *Ledgers {
	t.Helper()
	l, err := NewLedgers(f.shares, f.grants, f.ownership, f.directory, f.audit)
	if err != nil {
		t.Fatalf("NewLedgers: %v", err)
	}
	return l
}

func TestGrantOrgShare(t *testing.T) {
	f := newFixture()
	f.addOrg("org-a", "Harbor North", false)
	f.addOrg("org-b", "Harbor South", false)
	f.addProfile("boss-a", "org-a", RoleOrgAdmin)
	f.addProfile("editor-a", "org-a", RoleEditor)
	f.addProfile("boss-b", "org-b", RoleOrgAdmin)
	f.addAsset("org-a", "asset-1")
	l := newTestLedgers(t, f)
	ctx := context.Background()

	share := OrgShare{
		OwnerOrgID:  "org-a",
		TargetOrgID: "org-b",
		Kind:        KindAsset,
		ResourceID:  "asset-1",
		Permission:  ShareView,
	}

	stored, err := l.GrantOrgShare(ctx, "boss-a", share)
	if err != nil {
		t.Fatalf("GrantOrgShare: %v", err)
	}
	if stored.CreatedBy != "boss-a" {
		t.Fatalf("CreatedBy = %q", stored.CreatedBy)
	}

	// Re-granting the same key upgrades in place.
	share.Permission = ShareEdit
	upgraded, err := l.GrantOrgShare(ctx, "boss-a", share)
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if upgraded.Permission != ShareEdit {
		t.Fatalf("permission = %s, want edit", upgraded.Permission)
	}
	if len(f.shares.shares) != 1 {
		t.Fatalf("expected single share row, got %d", len(f.shares.shares))
	}

	// Sharing another org's resource requires administering the owner org.
	if _, err := l.GrantOrgShare(ctx, "editor-a", share); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("editor granting org share: got %v", err)
	}
	if _, err := l.GrantOrgShare(ctx, "boss-b", share); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("foreign org_admin granting: got %v", err)
	}

	share.TargetOrgID = "org-a"
	if _, err := l.GrantOrgShare(ctx, "boss-a", share); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("self-share: got %v", err)
	}
	share.TargetOrgID = "org-b"
	share.Kind = KindDocument
	share.ResourceID = "doc-1"
	if _, err := l.GrantOrgShare(ctx, "boss-a", share); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("document share: got %v", err)
	}
}

func TestGrantOrgShareOwnershipMismatch(t *testing.T) {
	f := newFixture()
	f.addOrg("org-a", "Harbor North", false)
	f.addOrg("org-b", "Harbor South", false)
	f.addProfile("boss-b", "org-b", RoleOrgAdmin)
	f.addAsset("org-a", "asset-1")
	l := newTestLedgers(t, f)

	_, err := l.GrantOrgShare(context.Background(), "boss-b", OrgShare{
		OwnerOrgID:  "org-b",
		TargetOrgID: "org-a",
		Kind:        KindAsset,
		ResourceID:  "asset-1",
		Permission:  ShareView,
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("declared owner must match actual owner, got %v", err)
	}
}

func TestRevokeOrgShare(t *testing.T) {
	f := newFixture()
	f.addOrg("org-a", "Harbor North", false)
	f.addOrg("org-b", "Harbor South", false)
	f.addProfile("boss-a", "org-a", RoleOrgAdmin)
	f.addAsset("org-a", "asset-1")
	l := newTestLedgers(t, f)
	ctx := context.Background()

	if _, err := l.GrantOrgShare(ctx, "boss-a", OrgShare{
		OwnerOrgID:  "org-a",
		TargetOrgID: "org-b",
		Kind:        KindAsset,
		ResourceID:  "asset-1",
		Permission:  ShareView,
	}); err != nil {
		t.Fatalf("GrantOrgShare: %v", err)
	}

	if err := l.RevokeOrgShare(ctx, "boss-a", "org-a", "org-b", KindAsset, "asset-1"); err != nil {
		t.Fatalf("RevokeOrgShare: %v", err)
	}
	if err := l.RevokeOrgShare(ctx, "boss-a", "org-a", "org-b", KindAsset, "asset-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double revoke: got %v", err)
	}
}

func TestGrantUserAccess(t *testing.T) {
	f := newFixture()
	f.addOrg("org-a", "Harbor North", false)
	f.addProfile("lead", "org-a", RoleEditor)
	f.addProfile("viewer-a", "org-a", RoleViewer)
	f.addProfile("contractor", "", RoleViewer)
	f.addAsset("org-a", "asset-1")
	l := newTestLedgers(t, f)
	ctx := context.Background()

	grant := UserGrant{UserID: "contractor", AssetID: "asset-1", Level: GrantRead}
	stored, err := l.GrantUserAccess(ctx, "lead", grant)
	if err != nil {
		t.Fatalf("GrantUserAccess: %v", err)
	}
	if stored.GrantedBy != "lead" {
		t.Fatalf("GrantedBy = %q", stored.GrantedBy)
	}

	// A viewer in the owning org may not grant.
	if _, err := l.GrantUserAccess(ctx, "viewer-a", grant); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("viewer granting: got %v", err)
	}

	// Upgrading is an in-place upsert.
	grant.Level = GrantAdmin
	if _, err := l.GrantUserAccess(ctx, "lead", grant); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if len(f.grants.grants) != 1 {
		t.Fatalf("expected single grant row, got %d", len(f.grants.grants))
	}

	// Unknown user and unknown asset both surface not-found.
	if _, err := l.GrantUserAccess(ctx, "lead", UserGrant{UserID: "ghost", AssetID: "asset-1", Level: GrantRead}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user: got %v", err)
	}
	if _, err := l.GrantUserAccess(ctx, "lead", UserGrant{UserID: "contractor", AssetID: "asset-9", Level: GrantRead}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown asset: got %v", err)
	}
}

func TestRevokeUserAccess(t *testing.T) {
	f := newFixture()
	f.addOrg("org-a", "Harbor North", false)
	f.addProfile("lead", "org-a", RoleEditor)
	f.addProfile("contractor", "", RoleViewer)
	f.addAsset("org-a", "asset-1")
	l := newTestLedgers(t, f)
	ctx := context.Background()

	if _, err := l.GrantUserAccess(ctx, "lead", UserGrant{UserID: "contractor", AssetID: "asset-1", Level: GrantWrite}); err != nil {
		t.Fatalf("GrantUserAccess: %v", err)
	}
	if err := l.RevokeUserAccess(ctx, "lead", "contractor", "asset-1"); err != nil {
		t.Fatalf("RevokeUserAccess: %v", err)
	}
	if err := l.RevokeUserAccess(ctx, "lead", "contractor", "asset-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double revoke: got %v", err)
	}
}
