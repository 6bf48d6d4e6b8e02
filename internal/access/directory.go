package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Directory is the application-facing surface over profile records. Every
// mutation goes through the evaluator's write gate and then the
// self-escalation guard; reads of other profiles go through the evaluator
// like any other resource.
type Directory struct {
	store DirectoryStore
	eval  *Evaluator
	audit AuditSink
}

// NewDirectory constructs the directory service.
func NewDirectory(store DirectoryStore, eval *Evaluator, audit AuditSink) (*Directory, error) {
	if store == nil || eval == nil || audit == nil {
		return nil, errors.New("access: directory requires store, evaluator and audit sink")
	}
	return &Directory{store: store, eval: eval, audit: audit}, nil
}

// NewProfile is the provisioning input. RequestedRole is accepted for
// diagnostics only and never stored: every new profile starts as viewer.
type NewProfile struct {
	Email         string
	Name          string
	OrgID         string
	Password      string
	PasswordHash  string // pre-hashed credential, wins over Password
	RequestedRole string
}

// ProfileUpdate mutates a subset of profile fields. Nil fields are untouched.
type ProfileUpdate struct {
	Email  *string
	Name   *string
	Role   *Role
	OrgID  *string
	Active *bool
}

// Provision creates a profile. An empty actorID marks the trusted post-signup
// hook; any other actor must administer the target organization. The stored
// role is always viewer regardless of the requested one, which closes
// privilege injection at creation time.
func (d *Directory) Provision(ctx context.Context, actorID string, np NewProfile) (Profile, error) {
	email := strings.TrimSpace(strings.ToLower(np.Email))
	if email == "" || !strings.Contains(email, "@") {
		return Profile{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	name := strings.TrimSpace(np.Name)
	orgID := strings.TrimSpace(np.OrgID)

	actorID = strings.TrimSpace(actorID)
	if actorID != "" {
		ok, err := d.eval.CanAdministerOrg(ctx, actorID, orgID)
		if err != nil {
			return Profile{}, err
		}
		if !ok {
			return Profile{}, ErrUnauthorized
		}
	}

	profile := Profile{
		OrgID:  orgID,
		Email:  email,
		Name:   name,
		Role:   RoleViewer,
		Active: true,
	}
	switch {
	case np.PasswordHash != "":
		profile.PasswordHash = np.PasswordHash
	case strings.TrimSpace(np.Password) != "":
		hash, err := HashPassword(strings.TrimSpace(np.Password))
		if err != nil {
			return Profile{}, err
		}
		profile.PasswordHash = hash
	}

	created, err := d.store.Create(ctx, profile)
	if err != nil {
		return Profile{}, err
	}
	fields := map[string]string{"email": created.Email, "role": string(created.Role)}
	if requested := strings.TrimSpace(np.RequestedRole); requested != "" && requested != string(RoleViewer) {
		fields["requested_role"] = requested
	}
	_ = d.audit.Append(ctx, Event{
		ActorID:      actorID,
		Action:       "directory.profile.provision",
		ResourceType: string(KindProfile),
		ResourceID:   created.ID,
		Fields:       fields,
	})
	return created, nil
}

// Get returns a profile the actor is allowed to read.
func (d *Directory) Get(ctx context.Context, actorID, profileID string) (Profile, error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return Profile{}, fmt.Errorf("%w: profile id is required", ErrInvalidInput)
	}
	ok, err := d.eval.CanAccess(ctx, actorID, ResourceRef{Kind: KindProfile, ID: profileID}, ActionRead)
	if err != nil {
		return Profile{}, err
	}
	if !ok {
		return Profile{}, ErrUnauthorized
	}
	return d.store.Lookup(ctx, profileID)
}

// Update applies a guarded profile mutation. The evaluator gates the write,
// the guard diffs old against new, and the store applies all fields in one
// statement, so a rejected update leaves the record untouched.
func (d *Directory) Update(ctx context.Context, actorID, profileID string, upd ProfileUpdate) (Profile, error) {
	actorID = strings.TrimSpace(actorID)
	profileID = strings.TrimSpace(profileID)
	if actorID == "" || profileID == "" {
		return Profile{}, fmt.Errorf("%w: actor and profile ids are required", ErrInvalidInput)
	}

	actor, err := d.store.Lookup(ctx, actorID)
	if err != nil {
		return Profile{}, err
	}
	current, err := d.store.Lookup(ctx, profileID)
	if err != nil {
		return Profile{}, err
	}

	ok, err := d.eval.CanAccess(ctx, actorID, ResourceRef{Kind: KindProfile, ID: profileID}, ActionUpdate)
	if err != nil {
		return Profile{}, err
	}
	if !ok {
		return Profile{}, ErrUnauthorized
	}

	updated := current
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email == "" || !strings.Contains(email, "@") {
			return Profile{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		updated.Email = email
	}
	if upd.Name != nil {
		updated.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Role != nil {
		updated.Role = *upd.Role
	}
	if upd.OrgID != nil {
		updated.OrgID = strings.TrimSpace(*upd.OrgID)
	}
	if upd.Active != nil {
		updated.Active = *upd.Active
	}

	if err := CheckProfileWrite(actor, current, updated); err != nil {
		_ = d.audit.Append(ctx, Event{
			ActorID:      actorID,
			Action:       "access.guard.violation",
			ResourceType: string(KindProfile),
			ResourceID:   profileID,
			Fields:       map[string]string{"error": err.Error()},
		})
		return Profile{}, err
	}

	stored, err := d.store.Update(ctx, updated)
	if err != nil {
		return Profile{}, err
	}
	if stored.Role != current.Role {
		_ = d.audit.Append(ctx, Event{
			ActorID:      actorID,
			Action:       "directory.profile.role_change",
			ResourceType: string(KindProfile),
			ResourceID:   profileID,
			Fields: map[string]string{
				"from": string(current.Role),
				"to":   string(stored.Role),
			},
		})
	}
	return stored, nil
}

// Deactivate disables a profile through the guarded update path. Profiles are
// never hard-deleted; self-deactivation is a guard violation.
func (d *Directory) Deactivate(ctx context.Context, actorID, profileID string) (Profile, error) {
	inactive := false
	profile, err := d.Update(ctx, actorID, profileID, ProfileUpdate{Active: &inactive})
	if err != nil {
		return Profile{}, err
	}
	_ = d.audit.Append(ctx, Event{
		ActorID:      actorID,
		Action:       "directory.profile.deactivate",
		ResourceType: string(KindProfile),
		ResourceID:   profileID,
	})
	return profile, nil
}

// Authenticate verifies login credentials and returns the active profile.
// Every failure mode collapses into ErrUnauthorized so responses cannot be
// used to probe which accounts exist.
func (d *Directory) Authenticate(ctx context.Context, email, password string) (Profile, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Profile{}, ErrUnauthorized
	}
	profile, err := d.store.LookupByEmail(ctx, email)
	if err != nil {
		return Profile{}, ErrUnauthorized
	}
	if !profile.Active {
		return Profile{}, ErrUnauthorized
	}
	if err := VerifyPassword(profile.PasswordHash, password); err != nil {
		return Profile{}, ErrUnauthorized
	}
	return profile, nil
}
