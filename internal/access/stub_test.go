package access

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// fixture wires stub stores plus helpers to register a resource hierarchy.
// Tests drive the engine exactly the way the pg stores would.
type fixture struct {
	directory *stubDirectory
	ownership *stubOwnership
	shares    *stubShares
	grants    *stubGrants
	requests  *stubRequests
	audit     *stubAudit
}

func newFixture() *fixture {
	f := &fixture{
		directory: &stubDirectory{
			profiles: make(map[string]Profile),
			orgs:     make(map[string]Organization),
		},
		ownership: &stubOwnership{
			owners:  make(map[ResourceRef]Ownership),
			parents: make(map[ResourceRef]ResourceRef),
		},
		grants:   &stubGrants{grants: make(map[string]UserGrant)},
		requests: &stubRequests{requests: make(map[string]AccessRequest)},
		audit:    &stubAudit{},
	}
	f.shares = &stubShares{shares: make(map[string]OrgShare), ownership: f.ownership}
	return f
}

func (f *fixture) evaluator() *Evaluator {
	eval, err := NewEvaluator(f.directory, f.ownership, f.shares, f.grants, f.requests)
	if err != nil {
		panic(err)
	}
	return eval
}

func (f *fixture) addOrg(id, name string, privileged bool) {
	f.directory.orgs[id] = Organization{ID: id, Name: name, Privileged: privileged}
}

func (f *fixture) addProfile(id, orgID string, role Role) Profile {
	p := Profile{
		ID:     id,
		OrgID:  orgID,
		Email:  id + "@example.com",
		Role:   role,
		Active: true,
	}
	f.directory.profiles[id] = p
	return p
}

func (f *fixture) addAsset(orgID, id string) ResourceRef {
	ref := ResourceRef{Kind: KindAsset, ID: id}
	f.ownership.owners[ref] = Ownership{OrgID: orgID, AssetID: id}
	return ref
}

func (f *fixture) addVessel(assetRef ResourceRef, id string) ResourceRef {
	ref := ResourceRef{Kind: KindVessel, ID: id}
	owner := f.ownership.owners[assetRef]
	f.ownership.owners[ref] = owner
	f.ownership.parents[ref] = assetRef
	return ref
}

func (f *fixture) addScan(vesselRef ResourceRef, id string) ResourceRef {
	ref := ResourceRef{Kind: KindScan, ID: id}
	owner := f.ownership.owners[vesselRef]
	f.ownership.owners[ref] = owner
	f.ownership.parents[ref] = vesselRef
	return ref
}

func (f *fixture) addDocument(orgID, id string) ResourceRef {
	ref := ResourceRef{Kind: KindDocument, ID: id}
	f.ownership.owners[ref] = Ownership{OrgID: orgID}
	return ref
}

// stubDirectory ------------------------------------------------------------

type stubDirectory struct {
	profiles map[string]Profile
	orgs     map[string]Organization
	nextID   int
}

func (s *stubDirectory) Lookup(_ context.Context, id string) (Profile, error) {
	p, ok := s.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (s *stubDirectory) LookupByEmail(_ context.Context, email string) (Profile, error) {
	for _, p := range s.profiles {
		if p.Email == email {
			return p, nil
		}
	}
	return Profile{}, ErrNotFound
}

func (s *stubDirectory) Organization(_ context.Context, orgID string) (Organization, error) {
	org, ok := s.orgs[orgID]
	if !ok {
		return Organization{}, ErrNotFound
	}
	return org, nil
}

func (s *stubDirectory) Create(_ context.Context, profile Profile) (Profile, error) {
	for _, p := range s.profiles {
		if p.Email == profile.Email {
			return Profile{}, ErrConflict
		}
	}
	s.nextID++
	profile.ID = fmt.Sprintf("profile-%d", s.nextID)
	profile.CreatedAt = time.Now().UTC()
	profile.UpdatedAt = profile.CreatedAt
	s.profiles[profile.ID] = profile
	return profile, nil
}

func (s *stubDirectory) Update(_ context.Context, profile Profile) (Profile, error) {
	if _, ok := s.profiles[profile.ID]; !ok {
		return Profile{}, ErrNotFound
	}
	profile.UpdatedAt = time.Now().UTC()
	s.profiles[profile.ID] = profile
	return profile, nil
}

// stubOwnership ------------------------------------------------------------

type stubOwnership struct {
	owners  map[ResourceRef]Ownership
	parents map[ResourceRef]ResourceRef
}

func (s *stubOwnership) Resolve(_ context.Context, ref ResourceRef) (Ownership, error) {
	owner, ok := s.owners[ref]
	if !ok {
		return Ownership{}, ErrNotFound
	}
	return owner, nil
}

func (s *stubOwnership) ListAssets(_ context.Context, orgID string) ([]ResourceRef, error) {
	var refs []ResourceRef
	for ref, owner := range s.owners {
		if ref.Kind != KindAsset {
			continue
		}
		if orgID == "" || owner.OrgID == orgID {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// stubShares ---------------------------------------------------------------

type stubShares struct {
	shares    map[string]OrgShare
	ownership *stubOwnership
}

func shareKey(owner, target string, kind ResourceKind, id string) string {
	return strings.Join([]string{owner, target, string(kind), id}, "|")
}

func (s *stubShares) Upsert(_ context.Context, share OrgShare) (OrgShare, error) {
	key := shareKey(share.OwnerOrgID, share.TargetOrgID, share.Kind, share.ResourceID)
	share.UpdatedAt = time.Now().UTC()
	if existing, ok := s.shares[key]; ok {
		share.CreatedAt = existing.CreatedAt
	} else {
		share.CreatedAt = share.UpdatedAt
	}
	s.shares[key] = share
	return share, nil
}

func (s *stubShares) Delete(_ context.Context, owner, target string, kind ResourceKind, id string) error {
	key := shareKey(owner, target, kind, id)
	if _, ok := s.shares[key]; !ok {
		return ErrNotFound
	}
	delete(s.shares, key)
	return nil
}

func (s *stubShares) Find(_ context.Context, owner, target string, kind ResourceKind, id string) (OrgShare, error) {
	share, ok := s.shares[shareKey(owner, target, kind, id)]
	if !ok {
		return OrgShare{}, ErrNotFound
	}
	return share, nil
}

func (s *stubShares) FindCovering(_ context.Context, owner, target string, ref ResourceRef) (OrgShare, error) {
	best := OrgShare{}
	found := false
	for cur, ok := ref, true; ok; cur, ok = s.parent(cur) {
		if share, exists := s.shares[shareKey(owner, target, cur.Kind, cur.ID)]; exists {
			if !found || share.Permission.AtLeast(best.Permission) {
				best = share
				found = true
			}
		}
	}
	if !found {
		return OrgShare{}, ErrNotFound
	}
	return best, nil
}

func (s *stubShares) parent(ref ResourceRef) (ResourceRef, bool) {
	parent, ok := s.ownership.parents[ref]
	return parent, ok
}

func (s *stubShares) ListForTarget(_ context.Context, target string) ([]OrgShare, error) {
	var out []OrgShare
	for _, share := range s.shares {
		if share.TargetOrgID == target {
			out = append(out, share)
		}
	}
	return out, nil
}

// stubGrants ---------------------------------------------------------------

type stubGrants struct {
	grants map[string]UserGrant
}

func grantKey(userID, assetID string) string { return userID + "|" + assetID }

func (s *stubGrants) Upsert(_ context.Context, grant UserGrant) (UserGrant, error) {
	key := grantKey(grant.UserID, grant.AssetID)
	grant.UpdatedAt = time.Now().UTC()
	if existing, ok := s.grants[key]; ok {
		grant.CreatedAt = existing.CreatedAt
	} else {
		grant.CreatedAt = grant.UpdatedAt
	}
	s.grants[key] = grant
	return grant, nil
}

func (s *stubGrants) Delete(_ context.Context, userID, assetID string) error {
	key := grantKey(userID, assetID)
	if _, ok := s.grants[key]; !ok {
		return ErrNotFound
	}
	delete(s.grants, key)
	return nil
}

func (s *stubGrants) Find(_ context.Context, userID, assetID string) (UserGrant, error) {
	grant, ok := s.grants[grantKey(userID, assetID)]
	if !ok {
		return UserGrant{}, ErrNotFound
	}
	return grant, nil
}

func (s *stubGrants) ListForUser(_ context.Context, userID string) ([]UserGrant, error) {
	var out []UserGrant
	for _, grant := range s.grants {
		if grant.UserID == userID {
			out = append(out, grant)
		}
	}
	return out, nil
}

// stubRequests -------------------------------------------------------------

type stubRequests struct {
	requests map[string]AccessRequest
	nextID   int
}

func (s *stubRequests) Create(_ context.Context, req AccessRequest) (AccessRequest, error) {
	s.nextID++
	req.ID = fmt.Sprintf("request-%d", s.nextID)
	req.CreatedAt = time.Now().UTC()
	s.requests[req.ID] = req
	return req, nil
}

func (s *stubRequests) Find(_ context.Context, id string) (AccessRequest, error) {
	req, ok := s.requests[id]
	if !ok {
		return AccessRequest{}, ErrNotFound
	}
	return req, nil
}

func (s *stubRequests) Claim(_ context.Context, id string, status RequestStatus, approverID, reason string) (AccessRequest, error) {
	req, ok := s.requests[id]
	if !ok {
		return AccessRequest{}, ErrNotFound
	}
	if req.Status != StatusPending {
		return AccessRequest{}, ErrConflict
	}
	now := time.Now().UTC()
	req.Status = status
	req.ApproverID = approverID
	req.Reason = reason
	req.DecidedAt = &now
	s.requests[id] = req
	return req, nil
}

func (s *stubRequests) ListForRequester(_ context.Context, requesterID string) ([]AccessRequest, error) {
	var out []AccessRequest
	for _, req := range s.requests {
		if req.RequesterID == requesterID {
			out = append(out, req)
		}
	}
	return out, nil
}

// stubAudit ----------------------------------------------------------------

type stubAudit struct {
	events []Event
}

func (s *stubAudit) Append(_ context.Context, event Event) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubAudit) actions() []string {
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Action)
	}
	return out
}
